package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/pkg/logger"
	"github.com/featureboard/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	attachmentService *services.AttachmentService
}

func NewAttachmentHandler(attachments *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachments}
}

// Download streams a stored attachment
// GET /api/attachments/:locator
func (h *AttachmentHandler) Download(c *gin.Context) {
	locator := c.Param("locator")

	rc, err := h.attachmentService.Open(c.Request.Context(), locator)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(locator))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": locator}))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Warnf("[Attachment] Failed to stream %s: %v", locator, err)
	}
}
