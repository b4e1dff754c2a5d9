package handlers

import (
	"strings"

	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

// attachmentsField is the multipart field carrying uploaded files.
const attachmentsField = "attachments"

type FeatureHandler struct {
	featureService    *services.FeatureService
	listingService    *services.ListingService
	attachmentService *services.AttachmentService
}

func NewFeatureHandler(features *services.FeatureService, listing *services.ListingService, attachments *services.AttachmentService) *FeatureHandler {
	return &FeatureHandler{
		featureService:    features,
		listingService:    listing,
		attachmentService: attachments,
	}
}

// List returns feature requests filtered by status and ordered by sort
// GET /api/features?status=&sort=
func (h *FeatureHandler) List(c *gin.Context) {
	var filter services.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	views, err := h.listingService.List(c.Request.Context(), filter, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, views)
}

// Create accepts either a JSON body or a multipart form with files.
// POST /api/features
func (h *FeatureHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var req services.CreateFeatureRequest

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			response.BadRequest(c, "invalid multipart form")
			return
		}
		locators, err := h.attachmentService.SaveUploads(ctx, form.File[attachmentsField])
		if err != nil {
			response.Error(c, err)
			return
		}
		req.Attachments = locators
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	feature, err := h.featureService.Create(ctx, userID, &req)
	if err != nil {
		h.attachmentService.Discard(ctx, req.Attachments)
		response.Error(c, err)
		return
	}

	view, err := h.featureService.Get(ctx, feature.ID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, view)
}

// GetByID returns one feature request with its vote count
// GET /api/features/:id
func (h *FeatureHandler) GetByID(c *gin.Context) {
	view, err := h.featureService.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, view)
}

// UpdateStatus moves a feature request to a new lifecycle status
// PATCH /api/features/:id/status
func (h *FeatureHandler) UpdateStatus(c *gin.Context) {
	var req services.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	view, err := h.featureService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, middleware.CurrentIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, view)
}
