package handlers

import (
	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	listingService *services.ListingService
}

func NewProfileHandler(listing *services.ListingService) *ProfileHandler {
	return &ProfileHandler{listingService: listing}
}

// Get returns the caller's feature requests and voting history
// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.listingService.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, profile)
}
