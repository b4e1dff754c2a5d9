package handlers

import (
	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	voteService *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{voteService: votes}
}

// Add records the caller's vote
// POST /api/features/:id/vote
func (h *VoteHandler) Add(c *gin.Context) {
	ctx := c.Request.Context()
	featureID := c.Param("id")

	vote, err := h.voteService.AddVote(ctx, middleware.GetUserID(c), featureID)
	if err != nil {
		response.Error(c, err)
		return
	}

	count, err := h.voteService.CountFor(ctx, featureID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"vote": vote, "vote_count": count})
}

// Remove withdraws the caller's vote; removing a missing vote succeeds.
// DELETE /api/features/:id/vote
func (h *VoteHandler) Remove(c *gin.Context) {
	if err := h.voteService.RemoveVote(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "vote removed")
}
