package handlers

import (
	"github.com/featureboard/backend/internal/middleware"
	"github.com/featureboard/backend/internal/services"
	"github.com/featureboard/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves /api/admin. Every operation is authorized by the
// service layer against the caller's identity.
type AdminHandler struct {
	featureService  *services.FeatureService
	listingService  *services.ListingService
	userService     *services.UserService
	auditLogService *services.AuditLogService
}

func NewAdminHandler(features *services.FeatureService, listing *services.ListingService, users *services.UserService, auditLogs *services.AuditLogService) *AdminHandler {
	return &AdminHandler{
		featureService:  features,
		listingService:  listing,
		userService:     users,
		auditLogService: auditLogs,
	}
}

// Check confirms the caller holds admin rights; routed behind AdminRequired.
// GET /api/admin/check
func (h *AdminHandler) Check(c *gin.Context) {
	response.Success(c, gin.H{"is_admin": true, "email": middleware.GetEmail(c)})
}

// ListFeatures returns every feature request with creator details
// GET /api/admin/features
func (h *AdminHandler) ListFeatures(c *gin.Context) {
	views, err := h.listingService.AdminList(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, views)
}

// ResetFeatures deletes all feature requests and votes
// DELETE /api/admin/features
func (h *AdminHandler) ResetFeatures(c *gin.Context) {
	result, err := h.featureService.DeleteAll(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteFeature removes one feature request and its votes
// DELETE /api/admin/features/:id
func (h *AdminHandler) DeleteFeature(c *gin.Context) {
	if err := h.featureService.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentIdentity(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "feature request deleted")
}

// ListUsers
// GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// DeleteNonAdminUsers
// DELETE /api/admin/users
func (h *AdminHandler) DeleteNonAdminUsers(c *gin.Context) {
	result, err := h.userService.DeleteAllNonAdmin(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteUser
// DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentIdentity(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "user deleted")
}

// ListAuditLogs returns paginated audit entries; routed behind AdminRequired.
// GET /api/admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	var req services.AuditLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.auditLogService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
