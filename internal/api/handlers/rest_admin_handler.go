package handlers

import (
	"net/http"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"github.com/gin-gonic/gin"
)

const defaultAuditPageSize = 100

// RestAdminHandler serves the read side of the admin dashboard. Mutations go through the
// JSON API.
type RestAdminHandler struct {
	adminService services.IAdminService
	auditService services.IAuditService
}

// NewRestAdminHandler creates a new RestAdminHandler.
func NewRestAdminHandler(adminService services.IAdminService, auditService services.IAuditService) *RestAdminHandler {
	return &RestAdminHandler{adminService: adminService, auditService: auditService}
}

// ListUsers handles GET /v1/admin/users?role=&q=&page=&limit=
func (h *RestAdminHandler) ListUsers(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	page, err := h.adminService.ListUsers(c.Request.Context(), *principal, services.UserFilter{
		Role:  c.Query("role"),
		Query: c.Query("q"),
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 0),
	})
	if err != nil {
		respondError(c, err, "Failed to list users")
		return
	}
	if page.Items == nil {
		page.Items = []models.User{}
	}
	c.JSON(http.StatusOK, page)
}

// Metrics handles GET /v1/admin/metrics
func (h *RestAdminHandler) Metrics(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	metrics, err := h.adminService.Metrics(c.Request.Context(), *principal)
	if err != nil {
		respondError(c, err, "Failed to compute metrics")
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// ListAudit handles GET /v1/admin/audit?limit=
func (h *RestAdminHandler) ListAudit(c *gin.Context) {
	entries, err := h.auditService.ListRecent(c.Request.Context(), queryInt(c, "limit", defaultAuditPageSize))
	if err != nil {
		respondError(c, err, "Failed to fetch audit log")
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// RegisterRoutes mounts the admin routes on a group guarded by AdminMiddleware.
func (h *RestAdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/users", h.ListUsers)
	admin.GET("/metrics", h.Metrics)
	admin.GET("/audit", h.ListAudit)
}
