package handlers

import (
	"net/http"
	"strings"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"github.com/gin-gonic/gin"
)

// RestSubmissionHandler accepts the public contact and feedback forms and lets admins read them.
type RestSubmissionHandler struct {
	submissionService services.ISubmissionService
}

// NewRestSubmissionHandler creates a new RestSubmissionHandler.
func NewRestSubmissionHandler(submissionService services.ISubmissionService) *RestSubmissionHandler {
	return &RestSubmissionHandler{submissionService: submissionService}
}

func (h *RestSubmissionHandler) submit(kind models.SubmissionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.SubmissionInput
		if !bindJSON(c, &in) {
			return
		}
		if _, err := h.submissionService.Submit(c.Request.Context(), kind, in, c.ClientIP()); err != nil {
			respondError(c, err, "Failed to save submission")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Submission received!"})
	}
}

// ListSubmissions handles GET /v1/admin/submissions?kind=&search=&sortOrder=asc|desc&page=&limit=
func (h *RestSubmissionHandler) ListSubmissions(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	page, err := h.submissionService.ListSubmissions(c.Request.Context(), *principal, models.SubmissionFilter{
		Kind:    c.Query("kind"),
		Search:  c.Query("search"),
		SortAsc: strings.EqualFold(c.Query("sortOrder"), "asc"),
		Page:    queryInt(c, "page", 1),
		Limit:   queryInt(c, "limit", 0),
	})
	if err != nil {
		respondError(c, err, "Failed to fetch submissions")
		return
	}
	c.JSON(http.StatusOK, page)
}

// DeleteSubmission handles DELETE /v1/admin/submissions/:id
func (h *RestSubmissionHandler) DeleteSubmission(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	submissionID, ok := pathID(c, "id", "submission")
	if !ok {
		return
	}
	if err := h.submissionService.DeleteSubmission(c.Request.Context(), *principal, submissionID); err != nil {
		respondError(c, err, "Failed to delete submission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

// RegisterRoutes mounts the form and admin routes.
func (h *RestSubmissionHandler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.POST("/contact", h.submit(models.SubmissionContact))
	public.POST("/feedback", h.submit(models.SubmissionFeedback))

	admin.GET("/submissions", h.ListSubmissions)
	admin.DELETE("/submissions/:id", h.DeleteSubmission)
}
