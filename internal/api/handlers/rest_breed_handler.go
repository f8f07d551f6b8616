package handlers

import (
	"net/http"
	"strings"

	"breederhub/api/internal/services"
	"github.com/gin-gonic/gin"
)

// RestBreedHandler serves the breed catalog.
type RestBreedHandler struct {
	breedService services.IBreedService
}

// NewRestBreedHandler creates a new RestBreedHandler.
func NewRestBreedHandler(breedService services.IBreedService) *RestBreedHandler {
	return &RestBreedHandler{breedService: breedService}
}

// BreedRequest is the body of both breed creation routes.
type BreedRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListBreeds handles GET /v1/breeds
func (h *RestBreedHandler) ListBreeds(c *gin.Context) {
	breeds, err := h.breedService.ListBreeds(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch breeds")
		return
	}
	c.JSON(http.StatusOK, breeds)
}

// CreateBreed handles POST /v1/breeds and POST /v1/admin/breeds
func (h *RestBreedHandler) CreateBreed(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var req BreedRequest
	if !bindJSON(c, &req) {
		return
	}
	breed, err := h.breedService.CreateBreed(c.Request.Context(), *principal, req.Name)
	if err != nil {
		respondError(c, err, "Failed to add breed")
		return
	}
	c.JSON(http.StatusCreated, breed)
}

// ListBreedsAdmin handles GET /v1/admin/breeds?search=&page=&limit=&sortOrder=asc|desc
func (h *RestBreedHandler) ListBreedsAdmin(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	page, err := h.breedService.ListBreedsAdmin(c.Request.Context(), *principal, services.BreedFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 0),
		SortDesc: strings.EqualFold(c.Query("sortOrder"), "desc"),
	})
	if err != nil {
		respondError(c, err, "Failed to list breeds")
		return
	}
	c.JSON(http.StatusOK, page)
}

// DeleteBreed handles DELETE /v1/admin/breeds/:id
func (h *RestBreedHandler) DeleteBreed(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	breedID, ok := pathID(c, "id", "breed")
	if !ok {
		return
	}
	if err := h.breedService.DeleteBreed(c.Request.Context(), *principal, breedID); err != nil {
		respondError(c, err, "Failed to delete breed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Breed deleted successfully"})
}

// RegisterRoutes mounts the catalog routes.
func (h *RestBreedHandler) RegisterRoutes(public, authed, admin *gin.RouterGroup) {
	public.GET("/breeds", h.ListBreeds)
	authed.POST("/breeds", h.CreateBreed)
	admin.GET("/breeds", h.ListBreedsAdmin)
	admin.POST("/breeds", h.CreateBreed)
	admin.DELETE("/breeds/:id", h.DeleteBreed)
}
