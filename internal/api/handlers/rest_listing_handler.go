package handlers

import (
	"context"
	"log"
	"net/http"

	"breederhub/api/internal/api/middleware"
	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/storage"
	"github.com/gin-gonic/gin"
)

// RestListingHandler handles REST requests for dog listings and favorites.
type RestListingHandler struct {
	listingService services.IListingService
	userService    services.IUserService
	storageService storage.IS3Storage
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService, userService services.IUserService, storageService storage.IS3Storage) *RestListingHandler {
	return &RestListingHandler{
		listingService: listingService,
		userService:    userService,
		storageService: storageService,
	}
}

// ListingStatusRequest is the body of POST /v1/dogs/:id/status.
type ListingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// signImages fills ImageURL with a short-lived signed URL. Signing failures leave it empty.
func (h *RestListingHandler) signImages(ctx context.Context, listings ...*models.Listing) {
	for _, l := range listings {
		if l == nil || l.ImageKey == "" {
			continue
		}
		url, err := h.storageService.GeneratePresignedGetURL(ctx, l.ImageKey)
		if err != nil {
			log.Printf("WARN: could not sign image of listing %s: %v", l.ID.String(), err)
			continue
		}
		l.ImageURL = url
	}
}

func (h *RestListingHandler) signPage(ctx context.Context, items []models.Listing) []models.Listing {
	if items == nil {
		return []models.Listing{}
	}
	for i := range items {
		h.signImages(ctx, &items[i])
	}
	return items
}

// SearchListings handles GET /v1/dogs?breed_id=&breed=&q=&page=&limit=
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	ctx := c.Request.Context()
	breedID, err := parseOptionalID(c.Query("breed_id"), "breed_id")
	if err != nil {
		respondError(c, err, "")
		return
	}
	page, err := h.listingService.SearchListings(ctx, models.ListingSearch{
		BreedID: breedID,
		Breed:   c.Query("breed"),
		Query:   c.Query("q"),
		Page:    queryInt(c, "page", 1),
		Limit:   queryInt(c, "limit", 0),
	})
	if err != nil {
		respondError(c, err, "Failed to search listings")
		return
	}
	page.Items = h.signPage(ctx, page.Items)
	c.JSON(http.StatusOK, page)
}

// GetListing handles GET /v1/dogs/:id, where :id is an ID or a slug.
func (h *RestListingHandler) GetListing(c *gin.Context) {
	viewer, _ := middleware.CurrentPrincipal(c)
	listing, err := h.listingService.FindVisibleListing(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	h.signImages(c.Request.Context(), listing)
	c.JSON(http.StatusOK, listing)
}

// MyListings handles GET /v1/dogs/mine
func (h *RestListingHandler) MyListings(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	listings, err := h.listingService.FindListingsByBreeder(c.Request.Context(), principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to fetch listings")
		return
	}
	c.JSON(http.StatusOK, h.signPage(c.Request.Context(), listings))
}

// CreateListing handles POST /v1/dogs
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var in models.ListingInput
	if !bindJSON(c, &in) {
		return
	}
	listing, err := h.listingService.CreateListing(c.Request.Context(), *principal, in)
	if err != nil {
		respondError(c, err, "Failed to create listing")
		return
	}
	h.signImages(c.Request.Context(), listing)
	c.JSON(http.StatusCreated, listing)
}

// UpdateListing handles PUT /v1/dogs/:id
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c, "id", "listing")
	if !ok {
		return
	}
	var in models.ListingInput
	if !bindJSON(c, &in) {
		return
	}
	listing, err := h.listingService.UpdateListing(c.Request.Context(), *principal, listingID, in)
	if err != nil {
		respondError(c, err, "Failed to update listing")
		return
	}
	h.signImages(c.Request.Context(), listing)
	c.JSON(http.StatusOK, listing)
}

// SetListingStatus handles POST /v1/dogs/:id/status
func (h *RestListingHandler) SetListingStatus(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c, "id", "listing")
	if !ok {
		return
	}
	var req ListingStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listingService.SetListingStatus(c.Request.Context(), *principal, listingID, models.ListingStatus(req.Status))
	if err != nil {
		respondError(c, err, "Failed to update listing status")
		return
	}
	h.signImages(c.Request.Context(), listing)
	c.JSON(http.StatusOK, listing)
}

// DeleteListing handles DELETE /v1/dogs/:id
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c, "id", "listing")
	if !ok {
		return
	}
	if err := h.listingService.DeleteListing(c.Request.Context(), *principal, listingID); err != nil {
		respondError(c, err, "Failed to delete listing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dog deleted"})
}

// ListFavorites handles GET /v1/favorites. Listings that were deleted or hidden since they were
// saved are left out.
func (h *RestListingHandler) ListFavorites(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.userService.FindByID(ctx, principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to fetch favorites")
		return
	}
	byID, err := h.listingService.FindListingsByIDs(ctx, user.Favorites)
	if err != nil {
		respondError(c, err, "Failed to fetch favorites")
		return
	}

	favorites := make([]models.Listing, 0, len(user.Favorites))
	for _, id := range user.Favorites {
		l, found := byID[id]
		if !found || !(l.PubliclyVisible() || principal.Role.CanManageListing(principal.UserID, l.BreederID)) {
			continue
		}
		favorites = append(favorites, *l)
	}
	c.JSON(http.StatusOK, h.signPage(ctx, favorites))
}

// AddFavorite handles POST /v1/favorites/:id
func (h *RestListingHandler) AddFavorite(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c, "id", "listing")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.listingService.FindVisibleListing(ctx, listingID.String(), principal); err != nil {
		respondError(c, err, "Failed to add favorite")
		return
	}
	if err := h.userService.AddFavorite(ctx, principal.UserID, listingID); err != nil {
		respondError(c, err, "Failed to add favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Added to favorites"})
}

// RemoveFavorite handles DELETE /v1/favorites/:id
func (h *RestListingHandler) RemoveFavorite(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c, "id", "listing")
	if !ok {
		return
	}
	if err := h.userService.RemoveFavorite(c.Request.Context(), principal.UserID, listingID); err != nil {
		respondError(c, err, "Failed to remove favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from favorites"})
}

// RegisterRoutes mounts the public and authenticated listing routes.
func (h *RestListingHandler) RegisterRoutes(public, authed *gin.RouterGroup, optionalAuth gin.HandlerFunc) {
	public.GET("/dogs", h.SearchListings)
	public.GET("/dogs/:id", optionalAuth, h.GetListing)

	authed.GET("/dogs/mine", h.MyListings)
	authed.POST("/dogs", h.CreateListing)
	authed.PUT("/dogs/:id", h.UpdateListing)
	authed.POST("/dogs/:id/status", h.SetListingStatus)
	authed.DELETE("/dogs/:id", h.DeleteListing)
	authed.GET("/favorites", h.ListFavorites)
	authed.POST("/favorites/:id", h.AddFavorite)
	authed.DELETE("/favorites/:id", h.RemoveFavorite)
}
