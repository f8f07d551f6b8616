package handlers

import (
	"log"
	"net/http"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/storage"
	"github.com/gin-gonic/gin"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService    services.IUserService
	listingService services.IListingService
	storageService storage.IS3Storage
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService, listingService services.IListingService, storageService storage.IS3Storage) *RestUserHandler {
	return &RestUserHandler{
		userService:    userService,
		listingService: listingService,
		storageService: storageService,
	}
}

// PublicProfile is the data returned for another user's profile.
type PublicProfile struct {
	models.PublicUser
	ListingCount int `json:"listing_count"`
}

// AccountView is the caller's own account.
type AccountView struct {
	*models.User
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// GetMe handles GET /v1/user/me
func (h *RestUserHandler) GetMe(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.userService.FindByID(ctx, principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}

	view := AccountView{User: user}
	if user.ProfileImageKey != "" {
		if view.ProfileImageURL, err = h.storageService.GeneratePresignedGetURL(ctx, user.ProfileImageKey); err != nil {
			log.Printf("WARN: could not sign profile image of user %s: %v", user.ID.String(), err)
		}
	}
	c.JSON(http.StatusOK, view)
}

// GetUserByID handles GET /v1/user/:id. Locked accounts look like missing ones.
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userID, ok := pathID(c, "id", "user")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.userService.FindByID(ctx, userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	if user.Locked {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	profile := PublicProfile{PublicUser: user.Public()}
	switch user.Role {
	case models.RoleBreeder, models.RoleAdmin:
		listings, err := h.listingService.FindListingsByBreeder(ctx, user.ID)
		if err != nil {
			respondError(c, err, "Failed to retrieve user")
			return
		}
		for i := range listings {
			if listings[i].PubliclyVisible() {
				profile.ListingCount++
			}
		}
	case models.RoleCustomer:
	}
	c.JSON(http.StatusOK, profile)
}

// ListBreeders handles GET /v1/breeders
func (h *RestUserHandler) ListBreeders(c *gin.Context) {
	breeders, err := h.userService.ListBreeders(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch breeders")
		return
	}
	if breeders == nil {
		breeders = []models.PublicUser{}
	}
	c.JSON(http.StatusOK, breeders)
}

// RegisterRoutes mounts the user routes.
func (h *RestUserHandler) RegisterRoutes(public, authed *gin.RouterGroup) {
	authed.GET("/user/me", h.GetMe)
	public.GET("/user/:id", h.GetUserByID)
	public.GET("/breeders", h.ListBreeders)
}
