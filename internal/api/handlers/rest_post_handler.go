package handlers

import (
	"net/http"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"github.com/gin-gonic/gin"
)

const maxPublicPostPageSize = 50

// RestPostHandler serves the posts. Reading is public; writing is for admins.
type RestPostHandler struct {
	postService services.IPostService
}

// NewRestPostHandler creates a new RestPostHandler.
func NewRestPostHandler(postService services.IPostService) *RestPostHandler {
	return &RestPostHandler{postService: postService}
}

func postFilter(c *gin.Context) models.PostFilter {
	return models.PostFilter{
		Tag:   c.Query("tag"),
		Query: c.Query("q"),
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 0),
	}
}

// ListPosts handles GET /v1/posts?tag=&q=&page=&limit=
func (h *RestPostHandler) ListPosts(c *gin.Context) {
	filter := postFilter(c)
	if filter.Limit > maxPublicPostPageSize {
		filter.Limit = maxPublicPostPageSize
	}
	page, err := h.postService.ListPublishedPosts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch posts")
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetPost handles GET /v1/posts/:slug
func (h *RestPostHandler) GetPost(c *gin.Context) {
	post, err := h.postService.FindPublishedPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Failed to fetch post")
		return
	}
	c.JSON(http.StatusOK, post)
}

// ListAllPosts handles GET /v1/admin/posts, drafts included.
func (h *RestPostHandler) ListAllPosts(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	page, err := h.postService.ListAllPosts(c.Request.Context(), *principal, postFilter(c))
	if err != nil {
		respondError(c, err, "Failed to fetch posts")
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetAnyPost handles GET /v1/admin/posts/:slug
func (h *RestPostHandler) GetAnyPost(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	post, err := h.postService.FindPost(c.Request.Context(), *principal, c.Param("slug"))
	if err != nil {
		respondError(c, err, "Failed to fetch post")
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost handles POST /v1/admin/posts
func (h *RestPostHandler) CreatePost(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var in models.PostInput
	if !bindJSON(c, &in) {
		return
	}
	post, err := h.postService.CreatePost(c.Request.Context(), *principal, in)
	if err != nil {
		respondError(c, err, "Failed to create post")
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdatePost handles PUT /v1/admin/posts/:slug
func (h *RestPostHandler) UpdatePost(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var in models.PostInput
	if !bindJSON(c, &in) {
		return
	}
	post, err := h.postService.UpdatePost(c.Request.Context(), *principal, c.Param("slug"), in)
	if err != nil {
		respondError(c, err, "Failed to update post")
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost handles DELETE /v1/admin/posts/:slug
func (h *RestPostHandler) DeletePost(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	if err := h.postService.DeletePost(c.Request.Context(), *principal, c.Param("slug")); err != nil {
		respondError(c, err, "Failed to delete post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// RegisterRoutes mounts the public and admin post routes.
func (h *RestPostHandler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.GET("/posts", h.ListPosts)
	public.GET("/posts/:slug", h.GetPost)

	admin.GET("/posts", h.ListAllPosts)
	admin.GET("/posts/:slug", h.GetAnyPost)
	admin.POST("/posts", h.CreatePost)
	admin.PUT("/posts/:slug", h.UpdatePost)
	admin.DELETE("/posts/:slug", h.DeletePost)
}
