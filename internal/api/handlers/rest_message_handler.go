package handlers

import (
	"context"
	"net/http"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/utils"
	"github.com/gin-gonic/gin"
)

// RestMessageHandler serves /v1/messages. Every route requires authentication.
type RestMessageHandler struct {
	messageService      services.IMessageService
	conversationService services.IConversationService
	inboxService        services.IInboxService
	blockService        services.IBlockService
}

// NewRestMessageHandler creates a new RestMessageHandler.
func NewRestMessageHandler(
	messageService services.IMessageService,
	conversationService services.IConversationService,
	inboxService services.IInboxService,
	blockService services.IBlockService,
) *RestMessageHandler {
	return &RestMessageHandler{
		messageService:      messageService,
		conversationService: conversationService,
		inboxService:        inboxService,
		blockService:        blockService,
	}
}

// SendMessageRequest starts or continues the conversation about a listing.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	ListingID   string `json:"listing_id" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

// ReplyRequest answers a message. Message is accepted as an alias of Body.
type ReplyRequest struct {
	Body        string `json:"body" binding:"required_without=Message"`
	Message     string `json:"message"`
	RecipientID string `json:"recipient_id"`
}

// BlockRequest names the user to block or unblock.
type BlockRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// SendMessage handles POST /v1/messages
func (h *RestMessageHandler) SendMessage(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	recipientID, err := parseOptionalID(req.RecipientID, "recipient_id")
	if err != nil {
		respondError(c, err, "")
		return
	}
	listingID, err := parseOptionalID(req.ListingID, "listing_id")
	if err != nil {
		respondError(c, err, "")
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), principal.UserID, recipientID, listingID, req.Body)
	if err != nil {
		respondError(c, err, "Failed to send message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListConversations handles GET /v1/messages/conversations
func (h *RestMessageHandler) ListConversations(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	previews, err := h.inboxService.ListConversations(c.Request.Context(), principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to fetch conversations")
		return
	}
	if previews == nil {
		previews = []models.ConversationPreview{}
	}
	c.JSON(http.StatusOK, previews)
}

// GetConversation handles GET /v1/messages/conversation/:id
func (h *RestMessageHandler) GetConversation(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "id", "conversation")
	if !ok {
		return
	}

	messages, err := h.messageService.ListByConversation(c.Request.Context(), conversationID, principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to fetch conversation")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, messages)
}

// Reply handles POST /v1/messages/:id/reply. Without recipient_id the reply goes to the other
// participant of the parent message's conversation.
func (h *RestMessageHandler) Reply(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	parentID, ok := pathID(c, "id", "message")
	if !ok {
		return
	}
	var req ReplyRequest
	if !bindJSON(c, &req) {
		return
	}
	text := req.Body
	if text == "" {
		text = req.Message
	}

	ctx := c.Request.Context()
	recipientID, err := parseOptionalID(req.RecipientID, "recipient_id")
	if err != nil {
		respondError(c, err, "")
		return
	}
	if recipientID.IsZero() {
		parent, err := h.messageService.FindByID(ctx, parentID)
		if err != nil {
			respondError(c, err, "Failed to send reply")
			return
		}
		if recipientID, err = h.conversationService.OtherParticipant(ctx, parent.ConversationID, principal.UserID); err != nil {
			respondError(c, err, "Failed to send reply")
			return
		}
	}

	msg, err := h.messageService.Reply(ctx, principal.UserID, parentID, recipientID, text)
	if err != nil {
		respondError(c, err, "Failed to send reply")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /v1/messages/conversation/:id/read
func (h *RestMessageHandler) MarkRead(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "id", "conversation")
	if !ok {
		return
	}
	updated, err := h.messageService.MarkRead(c.Request.Context(), conversationID, principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to mark conversation as read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// UnreadCount handles GET /v1/messages/unread/count
func (h *RestMessageHandler) UnreadCount(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	count, err := h.inboxService.UnreadCount(c.Request.Context(), principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to count unread messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// DeleteConversation handles DELETE /v1/messages/conversation/:id
func (h *RestMessageHandler) DeleteConversation(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "id", "conversation")
	if !ok {
		return
	}
	if err := h.conversationService.Delete(c.Request.Context(), conversationID, principal.UserID); err != nil {
		respondError(c, err, "Failed to delete conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// ListBlocked handles GET /v1/messages/blocked
func (h *RestMessageHandler) ListBlocked(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	blocked, err := h.blockService.ListBlocked(c.Request.Context(), principal.UserID)
	if err != nil {
		respondError(c, err, "Failed to fetch blocked users")
		return
	}
	if blocked == nil {
		blocked = []models.BlockedUserView{}
	}
	c.JSON(http.StatusOK, blocked)
}

// Block handles POST /v1/messages/block
func (h *RestMessageHandler) Block(c *gin.Context) {
	h.changeBlock(c, h.blockService.Block, "User blocked", "Failed to block user")
}

// Unblock handles POST /v1/messages/unblock
func (h *RestMessageHandler) Unblock(c *gin.Context) {
	h.changeBlock(c, h.blockService.Unblock, "User unblocked", "Failed to unblock user")
}

func (h *RestMessageHandler) changeBlock(c *gin.Context, apply func(ctx context.Context, blockerID, blockedID utils.SixID) error, done, fallback string) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var req BlockRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, err := parseOptionalID(req.UserID, "user_id")
	if err != nil {
		respondError(c, err, "")
		return
	}
	if err := apply(c.Request.Context(), principal.UserID, userID); err != nil {
		respondError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": done})
}

// RegisterRoutes mounts the messaging routes on an authenticated group.
func (h *RestMessageHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("", h.SendMessage)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversation/:id", h.GetConversation)
	g.POST("/conversation/:id/read", h.MarkRead)
	g.DELETE("/conversation/:id", h.DeleteConversation)
	g.POST("/:id/reply", h.Reply)
	g.GET("/unread/count", h.UnreadCount)
	g.GET("/blocked", h.ListBlocked)
	g.POST("/block", h.Block)
	g.POST("/unblock", h.Unblock)
}
