package handlers_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"breederhub/api/internal/api/handlers"
	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type messageMocks struct {
	messages      *MockMessageService
	conversations *MockConversationService
	inbox         *MockInboxService
	blocks        *MockBlockService
}

func setupMessageRouter(principal *models.Principal) (*gin.Engine, messageMocks) {
	m := messageMocks{
		messages:      new(MockMessageService),
		conversations: new(MockConversationService),
		inbox:         new(MockInboxService),
		blocks:        new(MockBlockService),
	}
	h := handlers.NewRestMessageHandler(m.messages, m.conversations, m.inbox, m.blocks)
	r := gin.New()
	h.RegisterRoutes(r.Group("/v1/messages", withPrincipal(principal)))
	return r, m
}

func TestRestMessageHandler_SendMessage(t *testing.T) {
	buyer := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(buyer)
	breederID, listingID, convID := utils.NewSixID(), utils.NewSixID(), utils.NewSixID()

	sent := &models.Message{
		Base:           models.Base{ID: utils.NewSixID()},
		ConversationID: convID,
		FromUser:       buyer.UserID,
		ToUser:         breederID,
		ListingID:      listingID,
		Subject:        models.DefaultMessageSubject,
		Body:           "Is this dog still available?",
	}
	m.messages.On("Send", mock.Anything, buyer.UserID, breederID, listingID, "Is this dog still available?").Return(sent, nil)

	w := doRequest(r, http.MethodPost, "/v1/messages", handlers.SendMessageRequest{
		RecipientID: breederID.String(),
		ListingID:   listingID.String(),
		Body:        "Is this dog still available?",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, convID, got.ConversationID)
	assert.Equal(t, breederID, got.ToUser)
	assert.False(t, got.Read)
	m.messages.AssertExpectations(t)
}

func TestRestMessageHandler_SendMessage_Errors(t *testing.T) {
	buyer := newPrincipal(models.RoleCustomer)
	breederID, listingID := utils.NewSixID(), utils.NewSixID()

	tests := []struct {
		name       string
		body       any
		serviceErr error
		wantStatus int
		wantError  string
	}{
		{
			name:       "blocked",
			body:       handlers.SendMessageRequest{RecipientID: breederID.String(), ListingID: listingID.String(), Body: "hi"},
			serviceErr: services.ErrBlocked,
			wantStatus: http.StatusForbidden,
			wantError:  "You are blocked from messaging this user",
		},
		{
			name:       "missing listing",
			body:       handlers.SendMessageRequest{RecipientID: breederID.String(), ListingID: listingID.String(), Body: "hi"},
			serviceErr: fmt.Errorf("%w: Listing not found", services.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "Listing not found",
		},
		{
			name:       "empty body",
			body:       handlers.SendMessageRequest{RecipientID: breederID.String(), ListingID: listingID.String(), Body: "hi"},
			serviceErr: fmt.Errorf("%w: Message body is required", services.ErrValidation),
			wantStatus: http.StatusBadRequest,
			wantError:  "Message body is required",
		},
		{
			name:       "store failure",
			body:       handlers.SendMessageRequest{RecipientID: breederID.String(), ListingID: listingID.String(), Body: "hi"},
			serviceErr: errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to send message",
		},
		{
			name:       "malformed recipient",
			body:       handlers.SendMessageRequest{RecipientID: "not-an-id", ListingID: listingID.String(), Body: "hi"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid recipient_id",
		},
		{
			name:       "missing fields",
			body:       map[string]string{"recipient_id": breederID.String()},
			wantStatus: http.StatusBadRequest,
			wantError:  "Required fields missing: listing_id, body",
		},
		{
			name:       "malformed json",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, m := setupMessageRouter(buyer)
			if tc.serviceErr != nil {
				m.messages.On("Send", mock.Anything, buyer.UserID, breederID, listingID, "hi").Return(nil, tc.serviceErr)
			}
			w := doRequest(r, http.MethodPost, "/v1/messages", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantError, decodeMap(t, w)["error"])
			if tc.serviceErr == nil {
				m.messages.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRestMessageHandler_RequiresPrincipal(t *testing.T) {
	r, _ := setupMessageRouter(nil)
	w := doRequest(r, http.MethodGet, "/v1/messages/unread/count", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRestMessageHandler_GetConversation(t *testing.T) {
	me := newPrincipal(models.RoleBreeder)
	r, m := setupMessageRouter(me)
	convID := utils.NewSixID()

	thread := []models.Message{
		{Base: models.Base{ID: utils.NewSixID()}, ConversationID: convID, Body: "Is this dog still available?"},
		{Base: models.Base{ID: utils.NewSixID()}, ConversationID: convID, Body: "Yes!"},
	}
	m.messages.On("ListByConversation", mock.Anything, convID, me.UserID).Return(thread, nil)

	w := doRequest(r, http.MethodGet, "/v1/messages/conversation/"+convID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var got []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Is this dog still available?", got[0].Body)
	assert.Equal(t, "Yes!", got[1].Body)
}

func TestRestMessageHandler_GetConversation_NotParticipant(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(me)
	convID := utils.NewSixID()
	m.messages.On("ListByConversation", mock.Anything, convID, me.UserID).
		Return(nil, fmt.Errorf("%w: You are not a participant of this conversation", services.ErrForbidden))

	w := doRequest(r, http.MethodGet, "/v1/messages/conversation/"+convID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You are not a participant of this conversation", decodeMap(t, w)["error"])

	w = doRequest(r, http.MethodGet, "/v1/messages/conversation/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestMessageHandler_Reply_DefaultsToOtherParticipant(t *testing.T) {
	breeder := newPrincipal(models.RoleBreeder)
	r, m := setupMessageRouter(breeder)
	buyerID, parentID, convID := utils.NewSixID(), utils.NewSixID(), utils.NewSixID()

	m.messages.On("FindByID", mock.Anything, parentID).Return(&models.Message{
		Base: models.Base{ID: parentID}, ConversationID: convID, FromUser: buyerID, ToUser: breeder.UserID,
	}, nil)
	m.conversations.On("OtherParticipant", mock.Anything, convID, breeder.UserID).Return(buyerID, nil)
	m.messages.On("Reply", mock.Anything, breeder.UserID, parentID, buyerID, "Yes!").Return(&models.Message{
		Base: models.Base{ID: utils.NewSixID()}, ConversationID: convID, FromUser: breeder.UserID, ToUser: buyerID, Body: "Yes!",
	}, nil)

	// "message" is accepted in place of "body".
	w := doRequest(r, http.MethodPost, "/v1/messages/"+parentID.String()+"/reply", map[string]string{"message": "Yes!"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, buyerID, got.ToUser)
	assert.Equal(t, breeder.UserID, got.FromUser)
	m.messages.AssertExpectations(t)
	m.conversations.AssertExpectations(t)
}

func TestRestMessageHandler_Reply_ExplicitRecipient(t *testing.T) {
	buyer := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(buyer)
	breederID, parentID := utils.NewSixID(), utils.NewSixID()

	m.messages.On("Reply", mock.Anything, buyer.UserID, parentID, breederID, "Great, when can I visit?").
		Return(&models.Message{Base: models.Base{ID: utils.NewSixID()}, ToUser: breederID}, nil)

	w := doRequest(r, http.MethodPost, "/v1/messages/"+parentID.String()+"/reply", handlers.ReplyRequest{
		Body:        "Great, when can I visit?",
		RecipientID: breederID.String(),
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	m.messages.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	m.conversations.AssertNotCalled(t, "OtherParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestMessageHandler_Reply_ParentMissing(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(me)
	parentID := utils.NewSixID()
	m.messages.On("FindByID", mock.Anything, parentID).Return(nil, fmt.Errorf("%w: Message not found", services.ErrNotFound))

	w := doRequest(r, http.MethodPost, "/v1/messages/"+parentID.String()+"/reply", map[string]string{"body": "hello?"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Message not found", decodeMap(t, w)["error"])
}

func TestRestMessageHandler_RequiredFields(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(me)
	parentID := utils.NewSixID()

	w := doRequest(r, http.MethodPost, "/v1/messages/"+parentID.String()+"/reply", map[string]string{"recipient_id": utils.NewSixID().String()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Required fields missing: body", decodeMap(t, w)["error"])

	w = doRequest(r, http.MethodPost, "/v1/messages/block", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Required fields missing: user_id", decodeMap(t, w)["error"])

	m.messages.AssertNotCalled(t, "Reply", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.blocks.AssertNotCalled(t, "Block", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestMessageHandler_MarkReadAndUnreadCount(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(me)
	convID := utils.NewSixID()

	m.messages.On("MarkRead", mock.Anything, convID, me.UserID).Return(true, nil).Once()
	m.messages.On("MarkRead", mock.Anything, convID, me.UserID).Return(false, nil).Once()
	m.inbox.On("UnreadCount", mock.Anything, me.UserID).Return(int64(2), nil)

	w := doRequest(r, http.MethodPost, "/v1/messages/conversation/"+convID.String()+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeMap(t, w)["updated"])

	w = doRequest(r, http.MethodPost, "/v1/messages/conversation/"+convID.String()+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeMap(t, w)["updated"])

	w = doRequest(r, http.MethodGet, "/v1/messages/unread/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeMap(t, w)["count"])
}

func TestRestMessageHandler_ListConversations(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(me)
	m.inbox.On("ListConversations", mock.Anything, me.UserID).Return(nil, nil)

	w := doRequest(r, http.MethodGet, "/v1/messages/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestRestMessageHandler_DeleteConversation(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupMessageRouter(me)
	convID, missingID := utils.NewSixID(), utils.NewSixID()
	m.conversations.On("Delete", mock.Anything, convID, me.UserID).Return(nil)
	m.conversations.On("Delete", mock.Anything, missingID, me.UserID).Return(fmt.Errorf("%w: Conversation not found", services.ErrNotFound))

	w := doRequest(r, http.MethodDelete, "/v1/messages/conversation/"+convID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Conversation deleted", decodeMap(t, w)["message"])

	w = doRequest(r, http.MethodDelete, "/v1/messages/conversation/"+missingID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Conversation not found", decodeMap(t, w)["error"])
}

func TestRestMessageHandler_BlockList(t *testing.T) {
	me := newPrincipal(models.RoleBreeder)
	r, m := setupMessageRouter(me)
	pest := utils.NewSixID()

	m.blocks.On("Block", mock.Anything, me.UserID, pest).Return(nil)
	m.blocks.On("Block", mock.Anything, me.UserID, me.UserID).Return(fmt.Errorf("%w: You cannot block yourself", services.ErrValidation))
	m.blocks.On("Unblock", mock.Anything, me.UserID, pest).Return(nil)
	m.blocks.On("ListBlocked", mock.Anything, me.UserID).Return([]models.BlockedUserView{
		{User: models.PublicUser{ID: pest, Username: "pest"}},
	}, nil)

	w := doRequest(r, http.MethodPost, "/v1/messages/block", handlers.BlockRequest{UserID: pest.String()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User blocked", decodeMap(t, w)["message"])

	w = doRequest(r, http.MethodPost, "/v1/messages/block", handlers.BlockRequest{UserID: me.UserID.String()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "You cannot block yourself", decodeMap(t, w)["error"])

	w = doRequest(r, http.MethodGet, "/v1/messages/blocked", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var blocked []models.BlockedUserView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &blocked))
	require.Len(t, blocked, 1)
	assert.Equal(t, "pest", blocked[0].User.Username)

	w = doRequest(r, http.MethodPost, "/v1/messages/unblock", handlers.BlockRequest{UserID: pest.String()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User unblocked", decodeMap(t, w)["message"])
	m.blocks.AssertExpectations(t)
}
