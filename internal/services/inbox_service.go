package services

import (
	"context"
	"fmt"
	"log"

	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// IInboxService summarises a user's conversations.
type IInboxService interface {
	UnreadCount(ctx context.Context, userID utils.SixID) (int64, error)
	ListConversations(ctx context.Context, userID utils.SixID) ([]models.ConversationPreview, error)
}

// inboxService implements IInboxService.
type inboxService struct {
	db            *mongo.Database
	cfg           *config.Config
	users         IUserService
	listings      IListingService
	conversations IConversationService
}

// NewInboxService creates a new InboxService.
func NewInboxService(db *mongo.Database, cfg *config.Config, users IUserService, listings IListingService, conversations IConversationService) IInboxService {
	return &inboxService{db: db, cfg: cfg, users: users, listings: listings, conversations: conversations}
}

// UnreadCount counts unread messages addressed to userID. It is computed on every call.
func (s *inboxService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	n, err := s.db.Collection(db.MessagesCollection).CountDocuments(ctx, bson.M{"to_user": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages of %s: %w", userID.String(), err)
	}
	return n, nil
}

// ListConversations returns one preview per conversation of userID, most recently active first.
func (s *inboxService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.ConversationPreview, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	previews := make([]models.ConversationPreview, 0, len(conversations))
	if len(conversations) == 0 {
		return previews, nil
	}

	conversationIDs := make([]utils.SixID, 0, len(conversations))
	otherIDs := make([]utils.SixID, 0, len(conversations))
	listingIDs := make([]utils.SixID, 0, len(conversations))
	lastMessageIDs := make([]utils.SixID, 0, len(conversations))
	for i := range conversations {
		c := &conversations[i]
		conversationIDs = append(conversationIDs, c.ID)
		if other, ok := c.OtherParticipant(userID); ok {
			otherIDs = append(otherIDs, other)
		}
		listingIDs = append(listingIDs, c.ListingID)
		if c.LastMessageID != nil {
			lastMessageIDs = append(lastMessageIDs, *c.LastMessageID)
		}
	}

	users, err := s.users.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	listings, err := s.listings.FindListingsByIDs(ctx, listingIDs)
	if err != nil {
		return nil, err
	}
	lastMessages, err := s.messagesByID(ctx, lastMessageIDs)
	if err != nil {
		return nil, err
	}
	unread, err := s.unreadByConversation(ctx, userID, conversationIDs)
	if err != nil {
		return nil, err
	}

	for i := range conversations {
		c := &conversations[i]
		other, _ := c.OtherParticipant(userID)
		u, ok := users[other]
		if !ok {
			log.Printf("WARN: conversation %s refers to missing user %s", c.ID.String(), other.String())
			continue
		}

		preview := models.ConversationPreview{
			ID:               c.ID,
			OtherParticipant: u.Public(),
			UnreadCount:      unread[c.ID],
			UpdatedAt:        c.UpdatedAt,
		}
		if l, ok := listings[c.ListingID]; ok {
			preview.Listing = &models.ListingSummary{ID: l.ID, Name: l.Name, Slug: l.Slug}
		}
		if c.LastMessageID != nil {
			if m, ok := lastMessages[*c.LastMessageID]; ok {
				preview.LastMessage = &models.MessageSnippet{
					ID:        m.ID,
					FromUser:  m.FromUser,
					Body:      utils.Snippet(m.Body, s.cfg.MessageSnippetLength),
					CreatedAt: m.CreatedAt,
				}
			}
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

func (s *inboxService) messagesByID(ctx context.Context, messageIDs []utils.SixID) (map[utils.SixID]*models.Message, error) {
	result := make(map[utils.SixID]*models.Message, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	cursor, err := s.db.Collection(db.MessagesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": messageIDs}})
	if err != nil {
		return nil, fmt.Errorf("error loading last messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("error decoding last messages: %w", err)
	}
	for i := range messages {
		result[messages[i].ID] = &messages[i]
	}
	return result, nil
}

// unreadByConversation counts unread messages to userID per conversation in one aggregation.
func (s *inboxService) unreadByConversation(ctx context.Context, userID utils.SixID, conversationIDs []utils.SixID) (map[utils.SixID]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"to_user":         userID,
			"read":            false,
			"conversation_id": bson.M{"$in": conversationIDs},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$conversation_id",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := s.db.Collection(db.MessagesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate unread counts of %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ConversationID utils.SixID `bson:"_id"`
		Count          int64       `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode unread counts: %w", err)
	}
	counts := make(map[utils.SixID]int64, len(rows))
	for _, r := range rows {
		counts[r.ConversationID] = r.Count
	}
	return counts, nil
}
