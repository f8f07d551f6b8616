package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IConversationService stores the conversation threads between two users about a listing.
type IConversationService interface {
	FindOrCreate(ctx context.Context, userA, userB, listingID utils.SixID) (*models.Conversation, error)
	Get(ctx context.Context, conversationID, requesterID utils.SixID) (*models.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID, messageID utils.SixID, at time.Time) error
	ListForUser(ctx context.Context, userID utils.SixID) ([]models.Conversation, error)
	Delete(ctx context.Context, conversationID, requesterID utils.SixID) error
	OtherParticipant(ctx context.Context, conversationID, userID utils.SixID) (utils.SixID, error)
}

// conversationService implements IConversationService.
type conversationService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewConversationService creates a new ConversationService.
func NewConversationService(db *mongo.Database, cfg *config.Config) IConversationService {
	return &conversationService{db: db, cfg: cfg}
}

// FindOrCreate returns the single conversation for the unordered pair {userA, userB} and the
// listing, creating it if needed. Concurrent callers race on the unique index; the loser's
// duplicate key error is retried and then matches the winner's document.
func (s *conversationService) FindOrCreate(ctx context.Context, userA, userB, listingID utils.SixID) (*models.Conversation, error) {
	if userA.IsZero() || userB.IsZero() || listingID.IsZero() {
		return nil, validationf("Participants and listing are required")
	}
	if userA == userB {
		return nil, validationf("A conversation needs two different users")
	}

	participants, key := models.SortedPair(userA, userB)
	filter := bson.M{"participant_key": key, "listing_id": listingID}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv models.Conversation
	err := db.Try(func() error {
		now := time.Now().UTC()
		update := bson.M{"$setOnInsert": bson.M{
			"_id":             utils.NewSixID(),
			"participants":    participants,
			"participant_key": key,
			"listing_id":      listingID,
			"created_at":      now,
			"updated_at":      now,
		}}
		return s.db.Collection(db.ConversationsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find or create conversation %s on listing %s: %w", key, listingID.String(), err)
	}
	return &conv, nil
}

// Get returns the conversation if requesterID takes part in it.
func (s *conversationService) Get(ctx context.Context, conversationID, requesterID utils.SixID) (*models.Conversation, error) {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, forbiddenf("You are not a participant of this conversation")
	}
	return conv, nil
}

func (s *conversationService) load(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Collection(db.ConversationsCollection).FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "Conversation")
		}
		return nil, fmt.Errorf("error finding conversation %s: %w", conversationID.String(), err)
	}
	return &conv, nil
}

// SetLastMessage moves the last-message pointer to messageID unless the conversation already
// points at a newer message.
func (s *conversationService) SetLastMessage(ctx context.Context, conversationID, messageID utils.SixID, at time.Time) error {
	filter := bson.M{
		"_id": conversationID,
		"$or": bson.A{
			bson.M{"last_message_at": bson.M{"$exists": false}},
			bson.M{"last_message_at": nil},
			bson.M{"last_message_at": bson.M{"$lte": at}},
		},
	}
	update := bson.M{"$set": bson.M{
		"last_message_id": messageID,
		"last_message_at": at,
		"updated_at":      time.Now().UTC(),
	}}
	res, err := s.db.Collection(db.ConversationsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set last message of conversation %s: %w", conversationID.String(), err)
	}
	if res.MatchedCount == 0 {
		log.Printf("DEBUG: last message of conversation %s not moved back to %s", conversationID.String(), messageID.String())
	}
	return nil
}

// ListForUser returns every conversation of userID, most recently active first.
func (s *conversationService) ListForUser(ctx context.Context, userID utils.SixID) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "last_message_at", Value: -1},
		{Key: "updated_at", Value: -1},
	})
	cursor, err := s.db.Collection(db.ConversationsCollection).Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations of %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	conversations := []models.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("error decoding conversations: %w", err)
	}
	return conversations, nil
}

// Delete removes the conversation and all of its messages. Messages go first so a failure
// never leaves messages without their conversation.
func (s *conversationService) Delete(ctx context.Context, conversationID, requesterID utils.SixID) error {
	if _, err := s.Get(ctx, conversationID, requesterID); err != nil {
		return err
	}

	msgRes, err := s.db.Collection(db.MessagesCollection).DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return fmt.Errorf("failed to delete messages of conversation %s: %w", conversationID.String(), err)
	}
	if _, err := s.db.Collection(db.ConversationsCollection).DeleteOne(ctx, bson.M{"_id": conversationID}); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID.String(), err)
	}

	log.Printf("Conversation %s deleted by %s with %d messages", conversationID.String(), requesterID.String(), msgRes.DeletedCount)
	return nil
}

// OtherParticipant returns the participant of the conversation that is not userID.
func (s *conversationService) OtherParticipant(ctx context.Context, conversationID, userID utils.SixID) (utils.SixID, error) {
	conv, err := s.Get(ctx, conversationID, userID)
	if err != nil {
		return utils.SixID{}, err
	}
	other, _ := conv.OtherParticipant(userID)
	return other, nil
}
