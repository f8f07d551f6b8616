package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IMessageService stores and reads messages.
type IMessageService interface {
	Send(ctx context.Context, fromID, toID, listingID utils.SixID, body string) (*models.Message, error)
	Create(ctx context.Context, fromID, toID, conversationID utils.SixID, body string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID, requesterID utils.SixID) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID utils.SixID) (bool, error)
	Reply(ctx context.Context, replierID, parentMessageID, recipientID utils.SixID, body string) (*models.Message, error)
	FindByID(ctx context.Context, messageID utils.SixID) (*models.Message, error)
}

// messageService implements IMessageService.
type messageService struct {
	db            *mongo.Database
	cfg           *config.Config
	users         IUserService
	listings      IListingService
	blocks        IBlockService
	conversations IConversationService
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *mongo.Database, cfg *config.Config, users IUserService, listings IListingService, blocks IBlockService, conversations IConversationService) IMessageService {
	return &messageService{
		db:            db,
		cfg:           cfg,
		users:         users,
		listings:      listings,
		blocks:        blocks,
		conversations: conversations,
	}
}

var lastSeq atomic.Int64

// nextSeq returns a strictly increasing sequence number, seeded from the clock so values
// also increase across restarts.
func nextSeq() int64 {
	for {
		prev := lastSeq.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

func (s *messageService) cleanBody(body string) (string, error) {
	clean := utils.SanitizeText(body)
	if clean == "" {
		return "", validationf("Message body is required")
	}
	if limit := s.cfg.MessageMaxLength; limit > 0 && utf8.RuneCountInString(clean) > limit {
		return "", validationf("Message body exceeds %d characters", limit)
	}
	return clean, nil
}

// Send starts or continues the conversation between fromID and toID about listingID.
func (s *messageService) Send(ctx context.Context, fromID, toID, listingID utils.SixID, body string) (*models.Message, error) {
	if toID.IsZero() {
		return nil, validationf("recipient_id is required")
	}
	if listingID.IsZero() {
		return nil, validationf("listing_id is required")
	}
	if fromID == toID {
		return nil, validationf("You cannot message yourself")
	}
	clean, err := s.cleanBody(body)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByID(ctx, toID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundf("Recipient not found")
		}
		return nil, err
	}
	if _, err := s.listings.FindListingByID(ctx, listingID); err != nil {
		return nil, err
	}
	if err := s.ensureNotBlocked(ctx, fromID, toID); err != nil {
		return nil, err
	}

	conv, err := s.conversations.FindOrCreate(ctx, fromID, toID, listingID)
	if err != nil {
		return nil, err
	}
	msg, err := s.insert(ctx, conv, fromID, toID, models.DefaultMessageSubject, clean)
	if err != nil {
		return nil, err
	}
	messagesSentTotal.WithLabelValues("send").Inc()
	return msg, nil
}

// Create adds a message to an existing conversation. Both users must be its participants.
func (s *messageService) Create(ctx context.Context, fromID, toID, conversationID utils.SixID, body string) (*models.Message, error) {
	conv, err := s.conversations.Get(ctx, conversationID, fromID)
	if err != nil {
		return nil, err
	}
	msg, err := s.createIn(ctx, conv, fromID, toID, "", body)
	if err != nil {
		return nil, err
	}
	messagesSentTotal.WithLabelValues("create").Inc()
	return msg, nil
}

// Reply answers parentMessageID. The recipient is explicit and has to be the replier's
// counterpart in the parent's conversation.
func (s *messageService) Reply(ctx context.Context, replierID, parentMessageID, recipientID utils.SixID, body string) (*models.Message, error) {
	parent, err := s.FindByID(ctx, parentMessageID)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.Get(ctx, parent.ConversationID, replierID)
	if err != nil {
		return nil, err
	}
	msg, err := s.createIn(ctx, conv, replierID, recipientID, replySubject(parent.Subject), body)
	if err != nil {
		return nil, err
	}
	messagesSentTotal.WithLabelValues("reply").Inc()
	return msg, nil
}

func replySubject(subject string) string {
	if subject == "" || strings.HasPrefix(subject, "Re: ") {
		return subject
	}
	return "Re: " + subject
}

// createIn validates the pair against conv and stores the message.
func (s *messageService) createIn(ctx context.Context, conv *models.Conversation, fromID, toID utils.SixID, subject, body string) (*models.Message, error) {
	if toID.IsZero() {
		return nil, validationf("recipient_id is required")
	}
	other, ok := conv.OtherParticipant(fromID)
	if !ok {
		return nil, forbiddenf("You are not a participant of this conversation")
	}
	if toID != other {
		return nil, validationf("Recipient must be the other participant of the conversation")
	}
	clean, err := s.cleanBody(body)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotBlocked(ctx, fromID, toID); err != nil {
		return nil, err
	}
	return s.insert(ctx, conv, fromID, toID, subject, clean)
}

func (s *messageService) ensureNotBlocked(ctx context.Context, fromID, toID utils.SixID) error {
	allowed, err := s.blocks.CanMessage(ctx, fromID, toID)
	if err != nil {
		return err
	}
	if !allowed {
		messagesBlockedTotal.Inc()
		log.Printf("Message from %s to %s rejected: sender is blocked", fromID.String(), toID.String())
		return ErrBlocked
	}
	return nil
}

// insert stores the message, then advances the conversation's last-message pointer. The
// pointer is advisory: failing to move it is logged and the message still counts as sent.
func (s *messageService) insert(ctx context.Context, conv *models.Conversation, fromID, toID utils.SixID, subject, body string) (*models.Message, error) {
	collection := s.db.Collection(db.MessagesCollection)
	createdAt := time.Now().UTC().Truncate(time.Millisecond)

	var msg *models.Message
	err := db.Try(func() error {
		msg = &models.Message{
			Base:           models.Base{ID: utils.NewSixID()},
			ConversationID: conv.ID,
			FromUser:       fromID,
			ToUser:         toID,
			ListingID:      conv.ListingID,
			Subject:        subject,
			Body:           body,
			Read:           false,
			CreatedAt:      createdAt,
			Seq:            nextSeq(),
		}
		_, insertErr := collection.InsertOne(ctx, msg)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert message in conversation %s: %w", conv.ID.String(), err)
	}

	if err := s.conversations.SetLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		log.Printf("WARN: message %s stored but conversation %s pointer not updated: %v", msg.ID.String(), conv.ID.String(), err)
	}
	return msg, nil
}

// FindByID returns a single message or ErrNotFound.
func (s *messageService) FindByID(ctx context.Context, messageID utils.SixID) (*models.Message, error) {
	var msg models.Message
	err := s.db.Collection(db.MessagesCollection).FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "Message")
		}
		return nil, fmt.Errorf("error finding message %s: %w", messageID.String(), err)
	}
	return &msg, nil
}

// ListByConversation returns the whole thread in the order it was written.
func (s *messageService) ListByConversation(ctx context.Context, conversationID, requesterID utils.SixID) ([]models.Message, error) {
	if _, err := s.conversations.Get(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "seq", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := s.db.Collection(db.MessagesCollection).Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing messages of conversation %s: %w", conversationID.String(), err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("error decoding messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags every unread message addressed to readerID in the conversation as read.
// updated reports whether anything changed, so a repeated call returns false.
func (s *messageService) MarkRead(ctx context.Context, conversationID, readerID utils.SixID) (bool, error) {
	if _, err := s.conversations.Get(ctx, conversationID, readerID); err != nil {
		return false, err
	}
	res, err := s.db.Collection(db.MessagesCollection).UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "to_user": readerID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return false, fmt.Errorf("failed to mark conversation %s read for %s: %w", conversationID.String(), readerID.String(), err)
	}
	return res.ModifiedCount > 0, nil
}
