package services

import (
	"context"
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

// IBlockService maintains who may start messages to whom.
type IBlockService interface {
	CanMessage(ctx context.Context, senderID, recipientID utils.SixID) (bool, error)
	Block(ctx context.Context, blockerID, blockedID utils.SixID) error
	Unblock(ctx context.Context, blockerID, blockedID utils.SixID) error
	ListBlocked(ctx context.Context, blockerID utils.SixID) ([]models.BlockedUserView, error)
}

// blockService implements IBlockService.
type blockService struct {
	db    *mongo.Database
	cfg   *config.Config
	users IUserService
}

// NewBlockService creates a new BlockService.
func NewBlockService(db *mongo.Database, cfg *config.Config, users IUserService) IBlockService {
	return &blockService{db: db, cfg: cfg, users: users}
}

// CanMessage is false only when the recipient has blocked the sender.
func (s *blockService) CanMessage(ctx context.Context, senderID, recipientID utils.SixID) (bool, error) {
	n, err := s.db.Collection(db.BlockedUsersCollection).CountDocuments(ctx,
		bson.M{"blocker": recipientID, "blocked": senderID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("error checking block %s -> %s: %w", recipientID.String(), senderID.String(), err)
	}
	return n == 0, nil
}

// Block records that blockerID no longer accepts new messages from blockedID. Repeating it
// changes nothing.
func (s *blockService) Block(ctx context.Context, blockerID, blockedID utils.SixID) error {
	if blockedID.IsZero() {
		return validationf("user_id is required")
	}
	if blockerID == blockedID {
		return validationf("You cannot block yourself")
	}
	if _, err := s.users.FindByID(ctx, blockedID); err != nil {
		return err
	}

	filter := bson.M{"blocker": blockerID, "blocked": blockedID}
	opts := options.Update().SetUpsert(true)
	err := db.Try(func() error {
		update := bson.M{"$setOnInsert": bson.M{
			"_id":        utils.NewSixID(),
			"blocker":    blockerID,
			"blocked":    blockedID,
			"created_at": time.Now().UTC(),
		}}
		_, err := s.db.Collection(db.BlockedUsersCollection).UpdateOne(ctx, filter, update, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to block %s for %s: %w", blockedID.String(), blockerID.String(), err)
	}
	log.Printf("User %s blocked %s", blockerID.String(), blockedID.String())
	return nil
}

// Unblock removes the relation if present.
func (s *blockService) Unblock(ctx context.Context, blockerID, blockedID utils.SixID) error {
	if blockedID.IsZero() {
		return validationf("user_id is required")
	}
	_, err := s.db.Collection(db.BlockedUsersCollection).DeleteOne(ctx, bson.M{"blocker": blockerID, "blocked": blockedID})
	if err != nil {
		return fmt.Errorf("failed to unblock %s for %s: %w", blockedID.String(), blockerID.String(), err)
	}
	return nil
}

// ListBlocked returns the users blockerID has blocked, most recent first. Relations pointing at
// deleted users are skipped.
func (s *blockService) ListBlocked(ctx context.Context, blockerID utils.SixID) ([]models.BlockedUserView, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.BlockedUsersCollection).Find(ctx, bson.M{"blocker": blockerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing blocks of %s: %w", blockerID.String(), err)
	}
	defer cursor.Close(ctx)

	var relations []models.BlockRelation
	if err := cursor.All(ctx, &relations); err != nil {
		return nil, fmt.Errorf("error decoding blocks: %w", err)
	}

	ids := make([]utils.SixID, 0, len(relations))
	for _, r := range relations {
		ids = append(ids, r.Blocked)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.BlockedUserView, 0, len(relations))
	for _, r := range relations {
		u, ok := users[r.Blocked]
		if !ok {
			continue
		}
		out = append(out, models.BlockedUserView{User: u.Public(), BlockedSince: r.CreatedAt})
	}
	return out, nil
}
