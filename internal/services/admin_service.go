package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserFilter narrows the admin user list.
type UserFilter struct {
	Role  string
	Query string
	Page  int
	Limit int
}

// UserPage is one page of the admin user list.
type UserPage struct {
	Items []models.User `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Pages int64         `json:"pages"`
}

// AdminMetrics are the dashboard counters.
type AdminMetrics struct {
	UsersByRole      map[models.Role]int64          `json:"users_by_role"`
	LockedUsers      int64                          `json:"locked_users"`
	ListingsByStatus map[models.ListingStatus]int64 `json:"listings_by_status"`
	Conversations    int64                          `json:"conversations"`
	Messages         int64                          `json:"messages"`
	UnreadMessages   int64                          `json:"unread_messages"`
	BlockRelations   int64                          `json:"block_relations"`
	GeneratedAt      time.Time                      `json:"generated_at"`
}

// IAdminService holds operations only admins may perform.
type IAdminService interface {
	ListUsers(ctx context.Context, actor models.Principal, filter UserFilter) (*UserPage, error)
	SetLocked(ctx context.Context, actor models.Principal, userID utils.SixID, locked bool) error
	SetRole(ctx context.Context, actor models.Principal, userID utils.SixID, role models.Role) error
	DeleteUser(ctx context.Context, actor models.Principal, userID utils.SixID) error
	Metrics(ctx context.Context, actor models.Principal) (*AdminMetrics, error)
}

// adminService implements IAdminService.
type adminService struct {
	db    *mongo.Database
	cfg   *config.Config
	users IUserService
}

// NewAdminService creates a new AdminService.
func NewAdminService(db *mongo.Database, cfg *config.Config, users IUserService) IAdminService {
	return &adminService{db: db, cfg: cfg, users: users}
}

func requireAdmin(actor models.Principal) error {
	if !actor.Role.IsAdmin() {
		return forbiddenf("Admin access required")
	}
	return nil
}

// ListUsers pages through accounts, newest first.
func (s *adminService) ListUsers(ctx context.Context, actor models.Principal, filter UserFilter) (*UserPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	query := bson.M{}
	if filter.Role != "" {
		role, err := models.ParseRole(filter.Role)
		if err != nil {
			return nil, validationf("Invalid role")
		}
		query["role"] = role
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		query["$or"] = bson.A{bson.M{"email": pattern}, bson.M{"username": pattern}}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	collection := s.db.Collection(db.UsersCollection)
	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.User{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return &UserPage{Items: items, Total: total, Page: page, Pages: (total + int64(limit) - 1) / int64(limit)}, nil
}

// SetLocked locks or unlocks an account. A locked user fails authentication immediately.
func (s *adminService) SetLocked(ctx context.Context, actor models.Principal, userID utils.SixID, locked bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if locked && actor.UserID == userID {
		return validationf("You cannot lock your own account")
	}
	return s.setField(ctx, userID, "locked", locked)
}

// SetRole changes the role of an account.
func (s *adminService) SetRole(ctx context.Context, actor models.Principal, userID utils.SixID, role models.Role) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if !role.Valid() {
		return validationf("Invalid role")
	}
	if actor.UserID == userID && !role.IsAdmin() {
		return validationf("You cannot remove your own admin role")
	}
	return s.setField(ctx, userID, "role", role)
}

func (s *adminService) setField(ctx context.Context, userID utils.SixID, field string, value any) error {
	res, err := s.db.Collection(db.UsersCollection).UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		field:        value,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set %s of user %s: %w", field, userID.String(), err)
	}
	if res.MatchedCount == 0 {
		return notFoundf("User not found")
	}
	log.Printf("Admin set %s=%v on user %s", field, value, userID.String())
	return nil
}

// DeleteUser removes an account and everything it owns.
func (s *adminService) DeleteUser(ctx context.Context, actor models.Principal, userID utils.SixID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == userID {
		return validationf("You cannot delete your own account here")
	}
	return s.users.DeleteAccount(ctx, userID)
}

// Metrics counts users, listings and messaging activity.
func (s *adminService) Metrics(ctx context.Context, actor models.Principal) (*AdminMetrics, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	m := &AdminMetrics{
		UsersByRole:      map[models.Role]int64{},
		ListingsByStatus: map[models.ListingStatus]int64{},
		GeneratedAt:      time.Now().UTC(),
	}

	byRole, err := s.groupCount(ctx, db.UsersCollection, "$role")
	if err != nil {
		return nil, err
	}
	for k, v := range byRole {
		m.UsersByRole[models.Role(k)] = v
	}
	byStatus, err := s.groupCount(ctx, db.ListingsCollection, "$status")
	if err != nil {
		return nil, err
	}
	for k, v := range byStatus {
		m.ListingsByStatus[models.ListingStatus(k)] = v
	}

	counts := []struct {
		target     *int64
		collection string
		filter     bson.M
	}{
		{&m.LockedUsers, db.UsersCollection, bson.M{"locked": true}},
		{&m.Conversations, db.ConversationsCollection, bson.M{}},
		{&m.Messages, db.MessagesCollection, bson.M{}},
		{&m.UnreadMessages, db.MessagesCollection, bson.M{"read": false}},
		{&m.BlockRelations, db.BlockedUsersCollection, bson.M{}},
	}
	for _, c := range counts {
		n, err := s.db.Collection(c.collection).CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.collection, err)
		}
		*c.target = n
	}
	return m, nil
}

func (s *adminService) groupCount(ctx context.Context, collection, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to group %s by %s: %w", collection, field, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s counts: %w", collection, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out, nil
}
