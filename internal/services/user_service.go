package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"breederhub/api/internal/auth"
	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username       string                 `json:"username"`
	Email          string                 `json:"email"`
	Password       string                 `json:"password"`
	Role           string                 `json:"role"`
	FirstName      string                 `json:"first_name"`
	LastName       string                 `json:"last_name"`
	ConsentAgreed  bool                   `json:"consent"`
	BreederProfile *models.BreederProfile `json:"breeder_profile"`
}

// ProfileInput carries profile fields to change. Nil fields are left untouched.
type ProfileInput struct {
	FirstName       *string                `json:"first_name"`
	LastName        *string                `json:"last_name"`
	ProfileImageKey *string                `json:"profile_image_key"`
	BreederProfile  *models.BreederProfile `json:"breeder_profile"`
}

// IUserService manages accounts, profiles, consent and favorites.
type IUserService interface {
	Register(ctx context.Context, in RegisterInput, ip string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.User, error)
	ListBreeders(ctx context.Context) ([]models.PublicUser, error)
	UpdateProfile(ctx context.Context, userID utils.SixID, in ProfileInput) (*models.User, error)
	ChangePassword(ctx context.Context, userID utils.SixID, oldPassword, newPassword string) error
	SetConsent(ctx context.Context, userID utils.SixID, agreed bool, ip string) (*models.Consent, error)
	AddFavorite(ctx context.Context, userID, listingID utils.SixID) error
	RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error
	DeleteAccount(ctx context.Context, userID utils.SixID) error
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// userService implements IUserService.
type userService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config) IUserService {
	return &userService{db: db, cfg: cfg}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) passwordMinLen() int {
	if s.cfg != nil && s.cfg.PasswordMinLen > 0 {
		return s.cfg.PasswordMinLen
	}
	return 8
}

func (s *userService) consentVersion() string {
	if s.cfg != nil && s.cfg.ConsentVersion != "" {
		return s.cfg.ConsentVersion
	}
	return "v1.0"
}

// Register creates a new account. Admin accounts cannot be self-registered.
func (s *userService) Register(ctx context.Context, in RegisterInput, ip string) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, validationf("Invalid email address")
	}
	username := strings.TrimSpace(in.Username)
	if !usernameRegex.MatchString(username) {
		return nil, validationf("Username must be 3-32 letters, digits, dots, dashes or underscores")
	}
	if err := s.checkPasswordLength(in.Password); err != nil {
		return nil, err
	}
	role := models.RoleCustomer
	if in.Role != "" {
		parsed, err := models.ParseRole(in.Role)
		if err != nil || !parsed.SelfRegisterable() {
			return nil, validationf("Invalid role")
		}
		role = parsed
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	consent := models.Consent{Agreed: in.ConsentAgreed}
	if in.ConsentAgreed {
		consent.Timestamp = &now
		consent.IP = ip
		consent.Version = s.consentVersion()
	}

	var breederProfile *models.BreederProfile
	if role == models.RoleBreeder {
		breederProfile = sanitizeBreederProfile(in.BreederProfile)
	}

	collection := s.db.Collection(db.UsersCollection)
	var newUser *models.User
	err = db.Try(func() error {
		newUser = &models.User{
			Base:           models.Base{ID: utils.NewSixID()},
			Timestamps:     models.Timestamps{CreatedAt: now, UpdatedAt: now},
			Username:       username,
			Email:          email,
			PasswordHash:   hash,
			Role:           role,
			FirstName:      utils.SanitizeText(in.FirstName),
			LastName:       utils.SanitizeText(in.LastName),
			Consent:        consent,
			BreederProfile: breederProfile,
			Favorites:      []utils.SixID{},
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		if insertErr != nil && db.IsMongoDuplicateKeyError(insertErr) {
			// Only a random _id collision is worth another attempt.
			switch {
			case strings.Contains(insertErr.Error(), "email_1"):
				return ErrEmailExists
			case strings.Contains(insertErr.Error(), "username_1"):
				return ErrUsernameExists
			}
		}
		return insertErr
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
	}

	log.Printf("Registered user %s (%s) as %s", newUser.ID.String(), email, role)
	return newUser, nil
}

// Authenticate checks credentials. Unknown emails, wrong passwords and locked accounts all
// yield ErrUnauthenticated.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.CompareDummyHash(password)
			return nil, fmt.Errorf("%w: Invalid credentials", ErrUnauthenticated)
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		log.Printf("Login attempt failed: invalid password for user %s", user.ID.String())
		return nil, fmt.Errorf("%w: Invalid credentials", ErrUnauthenticated)
	}
	if user.Locked {
		log.Printf("Login attempt failed: user %s is locked", user.ID.String())
		return nil, fmt.Errorf("%w: Account is locked", ErrUnauthenticated)
	}
	if auth.NeedsRehash(user.PasswordHash) {
		s.rehashPassword(ctx, user, password)
	}
	return user, nil
}

// rehashPassword upgrades a hash made with an outdated cost. Failures only cost a retry on the
// next login.
func (s *userService) rehashPassword(ctx context.Context, user *models.User, password string) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("WARN: could not rehash password of user %s: %v", user.ID.String(), err)
		return
	}
	_, err = s.db.Collection(db.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": user.ID, "password": user.PasswordHash},
		bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		log.Printf("WARN: could not store rehashed password of user %s: %v", user.ID.String(), err)
		return
	}
	user.PasswordHash = hash
}

func (s *userService) checkPasswordLength(password string) error {
	if len(password) < s.passwordMinLen() {
		return validationf("Password must be at least %d characters", s.passwordMinLen())
	}
	if len(password) > auth.MaxPasswordBytes {
		return validationf("Password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return nil
}

// FindByID returns the user or ErrNotFound.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "User")
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.String(), err)
	}
	return &user, nil
}

// FindByEmail returns the user with the (case-insensitive) email or ErrNotFound.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "User")
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByIDs loads several users at once. Missing IDs are simply absent from the map.
func (s *userService) FindByIDs(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.User, error) {
	result := make(map[utils.SixID]*models.User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("error loading %d users: %w", len(userIDs), err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

// ListBreeders returns unlocked breeders, newest first.
func (s *userService) ListBreeders(ctx context.Context) ([]models.PublicUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx, bson.M{"role": models.RoleBreeder, "locked": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing breeders: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding breeders: %w", err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

// UpdateProfile changes the supplied profile fields.
func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, in ProfileInput) (*models.User, error) {
	set := bson.M{}
	if in.FirstName != nil {
		set["first_name"] = utils.SanitizeText(*in.FirstName)
	}
	if in.LastName != nil {
		set["last_name"] = utils.SanitizeText(*in.LastName)
	}
	if in.ProfileImageKey != nil {
		set["profile_image_key"] = strings.TrimSpace(*in.ProfileImageKey)
	}
	if in.BreederProfile != nil {
		current, err := s.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if current.Role != models.RoleBreeder {
			return nil, validationf("Only breeders have a breeder profile")
		}
		set["breeder_profile"] = sanitizeBreederProfile(in.BreederProfile)
	}
	if len(set) == 0 {
		return nil, validationf("No profile fields provided")
	}
	set["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := s.db.Collection(db.UsersCollection).FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "User")
		}
		return nil, fmt.Errorf("failed to update profile of user %s: %w", userID.String(), err)
	}
	return &updated, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *userService) ChangePassword(ctx context.Context, userID utils.SixID, oldPassword, newPassword string) error {
	if err := s.checkPasswordLength(newPassword); err != nil {
		return err
	}
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(oldPassword, user.PasswordHash) {
		return validationf("Current password is incorrect")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(db.UsersCollection).UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"password":   hash,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update password for user %s: %w", userID.String(), err)
	}
	return nil
}

// SetConsent records a consent grant or withdrawal.
func (s *userService) SetConsent(ctx context.Context, userID utils.SixID, agreed bool, ip string) (*models.Consent, error) {
	now := time.Now().UTC()
	consent := models.Consent{Agreed: agreed, Timestamp: &now, IP: ip, Version: s.consentVersion()}
	res, err := s.db.Collection(db.UsersCollection).UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"consent":    consent,
		"updated_at": now,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to record consent for user %s: %w", userID.String(), err)
	}
	if res.MatchedCount == 0 {
		return nil, notFoundf("User not found")
	}
	return &consent, nil
}

// AddFavorite adds a listing to the user's favorites. Adding twice is a no-op.
func (s *userService) AddFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	return s.updateFavorites(ctx, userID, bson.M{"$addToSet": bson.M{"favorites": listingID}})
}

// RemoveFavorite removes a listing from the user's favorites. Removing a missing one is a no-op.
func (s *userService) RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	return s.updateFavorites(ctx, userID, bson.M{"$pull": bson.M{"favorites": listingID}})
}

func (s *userService) updateFavorites(ctx context.Context, userID utils.SixID, update bson.M) error {
	update["$set"] = bson.M{"updated_at": time.Now().UTC()}
	res, err := s.db.Collection(db.UsersCollection).UpdateByID(ctx, userID, update)
	if err != nil {
		return fmt.Errorf("failed to update favorites of user %s: %w", userID.String(), err)
	}
	if res.MatchedCount == 0 {
		return notFoundf("User not found")
	}
	return nil
}

// DeleteAccount hard-deletes the user together with their listings, block relations,
// conversations and messages. The user document goes last so a failed cleanup can be retried.
func (s *userService) DeleteAccount(ctx context.Context, userID utils.SixID) error {
	if _, err := s.FindByID(ctx, userID); err != nil {
		return err
	}

	conversationIDs, err := conversationIDsOf(ctx, s.db, userID)
	if err != nil {
		return err
	}
	cascades := []struct {
		collection string
		filter     bson.M
	}{
		{db.MessagesCollection, bson.M{"conversation_id": bson.M{"$in": conversationIDs}}},
		{db.ConversationsCollection, bson.M{"_id": bson.M{"$in": conversationIDs}}},
		{db.BlockedUsersCollection, bson.M{"$or": bson.A{bson.M{"blocker": userID}, bson.M{"blocked": userID}}}},
		{db.ListingsCollection, bson.M{"breeder_id": userID}},
	}
	for _, c := range cascades {
		if _, err := s.db.Collection(c.collection).DeleteMany(ctx, c.filter); err != nil {
			log.Printf("ERROR: cleanup of %s for user %s failed, account kept: %v", c.collection, userID.String(), err)
			return fmt.Errorf("failed to clean up %s for user %s: %w", c.collection, userID.String(), err)
		}
	}

	res, err := s.db.Collection(db.UsersCollection).DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("db error deleting user %s: %w", userID.String(), err)
	}
	if res.DeletedCount == 0 {
		return notFoundf("User not found")
	}

	log.Printf("User %s and %d conversations deleted", userID.String(), len(conversationIDs))
	return nil
}

// conversationIDsOf lists the conversations userID participates in.
func conversationIDsOf(ctx context.Context, database *mongo.Database, userID utils.SixID) ([]utils.SixID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := database.Collection(db.ConversationsCollection).Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations of user %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	ids := []utils.SixID{}
	for cursor.Next(ctx) {
		var row struct {
			ID utils.SixID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("error decoding conversation id: %w", err)
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

func sanitizeBreederProfile(p *models.BreederProfile) *models.BreederProfile {
	if p == nil {
		return &models.BreederProfile{}
	}
	out := &models.BreederProfile{
		KennelName:  utils.SanitizeText(p.KennelName),
		Website:     strings.TrimSpace(p.Website),
		Phone:       strings.TrimSpace(p.Phone),
		Description: utils.SanitizeText(p.Description),
	}
	if p.Location != nil {
		out.Location = &models.KennelLocation{
			City:    utils.SanitizeText(p.Location.City),
			State:   utils.SanitizeText(p.Location.State),
			Country: utils.SanitizeText(p.Location.Country),
		}
	}
	return out
}
