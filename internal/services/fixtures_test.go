package services

import (
	"context"
	"testing"
	"time"

	"breederhub/api/internal/config"
	"breederhub/api/internal/db"
	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func testConfig() *config.Config {
	return &config.Config{
		JwtSecret:            "test-secret",
		JwtTTL:               time.Hour,
		MessageSnippetLength: 10,
		MessageMaxLength:     500,
		DefaultPageSize:      12,
		MaxPageSize:          100,
		ConsentVersion:       "v1.0",
		PasswordMinLen:       8,
		AuditEnabled:         true,
	}
}

// stack wires every service against one database, the way main does.
type stack struct {
	db            *mongo.Database
	cfg           *config.Config
	users         IUserService
	identity      IIdentityService
	listings      IListingService
	blocks        IBlockService
	conversations IConversationService
	messages      IMessageService
	inbox         IInboxService
	admin         IAdminService
	breeds        IBreedService
	posts         IPostService
	submissions   ISubmissionService

	labrador utils.SixID
}

func setupStack(t *testing.T, dbName string) *stack {
	t.Helper()
	database := utils.SetupTestDB(t, dbName,
		db.UsersCollection, db.ListingsCollection, db.ConversationsCollection,
		db.MessagesCollection, db.BlockedUsersCollection, db.AuditLogsCollection,
		db.BreedsCollection, db.PostsCollection, db.SubmissionsCollection)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))

	cfg := testConfig()
	s := &stack{db: database, cfg: cfg}
	s.users = NewUserService(database, cfg)
	s.identity = NewIdentityService(s.users, cfg)
	s.breeds = NewBreedService(database, cfg)
	s.listings = NewListingService(database, cfg, s.breeds)
	s.blocks = NewBlockService(database, cfg, s.users)
	s.conversations = NewConversationService(database, cfg)
	s.messages = NewMessageService(database, cfg, s.users, s.listings, s.blocks, s.conversations)
	s.inbox = NewInboxService(database, cfg, s.users, s.listings, s.conversations)
	s.admin = NewAdminService(database, cfg, s.users)
	s.posts = NewPostService(database, cfg)
	s.submissions = NewSubmissionService(database, cfg)
	return s
}

func (s *stack) register(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	if role == models.RoleAdmin {
		u := s.register(t, username, models.RoleCustomer)
		_, err := s.db.Collection(db.UsersCollection).UpdateByID(context.Background(), u.ID,
			bson.M{"$set": bson.M{"role": models.RoleAdmin}})
		require.NoError(t, err)
		u.Role = models.RoleAdmin
		return u
	}
	u, err := s.users.Register(context.Background(), RegisterInput{
		Username:      username,
		Email:         username + "@example.com",
		Password:      "correct horse",
		Role:          string(role),
		ConsentAgreed: true,
	}, "127.0.0.1")
	require.NoError(t, err)
	return u
}

// staff acts for fixtures that need an admin without a user document.
var staff = models.Principal{UserID: utils.NewSixID(), Role: models.RoleAdmin}

func (s *stack) breed(t *testing.T, name string) *models.Breed {
	t.Helper()
	b, err := s.breeds.CreateBreed(context.Background(), staff, name)
	require.NoError(t, err)
	return b
}

// labradorID returns the ID of a "Labrador" breed, creating it on first use.
func (s *stack) labradorID(t *testing.T) string {
	t.Helper()
	if s.labrador.IsZero() {
		s.labrador = s.breed(t, "Labrador").ID
	}
	return s.labrador.String()
}

func (s *stack) listing(t *testing.T, breeder *models.User, name string) *models.Listing {
	t.Helper()
	breed := s.labradorID(t)
	status := string(models.ListingStatusPublished)
	l, err := s.listings.CreateListing(context.Background(),
		models.Principal{UserID: breeder.ID, Role: breeder.Role},
		models.ListingInput{Name: &name, BreedID: &breed, Status: &status})
	require.NoError(t, err)
	return l
}

func principalOf(u *models.User) models.Principal {
	return models.Principal{UserID: u.ID, Role: u.Role}
}
