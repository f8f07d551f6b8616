package handlers_test

import (
	"context"
	"time"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/utils"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in services.RegisterInput, ip string) (*models.User, error) {
	args := m.Called(ctx, in, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByIDs(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.User, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]*models.User), args.Error(1)
}
func (m *MockUserService) ListBreeders(ctx context.Context) ([]models.PublicUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PublicUser), args.Error(1)
}
func (m *MockUserService) UpdateProfile(ctx context.Context, userID utils.SixID, in services.ProfileInput) (*models.User, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) ChangePassword(ctx context.Context, userID utils.SixID, oldPassword, newPassword string) error {
	return m.Called(ctx, userID, oldPassword, newPassword).Error(0)
}
func (m *MockUserService) SetConsent(ctx context.Context, userID utils.SixID, agreed bool, ip string) (*models.Consent, error) {
	args := m.Called(ctx, userID, agreed, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Consent), args.Error(1)
}
func (m *MockUserService) AddFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	return m.Called(ctx, userID, listingID).Error(0)
}
func (m *MockUserService) RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	return m.Called(ctx, userID, listingID).Error(0)
}
func (m *MockUserService) DeleteAccount(ctx context.Context, userID utils.SixID) error {
	return m.Called(ctx, userID).Error(0)
}

// MockIdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) ResolveCurrentUser(ctx context.Context, bearerToken string) (*models.Principal, error) {
	args := m.Called(ctx, bearerToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Principal), args.Error(1)
}
func (m *MockIdentityService) IssueToken(user *models.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, actor models.Principal, in models.ListingInput) (*models.Listing, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) FindListingsByIDs(ctx context.Context, listingIDs []utils.SixID) (map[utils.SixID]*models.Listing, error) {
	args := m.Called(ctx, listingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]*models.Listing), args.Error(1)
}
func (m *MockListingService) FindVisibleListing(ctx context.Context, idOrSlug string, viewer *models.Principal) (*models.Listing, error) {
	args := m.Called(ctx, idOrSlug, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) UpdateListing(ctx context.Context, actor models.Principal, listingID utils.SixID, in models.ListingInput) (*models.Listing, error) {
	args := m.Called(ctx, actor, listingID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) SetListingStatus(ctx context.Context, actor models.Principal, listingID utils.SixID, status models.ListingStatus) (*models.Listing, error) {
	args := m.Called(ctx, actor, listingID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) DeleteListing(ctx context.Context, actor models.Principal, listingID utils.SixID) error {
	return m.Called(ctx, actor, listingID).Error(0)
}
func (m *MockListingService) SearchListings(ctx context.Context, search models.ListingSearch) (*models.ListingPage, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingPage), args.Error(1)
}
func (m *MockListingService) FindListingsByBreeder(ctx context.Context, breederID utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, breederID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}
func (m *MockListingService) SetListingImage(ctx context.Context, listingID utils.SixID, imageKey string) error {
	return m.Called(ctx, listingID, imageKey).Error(0)
}

// MockMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, fromID, toID, listingID utils.SixID, body string) (*models.Message, error) {
	args := m.Called(ctx, fromID, toID, listingID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}
func (m *MockMessageService) Create(ctx context.Context, fromID, toID, conversationID utils.SixID, body string) (*models.Message, error) {
	args := m.Called(ctx, fromID, toID, conversationID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}
func (m *MockMessageService) ListByConversation(ctx context.Context, conversationID, requesterID utils.SixID) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}
func (m *MockMessageService) MarkRead(ctx context.Context, conversationID, readerID utils.SixID) (bool, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Bool(0), args.Error(1)
}
func (m *MockMessageService) Reply(ctx context.Context, replierID, parentMessageID, recipientID utils.SixID, body string) (*models.Message, error) {
	args := m.Called(ctx, replierID, parentMessageID, recipientID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}
func (m *MockMessageService) FindByID(ctx context.Context, messageID utils.SixID) (*models.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// MockConversationService
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) FindOrCreate(ctx context.Context, userA, userB, listingID utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, userA, userB, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *MockConversationService) Get(ctx context.Context, conversationID, requesterID utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, conversationID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *MockConversationService) SetLastMessage(ctx context.Context, conversationID, messageID utils.SixID, at time.Time) error {
	return m.Called(ctx, conversationID, messageID, at).Error(0)
}
func (m *MockConversationService) ListForUser(ctx context.Context, userID utils.SixID) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}
func (m *MockConversationService) Delete(ctx context.Context, conversationID, requesterID utils.SixID) error {
	return m.Called(ctx, conversationID, requesterID).Error(0)
}
func (m *MockConversationService) OtherParticipant(ctx context.Context, conversationID, userID utils.SixID) (utils.SixID, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(utils.SixID), args.Error(1)
}

// MockInboxService
type MockInboxService struct {
	mock.Mock
}

func (m *MockInboxService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockInboxService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.ConversationPreview, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationPreview), args.Error(1)
}

// MockBlockService
type MockBlockService struct {
	mock.Mock
}

func (m *MockBlockService) CanMessage(ctx context.Context, senderID, recipientID utils.SixID) (bool, error) {
	args := m.Called(ctx, senderID, recipientID)
	return args.Bool(0), args.Error(1)
}
func (m *MockBlockService) Block(ctx context.Context, blockerID, blockedID utils.SixID) error {
	return m.Called(ctx, blockerID, blockedID).Error(0)
}
func (m *MockBlockService) Unblock(ctx context.Context, blockerID, blockedID utils.SixID) error {
	return m.Called(ctx, blockerID, blockedID).Error(0)
}
func (m *MockBlockService) ListBlocked(ctx context.Context, blockerID utils.SixID) ([]models.BlockedUserView, error) {
	args := m.Called(ctx, blockerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BlockedUserView), args.Error(1)
}

// MockAdminService
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) ListUsers(ctx context.Context, actor models.Principal, filter services.UserFilter) (*services.UserPage, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UserPage), args.Error(1)
}
func (m *MockAdminService) SetLocked(ctx context.Context, actor models.Principal, userID utils.SixID, locked bool) error {
	return m.Called(ctx, actor, userID, locked).Error(0)
}
func (m *MockAdminService) SetRole(ctx context.Context, actor models.Principal, userID utils.SixID, role models.Role) error {
	return m.Called(ctx, actor, userID, role).Error(0)
}
func (m *MockAdminService) DeleteUser(ctx context.Context, actor models.Principal, userID utils.SixID) error {
	return m.Called(ctx, actor, userID).Error(0)
}
func (m *MockAdminService) Metrics(ctx context.Context, actor models.Principal) (*services.AdminMetrics, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AdminMetrics), args.Error(1)
}

// MockAuditService
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, entry models.AuditEntry) {
	m.Called(ctx, entry)
}
func (m *MockAuditService) Persist(ctx context.Context, entry *models.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}
func (m *MockAuditService) ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, userID, scope, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, scope, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}
func (m *MockS3Storage) GeneratePresignedGetURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
func (m *MockS3Storage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}
func (m *MockS3Storage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}
func (m *MockS3Storage) DeleteObject(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// MockAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// MockBreedService
type MockBreedService struct {
	mock.Mock
}

func (m *MockBreedService) ListBreeds(ctx context.Context) ([]models.Breed, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Breed), args.Error(1)
}
func (m *MockBreedService) FindBreedByID(ctx context.Context, breedID utils.SixID) (*models.Breed, error) {
	args := m.Called(ctx, breedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Breed), args.Error(1)
}
func (m *MockBreedService) CreateBreed(ctx context.Context, actor models.Principal, name string) (*models.Breed, error) {
	args := m.Called(ctx, actor, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Breed), args.Error(1)
}
func (m *MockBreedService) ListBreedsAdmin(ctx context.Context, actor models.Principal, filter services.BreedFilter) (*models.BreedPage, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreedPage), args.Error(1)
}
func (m *MockBreedService) DeleteBreed(ctx context.Context, actor models.Principal, breedID utils.SixID) error {
	return m.Called(ctx, actor, breedID).Error(0)
}

// MockPostService
type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) pageResult(args mock.Arguments) (*models.PostPage, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostPage), args.Error(1)
}
func (m *MockPostService) postResult(args mock.Arguments) (*models.Post, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}
func (m *MockPostService) ListPublishedPosts(ctx context.Context, filter models.PostFilter) (*models.PostPage, error) {
	return m.pageResult(m.Called(ctx, filter))
}
func (m *MockPostService) FindPublishedPost(ctx context.Context, slug string) (*models.Post, error) {
	return m.postResult(m.Called(ctx, slug))
}
func (m *MockPostService) ListAllPosts(ctx context.Context, actor models.Principal, filter models.PostFilter) (*models.PostPage, error) {
	return m.pageResult(m.Called(ctx, actor, filter))
}
func (m *MockPostService) FindPost(ctx context.Context, actor models.Principal, slug string) (*models.Post, error) {
	return m.postResult(m.Called(ctx, actor, slug))
}
func (m *MockPostService) CreatePost(ctx context.Context, actor models.Principal, in models.PostInput) (*models.Post, error) {
	return m.postResult(m.Called(ctx, actor, in))
}
func (m *MockPostService) UpdatePost(ctx context.Context, actor models.Principal, slug string, in models.PostInput) (*models.Post, error) {
	return m.postResult(m.Called(ctx, actor, slug, in))
}
func (m *MockPostService) DeletePost(ctx context.Context, actor models.Principal, slug string) error {
	return m.Called(ctx, actor, slug).Error(0)
}

// MockSubmissionService
type MockSubmissionService struct {
	mock.Mock
}

func (m *MockSubmissionService) Submit(ctx context.Context, kind models.SubmissionKind, in models.SubmissionInput, ip string) (*models.Submission, error) {
	args := m.Called(ctx, kind, in, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}
func (m *MockSubmissionService) ListSubmissions(ctx context.Context, actor models.Principal, filter models.SubmissionFilter) (*models.SubmissionPage, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmissionPage), args.Error(1)
}
func (m *MockSubmissionService) DeleteSubmission(ctx context.Context, actor models.Principal, submissionID utils.SixID) error {
	return m.Called(ctx, actor, submissionID).Error(0)
}
