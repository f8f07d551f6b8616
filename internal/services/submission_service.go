package services

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"regexp"
	"strings"
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

const (
	maxSubmissionNameLength    = 100
	maxSubmissionMessageLength = 2000
)

// ISubmissionService stores contact and feedback form submissions for the admins to read.
type ISubmissionService interface {
	Submit(ctx context.Context, kind models.SubmissionKind, in models.SubmissionInput, ip string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, actor models.Principal, filter models.SubmissionFilter) (*models.SubmissionPage, error)
	DeleteSubmission(ctx context.Context, actor models.Principal, submissionID utils.SixID) error
}

// submissionService implements ISubmissionService.
type submissionService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(db *mongo.Database, cfg *config.Config) ISubmissionService {
	return &submissionService{db: db, cfg: cfg}
}

// Submit validates and stores a form submission. Email is optional but must parse when given.
func (s *submissionService) Submit(ctx context.Context, kind models.SubmissionKind, in models.SubmissionInput, ip string) (*models.Submission, error) {
	if _, err := models.ParseSubmissionKind(string(kind)); err != nil {
		return nil, validationf("Invalid submission type")
	}
	name := utils.SanitizeText(in.Name)
	message := utils.SanitizeText(in.Message)
	if name == "" || message == "" {
		return nil, validationf("Name and message are required.")
	}
	if utf8.RuneCountInString(name) > maxSubmissionNameLength || utf8.RuneCountInString(message) > maxSubmissionMessageLength {
		return nil, validationf("Input too long.")
	}
	email := normalizeEmail(in.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
			return nil, validationf("Invalid email format.")
		}
	}

	sub := &models.Submission{
		Base:      models.Base{ID: utils.NewSixID()},
		Kind:      kind,
		Name:      name,
		Email:     email,
		Message:   message,
		IP:        ip,
		CreatedAt: time.Now().UTC(),
	}
	err := db.Try(func() error {
		_, insertErr := s.db.Collection(db.SubmissionsCollection).InsertOne(ctx, sub)
		if insertErr != nil {
			sub.ID = utils.NewSixID()
		}
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store %s submission: %w", kind, err)
	}
	log.Printf("Submission %s (%s) received", sub.ID.String(), kind)
	return sub, nil
}

// ListSubmissions pages through submissions, newest first unless SortAsc is set. Search
// matches name, email and message.
func (s *submissionService) ListSubmissions(ctx context.Context, actor models.Principal, filter models.SubmissionFilter) (*models.SubmissionPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	query := bson.M{}
	if filter.Kind != "" {
		kind, err := models.ParseSubmissionKind(filter.Kind)
		if err != nil {
			return nil, validationf("Invalid submission type")
		}
		query["kind"] = kind
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		query["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}, bson.M{"message": pattern}}
	}
	page, limit := pageWindow(s.cfg, filter.Page, filter.Limit)
	order := -1
	if filter.SortAsc {
		order = 1
	}

	collection := s.db.Collection(db.SubmissionsCollection)
	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: order}, {Key: "_id", Value: order}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.Submission{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}
	return &models.SubmissionPage{Items: items, Total: total, Page: page, Pages: (total + int64(limit) - 1) / int64(limit)}, nil
}

func (s *submissionService) DeleteSubmission(ctx context.Context, actor models.Principal, submissionID utils.SixID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	res, err := s.db.Collection(db.SubmissionsCollection).DeleteOne(ctx, bson.M{"_id": submissionID})
	if err != nil {
		return fmt.Errorf("db error deleting submission %s: %w", submissionID.String(), err)
	}
	if res.DeletedCount == 0 {
		return notFoundf("Submission not found")
	}
	return nil
}
