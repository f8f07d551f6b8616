package services

import (
	"context"
	"errors"
	"fmt"
	"log"
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

const maxBreedNameLength = 100

// ErrBreedExists is returned when a breed with the same name, ignoring case, is already listed.
var ErrBreedExists = fmt.Errorf("%w: Breed already exists", ErrConflict)

// BreedFilter narrows the admin breed list.
type BreedFilter struct {
	Search   string
	Page     int
	Limit    int
	SortDesc bool
}

// IBreedService manages the breed catalog.
type IBreedService interface {
	ListBreeds(ctx context.Context) ([]models.Breed, error)
	FindBreedByID(ctx context.Context, breedID utils.SixID) (*models.Breed, error)
	CreateBreed(ctx context.Context, actor models.Principal, name string) (*models.Breed, error)
	ListBreedsAdmin(ctx context.Context, actor models.Principal, filter BreedFilter) (*models.BreedPage, error)
	DeleteBreed(ctx context.Context, actor models.Principal, breedID utils.SixID) error
}

// breedService implements IBreedService.
type breedService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewBreedService creates a new BreedService.
func NewBreedService(db *mongo.Database, cfg *config.Config) IBreedService {
	return &breedService{db: db, cfg: cfg}
}

// ListBreeds returns the whole catalog sorted by name.
func (s *breedService) ListBreeds(ctx context.Context) ([]models.Breed, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}})
	cursor, err := s.db.Collection(db.BreedsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list breeds: %w", err)
	}
	defer cursor.Close(ctx)

	breeds := []models.Breed{}
	if err := cursor.All(ctx, &breeds); err != nil {
		return nil, fmt.Errorf("failed to decode breeds: %w", err)
	}
	return breeds, nil
}

func (s *breedService) FindBreedByID(ctx context.Context, breedID utils.SixID) (*models.Breed, error) {
	var breed models.Breed
	err := s.db.Collection(db.BreedsCollection).FindOne(ctx, bson.M{"_id": breedID}).Decode(&breed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "Breed")
		}
		return nil, fmt.Errorf("error finding breed %s: %w", breedID.String(), err)
	}
	return &breed, nil
}

// CreateBreed adds a breed. Breeders may add the breed they are about to list; names are
// unique regardless of case.
func (s *breedService) CreateBreed(ctx context.Context, actor models.Principal, name string) (*models.Breed, error) {
	if !actor.Role.CanPublishListings() {
		return nil, forbiddenf("Only breeders can add breeds")
	}
	name = utils.SanitizeText(name)
	if name == "" {
		return nil, validationf("Breed name is required")
	}
	if utf8.RuneCountInString(name) > maxBreedNameLength {
		return nil, validationf("Breed name cannot exceed %d characters", maxBreedNameLength)
	}

	collection := s.db.Collection(db.BreedsCollection)
	now := time.Now().UTC()
	var breed *models.Breed
	err := db.Try(func() error {
		breed = &models.Breed{
			Base:       models.Base{ID: utils.NewSixID()},
			Timestamps: models.Timestamps{CreatedAt: now, UpdatedAt: now},
			Name:       name,
			NameKey:    strings.ToLower(name),
		}
		_, insertErr := collection.InsertOne(ctx, breed)
		if insertErr != nil && db.IsMongoDuplicateKeyError(insertErr) && strings.Contains(insertErr.Error(), "name_key_1") {
			return ErrBreedExists
		}
		return insertErr
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert breed %q: %w", name, err)
	}
	log.Printf("Breed %s (%s) added by %s", breed.ID.String(), breed.Name, actor.UserID.String())
	return breed, nil
}

// ListBreedsAdmin pages through the catalog by name, optionally filtered by a substring.
func (s *breedService) ListBreedsAdmin(ctx context.Context, actor models.Principal, filter BreedFilter) (*models.BreedPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	query := bson.M{}
	if q := strings.TrimSpace(filter.Search); q != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
	}

	page, limit := pageWindow(s.cfg, filter.Page, filter.Limit)
	order := 1
	if filter.SortDesc {
		order = -1
	}

	collection := s.db.Collection(db.BreedsCollection)
	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count breeds: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name_key", Value: order}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list breeds: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.Breed{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode breeds: %w", err)
	}
	return &models.BreedPage{Items: items, Total: total, Page: page, Pages: (total + int64(limit) - 1) / int64(limit)}, nil
}

// DeleteBreed removes a breed that no listing refers to.
func (s *breedService) DeleteBreed(ctx context.Context, actor models.Principal, breedID utils.SixID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	inUse, err := s.db.Collection(db.ListingsCollection).CountDocuments(ctx, bson.M{"breed_id": breedID})
	if err != nil {
		return fmt.Errorf("failed to count listings of breed %s: %w", breedID.String(), err)
	}
	if inUse > 0 {
		return fmt.Errorf("%w: Breed is used by %d listing(s)", ErrConflict, inUse)
	}
	res, err := s.db.Collection(db.BreedsCollection).DeleteOne(ctx, bson.M{"_id": breedID})
	if err != nil {
		return fmt.Errorf("db error deleting breed %s: %w", breedID.String(), err)
	}
	if res.DeletedCount == 0 {
		return notFoundf("Breed not found")
	}
	log.Printf("Breed %s deleted by %s", breedID.String(), actor.UserID.String())
	return nil
}
