package services

import (
	"context"
	"errors"
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

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, actor models.Principal, in models.ListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	FindListingsByIDs(ctx context.Context, listingIDs []utils.SixID) (map[utils.SixID]*models.Listing, error)
	FindVisibleListing(ctx context.Context, idOrSlug string, viewer *models.Principal) (*models.Listing, error)
	UpdateListing(ctx context.Context, actor models.Principal, listingID utils.SixID, in models.ListingInput) (*models.Listing, error)
	SetListingStatus(ctx context.Context, actor models.Principal, listingID utils.SixID, status models.ListingStatus) (*models.Listing, error)
	DeleteListing(ctx context.Context, actor models.Principal, listingID utils.SixID) error
	SearchListings(ctx context.Context, search models.ListingSearch) (*models.ListingPage, error)
	FindListingsByBreeder(ctx context.Context, breederID utils.SixID) ([]models.Listing, error)
	SetListingImage(ctx context.Context, listingID utils.SixID, imageKey string) error
}

// listingService implements IListingService.
type listingService struct {
	db     *mongo.Database
	cfg    *config.Config
	breeds IBreedService
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config, breeds IBreedService) IListingService {
	return &listingService{db: db, cfg: cfg, breeds: breeds}
}

// CreateListing creates a listing owned by the actor. Status defaults to draft and visibility
// to public.
func (s *listingService) CreateListing(ctx context.Context, actor models.Principal, in models.ListingInput) (*models.Listing, error) {
	if !actor.Role.CanPublishListings() {
		return nil, forbiddenf("Only breeders can create listings")
	}

	draft := models.Listing{
		Status:     models.ListingStatusDraft,
		Visibility: models.VisibilityPublic,
		BreederID:  actor.UserID,
	}
	if err := applyListingInput(&draft, in); err != nil {
		return nil, err
	}
	if draft.Name == "" || draft.BreedID.IsZero() {
		return nil, validationf("Name and breed are required")
	}
	if err := s.resolveBreed(ctx, &draft); err != nil {
		return nil, err
	}

	collection := s.db.Collection(db.ListingsCollection)
	now := time.Now().UTC()
	var newListing *models.Listing

	operation := func() error {
		l := draft
		l.ID = utils.NewSixID()
		l.CreatedAt = now
		l.UpdatedAt = now
		l.Slug = utils.ListingSlug(l.Name, l.ID)
		newListing = &l
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		listingIDStr := "<unknown>"
		if newListing != nil {
			listingIDStr = newListing.ID.String()
		}
		return nil, fmt.Errorf("failed to insert new listing for user %s (last attempted listing ID: %s) after multiple retries: %w",
			actor.UserID.String(), listingIDStr, err)
	}

	log.Printf("Listing %s (%s) created by %s", newListing.ID.String(), newListing.Slug, actor.UserID.String())
	return newListing, nil
}

// applyListingInput copies the set fields of in onto l, validating enums and sanitising text.
func applyListingInput(l *models.Listing, in models.ListingInput) error {
	if in.Name != nil {
		name := utils.SanitizeText(*in.Name)
		if name == "" {
			return validationf("Name cannot be empty")
		}
		l.Name = name
	}
	if in.BreedID != nil {
		breedID, err := utils.ParseSixID(strings.TrimSpace(*in.BreedID))
		if err != nil {
			return validationf("Invalid breed_id")
		}
		l.BreedID = breedID
	}
	if in.Description != nil {
		l.Description = utils.SanitizeText(*in.Description)
	}
	if in.Sex != nil {
		sex, err := models.ParseSex(strings.ToLower(strings.TrimSpace(*in.Sex)))
		if err != nil {
			return validationf("Invalid sex")
		}
		l.Sex = sex
	}
	if in.AgeMonths != nil {
		if *in.AgeMonths < 0 {
			return validationf("Age cannot be negative")
		}
		age := *in.AgeMonths
		l.AgeMonths = &age
	}
	if in.ImageKey != nil {
		l.ImageKey = strings.TrimSpace(*in.ImageKey)
	}
	if in.Status != nil {
		status, err := models.ParseListingStatus(*in.Status)
		if err != nil {
			return validationf("Invalid status value")
		}
		l.Status = status
	}
	if in.Visibility != nil {
		visibility, err := models.ParseVisibility(*in.Visibility)
		if err != nil {
			return validationf("Invalid visibility value")
		}
		l.Visibility = visibility
	}
	return nil
}

// resolveBreed checks that the listing's breed exists and copies its name onto the listing.
func (s *listingService) resolveBreed(ctx context.Context, l *models.Listing) error {
	breed, err := s.breeds.FindBreedByID(ctx, l.BreedID)
	if err != nil {
		return err
	}
	l.Breed = breed.Name
	return nil
}

// FindListingByID finds a listing by its ID regardless of status or visibility.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(db.ListingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "Listing")
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

// FindListingsByIDs loads several listings at once. Missing IDs are absent from the map.
func (s *listingService) FindListingsByIDs(ctx context.Context, listingIDs []utils.SixID) (map[utils.SixID]*models.Listing, error) {
	result := make(map[utils.SixID]*models.Listing, len(listingIDs))
	if len(listingIDs) == 0 {
		return result, nil
	}
	cursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": listingIDs}})
	if err != nil {
		return nil, fmt.Errorf("error loading %d listings: %w", len(listingIDs), err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("error decoding listings: %w", err)
	}
	for i := range listings {
		result[listings[i].ID] = &listings[i]
	}
	return result, nil
}

// FindVisibleListing resolves an ID or slug. Drafts, archived and private listings are only
// returned to their owner and admins; everyone else gets ErrNotFound.
func (s *listingService) FindVisibleListing(ctx context.Context, idOrSlug string, viewer *models.Principal) (*models.Listing, error) {
	filter := bson.M{"slug": strings.ToLower(strings.TrimSpace(idOrSlug))}
	if id, err := utils.ParseSixID(idOrSlug); err == nil {
		filter = bson.M{"$or": bson.A{bson.M{"_id": id}, filter}}
	}

	var listing models.Listing
	err := s.db.Collection(db.ListingsCollection).FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("Dog not found")
		}
		return nil, fmt.Errorf("error finding listing %q: %w", idOrSlug, err)
	}

	if listing.PubliclyVisible() {
		return &listing, nil
	}
	if viewer != nil && viewer.Role.CanManageListing(viewer.UserID, listing.BreederID) {
		return &listing, nil
	}
	return nil, notFoundf("Dog not found")
}

// loadManageable loads a listing and checks that actor may change it.
func (s *listingService) loadManageable(ctx context.Context, actor models.Principal, listingID utils.SixID) (*models.Listing, error) {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanManageListing(actor.UserID, listing.BreederID) {
		return nil, forbiddenf("You cannot modify this listing")
	}
	return listing, nil
}

// UpdateListing applies the set fields of in. The slug follows the name.
func (s *listingService) UpdateListing(ctx context.Context, actor models.Principal, listingID utils.SixID, in models.ListingInput) (*models.Listing, error) {
	current, err := s.loadManageable(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	updated := *current
	if err := applyListingInput(&updated, in); err != nil {
		return nil, err
	}
	if updated.BreedID != current.BreedID {
		if err := s.resolveBreed(ctx, &updated); err != nil {
			return nil, err
		}
	}

	set := bson.M{
		"name":        updated.Name,
		"breed_id":    updated.BreedID,
		"breed":       updated.Breed,
		"description": updated.Description,
		"sex":         updated.Sex,
		"image_key":   updated.ImageKey,
		"status":      updated.Status,
		"visibility":  updated.Visibility,
		"slug":        utils.ListingSlug(updated.Name, updated.ID),
		"updated_at":  time.Now().UTC(),
	}
	if updated.AgeMonths != nil {
		set["age_months"] = *updated.AgeMonths
	}
	return s.updateAndReturn(ctx, listingID, bson.M{"$set": set})
}

// SetListingStatus publishes or archives a listing.
func (s *listingService) SetListingStatus(ctx context.Context, actor models.Principal, listingID utils.SixID, status models.ListingStatus) (*models.Listing, error) {
	switch status {
	case models.ListingStatusPublished, models.ListingStatusArchived:
	default:
		return nil, validationf("Invalid status value")
	}
	if _, err := s.loadManageable(ctx, actor, listingID); err != nil {
		return nil, err
	}
	return s.updateAndReturn(ctx, listingID, bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
}

func (s *listingService) updateAndReturn(ctx context.Context, listingID utils.SixID, update bson.M) (*models.Listing, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var listing models.Listing
	err := s.db.Collection(db.ListingsCollection).FindOneAndUpdate(ctx, bson.M{"_id": listingID}, update, opts).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translateNoDocuments(err, "Listing")
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

// DeleteListing hard-deletes the listing and drops it from every user's favorites.
// Conversations about it are kept.
func (s *listingService) DeleteListing(ctx context.Context, actor models.Principal, listingID utils.SixID) error {
	if _, err := s.loadManageable(ctx, actor, listingID); err != nil {
		return err
	}
	if _, err := s.db.Collection(db.ListingsCollection).DeleteOne(ctx, bson.M{"_id": listingID}); err != nil {
		return fmt.Errorf("db error deleting listing %s: %w", listingID.String(), err)
	}
	_, err := s.db.Collection(db.UsersCollection).UpdateMany(ctx,
		bson.M{"favorites": listingID},
		bson.M{"$pull": bson.M{"favorites": listingID}})
	if err != nil {
		log.Printf("WARN: listing %s deleted but favorites cleanup failed: %v", listingID.String(), err)
	}
	return nil
}

// SearchListings returns a page of published, public listings filtered by breed and a free
// text query over name, breed and description. The breed can be given by ID or by a
// case-insensitive substring of its name, as can the query.
func (s *listingService) SearchListings(ctx context.Context, search models.ListingSearch) (*models.ListingPage, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	page := search.Page
	if page < 1 {
		page = 1
	}

	filter := bson.M{
		"status":     models.ListingStatusPublished,
		"visibility": models.VisibilityPublic,
	}
	if !search.BreedID.IsZero() {
		filter["breed_id"] = search.BreedID
	}
	if breed := strings.TrimSpace(search.Breed); breed != "" {
		filter["breed"] = bson.M{"$regex": regexp.QuoteMeta(breed), "$options": "i"}
	}
	if q := strings.TrimSpace(search.Query); q != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"breed": pattern},
			bson.M{"description": pattern},
		}
	}

	collection := s.db.Collection(db.ListingsCollection)
	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute listing search query: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.Listing{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode listing search results: %w", err)
	}

	pages := (total + int64(limit) - 1) / int64(limit)
	return &models.ListingPage{Items: items, Total: total, Page: page, Pages: pages}, nil
}

// FindListingsByBreeder returns every listing of the breeder, most recently updated first.
func (s *listingService) FindListingsByBreeder(ctx context.Context, breederID utils.SixID) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, bson.M{"breeder_id": breederID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding listings of breeder %s: %w", breederID.String(), err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("error decoding listings: %w", err)
	}
	return listings, nil
}

// SetListingImage points the listing at a processed image.
func (s *listingService) SetListingImage(ctx context.Context, listingID utils.SixID, imageKey string) error {
	res, err := s.db.Collection(db.ListingsCollection).UpdateByID(ctx, listingID, bson.M{"$set": bson.M{
		"image_key":  imageKey,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set image of listing %s: %w", listingID.String(), err)
	}
	if res.MatchedCount == 0 {
		return notFoundf("Listing not found")
	}
	return nil
}
