package handlers_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"breederhub/api/internal/api/handlers"
	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"breederhub/api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type listingMocks struct {
	listings *MockListingService
	users    *MockUserService
	storage  *MockS3Storage
}

func setupListingRouter(principal *models.Principal) (*gin.Engine, listingMocks) {
	m := listingMocks{listings: new(MockListingService), users: new(MockUserService), storage: new(MockS3Storage)}
	h := handlers.NewRestListingHandler(m.listings, m.users, m.storage)
	r := gin.New()
	h.RegisterRoutes(r.Group("/v1"), r.Group("/v1", withPrincipal(principal)), withPrincipal(principal))
	return r, m
}

func publishedListing(breederID utils.SixID) *models.Listing {
	return &models.Listing{
		Base:       models.Base{ID: utils.NewSixID()},
		BreederID:  breederID,
		Name:       "Rex",
		Breed:      "Beagle",
		Status:     models.ListingStatusPublished,
		Visibility: models.VisibilityPublic,
		Slug:       "rex",
	}
}

func TestRestListingHandler_SearchListings(t *testing.T) {
	r, m := setupListingRouter(nil)
	withImage := publishedListing(utils.NewSixID())
	withImage.ImageKey = "listings/u1/rex.jpg"
	plain := publishedListing(utils.NewSixID())

	m.listings.On("SearchListings", mock.Anything, models.ListingSearch{Breed: "Beagle", Query: "rex", Page: 1}).
		Return(&models.ListingPage{Items: []models.Listing{*withImage, *plain}, Total: 2, Page: 1, Pages: 1}, nil)
	m.storage.On("GeneratePresignedGetURL", mock.Anything, "listings/u1/rex.jpg").Return("https://signed/rex.jpg", nil)

	w := doRequest(r, http.MethodGet, "/v1/dogs?breed=Beagle&q=rex", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page models.ListingPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "https://signed/rex.jpg", page.Items[0].ImageURL)
	assert.Empty(t, page.Items[1].ImageURL)
	m.storage.AssertNumberOfCalls(t, "GeneratePresignedGetURL", 1)
}

func TestRestListingHandler_SearchListings_ByBreedID(t *testing.T) {
	r, m := setupListingRouter(nil)
	breedID := utils.NewSixID()
	m.listings.On("SearchListings", mock.Anything, models.ListingSearch{BreedID: breedID, Page: 1}).
		Return(&models.ListingPage{Page: 1}, nil)

	w := doRequest(r, http.MethodGet, "/v1/dogs?breed_id="+breedID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(r, http.MethodGet, "/v1/dogs?breed_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid breed_id", decodeMap(t, w)["error"])
	m.listings.AssertNumberOfCalls(t, "SearchListings", 1)
}

func TestRestListingHandler_SearchListings_EmptyPage(t *testing.T) {
	r, m := setupListingRouter(nil)
	m.listings.On("SearchListings", mock.Anything, mock.Anything).Return(&models.ListingPage{Page: 1}, nil)

	w := doRequest(r, http.MethodGet, "/v1/dogs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decodeMap(t, w)["items"])
}

func TestRestListingHandler_GetListing(t *testing.T) {
	viewer := newPrincipal(models.RoleCustomer)
	r, m := setupListingRouter(viewer)
	listing := publishedListing(utils.NewSixID())
	listing.ImageKey = "listings/u1/rex.jpg"

	m.listings.On("FindVisibleListing", mock.Anything, "rex", viewer).Return(listing, nil)
	m.listings.On("FindVisibleListing", mock.Anything, "hidden", viewer).Return(nil, fmt.Errorf("%w: Listing not found", services.ErrNotFound))
	m.storage.On("GeneratePresignedGetURL", mock.Anything, "listings/u1/rex.jpg").Return("", errors.New("no credentials"))

	w := doRequest(r, http.MethodGet, "/v1/dogs/rex", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, listing.ID, got.ID)
	assert.Empty(t, got.ImageURL)

	w = doRequest(r, http.MethodGet, "/v1/dogs/hidden", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Listing not found", decodeMap(t, w)["error"])
}

func TestRestListingHandler_CreateListing(t *testing.T) {
	breeder := newPrincipal(models.RoleBreeder)
	r, m := setupListingRouter(breeder)
	created := publishedListing(breeder.UserID)

	breedID := utils.NewSixID().String()
	m.listings.On("CreateListing", mock.Anything, *breeder, mock.MatchedBy(func(in models.ListingInput) bool {
		return in.Name != nil && *in.Name == "Rex" && in.BreedID != nil && *in.BreedID == breedID
	})).Return(created, nil)

	w := doRequest(r, http.MethodPost, "/v1/dogs", map[string]any{"name": "Rex", "breed_id": breedID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, created.ID.String(), decodeMap(t, w)["id"])
}

func TestRestListingHandler_CreateListing_CustomerForbidden(t *testing.T) {
	customer := newPrincipal(models.RoleCustomer)
	r, m := setupListingRouter(customer)
	m.listings.On("CreateListing", mock.Anything, *customer, mock.Anything).
		Return(nil, fmt.Errorf("%w: Only breeders can create listings", services.ErrForbidden))

	w := doRequest(r, http.MethodPost, "/v1/dogs", map[string]any{"name": "Rex"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only breeders can create listings", decodeMap(t, w)["error"])
}

func TestRestListingHandler_SetStatusAndDelete(t *testing.T) {
	breeder := newPrincipal(models.RoleBreeder)
	r, m := setupListingRouter(breeder)
	listing := publishedListing(breeder.UserID)
	archived := *listing
	archived.Status = models.ListingStatusArchived

	m.listings.On("SetListingStatus", mock.Anything, *breeder, listing.ID, models.ListingStatusArchived).Return(&archived, nil)
	m.listings.On("DeleteListing", mock.Anything, *breeder, listing.ID).Return(nil)

	w := doRequest(r, http.MethodPost, "/v1/dogs/"+listing.ID.String()+"/status", handlers.ListingStatusRequest{Status: "archived"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "archived", decodeMap(t, w)["status"])

	w = doRequest(r, http.MethodDelete, "/v1/dogs/"+listing.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dog deleted", decodeMap(t, w)["message"])

	w = doRequest(r, http.MethodDelete, "/v1/dogs/bad-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid listing ID format", decodeMap(t, w)["error"])
}

func TestRestListingHandler_ListFavorites_SkipsHidden(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupListingRouter(me)
	visible := publishedListing(utils.NewSixID())
	hidden := publishedListing(utils.NewSixID())
	hidden.Visibility = models.VisibilityPrivate
	gone := utils.NewSixID()

	favorites := []utils.SixID{hidden.ID, visible.ID, gone}
	m.users.On("FindByID", mock.Anything, me.UserID).Return(&models.User{Base: models.Base{ID: me.UserID}, Favorites: favorites}, nil)
	m.listings.On("FindListingsByIDs", mock.Anything, favorites).Return(map[utils.SixID]*models.Listing{
		visible.ID: visible,
		hidden.ID:  hidden,
	}, nil)

	w := doRequest(r, http.MethodGet, "/v1/favorites", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, visible.ID, got[0].ID)
}

func TestRestListingHandler_Favorites(t *testing.T) {
	me := newPrincipal(models.RoleCustomer)
	r, m := setupListingRouter(me)
	listing := publishedListing(utils.NewSixID())
	missing := utils.NewSixID()

	m.listings.On("FindVisibleListing", mock.Anything, listing.ID.String(), me).Return(listing, nil)
	m.listings.On("FindVisibleListing", mock.Anything, missing.String(), me).Return(nil, fmt.Errorf("%w: Listing not found", services.ErrNotFound))
	m.users.On("AddFavorite", mock.Anything, me.UserID, listing.ID).Return(nil)
	m.users.On("RemoveFavorite", mock.Anything, me.UserID, listing.ID).Return(nil)

	w := doRequest(r, http.MethodPost, "/v1/favorites/"+listing.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Added to favorites", decodeMap(t, w)["message"])

	w = doRequest(r, http.MethodPost, "/v1/favorites/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	m.users.AssertNotCalled(t, "AddFavorite", mock.Anything, me.UserID, missing)

	w = doRequest(r, http.MethodDelete, "/v1/favorites/"+listing.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Removed from favorites", decodeMap(t, w)["message"])
}
