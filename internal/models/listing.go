package models

import (
	"fmt"

	"breederhub/api/internal/utils"
)

// ListingStatus is the publication state of a listing.
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "draft"
	ListingStatusPublished ListingStatus = "published"
	ListingStatusArchived  ListingStatus = "archived"
)

// ParseListingStatus validates a status string.
func ParseListingStatus(s string) (ListingStatus, error) {
	switch st := ListingStatus(s); st {
	case ListingStatusDraft, ListingStatusPublished, ListingStatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("unknown listing status %q", s)
	}
}

// Visibility controls whether a listing shows up for other users.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility validates a visibility string.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityPrivate:
		return v, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// Sex of the dog.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ParseSex validates a sex string. An empty string is allowed and means unknown.
func ParseSex(s string) (Sex, error) {
	switch sx := Sex(s); sx {
	case SexMale, SexFemale, "":
		return sx, nil
	default:
		return "", fmt.Errorf("unknown sex %q", s)
	}
}

// Listing is a dog offered by a breeder.
type Listing struct {
	Base        `bson:",inline"`
	Timestamps  `bson:",inline"`
	BreederID   utils.SixID   `bson:"breeder_id" json:"breeder_id"`
	Name        string        `bson:"name" json:"name"`
	BreedID     utils.SixID   `bson:"breed_id" json:"breed_id"`
	Breed       string        `bson:"breed" json:"breed"` // catalog name at the time of the last edit
	Description string        `bson:"description,omitempty" json:"description,omitempty"`
	Sex         Sex           `bson:"sex,omitempty" json:"sex,omitempty"`
	AgeMonths   *int          `bson:"age_months,omitempty" json:"age_months,omitempty"`
	ImageKey    string        `bson:"image_key,omitempty" json:"image_key,omitempty"`
	ImageURL    string        `bson:"-" json:"image_url,omitempty"` // signed, filled per response
	Status      ListingStatus `bson:"status" json:"status"`
	Visibility  Visibility    `bson:"visibility" json:"visibility"`
	Slug        string        `bson:"slug" json:"slug"`
}

// PubliclyVisible reports whether anyone may see the listing.
func (l *Listing) PubliclyVisible() bool {
	return l.Status == ListingStatusPublished && l.Visibility == VisibilityPublic
}

// ListingInput carries the editable fields of a listing. Nil pointers are left unchanged on update.
type ListingInput struct {
	Name        *string `json:"name"`
	BreedID     *string `json:"breed_id"`
	Description *string `json:"description"`
	Sex         *string `json:"sex"`
	AgeMonths   *int    `json:"age_months"`
	ImageKey    *string `json:"image_key"`
	Status      *string `json:"status"`
	Visibility  *string `json:"visibility"`
}

// ListingSearch describes a public listing query.
type ListingSearch struct {
	BreedID utils.SixID
	Breed   string
	Query   string
	Page    int
	Limit   int
}

// ListingPage is one page of search results.
type ListingPage struct {
	Items []Listing `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Pages int64     `json:"pages"`
}
