package models

import (
	"strings"
	"time"

	"breederhub/api/internal/utils"
)

// Consent records the user's agreement to the terms in force at the time.
type Consent struct {
	Agreed    bool       `bson:"agreed" json:"agreed"`
	Timestamp *time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	IP        string     `bson:"ip,omitempty" json:"-"`
	Version   string     `bson:"version,omitempty" json:"version,omitempty"`
}

// KennelLocation is the free-form location of a breeder's kennel.
type KennelLocation struct {
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	State   string `bson:"state,omitempty" json:"state,omitempty"`
	Country string `bson:"country,omitempty" json:"country,omitempty"`
}

// BreederProfile is only populated for breeders.
type BreederProfile struct {
	KennelName  string          `bson:"kennel_name,omitempty" json:"kennel_name,omitempty"`
	Website     string          `bson:"website,omitempty" json:"website,omitempty"`
	Phone       string          `bson:"phone,omitempty" json:"phone,omitempty"`
	Location    *KennelLocation `bson:"location,omitempty" json:"location,omitempty"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
}

// User represents an account.
type User struct {
	Base            `bson:",inline"`
	Timestamps      `bson:",inline"`
	Username        string          `bson:"username" json:"username"`
	Email           string          `bson:"email" json:"email"`
	PasswordHash    string          `bson:"password" json:"-"`
	Role            Role            `bson:"role" json:"role"`
	FirstName       string          `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName        string          `bson:"last_name,omitempty" json:"last_name,omitempty"`
	ProfileImageKey string          `bson:"profile_image_key,omitempty" json:"profile_image_key,omitempty"`
	Verified        bool            `bson:"verified" json:"verified"`
	Locked          bool            `bson:"locked" json:"locked"`
	Consent         Consent         `bson:"consent" json:"consent"`
	BreederProfile  *BreederProfile `bson:"breeder_profile,omitempty" json:"breeder_profile,omitempty"`
	Favorites       []utils.SixID   `bson:"favorites" json:"favorites"`
}

// DisplayName prefers the full name, then the kennel name, then the username.
func (u *User) DisplayName() string {
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.BreederProfile != nil && u.BreederProfile.KennelName != "" {
		return u.BreederProfile.KennelName
	}
	return u.Username
}

// PublicUser is the subset of a user shown to other users.
type PublicUser struct {
	ID             utils.SixID     `json:"id"`
	Username       string          `json:"username"`
	DisplayName    string          `json:"display_name"`
	Role           Role            `json:"role"`
	Verified       bool            `json:"verified"`
	BreederProfile *BreederProfile `json:"breeder_profile,omitempty"`
	DateJoined     string          `json:"date_joined"`
}

// Public projects u for other users.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName(),
		Role:           u.Role,
		Verified:       u.Verified,
		BreederProfile: u.BreederProfile,
		DateJoined:     u.CreatedAt.Format("2006-01-02"),
	}
}
