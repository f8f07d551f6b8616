package models

import (
	"fmt"
	"strings"

	"breederhub/api/internal/utils"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleBreeder  Role = "breeder"
	RoleCustomer Role = "customer"
)

// AllRoles lists every valid role.
var AllRoles = []Role{RoleAdmin, RoleBreeder, RoleCustomer}

// ParseRole converts user input to a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleBreeder, RoleCustomer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBreeder, RoleCustomer:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether r grants administrative access.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleBreeder, RoleCustomer:
		return false
	default:
		return false
	}
}

// CanPublishListings reports whether r may create listings.
func (r Role) CanPublishListings() bool {
	switch r {
	case RoleAdmin, RoleBreeder:
		return true
	case RoleCustomer:
		return false
	default:
		return false
	}
}

// CanManageListing reports whether a principal with role r may edit or delete a listing
// owned by ownerID.
func (r Role) CanManageListing(actorID, ownerID utils.SixID) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleBreeder:
		return actorID == ownerID
	case RoleCustomer:
		return false
	default:
		return false
	}
}

// SelfRegisterable reports whether users may pick r at sign-up.
func (r Role) SelfRegisterable() bool {
	switch r {
	case RoleBreeder, RoleCustomer:
		return true
	case RoleAdmin:
		return false
	default:
		return false
	}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID utils.SixID
	Role   Role
}
