package models

import (
	"time"

	"breederhub/api/internal/utils"
)

// BlockRelation stops Blocked from starting new messages to Blocker.
type BlockRelation struct {
	Base      `bson:",inline"`
	Blocker   utils.SixID `bson:"blocker" json:"blocker"`
	Blocked   utils.SixID `bson:"blocked" json:"blocked"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// BlockedUserView is a row of the caller's block list.
type BlockedUserView struct {
	User         PublicUser `json:"user"`
	BlockedSince time.Time  `json:"blocked_since"`
}
