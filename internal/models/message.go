package models

import (
	"time"

	"breederhub/api/internal/utils"
)

// DefaultMessageSubject is used for messages started from a listing page.
const DefaultMessageSubject = "Inquiry about dog"

// Message is immutable after creation except for Read.
type Message struct {
	Base           `bson:",inline"`
	ConversationID utils.SixID `bson:"conversation_id" json:"conversation_id"`
	FromUser       utils.SixID `bson:"from_user" json:"from_user"`
	ToUser         utils.SixID `bson:"to_user" json:"to_user"`
	ListingID      utils.SixID `bson:"listing_id" json:"listing_id"`
	Subject        string      `bson:"subject,omitempty" json:"subject,omitempty"`
	Body           string      `bson:"body" json:"body"`
	Read           bool        `bson:"read" json:"read"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
	// Seq breaks created_at ties; BSON dates only keep millisecond precision.
	Seq int64 `bson:"seq" json:"-"`
}
