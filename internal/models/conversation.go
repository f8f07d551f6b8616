package models

import (
	"time"

	"breederhub/api/internal/utils"
)

// Conversation groups the messages two users exchange about one listing.
type Conversation struct {
	Base           `bson:",inline"`
	Timestamps     `bson:",inline"`
	Participants   [2]utils.SixID `bson:"participants" json:"participants"`
	ParticipantKey string         `bson:"participant_key" json:"-"`
	ListingID      utils.SixID    `bson:"listing_id" json:"listing_id"`
	LastMessageID  *utils.SixID   `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastMessageAt  *time.Time     `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
}

// SortedPair orders two user IDs so that (a, b) and (b, a) produce the same pair and key.
func SortedPair(a, b utils.SixID) ([2]utils.SixID, string) {
	if a.Compare(b) > 0 {
		a, b = b, a
	}
	return [2]utils.SixID{a, b}, a.String() + ":" + b.String()
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID utils.SixID) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns the participant that is not userID. ok is false when userID
// does not take part in the conversation.
func (c *Conversation) OtherParticipant(userID utils.SixID) (other utils.SixID, ok bool) {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	default:
		return utils.SixID{}, false
	}
}

// ConversationPreview is one inbox row.
type ConversationPreview struct {
	ID               utils.SixID     `json:"id"`
	OtherParticipant PublicUser      `json:"other_participant"`
	Listing          *ListingSummary `json:"listing,omitempty"`
	LastMessage      *MessageSnippet `json:"last_message,omitempty"`
	UnreadCount      int64           `json:"unread_count"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ListingSummary identifies the listing a conversation is about.
type ListingSummary struct {
	ID   utils.SixID `json:"id"`
	Name string      `json:"name"`
	Slug string      `json:"slug"`
}

// MessageSnippet is the truncated last message of a conversation.
type MessageSnippet struct {
	ID        utils.SixID `json:"id"`
	FromUser  utils.SixID `json:"from_user"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}
