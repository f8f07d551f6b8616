package models

import (
	"fmt"
	"time"
)

// SubmissionKind tells which public form a submission came from.
type SubmissionKind string

const (
	SubmissionContact  SubmissionKind = "contact"
	SubmissionFeedback SubmissionKind = "feedback"
)

// ParseSubmissionKind validates a kind string.
func ParseSubmissionKind(s string) (SubmissionKind, error) {
	switch k := SubmissionKind(s); k {
	case SubmissionContact, SubmissionFeedback:
		return k, nil
	default:
		return "", fmt.Errorf("unknown submission kind %q", s)
	}
}

// Submission is a message left through the contact or feedback form.
type Submission struct {
	Base      `bson:",inline"`
	Kind      SubmissionKind `bson:"kind" json:"kind"`
	Name      string         `bson:"name" json:"name"`
	Email     string         `bson:"email,omitempty" json:"email,omitempty"`
	Message   string         `bson:"message" json:"message"`
	IP        string         `bson:"ip,omitempty" json:"ip,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// SubmissionInput is what the public forms post.
type SubmissionInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SubmissionFilter narrows the admin submission list.
type SubmissionFilter struct {
	Kind    string
	Search  string
	SortAsc bool
	Page    int
	Limit   int
}

// SubmissionPage is one page of submissions.
type SubmissionPage struct {
	Items []Submission `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Pages int64        `json:"pages"`
}
