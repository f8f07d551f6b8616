package models

import (
	"time"

	"breederhub/api/internal/utils"
)

// Account events. Credential methods are recorded under these names instead of the request
// that carried them, so their arguments never reach the trail.
const (
	AuditLoginSuccess         = "LOGIN_SUCCESS"
	AuditLoginFailed          = "LOGIN_FAILED"
	AuditRegister             = "REGISTER"
	AuditRegisterFailed       = "REGISTER_FAILED"
	AuditTokenRefreshed       = "TOKEN_REFRESHED"
	AuditPasswordChanged      = "PASSWORD_CHANGED"
	AuditPasswordChangeFailed = "PASSWORD_CHANGE_FAILED"
)

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	Base       `bson:",inline"`
	UserID     *utils.SixID   `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Action     string         `bson:"action" json:"action"`
	Method     string         `bson:"method,omitempty" json:"method,omitempty"`
	Path       string         `bson:"path,omitempty" json:"path,omitempty"`
	Status     int            `bson:"status,omitempty" json:"status,omitempty"`
	DurationMs int64          `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	IP         string         `bson:"ip,omitempty" json:"ip,omitempty"`
	Metadata   map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp  time.Time      `bson:"timestamp" json:"timestamp"`
}
