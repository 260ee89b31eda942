package models

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
)

// ErrImmutableRecord is returned when something tries to change an audit row.
var ErrImmutableRecord = errors.New("audit records are append-only")

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionView   Action = "view"
	ActionExport Action = "export"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout, ActionView, ActionExport:
		return true
	}
	return false
}

// FieldChange is one entry of an update diff.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

const (
	MaxTargetSummaryLength = 200
	MaxUserAgentLength     = 500
	MaxFailureReasonLength = 200
)

// ActivityLog records one completed user-triggered operation.
type ActivityLog struct {
	ID            uint                   `json:"id" gorm:"primaryKey"`
	UserID        uint                   `json:"user_id" gorm:"not null;index:idx_activity_user_ts,priority:1"`
	User          User                   `json:"-" gorm:"foreignKey:UserID"`
	Action        Action                 `json:"action" gorm:"type:varchar(20);not null;index:idx_activity_action_ts,priority:1"`
	TargetType    *string                `json:"target_type" gorm:"type:varchar(50);index:idx_activity_target_ts,priority:1"`
	TargetID      *string                `json:"target_id" gorm:"type:varchar(64)"`
	TargetSummary string                 `json:"target_summary" gorm:"type:varchar(200)"`
	Changes       map[string]FieldChange `json:"changes" gorm:"serializer:json;type:text"`
	Timestamp     time.Time              `json:"timestamp" gorm:"not null;index:idx_activity_user_ts,priority:2;index:idx_activity_action_ts,priority:2;index:idx_activity_target_ts,priority:2"`
	IPAddress     *string                `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent     string                 `json:"user_agent" gorm:"type:varchar(500)"`
}

func (ActivityLog) BeforeUpdate(*gorm.DB) error { return ErrImmutableRecord }
func (ActivityLog) BeforeDelete(*gorm.DB) error { return ErrImmutableRecord }

// LoginAttempt records one authentication attempt, keyed by the submitted
// username rather than a resolved user.
type LoginAttempt struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Username      string    `json:"username" gorm:"type:varchar(150);not null;index:idx_login_username_ts,priority:1"`
	IPAddress     string    `json:"ip_address" gorm:"type:varchar(45);index:idx_login_ip_ts,priority:1"`
	UserAgent     string    `json:"user_agent" gorm:"type:varchar(500)"`
	Success       bool      `json:"success" gorm:"not null;index:idx_login_success_ts,priority:1"`
	Timestamp     time.Time `json:"timestamp" gorm:"not null;index:idx_login_username_ts,priority:2;index:idx_login_ip_ts,priority:2;index:idx_login_success_ts,priority:2"`
	FailureReason string    `json:"failure_reason" gorm:"type:varchar(200)"`
}

func (LoginAttempt) BeforeUpdate(*gorm.DB) error { return ErrImmutableRecord }
func (LoginAttempt) BeforeDelete(*gorm.DB) error { return ErrImmutableRecord }

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func sortStrings(s []string) {
	sort.Strings(s)
}
