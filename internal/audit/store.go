package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adminpanel/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMissingActor  = errors.New("activity record requires an actor")
	ErrInvalidAction = errors.New("activity record has an unknown action")
)

// Store is the append-only sink for activity records and login attempts.
// It exposes no update or delete operations.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// AppendActivity inserts rec. The id and timestamp are assigned here and
// any caller-supplied values are discarded.
func (s *Store) AppendActivity(ctx context.Context, rec *models.ActivityLog) error {
	if rec.UserID == 0 {
		return ErrMissingActor
	}
	if !rec.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, rec.Action)
	}
	rec.ID = 0
	rec.Timestamp = s.now().UTC()
	rec.TargetSummary = models.Truncate(rec.TargetSummary, models.MaxTargetSummaryLength)
	rec.UserAgent = models.Truncate(rec.UserAgent, models.MaxUserAgentLength)
	if rec.Changes == nil {
		rec.Changes = map[string]models.FieldChange{}
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error
}

// AppendLoginAttempt inserts a. Like AppendActivity it owns id and timestamp.
func (s *Store) AppendLoginAttempt(ctx context.Context, a *models.LoginAttempt) error {
	a.ID = 0
	a.Timestamp = s.now().UTC()
	a.Username = models.Truncate(a.Username, 150)
	a.UserAgent = models.Truncate(a.UserAgent, models.MaxUserAgentLength)
	a.FailureReason = models.Truncate(a.FailureReason, models.MaxFailureReasonLength)
	return s.db.WithContext(ctx).Create(a).Error
}

// ActivityFilter narrows QueryActivity. Zero values mean "any".
type ActivityFilter struct {
	ActorID    *uint
	Action     models.Action
	TargetType string
	Search     string
	Ordering   string
	Page       int
	PageSize   int
}

// LoginAttemptFilter narrows QueryLoginAttempts.
type LoginAttemptFilter struct {
	Success  *bool
	Username string
	Search   string
	Ordering string
	Page     int
	PageSize int
}

var activityOrderings = map[string]string{
	"timestamp":      "activity_logs.timestamp",
	"action":         "activity_logs.action",
	"user__username": "(SELECT users.username FROM users WHERE users.id = activity_logs.user_id)",
}

var loginOrderings = map[string]string{
	"timestamp": "login_attempts.timestamp",
	"username":  "login_attempts.username",
	"success":   "login_attempts.success",
}

// QueryActivity returns matching activity records, newest first unless
// another ordering is requested. Actors are preloaded.
func (s *Store) QueryActivity(ctx context.Context, f ActivityFilter) (models.Page[models.ActivityLog], error) {
	filters := s.activityScope(f)

	page := models.Page[models.ActivityLog]{Results: []models.ActivityLog{}}
	page.Page, page.PageSize = models.NormalizePage(f.Page, f.PageSize)

	if err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(filters).Count(&page.Count).Error; err != nil {
		return page, err
	}

	order := models.OrderClause(f.Ordering, activityOrderings, "activity_logs.timestamp DESC") + ", activity_logs.id DESC"
	err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(filters).
		Preload("User").
		Order(order).
		Limit(page.PageSize).
		Offset((page.Page - 1) * page.PageSize).
		Find(&page.Results).Error
	return page, err
}

// QueryLoginAttempts returns matching login attempts, newest first by default.
func (s *Store) QueryLoginAttempts(ctx context.Context, f LoginAttemptFilter) (models.Page[models.LoginAttempt], error) {
	filters := func(q *gorm.DB) *gorm.DB {
		if f.Success != nil {
			q = q.Where("success = ?", *f.Success)
		}
		if f.Username != "" {
			q = q.Where("username = ?", f.Username)
		}
		if term := strings.TrimSpace(f.Search); term != "" {
			like := "%" + term + "%"
			q = q.Where("username LIKE ? OR ip_address LIKE ?", like, like)
		}
		return q
	}

	page := models.Page[models.LoginAttempt]{Results: []models.LoginAttempt{}}
	page.Page, page.PageSize = models.NormalizePage(f.Page, f.PageSize)

	if err := s.db.WithContext(ctx).Model(&models.LoginAttempt{}).Scopes(filters).Count(&page.Count).Error; err != nil {
		return page, err
	}

	order := models.OrderClause(f.Ordering, loginOrderings, "login_attempts.timestamp DESC") + ", login_attempts.id DESC"
	err := s.db.WithContext(ctx).Model(&models.LoginAttempt{}).Scopes(filters).
		Order(order).
		Limit(page.PageSize).
		Offset((page.Page - 1) * page.PageSize).
		Find(&page.Results).Error
	return page, err
}

// ExportActivity returns up to limit matching records in query order,
// ignoring pagination.
func (s *Store) ExportActivity(ctx context.Context, f ActivityFilter, limit int) ([]models.ActivityLog, error) {
	logs := []models.ActivityLog{}
	order := models.OrderClause(f.Ordering, activityOrderings, "activity_logs.timestamp DESC") + ", activity_logs.id DESC"
	err := s.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(s.activityScope(f)).
		Preload("User").
		Order(order).
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (s *Store) activityScope(f ActivityFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.ActorID != nil {
			q = q.Where("activity_logs.user_id = ?", *f.ActorID)
		}
		if f.Action != "" {
			q = q.Where("activity_logs.action = ?", f.Action)
		}
		if f.TargetType != "" {
			q = q.Where("activity_logs.target_type = ?", f.TargetType)
		}
		if term := strings.TrimSpace(f.Search); term != "" {
			like := "%" + term + "%"
			actors := s.db.Model(&models.User{}).Select("id").
				Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
			q = q.Where(
				s.db.Where("activity_logs.user_id IN (?)", actors).
					Or("activity_logs.target_summary LIKE ?", like).
					Or("activity_logs.ip_address LIKE ?", like),
			)
		}
		return q
	}
}
