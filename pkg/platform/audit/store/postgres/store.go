// Package postgres persists audit events through GORM on top of the shared
// connection pool. Schema changes stay in the migrations directory; GORM is
// never asked to migrate.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	audit "lockgate/pkg/platform/audit"
)

// row maps one audit_events record.
type row struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey"`
	Category  string    `gorm:"column:category"`
	Timestamp time.Time `gorm:"column:timestamp"`
	SubjectID string    `gorm:"column:subject_id"`
	Email     string    `gorm:"column:email"`
	Role      string    `gorm:"column:role"`
	Site      string    `gorm:"column:site"`
	Action    string    `gorm:"column:action"`
	Decision  string    `gorm:"column:decision"`
	Reason    string    `gorm:"column:reason"`
	Origin    string    `gorm:"column:origin"`
	Device    string    `gorm:"column:device"`
	RequestID string    `gorm:"column:request_id"`
	ActorID   string    `gorm:"column:actor_id"`
}

func (row) TableName() string { return "audit_events" }

func fromEvent(e audit.Event) row {
	return row{
		ID:        uuid.New(),
		Category:  string(e.Category),
		Timestamp: e.Timestamp.UTC(),
		SubjectID: e.SubjectID,
		Email:     e.Email,
		Role:      e.Role,
		Site:      e.Site,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
		Origin:    e.Origin,
		Device:    e.Device,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

func (r row) event() audit.Event {
	return audit.Event{
		Category:  audit.EventCategory(r.Category),
		Timestamp: r.Timestamp,
		SubjectID: r.SubjectID,
		Email:     r.Email,
		Role:      r.Role,
		Site:      r.Site,
		Action:    r.Action,
		Decision:  r.Decision,
		Reason:    r.Reason,
		Origin:    r.Origin,
		Device:    r.Device,
		RequestID: r.RequestID,
		ActorID:   r.ActorID,
	}
}

// Store implements audit.Store using PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New wraps an open pool. The pool stays owned by the caller.
func New(db *sql.DB) (*Store, error) {
	gdb, err := gorm.Open(gormpg.New(gormpg.Config{Conn: db}), &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	return &Store{db: gdb}, nil
}

// Append inserts one event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	r := fromEvent(event)
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns events matching filter, newest first.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	q := s.db.WithContext(ctx).Model(&row{})
	if filter.Email != "" {
		q = q.Where("LOWER(email) = LOWER(?)", filter.Email)
	}
	if filter.SubjectID != "" {
		q = q.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.Origin != "" {
		q = q.Where("origin = ?", filter.Origin)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since.UTC())
	}

	var rows []row
	err := q.Order("timestamp DESC").Limit(filter.EffectiveLimit()).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	events := make([]audit.Event, len(rows))
	for i, r := range rows {
		events[i] = r.event()
	}
	return events, nil
}
