// Package history keeps a SQLite log of triggered bindings and the
// outcome of their actions.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/chordinate/internal/dispatch"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DefaultKeep is how many entries Prune keeps by default.
const DefaultKeep = 1000

// Kind distinguishes trigger entries from dispatch outcomes.
type Kind string

const (
	KindTrigger  Kind = "trigger"
	KindDispatch Kind = "dispatch"
)

// Entry is one history row.
type Entry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Kind        Kind      `gorm:"size:16;index" json:"kind"`
	BindingID   string    `gorm:"size:36;index" json:"bindingId,omitempty"`
	BindingName string    `json:"bindingName,omitempty"`
	Sequence    string    `json:"sequence,omitempty"`
	ActionType  string    `gorm:"size:32" json:"actionType"`
	Payload     string    `json:"payload"`
	ExecID      string    `gorm:"size:36" json:"execId,omitempty"`
	Outcome     string    `gorm:"size:16" json:"outcome,omitempty"`
	ExitCode    int       `json:"exitCode"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// TableName implements gorm's tabler interface.
func (Entry) TableName() string {
	return "history"
}

// Store persists history entries.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens or creates the database at path. The special path ":memory:"
// opens a private in-memory database.
func Open(path string, log zerolog.Logger) (*Store, error) {
	log = log.With().Str("component", "history").Logger()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// SQLite allows one writer; an in-memory database exists per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts e. CreatedAt is set when zero.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// RecordTrigger records a triggered binding.
func (s *Store) RecordTrigger(ctx context.Context, b keymap.Binding) error {
	return s.Record(ctx, &Entry{
		Kind:        KindTrigger,
		BindingID:   b.ID.String(),
		BindingName: b.Name,
		Sequence:    b.DisplaySequence(),
		ActionType:  string(b.Action.Type),
		Payload:     b.Action.Payload,
	})
}

// RecordResult records the outcome of a dispatched action.
func (s *Store) RecordResult(ctx context.Context, r dispatch.Result) error {
	e := &Entry{
		Kind:       KindDispatch,
		ActionType: string(r.Action.Type),
		Payload:    r.Action.Payload,
		ExecID:     r.ID,
		Outcome:    string(r.Outcome),
		ExitCode:   r.ExitCode,
		DurationMs: r.Duration().Milliseconds(),
		CreatedAt:  r.Finished,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return s.Record(ctx, e)
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// every entry.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	q := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}

// ForBinding returns up to limit entries for a binding, newest first.
func (s *Store) ForBinding(ctx context.Context, bindingID string, limit int) ([]Entry, error) {
	var entries []Entry
	q := s.db.WithContext(ctx).Where("binding_id = ?", bindingID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep entries and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, errors.New("prune: negative keep")
	}

	var cutoff Entry
	err := s.db.WithContext(ctx).Order("id DESC").Offset(keep).Limit(1).Take(&cutoff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	res := s.db.WithContext(ctx).Where("id <= ?", cutoff.ID).Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune history: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Debug().Int64("removed", res.RowsAffected).Int("kept", keep).Msg("history pruned")
	}
	return res.RowsAffected, nil
}
