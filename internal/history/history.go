// Package history records dispatched generations in the optional database.
package history

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/sdbot/internal/params"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrations returns the schema files, one directory per driver.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Status values stored per generation.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Record is one generation attempt.
type Record struct {
	ID             string    `db:"id"`
	UserID         int64     `db:"user_id"`
	Prompt         string    `db:"prompt"`
	NegativePrompt string    `db:"negative_prompt"`
	Steps          int       `db:"steps"`
	CFGScale       float64   `db:"cfg_scale"`
	Width          int       `db:"width"`
	Height         int       `db:"height"`
	Sampler        string    `db:"sampler"`
	Scheduler      string    `db:"scheduler"`
	Seed           int64     `db:"seed"`
	Status         string    `db:"status"`
	Error          string    `db:"error"`
	ImageBytes     int       `db:"image_bytes"`
	DurationMS     int64     `db:"duration_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

// FromParams fills the parameter columns of a record.
func FromParams(id string, p params.Set) Record {
	return Record{
		ID:             id,
		UserID:         p.UserID,
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Steps:          p.Steps,
		CFGScale:       p.CFGScale,
		Width:          p.Width,
		Height:         p.Height,
		Sampler:        p.Sampler,
		Scheduler:      p.Scheduler,
		Seed:           p.Seed,
	}
}

// Stats aggregates stored generations.
type Stats struct {
	Total     int64 `db:"total"`
	Succeeded int64 `db:"succeeded"`
	Failed    int64 `db:"failed"`
	Users     int64 `db:"users"`
	AvgMS     int64 `db:"avg_ms"`
}

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Store persists records through sqlx. Queries are written with ? and
// rebound for the connection's driver.
type Store struct {
	db    *sqlx.DB
	clock Clock
}

// NewStore returns a Store over db. A nil clock uses the system time.
func NewStore(db *sqlx.DB, clock Clock) (*Store, error) {
	if db == nil {
		return nil, errors.New("history: missing db")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{db: db, clock: clock}, nil
}

const insertQuery = `
INSERT INTO generations (
	id, user_id, prompt, negative_prompt, steps, cfg_scale, width, height,
	sampler, scheduler, seed, status, error, image_bytes, duration_ms, created_at
) VALUES (
	:id, :user_id, :prompt, :negative_prompt, :steps, :cfg_scale, :width, :height,
	:sampler, :scheduler, :seed, :status, :error, :image_bytes, :duration_ms, :created_at
)`

// Insert stores rec, stamping CreatedAt when it is zero.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now()
	}
	if _, err := s.db.NamedExecContext(ctx, insertQuery, rec); err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

const statsQuery = `
SELECT
	COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS succeeded,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed,
	COUNT(DISTINCT user_id) AS users,
	CAST(COALESCE(AVG(duration_ms), 0) AS BIGINT) AS avg_ms
FROM generations`

// Stats returns totals over all records.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	q := s.db.Rebind(statsQuery)
	if err := s.db.GetContext(ctx, &st, q, StatusOK, StatusFail); err != nil {
		return Stats{}, fmt.Errorf("generation stats: %w", err)
	}
	return st, nil
}

const recentQuery = `
SELECT id, user_id, prompt, negative_prompt, steps, cfg_scale, width, height,
	sampler, scheduler, seed, status, error, image_bytes, duration_ms, created_at
FROM generations
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?`

// Recent returns the user's latest records, newest first.
func (s *Store) Recent(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Record
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(recentQuery), userID, limit); err != nil {
		return nil, fmt.Errorf("recent generations: %w", err)
	}
	return out, nil
}
