// Package history records shears and locator scans in the local database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sydlexius/shears/internal/content"
	"github.com/sydlexius/shears/internal/shear"
)

// Fixed-width so that lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultLimit caps list queries when the caller passes a non-positive limit.
const DefaultLimit = 20

const (
	shearColumns = `id, dir, minimum_tier_to_keep, removed_videos, removed_events, deleted, failed, reclaimed_bytes, started_at, completed_at`
	scanColumns  = `id, root, state, found, started_at, elapsed_ms`
)

// Service provides history data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a history service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// RecordShear stores a finished shear.
func (s *Service) RecordShear(ctx context.Context, r shear.Report, reclaimed uint64) error {
	if r.Dir == "" {
		return fmt.Errorf("shear directory is required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.CompletedAt
	}

	deleted, err := encodeList(r.Deleted)
	if err != nil {
		return fmt.Errorf("encoding deleted paths: %w", err)
	}
	failed, err := encodeList(r.Failed)
	if err != nil {
		return fmt.Errorf("encoding failed paths: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shears (`+shearColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Dir, r.MinimumTierToKeep.Int(),
		boolToInt(r.RemovedVideos), boolToInt(r.RemovedEvents),
		deleted, failed, int64(reclaimed), //nolint:gosec // G115: byte counts fit in int64
		formatTime(r.StartedAt), formatTime(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("recording shear: %w", err)
	}
	return nil
}

// RecordScan stores a finished locator run.
func (s *Service) RecordScan(ctx context.Context, rec ScanRecord) error {
	if rec.Root == "" {
		return fmt.Errorf("scan root is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	found, err := encodeList(rec.Found)
	if err != nil {
		return fmt.Errorf("encoding found paths: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (`+scanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Root, rec.State, found,
		formatTime(rec.StartedAt), rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}
	return nil
}

// ListShears returns up to limit shears, newest first.
func (s *Service) ListShears(ctx context.Context, limit int) ([]ShearRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shearColumns+` FROM shears ORDER BY completed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing shears: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []ShearRecord
	for rows.Next() {
		rec, err := scanShear(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning shear: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListScans returns up to limit locator runs, newest first.
func (s *Service) ListScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scans ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []ScanRecord
	for rows.Next() {
		rec, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanShear(row interface{ Scan(...any) error }) (*ShearRecord, error) {
	var rec ShearRecord
	var tier int
	var removedVideos, removedEvents int
	var deleted, failed string
	var reclaimed int64
	var startedAt, completedAt string

	err := row.Scan(
		&rec.ID, &rec.Dir, &tier, &removedVideos, &removedEvents,
		&deleted, &failed, &reclaimed, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t, ok := content.TierFromInt(tier)
	if !ok {
		return nil, fmt.Errorf("invalid tier %d in shear %s", tier, rec.ID)
	}
	rec.MinimumTierToKeep = t
	rec.RemovedVideos = removedVideos != 0
	rec.RemovedEvents = removedEvents != 0
	if rec.Deleted, err = decodeList(deleted); err != nil {
		return nil, fmt.Errorf("decoding deleted paths: %w", err)
	}
	if rec.Failed, err = decodeList(failed); err != nil {
		return nil, fmt.Errorf("decoding failed paths: %w", err)
	}
	rec.ReclaimedBytes = uint64(reclaimed) //nolint:gosec // G115: written from a uint64
	rec.StartedAt = parseTime(startedAt)
	rec.CompletedAt = parseTime(completedAt)
	return &rec, nil
}

func scanScan(row interface{ Scan(...any) error }) (*ScanRecord, error) {
	var rec ScanRecord
	var found, startedAt string
	var elapsedMS int64

	if err := row.Scan(&rec.ID, &rec.Root, &rec.State, &found, &startedAt, &elapsedMS); err != nil {
		return nil, err
	}

	var err error
	if rec.Found, err = decodeList(found); err != nil {
		return nil, fmt.Errorf("decoding found paths: %w", err)
	}
	rec.StartedAt = parseTime(startedAt)
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &rec, nil
}

func encodeList(paths []string) (string, error) {
	if len(paths) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	var paths []string
	if err := json.Unmarshal([]byte(s), &paths); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return paths, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
