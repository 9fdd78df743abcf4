package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the history database.
type Store struct {
	db   *sql.DB
	path string
}

// Revision is one stored mapping document.
type Revision struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Digest    string    `json:"digest"`
	YAML      string    `json:"yaml,omitempty"`
}

// KeyStat counts presses of one key.
type KeyStat struct {
	KeyID         string    `json:"key_id"`
	Presses       int64     `json:"presses"`
	LastNote      string    `json:"last_note,omitempty"`
	LastPressedAt time.Time `json:"last_pressed_at"`
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serialises writers from the recorder and the API.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

// Digest returns the content hash used to skip duplicate revisions.
func Digest(yaml []byte) string {
	sum := sha256.Sum256(yaml)
	return hex.EncodeToString(sum[:])
}

// AddRevision stores yaml unless it matches the newest revision. The
// boolean reports whether a row was written.
func (s *Store) AddRevision(ctx context.Context, yaml []byte, at time.Time) (Revision, bool, error) {
	digest := Digest(yaml)
	var latest string
	err := s.db.QueryRowContext(ctx, "SELECT digest FROM config_revisions ORDER BY id DESC LIMIT 1").Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Revision{}, false, fmt.Errorf("read latest revision: %w", err)
	}
	if latest == digest {
		return Revision{}, false, nil
	}

	rev := Revision{CreatedAt: at.UTC(), Digest: digest, YAML: string(yaml)}
	err = retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			"INSERT INTO config_revisions (created_at, digest, yaml) VALUES (?, ?, ?)",
			rev.CreatedAt.Format(time.RFC3339Nano), digest, rev.YAML,
		)
		if execErr != nil {
			return execErr
		}
		rev.ID, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return Revision{}, false, fmt.Errorf("insert revision: %w", err)
	}
	return rev, true, nil
}

// PruneRevisions keeps the newest keep revisions.
func (s *Store) PruneRevisions(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`DELETE FROM config_revisions WHERE id NOT IN (
                SELECT id FROM config_revisions ORDER BY id DESC LIMIT ?
            )`, keep)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return removed, nil
}

// ListRevisions returns the newest revisions first, without their YAML.
func (s *Store) ListRevisions(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, digest FROM config_revisions ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var (
			rev     Revision
			created string
		)
		if err := rows.Scan(&rev.ID, &created, &rev.Digest); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rev.CreatedAt = parseTime(created)
		out = append(out, rev)
	}
	return out, rows.Err()
}

// GetRevision returns one revision including its YAML, or nil when it does
// not exist.
func (s *Store) GetRevision(ctx context.Context, id int64) (*Revision, error) {
	var (
		rev     Revision
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, digest, yaml FROM config_revisions WHERE id = ?", id,
	).Scan(&rev.ID, &created, &rev.Digest, &rev.YAML)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	rev.CreatedAt = parseTime(created)
	return &rev, nil
}

// RecordPress increments the press count of keyID.
func (s *Store) RecordPress(ctx context.Context, keyID, note string, at time.Time) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO key_stats (key_id, presses, last_note, last_pressed_at) VALUES (?, 1, ?, ?)
             ON CONFLICT(key_id) DO UPDATE SET
                presses = presses + 1,
                last_note = excluded.last_note,
                last_pressed_at = excluded.last_pressed_at`,
			keyID, nullableString(note), at.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// KeyStats returns every key ordered by press count.
func (s *Store) KeyStats(ctx context.Context) ([]KeyStat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key_id, presses, last_note, last_pressed_at FROM key_stats ORDER BY presses DESC, key_id")
	if err != nil {
		return nil, fmt.Errorf("list key stats: %w", err)
	}
	defer rows.Close()

	var out []KeyStat
	for rows.Next() {
		var (
			stat    KeyStat
			note    sql.NullString
			pressed sql.NullString
		)
		if err := rows.Scan(&stat.KeyID, &stat.Presses, &note, &pressed); err != nil {
			return nil, fmt.Errorf("scan key stat: %w", err)
		}
		stat.LastNote = note.String
		if pressed.Valid {
			stat.LastPressedAt = parseTime(pressed.String)
		}
		out = append(out, stat)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
