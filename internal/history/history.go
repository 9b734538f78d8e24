// Package history records player state transitions in SQLite so users can
// ask what a player has been doing, not just what they do now.
//
// The store is optional: a nil *Store is valid and turns every operation
// into a cheap no-op, which keeps call sites free of enable checks.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "apexwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// ErrDisabled is returned by read operations when the store is not
// configured. Writes silently no-op instead.
var ErrDisabled = errors.New("history store disabled")

// Transition is one observed state change for a tracked player.
type Transition struct {
	At        time.Time
	PlayerKey string
	Name      string
	Platform  string
	FromState string
	ToState   string
}

// Store persists transitions in a single SQLite file.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string, busyTimeout time.Duration, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Enabled reports whether the store is backed by a database.
func (s *Store) Enabled() bool { return s != nil && s.db != nil }

func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.db.Close()
}

// Append records one transition. No-op on a disabled store.
func (s *Store) Append(ctx context.Context, t Transition) error {
	if !s.Enabled() {
		return nil
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions(at, player_key, display_name, platform, from_state, to_state)
		 VALUES(?,?,?,?,?,?)`,
		t.At.UTC().Format(time.RFC3339Nano), t.PlayerKey, t.Name, t.Platform, t.FromState, t.ToState,
	)
	return err
}

// Recent returns up to n most recent transitions for a player key, newest
// first.
func (s *Store) Recent(ctx context.Context, playerKey string, n int) ([]Transition, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, player_key, display_name, platform, from_state, to_state
		 FROM transitions WHERE player_key = ?
		 ORDER BY id DESC LIMIT ?`,
		playerKey, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at string
		if err := rows.Scan(&at, &t.PlayerKey, &t.Name, &t.Platform, &t.FromState, &t.ToState); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			t.At = ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Prune deletes transitions older than maxAge and returns the number removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM transitions WHERE at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("history pruned", logx.Int64("removed", n))
	}
	return n, nil
}
