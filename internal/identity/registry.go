// Package identity implements the durable name↔public-key registry and
// per-player last-known position (spec §4.4), backed by sqlite.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("identity: not found")

// Registry persists the name↔public_key bijection and last-known positions.
type Registry struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite-backed registry at path and runs migrations.
func Open(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("identity: database path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("identity: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("identity: open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline, avoids sqlite lock contention

	r := &Registry{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("identity registry opened", "path", path)
	return r, nil
}

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		name TEXT PRIMARY KEY,
		public_key BLOB NOT NULL UNIQUE,
		pos_x INTEGER,
		pos_y INTEGER,
		level_name TEXT,
		has_position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_identities_public_key ON identities(public_key)`,
}

func (r *Registry) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return fmt.Errorf("identity: enable WAL: %w", err)
	}
	for i, stmt := range migrations {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("identity: migration %d: %w", i, err)
		}
	}
	return nil
}

// GetKeyByName returns the public key bound to name.
func (r *Registry) GetKeyByName(ctx context.Context, name string) ([32]byte, error) {
	var key []byte
	row := r.db.QueryRowContext(ctx, `SELECT public_key FROM identities WHERE name = ?`, name)
	if err := row.Scan(&key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return [32]byte{}, ErrNotFound
		}
		return [32]byte{}, fmt.Errorf("identity: get key by name: %w", err)
	}
	var out [32]byte
	copy(out[:], key)
	return out, nil
}

// GetNameByKey returns the name bound to public key.
func (r *Registry) GetNameByKey(ctx context.Context, key [32]byte) (string, error) {
	var name string
	row := r.db.QueryRowContext(ctx, `SELECT name FROM identities WHERE public_key = ?`, key[:])
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("identity: get name by key: %w", err)
	}
	return name, nil
}

// Register atomically binds name to key. name and public_key are each
// unique, so a race between two previously-unknown registrations — same
// name, or same key under different names — is absorbed here rather than
// surfaced as a constraint-violation error: the loser's row is simply not
// inserted. Callers must re-read via GetKeyByName/GetNameByKey afterward to
// learn which binding took effect, exactly as spec §4.4 requires for the
// losing side of a race.
func (r *Registry) Register(ctx context.Context, name string, key [32]byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (name, public_key) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING
		 ON CONFLICT(public_key) DO NOTHING`,
		name, key[:])
	if err != nil {
		return fmt.Errorf("identity: register: %w", err)
	}
	return nil
}

// SavePosition records a player's last-known position. name must already be registered.
func (r *Registry) SavePosition(ctx context.Context, name string, x, y uint16, levelName string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE identities SET pos_x = ?, pos_y = ?, level_name = ?, has_position = 1 WHERE name = ?`,
		x, y, levelName, name)
	if err != nil {
		return fmt.Errorf("identity: save position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("identity: save position: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Position is a player's last saved location.
type Position struct {
	X         uint16
	Y         uint16
	LevelName string
}

// LoadPosition returns the last-saved position for name, if any.
func (r *Registry) LoadPosition(ctx context.Context, name string) (Position, bool, error) {
	var x, y sql.NullInt64
	var level sql.NullString
	var has bool
	row := r.db.QueryRowContext(ctx,
		`SELECT pos_x, pos_y, level_name, has_position FROM identities WHERE name = ?`, name)
	if err := row.Scan(&x, &y, &level, &has); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Position{}, false, ErrNotFound
		}
		return Position{}, false, fmt.Errorf("identity: load position: %w", err)
	}
	if !has {
		return Position{}, false, nil
	}
	return Position{X: uint16(x.Int64), Y: uint16(y.Int64), LevelName: level.String}, true, nil
}
