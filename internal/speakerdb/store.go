package speakerdb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

var (
	// ErrSchemaMismatch indicates a database written by an incompatible version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
	// ErrNotFound is returned when a named speaker does not exist.
	ErrNotFound = errors.New("speaker not found")
)

// Speaker is one stored signature.
type Speaker struct {
	ID        int64
	Name      string
	Embedding []float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the SQLite-backed signature database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("open speaker db: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open speaker db: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
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

// Path returns the database file location.
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

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var version int
	err = tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return tx.Commit()
}

// Save stores embedding under name. An existing speaker of the same name has
// the new embedding blended in.
func (s *Store) Save(ctx context.Context, name string, embedding []float64) (Speaker, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Speaker{}, errors.New("save speaker: name required")
	}
	vec, ok := normalize(embedding)
	if !ok {
		return Speaker{}, errors.New("save speaker: embedding is empty or zero")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Speaker{}, fmt.Errorf("save speaker: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanSpeaker(tx.QueryRowContext(ctx,
		"SELECT id, name, embedding, created_at, updated_at FROM speakers WHERE name = ?", name))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			"INSERT INTO speakers (name, embedding, dimensions, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			name, encodeEmbedding(vec), len(vec), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		if err != nil {
			return Speaker{}, fmt.Errorf("insert speaker: %w", err)
		}
		id, _ := res.LastInsertId()
		existing = Speaker{ID: id, Name: name, Embedding: vec, CreatedAt: now}
	case err != nil:
		return Speaker{}, fmt.Errorf("load speaker: %w", err)
	default:
		if len(existing.Embedding) != len(vec) {
			return Speaker{}, fmt.Errorf("save speaker %q: embedding has %d dimensions, stored signature has %d",
				name, len(vec), len(existing.Embedding))
		}
		blended, _ := blend(existing.Embedding, vec)
		if _, err := tx.ExecContext(ctx,
			"UPDATE speakers SET embedding = ?, updated_at = ? WHERE id = ?",
			encodeEmbedding(blended), now.Format(time.RFC3339Nano), existing.ID); err != nil {
			return Speaker{}, fmt.Errorf("update speaker: %w", err)
		}
		existing.Embedding = blended
	}
	existing.UpdatedAt = now
	if err := tx.Commit(); err != nil {
		return Speaker{}, fmt.Errorf("save speaker: %w", err)
	}
	return existing, nil
}

// List returns all speakers ordered by name.
func (s *Store) List(ctx context.Context) ([]Speaker, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, embedding, created_at, updated_at FROM speakers ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, fmt.Errorf("list speakers: %w", err)
	}
	defer rows.Close()

	var out []Speaker
	for rows.Next() {
		sp, err := scanSpeaker(rows)
		if err != nil {
			return nil, fmt.Errorf("list speakers: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// Remove deletes the speaker called name (case insensitive).
func (s *Store) Remove(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM speakers WHERE name = ?", strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("remove speaker: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpeaker(row rowScanner) (Speaker, error) {
	var (
		sp               Speaker
		blob             []byte
		created, updated string
	)
	if err := row.Scan(&sp.ID, &sp.Name, &blob, &created, &updated); err != nil {
		return Speaker{}, err
	}
	vec, err := decodeEmbedding(blob)
	if err != nil {
		return Speaker{}, fmt.Errorf("speaker %q: %w", sp.Name, err)
	}
	sp.Embedding = vec
	sp.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	sp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return sp, nil
}
