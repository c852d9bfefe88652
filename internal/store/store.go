// Package store persists annotated pages and raw engine replies
// through a persistence delegate contract: put(kind, bytes) -> url
// and put_artifact(kind, text) -> id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"dictationgrader/internal/config"
)

// ErrNotFound exposes sql.ErrNoRows as a package sentinel rather than
// leaking the database/sql type to callers.
var ErrNotFound = sql.ErrNoRows

// Delegate is the persistence boundary the grading pipeline depends
// on. The pipeline writes through it for original and annotated pages
// and for debug artifacts.
type Delegate interface {
	Put(ctx context.Context, kind string, data []byte) (string, error)
	PutArtifact(ctx context.Context, kind string, text string) (string, error)
}

// PostgresDelegate is the Postgres-backed Delegate implementation.
type PostgresDelegate struct {
	db *sql.DB
}

// Open connects to the database named by cfg.DatabaseURL via pgx's
// database/sql driver and tunes the pool the way cmd/bot/main.go does.
func Open(cfg *config.Config) (*PostgresDelegate, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("store: DATABASE_URL is empty")
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &PostgresDelegate{db: db}, nil
}

// NewPostgresDelegate wraps an already-open pool, for callers that
// manage the connection's lifetime themselves (e.g. tests).
func NewPostgresDelegate(db *sql.DB) *PostgresDelegate { return &PostgresDelegate{db: db} }

func (p *PostgresDelegate) Close() error { return p.db.Close() }

// Put stores a blob of the given kind ("original", "white_balanced",
// "annotated") and returns a stable, fetchable URL.
func (p *PostgresDelegate) Put(ctx context.Context, kind string, data []byte) (string, error) {
	const q = `insert into page_blobs (kind, data, created_at) values ($1, $2, $3) returning id`
	var id int64
	if err := p.db.QueryRowContext(ctx, q, kind, data, time.Now()).Scan(&id); err != nil {
		return "", fmt.Errorf("store: put %s: %w", kind, err)
	}
	return fmt.Sprintf("blob://%s/%d", kind, id), nil
}

// PutArtifact stores a raw engine reply (JSON or plain text) and
// returns the artifact id for later replay.
func (p *PostgresDelegate) PutArtifact(ctx context.Context, kind string, text string) (string, error) {
	const q = `insert into debug_artifacts (kind, body, created_at) values ($1, $2, $3) returning id`
	var id int64
	if err := p.db.QueryRowContext(ctx, q, kind, text, time.Now()).Scan(&id); err != nil {
		return "", fmt.Errorf("store: put_artifact %s: %w", kind, err)
	}
	return fmt.Sprintf("artifact://%s/%d", kind, id), nil
}
