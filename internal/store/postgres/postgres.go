// Package postgres provides a PostgreSQL-backed registry store. Sample
// vectors are persisted twice: a DOUBLE PRECISION[] column carries the exact
// float64 values for the load/save round trip, and a pgvector column powers
// SQL-side similarity queries.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Config holds the PostgreSQL connection settings.
type Config struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db        *sql.DB
	dimension int
}

// NewPool creates a new PostgreSQL connection pool for a registry of the
// given encoding dimension.
func NewPool(cfg *Config, dimension int) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid encoding dimension: %d", dimension)
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db, dimension: dimension}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB { return p.db }

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the pgvector extension and the registry schema.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS registry_meta (
			id           SMALLINT PRIMARY KEY CHECK (id = 1),
			version      VARCHAR(16) NOT NULL,
			threshold    DOUBLE PRECISION NOT NULL,
			created_at   TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create registry_meta table: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identities (
			user_id               VARCHAR(255) PRIMARY KEY,
			enrolled_at           TIMESTAMP WITH TIME ZONE NOT NULL,
			last_authentication   TIMESTAMP WITH TIME ZONE,
			authentication_count  INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("failed to create identities table: %w", err)
	}

	createSamples := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS face_samples (
			id            BIGSERIAL PRIMARY KEY,
			user_id       VARCHAR(255) NOT NULL REFERENCES identities(user_id) ON DELETE CASCADE,
			sample_index  INTEGER NOT NULL,
			encoding      DOUBLE PRECISION[] NOT NULL,
			embedding     vector(%d) NOT NULL,
			captured_at   TIMESTAMP WITH TIME ZONE NOT NULL,
			image_path    TEXT NOT NULL DEFAULT '',
			sample_id     VARCHAR(255) NOT NULL DEFAULT '',
			UNIQUE(user_id, sample_index)
		)
	`, p.dimension)
	if _, err := p.db.ExecContext(ctx, createSamples); err != nil {
		return fmt.Errorf("failed to create face_samples table: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS face_samples_user_id_idx ON face_samples(user_id)
	`); err != nil {
		return fmt.Errorf("failed to create face_samples user index: %w", err)
	}

	return nil
}

// CreateVectorIndex creates the IVFFlat index for similarity queries. Call
// this after the samples table has data for sensible cluster centroids.
func (p *Pool) CreateVectorIndex(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS face_samples_embedding_idx
		ON face_samples USING ivfflat (embedding vector_l2_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}
