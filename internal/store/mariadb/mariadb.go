// Package mariadb provides a MariaDB/MySQL-backed registry store for
// deployments without PostgreSQL. Encodings are stored as JSON so the
// float64 values round-trip exactly; similarity queries are not offloaded to
// the database with this backend.
package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/blackshadow-software/face-auth/internal/identity"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool. The DSN must carry
// parseTime=true so DATETIME columns scan into time.Time.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the registry schema.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS registry_meta (
			id           TINYINT PRIMARY KEY,
			version      VARCHAR(16) NOT NULL,
			threshold    DOUBLE NOT NULL,
			created_at   DATETIME(6) NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create registry_meta table: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identities (
			user_id               VARCHAR(255) PRIMARY KEY,
			enrolled_at           DATETIME(6) NOT NULL,
			last_authentication   DATETIME(6) NULL,
			authentication_count  INT NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("failed to create identities table: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS face_samples (
			id            BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id       VARCHAR(255) NOT NULL,
			sample_index  INT NOT NULL,
			encoding      JSON NOT NULL,
			captured_at   DATETIME(6) NOT NULL,
			image_path    TEXT,
			sample_id     VARCHAR(255) NOT NULL DEFAULT '',
			UNIQUE KEY face_samples_user_idx (user_id, sample_index),
			CONSTRAINT face_samples_user_fk FOREIGN KEY (user_id)
				REFERENCES identities(user_id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create face_samples table: %w", err)
	}

	return nil
}

// RegistryStore implements store.Store on top of a MariaDB pool.
type RegistryStore struct {
	pool *Pool
}

// NewRegistryStore creates a MariaDB registry store.
func NewRegistryStore(pool *Pool) *RegistryStore {
	return &RegistryStore{pool: pool}
}

// Load reads the full registry snapshot.
func (s *RegistryStore) Load(ctx context.Context) (*identity.Snapshot, error) {
	snap := &identity.Snapshot{Version: identity.DatabaseVersion}

	err := s.pool.db.QueryRowContext(ctx, `
		SELECT version, threshold, created_at FROM registry_meta WHERE id = 1
	`).Scan(&snap.Version, &snap.Threshold, &snap.Created)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query registry meta: %w", err)
	}

	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT user_id, enrolled_at, last_authentication, authentication_count
		FROM identities
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*identity.Record)
	for rows.Next() {
		rec := &identity.Record{}
		var last sql.NullTime
		if err := rows.Scan(&rec.UserID, &rec.EnrolledAt, &last, &rec.AuthenticationCount); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if last.Valid {
			at := last.Time
			rec.LastAuthentication = &at
		}
		byID[rec.UserID] = rec
		snap.Records = append(snap.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	sampleRows, err := s.pool.db.QueryContext(ctx, `
		SELECT user_id, encoding, captured_at, image_path, sample_id
		FROM face_samples
		ORDER BY user_id, sample_index
	`)
	if err != nil {
		return nil, fmt.Errorf("query face samples: %w", err)
	}
	defer sampleRows.Close()

	for sampleRows.Next() {
		var (
			userID    string
			raw       []byte
			imagePath sql.NullString
			sample    identity.Sample
		)
		if err := sampleRows.Scan(&userID, &raw, &sample.CapturedAt, &imagePath, &sample.SampleID); err != nil {
			return nil, fmt.Errorf("scan face sample: %w", err)
		}
		if err := json.Unmarshal(raw, &sample.Encoding); err != nil {
			return nil, fmt.Errorf("decode encoding for %q: %w", userID, err)
		}
		sample.ImagePath = imagePath.String
		rec, ok := byID[userID]
		if !ok {
			return nil, fmt.Errorf("face sample references unknown identity %q", userID)
		}
		rec.Samples = append(rec.Samples, sample)
	}
	if err := sampleRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face samples: %w", err)
	}

	for _, rec := range snap.Records {
		rec.SampleCount = len(rec.Samples)
	}
	return snap, nil
}

// Save replaces the persisted registry with the snapshot in one transaction.
func (s *RegistryStore) Save(ctx context.Context, snap *identity.Snapshot) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	created := snap.Created
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registry_meta (id, version, threshold, created_at)
		VALUES (1, ?, ?, ?)
		ON DUPLICATE KEY UPDATE version = VALUES(version), threshold = VALUES(threshold), created_at = VALUES(created_at)
	`, snap.Version, snap.Threshold, created); err != nil {
		return fmt.Errorf("upsert registry meta: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM identities`); err != nil {
		return fmt.Errorf("clear identities: %w", err)
	}

	for _, rec := range snap.Records {
		var last sql.NullTime
		if rec.LastAuthentication != nil {
			last = sql.NullTime{Time: *rec.LastAuthentication, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO identities (user_id, enrolled_at, last_authentication, authentication_count)
			VALUES (?, ?, ?, ?)
		`, rec.UserID, rec.EnrolledAt, last, rec.AuthenticationCount); err != nil {
			return fmt.Errorf("insert identity %q: %w", rec.UserID, err)
		}

		for i, sample := range rec.Samples {
			raw, err := json.Marshal(sample.Encoding)
			if err != nil {
				return fmt.Errorf("encode sample %d for %q: %w", i, rec.UserID, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO face_samples (user_id, sample_index, encoding, captured_at, image_path, sample_id)
				VALUES (?, ?, ?, ?, ?, ?)
			`, rec.UserID, i, raw, sample.CapturedAt, sample.ImagePath, sample.SampleID); err != nil {
				return fmt.Errorf("insert sample %d for %q: %w", i, rec.UserID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}
