package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/blackshadow-software/face-auth/internal/identity"
)

// RegistryStore implements store.Store on top of a PostgreSQL pool. Save
// replaces the persisted registry inside one transaction, so concurrent
// readers never observe a partially written state.
type RegistryStore struct {
	pool *Pool
}

// NewRegistryStore creates a PostgreSQL registry store.
func NewRegistryStore(pool *Pool) *RegistryStore {
	return &RegistryStore{pool: pool}
}

// Load reads the full registry snapshot. An empty database yields an empty
// snapshot, never an error.
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
			userID   string
			encoding pq.Float64Array
			s        identity.Sample
		)
		if err := sampleRows.Scan(&userID, &encoding, &s.CapturedAt, &s.ImagePath, &s.SampleID); err != nil {
			return nil, fmt.Errorf("scan face sample: %w", err)
		}
		rec, ok := byID[userID]
		if !ok {
			return nil, fmt.Errorf("face sample references unknown identity %q", userID)
		}
		s.Encoding = []float64(encoding)
		rec.Samples = append(rec.Samples, s)
	}
	if err := sampleRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face samples: %w", err)
	}

	for _, rec := range snap.Records {
		rec.SampleCount = len(rec.Samples)
	}
	return snap, nil
}

// Save replaces the persisted registry with the snapshot.
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
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET version = $1, threshold = $2, created_at = $3
	`, snap.Version, snap.Threshold, created); err != nil {
		return fmt.Errorf("upsert registry meta: %w", err)
	}

	// full replace; face_samples rows cascade
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
			VALUES ($1, $2, $3, $4)
		`, rec.UserID, rec.EnrolledAt, last, rec.AuthenticationCount); err != nil {
			return fmt.Errorf("insert identity %q: %w", rec.UserID, err)
		}

		for i, sample := range rec.Samples {
			vec := make([]float32, len(sample.Encoding))
			for j, v := range sample.Encoding {
				vec[j] = float32(v)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO face_samples (user_id, sample_index, encoding, embedding, captured_at, image_path, sample_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, rec.UserID, i, pq.Float64Array(sample.Encoding), pgvector.NewVector(vec),
				sample.CapturedAt, sample.ImagePath, sample.SampleID); err != nil {
				return fmt.Errorf("insert sample %d for %q: %w", i, rec.UserID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// NearestSamples runs a SQL-side similarity query over the pgvector column
// and returns the k closest stored samples. Distances come from the float32
// vector column and are approximate relative to the exact float64 encodings.
func (s *RegistryStore) NearestSamples(ctx context.Context, probe []float64, k int) ([]identity.SampleMatch, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(probe))
	for i, v := range probe {
		vec[i] = float32(v)
	}

	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT user_id, sample_id, embedding <-> $1 AS distance
		FROM face_samples
		ORDER BY embedding <-> $1
		LIMIT $2
	`, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var out []identity.SampleMatch
	for rows.Next() {
		var m identity.SampleMatch
		if err := rows.Scan(&m.UserID, &m.SampleID, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity rows: %w", err)
	}
	return out, nil
}
