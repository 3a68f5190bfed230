package cmd

import (
	"context"
	"fmt"

	"github.com/blackshadow-software/face-auth/internal/config"
	"github.com/blackshadow-software/face-auth/internal/extract"
	"github.com/blackshadow-software/face-auth/internal/identity"
	"github.com/blackshadow-software/face-auth/internal/store"
	"github.com/blackshadow-software/face-auth/internal/store/mariadb"
	"github.com/blackshadow-software/face-auth/internal/store/postgres"
)

// buildStore selects the persistence backend. PostgreSQL when DATABASE_URL is
// set, MariaDB when MARIADB_DSN is set, otherwise the JSON registry file.
// The returned closer releases any connection pool.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.NewPool(&postgres.Config{
			URL:          cfg.Database.URL,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		}, cfg.Encoding.Dim)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			_ = pool.Close()
			return nil, nil, fmt.Errorf("migrating PostgreSQL schema: %w", err)
		}
		return postgres.NewRegistryStore(pool), func() { _ = pool.Close() }, nil

	case cfg.MariaDB.DSN != "":
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MariaDB: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			_ = pool.Close()
			return nil, nil, fmt.Errorf("migrating MariaDB schema: %w", err)
		}
		return mariadb.NewRegistryStore(pool), func() { _ = pool.Close() }, nil

	default:
		path := cfg.Registry.Path
		if databasePath != "" {
			path = databasePath
		}
		return store.NewFileStore(path), func() {}, nil
	}
}

// openRegistry loads the persisted snapshot and hydrates the in-memory
// registry with the store wired in as its saver.
func openRegistry(ctx context.Context, cfg *config.Config) (*identity.Registry, func(), error) {
	st, closer, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	snap, err := st.Load(ctx)
	if err != nil {
		closer()
		return nil, nil, fmt.Errorf("loading registry: %w", err)
	}

	reg, err := identity.FromSnapshot(snap, cfg.Encoding.Dim,
		identity.WithThreshold(cfg.Calibration.Scoring.Tolerance),
		identity.WithSaver(st),
	)
	if err != nil {
		closer()
		return nil, nil, err
	}

	return reg, closer, nil
}

// newMatcher builds a matcher from the calibrated score weights.
func newMatcher(cfg *config.Config) *identity.Matcher {
	return identity.NewMatcher(
		identity.WithWeights(identity.Weights{
			Min:  cfg.Calibration.Scoring.MinWeight,
			Mean: cfg.Calibration.Scoring.MeanWeight,
		}),
		identity.WithConfidenceFloor(cfg.Calibration.Scoring.ConfidenceFloor),
	)
}

// newEnroller builds the enrollment pipeline for the configured dimension.
func newEnroller(cfg *config.Config) *identity.Enroller {
	return identity.NewEnroller(cfg.Encoding.Dim, identity.EnrollPolicy{})
}

// newExtractor builds the face encoding server client.
func newExtractor(cfg *config.Config) *extract.Client {
	return extract.NewClient(cfg.Encoding.URL)
}
