package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/blackshadow-software/face-auth/internal/identity"
)

// DefaultDatabasePath is the default on-disk location of the face database.
const DefaultDatabasePath = "face_database.json"

// databaseFile is the on-disk JSON layout. Field names are a compatibility
// contract with existing database files and must not change.
type databaseFile struct {
	Users             map[string]*identity.Record `json:"users"`
	Version           string                      `json:"version"`
	AccuracyThreshold float64                     `json:"accuracy_threshold"`
	Created           time.Time                   `json:"created"`
}

// FileStore persists the registry as a single JSON document. Saves are
// atomic: the file is written to a temp path and renamed into place, so a
// crash mid-save never leaves a truncated database.
type FileStore struct {
	path string
}

// NewFileStore creates a file store at the given path. An empty path falls
// back to DefaultDatabasePath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultDatabasePath
	}
	return &FileStore{path: path}
}

// Path returns the database file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the database file. A missing file yields an empty snapshot.
func (s *FileStore) Load(_ context.Context) (*identity.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &identity.Snapshot{Version: identity.DatabaseVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read database %s: %w", s.path, err)
	}

	var db databaseFile
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, fmt.Errorf("parse database %s: %w", s.path, err)
	}

	snap := &identity.Snapshot{
		Version:   db.Version,
		Threshold: db.AccuracyThreshold,
		Created:   db.Created,
		Records:   make([]*identity.Record, 0, len(db.Users)),
	}
	for id, rec := range db.Users {
		if rec.UserID == "" {
			rec.UserID = id
		}
		snap.Records = append(snap.Records, rec)
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].UserID < snap.Records[j].UserID
	})
	return snap, nil
}

// Save writes the snapshot to disk.
func (s *FileStore) Save(_ context.Context, snap *identity.Snapshot) error {
	db := databaseFile{
		Users:             make(map[string]*identity.Record, len(snap.Records)),
		Version:           snap.Version,
		AccuracyThreshold: snap.Threshold,
		Created:           snap.Created,
	}
	if db.Version == "" {
		db.Version = identity.DatabaseVersion
	}
	for _, rec := range snap.Records {
		db.Users[rec.UserID] = rec
	}

	raw, err := json.MarshalIndent(&db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp database file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close database file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace database %s: %w", s.path, err)
	}
	return nil
}
