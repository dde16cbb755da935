// Package storage persists session-scoped state between runs of the client.
//
// State lives under string keys in a Backend. Two backends exist: a JSON file
// written atomically (temp file then rename) and a SQLite table. Store layers
// typed access to the prediction result on top of either one.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewired-gh/churnwatch/internal/models"
)

// PredictionsKey holds the last received prediction result.
const PredictionsKey = "predictions"

// ErrCorrupt means a stored value exists but cannot be decoded or validated.
var ErrCorrupt = errors.New("stored state is unreadable")

// Backend is a small keyed byte store.
type Backend interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend         string // "file" or "sqlite"
	FilePath        string
	DBPath          string
	FilePermissions os.FileMode
	DirPermissions  os.FileMode
}

// Open creates the backend named in opts and wraps it in a Store.
func Open(opts Options) (*Store, error) {
	if opts.FilePermissions == 0 {
		opts.FilePermissions = 0600
	}
	if opts.DirPermissions == 0 {
		opts.DirPermissions = 0700
	}

	switch opts.Backend {
	case "", "file":
		path := opts.FilePath
		if path == "" {
			path = filepath.Join(os.TempDir(), "churnwatch", "session.json")
		}
		return New(NewFileBackend(path, opts.FilePermissions, opts.DirPermissions)), nil
	case "sqlite":
		path := opts.DBPath
		if path == "" {
			path = filepath.Join(os.TempDir(), "churnwatch", "session.db")
		}
		b, err := OpenSQLite(path, opts.DirPermissions)
		if err != nil {
			return nil, err
		}
		return New(b), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Store gives typed access to session state.
type Store struct {
	backend Backend
}

// New wraps a backend.
func New(b Backend) *Store {
	return &Store{backend: b}
}

// SaveResult persists r under PredictionsKey.
func (s *Store) SaveResult(r *models.PredictionResult) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := s.backend.Put(PredictionsKey, data); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// LoadResult returns the stored result, or nil when nothing is stored.
// A value that fails to decode or validate is reported as ErrCorrupt.
func (s *Store) LoadResult() (*models.PredictionResult, error) {
	data, ok, err := s.backend.Get(PredictionsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var r models.PredictionResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &r, nil
}

// ClearResult removes the stored result. Clearing an empty store is not an error.
func (s *Store) ClearResult() error {
	if err := s.backend.Delete(PredictionsKey); err != nil {
		return fmt.Errorf("failed to clear result: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
