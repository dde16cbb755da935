package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// persistenceFile is the on-disk layout of a FileBackend.
type persistenceFile struct {
	Version string                     `json:"version"`
	SavedAt time.Time                  `json:"saved_at"`
	Entries map[string]json.RawMessage `json:"entries"`
}

const fileFormatVersion = "1.0"

// FileBackend keeps all keys in one JSON file. Every write rewrites the whole
// file through a temp file and rename.
type FileBackend struct {
	mu              sync.Mutex
	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// NewFileBackend creates a backend at filePath. Nothing is touched on disk until
// the first write.
func NewFileBackend(filePath string, filePermissions, dirPermissions os.FileMode) *FileBackend {
	return &FileBackend{
		filePath:        filePath,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
	}
}

// Path returns the file location.
func (b *FileBackend) Path() string { return b.filePath }

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := data.Entries[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (b *FileBackend) Put(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}
	data, err := b.load()
	if errors.Is(err, ErrCorrupt) {
		// A corrupt file is replaced rather than blocking new state.
		data = &persistenceFile{Entries: make(map[string]json.RawMessage)}
	} else if err != nil {
		return err
	}
	data.Entries[key] = json.RawMessage(value)
	return b.save(data)
}

func (b *FileBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		// Nothing recoverable to keep; drop the file entirely.
		if rmErr := os.Remove(b.filePath); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to remove file: %w", rmErr)
		}
		return nil
	}
	if _, ok := data.Entries[key]; !ok {
		return nil
	}
	delete(data.Entries, key)
	if len(data.Entries) == 0 {
		if err := os.Remove(b.filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove file: %w", err)
		}
		return nil
	}
	return b.save(data)
}

func (b *FileBackend) Close() error { return nil }

// load reads the file. A missing file is an empty store.
func (b *FileBackend) load() (*persistenceFile, error) {
	// Clean up any stale temp file from a previous crash
	tempPath := b.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	jsonData, err := os.ReadFile(b.filePath)
	if os.IsNotExist(err) {
		return &persistenceFile{Version: fileFormatVersion, Entries: make(map[string]json.RawMessage)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var data persistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if data.Entries == nil {
		data.Entries = make(map[string]json.RawMessage)
	}
	return &data, nil
}

func (b *FileBackend) save(data *persistenceFile) error {
	dir := filepath.Dir(b.filePath)
	if err := os.MkdirAll(dir, b.dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data.Version = fileFormatVersion
	data.SavedAt = time.Now()
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempPath := b.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, b.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, b.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
