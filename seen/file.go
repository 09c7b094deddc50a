package seen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultPath is where the fingerprint file lives unless configured.
const DefaultPath = "data/seen.json"

// ErrUnknownFormat is returned for a JSON object that holds no fingerprint
// array. Loading it as an empty set would republish everything.
var ErrUnknownFormat = errors.New("no fingerprint array found")

// FileStore keeps the set as a JSON array of hex strings.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path. An empty path uses DefaultPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the file. A missing file is an empty set. Entries that are not
// strings are skipped, and an object wrapping the array under
// "fingerprints" is accepted. Any other object is an error.
func (f *FileStore) Load(ctx context.Context) (Set, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}

	set := NewSet()
	for _, raw := range entries {
		var fp string
		if json.Unmarshal(raw, &fp) == nil {
			set.Add(fp)
		}
	}
	return set, nil
}

func decodeEntries(data []byte) ([]json.RawMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Fingerprints []json.RawMessage `json:"fingerprints"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Fingerprints == nil {
		return nil, ErrUnknownFormat
	}
	return wrapped.Fingerprints, nil
}

// Save writes the set to a temporary file and renames it into place, so a
// crash never leaves a truncated file behind.
func (f *FileStore) Save(ctx context.Context, set Set) error {
	dir := filepath.Dir(f.path)

	// 0700: owner-only access
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(set.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprints: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".seen-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write fingerprints: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write fingerprints: %w", err)
	}

	// 0600: owner-only read/write
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}
