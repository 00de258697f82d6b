package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sausix/scriptycut/internal/fileutil"
)

const (
	metadataVersion  = 1
	metadataFileName = "entry.json"
	lastAccessName   = "last_access"
)

// EntryMetadata records what produced a cache entry.
type EntryMetadata struct {
	Version       int       `json:"version"`
	Class         string    `json:"class"`
	FormatVersion int       `json:"format_version"`
	Identity      string    `json:"identity"`
	CreatedAt     time.Time `json:"created_at"`
}

func writeMetadata(dir string, meta EntryMetadata) error {
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomic(metadataPath(dir), payload, 0o644); err != nil {
		return fmt.Errorf("cache: write metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads the metadata record of an entry directory. The boolean
// reports whether a record was present.
func LoadMetadata(dir string) (EntryMetadata, bool, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return EntryMetadata{}, false, errors.New("cache: metadata dir is empty")
	}
	payload, err := os.ReadFile(metadataPath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return EntryMetadata{}, false, nil
		}
		return EntryMetadata{}, false, fmt.Errorf("cache: read metadata: %w", err)
	}
	var meta EntryMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return EntryMetadata{}, true, fmt.Errorf("cache: decode metadata: %w", err)
	}
	if meta.Version != metadataVersion {
		return EntryMetadata{}, true, fmt.Errorf("cache: unsupported metadata version %d", meta.Version)
	}
	return meta, true, nil
}

func writeLastAccess(dir string, now time.Time) error {
	stamp := []byte(now.UTC().Format(time.RFC3339Nano) + "\n")
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, lastAccessName), stamp, 0o644); err != nil {
		return fmt.Errorf("cache: write last access: %w", err)
	}
	return nil
}

// LastAccess returns the timestamp written by the most recent Resolve of the
// entry.
func LastAccess(dir string) (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(dir, lastAccessName))
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, fmt.Errorf("cache: parse last access: %w", err)
	}
	return ts, nil
}

func metadataPath(dir string) string {
	return filepath.Join(dir, metadataFileName)
}
