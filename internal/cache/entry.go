package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is a resolved cache directory.
type Entry struct {
	Dir     string
	Key     string
	Created bool
}

// Path joins name onto the entry directory.
func (e Entry) Path(name string) string {
	return filepath.Join(e.Dir, name)
}

// Payload is the path a payload named name is committed to.
func (e Entry) Payload(name string) string {
	return e.Path(name)
}

// PartialPayload is the path a producer writes name to before committing it.
// The extension is preserved so encoders can still infer the container.
func (e Entry) PartialPayload(name string) string {
	ext := filepath.Ext(name)
	return e.Path(strings.TrimSuffix(name, ext) + ".partial" + ext)
}

// HasPayload reports whether a committed, non-empty payload named name exists.
func (e Entry) HasPayload(name string) bool {
	info, err := os.Stat(e.Payload(name))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// CommitPayload renames the partial payload into place.
func (e Entry) CommitPayload(name string) error {
	partial := e.PartialPayload(name)
	info, err := os.Stat(partial)
	if err != nil {
		return fmt.Errorf("cache: commit %s: %w", name, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(partial)
		return fmt.Errorf("cache: commit %s: producer wrote an empty file", name)
	}
	if err := os.Rename(partial, e.Payload(name)); err != nil {
		return fmt.Errorf("cache: commit %s: %w", name, err)
	}
	return nil
}

// DiscardPartial removes a leftover partial payload.
func (e Entry) DiscardPartial(name string) {
	_ = os.Remove(e.PartialPayload(name))
}
