package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/testsupport"
)

func newTestCache(t *testing.T, discard bool) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), Options{Version: 1, DiscardOrphans: discard}, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func TestKeyIsDeterministicAndFieldSensitive(t *testing.T) {
	a := Key("FileClip", 1, "<FileClip[AV]:a.mp4>")
	if a != Key("FileClip", 1, "<FileClip[AV]:a.mp4>") {
		t.Fatal("expected identical keys for identical inputs")
	}
	if !strings.HasPrefix(a, "FileClip_") {
		t.Fatalf("expected class prefix, got %q", a)
	}
	others := []string{
		Key("FileClip", 2, "<FileClip[AV]:a.mp4>"),
		Key("FileClip", 1, "<FileClip[AV]:b.mp4>"),
		Key("ImageClip", 1, "<FileClip[AV]:a.mp4>"),
		Key("File", 1, "Clip<FileClip[AV]:a.mp4>"),
	}
	for _, other := range others {
		if other == a {
			t.Fatalf("expected %q to differ from %q", other, a)
		}
	}
}

func TestResolveCreatesEntryOnceWithMetadata(t *testing.T) {
	c := newTestCache(t, false)
	first, err := c.Resolve("Repeat", "<Repeat[V]:x*3>")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !first.Created {
		t.Fatal("expected first resolve to create the entry")
	}
	second, err := c.Resolve("Repeat", "<Repeat[V]:x*3>")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if second.Created {
		t.Fatal("expected second resolve to reuse the entry")
	}
	if first.Dir != second.Dir {
		t.Fatalf("expected same dir, got %q and %q", first.Dir, second.Dir)
	}
	if filepath.Dir(first.Dir) != c.Root() {
		t.Fatalf("entry %q not directly under root %q", first.Dir, c.Root())
	}

	meta, ok, err := LoadMetadata(first.Dir)
	if err != nil || !ok {
		t.Fatalf("LoadMetadata: ok=%v err=%v", ok, err)
	}
	if meta.Class != "Repeat" || meta.Identity != "<Repeat[V]:x*3>" || meta.FormatVersion != 1 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.CreatedAt.IsZero() {
		t.Fatal("expected creation time")
	}
}

func TestResolveUpdatesLastAccess(t *testing.T) {
	c := newTestCache(t, false)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	entry, err := c.Resolve("Slice", "<Slice[V]:a>")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	c.now = func() time.Time { return base.Add(time.Hour) }
	if _, err := c.Resolve("Slice", "<Slice[V]:a>"); err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	ts, err := LastAccess(entry.Dir)
	if err != nil {
		t.Fatalf("LastAccess: %v", err)
	}
	if !ts.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected last access %v, got %v", base.Add(time.Hour), ts)
	}
	meta, _, _ := LoadMetadata(entry.Dir)
	if !meta.CreatedAt.Equal(base) {
		t.Fatalf("creation time rewritten: %v", meta.CreatedAt)
	}
}

func TestResolveRestoresMissingMetadata(t *testing.T) {
	c := newTestCache(t, false)
	dir := filepath.Join(c.Root(), Key("File", 1, "<File:x>"))
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	entry, err := c.Resolve("File", "<File:x>")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry.Created {
		t.Fatal("expected the existing directory to be reused")
	}
	meta, present, err := LoadMetadata(entry.Dir)
	if err != nil || !present {
		t.Fatalf("expected restored metadata, present=%v err=%v", present, err)
	}
	if meta.Class != "File" || meta.Identity != "<File:x>" || meta.FormatVersion != 1 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestConcurrentResolveCreatesExactlyOnce(t *testing.T) {
	c := newTestCache(t, false)
	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dirs    = make(map[string]struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := c.Resolve("Overlay", "<Overlay[V]:a+b>")
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			dirs[entry.Dir] = struct{}{}
			if entry.Created {
				created++
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one creator, got %d", created)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected a single directory, got %d", len(dirs))
	}
}

func TestDiscardOrphansKeepsTouchedEntries(t *testing.T) {
	root := t.TempDir()
	previous, err := Open(root, Options{Version: 1}, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stale, _ := previous.Resolve("FileClip", "<FileClip[AV]:old.mp4>")
	kept, _ := previous.Resolve("FileClip", "<FileClip[AV]:keep.mp4>")
	previous.Close()
	testsupport.WriteFile(t, filepath.Join(root, "stray.bin"), 16)

	run, err := Open(root, Options{Version: 1, DiscardOrphans: true}, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	again, err := run.Resolve("FileClip", "<FileClip[AV]:keep.mp4>")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again.Created {
		t.Fatal("expected entry from the previous run to be reused")
	}
	run.Close()

	if _, err := os.Stat(kept.Dir); err != nil {
		t.Fatalf("touched entry removed: %v", err)
	}
	if _, err := os.Stat(stale.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected untouched entry removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "stray.bin")); !os.IsNotExist(err) {
		t.Fatalf("expected stray file removed, stat err=%v", err)
	}
}

func TestCloseWithoutDiscardKeepsEverything(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "untouched", "payload.mkv"), 8)
	c, err := Open(root, Options{}, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c.Close()
	if _, err := os.Stat(filepath.Join(root, "untouched", "payload.mkv")); err != nil {
		t.Fatalf("expected entry preserved: %v", err)
	}
}

func TestCloseIsIdempotentAndSurvivesMissingRoot(t *testing.T) {
	c := newTestCache(t, true)
	if _, err := c.Resolve("Image", "<Image[V]:abc>"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := os.RemoveAll(c.Root()); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	c.Close()
	c.Close()
}

func TestTouchAcceptsKeyOrDirectory(t *testing.T) {
	c := newTestCache(t, false)
	key := Key("Sequence", 1, "<Sequence[V]:a,b>")
	c.Touch(filepath.Join(c.Root(), key))
	if !c.Touched(key) {
		t.Fatal("expected key touched via its directory path")
	}
	if c.Touched("Sequence_other") {
		t.Fatal("unexpected touched entry")
	}
}

func TestPayloadCommit(t *testing.T) {
	c := newTestCache(t, false)
	entry, err := c.Resolve("Scale", "<Scale[V]:640x360>")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry.HasPayload("render.mkv") {
		t.Fatal("fresh entry should not have a payload")
	}
	partial := entry.PartialPayload("render.mkv")
	if filepath.Ext(partial) != ".mkv" {
		t.Fatalf("partial payload should keep extension, got %q", partial)
	}
	if err := os.WriteFile(partial, []byte("frames"), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if entry.HasPayload("render.mkv") {
		t.Fatal("partial payload must not count as committed")
	}
	if err := entry.CommitPayload("render.mkv"); err != nil {
		t.Fatalf("CommitPayload: %v", err)
	}
	if !entry.HasPayload("render.mkv") {
		t.Fatal("expected committed payload")
	}
}

func TestCommitPayloadRejectsEmptyOutput(t *testing.T) {
	c := newTestCache(t, false)
	entry, _ := c.Resolve("Scale", "<Scale[V]:1x1>")
	if err := os.WriteFile(entry.PartialPayload("render.mkv"), nil, 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if err := entry.CommitPayload("render.mkv"); err == nil {
		t.Fatal("expected empty payload to be rejected")
	}
	if _, err := os.Stat(entry.PartialPayload("render.mkv")); !os.IsNotExist(err) {
		t.Fatal("expected empty partial removed")
	}
}

func TestStatsReportsEntries(t *testing.T) {
	c := newTestCache(t, false)
	c.statfs = func(string) (uint64, uint64, error) { return 1000, 250, nil }
	entry, _ := c.Resolve("Crossfade", "<Crossfade[V]:a~b>")
	testsupport.WriteFile(t, entry.Payload("render.mkv"), 64)
	if _, err := c.Resolve("Repeat", "<Repeat[V]:a*2>"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.FreeRatio != 0.25 {
		t.Fatalf("expected free ratio 0.25, got %v", stats.FreeRatio)
	}
	if stats.TotalBytes < 64 {
		t.Fatalf("expected at least payload bytes, got %d", stats.TotalBytes)
	}
	var found bool
	for _, summary := range stats.EntrySummaries {
		if summary.Directory == entry.Dir {
			found = true
			if summary.Class != "Crossfade" || !summary.HasPayload {
				t.Fatalf("unexpected summary %+v", summary)
			}
		}
	}
	if !found {
		t.Fatalf("entry %q missing from summaries", entry.Dir)
	}
}

func TestClearRemovesAllEntries(t *testing.T) {
	c := newTestCache(t, false)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := c.Resolve("Generator", id); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	removed, err := c.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	items, _ := os.ReadDir(c.Root())
	if len(items) != 0 {
		t.Fatalf("expected empty root, found %d items", len(items))
	}
}
