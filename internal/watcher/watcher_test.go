package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kbase/internal/models"
)

type recordingIngester struct {
	mu    sync.Mutex
	paths []string
	fail  bool
}

func (r *recordingIngester) IngestFile(_ context.Context, path string, _ []string) (*models.DocumentStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	if r.fail {
		return nil, errors.New("extract failed")
	}
	return &models.DocumentStat{Filename: filepath.Base(path), ChunkCount: 1}, nil
}

func (r *recordingIngester) ingested() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// waitFor polls until every suffix has been ingested or the deadline passes.
func (r *recordingIngester) waitFor(t *testing.T, suffixes ...string) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got := r.ingested()
		if containsAll(got, suffixes) {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %v, ingested %v", suffixes, got)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func containsAll(paths, suffixes []string) bool {
	for _, s := range suffixes {
		found := false
		for _, p := range paths {
			if strings.HasSuffix(p, s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func startWatcher(t *testing.T, ing Ingester, roots []string, exts []string, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithDebounce(30 * time.Millisecond)}, opts...)
	w := NewWatcher(ing, roots, exts, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, &recordingIngester{}, nil, []string{".txt"})

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_IngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	startWatcher(t, ing, []string{dir}, []string{".txt"})

	if err := writeFile(filepath.Join(dir, "cats.txt"), "Cats are mammals."); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "skip.bin"), "x"); err != nil {
		t.Fatal(err)
	}
	got := ing.waitFor(t, "cats.txt")
	for _, p := range got {
		if strings.HasSuffix(p, "skip.bin") {
			t.Errorf("skip.bin should not be ingested")
		}
	}
}

func TestWatcher_DebounceCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	startWatcher(t, ing, []string{dir}, []string{".md"}, WithDebounce(200*time.Millisecond))

	path := filepath.Join(dir, "notes.md")
	for i := 0; i < 5; i++ {
		if err := writeFile(path, strings.Repeat("line\n", i+1)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	ing.waitFor(t, "notes.md")
	time.Sleep(300 * time.Millisecond)
	if n := len(ing.ingested()); n != 1 {
		t.Errorf("ingested %d times, want 1", n)
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	startWatcher(t, ing, []string{dir}, []string{".txt", ".md"})

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	ing.waitFor(t, "deep.txt")
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "a"); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "sub", "b.txt"), "b"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "c.pdf"), "c"); err != nil {
		t.Fatal(err)
	}

	ing := &recordingIngester{}
	w := startWatcher(t, ing, []string{dir}, []string{".txt"})
	w.SyncExistingFiles()
	got := ing.ingested()
	if len(got) != 2 || !containsAll(got, []string{"a.txt", "b.txt"}) {
		t.Errorf("ingested %v", got)
	}

	flat := &recordingIngester{}
	w = startWatcher(t, flat, []string{dir}, []string{".txt"}, WithRecursive(false))
	w.SyncExistingFiles()
	if got := flat.ingested(); len(got) != 1 || !strings.HasSuffix(got[0], "a.txt") {
		t.Errorf("non-recursive ingested %v", got)
	}
}

func TestWatcher_IngestFailureKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{fail: true}
	startWatcher(t, ing, []string{dir}, nil)
	if err := writeFile(filepath.Join(dir, "bad.txt"), "x"); err != nil {
		t.Fatal(err)
	}
	ing.waitFor(t, "bad.txt")
	if err := writeFile(filepath.Join(dir, "next.txt"), "y"); err != nil {
		t.Fatal(err)
	}
	ing.waitFor(t, "next.txt")
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop", "inbox")
	startWatcher(t, &recordingIngester{}, []string{root}, nil)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestWatcher_StopDropsPending(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	w := startWatcher(t, ing, []string{dir}, nil, WithDebounce(300*time.Millisecond))
	if err := writeFile(filepath.Join(dir, "late.txt"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	time.Sleep(400 * time.Millisecond)
	if got := ing.ingested(); len(got) != 0 {
		t.Errorf("ingested after Stop: %v", got)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path string
		exts []string
		want bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", []string{".txt"}, false},
		{"/a/b.anything", nil, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.exts); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.exts, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir, path string
		want      bool
	}{
		{"/root", "/root/a", true},
		{"/root", "/root/a/b", true},
		{"/root", "/other", false},
		{"/root", "/rootx/a", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
