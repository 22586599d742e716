package gogit_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Strob0t/devorch/internal/adapter/gogit"
	"github.com/Strob0t/devorch/internal/port/contextprovider"
)

// countingCache is an in-memory cache.Cache that records hits.
type countingCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	sets int
}

func newCountingCache() *countingCache {
	return &countingCache{data: map[string][]byte{}}
}

func (c *countingCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *countingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// initRepo creates a repository with one commit holding files.
func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		writeFile(t, dir, name, content)
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
	}
	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSnapshot(t *testing.T) {
	dir := initRepo(t, map[string]string{
		"README.md":        "# demo\n",
		"src/main.py":      "print('hi')\n",
		"src/util.py":      "x = 1\n",
		"requirements.txt": strings.Repeat("a", 6000),
	})
	p := gogit.New(nil, gogit.Options{})

	snap, err := p.Snapshot(context.Background(), dir)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.Branch != "master" {
		t.Errorf("branch = %q", snap.Branch)
	}
	if strings.Join(snap.Files, ",") != "README.md,requirements.txt,src/main.py,src/util.py" {
		t.Errorf("files = %v", snap.Files)
	}
	if snap.Important["README.md"] != "# demo\n" {
		t.Errorf("README content = %q", snap.Important["README.md"])
	}
	if _, ok := snap.Important["src/main.py"]; !ok {
		t.Error("src/main.py should be included")
	}
	if _, ok := snap.Important["requirements.txt"]; ok {
		t.Error("files at or over the size limit must be excluded")
	}
	if _, ok := snap.Important["src/util.py"]; ok {
		t.Error("non-important files must not be read")
	}
	if !snap.Status.Clean {
		t.Errorf("expected clean status, got %+v", snap.Status)
	}
}

func TestSnapshotStatus(t *testing.T) {
	dir := initRepo(t, map[string]string{"app.py": "v1\n", "old.py": "gone\n"})
	writeFile(t, dir, "app.py", "v2\n")
	writeFile(t, dir, "new.py", "fresh\n")
	if err := os.Remove(filepath.Join(dir, "old.py")); err != nil {
		t.Fatal(err)
	}

	snap, err := gogit.New(nil, gogit.Options{}).Snapshot(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	st := snap.Status
	if st.Clean {
		t.Fatal("expected dirty status")
	}
	if len(st.Modified) != 1 || st.Modified[0] != "app.py" {
		t.Errorf("modified = %v", st.Modified)
	}
	if len(st.Untracked) != 1 || st.Untracked[0] != "new.py" {
		t.Errorf("untracked = %v", st.Untracked)
	}
	if len(st.Deleted) != 1 || st.Deleted[0] != "old.py" {
		t.Errorf("deleted = %v", st.Deleted)
	}
}

func TestSnapshotUnbornHead(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatal(err)
	}

	snap, err := gogit.New(nil, gogit.Options{}).Snapshot(context.Background(), dir)
	if err != nil {
		t.Fatalf("unborn HEAD must not fail: %v", err)
	}
	if len(snap.Files) != 0 {
		t.Errorf("expected empty listing, got %v", snap.Files)
	}
	if snap.Branch != "master" {
		t.Errorf("branch = %q", snap.Branch)
	}
}

func TestSnapshotNotRepository(t *testing.T) {
	_, err := gogit.New(nil, gogit.Options{}).Snapshot(context.Background(), t.TempDir())
	if !errors.Is(err, contextprovider.ErrNotRepository) {
		t.Fatalf("expected ErrNotRepository, got %v", err)
	}
}

func TestSnapshotUsesCache(t *testing.T) {
	dir := initRepo(t, map[string]string{"README.md": "cached\n", "main.py": "pass\n"})
	c := newCountingCache()
	p := gogit.New(c, gogit.Options{})

	for range 2 {
		snap, err := p.Snapshot(context.Background(), dir)
		if err != nil {
			t.Fatal(err)
		}
		if snap.Important["README.md"] != "cached\n" {
			t.Fatalf("README content = %q", snap.Important["README.md"])
		}
	}
	if c.sets != 2 {
		t.Errorf("expected 2 cache fills, got %d", c.sets)
	}
	if c.hits != 2 {
		t.Errorf("expected 2 cache hits on second snapshot, got %d", c.hits)
	}
}

func TestSnapshotCustomLimit(t *testing.T) {
	dir := initRepo(t, map[string]string{"README.md": "0123456789"})
	snap, err := gogit.New(nil, gogit.Options{MaxFileBytes: 10}).Snapshot(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Important["README.md"]; ok {
		t.Error("file of exactly the limit must be excluded")
	}
}
