package service_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Strob0t/devorch/internal/adapter/filestore"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/port/generator"
	"github.com/Strob0t/devorch/internal/port/messagequeue"
)

var errBoom = errors.New("boom")

// funcGenerator adapts a function to generator.Generator.
type funcGenerator struct {
	name string
	fn   func(ctx context.Context, req generator.Request) (*proposal.Proposal, error)
}

func (g *funcGenerator) Name() string {
	if g.name == "" {
		return "func"
	}
	return g.name
}

func (g *funcGenerator) Generate(ctx context.Context, req generator.Request) (*proposal.Proposal, error) {
	return g.fn(ctx, req)
}

// okGenerator succeeds for every request with one change per role.
func okGenerator(changes map[string][]proposal.FileChange) *funcGenerator {
	return &funcGenerator{fn: func(_ context.Context, req generator.Request) (*proposal.Proposal, error) {
		return &proposal.Proposal{
			Success:     true,
			Summary:     string(req.Role) + " done",
			FileChanges: changes[string(req.Role)],
		}, nil
	}}
}

// pingGenerator adds a Ping that returns err.
type pingGenerator struct {
	funcGenerator
	err error
}

func (g *pingGenerator) Ping(context.Context) error { return g.err }

// recordingPublisher keeps every published subject and payload.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// events returns the event names published for runID, in order.
func (p *recordingPublisher) events(runID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.subjects {
		if id, ev, ok := messagequeue.ParseRunSubject(s); ok && id == runID {
			out = append(out, ev)
		}
	}
	return out
}

func newStore(t *testing.T) *filestore.Store {
	t.Helper()
	return filestore.New(filepath.Join(t.TempDir(), "runs"), nil)
}

func newRun(t *testing.T, store *filestore.Store, goal string) *run.Run {
	t.Helper()
	r, err := store.Create(context.Background(), t.TempDir(), goal)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return r
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
	return string(out)
}

// initTestRepo creates a repository on main with one commit.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	gitCmd(t, dir, "init", "-b", "main")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "initial")
	return dir
}
