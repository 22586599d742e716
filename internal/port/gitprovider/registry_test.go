package gitprovider_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/devorch/internal/port/gitprovider"
)

// stubRepo satisfies Repository for registry tests.
type stubRepo struct {
	path string
}

func (s *stubRepo) Name() string                              { return "test-git" }
func (s *stubRepo) Path() string                              { return s.path }
func (s *stubRepo) ValidateRepo(context.Context) bool         { return true }
func (s *stubRepo) CurrentBranch(context.Context) (string, error) { return "work", nil }
func (s *stubRepo) DefaultBranch(context.Context) string      { return "main" }
func (s *stubRepo) BranchExists(context.Context, string) bool { return false }
func (s *stubRepo) IsProtected(string) bool                   { return false }
func (s *stubRepo) CreateBranch(context.Context, string, string) (*gitprovider.Result, error) {
	return &gitprovider.Result{Success: true}, nil
}
func (s *stubRepo) Checkout(context.Context, string) (*gitprovider.Result, error) {
	return &gitprovider.Result{Success: true}, nil
}
func (s *stubRepo) Status(context.Context) (*gitprovider.Status, error) {
	return &gitprovider.Status{Clean: true}, nil
}
func (s *stubRepo) Stage(context.Context, []string) (*gitprovider.Result, error) {
	return &gitprovider.Result{Success: true}, nil
}
func (s *stubRepo) Commit(context.Context, string, bool, ...string) (*gitprovider.Result, error) {
	return &gitprovider.Result{Success: true}, nil
}
func (s *stubRepo) HeadCommit(context.Context) (string, error)            { return "abc", nil }
func (s *stubRepo) Diff(context.Context, bool, string) (string, error)    { return "", nil }
func (s *stubRepo) Log(context.Context, int) ([]gitprovider.Commit, error) { return nil, nil }
func (s *stubRepo) FileList(context.Context) ([]string, error)            { return nil, nil }
func (s *stubRepo) ReadFileAt(context.Context, string, string) (string, error) {
	return "", nil
}

func TestRegisterAndNew(t *testing.T) {
	gitprovider.Register("test-git", func(repoPath string, _ gitprovider.Options) (gitprovider.Repository, error) {
		return &stubRepo{path: repoPath}, nil
	})

	r, err := gitprovider.New("test-git", "/tmp/repo", gitprovider.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Name() != "test-git" || r.Path() != "/tmp/repo" {
		t.Fatalf("unexpected repository %s at %s", r.Name(), r.Path())
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	gitprovider.Register("dup-git", func(string, gitprovider.Options) (gitprovider.Repository, error) {
		return &stubRepo{}, nil
	})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	gitprovider.Register("dup-git", func(string, gitprovider.Options) (gitprovider.Repository, error) {
		return &stubRepo{}, nil
	})
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := gitprovider.New("nonexistent", "", gitprovider.Options{})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestAvailable(t *testing.T) {
	gitprovider.Register("avail-git", func(string, gitprovider.Options) (gitprovider.Repository, error) {
		return &stubRepo{}, nil
	})
	found := false
	for _, n := range gitprovider.Available() {
		if n == "avail-git" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected avail-git in available providers")
	}
}

func TestResultErr(t *testing.T) {
	ok := &gitprovider.Result{Success: true}
	if ok.Err() != nil {
		t.Error("successful result must not produce an error")
	}

	bad := &gitprovider.Result{Success: false, ExitCode: 128, Stderr: "fatal: bad ref", Command: "git checkout nope"}
	var cmdErr *gitprovider.CommandError
	if !errors.As(bad.Err(), &cmdErr) {
		t.Fatalf("expected *CommandError, got %T", bad.Err())
	}
	if cmdErr.ExitCode != 128 || !strings.Contains(cmdErr.Error(), "fatal: bad ref") {
		t.Errorf("unexpected command error %v", cmdErr)
	}
}

func TestTimeoutErrorIs(t *testing.T) {
	var err error = &gitprovider.TimeoutError{Command: "git fetch", Timeout: time.Second}
	if !errors.Is(err, gitprovider.ErrTimeout) {
		t.Fatal("TimeoutError must match ErrTimeout")
	}
	var cmdErr *gitprovider.CommandError
	if errors.As(err, &cmdErr) {
		t.Fatal("timeout must not be a command error")
	}
}
