// Package filestore implements the ledger port on the local filesystem:
// one directory per run holding its state, plan, report, execution log and
// per-task proposals.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/Strob0t/devorch/internal/domain"
	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/port/ledger"
)

// File names inside a run directory.
const (
	StateFile    = ledger.StateFile
	PlanFile     = ledger.PlanFile
	ReportFile   = ledger.ReportFile
	LogFile      = ledger.LogFile
	ProposalsDir = ledger.ProposalsDir
)

const (
	dirPerm  = 0o700
	filePerm = 0o600

	// createAttempts bounds identity regeneration when two runs collide.
	createAttempts = 5
)

var proposalName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Store keeps runs under a root directory.
type Store struct {
	root        string
	retryConfig retry.Config
	log         *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// New returns a Store rooted at root. The directory is created lazily.
func New(root string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
		log: log,
	}
}

// Root returns the runs directory.
func (s *Store) Root() string { return s.root }

// RunDir returns <root>/<id>.
func (s *Store) RunDir(id string) string {
	return filepath.Join(s.root, id)
}

// Create makes a pending run with a fresh identity and persists it. The run
// directory is claimed with a non-recursive mkdir so two concurrent creations
// can never share one.
func (s *Store) Create(ctx context.Context, repoPath, goal string) (*run.Run, error) {
	if err := os.MkdirAll(s.root, dirPerm); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}
	for range createAttempts {
		r := run.New(repoPath, goal)
		err := os.Mkdir(s.RunDir(r.ID), dirPerm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
		r.Log(run.LevelInfo, "Run created", map[string]any{"repo_path": r.RepoPath, "goal": goal})
		if err := s.Save(ctx, r); err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("create run: identity collision after %d attempts", createAttempts)
}

// Save overwrites state.json.
func (s *Store) Save(_ context.Context, r *run.Run) error {
	if !run.ValidID(r.ID) {
		return fmt.Errorf("save run: %w: invalid run id %q", domain.ErrValidation, r.ID)
	}
	return s.writeJSON(r.ID, StateFile, r)
}

// Load reads state.json. An unknown or malformed id yields domain.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*run.Run, error) {
	path, err := s.existing(id, StateFile)
	if err != nil {
		return nil, err
	}
	r, err := retry.New[*run.Run](s.retryConfig).Do(ctx, func(context.Context) (*run.Run, error) {
		var r run.Run
		if err := readJSON(path, &r); err != nil {
			return nil, err
		}
		return &r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return r, nil
}

// List returns a summary of every run directory holding a state file,
// newest first. Unreadable runs are skipped.
func (s *Store) List(ctx context.Context) ([]run.Summary, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []run.Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]run.Summary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !run.ValidID(e.Name()) {
			continue
		}
		var r run.Run
		if err := readJSON(filepath.Join(s.RunDir(e.Name()), StateFile), &r); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.log.WarnContext(ctx, "skipping unreadable run", "run_id", e.Name(), "error", err)
			}
			continue
		}
		out = append(out, r.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SavePlan overwrites plan.json.
func (s *Store) SavePlan(_ context.Context, id string, p *plan.Plan) error {
	if !run.ValidID(id) {
		return fmt.Errorf("save plan: %w: invalid run id %q", domain.ErrValidation, id)
	}
	return s.writeJSON(id, PlanFile, p)
}

// LoadPlan reads and validates plan.json.
func (s *Store) LoadPlan(_ context.Context, id string) (*plan.Plan, error) {
	path, err := s.existing(id, PlanFile)
	if err != nil {
		return nil, err
	}
	var p plan.Plan
	if err := readJSON(path, &p); err != nil {
		return nil, fmt.Errorf("load plan %s: %w", id, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("load plan %s: %w: %w", id, domain.ErrValidation, err)
	}
	return &p, nil
}

// SaveReport overwrites report.md.
func (s *Store) SaveReport(_ context.Context, id, markdown string) error {
	if !run.ValidID(id) {
		return fmt.Errorf("save report: %w: invalid run id %q", domain.ErrValidation, id)
	}
	return s.write(id, ReportFile, []byte(markdown))
}

// LoadReport reads report.md.
func (s *Store) LoadReport(_ context.Context, id string) (string, error) {
	path, err := s.existing(id, ReportFile)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- id validated by existing
	if err != nil {
		return "", fmt.Errorf("load report %s: %w", id, err)
	}
	return string(data), nil
}

// SaveProposal writes agent_outputs/<name>.json.
func (s *Store) SaveProposal(_ context.Context, id, name string, p *proposal.Proposal) error {
	if !run.ValidID(id) {
		return fmt.Errorf("save proposal: %w: invalid run id %q", domain.ErrValidation, id)
	}
	if !proposalName.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("save proposal: %w: invalid name %q", domain.ErrValidation, name)
	}
	return s.writeJSON(id, filepath.Join(ProposalsDir, name+".json"), p)
}

// OpenLog opens execution.log for appending, creating it if needed.
func (s *Store) OpenLog(_ context.Context, id string) (io.WriteCloser, error) {
	if !run.ValidID(id) {
		return nil, fmt.Errorf("open log: %w: invalid run id %q", domain.ErrValidation, id)
	}
	dir := s.RunDir(id)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return f, nil
}

// existing resolves name inside the run directory and maps a missing run
// to domain.ErrNotFound.
func (s *Store) existing(id, name string) (string, error) {
	if !run.ValidID(id) {
		return "", fmt.Errorf("run not found: %s: %w", id, domain.ErrNotFound)
	}
	if _, err := os.Stat(filepath.Join(s.RunDir(id), StateFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("run not found: %s: %w", id, domain.ErrNotFound)
		}
		return "", fmt.Errorf("stat run %s: %w", id, err)
	}
	path := filepath.Join(s.RunDir(id), name)
	if name != StateFile {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s for run %s: %w", name, id, domain.ErrNotFound)
		}
	}
	return path, nil
}

func (s *Store) writeJSON(id, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return s.write(id, name, data)
}

func (s *Store) write(id, name string, data []byte) error {
	path := filepath.Join(s.RunDir(id), name)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- callers pass validated run paths
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// atomicWrite writes to a temp file in the same directory and renames it
// over path, so readers never see a partial file.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	ok = true
	return nil
}
