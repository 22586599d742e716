package proposal_test

import (
	"errors"
	"testing"

	"github.com/Strob0t/devorch/internal/domain/proposal"
)

func TestFileChangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		change  proposal.FileChange
		wantErr error
	}{
		{"valid create", proposal.FileChange{Path: "src/health.py", Action: proposal.ActionCreate}, nil},
		{"valid prepend", proposal.FileChange{Path: "CHANGELOG.md", Action: proposal.ActionPrepend}, nil},
		{"inner dotdot ok", proposal.FileChange{Path: "a/../b.txt", Action: proposal.ActionModify}, nil},
		{"empty path", proposal.FileChange{Path: " ", Action: proposal.ActionCreate}, proposal.ErrPathRequired},
		{"absolute", proposal.FileChange{Path: "/etc/passwd", Action: proposal.ActionModify}, proposal.ErrPathAbsolute},
		{"escape", proposal.FileChange{Path: "../outside.txt", Action: proposal.ActionCreate}, proposal.ErrPathEscapes},
		{"nested escape", proposal.FileChange{Path: "a/../../x", Action: proposal.ActionCreate}, proposal.ErrPathEscapes},
		{"git ref", proposal.FileChange{Path: ".git/refs/heads/main", Action: proposal.ActionModify}, proposal.ErrPathMetadata},
		{"git head dot prefix", proposal.FileChange{Path: "./.git/HEAD", Action: proposal.ActionModify}, proposal.ErrPathMetadata},
		{"git config upper case", proposal.FileChange{Path: ".GIT/config", Action: proposal.ActionModify}, proposal.ErrPathMetadata},
		{"nested git dir", proposal.FileChange{Path: "vendor/lib/.git/config", Action: proposal.ActionCreate}, proposal.ErrPathMetadata},
		{"git dir via dotdot", proposal.FileChange{Path: "src/../.git/hooks/pre-commit", Action: proposal.ActionCreate}, proposal.ErrPathMetadata},
		{"gitignore ok", proposal.FileChange{Path: ".gitignore", Action: proposal.ActionModify}, nil},
		{"github dir ok", proposal.FileChange{Path: ".github/workflows/ci.yml", Action: proposal.ActionCreate}, nil},
		{"bad action", proposal.FileChange{Path: "x", Action: "rename"}, proposal.ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDedupeLastWriterWins(t *testing.T) {
	changes := []proposal.FileChange{
		{Path: "a.txt", Action: proposal.ActionCreate, Content: "first"},
		{Path: "b.txt", Action: proposal.ActionCreate, Content: "b"},
		{Path: "./a.txt", Action: proposal.ActionDelete},
	}

	got := proposal.Dedupe(changes)
	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got))
	}
	if got[0].Action != proposal.ActionDelete {
		t.Errorf("expected later delete to win for a.txt, got %s", got[0].Action)
	}
	if got[1].Path != "b.txt" {
		t.Errorf("expected b.txt second, got %s", got[1].Path)
	}
}

func TestDedupeEmpty(t *testing.T) {
	if got := proposal.Dedupe(nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestFlatten(t *testing.T) {
	ps := []proposal.Proposal{
		{FileChanges: []proposal.FileChange{{Path: "x"}}},
		{},
		{FileChanges: []proposal.FileChange{{Path: "y"}, {Path: "z"}}},
	}
	got := proposal.Flatten(ps)
	if len(got) != 3 || got[0].Path != "x" || got[2].Path != "z" {
		t.Fatalf("unexpected flatten result %v", got)
	}
}

func TestFailure(t *testing.T) {
	p := proposal.Failure("tester", "task_03_test", errors.New("llm timeout"))
	if p.Success {
		t.Error("failure proposal must not succeed")
	}
	if p.Summary != "tester failed: llm timeout" {
		t.Errorf("unexpected summary %q", p.Summary)
	}
	if len(p.Issues) != 1 || len(p.Errors) != 1 {
		t.Errorf("expected error carried in issues and errors: %+v", p)
	}
	if p.FileChanges == nil {
		t.Error("file changes must be non-nil")
	}
}

func TestUnsupported(t *testing.T) {
	p := proposal.Unsupported("documenter", "task_01_analyze", "analyze")
	if p.Success || p.Issues[0] != "Unsupported task type: analyze" {
		t.Errorf("unexpected proposal %+v", p)
	}
}

func TestNormalize(t *testing.T) {
	var p proposal.Proposal
	p.Normalize()
	if p.FileChanges == nil || p.Issues == nil || p.Recommendations == nil || p.CreatedAt.IsZero() {
		t.Errorf("normalize left zero values: %+v", p)
	}
}
