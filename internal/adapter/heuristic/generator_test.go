package heuristic

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/repocontext"
	"github.com/Strob0t/devorch/internal/port/generator"
)

func fixedGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }}
}

func snapshot() *repocontext.Snapshot {
	return &repocontext.Snapshot{
		Root:      "/repo",
		Branch:    "main",
		Files:     []string{"README.md", "src/health_utils.py", "src/app.py", "Makefile"},
		Important: map[string]string{"README.md": "# Demo\n"},
		Status:    repocontext.StatusSummary{Clean: true},
	}
}

func paths(p *proposal.Proposal) []string {
	out := make([]string, len(p.FileChanges))
	for i, c := range p.FileChanges {
		out[i] = c.Path
	}
	return out
}

func TestRegistered(t *testing.T) {
	g, err := generator.New("heuristic", nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "heuristic" {
		t.Fatalf("name = %q", g.Name())
	}
}

func TestImplementerByGoal(t *testing.T) {
	tests := []struct {
		goal   string
		want   []string
		action proposal.Action
	}{
		{"add healthcheck endpoint", []string{"src/health.py", "tests/test_health.py"}, proposal.ActionCreate},
		{"add users endpoint", []string{"src/api/endpoints.py"}, proposal.ActionModify},
		{"expose REST API", []string{"src/api/endpoints.py"}, proposal.ActionModify},
		{"refactor parser", []string{"src/feature.py"}, proposal.ActionCreate},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			p, err := fixedGenerator().Generate(context.Background(), generator.Request{
				Role: plan.RoleImplementer, TaskType: plan.TypeImplement, TaskID: "task_03_implement", Goal: tt.goal,
			})
			if err != nil {
				t.Fatal(err)
			}
			if !p.Success || p.Role != "implementer" || p.TaskID != "task_03_implement" {
				t.Fatalf("unexpected proposal %+v", p)
			}
			if strings.Join(paths(p), ",") != strings.Join(tt.want, ",") {
				t.Fatalf("paths = %v, want %v", paths(p), tt.want)
			}
			if p.FileChanges[0].Action != tt.action {
				t.Errorf("action = %s, want %s", p.FileChanges[0].Action, tt.action)
			}
			for _, c := range p.FileChanges {
				if err := c.Validate(); err != nil {
					t.Errorf("invalid change: %v", err)
				}
			}
		})
	}
}

func TestArchitectAnalyze(t *testing.T) {
	p, err := fixedGenerator().Generate(context.Background(), generator.Request{
		Role: plan.RoleArchitect, TaskType: plan.TypeAnalyze, Goal: "add health check", Snapshot: snapshot(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Summary != "Analyzed 4 files" {
		t.Errorf("summary = %q", p.Summary)
	}
	relevant, _ := p.Metadata["relevant_files"].([]string)
	if len(relevant) != 1 || relevant[0] != "src/health_utils.py" {
		t.Errorf("relevant = %v", relevant)
	}
	if len(p.FileChanges) != 0 {
		t.Error("analysis proposes no file changes")
	}
}

func TestArchitectDesignAndReview(t *testing.T) {
	g := fixedGenerator()
	for _, tt := range []plan.TaskType{plan.TypeDesign, plan.TypeReview} {
		p, err := g.Generate(context.Background(), generator.Request{Role: plan.RoleArchitect, TaskType: tt, Goal: "fix bug"})
		if err != nil {
			t.Fatal(err)
		}
		if !p.Success || p.Reasoning == "" || len(p.Recommendations) == 0 {
			t.Errorf("%s: unexpected proposal %+v", tt, p)
		}
	}
}

func TestTesterTargetsUpstreamFile(t *testing.T) {
	prior := map[string]proposal.Proposal{
		"implementer": {FileChanges: []proposal.FileChange{
			{Path: "src/billing.py", Action: proposal.ActionCreate},
		}},
	}
	p, err := fixedGenerator().Generate(context.Background(), generator.Request{
		Role: plan.RoleTester, TaskType: plan.TypeTest, Goal: "add billing", Prior: prior,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(p); len(got) != 1 || got[0] != "tests/test_billing.py" {
		t.Fatalf("paths = %v", got)
	}
	if !strings.Contains(p.FileChanges[0].Content, "import src.billing") {
		t.Errorf("content = %q", p.FileChanges[0].Content)
	}
}

func TestTesterFallsBackToGoal(t *testing.T) {
	p, err := fixedGenerator().Generate(context.Background(), generator.Request{
		Role: plan.RoleTester, TaskType: plan.TypeTest, Goal: "add healthcheck",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(p); got[0] != "tests/test_health.py" {
		t.Fatalf("paths = %v", got)
	}
}

func TestTesterValidate(t *testing.T) {
	p, err := fixedGenerator().Generate(context.Background(), generator.Request{
		Role: plan.RoleTester, TaskType: plan.TypeValidate, Goal: "x", Snapshot: snapshot(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Success || p.Summary != "Validation: 1/1 passed" {
		t.Fatalf("unexpected proposal %+v", p)
	}
	if !strings.Contains(p.Reasoning, "Branch: main, Clean: true") {
		t.Errorf("reasoning = %q", p.Reasoning)
	}
}

func TestDocumenter(t *testing.T) {
	g := fixedGenerator()

	p, err := g.Generate(context.Background(), generator.Request{
		Role: plan.RoleDocumenter, TaskType: plan.TypeDocument, Goal: "fix login bug",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(p); len(got) != 1 || got[0] != "CHANGELOG.md" {
		t.Fatalf("paths = %v", got)
	}
	c := p.FileChanges[0]
	if c.Action != proposal.ActionPrepend {
		t.Errorf("action = %s", c.Action)
	}
	if !strings.HasPrefix(c.Content, "## [Unreleased] - 2025-06-01\n\n### Added\n- fix login bug") {
		t.Errorf("content = %q", c.Content)
	}

	p, err = g.Generate(context.Background(), generator.Request{
		Role: plan.RoleDocumenter, TaskType: plan.TypeDocument, Goal: "add payments feature", Snapshot: snapshot(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(p); len(got) != 2 || got[1] != "README.md" {
		t.Fatalf("paths = %v", got)
	}
	readme := p.FileChanges[1]
	if readme.Action != proposal.ActionModify || !strings.HasPrefix(readme.Content, "# Demo\n") {
		t.Errorf("README change should keep existing content: %+v", readme)
	}
}

func TestReviewerHasNoChanges(t *testing.T) {
	prior := map[string]proposal.Proposal{
		"implementer": {Success: true, Summary: "impl", FileChanges: []proposal.FileChange{{Path: "a.py", Action: proposal.ActionCreate}}},
		"tester":      {Success: false, Summary: "tester failed: boom", Issues: []string{"boom"}},
	}
	p, err := fixedGenerator().Generate(context.Background(), generator.Request{Role: plan.RoleReviewer, Goal: "x", Prior: prior})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.FileChanges) != 0 {
		t.Fatal("reviewer must not propose changes")
	}
	if p.Success {
		t.Error("review of a failed upstream should not succeed")
	}
	if len(p.Issues) != 1 || p.Issues[0] != "boom" {
		t.Errorf("issues = %v", p.Issues)
	}
	if p.Summary != "Reviewed 2 proposals with 1 file change(s)" {
		t.Errorf("summary = %q", p.Summary)
	}
}

func TestUnsupportedCombination(t *testing.T) {
	_, err := fixedGenerator().Generate(context.Background(), generator.Request{Role: plan.RoleImplementer, TaskType: plan.TypeTest})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fixedGenerator().Generate(ctx, generator.Request{Role: plan.RoleReviewer}); err == nil {
		t.Fatal("expected context error")
	}
}
