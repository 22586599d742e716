package service_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/repocontext"
	"github.com/Strob0t/devorch/internal/service"
)

func TestDetectTaskTypes(t *testing.T) {
	tests := []struct {
		goal string
		want []plan.TaskType
	}{
		{"Add healthcheck endpoint", []plan.TaskType{plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeDocument}},
		{"fix login bug", []plan.TaskType{plan.TypeAnalyze, plan.TypeImplement, plan.TypeTest}},
		{"Refactor the parser", []plan.TaskType{plan.TypeAnalyze, plan.TypeDesign, plan.TypeImplement, plan.TypeTest}},
		{"improve documentation", []plan.TaskType{plan.TypeAnalyze, plan.TypeDocument}},
		{"polish the logs", []plan.TaskType{plan.TypeAnalyze, plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeValidate}},
		{"", []plan.TaskType{plan.TypeAnalyze, plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeValidate}},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			got := service.DetectTaskTypes(tt.goal)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("DetectTaskTypes(%q) = %v, want %v", tt.goal, got, tt.want)
			}
		})
	}
}

func TestGoalSummary(t *testing.T) {
	long := "implement " + strings.Repeat("word ", 15)
	tests := []struct {
		goal string
		want string
	}{
		{"Add healthcheck endpoint", "healthcheck endpoint"},
		{"Aggiungi endpoint di salute", "endpoint di salute"},
		{"Fix", ""},
		{"address the flaky build", "ress the flaky build"},
		{"Make it faster", "make it faster"},
		{long, strings.TrimSpace(strings.Repeat("word ", 10)) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			if got := service.GoalSummary(tt.goal); got != tt.want {
				t.Fatalf("GoalSummary(%q) = %q, want %q", tt.goal, got, tt.want)
			}
		})
	}
}

func TestCreatePlan(t *testing.T) {
	snap := &repocontext.Snapshot{
		Root:      "/repo",
		Branch:    "main",
		Files:     []string{"README.md", "main.go"},
		Important: map[string]string{"README.md": "# x"},
	}
	p := service.NewPlannerService(nil).CreatePlan("Add healthcheck endpoint", snap)

	if err := p.Validate(); err != nil {
		t.Fatalf("plan invalid: %v", err)
	}
	wantIDs := []string{"task_01_design", "task_02_implement", "task_03_test", "task_04_document"}
	if !slices.Equal(p.TaskIDs(), wantIDs) {
		t.Fatalf("ids = %v, want %v", p.TaskIDs(), wantIDs)
	}
	if p.Metadata.GoalSummary != "healthcheck endpoint" {
		t.Errorf("summary = %q", p.Metadata.GoalSummary)
	}

	wantRoles := []plan.Role{plan.RoleArchitect, plan.RoleImplementer, plan.RoleTester, plan.RoleDocumenter}
	for i, task := range p.Tasks {
		if task.Role != wantRoles[i] {
			t.Errorf("%s role = %s, want %s", task.ID, task.Role, wantRoles[i])
		}
		if task.Status != plan.TaskPending {
			t.Errorf("%s status = %s", task.ID, task.Status)
		}
		if i == 0 && len(task.Dependencies) != 0 {
			t.Errorf("first task has deps %v", task.Dependencies)
		}
		if i > 0 && !slices.Equal(task.Dependencies, []string{p.Tasks[i-1].ID}) {
			t.Errorf("%s deps = %v", task.ID, task.Dependencies)
		}
		if task.Inputs["goal"] != "Add healthcheck endpoint" {
			t.Errorf("%s goal input = %v", task.ID, task.Inputs["goal"])
		}
	}
	if p.Tasks[1].Title != "Implement healthcheck endpoint" {
		t.Errorf("title = %q", p.Tasks[1].Title)
	}
	rc, _ := p.Tasks[0].Inputs["repo_context"].(map[string]any)
	if rc["branch"] != "main" || rc["file_count"] != 2 {
		t.Errorf("repo_context = %v", rc)
	}
}

func TestCreatePlanDeterministic(t *testing.T) {
	planner := service.NewPlannerService(nil)
	a := planner.CreatePlan("fix login bug", nil)
	b := planner.CreatePlan("fix login bug", nil)
	if !slices.Equal(a.TaskIDs(), b.TaskIDs()) {
		t.Fatalf("plans differ: %v vs %v", a.TaskIDs(), b.TaskIDs())
	}
	for i := range a.Tasks {
		if a.Tasks[i].Title != b.Tasks[i].Title || a.Tasks[i].Description != b.Tasks[i].Description {
			t.Errorf("task %d differs", i)
		}
	}
}
