package service

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/repocontext"
)

const maxGoalSummary = 50

// keywordTypes maps goal keywords to the task types they call for. Every
// matching keyword contributes; the union is projected onto plan.Order.
var keywordTypes = []struct {
	keyword string
	types   []plan.TaskType
}{
	{"endpoint", []plan.TaskType{plan.TypeImplement, plan.TypeTest, plan.TypeDocument}},
	{"api", []plan.TaskType{plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeDocument}},
	{"test", []plan.TaskType{plan.TypeAnalyze, plan.TypeImplement, plan.TypeTest}},
	{"refactor", []plan.TaskType{plan.TypeAnalyze, plan.TypeDesign, plan.TypeImplement, plan.TypeTest}},
	{"fix", []plan.TaskType{plan.TypeAnalyze, plan.TypeImplement, plan.TypeTest}},
	{"bug", []plan.TaskType{plan.TypeAnalyze, plan.TypeImplement, plan.TypeTest}},
	{"feature", []plan.TaskType{plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeDocument}},
	{"add", []plan.TaskType{plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeDocument}},
	{"create", []plan.TaskType{plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeDocument}},
	{"update", []plan.TaskType{plan.TypeAnalyze, plan.TypeImplement, plan.TypeTest}},
	{"documentation", []plan.TaskType{plan.TypeAnalyze, plan.TypeDocument}},
	{"healthcheck", []plan.TaskType{plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeDocument}},
	{"health", []plan.TaskType{plan.TypeDesign, plan.TypeImplement, plan.TypeTest}},
}

var defaultWorkflow = []plan.TaskType{
	plan.TypeAnalyze, plan.TypeDesign, plan.TypeImplement, plan.TypeTest, plan.TypeValidate,
}

// summaryPrefixes are leading verbs dropped from the goal summary; the first
// match wins.
var summaryPrefixes = []string{"aggiungi", "add", "create", "implement", "fix", "update"}

type taskTemplate struct {
	title       string // formatted with the goal summary
	description string // formatted with the goal
}

var taskTemplates = map[plan.TaskType]taskTemplate{
	plan.TypeAnalyze:   {"Analyze codebase for %s", "Review existing code structure and identify relevant files and patterns for: %s"},
	plan.TypeDesign:    {"Design solution for %s", "Create technical design and identify changes needed for: %s"},
	plan.TypeImplement: {"Implement %s", "Write or modify code to implement: %s"},
	plan.TypeTest:      {"Create tests for %s", "Write and run tests to verify: %s"},
	plan.TypeDocument:  {"Document %s", "Update documentation and changelog for: %s"},
	plan.TypeReview:    {"Review changes for %s", "Review all changes made and ensure quality for: %s"},
	plan.TypeValidate:  {"Validate %s", "Run final validation and create summary for: %s"},
}

// PlannerService turns a goal into a linear task plan. It is deterministic:
// the same goal always yields the same tasks.
type PlannerService struct {
	log *slog.Logger
	now func() time.Time
}

// NewPlannerService creates a planner.
func NewPlannerService(log *slog.Logger) *PlannerService {
	if log == nil {
		log = slog.Default()
	}
	return &PlannerService{log: log, now: time.Now}
}

// CreatePlan decomposes goal into tasks chained in plan.Order.
func (s *PlannerService) CreatePlan(goal string, snap *repocontext.Snapshot) *plan.Plan {
	now := s.now()
	summary := GoalSummary(goal)
	types := DetectTaskTypes(goal)

	tasks := make([]*plan.Task, 0, len(types))
	prev := ""
	for i, t := range types {
		role, _ := plan.RoleFor(t)
		tmpl := taskTemplates[t]
		task := &plan.Task{
			ID:           plan.TaskID(i+1, t),
			Type:         t,
			Title:        fmt.Sprintf(tmpl.title, summary),
			Description:  fmt.Sprintf(tmpl.description, goal),
			Role:         role,
			Status:       plan.TaskPending,
			Dependencies: []string{},
			Inputs:       map[string]any{"goal": goal, "repo_context": repoContext(snap)},
			CreatedAt:    now,
		}
		if prev != "" {
			task.Dependencies = []string{prev}
		}
		tasks = append(tasks, task)
		prev = task.ID
	}

	p := &plan.Plan{
		Goal:      goal,
		Tasks:     tasks,
		CreatedAt: now,
		Metadata:  plan.Metadata{DetectedTypes: types, GoalSummary: summary},
	}
	s.log.Info("plan created", "tasks", len(tasks), "types", types)
	return p
}

// DetectTaskTypes returns the task types goal calls for, in plan.Order.
func DetectTaskTypes(goal string) []plan.TaskType {
	lower := strings.ToLower(goal)
	detected := map[plan.TaskType]bool{}
	for _, kw := range keywordTypes {
		if strings.Contains(lower, kw.keyword) {
			for _, t := range kw.types {
				detected[t] = true
			}
		}
	}
	if len(detected) == 0 {
		for _, t := range defaultWorkflow {
			detected[t] = true
		}
	}

	out := make([]plan.TaskType, 0, len(detected))
	for _, t := range plan.Order {
		if detected[t] {
			out = append(out, t)
		}
	}
	return out
}

// GoalSummary lower-cases goal, strips one leading verb and shortens the
// rest to at most 50 characters on a word boundary.
func GoalSummary(goal string) string {
	summary := strings.ToLower(goal)
	for _, prefix := range summaryPrefixes {
		if strings.HasPrefix(summary, prefix) {
			summary = strings.TrimSpace(summary[len(prefix):])
			break
		}
	}
	if len(summary) > maxGoalSummary {
		cut := summary[:maxGoalSummary]
		if i := strings.LastIndexByte(cut, ' '); i >= 0 {
			cut = cut[:i]
		}
		summary = strings.ToValidUTF8(cut, "") + "..."
	}
	return summary
}

// repoContext is the compact snapshot view stored in task inputs.
func repoContext(snap *repocontext.Snapshot) map[string]any {
	if snap == nil {
		return map[string]any{}
	}
	return map[string]any{
		"root":       snap.Root,
		"branch":     snap.Branch,
		"file_count": len(snap.Files),
		"important":  snap.ImportantPaths(),
	}
}
