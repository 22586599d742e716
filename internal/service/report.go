package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/port/gitprovider"
)

var statusIcons = map[plan.TaskStatus]string{
	plan.TaskCompleted:  "✅",
	plan.TaskFailed:     "❌",
	plan.TaskSkipped:    "⏭️",
	plan.TaskInProgress: "🔄",
	plan.TaskPending:    "⏳",
}

// GitInfo is the working copy state shown in a report.
type GitInfo struct {
	Branch  string
	Clean   bool
	Commits []gitprovider.Commit
	Err     error
}

// ReportData is everything RenderReport needs. Nil and empty fields render
// as "none" notices.
type ReportData struct {
	Run       *run.Run
	Mode      string
	Plan      *plan.Plan
	Proposals []proposal.Proposal
	Applied   []string
	Commit    string
	Git       *GitInfo
}

// RenderReport produces the markdown run report.
func RenderReport(d ReportData) string {
	r := d.Run
	var b strings.Builder

	b.WriteString("# Orchestrator Run Report\n\n")
	b.WriteString("## Run Information\n\n")
	b.WriteString("| Property | Value |\n|----------|-------|\n")
	fmt.Fprintf(&b, "| Run ID | `%s` |\n", r.ID)
	fmt.Fprintf(&b, "| Goal | %s |\n", escapeCell(r.Goal))
	fmt.Fprintf(&b, "| Repository | `%s` |\n", r.RepoPath)
	fmt.Fprintf(&b, "| Branch | `%s` |\n", orNA(r.BranchName))
	if d.Mode != "" {
		fmt.Fprintf(&b, "| Mode | %s |\n", d.Mode)
	}
	fmt.Fprintf(&b, "| Status | %s |\n", r.Status)
	fmt.Fprintf(&b, "| Created | %s |\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "| Completed | %s |\n\n", r.UpdatedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## Goal\n\n> %s\n\n", r.Goal)

	b.WriteString("## Task Summary\n\n")
	b.WriteString(taskSummary(d.Plan))
	b.WriteString("\n\n## Proposals\n\n")
	b.WriteString(proposalSection(d.Proposals))
	b.WriteString("\n## File Changes\n\n")
	b.WriteString(fileSection(d.Applied))
	b.WriteString("\n\n## Git Information\n\n")
	b.WriteString(gitSection(d))
	b.WriteString("\n## Checklist\n\n")
	b.WriteString(checklist(d))
	b.WriteString("\n\n## Errors\n\n")
	b.WriteString(errorSection(r.Errors))
	b.WriteString("\n\n---\n*Generated by devorch*\n")
	return b.String()
}

func taskSummary(p *plan.Plan) string {
	if p == nil || len(p.Tasks) == 0 {
		return "No plan executed."
	}
	lines := []string{"| # | Task | Role | Status |", "|---|------|------|--------|"}
	for i, t := range p.Tasks {
		icon, ok := statusIcons[t.Status]
		if !ok {
			icon = "❓"
		}
		lines = append(lines, fmt.Sprintf("| %d | %s | %s | %s %s |", i+1, escapeCell(truncate(t.Title, 40)), t.Role, icon, t.Status))
	}
	return strings.Join(lines, "\n")
}

func proposalSection(props []proposal.Proposal) string {
	if len(props) == 0 {
		return "No proposals generated.\n"
	}
	var b strings.Builder
	for _, p := range props {
		icon := "✅"
		if !p.Success {
			icon = "❌"
		}
		fmt.Fprintf(&b, "### %s %s - Task %s\n\n", icon, capitalize(p.Role), p.TaskID)
		fmt.Fprintf(&b, "**Summary:** %s\n\n", p.Summary)
		if p.Reasoning != "" {
			fmt.Fprintf(&b, "<details>\n<summary>Details</summary>\n\n%s\n\n</details>\n\n", p.Reasoning)
		}
		for _, c := range p.FileChanges {
			fmt.Fprintf(&b, "- `%s` (%s)\n", c.Path, c.Action)
		}
		for _, issue := range p.Issues {
			fmt.Fprintf(&b, "- ⚠️ %s\n", issue)
		}
		if len(p.FileChanges)+len(p.Issues) > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func fileSection(applied []string) string {
	if len(applied) == 0 {
		return "No files were modified."
	}
	lines := make([]string, len(applied))
	for i, f := range applied {
		lines[i] = fmt.Sprintf("- `%s`", f)
	}
	return strings.Join(lines, "\n")
}

func gitSection(d ReportData) string {
	g := d.Git
	if g == nil {
		return "Git not initialized.\n"
	}
	if g.Err != nil {
		return fmt.Sprintf("Error getting git info: %v\n", g.Err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Current Branch:** `%s`\n", g.Branch)
	fmt.Fprintf(&b, "**Working Tree Clean:** %t\n", g.Clean)
	if d.Commit != "" {
		fmt.Fprintf(&b, "**Commit:** `%s`\n", d.Commit)
	}
	b.WriteString("\n**Recent Commits:**\n")
	if len(g.Commits) == 0 {
		b.WriteString("No commits\n")
	}
	for _, c := range g.Commits {
		fmt.Fprintf(&b, "- `%s` %s\n", truncate(c.Hash, 7), truncate(c.Message, 50))
	}
	return b.String()
}

func checklist(d ReportData) string {
	allOK := len(d.Proposals) > 0
	for _, p := range d.Proposals {
		allOK = allOK && p.Success
	}
	items := []struct {
		label string
		done  bool
	}{
		{"Plan created", d.Plan != nil},
		{"Branch created", d.Run.BranchName != ""},
		{"Tasks executed", len(d.Proposals) > 0},
		{"All tasks successful", allOK},
		{"Changes applied", len(d.Applied) > 0},
		{"Changes committed", d.Commit != ""},
		{"Report generated", true},
	}
	lines := make([]string, len(items))
	for i, it := range items {
		mark := " "
		if it.done {
			mark = "x"
		}
		lines[i] = fmt.Sprintf("- [%s] %s", mark, it.label)
	}
	return strings.Join(lines, "\n")
}

func errorSection(errs []string) string {
	if len(errs) == 0 {
		return "No errors recorded."
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = "- ❌ " + e
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
