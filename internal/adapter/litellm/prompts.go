package litellm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/port/generator"
)

const (
	maxPromptFiles    = 50
	maxPromptContent  = 2000
	maxPriorReasoning = 500
)

const outputContract = `

Respond with a single JSON object and nothing else:
{
  "success": true,
  "summary": "one line",
  "reasoning": "markdown",
  "file_changes": [{"path": "relative/path", "action": "create|modify|delete|prepend", "content": "full file content", "description": "why"}],
  "recommendations": ["..."],
  "issues": ["..."]
}
Paths are relative to the repository root. "modify" replaces the whole file.`

var rolePrompts = map[plan.Role]string{
	plan.RoleArchitect: `You are an expert Software Architect agent.
Analyze the codebase structure and existing patterns, design a solution that fits
the architecture, and give the other agents clear, actionable guidance.
You normally propose no file changes.`,
	plan.RoleImplementer: `You are an expert Software Developer agent.
Implement the goal following the Architect's design and the project's conventions.
Write complete, working code with appropriate error handling.`,
	plan.RoleTester: `You are an expert Software Testing agent.
Create tests for new and modified code, cover edge cases and error paths, and
validate that the implementation meets the goal.`,
	plan.RoleDocumenter: `You are an expert Technical Documentation agent.
Document new features and changes clearly. Add a CHANGELOG entry (action "prepend")
and update the README when the change is user visible.`,
	plan.RoleReviewer: `You are an expert Code Reviewer agent.
Review all proposed changes for quality and consistency, resolve conflicts between
agents and return the final consolidated change set. Return no file changes to
approve the upstream set unchanged.`,
}

func systemPrompt(role plan.Role) string {
	p, ok := rolePrompts[role]
	if !ok {
		p = "You are a software engineering agent."
	}
	return p + outputContract
}

func userPrompt(req generator.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Goal\n%s\n\n", req.Goal)
	if req.TaskType != "" {
		fmt.Fprintf(&b, "## Task\nType: %s\n", req.TaskType)
		if req.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", req.Title)
		}
		if req.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", req.Description)
		}
		b.WriteString("\n")
	}

	if s := req.Snapshot; s != nil {
		b.WriteString("## Repository\n")
		fmt.Fprintf(&b, "Branch: %s, clean: %t\n\n", s.Branch, s.Status.Clean)
		fmt.Fprintf(&b, "**Files (%d total):**\n", len(s.Files))
		for i, f := range s.Files {
			if i == maxPromptFiles {
				b.WriteString("- ...\n")
				break
			}
			fmt.Fprintf(&b, "- %s\n", f)
		}
		for _, path := range s.ImportantPaths() {
			content := s.Important[path]
			if len(content) > maxPromptContent {
				content = content[:maxPromptContent] + "..."
			}
			fmt.Fprintf(&b, "\n`%s`:\n```\n%s\n```\n", path, content)
		}
		b.WriteString("\n")
	}

	if len(req.Prior) > 0 {
		b.WriteString("## Previous Agent Outputs\n")
		keys := make([]string, 0, len(req.Prior))
		for k := range req.Prior {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := req.Prior[k]
			fmt.Fprintf(&b, "\n### %s\n**Summary:** %s\n", k, p.Summary)
			if r := p.Reasoning; r != "" {
				if len(r) > maxPriorReasoning {
					r = r[:maxPriorReasoning] + "..."
				}
				fmt.Fprintf(&b, "**Reasoning:** %s\n", r)
			}
			for _, c := range p.FileChanges {
				fmt.Fprintf(&b, "- `%s` (%s): %s\n", c.Path, c.Action, c.Description)
			}
		}
	}
	return b.String()
}
