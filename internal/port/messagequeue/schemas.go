package messagequeue

import "time"

// RunCreatedPayload is the schema for devorch.runs.<id>.created messages.
type RunCreatedPayload struct {
	RunID     string    `json:"run_id"`
	RepoPath  string    `json:"repo_path"`
	Goal      string    `json:"goal"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStatusPayload is the schema for devorch.runs.<id>.status messages.
type RunStatusPayload struct {
	RunID  string `json:"run_id"`
	From   string `json:"from"`
	Status string `json:"status"`
}

// RunPhasePayload is the schema for devorch.runs.<id>.phase messages.
type RunPhasePayload struct {
	RunID   string   `json:"run_id"`
	Phase   int      `json:"phase"`
	Roles   []string `json:"roles"`
	Success bool     `json:"success"`
}

// RunTaskPayload is the schema for devorch.runs.<id>.task messages.
type RunTaskPayload struct {
	RunID   string `json:"run_id"`
	TaskID  string `json:"task_id"`
	Role    string `json:"role"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// RunCompletedPayload is the schema for devorch.runs.<id>.completed messages.
type RunCompletedPayload struct {
	RunID        string   `json:"run_id"`
	Status       string   `json:"status"`
	BranchName   string   `json:"branch_name,omitempty"`
	Commit       string   `json:"commit,omitempty"`
	FilesChanged []string `json:"files_changed"`
	Errors       []string `json:"errors"`
}
