package branchprotection

import "fmt"

// EvalResult captures the outcome of evaluating a branch operation.
type EvalResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Rule    string `json:"rule,omitempty"` // matched pattern, empty if no rule applies
}

// Err returns nil when allowed, otherwise an error wrapping ErrProtectedBranch.
func (r EvalResult) Err() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrProtectedBranch, r.Reason)
}

// EvaluateCreate checks whether a branch with this name may be created.
func (s *Set) EvaluateCreate(branch string) EvalResult {
	if rule, ok := s.Match(branch); ok {
		return EvalResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot create protected branch %q", branch),
			Rule:    rule.Pattern,
		}
	}
	return EvalResult{Allowed: true, Reason: "branch is not protected"}
}

// EvaluateCommit checks whether a commit may land on the current branch.
// There is no override: protected branches never receive orchestrator commits.
func (s *Set) EvaluateCommit(current string) EvalResult {
	if current == "HEAD" {
		return EvalResult{Allowed: false, Reason: "cannot commit on a detached HEAD"}
	}
	if rule, ok := s.Match(current); ok {
		return EvalResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot commit directly to protected branch %q", current),
			Rule:    rule.Pattern,
		}
	}
	return EvalResult{Allowed: true, Reason: "commit allowed"}
}
