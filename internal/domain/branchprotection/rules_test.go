package branchprotection

import (
	"errors"
	"testing"
)

func TestDefaultSetProtectsBuiltins(t *testing.T) {
	s := Default()
	for _, b := range []string{"main", "master", "develop", "production"} {
		if !s.IsProtected(b) {
			t.Errorf("expected %s protected", b)
		}
	}
	for _, b := range []string{"feature/x", "orchestrator/20250101/add-thing", "mainline"} {
		if s.IsProtected(b) {
			t.Errorf("expected %s unprotected", b)
		}
	}
}

func TestNewSetExtraPatterns(t *testing.T) {
	s, err := NewSet("release/*", " ", "main", "hotfix-*")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(s.Rules()); got != 6 {
		t.Fatalf("expected 6 rules (duplicates and blanks dropped), got %d", got)
	}

	rule, ok := s.Match("release/1.2")
	if !ok || rule.Pattern != "release/*" || rule.Builtin {
		t.Errorf("unexpected match %+v %v", rule, ok)
	}
	if s.IsProtected("release/1.2/rc") {
		t.Error("glob * must not cross path separators")
	}
	if !s.IsProtected("hotfix-42") {
		t.Error("expected hotfix-42 protected")
	}
}

func TestNewSetRejectsBadPattern(t *testing.T) {
	if _, err := NewSet("release/["); err == nil {
		t.Fatal("expected error for malformed glob")
	}
}

func TestEvaluateCreate(t *testing.T) {
	s := Default()

	tests := []struct {
		name    string
		branch  string
		allowed bool
	}{
		{"main refused", "main", false},
		{"production refused", "production", false},
		{"feature allowed", "orchestrator/20250101/x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.EvaluateCreate(tt.branch)
			if res.Allowed != tt.allowed {
				t.Fatalf("EvaluateCreate(%s) = %+v", tt.branch, res)
			}
			if !tt.allowed && !errors.Is(res.Err(), ErrProtectedBranch) {
				t.Errorf("expected ErrProtectedBranch, got %v", res.Err())
			}
			if tt.allowed && res.Err() != nil {
				t.Errorf("unexpected error %v", res.Err())
			}
		})
	}
}

func TestEvaluateCommit(t *testing.T) {
	s := Default()

	tests := []struct {
		name    string
		branch  string
		allowed bool
		rule    string
	}{
		{"main", "main", false, "main"},
		{"master", "master", false, "master"},
		{"develop", "develop", false, "develop"},
		{"detached", "HEAD", false, ""},
		{"work branch", "orchestrator/20250101/x", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.EvaluateCommit(tt.branch)
			if res.Allowed != tt.allowed || res.Rule != tt.rule {
				t.Fatalf("EvaluateCommit(%s) = %+v", tt.branch, res)
			}
		})
	}
}
