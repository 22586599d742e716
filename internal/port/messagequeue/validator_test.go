package messagequeue

import (
	"context"
	"strings"
	"testing"
)

const testRun = "run_20250601_120000_abcdef12"

func TestValidateValidPayloads(t *testing.T) {
	tests := []struct {
		event string
		data  string
	}{
		{EventCreated, `{"run_id":"r","repo_path":"/repo","goal":"add x","mode":"linear","created_at":"2025-06-01T12:00:00Z"}`},
		{EventStatus, `{"run_id":"r","from":"pending","status":"planning"}`},
		{EventPhase, `{"run_id":"r","phase":2,"roles":["implementer","tester","documenter"],"success":true}`},
		{EventTask, `{"run_id":"r","task_id":"task_01_analyze","role":"architect","status":"completed","summary":"ok"}`},
		{EventCompleted, `{"run_id":"r","status":"completed","files_changed":["a.py"],"errors":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			if err := Validate(RunSubject(testRun, tt.event), []byte(tt.data)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(RunSubject(testRun, EventStatus), []byte(`{not json`))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
}

func TestValidateSchemaMismatch(t *testing.T) {
	err := Validate(RunSubject(testRun, EventPhase), []byte(`{"phase":"two"}`))
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestValidateUnknownSubjectPasses(t *testing.T) {
	if err := Validate("other.subject", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(RunSubject(testRun, "future"), []byte(`{"x":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseRunSubject(t *testing.T) {
	id, event, ok := ParseRunSubject(RunSubject(testRun, EventTask))
	if !ok || id != testRun || event != EventTask {
		t.Fatalf("got %q %q %v", id, event, ok)
	}
	for _, bad := range []string{"devorch.runs", "devorch.runs.", "devorch.runs.onlyid", "tasks.created", "devorch.runs.id."} {
		if _, _, ok := ParseRunSubject(bad); ok {
			t.Errorf("ParseRunSubject(%q) should fail", bad)
		}
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), "x", nil); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
