package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Subjects outside devorch.runs and
// unknown event names pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	_, event, ok := ParseRunSubject(subject)
	if !ok {
		return nil
	}

	var target any
	switch event {
	case EventCreated:
		target = &RunCreatedPayload{}
	case EventStatus:
		target = &RunStatusPayload{}
	case EventPhase:
		target = &RunPhasePayload{}
	case EventTask:
		target = &RunTaskPayload{}
	case EventCompleted:
		target = &RunCompletedPayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
