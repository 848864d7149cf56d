package validate

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is a single authoring problem at a location in a mission.
type ValidationError struct {
	Path   string // e.g. "scenes[1].dialogues[0].action"
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Reason, e.Value)
}

// AggregateError collects every problem found in one mission.
type AggregateError struct {
	MissionID string
	Errors    []error
}

func (e *AggregateError) Error() string {
	var sb strings.Builder
	if e.MissionID != "" {
		fmt.Fprintf(&sb, "mission %s: ", e.MissionID)
	}
	if len(e.Errors) == 1 {
		sb.WriteString(e.Errors[0].Error())
		return sb.String()
	}
	fmt.Fprintf(&sb, "%d problems", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// ValidationErrors returns the problems carried by err, or nil when err is
// not an AggregateError.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
