package regent

import (
	"errors"
	"fmt"
)

// ErrMaxIterations is matched by *IterationLimitError.
var ErrMaxIterations = errors.New("maximum iterations exceeded")

// IterationLimitError is returned when a run makes as many model calls as
// allowed without reaching an Answer.
type IterationLimitError struct {
	Limit int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("agent reached %d iterations without an answer", e.Limit)
}

func (e *IterationLimitError) Is(target error) bool {
	return target == ErrMaxIterations
}

// ErrMalformedOutput is matched by *MalformedOutputError.
var ErrMalformedOutput = errors.New("malformed model output")

// MalformedOutputError is returned under MalformedFail when a reply has
// neither an Action nor an Answer.
type MalformedOutputError struct {
	Output string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("model reply has neither an Action nor an Answer: %q", e.Output)
}

func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedOutput
}

// ToolError wraps a failure raised by tool code.
type ToolError struct {
	Tool     string
	Argument string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
