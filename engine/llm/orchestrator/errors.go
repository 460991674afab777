package orchestrator

import "fmt"

// CompletionError wraps a completion-service fault. Unlike tool faults,
// which are folded into the conversation, a completion fault ends the
// run; callers render the message to the user.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("Error calling completion service: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
