package publisher

import "fmt"

// ExhaustedError is terminal for the pending post: one part failed all of
// its attempts. Earlier parts stay live on the platform and the post is left
// unmarked in the queue, so the run surfaces as a failure.
type ExhaustedError struct {
	Part     int // zero-based index of the failed part
	Attempts int
	Err      error // last attempt error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to publish part %d after %d attempts: %v", e.Part+1, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
