package scoring

import "fmt"

// BackendError is returned when a scorer backend fails or replies with
// something that cannot be turned into a score
type BackendError struct {
	Backend string
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Backend, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}
