package collector

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchExhausted means every retry attempt failed with a transient error.
	ErrFetchExhausted = errors.New("fetch retries exhausted")
	// ErrFetchRejected means the source refused the request (HTTP 4xx other
	// than 429). Retrying would not help.
	ErrFetchRejected = errors.New("fetch rejected")
)

// FetchError is the terminal error of a Fetch call. Kind is ErrFetchExhausted
// or ErrFetchRejected; Err is the last underlying cause.
type FetchError struct {
	URL      string
	Attempts int
	Kind     error
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v after %d attempt(s): %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{e.Kind, e.Err} }
