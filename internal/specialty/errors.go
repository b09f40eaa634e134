package specialty

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery is returned when the free-text input is empty after trimming
	ErrEmptyQuery = errors.New("specialty: query is required")

	// ErrNoMatch is returned when no specialty clears the acceptance threshold
	ErrNoMatch = errors.New("specialty: no matching specialty")
)

// NoMatchError carries the best-scoring near misses alongside ErrNoMatch so
// callers can surface suggestions instead of a bare failure.
type NoMatchError struct {
	Query       string
	Suggestions []Suggestion
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("specialty: no match for %q", e.Query)
}

func (e *NoMatchError) Is(target error) bool {
	return target == ErrNoMatch
}
