package ngram

import (
	"fmt"
	"sort"
	"strings"
)

// Failure is one pattern or template that could not be counted
type Failure struct {
	// Word is the candidate word being expanded, empty outside combinatorial counting
	Word    string
	Pattern string
	Err     error
}

func (f Failure) Error() string {
	if f.Word != "" {
		return fmt.Sprintf("word %q: %v", f.Word, f.Err)
	}
	return f.Err.Error()
}

// PartialError lists the failures of a call made with WithPartialResults.
// The result returned alongside it holds every count that succeeded.
type PartialError struct {
	Failures []Failure
}

func newPartialError(failures []Failure) *PartialError {
	sorted := make([]Failure, len(failures))
	copy(sorted, failures)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Word != sorted[j].Word {
			return sorted[i].Word < sorted[j].Word
		}
		return sorted[i].Pattern < sorted[j].Pattern
	})
	return &PartialError{Failures: sorted}
}

func (e *PartialError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d pattern(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As
func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
