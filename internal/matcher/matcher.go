// Package matcher compiles n-gram patterns into word-boundary anchored,
// case-insensitive expressions and counts their non-overlapping matches.
//
// Expressions run on regexp2, whose \b treats every Unicode letter, mark,
// digit and connector as a word character, so "café" and "über" are whole
// words and "na" does not match inside "naïve".
package matcher

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// Mode controls how pattern text is embedded into the matching expression
type Mode int

const (
	// Syntax embeds the pattern as-is, so regular expression metacharacters keep their meaning
	Syntax Mode = iota
	// Literal quotes every metacharacter so the pattern only matches its own text
	Literal
)

// String returns the mode name used in config files and flags
func (m Mode) String() string {
	switch m {
	case Literal:
		return "literal"
	default:
		return "syntax"
	}
}

// ParseMode converts a config value into a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "syntax":
		return Syntax, nil
	case "literal":
		return Literal, nil
	default:
		return Syntax, fmt.Errorf("unknown pattern mode %q (want syntax or literal)", s)
	}
}

// InvalidPatternError reports a pattern that does not compile once anchored
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Expression builds the anchored expression for pattern without compiling it
func Expression(pattern string, mode Mode) string {
	if mode == Literal {
		pattern = regexp2.Escape(pattern)
	}
	return `(?i)\b` + pattern + `\b`
}

// Compile turns pattern into a case-insensitive matcher anchored on word
// boundaries at both ends. Matchers are not cached.
func Compile(pattern string, mode Mode) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(Expression(pattern, mode), regexp2.None)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}

// Count returns the number of non-overlapping matches of re in corpus.
// After a match at p of length L the scan resumes at p+L; an empty match
// moves the scan one character forward.
func Count(re *regexp2.Regexp, corpus string) (int, error) {
	count := 0
	m, err := re.FindStringMatch(corpus)
	for m != nil && err == nil {
		count++
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return 0, fmt.Errorf("matching %s: %w", re.String(), err)
	}
	return count, nil
}

// CountPattern compiles pattern and counts it in corpus
func CountPattern(pattern, corpus string, mode Mode) (int, error) {
	re, err := Compile(pattern, mode)
	if err != nil {
		return 0, err
	}
	return Count(re, corpus)
}
