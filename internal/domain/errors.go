package domain

import (
	"errors"
	"fmt"
)

// Common domain errors surfaced by the consensus pipeline.
var (
	// ErrElectionImpossible indicates that no meaningful election can be
	// held: fewer than two candidates or no eligible voters.
	ErrElectionImpossible = errors.New("election impossible")

	// ErrNoConsensus indicates that every group at a recursion level failed
	// to produce a winner, so the run cannot proceed.
	ErrNoConsensus = errors.New("no group produced a winner")

	// ErrNoStatements indicates that the orchestrator was given an empty
	// statement list.
	ErrNoStatements = errors.New("no statements provided")

	// ErrInvalidStrategy indicates an unrecognized voting strategy value.
	ErrInvalidStrategy = errors.New("invalid voting strategy")
)

// ParseError reports a structural failure while extracting a ranking from
// generator output. It is an expected, recoverable condition: callers retry
// or fall back rather than aborting.
type ParseError struct {
	// Reason describes what was structurally wrong with the output.
	Reason string

	// Raw holds a trimmed excerpt of the offending generator output for
	// diagnostics.
	Raw string
}

// maxRawExcerpt bounds how much raw generator output a ParseError retains.
const maxRawExcerpt = 160

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("ranking parse failed: %s", e.Reason)
	}
	return fmt.Sprintf("ranking parse failed: %s (output: %q)", e.Reason, e.Raw)
}

// NewParseError creates a ParseError, trimming the raw excerpt to a bounded
// length so attempt logs stay readable.
func NewParseError(reason, raw string) *ParseError {
	if len(raw) > maxRawExcerpt {
		raw = raw[:maxRawExcerpt] + "..."
	}
	return &ParseError{Reason: reason, Raw: raw}
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
