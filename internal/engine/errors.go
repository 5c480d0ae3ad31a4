package engine

import "errors"

// The operation error taxonomy. The protocol layer maps these onto its own
// status codes with errors.Is; every wrapped message names the offending
// value so the caller sees what was rejected, not just the category.
var (
	// ErrNotFound: the primary target of a query (node id, symbol name,
	// file) is absent from the snapshot.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput: a malformed id, an unknown enum string, or an
	// out-of-range parameter.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIOFailure: source text for the primary target could not be read.
	ErrIOFailure = errors.New("io failure")
	// ErrUnsupported: the operation does not apply to the target's kind.
	ErrUnsupported = errors.New("unsupported")
)
