package ot

import "errors"

// Sentinel errors surfaced by the algebra. The engine reports a failed
// admission to callers as an engine.Error of kind InvalidOperation
// carrying the sentinel's message; see pkg/engine/errors.go.
var (
	// ErrInvalidKind is returned when an op carries a kind Apply or
	// Transform cannot act on in the given position.
	ErrInvalidKind = errors.New("ot: invalid operation kind")
	// ErrOutOfBounds is returned when an op's position/length falls
	// outside the text it is being applied to.
	ErrOutOfBounds = errors.New("ot: operation out of bounds")
	// ErrEmptyInsert is returned when an insert op carries no content.
	ErrEmptyInsert = errors.New("ot: insert operation has empty content")
	// ErrNegativePosition is returned when an op's position is negative.
	ErrNegativePosition = errors.New("ot: negative position")
	// ErrNonPositiveLength is returned when a delete op has length <= 0
	// or a replace op has a negative length.
	ErrNonPositiveLength = errors.New("ot: non-positive delete length")
)
