package ot

import "fmt"

// Validate enforces the admission-time invariants from spec.md §4.3 step
// 1: the kind must be client-admissible, positions must be non-negative
// and within currentLen, and insert/delete/replace carry the payload
// their kind requires.
func Validate(op Op, currentLen int) error {
	if op.Position < 0 {
		return fmt.Errorf("%w: %d", ErrNegativePosition, op.Position)
	}

	switch op.Kind {
	case KindInsert:
		if op.Content == "" {
			return ErrEmptyInsert
		}
		if op.Position > currentLen {
			return fmt.Errorf("%w: insert at %d exceeds length %d", ErrOutOfBounds, op.Position, currentLen)
		}
	case KindDelete:
		if op.Length <= 0 {
			return fmt.Errorf("%w: %d", ErrNonPositiveLength, op.Length)
		}
		if op.Position+op.Length > currentLen {
			return fmt.Errorf("%w: delete [%d,%d) exceeds length %d", ErrOutOfBounds, op.Position, op.Position+op.Length, currentLen)
		}
	case KindReplace:
		if op.Length < 0 {
			return fmt.Errorf("%w: %d", ErrNonPositiveLength, op.Length)
		}
		if op.Position+op.Length > currentLen {
			return fmt.Errorf("%w: replace [%d,%d) exceeds length %d", ErrOutOfBounds, op.Position, op.Position+op.Length, currentLen)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, op.Kind)
	}

	return nil
}
