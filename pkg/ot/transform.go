package ot

import "sort"

// Transform rebases a past b (and b past a) so that applying a' after b
// produces the same text as applying b' after a (TP1). Either return may
// be nil, meaning that side was absorbed by the other and contributes
// nothing further.
//
// aHasPriority breaks position ties: when two inserts land at the same
// offset, or a replace's span overlaps another replace's or a delete's
// span, the side with priority survives unchanged. Two overlapping
// deletes ignore priority; each is clipped by the overlap.
func Transform(a, b Op, aHasPriority bool) (aPrime, bPrime *Op, err error) {
	if a.ID != "" && a.ID == b.ID {
		ac := a.clone()
		return &ac, nil, nil
	}

	if a.Kind == KindRetain && b.Kind == KindRetain {
		ac, bc := a.clone(), b.clone()
		return &ac, &bc, nil
	}
	if a.Kind == KindRetain {
		bc := b.clone()
		return &a, &bc, nil
	}
	if b.Kind == KindRetain {
		ac := a.clone()
		return &ac, &b, nil
	}

	switch a.Kind {
	case KindInsert:
		switch b.Kind {
		case KindInsert:
			ap, bp := transformInsertInsert(a, b, aHasPriority)
			return &ap, &bp, nil
		case KindDelete:
			ap, bp := transformInsertDelete(a, b)
			return &ap, &bp, nil
		case KindReplace:
			ap, bp := transformInsertReplace(a, b)
			return &ap, &bp, nil
		}
	case KindDelete:
		switch b.Kind {
		case KindInsert:
			bp, ap := transformInsertDelete(b, a)
			return &ap, &bp, nil
		case KindDelete:
			return transformDeleteDelete(a, b)
		case KindReplace:
			return transformDeleteReplace(a, b, aHasPriority)
		}
	case KindReplace:
		switch b.Kind {
		case KindInsert:
			bp, ap := transformInsertReplace(b, a)
			return &ap, &bp, nil
		case KindDelete:
			dp, rp := transformDeleteReplace(b, a, !aHasPriority)
			return rp, dp, nil
		case KindReplace:
			return transformReplaceReplace(a, b, aHasPriority)
		}
	}

	return nil, nil, ErrInvalidKind
}

// transformInsertInsert rebases two concurrent inserts past each other.
func transformInsertInsert(a, b Op, aHasPriority bool) (Op, Op) {
	ap, bp := a.clone(), b.clone()
	if a.Position < b.Position || (a.Position == b.Position && aHasPriority) {
		bp.Position += len(a.Content)
		return ap, bp
	}
	ap.Position += len(b.Content)
	return ap, bp
}

// transformInsertDelete rebases an insert against a concurrent delete.
func transformInsertDelete(ins, del Op) (Op, Op) {
	insP, delP := ins.clone(), del.clone()
	switch {
	case ins.Position <= del.Position:
		delP.Position += len(ins.Content)
	case ins.Position >= del.end():
		insP.Position -= del.Length
	default:
		insP.Position = del.Position
	}
	return insP, delP
}

// transformInsertReplace rebases an insert against a concurrent replace.
// The spec's prose names this "like insert-delete" with b's net length
// change substituted for delete's span; resolved here (see DESIGN.md) as
// the direct generalization of transformInsertDelete, since that is the
// only reading consistent with TP1 and with scenario B's expected
// output.
func transformInsertReplace(ins, rep Op) (Op, Op) {
	insP, repP := ins.clone(), rep.clone()
	switch {
	case ins.Position <= rep.Position:
		repP.Position += len(ins.Content)
	case ins.Position >= rep.end():
		insP.Position += rep.netDelta()
	default:
		insP.Position = rep.Position + len(rep.Content)
	}
	return insP, repP
}

// transformDeleteDelete rebases two concurrent deletes past each other,
// per spec.md's overlap arithmetic. Either result may be absorbed
// (returned nil) if its remaining length drops to zero.
func transformDeleteDelete(a, b Op) (*Op, *Op) {
	aEnd, bEnd := a.end(), b.end()

	if aEnd <= b.Position || bEnd <= a.Position {
		// Non-overlapping: shift the later one by the earlier one's span.
		ap, bp := a.clone(), b.clone()
		if a.Position < b.Position {
			bp.Position -= a.Length
		} else {
			ap.Position -= b.Length
		}
		return &ap, &bp
	}

	overlap := overlapLen(a.Position, aEnd, b.Position, bEnd)

	var aOut, bOut *Op
	if remaining := a.Length - overlap; remaining > 0 {
		ap := a.clone()
		ap.Length = remaining
		if b.Position < a.Position {
			ap.Position = b.Position
		}
		aOut = &ap
	}
	if remaining := b.Length - overlap; remaining > 0 {
		bp := b.clone()
		bp.Length = remaining
		if a.Position < b.Position {
			bp.Position = a.Position
		}
		bOut = &bp
	}
	return aOut, bOut
}

// transformReplaceReplace rebases two concurrent replaces. Non-
// overlapping spans shift by each other's net length delta; overlapping
// spans resolve by priority, since a partially-overlapping replace
// cannot be meaningfully clamped the way a delete can without discarding
// new content.
func transformReplaceReplace(a, b Op, aHasPriority bool) (*Op, *Op) {
	aEnd, bEnd := a.end(), b.end()

	if aEnd <= b.Position || bEnd <= a.Position {
		ap, bp := a.clone(), b.clone()
		if a.Position < b.Position {
			bp.Position += a.netDelta()
		} else {
			ap.Position += b.netDelta()
		}
		return &ap, &bp
	}

	if aHasPriority {
		ac := a.clone()
		return &ac, nil
	}
	bc := b.clone()
	return nil, &bc
}

// transformDeleteReplace rebases a delete against a concurrent replace.
// Non-overlapping spans shift by the other's net length delta (mirroring
// delete-delete/replace-replace). spec.md defines overlap priority for
// replace-replace but is silent on delete-vs-replace; this generalizes
// that exact rule rather than delete-delete's partial-clip rule, because
// a replace carries content that cannot be partially clipped without
// losing the property that only the priority side's characters survive
// the overlap — the priority side survives unchanged, the other is
// absorbed outright (see DESIGN.md).
func transformDeleteReplace(del, rep Op, delHasPriority bool) (delPrime, repPrime *Op) {
	delEnd, repEnd := del.end(), rep.end()

	if delEnd <= rep.Position || repEnd <= del.Position {
		dp, rp := del.clone(), rep.clone()
		if del.Position < rep.Position {
			rp.Position += del.netDelta()
		} else {
			dp.Position += rep.netDelta()
		}
		return &dp, &rp
	}

	if delHasPriority {
		dc := del.clone()
		return &dc, nil
	}
	rc := rep.clone()
	return nil, &rc
}

func overlapLen(aStart, aEnd, bStart, bEnd int) int {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// TransformSequence rebases op past every operation in seq that sorts
// strictly earlier than it under the (timestamp, userID) order, per
// spec.md §4.1's T*. Operations not earlier than op are left for op to
// be transformed against when they are themselves processed. Returns nil
// if op is absorbed along the way.
func TransformSequence(op Op, seq []Op) (*Op, error) {
	ordered := make([]Op, len(seq))
	copy(ordered, seq)
	sort.SliceStable(ordered, func(i, j int) bool { return before(ordered[i], ordered[j]) })

	current := op.clone()
	for _, hist := range ordered {
		if !before(hist, current) {
			continue
		}
		aPrime, _, err := Transform(current, hist, false)
		if err != nil {
			return nil, err
		}
		if aPrime == nil {
			return nil, nil
		}
		current = *aPrime
	}
	return &current, nil
}
