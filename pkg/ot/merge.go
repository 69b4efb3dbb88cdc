package ot

import "sort"

// Merge folds a batch of operations from the same user into fewer
// operations, per spec.md §4.1: consecutive inserts that abut merge into
// one, consecutive same-position deletes (a backspace run) merge into
// one, replaces never merge. Input is sorted by (position, timestamp)
// before folding; the result may be shorter than the input, never
// longer.
func Merge(ops []Op) []Op {
	if len(ops) == 0 {
		return nil
	}

	sorted := make([]Op, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	result := make([]Op, 0, len(sorted))
	current := sorted[0]

	for _, next := range sorted[1:] {
		if merged, ok := tryMerge(current, next); ok {
			current = merged
			continue
		}
		result = append(result, current)
		current = next
	}
	result = append(result, current)
	return result
}

// tryMerge attempts to fold next into current, returning the merged op
// and true on success.
func tryMerge(current, next Op) (Op, bool) {
	if current.Kind != next.Kind {
		return Op{}, false
	}

	switch current.Kind {
	case KindInsert:
		if current.Position+len(current.Content) == next.Position {
			merged := current
			merged.Content += next.Content
			return merged, true
		}
	case KindDelete:
		if current.Position == next.Position {
			merged := current
			merged.Length += next.Length
			return merged, true
		}
	}
	return Op{}, false
}

// GroupByUser partitions ops by UserID, preserving relative order within
// each group, for the per-user merge step of the flush pipeline
// (spec.md §4.3 step 4a).
func GroupByUser(ops []Op) map[string][]Op {
	groups := make(map[string][]Op)
	for _, op := range ops {
		groups[op.UserID] = append(groups[op.UserID], op)
	}
	return groups
}
