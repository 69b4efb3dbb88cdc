package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeAdjacentInserts(t *testing.T) {
	ops := []Op{
		{Kind: KindInsert, Position: 0, Content: "a", Timestamp: 1, UserID: "u1"},
		{Kind: KindInsert, Position: 1, Content: "b", Timestamp: 2, UserID: "u1"},
		{Kind: KindInsert, Position: 2, Content: "c", Timestamp: 3, UserID: "u1"},
	}
	merged := Merge(ops)
	require.Len(t, merged, 1)
	assert.Equal(t, "abc", merged[0].Content)
	assert.Equal(t, 0, merged[0].Position)
}

func TestMergeBackspaceRun(t *testing.T) {
	ops := []Op{
		{Kind: KindDelete, Position: 5, Length: 1, Timestamp: 1, UserID: "u1"},
		{Kind: KindDelete, Position: 5, Length: 1, Timestamp: 2, UserID: "u1"},
		{Kind: KindDelete, Position: 5, Length: 1, Timestamp: 3, UserID: "u1"},
	}
	merged := Merge(ops)
	require.Len(t, merged, 1)
	assert.Equal(t, 3, merged[0].Length)
}

func TestMergeNonAdjacentInsertsStaySeparate(t *testing.T) {
	ops := []Op{
		{Kind: KindInsert, Position: 0, Content: "a", Timestamp: 1, UserID: "u1"},
		{Kind: KindInsert, Position: 10, Content: "b", Timestamp: 2, UserID: "u1"},
	}
	merged := Merge(ops)
	assert.Len(t, merged, 2)
}

func TestMergeReplaceNeverMerges(t *testing.T) {
	ops := []Op{
		{Kind: KindReplace, Position: 0, Length: 1, Content: "a", Timestamp: 1, UserID: "u1"},
		{Kind: KindReplace, Position: 1, Length: 1, Content: "b", Timestamp: 2, UserID: "u1"},
	}
	merged := Merge(ops)
	assert.Len(t, merged, 2)
}

func TestMergeCorrectness(t *testing.T) {
	s := "0123456789"
	ops := []Op{
		{Kind: KindInsert, Position: 2, Content: "A", Timestamp: 1, UserID: "u1"},
		{Kind: KindInsert, Position: 3, Content: "B", Timestamp: 2, UserID: "u1"},
	}
	merged := Merge(ops)
	require.Len(t, merged, 1)

	viaOriginal, err := ApplyAll(s, ops)
	require.NoError(t, err)
	viaMerged, err := ApplyAll(s, merged)
	require.NoError(t, err)
	assert.Equal(t, viaOriginal, viaMerged)
}

func TestGroupByUser(t *testing.T) {
	ops := []Op{
		{UserID: "u1", Kind: KindInsert, Content: "a"},
		{UserID: "u2", Kind: KindInsert, Content: "b"},
		{UserID: "u1", Kind: KindInsert, Content: "c"},
	}
	groups := GroupByUser(ops)
	assert.Len(t, groups["u1"], 2)
	assert.Len(t, groups["u2"], 1)
}
