package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// convergence asserts TP1: apply(apply(s,a),b') == apply(apply(s,b),a').
func convergence(t *testing.T, s string, a, b Op) {
	t.Helper()
	aPrime, bPrime, err := Transform(a, b, true)
	require.NoError(t, err)

	left := s
	var lerr error
	left, lerr = Apply(left, a)
	require.NoError(t, lerr)
	if bPrime != nil {
		left, lerr = Apply(left, *bPrime)
		require.NoError(t, lerr)
	}

	right := s
	var rerr error
	right, rerr = Apply(right, b)
	require.NoError(t, rerr)
	if aPrime != nil {
		right, rerr = Apply(right, *aPrime)
		require.NoError(t, rerr)
	}

	assert.Equal(t, left, right, "TP1 violated for a=%+v b=%+v", a, b)
}

func TestTransformIdentityWithRetain(t *testing.T) {
	a := Op{Kind: KindInsert, Position: 2, Content: "x"}
	aPrime, bPrime, err := Transform(a, Retain(), true)
	require.NoError(t, err)
	assert.Equal(t, a, *aPrime)
	assert.Equal(t, KindRetain, bPrime.Kind)

	b := Op{Kind: KindDelete, Position: 1, Length: 2}
	aPrime2, bPrime2, err := Transform(Retain(), b, true)
	require.NoError(t, err)
	assert.Equal(t, KindRetain, aPrime2.Kind)
	assert.Equal(t, b, *bPrime2)
}

func TestTransformIdIdempotence(t *testing.T) {
	a := Op{ID: "op-1", Kind: KindInsert, Position: 2, Content: "x"}
	b := Op{ID: "op-1", Kind: KindInsert, Position: 9, Content: "y"}
	aPrime, bPrime, err := Transform(a, b, true)
	require.NoError(t, err)
	require.NotNil(t, aPrime)
	assert.Equal(t, a, *aPrime)
	assert.Nil(t, bPrime)
}

func TestTransformInsertInsertConvergence(t *testing.T) {
	convergence(t, "HELLO",
		Op{Kind: KindInsert, Position: 5, Content: "X", Timestamp: 100, UserID: "u1"},
		Op{Kind: KindInsert, Position: 5, Content: "Y", Timestamp: 101, UserID: "u2"},
	)
}

func TestTransformInsertDeleteConvergence(t *testing.T) {
	convergence(t, "ABCDEFGH",
		Op{Kind: KindInsert, Position: 4, Content: "*"},
		Op{Kind: KindDelete, Position: 2, Length: 4},
	)
}

func TestTransformInsertReplaceConvergence(t *testing.T) {
	convergence(t, "ABCDEFGH",
		Op{Kind: KindInsert, Position: 4, Content: "*"},
		Op{Kind: KindReplace, Position: 2, Length: 4, Content: "xy"},
	)
}

func TestTransformDeleteDeleteOverlapConvergence(t *testing.T) {
	convergence(t, "0123456789",
		Op{Kind: KindDelete, Position: 2, Length: 4},
		Op{Kind: KindDelete, Position: 4, Length: 4},
	)
}

func TestTransformDeleteDeleteNonOverlapConvergence(t *testing.T) {
	convergence(t, "0123456789",
		Op{Kind: KindDelete, Position: 1, Length: 2},
		Op{Kind: KindDelete, Position: 6, Length: 2},
	)
}

func TestTransformReplaceReplaceNonOverlapConvergence(t *testing.T) {
	convergence(t, "0123456789",
		Op{Kind: KindReplace, Position: 0, Length: 2, Content: "ab"},
		Op{Kind: KindReplace, Position: 5, Length: 2, Content: "xyz"},
	)
}

func TestTransformReplaceReplaceOverlapPriority(t *testing.T) {
	a := Op{Kind: KindReplace, Position: 1, Length: 4, Content: "AA"}
	b := Op{Kind: KindReplace, Position: 2, Length: 4, Content: "BB"}
	aPrime, bPrime, err := Transform(a, b, true)
	require.NoError(t, err)
	require.NotNil(t, aPrime)
	assert.Nil(t, bPrime)
	assert.Equal(t, a, *aPrime)
}

func TestTransformDeleteReplaceNonOverlapConvergence(t *testing.T) {
	convergence(t, "0123456789",
		Op{Kind: KindDelete, Position: 0, Length: 2},
		Op{Kind: KindReplace, Position: 5, Length: 2, Content: "xyz"},
	)
}

func TestTransformDeleteReplaceOverlapPriority(t *testing.T) {
	del := Op{Kind: KindDelete, Position: 2, Length: 4}
	rep := Op{Kind: KindReplace, Position: 4, Length: 4, Content: "Z"}

	delPrime, repPrime, err := Transform(del, rep, true)
	require.NoError(t, err)
	require.NotNil(t, delPrime)
	assert.Equal(t, del, *delPrime, "delete has priority, survives unchanged")
	assert.Nil(t, repPrime, "losing replace is absorbed outright")

	delPrime2, repPrime2, err := Transform(del, rep, false)
	require.NoError(t, err)
	assert.Nil(t, delPrime2, "losing delete is absorbed outright")
	require.NotNil(t, repPrime2)
	assert.Equal(t, rep, *repPrime2, "replace has priority, survives unchanged")
}

func TestTransformDeleteDeleteAbsorption(t *testing.T) {
	a := Op{Kind: KindDelete, Position: 2, Length: 2}
	b := Op{Kind: KindDelete, Position: 1, Length: 4}
	aPrime, bPrime, err := Transform(a, b, true)
	require.NoError(t, err)
	assert.Nil(t, aPrime, "a's entire span is covered by b, must be absorbed")
	require.NotNil(t, bPrime)
}

func TestScenarioA_ConcurrentInsertsSamePosition(t *testing.T) {
	text := "HELLO"
	u1 := Op{Kind: KindInsert, Position: 5, Content: "X", Timestamp: 100, UserID: "u1"}
	u2 := Op{Kind: KindInsert, Position: 5, Content: "Y", Timestamp: 101, UserID: "u2"}

	applied := []Op{}
	for _, op := range []Op{u1, u2} {
		transformed, err := TransformSequence(op, applied)
		require.NoError(t, err)
		require.NotNil(t, transformed)
		var aerr error
		text, aerr = Apply(text, *transformed)
		require.NoError(t, aerr)
		applied = append(applied, *transformed)
	}
	assert.Equal(t, "HELLOXY", text)
}

func TestScenarioB_InsertInsideDeleteRange(t *testing.T) {
	text := "ABCDEFGH"
	u1 := Op{Kind: KindDelete, Position: 2, Length: 4, Timestamp: 200, UserID: "u1"}
	u2 := Op{Kind: KindInsert, Position: 4, Content: "*", Timestamp: 201, UserID: "u2"}

	applied := []Op{}
	for _, op := range []Op{u1, u2} {
		transformed, err := TransformSequence(op, applied)
		require.NoError(t, err)
		require.NotNil(t, transformed)
		var aerr error
		text, aerr = Apply(text, *transformed)
		require.NoError(t, aerr)
		applied = append(applied, *transformed)
	}
	assert.Equal(t, "AB*GH", text)
}

func TestScenarioC_OverlappingDeletes(t *testing.T) {
	text := "0123456789"
	u1 := Op{Kind: KindDelete, Position: 2, Length: 4, Timestamp: 300, UserID: "u1"}
	u2 := Op{Kind: KindDelete, Position: 4, Length: 4, Timestamp: 301, UserID: "u2"}

	applied := []Op{}
	for _, op := range []Op{u1, u2} {
		transformed, err := TransformSequence(op, applied)
		require.NoError(t, err)
		require.NotNil(t, transformed)
		var aerr error
		text, aerr = Apply(text, *transformed)
		require.NoError(t, aerr)
		applied = append(applied, *transformed)
	}
	assert.Equal(t, "0189", text)
}

func TestTransformSequenceSkipsNonEarlierOps(t *testing.T) {
	op := Op{Kind: KindInsert, Position: 0, Content: "x", Timestamp: 50, UserID: "u1"}
	seq := []Op{
		{Kind: KindInsert, Position: 0, Content: "later", Timestamp: 60, UserID: "u2"},
	}
	transformed, err := TransformSequence(op, seq)
	require.NoError(t, err)
	require.NotNil(t, transformed)
	assert.Equal(t, op.Position, transformed.Position, "ops not strictly earlier are left untransformed")
}
