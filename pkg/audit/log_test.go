package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kolabo/syncpad/pkg/ot"
)

func TestRecordThenHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := Open(path, nil)
	require.NoError(t, err)
	defer log.Close()

	ops := []ot.Op{
		{ID: "op-1", Kind: ot.KindInsert, Position: 0, Content: "hi", UserID: "u1", ClientID: "c1", Timestamp: 1},
		{ID: "op-2", Kind: ot.KindDelete, Position: 0, Length: 1, UserID: "u1", ClientID: "c1", Timestamp: 2},
	}
	log.Record("doc-1", 3, ops)

	entries, err := log.History("doc-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "op-1", entries[0].Op.ID)
	require.Equal(t, "op-2", entries[1].Op.ID)
	require.Equal(t, 3, entries[0].Version)
}

func TestHistoryEmptyForUnknownDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := Open(path, nil)
	require.NoError(t, err)
	defer log.Close()

	entries, err := log.History("nope")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRecordOnClosedDBDoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	require.NotPanics(t, func() {
		log.Record("doc-1", 1, []ot.Op{{ID: "op-1", Kind: ot.KindInsert}})
	})
}
