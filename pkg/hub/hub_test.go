package hub

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolabo/syncpad/internal/protocol"
	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/engine"
	"github.com/kolabo/syncpad/pkg/ot"
)

type memStore struct {
	mu   sync.Mutex
	docs map[string]*document.Document
}

func newMemStore() *memStore { return &memStore{docs: map[string]*document.Document{}} }

func (s *memStore) Load(ctx context.Context, id string) (*document.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, false, nil
	}
	return d.Clone(), true, nil
}
func (s *memStore) Save(ctx context.Context, d *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[d.ID] = d.Clone()
	return nil
}
func (s *memStore) Delete(ctx context.Context, id string) error { return nil }
func (s *memStore) Count(ctx context.Context) (int, error)      { return len(s.docs), nil }
func (s *memStore) IDs(ctx context.Context) ([]string, error)   { return nil, nil }
func (s *memStore) Close() error                                { return nil }

type recordingSink struct {
	mu       sync.Mutex
	received []protocol.ServerMessage
	fail     bool
}

func (r *recordingSink) Send(msg protocol.ServerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return assert.AnError
	}
	r.received = append(r.received, msg)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func newTestHub() *Hub {
	store := newMemStore()
	cfg := engine.DefaultConfig()
	h := New(nil)
	mgr := engine.NewManager(store, h, nil, nil, nil, cfg)
	h.AttachManager(mgr)
	return h
}

func TestJoinNotifiesExistingSession(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	sink1 := &recordingSink{}
	_, err := h.Join(ctx, "s1", "doc-1", protocol.User{UserID: "u1"}, "", sink1)
	require.NoError(t, err)

	sink2 := &recordingSink{}
	_, err = h.Join(ctx, "s2", "doc-1", protocol.User{UserID: "u2"}, "", sink2)
	require.NoError(t, err)

	// s1 should have received a user-joined + users-updated for s2's
	// join; s2 never gets its own join events echoed to itself.
	assert.True(t, sink1.count() > 0)
}

func TestOperationRoutesToCorrectDocument(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	sink1 := &recordingSink{}
	_, err := h.Join(ctx, "s1", "doc-1", protocol.User{UserID: "u1"}, "", sink1)
	require.NoError(t, err)

	require.NoError(t, h.Operation(ctx, "s1", ot.Op{Kind: ot.KindInsert, Position: 0, Content: "hi"}))
}

func TestOperationFromUnknownSessionErrors(t *testing.T) {
	h := newTestHub()
	err := h.Operation(context.Background(), "ghost", ot.Op{Kind: ot.KindInsert, Position: 0, Content: "x"})
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engine.KindUnknownDocument, engErr.Kind)
}

func TestSinkFailureDisconnectsSession(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	sink1 := &recordingSink{fail: true}
	_, err := h.Join(ctx, "s1", "doc-1", protocol.User{UserID: "u1"}, "", sink1)
	require.NoError(t, err)
	sink2 := &recordingSink{}
	_, err = h.Join(ctx, "s2", "doc-1", protocol.User{UserID: "u2"}, "", sink2)
	require.NoError(t, err)

	h.mu.RLock()
	_, stillThere := h.sessions["s1"]
	h.mu.RUnlock()
	assert.False(t, stillThere, "failing sink must be disconnected")
}

func TestDisconnectRemovesFromBothIndices(t *testing.T) {
	h := newTestHub()
	ctx := context.Background()
	sink1 := &recordingSink{}
	_, err := h.Join(ctx, "s1", "doc-1", protocol.User{UserID: "u1"}, "", sink1)
	require.NoError(t, err)

	h.Disconnect(ctx, "s1")

	h.mu.RLock()
	_, inSessions := h.sessions["s1"]
	docSet := h.byDoc["doc-1"]
	h.mu.RUnlock()
	assert.False(t, inSessions)
	assert.NotContains(t, docSet, "s1")
}
