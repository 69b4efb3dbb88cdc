// Package hub implements the Session Registry / Hub: it maps sessions to
// documents and sinks, routes inbound requests to the right Document
// Engine, and fans out engine emissions to subscribers (spec.md §4.4).
package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kolabo/syncpad/internal/protocol"
	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/engine"
	"github.com/kolabo/syncpad/pkg/ot"
)

// Sink is the outbound delivery handle a Transport Adapter registers for
// one session. Send must be safe to call concurrently and must not
// block indefinitely; a sink that errs is dropped and its session is
// treated as disconnected (spec.md §4.4, §7 "SinkFailure").
type Sink interface {
	Send(msg protocol.ServerMessage) error
}

type sessionInfo struct {
	documentID string
	user       protocol.User
	sink       Sink
}

// Hub maintains sessionId -> SessionInfo and documentId -> set of
// sessionIds, and satisfies engine.Emitter so engines can deliver
// outbound messages without holding a reference back to the Hub.
type Hub struct {
	manager *engine.Manager
	log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionInfo
	byDoc    map[string]map[string]struct{}
}

// New builds a Hub with no Manager attached yet. Call AttachManager once
// the Manager exists — the two are mutually referential (the Manager's
// engines emit through the Hub, the Hub routes requests into the
// Manager's engines) so construction happens in two steps rather than a
// struct copy that would duplicate the Hub's lock.
func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log,
		sessions: make(map[string]*sessionInfo),
		byDoc:    make(map[string]map[string]struct{}),
	}
}

// AttachManager wires the Hub to the engine.Manager it routes into. Must
// be called once, before the Hub serves any requests.
func (h *Hub) AttachManager(manager *engine.Manager) {
	h.manager = manager
}

// Join records sessionID, invokes the engine's join, and only then
// subscribes sessionID's sink to documentID, so the joiner does not
// receive its own user-joined/users-updated. It returns the initial
// snapshot to send as document-state.
func (h *Hub) Join(ctx context.Context, sessionID, documentID string, user protocol.User, otpToken string, sink Sink) (*engine.Snapshot, error) {
	h.mu.Lock()
	h.sessions[sessionID] = &sessionInfo{documentID: documentID, user: user, sink: sink}
	h.mu.Unlock()

	snap, err := h.manager.Get(documentID).Join(ctx, sessionID, user, otpToken)
	if err != nil {
		h.removeSession(sessionID)
		return nil, err
	}

	h.mu.Lock()
	if _, ok := h.sessions[sessionID]; ok {
		if h.byDoc[documentID] == nil {
			h.byDoc[documentID] = make(map[string]struct{})
		}
		h.byDoc[documentID][sessionID] = struct{}{}
	}
	h.mu.Unlock()
	return snap, nil
}

// Disconnect removes sessionID from both indices and tells its engine
// to leave.
func (h *Hub) Disconnect(ctx context.Context, sessionID string) {
	info := h.removeSession(sessionID)
	if info == nil {
		return
	}
	if err := h.manager.Get(info.documentID).Leave(ctx, sessionID); err != nil {
		h.log.Warn("leave failed", zap.String("sessionId", sessionID), zap.Error(err))
	}
}

func (h *Hub) removeSession(sessionID string) *sessionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(h.sessions, sessionID)
	if set := h.byDoc[info.documentID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(h.byDoc, info.documentID)
		}
	}
	return info
}

// Operation routes an inbound operation to sessionID's engine.
func (h *Hub) Operation(ctx context.Context, sessionID string, op ot.Op) error {
	info := h.lookup(sessionID)
	if info == nil {
		return &engine.Error{Kind: engine.KindUnknownDocument, Message: "unknown session"}
	}
	return h.manager.Get(info.documentID).Enqueue(ctx, sessionID, op)
}

// Cursor routes an inbound cursor update to sessionID's engine.
func (h *Hub) Cursor(ctx context.Context, sessionID string, cursor document.Cursor) error {
	info := h.lookup(sessionID)
	if info == nil {
		return &engine.Error{Kind: engine.KindUnknownDocument, Message: "unknown session"}
	}
	return h.manager.Get(info.documentID).Cursor(ctx, sessionID, cursor)
}

// SetLanguage routes an inbound language change to sessionID's engine.
func (h *Hub) SetLanguage(ctx context.Context, sessionID, language string) error {
	info := h.lookup(sessionID)
	if info == nil {
		return &engine.Error{Kind: engine.KindUnknownDocument, Message: "unknown session"}
	}
	return h.manager.Get(info.documentID).SetLanguage(ctx, sessionID, language)
}

// SetOTP routes an inbound OTP change to sessionID's engine.
func (h *Hub) SetOTP(ctx context.Context, sessionID string, otp *string) error {
	info := h.lookup(sessionID)
	if info == nil {
		return &engine.Error{Kind: engine.KindUnknownDocument, Message: "unknown session"}
	}
	return h.manager.Get(info.documentID).SetOTP(ctx, sessionID, otp)
}

// SetUserInfo routes an inbound display-record update to sessionID's
// engine, and keeps the Hub's own copy of the session's user record in
// sync for any future Join-adjacent lookups.
func (h *Hub) SetUserInfo(ctx context.Context, sessionID string, patch protocol.User) error {
	info := h.lookup(sessionID)
	if info == nil {
		return &engine.Error{Kind: engine.KindUnknownDocument, Message: "unknown session"}
	}
	if err := h.manager.Get(info.documentID).SetUserInfo(ctx, sessionID, patch); err != nil {
		return err
	}
	h.mu.Lock()
	if info, ok := h.sessions[sessionID]; ok {
		info.user.DisplayName = patch.DisplayName
		info.user.Color = patch.Color
		info.user.Avatar = patch.Avatar
	}
	h.mu.Unlock()
	return nil
}

func (h *Hub) lookup(sessionID string) *sessionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[sessionID]
}

// EmitToOthers implements engine.Emitter.
func (h *Hub) EmitToOthers(documentID, exceptSessionID string, msg protocol.ServerMessage) {
	h.deliver(documentID, func(id string) bool { return id != exceptSessionID }, msg)
}

// EmitToAll implements engine.Emitter.
func (h *Hub) EmitToAll(documentID string, msg protocol.ServerMessage) {
	h.deliver(documentID, func(string) bool { return true }, msg)
}

// EmitToSession implements engine.Emitter.
func (h *Hub) EmitToSession(documentID, sessionID string, msg protocol.ServerMessage) {
	h.mu.RLock()
	info, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok || info.documentID != documentID {
		return
	}
	h.send(sessionID, info, msg)
}

// deliver copies the subscriber set under the lock, then sends outside
// it, per spec.md §5's "copies the subscriber set before fan-out to
// avoid holding the Hub lock across writes".
func (h *Hub) deliver(documentID string, include func(sessionID string) bool, msg protocol.ServerMessage) {
	h.mu.RLock()
	ids := h.byDoc[documentID]
	targets := make([]string, 0, len(ids))
	for id := range ids {
		if include(id) {
			targets = append(targets, id)
		}
	}
	infos := make([]*sessionInfo, len(targets))
	for i, id := range targets {
		infos[i] = h.sessions[id]
	}
	h.mu.RUnlock()

	for i, id := range targets {
		h.send(id, infos[i], msg)
	}
}

func (h *Hub) send(sessionID string, info *sessionInfo, msg protocol.ServerMessage) {
	if err := info.sink.Send(msg); err != nil {
		h.log.Warn("sink send failed, disconnecting session", zap.String("sessionId", sessionID), zap.Error(err))
		h.Disconnect(context.Background(), sessionID)
	}
}
