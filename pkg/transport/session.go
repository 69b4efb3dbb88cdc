// Package transport is the Transport Adapter: it presents one
// persistent bidirectional client session to the Hub, decoding inbound
// messages and writing outbound ones, with no semantic logic beyond
// framing and auth hand-off (spec.md §4.5).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kolabo/syncpad/internal/protocol"
	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/hub"
)

// Session owns one client's socket for its lifetime: the read loop
// decodes inbound frames and dispatches them to the Hub; a separate
// write pump drains the session's sink and writes frames out, so a slow
// reader never blocks the engine that produced the message (mirrors the
// teacher's Connection.broadcastUpdates split).
type Session struct {
	id            string
	conn          *websocket.Conn
	hub           *hub.Hub
	sink          *channelSink
	readTimeout   time.Duration
	writeTimeout  time.Duration
	log           *zap.Logger
}

// Config bounds a session's timeouts and buffering.
type Config struct {
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	BroadcastBufferSize int
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout:         10 * time.Minute,
		WriteTimeout:        10 * time.Second,
		BroadcastBufferSize: 64,
	}
}

// NewSession wraps an already-accepted WebSocket connection.
func NewSession(conn *websocket.Conn, h *hub.Hub, cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:           id,
		conn:         conn,
		hub:          h,
		sink:         newChannelSink(cfg.BroadcastBufferSize),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		log:          log.With(zap.String("sessionId", id)),
	}
}

// Serve drives the session until the socket closes or ctx is canceled.
// The first inbound message must be join-document; everything the
// protocol defines afterward is dispatched to the Hub.
func (s *Session) Serve(ctx context.Context) error {
	writerDone := make(chan struct{})
	go s.writePump(ctx, writerDone)
	// cleanup closes the sink, which is what ends the write pump, so it
	// must run before waiting on writerDone.
	defer func() {
		s.cleanup(ctx)
		<-writerDone
	}()

	joined := false
	for {
		readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
		var msg protocol.ClientMessage
		err := wsjson.Read(readCtx, s.conn, &msg)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("transport: read: %w", err)
		}

		if !joined {
			if msg.Type != protocol.ClientJoinDocument {
				s.sendError("first message must be join-document")
				continue
			}
			if err := s.handleJoin(ctx, msg); err != nil {
				s.sendError(err.Error())
				return err
			}
			joined = true
			continue
		}

		if err := s.dispatch(ctx, msg); err != nil {
			s.sendError(err.Error())
		}
	}
}

func (s *Session) handleJoin(ctx context.Context, msg protocol.ClientMessage) error {
	user := protocol.User{UserID: s.id, DisplayName: "Anonymous"}
	if msg.User != nil {
		if msg.User.UserID != "" {
			user.UserID = msg.User.UserID
		}
		if msg.User.DisplayName != "" {
			user.DisplayName = msg.User.DisplayName
		}
		user.Color = msg.User.Color
		user.Avatar = msg.User.Avatar
	}
	snap, err := s.hub.Join(ctx, s.id, msg.DocumentID, user, msg.OTPToken, s.sink)
	if err != nil {
		return err
	}
	return s.sink.Send(protocol.NewDocumentStateMsg(snap.Content, snap.Version, snap.Metadata, snap.ActiveUsers))
}

func (s *Session) dispatch(ctx context.Context, msg protocol.ClientMessage) error {
	switch msg.Type {
	case protocol.ClientOperation:
		return s.hub.Operation(ctx, s.id, *msg.Operation)
	case protocol.ClientCursorUpdate:
		return s.hub.Cursor(ctx, s.id, document.Cursor{Position: msg.Cursor.Position, SelectionEnd: msg.Cursor.SelectionEnd})
	case protocol.ClientSetLanguage:
		return s.hub.SetLanguage(ctx, s.id, *msg.Language)
	case protocol.ClientSetOTP:
		return s.hub.SetOTP(ctx, s.id, msg.OTP)
	case protocol.ClientSetUserInfo:
		return s.hub.SetUserInfo(ctx, s.id, *msg.User)
	case protocol.ClientJoinDocument:
		return fmt.Errorf("transport: already joined")
	default:
		return fmt.Errorf("transport: unknown message type %q", msg.Type)
	}
}

func (s *Session) sendError(message string) {
	_ = s.sink.Send(protocol.NewErrorMsg(message))
}

// writePump drains the sink and writes frames to the socket; it is the
// only goroutine that ever calls conn.Write, per nhooyr.io/websocket's
// single-writer requirement.
func (s *Session) writePump(ctx context.Context, done chan struct{}) {
	defer close(done)
	for msg := range s.sink.ch {
		data, err := json.Marshal(msg)
		if err != nil {
			s.log.Warn("marshal outbound message failed", zap.Error(err))
			continue
		}
		writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err = s.conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.log.Debug("write failed, closing session", zap.Error(err))
			return
		}
	}
}

func (s *Session) cleanup(ctx context.Context) {
	s.hub.Disconnect(ctx, s.id)
	s.sink.close()
}
