package transport

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/kolabo/syncpad/pkg/hub"
)

// Server accepts WebSocket upgrades and hands each connection off to a
// Session, mirroring the teacher's Server.handleSocket/ListenAndServe
// split but routed through the new Hub rather than a single Kolabpad.
type Server struct {
	hub            *hub.Hub
	cfg            Config
	allowedOrigin  string
	log            *zap.Logger
	httpServer     *http.Server
}

func NewServer(addr string, h *hub.Hub, cfg Config, allowedOrigin string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{hub: h, cfg: cfg, allowedOrigin: allowedOrigin, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleSocket)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if s.allowedOrigin != "" {
		opts.OriginPatterns = []string{s.allowedOrigin}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	session := NewSession(conn, s.hub, s.cfg, s.log)
	if err := session.Serve(r.Context()); err != nil {
		s.log.Debug("session ended", zap.Error(err))
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// ListenAndServe blocks serving HTTP/WebSocket traffic until the server
// is shut down.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
