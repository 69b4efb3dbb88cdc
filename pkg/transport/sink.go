package transport

import (
	"errors"

	"github.com/kolabo/syncpad/internal/protocol"
)

// ErrSendBufferFull is returned when a session's outbound buffer is
// saturated; the Hub treats this as a sink failure and disconnects the
// session (spec.md §7 "SinkFailure").
var ErrSendBufferFull = errors.New("transport: send buffer full")

// channelSink buffers outbound messages so engine/hub emission never
// blocks on a slow client (spec.md §5: "broadcast delivery... must not
// hold the engine lock").
type channelSink struct {
	ch chan protocol.ServerMessage
}

func newChannelSink(bufferSize int) *channelSink {
	return &channelSink{ch: make(chan protocol.ServerMessage, bufferSize)}
}

func (s *channelSink) Send(msg protocol.ServerMessage) error {
	select {
	case s.ch <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (s *channelSink) close() {
	close(s.ch)
}
