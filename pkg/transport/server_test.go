package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kolabo/syncpad/internal/protocol"
	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/engine"
	"github.com/kolabo/syncpad/pkg/hub"
	"github.com/kolabo/syncpad/pkg/ot"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := document.NewFileStore(t.TempDir(), nil, nil)
	require.NoError(t, err)
	h := hub.New(nil)
	mgr := engine.NewManager(store, h, nil, nil, nil, engine.DefaultConfig())
	h.AttachManager(mgr)

	srv := NewServer("", h, DefaultConfig(), "", nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var msg map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func TestSingleSessionReceivesDocumentState(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts)

	require.NoError(t, wsjson.Write(context.Background(), conn, protocol.ClientMessage{
		Type:       protocol.ClientJoinDocument,
		DocumentID: "doc-1",
	}))

	msg := readMsg(t, conn)
	require.Equal(t, string(protocol.ServerDocumentState), msg["type"])
}

func TestOperationBroadcastsToSecondSession(t *testing.T) {
	ts := newTestServer(t)
	conn1 := dial(t, ts)
	conn2 := dial(t, ts)

	require.NoError(t, wsjson.Write(context.Background(), conn1, protocol.ClientMessage{
		Type: protocol.ClientJoinDocument, DocumentID: "doc-2",
	}))
	readMsg(t, conn1) // document-state

	require.NoError(t, wsjson.Write(context.Background(), conn2, protocol.ClientMessage{
		Type: protocol.ClientJoinDocument, DocumentID: "doc-2",
	}))
	readMsg(t, conn2)          // document-state
	readMsg(t, conn1)          // user-joined for conn2
	readMsg(t, conn1)          // users-updated

	op := ot.Op{Kind: ot.KindInsert, Position: 0, Content: "hi"}
	require.NoError(t, wsjson.Write(context.Background(), conn1, protocol.ClientMessage{
		Type:       protocol.ClientOperation,
		DocumentID: "doc-2",
		Operation:  &op,
	}))

	msg := readMsg(t, conn2)
	require.Equal(t, string(protocol.ServerOperationLive), msg["type"])
}
