package metadataapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kolabo/syncpad/pkg/document"
	"github.com/kolabo/syncpad/pkg/engine"
	"github.com/kolabo/syncpad/pkg/hub"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := document.NewFileStore(t.TempDir(), nil, nil)
	require.NoError(t, err)
	h := hub.New(nil)
	mgr := engine.NewManager(store, h, nil, nil, nil, engine.DefaultConfig())
	h.AttachManager(mgr)
	return New(store, mgr, nil, nil)
}

func TestCreateDocumentThenGet(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(createDocumentRequest{Title: "Notes", CreatedBy: "alice"})
	resp, err := http.Post(ts.URL+"/api/documents", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createDocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	require.Nil(t, created.OTP)

	getResp, err := http.Get(ts.URL + "/api/documents/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestGetDocumentMissingReturns404(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/documents/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFleetStatsReportsDocumentCount(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(createDocumentRequest{Title: "A", CreatedBy: "bob"})
	_, err := http.Post(ts.URL+"/api/documents", "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.EqualValues(t, 1, stats["documentCount"])
}

func TestDocumentHistoryUnavailableWithoutAuditLog(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/documents/any/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
