package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

type fakeSource struct {
	ch           chan services.ServiceEvent
	unsubscribed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		ch:           make(chan services.ServiceEvent, 4),
		unsubscribed: make(chan struct{}),
	}
}

func (f *fakeSource) Subscribe() (chan services.ServiceEvent, tea.Cmd) {
	return f.ch, nil
}

func (f *fakeSource) Unsubscribe(chan services.ServiceEvent) {
	close(f.unsubscribed)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialEvents(t *testing.T, src EventSource) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewRouter(testLogger(), new(MockCommands), src, nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestEventStream(t *testing.T) {
	src := newFakeSource()
	conn := dialEvents(t, src)

	src.ch <- services.RunFinishedEvent{Summary: scheduler.RunSummary{
		Trigger:   scheduler.TriggerFirst,
		ResetType: models.ResetFirst,
		Succeeded: 1,
		Resets:    2,
	}}
	f := readFrame(t, conn)
	assert.Equal(t, EventRunFinished, f.Type)
	assert.Contains(t, string(f.Data), `"trigger":"first"`)
	assert.Contains(t, string(f.Data), `"level":"INFO"`)
	assert.Contains(t, string(f.Data), `"message":"1 ok, 0 partial, 0 failed, 0 skipped"`)

	src.ch <- services.AccountsChangedEvent{Accounts: []models.AccountView{{ID: "acc-1", MaskedKey: "********abcd"}}}
	f = readFrame(t, conn)
	assert.Equal(t, EventAccountsChanged, f.Type)
	assert.Contains(t, string(f.Data), `"maskedKey":"********abcd"`)
	assert.NotContains(t, string(f.Data), "apiKey")

	src.ch <- services.ErrorEvent{Service: "accounts", Error: errors.New("bad file")}
	f = readFrame(t, conn)
	assert.Equal(t, EventError, f.Type)
	assert.JSONEq(t, `{"service":"accounts","message":"bad file"}`, string(f.Data))

	require.NoError(t, conn.Close())
	select {
	case <-src.unsubscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not unsubscribe after the client left")
	}
}

func TestEventStream_SourceClosed(t *testing.T) {
	src := newFakeSource()
	conn := dialEvents(t, src)

	close(src.ch)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestEventStream_RequiresUpgrade(t *testing.T) {
	router := NewRouter(testLogger(), new(MockCommands), newFakeSource(), nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventStream_DisabledWithoutSource(t *testing.T) {
	router := NewRouter(testLogger(), new(MockCommands), nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
