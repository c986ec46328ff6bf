package webchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/hunters-code/adol-agents/internal/negotiation"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// mockService records turns and replies with a canned result.
type mockService struct {
	turns  []negotiation.TurnRequest
	result *negotiation.TurnResult
	err    error
}

func (m *mockService) ProcessTurn(_ context.Context, req negotiation.TurnRequest) (*negotiation.TurnResult, error) {
	m.turns = append(m.turns, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockService) GetState(context.Context, negotiation.Key) (*negotiation.State, error) {
	return nil, negotiation.ErrStateNotFound
}

func (m *mockService) RecordSellerFact(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func (m *mockService) Stats(context.Context) (negotiation.StatsSnapshot, error) {
	return negotiation.StatsSnapshot{}, nil
}

func (m *mockService) EvictIdle(context.Context, time.Time) ([]negotiation.Key, error) {
	return nil, nil
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32) // 16 bytes = 32 hex chars
}

func TestHandleMessage_HTTP(t *testing.T) {
	svc := &mockService{result: &negotiation.TurnResult{
		ProductID: "prod-1",
		ToBuyer:   "I can do Rp1.190.000.",
		Decision:  "counter",
	}}
	h := NewHandler(svc, logging.New("error"))

	body := `{"session_id":"sess1","text":"prod-1 800 ribu?"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.turns, 1)
	assert.Equal(t, "sess1", svc.turns[0].ThreadID)
	assert.Contains(t, w.Body.String(), "1.190.000")
	assert.Contains(t, w.Body.String(), `"decision":"counter"`)
}

func TestHandleMessage_RequiresText(t *testing.T) {
	h := NewHandler(&mockService{}, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"session_id":"s"}`))
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketRoundTrip(t *testing.T) {
	svc := &mockService{result: &negotiation.TurnResult{
		ProductID: "prod-1",
		ToBuyer:   "Deal at Rp1.300.000!",
		Decision:  "accept",
		Status:    negotiation.StatusAccepted,
	}}
	h := NewHandler(svc, logging.New("error"))

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=sess-ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var session OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &session))
	assert.Equal(t, "session", session.Type)
	assert.Equal(t, "sess-ws", session.SessionID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{
		Type: "message",
		Text: "prod-1 oke 1,3 juta deal",
	}))

	// Typing indicator first, then the reply.
	var typing OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &typing))
	assert.Equal(t, "typing", typing.Type)

	var reply OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &reply))
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "accept", reply.Decision)
	assert.Contains(t, reply.Text, "1.300.000")

	require.Len(t, svc.turns, 1)
	assert.Equal(t, "sess-ws", svc.turns[0].ThreadID)
}

func TestWebSocketPing(t *testing.T) {
	h := NewHandler(&mockService{result: &negotiation.TurnResult{ToBuyer: "hi"}}, logging.New("error"))

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=sess-ping"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var session OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &session))

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))

	var pong OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &pong))
	assert.Equal(t, "pong", pong.Type)
}
