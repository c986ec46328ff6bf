package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/hunters-code/adol-agents/internal/negotiation"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// Handler manages buyer chat connections. Each WebSocket session maps to one
// chat thread; the product is named inside each message, so a single session
// can haggle over several listings.
type Handler struct {
	service negotiation.Service
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // sessionID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// InboundMessage is what the chat widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string `json:"type"` // "message", "typing", "session", "pong", "error"
	Text      string `json:"text,omitempty"`
	Role      string `json:"role,omitempty"` // "assistant" or "user"
	SessionID string `json:"session_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(service negotiation.Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("webchat: handler requires a negotiation service")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		logger:   logger,
		sessions: make(map[string]*wsConn),
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// ServeHTTP upgrades to WebSocket and handles real-time messaging.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:      "session",
		SessionID: sessionID,
	})

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	h.sessions[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == wsc {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		h.SendToSession(sessionID, OutboundMessage{Type: "typing"})

		reply := h.processTurn(r.Context(), sessionID, msg.Text)
		h.SendToSession(sessionID, reply)
	}
}

func (h *Handler) processTurn(ctx context.Context, sessionID, text string) OutboundMessage {
	res, err := h.service.ProcessTurn(ctx, negotiation.TurnRequest{
		ThreadID: sessionID,
		Message:  text,
	})
	if err != nil {
		h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		return OutboundMessage{
			Type: "error",
			Text: "Sorry, something went wrong. Please try again.",
		}
	}

	return OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      res.ToBuyer,
		SessionID: sessionID,
		ProductID: res.ProductID,
		Decision:  res.Decision,
		Status:    string(res.Status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SendToSession sends a message to an active WebSocket session.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) {
	h.mu.RLock()
	wsc, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = websocket.JSON.Send(wsc.conn, msg)
}

// HandleMessage is the HTTP fallback for widgets that cannot hold a socket.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	reply := h.processTurn(r.Context(), req.SessionID, req.Text)
	reply.SessionID = req.SessionID

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}
