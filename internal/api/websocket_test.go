package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/shopgate/internal/audit"
	"github.com/nerrad567/shopgate/internal/auth"
	"github.com/nerrad567/shopgate/internal/infrastructure/config"
	"github.com/nerrad567/shopgate/internal/infrastructure/logging"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// dialFeed connects to the event feed on a live listener with token.
func dialFeed(t *testing.T, env *testEnv, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelAuthEvents: {}},
	}
	hub.Register(client)

	hub.Broadcast(ChannelAuthEvents, map[string]any{"action": "login.failed"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelAuthEvents {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelAuthEvents)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"other.channel": {}},
	}
	hub.Register(client)

	hub.Broadcast(ChannelAuthEvents, map[string]any{"action": "login.failed"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client) // second call must not double-close
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_WriteBroadcastsAuditEvent(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelAuthEvents: {}},
	}
	hub.Register(client)

	var sink audit.Sink = hub
	if err := sink.Write(context.Background(), &audit.Event{Action: audit.ActionAccessDenied, Username: "alice"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	select {
	case msg := <-client.send:
		var wsMsg struct {
			EventType string      `json:"event_type"`
			Payload   audit.Event `json:"payload"`
		}
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Payload.Action != audit.ActionAccessDenied || wsMsg.Payload.Username != "alice" {
			t.Errorf("payload = %+v", wsMsg.Payload)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for audit broadcast")
	}
}

// ─── Event Feed ────────────────────────────────────────────────────

func TestWebSocket_RequiresAdmin(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"user", env.token(t, "alice", auth.RoleUser), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := dialFeed(t, env, tt.token)
			if err == nil {
				t.Fatal("Dial() succeeded, want handshake failure")
			}
			if resp == nil {
				t.Fatalf("Dial() error = %v with no response", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("handshake status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestWebSocket_AdminReceivesAuditEvents(t *testing.T) {
	env := testServer(t)

	conn, resp, err := dialFeed(t, env, env.token(t, "root", auth.RoleAdmin))
	if err != nil {
		t.Fatalf("Dial() error = %v (resp: %v)", err, resp)
	}

	// Wait for registration before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := env.srv.hub.Write(context.Background(), &audit.Event{Action: audit.ActionLoginFailed, Username: "alice"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != ChannelAuthEvents {
		t.Errorf("message = %+v, want auth event", msg)
	}
}

func TestWebSocket_PingAndUnknownType(t *testing.T) {
	env := testServer(t)

	conn, _, err := dialFeed(t, env, env.token(t, "root", auth.RoleAdmin))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var resp WSMessage
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong || resp.ID != "p-1" {
		t.Errorf("pong = %+v", resp)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "b-1"}); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if resp.Type != WSTypeError || resp.ID != "b-1" {
		t.Errorf("error response = %+v", resp)
	}
}

func TestWebSocket_Unsubscribe(t *testing.T) {
	env := testServer(t)

	conn, _, err := dialFeed(t, env, env.token(t, "root", auth.RoleAdmin))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "u-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelAuthEvents}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	var resp WSMessage
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "u-1" {
		t.Fatalf("response = %+v", resp)
	}

	env.srv.hub.Broadcast(ChannelAuthEvents, map[string]string{"action": "login.failed"})

	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond)) //nolint:errcheck // test deadline
	if err := conn.ReadJSON(&resp); err == nil {
		t.Errorf("received %+v after unsubscribing", resp)
	}
}

func TestWebSocket_OriginAllowList(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"https://shop.example.com"}
	})
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events/ws"
	admin := env.token(t, "root", auth.RoleAdmin)

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "https://shop.example.com", true},
		{"no origin", "", true},
		{"foreign origin", "https://evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			header.Set("Authorization", "Bearer "+admin)
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if conn != nil {
				defer conn.Close()
			}
			if resp != nil && resp.Body != nil {
				defer resp.Body.Close()
			}
			if tt.ok {
				if err != nil {
					t.Fatalf("Dial() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Dial() succeeded, want handshake failure")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("handshake response = %v, want 403", resp)
			}
		})
	}
}
