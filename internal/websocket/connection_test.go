package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"snapbooth/pkg/types"
)

// wsTestServer upgrades incoming requests and hands the server side of each
// connection to the test through a channel.
func wsTestServer(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		conns <- conn
	}))
	return server, conns
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func TestConnection_SendDeliversText(t *testing.T) {
	server, conns := wsTestServer(t)
	defer server.Close()

	client := dial(t, server)
	defer client.Close()
	serverSide := <-conns

	conn := NewConnection(serverSide, "token-1", 10)
	defer conn.Close()

	if err := conn.Send([]byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("Expected text message, got type %d", msgType)
	}
	if string(data) != `{"hello":"world"}` {
		t.Errorf("Unexpected payload %q", data)
	}
}

func TestConnection_SendJSON(t *testing.T) {
	server, conns := wsTestServer(t)
	defer server.Close()

	client := dial(t, server)
	defer client.Close()
	serverSide := <-conns

	conn := NewConnection(serverSide, "token-1", 10)
	defer conn.Close()

	notification := &types.Notification{
		Type:      types.NotificationImageReady,
		SessionID: "token-1",
		Status:    types.StatusImageReady,
		ImageURL:  "http://localhost/api/sessions/token-1/image",
	}
	if err := conn.SendJSON(notification); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received types.Notification
	if err := client.ReadJSON(&received); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if received.Type != types.NotificationImageReady || received.SessionID != "token-1" {
		t.Errorf("Unexpected notification %+v", received)
	}
}

func TestConnection_SendAfterClose(t *testing.T) {
	server, conns := wsTestServer(t)
	defer server.Close()

	client := dial(t, server)
	defer client.Close()
	serverSide := <-conns

	conn := NewConnection(serverSide, "token-1", 10)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := conn.Send([]byte("late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	server, conns := wsTestServer(t)
	defer server.Close()

	client := dial(t, server)
	defer client.Close()
	serverSide := <-conns

	conn := NewConnection(serverSide, "token-1", 10)

	if err := conn.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Error("Done channel should be closed after Close")
	}
}

func TestConnection_Token(t *testing.T) {
	server, conns := wsTestServer(t)
	defer server.Close()

	client := dial(t, server)
	defer client.Close()
	serverSide := <-conns

	conn := NewConnection(serverSide, "my-session-token", 10)
	defer conn.Close()

	if conn.Token() != "my-session-token" {
		t.Errorf("Expected token my-session-token, got %s", conn.Token())
	}
}
