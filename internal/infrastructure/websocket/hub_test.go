package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialNotifications starts an httptest server that upgrades every request
// to a notification socket scoped to programID, and returns a connected
// client-side websocket.
func dialNotifications(t *testing.T, hub *Hub, programID string) *gorilla.Conn {
	t.Helper()
	handler := NewHandler(hub, AnonymousAuth{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Upgrade(w, r, programID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastDeliversOnlyToMatchingProgram(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	connA := dialNotifications(t, hub, "p1")
	connB := dialNotifications(t, hub, "p2")

	require.Eventually(t, func() bool { return hub.ClientCount("p1") == 1 && hub.ClientCount("p2") == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast("p1", NewEvent(EventFlushReport, "p1", map[string]int{"applied": 1}))

	connA.SetReadDeadline(time.Now().Add(time.Second))
	var got Event
	require.NoError(t, connA.ReadJSON(&got))
	require.Equal(t, EventFlushReport, got.Type)
	require.Equal(t, "p1", got.ProgramID)

	connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	err := connB.ReadJSON(&Event{})
	require.Error(t, err) // p2's client never receives p1's broadcast
}

func TestHub_BroadcastNeverBlocksOnFullBuffer(t *testing.T) {
	hub := NewHub()
	// Run is intentionally not started: the register channel has no
	// reader, so Broadcast must not depend on it to avoid blocking.
	for i := 0; i < 300; i++ {
		hub.Broadcast("p1", NewEvent(EventFlushReport, "p1", nil))
	}
}
