package roon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockBridgeServer creates a WebSocket server standing in for the bridge
func mockBridgeServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		handler(conn)
	}))
}

// welcomeFlow performs the handshake: welcome frame, then accept the
// zone subscription
func welcomeFlow(t *testing.T, conn *websocket.Conn) {
	err := conn.WriteJSON(Message{Type: "welcome"})
	require.NoError(t, err)

	var subMsg SubscribeZonesRequest
	err = conn.ReadJSON(&subMsg)
	require.NoError(t, err)
	assert.Equal(t, "subscribe_zones", subMsg.Type)

	success := true
	err = conn.WriteJSON(Message{ID: subMsg.ID, Type: "result", Success: &success})
	require.NoError(t, err)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_Connect(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Run("successful connection", func(t *testing.T) {
		server := mockBridgeServer(t, func(conn *websocket.Conn) {
			welcomeFlow(t, conn)
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		client := NewClient(wsURL(server), logger)
		err := client.Connect(context.Background())
		require.NoError(t, err)
		assert.True(t, client.IsConnected())

		client.Close()
		assert.False(t, client.IsConnected())
	})

	t.Run("unexpected first frame", func(t *testing.T) {
		server := mockBridgeServer(t, func(conn *websocket.Conn) {
			conn.WriteJSON(Message{Type: "event"})
		})
		defer server.Close()

		client := NewClient(wsURL(server), logger)
		err := client.Connect(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expected welcome")
		assert.False(t, client.IsConnected())
	})

	t.Run("already connected", func(t *testing.T) {
		server := mockBridgeServer(t, func(conn *websocket.Conn) {
			welcomeFlow(t, conn)
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		client := NewClient(wsURL(server), logger)
		require.NoError(t, client.Connect(context.Background()))
		defer client.Close()

		err := client.Connect(context.Background())
		assert.Error(t, err)
	})

	t.Run("dial failure", func(t *testing.T) {
		client := NewClient("ws://127.0.0.1:1/ws", logger)
		err := client.Connect(context.Background())
		assert.Error(t, err)
		assert.False(t, client.IsConnected())
	})
}

func TestClient_Browse(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := mockBridgeServer(t, func(conn *websocket.Conn) {
		welcomeFlow(t, conn)

		var req BrowseRequest
		require.NoError(t, conn.ReadJSON(&req))
		assert.Equal(t, []string{"Library", "Artists", "The Beatles"}, req.Path)

		items, _ := json.Marshal([]BrowseItem{
			{Title: "Play Now", ItemKey: "k1", Hint: "action"},
			{Title: "Abbey Road", ItemKey: "k2", Hint: "list"},
		})
		success := true
		conn.WriteJSON(Message{ID: req.ID, Type: "result", Success: &success, Result: items})

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), logger)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	items, err := client.Browse(context.Background(), []string{"Library", "Artists", "The Beatles"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Abbey Road", items[1].Title)
}

func TestClient_WireErrorMapping(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := mockBridgeServer(t, func(conn *websocket.Conn) {
		welcomeFlow(t, conn)

		var req PlayMediaRequest
		require.NoError(t, conn.ReadJSON(&req))

		success := false
		conn.WriteJSON(Message{
			ID:      req.ID,
			Type:    "result",
			Success: &success,
			Error:   &WireError{Code: "not_found", Message: "no such album"},
		})

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), logger)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	err := client.PlayMedia(context.Background(), []string{"Library", "Artists", "X", "Y"}, "z1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ZoneEventDelivery(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := mockBridgeServer(t, func(conn *websocket.Conn) {
		welcomeFlow(t, conn)

		data, _ := json.Marshal(ZoneEvent{ZoneID: "z1", DisplayName: "Office", State: "playing"})
		conn.WriteJSON(Message{
			Type:  "event",
			Event: &Event{EventType: "zone_changed", Data: data},
		})

		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), logger)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	select {
	case ev := <-client.Events():
		assert.Equal(t, "z1", ev.ZoneID)
		assert.Equal(t, "playing", ev.State)
	case <-time.After(time.Second):
		t.Fatal("zone event was not delivered")
	}
}

func TestClient_CallTimeout(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := mockBridgeServer(t, func(conn *websocket.Conn) {
		welcomeFlow(t, conn)

		// Swallow the request and never answer
		var req StatusRequest
		conn.ReadJSON(&req)
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	client := NewClient(wsURL(server), logger)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Status(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_ConnectionLost(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := mockBridgeServer(t, func(conn *websocket.Conn) {
		welcomeFlow(t, conn)
		// Drop the connection
		conn.Close()
	})
	defer server.Close()

	client := NewClient(wsURL(server), logger)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.Eventually(t, func() bool {
		return !client.IsConnected()
	}, time.Second, 10*time.Millisecond)

	_, err := client.ListZones(context.Background())
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestClient_NotConnected(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewClient("ws://localhost:9999/ws", logger)

	err := client.Transport(context.Background(), "z1", "play")
	assert.ErrorIs(t, err, ErrConnectionLost)
}
