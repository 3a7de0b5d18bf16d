package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carousel-tv/carousel/internal/schedule"
)

// dialTestHub starts a hub with an HTTP server and connects one client
func dialTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestHub_PublishProgramStart(t *testing.T) {
	hub, conn := dialTestHub(t)
	defer hub.Stop()

	// Registration races the publish; give the hub a beat
	time.Sleep(50 * time.Millisecond)

	prog := schedule.Program{
		Item:    schedule.Item{ID: "media-1", Title: "Alpha", DurationMs: 10_000},
		StartMs: 1000,
		EndMs:   11_000,
	}
	hub.PublishProgramStart("ch-1", prog)

	event := readEvent(t, conn)
	assert.Equal(t, TypeProgramStart, event.Type)
	assert.Equal(t, "ch-1", event.ChannelID)
	require.NotNil(t, event.Program)
	assert.Equal(t, "media-1", event.Program.Item.ID)
	assert.NotZero(t, event.At)
}

func TestHub_PublishGuardTripped(t *testing.T) {
	hub, conn := dialTestHub(t)
	defer hub.Stop()

	time.Sleep(50 * time.Millisecond)

	hub.PublishGuardTripped("ch-9")

	event := readEvent(t, conn)
	assert.Equal(t, TypeGuardTripped, event.Type)
	assert.Equal(t, "ch-9", event.ChannelID)
	assert.Nil(t, event.Program)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		defer conn.Close()
		conns = append(conns, conn)
	}

	time.Sleep(50 * time.Millisecond)

	hub.PublishScheduleSync("ch-1", schedule.Program{Item: schedule.Item{ID: "m"}})

	for _, conn := range conns {
		event := readEvent(t, conn)
		assert.Equal(t, TypeScheduleSync, event.Type)
	}
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub, conn := dialTestHub(t)

	time.Sleep(50 * time.Millisecond)
	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
