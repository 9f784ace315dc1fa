package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/peoplecounter/pkg/dto"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() > before }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt dto.WSEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestBroadcastCrossing(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url)

	hub.BroadcastCrossing(dto.CrossingEvent{Count: 2, Total: 5, TrackIDs: []int{3, 4}})

	evt := readEvent(t, conn)
	assert.Equal(t, "crossing", evt.Type)
	require.NotNil(t, evt.Crossing)
	assert.Equal(t, 5, evt.Crossing.Total)
	assert.Equal(t, []int{3, 4}, evt.Crossing.TrackIDs)
}

func TestPushSnapshotsSkipsCrossingsOnlyClients(t *testing.T) {
	hub, url := startHub(t)
	all := dial(t, hub, url)
	only := dial(t, hub, url+"?only=crossings")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.PushSnapshots(ctx, func(context.Context) (*dto.DataResponse, error) {
		return &dto.DataResponse{Timestamp: "t1", CrossingCount: 7}, nil
	}, func() time.Duration { return 20 * time.Millisecond })

	evt := readEvent(t, all)
	assert.Equal(t, "snapshot", evt.Type)
	require.NotNil(t, evt.Data)
	assert.Equal(t, 7, evt.Data.CrossingCount)

	// The crossings-only client gets the crossing but no snapshot before it.
	hub.BroadcastCrossing(dto.CrossingEvent{Count: 1, Total: 8})
	evt = readEvent(t, only)
	assert.Equal(t, "crossing", evt.Type)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url)
	require.Equal(t, 1, hub.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
