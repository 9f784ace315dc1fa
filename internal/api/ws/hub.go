package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/peoplecounter/internal/observability"
	"github.com/your-org/peoplecounter/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards may be served from anywhere on the LAN
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	// crossingsOnly clients skip the periodic snapshots.
	crossingsOnly bool
}

type message struct {
	data     []byte
	snapshot bool
}

// Hub maintains active WebSocket clients and broadcasts dashboard updates.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				observability.WSConnections.Dec()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "crossings_only", client.crossingsOnly)

		case client := <-h.unregister:
			h.remove(client)
			slog.Debug("ws client disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		observability.WSConnections.Dec()
	}
}

func (h *Hub) deliver(msg message) {
	var slow []*Client
	h.mu.RLock()
	for client := range h.clients {
		if msg.snapshot && client.crossingsOnly {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Client buffer full: disconnect.
	for _, client := range slow {
		h.remove(client)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(event *dto.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}
	select {
	case h.broadcast <- message{data: data, snapshot: event.Type == "snapshot"}:
	default:
		slog.Warn("ws broadcast queue full, dropping event", "type", event.Type)
	}
}

// BroadcastCrossing sends a crossing event to all connected clients.
func (h *Hub) BroadcastCrossing(ev dto.CrossingEvent) {
	h.publish(&dto.WSEvent{Type: "crossing", Crossing: &ev})
}

// SnapshotFunc produces the current dashboard view.
type SnapshotFunc func(ctx context.Context) (*dto.DataResponse, error)

// PushSnapshots sends the dashboard view to clients every interval() until
// ctx is done. interval is re-read after every push so frequency changes
// apply without a restart.
func (h *Hub) PushSnapshots(ctx context.Context, snapshot SnapshotFunc, interval func() time.Duration) {
	timer := time.NewTimer(interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if h.ClientCount() > 0 {
			data, err := snapshot(ctx)
			if err != nil {
				slog.Warn("ws snapshot skipped", "error", err)
			} else {
				h.publish(&dto.WSEvent{Type: "snapshot", Data: data})
			}
		}
		timer.Reset(interval())
	}
}

// HandleWS handles WebSocket upgrade requests.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, 64),
		crossingsOnly: c.Query("only") == "crossings",
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// Incoming messages are ignored; the loop only detects disconnects.
	}
}
