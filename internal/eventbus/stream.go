package eventbus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epic1st/execengine/internal/domain/order"
)

// StreamClient is one connected WebSocket consumer of execution
// reports: a conn plus a buffered send channel drained by a dedicated
// writer goroutine so a slow reader never blocks the hub.
type StreamClient struct {
	conn *websocket.Conn
	send chan []byte
	mu sync.Mutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize: 1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { return true },
}

// executionReportWire is the JSON shape pushed to stream clients — a flat
// projection of whichever order.Event came off the bus, not the event
// type itself, so the wire format doesn't couple to internal event
// structs.
type executionReportWire struct {
	EventType string `json:"event_type"`
	OrderID string `json:"order_id"`
	At time.Time `json:"at"`
	Detail interface{} `json:"detail,omitempty"`
}

// StreamHub upgrades HTTP connections to WebSocket and rebroadcasts bus
// events as JSON execution reports, the streaming counterpart to the
// teacher's Hub broadcasting MarketTicks.
type StreamHub struct {
	mu sync.RWMutex
	clients map[*StreamClient]bool
}

func NewStreamHub() *StreamHub {
	return &StreamHub{clients: make(map[*StreamClient]bool)}
}

// ServeHTTP upgrades the connection and registers a new client whose
// writes are drained by writePump until the connection closes.
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &StreamClient{conn: conn, send: make(chan []byte, 256)}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go h.writePump(client)
	go h.readPump(client)
}

func (h *StreamHub) readPump(c *StreamClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writePump(c *StreamClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (h *StreamHub) remove(c *StreamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Relay subscribes to a Bus and pushes every event to connected clients
// until sub's channel is closed (Bus.Unsubscribe).
func (h *StreamHub) Relay(sub *Subscriber) {
	for evt := range sub.Events() {
		h.broadcast(evt)
	}
}

func (h *StreamHub) broadcast(evt order.Event) {
	wire := executionReportWire{
		EventType: order.EventName(evt),
		OrderID: evt.OrderID().String(),
		At: time.Now(),
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client — drop this report rather than block the relay.
		}
	}
}
