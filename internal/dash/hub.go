// Package dash serves the read-only operator surface: JSON views of books,
// positions, and wagers, Prometheus metrics, and a websocket stream of
// pipeline events.
package dash

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/bus"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

// StreamMessage is one JSON frame pushed to websocket clients.
type StreamMessage struct {
	Type     string `json:"type"`
	MarketID string `json:"marketId,omitempty"`
	WagerID  string `json:"wagerId,omitempty"`
	State    string `json:"state,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Ts       int64  `json:"ts"`
}

// Hub fans pipeline events out to connected websocket clients. Slow
// clients get dropped frames, never backpressure into the pipeline.
type Hub struct {
	sub        *bus.Subscriber
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

// NewHub creates a hub fed by the given bus subscription.
func NewHub(sub *bus.Subscriber) *Hub {
	return &Hub{
		sub:        sub,
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
	}
}

// Run pumps bus events to clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			logs.Debugf("dashboard client connected, total %d", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case event, ok := <-h.sub.Events():
			if !ok {
				h.closeAll()
				return
			}
			h.send(toMessage(event))

		case data := <-h.broadcast:
			h.write(data)
		}
	}
}

func toMessage(event schema.Event) StreamMessage {
	msg := StreamMessage{
		Type:     event.Kind.String(),
		MarketID: event.MarketID,
		Ts:       event.TsPublish,
	}
	if event.Kind == schema.EventWagerStatusChanged {
		msg.WagerID = event.WagerID
		msg.State = event.WagerState.String()
		if event.Reason != schema.RejectReasonNone {
			msg.Reason = event.Reason.String()
		}
	}
	return msg
}

func (h *Hub) send(msg StreamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.write(data)
}

func (h *Hub) write(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS upgrades GET /ws requests and tracks the connection until it
// drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Warnf("dashboard ws upgrade, err: %+v", err)
		return
	}

	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
