package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/export"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Same origin, or no Origin header (curl, non-browser clients)
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// EstimatesMessage is pushed to websocket subscribers after every refresh
type EstimatesMessage struct {
	Type       string             `json:"type"`
	Collection *export.Collection `json:"collection"`
}

// subscriber owns one connection. Only its write loop writes to conn.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// EstimatesHub fans estimate snapshots out to websocket subscribers
type EstimatesHub struct {
	clients map[*subscriber]bool

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte
	done       chan struct{}

	mu sync.RWMutex
}

// NewEstimatesHub creates a new hub
func NewEstimatesHub() *EstimatesHub {
	return &EstimatesHub{
		clients:    make(map[*subscriber]bool),
		register:   make(chan *subscriber, config.WSChannelBuffer),
		unregister: make(chan *subscriber, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *EstimatesHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.clients {
				delete(h.clients, s)
				close(s.send)
			}
			h.mu.Unlock()
			return
		case s := <-h.register:
			h.mu.Lock()
			h.clients[s] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket subscriber connected (total: %d)", count)
		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[s]; ok {
				delete(h.clients, s)
				close(s.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket subscriber disconnected (total: %d)", count)
		case message := <-h.broadcast:
			h.mu.Lock()
			for s := range h.clients {
				select {
				case s.send <- message:
				default:
					// Slow subscriber; it reconnects and gets the latest snapshot.
					log.Printf("WebSocket subscriber too slow, dropping it")
					delete(h.clients, s)
					close(s.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends data to every subscriber. Never blocks the caller.
func (h *EstimatesHub) Broadcast(data interface{}) error {
	message, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("Broadcast channel full, dropping message")
	}
	return nil
}

// Clients returns the number of connected subscribers
func (h *EstimatesHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and streams snapshots. The live
// snapshot, if any, is sent first.
func (h *EstimatesHub) HandleWebSocket(snapshot *export.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		s := &subscriber{conn: conn, send: make(chan []byte, config.WSChannelBuffer)}
		if c := snapshot.Load(); c != nil {
			if msg, err := json.Marshal(EstimatesMessage{Type: "estimates", Collection: c}); err == nil {
				s.send <- msg
			}
		}

		select {
		case h.register <- s:
		case <-h.done:
			conn.Close()
			return
		}

		go s.writeLoop()

		defer func() {
			select {
			case h.unregister <- s:
			case <-h.done:
			}
		}()

		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})

		// Subscribers never send; reading drives control frames and detects close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}
}

// writeLoop drains send and keeps the connection alive with pings. It
// closes the connection when send is closed or a write fails.
func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
