package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/events"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback by default; origin checks are
		// handled by the CORS layer for the HTTP API.
		return true
	},
}

// wsMessage is the frame sent to websocket clients. Type reuses the event
// bus type names.
type wsMessage struct {
	Type      events.EventType `json:"type"`
	Data      interface{}      `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// wsClient represents one connected websocket client.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *wsHub
}

// wsHub fans event bus messages out to all connected clients.
type wsHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logging.Logger
}

func newWSHub(log *logging.Logger) *wsHub {
	return &wsHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		log:        log.WithComponent("websocket"),
	}
}

// subscribe bridges the event bus into the broadcast channel.
func (h *wsHub) subscribe(bus *events.Bus) {
	bus.SubscribeTradeRecorded(func(ev events.TradeRecorded) {
		h.broadcastEvent(events.EventTradeRecorded, ev, ev.Timestamp)
	})
	bus.SubscribeWeightsUpdated(func(ev events.WeightsUpdated) {
		h.broadcastEvent(events.EventWeightsUpdated, ev, ev.Timestamp)
	})
	bus.SubscribeLearningStateChanged(func(ev events.LearningStateChanged) {
		h.broadcastEvent(events.EventLearningStateChanged, ev, ev.Timestamp)
	})
}

func (h *wsHub) broadcastEvent(kind events.EventType, data interface{}, ts time.Time) {
	payload, err := json.Marshal(wsMessage{Type: kind, Data: data, Timestamp: ts})
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal websocket event")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.log.WithField("type", string(kind)).Warn("Broadcast channel full, dropping message")
	}
}

// registerClient hands a client to the run loop. Returns false when the
// hub has already stopped, so callers never block on a dead loop.
func (h *wsHub) registerClient(c *wsClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// unregisterClient mirrors registerClient for the disconnect path. After
// stop() the run loop has already closed every client channel.
func (h *wsHub) unregisterClient(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *wsHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.WithField("client_id", client.id).Debug("Websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.WithField("client_id", client.id).Debug("Websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, let unregister clean it up
					go h.unregisterClient(client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *wsHub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *wsHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump pumps messages from the hub to the websocket connection
func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are processed.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// handleWebSocket upgrades the connection and registers the client.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Error("Failed to upgrade websocket connection")
		return
	}

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 64),
		hub:  s.hub,
	}
	if !s.hub.registerClient(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	welcome := wsMessage{
		Type:      "connected",
		Data:      gin.H{"client_id": client.id},
		Timestamp: time.Now(),
	}
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}
