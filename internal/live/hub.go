package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Hub fans turn events out to connected dashboard clients. It is constructed
// once at startup and injected; there is no package-level instance.
//
// A client subscribes either to a single call or, with no call_sid filter, to
// every call on the tenant. Slow clients are dropped rather than allowed to
// back-pressure the webhook path.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	callSid string // empty subscribes to all calls
	send    chan []byte
}

const clientSendBuffer = 16

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

// Broadcast sends an event to every client watching the call. It never
// blocks: a client whose buffer is full is disconnected.
func (h *Hub) Broadcast(callSid string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("live event marshal failed", "call_sid", callSid, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.callSid != "" && c.callSid != callSid {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn("live client too slow, dropping", "call_sid", callSid)
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount reports connected clients. Used by tests and the health view.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origin enforcement happens at the edge; the endpoint itself
	// is JWT-protected in the route chain.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers the client. The optional
// call_sid query parameter narrows the subscription to one call.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	cl := &client{
		conn:    conn,
		callSid: c.Query("call_sid"),
		send:    make(chan []byte, clientSendBuffer),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writePump(cl)
	go h.readPump(cl)
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// writePump pumps hub events to the websocket connection.
func (h *Hub) writePump(cl *client) {
	defer cl.conn.Close()
	for msg := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.unregister(cl)
			return
		}
	}
	_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames; its job is to notice the close.
func (h *Hub) readPump(cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.unregister(cl)
			return
		}
	}
}
