package mockbackend

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tweetsched/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// hub maps user id to connected clients.
type hub struct {
	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	wg      sync.WaitGroup
}

func newHub() *hub {
	return &hub{clients: make(map[string]map[*client]struct{})}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.clients[c.userID]; m != nil {
		if _, ok := m[c]; ok {
			delete(m, c)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// broadcast sends an event frame to every connection of userID. Slow
// clients drop frames instead of blocking the request.
func (h *hub) broadcast(userID, event string, data any) {
	frame, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- frame:
		default:
			logging.Warn("mock_ws_drop", map[string]any{"user": userID, "event": event})
		}
	}
}

// connections returns the number of live clients for userID.
func (h *hub) connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

func (h *hub) closeAll() {
	h.mu.Lock()
	for _, m := range h.clients {
		for c := range m {
			_ = c.conn.Close()
		}
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// Broadcast pushes an arbitrary event to userID's connections.
func (s *Server) Broadcast(userID, event string, data any) { s.hub.broadcast(userID, event, data) }

// Connections reports how many WebSocket clients userID has open.
func (s *Server) Connections(userID string) int { return s.hub.connections(userID) }

func (s *Server) serveWS(c *gin.Context) {
	userID, err := s.verify(bearer(c))
	if err != nil {
		fail(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	cl := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.register(cl)
	s.hub.wg.Add(2)
	go func() {
		defer s.hub.wg.Done()
		writePump(cl)
	}()
	defer s.hub.wg.Done()
	readPump(s.hub, cl)
}

// readPump discards client frames and unregisters on disconnect.
func readPump(h *hub, c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	c.conn.SetPingHandler(func(data string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(c *client) {
	t := time.NewTicker(pingPeriod)
	defer func() {
		t.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-t.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
