// Package realtime receives push events about tweets over a WebSocket and
// turns them into cache invalidations.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tweetsched/internal/logging"
	"tweetsched/internal/metrics"
)

// Tweet event names pushed by the backend.
const (
	EventTweetCreated   = "tweet:created"
	EventTweetUpdated   = "tweet:updated"
	EventTweetScheduled = "tweet:scheduled"
	EventTweetPosted    = "tweet:posted"
	EventTweetDeleted   = "tweet:deleted"
)

// TweetEvents lists every event that changes the tweets list.
var TweetEvents = []string{
	EventTweetCreated,
	EventTweetUpdated,
	EventTweetScheduled,
	EventTweetPosted,
	EventTweetDeleted,
}

const (
	// Time allowed to write a control frame.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the server.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1 << 16
)

// Message is one frame: {"event": "...", "data": {...}}.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is a client connection. Handlers run on the reader goroutine.
type Conn struct {
	ws *websocket.Conn

	mu       sync.RWMutex
	handlers map[string][]func(Message)
	err      error

	stop      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Dial opens a connection to url, authenticating with token when set.
func Dial(ctx context.Context, url, token string) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	ws, resp, err := d.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Conn{
		ws:       ws,
		handlers: make(map[string][]func(Message)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()
	logging.Info("realtime_connected", map[string]any{"url": url})
	return c, nil
}

// On registers fn for event. It may be called at any time.
func (c *Conn) On(event string, fn func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// Done is closed once the reader has stopped.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the reader, or nil after Close.
func (c *Conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close tears the connection down. It is idempotent and returns after both
// background goroutines have exited.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = c.ws.Close()
		c.wg.Wait()
		logging.Info("realtime_closed", nil)
	})
	return err
}

func (c *Conn) closing() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer close(c.done)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closing() {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				if !errors.Is(err, websocket.ErrCloseSent) && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logging.Warn("realtime_read_error", map[string]any{"error": err})
				}
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			logging.Debug("realtime_frame_ignored", map[string]any{"bytes": len(raw)})
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg Message) {
	c.mu.RLock()
	fns := append([]func(Message){}, c.handlers[msg.Event]...)
	c.mu.RUnlock()
	if len(fns) == 0 {
		return
	}
	metrics.IncRealtimeEvent(msg.Event)
	for _, fn := range fns {
		fn(msg)
	}
}

func (c *Conn) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-c.done:
			return
		case <-t.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
