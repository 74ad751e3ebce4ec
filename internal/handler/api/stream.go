package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"Ares/internal/domain/models"
	xlogger "Ares/pkg/logger"
	"Ares/pkg/util"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxClientFrame = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the echo middleware
	},
}

// WSMessage is the envelope of every frame sent on the signal feed.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	symbols map[string]struct{} // empty means every symbol

	mu     sync.Mutex
	closed bool
}

// offer queues msg without blocking. It reports false when the queue is full.
func (c *wsClient) offer(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// shutdown closes the queue once and reports whether this call closed it.
func (c *wsClient) shutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *wsClient) wants(symbol string) bool {
	if len(c.symbols) == 0 {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

// Hub fans signal events out to websocket subscribers. Each client has a
// bounded queue; a client whose queue is full is disconnected.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	logger  *xlogger.Logger
	buffer  int
}

func NewHub(logger *xlogger.Logger, buffer int) *Hub {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger.Component("signal_stream"),
		buffer:  buffer,
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/signals/stream", h.Stream)
}

// Stream upgrades the request and blocks until the client goes away.
// An optional ?symbols=AAPL,MSFT narrows the feed.
func (h *Hub) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", xlogger.Error(err))
		return nil
	}

	cl := &wsClient{conn: conn, send: make(chan []byte, h.buffer), symbols: map[string]struct{}{}}
	for _, s := range util.SplitSymbols(c.QueryParam("symbols")) {
		cl.symbols[s] = struct{}{}
	}
	if b, err := json.Marshal(WSMessage{Type: "status", Payload: map[string]interface{}{"connected": true}}); err == nil {
		cl.send <- b
	}
	n := h.add(cl)
	h.logger.Debug("websocket client connected", xlogger.Int("clients", n))

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// Broadcast implements repository.Broadcaster.
func (h *Hub) Broadcast(ev models.SignalEvent) {
	data, err := json.Marshal(WSMessage{Type: "signal", Payload: ev})
	if err != nil {
		h.logger.Error("failed to marshal signal message", xlogger.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for cl := range h.clients {
		if cl.wants(ev.Symbol) {
			clients = append(clients, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		if !cl.offer(data) {
			h.logger.Warn("websocket client too slow, disconnecting", xlogger.String("remote", cl.conn.RemoteAddr().String()))
			h.remove(cl)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()
	for _, cl := range clients {
		h.remove(cl)
	}
}

func (h *Hub) add(cl *wsClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
	return len(h.clients)
}

// remove unregisters the client and closes its queue, which stops the writer.
func (h *Hub) remove(cl *wsClient) {
	if !cl.shutdown() {
		return
	}
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
}

func (h *Hub) writeLoop(cl *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("failed to send to websocket client", xlogger.Error(err))
				h.remove(cl)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(cl)
				return
			}
		}
	}
}

// readLoop keeps the connection alive; clients are not expected to send data.
func (h *Hub) readLoop(cl *wsClient) {
	defer func() {
		h.remove(cl)
		h.logger.Debug("websocket client disconnected", xlogger.Int("clients", h.Clients()))
	}()

	cl.conn.SetReadLimit(maxClientFrame)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", xlogger.Error(err))
			}
			return
		}
	}
}
