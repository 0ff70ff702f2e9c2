package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/vent-controller/internal/remote"
	"github.com/sweeney/vent-controller/internal/status"
)

const (
	writeWait = 2 * time.Second
	// sendQueue is how many snapshots may wait for a slow client before
	// it is dropped.
	sendQueue = 4
)

var upgrader = websocket.Upgrader{}

// client is one websocket connection. Its writer goroutine drains send;
// closing send stops the writer and closes the connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendQueue)}
}

// hub tracks websocket clients. Status snapshots are queued to every
// client; text frames from a client are decoded as commands.
type hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	commands chan<- remote.Command
}

func newHub(commands chan<- remote.Command) *hub {
	return &hub{clients: make(map[*client]struct{}), commands: commands}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with mu held.
func (h *hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// broadcast queues data for every client without blocking. A client whose
// queue is full is dropped.
func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Debug("web: websocket client too slow, dropping")
			h.drop(c)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
		c.conn.Close()
	}
}

// write sends queued frames until the queue is closed or a write fails.
func (h *hub) write(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.WithError(err).Debug("web: dropping websocket client")
			h.remove(c)
			return
		}
	}
}

// read consumes client frames until the connection drops.
func (h *hub) read(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := remote.Decode(msg)
		if err != nil {
			log.WithError(err).Warn("web: bad websocket command")
			continue
		}
		select {
		case h.commands <- cmd:
		default:
			log.WithField("axis", cmd.Axis).Warn("web: command queue full, dropping request")
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("web: websocket upgrade failed")
		return
	}

	// The greeting is queued first so it precedes any broadcast.
	c := newClient(conn)
	c.send <- status.FormatStatusEvent(s.tracker.Snapshot(), "", "")
	s.hub.add(c)
	go s.hub.write(c)
	go s.hub.read(c)
}
