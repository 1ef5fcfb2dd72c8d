package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meridian-hq/ABMX/abm"
	"github.com/meridian-hq/ABMX/logger"
)

// Websocket timing, following the gorilla chat example.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only operational telemetry on an internal
	// admin surface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one connected websocket consumer of the run-event feed.
type client struct {
	conn *websocket.Conn
	send chan abm.RunEvent
}

// handleEvents upgrades the connection and streams run events until
// the peer disconnects or the server drains.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", logger.FieldError, err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan abm.RunEvent, sendBuffer),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.log.Infow("websocket client connected", logger.FieldCount, count)

	s.wg.Add(2)
	go s.writePump(c)
	go s.readPump(c)
}

// BroadcastRun fans a run event out to every connected client. A
// client whose buffer is full is skipped; the feed is telemetry, not a
// durable stream.
func (s *Server) BroadcastRun(evt abm.RunEvent) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- evt:
		default:
			s.broadcastDrops.Add(1)
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	if present {
		c.conn.Close()
	}
}

// writePump serializes all writes to one connection: queued events and
// the keepalive pings.
func (s *Server) writePump(c *client) {
	defer s.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
	}()

	for {
		select {
		case <-s.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case evt := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(map[string]any{
				"type": "run_event",
				"run":  evt,
			}); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is pong handling and
// noticing the disconnect.
func (s *Server) readPump(c *client) {
	defer s.wg.Done()
	defer s.removeClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
