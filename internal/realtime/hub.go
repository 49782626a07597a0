package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"project-tracker/internal/observability"
	"project-tracker/internal/protocol"
	"project-tracker/internal/snapshot"
)

// handleWebSocket upgrades an HTTP connection to WebSocket and sends the
// current snapshots.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	s.metrics.WSClientConnected()

	observability.LoggerFromContext(r.Context()).Info("websocket client connected", "client_id", c.id)

	// Send current state to the new client.
	s.sendTo(c, s.agentsMessage(r.Context()))
	s.sendTo(c, s.projectsMessage(r.Context()))

	go c.writePump()
	go c.readPump()
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				observability.WithFields("client_id", c.id).Warn("websocket read error", "error", err)
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.clientsMu.Unlock()

	if !ok {
		return
	}
	s.metrics.WSClientDisconnected()
	close(c.send)
	observability.WithFields("client_id", c.id).Info("websocket client disconnected")
}

// handleMessage processes a validated client message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeSnapshotRequest:
		s.handleWSSnapshotRequest(c, msg)
	}
}

func (s *Server) handleWSSnapshotRequest(c *client, msg *protocol.Message) {
	payload, err := protocol.ParseSnapshotRequest(msg)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	ctx := observability.WithRequestID(context.Background(), c.id)
	switch payload.Topic {
	case protocol.TopicAgents:
		s.sendTo(c, s.agentsMessage(ctx))
	case protocol.TopicProjects:
		s.sendTo(c, s.projectsMessage(ctx))
	}
}

func (s *Server) agentsMessage(ctx context.Context) []byte {
	out := s.snapshots.Agents(ctx)
	logDegraded(ctx, snapshot.KindAgents, out.Err)

	msg, err := protocol.NewMessage(protocol.TypeAgentsSnapshot, out.Snapshot)
	if err != nil {
		return nil
	}
	return encode(msg)
}

func (s *Server) projectsMessage(ctx context.Context) []byte {
	out := s.snapshots.Projects(ctx)
	logDegraded(ctx, snapshot.KindProjects, out.Err)

	msg, err := protocol.NewMessage(protocol.TypeProjectsSnapshot, out.Snapshot)
	if err != nil {
		return nil
	}
	return encode(msg)
}

func (s *Server) sendError(c *client, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	s.sendTo(c, encode(msg))
}
