package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/calder-systems/punchcore/internal/infrastructure/config"
	"github.com/calder-systems/punchcore/internal/reader"
	"github.com/calder-systems/punchcore/internal/session"
)

// Reader protocol message types.
const (
	WSTypeLocationUpdate = "location-update"
	WSTypeCardPunch      = "card-punch"
	WSTypeError          = "error"

	// wsSendBufferSize is the per-connection outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for all reader protocol messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsReply is the outbound counterpart of WSMessage.
type wsReply struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// WSLocationPayload is the payload of a location-update message.
type WSLocationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// WSCardPunchPayload is the payload of a card-punch request.
type WSCardPunchPayload struct {
	CardID string `json:"card_id"`
}

// WSPunchReply is the payload of a card-punch response. Exactly one of
// Message or Error is set; both are display text for the reader.
type WSPunchReply struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Readers are embedded devices, not browsers; origin checks
		// for browser clients are handled by CORS middleware.
		return true
	},
}

// readerConn is a live WebSocket connection to a physical reader.
type readerConn struct {
	server   *Server
	conn     *websocket.Conn
	readerID string
	session  *session.Session
	send     chan []byte
}

// handleReaderSocket upgrades the HTTP connection to a reader session.
//
// Authentication is via the auth query parameter carrying the reader's
// hardware identifier. Unknown identifiers are rejected with 401 before
// the upgrade and no reader state is touched. A reader that already
// holds a live session is closed after the upgrade with a policy
// violation; the existing session is unaffected.
func (s *Server) handleReaderSocket(w http.ResponseWriter, r *http.Request) {
	auth := r.URL.Query().Get("auth")
	if auth == "" {
		writeUnauthorized(w, "auth query parameter is required")
		return
	}

	rdr, err := s.sessions.Authenticate(r.Context(), auth)
	if err != nil {
		if errors.Is(err, session.ErrUnknownReader) {
			writeUnauthorized(w, "unrecognised reader identifier")
			return
		}
		writeInternalError(w, "failed to authenticate reader")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "reader_id", rdr.ID, "error", err)
		return
	}

	sess, err := s.sessions.Bind(r.Context(), rdr.ID)
	if err != nil {
		code := websocket.CloseInternalServerErr
		reason := "session bind failed"
		if errors.Is(err, session.ErrAlreadyConnected) {
			code = websocket.ClosePolicyViolation
			reason = "reader already connected"
		}
		//nolint:errcheck // Best-effort close handshake on a doomed connection
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	s.notifyReaderStatus(rdr.ID, true)

	client := &readerConn{
		server:   s,
		conn:     conn,
		readerID: rdr.ID,
		session:  sess,
		send:     make(chan []byte, wsSendBufferSize),
	}

	s.logger.Debug("reader session established",
		"reader_id", rdr.ID,
		"session_id", sess.ID,
	)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// notifyReaderStatus fans an online/offline transition out to the
// optional publisher and telemetry sinks.
func (s *Server) notifyReaderStatus(readerID string, online bool) {
	if s.publisher != nil {
		s.publisher.PublishReaderStatus(readerID, online)
	}
	if s.telemetry != nil {
		s.telemetry.RecordReaderStatus(readerID, online)
	}
}

// readPump reads messages from the reader connection and processes them
// in arrival order. On exit it releases the session and marks the
// reader offline.
func (c *readerConn) readPump(cfg config.WebSocketConfig) {
	defer func() {
		if err := c.server.sessions.Unbind(context.Background(), c.readerID); err != nil {
			c.server.logger.Warn("session unbind failed", "reader_id", c.readerID, "error", err)
		} else {
			c.server.notifyReaderStatus(c.readerID, false)
		}
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read error", "reader_id", c.readerID, "error", err)
			} else {
				c.server.logger.Debug("websocket closed", "reader_id", c.readerID, "error", err)
			}
			return
		}
		// Any reader message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(context.Background(), message)
	}
}

// writePump writes queued messages to the reader connection and sends
// protocol-level pings on the configured interval.
func (c *readerConn) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// readPump closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming reader message. Rejected punches
// and malformed messages produce a reply but never tear the connection
// down; only transport failures do that.
func (c *readerConn) handleMessage(ctx context.Context, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeLocationUpdate:
		c.handleLocationUpdate(ctx, msg)
	case WSTypeCardPunch:
		c.handleCardPunch(ctx, msg)
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

// handleLocationUpdate records the reader's reported position and
// echoes it back as acknowledgement.
func (c *readerConn) handleLocationUpdate(ctx context.Context, msg WSMessage) {
	var loc WSLocationPayload
	if err := json.Unmarshal(msg.Payload, &loc); err != nil {
		c.sendError("invalid location-update payload")
		return
	}

	position := reader.Location{Lat: loc.Lat, Lng: loc.Lng}
	if err := c.server.readers.UpdateLocation(ctx, c.readerID, position); err != nil {
		if errors.Is(err, reader.ErrInvalidLocation) {
			c.sendError("location out of range")
			return
		}
		c.server.logger.Error("location update failed", "reader_id", c.readerID, "error", err)
		c.sendError("internal error")
		return
	}

	if c.server.publisher != nil {
		c.server.publisher.PublishReaderLocation(c.readerID, position)
	}
	if c.server.telemetry != nil {
		c.server.telemetry.RecordReaderLocation(c.readerID, loc.Lat, loc.Lng)
	}

	c.sendReply(WSTypeLocationUpdate, loc)
}

// handleCardPunch runs a card through the punch processor and replies
// with the display text for the reader.
func (c *readerConn) handleCardPunch(ctx context.Context, msg WSMessage) {
	var punch WSCardPunchPayload
	if err := json.Unmarshal(msg.Payload, &punch); err != nil {
		c.sendError("invalid card-punch payload")
		return
	}
	if punch.CardID == "" {
		c.sendError("card_id is required")
		return
	}

	result, err := c.server.processor.ProcessPunch(ctx, c.readerID, punch.CardID)
	if err != nil {
		c.server.logger.Error("punch processing failed",
			"reader_id", c.readerID,
			"card_id", punch.CardID,
			"error", err,
		)
		c.sendReply(WSTypeCardPunch, WSPunchReply{Error: "internal error"})
		return
	}

	if !result.Accepted {
		c.sendReply(WSTypeCardPunch, WSPunchReply{Error: result.Message})
		return
	}
	c.sendReply(WSTypeCardPunch, WSPunchReply{Message: result.Message})
}

// sendReply queues an outbound message for the writePump.
func (c *readerConn) sendReply(msgType string, payload any) {
	data, err := json.Marshal(wsReply{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error reply to the reader.
func (c *readerConn) sendError(message string) {
	c.sendReply(WSTypeError, map[string]string{"message": message})
}

// trySend attempts to queue data for the writePump. It silently handles
// a closed channel (connection torn down mid-reply) and a full buffer
// (stalled reader).
func (c *readerConn) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Reader buffer full, skip
	}
}
