package api

import (
	"context"
	"encoding/json"

	"github.com/example/dm-chat-server/modules/broadcast"
	"github.com/example/dm-chat-server/modules/session"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// handshakeKey carries the session.Handshake from the upgrade request into
// the WebSocket handler.
const handshakeKey = "handshake"

// Connector creates sessions from handshakes.
type Connector interface {
	Connect(ctx context.Context, h session.Handshake) (*session.Session, error)
}

// wsHandler serves /ws. Each connection gets a reader loop on the handler
// goroutine and a writer goroutine draining the session's outbound queue.
type wsHandler struct {
	sessions Connector
	logger   types.Logger
}

// upgrade rejects plain HTTP and captures the handshake metadata.
func (w *wsHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(handshakeKey, session.Handshake{
		Authorization: c.Get("Authorization"),
		ClaimedUserID: c.Query("userId"),
	})
	return c.Next()
}

func (w *wsHandler) handle(conn *websocket.Conn) {
	// Handlers run to completion regardless of the client going away.
	ctx := context.Background()

	hs, _ := conn.Locals(handshakeKey).(session.Handshake)
	sess, err := w.sessions.Connect(ctx, hs)
	if err != nil {
		w.reject(conn, err)
		return
	}

	done := make(chan struct{})
	go w.writeLoop(conn, sess, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Debug("Client closed connection", "connection_id", sess.ID())
			} else {
				w.logger.Debug("Read error", "connection_id", sess.ID(), "error", err)
			}
			break
		}
		sess.Handle(ctx, msg)
	}

	// Close unregisters the client, which closes its queue and ends writeLoop.
	sess.Close(ctx)
	<-done
}

func (w *wsHandler) writeLoop(conn *websocket.Conn, sess *session.Session, done chan<- struct{}) {
	defer close(done)

	healthy := true
	for data := range sess.Outbound() {
		if !healthy {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			w.logger.Debug("Write failed", "connection_id", sess.ID(), "error", err)
			healthy = false
		}
	}

	// The queue also closes on hub shutdown; closing the socket ends the reader.
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
}

// reject closes the socket before any session state exists. Credential
// failures get auth_error and a policy-violation close; anything else is an
// internal error and is reported as such.
func (w *wsHandler) reject(conn *websocket.Conn, err error) {
	event, reason, code := session.EventAuthError, authErrorMessage(err), websocket.ClosePolicyViolation
	if session.IsAuthError(err) {
		w.logger.Info("WebSocket authentication failed", "reason", reason, "error", err)
	} else {
		event, reason, code = session.EventChatError, authUnavailableMessage, websocket.CloseInternalServerErr
		w.logger.Error("WebSocket authentication unavailable", "error", err)
	}

	frame, merr := json.Marshal(broadcast.Frame{Event: event, Data: reason})
	if merr == nil {
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = conn.Close()
}
