package ws

import (
	"chat-relay/infrastructure/wire"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 * 1024
)

// Gateway upgrades HTTP requests to websocket connections and runs one reader and
// one writer goroutine per connection. The lifecycle manager owns the session.
type Gateway struct {
	log        *slog.Logger
	manager    *runtime.Manager
	upgrader   websocket.Upgrader
	bufferSize int
	policy     sink.OverflowPolicy
	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewGateway(log *slog.Logger, manager *runtime.Manager, allowedOrigins []string,
	bufferSize int, policy sink.OverflowPolicy, pingPeriod time.Duration) *Gateway {
	return &Gateway{
		log:     log,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		bufferSize: bufferSize,
		policy:     policy,
		pingPeriod: pingPeriod,
		pongWait:   pingPeriod * 10 / 9,
	}
}

// checkOrigin accepts requests without Origin header (non browser clients),
// any origin when the list is empty or holds "*", and the listed ones otherwise.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		g.log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	session := sink.NewSession(g.log, r.RemoteAddr, g.bufferSize, g.policy)
	g.manager.Open(session)

	go g.writePump(conn, session)
	g.readPump(r.Context(), conn, session)
}

// readPump blocks until the client goes away, then closes the session.
func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, session *sink.Session) {
	defer func() {
		g.manager.Close(session)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(g.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug("Websocket closed unexpectedly", "session", session.ID(), "error", err)
			}
			return
		}
		g.handle(ctx, session, frame)
	}
}

// handle applies one inbound frame. Failures are logged and the frame is dropped:
// the realtime channel has no way to answer a single event.
func (g *Gateway) handle(ctx context.Context, session *sink.Session, frame []byte) {
	inbound, err := wire.Decode(frame)
	if err != nil {
		g.log.Debug("Frame dropped", "session", session.ID(), "error", err)
		return
	}

	switch inbound.Event {
	case wire.EventRegisterUser:
		if err := g.manager.Register(session, inbound.Identity); err != nil {
			g.log.Warn("Registration dropped", "session", session.ID(), "error", err)
		}
	case wire.EventSendMessage:
		if _, err := g.manager.Send(ctx, session, inbound.Command); err != nil {
			g.log.Warn("Message dropped", "session", session.ID(), "sender", inbound.Command.Sender, "error", err)
		}
	}
}

// writePump drains the session queue and keeps the connection alive with pings.
func (g *Gateway) writePump(conn *websocket.Conn, session *sink.Session) {
	ticker := time.NewTicker(g.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-session.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
				time.Now().Add(writeWait))
			return
		case msg := <-session.Outbound():
			frame, err := wire.EncodeReceive(msg)
			if err != nil {
				g.log.Error("Unable to encode message", "id", msg.ID, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				g.log.Debug("Write failed", "session", session.ID(), "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
