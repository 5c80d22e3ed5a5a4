// Package transport carries player data messages and commands over a WebSocket.
package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/playback"
	"github.com/listenupapp/listenup-companion/internal/session"
)

// Connection tuning. Pings go out at 9/10 of the pong wait.
const (
	DefaultWriteWait = 10 * time.Second
	DefaultPongWait  = 60 * time.Second
	maxMessageSize   = 64 << 10
	sendBufferSize   = 64
)

// ConnectedType is the type of the greeting frame carrying the session ID.
const ConnectedType = "connected"

// Options configures a Handler.
type Options struct {
	Sessions *session.Manager
	Logger   *slog.Logger
	// CheckOrigin overrides the upgrader's origin check. Nil allows any origin.
	CheckOrigin func(r *http.Request) bool
	WriteWait   time.Duration
	PongWait    time.Duration
}

// AllowOrigins returns an origin check accepting the listed origins. "*" accepts
// any origin, and requests without an Origin header are not from a browser.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[strings.ToLower(origin)]
	}
}

// Handler serves the player WebSocket at /ws/player.
// Each connection gets its own session, removed when the connection closes.
type Handler struct {
	sessions  *session.Manager
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	writeWait time.Duration
	pongWait  time.Duration
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = DefaultWriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	return &Handler{
		sessions: opts.Sessions,
		logger:   opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		writeWait: opts.WriteWait,
		pongWait:  opts.PongWait,
	}
}

// connectedMessage is the first frame sent to the player.
type connectedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ServeHTTP upgrades the request and pumps frames until either side closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess, err := h.sessions.Create()
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"),
			time.Now().Add(h.writeWait))
		_ = conn.Close()
		return
	}

	pc := newPlayerConn(conn, h.writeWait, h.pongWait)
	log := h.logger.With("session_id", sess.ID())

	// Queue the greeting before attaching so it is always the first frame.
	if err := pc.sendJSON(connectedMessage{Type: ConnectedType, SessionID: sess.ID()}); err != nil {
		log.Warn("failed to queue greeting", "error", err)
	}
	detach := sess.Attach(pc)

	go pc.writePump(log)

	defer func() {
		detach()
		pc.close()
		h.sessions.Remove(sess.ID())
		log.Info("player disconnected")
	}()

	log.Info("player connected", "remote_addr", r.RemoteAddr)
	pc.readPump(log, func(data []byte) {
		// HandleData logs and drops malformed frames itself.
		_ = sess.HandleData(data)
	})
}

// playerConn owns one WebSocket. Only writePump writes to conn.
type playerConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newPlayerConn(conn *websocket.Conn, writeWait, pongWait time.Duration) *playerConn {
	return &playerConn{
		conn:      conn,
		writeWait: writeWait,
		pongWait:  pongWait,
		out:       make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
	}
}

// Send implements playback.CommandSender. It never blocks: a full buffer or a
// closed connection is reported as Unavailable.
func (pc *playerConn) Send(cmd playback.Command) error {
	return pc.sendJSON(cmd)
}

func (pc *playerConn) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode player frame")
	}

	select {
	case <-pc.done:
		return errors.Unavailable("player connection closed")
	default:
	}

	select {
	case pc.out <- data:
		return nil
	case <-pc.done:
		return errors.Unavailable("player connection closed")
	default:
		return errors.Unavailable("player send buffer full")
	}
}

func (pc *playerConn) close() {
	pc.closeOnce.Do(func() {
		close(pc.done)
		_ = pc.conn.Close()
	})
}

// readPump delivers text frames to handle until the connection fails.
func (pc *playerConn) readPump(log *slog.Logger, handle func([]byte)) {
	pc.conn.SetReadLimit(maxMessageSize)
	_ = pc.conn.SetReadDeadline(time.Now().Add(pc.pongWait))
	pc.conn.SetPongHandler(func(string) error {
		return pc.conn.SetReadDeadline(time.Now().Add(pc.pongWait))
	})

	for {
		mt, data, err := pc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("player connection closed unexpectedly", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		// Any frame proves the peer is alive.
		_ = pc.conn.SetReadDeadline(time.Now().Add(pc.pongWait))
		handle(data)
	}
}

// writePump writes queued frames in order and pings the player.
func (pc *playerConn) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pc.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		pc.close()
	}()

	for {
		select {
		case data := <-pc.out:
			_ = pc.conn.SetWriteDeadline(time.Now().Add(pc.writeWait))
			if err := pc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Info("player write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = pc.conn.SetWriteDeadline(time.Now().Add(pc.writeWait))
			if err := pc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Info("player ping failed", "error", err)
				return
			}
		case <-pc.done:
			return
		}
	}
}
