package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ClientTokenKey is the gin context key holding the browser session token.
const ClientTokenKey = "client_token"

var errConnClosed = errors.New("connection closed")

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Registry *app.Registry
	Limiter  *RoomRateLimiter
	Metrics  *metrics.Metrics

	cfg      config.WSConfig
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
}

func NewSignalWSController(o *orch.Orchestrator, reg *app.Registry, limiter *RoomRateLimiter, m *metrics.Metrics, cfg config.WSConfig) *SignalWSController {
	ctl := &SignalWSController{
		Orch:     o,
		Registry: reg,
		Limiter:  limiter,
		Metrics:  m,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	ctl.handlers = ctl.routes()
	return ctl
}

// WsSignalConn is the outbound half of a WebSocket connection. Frames are
// queued without blocking and written by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- f:
	default:
		return app.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// session is what the read loop knows about its connection.
type session struct {
	sid   domain.ConnID
	token string
	conn  *WsSignalConn
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString(ClientTokenKey)

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	s := &session{
		sid:   domain.NewConnID(),
		token: token,
		conn:  newWsSignalConn(ws, ctl.cfg.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(s.sid, s.conn, cancel)
	ctl.Metrics.ConnOpened()

	ctl.sendJSON(s, core.Event{Type: core.EventConnected, Data: connectedEvent{SocketID: s.sid}})

	go ctl.writePump(ctx, s.conn)
	go ctl.readPump(ctx, cancel, s)
}

type connectedEvent struct {
	SocketID domain.ConnID `json:"socketId"`
}
