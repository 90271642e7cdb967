package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/voicerelay/internal/app"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Options tune the per-connection pumps.
type Options struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	SendBuffer   int
	// PingPeriod > 0 enables WebSocket pings and a read deadline of twice
	// the period. Zero disables the heartbeat.
	PingPeriod time.Duration
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

type SignalWSController struct {
	Dir     *app.Directory
	opts    Options
	metrics *metrics.Metrics
	limiter *JoinRateLimiter
}

type ControllerOption func(*SignalWSController)

func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(ctl *SignalWSController) { ctl.metrics = m }
}

func WithJoinRateLimiter(l *JoinRateLimiter) ControllerOption {
	return func(ctl *SignalWSController) { ctl.limiter = l }
}

func NewSignalWSController(dir *app.Directory, opts Options, extra ...ControllerOption) *SignalWSController {
	ctl := &SignalWSController{Dir: dir, opts: opts.withDefaults()}
	for _, o := range extra {
		o(ctl)
	}
	return ctl
}

// WsSignalConn is one accepted signaling connection. It implements
// core.SignalConnection.
type WsSignalConn struct {
	id     string
	remote string
	conn   *websocket.Conn
	send   chan core.Frame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
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
	close(c.done)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the connection pumps. The
// pumps live until the connection closes or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		id:     uuid.NewString(),
		remote: c.ClientIP(),
		conn:   ws,
		send:   make(chan core.Frame, ctl.opts.SendBuffer),
		done:   make(chan struct{}),
	}
	log.Info().Str("module", "signal").Str("conn_id", conn.id).Str("remote", conn.remote).Msg("new WS connection")

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-conn.done:
		}
	}()
	go ctl.writePump(conn)
	go ctl.readPump(conn)
}
