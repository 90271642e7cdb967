package signal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SignalHandler receives every signal relayed to the client.
type SignalHandler func(ctx context.Context, sig domain.Signal)

// Client is the peer side of the relay: it joins under its own id and
// exchanges envelopes with other peers.
type Client struct {
	self         domain.PeerID
	conn         *websocket.Conn
	send         chan core.Frame
	done         chan struct{}
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	byCaller  atomic.Bool
}

// Dial connects to the relay at url and joins as self.
func Dial(ctx context.Context, url string, self domain.PeerID, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if opts.ReadLimit > 0 {
		ws.SetReadLimit(opts.ReadLimit)
	}
	c := &Client{
		self:         self,
		conn:         ws,
		send:         make(chan core.Frame, opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
	}

	join, err := domain.MarshalEnvelope(domain.Join{ID: self})
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if err := c.write(join); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("join: %w", err)
	}
	log.Info().Str("module", "signal").Str("peer_id", string(self)).Str("url", url).Msg("joined relay")
	return c, nil
}

func (c *Client) ID() domain.PeerID { return c.self }

// Send queues e for writing without blocking.
func (c *Client) Send(e domain.Envelope) error {
	data, err := domain.MarshalEnvelope(e)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return core.ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return core.ErrConnClosed
	default:
		return core.ErrBackpressure
	}
}

// Run pumps the connection until ctx is cancelled or the connection drops.
// Signals are handed to handle on the read goroutine.
func (c *Client) Run(ctx context.Context, handle SignalHandler) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			env, err := domain.ParseEnvelope(data)
			if err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("client dropped malformed envelope")
				continue
			}
			sig, ok := env.(domain.Signal)
			if !ok {
				log.Debug().Str("module", "signal").Str("type", string(env.Kind())).Msg("client ignored envelope")
				continue
			}
			handle(gctx, sig)
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-c.done:
				return core.ErrConnClosed
			case data := <-c.send:
				if err := c.write(data); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
		}
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-c.done:
		}
		c.shutdown()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil || c.byCaller.Load() {
		return nil
	}
	return err
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close leaves the relay and closes the connection.
func (c *Client) Close() {
	c.byCaller.Store(true)
	c.shutdown()
}

// shutdown writes the leave and the close frame before the socket is torn
// down; the pumps stop once done is closed.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		if leave, err := domain.MarshalEnvelope(domain.Leave{ID: c.self}); err == nil {
			if err := c.write(leave); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("write leave")
			}
		}
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout))
		c.writeMu.Unlock()
		close(c.done)
		_ = c.conn.Close()
		log.Info().Str("module", "signal").Str("peer_id", string(c.self)).Msg("left relay")
	})
}
