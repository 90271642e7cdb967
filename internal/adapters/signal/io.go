package signal

import (
	"errors"
	"time"

	"github.com/dkeye/voicerelay/internal/app"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.opts.PingPeriod > 0 {
		t := time.NewTicker(ctl.opts.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn_id", c.id).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn_id", c.id).Msg("writePump write error")
				return
			}
		case <-ping:
			deadline := time.Now().Add(ctl.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn_id", c.id).Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the connection's registration. Whatever ends the loop, the
// id still held by this connection is released.
func (ctl *SignalWSController) readPump(c *WsSignalConn) {
	var self domain.PeerID
	defer func() {
		if self != "" {
			ctl.Dir.Leave(self, c)
		}
		log.Info().Str("module", "signal").Str("conn_id", c.id).Str("peer_id", string(self)).Msg("readPump closing")
		c.Close()
	}()

	if p := ctl.opts.PingPeriod; p > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * p))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(2 * p))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("conn_id", c.id).Msg("readPump read error")
			}
			return
		}

		env, err := domain.ParseEnvelope(data)
		if err != nil {
			ctl.metrics.ProtocolError()
			log.Warn().Err(err).Str("module", "signal").Str("conn_id", c.id).Msg("malformed envelope, closing")
			return
		}

		switch e := env.(type) {
		case domain.Join:
			self = ctl.handleJoin(c, self, e.ID)
		case domain.Signal:
			ctl.Dir.Relay(e)
		case domain.Leave:
			log.Info().Str("module", "signal").Str("conn_id", c.id).Str("peer_id", string(self)).Msg("leave")
			return
		case domain.Unknown:
			log.Warn().Str("module", "signal").Str("conn_id", c.id).Str("type", e.Type).Msg("unknown envelope type")
		}
	}
}

// handleJoin returns the id the connection holds afterwards.
func (ctl *SignalWSController) handleJoin(c *WsSignalConn, self, id domain.PeerID) domain.PeerID {
	if ctl.limiter != nil && !ctl.limiter.Allow(c.remote) {
		log.Warn().Str("module", "signal").Str("conn_id", c.id).Str("remote", c.remote).Msg("join rate limited")
		return self
	}
	if err := ctl.Dir.Join(id, c); err != nil {
		if !errors.Is(err, app.ErrDuplicatePeer) {
			log.Error().Err(err).Str("module", "signal").Str("peer_id", string(id)).Msg("join")
		}
		return self
	}
	if self != "" && self != id {
		ctl.Dir.Leave(self, c)
	}
	return id
}
