package http

import (
	"context"

	"github.com/dkeye/voicerelay/internal/adapters/signal"
	"github.com/dkeye/voicerelay/internal/app"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// RelayDeps are the collaborators served by the relay router.
type RelayDeps struct {
	Signal   *signal.SignalWSController
	Dir      *app.Directory
	Gatherer prometheus.Gatherer
}

func newEngine(mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	return r
}

func metricsHandler(g prometheus.Gatherer) gin.HandlerFunc {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// SetupRouter wires the relay: the signaling WebSocket plus operational
// endpoints. ctx bounds the lifetime of every accepted connection.
func SetupRouter(ctx context.Context, cfg *config.Config, deps RelayDeps) *gin.Engine {
	r := newEngine(cfg.Mode)
	h := &relayHandlers{dir: deps.Dir, cfg: cfg}

	r.GET("/ws", func(c *gin.Context) {
		deps.Signal.HandleSignal(ctx, c)
	})
	r.GET("/health", h.health)
	r.GET("/status", h.status)
	r.GET("/metrics", metricsHandler(deps.Gatherer))

	api := r.Group("/api")
	api.GET("/peers", h.peers)

	log.Info().Str("module", "adapters.http").Msg("relay router setup")
	return r
}

// SetupAgentRouter serves health and metrics for the backend peer.
func SetupAgentRouter(cfg *config.Config, sessions func() int, gatherer prometheus.Gatherer) *gin.Engine {
	r := newEngine(cfg.Mode)
	h := &agentHandlers{id: cfg.Peer.ID, sessions: sessions}

	r.GET("/health", h.health)
	r.GET("/metrics", metricsHandler(gatherer))

	log.Info().Str("module", "adapters.http").Msg("agent router setup")
	return r
}
