package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/voicerelay/internal/adapters/http"
	"github.com/dkeye/voicerelay/internal/adapters/presence"
	sig "github.com/dkeye/voicerelay/internal/adapters/signal"
	"github.com/dkeye/voicerelay/internal/app"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/dkeye/voicerelay/internal/logging"
	"github.com/dkeye/voicerelay/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	policy, err := app.PolicyByName(cfg.JoinPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("join policy")
	}
	dirOpts := []app.Option{app.WithJoinPolicy(policy), app.WithMetrics(m)}

	if cfg.Redis.Addr != "" {
		p, err := presence.Connect(ctx, presence.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Error().Err(err).Msg("presence mirror disabled")
		} else {
			defer p.Close()
			if err := p.Reset(ctx); err != nil {
				log.Warn().Err(err).Msg("presence reset")
			}
			dirOpts = append(dirOpts, app.WithPresence(p))
			log.Info().Str("addr", cfg.Redis.Addr).Msg("presence mirror enabled")
		}
	}

	dir := app.NewDirectory(dirOpts...)
	ctl := sig.NewSignalWSController(dir, sig.Options{
		ReadLimit:    cfg.ReadLimit,
		WriteTimeout: cfg.WriteTimeout,
		SendBuffer:   cfg.SendBuffer,
		PingPeriod:   cfg.PingPeriod,
	},
		sig.WithMetrics(m),
		sig.WithJoinRateLimiter(sig.NewJoinRateLimiter(cfg.JoinRate.Limit, cfg.JoinRate.Interval)),
	)

	r := router.SetupRouter(ctx, cfg, router.RelayDeps{Signal: ctl, Dir: dir, Gatherer: reg})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
