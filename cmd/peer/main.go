package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/voicerelay/internal/adapters/bridge"
	"github.com/dkeye/voicerelay/internal/adapters/codec"
	router "github.com/dkeye/voicerelay/internal/adapters/http"
	"github.com/dkeye/voicerelay/internal/adapters/rtc"
	sig "github.com/dkeye/voicerelay/internal/adapters/signal"
	"github.com/dkeye/voicerelay/internal/adapters/vad"
	"github.com/dkeye/voicerelay/internal/app/negotiate"
	"github.com/dkeye/voicerelay/internal/app/pipeline"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
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
	self, err := domain.ParsePeerID(cfg.Peer.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("peer id")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sink, err := buildSink(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("event sink")
	}
	ingest := pipeline.NewManager(pipelineFactory(cfg, sink, m), sink, m)

	client, err := sig.Dial(ctx, cfg.Peer.SignalingURL, self, sig.Options{
		ReadLimit:    cfg.ReadLimit,
		WriteTimeout: cfg.WriteTimeout,
		SendBuffer:   cfg.SendBuffer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect to relay")
	}

	media := rtc.Factory(rtc.DefaultWebRTCConfig(cfg.Peer.ICEServers...))
	neg := negotiate.New(self, client, media, ingest, negotiate.WithMetrics(m))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx, func(ctx context.Context, s domain.Signal) {
			if err := neg.HandleSignal(ctx, s); err != nil {
				log.Warn().Err(err).Str("from", string(s.From)).Msg("signal not handled")
			}
		})
	})

	var srv *http.Server
	if cfg.Peer.HTTPPort > 0 {
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Peer.HTTPPort),
			Handler: router.SetupAgentRouter(cfg, neg.Sessions, reg),
		}
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("peer http started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		neg.Close()
		ingest.StopAll()
		client.Close()
		if srv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("peer stopped")
		return
	}
	log.Info().Msg("Peer exited gracefully")
}

func buildSink(cfg *config.Config) (core.EventSink, error) {
	sinks := bridge.MultiSink{bridge.LogSink{}}
	if dir := cfg.Audio.UtteranceDir; dir != "" {
		w, err := bridge.NewWAVSink(dir, cfg.Audio.SampleRate)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}
	return sinks, nil
}

// pipelineFactory gives every track its own decoder and classifier.
func pipelineFactory(cfg *config.Config, sink core.EventSink, m *metrics.Metrics) pipeline.Factory {
	pcfg := pipeline.Config{
		Format: domain.AudioFormat{
			SampleRate:    cfg.Audio.SampleRate,
			FrameDuration: cfg.Audio.FrameDuration,
		},
		SilenceThreshold: cfg.Audio.SilenceThreshold,
		MaxUtterance:     cfg.Audio.MaxUtterance,
	}
	settings := vad.Settings{
		Kind:            cfg.Audio.Classifier,
		Mode:            cfg.Audio.VADMode,
		EnergyThreshold: cfg.Audio.EnergyThreshold,
	}
	return func(sessionID, trackID string) (*pipeline.Pipeline, error) {
		dec, err := codec.NewOpusDecoder(cfg.Audio.SampleRate)
		if err != nil {
			return nil, err
		}
		cls, err := vad.New(settings)
		if err != nil {
			return nil, err
		}
		return pipeline.New(sessionID, pcfg, dec, cls, sink, pipeline.WithMetrics(m))
	}
}
