package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/api"
	"github.com/KingSajxxd/f1-relay/internal/config"
	"github.com/KingSajxxd/f1-relay/internal/engine"
	"github.com/KingSajxxd/f1-relay/internal/replay"
	"github.com/KingSajxxd/f1-relay/internal/transport"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.Mode, "mode", "", "Run mode: LIVE or REPLAY (overrides MODE)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.ReplayFilePath, "replay-file", "", "Capture file to replay (overrides REPLAY_FILE_PATH)")
	flag.Float64Var(&overrides.ReplaySpeed, "replay-speed", 0, "Replay pacing multiplier (overrides REPLAY_SPEED)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Str("mode", string(cfg.Mode)).
		Str("log_level", level.String()).
		Msg("f1-relay starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg.SubscriberBufferSize, log)

	var conn api.ConnectionStatus
	switch cfg.Mode {
	case config.ModeLive:
		client := transport.New(transport.Options{
			UpstreamBase:    cfg.UpstreamBase,
			Hub:             cfg.UpstreamHub,
			InitialInterval: cfg.ReconnectInitialInterval,
			MaxInterval:     cfg.ReconnectMaxInterval,
			Multiplier:      cfg.ReconnectMultiplier,
			Dispatcher:      eng.Dispatcher,
			Log:             log.With().Str("component", "transport").Logger(),
		})
		conn = client
		go client.Run(ctx)
		log.Info().Str("upstream", cfg.UpstreamBase).Msg("live ingestion started")

	case config.ModeReplay:
		driver := replay.New(cfg.ReplayFilePath, cfg.ReplaySpeed, eng.Dispatcher, eng.Store, eng.Bus,
			log.With().Str("component", "replay").Logger())
		go func() {
			if err := driver.Run(ctx); err != nil {
				log.Error().Err(err).Msg("replay ended with error")
			} else {
				log.Info().Msg("replay finished")
			}
		}()
		log.Info().Str("file", cfg.ReplayFilePath).Float64("speed", cfg.ReplaySpeed).Msg("replay ingestion started")
	}

	if !cfg.AuthEnabled {
		log.Warn().Msg("AUTH_ENABLED=false — /snapshot and /ws are open to any client")
	} else if cfg.AuthTokenGenerated {
		log.Info().Str("token", cfg.AuthToken).Msg("AUTH_TOKEN auto-generated (set AUTH_TOKEN in .env for a persistent token)")
	} else {
		log.Info().Msg("AUTH_TOKEN loaded from configuration")
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		HTTPAddr:       cfg.HTTPAddr,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AuthEnabled:    cfg.AuthEnabled,
		AuthToken:      cfg.AuthToken,
		MetricsEnabled: cfg.MetricsEnabled,
		Mode:           string(cfg.Mode),
		StartTime:      startTime,
		Conn:           conn,
		Store:          eng.Store,
		Bus:            eng.Bus,
		Log:            httpLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("listen", cfg.HTTPAddr).
		Str("version", version).
		Dur("startup_ms", time.Since(startTime)).
		Msg("f1-relay ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if err := eng.Shutdown(shutdownCtx, cfg.FinalStatePath); err != nil {
		log.Error().Err(err).Msg("engine shutdown error")
	}

	log.Info().Msg("f1-relay stopped")
}
