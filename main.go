package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"murmur/pkg/app"
	"murmur/pkg/config"
	"murmur/pkg/tray"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// systray.Run owns the main goroutine, so the ready/exit callbacks reach
// the daemon state through these.
var (
	cfg    config.Config
	log    zerolog.Logger
	cancel context.CancelFunc
)

func main() {
	configPath := flag.String("config", "", "config file path (default: ~/.config/murmur/config.yaml)")
	logLevel := flag.String("log-level", "", "override the configured log level")
	headless := flag.Bool("headless", false, "run without the system tray")
	flag.Parse()

	early := zerolog.New(os.Stderr).With().Timestamp().Logger()

	path := *configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			early.Fatal().Err(err).Msg("cannot locate config directory")
		}
		path = p
	}
	loaded, err := config.Load(path)
	if err != nil {
		early.Fatal().Err(err).Msg("failed to load config")
	}
	cfg = loaded
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("murmur starting")

	if *headless || !cfg.Tray.Enabled {
		if err := app.RunHeadless(cfg, log); err != nil {
			log.Fatal().Err(err).Msg("engine failed")
		}
		log.Info().Msg("murmur stopped")
		return
	}

	systray.Run(onReady, onExit)
	log.Info().Msg("murmur stopped")
}

func onReady() {
	sink := tray.NewSystray(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cancel = stop

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx, cfg, sink, log)
	}()

	go func() {
		select {
		case <-sink.Quit():
			log.Info().Msg("quit requested from tray")
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("engine failed")
			}
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
		}
		systray.Quit()
	}()
}

func onExit() {
	if cancel != nil {
		cancel()
	}
}
