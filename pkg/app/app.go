// Package app assembles the dictation daemon: configuration in, a running
// engine out. The tray binary and the CLI's run command share this wiring so
// both drive the exact same pipeline.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"murmur/pkg/cleanup"
	"murmur/pkg/config"
	"murmur/pkg/engine"
	"murmur/pkg/hotkeys"
	"murmur/pkg/inject"
	"murmur/pkg/record"
	"murmur/pkg/sounds"
	"murmur/pkg/transcribe"
	"murmur/pkg/tray"
)

// NewHTTPClient builds the client shared by the speech and LLM calls.
// Connections are pooled and reused across sessions; the timeout bounds a
// single request. Stages with tighter deadlines layer a context timeout on
// top instead of getting their own client.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	_ = http2.ConfigureTransport(tr)
	return &http.Client{Transport: tr, Timeout: timeout}
}

// Run assembles the engine from cfg and drives it until ctx is cancelled.
// The caller picks the status sink: the systray sink for the tray binary,
// tray.Noop for headless runs.
func Run(ctx context.Context, cfg config.Config, sink tray.StatusSink, log zerolog.Logger) error {
	var apiKey string
	if envFile, err := config.EnvFile(); err == nil {
		apiKey = config.LoadAPIKey(envFile)
	}

	httpClient := NewHTTPClient(cfg.STT.RequestTimeout.Std())

	primary, fallback, closeBackends, err := buildBackends(ctx, cfg, apiKey, httpClient, log)
	if err != nil {
		return err
	}
	defer closeBackends()

	router := transcribe.NewRouter(primary, fallback,
		log.With().Str("component", "router").Logger())

	var cleaner engine.Cleaner
	if cfg.Cleanup.Enabled {
		cleaner = cleanup.New(cleanup.Options{
			APIKey:         apiKey,
			Model:          cfg.Cleanup.Model,
			LLMEnabled:     cfg.Cleanup.LLMEnabled,
			HTTPClient:     httpClient,
			RequestTimeout: cfg.Cleanup.RequestTimeout.Std(),
			RatioMin:       cfg.Cleanup.RatioMin,
			RatioMax:       cfg.Cleanup.RatioMax,
		}, log)
	}

	recorder := record.NewRecorder(record.Options{
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		ChunkSize:        cfg.Audio.ChunkSize,
		PreBufferSeconds: cfg.Audio.PreBufferSeconds,
	}, log.With().Str("component", "record").Logger())

	hm, err := hotkeys.New(cfg.Hotkeys.PushToTalk, cfg.Hotkeys.Toggle, log)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Options{
		Triggers: hm.Events(),
		Recorder: recorder,
		Router:   router,
		Cleaner:  cleaner,
		Injector: inject.New(inject.Options{RestoreClipboard: cfg.TextInjection.RestoreClipboard}, log),
		Sounds:   sounds.New(sounds.Options{Enabled: cfg.Audio.SoundFeedback}, log),
		Tray:     sink,
		Log:      log,
	})

	hm.Start()
	defer hm.Stop()

	log.Info().
		Str("primary", backendName(primary)).
		Str("fallback", backendName(fallback)).
		Str("push_to_talk", cfg.Hotkeys.PushToTalk).
		Str("toggle", cfg.Hotkeys.Toggle).
		Msg("murmur ready")

	return eng.Run(ctx)
}

// RunHeadless runs the engine without a tray until an interrupt or SIGTERM
// arrives. This is the systemd service entry point.
func RunHeadless(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg, tray.Noop{}, log)
}

// buildBackends picks the primary backend per cfg.STT.Primary and always
// tries to construct the whisper.cpp fallback. A missing API key or a
// missing local install degrades with a warning; only ending up with no
// backend at all is fatal.
func buildBackends(ctx context.Context, cfg config.Config, apiKey string, httpClient *http.Client, log zerolog.Logger) (primary, fallback transcribe.Backend, closer func(), err error) {
	closer = func() {}

	local, localErr := transcribe.NewLocal(transcribe.LocalOptions{
		Bin:      cfg.STT.LocalBin,
		Model:    cfg.STT.LocalModel,
		Language: cfg.STT.Language,
		VAD:      cfg.STT.LocalVAD,
		VADModel: cfg.STT.LocalVADModel,
	}, log)
	if localErr != nil {
		log.Warn().Err(localErr).Msg("local transcription unavailable")
	} else {
		fallback = local
	}

	switch cfg.STT.Primary {
	case "groq":
		if apiKey == "" {
			log.Warn().Msg("no Groq API key configured, skipping cloud transcription")
			break
		}
		primary = transcribe.NewGroq(transcribe.GroqOptions{
			APIKey:     apiKey,
			Model:      cfg.STT.GroqModel,
			Language:   cfg.STT.Language,
			HTTPClient: httpClient,
			MaxRetries: len(cfg.STT.RetryBackoff),
			Backoff:    backoffSchedule(cfg.STT.RetryBackoff),
		}, log)
	case "google":
		g, gerr := transcribe.NewGoogle(ctx, transcribe.GoogleOptions{
			CredentialsFile: cfg.STT.GoogleCredentials,
			Language:        cfg.STT.Language,
		}, log)
		if gerr != nil {
			return nil, nil, closer, fmt.Errorf("google backend: %w", gerr)
		}
		primary = g
		closer = func() {
			if cerr := g.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("closing google client")
			}
		}
	case "local":
		// The fallback already is the local backend; routing goes straight
		// to it with a nil primary.
	}

	if primary == nil && fallback == nil {
		if localErr != nil {
			return nil, nil, closer, fmt.Errorf("no transcription backend available: %w", localErr)
		}
		return nil, nil, closer, fmt.Errorf("no transcription backend available")
	}
	return primary, fallback, closer, nil
}

func backoffSchedule(ds []config.Duration) []time.Duration {
	out := make([]time.Duration, len(ds))
	for i, d := range ds {
		out[i] = d.Std()
	}
	return out
}

func backendName(b transcribe.Backend) string {
	if b == nil {
		return "none"
	}
	return b.Name()
}
