// Package engine coordinates one recording session at a time: hotkey
// signals arm and finalize the recorder, a background task transcribes,
// cleans, and injects, and the tray mirrors every transition. All state
// changes happen on the Run goroutine; collaborators feed it channels.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"murmur/pkg/hotkeys"
	"murmur/pkg/record"
	"murmur/pkg/transcribe"
	"murmur/pkg/tray"
)

// State is the engine's position in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// Recorder is the audio capture collaborator.
type Recorder interface {
	Open() error
	StartRecording()
	StopRecording() *record.Clip
	Close()
}

// Router turns a clip into text, reporting which backend produced it.
type Router interface {
	Route(ctx context.Context, clip *record.Clip) (string, transcribe.Source, error)
}

// Cleaner normalizes a transcript. llmAllowed gates the LLM stage.
type Cleaner interface {
	Clean(ctx context.Context, text string, llmAllowed bool) string
}

// Injector delivers final text to the focused application.
type Injector interface {
	Inject(text string) error
}

// Feedback plays the start/stop cues.
type Feedback interface {
	PlayStart()
	PlayStop()
}

// Options wires the engine's collaborators. Cleaner may be nil to disable
// cleanup entirely; Tray and Sounds default to no-ops.
type Options struct {
	Triggers <-chan hotkeys.Signal
	Recorder Recorder
	Router   Router
	Cleaner  Cleaner
	Injector Injector
	Sounds   Feedback
	Tray     tray.StatusSink
	Log      zerolog.Logger
}

type sessionResult struct {
	usedFallback bool
}

// Engine runs the Idle -> Recording -> Transcribing -> Idle state machine.
type Engine struct {
	opts  Options
	state State
	done  chan sessionResult
	log   zerolog.Logger
}

func New(opts Options) *Engine {
	if opts.Tray == nil {
		opts.Tray = tray.Noop{}
	}
	if opts.Sounds == nil {
		opts.Sounds = nopFeedback{}
	}
	return &Engine{
		opts: opts,
		// Buffered so a session finishing during shutdown never blocks.
		done: make(chan sessionResult, 1),
		log:  opts.Log.With().Str("component", "engine").Logger(),
	}
}

// Run opens the recorder and processes triggers until ctx is cancelled or
// the trigger channel closes. An in-flight transcription is not awaited on
// shutdown.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.opts.Recorder.Open(); err != nil {
		return fmt.Errorf("open recorder: %w", err)
	}
	defer e.opts.Recorder.Close()

	e.opts.Tray.SetState(tray.StateReady)
	e.log.Info().Msg("engine ready")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-e.opts.Triggers:
			if !ok {
				return nil
			}
			switch sig {
			case hotkeys.SignalStart:
				e.handleStart()
			case hotkeys.SignalStop:
				e.handleStop(ctx)
			}
		case res := <-e.done:
			e.finishSession(res)
		}
	}
}

// handleStart arms the recorder. Triggers while a session is recording or
// transcribing are dropped so sessions never overlap.
func (e *Engine) handleStart() {
	if e.state != StateIdle {
		e.log.Debug().Stringer("state", e.state).Msg("start trigger ignored")
		return
	}
	e.state = StateRecording
	e.opts.Sounds.PlayStart()
	e.opts.Recorder.StartRecording()
	e.opts.Tray.SetState(tray.StateRecording)
	e.log.Info().Msg("recording")
}

// handleStop finalizes the clip and hands it to a background session. An
// empty capture is expected for a spuriously brief trigger and returns the
// engine straight to idle.
func (e *Engine) handleStop(ctx context.Context) {
	if e.state != StateRecording {
		e.log.Debug().Stringer("state", e.state).Msg("stop trigger ignored")
		return
	}
	e.opts.Sounds.PlayStop()
	clip := e.opts.Recorder.StopRecording()
	if clip == nil {
		e.state = StateIdle
		e.opts.Tray.SetState(tray.StateReady)
		e.log.Debug().Msg("nothing captured")
		return
	}
	e.state = StateTranscribing
	e.opts.Tray.SetState(tray.StateProcessing)
	e.log.Info().Dur("duration", clip.Duration()).Msg("transcribing")
	go e.runSession(ctx, clip)
}

// runSession executes route -> clean -> inject off the Run goroutine.
// Injection is all-or-nothing: any failure means no text reaches the
// focused application this session.
func (e *Engine) runSession(ctx context.Context, clip *record.Clip) {
	var res sessionResult

	text, source, err := e.opts.Router.Route(ctx, clip)
	if err != nil {
		e.log.Error().Err(err).Msg("transcription failed")
		e.done <- res
		return
	}
	res.usedFallback = source == transcribe.SourceFallback

	if text != "" && e.opts.Cleaner != nil {
		text = e.opts.Cleaner.Clean(ctx, text, source == transcribe.SourcePrimary)
	}
	if text == "" {
		e.log.Debug().Msg("empty transcript, nothing to inject")
		e.done <- res
		return
	}
	if err := e.opts.Injector.Inject(text); err != nil {
		e.log.Error().Err(err).Msg("injection failed")
	}
	e.done <- res
}

func (e *Engine) finishSession(res sessionResult) {
	e.state = StateIdle
	if res.usedFallback {
		e.opts.Tray.SetState(tray.StateFallback)
	} else {
		e.opts.Tray.SetState(tray.StateReady)
	}
	e.log.Debug().Bool("used_fallback", res.usedFallback).Msg("session complete")
}

type nopFeedback struct{}

func (nopFeedback) PlayStart() {}
func (nopFeedback) PlayStop()  {}
