// Package hotkeys merges global key events into a single start/stop signal
// stream. Two triggers feed it: a level-triggered push-to-talk key and an
// edge-triggered toggle key.
package hotkeys

import (
	"fmt"
	"sync"

	hook "github.com/robotn/gohook"
	"github.com/rs/zerolog"
)

// Signal is one logical recording control event.
type Signal int

const (
	SignalStart Signal = iota
	SignalStop
)

func (s Signal) String() string {
	if s == SignalStart {
		return "start"
	}
	return "stop"
}

// LookupKey resolves a configured key name to a keycode. Unknown names are
// a configuration error surfaced at load time, not at first keypress.
func LookupKey(name string) (uint16, error) {
	code, ok := hook.Keycode[name]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return code, nil
}

// Manager listens for the two configured keys and emits merged signals.
//
// While the toggle is active, push-to-talk releases are ignored, so a key
// release that coincides with a toggle-driven session cannot stop it. Both
// keys latch per press-hold cycle: OS auto-repeat never re-fires a signal.
type Manager struct {
	pttName    string
	toggleName string
	pttCode    uint16
	toggleCode uint16
	log        zerolog.Logger

	events chan Signal
	done   chan struct{}

	mu           sync.Mutex
	pttHeld      bool
	toggleActive bool
	toggleDown   bool
	started      bool
}

func New(pttName, toggleName string, log zerolog.Logger) (*Manager, error) {
	pttCode, err := LookupKey(pttName)
	if err != nil {
		return nil, fmt.Errorf("push-to-talk key: %w", err)
	}
	toggleCode, err := LookupKey(toggleName)
	if err != nil {
		return nil, fmt.Errorf("toggle key: %w", err)
	}
	if pttCode == toggleCode {
		return nil, fmt.Errorf("push-to-talk and toggle keys both map to %q", pttName)
	}
	return &Manager{
		pttName:    pttName,
		toggleName: toggleName,
		pttCode:    pttCode,
		toggleCode: toggleCode,
		log:        log.With().Str("component", "hotkeys").Logger(),
		events:     make(chan Signal, 16),
	}, nil
}

// Events delivers the merged start/stop stream.
func (m *Manager) Events() <-chan Signal { return m.events }

// Start begins the global listener. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	raw := hook.Start()
	go m.loop(raw)
	m.log.Info().
		Str("push_to_talk", m.pttName).
		Str("toggle", m.toggleName).
		Msg("hotkeys active")
}

func (m *Manager) loop(raw chan hook.Event) {
	defer close(m.done)
	for {
		ev, ok := <-raw
		if !ok {
			return
		}
		switch ev.Kind {
		// Physical presses arrive as KeyDown or KeyHold depending on the
		// platform; the per-key latches make the duplicates harmless.
		case hook.KeyDown, hook.KeyHold:
			m.handlePress(ev.Keycode)
		case hook.KeyUp:
			m.handleRelease(ev.Keycode)
		case hook.HookDisabled:
			return
		}
	}
}

// Stop ends the listener. Idempotent and safe on a manager never started.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	done := m.done
	m.mu.Unlock()

	hook.End()
	<-done
	m.log.Debug().Msg("hotkey listener stopped")
}

func (m *Manager) handlePress(code uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch code {
	case m.pttCode:
		if m.pttHeld {
			return
		}
		m.pttHeld = true
		if !m.toggleActive {
			m.emit(SignalStart)
		}
	case m.toggleCode:
		if m.toggleDown {
			return
		}
		m.toggleDown = true
		if m.toggleActive {
			m.toggleActive = false
			m.emit(SignalStop)
		} else {
			m.toggleActive = true
			m.emit(SignalStart)
		}
	}
}

func (m *Manager) handleRelease(code uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch code {
	case m.pttCode:
		if !m.pttHeld {
			return
		}
		m.pttHeld = false
		if !m.toggleActive {
			m.emit(SignalStop)
		}
	case m.toggleCode:
		m.toggleDown = false
	}
}

// emit must not block: it runs on the hook event thread.
func (m *Manager) emit(sig Signal) {
	select {
	case m.events <- sig:
	default:
		m.log.Warn().Stringer("signal", sig).Msg("dropping hotkey signal, engine not keeping up")
	}
}
