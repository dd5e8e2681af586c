// Package tray shows the dictation state in the system tray. The engine
// talks to a StatusSink so headless runs can swap in the no-op sink without
// branching anywhere else.
package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"
)

// State is the user-visible engine status.
type State int

const (
	StateReady State = iota
	StateRecording
	StateProcessing
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// StatusSink receives state updates from the engine.
type StatusSink interface {
	SetState(State)
}

// Noop discards state updates.
type Noop struct{}

func (Noop) SetState(State) {}

func stateIcons() map[State][]byte {
	return map[State][]byte{
		StateReady:      dotIcon(color.NRGBA{R: 76, G: 175, B: 80, A: 255}),
		StateRecording:  dotIcon(color.NRGBA{R: 244, G: 67, B: 54, A: 255}),
		StateProcessing: dotIcon(color.NRGBA{R: 255, G: 193, B: 7, A: 255}),
		StateFallback:   dotIcon(color.NRGBA{R: 255, G: 152, B: 0, A: 255}),
	}
}

func stateTitles() map[State]string {
	return map[State]string{
		StateReady:      "Murmur - Ready",
		StateRecording:  "Murmur - Recording...",
		StateProcessing: "Murmur - Transcribing...",
		StateFallback:   "Murmur - Local Mode",
	}
}

// Systray drives the real tray icon. Construct it inside the systray ready
// callback; the systray package owns the UI thread.
type Systray struct {
	icons  map[State][]byte
	titles map[State]string
	quit   chan struct{}
	log    zerolog.Logger
}

func NewSystray(log zerolog.Logger) *Systray {
	s := &Systray{
		icons:  stateIcons(),
		titles: stateTitles(),
		quit:   make(chan struct{}),
		log:    log.With().Str("component", "tray").Logger(),
	}
	systray.SetIcon(s.icons[StateReady])
	systray.SetTooltip(s.titles[StateReady])

	name := systray.AddMenuItem("Murmur", "")
	name.Disable()
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Quit Murmur")
	go func() {
		<-quitItem.ClickedCh
		close(s.quit)
	}()
	return s
}

// Quit is closed when the user picks Quit from the tray menu.
func (s *Systray) Quit() <-chan struct{} { return s.quit }

// SetState recolors the dot and updates the tooltip. Safe from any
// goroutine.
func (s *Systray) SetState(state State) {
	icon, ok := s.icons[state]
	if !ok {
		icon = s.icons[StateReady]
	}
	title, ok := s.titles[state]
	if !ok {
		title = s.titles[StateReady]
	}
	systray.SetIcon(icon)
	systray.SetTooltip(title)
	s.log.Debug().Stringer("state", state).Msg("tray updated")
}

// dotIcon renders a solid circle on a transparent 64x64 square, encoded as
// PNG for the tray.
func dotIcon(c color.NRGBA) []byte {
	const size = 64
	const margin = 4
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	center := float64(size) / 2
	radius := center - margin
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - center
			dy := float64(y) + 0.5 - center
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img) // writing to a bytes.Buffer cannot fail
	return buf.Bytes()
}
