// Package inject types text into the focused application by staging it on
// the clipboard and simulating a paste chord.
package inject

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog"
)

// Options configures an Injector.
type Options struct {
	RestoreClipboard bool
}

// Injector performs clipboard-set, paste keystroke, and optional clipboard
// restore. The paste modifier is fixed at construction for the platform.
type Injector struct {
	opts     Options
	modifier string
	log      zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Injector {
	return &Injector{
		opts:     opts,
		modifier: pasteModifier(runtime.GOOS),
		log:      log.With().Str("component", "inject").Logger(),
	}
}

// pasteModifier picks the key that chords with V to paste.
func pasteModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

// Inject pastes text at the cursor. Empty text is a no-op. The previous
// clipboard contents come back afterwards when restore is configured and
// they could be read in the first place. The sleeps give the focused
// application time to observe the clipboard before and after the paste.
func (i *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}

	var old string
	restorable := false
	if i.opts.RestoreClipboard {
		if prev, err := robotgo.ReadAll(); err == nil {
			old, restorable = prev, true
		}
	}

	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := robotgo.KeyTap("v", i.modifier); err != nil {
		return fmt.Errorf("paste keystroke: %w", err)
	}
	time.Sleep(150 * time.Millisecond)

	if restorable {
		time.Sleep(100 * time.Millisecond)
		if err := robotgo.WriteAll(old); err != nil {
			i.log.Warn().Err(err).Msg("could not restore clipboard")
		}
	}
	i.log.Debug().Int("chars", len(text)).Msg("text injected")
	return nil
}
