package sounds

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerateToneShape(t *testing.T) {
	tone := generateTone(880, 0.1, 44100, 0.3)
	if len(tone) != 4410 {
		t.Fatalf("len = %d, want 4410", len(tone))
	}
	if tone[0] != 0 || tone[len(tone)-1] != 0 {
		t.Errorf("fade endpoints = %v, %v, want 0, 0", tone[0], tone[len(tone)-1])
	}
	peak := float32(0)
	for _, s := range tone {
		if abs := float32(math.Abs(float64(s))); abs > peak {
			peak = abs
		}
	}
	if peak > 0.3 {
		t.Errorf("peak %v exceeds volume 0.3", peak)
	}
	if peak < 0.27 {
		t.Errorf("peak %v, tone barely audible", peak)
	}
}

func TestGenerateSweepShape(t *testing.T) {
	tone := generateSweep(440, 220, 0.15, 44100, 0.3)
	if len(tone) != 6615 {
		t.Fatalf("len = %d, want 6615", len(tone))
	}
	if tone[0] != 0 || tone[len(tone)-1] != 0 {
		t.Errorf("fade endpoints = %v, %v, want 0, 0", tone[0], tone[len(tone)-1])
	}
	// Accumulated phase keeps adjacent samples close; a discontinuity would
	// show up as a step far above the per-sample delta of a 440 Hz sine.
	maxDelta := float32(0)
	for i := 1; i < len(tone); i++ {
		if d := float32(math.Abs(float64(tone[i] - tone[i-1]))); d > maxDelta {
			maxDelta = d
		}
	}
	if maxDelta > 0.05 {
		t.Errorf("max sample delta %v, sweep has discontinuities", maxDelta)
	}
}

func TestApplyFadeSkipsShortTones(t *testing.T) {
	tone := []float32{0.3, 0.3, 0.3}
	applyFade(tone, 44100)
	for i, s := range tone {
		if s != 0.3 {
			t.Fatalf("sample %d = %v, short tone was faded", i, s)
		}
	}
}

func TestDisabledFeedbackGeneratesNothing(t *testing.T) {
	f := New(Options{Enabled: false}, zerolog.Nop())
	if f.start != nil || f.stop != nil {
		t.Error("disabled feedback pre-generated tones")
	}
	f.PlayStart()
	f.PlayStop()
}

func TestOptionsDefaults(t *testing.T) {
	f := New(Options{Enabled: true}, zerolog.Nop())
	if f.opts.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", f.opts.SampleRate, DefaultSampleRate)
	}
	if f.opts.Volume != DefaultVolume {
		t.Errorf("volume = %v, want %v", f.opts.Volume, DefaultVolume)
	}
	if len(f.start) == 0 || len(f.stop) == 0 {
		t.Error("enabled feedback has empty tones")
	}
}
