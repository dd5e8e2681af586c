package tray

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"
)

var allStates = []State{StateReady, StateRecording, StateProcessing, StateFallback}

func TestStateStrings(t *testing.T) {
	want := map[State]string{
		StateReady:      "ready",
		StateRecording:  "recording",
		StateProcessing: "processing",
		StateFallback:   "fallback",
	}
	for state, s := range want {
		if state.String() != s {
			t.Errorf("State(%d).String() = %q, want %q", state, state.String(), s)
		}
	}
}

func TestStateIconsAndTitlesComplete(t *testing.T) {
	icons := stateIcons()
	titles := stateTitles()
	for _, state := range allStates {
		if len(icons[state]) == 0 {
			t.Errorf("no icon for state %v", state)
		}
		if titles[state] == "" {
			t.Errorf("no title for state %v", state)
		}
	}
	if got, want := titles[StateFallback], "Murmur - Local Mode"; got != want {
		t.Errorf("fallback title = %q, want %q", got, want)
	}
}

func TestDotIconIsValidPNG(t *testing.T) {
	red := color.NRGBA{R: 244, G: 67, B: 54, A: 255}
	data := dotIcon(red)

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 64 {
		t.Fatalf("bounds = %v, want 64x64", bounds)
	}
	if _, _, _, a := img.At(32, 32).RGBA(); a == 0 {
		t.Error("center pixel transparent, circle missing")
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("corner pixel opaque, background not transparent")
	}
}

func TestNoopSinkIsSafe(t *testing.T) {
	var sink StatusSink = Noop{}
	for _, state := range allStates {
		sink.SetState(state)
	}
}
