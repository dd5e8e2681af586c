// Package sounds plays short feedback beeps for recording start and stop.
// Tones are synthesized once at construction and played asynchronously so
// the engine never waits on the audio device.
package sounds

import (
	"math"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

const (
	DefaultSampleRate = 44100
	DefaultVolume     = 0.3
)

// Options configures feedback playback.
type Options struct {
	Enabled    bool
	SampleRate int
	Volume     float64
}

func (o *Options) fill() {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.Volume <= 0 {
		o.Volume = DefaultVolume
	}
}

// Feedback holds the pre-generated beep waveforms.
type Feedback struct {
	opts  Options
	start []float32
	stop  []float32
	log   zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Feedback {
	opts.fill()
	f := &Feedback{opts: opts, log: log.With().Str("component", "sounds").Logger()}
	if opts.Enabled {
		volume := float32(opts.Volume)
		f.start = generateTone(880, 0.1, opts.SampleRate, volume)
		f.stop = generateSweep(440, 220, 0.15, opts.SampleRate, volume)
	}
	return f
}

// PlayStart plays the recording-start beep, a short 880 Hz tone.
func (f *Feedback) PlayStart() { f.playAsync(f.start) }

// PlayStop plays the recording-stop beep, a descending 440 to 220 Hz sweep.
func (f *Feedback) PlayStop() { f.playAsync(f.stop) }

func (f *Feedback) playAsync(tone []float32) {
	if !f.opts.Enabled || len(tone) == 0 {
		return
	}
	go func() {
		if err := f.play(tone); err != nil {
			f.log.Debug().Err(err).Msg("sound playback failed")
		}
	}()
}

func (f *Feedback) play(tone []float32) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	const frames = 1024
	buf := make([]float32, frames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(f.opts.SampleRate), frames, buf)
	if err != nil {
		return err
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	for off := 0; off < len(tone); off += frames {
		n := copy(buf, tone[off:])
		for i := n; i < frames; i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return err
		}
	}
	return nil
}

func generateTone(freq, duration float64, sampleRate int, volume float32) []float32 {
	n := int(float64(sampleRate) * duration)
	tone := make([]float32, n)
	for i := range tone {
		tone[i] = volume * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	applyFade(tone, sampleRate)
	return tone
}

// generateSweep accumulates phase per sample so the frequency glides without
// discontinuities.
func generateSweep(freqStart, freqEnd, duration float64, sampleRate int, volume float32) []float32 {
	n := int(float64(sampleRate) * duration)
	tone := make([]float32, n)
	if n == 0 {
		return tone
	}
	phase := 0.0
	for i := range tone {
		progress := 0.0
		if n > 1 {
			progress = float64(i) / float64(n-1)
		}
		freq := freqStart + (freqEnd-freqStart)*progress
		phase += 2 * math.Pi * freq / float64(sampleRate)
		tone[i] = volume * float32(math.Sin(phase))
	}
	applyFade(tone, sampleRate)
	return tone
}

// applyFade ramps 5 ms at each end so the beep does not click.
func applyFade(tone []float32, sampleRate int) {
	fade := sampleRate * 5 / 1000
	if fade <= 0 || len(tone) <= 2*fade {
		return
	}
	for i := 0; i < fade; i++ {
		gain := float32(i) / float32(fade)
		tone[i] *= gain
		tone[len(tone)-1-i] *= gain
	}
}
