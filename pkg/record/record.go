// Package record captures microphone audio with a rolling pre-buffer so a
// recording includes speech from just before the hotkey was pressed.
package record

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

const (
	DefaultSampleRate       = 16000
	DefaultChannels         = 1
	DefaultChunkSize        = 1024
	DefaultPreBufferSeconds = 0.5
)

// Options configures a Recorder. Zero fields fall back to the defaults above.
type Options struct {
	SampleRate       int
	Channels         int
	ChunkSize        int // frames per chunk
	PreBufferSeconds float64
}

func (o *Options) fill() {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.Channels <= 0 {
		o.Channels = DefaultChannels
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.PreBufferSeconds <= 0 {
		o.PreBufferSeconds = DefaultPreBufferSeconds
	}
}

// preBuffer is a bounded ring of the most recent audio chunks. While idle the
// recorder overwrites the oldest chunk; starting a recording drains the ring
// in capture order.
type preBuffer struct {
	chunks [][]int16
	next   int
	count  int
}

func newPreBuffer(capacity int) *preBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &preBuffer{chunks: make([][]int16, capacity)}
}

func (p *preBuffer) push(chunk []int16) {
	p.chunks[p.next] = chunk
	p.next = (p.next + 1) % len(p.chunks)
	if p.count < len(p.chunks) {
		p.count++
	}
}

// drain returns the buffered chunks oldest-first and empties the ring.
func (p *preBuffer) drain() [][]int16 {
	out := make([][]int16, 0, p.count)
	start := p.next - p.count
	if start < 0 {
		start += len(p.chunks)
	}
	for i := 0; i < p.count; i++ {
		out = append(out, p.chunks[(start+i)%len(p.chunks)])
	}
	for i := range p.chunks {
		p.chunks[i] = nil
	}
	p.next = 0
	p.count = 0
	return out
}

// Recorder owns a live audio input stream. Every captured chunk is routed,
// under a single mutex, into either the active recording accumulation or the
// pre-buffer ring.
type Recorder struct {
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	recording bool
	pre       *preBuffer
	accum     [][]int16

	stream *portaudio.Stream
	buf    []int16
	stop   chan struct{}
	done   chan struct{}
	opened bool
}

// NewRecorder builds a Recorder; the audio device is not touched until Open.
func NewRecorder(opts Options, log zerolog.Logger) *Recorder {
	opts.fill()
	capacity := int(float64(opts.SampleRate) * opts.PreBufferSeconds / float64(opts.ChunkSize))
	return &Recorder{
		opts: opts,
		log:  log,
		pre:  newPreBuffer(capacity),
		buf:  make([]int16, opts.ChunkSize*opts.Channels),
	}
}

// Open starts continuous capture. Failure to acquire the input device is
// fatal to the caller.
func (r *Recorder) Open() error {
	if r.opened {
		return fmt.Errorf("recorder already open")
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(r.opts.Channels, 0, float64(r.opts.SampleRate), r.opts.ChunkSize, r.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}
	r.stream = stream
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.opened = true
	go r.captureLoop()
	r.log.Info().
		Int("sample_rate", r.opts.SampleRate).
		Int("channels", r.opts.Channels).
		Int("chunk_size", r.opts.ChunkSize).
		Int("pre_buffer_chunks", len(r.pre.chunks)).
		Msg("audio capture started")
	return nil
}

func (r *Recorder) captureLoop() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		if err := r.stream.Read(); err != nil {
			if err != portaudio.InputOverflowed {
				r.log.Warn().Err(err).Msg("input stream read failed")
			}
			continue
		}
		chunk := make([]int16, len(r.buf))
		copy(chunk, r.buf)
		r.ingest(chunk)
	}
}

// ingest routes one captured chunk. It is the only writer besides
// StartRecording/StopRecording and must stay non-blocking.
func (r *Recorder) ingest(chunk []int16) {
	r.mu.Lock()
	if r.recording {
		r.accum = append(r.accum, chunk)
	} else {
		r.pre.push(chunk)
	}
	r.mu.Unlock()
}

// StartRecording begins a session: the pre-buffer contents move, in capture
// order, to the front of the accumulation so the clip includes audio from
// before the trigger.
func (r *Recorder) StartRecording() {
	r.mu.Lock()
	r.accum = r.pre.drain()
	r.recording = true
	r.mu.Unlock()
	r.log.Debug().Msg("recording armed")
}

// StopRecording finalizes the session. It returns nil when nothing was
// accumulated, which is an expected outcome for a spuriously brief trigger,
// not an error.
func (r *Recorder) StopRecording() *Clip {
	r.mu.Lock()
	r.recording = false
	chunks := r.accum
	r.accum = nil
	r.mu.Unlock()

	if len(chunks) == 0 {
		return nil
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	samples := make([]int16, 0, total)
	for _, c := range chunks {
		samples = append(samples, c...)
	}
	clip := NewClip(samples, r.opts.SampleRate, r.opts.Channels)
	r.log.Info().Dur("duration", clip.Duration()).Msg("captured clip")
	return clip
}

// Close stops and releases the capture stream. Idempotent and safe to call
// when the recorder was never opened.
func (r *Recorder) Close() {
	if !r.opened {
		return
	}
	r.opened = false
	close(r.stop)
	<-r.done
	r.stream.Stop()
	r.stream.Close()
	portaudio.Terminate()
	r.log.Debug().Msg("audio capture stopped")
}
