package record

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a finished recording: 16-bit signed PCM frames at a fixed sample
// rate and channel count. A clip is immutable once produced and belongs to
// the session that recorded it.
type Clip struct {
	samples    []int16
	sampleRate int
	channels   int
}

// NewClip wraps raw PCM samples in a Clip. The slice is taken over by the
// clip and must not be mutated afterwards.
func NewClip(samples []int16, sampleRate, channels int) *Clip {
	return &Clip{samples: samples, sampleRate: sampleRate, channels: channels}
}

func (c *Clip) SampleRate() int  { return c.sampleRate }
func (c *Clip) Channels() int    { return c.channels }
func (c *Clip) Samples() []int16 { return c.samples }

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	frames := len(c.samples) / c.channels
	return time.Duration(frames) * time.Second / time.Duration(c.sampleRate)
}

// PCM returns the raw little-endian sample bytes, without any container.
func (c *Clip) PCM() []byte {
	buf := make([]byte, len(c.samples)*2)
	for i, s := range c.samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// WAV encodes the clip as a canonical PCM WAV file.
func (c *Clip) WAV() ([]byte, error) {
	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, c.sampleRate, 16, c.channels, 1)

	data := make([]int, len(c.samples))
	for i, s := range c.samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: c.channels, SampleRate: c.sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("wav write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav close: %w", err)
	}
	return ws.Bytes(), nil
}

// memWriteSeeker adapts a byte slice to io.WriteSeeker so the wav encoder
// can patch chunk sizes in place without a temp file.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (w *memWriteSeeker) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		if need > cap(w.buf) {
			grown := make([]byte, need, need*2)
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:need]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

func (w *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position %d", abs)
	}
	w.pos = int(abs)
	return abs, nil
}

func (w *memWriteSeeker) Bytes() []byte { return w.buf }
