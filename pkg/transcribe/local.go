package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"murmur/pkg/record"
)

// Binary names whisper.cpp ships under; whisper-cli is the Homebrew name.
var whisperBinaries = []string{"whisper-cli", "whisper-cpp", "whisper"}

// LocalOptions configures the offline whisper.cpp backend.
type LocalOptions struct {
	Bin      string // explicit binary path, otherwise resolved from PATH
	Model    string // ggml model file
	Language string
	VAD      bool   // skip silence before decoding
	VADModel string // model for --vad, required by some builds
}

// Local shells out to whisper.cpp. It needs no network or credentials, which
// is what makes it the fallback of last resort.
type Local struct {
	opts LocalOptions
	log  zerolog.Logger
}

func NewLocal(opts LocalOptions, log zerolog.Logger) (*Local, error) {
	if opts.Bin == "" {
		opts.Bin = findWhisperBinary()
	}
	if opts.Bin == "" {
		return nil, fmt.Errorf("whisper.cpp binary not found in PATH (tried %s)", strings.Join(whisperBinaries, ", "))
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("whisper model path not set")
	}
	return &Local{opts: opts, log: log.With().Str("backend", "local").Logger()}, nil
}

func findWhisperBinary() string {
	for _, name := range whisperBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func (l *Local) Name() string { return "local" }

func (l *Local) Transcribe(ctx context.Context, clip *record.Clip) (string, error) {
	wavData, err := clip.WAV()
	if err != nil {
		return "", fmt.Errorf("encode clip: %w", err)
	}
	wavPath := filepath.Join(os.TempDir(), fmt.Sprintf("murmur_%s.wav", uuid.NewString()))
	if err := os.WriteFile(wavPath, wavData, 0o600); err != nil {
		return "", fmt.Errorf("write temp wav: %w", err)
	}
	jsonPath := wavPath + ".json"
	defer os.Remove(wavPath)
	defer os.Remove(jsonPath)

	cmd := exec.CommandContext(ctx, l.opts.Bin, l.buildArgs(wavPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	l.log.Debug().Str("bin", l.opts.Bin).Msg("running whisper.cpp")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper.cpp: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// -oj writes a sidecar next to the input; some builds print the JSON on
	// stdout instead, and very old ones only print plain text.
	if data, err := os.ReadFile(jsonPath); err == nil {
		if text, ok := parseWhisperJSON(data); ok {
			return text, nil
		}
	}
	if text, ok := parseWhisperJSON(stdout.Bytes()); ok {
		return text, nil
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (l *Local) buildArgs(wavPath string) []string {
	args := []string{
		"-m", l.opts.Model,
		"-f", wavPath,
		"-oj",
		"--no-prints",
	}
	if l.opts.Language != "" {
		args = append(args, "-l", l.opts.Language)
	}
	// --vad aborts the CLI when no VAD model is given, so the two flags
	// travel together.
	if l.opts.VAD && l.opts.VADModel != "" {
		args = append(args, "--vad", "--vad-model", l.opts.VADModel)
	}
	return args
}

type whisperOutput struct {
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperJSON(data []byte) (string, bool) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil || len(out.Transcription) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, seg := range out.Transcription {
		b.WriteString(seg.Text)
	}
	return strings.TrimSpace(b.String()), true
}
