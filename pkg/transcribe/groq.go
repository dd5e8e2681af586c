package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"murmur/pkg/record"
)

const (
	DefaultGroqModel   = "whisper-large-v3-turbo"
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// Statuses worth retrying: rate limits and transient server errors.
// Anything else, notably 401, fails immediately so a bad key never burns
// the retry budget.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
}

// GroqOptions configures the Groq whisper backend.
type GroqOptions struct {
	APIKey     string
	Model      string
	Language   string
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int             // retries after the first attempt
	Backoff    []time.Duration // wait before retry n is Backoff[n-1], last entry repeats
}

func (o *GroqOptions) fill() {
	if o.Model == "" {
		o.Model = DefaultGroqModel
	}
	if o.BaseURL == "" {
		o.BaseURL = defaultGroqBaseURL
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 2
	}
	if len(o.Backoff) == 0 {
		o.Backoff = []time.Duration{300 * time.Millisecond, 600 * time.Millisecond}
	}
}

// Groq transcribes clips through Groq's OpenAI-compatible audio endpoint.
type Groq struct {
	client *openai.Client
	opts   GroqOptions
	log    zerolog.Logger
}

func NewGroq(opts GroqOptions, log zerolog.Logger) *Groq {
	opts.fill()
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURL
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &Groq{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		log:    log.With().Str("backend", "groq").Logger(),
	}
}

func (g *Groq) Name() string { return "groq" }

// Transcribe uploads the clip as WAV and returns the trimmed transcript.
// Transient failures are retried with the configured backoff; the clip
// reader is rebuilt per attempt since the client consumes it.
func (g *Groq) Transcribe(ctx context.Context, clip *record.Clip) (string, error) {
	wavData, err := clip.WAV()
	if err != nil {
		return "", fmt.Errorf("encode clip: %w", err)
	}
	req := openai.AudioRequest{
		Model:    g.opts.Model,
		FilePath: "clip.wav",
		Language: g.opts.Language,
	}

	var lastErr error
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := g.opts.Backoff[len(g.opts.Backoff)-1]
			if attempt-1 < len(g.opts.Backoff) {
				wait = g.opts.Backoff[attempt-1]
			}
			g.log.Warn().Err(lastErr).
				Int("attempt", attempt+1).
				Dur("backoff", wait).
				Msg("retrying transcription")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		req.Reader = bytes.NewReader(wavData)
		resp, err := g.client.CreateTranscription(ctx, req)
		if err == nil {
			return strings.TrimSpace(resp.Text), nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", fmt.Errorf("groq transcription: %w", err)
		}
	}
	return "", &RetryExhaustedError{Attempts: g.opts.MaxRetries + 1, Err: lastErr}
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus[apiErr.HTTPStatusCode]
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus[reqErr.HTTPStatusCode]
	}
	// Transport-level failure. Retry unless the caller gave up.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryExhaustedError reports that every attempt against the primary API
// failed. The router treats it like any other primary error and falls back.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("transcription failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }
