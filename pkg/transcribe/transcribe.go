// Package transcribe turns recorded clips into text. A Router fronts a
// primary speech API and escalates to a local fallback backend when the
// primary is unavailable or misconfigured.
package transcribe

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"murmur/pkg/record"
)

// Backend converts one clip to a transcript.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, clip *record.Clip) (string, error)
}

// Source reports which backend produced a transcript. Downstream stages use
// it to pick policies, e.g. LLM cleanup only runs on primary transcripts.
type Source int

const (
	SourcePrimary Source = iota
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Router tries the primary backend and falls back on any error. A nil
// primary routes straight to the fallback, which covers the unconfigured
// case without a separate code path. A nil fallback means local
// transcription is unavailable on this machine; routing then fails once
// the primary does.
type Router struct {
	primary  Backend
	fallback Backend
	log      zerolog.Logger
}

func NewRouter(primary, fallback Backend, log zerolog.Logger) *Router {
	return &Router{primary: primary, fallback: fallback, log: log}
}

// Route transcribes the clip. Primary failures are absorbed and logged;
// fallback failures end the session.
func (r *Router) Route(ctx context.Context, clip *record.Clip) (string, Source, error) {
	var primaryErr error
	if r.primary != nil {
		text, err := r.primary.Transcribe(ctx, clip)
		if err == nil {
			return text, SourcePrimary, nil
		}
		primaryErr = err
		r.log.Warn().Err(err).
			Str("backend", r.primary.Name()).
			Msg("primary transcription failed, using fallback")
	}
	if r.fallback == nil {
		if primaryErr != nil {
			return "", SourceFallback, fmt.Errorf("no fallback backend after primary failure: %w", primaryErr)
		}
		return "", SourceFallback, fmt.Errorf("no transcription backend configured")
	}
	text, err := r.fallback.Transcribe(ctx, clip)
	if err != nil {
		return "", SourceFallback, fmt.Errorf("fallback transcription: %w", err)
	}
	return text, SourceFallback, nil
}
