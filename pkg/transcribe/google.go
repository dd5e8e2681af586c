package transcribe

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"murmur/pkg/record"
)

// GoogleOptions configures the Cloud Speech-to-Text backend. With no
// credentials file the client falls back to application default credentials.
type GoogleOptions struct {
	CredentialsFile string
	Language        string
}

// Google transcribes clips through Cloud Speech-to-Text synchronous
// recognition. Clips are short enough (cap of ~1 minute) for Recognize.
type Google struct {
	client *speech.Client
	opts   GoogleOptions
	log    zerolog.Logger
}

func NewGoogle(ctx context.Context, opts GoogleOptions, log zerolog.Logger) (*Google, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &Google{
		client: client,
		opts:   opts,
		log:    log.With().Str("backend", "google").Logger(),
	}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) Transcribe(ctx context.Context, clip *record.Clip) (string, error) {
	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(clip.SampleRate()),
			AudioChannelCount: int32(clip.Channels()),
			LanguageCode:      googleLanguage(g.opts.Language),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.PCM()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}
	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

func (g *Google) Close() error { return g.client.Close() }

// googleLanguage maps short codes onto the BCP-47 tags the API expects.
func googleLanguage(lang string) string {
	switch strings.ToLower(lang) {
	case "", "en":
		return "en-US"
	default:
		return lang
	}
}
