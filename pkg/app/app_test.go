package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"murmur/pkg/config"
)

// localCfg returns a config whose local backend can be constructed without
// whisper.cpp actually being installed.
func localCfg() config.Config {
	cfg := config.Default()
	cfg.STT.LocalBin = "/usr/bin/whisper-cli"
	cfg.STT.LocalModel = "/opt/models/ggml-base.en.bin"
	return cfg
}

func TestBuildBackendsGroqPrimary(t *testing.T) {
	cfg := localCfg()
	primary, fallback, closer, err := buildBackends(context.Background(), cfg, "gsk_test", http.DefaultClient, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildBackends: %v", err)
	}
	defer closer()

	if primary == nil || primary.Name() != "groq" {
		t.Errorf("primary = %v, want groq", primary)
	}
	if fallback == nil || fallback.Name() != "local" {
		t.Errorf("fallback = %v, want local", fallback)
	}
}

func TestBuildBackendsNoKeySkipsCloud(t *testing.T) {
	cfg := localCfg()
	primary, fallback, closer, err := buildBackends(context.Background(), cfg, "", http.DefaultClient, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildBackends: %v", err)
	}
	defer closer()

	if primary != nil {
		t.Errorf("primary = %v without an API key, want nil", primary.Name())
	}
	if fallback == nil || fallback.Name() != "local" {
		t.Errorf("fallback = %v, want local", fallback)
	}
}

func TestBuildBackendsLocalPrimary(t *testing.T) {
	cfg := localCfg()
	cfg.STT.Primary = "local"
	primary, fallback, closer, err := buildBackends(context.Background(), cfg, "gsk_test", http.DefaultClient, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildBackends: %v", err)
	}
	defer closer()

	if primary != nil {
		t.Errorf("primary = %v in local mode, want nil", primary.Name())
	}
	if fallback == nil || fallback.Name() != "local" {
		t.Errorf("fallback = %v, want local", fallback)
	}
}

func TestBuildBackendsFailsWithNoBackend(t *testing.T) {
	cfg := config.Default()
	cfg.STT.LocalBin = ""
	cfg.STT.LocalModel = ""
	_, _, closer, err := buildBackends(context.Background(), cfg, "", http.DefaultClient, zerolog.Nop())
	defer closer()
	if err == nil {
		t.Fatal("buildBackends succeeded with no key and no local install")
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(30 * time.Second)
	if c.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport is %T, want *http.Transport", c.Transport)
	}
	if tr.MaxIdleConns != 100 || tr.IdleConnTimeout != 90*time.Second {
		t.Errorf("transport pooling = (%d, %v), want (100, 90s)", tr.MaxIdleConns, tr.IdleConnTimeout)
	}
}

func TestBackoffSchedule(t *testing.T) {
	got := backoffSchedule([]config.Duration{
		config.Duration(300 * time.Millisecond),
		config.Duration(600 * time.Millisecond),
	})
	want := []time.Duration{300 * time.Millisecond, 600 * time.Millisecond}
	if len(got) != len(want) {
		t.Fatalf("schedule = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("schedule = %v, want %v", got, want)
		}
	}
}
