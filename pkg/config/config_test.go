package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STT.Primary != "groq" || cfg.STT.GroqModel != "whisper-large-v3-turbo" {
		t.Errorf("stt defaults = %q/%q", cfg.STT.Primary, cfg.STT.GroqModel)
	}
	if cfg.Cleanup.Model != "llama-3.1-8b-instant" || !cfg.Cleanup.Enabled {
		t.Errorf("cleanup defaults = %q/%v", cfg.Cleanup.Model, cfg.Cleanup.Enabled)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Errorf("audio defaults = %d/%d", cfg.Audio.SampleRate, cfg.Audio.Channels)
	}
	if cfg.Hotkeys.PushToTalk != "ctrl" || cfg.Hotkeys.Toggle != "f8" {
		t.Errorf("hotkey defaults = %q/%q", cfg.Hotkeys.PushToTalk, cfg.Hotkeys.Toggle)
	}
	if cfg.STT.RequestTimeout.Std() != 30*time.Second {
		t.Errorf("stt timeout = %s, want 30s", cfg.STT.RequestTimeout)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := writeConfig(t, `
stt:
  primary: local
  local_model: /models/ggml-tiny.bin
  request_timeout: 45s
  retry_backoff: [100ms, 200ms, 400ms]
cleanup:
  llm_enabled: false
hotkeys:
  toggle: f9
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STT.Primary != "local" || cfg.STT.LocalModel != "/models/ggml-tiny.bin" {
		t.Errorf("stt = %q/%q", cfg.STT.Primary, cfg.STT.LocalModel)
	}
	if cfg.STT.RequestTimeout.Std() != 45*time.Second {
		t.Errorf("request_timeout = %s, want 45s", cfg.STT.RequestTimeout)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(cfg.STT.RetryBackoff) != len(want) {
		t.Fatalf("retry_backoff has %d entries, want %d", len(cfg.STT.RetryBackoff), len(want))
	}
	for i, d := range cfg.STT.RetryBackoff {
		if d.Std() != want[i] {
			t.Errorf("retry_backoff[%d] = %s, want %s", i, d, want[i])
		}
	}
	if cfg.Cleanup.LLMEnabled {
		t.Error("llm_enabled not overridden to false")
	}
	if !cfg.Cleanup.Enabled {
		t.Error("cleanup.enabled default lost during overlay")
	}
	if cfg.Hotkeys.Toggle != "f9" || cfg.Hotkeys.PushToTalk != "ctrl" {
		t.Errorf("hotkeys = %q/%q", cfg.Hotkeys.PushToTalk, cfg.Hotkeys.Toggle)
	}
	if cfg.STT.GroqModel != "whisper-large-v3-turbo" {
		t.Errorf("groq_model default lost, got %q", cfg.STT.GroqModel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
stt:
  groq_model: from-file
`)
	t.Setenv("MURMUR_STT_GROQ_MODEL", "from-env")
	t.Setenv("MURMUR_CLEANUP_RATIO_MAX", "3.5")
	t.Setenv("MURMUR_STT_REQUEST_TIMEOUT", "5s")
	t.Setenv("MURMUR_STT_RETRY_BACKOFF", "50ms,75ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STT.GroqModel != "from-env" {
		t.Errorf("groq_model = %q, want env value", cfg.STT.GroqModel)
	}
	if cfg.Cleanup.RatioMax != 3.5 {
		t.Errorf("ratio_max = %g, want 3.5", cfg.Cleanup.RatioMax)
	}
	if cfg.STT.RequestTimeout.Std() != 5*time.Second {
		t.Errorf("request_timeout = %s, want 5s", cfg.STT.RequestTimeout)
	}
	if len(cfg.STT.RetryBackoff) != 2 || cfg.STT.RetryBackoff[1].Std() != 75*time.Millisecond {
		t.Errorf("retry_backoff = %v, want [50ms 75ms]", cfg.STT.RetryBackoff)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := writeConfig(t, "stt: [not: a: mapping\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("malformed yaml: err = %v", err)
	}

	path = writeConfig(t, "hotkeys:\n  push_to_talk: notakey\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "push_to_talk") {
		t.Errorf("invalid hotkey: err = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown primary", func(c *Config) { c.STT.Primary = "azure" }, "stt.primary"},
		{"bad ptt key", func(c *Config) { c.Hotkeys.PushToTalk = "notakey" }, "hotkeys.push_to_talk"},
		{"bad toggle key", func(c *Config) { c.Hotkeys.Toggle = "notakey" }, "hotkeys.toggle"},
		{"same keys", func(c *Config) { c.Hotkeys.PushToTalk = "f8" }, "both map to"},
		{"local without model", func(c *Config) { c.STT.Primary = "local"; c.STT.LocalModel = "" }, "stt.local_model"},
		{"zero stt timeout", func(c *Config) { c.STT.RequestTimeout = 0 }, "stt.request_timeout"},
		{"zero cleanup timeout", func(c *Config) { c.Cleanup.RequestTimeout = 0 }, "cleanup.request_timeout"},
		{"inverted ratios", func(c *Config) { c.Cleanup.RatioMin = 2; c.Cleanup.RatioMax = 1 }, "ratio"},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, "audio.sample_rate"},
		{"three channels", func(c *Config) { c.Audio.Channels = 3 }, "audio.channels"},
		{"zero chunk", func(c *Config) { c.Audio.ChunkSize = 0 }, "audio.chunk_size"},
		{"negative pre-buffer", func(c *Config) { c.Audio.PreBufferSeconds = -1 }, "pre_buffer"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	cfg := Default()
	cfg.Hotkeys.Toggle = "f9"
	cfg.STT.RequestTimeout = Duration(42 * time.Second)
	cfg.Audio.SoundFeedback = false

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Hotkeys.Toggle != "f9" {
		t.Errorf("toggle = %q, want f9", got.Hotkeys.Toggle)
	}
	if got.STT.RequestTimeout.Std() != 42*time.Second {
		t.Errorf("request_timeout = %s, want 42s", got.STT.RequestTimeout)
	}
	if got.Audio.SoundFeedback {
		t.Error("sound_feedback = true, want false")
	}
	if got.Cleanup.Model != cfg.Cleanup.Model {
		t.Errorf("cleanup model = %q, want %q", got.Cleanup.Model, cfg.Cleanup.Model)
	}
}

func TestLoadAPIKeyPrefersEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := SaveAPIKey(envFile, "gsk_from_file"); err != nil {
		t.Fatalf("SaveAPIKey: %v", err)
	}
	t.Setenv("GROQ_API_KEY", "gsk_from_env")

	if got := LoadAPIKey(envFile); got != "gsk_from_file" {
		t.Errorf("LoadAPIKey = %q, want the .env value", got)
	}
	missing := filepath.Join(t.TempDir(), ".env")
	if got := LoadAPIKey(missing); got != "gsk_from_env" {
		t.Errorf("LoadAPIKey without file = %q, want process env value", got)
	}
	t.Setenv("GROQ_API_KEY", "")
	if got := LoadAPIKey(missing); got != "" {
		t.Errorf("LoadAPIKey with nothing set = %q, want empty", got)
	}
}

func TestSaveAPIKeyRestrictsPermissions(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := SaveAPIKey(envFile, "gsk_secret"); err != nil {
		t.Fatalf("SaveAPIKey: %v", err)
	}
	data, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatalf("read .env: %v", err)
	}
	if !strings.Contains(string(data), "GROQ_API_KEY") {
		t.Errorf(".env contents = %q, missing key", data)
	}
	if runtime.GOOS != "windows" {
		fi, err := os.Stat(envFile)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := fi.Mode().Perm(); perm != 0o600 {
			t.Errorf(".env mode = %o, want 600", perm)
		}
	}
}

func TestDurationParsing(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1.5s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Std() != 1500*time.Millisecond {
		t.Errorf("parsed = %s, want 1.5s", d)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText accepted garbage")
	}
}
