// Package config loads and persists murmur's settings. Values resolve in
// three layers: built-in defaults, then the YAML config file, then
// MURMUR_* environment variables. The Groq API key lives outside the
// config file, in a .env file next to it, so the YAML can be shared or
// committed without leaking credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"murmur/pkg/hotkeys"
)

const (
	appDirName = "murmur"
	fileName   = "config.yaml"
	envName    = ".env"

	apiKeyVar = "GROQ_API_KEY"
)

// Duration is a time.Duration that reads Go duration strings ("30s",
// "300ms") from YAML and environment values.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// STT selects the transcription backends and their tuning.
type STT struct {
	// Primary names the preferred backend: groq, google or local.
	// Whatever the choice, whisper.cpp remains the offline fallback.
	Primary           string     `yaml:"primary" env:"MURMUR_STT_PRIMARY"`
	GroqModel         string     `yaml:"groq_model" env:"MURMUR_STT_GROQ_MODEL"`
	GoogleCredentials string     `yaml:"google_credentials" env:"MURMUR_STT_GOOGLE_CREDENTIALS"`
	LocalModel        string     `yaml:"local_model" env:"MURMUR_STT_LOCAL_MODEL"`
	LocalBin          string     `yaml:"local_bin" env:"MURMUR_STT_LOCAL_BIN"`
	LocalVAD          bool       `yaml:"local_vad" env:"MURMUR_STT_LOCAL_VAD"`
	LocalVADModel     string     `yaml:"local_vad_model" env:"MURMUR_STT_LOCAL_VAD_MODEL"`
	Language          string     `yaml:"language" env:"MURMUR_STT_LANGUAGE"`
	RequestTimeout    Duration   `yaml:"request_timeout" env:"MURMUR_STT_REQUEST_TIMEOUT"`
	RetryBackoff      []Duration `yaml:"retry_backoff" env:"MURMUR_STT_RETRY_BACKOFF" envSeparator:","`
}

// Cleanup tunes the transcript post-processing pipeline.
type Cleanup struct {
	Enabled        bool     `yaml:"enabled" env:"MURMUR_CLEANUP_ENABLED"`
	LLMEnabled     bool     `yaml:"llm_enabled" env:"MURMUR_CLEANUP_LLM_ENABLED"`
	Model          string   `yaml:"model" env:"MURMUR_CLEANUP_MODEL"`
	RatioMin       float64  `yaml:"ratio_min" env:"MURMUR_CLEANUP_RATIO_MIN"`
	RatioMax       float64  `yaml:"ratio_max" env:"MURMUR_CLEANUP_RATIO_MAX"`
	RequestTimeout Duration `yaml:"request_timeout" env:"MURMUR_CLEANUP_REQUEST_TIMEOUT"`
}

// Audio configures microphone capture and sound feedback.
type Audio struct {
	SampleRate       int     `yaml:"sample_rate" env:"MURMUR_AUDIO_SAMPLE_RATE"`
	Channels         int     `yaml:"channels" env:"MURMUR_AUDIO_CHANNELS"`
	ChunkSize        int     `yaml:"chunk_size" env:"MURMUR_AUDIO_CHUNK_SIZE"`
	SoundFeedback    bool    `yaml:"sound_feedback" env:"MURMUR_AUDIO_SOUND_FEEDBACK"`
	PreBufferSeconds float64 `yaml:"pre_buffer_seconds" env:"MURMUR_AUDIO_PRE_BUFFER_SECONDS"`
}

// Hotkeys names the keys that drive recording. Names come from the
// global hook's keycode table, e.g. "ctrl", "f8", "space".
type Hotkeys struct {
	PushToTalk string `yaml:"push_to_talk" env:"MURMUR_HOTKEYS_PUSH_TO_TALK"`
	Toggle     string `yaml:"toggle" env:"MURMUR_HOTKEYS_TOGGLE"`
}

// TextInjection controls how transcripts reach the focused window.
type TextInjection struct {
	RestoreClipboard bool `yaml:"restore_clipboard" env:"MURMUR_RESTORE_CLIPBOARD"`
}

// Tray toggles the system tray icon.
type Tray struct {
	Enabled bool `yaml:"enabled" env:"MURMUR_TRAY_ENABLED"`
}

// Config is the full settings tree.
type Config struct {
	STT           STT           `yaml:"stt"`
	Cleanup       Cleanup       `yaml:"cleanup"`
	Audio         Audio         `yaml:"audio"`
	Hotkeys       Hotkeys       `yaml:"hotkeys"`
	TextInjection TextInjection `yaml:"text_injection"`
	Tray          Tray          `yaml:"tray"`
	LogLevel      string        `yaml:"log_level" env:"MURMUR_LOG_LEVEL"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	cfg := Config{
		STT: STT{
			Primary:        "groq",
			GroqModel:      "whisper-large-v3-turbo",
			LocalVAD:       true,
			Language:       "en",
			RequestTimeout: Duration(30 * time.Second),
			RetryBackoff:   []Duration{Duration(300 * time.Millisecond), Duration(600 * time.Millisecond)},
		},
		Cleanup: Cleanup{
			Enabled:        true,
			LLMEnabled:     true,
			Model:          "llama-3.1-8b-instant",
			RatioMin:       0.3,
			RatioMax:       2.0,
			RequestTimeout: Duration(10 * time.Second),
		},
		Audio: Audio{
			SampleRate:       16000,
			Channels:         1,
			ChunkSize:        1024,
			SoundFeedback:    true,
			PreBufferSeconds: 0.5,
		},
		Hotkeys: Hotkeys{
			PushToTalk: "ctrl",
			Toggle:     "f8",
		},
		TextInjection: TextInjection{RestoreClipboard: true},
		Tray:          Tray{Enabled: true},
		LogLevel:      "info",
	}
	if dir, err := Dir(); err == nil {
		cfg.STT.LocalModel = filepath.Join(dir, "models", "ggml-base.en.bin")
	}
	return cfg
}

// Load reads the config at path, layering the file and environment over
// the defaults. A missing file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config as YAML, creating the directory if needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings that would fail at runtime, so problems
// surface at startup instead of mid-dictation.
func (c Config) Validate() error {
	pttCode, err := hotkeys.LookupKey(c.Hotkeys.PushToTalk)
	if err != nil {
		return fmt.Errorf("hotkeys.push_to_talk: %w", err)
	}
	toggleCode, err := hotkeys.LookupKey(c.Hotkeys.Toggle)
	if err != nil {
		return fmt.Errorf("hotkeys.toggle: %w", err)
	}
	if pttCode == toggleCode {
		return fmt.Errorf("hotkeys.push_to_talk and hotkeys.toggle both map to %q", c.Hotkeys.PushToTalk)
	}
	switch c.STT.Primary {
	case "groq", "google", "local":
	default:
		return fmt.Errorf("stt.primary: unknown backend %q", c.STT.Primary)
	}
	if c.STT.Primary == "local" && c.STT.LocalModel == "" {
		return fmt.Errorf("stt.local_model: required when stt.primary is local")
	}
	if c.STT.RequestTimeout <= 0 {
		return fmt.Errorf("stt.request_timeout: must be positive, got %s", c.STT.RequestTimeout)
	}
	if c.Cleanup.RequestTimeout <= 0 {
		return fmt.Errorf("cleanup.request_timeout: must be positive, got %s", c.Cleanup.RequestTimeout)
	}
	if c.Cleanup.RatioMin <= 0 || c.Cleanup.RatioMax <= c.Cleanup.RatioMin {
		return fmt.Errorf("cleanup ratio bounds: need 0 < ratio_min < ratio_max, got %g and %g",
			c.Cleanup.RatioMin, c.Cleanup.RatioMax)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate: must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels: must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Audio.ChunkSize <= 0 {
		return fmt.Errorf("audio.chunk_size: must be positive, got %d", c.Audio.ChunkSize)
	}
	if c.Audio.PreBufferSeconds < 0 {
		return fmt.Errorf("audio.pre_buffer_seconds: must not be negative, got %g", c.Audio.PreBufferSeconds)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// Dir returns the per-user config directory, e.g. ~/.config/murmur.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// EnvFile returns the path of the .env file holding the API key.
func EnvFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, envName), nil
}

// LoadAPIKey resolves the Groq API key. The saved .env file wins over
// the process environment, so `murmur setup` takes effect even inside a
// shell that exports a stale key. Returns "" when no key is configured.
func LoadAPIKey(envFile string) string {
	if vars, err := godotenv.Read(envFile); err == nil {
		if key := strings.TrimSpace(vars[apiKeyVar]); key != "" {
			return key
		}
	}
	return strings.TrimSpace(os.Getenv(apiKeyVar))
}

// SaveAPIKey persists the Groq API key to the .env file, readable only
// by the owner.
func SaveAPIKey(envFile, key string) error {
	if err := os.MkdirAll(filepath.Dir(envFile), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := godotenv.Write(map[string]string{apiKeyVar: key}, envFile); err != nil {
		return fmt.Errorf("write %s: %w", envFile, err)
	}
	if err := os.Chmod(envFile, 0o600); err != nil {
		return fmt.Errorf("restrict %s: %w", envFile, err)
	}
	return nil
}
