package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv is read once at load time to configure the assistant
const APIKeyEnv = "DEEPSEEK_API_KEY"

type Config struct {
	LogLevel        string           `json:"log_level" yaml:"log_level"`
	SampleRate      int              `json:"sample_rate" yaml:"sample_rate"`
	Audio           AudioConfig      `json:"audio" yaml:"audio"`
	Segmenter       SegmenterConfig  `json:"segmenter" yaml:"segmenter"`
	Whisper         WhisperConfig    `json:"whisper" yaml:"whisper"`
	Assist          AssistConfig     `json:"assist" yaml:"assist"`
	Transcript      TranscriptConfig `json:"transcript" yaml:"transcript"`
	Hotkeys         HotkeyConfig     `json:"hotkeys" yaml:"hotkeys"`
	Metrics         MetricsConfig    `json:"metrics" yaml:"metrics"`
	Tray            bool             `json:"tray" yaml:"tray"`
	CopyToClipboard bool             `json:"copy_to_clipboard" yaml:"copy_to_clipboard"`

	path string
}

type AudioConfig struct {
	DeviceID *int `json:"device_id,omitempty" yaml:"device_id,omitempty"` // nil selects automatically
	BlockMs  int  `json:"block_ms" yaml:"block_ms"`
}

type SegmenterConfig struct {
	Threshold      float64 `json:"threshold" yaml:"threshold"`
	HangoverMs     int     `json:"hangover_ms" yaml:"hangover_ms"`
	MinUtteranceMs int     `json:"min_utterance_ms" yaml:"min_utterance_ms"`
	MaxUtteranceMs int     `json:"max_utterance_ms" yaml:"max_utterance_ms"` // 0 = unlimited
	PollMs         int     `json:"poll_ms" yaml:"poll_ms"`
}

type WhisperConfig struct {
	Model        string  `json:"model" yaml:"model"`       // "base", "small.en", etc.
	Language     string  `json:"language" yaml:"language"` // "auto", "it", etc.
	Temperature  float32 `json:"temperature" yaml:"temperature"`
	Threads      int     `json:"threads" yaml:"threads"`
	BeamSize     int     `json:"beam_size" yaml:"beam_size"`
	MinSegmentMs int     `json:"min_segment_ms" yaml:"min_segment_ms"`
	MinTextRunes int     `json:"min_text_runes" yaml:"min_text_runes"`
}

type AssistConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url"`
	Model      string `json:"model" yaml:"model"`
	APIKey     string `json:"-" yaml:"-"`
	TimeoutSec int    `json:"timeout_sec" yaml:"timeout_sec"`
}

type TranscriptConfig struct {
	Path     string `json:"path" yaml:"path"` // empty disables the log file
	MaxItems int    `json:"max_items" yaml:"max_items"`
}

type HotkeyConfig struct {
	Suggest string `json:"suggest" yaml:"suggest"`
	Summary string `json:"summary" yaml:"summary"`
	Clear   string `json:"clear" yaml:"clear"`
	Quit    string `json:"quit" yaml:"quit"`
}

type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"` // empty disables the /metrics listener
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		SampleRate: 16000,
		Audio: AudioConfig{
			BlockMs: 50,
		},
		Segmenter: SegmenterConfig{
			Threshold:      0.02,
			HangoverMs:     1000,
			MinUtteranceMs: 300,
			MaxUtteranceMs: 0,
			PollMs:         100,
		},
		Whisper: WhisperConfig{
			Model:        "base",
			Language:     "it",
			Temperature:  0.0,
			Threads:      0, // Auto-detect
			BeamSize:     3,
			MinSegmentMs: 200,
			MinTextRunes: 2,
		},
		Assist: AssistConfig{
			BaseURL:    "https://api.deepseek.com/v1",
			Model:      "deepseek-chat",
			TimeoutSec: 30,
		},
		Transcript: TranscriptConfig{
			Path:     "conversation_log.txt",
			MaxItems: 50,
		},
		Hotkeys: HotkeyConfig{
			Suggest: "Ctrl+Alt+S",
			Summary: "Ctrl+Alt+R",
			Clear:   "Ctrl+Alt+C",
			Quit:    "Ctrl+Alt+Q",
		},
		CopyToClipboard: true,
	}
}

// Load reads the config at path (the platform default when empty) over the
// defaults. A missing file is not an error. The API key comes from the
// environment or a .env file in the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = configPath()
	}

	cfg := Default()
	cfg.path = path

	if data, err := os.ReadFile(path); err == nil {
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Missing .env is fine, the variable may already be exported
	_ = godotenv.Load()
	cfg.Assist.APIKey = os.Getenv(APIKeyEnv)

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Save writes the config as JSON to the path it was loaded from
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = configPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns where the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Validate checks the values the capture pipeline depends on
func (c *Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.Audio.BlockMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.block_ms must be positive, got %d", c.Audio.BlockMs))
	}
	if c.Audio.DeviceID != nil && *c.Audio.DeviceID < 0 {
		errs = append(errs, fmt.Errorf("audio.device_id must not be negative, got %d", *c.Audio.DeviceID))
	}
	if c.Segmenter.Threshold < 0 {
		errs = append(errs, fmt.Errorf("segmenter.threshold must not be negative, got %v", c.Segmenter.Threshold))
	}
	if c.Segmenter.HangoverMs < 0 || c.Segmenter.MinUtteranceMs < 0 || c.Segmenter.MaxUtteranceMs < 0 {
		errs = append(errs, errors.New("segmenter durations must not be negative"))
	}
	if !KnownModel(c.Whisper.Model) {
		errs = append(errs, fmt.Errorf("unknown whisper model %q", c.Whisper.Model))
	}
	return errors.Join(errs...)
}

// Block returns the capture block duration
func (c *Config) Block() time.Duration {
	return time.Duration(c.Audio.BlockMs) * time.Millisecond
}

// Hangover returns the trailing silence that ends an utterance
func (s SegmenterConfig) Hangover() time.Duration {
	return time.Duration(s.HangoverMs) * time.Millisecond
}

func (s SegmenterConfig) MinUtterance() time.Duration {
	return time.Duration(s.MinUtteranceMs) * time.Millisecond
}

func (s SegmenterConfig) MaxUtterance() time.Duration {
	return time.Duration(s.MaxUtteranceMs) * time.Millisecond
}

func (s SegmenterConfig) Poll() time.Duration {
	return time.Duration(s.PollMs) * time.Millisecond
}

// Timeout returns the assistant request timeout
func (a AssistConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

var models = map[string]bool{
	"tiny": true, "tiny.en": true,
	"base": true, "base.en": true,
	"small": true, "small.en": true,
	"medium": true, "medium.en": true,
	"large-v3": true, "large-v3-turbo": true,
}

// KnownModel reports whether name is a downloadable whisper model
func KnownModel(name string) bool {
	return models[name]
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "whisper-meet", "config.json")
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "whisper-meet", "models")
}
