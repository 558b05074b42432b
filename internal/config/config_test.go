package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SampleRate != 16000 {
		t.Errorf("expected 16000, got %d", cfg.SampleRate)
	}
	if cfg.Segmenter.Hangover() != time.Second || cfg.Segmenter.MinUtterance() != 300*time.Millisecond {
		t.Errorf("unexpected segmenter defaults: %+v", cfg.Segmenter)
	}
	if cfg.Block() != 50*time.Millisecond {
		t.Errorf("expected 50ms block, got %v", cfg.Block())
	}
	if cfg.Whisper.Model != "base" || cfg.Whisper.Language != "it" || cfg.Whisper.BeamSize != 3 {
		t.Errorf("unexpected whisper defaults: %+v", cfg.Whisper)
	}
	if cfg.Audio.DeviceID != nil {
		t.Error("expected automatic device selection by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"sample_rate": 48000, "audio": {"device_id": 3}, "segmenter": {"threshold": 0.05}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("expected 48000, got %d", cfg.SampleRate)
	}
	if cfg.Audio.DeviceID == nil || *cfg.Audio.DeviceID != 3 {
		t.Errorf("expected device 3, got %v", cfg.Audio.DeviceID)
	}
	if cfg.Segmenter.Threshold != 0.05 {
		t.Errorf("expected threshold 0.05, got %v", cfg.Segmenter.Threshold)
	}
	// Untouched fields keep their defaults
	if cfg.Segmenter.HangoverMs != 1000 {
		t.Errorf("expected default hangover, got %d", cfg.Segmenter.HangoverMs)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "whisper:\n  model: small.en\n  language: en\nsegmenter:\n  max_utterance_ms: 15000\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Whisper.Model != "small.en" || cfg.Whisper.Language != "en" {
		t.Errorf("unexpected whisper config: %+v", cfg.Whisper)
	}
	if cfg.Segmenter.MaxUtterance() != 15*time.Second {
		t.Errorf("expected 15s max, got %v", cfg.Segmenter.MaxUtterance())
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-test")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Assist.APIKey != "sk-test" {
		t.Errorf("expected key from environment, got %q", cfg.Assist.APIKey)
	}
}

func TestSaveOmitsAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-secret")
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Fatal("API key must not be written to disk")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero block", func(c *Config) { c.Audio.BlockMs = 0 }},
		{"negative device", func(c *Config) { d := -1; c.Audio.DeviceID = &d }},
		{"negative threshold", func(c *Config) { c.Segmenter.Threshold = -0.1 }},
		{"negative hangover", func(c *Config) { c.Segmenter.HangoverMs = -1 }},
		{"unknown model", func(c *Config) { c.Whisper.Model = "huge" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
