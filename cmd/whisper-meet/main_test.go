package main

import (
	"testing"

	"github.com/petems/whisper-meet/internal/config"
)

func TestFlagsApply(t *testing.T) {
	cfg := config.Default()
	f := flags{
		model:       "small",
		language:    "en",
		sampleRate:  48000,
		audioDevice: 4,
		debug:       true,
		metricsAddr: ":9464",
	}
	set := map[string]bool{"model": true, "language": true, "sample-rate": true, "audio-device": true, "metrics-addr": true}

	f.apply(cfg, set)

	if cfg.Whisper.Model != "small" || cfg.Whisper.Language != "en" {
		t.Errorf("whisper flags not applied: %+v", cfg.Whisper)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("expected 48000, got %d", cfg.SampleRate)
	}
	if cfg.Audio.DeviceID == nil || *cfg.Audio.DeviceID != 4 {
		t.Errorf("expected device 4, got %v", cfg.Audio.DeviceID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug level, got %s", cfg.LogLevel)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("expected metrics addr, got %q", cfg.Metrics.Addr)
	}
}

func TestFlagsUnsetKeepConfig(t *testing.T) {
	cfg := config.Default()
	flags{audioDevice: -1}.apply(cfg, map[string]bool{})

	if cfg.Whisper.Model != "base" || cfg.SampleRate != 16000 {
		t.Errorf("unset flags changed config: %+v", cfg)
	}
	if cfg.Audio.DeviceID != nil {
		t.Error("unset device flag must keep automatic selection")
	}
}
