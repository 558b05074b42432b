package audio

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintDevices(t *testing.T) {
	devices := []DeviceInfo{
		{Index: 0, Name: "HDMI Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{Index: 1, Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{Index: 2, Name: "Monitor of Speakers", MaxInputChannels: 2, DefaultSampleRate: 48000},
	}

	var buf bytes.Buffer
	if err := PrintDevices(&buf, devices, 1); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "INDEX") {
		t.Errorf("missing header: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "output-only") {
		t.Errorf("expected output-only note: %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "default") || !strings.Contains(lines[2], "44100") {
		t.Errorf("expected default input row: %q", lines[2])
	}
	if !strings.HasSuffix(lines[3], "loopback") {
		t.Errorf("expected loopback note: %q", lines[3])
	}
}
