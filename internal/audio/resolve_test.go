package audio

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func intPtr(v int) *int { return &v }

func TestResolve(t *testing.T) {
	devices := []DeviceInfo{
		{Index: 0, Name: "HDA Intel PCH: HDMI 0", MaxOutputChannels: 8},
		{Index: 1, Name: "Built-in Microphone", MaxInputChannels: 2},
		{Index: 2, Name: "Monitor of Built-in Audio", MaxInputChannels: 2},
		{Index: 3, Name: "USB Headset", MaxInputChannels: 1},
		{Index: 4, Name: "Loopback Output", MaxOutputChannels: 2},
	}

	tests := []struct {
		name         string
		requested    *int
		devices      []DeviceInfo
		defaultIndex int
		want         int
	}{
		{"requested input wins", intPtr(3), devices, 1, 3},
		{"requested output-only falls through to monitor", intPtr(0), devices, 1, 2},
		{"requested out of range falls through", intPtr(42), devices, 1, 2},
		{"no request uses monitor", nil, devices, 1, 2},
		{"output-only loopback is skipped", nil, []DeviceInfo{devices[0], devices[4], devices[3]}, -1, 3},
		{"default when no loopback", intPtr(0), []DeviceInfo{devices[0], devices[1], devices[3]}, 3, 3},
		{"first input when no default", intPtr(0), []DeviceInfo{devices[0], devices[1], devices[3]}, -1, 1},
		{"stale default index falls through", nil, []DeviceInfo{devices[0], devices[3]}, 9, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.requested, tt.devices, tt.defaultIndex, zerolog.Nop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Index != tt.want {
				t.Errorf("expected device %d, got %d (%s)", tt.want, got.Index, got.Name)
			}
		})
	}
}

func TestResolveNoDevice(t *testing.T) {
	devices := []DeviceInfo{
		{Index: 0, Name: "Speakers", MaxOutputChannels: 2},
	}

	_, err := Resolve(intPtr(0), devices, -1, zerolog.Nop())
	if !errors.Is(err, ErrNoDeviceFound) {
		t.Fatalf("expected ErrNoDeviceFound, got %v", err)
	}

	_, err = Resolve(nil, nil, -1, zerolog.Nop())
	if !errors.Is(err, ErrNoDeviceFound) {
		t.Fatalf("expected ErrNoDeviceFound for empty list, got %v", err)
	}
}

func TestIsLoopback(t *testing.T) {
	for _, name := range []string{"Monitor of Speakers", "BlackHole LOOPBACK", "Virtual Cable", "alsa_output.pci"} {
		if !IsLoopback(name) {
			t.Errorf("expected %q to be treated as loopback", name)
		}
	}
	if IsLoopback("USB Microphone") {
		t.Error("USB Microphone should not be treated as loopback")
	}
}
