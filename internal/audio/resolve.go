package audio

import (
	"strings"

	"github.com/rs/zerolog"
)

// loopbackPatterns identify monitor/loopback style inputs that carry system audio
var loopbackPatterns = []string{"monitor", "loopback", "virtual", "alsa"}

// IsLoopback reports whether a device name looks like a monitor or loopback source
func IsLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range loopbackPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Resolve picks the capture device. First match wins:
// requested index, loopback-named input, OS default input, first input.
// defaultIndex < 0 means the OS reports no default input.
func Resolve(requested *int, devices []DeviceInfo, defaultIndex int, log zerolog.Logger) (DeviceInfo, error) {
	if requested != nil {
		id := *requested
		if d, ok := byIndex(devices, id); ok {
			if d.IsInput() {
				log.Info().Int("device", id).Str("name", d.Name).Msg("Using requested audio device")
				return d, nil
			}
			log.Warn().Int("device", id).Str("name", d.Name).Msg("Requested audio device has no input channels")
		} else {
			log.Warn().Int("device", id).Msg("Requested audio device does not exist")
		}
	}

	for _, d := range devices {
		if d.IsInput() && IsLoopback(d.Name) {
			log.Info().Int("device", d.Index).Str("name", d.Name).Msg("Using loopback audio device")
			return d, nil
		}
	}

	if defaultIndex >= 0 {
		if d, ok := byIndex(devices, defaultIndex); ok {
			log.Info().Int("device", d.Index).Str("name", d.Name).Msg("Using default audio device")
			return d, nil
		}
	}

	for _, d := range devices {
		if d.IsInput() {
			log.Info().Int("device", d.Index).Str("name", d.Name).Msg("Using first available input device")
			return d, nil
		}
	}

	return DeviceInfo{}, ErrNoDeviceFound
}

func byIndex(devices []DeviceInfo, index int) (DeviceInfo, bool) {
	for _, d := range devices {
		if d.Index == index {
			return d, true
		}
	}
	return DeviceInfo{}, false
}
