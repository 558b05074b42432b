package audio

import (
	"errors"
	"time"
)

// ErrNoDeviceFound is returned when no capture-capable device can be selected.
var ErrNoDeviceFound = errors.New("no audio input device found")

// DeviceInfo describes one device reported by the device layer
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// IsInput reports whether the device can capture audio
func (d DeviceInfo) IsInput() bool {
	return d.MaxInputChannels > 0
}

// StatusFlags are per-callback notifications raised by the hardware layer
type StatusFlags uint

const (
	InputUnderflow StatusFlags = 1 << iota
	InputOverflow
)

// Has reports whether all bits of f are set
func (s StatusFlags) Has(f StatusFlags) bool {
	return s&f == f
}

// Callback receives one block of interleaved float32 samples per hardware period.
// The samples slice is only valid for the duration of the call.
type Callback func(samples []float32, timestamp time.Duration, flags StatusFlags)

// StreamParams configures an input stream
type StreamParams struct {
	Device         DeviceInfo
	Channels       int
	SampleRate     int
	FramesPerBlock int
}

// Stream is an opened hardware input stream
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Driver is the device layer: enumeration plus callback streams
type Driver interface {
	Devices() ([]DeviceInfo, error)
	// DefaultInput returns the index of the OS default input device
	DefaultInput() (int, bool)
	Open(params StreamParams, cb Callback) (Stream, error)
	Close() error
}

// Block is one hardware callback worth of samples.
// Timestamp is on the device (or frame) clock of the stream that produced it.
type Block struct {
	Samples   []float32
	Channels  int
	Timestamp time.Duration
}

// Frames returns the number of frames in the block
func (b Block) Frames() int {
	if b.Channels <= 1 {
		return len(b.Samples)
	}
	return len(b.Samples) / b.Channels
}

// Utterance is a completed, contiguous span of mono speech samples
type Utterance struct {
	Seq        uint64
	Samples    []float32
	SampleRate int
	Start      time.Duration
	// Voiced spans from the first block to the end of the last speech block
	Voiced  time.Duration
	Flushed bool
}

// Duration returns the length of the utterance
func (u Utterance) Duration() time.Duration {
	return SamplesDuration(len(u.Samples), u.SampleRate)
}

// SamplesDuration converts a sample count at rate into a duration
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}
