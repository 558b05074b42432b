package audio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

type portAudioDriver struct{}

// NewPortAudio initializes PortAudio and returns a Driver backed by it
func NewPortAudio() (Driver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioDriver{}, nil
}

func (p *portAudioDriver) Devices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]DeviceInfo, 0, len(devices))
	for i, d := range devices {
		result = append(result, DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return result, nil
}

func (p *portAudioDriver) DefaultInput() (int, bool) {
	def, err := portaudio.DefaultInputDevice()
	if err != nil || def == nil {
		return -1, false
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return -1, false
	}
	for i, d := range devices {
		if d == def {
			return i, true
		}
	}
	return -1, false
}

func (p *portAudioDriver) Open(params StreamParams, cb Callback) (Stream, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if params.Device.Index < 0 || params.Device.Index >= len(devices) {
		return nil, fmt.Errorf("device not found: %d", params.Device.Index)
	}
	device := devices[params.Device.Index]

	channels := params.Channels
	if channels <= 0 {
		channels = 1
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(params.SampleRate),
		FramesPerBuffer: params.FramesPerBlock,
	}, func(in []float32, info portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		cb(in, info.InputBufferAdcTime, convertFlags(flags))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	return &portAudioStream{stream: stream}, nil
}

func (p *portAudioDriver) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Start() error { return s.stream.Start() }

// Stop waits for the in-flight callback to return before stopping
func (s *portAudioStream) Stop() error { return s.stream.Stop() }

func (s *portAudioStream) Close() error { return s.stream.Close() }

func convertFlags(f portaudio.StreamCallbackFlags) StatusFlags {
	var out StatusFlags
	if f&portaudio.InputUnderflow != 0 {
		out |= InputUnderflow
	}
	if f&portaudio.InputOverflow != 0 {
		out |= InputOverflow
	}
	return out
}

// BlockFrames returns the number of frames in a block of the given duration
func BlockFrames(sampleRate int, block time.Duration) int {
	return int(int64(sampleRate) * int64(block) / int64(time.Second))
}
