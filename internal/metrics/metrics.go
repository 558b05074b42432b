// Package metrics holds the OpenTelemetry instruments for capture,
// segmentation and the downstream collaborators.
//
// Instruments are created against an explicit [metric.MeterProvider]; use
// [InitProvider] in main to export them to Prometheus, or
// [noop.NewMeterProvider] when metrics are not wanted.
package metrics

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/petems/whisper-meet"

// Metrics holds all instruments. The underlying OTel types are safe for
// concurrent use, and the attribute-free counters are cheap enough for the
// capture callback.
type Metrics struct {
	// Blocks counts hardware callback blocks processed.
	Blocks metric.Int64Counter
	// SpeechBlocks counts blocks classified as speech.
	SpeechBlocks metric.Int64Counter
	// InputOverflows counts device input overflow notifications.
	InputOverflows metric.Int64Counter

	// Utterances counts completed utterances, with attribute reason=silence|max|flush.
	Utterances metric.Int64Counter
	// Discarded counts spans dropped for being shorter than the minimum.
	Discarded metric.Int64Counter
	// HandoffDrops counts utterances evicted because the consumer fell behind.
	HandoffDrops metric.Int64Counter
	// UtteranceDuration records emitted utterance lengths in seconds.
	UtteranceDuration metric.Float64Histogram

	// TranscribeDuration records transcription latency in seconds.
	TranscribeDuration metric.Float64Histogram
	// AssistRequests counts assistant calls, with attributes kind and status.
	AssistRequests metric.Int64Counter
}

var (
	latencyBuckets   = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	utteranceBuckets = []float64{0.3, 0.5, 1, 2, 5, 10, 20, 30, 60}
)

// Precomputed attribute options for the capture path.
var (
	ReasonSilence = metric.WithAttributeSet(attribute.NewSet(attribute.String("reason", "silence")))
	ReasonMax     = metric.WithAttributeSet(attribute.NewSet(attribute.String("reason", "max")))
	ReasonFlush   = metric.WithAttributeSet(attribute.NewSet(attribute.String("reason", "flush")))
)

// New creates all instruments from mp
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Blocks, err = m.Int64Counter("whisper_meet.capture.blocks",
		metric.WithDescription("Audio blocks delivered by the capture callback."),
	); err != nil {
		return nil, err
	}
	if met.SpeechBlocks, err = m.Int64Counter("whisper_meet.capture.speech_blocks",
		metric.WithDescription("Audio blocks classified as speech."),
	); err != nil {
		return nil, err
	}
	if met.InputOverflows, err = m.Int64Counter("whisper_meet.capture.input_overflows",
		metric.WithDescription("Input overflow notifications from the audio device."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("whisper_meet.segment.utterances",
		metric.WithDescription("Completed utterances handed to the consumer."),
	); err != nil {
		return nil, err
	}
	if met.Discarded, err = m.Int64Counter("whisper_meet.segment.discarded",
		metric.WithDescription("Speech spans discarded as too short."),
	); err != nil {
		return nil, err
	}
	if met.HandoffDrops, err = m.Int64Counter("whisper_meet.handoff.dropped",
		metric.WithDescription("Utterances evicted before the consumer picked them up."),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("whisper_meet.segment.duration",
		metric.WithDescription("Length of emitted utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("whisper_meet.transcribe.duration",
		metric.WithDescription("Latency of utterance transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssistRequests, err = m.Int64Counter("whisper_meet.assist.requests",
		metric.WithDescription("Assistant API calls."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// AssistAttrs tags one assistant call by kind and outcome
func AssistAttrs(kind string, ok bool) metric.MeasurementOption {
	status := "ok"
	if !ok {
		status = "error"
	}
	return metric.WithAttributes(attribute.String("kind", kind), attribute.String("status", status))
}
