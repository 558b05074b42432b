package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := New(mp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNew_Noop(t *testing.T) {
	m, err := New(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Blocks.Add(context.Background(), 1)
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Blocks.Add(ctx, 3)
	m.HandoffDrops.Add(ctx, 1)
	m.Utterances.Add(ctx, 1, ReasonSilence)
	m.Utterances.Add(ctx, 1, ReasonFlush)
	m.Utterances.Add(ctx, 1, ReasonSilence)

	rm := collect(t, reader)

	blocks := findMetric(rm, "whisper_meet.capture.blocks")
	if blocks == nil {
		t.Fatal("blocks metric not found")
	}
	sum, ok := blocks.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", blocks.Data)
	}
	if sum.DataPoints[0].Value != 3 {
		t.Errorf("expected 3 blocks, got %d", sum.DataPoints[0].Value)
	}

	utt := findMetric(rm, "whisper_meet.segment.utterances")
	if utt == nil {
		t.Fatal("utterances metric not found")
	}
	byReason := map[string]int64{}
	for _, dp := range utt.Data.(metricdata.Sum[int64]).DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("reason"))
		byReason[v.AsString()] = dp.Value
	}
	if byReason["silence"] != 2 || byReason["flush"] != 1 {
		t.Errorf("unexpected per-reason counts: %v", byReason)
	}
}

func TestHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.UtteranceDuration.Record(context.Background(), 1.25)

	rm := collect(t, reader)
	h := findMetric(rm, "whisper_meet.segment.duration")
	if h == nil {
		t.Fatal("duration metric not found")
	}
	hist, ok := h.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", h.Data)
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("expected 1 observation, got %d", hist.DataPoints[0].Count)
	}
}
