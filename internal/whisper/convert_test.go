package whisper

import (
	"math"
	"testing"
	"time"
)

func TestPrepareNormalisesPeak(t *testing.T) {
	in := []float32{0.1, -0.25, 0.05}
	out := Prepare(in)

	if out[1] != -1 {
		t.Errorf("expected peak scaled to -1, got %v", out[1])
	}
	if math.Abs(float64(out[0]-0.4)) > 1e-6 {
		t.Errorf("expected 0.4, got %v", out[0])
	}
	if in[1] != -0.25 {
		t.Error("Prepare must not modify its input")
	}
}

func TestPrepareSilence(t *testing.T) {
	out := Prepare(make([]float32, 4))
	for _, s := range out {
		if s != 0 {
			t.Fatalf("expected silence to stay silent, got %v", out)
		}
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name    string
		src     int
		dst     int
		n       int
		wantLen int
	}{
		{"downsample 48k", 48000, 16000, 4800, 1600},
		{"upsample 8k", 8000, 16000, 800, 1600},
		{"same rate", 16000, 16000, 1600, 1600},
		{"invalid rate", 0, 16000, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, tt.n)
			for i := range in {
				in[i] = 0.5
			}
			out := Resample(in, tt.src, tt.dst)
			if len(out) != tt.wantLen {
				t.Fatalf("expected %d samples, got %d", tt.wantLen, len(out))
			}
			for _, s := range out {
				if math.Abs(float64(s-0.5)) > 1e-6 {
					t.Fatalf("constant signal changed level: %v", s)
				}
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	out := Resample([]float32{0, 1}, 8000, 16000)
	want := []float32{0, 0.5, 1, 1}
	if len(out) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestFilter(t *testing.T) {
	ms := time.Millisecond
	segments := []Segment{
		{Start: 0, End: 1000 * ms, Text: " ciao a tutti "},
		{Start: 1000 * ms, End: 1100 * ms, Text: "breve"},
		{Start: 1100 * ms, End: 2000 * ms, Text: " a "},
		{Start: 2000 * ms, End: 2200 * ms, Text: "limite"},
		{Start: 2200 * ms, End: 3000 * ms, Text: "è"},
		{Start: 3000 * ms, End: 4000 * ms, Text: "sì"},
	}

	got := Filter(segments, 200*ms, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(got), got)
	}
	if got[0].Text != "ciao a tutti" {
		t.Errorf("expected trimmed text, got %q", got[0].Text)
	}
	if got[1].Text != "sì" {
		t.Errorf("expected two-rune segment kept, got %q", got[1].Text)
	}
	if segments[0].Text != " ciao a tutti " {
		t.Error("Filter must not modify its input")
	}
}
