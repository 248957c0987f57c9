package media

import (
	"math"
	"testing"
)

func TestTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		interval float64
		max      int
		want     []float64
	}{
		{name: "six seconds every two", duration: 6, interval: 2, max: 100, want: []float64{0, 2, 4}},
		{name: "capped by max", duration: 60, interval: 2, max: 3, want: []float64{0, 2, 4}},
		{name: "shorter than interval", duration: 1.5, interval: 2, max: 100, want: []float64{0}},
		{name: "zero duration", duration: 0, interval: 2, max: 100, want: []float64{}},
		{name: "invalid interval", duration: 10, interval: 0, max: 100, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Timestamps(tt.duration, tt.interval, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("Timestamps() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("Timestamps()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := map[string]float64{
		"25/1":       25,
		"30000/1001": 30000.0 / 1001.0,
		"0/0":        0,
		"garbage":    0,
		"24":         24,
	}
	for in, want := range tests {
		if got := parseFrameRate(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("parseFrameRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseProbeOutput(t *testing.T) {
	raw := []byte(`{
		"format": {"duration": "6.040000"},
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 640, "height": 360, "r_frame_rate": "25/1"}
		]
	}`)

	info, err := parseProbeOutput(raw)
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if info.Duration != 6.04 || info.Width != 640 || info.Height != 360 || info.FPS != 25 || !info.HasAudio {
		t.Errorf("unexpected info: %+v", info)
	}
}
