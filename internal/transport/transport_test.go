// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"pcgmon/internal/log"
)

func TestSnapshotDuration(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want float64
	}{
		{"Empty", Snapshot{SampleRate: 1000}, 0},
		{"Two seconds", Snapshot{SampleRate: 1000, Samples: make([]int16, 2000)}, 2},
		{"Zero rate", Snapshot{Samples: make([]int16, 10)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTee(t *testing.T) {
	var order []string
	a := SinkFunc(func(s Snapshot) { order = append(order, "a") })
	b := SinkFunc(func(s Snapshot) { order = append(order, "b") })

	Tee(a, nil, b).Render(Snapshot{})
	if strings.Join(order, "") != "ab" {
		t.Errorf("render order = %v, want [a b]", order)
	}

	order = nil
	Tee(nil, b).Render(Snapshot{})
	if len(order) != 1 {
		t.Errorf("single sink rendered %d times", len(order))
	}

	// An empty tee and Discard are both no-ops.
	Tee().Render(Snapshot{})
	Discard.Render(Snapshot{})
}

func TestEnvelope(t *testing.T) {
	samples := []int16{0, 5, -3, 2, 100, -100, 1, 1}

	env := Envelope(samples, 4)
	want := []Extent{{0, 5}, {-3, 2}, {-100, 100}, {1, 1}}
	if len(env) != len(want) {
		t.Fatalf("len = %d, want %d", len(env), len(want))
	}
	for i := range want {
		if env[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, env[i], want[i])
		}
	}

	if got := Envelope(samples[:3], 10); len(got) != 3 || got[2] != (Extent{-3, -3}) {
		t.Errorf("narrow input = %+v, want one column per sample", got)
	}
	if Envelope(nil, 10) != nil || Envelope(samples, 0) != nil {
		t.Error("empty input or zero width should give nil")
	}
}

func TestEnvelopeKeepsTransients(t *testing.T) {
	samples := make([]int16, 10000)
	samples[7777] = 30000

	found := false
	for _, e := range Envelope(samples, 64) {
		if e.Max == 30000 {
			found = true
		}
	}
	if !found {
		t.Error("single-sample spike lost in decimation")
	}
}

func TestLoggingSink(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.LevelInfo)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	sink := NewLoggingSink()
	sink.Render(Snapshot{Seq: 1, Mode: "live", SampleRate: 10, Samples: make([]int16, 10), Peaks: []float64{0}})
	sink.Render(Snapshot{Seq: 2, Mode: "live", SampleRate: 10, Samples: make([]int16, 20), Peaks: []float64{0}})
	sink.Render(Snapshot{Seq: 3, Mode: "live", SampleRate: 10, Samples: make([]int16, 30),
		Peaks: []float64{0, 1, 2}, BPM: 60})

	out := buf.String()
	if n := strings.Count(out, "BPM:"); n != 2 {
		t.Errorf("info lines = %d, want 2 (unchanged peak count is not repeated):\n%s", n, out)
	}
	if !strings.Contains(out, "BPM: 60.0 (3 peaks in 3.00s, interval 1.000s +/- 0.000s)") {
		t.Errorf("missing rhythm line:\n%s", out)
	}

	// A new session reports even when the peak count matches.
	buf.Reset()
	sink.Render(Snapshot{Seq: 1, Mode: "offline", SampleRate: 10, Samples: make([]int16, 30),
		Peaks: []float64{0, 1, 2}, BPM: 60})
	if !strings.Contains(buf.String(), "BPM: 60.0") {
		t.Errorf("offline session not reported:\n%s", buf.String())
	}
}
