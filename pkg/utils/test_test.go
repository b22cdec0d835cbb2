// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"

	"pcgmon/internal/transport"
)

const (
	testSampleRate = 1000.0
	testBPM        = 120.0
	testAmplitude  = 8000
)

func TestPulseTrainOnsets(t *testing.T) {
	samples := GeneratePulseTrain(2000, testSampleRate, testBPM, testAmplitude)

	for _, onset := range []int{0, 500, 1000, 1500} {
		if samples[onset] != testAmplitude {
			t.Errorf("sample %d = %d, want full amplitude %d", onset, samples[onset], testAmplitude)
		}
	}

	// Between bursts the signal is silent.
	for i := 20; i < 500; i++ {
		if samples[i] != 0 {
			t.Fatalf("sample %d = %d, want silence between bursts", i, samples[i])
		}
	}
}

func TestPulseTrainContinuesAcrossCalls(t *testing.T) {
	whole := GeneratePulseTrain(1800, testSampleRate, 72, testAmplitude)

	gen := NewPulseTrain(testSampleRate, 72, testAmplitude)
	var pieces []int16
	for _, n := range []int{7, 333, 1, 900, 559} {
		pieces = append(pieces, gen.Next(n)...)
	}

	if len(pieces) != len(whole) {
		t.Fatalf("length %d, want %d", len(pieces), len(whole))
	}
	for i := range whole {
		if pieces[i] != whole[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, pieces[i], whole[i])
		}
	}
}

func TestPulseTrainBurstDecays(t *testing.T) {
	gen := NewPulseTrain(testSampleRate, testBPM, testAmplitude)
	burst := gen.Next(gen.Width)

	prev := math.MaxInt
	for i, s := range burst {
		mag := int(s)
		if mag < 0 {
			mag = -mag
		}
		if mag > prev {
			t.Fatalf("burst magnitude grows at %d: %d > %d", i, mag, prev)
		}
		prev = mag
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"Low rumble", 4000, 4000, 50},
		{"A4 Note", 1024, 44100, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency)
			if len(result) != tt.size {
				t.Fatalf("GenerateSineWave() size = %d, want %d", len(result), tt.size)
			}

			crossCount := 0
			for i := 1; i < tt.size; i++ {
				if (result[i-1] < 0) != (result[i] < 0) {
					crossCount++
				}
			}

			// Two crossings per cycle, allowing 20% for phase alignment.
			expected := float64(tt.size) / (tt.sampleRate / tt.frequency / 2)
			if math.Abs(float64(crossCount)-expected) > 0.2*expected {
				t.Errorf("zero crossings = %d, expected about %.1f", crossCount, expected)
			}
		})
	}
}

func TestMockSink(t *testing.T) {
	sink := NewMockSink()
	if _, ok := sink.Last(); ok {
		t.Fatal("Last() on empty sink reported a snapshot")
	}

	sink.Render(transport.Snapshot{Seq: 1, Samples: []int16{1}})
	sink.Render(transport.Snapshot{Seq: 2, Samples: []int16{1, 2}})

	select {
	case <-sink.Notify():
	default:
		t.Error("Notify() was not signalled")
	}

	if sink.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", sink.Len())
	}
	last, ok := sink.Last()
	if !ok || last.Seq != 2 {
		t.Errorf("Last() = %+v, %v; want seq 2", last, ok)
	}

	snaps := sink.Snapshots()
	snaps[0].Seq = 99
	if sink.Snapshots()[0].Seq != 1 {
		t.Error("Snapshots() exposed internal storage")
	}
}

func BenchmarkPulseTrainNext(b *testing.B) {
	gen := NewPulseTrain(44100, 72, testAmplitude)

	b.ReportAllocs()
	for b.Loop() {
		gen.Next(1024)
	}
}
