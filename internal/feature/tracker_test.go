// SPDX-License-Identifier: MIT
package feature

import (
	"math/rand/v2"
	"testing"
)

// splitRandomly cuts samples into batches of random length, including empty
// batches, so that cooldown windows straddle batch boundaries.
func splitRandomly(rng *rand.Rand, samples []int16) [][]int16 {
	var batches [][]int16
	for len(samples) > 0 {
		n := min(rng.IntN(40), len(samples))
		batches = append(batches, samples[:n])
		samples = samples[n:]
	}
	return batches
}

func TestPeakTrackerMatchesDetectPeaks(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))

	for trial := range 200 {
		samples := randomSamples(rng, 500+rng.IntN(1500))
		threshold := rng.IntN(32768)
		cooldown := rng.IntN(100)
		const sampleRate = 1000.0

		tracker := NewPeakTracker(threshold, cooldown, sampleRate)
		fed := 0
		var streamed []float64
		for _, batch := range splitRandomly(rng, samples) {
			streamed = append(streamed, tracker.Feed(batch)...)
			fed += len(batch)

			// Every batch boundary must agree with a full recompute.
			want := DetectPeaks(samples[:fed], threshold, cooldown, sampleRate)
			if !equalTimes(tracker.Peaks(), want) {
				t.Fatalf("trial %d after %d samples: tracker %v, full %v",
					trial, fed, tracker.Peaks(), want)
			}
		}

		if !equalTimes(streamed, tracker.Peaks()) {
			t.Fatalf("trial %d: concatenated Feed output differs from Peaks()", trial)
		}
		if tracker.Samples() != len(samples) {
			t.Fatalf("trial %d: Samples() = %d, want %d", trial, tracker.Samples(), len(samples))
		}
	}
}

func TestPeakTrackerCooldownAcrossBatches(t *testing.T) {
	tracker := NewPeakTracker(1000, 3, 1000)

	if got := tracker.Feed([]int16{0, 0, 2000, 0}); !equalTimes(got, []float64{0.002}) {
		t.Fatalf("first batch peaks = %v, want [0.002]", got)
	}
	// Index 5 is still inside the cooldown started at index 2.
	if got := tracker.Feed([]int16{0, 2000, 0, 0}); len(got) != 0 {
		t.Fatalf("second batch peaks = %v, want none", got)
	}
	if got := tracker.Feed([]int16{2000}); !equalTimes(got, []float64{0.008}) {
		t.Fatalf("third batch peaks = %v, want [0.008]", got)
	}
}

func TestPeakTrackerReset(t *testing.T) {
	tracker := NewPeakTracker(10, 100, 100)
	tracker.Feed([]int16{50, 0, 0})

	tracker.Reset()
	if tracker.Samples() != 0 || len(tracker.Peaks()) != 0 {
		t.Fatalf("after Reset: samples=%d peaks=%v", tracker.Samples(), tracker.Peaks())
	}

	// The pending cooldown must not survive a reset.
	if got := tracker.Feed([]int16{50}); !equalTimes(got, []float64{0}) {
		t.Errorf("peak after reset = %v, want [0]", got)
	}
}

func TestPeakTrackerPeaksIsCopy(t *testing.T) {
	tracker := NewPeakTracker(0, 0, 1)
	tracker.Feed([]int16{1, 1})

	peaks := tracker.Peaks()
	peaks[0] = 99
	if tracker.Peaks()[0] != 0 {
		t.Error("Peaks() exposed internal storage")
	}
}
