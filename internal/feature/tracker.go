// SPDX-License-Identifier: MIT
package feature

// PeakTracker is the incremental form of DetectPeaks. It carries the cooldown
// counter and the absolute sample position across calls to Feed, so feeding a
// sequence in any number of batches yields the same peaks as running
// DetectPeaks over the whole sequence at once.
//
// A PeakTracker is not safe for concurrent use.
type PeakTracker struct {
	threshold       int
	cooldownSamples int
	sampleRate      float64

	position int // absolute index of the next sample to be fed
	cooldown int // samples still to skip
	peaks    []float64
}

// NewPeakTracker creates a tracker with the same parameters DetectPeaks takes.
func NewPeakTracker(threshold, cooldownSamples int, sampleRate float64) *PeakTracker {
	return &PeakTracker{
		threshold:       max(threshold, 0),
		cooldownSamples: max(cooldownSamples, 0),
		sampleRate:      sampleRate,
	}
}

// Feed consumes the next batch and returns the peaks found inside it.
// The returned slice is owned by the caller.
func (t *PeakTracker) Feed(batch []int16) []float64 {
	if t.sampleRate <= 0 {
		t.position += len(batch)
		return nil
	}

	var found []float64
	for i, s := range batch {
		if t.cooldown > 0 {
			t.cooldown--
			continue
		}
		if abs16(s) > t.threshold {
			found = append(found, float64(t.position+i)/t.sampleRate)
			t.cooldown = t.cooldownSamples
		}
	}
	t.position += len(batch)
	t.peaks = append(t.peaks, found...)
	return found
}

// Peaks returns a copy of every peak emitted since the last Reset.
func (t *PeakTracker) Peaks() []float64 {
	out := make([]float64, len(t.peaks))
	copy(out, t.peaks)
	return out
}

// Samples reports how many samples have been fed since the last Reset.
func (t *PeakTracker) Samples() int {
	return t.position
}

// Reset returns the tracker to its initial state.
func (t *PeakTracker) Reset() {
	t.position = 0
	t.cooldown = 0
	t.peaks = t.peaks[:0]
}
