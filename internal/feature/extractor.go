// SPDX-License-Identifier: MIT
/*
Package feature extracts transient peaks and heart rate from 16-bit PCM.

Everything in this package is pure: no I/O, no package state, and inputs are
never mutated. DetectPeaks and CalculateBPM are the reference operations;
PeakTracker is the incremental form of DetectPeaks used on live streams and
must emit exactly the same peak sequence for any batching of the input.
*/
package feature

// DetectPeaks scans samples left to right and returns the time, in seconds,
// of every sample whose magnitude is strictly greater than threshold. After a
// peak the next cooldownSamples samples are skipped, so consecutive peaks are
// at least cooldownSamples/sampleRate seconds apart.
//
// Negative threshold and cooldownSamples are treated as zero.
func DetectPeaks(samples []int16, threshold, cooldownSamples int, sampleRate float64) []float64 {
	peaks := make([]float64, 0)
	if len(samples) == 0 || sampleRate <= 0 {
		return peaks
	}
	threshold = max(threshold, 0)
	cooldownSamples = max(cooldownSamples, 0)

	cooldown := 0
	for i, s := range samples {
		if cooldown > 0 {
			cooldown--
			continue
		}
		if abs16(s) > threshold {
			peaks = append(peaks, float64(i)/sampleRate)
			cooldown = cooldownSamples
		}
	}
	return peaks
}

// CalculateBPM returns the beat rate implied by the average spacing of the
// given non-decreasing peak times. Fewer than two peaks yields 0.
//
// The sum of consecutive gaps telescopes to last-first, which is used
// directly instead of accumulating the gaps.
func CalculateBPM(peakTimes []float64) float64 {
	n := len(peakTimes)
	if n < 2 {
		return 0
	}
	span := peakTimes[n-1] - peakTimes[0]
	if span <= 0 {
		return 0
	}
	return 60.0 * float64(n-1) / span
}

// abs16 widens before negating so that -32768 does not overflow.
func abs16(s int16) int {
	v := int(s)
	if v < 0 {
		return -v
	}
	return v
}
