// SPDX-License-Identifier: MIT
package feature

import "gonum.org/v1/gonum/stat"

// Rhythm summarises a peak sequence.
type Rhythm struct {
	Count          int     // number of peaks
	BPM            float64 // CalculateBPM over the peaks
	MeanInterval   float64 // seconds between consecutive peaks
	IntervalStdDev float64 // sample standard deviation of the intervals
}

// Summarize computes interval statistics for peakTimes. Interval fields stay
// zero with fewer than two peaks; the standard deviation needs at least two
// intervals.
func Summarize(peakTimes []float64) Rhythm {
	r := Rhythm{
		Count: len(peakTimes),
		BPM:   CalculateBPM(peakTimes),
	}
	if len(peakTimes) < 2 {
		return r
	}

	intervals := make([]float64, len(peakTimes)-1)
	for i := 1; i < len(peakTimes); i++ {
		intervals[i-1] = peakTimes[i] - peakTimes[i-1]
	}

	if len(intervals) == 1 {
		r.MeanInterval = intervals[0]
		return r
	}
	r.MeanInterval, r.IntervalStdDev = stat.MeanStdDev(intervals, nil)
	return r
}
