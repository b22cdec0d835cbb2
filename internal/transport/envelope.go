// SPDX-License-Identifier: MIT
package transport

// Extent is the minimum and maximum sample value inside one envelope column.
type Extent struct {
	Min int16 `json:"min"`
	Max int16 `json:"max"`
}

// Envelope decimates samples into at most width columns, keeping the
// min/max of each column so that short transients survive the reduction.
// With fewer samples than columns each sample gets its own column.
func Envelope(samples []int16, width int) []Extent {
	if width <= 0 || len(samples) == 0 {
		return nil
	}
	if len(samples) < width {
		width = len(samples)
	}

	out := make([]Extent, width)
	for c := range out {
		start := c * len(samples) / width
		end := (c + 1) * len(samples) / width

		lo, hi := samples[start], samples[start]
		for _, s := range samples[start+1 : end] {
			lo = min(lo, s)
			hi = max(hi, s)
		}
		out[c] = Extent{Min: lo, Max: hi}
	}
	return out
}
