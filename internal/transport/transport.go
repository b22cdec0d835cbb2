// SPDX-License-Identifier: MIT
package transport

// Snapshot is an immutable point-in-time view of a processing session. The
// processor builds a fresh Snapshot for every publish; Samples and Peaks are
// copies and are never written to again, so a Sink may keep them for as long
// as it likes and hand them to other goroutines.
type Snapshot struct {
	Seq        uint64    // 1-based publish counter within the session
	Mode       string    // "live" or "offline"
	SampleRate float64   // Hz
	Samples    []int16   // accumulated buffer at publish time
	Peaks      []float64 // peak times in seconds since session start
	BPM        float64   // 0 when fewer than two peaks
}

// Duration returns the length of the accumulated buffer in seconds.
func (s Snapshot) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / s.SampleRate
}

// Sink consumes snapshots for display or onward delivery.
//
// Render is called from the processor's worker goroutine, never concurrently
// with itself for one session. It must not block for long and cannot report
// failure back into the processing loop; implementations that need another
// goroutine (a UI loop, a network writer) schedule the work themselves.
type Sink interface {
	Render(snap Snapshot)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(snap Snapshot)

func (f SinkFunc) Render(snap Snapshot) { f(snap) }

// Tee returns a Sink that renders to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	if len(active) == 1 {
		return active[0]
	}
	return tee(active)
}

type tee []Sink

func (t tee) Render(snap Snapshot) {
	for _, s := range t {
		s.Render(snap)
	}
}

// Discard is a Sink that drops every snapshot.
var Discard Sink = SinkFunc(func(Snapshot) {})
