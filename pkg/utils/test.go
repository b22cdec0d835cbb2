package utils

import (
	"math"
	"slices"
	"sync"

	"pcgmon/internal/transport"
)

// MockSink implements transport.Sink for testing. It keeps every snapshot it
// receives and is safe to inspect while a processor is still rendering.
type MockSink struct {
	mu        sync.Mutex
	snapshots []transport.Snapshot
	notify    chan struct{}
}

// NewMockSink returns an empty MockSink.
func NewMockSink() *MockSink {
	return &MockSink{notify: make(chan struct{}, 1)}
}

// Render stores the snapshot instead of displaying it.
func (m *MockSink) Render(snap transport.Snapshot) {
	m.mu.Lock()
	m.snapshots = append(m.snapshots, snap)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Snapshots returns the snapshots received so far, oldest first.
func (m *MockSink) Snapshots() []transport.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.snapshots)
}

// Len returns the number of snapshots received so far.
func (m *MockSink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// Last returns the most recent snapshot and whether there was one.
func (m *MockSink) Last() (transport.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return transport.Snapshot{}, false
	}
	return m.snapshots[len(m.snapshots)-1], true
}

// Notify is signalled (coalesced) after every Render.
func (m *MockSink) Notify() <-chan struct{} {
	return m.notify
}

var _ transport.Sink = (*MockSink)(nil)

// PulseTrain generates a heart-sound-like signal: a short decaying burst at
// the start of every beat and silence in between. Beat n starts at the first
// sample index >= n*60*sampleRate/bpm, and that sample always carries the
// full amplitude, so a detector with threshold below Amplitude fires exactly
// on beat onsets. The generator is stateful, so successive calls to Next
// continue the same waveform.
type PulseTrain struct {
	SampleRate float64
	BPM        float64
	Amplitude  int16
	Width      int // burst length in samples

	index int
}

// NewPulseTrain returns a generator with a 20ms burst.
func NewPulseTrain(sampleRate, bpm float64, amplitude int16) *PulseTrain {
	return &PulseTrain{
		SampleRate: sampleRate,
		BPM:        bpm,
		Amplitude:  amplitude,
		Width:      max(1, int(0.02*sampleRate)),
	}
}

// Period returns the beat period in samples.
func (p *PulseTrain) Period() float64 {
	return 60 * p.SampleRate / p.BPM
}

// Next returns the next n samples.
func (p *PulseTrain) Next(n int) []int16 {
	out := make([]int16, n)
	period := p.Period()
	for i := range out {
		k := p.index + i
		beat := math.Floor(float64(k) / period)
		j := k - int(math.Ceil(beat*period))
		if j < 0 || j >= p.Width {
			continue
		}
		decay := 1 - float64(j)/float64(p.Width)
		v := float64(p.Amplitude) * decay
		if j%2 == 1 {
			v = -v
		}
		out[i] = int16(v)
	}
	p.index += n
	return out
}

// GeneratePulseTrain returns size samples of a fresh PulseTrain.
func GeneratePulseTrain(size int, sampleRate, bpm float64, amplitude int16) []int16 {
	return NewPulseTrain(sampleRate, bpm, amplitude).Next(size)
}

// GenerateSineWave returns a 16-bit sine at 90% of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * 0.9)
	}
	return buffer
}
