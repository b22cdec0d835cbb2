// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"sync"
	"time"

	"pcgmon/pkg/utils"
)

// Synthetic is a LiveSource producing a pulse train at a fixed heart rate.
// With pacing enabled each ReadBatch waits for the wall-clock time the batch
// represents, like a capture device would; without pacing it returns
// immediately.
type Synthetic struct {
	gen       *utils.PulseTrain
	batchSize int
	pace      bool

	mu        sync.Mutex // serialises generator access
	closeOnce sync.Once
	closed    chan struct{}
}

// NewSynthetic returns a synthetic heartbeat source.
func NewSynthetic(sampleRate, bpm float64, amplitude int16, batchSize int, pace bool) *Synthetic {
	return &Synthetic{
		gen:       utils.NewPulseTrain(sampleRate, bpm, amplitude),
		batchSize: max(1, batchSize),
		pace:      pace,
		closed:    make(chan struct{}),
	}
}

func (s *Synthetic) ReadBatch(ctx context.Context) ([]int16, error) {
	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}

	if s.pace {
		wait := time.Duration(float64(s.batchSize) / s.gen.SampleRate * float64(time.Second))
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.closed:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.Next(s.batchSize), nil
}

func (s *Synthetic) SampleRate() float64 { return s.gen.SampleRate }

func (s *Synthetic) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

var _ LiveSource = (*Synthetic)(nil)
