// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"io"
	"sync"
)

// Slice is a FiniteSource over an in-memory sample sequence.
type Slice struct {
	samples    []int16
	sampleRate float64
	err        error
}

// NewSlice returns a finite source that yields a copy of samples.
func NewSlice(samples []int16, sampleRate float64) *Slice {
	return &Slice{samples: append([]int16(nil), samples...), sampleRate: sampleRate}
}

// NewFailingSlice returns a finite source whose ReadAll always fails with err.
func NewFailingSlice(err error, sampleRate float64) *Slice {
	return &Slice{sampleRate: sampleRate, err: err}
}

func (s *Slice) ReadAll(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]int16(nil), s.samples...), nil
}

func (s *Slice) SampleRate() float64 { return s.sampleRate }

// Batches is a scripted LiveSource that hands out a fixed list of batches in
// order and then reports io.EOF, or the configured terminal error.
type Batches struct {
	sampleRate float64

	mu      sync.Mutex
	batches [][]int16
	next    int
	final   error
	closed  bool
	reads   int
}

// NewBatches returns a live source that yields each batch once.
func NewBatches(sampleRate float64, batches ...[]int16) *Batches {
	copied := make([][]int16, len(batches))
	for i, b := range batches {
		copied[i] = append([]int16(nil), b...)
	}
	return &Batches{sampleRate: sampleRate, batches: copied, final: io.EOF}
}

// FailWith makes the source return err instead of io.EOF once the scripted
// batches run out.
func (b *Batches) FailWith(err error) *Batches {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.final = err
	return b
}

func (b *Batches) ReadBatch(ctx context.Context) ([]int16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reads++
	if b.closed {
		return nil, ErrClosed
	}
	if b.next >= len(b.batches) {
		return nil, b.final
	}
	batch := b.batches[b.next]
	b.next++
	return batch, nil
}

func (b *Batches) SampleRate() float64 { return b.sampleRate }

func (b *Batches) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (b *Batches) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Reads reports how many times ReadBatch has been called.
func (b *Batches) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

var (
	_ FiniteSource = (*Slice)(nil)
	_ LiveSource   = (*Batches)(nil)
)
