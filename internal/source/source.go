// SPDX-License-Identifier: MIT
/*
Package source defines the sample source contracts the signal processor
consumes, plus in-memory and synthetic implementations.

A LiveSource is polled: every ReadBatch blocks until at least one sample is
available or the source is closed. A FiniteSource is drained once with
ReadAll. Both report a fixed sample rate for their whole lifetime.
*/
package source

import (
	"context"
	"errors"
)

// ErrClosed is returned by ReadBatch once a live source has been closed.
// The processor treats it, like io.EOF, as a normal end of session.
var ErrClosed = errors.New("source closed")

// LiveSource is an unbounded, polled sample source such as a capture device.
type LiveSource interface {
	// ReadBatch blocks until samples are available. An empty batch with a nil
	// error means nothing was captured and the caller should poll again.
	// Implementations may return early when ctx is cancelled but are not
	// required to.
	ReadBatch(ctx context.Context) ([]int16, error)

	// SampleRate returns the fixed sample rate in Hz.
	SampleRate() float64

	// Close releases the underlying device. Close may be called while a
	// ReadBatch is pending; a pending or later ReadBatch returns ErrClosed.
	Close() error
}

// FiniteSource is a one-shot source such as a decoded file.
type FiniteSource interface {
	// ReadAll drains the source to end of stream.
	ReadAll(ctx context.Context) ([]int16, error)

	// SampleRate returns the fixed sample rate in Hz.
	SampleRate() float64
}
