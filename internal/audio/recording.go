// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pcgmon/internal/log"
	"pcgmon/internal/source"
)

// MaxConsecutiveWriteFailures disables recording after this many failed
// writes in a row; capture continues unaffected.
const MaxConsecutiveWriteFailures = 5

// Recorder wraps a LiveSource and appends every batch it returns to a mono
// 16-bit WAV file. Closing the recorder finalises the file and closes the
// wrapped source.
type Recorder struct {
	source.LiveSource

	mu       sync.Mutex
	file     *os.File
	encoder  *wav.Encoder
	buf      *audio.IntBuffer
	frames   int
	failures int
	disabled bool
	closed   bool
}

// NewRecorder creates filename and starts recording src into it.
func NewRecorder(src source.LiveSource, filename string) (*Recorder, error) {
	if src == nil {
		return nil, errors.New("recorder: nil source")
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	rate := int(src.SampleRate())
	r := &Recorder{
		LiveSource: src,
		file:       file,
		encoder:    wav.NewEncoder(file, rate, 16, 1, wavFormatPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}
	log.Infof("Recorder: writing %s (%d Hz, 16-bit mono)", filename, rate)
	return r, nil
}

func (r *Recorder) ReadBatch(ctx context.Context) ([]int16, error) {
	batch, err := r.LiveSource.ReadBatch(ctx)
	if len(batch) > 0 {
		r.write(batch)
	}
	return batch, err
}

func (r *Recorder) write(batch []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.disabled {
		return
	}

	if cap(r.buf.Data) < len(batch) {
		r.buf.Data = make([]int, len(batch))
	}
	r.buf.Data = r.buf.Data[:len(batch)]
	for i, s := range batch {
		r.buf.Data[i] = int(s)
	}

	if err := r.encoder.Write(r.buf); err != nil {
		r.failures++
		log.Warnf("Recorder: write failed (%d/%d): %v", r.failures, MaxConsecutiveWriteFailures, err)
		if r.failures >= MaxConsecutiveWriteFailures {
			r.disabled = true
			log.Errorf("Recorder: too many consecutive write failures, recording disabled")
		}
		return
	}
	r.failures = 0
	r.frames += len(batch)
}

// Frames returns the number of samples written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header, closes the file, then the wrapped source.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.encoder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalise recording: %w", err))
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close recording: %w", err))
	}
	log.Infof("Recorder: %s closed after %d samples", r.file.Name(), r.frames)
	r.mu.Unlock()

	if err := r.LiveSource.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ source.LiveSource = (*Recorder)(nil)
