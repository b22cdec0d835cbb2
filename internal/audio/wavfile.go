// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pcgmon/internal/log"
	"pcgmon/internal/source"
)

// wavChunkFrames is the number of frames decoded per PCMBuffer call.
const wavChunkFrames = 4096

// WAV format tags accepted by OpenWAV.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

var ErrUnsupportedWAV = errors.New("unsupported WAV file")

// WAVFile is a FiniteSource decoding an integer PCM WAV file. Only the first
// channel is used and samples are rescaled to 16 bits.
type WAVFile struct {
	path       string
	sampleRate float64
	bitDepth   int
	channels   int
	frames     int
}

// OpenWAV validates the header of the file at path. Decoding happens in
// ReadAll.
func OpenWAV(path string) (*WAVFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedWAV, path)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: %s uses format tag %d, want integer PCM", ErrUnsupportedWAV, path, dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %s has bit depth %d", ErrUnsupportedWAV, path, dec.BitDepth)
	}

	w := &WAVFile{
		path:       path,
		sampleRate: float64(dec.SampleRate),
		bitDepth:   int(dec.BitDepth),
		channels:   int(dec.NumChans),
	}
	if d, err := dec.Duration(); err == nil {
		w.frames = int(math.Round(d.Seconds() * w.sampleRate))
	}

	log.Debugf("WAV: %s: %.0f Hz, %d-bit, %d channel(s)", path, w.sampleRate, w.bitDepth, w.channels)
	return w, nil
}

func (w *WAVFile) SampleRate() float64 { return w.sampleRate }
func (w *WAVFile) Channels() int       { return w.channels }
func (w *WAVFile) BitDepth() int       { return w.bitDepth }

// ReadAll decodes the whole file. Cancellation is checked between chunks.
func (w *WAVFile) ReadAll(ctx context.Context) ([]int16, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek to PCM data in %s: %w", w.path, err)
	}

	buf := &audio.IntBuffer{
		Format:         dec.Format(),
		Data:           make([]int, wavChunkFrames*w.channels),
		SourceBitDepth: w.bitDepth,
	}
	samples := make([]int16, 0, w.frames)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", w.path, err)
		}
		if n == 0 {
			break
		}
		for i := 0; i+w.channels <= n; i += w.channels {
			samples = append(samples, toInt16(buf.Data[i], w.bitDepth))
		}
	}
	return samples, nil
}

// toInt16 rescales a decoded sample to signed 16-bit. 8-bit WAV data is
// unsigned with a midpoint of 128.
func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

var _ source.FiniteSource = (*WAVFile)(nil)
