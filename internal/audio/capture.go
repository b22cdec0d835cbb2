// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"pcgmon/internal/log"
	"pcgmon/internal/source"
)

// CaptureConfig selects the device and stream shape for live capture.
type CaptureConfig struct {
	DeviceID        int
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
}

// Capture is a LiveSource reading mono 16-bit frames from a PortAudio
// blocking input stream. Each ReadBatch returns one buffer of
// FramesPerBuffer samples.
type Capture struct {
	stream     *portaudio.Stream
	buffer     []int16
	sampleRate float64
	device     string

	mu        sync.Mutex // serialises Read against Close
	closed    bool
	overflows int
}

// OpenCapture opens and starts a blocking input stream on the configured
// device. PortAudio must already be initialised.
func OpenCapture(cfg CaptureConfig) (*Capture, error) {
	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	latency := device.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	buffer := make([]int16, cfg.FramesPerBuffer)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return nil, fmt.Errorf("open input stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input stream on %q: %w", device.Name, err)
	}

	log.Infof("Capture: %s at %.0f Hz, %d frames per buffer, latency %s",
		device.Name, cfg.SampleRate, cfg.FramesPerBuffer, latency.Round(time.Microsecond))

	return &Capture{
		stream:     stream,
		buffer:     buffer,
		sampleRate: cfg.SampleRate,
		device:     device.Name,
	}, nil
}

// ReadBatch blocks until the next buffer is available. Input overflows are
// logged and the (partially stale) buffer is still returned.
func (c *Capture) ReadBatch(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, source.ErrClosed
	}
	if err := c.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("read input stream: %w", err)
		}
		c.overflows++
		log.Warnf("Capture: input overflow on %s (%d so far)", c.device, c.overflows)
	}
	return slices.Clone(c.buffer), nil
}

func (c *Capture) SampleRate() float64 { return c.sampleRate }

// Close stops and closes the stream. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.stream.Stop(); err != nil {
		c.stream.Close()
		return fmt.Errorf("stop input stream: %w", err)
	}
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("close input stream: %w", err)
	}
	return nil
}

var _ source.LiveSource = (*Capture)(nil)
