// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"net"

	"pcgmon/internal/log"
	"pcgmon/pkg/bitint"
)

// Normalize adjusts values that have an obvious nearest valid setting.
// Frames per buffer is rounded up to the next power of two.
func (c *Config) Normalize() {
	if f := c.Audio.FramesPerBuffer; f > 0 && !bitint.IsPowerOfTwo(f) {
		c.Audio.FramesPerBuffer = bitint.NextPowerOfTwo(f)
		log.Infof("configuration: frames_per_buffer %d rounded up to %d", f, c.Audio.FramesPerBuffer)
	}
	if c.Debug {
		c.LogLevel = "debug"
	}
}

// Validate reports every invalid setting joined into one error.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.LogLevel != "" {
		if _, ok := log.ParseLevel(c.LogLevel); !ok {
			fail("log_level %q is not one of debug, info, warn, error", c.LogLevel)
		}
	}

	d := c.Detector
	if d.Threshold < 0 || d.Threshold > MaxThreshold {
		fail("detector.threshold %d out of range [0, %d]", d.Threshold, MaxThreshold)
	}
	if d.Cooldown < 0 || math.IsNaN(d.Cooldown) || math.IsInf(d.Cooldown, 0) {
		fail("detector.cooldown %g must be a non-negative number of seconds", d.Cooldown)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID {
		fail("audio.input_device %d is invalid (use -1 for the default device)", a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		fail("audio.sample_rate %.0f out of range [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames || !bitint.IsPowerOfTwo(a.FramesPerBuffer) {
		fail("audio.frames_per_buffer %d must be a power of two in [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}

	if c.Recording.Enabled && c.Recording.OutputDir == "" && c.Recording.OutputFile == "" {
		fail("recording.output_dir or recording.output_file must be set when recording is enabled")
	}

	s := c.Simulate
	if s.BPM <= 0 || s.BPM > MaxSimulateBPM {
		fail("simulate.bpm %g out of range (0, %d]", s.BPM, MaxSimulateBPM)
	}
	if s.Amplitude < 1 || s.Amplitude > math.MaxInt16 {
		fail("simulate.amplitude %d out of range [1, %d]", s.Amplitude, math.MaxInt16)
	}

	ws := c.Transport.WebSocket
	if ws.Enabled {
		if _, _, err := net.SplitHostPort(ws.Address); err != nil {
			fail("transport.websocket.address %q: %v", ws.Address, err)
		}
		if ws.EnvelopeWidth < 1 {
			fail("transport.websocket.envelope_width must be positive")
		}
	}

	udp := c.Transport.UDP
	if udp.Enabled {
		if _, _, err := net.SplitHostPort(udp.TargetAddress); err != nil {
			fail("transport.udp.target_address %q: %v", udp.TargetAddress, err)
		}
		if udp.SendInterval <= 0 {
			fail("transport.udp.send_interval must be positive when UDP is enabled")
		}
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			fail("metrics.address %q: %v", c.Metrics.Address, err)
		}
	}

	return errors.Join(errs...)
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() log.LogLevel {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}
