// SPDX-License-Identifier: MIT
/*
Package config loads the monitor's runtime configuration from YAML, applies
ENV_* overrides and validates the result. Command-line flags are applied on
top by the cmd package, which then calls Normalize and Validate again.
*/
package config

import (
	"path/filepath"
	"time"
)

// Defaults and limits for the detector and the audio front end.
const (
	DefaultThreshold       = 1000  // |s| must exceed this to be a peak candidate
	DefaultCooldown        = 0.3   // seconds between accepted peaks
	DefaultDeviceID        = -1    // system default input device
	DefaultSampleRate      = 44100 // Hz
	DefaultFramesPerBuffer = 1024
	DefaultLogLevel        = "info"

	DefaultSimulateBPM       = 72.0
	DefaultSimulateAmplitude = 8000

	DefaultWebSocketAddress = ":8080"
	DefaultEnvelopeWidth    = 512
	DefaultUDPTarget        = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 100 * time.Millisecond
	DefaultMetricsAddress   = ":9100"
	DefaultRecordingDir     = "./recordings"

	MinDeviceID     = -1
	MaxThreshold    = 32767 // largest int16 magnitude that can still be exceeded
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MaxSimulateBPM  = 300
)

// Config is the root configuration document.
type Config struct {
	Debug     bool            `yaml:"debug"`     // verbose logging
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Detector  DetectorConfig  `yaml:"detector"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	Simulate  SimulateConfig  `yaml:"simulate"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DetectorConfig holds the peak detection parameters.
type DetectorConfig struct {
	Threshold     int     `yaml:"threshold"`      // amplitude threshold, 0..32767
	Cooldown      float64 `yaml:"cooldown"`       // seconds
	FullRecompute bool    `yaml:"full_recompute"` // rerun detection over the whole buffer per batch
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"` // PortAudio index, -1 for default
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // rounded up to a power of two
	LowLatency      bool    `yaml:"low_latency"`
}

// RecordingConfig controls teeing live input to a WAV file.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file,omitempty"` // generated in OutputDir when empty
}

// Path returns the recording destination: OutputFile when set, otherwise a
// timestamped name in OutputDir.
func (r RecordingConfig) Path(now time.Time) string {
	if r.OutputFile != "" {
		return r.OutputFile
	}
	return filepath.Join(r.OutputDir, "recording-"+now.UTC().Format("2006-01-02-150405")+".wav")
}

// SimulateConfig drives the synthetic heartbeat source.
type SimulateConfig struct {
	BPM       float64 `yaml:"bpm"`
	Amplitude int     `yaml:"amplitude"`
	Realtime  bool    `yaml:"realtime"` // pace batches to wall-clock time
}

// TransportConfig selects the sinks snapshots are published to.
type TransportConfig struct {
	Log       bool            `yaml:"log"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	UDP       UDPConfig       `yaml:"udp"`
}

type WebSocketConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Address       string `yaml:"address"`
	EnvelopeWidth int    `yaml:"envelope_width"`
}

type UDPConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TargetAddress string        `yaml:"target_address"`
	SendInterval  time.Duration `yaml:"send_interval"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Detector: DetectorConfig{
			Threshold: DefaultThreshold,
			Cooldown:  DefaultCooldown,
		},
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
		},
		Simulate: SimulateConfig{
			BPM:       DefaultSimulateBPM,
			Amplitude: DefaultSimulateAmplitude,
			Realtime:  true,
		},
		Transport: TransportConfig{
			Log: true,
			WebSocket: WebSocketConfig{
				Address:       DefaultWebSocketAddress,
				EnvelopeWidth: DefaultEnvelopeWidth,
			},
			UDP: UDPConfig{
				TargetAddress: DefaultUDPTarget,
				SendInterval:  DefaultUDPSendInterval,
			},
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
		},
	}
}
