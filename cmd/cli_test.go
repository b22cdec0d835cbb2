// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pcgmon/internal/config"
)

func mustParse(t *testing.T, args ...string) *Options {
	t.Helper()
	var out bytes.Buffer
	opts, err := parse(args, &out)
	if err != nil {
		t.Fatalf("parse(%q) error: %v", args, err)
	}
	if opts == nil {
		t.Fatalf("parse(%q) returned no options; output:\n%s", args, out.String())
	}
	return opts
}

func TestDefaultsToLive(t *testing.T) {
	opts := mustParse(t)
	if opts.Command != CommandLive {
		t.Errorf("Command = %q, want live", opts.Command)
	}
	if opts.Config.Detector.Threshold != config.DefaultThreshold {
		t.Errorf("threshold = %d", opts.Config.Detector.Threshold)
	}
	if opts.TUI || opts.Pick {
		t.Error("TUI and Pick should be off by default")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	opts := mustParse(t, "live",
		"--threshold", "2000",
		"--cooldown", "0.25",
		"-s", "8000",
		"-b", "300",
		"-d", "3",
		"--ws",
		"--udp", "10.0.0.9:7000",
		"--metrics=127.0.0.1:9300",
		"--full-recompute",
		"--tui",
		"--pick",
		"-v",
	)
	cfg := opts.Config

	if cfg.Detector.Threshold != 2000 || cfg.Detector.Cooldown != 0.25 || !cfg.Detector.FullRecompute {
		t.Errorf("detector = %+v", cfg.Detector)
	}
	if cfg.Audio.SampleRate != 8000 || cfg.Audio.FramesPerBuffer != 512 || cfg.Audio.InputDevice != 3 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	ws := cfg.Transport.WebSocket
	if !ws.Enabled || ws.Address != config.DefaultWebSocketAddress {
		t.Errorf("websocket = %+v", ws)
	}
	if udp := cfg.Transport.UDP; !udp.Enabled || udp.TargetAddress != "10.0.0.9:7000" {
		t.Errorf("udp = %+v", udp)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Address != "127.0.0.1:9300" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if !opts.TUI || !opts.Pick || cfg.LogLevel != "debug" {
		t.Errorf("TUI=%v Pick=%v LogLevel=%q", opts.TUI, opts.Pick, cfg.LogLevel)
	}
}

func TestConfigFileWithFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcg.yaml")
	content := "detector:\n  threshold: 3000\n  cooldown: 0.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := mustParse(t, "file", "beat.wav", "-C", path, "--cooldown", "0.2")
	if opts.Command != CommandFile || opts.Path != "beat.wav" {
		t.Errorf("Command = %q Path = %q", opts.Command, opts.Path)
	}
	if opts.Config.Detector.Threshold != 3000 {
		t.Errorf("threshold from file = %d, want 3000", opts.Config.Detector.Threshold)
	}
	if opts.Config.Detector.Cooldown != 0.2 {
		t.Errorf("cooldown = %g, want flag value 0.2", opts.Config.Detector.Cooldown)
	}
}

func TestSimulateFlags(t *testing.T) {
	opts := mustParse(t, "simulate", "--bpm", "90", "--amplitude", "12000", "--realtime=false", "-o", "sim.wav")
	s := opts.Config.Simulate
	if opts.Command != CommandSimulate || s.BPM != 90 || s.Amplitude != 12000 || s.Realtime {
		t.Errorf("simulate = %+v (command %q)", s, opts.Command)
	}
	rec := opts.Config.Recording
	if !rec.Enabled || rec.Path(time.Now()) != "sim.wav" {
		t.Errorf("recording = %+v", rec)
	}
}

func TestSimpleCommands(t *testing.T) {
	tests := []struct {
		args []string
		want Command
		path string
	}{
		{[]string{"list"}, CommandList, ""},
		{[]string{"version"}, CommandVersion, ""},
		{[]string{"init-config"}, CommandInitConfig, config.DefaultPath},
		{[]string{"init-config", "my.yaml"}, CommandInitConfig, "my.yaml"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			opts := mustParse(t, tt.args...)
			if opts.Command != tt.want || opts.Path != tt.path || opts.Config != nil {
				t.Errorf("opts = %+v", opts)
			}
		})
	}
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		substr string
	}{
		{"Threshold out of range", []string{"--threshold", "99999"}, "detector.threshold"},
		{"Negative cooldown", []string{"live", "--cooldown", "-1"}, "detector.cooldown"},
		{"File without path", []string{"file"}, "accepts 1 arg"},
		{"Unknown flag", []string{"--nope"}, "unknown flag"},
		{"Bad UDP target", []string{"--udp", "nowhere"}, "transport.udp.target_address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := parse(tt.args, &out)
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error = %v, want substring %q", err, tt.substr)
			}
		})
	}
}

func TestHelpReturnsNoOptions(t *testing.T) {
	var out bytes.Buffer
	opts, err := parse([]string{"--help"}, &out)
	if err != nil || opts != nil {
		t.Errorf("--help = %+v, %v", opts, err)
	}
	if !strings.Contains(out.String(), "simulate") {
		t.Errorf("help output missing subcommands:\n%s", out.String())
	}
}
