// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pcgmon/cmd"
	"pcgmon/internal/audio"
	"pcgmon/internal/config"
	"pcgmon/internal/log"
	"pcgmon/internal/metrics"
	"pcgmon/internal/processor"
	"pcgmon/internal/source"
	"pcgmon/internal/transport"
	"pcgmon/internal/transport/udp"
	"pcgmon/internal/tui"
	"pcgmon/pkg/build"
)

// main runs in three phases:
//
// 1. Startup: build info, argument parsing, one-off commands, opening the
// sample source and the sinks. Any failure here exits before processing.
//
// 2. Processing: the signal processor's worker pumps the source and
// publishes snapshots until end of input, a read error, Ctrl+C, or the user
// quitting the monitor.
//
// 3. Shutdown: the session is stopped and awaited, then sinks and servers
// are closed in reverse order.
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts == nil {
		return
	}

	if err := execute(opts); err != nil {
		log.Fatalf("%v", err)
	}
}

func execute(opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandVersion:
		fmt.Println(build.Get())
		return nil

	case cmd.CommandInitConfig:
		if err := config.Save(config.Default(), opts.Path); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to %s\n", opts.Path)
		return nil

	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)
	}

	return monitor(opts)
}

// closers are shut down in reverse order of registration.
type closers []func() error

func (c *closers) add(f func() error) { *c = append(*c, f) }

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}
}

func monitor(opts *cmd.Options) (err error) {
	cfg := opts.Config
	log.SetLevel(cfg.Level())

	var cleanup closers
	defer cleanup.closeAll()

	// Sample source. PortAudio is only needed for live capture.
	var (
		live    source.LiveSource
		offline source.FiniteSource
	)
	switch opts.Command {
	case cmd.CommandFile:
		wf, err := audio.OpenWAV(opts.Path)
		if err != nil {
			return err
		}
		log.Infof("Analysing %s (%.0f Hz, %d-bit, %d channel(s))", opts.Path, wf.SampleRate(), wf.BitDepth(), wf.Channels())
		offline = wf

	case cmd.CommandSimulate:
		s := cfg.Simulate
		log.Infof("Simulating %.1f BPM at %.0f Hz", s.BPM, cfg.Audio.SampleRate)
		live = source.NewSynthetic(cfg.Audio.SampleRate, s.BPM, int16(s.Amplitude), cfg.Audio.FramesPerBuffer, s.Realtime)

	default:
		if err := audio.Initialize(); err != nil {
			return err
		}
		cleanup.add(audio.Terminate)

		if opts.Pick {
			sel, err := tui.PickDevice(audio.HostDevices)
			if err != nil {
				return err
			}
			cfg.Audio.InputDevice = sel.DeviceID
			cfg.Audio.SampleRate = sel.SampleRate
		}
		capture, err := audio.OpenCapture(audio.CaptureConfig{
			DeviceID:        cfg.Audio.InputDevice,
			SampleRate:      cfg.Audio.SampleRate,
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
			LowLatency:      cfg.Audio.LowLatency,
		})
		if err != nil {
			return err
		}
		live = capture
	}

	if live != nil && cfg.Recording.Enabled {
		path := cfg.Recording.Path(time.Now())
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			live.Close()
			return err
		}
		rec, err := audio.NewRecorder(live, path)
		if err != nil {
			live.Close()
			return err
		}
		live = rec
		defer fmt.Printf("Recording saved to: %s\n", path)
	}

	started := false
	defer func() {
		if !started && live != nil {
			live.Close()
		}
	}()

	// Sinks
	var sinks []transport.Sink
	var mon *tui.Monitor
	if opts.TUI {
		mon = tui.NewMonitor(fmt.Sprintf("%s %s", build.Get().Name, opts.Command), tea.WithAltScreen())
		sinks = append(sinks, mon)
	} else if cfg.Transport.Log {
		sinks = append(sinks, transport.NewLoggingSink())
	}

	if ws := cfg.Transport.WebSocket; ws.Enabled {
		sink := transport.NewWebSocketSink(ws.Address, ws.EnvelopeWidth)
		cleanup.add(sink.Close)
		if err := sink.Start(); err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		sinks = append(sinks, sink)
	}

	if u := cfg.Transport.UDP; u.Enabled {
		sender, err := udp.NewUDPSender(u.TargetAddress)
		if err != nil {
			return err
		}
		cleanup.add(sender.Close)
		pub, err := udp.NewPublisher(u.SendInterval, sender)
		if err != nil {
			return err
		}
		pub.Start()
		cleanup.add(pub.Close)
		sinks = append(sinks, pub)
	}

	var procOpts []processor.Option
	if cfg.Metrics.Enabled {
		m, err := metrics.New()
		if err != nil {
			return err
		}
		srv, err := m.Serve(cfg.Metrics.Address)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		cleanup.add(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		})
		procOpts = append(procOpts, processor.WithObserver(m))
	}
	if cfg.Detector.FullRecompute {
		procOpts = append(procOpts, processor.WithFullRecompute())
	}

	proc := processor.New(transport.Tee(sinks...), processor.Params{
		Threshold: cfg.Detector.Threshold,
		Cooldown:  cfg.Detector.Cooldown,
	}, procOpts...)

	// ==================== PROCESSING PHASE ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if offline != nil {
		err = proc.StartOffline(offline)
	} else {
		err = proc.StartLive(live)
	}
	if err != nil {
		return err
	}
	started = true

	if mon != nil {
		// Log lines would tear the alternate screen.
		log.SetOutput(io.Discard)
		go func() {
			<-proc.Done()
			mon.SessionEnded(proc.Err())
		}()
		err = mon.Run(ctx)
		log.SetOutput(os.Stderr)
	} else {
		select {
		case <-ctx.Done():
			log.Infof("Interrupted, stopping session")
		case <-proc.Done():
		}
	}

	// ==================== SHUTDOWN PHASE ====================

	proc.Stop()
	proc.Wait()

	return errors.Join(err, proc.Err())
}
