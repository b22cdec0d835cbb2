// SPDX-License-Identifier: MIT
/*
Package processor implements the signal processor: it owns one session at a
time, pumps a sample source on a dedicated goroutine, runs peak detection and
heart-rate estimation over the accumulated buffer, and publishes immutable
snapshots to a sink.

State machine:

	Idle --StartLive--> RunningLive --Stop / EOF / read error--> Idle
	Idle --StartOffline--> RunningOffline --done / Stop / read error--> Idle

Concurrency:
  - Exactly one worker goroutine per session; it is the only writer of the
    accumulated buffer and the only caller of Sink.Render.
  - Snapshots carry copies of the buffer and the peak list, so a sink can
    hold them while the worker keeps appending.
  - Stop only cancels the session context. The worker notices after the
    pending read returns; a source that never returns delays shutdown.
*/
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"pcgmon/internal/feature"
	"pcgmon/internal/log"
	"pcgmon/internal/source"
	"pcgmon/internal/transport"
)

var (
	// ErrSessionActive is returned when a session is started while another
	// one is still running.
	ErrSessionActive = errors.New("processor: session already active")

	// ErrInvalidSource is returned for a nil source or one reporting a
	// non-positive sample rate.
	ErrInvalidSource = errors.New("processor: invalid source")
)

// State is the processor's lifecycle state.
type State int32

const (
	Idle State = iota
	RunningLive
	RunningOffline
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RunningLive:
		return "running(live)"
	case RunningOffline:
		return "running(offline)"
	default:
		return "unknown"
	}
}

// Session modes as reported in snapshots and to observers.
const (
	ModeLive    = "live"
	ModeOffline = "offline"
)

// Params are the detection parameters bound to every session.
type Params struct {
	Threshold int     // a sample is a peak candidate when |s| > Threshold
	Cooldown  float64 // minimum spacing between accepted peaks, in seconds
}

// CooldownSamples converts the cooldown to whole samples at sampleRate.
// Rounding rather than truncating keeps values like 0.29s at 100Hz at 29.
func (p Params) CooldownSamples(sampleRate float64) int {
	if p.Cooldown <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(p.Cooldown * sampleRate))
}

// Observer receives lifecycle and throughput events from the worker.
// Calls are made synchronously from the worker goroutine.
type Observer interface {
	SessionStarted(mode string)
	BatchProcessed(mode string, batchSamples, totalSamples, totalPeaks int, bpm float64)
	SessionEnded(mode string, err error)
}

// Option configures a SignalProcessor.
type Option func(*SignalProcessor)

// WithObserver attaches an Observer, typically the metrics collector.
func WithObserver(o Observer) Option {
	return func(p *SignalProcessor) { p.observer = o }
}

// WithFullRecompute makes live sessions rerun DetectPeaks over the whole
// accumulated buffer after every batch instead of feeding the incremental
// tracker. Both produce identical peaks; this mode costs O(n) per batch.
func WithFullRecompute() Option {
	return func(p *SignalProcessor) { p.fullRecompute = true }
}

// SignalProcessor runs at most one processing session at a time.
type SignalProcessor struct {
	sink          transport.Sink
	params        Params
	observer      Observer
	fullRecompute bool

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// New creates an idle processor publishing to sink.
func New(sink transport.Sink, params Params, opts ...Option) *SignalProcessor {
	if sink == nil {
		sink = transport.Discard
	}
	done := make(chan struct{})
	close(done)

	p := &SignalProcessor{
		sink:   sink,
		params: params,
		done:   done,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartLive starts polling src on a new worker goroutine. The processor takes
// ownership of src and closes it when the session ends.
func (p *SignalProcessor) StartLive(src source.LiveSource) error {
	if src == nil || !(src.SampleRate() > 0) {
		return ErrInvalidSource
	}
	ctx, err := p.begin(RunningLive)
	if err != nil {
		return err
	}

	log.Infof("SignalProcessor: live session started (rate %.0f Hz, threshold %d, cooldown %d samples)",
		src.SampleRate(), p.params.Threshold, p.params.CooldownSamples(src.SampleRate()))

	go func() {
		err := p.runLive(ctx, src)
		if cerr := src.Close(); cerr != nil {
			log.Warnf("SignalProcessor: closing live source: %v", cerr)
		}
		p.end(ModeLive, err)
	}()
	return nil
}

// StartOffline drains src once on a new worker goroutine, publishes a single
// snapshot and returns to Idle.
func (p *SignalProcessor) StartOffline(src source.FiniteSource) error {
	if src == nil || !(src.SampleRate() > 0) {
		return ErrInvalidSource
	}
	ctx, err := p.begin(RunningOffline)
	if err != nil {
		return err
	}

	log.Infof("SignalProcessor: offline session started (rate %.0f Hz, threshold %d, cooldown %d samples)",
		src.SampleRate(), p.params.Threshold, p.params.CooldownSamples(src.SampleRate()))

	go func() {
		p.end(ModeOffline, p.runOffline(ctx, src))
	}()
	return nil
}

// Stop requests cancellation of the running session and returns immediately.
// It is a no-op when the processor is idle and safe to call repeatedly.
func (p *SignalProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}
	log.Debugf("SignalProcessor: stop requested (%s)", p.state)
	p.cancel()
}

// State returns the current lifecycle state. After Stop it keeps reporting
// the running state until the worker has observed the cancellation.
func (p *SignalProcessor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done returns a channel closed when the current (or most recent) session
// has ended. It is already closed when no session was ever started.
func (p *SignalProcessor) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Wait blocks until the current session, if any, has ended.
func (p *SignalProcessor) Wait() {
	<-p.Done()
}

// Err returns the error that ended the most recent session, or nil when it
// ended by Stop, end of input, or is still running.
func (p *SignalProcessor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *SignalProcessor) begin(state State) (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Idle {
		return nil, ErrSessionActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.state = state
	p.cancel = cancel
	p.done = make(chan struct{})
	p.lastErr = nil

	if p.observer != nil {
		p.observer.SessionStarted(modeOf(state))
	}
	return ctx, nil
}

func (p *SignalProcessor) end(mode string, err error) {
	if err != nil {
		log.Errorf("SignalProcessor: %s session failed: %v", mode, err)
	} else {
		log.Infof("SignalProcessor: %s session ended", mode)
	}
	if p.observer != nil {
		p.observer.SessionEnded(mode, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel()
	p.cancel = nil
	p.state = Idle
	p.lastErr = err
	close(p.done)
}

func (p *SignalProcessor) runLive(ctx context.Context, src source.LiveSource) error {
	rate := src.SampleRate()
	cooldown := p.params.CooldownSamples(rate)
	tracker := feature.NewPeakTracker(p.params.Threshold, cooldown, rate)

	var buffer []int16
	var seq uint64
	for {
		batch, err := src.ReadBatch(ctx)

		// Cancellation is only observed between reads.
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, source.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read batch: %w", err)
		}
		if len(batch) == 0 {
			continue
		}

		buffer = append(buffer, batch...)

		var peaks []float64
		if p.fullRecompute {
			peaks = feature.DetectPeaks(buffer, p.params.Threshold, cooldown, rate)
		} else {
			tracker.Feed(batch)
			peaks = tracker.Peaks()
		}

		seq++
		p.publish(transport.Snapshot{
			Seq:        seq,
			Mode:       ModeLive,
			SampleRate: rate,
			Samples:    slices.Clone(buffer),
			Peaks:      peaks,
			BPM:        feature.CalculateBPM(peaks),
		}, len(batch))
	}
}

func (p *SignalProcessor) runOffline(ctx context.Context, src source.FiniteSource) error {
	rate := src.SampleRate()

	samples, err := src.ReadAll(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read all: %w", err)
	}

	// The accumulated buffer is replaced wholesale by the decoded input.
	buffer := slices.Clone(samples)
	peaks := feature.DetectPeaks(buffer, p.params.Threshold, p.params.CooldownSamples(rate), rate)

	p.publish(transport.Snapshot{
		Seq:        1,
		Mode:       ModeOffline,
		SampleRate: rate,
		Samples:    buffer,
		Peaks:      peaks,
		BPM:        feature.CalculateBPM(peaks),
	}, len(buffer))
	return nil
}

func (p *SignalProcessor) publish(snap transport.Snapshot, batchSamples int) {
	log.Debugf("SignalProcessor: publish #%d (%d samples, %d peaks, %.1f BPM)",
		snap.Seq, len(snap.Samples), len(snap.Peaks), snap.BPM)

	if p.observer != nil {
		p.observer.BatchProcessed(snap.Mode, batchSamples, len(snap.Samples), len(snap.Peaks), snap.BPM)
	}
	p.sink.Render(snap)
}

func modeOf(state State) string {
	if state == RunningOffline {
		return ModeOffline
	}
	return ModeLive
}
