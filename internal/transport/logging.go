// SPDX-License-Identifier: MIT
package transport

import (
	"sync"

	"pcgmon/internal/feature"
	"pcgmon/internal/log"
)

// LoggingSink writes heart-rate readings to the application log. A reading
// is logged at info level when the peak count changes, and every snapshot is
// logged at debug level.
type LoggingSink struct {
	mu        sync.Mutex
	lastPeaks int
	lastMode  string
}

func NewLoggingSink() *LoggingSink {
	log.Debugf("Transport: using LoggingSink")
	return &LoggingSink{lastPeaks: -1}
}

func (s *LoggingSink) Render(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debugf("LoggingSink: #%d %s %.2fs, %d peaks, BPM %.1f",
		snap.Seq, snap.Mode, snap.Duration(), len(snap.Peaks), snap.BPM)

	if snap.Mode != s.lastMode {
		s.lastMode = snap.Mode
		s.lastPeaks = -1
	}
	if len(snap.Peaks) == s.lastPeaks {
		return
	}
	s.lastPeaks = len(snap.Peaks)

	r := feature.Summarize(snap.Peaks)
	if r.Count < 3 {
		log.Infof("BPM: %.1f (%d peaks in %.2fs)", snap.BPM, r.Count, snap.Duration())
		return
	}
	log.Infof("BPM: %.1f (%d peaks in %.2fs, interval %.3fs +/- %.3fs)",
		snap.BPM, r.Count, snap.Duration(), r.MeanInterval, r.IntervalStdDev)
}

var _ Sink = (*LoggingSink)(nil)
