// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pcgmon/internal/feature"
	"pcgmon/internal/log"
)

const (
	// DefaultEnvelopeWidth is the number of envelope columns per frame.
	DefaultEnvelopeWidth = 512

	wsWriteTimeout  = 2 * time.Second
	wsBroadcastSize = 64
)

// Frame is the JSON message sent to WebSocket clients for every snapshot.
type Frame struct {
	Type           string    `json:"type"`
	Seq            uint64    `json:"seq"`
	Mode           string    `json:"mode"`
	SampleRate     float64   `json:"sample_rate"`
	SampleCount    int       `json:"sample_count"`
	Duration       float64   `json:"duration"`
	BPM            float64   `json:"bpm"`
	Peaks          []float64 `json:"peaks"`
	MeanInterval   float64   `json:"mean_interval"`
	IntervalStdDev float64   `json:"interval_stddev"`
	Envelope       []Extent  `json:"envelope"`
}

// NewFrame reduces snap to a Frame with an envelope of at most width columns.
func NewFrame(snap Snapshot, width int) Frame {
	r := feature.Summarize(snap.Peaks)
	peaks := snap.Peaks
	if peaks == nil {
		peaks = []float64{}
	}
	env := Envelope(snap.Samples, width)
	if env == nil {
		env = []Extent{}
	}
	return Frame{
		Type:           "frame",
		Seq:            snap.Seq,
		Mode:           snap.Mode,
		SampleRate:     snap.SampleRate,
		SampleCount:    len(snap.Samples),
		Duration:       snap.Duration(),
		BPM:            snap.BPM,
		Peaks:          peaks,
		MeanInterval:   r.MeanInterval,
		IntervalStdDev: r.IntervalStdDev,
		Envelope:       env,
	}
}

// WebSocketSink serves snapshots as JSON frames on /ws. Frames are queued to
// a broadcaster goroutine and dropped when the queue is full, so Render never
// blocks the processor. A newly connected client immediately receives the
// most recent frame.
type WebSocketSink struct {
	addr     string
	width    int
	upgrader websocket.Upgrader
	server   *http.Server

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
	last      *Frame

	broadcast chan Frame
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketSink creates a sink that will listen on addr once Start is
// called. The broadcaster runs until Close.
func NewWebSocketSink(addr string, width int) *WebSocketSink {
	if width <= 0 {
		width = DefaultEnvelopeWidth
	}
	s := &WebSocketSink{
		addr:  addr,
		width: width,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Frame, wsBroadcastSize),
		done:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.handleBroadcasts()
	return s
}

// Handler returns the HTTP handler serving the /ws endpoint.
func (s *WebSocketSink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start binds addr and serves in the background. Bind errors are returned
// synchronously.
func (s *WebSocketSink) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("WebSocketSink: listening on ws://%s/ws", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocketSink: server error: %v", err)
		}
	}()
	return nil
}

func (s *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketSink: upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	select {
	case <-s.done:
		s.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	if s.last != nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(s.last); err != nil {
			s.clientsMu.Unlock()
			conn.Close()
			return
		}
	}
	s.clients[conn] = struct{}{}
	count := len(s.clients)
	s.wg.Add(1)
	s.clientsMu.Unlock()
	log.Infof("WebSocketSink: client connected from %s, total: %d", r.RemoteAddr, count)

	// Clients never send; the read only detects disconnects.
	go func() {
		defer s.wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		s.drop(conn)
	}()
}

func (s *WebSocketSink) handleBroadcasts() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.broadcast:
			s.clientsMu.Lock()
			s.last = &frame
			for conn := range s.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(frame); err != nil {
					log.Warnf("WebSocketSink: error sending to client: %v", err)
					conn.Close()
					delete(s.clients, conn)
				}
			}
			s.clientsMu.Unlock()
		}
	}
}

func (s *WebSocketSink) drop(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	conn.Close()
	if ok {
		log.Infof("WebSocketSink: client disconnected, total: %d", count)
	}
}

// Render queues snap for broadcast, dropping it if the queue is full.
func (s *WebSocketSink) Render(snap Snapshot) {
	frame := NewFrame(snap, s.width)
	select {
	case <-s.done:
	case s.broadcast <- frame:
	default:
		log.Debugf("WebSocketSink: broadcast queue full, dropped frame #%d", snap.Seq)
	}
}

// ClientCount returns the number of connected clients.
func (s *WebSocketSink) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Close disconnects all clients, stops the broadcaster and shuts down the
// server if one was started.
func (s *WebSocketSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		log.Debugf("WebSocketSink: closing")
		close(s.done)

		s.clientsMu.Lock()
		for conn := range s.clients {
			conn.Close()
		}
		clear(s.clients)
		s.clientsMu.Unlock()

		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = s.server.Shutdown(ctx)
		}
		s.wg.Wait()
	})
	return err
}

var _ Sink = (*WebSocketSink)(nil)
