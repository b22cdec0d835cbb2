// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"pcgmon/internal/log"
	"pcgmon/internal/transport"
)

// MaxPeaksPerPacket bounds the peak times carried by one packet. Only the
// most recent peaks are sent.
const MaxPeaksPerPacket = 64

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 100 * time.Millisecond

// headerSize is seq + timestamp + bpm + sample count + peak count.
const headerSize = 4 + 8 + 4 + 4 + 2

var ErrShortPacket = errors.New("udp: packet too short")

// Sender is the datagram writer used by Publisher; *UDPSender satisfies it.
type Sender interface {
	Send(data []byte) error
}

/*
Packet layout (BigEndian):

	|<- 4 ->|<--- 8 --->|<- 4 ->|<--- 4 --->|<- 2 ->|<----- M * 4 ----->|
	+-------+-----------+-------+-----------+-------+-------------------+
	|  Seq  | Timestamp |  BPM  |  Samples  | Peaks |  Recent peak times |
	|uint32 |  int64 ns |float32|  uint32   |uint16 |  M x float32 (s)   |
	+-------+-----------+-------+-----------+-------+-------------------+

Peaks is the total peak count of the session (saturating at 65535);
M = min(Peaks, MaxPeaksPerPacket) and the times are the last M peaks in
ascending order.
*/
type Packet struct {
	Seq         uint32
	Timestamp   int64
	BPM         float32
	SampleCount uint32
	PeakCount   uint16
	Peaks       []float32
}

func (p Packet) encode(buf *bytes.Buffer) error {
	for _, v := range []any{p.Seq, p.Timestamp, p.BPM, p.SampleCount, p.PeakCount, p.Peaks} {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// MarshalBinary encodes p in wire format.
func (p Packet) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParsePacket decodes a packet produced by Publisher.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Seq:         binary.BigEndian.Uint32(data[0:4]),
		Timestamp:   int64(binary.BigEndian.Uint64(data[4:12])),
		BPM:         math.Float32frombits(binary.BigEndian.Uint32(data[12:16])),
		SampleCount: binary.BigEndian.Uint32(data[16:20]),
		PeakCount:   binary.BigEndian.Uint16(data[20:22]),
	}

	m := min(int(p.PeakCount), MaxPeaksPerPacket)
	body := data[headerSize:]
	if len(body) < m*4 {
		return Packet{}, fmt.Errorf("%w: want %d peak times, have %d bytes", ErrShortPacket, m, len(body))
	}
	p.Peaks = make([]float32, m)
	for i := range p.Peaks {
		p.Peaks[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
	}
	return p, nil
}

// Publisher is a Sink that keeps the latest snapshot summary and sends it as
// a Packet on a fixed interval between Start and Stop. Nothing is sent until
// the first snapshot arrives.
type Publisher struct {
	sender   Sender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan

	latestMu sync.Mutex
	latest   Packet
	have     bool

	sequenceNum  uint32
	peakBuffer   []float32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a publisher sending through sender every interval.
func NewPublisher(interval time.Duration, sender Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		log.Warnf("UDPPublisher: invalid interval, defaulting to %s", interval)
	}
	log.Infof("UDPPublisher: initializing (interval %s)", interval)

	return &Publisher{
		sender:       sender,
		interval:     interval,
		latest:       Packet{Peaks: make([]float32, 0, MaxPeaksPerPacket)},
		peakBuffer:   make([]float32, 0, MaxPeaksPerPacket),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Render records the summary of snap for the next tick.
func (p *Publisher) Render(snap transport.Snapshot) {
	recent := snap.Peaks[max(0, len(snap.Peaks)-MaxPeaksPerPacket):]

	p.latestMu.Lock()
	defer p.latestMu.Unlock()

	p.latest.BPM = float32(snap.BPM)
	p.latest.SampleCount = uint32(min(uint64(len(snap.Samples)), math.MaxUint32))
	p.latest.PeakCount = uint16(min(len(snap.Peaks), math.MaxUint16))
	p.latest.Peaks = p.latest.Peaks[:0]
	for _, t := range recent {
		p.latest.Peaks = append(p.latest.Peaks, float32(t))
	}
	p.have = true
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("UDPPublisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop terminates the publishing goroutine and waits for it to exit. Safe to
// call more than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("UDPPublisher: stopped after %d packets", p.sequenceNum)
	return nil
}

func (p *Publisher) buildAndSendPacket() {
	p.latestMu.Lock()
	if !p.have {
		p.latestMu.Unlock()
		return
	}
	pkt := p.latest
	p.peakBuffer = append(p.peakBuffer[:0], p.latest.Peaks...)
	p.latestMu.Unlock()

	p.sequenceNum++
	pkt.Seq = p.sequenceNum
	pkt.Timestamp = time.Now().UnixNano()
	pkt.Peaks = p.peakBuffer

	p.packetBuffer.Reset()
	if err := pkt.encode(p.packetBuffer); err != nil {
		log.Errorf("UDPPublisher: error packing packet: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		log.Debugf("UDPPublisher: sent packet %d (%d bytes)", pkt.Seq, p.packetBuffer.Len())
	}
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ transport.Sink = (*Publisher)(nil)
