package capture

import (
	"encoding/binary"
	"math"
	"sync"
)

// Meter derives a coarse amplitude level from captured fragments so a live
// visualizer can animate while recording. It treats fragment bytes as 16-bit
// little-endian PCM; for compressed containers the result is only a rough
// energy proxy, which is fine for a best-effort waveform.
type Meter struct {
	mu     sync.Mutex
	levels chan float64
	subs   []chan float64
}

// NewMeter creates a meter with a small buffered feed. Publishing never
// blocks: when a consumer falls behind, samples are dropped.
func NewMeter() *Meter {
	return &Meter{levels: make(chan float64, 32)}
}

// Levels returns the current primary feed. Reset closes it and starts a
// fresh one, so a blocked reader is released at the end of every turn and
// must call Levels again for the next.
func (m *Meter) Levels() <-chan float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels
}

// Subscribe registers an additional consumer (the websocket feed). The
// returned channel is closed on Reset.
func (m *Meter) Subscribe() <-chan float64 {
	ch := make(chan float64, 32)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Sample computes the RMS amplitude of one fragment, normalized to 0..1, and
// publishes it to all consumers without blocking.
func (m *Meter) Sample(chunk []byte) {
	level := rms16(chunk)
	// Sends stay under the lock so Reset cannot close a channel mid-send.
	// They never block, so the lock is held only briefly.
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case m.levels <- level:
	default:
	}
	for _, ch := range m.subs {
		select {
		case ch <- level:
		default:
		}
	}
}

// Reset ends the turn: the primary feed is closed and replaced, subscriber
// channels are closed.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.levels)
	m.levels = make(chan float64, 32)
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}

func rms16(chunk []byte) float64 {
	n := len(chunk) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(chunk[2*i:]))
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}
