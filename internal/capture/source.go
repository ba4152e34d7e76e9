// Package capture supplies the ordered (opcode, payload) stream the live
// meter consumes. The raw network capture lives outside this module; the
// sources here feed the meter from memory or from recorded dumps.
package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when sending on a closed source.
var ErrClosed = errors.New("capture source closed")

// Packet is one captured notify message.
type Packet struct {
	Opcode Opcode `json:"opcode"`
	Data   []byte `json:"data"`
}

// Source delivers packets in arrival order and accepts restart requests.
type Source interface {
	Packets() <-chan Packet
	RequestRestart()
}

// ChannelSource is an in-memory Source fed by Send.
type ChannelSource struct {
	ch        chan Packet
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	restarts  atomic.Int64
	onRestart func()
}

// NewChannelSource creates a source with the given queue capacity. onRestart
// may be nil.
func NewChannelSource(capacity int, onRestart func()) *ChannelSource {
	return &ChannelSource{
		ch:        make(chan Packet, capacity),
		onRestart: onRestart,
	}
}

func (s *ChannelSource) Packets() <-chan Packet {
	return s.ch
}

// Send enqueues p, blocking while the queue is full.
func (s *ChannelSource) Send(ctx context.Context, p Packet) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream after queued packets are consumed.
func (s *ChannelSource) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *ChannelSource) RequestRestart() {
	s.restarts.Add(1)
	if s.onRestart != nil {
		s.onRestart()
	}
}

// Restarts returns how many restarts were requested.
func (s *ChannelSource) Restarts() int64 {
	return s.restarts.Load()
}
