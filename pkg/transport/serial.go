package transport

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// SerialListener funnels callbacks from concurrent transport goroutines onto the
// single goroutine running Run, preserving arrival order.
type SerialListener struct {
	target Listener

	mu      sync.Mutex
	pending *queue.Queue
	wake    chan struct{}
}

func NewSerialListener(target Listener) *SerialListener {
	return &SerialListener{
		target:  target,
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
	}
}

func (s *SerialListener) OnConnect(conn Connection) {
	s.Do(func() { s.target.OnConnect(conn) })
}

func (s *SerialListener) OnDisconnect(conn Connection, reason DisconnectReason, endpoint TerminationEndpoint) {
	s.Do(func() { s.target.OnDisconnect(conn, reason, endpoint) })
}

func (s *SerialListener) OnPacket(conn Connection, header PacketHeader, payload []byte) {
	s.Do(func() { s.target.OnPacket(conn, header, payload) })
}

// Do queues fn to run on the Run goroutine.
func (s *SerialListener) Do(fn func()) {
	s.mu.Lock()
	s.pending.Add(fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued callbacks.
func (s *SerialListener) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Length()
}

// Run executes queued callbacks until ctx is done. Callbacks still queued when
// ctx ends are drained before Run returns.
func (s *SerialListener) Run(ctx context.Context) error {
	for {
		s.Drain()

		select {
		case <-ctx.Done():
			s.Drain()
			return ctx.Err()
		case <-s.wake:
		}
	}
}

// Drain runs every queued callback on the calling goroutine.
func (s *SerialListener) Drain() {
	for {
		s.mu.Lock()
		if s.pending.Length() == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.pending.Remove().(func())
		s.mu.Unlock()

		fn()
	}
}
