// Package event provides typed notification channels with ordered, synchronous,
// multi-subscriber delivery.
//
// An Event is not safe for concurrent use. Owners signal and connect from a
// single goroutine.
package event

import "slices"

// Event is a notification channel carrying values of type T.
type Event[T any] struct {
	handlers []*Handler[T]
}

// Handler is a subscription to at most one Event at a time.
type Handler[T any] struct {
	fn    func(T)
	event *Event[T]
}

// NewHandler creates a disconnected handler that calls fn on every signal.
func NewHandler[T any](fn func(T)) *Handler[T] {
	return &Handler[T]{fn: fn}
}

// Connect subscribes h to e. A handler connected elsewhere is moved.
func (h *Handler[T]) Connect(e *Event[T]) {
	if h.event == e {
		return
	}
	h.Disconnect()
	e.handlers = append(e.handlers, h)
	h.event = e
}

// Disconnect removes h from its event. Safe to call on a disconnected handler.
func (h *Handler[T]) Disconnect() {
	if h.event == nil {
		return
	}
	h.event.remove(h)
	h.event = nil
}

// IsConnected reports whether h is subscribed to an event.
func (h *Handler[T]) IsConnected() bool {
	return h.event != nil
}

// Subscribe is shorthand for NewHandler(fn).Connect(e).
func (e *Event[T]) Subscribe(fn func(T)) *Handler[T] {
	h := NewHandler(fn)
	h.Connect(e)
	return h
}

// Signal delivers v to every handler in subscription order on the caller's
// goroutine. Handlers connected during delivery are first called on the next signal.
func (e *Event[T]) Signal(v T) {
	if len(e.handlers) == 0 {
		return
	}
	for _, h := range slices.Clone(e.handlers) {
		if h.event != e {
			// disconnected by an earlier handler
			continue
		}
		h.fn(v)
	}
}

// HasHandlers reports whether any handler is connected.
func (e *Event[T]) HasHandlers() bool {
	return len(e.handlers) > 0
}

// HandlerCount returns the number of connected handlers.
func (e *Event[T]) HandlerCount() int {
	return len(e.handlers)
}

// DisconnectAll removes every handler.
func (e *Event[T]) DisconnectAll() {
	for _, h := range e.handlers {
		h.event = nil
	}
	e.handlers = nil
}

func (e *Event[T]) remove(h *Handler[T]) {
	if i := slices.Index(e.handlers, h); i >= 0 {
		e.handlers = slices.Delete(e.handlers, i, i+1)
	}
}
