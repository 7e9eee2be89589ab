package event

import (
	"slices"
	"testing"
)

func TestSignalOrder(t *testing.T) {
	var e Event[int]
	var got []string

	e.Subscribe(func(v int) { got = append(got, "a") })
	e.Subscribe(func(v int) { got = append(got, "b") })
	e.Subscribe(func(v int) { got = append(got, "c") })

	e.Signal(1)

	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Expected subscription order, got %v", got)
	}
}

func TestSignalPayload(t *testing.T) {
	var e Event[uint32]
	var sum uint32

	e.Subscribe(func(v uint32) { sum += v })
	e.Signal(10)
	e.Signal(15)

	if sum != 25 {
		t.Errorf("Expected 25, got %d", sum)
	}
}

func TestSignalWithoutHandlers(t *testing.T) {
	var e Event[string]
	e.Signal("nobody listens")
	if e.HasHandlers() {
		t.Error("Expected no handlers")
	}
}

func TestHandlerDisconnect(t *testing.T) {
	var e Event[int]
	count := 0

	h := NewHandler(func(int) { count++ })
	h.Connect(&e)
	e.Signal(0)
	h.Disconnect()
	e.Signal(0)

	if count != 1 {
		t.Errorf("Expected 1 call, got %d", count)
	}
	if h.IsConnected() {
		t.Error("Handler still connected")
	}

	// disconnecting twice is fine
	h.Disconnect()
}

func TestHandlerConnectMoves(t *testing.T) {
	var a, b Event[int]
	count := 0

	h := NewHandler(func(int) { count++ })
	h.Connect(&a)
	h.Connect(&b)
	h.Connect(&b)

	a.Signal(0)
	b.Signal(0)

	if count != 1 {
		t.Errorf("Expected 1 call, got %d", count)
	}
	if a.HandlerCount() != 0 || b.HandlerCount() != 1 {
		t.Errorf("Unexpected handler counts: a=%d b=%d", a.HandlerCount(), b.HandlerCount())
	}
}

func TestDisconnectDuringSignal(t *testing.T) {
	var e Event[int]
	var calls []string

	var second *Handler[int]
	e.Subscribe(func(int) {
		calls = append(calls, "first")
		second.Disconnect()
	})
	second = e.Subscribe(func(int) { calls = append(calls, "second") })
	e.Subscribe(func(int) { calls = append(calls, "third") })

	e.Signal(0)

	if !slices.Equal(calls, []string{"first", "third"}) {
		t.Errorf("Unexpected calls %v", calls)
	}
}

func TestConnectDuringSignal(t *testing.T) {
	var e Event[int]
	late := 0
	added := false

	e.Subscribe(func(int) {
		if !added {
			added = true
			e.Subscribe(func(int) { late++ })
		}
	})

	e.Signal(0)
	if late != 0 {
		t.Errorf("Late handler called during the signal that connected it")
	}

	e.Signal(0)
	if late != 1 {
		t.Errorf("Expected late handler to run once, got %d", late)
	}
}

func TestDisconnectAll(t *testing.T) {
	var e Event[int]
	h := e.Subscribe(func(int) { t.Error("handler called after DisconnectAll") })

	e.DisconnectAll()
	e.Signal(0)

	if h.IsConnected() {
		t.Error("Handler still connected")
	}
}
