// Package replication records which entities each connection may see and
// validates the entity references those records hold.
package replication

import (
	"slices"

	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/transport"
)

// Window is the visibility and control boundary between one connection and the
// entities relevant to it.
type Window interface {
	// ControlledEntity returns the entity the connection primarily controls.
	// The handle may be absent.
	ControlledEntity() entity.Handle

	// Connection returns the owning connection. The window never owns it.
	Connection() transport.Connection

	// ReplicationSet returns the live entities to replicate to the connection.
	ReplicationSet() []entity.Handle

	AddEntity(h entity.Handle) error
	RemoveEntity(id entity.ID)
	IsInWindow(id entity.ID) bool

	// Release drops every reference held by the window. Later calls are no-ops.
	Release()
	IsReleased() bool

	// SetReporter routes validation failures detected by the window.
	SetReporter(r Reporter)
}

// ServerToClientWindow is the window a host keeps for each connected client.
type ServerToClientWindow struct {
	controlled entity.Handle
	conn       transport.Connection
	visible    map[entity.ID]entity.Handle
	order      []entity.ID
	reporter   Reporter
	released   bool
}

// NewServerToClientWindow creates a window for conn. An absent controlled handle
// is accepted here and reported whenever the window is used.
func NewServerToClientWindow(controlled entity.Handle, conn transport.Connection) *ServerToClientWindow {
	return &ServerToClientWindow{
		controlled: controlled,
		conn:       conn,
		visible:    make(map[entity.ID]entity.Handle),
	}
}

func (w *ServerToClientWindow) ControlledEntity() entity.Handle {
	return w.controlled
}

func (w *ServerToClientWindow) Connection() transport.Connection {
	return w.conn
}

func (w *ServerToClientWindow) ReplicationSet() []entity.Handle {
	if w.released {
		return nil
	}

	out := make([]entity.Handle, 0, len(w.order)+1)

	if w.controlled.Exists() {
		out = append(out, w.controlled)
	} else {
		w.report(&ValidationError{Stage: StageWindow, Connection: w.connectionID(), Entity: w.controlled})
	}

	// stale entries leave the window here
	kept := w.order[:0]
	for _, id := range w.order {
		h := w.visible[id]
		if !h.Exists() {
			delete(w.visible, id)
			continue
		}
		kept = append(kept, id)
		if id != w.controlled.ID() {
			out = append(out, h)
		}
	}
	w.order = kept

	return out
}

func (w *ServerToClientWindow) AddEntity(h entity.Handle) error {
	if w.released {
		return ErrWindowReleased
	}
	if !h.Exists() {
		return ErrEntityNotFound
	}
	if _, ok := w.visible[h.ID()]; !ok {
		w.order = append(w.order, h.ID())
	}
	w.visible[h.ID()] = h
	return nil
}

func (w *ServerToClientWindow) RemoveEntity(id entity.ID) {
	if _, ok := w.visible[id]; !ok {
		return
	}
	delete(w.visible, id)
	if i := slices.Index(w.order, id); i >= 0 {
		w.order = slices.Delete(w.order, i, i+1)
	}
}

func (w *ServerToClientWindow) IsInWindow(id entity.ID) bool {
	_, ok := w.visible[id]
	return ok
}

func (w *ServerToClientWindow) Release() {
	if w.released {
		return
	}
	w.released = true
	w.visible = nil
	w.order = nil
	w.controlled = entity.Handle{}
	w.conn = nil
}

func (w *ServerToClientWindow) IsReleased() bool {
	return w.released
}

func (w *ServerToClientWindow) SetReporter(r Reporter) {
	w.reporter = r
}

func (w *ServerToClientWindow) report(err error) {
	if w.reporter != nil {
		w.reporter(err)
	}
}

func (w *ServerToClientWindow) connectionID() transport.ConnectionID {
	if w.conn == nil {
		return transport.InvalidConnectionID
	}
	return w.conn.ID()
}
