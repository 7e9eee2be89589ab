package replication

import (
	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/rlog"
	"github.com/QYUbit/Replica/pkg/transport"
)

// Manager owns at most one Window for a connection.
type Manager struct {
	conn     transport.Connection
	window   Window
	logger   rlog.Logger
	reporter Reporter
	released bool
}

func NewManager(conn transport.Connection, logger rlog.Logger, reporter Reporter) *Manager {
	return &Manager{
		conn:     conn,
		logger:   rlog.OrNop(logger),
		reporter: reporter,
	}
}

// SetReplicationWindow hands w to the manager. A previously attached window is
// released first.
func (m *Manager) SetReplicationWindow(w Window) {
	if m.released {
		m.logger.Warn("window attached to released replication manager", "connection", m.connectionID())
		if w != nil {
			w.Release()
		}
		return
	}

	if m.window != nil && m.window != w {
		m.window.Release()
	}
	m.window = w
	if w != nil {
		w.SetReporter(m.report)
	}
}

// Window returns the attached window or nil.
func (m *Manager) Window() Window {
	return m.window
}

// ControlledEntity returns the attached window's controlled entity, if any.
func (m *Manager) ControlledEntity() entity.Handle {
	if m.window == nil {
		return entity.Handle{}
	}
	return m.window.ControlledEntity()
}

// Update consults the window for the entities to replicate this round.
func (m *Manager) Update() []entity.Handle {
	if m.window == nil {
		return nil
	}
	return m.window.ReplicationSet()
}

// Teardown flushes and releases the window, then the manager itself. Validation
// failures are reported and never stop the teardown.
func (m *Manager) Teardown() {
	if m.released {
		return
	}

	if w := m.window; w != nil {
		// final flush for the departing connection
		m.Update()

		if !w.ControlledEntity().Exists() {
			m.report(&ValidationError{Stage: StageTeardown, Connection: m.connectionID(), Entity: w.ControlledEntity()})
		}

		w.Release()
		m.window = nil
	}

	m.released = true
	m.conn = nil
}

// Released reports whether Teardown has run.
func (m *Manager) Released() bool {
	return m.released
}

func (m *Manager) report(err error) {
	m.logger.Error("replication validation failed", "connection", m.connectionID(), "error", err)
	if m.reporter != nil {
		m.reporter(err)
	}
}

func (m *Manager) connectionID() transport.ConnectionID {
	if m.conn == nil {
		return transport.InvalidConnectionID
	}
	return m.conn.ID()
}
