package multiplayer

import (
	"github.com/QYUbit/Replica/pkg/replication"
	"github.com/QYUbit/Replica/pkg/transport"
)

// ConnectionData is the record a System attaches to each live connection.
// It owns the connection's replication manager.
type ConnectionData struct {
	conn    transport.Connection
	manager *replication.Manager

	temporaryUserID uint64
	ticket          string
	joined          bool

	accepted bool
	hostID   uint64

	released bool
}

// NewConnectionData creates a record for conn. Attach it with conn.SetUserData.
func NewConnectionData(conn transport.Connection, s *System) *ConnectionData {
	return &ConnectionData{
		conn:    conn,
		manager: replication.NewManager(conn, s.logger, s.reportValidation),
	}
}

func (d *ConnectionData) Connection() transport.Connection {
	return d.conn
}

func (d *ConnectionData) ReplicationManager() *replication.Manager {
	return d.manager
}

// Ticket returns the join ticket presented by the remote peer.
func (d *ConnectionData) Ticket() string {
	return d.ticket
}

func (d *ConnectionData) TemporaryUserID() uint64 {
	return d.temporaryUserID
}

// IsJoined reports whether the peer completed the Connect handshake.
func (d *ConnectionData) IsJoined() bool {
	return d.joined
}

// IsAccepted reports whether the host accepted our Connect.
func (d *ConnectionData) IsAccepted() bool {
	return d.accepted
}

func (d *ConnectionData) HostID() uint64 {
	return d.hostID
}

func (d *ConnectionData) Released() bool {
	return d.released
}

// release tears down the replication manager, window first.
func (d *ConnectionData) release() {
	if d.released {
		return
	}
	d.manager.Teardown()
	d.released = true
	d.conn = nil
}

// tombstone marks a connection whose disconnect has been processed.
type tombstone struct{}

var disconnected = &tombstone{}

func connectionData(conn transport.Connection) (*ConnectionData, bool) {
	d, ok := conn.UserData().(*ConnectionData)
	if !ok || d == nil || d.released {
		return nil, false
	}
	return d, true
}
