// Package transport serves as a network abstraction at (not necessarily) transport level.
//
// Connections are owned by a NetworkInterface. Upper layers attach their own
// per-connection state through the user-data slot and receive every lifecycle
// callback through a Listener.
package transport

import (
	"context"
	"errors"
	"math"
	"net"
)

type ConnectionID uint32

const InvalidConnectionID ConnectionID = math.MaxUint32

// ConnectionRole describes the remote endpoint of a connection.
//
// RoleConnector means the remote peer initiated the connection, which is what a
// host sees for each of its clients. RoleAcceptor means the remote endpoint is
// the listener, which is what a client sees for its host.
type ConnectionRole uint8

const (
	RoleConnector ConnectionRole = iota
	RoleAcceptor
)

func (r ConnectionRole) String() string {
	if r == RoleAcceptor {
		return "Acceptor"
	}
	return "Connector"
}

type DisconnectReason uint8

const (
	ReasonNone DisconnectReason = iota
	ReasonTimeout
	ReasonTransportError
	ReasonTerminatedByClient
	ReasonTerminatedByServer
	ReasonServerNoLevelLoaded
	ReasonVersionMismatch
	ReasonShutdown
)

var disconnectReasonNames = [...]string{
	ReasonNone:                "None",
	ReasonTimeout:             "Timeout",
	ReasonTransportError:      "TransportError",
	ReasonTerminatedByClient:  "TerminatedByClient",
	ReasonTerminatedByServer:  "TerminatedByServer",
	ReasonServerNoLevelLoaded: "ServerNoLevelLoaded",
	ReasonVersionMismatch:     "VersionMismatch",
	ReasonShutdown:            "Shutdown",
}

func (r DisconnectReason) String() string {
	if int(r) < len(disconnectReasonNames) {
		return disconnectReasonNames[r]
	}
	return "Unknown"
}

// TerminationEndpoint tells which side closed a connection.
type TerminationEndpoint uint8

const (
	EndpointLocal TerminationEndpoint = iota
	EndpointRemote
)

func (e TerminationEndpoint) String() string {
	if e == EndpointRemote {
		return "Remote"
	}
	return "Local"
}

// PacketHeader accompanies every inbound packet.
type PacketHeader struct {
	Sequence uint32
	Reliable bool
}

var (
	ErrInterfaceClosed    = errors.New("network interface is closed")
	ErrAlreadyListening   = errors.New("network interface is already listening")
	ErrAddressInUse       = errors.New("address already in use")
	ErrNoListener         = errors.New("no listener at address")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionClosed   = errors.New("connection is closed")
)

// ==================================================================
// Connection
// ==================================================================

// Connection is a transport-owned handle to one remote endpoint.
type Connection interface {
	ID() ConnectionID
	Role() ConnectionRole
	RemoteAddr() net.Addr

	// Send queues data for the remote endpoint.
	Send(data []byte, reliable bool) error

	// UserData returns the value attached by the upper layer.
	UserData() any
	SetUserData(v any)
}

// BaseConnection implements the identity and user-data parts of Connection.
// Transports embed it and add Send.
type BaseConnection struct {
	id       ConnectionID
	role     ConnectionRole
	remote   net.Addr
	userData any
}

func NewBaseConnection(id ConnectionID, role ConnectionRole, remote net.Addr) BaseConnection {
	if remote == nil {
		remote = NoAddr{}
	}
	return BaseConnection{id: id, role: role, remote: remote}
}

func (c *BaseConnection) ID() ConnectionID     { return c.id }
func (c *BaseConnection) Role() ConnectionRole { return c.role }
func (c *BaseConnection) RemoteAddr() net.Addr { return c.remote }
func (c *BaseConnection) UserData() any        { return c.userData }
func (c *BaseConnection) SetUserData(v any)    { c.userData = v }

// NoAddr stands in for an unknown address.
type NoAddr struct{}

func (NoAddr) Network() string { return "none" }
func (NoAddr) String() string  { return "uninitialized" }

// ==================================================================
// Interfaces
// ==================================================================

// Listener receives the lifecycle callbacks of a NetworkInterface. Callbacks are
// never invoked concurrently.
type Listener interface {
	OnConnect(conn Connection)
	OnDisconnect(conn Connection, reason DisconnectReason, endpoint TerminationEndpoint)
	OnPacket(conn Connection, header PacketHeader, payload []byte)
}

// NetworkInterface is the active transport of a session.
type NetworkInterface interface {
	Name() string
	Listen(addr string) error
	Connect(ctx context.Context, addr string) (Connection, error)
	Disconnect(id ConnectionID, reason DisconnectReason) error
	Close() error
}

// InterfaceFactory creates the network interface of a session.
type InterfaceFactory func(name string, l Listener) (NetworkInterface, error)
