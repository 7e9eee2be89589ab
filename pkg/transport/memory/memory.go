// Package memory implements an in-process network. Every callback runs
// synchronously on the goroutine that caused it, which makes it the transport
// of choice for tests and single-process hosts.
package memory

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/QYUbit/Replica/pkg/transport"
)

// Network connects in-process interfaces by listen address.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*Interface
	nextID    transport.ConnectionID
}

func NewNetwork() *Network {
	return &Network{
		listeners: make(map[string]*Interface),
	}
}

// Factory returns a transport.InterfaceFactory creating interfaces on n.
func (n *Network) Factory() transport.InterfaceFactory {
	return func(name string, l transport.Listener) (transport.NetworkInterface, error) {
		return n.NewInterface(name, l), nil
	}
}

func (n *Network) NewInterface(name string, l transport.Listener) *Interface {
	return &Interface{
		name:     name,
		network:  n,
		listener: l,
		conns:    make(map[transport.ConnectionID]*Conn),
	}
}

func (n *Network) allocID() transport.ConnectionID {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	if n.nextID == transport.InvalidConnectionID {
		n.nextID = 1
	}
	return n.nextID
}

func (n *Network) lookup(addr string) (*Interface, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	i, ok := n.listeners[addr]
	return i, ok
}

// ==================================================================
// Interface
// ==================================================================

// Interface implements transport.NetworkInterface on a Network.
type Interface struct {
	name     string
	network  *Network
	listener transport.Listener

	addr   string
	conns  map[transport.ConnectionID]*Conn
	closed bool
}

func (i *Interface) Name() string {
	return i.name
}

func (i *Interface) Listen(addr string) error {
	if i.closed {
		return transport.ErrInterfaceClosed
	}
	if i.addr != "" {
		return transport.ErrAlreadyListening
	}

	i.network.mu.Lock()
	defer i.network.mu.Unlock()
	if _, taken := i.network.listeners[addr]; taken {
		return fmt.Errorf("%w %s", transport.ErrAddressInUse, addr)
	}
	i.network.listeners[addr] = i
	i.addr = addr
	return nil
}

// Connect links a new connection pair with the interface listening at addr.
// The host sees the new connection first.
func (i *Interface) Connect(ctx context.Context, addr string) (transport.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i.closed {
		return nil, transport.ErrInterfaceClosed
	}

	remote, ok := i.network.lookup(addr)
	if !ok || remote.closed {
		return nil, fmt.Errorf("%w %s", transport.ErrNoListener, addr)
	}

	local := &Conn{
		BaseConnection: transport.NewBaseConnection(i.network.allocID(), transport.RoleAcceptor, Addr(addr)),
		iface:          i,
	}
	accepted := &Conn{
		BaseConnection: transport.NewBaseConnection(i.network.allocID(), transport.RoleConnector, Addr(i.name)),
		iface:          remote,
	}
	local.peer = accepted
	accepted.peer = local

	i.conns[local.ID()] = local
	remote.conns[accepted.ID()] = accepted

	remote.listener.OnConnect(accepted)
	if local.open() {
		i.listener.OnConnect(local)
	}

	return local, nil
}

// Disconnect closes the connection with the given id on both ends.
func (i *Interface) Disconnect(id transport.ConnectionID, reason transport.DisconnectReason) error {
	c, ok := i.conns[id]
	if !ok {
		return fmt.Errorf("%w %d", transport.ErrConnectionNotFound, id)
	}
	c.terminate(reason)
	return nil
}

// Close disconnects every connection and stops listening.
func (i *Interface) Close() error {
	if i.closed {
		return transport.ErrInterfaceClosed
	}

	for _, c := range i.connections() {
		c.terminate(transport.ReasonShutdown)
	}

	if i.addr != "" {
		i.network.mu.Lock()
		delete(i.network.listeners, i.addr)
		i.network.mu.Unlock()
	}
	i.closed = true
	return nil
}

// ConnectionCount returns the number of open connections.
func (i *Interface) ConnectionCount() int {
	return len(i.conns)
}

func (i *Interface) connections() []*Conn {
	out := make([]*Conn, 0, len(i.conns))
	for _, c := range i.conns {
		out = append(out, c)
	}
	return out
}

// ==================================================================
// Conn
// ==================================================================

// Conn is one end of an in-process connection.
type Conn struct {
	transport.BaseConnection

	iface *Interface
	peer  *Conn
	seq   uint32
}

func (c *Conn) open() bool {
	_, ok := c.iface.conns[c.ID()]
	return ok
}

// Send delivers data to the peer's listener before returning.
func (c *Conn) Send(data []byte, reliable bool) error {
	if !c.open() || !c.peer.open() {
		return transport.ErrConnectionClosed
	}

	c.seq++
	payload := append([]byte(nil), data...)
	c.peer.iface.listener.OnPacket(c.peer, transport.PacketHeader{Sequence: c.seq, Reliable: reliable}, payload)
	return nil
}

// terminate closes both ends; the local end is told it closed the connection.
func (c *Conn) terminate(reason transport.DisconnectReason) {
	localOpen := c.open()
	peerOpen := c.peer.open()

	delete(c.iface.conns, c.ID())
	delete(c.peer.iface.conns, c.peer.ID())

	if localOpen {
		c.iface.listener.OnDisconnect(c, reason, transport.EndpointLocal)
	}
	if peerOpen {
		c.peer.iface.listener.OnDisconnect(c.peer, reason, transport.EndpointRemote)
	}
}

// Addr is a named in-process address.
type Addr string

func (a Addr) Network() string { return "memory" }
func (a Addr) String() string  { return string(a) }

var _ net.Addr = Addr("")
