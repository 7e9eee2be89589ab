// Package quic implements transport.NetworkInterface using quic-go.
//
// Connections are read on their own goroutines. Callbacks reach the listener
// through a transport.SerialListener, so the owner must call Run (or Drain)
// on the goroutine that owns the listener.
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/QYUbit/Replica/pkg/packet"
	"github.com/QYUbit/Replica/pkg/rlog"
	"github.com/QYUbit/Replica/pkg/transport"
)

const handshakeTimeout = time.Second

type Options struct {
	TLSConfig  *tls.Config
	QUICConfig *quic.Config
	Logger     rlog.Logger

	// Created is called with every interface the factory builds.
	Created func(*Interface)
}

// Factory returns a transport.InterfaceFactory building QUIC interfaces.
func Factory(opts Options) transport.InterfaceFactory {
	return func(name string, l transport.Listener) (transport.NetworkInterface, error) {
		if opts.TLSConfig == nil {
			return nil, errors.New("quic: tls config required")
		}
		iface := New(name, l, opts)
		if opts.Created != nil {
			opts.Created(iface)
		}
		return iface, nil
	}
}

// Implements transport.NetworkInterface
type Interface struct {
	name       string
	tlsConfig  *tls.Config
	quicConfig *quic.Config
	logger     rlog.Logger
	serial     *transport.SerialListener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener *quic.Listener
	conns    map[transport.ConnectionID]*Conn
	nextID   atomic.Uint32
	closed   bool
}

func New(name string, l transport.Listener, opts Options) *Interface {
	ctx, cancel := context.WithCancel(context.Background())
	return &Interface{
		name:       name,
		tlsConfig:  opts.TLSConfig,
		quicConfig: opts.QUICConfig,
		logger:     rlog.OrNop(opts.Logger),
		serial:     transport.NewSerialListener(l),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[transport.ConnectionID]*Conn),
	}
}

func (i *Interface) Name() string {
	return i.name
}

// Run delivers queued callbacks until ctx is done.
func (i *Interface) Run(ctx context.Context) error {
	return i.serial.Run(ctx)
}

// Do runs fn on the goroutine executing Run.
func (i *Interface) Do(fn func()) {
	i.serial.Do(fn)
}

// Drain delivers every queued callback on the calling goroutine.
func (i *Interface) Drain() {
	i.serial.Drain()
}

func (i *Interface) Listen(addr string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return transport.ErrInterfaceClosed
	}
	if i.listener != nil {
		return transport.ErrAlreadyListening
	}

	l, err := quic.ListenAddr(addr, i.tlsConfig, i.quicConfig)
	if err != nil {
		return fmt.Errorf("quic listen %s: %w", addr, err)
	}
	i.listener = l

	i.wg.Add(1)
	go i.acceptConnections(l)
	return nil
}

// Addr returns the listening address.
func (i *Interface) Addr() net.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listener == nil {
		return transport.NoAddr{}
	}
	return i.listener.Addr()
}

func (i *Interface) acceptConnections(l *quic.Listener) {
	defer i.wg.Done()

	for {
		qc, err := l.Accept(i.ctx)
		if err != nil {
			select {
			case <-i.ctx.Done():
				return
			default:
			}
			if errors.Is(err, quic.ErrServerClosed) {
				return
			}
			i.logger.Warn("quic accept failed", "error", err)
			continue
		}

		i.wg.Add(1)
		go i.handshake(qc)
	}
}

// handshake waits for the dialer's control stream and its empty hello frame.
func (i *Interface) handshake(qc *quic.Conn) {
	defer i.wg.Done()

	ctx, cancel := context.WithTimeout(i.ctx, handshakeTimeout)
	defer cancel()

	stream, err := qc.AcceptStream(ctx)
	if err != nil {
		i.logger.Debug("quic peer opened no control stream", "remote", qc.RemoteAddr(), "error", err)
		qc.CloseWithError(closeCode(transport.ReasonTimeout), "no control stream")
		return
	}

	i.register(transport.RoleConnector, qc, stream)
}

// Connect dials addr and opens the control stream.
func (i *Interface) Connect(ctx context.Context, addr string) (transport.Connection, error) {
	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return nil, transport.ErrInterfaceClosed
	}

	qc, err := quic.DialAddr(ctx, addr, i.tlsConfig, i.quicConfig)
	if err != nil {
		return nil, err
	}

	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		qc.CloseWithError(closeCode(transport.ReasonTransportError), "no control stream")
		return nil, err
	}
	// streams are invisible to the peer until written
	if err := packet.WriteFrame(stream, nil); err != nil {
		qc.CloseWithError(closeCode(transport.ReasonTransportError), "hello failed")
		return nil, err
	}

	conn := i.register(transport.RoleAcceptor, qc, stream)
	if conn == nil {
		return nil, transport.ErrInterfaceClosed
	}
	return conn, nil
}

func (i *Interface) register(role transport.ConnectionRole, qc *quic.Conn, stream *quic.Stream) *Conn {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		qc.CloseWithError(closeCode(transport.ReasonShutdown), transport.ReasonShutdown.String())
		return nil
	}
	c := newConn(i, transport.ConnectionID(i.nextID.Add(1)), role, qc, stream)
	i.conns[c.ID()] = c
	i.mu.Unlock()

	i.serial.OnConnect(c)

	i.wg.Add(2)
	go func() {
		defer i.wg.Done()
		c.readPump()
	}()
	go func() {
		defer i.wg.Done()
		c.writePump(i.ctx)
	}()
	if c.datagrams {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			c.datagramPump(i.ctx)
		}()
	}
	return c
}

func (i *Interface) remove(id transport.ConnectionID) {
	i.mu.Lock()
	delete(i.conns, id)
	i.mu.Unlock()
}

func (i *Interface) Disconnect(id transport.ConnectionID, reason transport.DisconnectReason) error {
	i.mu.Lock()
	c, ok := i.conns[id]
	i.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %d", transport.ErrConnectionNotFound, id)
	}

	c.terminate(reason, transport.EndpointLocal)
	return nil
}

// ConnectionCount returns the number of open connections.
func (i *Interface) ConnectionCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.conns)
}

// Close terminates every connection, stops listening and waits for the
// connection goroutines to exit. Disconnect callbacks stay queued for Run.
func (i *Interface) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return transport.ErrInterfaceClosed
	}
	i.closed = true
	conns := make([]*Conn, 0, len(i.conns))
	for _, c := range i.conns {
		conns = append(conns, c)
	}
	l := i.listener
	i.mu.Unlock()

	for _, c := range conns {
		c.terminate(transport.ReasonShutdown, transport.EndpointLocal)
	}

	i.cancel()

	var err error
	if l != nil {
		err = l.Close()
	}
	i.wg.Wait()
	return err
}
