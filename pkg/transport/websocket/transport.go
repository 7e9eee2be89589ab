// Package websockets implements transport.NetworkInterface over gorilla
// websockets. The Interface is an http.Handler and can be mounted on any
// router; Listen serves it on its own http.Server.
package websockets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/QYUbit/Replica/pkg/packet"
	"github.com/QYUbit/Replica/pkg/rlog"
	"github.com/QYUbit/Replica/pkg/transport"
)

type Options struct {
	Upgrader *websocket.Upgrader
	Dialer   *websocket.Dialer
	Logger   rlog.Logger

	// UpgradeLimiter bounds the rate of accepted upgrades. Nil means unlimited.
	UpgradeLimiter *rate.Limiter

	// ReadLimit defaults to packet.MaxFrameLen.
	ReadLimit int

	// Created is called with every interface the factory builds.
	Created func(*Interface)
}

// Factory returns a transport.InterfaceFactory building websocket interfaces.
func Factory(opts Options) transport.InterfaceFactory {
	return func(name string, l transport.Listener) (transport.NetworkInterface, error) {
		iface := New(name, l, opts)
		if opts.Created != nil {
			opts.Created(iface)
		}
		return iface, nil
	}
}

// Implements transport.NetworkInterface and http.Handler
type Interface struct {
	name      string
	upgrader  *websocket.Upgrader
	dialer    *websocket.Dialer
	limiter   *rate.Limiter
	readLimit int
	logger    rlog.Logger
	serial    *transport.SerialListener

	wg sync.WaitGroup

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	conns  map[transport.ConnectionID]*Conn
	nextID atomic.Uint32
	closed bool
}

func New(name string, l transport.Listener, opts Options) *Interface {
	i := &Interface{
		name:      name,
		upgrader:  opts.Upgrader,
		dialer:    opts.Dialer,
		limiter:   opts.UpgradeLimiter,
		readLimit: opts.ReadLimit,
		logger:    rlog.OrNop(opts.Logger),
		serial:    transport.NewSerialListener(l),
		conns:     make(map[transport.ConnectionID]*Conn),
	}
	if i.upgrader == nil {
		i.upgrader = &websocket.Upgrader{}
	}
	if i.dialer == nil {
		i.dialer = websocket.DefaultDialer
	}
	if i.readLimit <= 0 {
		i.readLimit = packet.MaxFrameLen
	}
	return i
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

// ServeHTTP upgrades the request and registers the connection.
func (i *Interface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if i.isClosed() {
		http.Error(w, transport.ErrInterfaceClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if i.limiter != nil && !i.limiter.Allow() {
		i.logger.Warn("websocket upgrade rejected", "remote", r.RemoteAddr, "error", ErrRateLimited)
		http.Error(w, ErrRateLimited.Error(), http.StatusTooManyRequests)
		return
	}

	ws, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		i.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	i.register(transport.RoleConnector, ws)
}

// Listen serves the interface at addr on a dedicated http.Server.
func (i *Interface) Listen(addr string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return transport.ErrInterfaceClosed
	}
	if i.server != nil {
		return transport.ErrAlreadyListening
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrAddressInUse, err)
	}

	i.server = &http.Server{Handler: i}
	i.addr = ln.Addr()

	i.wg.Add(1)
	go func(srv *http.Server) {
		defer i.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			i.logger.Error("websocket server stopped", "error", err)
		}
	}(i.server)
	return nil
}

// Addr returns the address Listen bound to.
func (i *Interface) Addr() net.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.addr == nil {
		return transport.NoAddr{}
	}
	return i.addr
}

// Connect dials a ws:// or wss:// url.
func (i *Interface) Connect(ctx context.Context, addr string) (transport.Connection, error) {
	if i.isClosed() {
		return nil, transport.ErrInterfaceClosed
	}

	ws, resp, err := i.dialer.DialContext(ctx, addr, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", addr, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	conn := i.register(transport.RoleAcceptor, ws)
	if conn == nil {
		return nil, transport.ErrInterfaceClosed
	}
	return conn, nil
}

func (i *Interface) register(role transport.ConnectionRole, ws *websocket.Conn) *Conn {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		msg := websocket.FormatCloseMessage(closeCode(transport.ReasonShutdown), transport.ReasonShutdown.String())
		ws.WriteMessage(websocket.CloseMessage, msg)
		ws.Close()
		return nil
	}
	c := newConn(i, transport.ConnectionID(i.nextID.Add(1)), role, ws)
	i.conns[c.ID()] = c
	i.wg.Add(2)
	i.mu.Unlock()

	i.serial.OnConnect(c)

	go func() {
		defer i.wg.Done()
		c.readPump()
	}()
	go func() {
		defer i.wg.Done()
		c.writePump()
	}()
	return c
}

func (i *Interface) remove(id transport.ConnectionID) {
	i.mu.Lock()
	delete(i.conns, id)
	i.mu.Unlock()
}

func (i *Interface) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

func (i *Interface) Disconnect(id transport.ConnectionID, reason transport.DisconnectReason) error {
	i.mu.Lock()
	c, ok := i.conns[id]
	i.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %d", transport.ErrConnectionNotFound, id)
	}

	c.terminate(reason, transport.EndpointLocal, true)
	return nil
}

// ConnectionCount returns the number of open connections.
func (i *Interface) ConnectionCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.conns)
}

// Close terminates every connection, stops the server started by Listen and
// waits for the connection goroutines to exit.
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
	srv := i.server
	i.mu.Unlock()

	for _, c := range conns {
		c.terminate(transport.ReasonShutdown, transport.EndpointLocal, true)
	}

	var err error
	if srv != nil {
		err = srv.Close()
	}
	i.wg.Wait()
	return err
}
