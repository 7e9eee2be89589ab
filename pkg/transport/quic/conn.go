package quic

import (
	"bufio"
	"context"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"github.com/QYUbit/Replica/pkg/packet"
	"github.com/QYUbit/Replica/pkg/transport"
)

// Conn is a QUIC connection with a single bidirectional control stream.
// Reliable packets are framed on the stream, unreliable ones go out as
// datagrams when the peer supports them.
type Conn struct {
	transport.BaseConnection

	iface  *Interface
	conn   *quic.Conn
	stream *quic.Stream

	send      chan outgoingMessage
	closed    atomic.Bool
	recvSeq   atomic.Uint32
	datagrams bool
}

func newConn(iface *Interface, id transport.ConnectionID, role transport.ConnectionRole, conn *quic.Conn, stream *quic.Stream) *Conn {
	return &Conn{
		BaseConnection: transport.NewBaseConnection(id, role, conn.RemoteAddr()),
		iface:          iface,
		conn:           conn,
		stream:         stream,
		send:           make(chan outgoingMessage, 256),
		datagrams:      iface.quicConfig != nil && iface.quicConfig.EnableDatagrams,
	}
}

// Send queues data for the write pump.
func (c *Conn) Send(data []byte, reliable bool) error {
	if c.closed.Load() {
		return transport.ErrConnectionClosed
	}

	msg := outgoingMessage{Content: append([]byte(nil), data...), Reliable: reliable}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// terminate closes the connection once and reports the disconnect.
func (c *Conn) terminate(reason transport.DisconnectReason, endpoint transport.TerminationEndpoint) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.iface.remove(c.ID())
	c.conn.CloseWithError(closeCode(reason), reason.String())
	c.iface.serial.OnDisconnect(c, reason, endpoint)
}

func (c *Conn) readPump() {
	r := bufio.NewReader(c.stream)
	for {
		data, err := packet.ReadFrame(r)
		if err != nil {
			c.terminate(reasonFromError(c.closeCause(err)))
			return
		}
		if len(data) == 0 {
			continue
		}
		c.iface.serial.OnPacket(c, transport.PacketHeader{Sequence: c.recvSeq.Add(1), Reliable: true}, data)
	}
}

func (c *Conn) datagramPump(ctx context.Context) {
	for {
		data, err := c.conn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		c.iface.serial.OnPacket(c, transport.PacketHeader{Sequence: c.recvSeq.Add(1)}, data)
	}
}

func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.conn.Context().Done():
			return

		case msg := <-c.send:
			if !msg.Reliable && c.datagrams {
				if err := c.conn.SendDatagram(msg.Content); err == nil {
					continue
				}
				// too large for a datagram, fall through to the stream
			}

			if err := packet.WriteFrame(c.stream, msg.Content); err != nil {
				c.iface.logger.Warn("quic write failed", "connection", c.ID(), "error", err)
				c.terminate(transport.ReasonTransportError, transport.EndpointLocal)
				return
			}
		}
	}
}

// closeCause prefers the connection's close error over a stream read error.
func (c *Conn) closeCause(err error) error {
	if cause := context.Cause(c.conn.Context()); cause != nil {
		return cause
	}
	return err
}
