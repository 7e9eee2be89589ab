package websockets

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/QYUbit/Replica/pkg/transport"
)

// Conn carries every packet as a binary websocket message. Websockets have no
// unreliable channel, so the reliable flag is ignored.
type Conn struct {
	transport.BaseConnection

	iface *Interface
	ws    *websocket.Conn

	send    chan []byte
	done    chan struct{}
	closed  atomic.Bool
	recvSeq uint32
}

func newConn(iface *Interface, id transport.ConnectionID, role transport.ConnectionRole, ws *websocket.Conn) *Conn {
	return &Conn{
		BaseConnection: transport.NewBaseConnection(id, role, ws.RemoteAddr()),
		iface:          iface,
		ws:             ws,
		send:           make(chan []byte, 256),
		done:           make(chan struct{}),
	}
}

func (c *Conn) Send(data []byte, reliable bool) error {
	if c.closed.Load() {
		return transport.ErrConnectionClosed
	}

	select {
	case c.send <- append([]byte(nil), data...):
		return nil
	default:
		return ErrSendQueueFull
	}
}

// terminate sends a close frame carrying reason and reports the disconnect once.
func (c *Conn) terminate(reason transport.DisconnectReason, endpoint transport.TerminationEndpoint, notifyPeer bool) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)

	c.iface.remove(c.ID())
	if notifyPeer {
		msg := websocket.FormatCloseMessage(closeCode(reason), reason.String())
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	c.ws.Close()
	c.iface.serial.OnDisconnect(c, reason, endpoint)
}

func (c *Conn) readPump() {
	c.ws.SetReadLimit(int64(c.iface.readLimit))
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			reason, endpoint := reasonFromError(err)
			c.terminate(reason, endpoint, endpoint == transport.EndpointLocal)
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		c.recvSeq++
		c.iface.serial.OnPacket(c, transport.PacketHeader{Sequence: c.recvSeq, Reliable: true}, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.iface.logger.Warn("websocket write failed", "connection", c.ID(), "error", err)
				c.terminate(transport.ReasonTransportError, transport.EndpointLocal, false)
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.terminate(transport.ReasonTransportError, transport.EndpointLocal, false)
				return
			}
		}
	}
}
