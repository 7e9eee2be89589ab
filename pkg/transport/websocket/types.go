package websockets

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/QYUbit/Replica/pkg/transport"
)

var (
	ErrSendQueueFull = errors.New("send queue is full")
	ErrRateLimited   = errors.New("upgrade rate exceeded")
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10

	// close codes 4000-4999 are reserved for applications
	closeCodeBase = 4000
)

func closeCode(reason transport.DisconnectReason) int {
	return closeCodeBase + int(reason)
}

func reasonFromError(err error) (transport.DisconnectReason, transport.TerminationEndpoint) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code >= closeCodeBase && closeErr.Code < closeCodeBase+int(transport.ReasonShutdown)+1 {
			return transport.DisconnectReason(closeErr.Code - closeCodeBase), transport.EndpointRemote
		}
		if closeErr.Code == websocket.CloseGoingAway {
			return transport.ReasonShutdown, transport.EndpointRemote
		}
		return transport.ReasonNone, transport.EndpointRemote
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transport.ReasonTimeout, transport.EndpointLocal
	}
	return transport.ReasonTransportError, transport.EndpointRemote
}
