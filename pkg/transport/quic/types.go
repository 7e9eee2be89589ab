package quic

import (
	"errors"

	"github.com/quic-go/quic-go"

	"github.com/QYUbit/Replica/pkg/transport"
)

var ErrSendQueueFull = errors.New("send queue is full")

// closeCodes maps disconnect reasons to QUIC application error codes. Codes
// start at 0x100 so they never collide with a bare CloseWithError(0, "").
var closeCodes = map[transport.DisconnectReason]quic.ApplicationErrorCode{
	transport.ReasonNone:                0x100,
	transport.ReasonTimeout:             0x101,
	transport.ReasonTransportError:      0x102,
	transport.ReasonTerminatedByClient:  0x103,
	transport.ReasonTerminatedByServer:  0x104,
	transport.ReasonServerNoLevelLoaded: 0x105,
	transport.ReasonVersionMismatch:     0x106,
	transport.ReasonShutdown:            0x107,
}

func closeCode(reason transport.DisconnectReason) quic.ApplicationErrorCode {
	if code, ok := closeCodes[reason]; ok {
		return code
	}
	return closeCodes[transport.ReasonNone]
}

func reasonFromCode(code quic.ApplicationErrorCode) transport.DisconnectReason {
	for reason, c := range closeCodes {
		if c == code {
			return reason
		}
	}
	return transport.ReasonTransportError
}

// reasonFromError classifies the error that ended a connection's read loop.
func reasonFromError(err error) (transport.DisconnectReason, transport.TerminationEndpoint) {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		endpoint := transport.EndpointLocal
		if appErr.Remote {
			endpoint = transport.EndpointRemote
		}
		return reasonFromCode(appErr.ErrorCode), endpoint
	}

	var idleErr *quic.IdleTimeoutError
	if errors.As(err, &idleErr) {
		return transport.ReasonTimeout, transport.EndpointLocal
	}

	return transport.ReasonTransportError, transport.EndpointRemote
}

type outgoingMessage struct {
	Content  []byte
	Reliable bool
}
