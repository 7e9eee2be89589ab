package multiplayer

import "github.com/QYUbit/Replica/pkg/transport"

// AgentType is the session's participation mode.
type AgentType uint8

const (
	Uninitialized AgentType = iota
	Client
	ClientServer
	DedicatedServer
)

func (a AgentType) String() string {
	switch a {
	case Client:
		return "Client"
	case ClientServer:
		return "ClientServer"
	case DedicatedServer:
		return "DedicatedServer"
	default:
		return "Uninitialized"
	}
}

// IsHost reports whether the agent accepts connections and owns entities.
func (a AgentType) IsHost() bool {
	return a == ClientServer || a == DedicatedServer
}

// AgentDatum is the payload of ConnectionAcquired.
type AgentDatum struct {
	AgentType AgentType
	ID        transport.ConnectionID
}

// LevelReady is broadcast once per completed level load.
type LevelReady struct {
	Name       string
	Generation uint32
}
