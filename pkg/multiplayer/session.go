package multiplayer

import "github.com/QYUbit/Replica/pkg/transport"

// Session is the session-wide state owned by a System.
type Session struct {
	agentType        AgentType
	networkInterface transport.NetworkInterface
	connections      map[transport.Connection]*ConnectionData

	// shutdownFired latches SessionShutdown until a new acceptor connection arrives.
	shutdownFired bool
}

func newSession() *Session {
	return &Session{
		connections: make(map[transport.Connection]*ConnectionData),
	}
}

func (s *Session) AgentType() AgentType {
	return s.agentType
}

// NetworkInterface returns the session's interface, nil before initialization.
func (s *Session) NetworkInterface() transport.NetworkInterface {
	return s.networkInterface
}

// ConnectionCount returns the number of connections with live records.
func (s *Session) ConnectionCount() int {
	return len(s.connections)
}

// Connections returns the connections with live records.
func (s *Session) Connections() []transport.Connection {
	out := make([]transport.Connection, 0, len(s.connections))
	for conn := range s.connections {
		out = append(out, conn)
	}
	return out
}
