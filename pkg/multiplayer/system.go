// Package multiplayer drives the lifecycle of a multiplayer session: network
// interface creation, per-connection records, session events and player spawn
// requests.
//
// A System is single-threaded. Every entry point runs to completion on the
// caller's goroutine and must not be called concurrently. Transports that read
// on their own goroutines deliver callbacks through a transport.SerialListener.
package multiplayer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/event"
	"github.com/QYUbit/Replica/pkg/packet"
	"github.com/QYUbit/Replica/pkg/replication"
	"github.com/QYUbit/Replica/pkg/rlog"
	"github.com/QYUbit/Replica/pkg/transport"
)

type Config struct {
	Logger rlog.Logger

	// Spawner receives player spawn requests. Optional.
	Spawner Spawner

	// InterfaceFactory creates the session's network interface on first
	// initialization. Required.
	InterfaceFactory transport.InterfaceFactory

	// InterfaceName defaults to a random "replica-<uuid>" name.
	InterfaceName string

	// LevelReady is the load notification the System subscribes to while active.
	LevelReady *event.Event[LevelReady]

	// HostID and Map are sent to joining clients in the Accept packet.
	HostID uint64
	Map    string

	// JoinTicket is presented to hosts by clients. Defaults to a random uuid.
	JoinTicket string
}

type System struct {
	logger  rlog.Logger
	session *Session
	spawns  *spawnOrchestrator

	factory       transport.InterfaceFactory
	interfaceName string
	levelReady    *event.Event[LevelReady]
	levelHandler  *event.Handler[LevelReady]

	hostID          uint64
	mapName         string
	joinTicket      string
	temporaryUserID uint64

	deactivated bool

	// Session level notifications.
	SessionInit          event.Event[transport.NetworkInterface]
	SessionShutdown      event.Event[transport.NetworkInterface]
	ConnectionAcquired   event.Event[AgentDatum]
	EndpointDisconnected event.Event[AgentType]

	SpawnRequested   event.Event[SpawnRequest]
	ValidationFailed event.Event[error]
}

func NewSystem(cfg Config) *System {
	s := &System{
		logger:        rlog.OrNop(cfg.Logger),
		session:       newSession(),
		factory:       cfg.InterfaceFactory,
		interfaceName: cfg.InterfaceName,
		levelReady:    cfg.LevelReady,
		hostID:        cfg.HostID,
		mapName:       cfg.Map,
		joinTicket:    cfg.JoinTicket,
	}

	if s.interfaceName == "" {
		s.interfaceName = "replica-" + uuid.NewString()
	}
	if s.joinTicket == "" {
		s.joinTicket = uuid.NewString()
	}
	id := uuid.New()
	s.temporaryUserID = binary.BigEndian.Uint64(id[:8])

	s.spawns = newSpawnOrchestrator(cfg.Spawner, s.logger, s.SpawnRequested.Signal)
	s.levelHandler = event.NewHandler(s.OnLevelReady)

	return s
}

// ==================================================================
// Lifecycle
// ==================================================================

// Activate subscribes to load notifications.
func (s *System) Activate() {
	if s.levelReady != nil {
		s.levelHandler.Connect(s.levelReady)
	}
}

// Deactivate unsubscribes, releases every remaining connection record without
// firing events and closes the network interface.
func (s *System) Deactivate() error {
	if s.deactivated {
		return ErrDeactivated
	}
	s.deactivated = true
	s.levelHandler.Disconnect()

	for conn, data := range s.session.connections {
		data.release()
		conn.SetUserData(disconnected)
		s.spawns.forget(conn.ID())
	}
	clear(s.session.connections)

	if iface := s.session.networkInterface; iface != nil {
		if err := iface.Close(); err != nil && !errors.Is(err, transport.ErrInterfaceClosed) {
			return err
		}
	}
	return nil
}

// InitializeMultiplayer sets the agent type. The first call creates the
// network interface and fires SessionInit; later calls only change the agent
// type. Host-capable agents make sure a local player is requested.
func (s *System) InitializeMultiplayer(agent AgentType) error {
	if s.deactivated {
		return ErrDeactivated
	}

	previous := s.session.agentType

	if s.session.networkInterface == nil {
		if s.factory == nil {
			return fmt.Errorf("%w: no interface factory", ErrInterfaceCreation)
		}
		iface, err := s.factory(s.interfaceName, s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInterfaceCreation, err)
		}
		s.session.agentType = agent
		s.session.networkInterface = iface
		s.session.shutdownFired = false

		s.logger.Info("multiplayer session initialized", "agent", agent, "interface", iface.Name())
		s.SessionInit.Signal(iface)
	} else if previous != agent {
		s.session.agentType = agent
		s.logger.Info("multiplayer agent type changed", "from", previous, "to", agent)
	}

	if agent.IsHost() {
		s.spawns.ensureLocalPlayer(agent)
	}
	return nil
}

// Host starts listening on addr.
func (s *System) Host(addr string) error {
	if !s.session.agentType.IsHost() {
		return fmt.Errorf("%w: %s", ErrNotHost, s.session.agentType)
	}
	iface := s.session.networkInterface
	if iface == nil {
		return ErrNotInitialized
	}
	if err := iface.Listen(addr); err != nil {
		return err
	}
	s.logger.Info("hosting session", "addr", addr)
	return nil
}

// Connect joins the host at addr. The Connect packet is sent once the
// connection is acquired.
func (s *System) Connect(ctx context.Context, addr string) (transport.Connection, error) {
	iface := s.session.networkInterface
	if iface == nil {
		return nil, ErrNotInitialized
	}
	conn, err := iface.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return conn, nil
}

// GetAgentType returns the current agent type.
func (s *System) GetAgentType() AgentType {
	return s.session.agentType
}

// Session returns the session state.
func (s *System) Session() *Session {
	return s.session
}

// ConnectionCount returns the number of connections with live records.
func (s *System) ConnectionCount() int {
	return s.session.ConnectionCount()
}

// LocalPlayerState returns the host player's spawn state.
func (s *System) LocalPlayerState() LocalPlayerState {
	return s.spawns.local
}

// RemoteSpawnRequests returns how many players were requested for a connection.
func (s *System) RemoteSpawnRequests(id transport.ConnectionID) int {
	return s.spawns.remote[id]
}

// ==================================================================
// Connections
// ==================================================================

// OnConnect attaches a new record to conn and fires ConnectionAcquired.
func (s *System) OnConnect(conn transport.Connection) {
	if _, ok := connectionData(conn); ok {
		s.logger.Warn("connection already has a record", "connection", conn.ID())
		return
	}

	data := NewConnectionData(conn, s)
	conn.SetUserData(data)
	s.session.connections[conn] = data

	if conn.Role() == transport.RoleAcceptor {
		s.session.shutdownFired = false
	}

	s.logger.Debug("connection acquired", "connection", conn.ID(), "role", conn.Role(), "remote", conn.RemoteAddr())
	s.ConnectionAcquired.Signal(AgentDatum{
		ID:        conn.ID(),
		AgentType: s.session.agentType,
	})

	if s.session.agentType == Client && conn.Role() == transport.RoleAcceptor {
		s.sendPacket(conn, packet.Connect{
			ProtocolVersion: packet.ProtocolVersion,
			TemporaryUserID: s.temporaryUserID,
			Ticket:          s.joinTicket,
		})
	}
}

// OnDisconnect releases the record of conn and fires EndpointDisconnected. A
// disconnect of an acceptor connection also fires SessionShutdown. A repeated
// disconnect of the same connection is ignored.
func (s *System) OnDisconnect(conn transport.Connection, reason transport.DisconnectReason, endpoint transport.TerminationEndpoint) {
	switch ud := conn.UserData().(type) {
	case *tombstone:
		s.logger.Debug("duplicate disconnect ignored", "connection", conn.ID())
		return

	case *ConnectionData:
		if ud == nil || ud.released {
			s.logger.Debug("duplicate disconnect ignored", "connection", conn.ID())
			return
		}
		s.releaseRecord(conn, ud, reason)

	default:
		s.logger.Debug("disconnect for connection without record", "connection", conn.ID())
	}

	conn.SetUserData(disconnected)
	s.spawns.forget(conn.ID())

	s.logger.Info("endpoint disconnected",
		"connection", conn.ID(),
		"role", conn.Role(),
		"reason", reason,
		"endpoint", endpoint,
	)
	s.EndpointDisconnected.Signal(s.session.agentType)

	if conn.Role() == transport.RoleAcceptor && !s.session.shutdownFired {
		s.session.shutdownFired = true
		s.logger.Info("session shutdown", "connection", conn.ID(), "reason", reason)
		s.SessionShutdown.Signal(s.session.networkInterface)
	}
}

// DisconnectAll asks the interface to close every connection with a record.
func (s *System) DisconnectAll(reason transport.DisconnectReason) error {
	iface := s.session.networkInterface
	if iface == nil {
		return ErrNotInitialized
	}

	var errs []error
	for _, conn := range s.session.Connections() {
		if err := iface.Disconnect(conn.ID(), reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *System) releaseRecord(conn transport.Connection, data *ConnectionData, reason transport.DisconnectReason) {
	player := data.manager.ControlledEntity()
	present := player.Exists()

	// the window is flushed before the game despawns the player
	data.release()
	delete(s.session.connections, conn)

	if leaver, ok := s.spawns.spawner.(PlayerLeaver); ok && present {
		leaver.OnPlayerLeave(player, reason)
	}
}

// AttachPlayer makes player the controlled entity of conn's replication window.
// An absent handle is accepted and reported whenever the window is used.
func (s *System) AttachPlayer(conn transport.Connection, player entity.Handle) error {
	data, ok := connectionData(conn)
	if !ok {
		return fmt.Errorf("%w %d", ErrNoConnectionData, conn.ID())
	}
	if !player.Exists() {
		s.logger.Warn("attaching absent player entity", "connection", conn.ID(), "entity", player)
	}
	data.manager.SetReplicationWindow(replication.NewServerToClientWindow(player, conn))
	return nil
}

// ==================================================================
// Packets
// ==================================================================

// OnPacket decodes an inbound packet and dispatches it.
func (s *System) OnPacket(conn transport.Connection, header transport.PacketHeader, payload []byte) {
	p, err := packet.Decode(payload)
	if err != nil {
		s.logger.Warn("dropping malformed packet", "connection", conn.ID(), "sequence", header.Sequence, "error", err)
		return
	}

	switch v := p.(type) {
	case packet.Connect:
		s.HandleRequest(conn, header, v)
	case packet.Accept:
		s.HandleAccept(conn, header, v)
	}
}

// HandleRequest processes a Connect handshake and requests a player for the
// connection, regardless of the local player's state.
func (s *System) HandleRequest(conn transport.Connection, header transport.PacketHeader, p packet.Connect) bool {
	if p.ProtocolVersion != packet.ProtocolVersion {
		s.logger.Warn("connect with foreign protocol version",
			"connection", conn.ID(),
			"version", p.ProtocolVersion,
			"expected", packet.ProtocolVersion,
		)
	}

	if data, ok := connectionData(conn); ok {
		data.temporaryUserID = p.TemporaryUserID
		data.ticket = p.Ticket
		data.joined = true
	}

	s.spawns.spawnForConnection(conn, s.session.agentType, p.TemporaryUserID, p.Ticket)

	if s.session.agentType.IsHost() {
		s.sendPacket(conn, packet.Accept{HostID: s.hostID, Map: s.mapName})
	}
	return true
}

// HandleAccept records the host's acceptance of our Connect.
func (s *System) HandleAccept(conn transport.Connection, header transport.PacketHeader, p packet.Accept) bool {
	data, ok := connectionData(conn)
	if !ok {
		s.logger.Warn("accept for connection without record", "connection", conn.ID())
		return false
	}
	data.accepted = true
	data.hostID = p.HostID

	s.logger.Info("joined host", "connection", conn.ID(), "host", p.HostID, "map", p.Map)
	return true
}

func (s *System) sendPacket(conn transport.Connection, p packet.Packet) {
	data, err := packet.Encode(p)
	if err != nil {
		s.logger.Error("failed to encode packet", "type", p.Type(), "error", err)
		return
	}
	if err := conn.Send(data, true); err != nil {
		s.logger.Error("failed to send packet", "connection", conn.ID(), "type", p.Type(), "error", err)
	}
}

// ==================================================================
// Notifications
// ==================================================================

// OnLevelReady reacts to a finished level load.
func (s *System) OnLevelReady(ready LevelReady) {
	s.spawns.onLevelReady(s.session.agentType, ready)
}

func (s *System) reportValidation(err error) {
	s.ValidationFailed.Signal(err)
}

var _ transport.Listener = (*System)(nil)
