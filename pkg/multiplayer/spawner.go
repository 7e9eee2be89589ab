package multiplayer

import (
	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/rlog"
	"github.com/QYUbit/Replica/pkg/transport"
)

// SpawnRequest asks the game for a player entity.
type SpawnRequest struct {
	// Connection is InvalidConnectionID for the local host's player.
	Connection      transport.ConnectionID
	AgentType       AgentType
	Remote          bool
	TemporaryUserID uint64
	Ticket          string
}

// Spawner creates player entities on behalf of the session.
type Spawner interface {
	// RequestPlayerSpawn is fire-and-forget.
	RequestPlayerSpawn(req SpawnRequest)

	// LocalPlayer returns the host's own player, possibly an absent handle.
	LocalPlayer() entity.Handle
}

// PlayerLeaver is implemented by spawners that despawn players of departing
// connections.
type PlayerLeaver interface {
	OnPlayerLeave(player entity.Handle, reason transport.DisconnectReason)
}

// LocalPlayerState tracks the host's own player entity.
type LocalPlayerState uint8

const (
	NoLocalPlayer LocalPlayerState = iota
	LocalPlayerRequested
	LocalPlayerPresent
)

func (s LocalPlayerState) String() string {
	switch s {
	case LocalPlayerRequested:
		return "LocalPlayerRequested"
	case LocalPlayerPresent:
		return "LocalPlayerPresent"
	default:
		return "NoLocalPlayer"
	}
}

// spawnOrchestrator decides when player entities are requested. It never
// constructs entities itself.
type spawnOrchestrator struct {
	spawner   Spawner
	logger    rlog.Logger
	onRequest func(SpawnRequest)

	local         LocalPlayerState
	localRequests int
	remote        map[transport.ConnectionID]int
}

func newSpawnOrchestrator(spawner Spawner, logger rlog.Logger, onRequest func(SpawnRequest)) *spawnOrchestrator {
	return &spawnOrchestrator{
		spawner:   spawner,
		logger:    logger,
		onRequest: onRequest,
		remote:    make(map[transport.ConnectionID]int),
	}
}

// ensureLocalPlayer runs when a host-capable session starts.
func (o *spawnOrchestrator) ensureLocalPlayer(agent AgentType) {
	if o.spawner == nil {
		o.logger.Debug("no spawner registered, skipping local player", "agent", agent)
		return
	}

	if o.spawner.LocalPlayer().Exists() {
		o.local = LocalPlayerPresent
		return
	}

	if o.local == LocalPlayerPresent {
		// the player we had is gone
		o.local = NoLocalPlayer
	}
	if o.local != NoLocalPlayer {
		return
	}

	o.requestLocal(agent)
}

// onLevelReady requests the local player again if the load finished before one
// arrived.
func (o *spawnOrchestrator) onLevelReady(agent AgentType, ready LevelReady) {
	if o.spawner == nil || !agent.IsHost() {
		return
	}

	if o.spawner.LocalPlayer().Exists() {
		o.local = LocalPlayerPresent
		return
	}

	if o.local == LocalPlayerPresent {
		// the player we had is gone
		o.local = NoLocalPlayer
	}

	o.logger.Debug("level ready without local player", "level", ready.Name, "generation", ready.Generation)
	o.requestLocal(agent)
}

// spawnForConnection requests a player for a remote peer. It does not consult
// the local player state.
func (o *spawnOrchestrator) spawnForConnection(conn transport.Connection, agent AgentType, temporaryUserID uint64, ticket string) {
	if o.spawner == nil {
		o.logger.Warn("no spawner registered, cannot spawn remote player", "connection", conn.ID())
		return
	}

	o.remote[conn.ID()]++
	o.request(SpawnRequest{
		Connection:      conn.ID(),
		AgentType:       agent,
		Remote:          true,
		TemporaryUserID: temporaryUserID,
		Ticket:          ticket,
	})
}

func (o *spawnOrchestrator) forget(id transport.ConnectionID) {
	delete(o.remote, id)
}

func (o *spawnOrchestrator) requestLocal(agent AgentType) {
	o.local = LocalPlayerRequested
	o.localRequests++
	o.request(SpawnRequest{
		Connection: transport.InvalidConnectionID,
		AgentType:  agent,
	})
}

func (o *spawnOrchestrator) request(req SpawnRequest) {
	o.spawner.RequestPlayerSpawn(req)
	if o.onRequest != nil {
		o.onRequest(req)
	}
}
