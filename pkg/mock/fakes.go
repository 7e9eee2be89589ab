package mock

import (
	"net"

	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/multiplayer"
	"github.com/QYUbit/Replica/pkg/packet"
	"github.com/QYUbit/Replica/pkg/transport"
)

// Connection is a transport.Connection that records what is sent on it.
type Connection struct {
	transport.BaseConnection

	Sent    [][]byte
	SendErr error
}

func NewConnection(id transport.ConnectionID, role transport.ConnectionRole, remote net.Addr) *Connection {
	return &Connection{BaseConnection: transport.NewBaseConnection(id, role, remote)}
}

func (c *Connection) Send(data []byte, reliable bool) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, append([]byte(nil), data...))
	return nil
}

// Packets decodes everything sent so far, skipping undecodable payloads.
func (c *Connection) Packets() []packet.Packet {
	var out []packet.Packet
	for _, data := range c.Sent {
		if p, err := packet.Decode(data); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Spawner counts spawn requests and serves a configurable local player.
type Spawner struct {
	PlayerEntityRequestedCount int
	Requests                   []multiplayer.SpawnRequest
	Handle                     entity.Handle
	Left                       []entity.Handle
}

func (s *Spawner) RequestPlayerSpawn(req multiplayer.SpawnRequest) {
	s.PlayerEntityRequestedCount++
	s.Requests = append(s.Requests, req)
}

func (s *Spawner) LocalPlayer() entity.Handle {
	return s.Handle
}

func (s *Spawner) OnPlayerLeave(player entity.Handle, reason transport.DisconnectReason) {
	s.Left = append(s.Left, player)
}

var (
	_ transport.Connection     = (*Connection)(nil)
	_ multiplayer.Spawner      = (*Spawner)(nil)
	_ multiplayer.PlayerLeaver = (*Spawner)(nil)
)
