package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/mock"
	"github.com/QYUbit/Replica/pkg/multiplayer"
	"github.com/QYUbit/Replica/pkg/packet"
	"github.com/QYUbit/Replica/pkg/transport"
	"github.com/QYUbit/Replica/pkg/transport/memory"
)

func TestCollectorFollowsSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	sys := multiplayer.NewSystem(multiplayer.Config{
		InterfaceFactory: memory.NewNetwork().Factory(),
		Spawner:          &mock.Spawner{},
	})
	c.Attach(sys)

	if err := sys.InitializeMultiplayer(multiplayer.ClientServer); err != nil {
		t.Fatal(err)
	}

	host := mock.NewConnection(1, transport.RoleAcceptor, nil)
	peer := mock.NewConnection(2, transport.RoleConnector, nil)
	sys.OnConnect(host)
	sys.OnConnect(peer)
	sys.HandleRequest(peer, transport.PacketHeader{}, packet.Connect{ProtocolVersion: packet.ProtocolVersion})

	if got := testutil.ToFloat64(c.connectionsActive); got != 2 {
		t.Errorf("connections_active = %v, want 2", got)
	}

	if err := sys.AttachPlayer(peer, entity.Handle{}); err != nil {
		t.Fatal(err)
	}
	sys.OnDisconnect(peer, transport.ReasonTimeout, transport.EndpointRemote)
	sys.OnDisconnect(host, transport.ReasonTimeout, transport.EndpointRemote)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"sessions_initialized_total", testutil.ToFloat64(c.sessionsInitialized), 1},
		{"session_shutdowns_total", testutil.ToFloat64(c.sessionShutdowns), 1},
		{"connections_acquired_total", testutil.ToFloat64(c.connectionsAcquired), 2},
		{"connections_active", testutil.ToFloat64(c.connectionsActive), 0},
		{"endpoint_disconnects_total", testutil.ToFloat64(c.endpointDisconnects.WithLabelValues("ClientServer")), 2},
		{"spawn_requests_total{local}", testutil.ToFloat64(c.spawnRequests.WithLabelValues("local")), 1},
		{"spawn_requests_total{remote}", testutil.ToFloat64(c.spawnRequests.WithLabelValues("remote")), 1},
		{"validation_failures_total", testutil.ToFloat64(c.validationFailures), 2},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestNewCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry did not panic")
		}
	}()
	NewCollector(reg)
}
