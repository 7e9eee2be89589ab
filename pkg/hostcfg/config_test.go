package hostcfg

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/QYUbit/Replica/pkg/multiplayer"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != TransportWebsocket || cfg.HTTPAddr != ":8080" || cfg.Map != "lobby" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %s", cfg.ShutdownTimeout)
	}
	agent, _ := cfg.AgentType()
	if agent != multiplayer.DedicatedServer {
		t.Errorf("agent = %s", agent)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REPLICA_AGENT", "ClientServer")
	t.Setenv("REPLICA_MAP", "arena")
	t.Setenv("REPLICA_HOST_ID", "77")
	t.Setenv("REPLICA_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if agent, _ := cfg.AgentType(); agent != multiplayer.ClientServer {
		t.Errorf("agent = %s", agent)
	}
	if cfg.Map != "arena" || cfg.HostID != 77 {
		t.Errorf("map %q host %d", cfg.Map, cfg.HostID)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %s", cfg.SlogLevel())
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"client agent", map[string]string{"REPLICA_AGENT": "Client"}},
		{"unknown transport", map[string]string{"REPLICA_TRANSPORT": "carrier-pigeon"}},
		{"quic without tls", map[string]string{"REPLICA_TRANSPORT": "quic"}},
		{"negative rate", map[string]string{"REPLICA_UPGRADE_RATE": "-1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("REPLICA_SHUTDOWN_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Error("Load accepted a malformed duration")
	}
}
