// Package hostcfg loads host process settings from the environment.
package hostcfg

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/QYUbit/Replica/pkg/multiplayer"
)

const (
	TransportWebsocket = "websocket"
	TransportQUIC      = "quic"
)

var ErrInvalidConfig = errors.New("invalid host config")

type Config struct {
	Agent     string `env:"REPLICA_AGENT"     envDefault:"DedicatedServer"`
	Transport string `env:"REPLICA_TRANSPORT" envDefault:"websocket"`

	// HTTPAddr serves the websocket endpoint and /metrics.
	HTTPAddr string `env:"REPLICA_HTTP_ADDR" envDefault:":8080"`
	QUICAddr string `env:"REPLICA_QUIC_ADDR" envDefault:":4433"`
	CertFile string `env:"REPLICA_TLS_CERT"`
	KeyFile  string `env:"REPLICA_TLS_KEY"`

	HostID uint64 `env:"REPLICA_HOST_ID" envDefault:"1"`
	Map    string `env:"REPLICA_MAP"     envDefault:"lobby"`

	UpgradeRate  float64 `env:"REPLICA_UPGRADE_RATE"  envDefault:"20"`
	UpgradeBurst int     `env:"REPLICA_UPGRADE_BURST" envDefault:"5"`

	LogLevel        string        `env:"REPLICA_LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"REPLICA_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.AgentType(); err != nil {
		return err
	}

	switch c.Transport {
	case TransportWebsocket:
	case TransportQUIC:
		if c.CertFile == "" || c.KeyFile == "" {
			return fmt.Errorf("%w: quic needs REPLICA_TLS_CERT and REPLICA_TLS_KEY", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}

	if c.UpgradeRate < 0 || c.UpgradeBurst < 0 {
		return fmt.Errorf("%w: negative upgrade limit", ErrInvalidConfig)
	}
	return nil
}

// AgentType parses the Agent setting. Only host-capable agents are accepted.
func (c Config) AgentType() (multiplayer.AgentType, error) {
	switch strings.ToLower(c.Agent) {
	case "dedicatedserver", "dedicated":
		return multiplayer.DedicatedServer, nil
	case "clientserver", "listen":
		return multiplayer.ClientServer, nil
	}
	return multiplayer.Uninitialized, fmt.Errorf("%w: agent %q cannot host", ErrInvalidConfig, c.Agent)
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
