package multiplayer

import "errors"

var (
	ErrInterfaceCreation = errors.New("failed to create network interface")
	ErrNotInitialized    = errors.New("multiplayer is not initialized")
	ErrNotHost           = errors.New("agent type cannot host")
	ErrNoConnectionData  = errors.New("connection has no connection data")
	ErrDeactivated       = errors.New("multiplayer system is deactivated")
)
