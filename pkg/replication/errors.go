package replication

import (
	"errors"
	"fmt"

	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/transport"
)

var (
	ErrInvalidControlledEntity = errors.New("controlled entity does not exist")
	ErrEntityNotFound          = errors.New("entity does not exist")
	ErrWindowReleased          = errors.New("replication window already released")
)

// Stage names the point at which a validation failure was detected.
type Stage string

const (
	// StageWindow is reported when a window is consulted for replication content.
	StageWindow Stage = "window"
	// StageTeardown is reported when a manager processes its window on teardown.
	StageTeardown Stage = "teardown"
)

// ValidationError describes an invalid entity reference held by a window.
type ValidationError struct {
	Stage      Stage
	Connection transport.ConnectionID
	Entity     entity.Handle
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("replication %s: connection %d: %v: %s", e.Stage, e.Connection, ErrInvalidControlledEntity, e.Entity)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidControlledEntity
}

// Reporter receives validation failures. Reporting never interrupts the caller.
type Reporter func(err error)
