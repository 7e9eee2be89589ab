// Package entity tracks networked entities and hands out weak references to them.
//
// A Handle never owns the entity it names. Every use must go through Exists or
// Resolve, because the entity may have been removed from its Tracker since the
// handle was taken.
package entity

import (
	"errors"
	"fmt"
)

type ID uint64

// InvalidID never names a tracked entity.
const InvalidID ID = 0

// NetRole describes how the local process participates in an entity's replication.
type NetRole uint8

const (
	RoleInvalid NetRole = iota
	RoleClient
	RoleAutonomous
	RoleServer
	RoleAuthority
)

func (r NetRole) String() string {
	switch r {
	case RoleClient:
		return "Client"
	case RoleAutonomous:
		return "Autonomous"
	case RoleServer:
		return "Server"
	case RoleAuthority:
		return "Authority"
	default:
		return "Invalid"
	}
}

var (
	ErrInvalidID     = errors.New("entity id is invalid")
	ErrAlreadyExists = errors.New("entity already tracked")
)

// Entity is the tracker's record of a live networked entity.
type Entity struct {
	id      ID
	version uint32
	name    string
	role    NetRole
}

func (e *Entity) ID() ID           { return e.id }
func (e *Entity) Name() string     { return e.name }
func (e *Entity) NetRole() NetRole { return e.role }

// ==================================================================
// Tracker
// ==================================================================

// Tracker resolves entity ids to live entities. It is not safe for concurrent use.
type Tracker struct {
	next     ID
	entities map[ID]*Entity
	versions map[ID]uint32
}

func NewTracker() *Tracker {
	return &Tracker{
		entities: make(map[ID]*Entity),
		versions: make(map[ID]uint32),
	}
}

// Create tracks a new entity under the next free id.
func (t *Tracker) Create(name string, role NetRole) Handle {
	for {
		t.next++
		if _, taken := t.entities[t.next]; !taken && t.next != InvalidID {
			break
		}
	}
	h, _ := t.Register(t.next, name, role)
	return h
}

// Register tracks an entity under an id chosen by the caller, typically the
// authority's id for a replicated entity.
func (t *Tracker) Register(id ID, name string, role NetRole) (Handle, error) {
	if id == InvalidID {
		return Handle{}, ErrInvalidID
	}
	if _, ok := t.entities[id]; ok {
		return Handle{}, fmt.Errorf("%w %d", ErrAlreadyExists, id)
	}

	t.versions[id]++
	e := &Entity{
		id:      id,
		version: t.versions[id],
		name:    name,
		role:    role,
	}
	t.entities[id] = e

	return Handle{id: id, version: e.version, tracker: t}, nil
}

// Remove stops tracking id. Handles taken before the removal stop resolving.
func (t *Tracker) Remove(id ID) bool {
	if _, ok := t.entities[id]; !ok {
		return false
	}
	delete(t.entities, id)
	return true
}

// Get looks up a live entity by id.
func (t *Tracker) Get(id ID) (*Entity, bool) {
	e, ok := t.entities[id]
	return e, ok
}

// Handle returns a handle for a live entity, or an invalid handle.
func (t *Tracker) Handle(id ID) Handle {
	e, ok := t.entities[id]
	if !ok {
		return Handle{}
	}
	return Handle{id: id, version: e.version, tracker: t}
}

func (t *Tracker) Len() int {
	return len(t.entities)
}

// ==================================================================
// Handle
// ==================================================================

// Handle is a weak (id, tracker) reference. The zero value is an absent handle.
type Handle struct {
	id      ID
	version uint32
	tracker *Tracker
}

func (h Handle) ID() ID {
	return h.id
}

// Exists reports whether h names an entity that is still tracked.
func (h Handle) Exists() bool {
	_, ok := h.Resolve()
	return ok
}

// Resolve returns the entity h names if it is still tracked.
func (h Handle) Resolve() (*Entity, bool) {
	if h.tracker == nil || h.id == InvalidID {
		return nil, false
	}
	e, ok := h.tracker.entities[h.id]
	if !ok || e.version != h.version {
		return nil, false
	}
	return e, true
}

func (h Handle) String() string {
	if h.tracker == nil || h.id == InvalidID {
		return "entity(invalid)"
	}
	return fmt.Sprintf("entity(%d#%d)", h.id, h.version)
}
