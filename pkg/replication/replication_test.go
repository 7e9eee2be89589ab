package replication

import (
	"errors"
	"testing"

	"github.com/QYUbit/Replica/pkg/entity"
	"github.com/QYUbit/Replica/pkg/transport"
)

type conn struct {
	transport.BaseConnection
}

func (c *conn) Send([]byte, bool) error { return nil }

func newConn(id transport.ConnectionID) *conn {
	return &conn{transport.NewBaseConnection(id, transport.RoleConnector, nil)}
}

type failures struct {
	errs []error
}

func (f *failures) report(err error) {
	f.errs = append(f.errs, err)
}

func TestTeardownWithAbsentControlledEntity(t *testing.T) {
	var f failures
	c := newConn(4)
	m := NewManager(c, nil, f.report)

	w := NewServerToClientWindow(entity.Handle{}, c)
	m.SetReplicationWindow(w)

	m.Teardown()

	if len(f.errs) != 2 {
		t.Fatalf("Expected 2 validation failures, got %d", len(f.errs))
	}

	stages := []Stage{StageWindow, StageTeardown}
	for i, err := range f.errs {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Expected ValidationError, got %T", err)
		}
		if ve.Stage != stages[i] {
			t.Errorf("Failure %d: expected stage %s, got %s", i, stages[i], ve.Stage)
		}
		if ve.Connection != 4 {
			t.Errorf("Failure %d: expected connection 4, got %d", i, ve.Connection)
		}
		if !errors.Is(err, ErrInvalidControlledEntity) {
			t.Errorf("Failure %d does not wrap ErrInvalidControlledEntity", i)
		}
	}

	if !w.IsReleased() {
		t.Error("Window not released")
	}
	if !m.Released() || m.Window() != nil {
		t.Error("Manager not released")
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	var f failures
	c := newConn(1)
	m := NewManager(c, nil, f.report)
	m.SetReplicationWindow(NewServerToClientWindow(entity.Handle{}, c))

	m.Teardown()
	m.Teardown()

	if len(f.errs) != 2 {
		t.Errorf("Expected failures from a single teardown, got %d", len(f.errs))
	}
}

func TestTeardownWithValidEntity(t *testing.T) {
	var f failures
	tr := entity.NewTracker()
	player := tr.Create("player", entity.RoleAuthority)

	c := newConn(1)
	m := NewManager(c, nil, f.report)
	m.SetReplicationWindow(NewServerToClientWindow(player, c))

	if got := m.ControlledEntity(); got != player {
		t.Errorf("Expected controlled %v, got %v", player, got)
	}

	m.Teardown()

	if len(f.errs) != 0 {
		t.Errorf("Unexpected failures %v", f.errs)
	}
	if !player.Exists() {
		t.Error("Teardown must not destroy the controlled entity")
	}
}

func TestTeardownWithoutWindow(t *testing.T) {
	var f failures
	m := NewManager(newConn(1), nil, f.report)
	m.Teardown()

	if len(f.errs) != 0 || !m.Released() {
		t.Error("Empty manager teardown misbehaved")
	}
}

func TestSetReplicationWindowReleasesPrevious(t *testing.T) {
	c := newConn(1)
	m := NewManager(c, nil, nil)

	first := NewServerToClientWindow(entity.Handle{}, c)
	second := NewServerToClientWindow(entity.Handle{}, c)

	m.SetReplicationWindow(first)
	m.SetReplicationWindow(second)

	if !first.IsReleased() {
		t.Error("Previous window not released")
	}
	if second.IsReleased() || m.Window() != second {
		t.Error("New window not attached")
	}

	// reattaching the same window keeps it alive
	m.SetReplicationWindow(second)
	if second.IsReleased() {
		t.Error("Reattached window released")
	}
}

func TestSetReplicationWindowAfterTeardown(t *testing.T) {
	c := newConn(1)
	m := NewManager(c, nil, nil)
	m.Teardown()

	w := NewServerToClientWindow(entity.Handle{}, c)
	m.SetReplicationWindow(w)

	if !w.IsReleased() || m.Window() != nil {
		t.Error("Released manager accepted a window")
	}
}

func TestReplicationSet(t *testing.T) {
	var f failures
	tr := entity.NewTracker()
	player := tr.Create("player", entity.RoleAuthority)
	crate := tr.Create("crate", entity.RoleAuthority)
	tree := tr.Create("tree", entity.RoleAuthority)

	c := newConn(1)
	m := NewManager(c, nil, f.report)
	w := NewServerToClientWindow(player, c)
	m.SetReplicationWindow(w)

	if err := w.AddEntity(crate); err != nil {
		t.Fatal(err)
	}
	if err := w.AddEntity(tree); err != nil {
		t.Fatal(err)
	}
	if err := w.AddEntity(player); err != nil {
		t.Fatal(err)
	}

	set := m.Update()
	if len(set) != 3 || set[0] != player || set[1] != crate || set[2] != tree {
		t.Errorf("Unexpected replication set %v", set)
	}

	tr.Remove(crate.ID())
	set = m.Update()
	if len(set) != 2 {
		t.Errorf("Expected stale entity pruned, got %v", set)
	}
	if w.IsInWindow(crate.ID()) {
		t.Error("Stale entity still in window")
	}

	w.RemoveEntity(tree.ID())
	if w.IsInWindow(tree.ID()) {
		t.Error("Removed entity still in window")
	}

	if len(f.errs) != 0 {
		t.Errorf("Unexpected failures %v", f.errs)
	}
}

func TestAddEntityErrors(t *testing.T) {
	tr := entity.NewTracker()
	h := tr.Create("ghost", entity.RoleClient)
	tr.Remove(h.ID())

	w := NewServerToClientWindow(entity.Handle{}, newConn(1))
	if err := w.AddEntity(h); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Expected ErrEntityNotFound, got %v", err)
	}

	w.Release()
	if err := w.AddEntity(tr.Create("live", entity.RoleClient)); !errors.Is(err, ErrWindowReleased) {
		t.Errorf("Expected ErrWindowReleased, got %v", err)
	}
	if w.ReplicationSet() != nil {
		t.Error("Released window returned content")
	}
	if w.Connection() != nil {
		t.Error("Released window still references its connection")
	}
}
