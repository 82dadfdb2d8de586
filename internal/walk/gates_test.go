package walk

import (
	"errors"
	"testing"

	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

func TestGateResolverNextGateInOrder(t *testing.T) {
	node := gatedNode("hall", absGate("g2", 2, 20), absGate("g1", 1, 10), absGate("g3", 3, 30))
	r := NewGateResolver()
	r.InitializeForNode(node, 1)

	if g := r.GetNextGate(node, 5); g != nil {
		t.Errorf("expected no gate before position 10, got %s", g.ID)
	}
	if g := r.GetNextGate(node, 25); g == nil || g.ID != "g1" {
		t.Fatalf("expected g1 at track 25, got %v", g)
	}
	r.MarkCleared("g1")
	if g := r.GetNextGate(node, 25); g == nil || g.ID != "g2" {
		t.Fatalf("expected g2 after clearing g1, got %v", g)
	}
	r.MarkCleared("g2")
	if g := r.GetNextGate(node, 25); g != nil {
		t.Errorf("expected no gate reached, got %s", g.ID)
	}
}

func TestGateResolverAllGatesCleared(t *testing.T) {
	r := NewGateResolver()
	if !r.AllGatesCleared(nil) {
		t.Error("expected nil node to count as cleared")
	}
	empty := gatedNode("empty")
	r.InitializeForNode(empty, 1)
	if !r.AllGatesCleared(empty) {
		t.Error("expected node without gates to count as cleared")
	}

	node := gatedNode("hall", absGate("a", 1, 5), absGate("b", 2, 10))
	r.InitializeForNode(node, 1)
	if r.AllGatesCleared(node) {
		t.Error("expected uncleared gates")
	}
	r.MarkCleared("a")
	if r.AllGatesCleared(node) {
		t.Error("expected b still uncleared")
	}
	r.MarkCleared("b")
	if !r.AllGatesCleared(node) {
		t.Error("expected all gates cleared")
	}
}

func TestGateResolverTickCooldownsFloorsAtZero(t *testing.T) {
	node := gatedNode("hall", absGate("a", 1, 5), absGate("b", 2, 10))
	r := NewGateResolver()
	r.InitializeForNode(node, 1)
	r.MarkFailed("a", 2)

	for i := 0; i < 5; i++ {
		r.TickCooldowns()
		for _, id := range []string{"a", "b"} {
			st, _ := r.State(id)
			if st.Cooldown < 0 {
				t.Fatalf("gate %s cooldown went negative: %d", id, st.Cooldown)
			}
		}
	}
	st, _ := r.State("a")
	if st.Cooldown != 0 || st.FailCount != 1 {
		t.Errorf("expected cooldown 0 and fail count 1, got %+v", st)
	}
}

func TestGateResolverStatusTransitions(t *testing.T) {
	node := gatedNode("hall", absGate("a", 1, 5))
	r := NewGateResolver()
	if r.Status("a") != GateUnresolved {
		t.Errorf("expected unresolved before init, got %s", r.Status("a"))
	}
	r.InitializeForNode(node, 1)
	if r.Status("a") != GatePending {
		t.Errorf("expected pending, got %s", r.Status("a"))
	}
	r.MarkFailed("a", 1)
	if r.Status("a") != GateFailed {
		t.Errorf("expected failed, got %s", r.Status("a"))
	}
	r.TickCooldowns()
	if r.Status("a") != GatePending {
		t.Errorf("expected pending after cooldown, got %s", r.Status("a"))
	}
	r.MarkCleared("a")
	if r.Status("a") != GateCleared {
		t.Errorf("expected cleared, got %s", r.Status("a"))
	}
}

func TestGateResolverSnapshotIsIndependent(t *testing.T) {
	node := gatedNode("hall", absGate("a", 1, 5), absGate("b", 2, 10))
	r := NewGateResolver()
	r.InitializeForNode(node, 1)
	r.MarkFailed("a", 3)

	snap := r.TakeSnapshot()
	r.MarkCleared("a")
	r.MarkCleared("b")
	r.TickCooldowns()

	a := snap.Gates["a"]
	if a.Cleared || a.Cooldown != 3 || a.FailCount != 1 {
		t.Errorf("snapshot changed with live state: %+v", a)
	}
	if snap.Gates["b"].Cleared {
		t.Error("snapshot gate b changed with live state")
	}

	snap.Gates["b"] = GateState{GateID: "b", Cleared: false, Position: 99}
	if st, _ := r.State("b"); !st.Cleared || st.Position != 10 {
		t.Errorf("live state changed with snapshot: %+v", st)
	}
}

func TestGateResolverRestoreRefusesOtherNode(t *testing.T) {
	hall := gatedNode("hall", absGate("a", 1, 5))
	cave := gatedNode("cave", absGate("a", 1, 8))
	r := NewGateResolver()
	r.InitializeForNode(hall, 1)
	r.MarkCleared("a")
	snap := r.TakeSnapshot()

	r.InitializeForNode(cave, 1)
	err := r.RestoreFromSnapshot(snap)
	if !errors.Is(err, ErrSnapshotNodeMismatch) {
		t.Fatalf("expected ErrSnapshotNodeMismatch, got %v", err)
	}
	if !IsCode(err, CodeRewindConflict) {
		t.Errorf("expected rewind_conflict code")
	}
	if st, _ := r.State("a"); st.Cleared || st.Position != 8 {
		t.Errorf("refused snapshot still changed state: %+v", st)
	}
}

func TestGateResolverRestoreSameNode(t *testing.T) {
	node := gatedNode("hall", absGate("a", 1, 5), absGate("b", 2, 10))
	r := NewGateResolver()
	r.InitializeForNode(node, 1)
	snap := r.TakeSnapshot()

	r.MarkCleared("a")
	r.MarkFailed("b", 4)
	if err := r.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status("a") != GatePending || r.Status("b") != GatePending {
		t.Errorf("expected both gates pending after restore, got %s/%s", r.Status("a"), r.Status("b"))
	}
	if st, _ := r.State("b"); st.FailCount != 0 {
		t.Errorf("expected fail count restored to 0, got %d", st.FailCount)
	}
}

func TestGateResolverQueuedRestoreOnlyForTaggedNode(t *testing.T) {
	hall := gatedNode("hall", absGate("a", 1, 5))
	cave := gatedNode("cave", absGate("a", 1, 5))
	r := NewGateResolver()
	r.InitializeForNode(hall, 1)
	r.MarkCleared("a")
	snap := r.TakeSnapshot()

	// A snapshot tagged for hall must not leak onto cave.
	r.QueueRestore(snap)
	r.InitializeForNode(cave, 1)
	if r.Status("a") != GatePending {
		t.Errorf("expected fresh gate on cave, got %s", r.Status("a"))
	}
	if _, ok := r.Pending(); ok {
		t.Error("expected mismatched snapshot to be discarded")
	}

	r.QueueRestore(snap)
	r.InitializeForNode(hall, 1)
	if r.Status("a") != GateCleared {
		t.Errorf("expected queued snapshot applied on hall, got %s", r.Status("a"))
	}
}

func TestGateResolverMaxResolvedPosition(t *testing.T) {
	r := NewGateResolver()
	if r.GetMaxResolvedPosition() != 0 {
		t.Errorf("expected 0 with no node")
	}
	node := gatedNode("hall", absGate("a", 1, 15), absGate("b", 2, 40), absGate("c", 3, 25))
	r.InitializeForNode(node, 1)
	if got := r.GetMaxResolvedPosition(); got != 40 {
		t.Errorf("expected 40, got %d", got)
	}
}

func TestGateResolverPositionsStableAcrossInit(t *testing.T) {
	node := gatedNode("hall", flow.Gate{
		ID:       "r",
		Order:    1,
		Position: flow.PositionSpec{Kind: flow.PositionRange, Min: 10, Max: 90},
	})
	r := NewGateResolver()
	r.InitializeForNode(node, 77)
	first, _ := r.State("r")
	r.InitializeForNode(node, 77)
	second, _ := r.State("r")
	if first.Position != second.Position {
		t.Errorf("expected stable position, got %d then %d", first.Position, second.Position)
	}
}

func TestGateResolverUnknownGate(t *testing.T) {
	r := NewGateResolver()
	r.InitializeForNode(gatedNode("hall"), 1)
	if r.MarkCleared("nope") || r.MarkFailed("nope", 1) {
		t.Error("expected unknown gate operations to report false")
	}
}
