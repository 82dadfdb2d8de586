package walk

import (
	"errors"
	"testing"
)

func anchoredState() *GameState {
	s := NewGameState(1)
	node := gatedNode("hall", absGate("a", 1, 5), absGate("b", 2, 10))
	s.Walk.CurrentNode = "hall"
	s.Walk.Region = "castle"
	s.Gates.InitializeForNode(node, 1)
	return s
}

func TestAnchorPositionOnlyLeavesGates(t *testing.T) {
	s := anchoredState()
	s.Counters = Counters{Global: 10, Node: 6, Track: 6}
	s.Flags["lamp"] = true
	s.Anchors.CreateAnchor("cp", s, ScopeNode)

	s.Counters.Advance(4)
	s.Gates.MarkCleared("a")
	s.Gates.MarkFailed("b", 2)
	delete(s.Flags, "lamp")

	if err := s.Anchors.RewindToAnchor("cp", s, PositionOnly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Counters != (Counters{Global: 10, Node: 6, Track: 6}) {
		t.Errorf("expected counters restored, got %+v", s.Counters)
	}
	if s.Gates.Status("a") != GateCleared || s.Gates.Status("b") != GateFailed {
		t.Errorf("position-only rewind touched gates: a=%s b=%s", s.Gates.Status("a"), s.Gates.Status("b"))
	}
	if s.Flags["lamp"] {
		t.Error("position-only rewind restored flags")
	}
}

func TestAnchorPositionAndStateRestoresGates(t *testing.T) {
	s := anchoredState()
	s.Gates.MarkCleared("a")
	s.Flags["lamp"] = true
	s.Anchors.CreateAnchor("cp", s, ScopeNode)

	s.Gates.MarkFailed("b", 2)
	s.Flags["lamp"] = false
	s.Flags["door"] = true

	if err := s.Anchors.RewindToAnchor("cp", s, PositionAndState); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := s.Gates.State("a")
	b, _ := s.Gates.State("b")
	if !a.Cleared || b.Cleared || b.Cooldown != 0 || b.FailCount != 0 {
		t.Errorf("gates not restored exactly: a=%+v b=%+v", a, b)
	}
	if !s.Flags["lamp"] || s.Flags["door"] {
		t.Errorf("flags not restored: %v", s.Flags)
	}
}

func TestAnchorCrossNodeRewindQueuesSnapshot(t *testing.T) {
	s := anchoredState()
	s.Gates.MarkCleared("a")
	s.Anchors.CreateAnchor("cp", s, ScopeGraph)

	cave := gatedNode("cave", absGate("a", 1, 3))
	s.Walk.CurrentNode = "cave"
	s.Gates.InitializeForNode(cave, 2)

	if err := s.Anchors.RewindToAnchor("cp", s, PositionAndState); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Walk.CurrentNode != "hall" {
		t.Errorf("expected pointer back on hall, got %s", s.Walk.CurrentNode)
	}
	// The live resolver still holds cave and must not receive hall's state.
	if s.Gates.NodeID() != "cave" || s.Gates.Status("a") != GatePending {
		t.Errorf("foreign snapshot applied to live resolver")
	}
	pending, ok := s.Gates.Pending()
	if !ok || pending.NodeID != "hall" {
		t.Fatalf("expected snapshot queued for hall, got %+v", pending)
	}
}

func TestAnchorClearInScope(t *testing.T) {
	s := anchoredState()
	s.Anchors.CreateAnchor("n1", s, ScopeNode)
	s.Anchors.CreateAnchor("n2", s, ScopeNode)
	s.Anchors.CreateAnchor("r1", s, ScopeRegion)
	s.Anchors.CreateAnchor("g1", s, ScopeGraph)

	if n := s.Anchors.ClearAnchorsInScope(ScopeNode); n != 2 {
		t.Errorf("expected 2 node anchors cleared, got %d", n)
	}
	if s.Anchors.Len() != 2 {
		t.Errorf("expected 2 anchors left, got %d", s.Anchors.Len())
	}
	if _, ok := s.Anchors.Get("r1"); !ok {
		t.Error("expected region anchor kept")
	}
}

func TestAnchorExportImportRoundTrip(t *testing.T) {
	s := anchoredState()
	s.Flags["x"] = true
	s.Gates.MarkCleared("a")
	s.Anchors.CreateAnchor("b", s, ScopeRegion)
	s.Anchors.CreateAnchor("a", s, ScopeGraph)

	exported := s.Anchors.ExportAnchors()
	if len(exported) != 2 || exported[0].ID != "a" || exported[1].ID != "b" {
		t.Fatalf("expected anchors ordered by id, got %+v", exported)
	}

	m := NewAnchorManager()
	m.ImportAnchors(exported)
	exported[0].Flags["x"] = false

	got, ok := m.Get("a")
	if !ok || !got.Flags["x"] || !got.Gates.Gates["a"].Cleared || got.Scope != ScopeGraph {
		t.Errorf("imported anchor mismatch: %+v", got)
	}
}

func TestAnchorRewindUnknown(t *testing.T) {
	s := anchoredState()
	err := s.Anchors.RewindToAnchor("missing", s, PositionOnly)
	if !errors.Is(err, ErrAnchorNotFound) {
		t.Errorf("expected ErrAnchorNotFound, got %v", err)
	}
}

func TestAnchorPositionOnlyKeepsSeedOfHeldNode(t *testing.T) {
	s := anchoredState()
	s.Walk.NodeSeed = 7
	s.Anchors.CreateAnchor("cp", s, ScopeGraph)
	s.Walk.NodeSeed = 8

	if err := s.Anchors.RewindToAnchor("cp", s, PositionOnly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Walk.NodeSeed != 8 {
		t.Errorf("position-only rewind on the held node replaced its seed: %d", s.Walk.NodeSeed)
	}

	if err := s.Anchors.RewindToAnchor("cp", s, PositionAndState); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Walk.NodeSeed != 7 {
		t.Errorf("expected the anchor seed with its gate snapshot, got %d", s.Walk.NodeSeed)
	}
}
