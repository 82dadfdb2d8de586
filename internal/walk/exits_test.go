package walk

import (
	"context"
	"math/rand"
	"testing"

	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

func exitGraph() *flow.Graph {
	return &flow.Graph{
		Version: 1,
		Entry:   "hub",
		Nodes: []flow.Node{
			{
				ID: "hub",
				Exits: []flow.ExitCandidate{
					{ID: "north", Target: "north", Weight: 1, Conditions: []*flow.Condition{{Kind: flow.CondFlag, Key: "key"}}},
					{ID: "south", Target: "south", Weight: 1},
					{ID: "void", Target: "nowhere", Weight: 1},
				},
			},
			{ID: "locked", Exits: []flow.ExitCandidate{
				{ID: "north", Target: "north", Conditions: []*flow.Condition{{Kind: flow.CondFlag, Key: "never"}}},
			}},
			{ID: "plain"},
			{ID: "north"},
			{ID: "south"},
		},
		Edges: []flow.Edge{
			{From: "plain", To: "north", Weight: 1},
			{From: "plain", To: "south", Weight: 1, Conditions: []*flow.Condition{{Kind: flow.CondTag, Key: "brave"}}},
			{From: "locked", To: "south", Weight: 1},
		},
	}
}

func exitIDs(opts []ExitOption) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.ID
	}
	return out
}

func TestResolveExitsFiltersCandidates(t *testing.T) {
	g := exitGraph()
	s := NewGameState(1)
	checker := &Checker{}

	opts := ResolveExits(context.Background(), g, g.Node("hub"), s, checker)
	if ids := exitIDs(opts); len(ids) != 1 || ids[0] != "south" {
		t.Errorf("expected only south, got %v", ids)
	}

	s.Flags["key"] = true
	opts = ResolveExits(context.Background(), g, g.Node("hub"), s, checker)
	if ids := exitIDs(opts); len(ids) != 2 || ids[0] != "north" || ids[1] != "south" {
		t.Errorf("expected north and south, got %v", ids)
	}
}

func TestResolveExitsLockedCandidatesDoNotFallBack(t *testing.T) {
	g := exitGraph()
	opts := ResolveExits(context.Background(), g, g.Node("locked"), NewGameState(1), &Checker{})
	if len(opts) != 0 {
		t.Errorf("expected no exits for locked node, got %v", exitIDs(opts))
	}
}

func TestResolveExitsEdgeFallback(t *testing.T) {
	g := exitGraph()
	s := NewGameState(1)
	opts := ResolveExits(context.Background(), g, g.Node("plain"), s, &Checker{})
	if ids := exitIDs(opts); len(ids) != 1 || ids[0] != "north" || !opts[0].FromEdge {
		t.Errorf("expected edge to north, got %+v", opts)
	}

	s.Tags["brave"] = true
	opts = ResolveExits(context.Background(), g, g.Node("plain"), s, &Checker{})
	if len(opts) != 2 {
		t.Errorf("expected two edges, got %v", exitIDs(opts))
	}
}

func TestResolveExitsNilNode(t *testing.T) {
	if opts := ResolveExits(context.Background(), exitGraph(), nil, NewGameState(1), &Checker{}); opts != nil {
		t.Errorf("expected nil for nil node, got %v", opts)
	}
}

func TestSelectExitsAllCapped(t *testing.T) {
	opts := []ExitOption{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	got := SelectExits(opts, flow.SelectAll, 3, rand.New(rand.NewSource(1)))
	if ids := exitIDs(got); len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("expected first three, got %v", ids)
	}
	if got := SelectExits(opts, flow.SelectAll, 0, nil); len(got) != 4 {
		t.Errorf("expected no cap with 0, got %d", len(got))
	}
}

func TestSelectExitsWeightedWithoutReplacement(t *testing.T) {
	opts := []ExitOption{{ID: "a", Weight: 5}, {ID: "b", Weight: 1}, {ID: "c", Weight: 0}}
	for seed := int64(0); seed < 50; seed++ {
		got := SelectExits(opts, flow.SelectWeighted, 2, rand.New(rand.NewSource(seed)))
		if len(got) != 2 {
			t.Fatalf("expected 2 picks, got %d", len(got))
		}
		if got[0].ID == got[1].ID {
			t.Fatalf("picked %s twice", got[0].ID)
		}
		// c has zero weight and is only reachable once a and b are gone.
		for _, o := range got {
			if o.ID == "c" {
				t.Fatalf("seed %d: zero-weight exit picked while weighted ones remained", seed)
			}
		}
	}
}

func TestSelectExitsAllZeroWeightsUniform(t *testing.T) {
	opts := []ExitOption{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	seen := make(map[string]bool)
	for seed := int64(0); seed < 100; seed++ {
		got := SelectExits(opts, flow.SelectWeighted, 1, rand.New(rand.NewSource(seed)))
		seen[got[0].ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected uniform fallback to reach all exits, saw %v", seen)
	}
}

func TestShouldSpawnRequireAllGatesCleared(t *testing.T) {
	node := gatedNode("hall", absGate("a", 1, 5))
	r := NewGateResolver()
	r.InitializeForNode(node, 1)

	rules := []flow.ExitSpawnRule{
		{Mode: flow.SpawnSteps, RequireAllGatesCleared: true},
		{Mode: flow.SpawnProbability, Probability: 1, RequireAllGatesCleared: true},
		{Mode: flow.SpawnNone, RequireAllGatesCleared: true},
	}
	for _, rule := range rules {
		for _, track := range []int{0, 5, 1000} {
			rng := rand.New(rand.NewSource(int64(track)))
			if ShouldSpawn(rule, node, r, Counters{Track: track}, rng) {
				t.Errorf("mode %s track %d: spawned with uncleared gates", rule.Mode, track)
			}
		}
	}
}

func TestShouldSpawnModes(t *testing.T) {
	node := gatedNode("hall", absGate("a", 1, 20))
	r := NewGateResolver()
	r.InitializeForNode(node, 1)
	r.MarkCleared("a")
	rng := rand.New(rand.NewSource(1))

	steps := flow.ExitSpawnRule{Mode: flow.SpawnSteps, StepOffset: 5}
	if ShouldSpawn(steps, node, r, Counters{Track: 24}, rng) {
		t.Error("expected no spawn before gate + offset")
	}
	if !ShouldSpawn(steps, node, r, Counters{Track: 25}, rng) {
		t.Error("expected spawn at gate + offset")
	}
	if ShouldSpawn(flow.ExitSpawnRule{Mode: flow.SpawnNone}, node, r, Counters{Track: 1000}, rng) {
		t.Error("mode none spawned")
	}
	if !ShouldSpawn(flow.ExitSpawnRule{Mode: flow.SpawnProbability, Probability: 1}, node, r, Counters{}, rng) {
		t.Error("probability 1 did not spawn")
	}
	if ShouldSpawn(flow.ExitSpawnRule{Mode: flow.SpawnProbability, Probability: 0}, node, r, Counters{}, rng) {
		t.Error("probability 0 spawned")
	}
}
