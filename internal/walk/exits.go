package walk

import (
	"context"
	"math/rand"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// ExitOption is one way out of a node currently offered to the player.
type ExitOption struct {
	ID       string `json:"id"`
	Target   string `json:"target"`
	Label    string `json:"label,omitempty"`
	Weight   int    `json:"weight"`
	FromEdge bool   `json:"from_edge,omitempty"`
}

// ResolveExits gathers the exits whose conditions hold. Explicit exit
// candidates never fall back to graph edges, even when all of them are
// locked; edges are consulted only when a node declares no candidates.
// Exits pointing at unknown nodes are dropped with a warning.
func ResolveExits(ctx context.Context, g *flow.Graph, node *flow.Node, state *GameState, checker *Checker) []ExitOption {
	if node == nil {
		return nil
	}
	var out []ExitOption
	if len(node.Exits) > 0 {
		for _, ex := range node.Exits {
			if !checker.Check(ctx, ex.Conditions, state) {
				continue
			}
			if !knownTarget(g, node, ex.ID, ex.Target) {
				continue
			}
			id := ex.ID
			if id == "" {
				id = ex.Target
			}
			out = append(out, ExitOption{ID: id, Target: ex.Target, Label: ex.Label, Weight: ex.Weight})
		}
		return out
	}
	for _, e := range g.EdgesFrom(node.ID) {
		if !checker.Check(ctx, e.Conditions, state) {
			continue
		}
		if !knownTarget(g, node, e.To, e.To) {
			continue
		}
		out = append(out, ExitOption{ID: e.To, Target: e.To, Label: e.Label, Weight: e.Weight, FromEdge: true})
	}
	return out
}

func knownTarget(g *flow.Graph, node *flow.Node, exitID, target string) bool {
	if g.Node(target) != nil {
		return true
	}
	events.Emit("warn", "config.warning", "exit target not found", map[string]interface{}{
		"node_id": node.ID,
		"exit_id": exitID,
		"target":  target,
	})
	return false
}

// SelectExits picks the options to offer. maxChoices <= 0 means no cap.
func SelectExits(options []ExitOption, mode flow.SelectionMode, maxChoices int, rng *rand.Rand) []ExitOption {
	limit := len(options)
	if maxChoices > 0 && maxChoices < limit {
		limit = maxChoices
	}
	if mode != flow.SelectWeighted {
		return append([]ExitOption(nil), options[:limit]...)
	}

	pool := append([]ExitOption(nil), options...)
	picked := make([]ExitOption, 0, limit)
	for len(picked) < limit && len(pool) > 0 {
		weights := make([]int, len(pool))
		for i, o := range pool {
			weights[i] = o.Weight
		}
		i := weightedIndex(weights, rng)
		picked = append(picked, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}
	return picked
}

// weightedIndex draws an index proportionally to weights. Negative weights
// count as zero; if every weight is zero the draw is uniform.
func weightedIndex(weights []int, rng *rand.Rand) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return rng.Intn(len(weights))
	}
	n := rng.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if n < w {
			return i
		}
		n -= w
	}
	return len(weights) - 1
}

// ExitPosition is where a steps-mode exit sits: a fixed offset behind the
// furthest gate.
func ExitPosition(rule flow.ExitSpawnRule, gates *GateResolver) int {
	return clampZero(gates.GetMaxResolvedPosition() + rule.StepOffset)
}

// ShouldSpawn decides whether exits become available this step. An empty
// mode behaves as steps.
func ShouldSpawn(rule flow.ExitSpawnRule, node *flow.Node, gates *GateResolver, counters Counters, rng *rand.Rand) bool {
	if rule.RequireAllGatesCleared && !gates.AllGatesCleared(node) {
		return false
	}
	switch rule.Mode {
	case flow.SpawnNone:
		return false
	case flow.SpawnProbability:
		return rng.Float64() < rule.Probability
	case flow.SpawnSteps, "":
		return counters.Track >= ExitPosition(rule, gates)
	}
	return false
}
