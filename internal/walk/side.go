package walk

import (
	"context"
	"math/rand"

	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// RollSides rolls the left and right side entries from table. A side kept by
// the retain policy survives the roll and only the other side is drawn.
func RollSides(ctx context.Context, table *flow.SideTable, state *GameState, checker *Checker, rng *rand.Rand) {
	side := &state.Side
	left, right := "", ""
	switch side.Retained {
	case ChoiceLeft:
		left = side.Left
	case ChoiceRight:
		right = side.Right
	}
	side.Retained = ChoiceNone

	if table == nil {
		side.Left, side.Right = left, right
		return
	}
	if left == "" {
		left = drawSide(ctx, table, state, checker, rng, right)
	}
	if right == "" {
		right = drawSide(ctx, table, state, checker, rng, left)
	}
	side.Left, side.Right = left, right
}

// drawSide picks one entry that is not cooling down and not the other side.
// Entries seen in the last VarietyDepth picks are avoided unless nothing
// else is eligible.
func drawSide(ctx context.Context, table *flow.SideTable, state *GameState, checker *Checker, rng *rand.Rand, other string) string {
	recent := recentSides(state.Side.History, state.Side.VarietyDepth)

	var fresh, stale []*flow.SideEntry
	for i := range table.Entries {
		e := &table.Entries[i]
		if e.ID == other || state.Side.Cooldowns[e.ID] > 0 {
			continue
		}
		if !checker.Check(ctx, e.Conditions, state) {
			continue
		}
		if recent[e.ID] {
			stale = append(stale, e)
		} else {
			fresh = append(fresh, e)
		}
	}
	pool := fresh
	if len(pool) == 0 {
		pool = stale
	}
	if len(pool) == 0 {
		return ""
	}
	weights := make([]int, len(pool))
	for i, e := range pool {
		weights[i] = e.Weight
	}
	return pool[weightedIndex(weights, rng)].ID
}

func recentSides(history []string, depth int) map[string]bool {
	out := make(map[string]bool)
	if depth <= 0 {
		return out
	}
	start := len(history) - depth
	if start < 0 {
		start = 0
	}
	for _, id := range history[start:] {
		out[id] = true
	}
	return out
}

// selectSide records the player's pick. With retain set, the unpicked side
// stays pending for the next roll.
func selectSide(state *GameState, entry *flow.SideEntry, choice Choice, retain bool) {
	side := &state.Side
	if entry.Cooldown > 0 {
		side.Cooldowns[entry.ID] = entry.Cooldown
	}
	side.History = append(side.History, entry.ID)
	if len(side.History) > maxSideHistory {
		side.History = side.History[len(side.History)-maxSideHistory:]
	}
	state.Walk.HistoryIndex++

	side.Retained = ChoiceNone
	switch choice {
	case ChoiceLeft:
		side.Left = ""
		if retain && side.Right != "" {
			side.Retained = ChoiceRight
		}
	case ChoiceRight:
		side.Right = ""
		if retain && side.Left != "" {
			side.Retained = ChoiceLeft
		}
	}
}

func (s *GameState) tickSideCooldowns() {
	for id, cd := range s.Side.Cooldowns {
		if cd <= 1 {
			delete(s.Side.Cooldowns, id)
			continue
		}
		s.Side.Cooldowns[id] = cd - 1
	}
}

func sideEntry(table *flow.SideTable, id string) *flow.SideEntry {
	if table == nil || id == "" {
		return nil
	}
	for i := range table.Entries {
		if table.Entries[i].ID == id {
			return &table.Entries[i]
		}
	}
	return nil
}
