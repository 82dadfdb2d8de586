package walk

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// TableKey returns the persisted key for an encounter table. Tables without
// an id fall back to "name#index", which is not stable if tables are
// reordered, so the fallback is logged.
func TableKey(t *flow.EncounterTable, index int) string {
	if t.ID != "" {
		return t.ID
	}
	return fmt.Sprintf("%s#%d", t.Name, index)
}

func (s *GameState) encounterRoll(t *flow.EncounterTable, index int) *EncounterRoll {
	key := TableKey(t, index)
	roll, ok := s.Encounters[key]
	if !ok {
		if t.ID == "" {
			events.Emit("warn", "config.warning", "encounter table has no id, using fallback key", map[string]interface{}{
				"table": t.Name,
				"key":   key,
			})
		}
		roll = &EncounterRoll{}
		s.Encounters[key] = roll
	}
	return roll
}

// RollEncounter rolls the table once. It returns nil when the table is
// cooling down, the roll misses, or no entry passes its conditions.
func RollEncounter(ctx context.Context, t *flow.EncounterTable, index int, state *GameState, checker *Checker, rng *rand.Rand) *flow.Encounter {
	if t == nil || len(t.Entries) == 0 {
		return nil
	}
	roll := state.encounterRoll(t, index)
	if roll.Cooldown > 0 {
		return nil
	}
	roll.Rolls++
	if rng.Float64() >= t.Rate*state.EncounterMultiplier() {
		return nil
	}

	var pool []*flow.Encounter
	var weights []int
	for i := range t.Entries {
		e := &t.Entries[i]
		if checker.Check(ctx, e.Conditions, state) {
			pool = append(pool, e)
			weights = append(weights, e.Weight)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	enc := pool[weightedIndex(weights, rng)]
	roll.Hits++
	roll.LastHit = state.Counters.Global
	roll.Cooldown = clampZero(t.CooldownSteps)
	return enc
}

// tickEncounterCooldowns decrements every table cooldown.
func (s *GameState) tickEncounterCooldowns() {
	for _, r := range s.Encounters {
		if r.Cooldown > 0 {
			r.Cooldown--
		}
	}
}
