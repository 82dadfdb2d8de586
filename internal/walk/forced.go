package walk

import (
	"context"
	"math/rand"

	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

func forcedKey(nodeID, eventID string) string {
	return nodeID + "/" + eventID
}

// CheckForcedEvents returns the first forced event on node whose trigger
// fires this step, and records its consumption and cooldown. A steps trigger
// fires once NodeSteps reaches AtStep; it repeats only as its cooldown and
// once policy allow.
func CheckForcedEvents(ctx context.Context, node *flow.Node, state *GameState, checker *Checker, rng *rand.Rand) *flow.ForcedEvent {
	if node == nil {
		return nil
	}
	for i := range node.ForcedEvents {
		fe := &node.ForcedEvents[i]
		key := forcedKey(node.ID, fe.ID)
		if fe.Once && state.Forced.Consumed[key] {
			continue
		}
		if state.Forced.Cooldowns[key] > 0 {
			continue
		}

		fired := false
		switch fe.Trigger {
		case flow.TriggerSteps:
			fired = state.Counters.Node >= fe.AtStep
		case flow.TriggerProbability:
			fired = rng.Float64() < fe.Probability
		}
		if !fired || !checker.Check(ctx, fe.Conditions, state) {
			continue
		}

		if fe.Once {
			state.Forced.Consumed[key] = true
		}
		if fe.Cooldown > 0 {
			state.Forced.Cooldowns[key] = fe.Cooldown
		}
		return fe
	}
	return nil
}

func (s *GameState) tickForcedCooldowns() {
	for key, cd := range s.Forced.Cooldowns {
		if cd <= 1 {
			delete(s.Forced.Cooldowns, key)
			continue
		}
		s.Forced.Cooldowns[key] = cd - 1
	}
}
