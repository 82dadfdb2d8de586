package walk

import (
	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// ApplyEffects applies effects in order, skipping nil entries. A failing
// effect is logged and does not stop the rest of the list.
func ApplyEffects(effects []*flow.Effect, state *GameState) {
	for _, eff := range effects {
		if eff == nil {
			continue
		}
		if err := applyEffect(eff, state); err != nil {
			events.Emit("warn", "config.warning", "effect not applied", map[string]interface{}{
				"kind":  string(eff.Kind),
				"key":   eff.Key,
				"error": err.Error(),
			})
		}
	}
}

func applyEffect(eff *flow.Effect, state *GameState) error {
	switch eff.Kind {
	case flow.EffSetFlag:
		state.Flags[eff.Key] = true
	case flow.EffClearFlag:
		delete(state.Flags, eff.Key)
	case flow.EffSetCounter:
		state.Vars[eff.Key] = eff.Value
	case flow.EffAddCounter:
		state.Vars[eff.Key] += eff.Value
	case flow.EffAddTag:
		state.Tags[eff.Key] = true
	case flow.EffRemoveTag:
		delete(state.Tags, eff.Key)

	case flow.EffPushOverlay:
		o := Overlay{ID: eff.Key, Multiplier: eff.Multiplier, Persistent: eff.Persistent}
		if eff.Duration > 0 {
			o.ExpiresAt = state.Counters.Global + eff.Duration
		}
		state.PushOverlay(o)
	case flow.EffRemoveOverlay:
		state.RemoveOverlay(eff.Key)

	case flow.EffCreateAnchor:
		scope, ok := parseScope(eff.Scope)
		if !ok {
			return newError(CodeConfig, "unknown anchor scope "+eff.Scope)
		}
		state.Anchors.CreateAnchor(eff.Key, state, scope)
	case flow.EffRewindAnchor:
		mode, ok := parseMode(eff.Mode)
		if !ok {
			return newError(CodeConfig, "unknown rewind mode "+eff.Mode)
		}
		if err := state.Anchors.RewindToAnchor(eff.Key, state, mode); err != nil {
			return err
		}
		state.RefreshWithoutStep = true

	case flow.EffStageBonus:
		state.Bonuses[eff.Key] += eff.Value
	case flow.EffPartyUnlock:
		for _, m := range effectMembers(eff) {
			if !contains(state.Party.Unlocked, m) {
				state.Party.Unlocked = append(state.Party.Unlocked, m)
			}
		}
	case flow.EffPartySet:
		active := make([]string, 0, len(eff.Members))
		for _, m := range effectMembers(eff) {
			if !contains(state.Party.Unlocked, m) {
				return newError(CodeConfig, "party member not unlocked: "+m)
			}
			active = append(active, m)
		}
		state.Party.Active = active

	default:
		return newError(CodeConfig, "unknown effect kind")
	}
	return nil
}

func effectMembers(eff *flow.Effect) []string {
	if len(eff.Members) > 0 {
		return eff.Members
	}
	if eff.Key != "" {
		return []string{eff.Key}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
