package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// node
	"node.entered":   {},
	"node.exited":    {},
	"node.reentered": {},

	// gate
	"gate.appeared": {},
	"gate.passed":   {},
	"gate.failed":   {},
	"gate.cooling":  {},
	"gate.cleared":  {},

	// exit
	"exit.spawned": {},
	"exit.taken":   {},
	"exit.none":    {},

	// encounter
	"encounter.triggered": {},
	"battle.finished":     {},
	"battle.error":        {},

	// anchor
	"anchor.created":  {},
	"anchor.rewound":  {},
	"anchor.cleared":  {},
	"anchor.conflict": {},

	// side content
	"side.rolled":   {},
	"side.selected": {},
	"side.retained": {},

	// events
	"event.forced": {},
	"event.played": {},
	"event.error":  {},

	// step
	"step.completed": {},
	"step.refreshed": {},
	"step.canceled":  {},

	// persistence
	"save.written": {},
	"save.loaded":  {},

	// config
	"config.warning": {},
	"graph.reloaded": {},

	// operator
	"operator.clear_gate": {},
	"operator.rewind":     {},
	"operator.step":       {},

	// transport
	"mqtt.connected": {},
	"mqtt.error":     {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate reports whether the event name is on the allow-list.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
