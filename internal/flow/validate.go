package flow

import (
	"errors"
	"fmt"
)

// Validate reports authoring problems in the graph. The engine never refuses
// to run a graph with problems; callers log the result and the affected
// nodes degrade to offering nothing.
func Validate(g *Graph) error {
	if g == nil {
		return errors.New("graph is nil")
	}

	var errs []error
	nodes := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			errs = append(errs, errors.New("node with empty id"))
			continue
		}
		if nodes[n.ID] {
			errs = append(errs, fmt.Errorf("duplicate node id %q", n.ID))
		}
		nodes[n.ID] = true
	}

	if g.Entry == "" {
		errs = append(errs, errors.New("entry is required"))
	} else if !nodes[g.Entry] {
		errs = append(errs, fmt.Errorf("entry node %q not found", g.Entry))
	}

	for _, n := range g.Nodes {
		errs = append(errs, validateNode(g, &n, nodes)...)
	}

	for _, e := range g.Edges {
		if !nodes[e.From] {
			errs = append(errs, fmt.Errorf("edge %s->%s: source not found", e.From, e.To))
		}
		if !nodes[e.To] {
			errs = append(errs, fmt.Errorf("edge %s->%s: target not found", e.From, e.To))
		}
	}

	return errors.Join(errs...)
}

func validateNode(g *Graph, n *Node, nodes map[string]bool) []error {
	var errs []error

	gates := make(map[string]bool, len(n.Gates))
	for _, gate := range n.Gates {
		if gate.ID == "" {
			errs = append(errs, fmt.Errorf("node %s: gate with empty id", n.ID))
			continue
		}
		if gates[gate.ID] {
			errs = append(errs, fmt.Errorf("node %s: duplicate gate id %q", n.ID, gate.ID))
		}
		gates[gate.ID] = true

		switch gate.Position.Kind {
		case PositionAbsolute, PositionPercent:
		case PositionRange:
			if gate.Position.Min > gate.Position.Max {
				errs = append(errs, fmt.Errorf("node %s: gate %s: range min %d > max %d",
					n.ID, gate.ID, gate.Position.Min, gate.Position.Max))
			}
		default:
			errs = append(errs, fmt.Errorf("node %s: gate %s: invalid position kind %q", n.ID, gate.ID, gate.Position.Kind))
		}
	}

	for _, x := range n.Exits {
		if !nodes[x.Target] {
			errs = append(errs, fmt.Errorf("node %s: exit %s: target %q not found", n.ID, x.ID, x.Target))
		}
	}

	switch n.ExitRule.Mode {
	case "", SpawnNone, SpawnProbability, SpawnSteps:
	default:
		errs = append(errs, fmt.Errorf("node %s: invalid exit spawn mode %q", n.ID, n.ExitRule.Mode))
	}
	switch n.ExitRule.Selection {
	case "", SelectAll, SelectWeighted:
	default:
		errs = append(errs, fmt.Errorf("node %s: invalid exit selection %q", n.ID, n.ExitRule.Selection))
	}

	if n.SideTable != "" && g.SideTable(n.SideTable) == nil {
		errs = append(errs, fmt.Errorf("node %s: side table %q not found", n.ID, n.SideTable))
	}
	if n.EncounterTable != "" {
		if t, _ := g.EncounterTable(n.EncounterTable); t == nil {
			errs = append(errs, fmt.Errorf("node %s: encounter table %q not found", n.ID, n.EncounterTable))
		}
	}

	for _, fe := range n.ForcedEvents {
		switch fe.Trigger {
		case TriggerSteps, TriggerProbability:
		default:
			errs = append(errs, fmt.Errorf("node %s: forced event %s: invalid trigger %q", n.ID, fe.ID, fe.Trigger))
		}
	}

	return errs
}
