package walk

import (
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

func absGate(id string, order, steps int) flow.Gate {
	return flow.Gate{
		ID:       id,
		Order:    order,
		Position: flow.PositionSpec{Kind: flow.PositionAbsolute, Steps: steps},
	}
}

func gatedNode(id string, gates ...flow.Gate) *flow.Node {
	return &flow.Node{
		ID:    id,
		Track: flow.TrackConfig{Length: 100},
		Gates: gates,
	}
}

func intPtr(v int) *int { return &v }
