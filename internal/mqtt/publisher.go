package mqtt

import (
	"encoding/json"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

// ProgressPublisher sends each progress projection as a retained message so
// displays that connect late see the current track. It implements
// walk.ProgressPublisher.
type ProgressPublisher struct {
	m     Messenger
	topic string
}

// NewProgressPublisher publishes to prefix/progress.
func NewProgressPublisher(m Messenger, prefix string) *ProgressPublisher {
	return &ProgressPublisher{m: m, topic: prefix + "/progress"}
}

// Publish implements walk.ProgressPublisher. Broker errors are logged.
func (p *ProgressPublisher) Publish(progress walk.Progress) {
	payload, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := p.m.Publish(p.topic, payload, true); err != nil {
		events.Emit("warn", "mqtt.error", "progress publish failed", map[string]interface{}{
			"topic": p.topic,
			"error": err.Error(),
		})
	}
}
