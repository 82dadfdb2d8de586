package walk

// Counters are the three walk step counters. They only decrease through
// Rewind or one of the explicit reset operations.
type Counters struct {
	Global int `json:"global_steps"`
	Node   int `json:"node_steps"`
	Track  int `json:"track_progress"`
}

// Advance adds n steps to every counter.
func (c *Counters) Advance(n int) {
	if n <= 0 {
		return
	}
	c.Global += n
	c.Node += n
	c.Track += n
}

// Rewind walks the player back n steps. Each counter is clamped at zero.
func (c *Counters) Rewind(n int) {
	if n <= 0 {
		return
	}
	c.Global = clampZero(c.Global - n)
	c.Node = clampZero(c.Node - n)
	c.Track = clampZero(c.Track - n)
}

// ResetNodeSteps zeroes NodeSteps and TrackProgress. Called on node transition.
func (c *Counters) ResetNodeSteps() {
	c.Node = 0
	c.Track = 0
}

// ResetTrackProgress zeroes TrackProgress only. Called on gate failure.
func (c *Counters) ResetTrackProgress() {
	c.Track = 0
}

// AdvanceTrackProgress moves the track forward without counting a step.
func (c *Counters) AdvanceTrackProgress(n int) {
	if n <= 0 {
		return
	}
	c.Track += n
}

// PeekNext returns the counters as they would be after Advance(n) without
// modifying c.
func (c Counters) PeekNext(n int) Counters {
	c.Advance(n)
	return c
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
