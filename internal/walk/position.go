package walk

import (
	"hash/fnv"
	"math"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
)

// ResolvePosition maps a gate position spec to a track step. The result for a
// range spec depends only on nodeSeed and gateID, and is identical on every
// platform and process.
func ResolvePosition(spec flow.PositionSpec, trackLength int, nodeSeed int64, gateID string) int {
	switch spec.Kind {
	case flow.PositionAbsolute:
		return clampZero(spec.Steps)
	case flow.PositionPercent:
		if trackLength <= 0 {
			return 0
		}
		return clampZero(int(math.Round(float64(trackLength) * spec.Percent / 100)))
	case flow.PositionRange:
		lo, hi := spec.Min, spec.Max
		if hi < lo {
			lo, hi = hi, lo
		}
		lo = clampZero(lo)
		hi = clampZero(hi)
		span := uint64(hi-lo) + 1
		h := mix64(uint64(nodeSeed) ^ hashString(gateID))
		return lo + int(h%span)
	default:
		events.Emit("warn", "config.warning", "unknown gate position kind", map[string]interface{}{
			"gate_id": gateID,
			"kind":    string(spec.Kind),
		})
		return 0
	}
}

// hashString is 64-bit FNV-1a, stable across processes and versions.
func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// deriveSeed combines a session seed with salts into a new seed.
func deriveSeed(seed int64, salt string, n int) int64 {
	v := uint64(seed) ^ hashString(salt) ^ (uint64(uint32(int32(n))) * 0xc2b2ae3d27d4eb4f)
	return int64(mix64(v))
}
