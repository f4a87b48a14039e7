package signals

// Combine collapses a partial signal set into one scalar using the given
// weight vector: sum(weight*signal)/sum(weight) over only the signals that
// are present. Absent signals are ignored rather than treated as zero, so
// partial reporting degrades gracefully instead of being penalized.
//
// Non-positive weights are skipped. Returns 0 when nothing is observable.
// For non-negative weights and in-range signals the result is always in [0,1].
func Combine(weights map[Signal]float64, set Set) float64 {
	if len(weights) == 0 || len(set) == 0 {
		return 0
	}

	var weighted, total float64
	for sig, w := range weights {
		if w <= 0 {
			continue
		}
		v, ok := set.Get(sig)
		if !ok {
			continue
		}
		weighted += w * clamp01(v)
		total += w
	}
	if total == 0 {
		return 0
	}
	return clamp01(weighted / total)
}
