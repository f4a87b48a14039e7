// Package signals classifies free-form execution output into normalized
// quality signals and combines partial signal sets into scalar scores.
package signals

// Signal names one independently observable quality axis. All values live in
// [0,1]; an unobserved signal is simply absent from a Set.
type Signal string

const (
	// SignalExecSuccess reports whether execution finished cleanly.
	SignalExecSuccess Signal = "exec_success"
	// SignalTestsPassed is the ratio of passing tests.
	SignalTestsPassed Signal = "tests_passed"
	// SignalStaticAnalysis reflects lint/static-analysis cleanliness.
	SignalStaticAnalysis Signal = "static_analysis"
	// SignalCodeQuality reflects refactoring depth vs leftover debt.
	SignalCodeQuality Signal = "code_quality"
	// SignalBlastRadius is 1 for a minimal diff, 0 for a sweeping one.
	SignalBlastRadius Signal = "blast_radius"
	// SignalConfidence is the change's self-assessed confidence.
	SignalConfidence Signal = "confidence"
	// SignalSpeedBonus rewards finishing faster than the baseline duration.
	SignalSpeedBonus Signal = "speed_bonus"
)

// All lists every signal axis.
var All = []Signal{
	SignalExecSuccess,
	SignalTestsPassed,
	SignalStaticAnalysis,
	SignalCodeQuality,
	SignalBlastRadius,
	SignalConfidence,
	SignalSpeedBonus,
}

// Set is a partial signal set. Only observed signals are populated.
type Set map[Signal]float64

// Put records a signal value, clamped to [0,1].
func (s Set) Put(sig Signal, v float64) {
	s[sig] = clamp01(v)
}

// Get returns the value and whether the signal was observed.
func (s Set) Get(sig Signal) (float64, bool) {
	v, ok := s[sig]
	return v, ok
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
