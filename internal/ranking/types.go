// Package ranking orders competing candidates for a step and attaches a
// calibrated confidence to each ranked entry.
package ranking

import "arenalib/internal/signals"

// EvaluatorKind distinguishes how much an evaluator's failure should matter.
type EvaluatorKind string

const (
	// KindHard marks criteria whose zero score must be able to dominate the
	// ranking regardless of soft-evaluator strength (build success, tests).
	KindHard EvaluatorKind = "hard"
	// KindSoft marks advisory criteria (style, clarity).
	KindSoft EvaluatorKind = "soft"
	// KindHybrid sits in between: a zero hurts badly but not terminally.
	KindHybrid EvaluatorKind = "hybrid"
)

// EvaluatorSpec describes one scoring criterion.
type EvaluatorSpec struct {
	ID     string        `json:"id" yaml:"id"`
	Label  string        `json:"label" yaml:"label"`
	Weight float64       `json:"weight" yaml:"weight"`
	Kind   EvaluatorKind `json:"kind" yaml:"kind"`
}

// EvaluatorScore pairs a spec with the score a candidate earned on it.
type EvaluatorScore struct {
	Spec  EvaluatorSpec `json:"spec"`
	Score float64       `json:"score"`
}

// Metrics is the observed measurement superset for a candidate.
type Metrics struct {
	Signals         signals.Set `json:"signals,omitempty"`
	DiffSize        int         `json:"diff_size,omitempty"`
	ComplexityDelta float64     `json:"complexity_delta,omitempty"`
	ToolSuccesses   int         `json:"tool_successes,omitempty"`
	ToolFailures    int         `json:"tool_failures,omitempty"`
}

// Candidate is one variant's proposal entering a ranking pass. IDs are unique
// per invocation, conventionally "primary" and "refiner".
type Candidate struct {
	ID             string           `json:"id"`
	PolicyID       string           `json:"policy_id"`
	Summary        string           `json:"summary"`
	Metrics        Metrics          `json:"metrics"`
	RewardScore    float64          `json:"reward_score"`
	SelfAssessment float64          `json:"self_assessment"`
	Evaluations    []EvaluatorScore `json:"evaluations"`
	RawOutput      string           `json:"raw_output,omitempty"`
}

// Task is echoed through the ranking for classification by consumers; the
// engine itself never interprets it.
type Task struct {
	ID          string            `json:"id"`
	Goal        string            `json:"goal"`
	Constraints []string          `json:"constraints,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RankedCandidate is one entry of a descending ranking.
type RankedCandidate struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
}

// Outcome is a completed ranking pass.
type Outcome struct {
	Task    Task              `json:"task"`
	Ranking []RankedCandidate `json:"ranking"`
}

// Top returns the highest-ranked entry, nil when the ranking is empty.
func (o *Outcome) Top() *RankedCandidate {
	if o == nil || len(o.Ranking) == 0 {
		return nil
	}
	return &o.Ranking[0]
}
