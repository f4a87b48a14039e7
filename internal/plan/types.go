// Package plan holds the read-only data model for a run: units of work,
// their ordered steps, and the results a step executor reports back per
// variant. Plan data is constructed once by an external planner and never
// mutated by the orchestrator.
package plan

import (
	"time"

	"arenalib/internal/signals"
)

// Variant identifies one of the competing policy variants for a step.
type Variant string

const (
	VariantPrimary Variant = "primary"
	VariantRefiner Variant = "refiner"
)

// StepIntent classifies what a step is trying to do.
type StepIntent string

const (
	IntentAnalyze StepIntent = "analyze"
	IntentUpgrade StepIntent = "upgrade"
	IntentVerify  StepIntent = "verify"
	IntentCleanup StepIntent = "cleanup"
)

// Step is a single unit of improvement work within a Unit. Steps execute
// strictly in declaration order.
type Step struct {
	ID          string     `json:"id" yaml:"id"`
	Intent      StepIntent `json:"intent" yaml:"intent"`
	Description string     `json:"description" yaml:"description"`
	Instruction string     `json:"instruction,omitempty" yaml:"instruction,omitempty"`
}

// Unit is an independently-sized unit of work with an ordered step list.
type Unit struct {
	ID           string   `json:"id" yaml:"id"`
	Label        string   `json:"label" yaml:"label"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Scope        []string `json:"scope,omitempty" yaml:"scope,omitempty"`
	HintCommands []string `json:"hint_commands,omitempty" yaml:"hint_commands,omitempty"`
	Steps        []Step   `json:"steps" yaml:"steps"`
}

// RankingEntry is the slice of a ranking pass attached to a winning result.
type RankingEntry struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
}

// StepResult is what the external step executor reports for one
// (unit, step, variant) invocation. Only Success and Summary are required;
// everything else is best-effort observation.
type StepResult struct {
	Success      bool              `json:"success"`
	Summary      string            `json:"summary"`
	Detail       string            `json:"detail,omitempty"`
	Score        float64           `json:"score,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Signals      signals.Set       `json:"signals,omitempty"`
	RankingEntry *RankingEntry     `json:"ranking_entry,omitempty"`
	Duration     time.Duration     `json:"duration,omitempty"`
	Findings     []string          `json:"findings,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	RawOutput    string            `json:"raw_output,omitempty"`
	Artifacts    map[string]string `json:"artifacts,omitempty"`
}

// StepStatus is a step outcome's terminal state.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepOutcome records what happened for one step: every variant's result and
// the winner. Winner is always one of the supplied results, never synthesized.
type StepOutcome struct {
	StepID        string      `json:"step_id"`
	Intent        StepIntent  `json:"intent"`
	Description   string      `json:"description"`
	Primary       StepResult  `json:"primary"`
	Refiner       *StepResult `json:"refiner,omitempty"`
	Winner        StepResult  `json:"winner"`
	WinnerVariant Variant     `json:"winner_variant"`
	Status        StepStatus  `json:"status"`
}

// WinStats holds running win counters, mutated once per completed step.
type WinStats struct {
	PrimaryWins int `json:"primary_wins"`
	RefinerWins int `json:"refiner_wins"`
	Ties        int `json:"ties"`
	TotalSteps  int `json:"total_steps"`
}

// Record counts one resolved step. A tie still names a winner (the refiner)
// but is counted separately from outright wins.
func (s *WinStats) Record(winner Variant, tie bool) {
	s.TotalSteps++
	if tie {
		s.Ties++
		return
	}
	switch winner {
	case VariantPrimary:
		s.PrimaryWins++
	case VariantRefiner:
		s.RefinerWins++
	}
}
