package orchestrator

import (
	"time"

	"arenalib/internal/plan"
	"arenalib/internal/variant"
)

// UnitStatus is a unit of work's terminal state.
type UnitStatus string

const (
	UnitCompleted UnitStatus = "completed"
	UnitFailed    UnitStatus = "failed"
	UnitSkipped   UnitStatus = "skipped"
)

// UnitReport is one unit's portion of the final report.
type UnitReport struct {
	UnitID   string             `json:"unit_id"`
	Label    string             `json:"label"`
	Status   UnitStatus         `json:"status"`
	Outcomes []plan.StepOutcome `json:"outcomes,omitempty"`
	Error    string             `json:"error,omitempty"`
	Duration time.Duration      `json:"duration,omitempty"`
}

// RunResult is the full report for one run. Unit reports always follow the
// original plan order, never completion order, and every aggregate is
// materialized once at assembly time.
type RunResult struct {
	Mode              plan.ModeID            `json:"mode"`
	ContinueOnFailure bool                   `json:"continue_on_failure"`
	Units             []UnitReport           `json:"units"`
	Stats             plan.WinStats          `json:"stats"`
	WorkspaceRoots    variant.WorkspaceRoots `json:"workspace_roots"`
	PolicyText        string                 `json:"policy_text,omitempty"`
	WallClock         time.Duration          `json:"wall_clock"`
	// AchievedParallelism is populated only for parallel-unit runs and is
	// observational.
	AchievedParallelism float64 `json:"achieved_parallelism,omitempty"`
}

// Completed counts units that finished successfully.
func (r *RunResult) Completed() int {
	return r.countStatus(UnitCompleted)
}

// Failed counts units that terminated in failure.
func (r *RunResult) Failed() int {
	return r.countStatus(UnitFailed)
}

// Skipped counts units that never ran because of a halt.
func (r *RunResult) Skipped() int {
	return r.countStatus(UnitSkipped)
}

func (r *RunResult) countStatus(status UnitStatus) int {
	n := 0
	for _, u := range r.Units {
		if u.Status == status {
			n++
		}
	}
	return n
}
