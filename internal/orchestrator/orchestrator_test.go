package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenalib/internal/plan"
	"arenalib/internal/policy"
	"arenalib/internal/resolve"
	"arenalib/internal/signals"
	"arenalib/internal/variant"
)

func newTestOrchestrator(t *testing.T, opts Options, exec variant.Executor, extras ...Option) *Orchestrator {
	t.Helper()
	extras = append(extras,
		WithTelemetryStore(policy.NewMemoryStore()),
		WithRegisterer(prometheus.NewRegistry()),
	)
	o, err := New(opts, exec, extras...)
	require.NoError(t, err)
	return o
}

func okExecutor(score float64) variant.Executor {
	return func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		return plan.StepResult{Success: true, Summary: "done", Score: score}, nil
	}
}

func twoStepUnit(id string) plan.Unit {
	return plan.Unit{
		ID:    id,
		Label: "improve " + id,
		Steps: []plan.Step{
			{ID: id + "-s1", Intent: plan.IntentAnalyze, Description: "analyze"},
			{ID: id + "-s2", Intent: plan.IntentUpgrade, Description: "upgrade"},
		},
	}
}

func TestNewRejectsNilExecutor(t *testing.T) {
	_, err := New(DefaultOptions(), nil)
	require.Error(t, err)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	opts := DefaultOptions()
	opts.Mode = "tournament"
	_, err := New(opts, okExecutor(0.5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown execution mode")
}

func TestRunRejectsEmptyPlan(t *testing.T) {
	o := newTestOrchestrator(t, DefaultOptions(), okExecutor(0.5))
	_, err := o.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestRunSingleMode(t *testing.T) {
	o := newTestOrchestrator(t, DefaultOptions(), okExecutor(0.8))

	result, err := o.Run(context.Background(), []plan.Unit{twoStepUnit("u1")})
	require.NoError(t, err)
	require.Len(t, result.Units, 1)

	unit := result.Units[0]
	assert.Equal(t, UnitCompleted, unit.Status)
	require.Len(t, unit.Outcomes, 2)
	for _, outcome := range unit.Outcomes {
		assert.Equal(t, plan.StepCompleted, outcome.Status)
		assert.Equal(t, plan.VariantPrimary, outcome.WinnerVariant)
		assert.Nil(t, outcome.Refiner)
		assert.Nil(t, outcome.Winner.RankingEntry)
	}

	assert.Equal(t, plan.WinStats{PrimaryWins: 2, TotalSteps: 2}, result.Stats)
	assert.Equal(t, 1, result.Completed())
}

func TestRunDualSequentialFailedRefinerLoses(t *testing.T) {
	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		if inv.Variant == plan.VariantRefiner {
			return plan.StepResult{}, errors.New("refiner crashed")
		}
		return plan.StepResult{Success: true, Summary: "primary fine", Score: 0.9}, nil
	}

	opts := DefaultOptions()
	opts.Mode = plan.ModeDualSequential
	o := newTestOrchestrator(t, opts, exec)

	result, err := o.Run(context.Background(), []plan.Unit{twoStepUnit("u1")})
	require.NoError(t, err)

	unit := result.Units[0]
	assert.Equal(t, UnitCompleted, unit.Status)
	for _, outcome := range unit.Outcomes {
		assert.Equal(t, plan.VariantPrimary, outcome.WinnerVariant)
		assert.Equal(t, plan.StepCompleted, outcome.Status)
		require.NotNil(t, outcome.Refiner)
		assert.False(t, outcome.Refiner.Success)
		// The winner is always one of the supplied results.
		assert.Equal(t, outcome.Primary, outcome.Winner)
	}
	assert.Equal(t, 2, result.Stats.PrimaryWins)
}

func TestRunDualRankedAttachesRankingEntry(t *testing.T) {
	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		sigs := signals.Set{}
		if inv.Variant == plan.VariantPrimary {
			sigs.Put(signals.SignalTestsPassed, 1)
			sigs.Put(signals.SignalCodeQuality, 0.9)
			return plan.StepResult{Success: true, Summary: "primary", Score: 0.9, Signals: sigs}, nil
		}
		sigs.Put(signals.SignalTestsPassed, 0.3)
		sigs.Put(signals.SignalCodeQuality, 0.4)
		return plan.StepResult{Success: true, Summary: "refiner", Score: 0.4, Signals: sigs}, nil
	}

	opts := DefaultOptions()
	opts.Mode = plan.ModeDualRanked
	o := newTestOrchestrator(t, opts, exec)

	result, err := o.Run(context.Background(), []plan.Unit{twoStepUnit("u1")})
	require.NoError(t, err)

	unit := result.Units[0]
	require.Len(t, unit.Outcomes, 2)
	for _, outcome := range unit.Outcomes {
		assert.Equal(t, plan.VariantPrimary, outcome.WinnerVariant)
		require.NotNil(t, outcome.Winner.RankingEntry)
		assert.Equal(t, string(plan.VariantPrimary), outcome.Winner.RankingEntry.CandidateID)
		assert.Greater(t, outcome.Winner.RankingEntry.Score, 0.0)
	}
	assert.Equal(t, 2, result.Stats.PrimaryWins)
	assert.Zero(t, result.Stats.RefinerWins)
}

func TestRunDualRankedDeterministic(t *testing.T) {
	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		score := 0.6
		if inv.Variant == plan.VariantRefiner {
			score = 0.7
		}
		sigs := signals.Set{}
		sigs.Put(signals.SignalTestsPassed, score)
		return plan.StepResult{Success: true, Summary: string(inv.Variant), Score: score, Signals: sigs}, nil
	}

	opts := DefaultOptions()
	opts.Mode = plan.ModeDualRanked
	units := []plan.Unit{twoStepUnit("u1")}

	var winners [][]plan.Variant
	for i := 0; i < 3; i++ {
		// A fresh orchestrator with a fresh store each round: identical plans
		// must produce identical winners.
		o := newTestOrchestrator(t, opts, exec)
		result, err := o.Run(context.Background(), units)
		require.NoError(t, err)

		var round []plan.Variant
		for _, outcome := range result.Units[0].Outcomes {
			round = append(round, outcome.WinnerVariant)
		}
		winners = append(winners, round)
	}
	assert.Equal(t, winners[0], winners[1])
	assert.Equal(t, winners[1], winners[2])
}

func TestRunHaltsOnUnitFailure(t *testing.T) {
	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		if inv.Unit.ID == "u1" {
			return plan.StepResult{Success: false, Summary: "broke the build"}, nil
		}
		return plan.StepResult{Success: true, Summary: "done", Score: 0.5}, nil
	}

	o := newTestOrchestrator(t, DefaultOptions(), exec)
	result, err := o.Run(context.Background(), []plan.Unit{twoStepUnit("u1"), twoStepUnit("u2")})
	require.NoError(t, err)

	require.Len(t, result.Units, 2)
	assert.Equal(t, UnitFailed, result.Units[0].Status)
	// The unit stops at the first failed step.
	assert.Len(t, result.Units[0].Outcomes, 1)
	assert.Equal(t, "broke the build", result.Units[0].Error)

	assert.Equal(t, UnitSkipped, result.Units[1].Status)
	assert.Empty(t, result.Units[1].Outcomes)
	assert.Equal(t, 1, result.Failed())
	assert.Equal(t, 1, result.Skipped())
}

func TestRunContinueOnFailure(t *testing.T) {
	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		if inv.Step.ID == "u1-s1" {
			return plan.StepResult{Success: false, Summary: "first step failed"}, nil
		}
		return plan.StepResult{Success: true, Summary: "done", Score: 0.5}, nil
	}

	opts := DefaultOptions()
	opts.ContinueOnFailure = true
	o := newTestOrchestrator(t, opts, exec)

	result, err := o.Run(context.Background(), []plan.Unit{twoStepUnit("u1"), twoStepUnit("u2")})
	require.NoError(t, err)

	// The failed unit still runs its remaining steps and keeps every outcome.
	assert.Equal(t, UnitFailed, result.Units[0].Status)
	assert.Len(t, result.Units[0].Outcomes, 2)
	assert.Equal(t, plan.StepCompleted, result.Units[0].Outcomes[1].Status)

	assert.Equal(t, UnitCompleted, result.Units[1].Status)
	assert.Len(t, result.Units[1].Outcomes, 2)
}

func TestRunParallelUnitsPreservePlanOrder(t *testing.T) {
	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		time.Sleep(2 * time.Millisecond)
		return plan.StepResult{Success: true, Summary: "done", Score: 0.5}, nil
	}

	opts := DefaultOptions()
	opts.ParallelUnits = true
	opts.UnitConcurrency = 2
	o := newTestOrchestrator(t, opts, exec)

	var units []plan.Unit
	for i := 0; i < 5; i++ {
		units = append(units, twoStepUnit(fmt.Sprintf("u%d", i)))
	}

	result, err := o.Run(context.Background(), units)
	require.NoError(t, err)
	require.Len(t, result.Units, 5)
	for i, report := range result.Units {
		assert.Equal(t, fmt.Sprintf("u%d", i), report.UnitID)
		assert.Equal(t, UnitCompleted, report.Status)
	}
	assert.Equal(t, 5, result.Completed())
	assert.Greater(t, result.AchievedParallelism, 0.0)
	assert.Equal(t, 10, result.Stats.TotalSteps)
}

func TestRunRecordsTelemetry(t *testing.T) {
	store := policy.NewMemoryStore()
	opts := DefaultOptions()
	opts.Mode = plan.ModeDualSequential

	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		score := 0.9
		if inv.Variant == plan.VariantRefiner {
			score = 0.1
		}
		return plan.StepResult{Success: true, Summary: "done", Score: score}, nil
	}

	o, err := New(opts, exec, WithTelemetryStore(store), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	unit := twoStepUnit("u1")
	unit.Scope = []string{"pkg/cache/cache_test.go"}
	_, err = o.Run(context.Background(), []plan.Unit{unit})
	require.NoError(t, err)

	counters, ok := store.Get(policy.CategoryTests)
	require.True(t, ok)
	assert.Equal(t, 2, counters.WinsPrimary)
	assert.Zero(t, counters.WinsRefiner)
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	sink := SinkFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	o := newTestOrchestrator(t, DefaultOptions(), okExecutor(0.5), WithEventSink(sink))
	_, err := o.Run(context.Background(), []plan.Unit{twoStepUnit("u1")})
	require.NoError(t, err)

	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	assert.Equal(t, []EventType{
		EventRunStarted,
		EventUnitStarted,
		EventStepStarted,
		EventStepResolved,
		EventStepStarted,
		EventStepResolved,
		EventUnitCompleted,
		EventRunCompleted,
	}, types)

	resolved := events[3]
	assert.Equal(t, "u1", resolved.Data["unit"])
	assert.Equal(t, string(plan.VariantPrimary), resolved.Data["winner"])
	assert.Equal(t, resolve.RuleSoleVariant, resolved.Data["rule"])
}

func TestRunTieCountsSeparately(t *testing.T) {
	// The primary's score lead matches the refiner tie bias exactly and the
	// confidences match, so every step resolves by the tie rule and is
	// counted as a tie, not a refiner win.
	exec := func(ctx context.Context, inv variant.Invocation) (plan.StepResult, error) {
		score := 0.05
		if inv.Variant == plan.VariantRefiner {
			score = 0
		}
		return plan.StepResult{Success: false, Summary: "stuck", Score: score, Confidence: 0.5}, nil
	}

	opts := DefaultOptions()
	opts.Mode = plan.ModeDualSequential
	opts.ContinueOnFailure = true
	o := newTestOrchestrator(t, opts, exec)

	result, err := o.Run(context.Background(), []plan.Unit{twoStepUnit("u1")})
	require.NoError(t, err)

	assert.Equal(t, plan.WinStats{Ties: 2, TotalSteps: 2}, result.Stats)
	for _, outcome := range result.Units[0].Outcomes {
		assert.Equal(t, plan.VariantRefiner, outcome.WinnerVariant)
		assert.Equal(t, plan.StepFailed, outcome.Status)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, plan.ModeSingle, opts.Mode)
	assert.Equal(t, defaultUnitConcurrency, opts.UnitConcurrency)

	opts = Options{Mode: plan.ModeDualRanked, UnitConcurrency: 7}.withDefaults()
	assert.Equal(t, plan.ModeDualRanked, opts.Mode)
	assert.Equal(t, 7, opts.UnitConcurrency)
}
