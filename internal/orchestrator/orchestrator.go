// Package orchestrator drives the competitive improvement loop: units of
// work through steps, variant execution, ranking, winner resolution,
// telemetry, and report assembly.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"arenalib/internal/logging"
	"arenalib/internal/plan"
	"arenalib/internal/policy"
	"arenalib/internal/pool"
	"arenalib/internal/ranking"
	"arenalib/internal/resolve"
	"arenalib/internal/signals"
	"arenalib/internal/variant"
)

// Orchestrator is the top-level state machine for a run.
type Orchestrator struct {
	opts      Options
	mode      plan.ModeDefinition
	coord     *variant.Coordinator
	engine    *ranking.Engine
	builder   *policy.Builder
	store     policy.Store
	extractor *signals.Extractor
	logger    logging.Logger
	sink      EventSink
	metrics   *Metrics
}

type settings struct {
	logger     logging.Logger
	sink       EventSink
	store      policy.Store
	registerer prometheus.Registerer
	rankingCfg ranking.Config
	policyCfg  policy.Config
}

// Option customizes orchestrator construction.
type Option func(*settings)

// WithLogger injects the logger used across all components.
func WithLogger(logger logging.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithEventSink attaches an observational event sink.
func WithEventSink(sink EventSink) Option {
	return func(s *settings) { s.sink = sink }
}

// WithTelemetryStore substitutes the telemetry store, typically an
// in-memory one for deterministic tests.
func WithTelemetryStore(store policy.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithRegisterer uses a dedicated Prometheus registerer instead of the
// shared default collectors.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// WithRankingConfig overrides the ranking engine tunables.
func WithRankingConfig(cfg ranking.Config) Option {
	return func(s *settings) { s.rankingCfg = cfg }
}

// WithPolicyConfig overrides the scoring-policy builder tunables.
func WithPolicyConfig(cfg policy.Config) Option {
	return func(s *settings) { s.policyCfg = cfg }
}

// New validates the options and assembles an orchestrator around the given
// step executor. Unknown mode identifiers are rejected here, not at run
// time.
func New(opts Options, exec variant.Executor, extras ...Option) (*Orchestrator, error) {
	if exec == nil {
		return nil, fmt.Errorf("orchestrator requires a step executor")
	}
	opts = opts.withDefaults()

	mode, err := plan.ModeByID(opts.Mode)
	if err != nil {
		return nil, err
	}

	s := settings{
		rankingCfg: ranking.DefaultConfig(),
		policyCfg:  policy.DefaultConfig(),
	}
	for _, extra := range extras {
		extra(&s)
	}

	logger := logging.OrNop(s.logger)
	store := s.store
	if store == nil {
		store = policy.NewFileStore(opts.TelemetryPath, opts.TelemetryDisabled, logger)
	}

	metrics := defaultMetrics()
	if s.registerer != nil {
		metrics = MustNewMetrics(s.registerer)
	}

	return &Orchestrator{
		opts:      opts,
		mode:      mode,
		coord:     variant.NewCoordinator(exec, logger),
		engine:    ranking.NewEngine(s.rankingCfg, logger),
		builder:   policy.NewBuilder(s.policyCfg, store, logger),
		store:     store,
		extractor: signals.NewExtractor(),
		logger:    logger,
		sink:      s.sink,
		metrics:   metrics,
	}, nil
}

// Run drives the plan to completion and assembles the report. Failures
// inside the step loop become outcome data; Run itself errors only for
// construction-grade defects such as an empty plan.
func (o *Orchestrator) Run(ctx context.Context, units []plan.Unit) (*RunResult, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("run requires at least one unit of work")
	}

	start := time.Now()
	ctx, span := startSpan(ctx, traceSpanRun, attribute.String(traceAttrMode, string(o.opts.Mode)))
	defer span.End()

	_ = o.store.Load()
	o.emit(EventRunStarted, map[string]any{"mode": string(o.opts.Mode), "units": len(units)})

	reports := make([]UnitReport, len(units))
	var halted atomic.Bool
	var statsMu sync.Mutex
	var stats plan.WinStats
	var parallelism float64

	runUnit := func(ctx context.Context, idx int) {
		u := units[idx]
		if halted.Load() {
			reports[idx] = UnitReport{UnitID: u.ID, Label: u.Label, Status: UnitSkipped}
			o.metrics.observeUnit(string(UnitSkipped))
			o.emit(EventUnitSkipped, map[string]any{"unit": u.ID})
			return
		}
		reports[idx] = o.processUnit(ctx, u, &stats, &statsMu)
		if reports[idx].Status == UnitFailed && !o.opts.ContinueOnFailure {
			halted.Store(true)
		}
	}

	if o.opts.ParallelUnits && len(units) > 1 {
		tasks := make([]pool.Task, len(units))
		for i := range units {
			tasks[i] = pool.Task{
				ID:  units[i].ID,
				Run: func(ctx context.Context) error { runUnit(ctx, i); return nil },
			}
		}
		batch := pool.Run(ctx, tasks, o.opts.UnitConcurrency, o.logger)
		parallelism = batch.AchievedParallelism

		// A task the pool never scheduled (cancellation) leaves its report
		// slot empty; surface it as skipped so the report stays coherent.
		for i := range reports {
			if reports[i].Status == "" {
				reports[i] = UnitReport{UnitID: units[i].ID, Label: units[i].Label, Status: UnitSkipped}
			}
		}
	} else {
		for i := range units {
			runUnit(ctx, i)
		}
	}

	result := &RunResult{
		Mode:                o.opts.Mode,
		ContinueOnFailure:   o.opts.ContinueOnFailure,
		Units:               reports,
		Stats:               stats,
		WorkspaceRoots:      o.opts.WorkspaceRoots,
		PolicyText:          o.opts.PolicyText,
		WallClock:           time.Since(start),
		AchievedParallelism: parallelism,
	}

	_ = o.store.Persist()
	markSpanStatus(span, result.Failed() > 0, "")
	o.emit(EventRunCompleted, map[string]any{
		"completed": result.Completed(),
		"failed":    result.Failed(),
		"skipped":   result.Skipped(),
	})

	return result, nil
}

// processUnit runs one unit's steps strictly in plan order. A failed step
// marks the unit failed; under a continue-on-failure policy the remaining
// steps still run and their outcomes accumulate independently.
func (o *Orchestrator) processUnit(ctx context.Context, u plan.Unit, stats *plan.WinStats, statsMu *sync.Mutex) UnitReport {
	start := time.Now()
	ctx, span := startSpan(ctx, traceSpanUnit, attribute.String(traceAttrUnitID, u.ID))
	defer span.End()

	o.metrics.unitStarted()
	defer o.metrics.unitFinished()
	o.emit(EventUnitStarted, map[string]any{"unit": u.ID, "label": u.Label})

	pol := o.builder.PolicyFor(u)
	report := UnitReport{UnitID: u.ID, Label: u.Label, Status: UnitCompleted}

	for _, step := range u.Steps {
		outcome := o.processStep(ctx, u, step, pol, stats, statsMu)
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Status == plan.StepFailed {
			report.Status = UnitFailed
			report.Error = outcome.Winner.Summary
			if !o.opts.ContinueOnFailure {
				break
			}
		}
	}

	report.Duration = time.Since(start)
	o.metrics.observeUnit(string(report.Status))
	markSpanStatus(span, report.Status == UnitFailed, report.Error)
	o.emit(EventUnitCompleted, map[string]any{"unit": u.ID, "status": string(report.Status)})
	return report
}

func (o *Orchestrator) processStep(ctx context.Context, u plan.Unit, step plan.Step, pol policy.ScoringPolicy, stats *plan.WinStats, statsMu *sync.Mutex) plan.StepOutcome {
	start := time.Now()
	ctx, span := startSpan(ctx, traceSpanStep,
		attribute.String(traceAttrUnitID, u.ID),
		attribute.String(traceAttrStepID, step.ID),
		attribute.String(traceAttrIntent, string(step.Intent)),
	)
	defer span.End()

	o.emit(EventStepStarted, map[string]any{"unit": u.ID, "step": step.ID, "intent": string(step.Intent)})

	results := o.coord.Execute(ctx, variant.Request{
		Unit:       u,
		Step:       step,
		Mode:       o.mode,
		Roots:      o.opts.WorkspaceRoots,
		PolicyText: o.opts.PolicyText,
		Parallel:   o.opts.ParallelVariants,
	})

	var rankOut *ranking.Outcome
	if o.mode.Ranked && results.Refiner != nil {
		rankOut = o.rank(u, step, pol, results)
	}

	dec := resolve.Resolve(resolve.Input{
		Primary:     results.Primary,
		Refiner:     results.Refiner,
		Ranking:     rankOut,
		RefinerBias: o.mode.RefinerTieBias,
	})

	winner := results.Primary
	if dec.Winner == plan.VariantRefiner && results.Refiner != nil {
		winner = *results.Refiner
	}
	if entry := rankedEntryFor(rankOut, dec.Winner); entry != nil {
		winner.RankingEntry = entry
	}

	status := plan.StepCompleted
	if !winner.Success {
		status = plan.StepFailed
	}

	statsMu.Lock()
	stats.Record(dec.Winner, dec.Rule == resolve.RuleTieRefiner)
	statsMu.Unlock()
	_ = o.store.Update(pol.Category, dec.Winner)

	o.metrics.observeStep(string(step.Intent), string(status), time.Since(start))
	span.SetAttributes(attribute.String(traceAttrWinner, string(dec.Winner)))
	markSpanStatus(span, status == plan.StepFailed, winner.Summary)
	o.emit(EventStepResolved, map[string]any{
		"unit":   u.ID,
		"step":   step.ID,
		"winner": string(dec.Winner),
		"rule":   dec.Rule,
		"status": string(status),
	})

	return plan.StepOutcome{
		StepID:        step.ID,
		Intent:        step.Intent,
		Description:   step.Description,
		Primary:       results.Primary,
		Refiner:       results.Refiner,
		Winner:        winner,
		WinnerVariant: dec.Winner,
		Status:        status,
	}
}

// rank scores both candidates with the unit's policy weights. A ranking
// failure is swallowed: the step falls back to heuristic resolution.
func (o *Orchestrator) rank(u plan.Unit, step plan.Step, pol policy.ScoringPolicy, results variant.Results) *ranking.Outcome {
	task := ranking.Task{
		ID:          u.ID + "/" + step.ID,
		Goal:        step.Description,
		Constraints: u.Scope,
		Metadata: map[string]string{
			"label":    u.Label,
			"category": string(pol.Category),
			"intent":   string(step.Intent),
		},
	}

	candidates := []ranking.Candidate{
		o.buildCandidate(plan.VariantPrimary, results.Primary, pol),
		o.buildCandidate(plan.VariantRefiner, *results.Refiner, pol),
	}

	out, err := o.engine.Rank(task, candidates)
	if err != nil {
		o.metrics.observeRankingFallback()
		o.logger.Warn("ranking failed for %s: %v (falling back to heuristics)", task.ID, err)
		return nil
	}
	return out
}

// buildCandidate assembles a ranking candidate from a variant's result,
// filling missing signals from raw output and diff artifacts.
func (o *Orchestrator) buildCandidate(v plan.Variant, res plan.StepResult, pol policy.ScoringPolicy) ranking.Candidate {
	sigs := res.Signals.Clone()
	if len(sigs) == 0 && res.RawOutput != "" {
		sigs = o.extractor.Extract(res.RawOutput, signals.ExtractOptions{Duration: res.Duration})
	}
	if sigs == nil {
		sigs = make(signals.Set)
	}

	if _, ok := sigs.Get(signals.SignalExecSuccess); !ok {
		if res.Success {
			sigs.Put(signals.SignalExecSuccess, 1)
		} else {
			sigs.Put(signals.SignalExecSuccess, 0)
		}
	}
	if _, ok := sigs.Get(signals.SignalConfidence); !ok && res.Confidence > 0 {
		sigs.Put(signals.SignalConfidence, res.Confidence)
	}
	if _, ok := sigs.Get(signals.SignalBlastRadius); !ok {
		if before, okBefore := res.Artifacts["before"]; okBefore {
			if after, okAfter := res.Artifacts["after"]; okAfter {
				if radius, measurable := signals.BlastRadius(before, after); measurable {
					sigs.Put(signals.SignalBlastRadius, radius)
				}
			}
		}
	}

	reward := signals.Combine(pol.Rewards.SignalWeights(), sigs)
	if reward == 0 && res.Score > 0 {
		reward = res.Score
	}

	return ranking.Candidate{
		ID:             string(v),
		PolicyID:       string(v),
		Summary:        res.Summary,
		Metrics:        ranking.Metrics{Signals: sigs},
		RewardScore:    reward,
		SelfAssessment: res.Confidence,
		Evaluations:    evaluationsFor(res, sigs, pol.Evaluators),
		RawOutput:      res.RawOutput,
	}
}

func evaluationsFor(res plan.StepResult, sigs signals.Set, specs []ranking.EvaluatorSpec) []ranking.EvaluatorScore {
	scores := make([]ranking.EvaluatorScore, 0, len(specs))
	for _, spec := range specs {
		var score float64
		switch spec.ID {
		case policy.EvaluatorBuild:
			if res.Success {
				score = 1
			}
		case policy.EvaluatorTests:
			if v, ok := sigs.Get(signals.SignalTestsPassed); ok {
				score = v
			} else if res.Success {
				score = 1
			}
		case policy.EvaluatorQuality:
			if v, ok := sigs.Get(signals.SignalCodeQuality); ok {
				score = v
			} else if v, ok := sigs.Get(signals.SignalStaticAnalysis); ok {
				score = v
			} else {
				score = res.Score
			}
		case policy.EvaluatorScope:
			if v, ok := sigs.Get(signals.SignalBlastRadius); ok {
				score = v
			} else {
				score = 1
			}
		default:
			score = res.Score
		}
		scores = append(scores, ranking.EvaluatorScore{Spec: spec, Score: score})
	}
	return scores
}

func rankedEntryFor(out *ranking.Outcome, v plan.Variant) *plan.RankingEntry {
	if out == nil {
		return nil
	}
	for _, entry := range out.Ranking {
		if entry.CandidateID == string(v) {
			return &plan.RankingEntry{
				CandidateID: entry.CandidateID,
				Score:       entry.Score,
				Confidence:  entry.Confidence,
			}
		}
	}
	return nil
}
