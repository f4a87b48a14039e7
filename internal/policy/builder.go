package policy

import (
	"arenalib/internal/logging"
	"arenalib/internal/plan"
	"arenalib/internal/ranking"
	"arenalib/internal/signals"
)

// Well-known evaluator IDs. "build" and "tests" are hard criteria: either
// failing must be able to dominate a ranking.
const (
	EvaluatorBuild   = "build"
	EvaluatorTests   = "tests"
	EvaluatorQuality = "quality"
	EvaluatorScope   = "scope"
)

// RewardWeights is a convex combination over the three reward axes.
// Consumers renormalize over only the axes they can observe.
type RewardWeights struct {
	Correctness float64 `yaml:"correctness" json:"correctness"`
	Quality     float64 `yaml:"quality" json:"quality"`
	Speed       float64 `yaml:"speed" json:"speed"`
}

// Normalized scales the weights to sum to 1. All-zero weights fall back to
// pure correctness.
func (w RewardWeights) Normalized() RewardWeights {
	total := w.Correctness + w.Quality + w.Speed
	if total <= 0 {
		return RewardWeights{Correctness: 1}
	}
	return RewardWeights{
		Correctness: w.Correctness / total,
		Quality:     w.Quality / total,
		Speed:       w.Speed / total,
	}
}

// SignalWeights translates the reward axes into a signal weight vector for
// the score combiner.
func (w RewardWeights) SignalWeights() map[signals.Signal]float64 {
	n := w.Normalized()
	return map[signals.Signal]float64{
		signals.SignalExecSuccess:    n.Correctness,
		signals.SignalTestsPassed:    n.Correctness,
		signals.SignalStaticAnalysis: n.Quality,
		signals.SignalCodeQuality:    n.Quality,
		signals.SignalBlastRadius:    n.Quality,
		signals.SignalConfidence:     n.Correctness / 2,
		signals.SignalSpeedBonus:     n.Speed,
	}
}

// ScoringPolicy is the weight selection for one unit of work.
type ScoringPolicy struct {
	Category   Category                `json:"category" yaml:"category"`
	Evaluators []ranking.EvaluatorSpec `json:"evaluators" yaml:"evaluators"`
	Rewards    RewardWeights           `json:"rewards" yaml:"rewards"`
}

// Config holds the builder's tunables.
type Config struct {
	// BiasThreshold is the historical win-rate imbalance beyond which the
	// weights get nudged.
	BiasThreshold float64 `yaml:"bias_threshold" json:"bias_threshold"`
	// BiasNudge is how far a single nudge moves the favored axis.
	BiasNudge float64 `yaml:"bias_nudge" json:"bias_nudge"`
	// MinWeight and MaxWeight bound every nudged weight.
	MinWeight float64 `yaml:"min_weight" json:"min_weight"`
	MaxWeight float64 `yaml:"max_weight" json:"max_weight"`
}

// DefaultConfig returns the builder defaults.
func DefaultConfig() Config {
	return Config{
		BiasThreshold: 0.1,
		BiasNudge:     0.1,
		MinWeight:     0.05,
		MaxWeight:     0.9,
	}
}

// Builder emits scoring policies per unit, biased by historical telemetry.
// This is a pure exploitation loop with no exploration schedule: the system
// optimizes for stable convergence on one codebase.
type Builder struct {
	cfg    Config
	store  Store
	logger logging.Logger
}

// NewBuilder creates a Builder. The store may be nil, in which case no
// historical bias is applied.
func NewBuilder(cfg Config, store Store, logger logging.Logger) *Builder {
	if cfg.BiasThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Builder{cfg: cfg, store: store, logger: logging.OrNop(logger)}
}

// PolicyFor classifies the unit and returns the weights to score it with.
func (b *Builder) PolicyFor(u plan.Unit) ScoringPolicy {
	category := Classify(u)
	pol := basePolicy(category)

	if b.store == nil {
		return pol
	}
	counters, ok := b.store.Get(category)
	if !ok || counters.Total() == 0 {
		return pol
	}

	total := counters.Total()
	bias := float64(counters.WinsPrimary-counters.WinsRefiner) / float64(max(1, total))
	if bias > b.cfg.BiasThreshold {
		// The primary's direct changes have been winning: trust hard
		// correctness signals more.
		pol = b.nudge(pol, true)
		b.logger.Debug("category %s biased toward correctness (bias=%.2f over %d steps)", category, bias, total)
	} else if bias < -b.cfg.BiasThreshold {
		// The refiner's reworked changes have been winning: trust quality
		// signals more.
		pol = b.nudge(pol, false)
		b.logger.Debug("category %s biased toward quality (bias=%.2f over %d steps)", category, bias, total)
	}

	return pol
}

func (b *Builder) nudge(pol ScoringPolicy, towardCorrectness bool) ScoringPolicy {
	if towardCorrectness {
		pol.Rewards.Correctness = b.clampWeight(pol.Rewards.Correctness + b.cfg.BiasNudge)
		pol.Rewards.Quality = b.clampWeight(pol.Rewards.Quality - b.cfg.BiasNudge/2)
	} else {
		pol.Rewards.Quality = b.clampWeight(pol.Rewards.Quality + b.cfg.BiasNudge)
		pol.Rewards.Correctness = b.clampWeight(pol.Rewards.Correctness - b.cfg.BiasNudge/2)
	}
	pol.Rewards = pol.Rewards.Normalized()

	specs := make([]ranking.EvaluatorSpec, len(pol.Evaluators))
	copy(specs, pol.Evaluators)
	for i := range specs {
		hard := specs[i].Kind == ranking.KindHard
		switch {
		case towardCorrectness && hard:
			specs[i].Weight = b.clampWeight(specs[i].Weight + b.cfg.BiasNudge)
		case !towardCorrectness && !hard:
			specs[i].Weight = b.clampWeight(specs[i].Weight + b.cfg.BiasNudge)
		}
	}
	pol.Evaluators = specs
	return pol
}

func (b *Builder) clampWeight(w float64) float64 {
	if w < b.cfg.MinWeight {
		return b.cfg.MinWeight
	}
	if w > b.cfg.MaxWeight {
		return b.cfg.MaxWeight
	}
	return w
}

// basePolicy returns the per-category starting weights. Test-heavy units
// weight hard metrics highest; docs units weight quality highest.
func basePolicy(category Category) ScoringPolicy {
	switch category {
	case CategoryTests:
		return ScoringPolicy{
			Category: category,
			Evaluators: []ranking.EvaluatorSpec{
				{ID: EvaluatorBuild, Label: "Build success", Weight: 0.35, Kind: ranking.KindHard},
				{ID: EvaluatorTests, Label: "Tests passing", Weight: 0.4, Kind: ranking.KindHard},
				{ID: EvaluatorQuality, Label: "Code quality", Weight: 0.15, Kind: ranking.KindSoft},
				{ID: EvaluatorScope, Label: "Change scope", Weight: 0.1, Kind: ranking.KindSoft},
			},
			Rewards: RewardWeights{Correctness: 0.7, Quality: 0.2, Speed: 0.1},
		}
	case CategoryDocs:
		return ScoringPolicy{
			Category: category,
			Evaluators: []ranking.EvaluatorSpec{
				{ID: EvaluatorBuild, Label: "Build success", Weight: 0.2, Kind: ranking.KindHard},
				{ID: EvaluatorQuality, Label: "Writing quality", Weight: 0.55, Kind: ranking.KindSoft},
				{ID: EvaluatorScope, Label: "Change scope", Weight: 0.25, Kind: ranking.KindSoft},
			},
			Rewards: RewardWeights{Correctness: 0.3, Quality: 0.6, Speed: 0.1},
		}
	case CategoryRefactor:
		return ScoringPolicy{
			Category: category,
			Evaluators: []ranking.EvaluatorSpec{
				{ID: EvaluatorBuild, Label: "Build success", Weight: 0.3, Kind: ranking.KindHard},
				{ID: EvaluatorTests, Label: "Tests passing", Weight: 0.25, Kind: ranking.KindHybrid},
				{ID: EvaluatorQuality, Label: "Code quality", Weight: 0.3, Kind: ranking.KindSoft},
				{ID: EvaluatorScope, Label: "Change scope", Weight: 0.15, Kind: ranking.KindSoft},
			},
			Rewards: RewardWeights{Correctness: 0.4, Quality: 0.5, Speed: 0.1},
		}
	default:
		return ScoringPolicy{
			Category: CategoryGeneral,
			Evaluators: []ranking.EvaluatorSpec{
				{ID: EvaluatorBuild, Label: "Build success", Weight: 0.35, Kind: ranking.KindHard},
				{ID: EvaluatorTests, Label: "Tests passing", Weight: 0.25, Kind: ranking.KindHybrid},
				{ID: EvaluatorQuality, Label: "Code quality", Weight: 0.25, Kind: ranking.KindSoft},
				{ID: EvaluatorScope, Label: "Change scope", Weight: 0.15, Kind: ranking.KindSoft},
			},
			Rewards: RewardWeights{Correctness: 0.5, Quality: 0.3, Speed: 0.2},
		}
	}
}
