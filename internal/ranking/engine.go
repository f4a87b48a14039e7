package ranking

import (
	"fmt"
	"math"
	"sort"

	"arenalib/internal/logging"
)

// Config holds the engine's tunables.
type Config struct {
	// TieEpsilon is the score gap below which a win stops being clear.
	TieEpsilon float64 `yaml:"tie_epsilon" json:"tie_epsilon"`
	// RewardBlend is the weight of the declared reward-model score against
	// the evaluator-weighted mean.
	RewardBlend float64 `yaml:"reward_blend" json:"reward_blend"`
	// HardZeroPenalty multiplies the evaluator mean when a hard evaluator
	// scores at or below HardFloor.
	HardZeroPenalty float64 `yaml:"hard_zero_penalty" json:"hard_zero_penalty"`
	// HardFloor is the score at or below which a hard evaluator counts as
	// failed.
	HardFloor float64 `yaml:"hard_floor" json:"hard_floor"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TieEpsilon:      0.03,
		RewardBlend:     0.3,
		HardZeroPenalty: 0.2,
		HardFloor:       0,
	}
}

// Engine computes descending rankings with calibrated confidence.
type Engine struct {
	cfg    Config
	logger logging.Logger
}

// NewEngine creates a ranking engine. A zero Config is replaced by defaults.
func NewEngine(cfg Config, logger logging.Logger) *Engine {
	if cfg.TieEpsilon <= 0 {
		cfg.TieEpsilon = DefaultConfig().TieEpsilon
	}
	if cfg.RewardBlend <= 0 || cfg.RewardBlend >= 1 {
		cfg.RewardBlend = DefaultConfig().RewardBlend
	}
	if cfg.HardZeroPenalty <= 0 || cfg.HardZeroPenalty >= 1 {
		cfg.HardZeroPenalty = DefaultConfig().HardZeroPenalty
	}
	return &Engine{cfg: cfg, logger: logging.OrNop(logger)}
}

// Rank scores every candidate and returns a strict descending ranking.
//
// Callers are expected to treat any error as "no ranking available" and fall
// back to heuristic winner resolution; the only error the engine itself
// produces is an empty candidate set.
func (e *Engine) Rank(task Task, candidates []Candidate) (*Outcome, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("rank task %s: no candidates", task.ID)
	}

	ranking := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranking = append(ranking, RankedCandidate{
			CandidateID: c.ID,
			Score:       e.aggregate(c),
		})
	}

	// Descending by score; candidate ID breaks exact ties so identical
	// inputs always produce identical orderings.
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].CandidateID < ranking[j].CandidateID
	})

	e.calibrate(ranking)

	e.logger.Debug("ranked %d candidates for task %s (top=%s score=%.3f)",
		len(ranking), task.ID, ranking[0].CandidateID, ranking[0].Score)

	return &Outcome{Task: task, Ranking: ranking}, nil
}

// aggregate blends the evaluator-weighted mean with the declared
// reward-model score. A failed hard evaluator collapses the evaluator mean
// far enough that no soft-evaluator advantage can outweigh it.
func (e *Engine) aggregate(c Candidate) float64 {
	var weighted, total float64
	hardFailed := false
	hybridFailed := false

	for _, ev := range c.Evaluations {
		w := ev.Spec.Weight
		if w <= 0 {
			continue
		}
		score := sanitize(ev.Score)
		weighted += w * score
		total += w

		if score <= e.cfg.HardFloor {
			switch ev.Spec.Kind {
			case KindHard:
				hardFailed = true
			case KindHybrid:
				hybridFailed = true
			}
		}
	}

	var evalMean float64
	if total > 0 {
		evalMean = weighted / total
	} else {
		evalMean = sanitize(c.RewardScore)
	}

	if hardFailed {
		evalMean *= e.cfg.HardZeroPenalty
	} else if hybridFailed {
		evalMean *= e.cfg.HardZeroPenalty + (1-e.cfg.HardZeroPenalty)/2
	}

	blend := e.cfg.RewardBlend
	agg := (1-blend)*evalMean + blend*sanitize(c.RewardScore)
	return sanitize(agg)
}

// calibrate assigns per-candidate confidence from the gap to the nearest
// neighbor: 1 beyond the epsilon, decaying linearly toward 0.5 at a dead tie.
// A sole candidate is fully confident.
func (e *Engine) calibrate(ranking []RankedCandidate) {
	if len(ranking) == 1 {
		ranking[0].Confidence = 1
		return
	}

	for i := range ranking {
		gap := math.Inf(1)
		if i > 0 {
			gap = math.Min(gap, math.Abs(ranking[i-1].Score-ranking[i].Score))
		}
		if i < len(ranking)-1 {
			gap = math.Min(gap, math.Abs(ranking[i].Score-ranking[i+1].Score))
		}

		if gap >= e.cfg.TieEpsilon {
			ranking[i].Confidence = 1
			continue
		}
		ranking[i].Confidence = 0.5 + 0.5*gap/e.cfg.TieEpsilon
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
