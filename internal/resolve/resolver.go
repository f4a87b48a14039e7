// Package resolve picks a step's winner from variant results, preferring a
// completed ranking and otherwise walking a fixed fallback chain.
package resolve

import (
	"arenalib/internal/plan"
	"arenalib/internal/ranking"
)

// Rule names identify which comparison decided a step. The declared order of
// the heuristic rules is part of the contract: each rule fires only when
// every prior rule produced no decision.
const (
	RuleSoleVariant = "sole-variant"
	RuleRankingTop  = "ranking-top"
	RuleSoleSuccess = "sole-success"
	RuleScore       = "score"
	RuleConfidence  = "confidence"
	RuleTieRefiner  = "tie-refiner"
)

// Input is everything the resolver may consult.
type Input struct {
	Primary plan.StepResult
	Refiner *plan.StepResult
	// Ranking, when present with at least one entry, decides outright.
	Ranking *ranking.Outcome
	// RefinerBias is the additive tie-break bias applied to the refiner's
	// score in the score rule, taken from the mode definition.
	RefinerBias float64
}

// Decision names the winning variant and the rule that chose it.
type Decision struct {
	Winner plan.Variant
	Rule   string
}

type heuristic struct {
	name  string
	apply func(in Input) (plan.Variant, bool)
}

// The fallback chain, in contract order.
var heuristics = []heuristic{
	{RuleSoleSuccess, soleSuccess},
	{RuleScore, scoreWithBias},
	{RuleConfidence, confidence},
	{RuleTieRefiner, tieFavorsRefiner},
}

// Resolve is a pure function: identical inputs always yield the same winner.
func Resolve(in Input) Decision {
	if in.Refiner == nil {
		return Decision{Winner: plan.VariantPrimary, Rule: RuleSoleVariant}
	}

	if top := in.Ranking.Top(); top != nil {
		if v, ok := variantFromID(top.CandidateID); ok {
			return Decision{Winner: v, Rule: RuleRankingTop}
		}
		// An unrecognizable candidate ID means the ranking cannot be mapped
		// back to a variant; fall through to the heuristics.
	}

	for _, h := range heuristics {
		if winner, ok := h.apply(in); ok {
			return Decision{Winner: winner, Rule: h.name}
		}
	}

	// Unreachable: the tie rule always decides.
	return Decision{Winner: plan.VariantRefiner, Rule: RuleTieRefiner}
}

func variantFromID(id string) (plan.Variant, bool) {
	switch plan.Variant(id) {
	case plan.VariantPrimary:
		return plan.VariantPrimary, true
	case plan.VariantRefiner:
		return plan.VariantRefiner, true
	default:
		return "", false
	}
}

// soleSuccess: success always beats failure, regardless of score.
func soleSuccess(in Input) (plan.Variant, bool) {
	if in.Primary.Success == in.Refiner.Success {
		return "", false
	}
	if in.Primary.Success {
		return plan.VariantPrimary, true
	}
	return plan.VariantRefiner, true
}

// scoreWithBias compares scores with the refiner receiving the mode's
// additive tie-break bias.
func scoreWithBias(in Input) (plan.Variant, bool) {
	primary := in.Primary.Score
	refiner := in.Refiner.Score + in.RefinerBias
	switch {
	case primary > refiner:
		return plan.VariantPrimary, true
	case refiner > primary:
		return plan.VariantRefiner, true
	default:
		return "", false
	}
}

func confidence(in Input) (plan.Variant, bool) {
	switch {
	case in.Primary.Confidence > in.Refiner.Confidence:
		return plan.VariantPrimary, true
	case in.Refiner.Confidence > in.Primary.Confidence:
		return plan.VariantRefiner, true
	default:
		return "", false
	}
}

// tieFavorsRefiner deliberately biases exploration toward the refiner policy
// over time.
func tieFavorsRefiner(Input) (plan.Variant, bool) {
	return plan.VariantRefiner, true
}
