package resolve

import (
	"testing"

	"arenalib/internal/plan"
	"arenalib/internal/ranking"
)

func result(success bool, score, confidence float64) plan.StepResult {
	return plan.StepResult{Success: success, Score: score, Confidence: confidence}
}

func TestResolveNilRefinerIsSoleVariant(t *testing.T) {
	dec := Resolve(Input{Primary: result(false, 0, 0)})
	if dec.Winner != plan.VariantPrimary || dec.Rule != RuleSoleVariant {
		t.Fatalf("got %+v, want primary via %s", dec, RuleSoleVariant)
	}
}

func TestResolveRankingDecidesOutright(t *testing.T) {
	refiner := result(true, 0.2, 0.2)
	in := Input{
		// Heuristics would all pick primary; the ranking must override them.
		Primary: result(true, 0.9, 0.9),
		Refiner: &refiner,
		Ranking: &ranking.Outcome{Ranking: []ranking.RankedCandidate{
			{CandidateID: string(plan.VariantRefiner), Score: 0.8},
			{CandidateID: string(plan.VariantPrimary), Score: 0.7},
		}},
	}

	dec := Resolve(in)
	if dec.Winner != plan.VariantRefiner || dec.Rule != RuleRankingTop {
		t.Fatalf("got %+v, want refiner via %s", dec, RuleRankingTop)
	}
}

func TestResolveUnknownRankingIDFallsThrough(t *testing.T) {
	refiner := result(true, 0.2, 0.2)
	in := Input{
		Primary: result(true, 0.9, 0.9),
		Refiner: &refiner,
		Ranking: &ranking.Outcome{Ranking: []ranking.RankedCandidate{
			{CandidateID: "candidate-7", Score: 0.8},
		}},
	}

	dec := Resolve(in)
	if dec.Winner != plan.VariantPrimary || dec.Rule != RuleScore {
		t.Fatalf("got %+v, want primary via %s", dec, RuleScore)
	}
}

func TestResolveSoleSuccessBeatsScore(t *testing.T) {
	tests := []struct {
		name    string
		primary plan.StepResult
		refiner plan.StepResult
		want    plan.Variant
	}{
		{"primary succeeded", result(true, 0.1, 0), result(false, 0.9, 0), plan.VariantPrimary},
		{"refiner succeeded", result(false, 0.9, 0), result(true, 0.1, 0), plan.VariantRefiner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refiner := tt.refiner
			dec := Resolve(Input{Primary: tt.primary, Refiner: &refiner})
			if dec.Winner != tt.want || dec.Rule != RuleSoleSuccess {
				t.Fatalf("got %+v, want %s via %s", dec, tt.want, RuleSoleSuccess)
			}
		})
	}
}

func TestResolveScoreWithRefinerBias(t *testing.T) {
	tests := []struct {
		name         string
		primaryScore float64
		refinerScore float64
		bias         float64
		want         plan.Variant
	}{
		{"primary clearly ahead", 0.9, 0.5, 0.05, plan.VariantPrimary},
		{"refiner clearly ahead", 0.5, 0.9, 0.05, plan.VariantRefiner},
		// Bias flips a raw-score draw and a narrow primary lead.
		{"bias flips the draw", 0.7, 0.7, 0.05, plan.VariantRefiner},
		{"bias flips a narrow lead", 0.73, 0.7, 0.05, plan.VariantRefiner},
		{"primary survives the bias", 0.8, 0.7, 0.05, plan.VariantPrimary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refiner := result(true, tt.refinerScore, 0)
			in := Input{Primary: result(true, tt.primaryScore, 0), Refiner: &refiner, RefinerBias: tt.bias}
			dec := Resolve(in)
			if dec.Winner != tt.want || dec.Rule != RuleScore {
				t.Fatalf("got %+v, want %s via %s", dec, tt.want, RuleScore)
			}
		})
	}
}

func TestResolveConfidenceBreaksScoreTie(t *testing.T) {
	// 0.5 + 0.25 lands exactly on the primary's 0.75, forcing the score rule
	// to pass.
	refiner := result(true, 0.5, 0.9)
	in := Input{
		Primary:     result(true, 0.75, 0.4),
		Refiner:     &refiner,
		RefinerBias: 0.25,
	}

	dec := Resolve(in)
	if dec.Winner != plan.VariantRefiner || dec.Rule != RuleConfidence {
		t.Fatalf("got %+v, want refiner via %s", dec, RuleConfidence)
	}
}

func TestResolveFullTieFavorsRefiner(t *testing.T) {
	refiner := result(true, 0.5, 0.5)
	in := Input{Primary: result(true, 0.5, 0.5), Refiner: &refiner}

	dec := Resolve(in)
	if dec.Winner != plan.VariantRefiner || dec.Rule != RuleTieRefiner {
		t.Fatalf("got %+v, want refiner via %s", dec, RuleTieRefiner)
	}
}

func TestResolveIsPure(t *testing.T) {
	refiner := result(false, 0.31, 0.7)
	in := Input{Primary: result(false, 0.3, 0.7), Refiner: &refiner, RefinerBias: 0.05}

	first := Resolve(in)
	for i := 0; i < 20; i++ {
		if got := Resolve(in); got != first {
			t.Fatalf("resolution drifted: %+v vs %+v", got, first)
		}
	}
}
