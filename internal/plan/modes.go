package plan

import "fmt"

// ModeID identifies an execution mode. The catalog is closed: exactly three
// modes exist and unrecognized identifiers are rejected at construction.
type ModeID string

const (
	// ModeSingle runs only the primary variant.
	ModeSingle ModeID = "single"
	// ModeDualSequential runs primary then refiner; the refiner observes the
	// primary's result and critiques it.
	ModeDualSequential ModeID = "dual-sequential"
	// ModeDualRanked runs both variants in isolation (parallel when workspace
	// roots allow) and ranks their candidates.
	ModeDualRanked ModeID = "dual-ranked"
)

// ModeDefinition describes one execution mode's fixed behavior.
type ModeDefinition struct {
	ID              ModeID
	Variants        []Variant
	Guidance        map[Variant]string
	RefinerTieBias  float64
	DefaultParallel bool
	Ranked          bool
}

// HasRefiner reports whether the mode declares a refiner variant.
func (m ModeDefinition) HasRefiner() bool {
	for _, v := range m.Variants {
		if v == VariantRefiner {
			return true
		}
	}
	return false
}

// GuidanceFor returns the per-variant guidance text, empty when undeclared.
func (m ModeDefinition) GuidanceFor(v Variant) string {
	return m.Guidance[v]
}

var modeCatalog = map[ModeID]ModeDefinition{
	ModeSingle: {
		ID:       ModeSingle,
		Variants: []Variant{VariantPrimary},
		Guidance: map[Variant]string{
			VariantPrimary: "Apply the step's improvement directly and verify it before reporting.",
		},
	},
	ModeDualSequential: {
		ID:       ModeDualSequential,
		Variants: []Variant{VariantPrimary, VariantRefiner},
		Guidance: map[Variant]string{
			VariantPrimary: "Apply the step's improvement directly and verify it before reporting.",
			VariantRefiner: "Review the primary attempt's result, fix its weaknesses, and report the improved change.",
		},
		RefinerTieBias: 0.05,
	},
	ModeDualRanked: {
		ID:       ModeDualRanked,
		Variants: []Variant{VariantPrimary, VariantRefiner},
		Guidance: map[Variant]string{
			VariantPrimary: "Apply the step's improvement directly and verify it before reporting.",
			VariantRefiner: "Independently produce an alternative improvement with a different approach.",
		},
		RefinerTieBias:  0.05,
		DefaultParallel: true,
		Ranked:          true,
	},
}

// Modes returns the closed catalog in a stable order.
func Modes() []ModeDefinition {
	return []ModeDefinition{
		modeCatalog[ModeSingle],
		modeCatalog[ModeDualSequential],
		modeCatalog[ModeDualRanked],
	}
}

// ModeByID resolves a mode identifier, rejecting anything outside the
// catalog. There is deliberately no fallback to a default mode.
func ModeByID(id ModeID) (ModeDefinition, error) {
	mode, ok := modeCatalog[id]
	if !ok {
		return ModeDefinition{}, fmt.Errorf("unknown execution mode %q", id)
	}
	return mode, nil
}
