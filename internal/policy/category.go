// Package policy selects per-category scoring weights for a unit of work and
// nudges them from persisted historical win-rate telemetry.
package policy

import (
	"strings"

	"arenalib/internal/plan"
)

// Category is the coarse classification of a unit used to select weights.
type Category string

const (
	CategoryTests    Category = "tests"
	CategoryDocs     Category = "docs"
	CategoryRefactor Category = "refactor"
	CategoryGeneral  Category = "general"
)

// Categories lists all categories in a stable order.
var Categories = []Category{CategoryTests, CategoryDocs, CategoryRefactor, CategoryGeneral}

var (
	testKeywords     = []string{"_test.go", "test", "spec", "fixture"}
	docKeywords      = []string{".md", "readme", "doc", "changelog", "guide"}
	refactorKeywords = []string{"refactor", "cleanup", "restructure", "simplify", "lint", "modernize"}
)

// Classify derives a category from keyword matching over the unit's scope
// paths and label. The first matching bucket wins, checked in order of
// specificity: tests, docs, refactor, general.
func Classify(u plan.Unit) Category {
	haystack := make([]string, 0, len(u.Scope)+1)
	for _, path := range u.Scope {
		haystack = append(haystack, strings.ToLower(path))
	}
	haystack = append(haystack, strings.ToLower(u.Label))

	if matchesAny(haystack, testKeywords) {
		return CategoryTests
	}
	if matchesAny(haystack, docKeywords) {
		return CategoryDocs
	}
	if matchesAny(haystack, refactorKeywords) {
		return CategoryRefactor
	}
	return CategoryGeneral
}

func matchesAny(haystack []string, keywords []string) bool {
	for _, h := range haystack {
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return true
			}
		}
	}
	return false
}
