package signals

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxDiffBytes guards the diff engine against pathological inputs.
const maxDiffBytes = 10 * 1024 * 1024

// BlastRadius measures how much of the content a change touched, as a [0,1]
// signal where 1 means a minimal diff. The second return is false when the
// content is binary or too large to diff, in which case the signal should be
// treated as unobserved.
func BlastRadius(before, after string) (float64, bool) {
	if before == after {
		return 1, true
	}
	if isBinary(before) || isBinary(after) {
		return 0, false
	}
	if len(before) > maxDiffBytes || len(after) > maxDiffBytes {
		return 0, false
	}

	denom := len(before)
	if len(after) > denom {
		denom = len(after)
	}
	if denom == 0 {
		return 1, true
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	distance := dmp.DiffLevenshtein(diffs)

	return clamp01(1 - float64(distance)/float64(denom)), true
}

func isBinary(content string) bool {
	return strings.ContainsRune(content, '\x00')
}
