package signals

import (
	"encoding/json"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaptinlin/jsonrepair"
)

// ExtractOptions carries the timing context needed for the speed signal.
type ExtractOptions struct {
	// Duration is how long the step took.
	Duration time.Duration
	// Baseline is the reference duration a comparable step is expected to take.
	Baseline time.Duration
}

// Extractor classifies raw execution output into a partial signal set.
//
// The contract is best-effort and total: Extract never fails for any input,
// every value it emits is clamped to [0,1], and an unrecognized pattern
// leaves the signal absent rather than guessed. Identical outputs are
// memoized because re-ranking passes re-observe the same text.
type Extractor struct {
	cache *lru.Cache[uint64, Set]
}

const extractorCacheSize = 256

// NewExtractor creates an Extractor with a bounded memoization cache.
func NewExtractor() *Extractor {
	cache, err := lru.New[uint64, Set](extractorCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		cache = nil
	}
	return &Extractor{cache: cache}
}

// Extract maps output text to whatever signals it can recognize.
func (e *Extractor) Extract(output string, opts ExtractOptions) Set {
	key := cacheKey(output, opts)
	if e.cache != nil {
		if hit, ok := e.cache.Get(key); ok {
			return hit.Clone()
		}
	}

	set := extract(output, opts)

	if e.cache != nil {
		e.cache.Add(key, set.Clone())
	}
	return set
}

func cacheKey(output string, opts ExtractOptions) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(output))
	var buf [16]byte
	putInt64(buf[:8], int64(opts.Duration))
	putInt64(buf[8:], int64(opts.Baseline))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

var (
	rePassCount   = regexp.MustCompile(`(?i)\b(\d+)\s+(?:tests?\s+)?pass(?:ed|ing)?\b`)
	reFailCount   = regexp.MustCompile(`(?i)\b(\d+)\s+(?:tests?\s+)?fail(?:ed|ing|ures?)?\b`)
	reAllPass     = regexp.MustCompile(`(?i)\ball tests pass(?:ed|ing)?\b`)
	reTestsFailed = regexp.MustCompile(`(?i)\btests? (?:are )?failing\b|\btest suite failed\b`)

	reExecOK   = regexp.MustCompile(`(?i)exit code[:\s]+0\b|completed successfully|build succeeded|finished successfully`)
	reExecFail = regexp.MustCompile(`(?i)exit code[:\s]+[1-9]\d*\b|command failed|build failed|fatal error|panic:`)

	reLintClean  = regexp.MustCompile(`(?i)no lint (?:issues|errors|warnings)|lint(?:ing)?(?: is)? clean|0 lint issues`)
	reLintIssues = regexp.MustCompile(`(?i)\b(\d+)\s+lint (?:issues?|errors?|warnings?)\b|\b(\d+)\s+warnings?\b`)

	reRefactor = regexp.MustCompile(`(?i)\brefactor(?:ed|ing)?\b|\bsimplif(?:ied|y)\b|\bcleaned up\b|\bdeduplicated\b`)
	reDebt     = regexp.MustCompile(`\b(?:TODO|FIXME|HACK)\b`)

	reFilesChanged = regexp.MustCompile(`(?i)\b(\d+)\s+files?\s+changed\b`)
	reDepInstall   = regexp.MustCompile(`(?i)installed \d+ packages|added (?:\d+ )?dependenc(?:y|ies)|\bnpm install\b|\bgo get\b|\bpip install\b`)

	reConfHigh = regexp.MustCompile(`(?i)\bhigh(?:ly)? confiden(?:t|ce)\b|\bvery confident\b`)
	reConfLow  = regexp.MustCompile(`(?i)\buncertain\b|\bnot (?:entirely )?sure\b|\blow confidence\b|\bunsure\b`)
	reConfNum  = regexp.MustCompile(`(?i)\bconfidence[:=\s]+(\d+(?:\.\d+)?%?|\.\d+)`)

	reJSONBlock = regexp.MustCompile(`\{[^{}]{0,600}\}`)
)

// extract does the actual classification. A panic anywhere (malformed UTF-8
// edge cases in third-party parsing, for instance) yields an empty set
// instead of escaping to the caller.
func extract(output string, opts ExtractOptions) (set Set) {
	set = make(Set)
	defer func() {
		if r := recover(); r != nil {
			set = make(Set)
		}
	}()

	extractTests(output, set)
	extractExec(output, set)
	extractLint(output, set)
	extractQuality(output, set)
	extractBlast(output, set)
	extractConfidence(output, set)
	applySelfReport(output, set)

	if opts.Duration > 0 && opts.Baseline > 0 {
		ratio := float64(opts.Baseline) / float64(opts.Duration)
		set.Put(SignalSpeedBonus, ratio/2)
	}

	return set
}

func extractTests(output string, set Set) {
	if reAllPass.MatchString(output) {
		set.Put(SignalTestsPassed, 1)
		return
	}

	var passed, failed int
	var sawPass, sawFail bool
	if m := rePassCount.FindStringSubmatch(output); m != nil {
		passed, _ = strconv.Atoi(m[1])
		sawPass = true
	}
	if m := reFailCount.FindStringSubmatch(output); m != nil {
		failed, _ = strconv.Atoi(m[1])
		sawFail = true
	}

	switch {
	case sawPass || sawFail:
		total := passed + failed
		if total == 0 {
			return
		}
		set.Put(SignalTestsPassed, float64(passed)/float64(total))
	case reTestsFailed.MatchString(output):
		set.Put(SignalTestsPassed, 0)
	}
}

func extractExec(output string, set Set) {
	failed := reExecFail.MatchString(output)
	succeeded := reExecOK.MatchString(output)
	switch {
	case failed:
		// Failure phrasing wins when both appear; a partial success that
		// still printed an error is not a clean execution.
		set.Put(SignalExecSuccess, 0)
	case succeeded:
		set.Put(SignalExecSuccess, 1)
	}
}

func extractLint(output string, set Set) {
	if reLintClean.MatchString(output) {
		set.Put(SignalStaticAnalysis, 1)
		return
	}
	if m := reLintIssues.FindStringSubmatch(output); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		n, _ := strconv.Atoi(raw)
		if n == 0 {
			set.Put(SignalStaticAnalysis, 1)
			return
		}
		set.Put(SignalStaticAnalysis, 1-float64(n)/20)
	}
}

func extractQuality(output string, set Set) {
	debt := len(reDebt.FindAllString(output, 6))
	refactored := reRefactor.MatchString(output)
	switch {
	case refactored && debt == 0:
		set.Put(SignalCodeQuality, 0.9)
	case refactored:
		set.Put(SignalCodeQuality, 0.9-0.15*float64(debt))
	case debt > 0:
		set.Put(SignalCodeQuality, 0.4-0.1*float64(debt-1))
	}
}

func extractBlast(output string, set Set) {
	if m := reFilesChanged.FindStringSubmatch(output); m != nil {
		n, _ := strconv.Atoi(m[1])
		set.Put(SignalBlastRadius, 1-float64(n)/20)
	}
	if reDepInstall.MatchString(output) {
		// Pulling in dependencies widens the blast radius regardless of how
		// few files the diff itself touched.
		if v, ok := set.Get(SignalBlastRadius); !ok || v > 0.5 {
			set.Put(SignalBlastRadius, 0.5)
		}
	}
}

func extractConfidence(output string, set Set) {
	if m := reConfNum.FindStringSubmatch(output); m != nil {
		raw := strings.TrimSuffix(m[1], "%")
		v, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			if v > 1 {
				v /= 100
			}
			set.Put(SignalConfidence, v)
			return
		}
	}
	switch {
	case reConfHigh.MatchString(output):
		set.Put(SignalConfidence, 0.9)
	case reConfLow.MatchString(output):
		set.Put(SignalConfidence, 0.3)
	}
}

// applySelfReport looks for an embedded machine-readable self-report and
// lets it override pattern-derived values. Executors often emit near-JSON
// (trailing commas, single quotes), so blocks are run through jsonrepair
// before parsing. Anything unparseable is ignored.
func applySelfReport(output string, set Set) {
	blocks := reJSONBlock.FindAllString(output, 8)
	for _, block := range blocks {
		if !strings.Contains(block, "tests") && !strings.Contains(block, "confidence") &&
			!strings.Contains(block, "quality") && !strings.Contains(block, "success") &&
			!strings.Contains(block, "files_changed") {
			continue
		}

		repaired, err := jsonrepair.JSONRepair(block)
		if err != nil {
			continue
		}
		var report map[string]any
		if err := json.Unmarshal([]byte(repaired), &report); err != nil {
			continue
		}
		mergeSelfReport(report, set)
	}
}

func mergeSelfReport(report map[string]any, set Set) {
	if v, ok := report["success"].(bool); ok {
		if v {
			set.Put(SignalExecSuccess, 1)
		} else {
			set.Put(SignalExecSuccess, 0)
		}
	}

	passed, hasPassed := reportNumber(report, "tests_passed")
	failed, hasFailed := reportNumber(report, "tests_failed")
	switch {
	case hasPassed && hasFailed && passed+failed > 0:
		set.Put(SignalTestsPassed, passed/(passed+failed))
	case hasPassed && passed <= 1:
		set.Put(SignalTestsPassed, passed)
	}

	if v, ok := reportNumber(report, "confidence"); ok {
		set.Put(SignalConfidence, normalizeScale(v))
	}
	if v, ok := reportNumber(report, "quality"); ok {
		set.Put(SignalCodeQuality, normalizeScale(v))
	} else if v, ok := reportNumber(report, "code_quality"); ok {
		set.Put(SignalCodeQuality, normalizeScale(v))
	}
	if v, ok := reportNumber(report, "static_analysis"); ok {
		set.Put(SignalStaticAnalysis, normalizeScale(v))
	}
	if v, ok := reportNumber(report, "files_changed"); ok {
		set.Put(SignalBlastRadius, 1-v/20)
	}
}

func reportNumber(report map[string]any, key string) (float64, bool) {
	raw, ok := report[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// normalizeScale maps percentage-style values onto [0,1].
func normalizeScale(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}
