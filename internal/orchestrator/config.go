package orchestrator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"arenalib/internal/plan"
	"arenalib/internal/variant"
)

// Options are the caller-supplied run options. Zero values are filled by
// DefaultOptions; hosts that need reproducible runs should construct Options
// explicitly instead of relying on environment resolution.
type Options struct {
	Mode              plan.ModeID            `yaml:"mode" json:"mode"`
	ContinueOnFailure bool                   `yaml:"continue_on_failure" json:"continue_on_failure"`
	WorkspaceRoots    variant.WorkspaceRoots `yaml:"workspace_roots" json:"workspace_roots"`
	PolicyText        string                 `yaml:"policy_text,omitempty" json:"policy_text,omitempty"`

	// ParallelUnits opts units into concurrent execution through the worker
	// pool; UnitConcurrency is the ceiling (default 3).
	ParallelUnits   bool `yaml:"parallel_units" json:"parallel_units"`
	UnitConcurrency int  `yaml:"unit_concurrency" json:"unit_concurrency"`

	// ParallelVariants allows isolated-parallel variant execution when the
	// mode and workspace roots permit it (default true).
	ParallelVariants bool `yaml:"parallel_variants" json:"parallel_variants"`

	// TelemetryDisabled turns off the persisted win-rate store. The default
	// resolves once from ARENA_TELEMETRY_DISABLED so tests never depend on
	// the process environment.
	TelemetryDisabled bool   `yaml:"telemetry_disabled" json:"telemetry_disabled"`
	TelemetryPath     string `yaml:"telemetry_path,omitempty" json:"telemetry_path,omitempty"`
}

const defaultUnitConcurrency = 3

// DefaultOptions returns the option defaults: single mode, sequential units
// with ceiling 3, parallel variants permitted.
func DefaultOptions() Options {
	return Options{
		Mode:              plan.ModeSingle,
		UnitConcurrency:   defaultUnitConcurrency,
		ParallelVariants:  true,
		TelemetryDisabled: envTelemetryDisabled(),
	}
}

func envTelemetryDisabled() bool {
	switch strings.ToLower(os.Getenv("ARENA_TELEMETRY_DISABLED")) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// LoadOptions reads run options from a YAML file. Fields absent from the
// document keep their DefaultOptions value.
func LoadOptions(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read options: %w", err)
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return Options{}, fmt.Errorf("parse options %s: %w", path, err)
	}
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = plan.ModeSingle
	}
	if o.UnitConcurrency <= 0 {
		o.UnitConcurrency = defaultUnitConcurrency
	}
	return o
}
