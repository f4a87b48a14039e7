// Package arena runs competitive code-improvement loops: for every step of a
// work plan, one or two policy variants produce candidate changes, a
// multi-criterion scoring pass ranks them, and a resolver picks exactly one
// winner. The package is the embeddable public surface; hosts supply the step
// executor that actually generates changes and receive a structured report.
package arena

import (
	"context"

	"arenalib/internal/logging"
	"arenalib/internal/orchestrator"
	"arenalib/internal/plan"
	"arenalib/internal/policy"
	"arenalib/internal/ranking"
	"arenalib/internal/variant"
)

// Plan data model.
type (
	Unit        = plan.Unit
	Step        = plan.Step
	StepResult  = plan.StepResult
	StepOutcome = plan.StepOutcome
	StepStatus  = plan.StepStatus
	StepIntent  = plan.StepIntent
	Variant     = plan.Variant
	WinStats    = plan.WinStats
)

const (
	VariantPrimary = plan.VariantPrimary
	VariantRefiner = plan.VariantRefiner

	IntentAnalyze = plan.IntentAnalyze
	IntentUpgrade = plan.IntentUpgrade
	IntentVerify  = plan.IntentVerify
	IntentCleanup = plan.IntentCleanup

	StepCompleted = plan.StepCompleted
	StepFailed    = plan.StepFailed
)

// Execution modes.
type (
	ModeID         = plan.ModeID
	ModeDefinition = plan.ModeDefinition
)

const (
	ModeSingle         = plan.ModeSingle
	ModeDualSequential = plan.ModeDualSequential
	ModeDualRanked     = plan.ModeDualRanked
)

// Modes returns the closed mode catalog.
func Modes() []ModeDefinition { return plan.Modes() }

// Executor boundary and workspace layout.
type (
	Executor       = variant.Executor
	Invocation     = variant.Invocation
	WorkspaceRoots = variant.WorkspaceRoots
)

// Run configuration and results.
type (
	Options      = orchestrator.Options
	Option       = orchestrator.Option
	RunResult    = orchestrator.RunResult
	UnitReport   = orchestrator.UnitReport
	UnitStatus   = orchestrator.UnitStatus
	Event        = orchestrator.Event
	EventType    = orchestrator.EventType
	EventSink    = orchestrator.EventSink
	SinkFunc     = orchestrator.SinkFunc
	Logger        = logging.Logger
	LogConfig     = logging.Config
	RankingConfig = ranking.Config
	PolicyConfig  = policy.Config
	PolicyStore   = policy.Store
	Orchestrator  = orchestrator.Orchestrator
)

const (
	UnitCompleted = orchestrator.UnitCompleted
	UnitFailed    = orchestrator.UnitFailed
	UnitSkipped   = orchestrator.UnitSkipped
)

// DefaultOptions returns the run defaults: single mode, sequential units,
// parallel variants permitted when workspaces allow.
func DefaultOptions() Options { return orchestrator.DefaultOptions() }

// LoadOptions reads run options from a YAML file, filling defaults for any
// field the document omits.
func LoadOptions(path string) (Options, error) { return orchestrator.LoadOptions(path) }

// New assembles an orchestrator around the host's step executor.
func New(opts Options, exec Executor, extras ...Option) (*Orchestrator, error) {
	return orchestrator.New(opts, exec, extras...)
}

// Run executes the plan with a freshly constructed orchestrator. Hosts that
// reuse one orchestrator across plans should call New directly.
func Run(ctx context.Context, opts Options, exec Executor, units []Unit, extras ...Option) (*RunResult, error) {
	o, err := New(opts, exec, extras...)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, units)
}

// NewLogger builds the default structured logger for hosts that have none.
func NewLogger(config LogConfig, component string) Logger {
	return logging.New(config, component)
}

// NewMemoryTelemetryStore returns an in-memory win-rate store, useful for
// tests and for hosts that manage persistence themselves.
func NewMemoryTelemetryStore() PolicyStore { return policy.NewMemoryStore() }

// Re-exported orchestrator options.
var (
	WithLogger         = orchestrator.WithLogger
	WithEventSink      = orchestrator.WithEventSink
	WithTelemetryStore = orchestrator.WithTelemetryStore
	WithRegisterer     = orchestrator.WithRegisterer
	WithRankingConfig  = orchestrator.WithRankingConfig
	WithPolicyConfig   = orchestrator.WithPolicyConfig
)
