// Package variant runs a step's policy variants, sequentially or in isolated
// parallel, and shields the orchestrator from executor failures.
package variant

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"arenalib/internal/async"
	"arenalib/internal/logging"
	"arenalib/internal/plan"
)

// WorkspaceRoots are the per-variant filesystem roots provisioned by the
// external workspace collaborator. The orchestrator performs no locking of
// its own; isolation between roots is the provisioner's responsibility.
type WorkspaceRoots struct {
	Primary string `yaml:"primary" json:"primary"`
	Refiner string `yaml:"refiner" json:"refiner"`
}

// For returns the root for a variant, falling back to the primary root when
// a variant-specific one is absent.
func (r WorkspaceRoots) For(v plan.Variant) string {
	if v == plan.VariantRefiner && r.Refiner != "" {
		return r.Refiner
	}
	return r.Primary
}

// Invocation is the full context handed to the step executor for one
// variant attempt.
type Invocation struct {
	Unit          plan.Unit
	Step          plan.Step
	Variant       plan.Variant
	Mode          plan.ModeDefinition
	Previous      *plan.StepResult
	WorkspaceRoot string
	Guidance      string
	PolicyText    string
}

// Executor is the external change-generator boundary: a total function from
// invocation context to a step result. The coordinator wraps every call so
// an error or panic becomes a synthetic failed result rather than aborting
// the batch. Retry, if any, is the caller's responsibility.
type Executor func(ctx context.Context, inv Invocation) (plan.StepResult, error)

// Request describes one step's variant execution.
type Request struct {
	Unit       plan.Unit
	Step       plan.Step
	Mode       plan.ModeDefinition
	Roots      WorkspaceRoots
	PolicyText string
	// Parallel is the caller's preference; it only takes effect when
	// CanRunParallel allows it.
	Parallel bool
}

// Results carries every variant's result for a step.
type Results struct {
	Primary plan.StepResult
	Refiner *plan.StepResult
	// RanParallel reports whether isolated-parallel execution was used.
	RanParallel bool
}

// Coordinator executes a mode's declared variants for one step.
type Coordinator struct {
	exec   Executor
	logger logging.Logger
}

// NewCoordinator creates a Coordinator around the given executor.
func NewCoordinator(exec Executor, logger logging.Logger) *Coordinator {
	return &Coordinator{exec: exec, logger: logging.OrNop(logger)}
}

// CanRunParallel reports whether isolated-parallel execution is permitted:
// the mode must declare a refiner and both variants must have distinct,
// non-overlapping workspace roots. The predicate fails closed; any doubt
// means sequential execution.
func CanRunParallel(mode plan.ModeDefinition, roots WorkspaceRoots) bool {
	if !mode.HasRefiner() {
		return false
	}
	primary := filepath.Clean(roots.Primary)
	refiner := filepath.Clean(roots.Refiner)
	if roots.Primary == "" || roots.Refiner == "" || primary == refiner {
		return false
	}
	return !isSubpath(primary, refiner) && !isSubpath(refiner, primary)
}

func isSubpath(parent, child string) bool {
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// Execute runs the mode's variants. In sequential mode variants run in the
// declared order and only the refiner observes the primary's result. In
// parallel mode every variant runs concurrently with no visibility into the
// others' outcome.
func (c *Coordinator) Execute(ctx context.Context, req Request) Results {
	parallel := req.Parallel && CanRunParallel(req.Mode, req.Roots)
	if parallel {
		return c.executeParallel(ctx, req)
	}
	return c.executeSequential(ctx, req)
}

func (c *Coordinator) executeSequential(ctx context.Context, req Request) Results {
	var results Results
	var previous *plan.StepResult

	for _, v := range req.Mode.Variants {
		inv := c.invocation(req, v)
		if v == plan.VariantRefiner {
			inv.Previous = previous
		}
		res := c.invoke(ctx, inv)
		switch v {
		case plan.VariantPrimary:
			results.Primary = res
			copied := res
			previous = &copied
		case plan.VariantRefiner:
			refiner := res
			results.Refiner = &refiner
		}
	}
	return results
}

func (c *Coordinator) executeParallel(ctx context.Context, req Request) Results {
	results := Results{RanParallel: true}
	slots := make([]plan.StepResult, len(req.Mode.Variants))

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range req.Mode.Variants {
		g.Go(func() error {
			slots[i] = c.invoke(gctx, c.invocation(req, v))
			return nil
		})
	}
	// invoke never returns an error; the group is used for fan-out and
	// context plumbing only.
	_ = g.Wait()

	for i, v := range req.Mode.Variants {
		switch v {
		case plan.VariantPrimary:
			results.Primary = slots[i]
		case plan.VariantRefiner:
			refiner := slots[i]
			results.Refiner = &refiner
		}
	}
	return results
}

func (c *Coordinator) invocation(req Request, v plan.Variant) Invocation {
	return Invocation{
		Unit:          req.Unit,
		Step:          req.Step,
		Variant:       v,
		Mode:          req.Mode,
		WorkspaceRoot: req.Roots.For(v),
		Guidance:      req.Mode.GuidanceFor(v),
		PolicyText:    req.PolicyText,
	}
}

// invoke shields the caller from executor errors and panics, converting both
// into a failed result with score zero.
func (c *Coordinator) invoke(ctx context.Context, inv Invocation) plan.StepResult {
	start := time.Now()

	var res plan.StepResult
	err := async.Safe("executor", func() error {
		var execErr error
		res, execErr = c.exec(ctx, inv)
		return execErr
	})
	if err != nil {
		c.logger.Warn("variant %s failed on %s/%s: %v", inv.Variant, inv.Unit.ID, inv.Step.ID, err)
		res = plan.StepResult{
			Success:  false,
			Summary:  fmt.Sprintf("%s variant failed", inv.Variant),
			Detail:   err.Error(),
			Score:    0,
			Duration: time.Since(start),
		}
		return res
	}

	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	return res
}
