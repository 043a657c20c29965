package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Report is the outcome of one pipeline within a run.
type Report struct {
	Pipeline  string
	Requested int
	Committed int
	Duration  time.Duration
}

// Orchestrator drives the pipelines through their phases. Everything
// runs serially in registry order, the first fatal error aborts the
// batch where it happened. There are no retries and no rollback, the
// graph keeps whatever was pushed before the failure.
type Orchestrator struct {
	pipelines []Pipeline
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given pipelines,
// usually Build(deps).
func NewOrchestrator(pipelines []Pipeline) *Orchestrator {
	return &Orchestrator{
		pipelines: pipelines,
		logger:    slog.Default().With("component", "orchestrator"),
	}
}

// Run executes the batch and reports per-pipeline counts. On failure
// the reports collected so far are returned alongside the error.
func (o *Orchestrator) Run(ctx context.Context) ([]Report, error) {
	start := time.Now()

	reports := make([]Report, len(o.pipelines))
	for i, pipe := range o.pipelines {
		reports[i].Pipeline = pipe.Name()
	}

	// Phase 1: initialize every pipeline. Each one resolves the
	// project and registers its uniqueness constraint.
	for _, pipe := range o.pipelines {
		o.logger.Debug("initializing pipeline", "pipeline", pipe.Name())
		if err := pipe.Init(ctx); err != nil {
			return reports, err
		}
	}

	// Phase 2: request all raw data before the first transform so
	// every pipeline sees the same snapshot of the project.
	for i, pipe := range o.pipelines {
		o.logger.Info("requesting data", "pipeline", pipe.Name())
		phaseStart := time.Now()

		count, err := pipe.Request(ctx)
		reports[i].Requested = count
		reports[i].Duration = time.Since(phaseStart)
		if err != nil {
			return reports, err
		}
	}

	// Phase 3: transform and commit pipeline by pipeline, in registry
	// order, so later pipelines can resolve earlier pipelines' nodes.
	for i, pipe := range o.pipelines {
		phaseStart := time.Now()

		o.logger.Info("transforming data", "pipeline", pipe.Name())
		if err := pipe.Transform(ctx); err != nil {
			reports[i].Duration += time.Since(phaseStart)
			return reports, err
		}

		o.logger.Info("committing data", "pipeline", pipe.Name())
		count, err := pipe.Commit(ctx)
		reports[i].Committed = count
		reports[i].Duration += time.Since(phaseStart)
		if err != nil {
			return reports, err
		}
	}

	o.logger.Info("batch completed",
		"pipelines", len(o.pipelines),
		"duration", time.Since(start).Round(time.Millisecond))
	return reports, nil
}
