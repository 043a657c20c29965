package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlr-sc/gitlab2graph/internal/config"
	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"github.com/dlr-sc/gitlab2graph/internal/gitlab"
	"github.com/dlr-sc/gitlab2graph/internal/graph"
	"github.com/dlr-sc/gitlab2graph/internal/pipeline"
)

// runBatch processes every configuration file in order. A file that
// fails to load or validate is skipped and reported at the end; any
// failure during extraction aborts the remaining batch since the graph
// is then in a partial state worth inspecting.
func runBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	failed := 0
	for _, arg := range args {
		logger.WithField("config", arg).Info("Processing configuration")

		if err := processConfig(ctx, arg); err != nil {
			if errors.IsConfiguration(err) {
				logger.WithError(err).Errorf("Skipping %s", arg)
				failed++
				continue
			}
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d configurations failed", failed, len(args))
	}
	return nil
}

// processConfig runs the full extraction for one configuration file.
func processConfig(ctx context.Context, arg string) error {
	start := time.Now()

	cfg, err := config.Load(resolveConfigPath(arg))
	if err != nil {
		return err
	}
	if result := cfg.Validate(); result.HasErrors() {
		return errors.ConfigurationError(result.Error())
	}
	if err := cfg.ResolveSecrets(config.NewCredentialManager()); err != nil {
		return err
	}

	fmt.Printf("🔄 gitlab2graph: %s → %s\n", cfg.Project.ID, cfg.Neo4jURI())

	fmt.Printf("\n[1/3] Connecting...\n")
	sink, err := graph.NewClient(ctx, cfg.Neo4jURI(), cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return err
	}
	defer sink.Close(ctx)
	fmt.Printf("  ✓ Neo4j at %s\n", cfg.Neo4jURI())

	source, err := gitlab.NewClient(ctx, cfg.GitLab.URL, cfg.GitLab.Token, cfg.Project.ID)
	if err != nil {
		return err
	}
	fmt.Printf("  ✓ GitLab at %s\n", cfg.GitLab.URL)

	fmt.Printf("\n[2/3] Running pipelines...\n")
	deps := pipeline.Deps{
		Config: cfg,
		Source: source,
		Graph:  graph.NewRepository(sink),
	}
	reports, err := pipeline.NewOrchestrator(pipeline.Build(deps)).Run(ctx)
	for _, report := range reports {
		if report.Committed > 0 || err == nil {
			fmt.Printf("  ✓ %-13s %6d requested %6d committed  %v\n",
				report.Pipeline, report.Requested, report.Committed,
				report.Duration.Round(time.Millisecond))
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n[3/3] Done in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// resolveConfigPath keeps the historical layout working: names that do
// not resolve as given are also looked up under a configurations/
// directory below the working directory.
func resolveConfigPath(arg string) string {
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	candidate := filepath.Join("configurations", arg)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return arg
}
