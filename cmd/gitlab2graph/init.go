package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlr-sc/gitlab2graph/internal/config"
	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

var initCmd = &cobra.Command{
	Use:   "init <config.ini>",
	Short: "Register the uniqueness constraints in Neo4j",
	Long: `Connect to the Neo4j database from the configuration file and create
the uniqueness constraints for every entity type, without extracting
anything. Constraints are created with IF NOT EXISTS, so init is safe
to run repeatedly and on databases that already hold data.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(resolveConfigPath(args[0]))
	if err != nil {
		return err
	}
	if result := cfg.Validate(); result.HasErrors() {
		return errors.ConfigurationError(result.Error())
	}
	if err := cfg.ResolveSecrets(config.NewCredentialManager()); err != nil {
		return err
	}

	sink, err := graph.NewClient(ctx, cfg.Neo4jURI(), cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return err
	}
	defer sink.Close(ctx)

	repo := graph.NewRepository(sink)
	for _, entity := range graph.Types() {
		if err := repo.SetConstraints(ctx, entity); err != nil {
			return err
		}
		fmt.Printf("  ✓ %s (%v)\n", entity.Label, entity.UniqueKeys)
	}

	fmt.Printf("✅ Constraints ready on %s\n", cfg.Neo4jURI())
	return nil
}
