package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlr-sc/gitlab2graph/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.ini> [<config.ini>...]",
	Short: "Check configuration files without touching GitLab or Neo4j",
	Long: `Load every given configuration file and report structural problems,
suspicious values and missing secrets. Nothing is connected to, so the
check is safe to run anywhere, including CI.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, arg := range args {
		fmt.Printf("Validating %s\n", arg)

		cfg, err := config.Load(resolveConfigPath(arg))
		if err != nil {
			fmt.Printf("  ❌ %v\n", err)
			failed++
			continue
		}

		result := cfg.Validate()
		if result.HasErrors() {
			fmt.Print(result.Error())
			failed++
			continue
		}

		for _, warning := range result.Warnings {
			fmt.Printf("  ⚠️  %s\n", warning)
		}
		fmt.Printf("  ✓ %s → project %s\n", cfg.GitLab.URL, cfg.Project.ID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d configurations are invalid", failed, len(args))
	}
	return nil
}
