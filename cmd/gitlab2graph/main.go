package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dlr-sc/gitlab2graph/internal/config"
	"github.com/dlr-sc/gitlab2graph/internal/graph"
	"github.com/dlr-sc/gitlab2graph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose bool
	logger  *logrus.Logger
)

func main() {
	// A broken entity registry is a programming error, catch it before
	// any command touches GitLab or Neo4j.
	if err := graph.ValidateSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gitlab2graph <config.ini> [<config.ini>...]",
	Short: "Extract GitLab projects into a Neo4j property graph",
	Long: `gitlab2graph walks one GitLab project per configuration file and loads
its users, labels, milestones, issues, merge requests and commits into
Neo4j as a connected property graph.

Each configuration file describes one project and one target database.
Files are processed in order; a broken configuration is skipped, a
failure while extracting aborts the whole batch.`,
	Version: Version,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runBatch,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnvFiles()

		// CLI messages go through logrus, the internal packages log
		// through the shared slog handler set up here. Both follow
		// LOGLEVEL unless --verbose forces debug.
		level := logging.ParseLevel(os.Getenv("LOGLEVEL"))
		if verbose {
			level = logging.DEBUG
		}

		logger = logrus.New()
		switch level {
		case logging.DEBUG:
			logger.SetLevel(logrus.DebugLevel)
		case logging.INFO:
			logger.SetLevel(logrus.InfoLevel)
		case logging.ERROR:
			logger.SetLevel(logrus.ErrorLevel)
		default:
			logger.SetLevel(logrus.WarnLevel)
		}

		if err := logging.Initialize(logging.Config{Level: level}); err != nil {
			logger.WithError(err).Warn("Failed to initialize logging")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`gitlab2graph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configureCmd)
}
