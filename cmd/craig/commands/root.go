package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/config"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

var (
	// Global flags
	configPath   string
	documentPath string
	outputFormat string
	verbose      bool

	appConfig *config.AppConfig
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "craig",
		Short: "craig - reactive configuration graph store",
		Long: `craig keeps a cloud infrastructure configuration document consistent.

Every change to the document runs a repair pass over all registered
entity types: defaults are restored, references to deleted entities are
cleared, renamed keys are cascaded and mirrored fields are resynced.

Features:
  - Built-in catalog of VPC, VSI, key management and network types
  - Declarative catalogs with Starlark predicates
  - CUE schemas generated from the registered types
  - Lint policies via OPA/rego
  - Document watching with automatic reconciliation`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAppConfig(configPath)
			if err != nil {
				return err
			}
			if documentPath != "" {
				cfg.Document = documentPath
			}
			if outputFormat != "" {
				cfg.Output = outputFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			appConfig = cfg

			switch {
			case verbose:
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			case os.Getenv("LOG_LEVEL") == "":
				zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.LogLevel))
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&documentPath, "document", "d", "", "configuration document (.json, .yaml, .cue)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format (text, json, yaml, cue)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newMutateCommand())
	rootCmd.AddCommand(newDescribeCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newRestoreCommand())

	return rootCmd
}
