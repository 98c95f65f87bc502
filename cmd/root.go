package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tkoskela/patternmind-go/cmd/analyze"
	"github.com/tkoskela/patternmind-go/cmd/serve"
	"github.com/tkoskela/patternmind-go/cmd/sweep"
	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "patternmind",
		Short: "PatternMind pattern and synergy mining engine",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		analyze.Command(settings),
		sweep.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags configures global flags shared by all subcommands.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
}
