// Package sweep implements the one-shot lifecycle sweep command.
package sweep

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/engine"
)

// Command creates the sweep command: a single lifecycle pass.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one lifecycle sweep and print its stats",
		Long:  "Deprecate stale records, delete long-deprecated ones and flag quiet records for review, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return engine.SweepOnce(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// setupFlags configures flags specific to the sweep command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Lifecycle.StalenessDays, "staleness", viper.GetInt("lifecycle.stalenessdays"), "Days without occurrences before a record is deprecated")
	cmd.Flags().IntVar(&settings.Lifecycle.DeletionDays, "deletion", viper.GetInt("lifecycle.deletiondays"), "Days deprecated before a record is deleted")
	cmd.Flags().BoolVar(&settings.Lifecycle.PruneLedger, "pruneledger", viper.GetBool("lifecycle.pruneledger"), "Prune ledger rows older than the deletion threshold")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
