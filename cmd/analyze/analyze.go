// Package analyze implements the one-shot mining command.
package analyze

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/engine"
)

// Command creates the analyze command: a single mining pass.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one mining pass and print the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return engine.RunOnce(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// setupFlags configures flags specific to the analyze command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Mining.LookbackDays, "lookback", viper.GetInt("mining.lookbackdays"), "Days of event history to scan")
	cmd.Flags().IntVar(&settings.Mining.Concurrency, "concurrency", viper.GetInt("mining.concurrency"), "Maximum detectors running concurrently")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
