// Package serve implements the long-running service command.
package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/engine"
)

// Command creates the serve command: scheduler plus admin API.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mining scheduler and admin API",
		Long:  "Start the periodic mining scheduler, the lifecycle sweep and the admin API, running until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return engine.Serve(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address and port of the admin API")
	cmd.Flags().BoolVar(&settings.WebServer.Metrics, "metrics", viper.GetBool("webserver.metrics"), "Expose the Prometheus /metrics endpoint")
	cmd.Flags().DurationVar(&settings.Mining.RunInterval, "runinterval", viper.GetDuration("mining.runinterval"), "Interval between scheduled mining passes")
	cmd.Flags().DurationVar(&settings.Lifecycle.SweepInterval, "sweepinterval", viper.GetDuration("lifecycle.sweepinterval"), "Interval between lifecycle sweeps")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
