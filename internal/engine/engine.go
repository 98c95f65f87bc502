// Package engine bootstraps the full service from configuration and drives
// the three entry modes: long-running serve, one mining pass, one sweep.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tkoskela/patternmind-go/internal/api"
	"github.com/tkoskela/patternmind-go/internal/calibration"
	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
	"github.com/tkoskela/patternmind-go/internal/notify"
	"github.com/tkoskela/patternmind-go/internal/observability"
	"github.com/tkoskela/patternmind-go/internal/orchestrator"
)

// build assembles the orchestrator and its collaborators. The returned
// cleanup releases everything in reverse order.
func build(settings *conf.Settings) (*orchestrator.Orchestrator, datastore.Interface, *observability.Metrics, notify.Publisher, func(), error) {
	// Before any collaborator asks for its service logger.
	logging.EnableFileLogging(settings.Main.Log)

	ds := datastore.New(settings)
	if ds == nil {
		return nil, nil, nil, nil, nil, errors.Newf("no database backend enabled").
			Component("engine").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := ds.Open(); err != nil {
		return nil, nil, nil, nil, nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		_ = ds.Close()
		return nil, nil, nil, nil, nil, err
	}

	publisher := notify.NewPublisher(settings, metrics.MQTT)

	var calibrator *calibration.AdaptiveCalibrator
	if settings.Calibration.Mode == "adaptive" {
		calibrator = calibration.NewAdaptiveCalibrator(ds, settings.Calibration)
	}

	orch := orchestrator.New(settings, ds, metrics, publisher, calibrator)
	orch.RegisterBuiltins()

	cleanup := func() {
		if publisher != nil {
			publisher.Disconnect()
		}
		if err := ds.Close(); err != nil {
			logging.Error("error closing datastore", "error", err)
		}
		logging.CloseFileLoggers()
	}
	return orch, ds, metrics, publisher, cleanup, nil
}

// Serve runs the scheduler and the admin API until SIGINT/SIGTERM.
func Serve(settings *conf.Settings) error {
	orch, ds, metrics, publisher, cleanup, err := build(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if publisher != nil {
		if err := publisher.Connect(ctx); err != nil {
			logging.Warn("MQTT connect failed, reports will be dropped until reconnect", "error", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		orch.StartScheduler(ctx)
	}()

	var apiErr error
	if settings.WebServer.Enabled {
		controller := api.New(settings, ds, orch, metrics)
		logging.Info("admin API listening", "addr", settings.WebServer.Listen)
		apiErr = controller.Start(ctx)
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	return apiErr
}

// RunOnce executes a single mining pass and prints the run report as JSON.
func RunOnce(settings *conf.Settings) error {
	orch, _, _, publisher, cleanup, err := build(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if publisher != nil {
		if err := publisher.Connect(ctx); err != nil {
			logging.Warn("MQTT connect failed, report will not be published", "error", err)
		}
	}

	report, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

// SweepOnce executes a single lifecycle sweep and prints its stats as JSON.
func SweepOnce(settings *conf.Settings) error {
	orch, _, _, _, cleanup, err := build(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := orch.RunSweep(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
