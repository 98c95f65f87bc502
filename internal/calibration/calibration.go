// Package calibration closes the feedback loop between user actions on
// suggested records and the scoring weight table.
package calibration

import (
	"context"
	"log/slog"

	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

// Action is a user's verdict on a suggested record.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionModify  Action = "modify"
	ActionDeploy  Action = "deploy"
	ActionDisable Action = "disable"
)

// rewards maps actions to learning signal strength.
var rewards = map[Action]float64{
	ActionAccept:  1.0,
	ActionReject:  -0.5,
	ActionModify:  0.3,
	ActionDeploy:  0.8,
	ActionDisable: -0.7,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := rewards[a]
	return ok
}

// Reward returns the learning signal for the action.
func (a Action) Reward() float64 {
	return rewards[a]
}

// Observer consumes user feedback on records.
type Observer interface {
	Observe(ctx context.Context, recordID string, action Action) error
}

// LogObserver is the minimal implementation: it records observations in the
// service log and learns nothing.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates the logging observer.
func NewLogObserver() *LogObserver {
	return &LogObserver{logger: logging.ForService("calibration")}
}

// Observe implements Observer.
func (o *LogObserver) Observe(_ context.Context, recordID string, action Action) error {
	if !action.Valid() {
		return errors.Newf("unknown calibration action %q", action).
			Component("calibration").
			Category(errors.CategoryValidation).
			Build()
	}
	o.logger.Info("feedback observed", "record_id", recordID, "action", string(action), "reward", action.Reward())
	return nil
}
