package workers

import (
	"immo_scrooper/logging"
	"immo_scrooper/models"
)

// LogFunc records a worker event in the operational log.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}

// trigger is embedded by every worker so commands can run it out of schedule.
type trigger struct {
	ch chan struct{}
}

func newTrigger() trigger { return trigger{ch: make(chan struct{}, 1)} }

// Trigger causes the worker to run immediately
func (t trigger) Trigger() {
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

func report(fn LogFunc, level models.LogLevel, source, message string) {
	switch level {
	case models.LogLevelError:
		logging.Errorf(source, "%s", message)
	case models.LogLevelWarn:
		logging.Warnf(source, "%s", message)
	default:
		logging.Infof(source, "%s", message)
	}
	fn(level, source, message)
}
