package logger

import (
	"github.com/rs/zerolog"
)

// ErrorWhen logs an error with its occasion using the global logger.
func ErrorWhen(occasion string, err error) {
	GetLogger().ErrorWhen(occasion, err)
}

// LogRateLimit logs a rate-limit cool-down event.
func LogRateLimit(feed string, cooldownSeconds int) {
	GetLogger().WithFields(map[string]interface{}{
		"feed":             feed,
		"cooldown_seconds": cooldownSeconds,
		"action":           "rate_limited",
	}).Warn("Rate limit reached, cooling down")
}

// LogSweepCycle logs the completion of one pass over a feed or the
// checkpoint-eligible entity population.
func LogSweepCycle(sweep string, entities, items int) {
	GetLogger().WithFields(map[string]interface{}{
		"sweep":    sweep,
		"entities": entities,
		"items":    items,
	}).Info("Sweep cycle completed")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)
	if len(config) > 0 {
		logger = logger.WithFields(config)
	}
	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) ErrorWhen(occasion string, err error)                      {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
