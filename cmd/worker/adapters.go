package main

import (
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

// kvLogger adapts the structured logger to the key/value logging contract the
// postgres repositories expect.
type kvLogger struct {
	inner logging.Logger
}

func (l kvLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, kvFields(keysAndValues)...)
}

func (l kvLogger) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, kvFields(keysAndValues)...)
}

func (l kvLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, kvFields(keysAndValues)...)
}

func (l kvLogger) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Error(msg, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, logging.Any(key, keysAndValues[i+1]))
	}
	return fields
}
