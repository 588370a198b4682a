package rediskv

import (
	"time"
)

// loggerAdapter adapts Logger to the key/value loggers of server and httpapi
type loggerAdapter struct {
	logger Logger
}

func (la *loggerAdapter) Debug(msg string, fields ...interface{}) {
	la.logger.Debug(msg, convertFields(fields...)...)
}

func (la *loggerAdapter) Info(msg string, fields ...interface{}) {
	la.logger.Info(msg, convertFields(fields...)...)
}

func (la *loggerAdapter) Error(msg string, fields ...interface{}) {
	la.logger.Error(msg, convertFields(fields...)...)
}

func convertFields(fields ...interface{}) []Field {
	result := make([]Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: fields[i+1],
			})
		}
	}
	return result
}

// metricsAdapter feeds front end measurements into a MetricsCollector.
// Command names are prefixed so RESP and HTTP traffic stay apart.
type metricsAdapter struct {
	metrics MetricsCollector
	prefix  string
}

func (ma *metricsAdapter) RecordCommandProcessed(cmd string, duration time.Duration) {
	ma.metrics.RecordCommandProcessed(ma.prefix+cmd, duration)
}

func (ma *metricsAdapter) RecordBlockingWait(duration time.Duration, served bool) {
	ma.metrics.RecordBlockingWait(duration, served)
}

func (ma *metricsAdapter) RecordError(errorType string) {
	ma.metrics.RecordError(ma.prefix + errorType)
}

// metricsObserver implements storage.StorageObserver.
// It runs under shard locks and only touches the collector.
type metricsObserver struct {
	metrics MetricsCollector
}

func (mo *metricsObserver) OnKeySet(string)            {}
func (mo *metricsObserver) OnKeyDeleted(string)        {}
func (mo *metricsObserver) OnKeyAccessed(string, bool) {}

func (mo *metricsObserver) OnKeyExpired(string) {
	mo.metrics.RecordExpiredKey()
}
