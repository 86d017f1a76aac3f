package render

import (
	"github.com/banshee-data/signal.report/internal/anomaly"
	"github.com/banshee-data/signal.report/internal/monitoring"
)

// LogSink reports anomalies through the monitoring logger. Normal steps are
// only traced when debug logging is on.
type LogSink struct{}

// Consume logs r.
func (LogSink) Consume(r anomaly.Result) error {
	switch {
	case r.Anomalous:
		monitoring.Logf("⚠️ anomaly at step %d: value=%.3f predicted=%.3f residual=%.3f",
			r.Index, r.Value(), r.PredictedValue(), r.Score)
	case r.Skipped:
		monitoring.Logf("⏭️ step %d: update skipped, innovation covariance singular", r.Index)
	default:
		monitoring.Debugf("step %d: value=%.3f predicted=%.3f estimate=%.3f",
			r.Index, r.Value(), r.PredictedValue(), r.CorrectedValue())
	}
	return nil
}
