// Package anomaly owns the causal anomaly monitor.
//
// Responsibilities: run one predict/update cycle of a kalman.Estimator per
// observation, compare the raw observation against the pre-update
// (predicted) estimate, and flag the point when the residual exceeds a
// fixed threshold. Also drives a Source through the monitor into Sinks.
// Key types: Monitor, Result, Source, Sink.
//
// Dependency rule: depends on internal/kalman only. No logging and no
// rendering or storage code is allowed in this package.
package anomaly
