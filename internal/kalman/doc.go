// Package kalman owns the recursive state estimator.
//
// Responsibilities: a linear Gaussian Kalman filter with a fixed model
// (transition, control, observation, process and observation noise),
// construction-time shape and covariance validation, and the
// predict/update cycle run once per observation.
// Key types: Model, Estimator.
//
// Dependency rule: no logging, no I/O and no knowledge of anomalies.
// Callers own policy for the errors surfaced here.
package kalman
