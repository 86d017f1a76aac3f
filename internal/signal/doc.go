// Package signal provides observation sources for the anomaly monitor:
// a synthetic trend + seasonal + noise generator with injected outliers,
// an in-memory slice, and line-oriented readers over files, stdin or a
// serial port.
//
// Every source owns its own random generator or reader; there is no
// package-level state.
package signal
