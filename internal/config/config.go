package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/signal.report/internal/anomaly"
	"github.com/banshee-data/signal.report/internal/kalman"
	"gonum.org/v1/gonum/mat"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/signal.defaults.json"

// Config is the root configuration for the estimator, the anomaly monitor
// and the synthetic signal source. Matrices are row-major nested arrays.
// Omitted fields fall back to the Get* defaults, which reproduce a scalar
// random-walk filter over a trended seasonal signal.
type Config struct {
	// Estimator model
	Transition        [][]float64 `json:"transition,omitempty"`
	Control           [][]float64 `json:"control,omitempty"`
	Observation       [][]float64 `json:"observation,omitempty"`
	ProcessNoise      [][]float64 `json:"process_noise,omitempty"`
	ObservationNoise  [][]float64 `json:"observation_noise,omitempty"`
	InitialCovariance [][]float64 `json:"initial_covariance,omitempty"`
	InitialState      []float64   `json:"initial_state,omitempty"`

	// Monitor params
	Threshold    *float64 `json:"threshold,omitempty"`
	ResidualNorm *string  `json:"residual_norm,omitempty"` // "max" or "euclidean"
	OnSingular   *string  `json:"on_singular,omitempty"`   // "fail" or "skip"

	// Display params
	WindowSize *int `json:"window_size,omitempty"`

	// Synthetic source params
	Length       *int     `json:"length,omitempty"` // 0 means unbounded
	BaseLevel    *float64 `json:"base_level,omitempty"`
	SeasonLength *int     `json:"season_length,omitempty"`
	NoiseLevel   *float64 `json:"noise_level,omitempty"`
	TrendSlope   *float64 `json:"trend_slope,omitempty"`
	Anomalies    *int     `json:"anomalies,omitempty"` // injected per sign
	AnomalyValue *float64 `json:"anomaly_value,omitempty"`
	Seed         *uint64  `json:"seed,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON file fall back to defaults, so partial
// configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid, including that
// the model matrices build a valid estimator.
func (c *Config) Validate() error {
	if c.Threshold != nil && !(*c.Threshold > 0) {
		return fmt.Errorf("threshold must be positive, got %f", *c.Threshold)
	}

	if c.ResidualNorm != nil {
		switch anomaly.Norm(*c.ResidualNorm) {
		case anomaly.NormMaxAbs, anomaly.NormEuclidean:
		default:
			return fmt.Errorf("residual_norm must be %q or %q, got %q", anomaly.NormMaxAbs, anomaly.NormEuclidean, *c.ResidualNorm)
		}
	}

	if c.OnSingular != nil {
		switch anomaly.SingularPolicy(*c.OnSingular) {
		case anomaly.PolicyFail, anomaly.PolicySkip:
		default:
			return fmt.Errorf("on_singular must be %q or %q, got %q", anomaly.PolicyFail, anomaly.PolicySkip, *c.OnSingular)
		}
	}

	if c.WindowSize != nil && *c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", *c.WindowSize)
	}

	if c.Length != nil && *c.Length < 0 {
		return fmt.Errorf("length must be non-negative, got %d", *c.Length)
	}

	if c.SeasonLength != nil && *c.SeasonLength <= 0 {
		return fmt.Errorf("season_length must be positive, got %d", *c.SeasonLength)
	}

	if c.NoiseLevel != nil && *c.NoiseLevel < 0 {
		return fmt.Errorf("noise_level must be non-negative, got %f", *c.NoiseLevel)
	}

	if c.Anomalies != nil {
		if *c.Anomalies < 0 {
			return fmt.Errorf("anomalies must be non-negative, got %d", *c.Anomalies)
		}
		if length := c.GetLength(); length > 0 && *c.Anomalies > length {
			return fmt.Errorf("anomalies (%d) cannot exceed length (%d)", *c.Anomalies, length)
		}
	}

	if _, err := c.NewEstimator(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}

	return nil
}

// Model converts the configured matrices into a kalman.Model together with
// the initial state and covariance. A nil or empty control matrix means the
// model has no control term.
func (c *Config) Model() (kalman.Model, *mat.VecDense, *mat.Dense, error) {
	var model kalman.Model
	var err error

	if model.Transition, err = dense("transition", c.GetTransition()); err != nil {
		return model, nil, nil, err
	}
	if ctrl := c.GetControl(); len(ctrl) > 0 {
		if model.Control, err = dense("control", ctrl); err != nil {
			return model, nil, nil, err
		}
	}
	if model.Observation, err = dense("observation", c.GetObservation()); err != nil {
		return model, nil, nil, err
	}
	if model.ProcessNoise, err = dense("process_noise", c.GetProcessNoise()); err != nil {
		return model, nil, nil, err
	}
	if model.ObservationNoise, err = dense("observation_noise", c.GetObservationNoise()); err != nil {
		return model, nil, nil, err
	}
	p0, err := dense("initial_covariance", c.GetInitialCovariance())
	if err != nil {
		return model, nil, nil, err
	}

	x0 := c.GetInitialState()
	if len(x0) == 0 {
		return model, nil, nil, fmt.Errorf("initial_state must not be empty")
	}
	return model, mat.NewVecDense(len(x0), append([]float64(nil), x0...)), p0, nil
}

// NewEstimator builds a kalman.Estimator from the configured model.
func (c *Config) NewEstimator() (*kalman.Estimator, error) {
	model, x0, p0, err := c.Model()
	if err != nil {
		return nil, err
	}
	return kalman.New(model, x0, p0)
}

// MonitorConfig returns the anomaly monitor parameters.
func (c *Config) MonitorConfig() anomaly.Config {
	return anomaly.Config{
		Threshold:  c.GetThreshold(),
		Norm:       anomaly.Norm(c.GetResidualNorm()),
		OnSingular: anomaly.SingularPolicy(c.GetOnSingular()),
	}
}

// Resolved returns a copy of c with every default filled in, suitable for
// recording alongside a run.
func (c *Config) Resolved() *Config {
	return &Config{
		Transition:        c.GetTransition(),
		Control:           c.GetControl(),
		Observation:       c.GetObservation(),
		ProcessNoise:      c.GetProcessNoise(),
		ObservationNoise:  c.GetObservationNoise(),
		InitialCovariance: c.GetInitialCovariance(),
		InitialState:      c.GetInitialState(),
		Threshold:         ptrFloat64(c.GetThreshold()),
		ResidualNorm:      ptrString(c.GetResidualNorm()),
		OnSingular:        ptrString(c.GetOnSingular()),
		WindowSize:        ptrInt(c.GetWindowSize()),
		Length:            ptrInt(c.GetLength()),
		BaseLevel:         ptrFloat64(c.GetBaseLevel()),
		SeasonLength:      ptrInt(c.GetSeasonLength()),
		NoiseLevel:        ptrFloat64(c.GetNoiseLevel()),
		TrendSlope:        ptrFloat64(c.GetTrendSlope()),
		Anomalies:         ptrInt(c.GetAnomalies()),
		AnomalyValue:      ptrFloat64(c.GetAnomalyValue()),
		Seed:              ptrUint64(c.GetSeed()),
	}
}

// dense converts a row-major nested array into a matrix, rejecting empty
// and ragged input.
func dense(name string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%s must not be empty", name)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%s row %d has %d columns, want %d", name, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}
