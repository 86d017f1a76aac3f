package config

// GetTransition returns the transition matrix or the default [[1]].
func (c *Config) GetTransition() [][]float64 {
	if len(c.Transition) == 0 {
		return [][]float64{{1}}
	}
	return c.Transition
}

// GetControl returns the control matrix. Unset means no control term.
func (c *Config) GetControl() [][]float64 {
	return c.Control
}

// GetObservation returns the observation matrix or the default [[1]].
func (c *Config) GetObservation() [][]float64 {
	if len(c.Observation) == 0 {
		return [][]float64{{1}}
	}
	return c.Observation
}

// GetProcessNoise returns the process noise covariance or the default [[1e-3]].
func (c *Config) GetProcessNoise() [][]float64 {
	if len(c.ProcessNoise) == 0 {
		return [][]float64{{1e-3}}
	}
	return c.ProcessNoise
}

// GetObservationNoise returns the observation noise covariance or the default [[1e-2]].
func (c *Config) GetObservationNoise() [][]float64 {
	if len(c.ObservationNoise) == 0 {
		return [][]float64{{1e-2}}
	}
	return c.ObservationNoise
}

// GetInitialCovariance returns the initial error covariance or the default [[1]].
func (c *Config) GetInitialCovariance() [][]float64 {
	if len(c.InitialCovariance) == 0 {
		return [][]float64{{1}}
	}
	return c.InitialCovariance
}

// GetInitialState returns the initial state or the default [0].
func (c *Config) GetInitialState() []float64 {
	if len(c.InitialState) == 0 {
		return []float64{0}
	}
	return c.InitialState
}

// GetThreshold returns the threshold value or the default.
func (c *Config) GetThreshold() float64 {
	if c.Threshold == nil {
		return 3.0
	}
	return *c.Threshold
}

// GetResidualNorm returns the residual_norm value or the default.
func (c *Config) GetResidualNorm() string {
	if c.ResidualNorm == nil || *c.ResidualNorm == "" {
		return "max"
	}
	return *c.ResidualNorm
}

// GetOnSingular returns the on_singular value or the default.
func (c *Config) GetOnSingular() string {
	if c.OnSingular == nil || *c.OnSingular == "" {
		return "fail"
	}
	return *c.OnSingular
}

// GetWindowSize returns the window_size value or the default.
func (c *Config) GetWindowSize() int {
	if c.WindowSize == nil {
		return 100
	}
	return *c.WindowSize
}

// GetLength returns the length value or the default.
func (c *Config) GetLength() int {
	if c.Length == nil {
		return 150
	}
	return *c.Length
}

// GetBaseLevel returns the base_level value or the default.
func (c *Config) GetBaseLevel() float64 {
	if c.BaseLevel == nil {
		return 10
	}
	return *c.BaseLevel
}

// GetSeasonLength returns the season_length value or the default.
func (c *Config) GetSeasonLength() int {
	if c.SeasonLength == nil {
		return 12
	}
	return *c.SeasonLength
}

// GetNoiseLevel returns the noise_level value or the default.
func (c *Config) GetNoiseLevel() float64 {
	if c.NoiseLevel == nil {
		return 0.25
	}
	return *c.NoiseLevel
}

// GetTrendSlope returns the trend_slope value or the default.
func (c *Config) GetTrendSlope() float64 {
	if c.TrendSlope == nil {
		return 0.1
	}
	return *c.TrendSlope
}

// GetAnomalies returns the anomalies value or the default.
func (c *Config) GetAnomalies() int {
	if c.Anomalies == nil {
		return 5
	}
	return *c.Anomalies
}

// GetAnomalyValue returns the anomaly_value value or the default.
func (c *Config) GetAnomalyValue() float64 {
	if c.AnomalyValue == nil {
		return 5
	}
	return *c.AnomalyValue
}

// GetSeed returns the seed value or 0, which callers treat as "seed from the clock".
func (c *Config) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}
