package anomaly

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/signal.report/internal/kalman"
	"gonum.org/v1/gonum/mat"
)

// DefaultThreshold is the residual above which a point is anomalous.
const DefaultThreshold = 3.0

// Norm selects how a vector residual is reduced to a scalar score.
type Norm string

const (
	NormMaxAbs    Norm = "max"       // largest absolute component
	NormEuclidean Norm = "euclidean" // L2 norm of the residual
)

// SingularPolicy decides what Process does when the estimator reports a
// singular innovation covariance.
type SingularPolicy string

const (
	// PolicyFail returns the error to the caller.
	PolicyFail SingularPolicy = "fail"
	// PolicySkip keeps the predicted state as the corrected estimate and
	// marks the result as skipped.
	PolicySkip SingularPolicy = "skip"
)

// Config holds the fixed parameters of a Monitor.
type Config struct {
	Threshold  float64
	Norm       Norm
	OnSingular SingularPolicy
}

// DefaultConfig returns a Config with threshold 3, max-abs norm and the
// fail policy.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		Norm:       NormMaxAbs,
		OnSingular: PolicyFail,
	}
}

// Result is the per-step output handed to sinks.
type Result struct {
	Index       int       // zero-based step number
	Observation []float64 // raw observation z
	Predicted   []float64 // state after predict, before z was used
	Corrected   []float64 // state after update
	Residual    []float64 // |z - H*predicted|, componentwise
	Score       float64   // residual reduced by the configured norm
	Anomalous   bool      // Score > Threshold
	Skipped     bool      // update skipped on a singular innovation covariance
}

// Value returns the first component of the observation.
func (r Result) Value() float64 { return first(r.Observation) }

// PredictedValue returns the first component of the predicted state.
func (r Result) PredictedValue() float64 { return first(r.Predicted) }

// CorrectedValue returns the first component of the corrected state.
func (r Result) CorrectedValue() float64 { return first(r.Corrected) }

func first(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return v[0]
}

// Monitor flags observations that deviate from the estimator's prediction.
// The decision for step t uses only observations up to and including t.
//
// Apart from the step counter a Monitor keeps no state of its own; all
// history lives in the wrapped Estimator. It is not safe for concurrent use.
type Monitor struct {
	est  *kalman.Estimator
	cfg  Config
	step int
}

// NewMonitor wraps est. The threshold must be positive and finite.
func NewMonitor(est *kalman.Estimator, cfg Config) (*Monitor, error) {
	if est == nil {
		return nil, errors.New("anomaly: estimator is required")
	}
	if cfg.Threshold <= 0 || math.IsNaN(cfg.Threshold) || math.IsInf(cfg.Threshold, 0) {
		return nil, fmt.Errorf("anomaly: threshold must be positive and finite, got %v", cfg.Threshold)
	}
	switch cfg.Norm {
	case "":
		cfg.Norm = NormMaxAbs
	case NormMaxAbs, NormEuclidean:
	default:
		return nil, fmt.Errorf("anomaly: unknown residual norm %q", cfg.Norm)
	}
	switch cfg.OnSingular {
	case "":
		cfg.OnSingular = PolicyFail
	case PolicyFail, PolicySkip:
	default:
		return nil, fmt.Errorf("anomaly: unknown singular policy %q", cfg.OnSingular)
	}
	return &Monitor{est: est, cfg: cfg}, nil
}

// Config returns the monitor's effective configuration.
func (m *Monitor) Config() Config { return m.cfg }

// Process runs one cycle for observation z:
//
//  1. predicted = Predict(zero control)
//  2. residual = |z - H*predicted|
//  3. anomalous = score(residual) > threshold
//  4. corrected = Update(z)
//
// The residual is taken before z is folded into the state. A non-finite z is
// rejected with kalman.ErrNonFiniteObservation and leaves the estimator
// untouched. Estimator errors are returned wrapped with the step index.
func (m *Monitor) Process(z mat.Vector) (Result, error) {
	idx := m.step
	_, _, k := m.est.Dims()
	if z == nil || z.Len() != k {
		return Result{Index: idx}, fmt.Errorf("step %d: %w: observation length does not match model", idx, kalman.ErrShapeMismatch)
	}
	// Reject before Predict so the estimator does not advance.
	if err := kalman.CheckObservation(z); err != nil {
		return Result{Index: idx}, fmt.Errorf("step %d: %w", idx, err)
	}

	predicted, err := m.est.Predict(nil)
	if err != nil {
		return Result{Index: idx}, fmt.Errorf("step %d: %w", idx, err)
	}
	m.step++

	innovation := m.est.Innovation(z)
	residual := make([]float64, innovation.Len())
	for i := range residual {
		residual[i] = math.Abs(innovation.AtVec(i))
	}
	score := m.score(residual)

	res := Result{
		Index:       idx,
		Observation: vecData(z),
		Predicted:   vecData(predicted),
		Residual:    residual,
		Score:       score,
		Anomalous:   score > m.cfg.Threshold,
	}

	corrected, err := m.est.Update(z)
	if err != nil {
		if errors.Is(err, kalman.ErrSingularInnovationCovariance) && m.cfg.OnSingular == PolicySkip {
			res.Corrected = res.Predicted
			res.Skipped = true
			return res, nil
		}
		return res, fmt.Errorf("step %d: %w", idx, err)
	}
	res.Corrected = vecData(corrected)
	return res, nil
}

// ProcessScalar is Process for a one-dimensional observation.
func (m *Monitor) ProcessScalar(v float64) (Result, error) {
	return m.Process(mat.NewVecDense(1, []float64{v}))
}

func (m *Monitor) score(residual []float64) float64 {
	switch m.cfg.Norm {
	case NormEuclidean:
		var sum float64
		for _, r := range residual {
			sum += r * r
		}
		return math.Sqrt(sum)
	default:
		var max float64
		for _, r := range residual {
			if math.IsNaN(r) {
				return r
			}
			if r > max {
				max = r
			}
		}
		return max
	}
}

func vecData(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
