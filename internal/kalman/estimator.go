package kalman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Model holds the fixed matrices of a linear Gaussian state-space model.
//
//	x[t] = Transition*x[t-1] + Control*u[t] + w,  w ~ N(0, ProcessNoise)
//	z[t] = Observation*x[t] + v,                  v ~ N(0, ObservationNoise)
//
// Control may be nil when the model has no control term.
type Model struct {
	Transition       mat.Matrix // n×n
	Control          mat.Matrix // n×m, optional
	Observation      mat.Matrix // k×n
	ProcessNoise     mat.Matrix // n×n
	ObservationNoise mat.Matrix // k×k
}

// Estimator is a recursive linear Gaussian filter. It is driven by one
// Predict/Update pair per observation and keeps only the running state and
// its error covariance between calls.
//
// Calling Update twice without an intervening Predict, or Predict twice
// without Update, is mechanically allowed but changes the statistical
// meaning of the result. Keeping the cycle in order is the caller's job.
//
// An Estimator is not safe for concurrent use; each stream owns its own.
type Estimator struct {
	f *mat.Dense    // transition
	b *mat.Dense    // control, nil when m == 0
	h *mat.Dense    // observation
	q *mat.SymDense // process noise
	r *mat.SymDense // observation noise

	n, m, k int

	x *mat.VecDense  // state
	p *mat.SymDense  // error covariance
	g *mat.Dense     // last Kalman gain, nil before the first update
	i *mat.DiagDense // n×n identity
}

// New validates the model against the initial state and covariance and
// returns a ready Estimator. All inputs are copied, so later changes by the
// caller do not leak into the filter.
//
// It returns ErrShapeMismatch when dimensions are not conformant and
// ErrInvalidCovariance when a noise or initial covariance is not symmetric
// positive semi-definite. On error no Estimator is returned.
func New(model Model, initialState mat.Vector, initialCovariance mat.Matrix) (*Estimator, error) {
	if initialState == nil || initialCovariance == nil {
		return nil, fmt.Errorf("%w: initial state and covariance are required", ErrShapeMismatch)
	}
	if model.Transition == nil || model.Observation == nil ||
		model.ProcessNoise == nil || model.ObservationNoise == nil {
		return nil, fmt.Errorf("%w: transition, observation and noise matrices are required", ErrShapeMismatch)
	}

	n := initialState.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: state dimension must be positive", ErrShapeMismatch)
	}
	k, _ := model.Observation.Dims()
	m := 0
	if model.Control != nil {
		_, m = model.Control.Dims()
	}

	if err := checkDims("transition", model.Transition, n, n); err != nil {
		return nil, err
	}
	if model.Control != nil {
		if err := checkDims("control", model.Control, n, m); err != nil {
			return nil, err
		}
	}
	if err := checkDims("observation", model.Observation, k, n); err != nil {
		return nil, err
	}
	if err := checkDims("process noise", model.ProcessNoise, n, n); err != nil {
		return nil, err
	}
	if err := checkDims("observation noise", model.ObservationNoise, k, k); err != nil {
		return nil, err
	}
	if err := checkDims("initial covariance", initialCovariance, n, n); err != nil {
		return nil, err
	}

	if err := checkCovariance("process noise", model.ProcessNoise); err != nil {
		return nil, err
	}
	if err := checkCovariance("observation noise", model.ObservationNoise); err != nil {
		return nil, err
	}
	if err := checkCovariance("initial covariance", initialCovariance); err != nil {
		return nil, err
	}

	e := &Estimator{
		f: mat.DenseCopyOf(model.Transition),
		h: mat.DenseCopyOf(model.Observation),
		q: symmetrize(model.ProcessNoise),
		r: symmetrize(model.ObservationNoise),
		n: n,
		m: m,
		k: k,
		x: mat.VecDenseCopyOf(initialState),
		p: symmetrize(initialCovariance),
		i: identity(n),
	}
	if model.Control != nil && m > 0 {
		e.b = mat.DenseCopyOf(model.Control)
	}
	return e, nil
}

// NewScalar builds a one-dimensional Estimator with no control term.
func NewScalar(transition, observation, processNoise, observationNoise, initialCovariance, initialState float64) (*Estimator, error) {
	return New(Model{
		Transition:       mat.NewDense(1, 1, []float64{transition}),
		Observation:      mat.NewDense(1, 1, []float64{observation}),
		ProcessNoise:     mat.NewDense(1, 1, []float64{processNoise}),
		ObservationNoise: mat.NewDense(1, 1, []float64{observationNoise}),
	}, mat.NewVecDense(1, []float64{initialState}), mat.NewDense(1, 1, []float64{initialCovariance}))
}

// Dims returns the state, control and observation dimensions.
func (e *Estimator) Dims() (n, m, k int) {
	return e.n, e.m, e.k
}

// Predict advances the state one step:
//
//	x = F*x + B*u
//	P = F*P*F^T + Q
//
// A nil u is treated as the zero control vector. Predict only fails when u
// has the wrong length. The returned vector is a copy of the new state.
func (e *Estimator) Predict(u mat.Vector) (*mat.VecDense, error) {
	if u != nil && u.Len() != e.m {
		return nil, fmt.Errorf("%w: control input has length %d, want %d", ErrShapeMismatch, u.Len(), e.m)
	}

	x := mat.NewVecDense(e.n, nil)
	x.MulVec(e.f, e.x)
	if u != nil && e.b != nil {
		var bu mat.VecDense
		bu.MulVec(e.b, u)
		x.AddVec(x, &bu)
	}

	var p mat.Dense
	p.Product(e.f, e.p, e.f.T())
	p.Add(&p, e.q)

	e.x = x
	e.p = symmetrize(&p)
	return mat.VecDenseCopyOf(e.x), nil
}

// Update folds observation z into the state:
//
//	S = H*P*H^T + R
//	K = P*H^T*S^-1
//	x = x + K*(z - H*x)
//	P = (I - K*H)*P*(I - K*H)^T + K*R*K^T
//
// The covariance uses the Joseph form followed by symmetrization so that P
// stays symmetric PSD over long streams.
//
// When S is singular it returns ErrSingularInnovationCovariance, and when z
// holds NaN or ±Inf it returns ErrNonFiniteObservation. Either way the state
// and covariance are left exactly as they were. The returned vector is a
// copy of the corrected state.
func (e *Estimator) Update(z mat.Vector) (*mat.VecDense, error) {
	if z == nil || z.Len() != e.k {
		got := 0
		if z != nil {
			got = z.Len()
		}
		return nil, fmt.Errorf("%w: observation has length %d, want %d", ErrShapeMismatch, got, e.k)
	}
	if err := CheckObservation(z); err != nil {
		return nil, err
	}

	var s mat.Dense
	s.Product(e.h, e.p, e.h.T())
	s.Add(&s, e.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularInnovationCovariance, err)
	}

	var gain mat.Dense
	gain.Product(e.p, e.h.T(), &sInv)

	y := e.Innovation(z)
	var correction mat.VecDense
	correction.MulVec(&gain, y)
	x := mat.NewVecDense(e.n, nil)
	x.AddVec(e.x, &correction)

	var kh, ikh mat.Dense
	kh.Mul(&gain, e.h)
	ikh.Sub(e.i, &kh)

	var p, krk mat.Dense
	p.Product(&ikh, e.p, ikh.T())
	krk.Product(&gain, e.r, gain.T())
	p.Add(&p, &krk)

	e.x = x
	e.p = symmetrize(&p)
	e.g = &gain
	return mat.VecDenseCopyOf(e.x), nil
}

// Observe maps a state vector into observation space, H*x.
func (e *Estimator) Observe(x mat.Vector) *mat.VecDense {
	z := mat.NewVecDense(e.k, nil)
	z.MulVec(e.h, x)
	return z
}

// Innovation returns z - H*x for the current state. z must have length k.
func (e *Estimator) Innovation(z mat.Vector) *mat.VecDense {
	y := e.Observe(e.x)
	y.SubVec(z, y)
	return y
}

// State returns a copy of the current state vector.
func (e *Estimator) State() *mat.VecDense {
	return mat.VecDenseCopyOf(e.x)
}

// Covariance returns a copy of the current error covariance.
func (e *Estimator) Covariance() *mat.SymDense {
	p := mat.NewSymDense(e.n, nil)
	p.CopySym(e.p)
	return p
}

// Gain returns a copy of the gain used by the last successful Update, or
// nil if Update has not succeeded yet.
func (e *Estimator) Gain() *mat.Dense {
	if e.g == nil {
		return nil
	}
	return mat.DenseCopyOf(e.g)
}

// nonFinite returns the index of the first NaN or ±Inf component of v.
func nonFinite(v mat.Vector) (int, bool) {
	for i := 0; i < v.Len(); i++ {
		if f := v.AtVec(i); math.IsNaN(f) || math.IsInf(f, 0) {
			return i, true
		}
	}
	return -1, false
}

// CheckObservation returns ErrNonFiniteObservation when z holds NaN or ±Inf.
func CheckObservation(z mat.Vector) error {
	if i, ok := nonFinite(z); ok {
		return fmt.Errorf("%w: component %d is %v", ErrNonFiniteObservation, i, z.AtVec(i))
	}
	return nil
}

func identity(n int) *mat.DiagDense {
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	return mat.NewDiagDense(n, ones)
}
