package kalman

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func scalar(v float64) *mat.Dense { return mat.NewDense(1, 1, []float64{v}) }

// newWalk returns the random-walk model used by the signal monitor defaults.
func newWalk(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewScalar(1, 1, 1e-3, 1e-2, 1, 0)
	require.NoError(t, err)
	return e
}

// constantVelocity returns a 2-state position/velocity model observing position.
func constantVelocity() (Model, *mat.VecDense, *mat.Dense) {
	return Model{
		Transition:       mat.NewDense(2, 2, []float64{1, 1, 0, 1}),
		Observation:      mat.NewDense(1, 2, []float64{1, 0}),
		ProcessNoise:     mat.NewDense(2, 2, []float64{1e-3, 0, 0, 1e-4}),
		ObservationNoise: scalar(0.5),
	}, mat.NewVecDense(2, []float64{0, 0}), mat.NewDense(2, 2, []float64{10, 0, 0, 10})
}

func TestNewShapeMismatch(t *testing.T) {
	t.Parallel()

	eye2 := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	eye3 := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	state3 := mat.NewVecDense(3, nil)

	tests := []struct {
		name  string
		model Model
		x0    mat.Vector
		p0    mat.Matrix
	}{
		{
			name: "transition 2x2 with state of length 3",
			model: Model{
				Transition:       eye2,
				Observation:      mat.NewDense(1, 3, []float64{1, 0, 0}),
				ProcessNoise:     eye3,
				ObservationNoise: scalar(1),
			},
			x0: state3,
			p0: eye3,
		},
		{
			name: "control with wrong row count",
			model: Model{
				Transition:       eye3,
				Control:          mat.NewDense(2, 1, []float64{1, 1}),
				Observation:      mat.NewDense(1, 3, []float64{1, 0, 0}),
				ProcessNoise:     eye3,
				ObservationNoise: scalar(1),
			},
			x0: state3,
			p0: eye3,
		},
		{
			name: "observation with wrong column count",
			model: Model{
				Transition:       eye3,
				Observation:      mat.NewDense(1, 2, []float64{1, 0}),
				ProcessNoise:     eye3,
				ObservationNoise: scalar(1),
			},
			x0: state3,
			p0: eye3,
		},
		{
			name: "process noise not n×n",
			model: Model{
				Transition:       eye3,
				Observation:      mat.NewDense(1, 3, []float64{1, 0, 0}),
				ProcessNoise:     eye2,
				ObservationNoise: scalar(1),
			},
			x0: state3,
			p0: eye3,
		},
		{
			name: "observation noise not k×k",
			model: Model{
				Transition:       eye3,
				Observation:      mat.NewDense(1, 3, []float64{1, 0, 0}),
				ProcessNoise:     eye3,
				ObservationNoise: eye2,
			},
			x0: state3,
			p0: eye3,
		},
		{
			name: "initial covariance not n×n",
			model: Model{
				Transition:       eye3,
				Observation:      mat.NewDense(1, 3, []float64{1, 0, 0}),
				ProcessNoise:     eye3,
				ObservationNoise: scalar(1),
			},
			x0: state3,
			p0: eye2,
		},
		{
			name:  "missing matrices",
			model: Model{Transition: eye3},
			x0:    state3,
			p0:    eye3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := New(tt.model, tt.x0, tt.p0)
			require.ErrorIs(t, err, ErrShapeMismatch)
			assert.Nil(t, e)
		})
	}
}

func TestNewDoesNotAliasInputs(t *testing.T) {
	t.Parallel()

	model, x0, p0 := constantVelocity()
	e, err := New(model, x0, p0)
	require.NoError(t, err)

	// Mutating the caller's matrices must not reach the estimator.
	x0.SetVec(0, 100)
	p0.Set(0, 0, 1e6)
	model.Transition.(*mat.Dense).Set(0, 1, 42)

	assert.Equal(t, 0.0, e.State().AtVec(0))
	assert.Equal(t, 10.0, e.Covariance().At(0, 0))

	x, err := e.Predict(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, x.AtVec(0))
}

func TestNewInvalidCovariance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		q    mat.Matrix
		r    mat.Matrix
		p0   mat.Matrix
	}{
		{
			name: "asymmetric process noise",
			q:    mat.NewDense(2, 2, []float64{1, 0.5, 0, 1}),
			r:    scalar(1),
			p0:   mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		},
		{
			name: "negative observation noise",
			q:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			r:    scalar(-1),
			p0:   mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		},
		{
			name: "initial covariance not PSD",
			q:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			r:    scalar(1),
			p0:   mat.NewDense(2, 2, []float64{1, 2, 2, 1}),
		},
		{
			name: "non-finite initial covariance",
			q:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			r:    scalar(1),
			p0:   mat.NewDense(2, 2, []float64{math.NaN(), 0, 0, 1}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := New(Model{
				Transition:       mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
				Observation:      mat.NewDense(1, 2, []float64{1, 0}),
				ProcessNoise:     tt.q,
				ObservationNoise: tt.r,
			}, mat.NewVecDense(2, nil), tt.p0)
			require.ErrorIs(t, err, ErrInvalidCovariance)
			assert.Nil(t, e)
		})
	}
}

func TestPredict(t *testing.T) {
	t.Parallel()

	t.Run("applies control input", func(t *testing.T) {
		t.Parallel()
		e, err := New(Model{
			Transition:       scalar(1),
			Control:          scalar(2),
			Observation:      scalar(1),
			ProcessNoise:     scalar(0.1),
			ObservationNoise: scalar(1),
		}, mat.NewVecDense(1, []float64{1}), scalar(1))
		require.NoError(t, err)

		x, err := e.Predict(mat.NewVecDense(1, []float64{3}))
		require.NoError(t, err)
		assert.InDelta(t, 7.0, x.AtVec(0), 1e-12)
		assert.InDelta(t, 1.1, e.Covariance().At(0, 0), 1e-12)
	})

	t.Run("rejects control of wrong length", func(t *testing.T) {
		t.Parallel()
		e := newWalk(t)
		_, err := e.Predict(mat.NewVecDense(2, nil))
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("constant velocity propagation", func(t *testing.T) {
		t.Parallel()
		model, _, p0 := constantVelocity()
		e, err := New(model, mat.NewVecDense(2, []float64{1, 2}), p0)
		require.NoError(t, err)

		x, err := e.Predict(nil)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 2}, x.RawVector().Data)

		// F*P*F^T + Q with P = 10*I.
		p := e.Covariance()
		assert.InDelta(t, 20.001, p.At(0, 0), 1e-12)
		assert.InDelta(t, 10.0, p.At(0, 1), 1e-12)
		assert.InDelta(t, 10.0001, p.At(1, 1), 1e-12)
	})

	t.Run("returns a snapshot", func(t *testing.T) {
		t.Parallel()
		e := newWalk(t)
		x, err := e.Predict(nil)
		require.NoError(t, err)
		x.SetVec(0, 99)
		assert.Equal(t, 0.0, e.State().AtVec(0))
	})
}

// Prediction is a pure function of the current state: identical estimators
// give identical predictions, and for a random walk two consecutive
// predictions return the same state while only the covariance grows.
func TestPredictIsDeterministic(t *testing.T) {
	t.Parallel()

	model, x0, p0 := constantVelocity()
	a, err := New(model, x0, p0)
	require.NoError(t, err)
	b, err := New(model, x0, p0)
	require.NoError(t, err)

	for _, z := range []float64{1, 2.5, 2.9, 4.2} {
		obs := mat.NewVecDense(1, []float64{z})
		xa, err := a.Predict(nil)
		require.NoError(t, err)
		xb, err := b.Predict(nil)
		require.NoError(t, err)
		assert.Equal(t, xa.RawVector().Data, xb.RawVector().Data)
		_, err = a.Update(obs)
		require.NoError(t, err)
		_, err = b.Update(obs)
		require.NoError(t, err)
	}

	walk := newWalk(t)
	_, err = walk.Predict(nil)
	require.NoError(t, err)
	_, err = walk.Update(mat.NewVecDense(1, []float64{5}))
	require.NoError(t, err)

	first, err := walk.Predict(nil)
	require.NoError(t, err)
	p1 := walk.Covariance().At(0, 0)
	second, err := walk.Predict(nil)
	require.NoError(t, err)
	p2 := walk.Covariance().At(0, 0)

	assert.Equal(t, first.AtVec(0), second.AtVec(0))
	assert.InDelta(t, 1e-3, p2-p1, 1e-12)
}

func TestUpdateFirstStep(t *testing.T) {
	t.Parallel()

	e := newWalk(t)
	_, err := e.Predict(nil)
	require.NoError(t, err)

	x, err := e.Update(mat.NewVecDense(1, []float64{10}))
	require.NoError(t, err)

	// P- = 1.001, K = P-/(P-+R), x = K*10, P+ = (1-K)*P-.
	k := 1.001 / 1.011
	assert.InDelta(t, 10*k, x.AtVec(0), 1e-12)
	assert.InDelta(t, (1-k)*1.001, e.Covariance().At(0, 0), 1e-12)
	require.NotNil(t, e.Gain())
	assert.InDelta(t, k, e.Gain().At(0, 0), 1e-12)
}

func TestUpdateRejectsWrongLength(t *testing.T) {
	t.Parallel()

	e := newWalk(t)
	_, err := e.Update(mat.NewVecDense(2, []float64{1, 2}))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = e.Update(nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestUpdateRejectsNonFiniteObservation(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		e := newWalk(t)
		_, err := e.Predict(nil)
		require.NoError(t, err)
		before := e.State()
		beforeP := e.Covariance()

		_, err = e.Update(mat.NewVecDense(1, []float64{v}))
		assert.ErrorIs(t, err, ErrNonFiniteObservation, "observation %v", v)
		assert.True(t, mat.Equal(before, e.State()))
		assert.True(t, mat.Equal(beforeP, e.Covariance()))
		assert.Nil(t, e.Gain())
	}
}

func TestUpdateSingularInnovation(t *testing.T) {
	t.Parallel()

	e, err := New(Model{
		Transition:       scalar(1),
		Observation:      scalar(0),
		ProcessNoise:     scalar(1e-3),
		ObservationNoise: scalar(0),
	}, mat.NewVecDense(1, []float64{2}), scalar(1))
	require.NoError(t, err)

	_, err = e.Predict(nil)
	require.NoError(t, err)
	before := e.Covariance().At(0, 0)

	x, err := e.Update(mat.NewVecDense(1, []float64{5}))
	require.ErrorIs(t, err, ErrSingularInnovationCovariance)
	assert.Nil(t, x)

	// A failed update leaves the predicted state in place.
	assert.Equal(t, 2.0, e.State().AtVec(0))
	assert.Equal(t, before, e.Covariance().At(0, 0))
	assert.Nil(t, e.Gain())
}

func TestConvergesToConstantObservation(t *testing.T) {
	t.Parallel()

	const (
		c = 10.0
		q = 1e-3
		r = 1e-2
	)
	e := newWalk(t)
	obs := mat.NewVecDense(1, []float64{c})

	converged := -1
	for step := 0; step < 200; step++ {
		_, err := e.Predict(nil)
		require.NoError(t, err)
		x, err := e.Update(obs)
		require.NoError(t, err)
		if converged < 0 && math.Abs(x.AtVec(0)-c) < 1e-3 {
			converged = step
		}
	}
	require.GreaterOrEqual(t, converged, 0, "estimate never reached the constant input")
	assert.Less(t, converged, 50)
	assert.InDelta(t, c, e.State().AtVec(0), 1e-9)

	pPrior, kSteady := SteadyStateScalar(1, 1, q, r)
	assert.InDelta(t, kSteady, e.Gain().At(0, 0), 1e-9)

	// The corrected variance sits at (1-K)*P- and one more predict lands on P-.
	assert.InDelta(t, (1-kSteady)*pPrior, e.Covariance().At(0, 0), 1e-9)
	_, err := e.Predict(nil)
	require.NoError(t, err)
	assert.InDelta(t, pPrior, e.Covariance().At(0, 0), 1e-9)

	// Riccati fixed point: P- = f²(1 - K h)P- + q.
	assert.InDelta(t, pPrior, (1-kSteady)*pPrior+q, 1e-12)
}

func TestCovarianceStaysSymmetricPSD(t *testing.T) {
	t.Parallel()

	model, x0, p0 := constantVelocity()
	e, err := New(model, x0, p0)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 11))
	for step := 0; step < 5000; step++ {
		_, err := e.Predict(nil)
		require.NoError(t, err)
		z := 0.3*float64(step) + rng.NormFloat64()
		_, err = e.Update(mat.NewVecDense(1, []float64{z}))
		require.NoError(t, err)
	}

	p := e.Covariance()
	assert.Equal(t, p.At(0, 1), p.At(1, 0))

	var eig mat.EigenSym
	require.True(t, eig.Factorize(p, false))
	for _, v := range eig.Values(nil) {
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.InDelta(t, 0.3, e.State().AtVec(1), 0.15)
}

func TestObserveAndInnovation(t *testing.T) {
	t.Parallel()

	model, _, p0 := constantVelocity()
	e, err := New(model, mat.NewVecDense(2, []float64{4, 1}), p0)
	require.NoError(t, err)

	assert.Equal(t, 4.0, e.Observe(e.State()).AtVec(0))
	assert.Equal(t, 1.5, e.Innovation(mat.NewVecDense(1, []float64{5.5})).AtVec(0))

	n, m, k := e.Dims()
	assert.Equal(t, []int{2, 0, 1}, []int{n, m, k})
}

func TestSteadyStateScalar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		f, h, q, r float64
	}{
		{"random walk", 1, 1, 1e-3, 1e-2},
		{"damped", 0.9, 1, 0.05, 0.2},
		{"scaled observation", 1, 2, 0.01, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, k := SteadyStateScalar(tt.f, tt.h, tt.q, tt.r)
			require.Greater(t, p, 0.0)
			// Propagating the fixed point through one cycle returns it.
			post := (1 - k*tt.h) * p
			assert.InDelta(t, p, tt.f*tt.f*post+tt.q, 1e-12)
			assert.InDelta(t, p*tt.h/(tt.h*tt.h*p+tt.r), k, 1e-12)
		})
	}

	p, k := SteadyStateScalar(0.5, 0, 0.75, 1)
	assert.InDelta(t, 1.0, p, 1e-12)
	assert.Equal(t, 0.0, k)
	p, _ = SteadyStateScalar(1, 0, 0.1, 1)
	assert.True(t, math.IsInf(p, 1))
}
