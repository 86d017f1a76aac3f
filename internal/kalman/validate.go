package kalman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Numerical tolerances, not user-tunable.
const (
	// SymmetryTolerance is the relative tolerance for |A[i,j]-A[j,i]|.
	SymmetryTolerance = 1e-9
	// EigenTolerance is the relative slack allowed below zero for the
	// smallest eigenvalue of a covariance before it is rejected as not PSD.
	EigenTolerance = 1e-9
)

// checkDims returns ErrShapeMismatch when m is not r×c.
func checkDims(name string, m mat.Matrix, r, c int) error {
	mr, mc := m.Dims()
	if mr != r || mc != c {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShapeMismatch, name, mr, mc, r, c)
	}
	return nil
}

// checkCovariance verifies m is square, finite, symmetric and PSD.
func checkCovariance(name string, m mat.Matrix) error {
	n, c := m.Dims()
	if n != c {
		return fmt.Errorf("%w: %s is %dx%d, want square", ErrShapeMismatch, name, n, c)
	}

	scale := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s[%d,%d] is not finite", ErrInvalidCovariance, name, i, j)
			}
			scale = math.Max(scale, math.Abs(v))
		}
	}

	tol := SymmetryTolerance * math.Max(scale, 1)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol {
				return fmt.Errorf("%w: %s is not symmetric at [%d,%d]", ErrInvalidCovariance, name, i, j)
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(symmetrize(m), false); !ok {
		return fmt.Errorf("%w: %s eigen decomposition failed", ErrInvalidCovariance, name)
	}
	for _, v := range eig.Values(nil) {
		if v < -EigenTolerance*math.Max(scale, 1) {
			return fmt.Errorf("%w: %s is not positive semi-definite (eigenvalue %g)", ErrInvalidCovariance, name, v)
		}
	}
	return nil
}

// symmetrize returns (m + m^T) / 2 as a SymDense. m must be square.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return sym
}
