package kalman

import "math"

// SteadyStateScalar solves the scalar discrete algebraic Riccati equation
// for a time-invariant model x' = f*x + w, z = h*x + v with Var(w) = q and
// Var(v) = r. It returns the fixed point of the predicted (a priori)
// variance and the matching steady-state gain.
//
// The predicted variance p satisfies
//
//	h²p² + (r - f²r - qh²)p - qr = 0
//
// and the gain is k = p*h / (h²p + r). With h == 0 the filter never
// corrects, so k is 0 and p is q/(1-f²) when |f| < 1, else +Inf.
func SteadyStateScalar(f, h, q, r float64) (p, k float64) {
	if h == 0 {
		if math.Abs(f) < 1 {
			return q / (1 - f*f), 0
		}
		return math.Inf(1), 0
	}

	h2 := h * h
	b := r - f*f*r - q*h2
	p = (-b + math.Sqrt(b*b+4*h2*q*r)) / (2 * h2)
	k = p * h / (h2*p + r)
	return p, k
}
