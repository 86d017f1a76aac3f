package kalman

import "errors"

var (
	// ErrShapeMismatch is returned when matrix or vector dimensions are not
	// mutually conformant with the state dimension.
	ErrShapeMismatch = errors.New("kalman: shape mismatch")

	// ErrInvalidCovariance is returned when a covariance matrix is not
	// symmetric positive semi-definite or holds non-finite values.
	ErrInvalidCovariance = errors.New("kalman: invalid covariance")

	// ErrSingularInnovationCovariance is returned by Update when the
	// innovation covariance S = H*P*H^T + R cannot be inverted.
	ErrSingularInnovationCovariance = errors.New("kalman: singular innovation covariance")

	// ErrNonFiniteObservation is returned by Update when the observation
	// holds NaN or ±Inf.
	ErrNonFiniteObservation = errors.New("kalman: non-finite observation")
)
