package correlation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	DefaultShrinkage     = 0.05
	DefaultMinEigenvalue = 1e-6
)

// RegularizeOptions controls the positive-definite repair.
type RegularizeOptions struct {
	// Shrinkage pulls every off-diagonal entry toward zero by this fraction.
	Shrinkage float64
	// MinEigenvalue is the floor applied when eigenvalue clipping is needed.
	MinEigenvalue float64
}

// DefaultRegularizeOptions returns the standard shrinkage and eigenvalue floor.
func DefaultRegularizeOptions() RegularizeOptions {
	return RegularizeOptions{Shrinkage: DefaultShrinkage, MinEigenvalue: DefaultMinEigenvalue}
}

func (o RegularizeOptions) withDefaults() RegularizeOptions {
	if o.Shrinkage < 0 || o.Shrinkage >= 1 || math.IsNaN(o.Shrinkage) {
		o.Shrinkage = DefaultShrinkage
	}
	if !(o.MinEigenvalue > 0) {
		o.MinEigenvalue = DefaultMinEigenvalue
	}
	return o
}

// Regularizer turns a raw correlation matrix into a positive-definite one,
// reporting whether it fell back to the identity.
type Regularizer func(m mat.Symmetric, opts RegularizeOptions) (*mat.SymDense, bool)

// IsPositiveDefinite reports whether m admits a Cholesky factorization.
func IsPositiveDefinite(m mat.Symmetric) bool {
	if m == nil || m.SymmetricDim() == 0 {
		return false
	}
	var chol mat.Cholesky
	return chol.Factorize(m)
}

// Regularize returns a positive-definite correlation matrix derived from m
// and whether it had to fall back to the identity. The input is not
// modified. Regularize never panics; any failure yields the identity.
//
// Steps: off-diagonal shrinkage, a Cholesky check, eigenvalue clipping with
// renormalization to a unit diagonal, then a final Cholesky check.
func Regularize(m mat.Symmetric, opts RegularizeOptions) (result *mat.SymDense, usedFallback bool) {
	if m == nil {
		return nil, false
	}
	n := m.SymmetricDim()
	if n == 0 {
		return nil, false
	}
	opts = opts.withDefaults()

	defer func() {
		if r := recover(); r != nil {
			result, usedFallback = identity(n), true
		}
	}()

	shrunk := shrink(m, opts.Shrinkage)
	if IsPositiveDefinite(shrunk) {
		return shrunk, false
	}

	clipped, ok := clipEigenvalues(shrunk, opts.MinEigenvalue)
	if ok && IsPositiveDefinite(clipped) {
		return clipped, false
	}

	return identity(n), true
}

// shrink copies m with a forced unit diagonal, off-diagonals scaled by
// (1-epsilon) and clamped to [-1, 1]. Non-finite entries become 0.
func shrink(m mat.Symmetric, epsilon float64) *mat.SymDense {
	n := m.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			v := m.At(i, j)
			if math.IsInf(v, 0) {
				v = 0
			}
			out.SetSym(i, j, Clamp(v)*(1-epsilon))
		}
	}
	return out
}

// clipEigenvalues rebuilds m as V·max(D, floor)·Vᵀ and rescales it back to a
// correlation matrix.
func clipEigenvalues(m *mat.SymDense, floor float64) (*mat.SymDense, bool) {
	n := m.SymmetricDim()

	var eig mat.EigenSym
	if !eig.Factorize(m, true) {
		return nil, false
	}

	values := eig.Values(nil)
	for i, v := range values {
		if v < floor || math.IsNaN(v) {
			values[i] = floor
		}
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// scaled = V·D, then reconstructed = scaled·Vᵀ
	scaled := mat.DenseCopyOf(&vectors)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, scaled.At(i, j)*values[j])
		}
	}
	var reconstructed mat.Dense
	reconstructed.Mul(scaled, vectors.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				out.SetSym(i, i, 1)
				continue
			}
			denom := math.Sqrt(reconstructed.At(i, i) * reconstructed.At(j, j))
			if denom <= 0 || math.IsNaN(denom) {
				return nil, false
			}
			// average the two triangles to remove floating-point asymmetry
			v := 0.5 * (reconstructed.At(i, j) + reconstructed.At(j, i)) / denom
			out.SetSym(i, j, Clamp(v))
		}
	}
	return out, true
}

func identity(n int) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, 1)
	}
	return out
}
