package simulator

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNotPositiveDefinite means the sampler was handed a matrix that was not
// passed through the regularizer.
var ErrNotPositiveDefinite = errors.New("correlation matrix is not positive definite")

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(z float64) float64 {
	return distuv.UnitNormal.CDF(z)
}

// NormalQuantile is the inverse of NormalCDF.
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// CorrelatedSampler turns independent standard normals into correlated
// uniforms using the Cholesky factor of a correlation matrix. It is
// immutable after construction and safe for concurrent use through Streams.
type CorrelatedSampler struct {
	lower []float64 // row-major lower triangle of L
	n     int
}

// NewCorrelatedSampler factorizes m. It returns ErrNotPositiveDefinite when
// no Cholesky factor exists.
func NewCorrelatedSampler(m mat.Symmetric) (*CorrelatedSampler, error) {
	if m == nil || m.SymmetricDim() == 0 {
		return &CorrelatedSampler{}, nil
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(m); !ok {
		return nil, ErrNotPositiveDefinite
	}

	var l mat.TriDense
	chol.LTo(&l)

	n := m.SymmetricDim()
	lower := make([]float64, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			lower = append(lower, l.At(i, j))
		}
	}
	return &CorrelatedSampler{lower: lower, n: n}, nil
}

// Dim is the number of correlated variables per draw.
func (s *CorrelatedSampler) Dim() int {
	return s.n
}

// Stream returns an independent draw sequence seeded from seed.
func (s *CorrelatedSampler) Stream(seed int64) *Stream {
	return &Stream{
		sampler:     s,
		normals:     newNormalSource(seed),
		independent: make([]float64, s.n),
	}
}

// Sample draws rows of correlated uniforms from a single stream.
func (s *CorrelatedSampler) Sample(rows int, seed int64) [][]float64 {
	stream := s.Stream(seed)
	out := make([][]float64, rows)
	for i := range out {
		out[i] = stream.Next(nil)
	}
	return out
}

// Stream is one seeded sequence of correlated draws. A Stream is not safe
// for concurrent use.
type Stream struct {
	sampler     *CorrelatedSampler
	normals     *normalSource
	independent []float64
}

// Next writes one vector of correlated uniforms into dst, allocating when
// dst is too short, and returns it.
func (st *Stream) Next(dst []float64) []float64 {
	n := st.sampler.n
	if len(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	for i := range st.independent {
		st.independent[i] = st.normals.next()
	}

	lower := st.sampler.lower
	offset := 0
	for i := 0; i < n; i++ {
		z := 0.0
		for j := 0; j <= i; j++ {
			z += lower[offset+j] * st.independent[j]
		}
		offset += i + 1
		dst[i] = NormalCDF(z)
	}
	return dst
}

// normalSource produces standard normals with the Box-Muller transform,
// keeping the second value of each pair for the following call.
type normalSource struct {
	rng      *rand.Rand
	spare    float64
	hasSpare bool
}

func newNormalSource(seed int64) *normalSource {
	return &normalSource{rng: rand.New(rand.NewSource(seed))}
}

func (ns *normalSource) next() float64 {
	if ns.hasSpare {
		ns.hasSpare = false
		return ns.spare
	}

	u1 := ns.rng.Float64()
	for u1 == 0 {
		u1 = ns.rng.Float64()
	}
	u2 := ns.rng.Float64()

	radius := math.Sqrt(-2 * math.Log(u1))
	angle := 2 * math.Pi * u2
	ns.spare = radius * math.Sin(angle)
	ns.hasSpare = true
	return radius * math.Cos(angle)
}

// ChunkSeed derives the sub-stream seed for one chunk of iterations so that
// a run's draws do not depend on how chunks are scheduled.
func ChunkSeed(seed int64, chunk int) int64 {
	z := uint64(seed) + uint64(chunk+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
