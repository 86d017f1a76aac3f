package signal

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// SyntheticConfig describes a generated signal:
//
//	v[t] = BaseLevel + sin(2πt/SeasonLength) + N(0, NoiseLevel²) + TrendSlope*t
type SyntheticConfig struct {
	Length       int // number of points; 0 means unbounded
	BaseLevel    float64
	SeasonLength int
	NoiseLevel   float64 // standard deviation of the Gaussian noise
	TrendSlope   float64
}

// Synthetic generates a trended seasonal signal one point at a time.
type Synthetic struct {
	cfg   SyntheticConfig
	noise distuv.Normal
	t     int
}

// NewSynthetic returns a generator drawing noise from src.
func NewSynthetic(cfg SyntheticConfig, src rand.Source) (*Synthetic, error) {
	if cfg.SeasonLength <= 0 {
		return nil, fmt.Errorf("season length must be positive, got %d", cfg.SeasonLength)
	}
	if cfg.Length < 0 || cfg.NoiseLevel < 0 {
		return nil, fmt.Errorf("length and noise level must be non-negative")
	}
	return &Synthetic{
		cfg:   cfg,
		noise: distuv.Normal{Mu: 0, Sigma: cfg.NoiseLevel, Src: src},
	}, nil
}

// Next returns the next generated point. It never fails.
func (s *Synthetic) Next() (float64, bool, error) {
	if s.cfg.Length > 0 && s.t >= s.cfg.Length {
		return 0, false, nil
	}
	t := float64(s.t)
	seasonal := math.Sin(2 * math.Pi * t / float64(s.cfg.SeasonLength))
	trend := s.cfg.TrendSlope * t
	v := s.cfg.BaseLevel + seasonal + trend
	if s.cfg.NoiseLevel > 0 {
		v += s.noise.Rand()
	}
	s.t++
	return v, true, nil
}

// Generate returns a finite synthetic series of cfg.Length points.
func Generate(cfg SyntheticConfig, src rand.Source) ([]float64, error) {
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("length must be positive to generate a series, got %d", cfg.Length)
	}
	s, err := NewSynthetic(cfg, src)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, cfg.Length)
	for {
		v, ok, _ := s.Next()
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// InjectAnomalies adds offset to count distinct, randomly chosen points of
// series. It returns a new slice and the sorted indices that were changed;
// series itself is not modified.
func InjectAnomalies(series []float64, count int, offset float64, rng *rand.Rand) ([]float64, []int, error) {
	if count < 0 || count > len(series) {
		return nil, nil, fmt.Errorf("cannot inject %d anomalies into %d points", count, len(series))
	}
	out := append([]float64(nil), series...)
	indices := rng.Perm(len(series))[:count]
	sort.Ints(indices)
	for _, i := range indices {
		out[i] += offset
	}
	return out, indices, nil
}
