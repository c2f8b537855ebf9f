// privacy/noise.go
package privacy

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidParameter = errors.New("invalid privacy parameter")
	ErrEmptyInput       = errors.New("empty input")
	ErrInvalidInput     = errors.New("invalid input")
)

// Advisory thresholds for ValidateEpsilon. Outside this band the value is
// still legal, but the result is either barely private or mostly noise.
const (
	epsilonWeakAbove   = 10.0
	epsilonNoisyBelow  = 0.01
)

// Source is a uniform random generator over [0, 1). Implementations must be
// safe for concurrent use; each call draws an independent value.
type Source interface {
	Float64() float64
}

// cryptoSource draws from crypto/rand on every call, so it carries no state
// and is trivially safe across goroutines.
type cryptoSource struct{}

func (cryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("privacy: crypto/rand unavailable: %v", err))
	}
	// 53 random bits scaled into [0, 1), the usual float64 construction.
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// Engine generates calibrated random perturbation for differential privacy.
// It is stateless apart from its randomness source.
type Engine struct {
	src Source
}

// NewEngine returns an Engine backed by a cryptographic randomness source.
func NewEngine() *Engine {
	return &Engine{src: cryptoSource{}}
}

// NewEngineWithSource returns an Engine drawing from the given source.
// Callers may inject a hardware RNG or a deterministic source for tests.
func NewEngineWithSource(src Source) *Engine {
	return &Engine{src: src}
}

// SampleLaplace draws from the Laplace distribution with the given scale
// (not variance) using the inverse-CDF method. scale must be positive.
func (e *Engine) SampleLaplace(scale float64) float64 {
	u := e.src.Float64() - 0.5
	if u == -0.5 {
		// A draw of exactly 0 would put ln(1-2|u|) at -Inf; nudge it
		// inside the open interval so the sample stays finite.
		u = math.Nextafter(-0.5, 0)
	}
	return scale * sign(u) * math.Log(1-2*math.Abs(u))
}

// LaplaceMechanism adds Laplace noise with scale sensitivity/epsilon to
// value, giving epsilon-differential privacy for the stated sensitivity.
func (e *Engine) LaplaceMechanism(value, epsilon, sensitivity float64) (float64, error) {
	if epsilon <= 0 {
		return 0, fmt.Errorf("%w: epsilon must be > 0, got %v", ErrInvalidParameter, epsilon)
	}
	if sensitivity <= 0 {
		return 0, fmt.Errorf("%w: sensitivity must be > 0, got %v", ErrInvalidParameter, sensitivity)
	}
	return value + e.SampleLaplace(sensitivity/epsilon), nil
}

// GaussianMechanism adds zero-mean Gaussian noise calibrated for
// (epsilon, delta)-differential privacy:
// sigma = sensitivity * sqrt(2 * ln(1.25/delta)) / epsilon.
func (e *Engine) GaussianMechanism(value, epsilon, delta, sensitivity float64) (float64, error) {
	if epsilon <= 0 {
		return 0, fmt.Errorf("%w: epsilon must be > 0, got %v", ErrInvalidParameter, epsilon)
	}
	if delta <= 0 || delta >= 1 {
		return 0, fmt.Errorf("%w: delta must be in (0,1), got %v", ErrInvalidParameter, delta)
	}
	if sensitivity <= 0 {
		return 0, fmt.Errorf("%w: sensitivity must be > 0, got %v", ErrInvalidParameter, sensitivity)
	}
	sigma := sensitivity * math.Sqrt(2*math.Log(1.25/delta)) / epsilon
	return value + sigma*e.sampleGaussian(), nil
}

// sampleGaussian draws a standard normal value via the Box-Muller transform.
func (e *Engine) sampleGaussian() float64 {
	// Map [0,1) to (0,1] so the log argument is never zero.
	u1 := 1 - e.src.Float64()
	u2 := 1 - e.src.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// PrivateMean returns a noised mean of values bounded by [minValue, maxValue].
// Sensitivity of the mean is (maxValue-minValue)/n for n values.
func (e *Engine) PrivateMean(values []float64, epsilon, minValue, maxValue float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no values to aggregate", ErrEmptyInput)
	}
	if epsilon <= 0 {
		return 0, fmt.Errorf("%w: epsilon must be > 0, got %v", ErrInvalidParameter, epsilon)
	}
	if minValue >= maxValue {
		return 0, fmt.Errorf("%w: minValue %v must be below maxValue %v", ErrInvalidParameter, minValue, maxValue)
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	trueMean := sum / float64(len(values))
	sensitivity := (maxValue - minValue) / float64(len(values))

	return e.LaplaceMechanism(trueMean, epsilon, sensitivity)
}

// ValidateEpsilon rejects non-positive or non-finite epsilons. A non-empty
// advisory is returned for legal but questionable values; advisories never
// block execution.
func ValidateEpsilon(epsilon float64) (string, error) {
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return "", fmt.Errorf("%w: epsilon must be a finite number", ErrInvalidParameter)
	}
	if epsilon <= 0 {
		return "", fmt.Errorf("%w: epsilon must be > 0, got %v", ErrInvalidParameter, epsilon)
	}
	switch {
	case epsilon > epsilonWeakAbove:
		return fmt.Sprintf("epsilon %v is very large; the privacy guarantee is weak", epsilon), nil
	case epsilon < epsilonNoisyBelow:
		return fmt.Sprintf("epsilon %v is very small; noise will dominate the signal", epsilon), nil
	}
	return "", nil
}

// AnonymizeRecords returns shallow copies of rows with the named fields
// removed. A nil row is rejected rather than silently skipped.
func AnonymizeRecords(rows []map[string]interface{}, dropFields []string) ([]map[string]interface{}, error) {
	if rows == nil {
		return nil, fmt.Errorf("%w: rows must be a list of key/value maps", ErrInvalidInput)
	}

	drop := make(map[string]struct{}, len(dropFields))
	for _, f := range dropFields {
		drop[f] = struct{}{}
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("%w: row %d is not a key/value map", ErrInvalidInput, i)
		}
		clean := make(map[string]interface{}, len(row))
		for k, v := range row {
			if _, skip := drop[k]; skip {
				continue
			}
			clean[k] = v
		}
		out = append(out, clean)
	}
	return out, nil
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
