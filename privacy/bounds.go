// privacy/bounds.go
package privacy

import "sync"

// Bounds describes the plausible value range for a data category. The range
// drives the sensitivity estimate for the private mean, so a too-narrow
// range under-noises and a too-wide range drowns the signal.
type Bounds struct {
	Min float64
	Max float64
}

// BoundsRegistry maps category keys to value bounds. Categories without a
// registered entry fall back to a conservative padding of the observed range.
type BoundsRegistry struct {
	mu     sync.RWMutex
	bounds map[string]Bounds
}

// observedPadding widens unregistered ranges by 10% on each side.
const observedPadding = 0.1

// NewBoundsRegistry returns a registry seeded with heuristic bounds for the
// built-in category keys. Entries are keyed by the catalog's category key,
// the same key the aggregation path looks up.
func NewBoundsRegistry() *BoundsRegistry {
	return &BoundsRegistry{
		bounds: map[string]Bounds{
			"health":     {Min: 0, Max: 20000},
			"vitals":     {Min: 30, Max: 250},
			"sleep":      {Min: 0, Max: 24},
			"nutrition":  {Min: 0, Max: 10000},
			"biometrics": {Min: 20, Max: 400},
		},
	}
}

// Register adds or replaces the bounds for a category key.
func (r *BoundsRegistry) Register(category string, b Bounds) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bounds[category] = b
}

// Lookup returns the registered bounds for category, or a padded version of
// the observed range when the category is unknown.
func (r *BoundsRegistry) Lookup(category string, observedMin, observedMax float64) Bounds {
	r.mu.RLock()
	b, ok := r.bounds[category]
	r.mu.RUnlock()
	if ok {
		return b
	}

	span := observedMax - observedMin
	if span <= 0 {
		// Degenerate observed range; pad around the value itself so the
		// bounds stay non-empty.
		span = 1
		if observedMax != 0 {
			span = absFloat(observedMax)
		}
	}
	return Bounds{
		Min: observedMin - span*observedPadding,
		Max: observedMax + span*observedPadding,
	}
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
