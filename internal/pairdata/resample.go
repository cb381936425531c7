package pairdata

import (
	"fmt"
	"math/rand"
)

// Sample draws one target distance from the pair's distribution. Weights are
// normalized on the fly so the stored distribution does not have to sum to
// one.
func Sample(rng *rand.Rand, p Pair) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	total := 0.0
	for _, w := range p.Distribution {
		total += w
	}
	u := rng.Float64() * total
	acc := 0.0
	for i, w := range p.Distribution {
		acc += w
		if u < acc {
			return p.Bins[i], nil
		}
	}
	// Rounding can leave u a hair past the accumulated total.
	return p.Bins[len(p.Bins)-1], nil
}

// SampleTargets draws one target per pair, keyed by pair name. Pairs are
// visited in name order so a fixed seed yields fixed targets.
func SampleTargets(rng *rand.Rand, c Collection) (map[string]float64, error) {
	targets := make(map[string]float64, len(c))
	for _, name := range c.Names() {
		t, err := Sample(rng, c[name])
		if err != nil {
			return nil, fmt.Errorf("sample target for %s: %w", name, err)
		}
		targets[name] = t
	}
	return targets, nil
}
