// Package pairdata manages the experimental reference data for restrained
// site pairs: a distance distribution per named pair, loaded from JSON, and
// the statistical resampling of target distances at the start of each
// iteration.
package pairdata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Pair is the distance distribution for one labeled site pair. The name
// comes from the object key in the pairs file; a name field inside the
// object is ignored on read but preserved on write.
type Pair struct {
	Name         string    `json:"name"`
	Bins         []float64 `json:"bins"`
	Distribution []float64 `json:"distribution"`
	Sites        []int     `json:"sites"`
}

func (p Pair) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pair name must not be empty")
	}
	if len(p.Bins) == 0 {
		return fmt.Errorf("pair %s: bins must not be empty", p.Name)
	}
	if len(p.Bins) != len(p.Distribution) {
		return fmt.Errorf("pair %s: %d bins but %d distribution values", p.Name, len(p.Bins), len(p.Distribution))
	}
	if len(p.Sites) < 2 {
		return fmt.Errorf("pair %s: at least two sites required, got %d", p.Name, len(p.Sites))
	}
	total := 0.0
	for i, w := range p.Distribution {
		if w < 0 {
			return fmt.Errorf("pair %s: negative weight %g at bin %d", p.Name, w, i)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("pair %s: distribution has no weight", p.Name)
	}
	return nil
}

// RestraintSites returns the two endpoints of the distance vector. Interior
// sites only anchor the chain used to avoid periodic-boundary artifacts in
// the host engine.
func (p Pair) RestraintSites() [2]int {
	return [2]int{p.Sites[0], p.Sites[len(p.Sites)-1]}
}

// Collection maps pair names to their reference data.
type Collection map[string]Pair

// Load reads a pairs JSON file: one object per pair, keyed by pair name.
func Load(path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pair data: %w", err)
	}
	var raw map[string]Pair
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pair data: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("pair data file %s holds no pairs", path)
	}
	c := make(Collection, len(raw))
	for name, p := range raw {
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		c[name] = p
	}
	return c, nil
}

// Save writes the collection back out in the pairs file layout.
func (c Collection) Save(path string) error {
	data, err := json.MarshalIndent(map[string]Pair(c), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Names returns the pair names in deterministic order.
func (c Collection) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Collection) Validate() error {
	for name, p := range c {
		if p.Name != name {
			return fmt.Errorf("pair keyed %q carries name %q", name, p.Name)
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
