package stats

import (
	"fmt"
	"math"
)

// BlurToGrid builds a smoothed density grid from a list of scalar distance
// samples by summing a normalized Gaussian kernel at each grid point. The
// area under each sample's kernel is 1/len(samples), so one filled window
// integrates to one.
type BlurToGrid struct {
	binWidth float64
	sigma    float64
}

func NewBlurToGrid(binWidth, sigma float64) (*BlurToGrid, error) {
	if binWidth <= 0 {
		return nil, fmt.Errorf("bin width must be > 0, got %g", binWidth)
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("smoothing width must be > 0, got %g", sigma)
	}
	return &BlurToGrid{binWidth: binWidth, sigma: sigma}, nil
}

// Apply fills grid with the smoothed density of samples. Grid point i sits
// at i*binWidth. No far-field cutoff is applied; every sample contributes
// to every bin.
func (b *BlurToGrid) Apply(samples []float64, grid []float64) {
	if len(samples) == 0 {
		for i := range grid {
			grid[i] = 0
		}
		return
	}
	denominator := 1.0 / (2 * b.sigma * b.sigma)
	normalization := 1.0 / (float64(len(samples)) * math.Sqrt(2.0*math.Pi*b.sigma*b.sigma))
	for i := range grid {
		binX := float64(i) * b.binWidth
		value := 0.0
		for _, s := range samples {
			rel := binX - s
			value += normalization * math.Exp(-rel*rel*denominator)
		}
		grid[i] = value
	}
}
