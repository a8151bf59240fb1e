package render

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// DensityField generates the decorative particulate backdrop the page draws
// behind the arena: a grid of octaved simplex noise normalised to [0, 1].
// Purely cosmetic; the simulation never reads it.
func DensityField(seed int64, cols, rows, octaves int) ([][]float64, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("field dimensions must be positive, got %dx%d", cols, rows)
	}
	if octaves <= 0 {
		octaves = 3
	}

	noise := opensimplex.NewNormalized(seed)
	field := make([][]float64, rows)
	for y := range field {
		field[y] = make([]float64, cols)
		for x := range field[y] {
			nx := float64(x) / float64(cols)
			ny := float64(y) / float64(rows)
			field[y][x] = octaveNoise(noise, nx, ny, octaves, 4.0, 0.5)
		}
	}
	return field, nil
}

// octaveNoise layers noise at increasing frequency and decreasing amplitude.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxValue := 0.0
	freq := frequency

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*freq, y*freq) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		freq *= 2
	}
	return total / maxValue
}
