package cappi

import (
	"math"
	"testing"

	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

// TestRingSamplerUniformWind fills the grid with a uniform eastward wind
// and checks the sampler reconstructs the expected sin(azimuth)
// projection at a ring offset from the grid center.
func TestRingSamplerUniformWind(t *testing.T) {
	g := NewGrid(geodesy.Origin{}, 1, 1, 1, 201, 201, 5)
	for k := 0; k < g.K; k++ {
		for j := 0; j < g.J; j++ {
			for i := 0; i < g.I; i++ {
				g.Set(i, j, k, Cell{U: sentinel.Of(10), V: sentinel.Of(0), W: sentinel.Of(0)})
			}
		}
	}

	sampler := RingSampler{Grid: g, AzimuthStepDeg: 10}
	samples, geom, err := sampler.Samples(2, 0, 0, 20)
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(samples) == 0 {
		t.Fatal("expected non-empty samples")
	}
	if geom.R != 20 {
		t.Errorf("geom.R = %v, want 20", geom.R)
	}

	for _, s := range samples {
		az := s.AzimuthDeg * math.Pi / 180
		want := 10 * math.Sin(az)
		if math.Abs(s.Velocity.Value()-want) > 1e-6 {
			t.Errorf("azimuth %.1f: velocity = %v, want %v", s.AzimuthDeg, s.Velocity.Value(), want)
		}
	}
}

func TestRingSamplerSkipsMissingCells(t *testing.T) {
	g := NewGrid(geodesy.Origin{}, 1, 1, 1, 21, 21, 2)
	sampler := RingSampler{Grid: g}
	samples, _, err := sampler.Samples(0, 0, 0, 5)
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples from an all-missing grid, got %d", len(samples))
	}
}
