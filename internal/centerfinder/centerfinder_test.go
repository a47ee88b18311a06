package centerfinder

import (
	"context"
	"math"
	"testing"

	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/gbvtd"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

// rigidRotationRing is a RingProvider backed by a synthetic solid-body
// rotation field around a fixed true center, observed by a radar at the
// origin. It lets TestRunLocatesCenter exercise the full simplex search
// against a physically motivated (if simplified) wind field instead of
// a hand-built residual function.
type rigidRotationRing struct {
	trueX, trueY float64
	omega        float64 // angular speed, giving tangential speed omega*radius
}

func (r rigidRotationRing) Samples(levelKm, cx, cy, radiusKm float64) ([]gbvtd.Sample, gbvtd.Geometry, error) {
	var samples []gbvtd.Sample
	for psiDeg := 0.0; psiDeg < 360; psiDeg += 10 {
		psiRad := psiDeg * math.Pi / 180
		px := cx + radiusKm*math.Sin(psiRad)
		py := cy + radiusKm*math.Cos(psiRad)

		dx, dy := px-r.trueX, py-r.trueY
		dist := math.Hypot(dx, dy)
		var u, v float64
		if dist > 1e-6 {
			u = -r.omega * dy
			v = r.omega * dx
		}

		thetaI := geodesy.Bearing(px, py)
		thetaIRad := thetaI * math.Pi / 180
		doppler := u*math.Sin(thetaIRad) + v*math.Cos(thetaIRad)

		samples = append(samples, gbvtd.Sample{AzimuthDeg: thetaI, Velocity: sentinel.Of(doppler)})
	}

	geom := gbvtd.Geometry{
		ThetaTDeg: geodesy.Bearing(-cx, -cy),
		D:         math.Hypot(cx, cy),
		R:         radiusKm,
	}
	return samples, geom, nil
}

// TestRunLocatesCenter checks that the simplex search moves from an
// off-center initial guess toward the true vortex center, i.e. that the
// residual objective is smaller at the discovered center than at the
// search's starting point.
func TestRunLocatesCenter(t *testing.T) {
	ring := rigidRotationRing{trueX: 5, trueY: 3, omega: 4}
	cfg := centerSectionFixture()
	vtd := vtdSectionFixture()

	results, err := Run(context.Background(), ring, cfg, vtd, 0, 2, 0, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || len(results[0].Candidates) != 1 {
		t.Fatalf("unexpected shape: %+v", results)
	}

	best := results[0].Candidates[0]
	obj := objective(ring, cfg.BottomLevelKm, cfg.InnerRadiusKm, vtd)
	startJ := obj(0, 0)
	if best.J > startJ {
		t.Errorf("best J = %v at (%.2f,%.2f), worse than start J = %v at origin", best.J, best.X, best.Y, startJ)
	}

	distToTrue := math.Hypot(best.X-ring.trueX, best.Y-ring.trueY)
	distStartToTrue := math.Hypot(0-ring.trueX, 0-ring.trueY)
	if distToTrue > distStartToTrue {
		t.Errorf("search moved away from true center: start dist %.2f, end dist %.2f", distStartToTrue, distToTrue)
	}
}

func centerSectionFixture() config.CenterSection {
	return config.CenterSection{
		InnerRadiusKm: 5,
		OuterRadiusKm: 5,
		BottomLevelKm: 1,
		TopLevelKm:    1,
		MaxIterations: 150,
		Tolerance:     1e-8,
		RingCount:     1,
	}
}

func vtdSectionFixture() config.VTDSection {
	return config.VTDSection{
		MaxWavenumber:   1,
		GapToleranceDeg: []float64{360, 360, 360},
	}
}
