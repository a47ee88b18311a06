package vortexsynth

import (
	"context"
	"math"
	"testing"

	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/gbvtd"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

// syntheticRing is a RingProvider that produces a pure Rankine-like
// tangential wind field: VT(r) = vtAtRMW * min(r/rmw, rmw/r), so VTC0
// peaks exactly at rmwKm.
type syntheticRing struct {
	rmwKm, vtAtRMW float64
}

func (s syntheticRing) Samples(levelKm float64, centerX, centerY, radiusKm float64) ([]gbvtd.Sample, gbvtd.Geometry, error) {
	vt := s.vtAtRMW * math.Min(radiusKm/s.rmwKm, s.rmwKm/radiusKm)
	var samples []gbvtd.Sample
	const thetaT = 30.0
	for az := 0.0; az < 360; az += 5 {
		// Vd(theta) = VT*sin(theta-thetaT), the canonical GBVTD test
		// signal (spec.md §8 property 7 / scenario S2).
		v := vt * math.Sin((az-thetaT)*math.Pi/180)
		samples = append(samples, gbvtd.Sample{AzimuthDeg: az, Velocity: sentinel.Of(v)})
	}
	geom := gbvtd.Geometry{ThetaTDeg: thetaT, D: 80, R: radiusKm}
	return samples, geom, nil
}

func TestProcessLevelLocatesRMW(t *testing.T) {
	ring := syntheticRing{rmwKm: 30, vtAtRMW: 40}
	vtd := config.VTDSection{InnerRadiusKm: 10, OuterRadiusKm: 60, RingWidthKm: 5, MaxWavenumber: 1}
	lc := LevelCenter{LevelKm: 2, X: 0, Y: 0}
	radarOrigin := geodesy.Origin{LatDeg: 25, LonDeg: -75}

	lp, err := ProcessLevel(context.Background(), ring, lc, radarOrigin, vtd, nil)
	if err != nil {
		t.Fatalf("ProcessLevel: %v", err)
	}
	level, profile := lp.Level, lp.Wind
	if !level.RMWKm.Valid() {
		t.Fatal("expected a valid RMW")
	}
	if math.Abs(level.RMWKm.Value()-30) > 2 {
		t.Errorf("RMW = %v, want close to 30", level.RMWKm.Value())
	}
	if math.Abs(level.MaxTangentialWindMS.Value()-40) > 3 {
		t.Errorf("MaxTangentialWindMS = %v, want close to 40", level.MaxTangentialWindMS.Value())
	}
	if len(profile) == 0 {
		t.Error("expected a non-empty pressure profile")
	}
}

func TestProcessLevelHonorsCancellation(t *testing.T) {
	ring := syntheticRing{rmwKm: 30, vtAtRMW: 40}
	vtd := config.VTDSection{InnerRadiusKm: 10, OuterRadiusKm: 60, RingWidthKm: 5, MaxWavenumber: 1}
	lc := LevelCenter{LevelKm: 2}
	radarOrigin := geodesy.Origin{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProcessLevel(ctx, ring, lc, radarOrigin, vtd, nil)
	if err == nil {
		t.Error("expected cancellation to surface as an error")
	}
}

func TestRankineAlphaDefaultsWhenInsufficientPoints(t *testing.T) {
	alpha := rankineAlpha(nil, 30, 40)
	if alpha != 0.5 {
		t.Errorf("rankineAlpha with no fits = %v, want 0.5 default", alpha)
	}
}
