package hvvp

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wujk1122/vortrac/internal/radar"
	"github.com/wujk1122/vortrac/internal/sentinel"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// knownCoeffs is an exact 16-variable linear combination used to check
// that fitLayer recovers the derived quantities (Xr, Xt, VT, Vm) spec.md
// §4.5 defines from the fitted coefficients, following Hvvp.cpp's
// column order and derivation (see row's and fitLayer's doc comments).
// c[1] > 0 makes vr > 0, and c[4] < 0 makes xr > 0, exercising the
// `xt = 1-xr` branch of the Willoughby/Harasti sign rule.
var knownCoeffs = []float64{2.0, 0.01, 3.0, 0.5, -0.003, -0.6, 0.05, 0, 0, 0, 0, 0, 0, 0, 0, 0}

const testCCADeg = 30.0

func exactGates(n int, rt, layerCenterKm float64) []Gate {
	rnd := rand.New(rand.NewSource(1))
	gates := make([]Gate, 0, n)
	for len(gates) < n {
		az := rnd.Float64() * 360
		slant := 5.5 + rnd.Float64()*54 // within the accept window for rt=100, rmw=20
		alt := layerCenterKm - 0.09 + rnd.Float64()*0.18
		g := Gate{AzimuthDeg: az, SlantRangeKm: slant, ElevationDeg: 2.0, AltitudeKm: alt, GroundRangeKm: slant}
		r := row(g, layerCenterKm, testCCADeg)
		var v float64
		for i, c := range knownCoeffs {
			v += c * r[i]
		}
		g.Velocity = sentinel.Of(v)
		gates = append(gates, g)
	}
	return gates
}

func TestFitLayerRecoversKnownCoefficients(t *testing.T) {
	const rt, rmw, center = 100.0, 20.0, 0.6
	gates := exactGates(7000, rt, center)

	lr, ok := fitLayer(gates, rt, center, testCCADeg)
	require.True(t, ok)

	wantVr := rt * knownCoeffs[1]
	wantVmC := knownCoeffs[3] + wantVr
	wantXr := -knownCoeffs[4] / knownCoeffs[1]
	var wantXt float64
	if wantVr > 0 {
		if wantXr > 0 {
			wantXt = 1 - wantXr
		} else {
			wantXt = -wantXr / 2
		}
	} else {
		if wantXr >= 0 {
			wantXt = wantXr / 2
		} else {
			wantXt = 1 + wantXr
		}
	}
	wantVt := rt * knownCoeffs[6] / (wantXt + 1)
	wantVmS := knownCoeffs[0] - wantVt
	wantUe, wantVe := rotateToEarthFrame(wantVmC, wantVmS, testCCADeg)

	assert.InDelta(t, wantXr, lr.Xr, 1e-3)
	assert.InDelta(t, wantXt, lr.Xt, 1e-3)
	assert.InDelta(t, wantVmS, lr.VmS.Value(), 1e-3)
	assert.InDelta(t, wantUe, lr.Ue.Value(), 1e-3)
	assert.InDelta(t, wantVe, lr.Ve.Value(), 1e-3)
}

func TestSolveLayerRejectsBelowMinSamples(t *testing.T) {
	gates := exactGates(minSamples-1, 100, 0.6)
	lr := solveLayer(gates, 100, 20, testCCADeg, 0)
	assert.False(t, lr.Valid)
}

func TestSolveLayerAcceptsAboveMinSamples(t *testing.T) {
	gates := exactGates(minSamples+500, 100, 0.6)
	lr := solveLayer(gates, 100, 20, testCCADeg, 0)
	assert.True(t, lr.Valid)
}

func TestSolveRejectsAllInvalidLayers(t *testing.T) {
	ctx := context.Background()
	_, err := Solve(ctx, nil, 100, 20, testCCADeg, 2)
	require.Error(t, err)
	assert.True(t, vortracerr.Is(err, vortracerr.InsufficientData))
}

func TestSolveProducesOneResultPerLayer(t *testing.T) {
	ctx := context.Background()
	gates := exactGates(minSamples+500, 100, layerBaseKm)
	results, err := Solve(ctx, gates, 100, 20, testCCADeg, 4)
	require.NoError(t, err)
	require.Len(t, results, layerCount)
	assert.True(t, results[0].Valid)
}

func TestSolveHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gates := exactGates(minSamples+500, 100, layerBaseKm)
	_, err := Solve(ctx, gates, 100, 20, testCCADeg, 2)
	require.Error(t, err)
	assert.True(t, vortracerr.Is(err, vortracerr.Aborted))
}

func TestInGateWindowBoundaries(t *testing.T) {
	const rt, rmw = 100.0, 20.0
	assert.False(t, inGateWindow(4.9, rt, rmw), "below the 5km inner bound")
	assert.True(t, inGateWindow(30, rt, rmw), "inside the window")
	assert.False(t, inGateWindow(65, rt, rmw), "beyond the outer bound")
	assert.False(t, inGateWindow(10, 0, rmw), "zero rt is never accepted")
}

func TestExtractGatesFiltersLowElevationAndMissing(t *testing.T) {
	vol := radar.Volume{
		Time:        time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		RadarAltM:   10,
		RadarLatDeg: 25,
		RadarLonDeg: -75,
		Sweeps: []radar.Sweep{
			{ElevationDeg: 0.5, GateSpacingM: 250, Rays: []radar.Ray{
				{AzimuthDeg: 0, ElevationDeg: 0.5, Velocities: []sentinel.Float{sentinel.Of(10), radar.MissingVelocity, sentinel.Of(12)}},
			}},
			{ElevationDeg: 8.0, GateSpacingM: 250, Rays: []radar.Ray{
				{AzimuthDeg: 0, ElevationDeg: 8.0, Velocities: []sentinel.Float{sentinel.Of(99)}},
			}},
		},
	}
	gates := ExtractGates(vol, 0.01)
	// the 8-degree sweep is above maxElevationDeg and must be excluded;
	// the missing gate in the low sweep must be excluded too.
	require.Len(t, gates, 2)
	for _, g := range gates {
		assert.True(t, g.Velocity.Valid())
	}
}

// TestRotateToEarthFrameRecoversSpecScenario reproduces spec.md §8's
// literal S4 scenario for the rotation step itself: with the
// radar-to-center bearing pointing due north (ccaDeg=0), the along-/
// across-beam decomposition is aligned with the earth frame, so
// Vd=5*sin(az) should resolve to Ue≈5, Ve≈0.
func TestRotateToEarthFrameRecoversSpecScenario(t *testing.T) {
	ue, ve := rotateToEarthFrame(0, 5, 0)
	assert.InDelta(t, 5, ue, 1e-9)
	assert.InDelta(t, 0, ve, 1e-9)
}

func TestRotateToEarthFrameRotatesWithBearing(t *testing.T) {
	ue, ve := rotateToEarthFrame(0, 5, 90)
	assert.InDelta(t, 0, ue, 1e-9)
	assert.InDelta(t, 5, ve, 1e-9)
}

func TestAggregateIsIdempotent(t *testing.T) {
	results := []LayerResult{
		{AltitudeKm: 0.6, Xt: 0.5, VmS: sentinel.Of(1), VmSVar: 0.25, Ue: sentinel.Of(3), Ve: sentinel.Of(1), Valid: true},
		{AltitudeKm: 0.7, Xt: 0.6, VmS: sentinel.Of(2), VmSVar: 0.5, Ue: sentinel.Of(4), Ve: sentinel.Of(2), Valid: true},
		{AltitudeKm: 0.8, Xt: 0.55, VmS: sentinel.Of(1.5), VmSVar: 0.3, Ue: sentinel.Of(3.5), Ve: sentinel.Of(1.5), Valid: true},
		{AltitudeKm: 0.9, Xt: -4, VmS: sentinel.Of(9), VmSVar: 0.1, Ue: sentinel.Of(9), Ve: sentinel.Of(9), Valid: true},
	}

	first := Aggregate(append([]LayerResult(nil), results...))
	second := Aggregate(append([]LayerResult(nil), results...))

	require.Equal(t, first, second, "HVVP must be deterministic across identical inputs (spec.md §8 invariant 5)")
	assert.False(t, first.Layers[3].Valid, "the Xt outlier layer must be rejected")
	assert.InDelta(t, 5, first.AvVmSin, 5, "variance-weighted mean should sit among the surviving layers' VmS values")
}

func TestMeanUVIgnoresInvalidLayers(t *testing.T) {
	p := Profile{Layers: []LayerResult{
		{Ue: sentinel.Of(10), Ve: sentinel.Of(0), Valid: true},
		{Ue: sentinel.Of(1000), Ve: sentinel.Of(1000), Valid: false},
		{Ue: sentinel.Of(20), Ve: sentinel.Of(4), Valid: true},
	}}
	ue, ve, ok := p.MeanUV()
	require.True(t, ok)
	assert.InDelta(t, 15, ue, 1e-9)
	assert.InDelta(t, 2, ve, 1e-9)
}

func TestMeanUVNoValidLayers(t *testing.T) {
	p := Profile{Layers: []LayerResult{{Valid: false}}}
	_, _, ok := p.MeanUV()
	assert.False(t, ok)
}

func TestMovingMedianLeavesEndpointsAndSmoothsMiddle(t *testing.T) {
	got := movingMedian([]float64{1, 100, 3, 4, -50})
	want := []float64{1, 3, 4, 3, -50}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("movingMedian()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
