// Package hvvp implements the HVVP environmental-wind estimator (spec.md
// §4.5): a 16-variable weighted least-squares fit of low-elevation
// Doppler gates in altitude layers, following the classical
// Velocity-Volume Processing polynomial-in-(range, altitude) times
// trigonometric-in-azimuth expansion (Waldteufel & Corbin 1979;
// Harasti 2004's Rankine-exponent extension for VORTRAC). The column
// ordering, the Xt sign-rule (Willoughby 1995 / Harasti extension), and
// the earth-frame rotation follow the retrieved original source
// (original_source/trunk/HVVP/Hvvp.cpp:209-224, 404-479).
package hvvp

import (
	"context"
	"math"
	"sort"

	"github.com/alitto/pond"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/wujk1122/vortrac/internal/lls"
	"github.com/wujk1122/vortrac/internal/radar"
	"github.com/wujk1122/vortrac/internal/sentinel"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// minSamples is HVVP's per-layer sample-count threshold (spec.md §4.5:
// "If accepted count >= 6500").
const minSamples = 6500

// numColumns is the 16-variable design matrix width.
const numColumns = 16

// layerCount and layer geometry (spec.md §4.5: "14 altitude layers
// centered at z_m = 0.6 + 0.1*m km, half-width 0.1 km").
const (
	layerCount      = 14
	layerBaseKm     = 0.6
	layerSpacingKm  = 0.1
	layerHalfWidth  = 0.1
	maxElevationDeg = 5.0
)

// effectiveEarthRadiusKm is the 4/3-earth-radius model
// (Hvvp.cpp:126, `ae = 4.0*6371.0/3.0`) used to correct the elevation
// angle for standard atmospheric refraction before projecting a gate
// into the design matrix.
const effectiveEarthRadiusKm = 4.0 * 6371.0 / 3.0

// Gate is one accepted Doppler velocity gate, already converted to the
// quantities the 16-variable design matrix needs.
type Gate struct {
	AzimuthDeg    float64
	SlantRangeKm  float64
	ElevationDeg  float64
	GroundRangeKm float64
	AltitudeKm    float64
	Velocity      sentinel.Float
}

// ExtractGates walks every low-elevation ray/gate in the volume and
// returns the Gates HVVP's layer loop filters by altitude, using the
// same flat-earth slant-range-to-altitude approximation as the rest of
// this module (altitude = radar altitude + slant range * sin(elevation);
// ground range = slant range * cos(elevation)).
func ExtractGates(v radar.Volume, radarAltKm float64) []Gate {
	var gates []Gate
	for _, sweep := range v.LowElevationSweeps(maxElevationDeg) {
		elRad := sweep.ElevationDeg * math.Pi / 180
		for _, ray := range sweep.Rays {
			for i, vel := range ray.Velocities {
				if !vel.Valid() {
					continue
				}
				slantKm := float64(i) * sweep.GateSpacingM / 1000
				gates = append(gates, Gate{
					AzimuthDeg:    ray.AzimuthDeg,
					SlantRangeKm:  slantKm,
					ElevationDeg:  sweep.ElevationDeg,
					GroundRangeKm: slantKm * math.Cos(elRad),
					AltitudeKm:    radarAltKm + slantKm*math.Sin(elRad),
					Velocity:      vel,
				})
			}
		}
	}
	return gates
}

// inGateWindow implements spec.md §4.5's acceptance test:
// srange/rt * cos(el) is folded into Gate.GroundRangeKm already (ground
// range); the window itself is expressed directly in ground range here
// as (5, rt*min(0.6, (rt-rmw)/rt)) km, rt and rmw given in km.
func inGateWindow(groundRangeKm, rt, rmw float64) bool {
	if rt <= 0 {
		return false
	}
	lowerFrac := 5 / rt
	upperFrac := (rt - rmw) / rt
	if upperFrac > 0.6 {
		upperFrac = 0.6
	}
	frac := groundRangeKm / rt
	return frac > lowerFrac && frac < upperFrac
}

// LayerResult is one altitude layer's fit outcome.
type LayerResult struct {
	AltitudeKm float64
	Ue, Ve     sentinel.Float
	VmS        sentinel.Float
	VmSVar     float64
	Xr         float64
	Xt         float64
	NumData    int
	Valid      bool
}

// rotateAzimuthRad rotates a meteorological azimuth (degrees from north)
// into the radar-to-center baseline frame and returns it in radians
// (Hvvp.cpp:91-100, `rotateAzimuth`).
func rotateAzimuthRad(azimuthDeg, ccaDeg float64) float64 {
	rotated := azimuthDeg - ccaDeg
	if rotated < 0 {
		rotated += 360
	}
	return rotated * math.Pi / 180
}

// row builds the 16-variable design-matrix row for one gate, following
// Hvvp.cpp:175-224 exactly: azimuth is first rotated into the
// radar-to-center baseline (aa), the elevation angle is corrected for
// 4/3-earth-radius refraction (ee), then xx/yy/rr/zz are formed from
// the corrected geometry before the 16 named products are laid out in
// the same column order as the original xls[0..15].
func row(g Gate, layerCenterKm, ccaDeg float64) []float64 {
	aa := rotateAzimuthRad(g.AzimuthDeg, ccaDeg)
	sinaa, cosaa := math.Sin(aa), math.Cos(aa)

	elRad := g.ElevationDeg * math.Pi / 180
	srange := g.SlantRangeKm
	// Hvvp.cpp:187 passes the elevation in degrees (not deg2rad) to this
	// particular cos() call; reproduced verbatim here.
	ee := elRad + math.Asin(srange*math.Cos(g.ElevationDeg)/(effectiveEarthRadiusKm+g.AltitudeKm))
	cosee := math.Cos(ee)

	xx := srange * cosee * sinaa
	yy := srange * cosee * cosaa
	rr := srange * srange * cosee * cosee * cosee
	zz := g.AltitudeKm - layerCenterKm

	return []float64{
		sinaa * cosee,
		cosee * sinaa * xx,
		cosee * sinaa * zz,
		cosaa * cosee,
		cosee * cosaa * yy,
		cosee * cosaa * zz,
		cosee * sinaa * yy,
		rr * sinaa * sinaa * sinaa,
		rr * sinaa * cosaa * cosaa,
		rr * cosaa * cosaa * cosaa,
		rr * cosaa * sinaa * sinaa,
		cosee * sinaa * xx * zz,
		cosee * cosaa * yy * zz,
		cosee * sinaa * zz * zz,
		cosee * cosaa * zz * zz,
		cosee * sinaa * yy * zz,
	}
}

// fitLayer runs the fit-then-reject-outliers-then-refit sequence and
// derives the named quantities spec.md §4.5 specifies, following
// Hvvp.cpp:404-479's exact derivation order.
func fitLayer(gates []Gate, rt, layerCenterKm, ccaDeg float64) (LayerResult, bool) {
	a := make([][]float64, len(gates))
	b := make([]float64, len(gates))
	for i, g := range gates {
		a[i] = row(g, layerCenterKm, ccaDeg)
		b[i] = g.Velocity.Value()
	}

	result, err := lls.Solve(a, b, nil)
	if err != nil {
		return LayerResult{}, false
	}

	if residualOutliersPresent(a, b, result.X) {
		sigma := residualStdDev(a, b, result.X)
		kept := lo.Filter(lo.Range(len(a)), func(i, _ int) bool {
			return math.Abs(residual(a[i], b[i], result.X)) <= 2*sigma
		})
		a2 := lo.Map(kept, func(i, _ int) []float64 { return a[i] })
		b2 := lo.Map(kept, func(i, _ int) float64 { return b[i] })
		if len(a2) >= minSamples {
			if refit, err := lls.Solve(a2, b2, nil); err == nil {
				result = refit
				a, b = a2, b2
			}
		}
	}

	c := result.X

	// Radial wind above the radar (Hvvp.cpp:404).
	vr := rt * c[1]
	// Along-beam component of the environmental wind above the radar
	// (Hvvp.cpp:407).
	vmC := c[3] + vr
	// Rankine exponent of the radial wind (Hvvp.cpp:410).
	xr := -c[4] / c[1]

	// Willoughby (1995) / Harasti extension sign rule relating the
	// tangential Rankine exponent to xr and the sign of vr
	// (Hvvp.cpp:430-443).
	var xt float64
	if vr > 0 {
		if xr > 0 {
			xt = 1 - xr
		} else {
			xt = -xr / 2
		}
	} else {
		if xr >= 0 {
			xt = xr / 2
		} else {
			xt = 1 + xr
		}
	}

	// Tangential wind above the radar (Hvvp.cpp:453).
	vt := rt * c[6] / (xt + 1)
	// Across-beam component of the environmental wind (Hvvp.cpp:466).
	vmS := c[0] - vt

	ue, ve := rotateToEarthFrame(vmC, vmS, ccaDeg)

	return LayerResult{
		Xr:      xr,
		Xt:      xt,
		VmS:     sentinel.Of(vmS),
		VmSVar:  result.StdErr[0] * result.StdErr[0],
		Ue:      sentinel.Of(ue),
		Ve:      sentinel.Of(ve),
		NumData: len(a),
	}, true
}

// rotateToEarthFrame rotates the along-/across-beam environmental wind
// components (Vm_c, Vm_s) into earth-relative (east, north) components
// using the radar-to-analysis-center bearing ccaDeg, exactly as
// Hvvp.cpp:478-479 (`rot = cca*deg2rad`).
func rotateToEarthFrame(vmC, vmS, ccaDeg float64) (ue, ve float64) {
	rot := ccaDeg * math.Pi / 180
	ue = vmS*math.Cos(rot) + vmC*math.Sin(rot)
	ve = vmC*math.Cos(rot) - vmS*math.Sin(rot)
	return ue, ve
}

func residual(arow []float64, b float64, x []float64) float64 {
	fit := 0.0
	for i, v := range arow {
		fit += v * x[i]
	}
	return b - fit
}

func residualStdDev(a [][]float64, b []float64, x []float64) float64 {
	var sum, sumSq float64
	for i := range a {
		r := residual(a[i], b[i], x)
		sum += r
		sumSq += r * r
	}
	n := float64(len(a))
	mean := sum / n
	return math.Sqrt(sumSq/n - mean*mean)
}

func residualOutliersPresent(a [][]float64, b []float64, x []float64) bool {
	sigma := residualStdDev(a, b, x)
	for i := range a {
		if math.Abs(residual(a[i], b[i], x)) > 2*sigma {
			return true
		}
	}
	return false
}

// Solve runs the full 14-layer HVVP fit given the already-extracted
// gates, the total radius rt and radius of maximum wind rmw (km) that
// define the acceptance window, and ccaDeg, the compass bearing
// (degrees clockwise from north) from the radar to the analysis center
// that both the azimuth rotation (row) and the final earth-frame
// rotation (rotateToEarthFrame) need. The 14 layers are independent,
// read-only fits over the same gate slice, so Solve fans them out
// across a bounded alitto/pond worker pool coordinated by
// golang.org/x/sync/errgroup, the same per-item concurrency pattern
// centerfinder.Run uses for its per-ring searches (spec.md §5: "an
// implementation MAY parallelize ... per-layer LLS fits at 4.5 because
// these are independent and read-only").
func Solve(ctx context.Context, gates []Gate, rt, rmw, ccaDeg float64, poolSize int) ([]LayerResult, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	results := make([]LayerResult, layerCount)

	pool := pond.New(poolSize, 0, pond.MinWorkers(poolSize), pond.Context(ctx))
	defer pool.StopAndWait()

	group, gctx := errgroup.WithContext(ctx)
	for m := 0; m < layerCount; m++ {
		m := m
		group.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			done := make(chan struct{})
			pool.Submit(func() {
				defer close(done)
				results[m] = solveLayer(gates, rt, rmw, ccaDeg, m)
			})
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := group.Wait(); err != nil {
		return nil, vortracerr.Wrap(vortracerr.Aborted, err, "hvvp: canceled")
	}

	if allInvalid(results) {
		return results, vortracerr.New(vortracerr.InsufficientData, "hvvp: no altitude layer had >= %d accepted gates", minSamples)
	}
	return results, nil
}

// solveLayer runs the acceptance-window filter and fit-then-reject-
// outliers-then-refit sequence for one altitude layer.
func solveLayer(gates []Gate, rt, rmw, ccaDeg float64, m int) LayerResult {
	center := layerBaseKm + layerSpacingKm*float64(m)
	layerGates := lo.Filter(gates, func(g Gate, _ int) bool {
		return inGateWindow(g.GroundRangeKm, rt, rmw) && math.Abs(g.AltitudeKm-center) <= layerHalfWidth
	})
	if len(layerGates) < minSamples {
		return LayerResult{AltitudeKm: center, Valid: false}
	}
	lr, ok := fitLayer(layerGates, rt, center, ccaDeg)
	lr.AltitudeKm = center
	if !ok || lr.Xt < 0 || math.Abs(lr.Ue.Value()) > 30 || math.Abs(lr.Ve.Value()) > 30 {
		lr.Valid = false
	} else {
		lr.Valid = true
	}
	return lr
}

func allInvalid(results []LayerResult) bool {
	for _, r := range results {
		if r.Valid {
			return false
		}
	}
	return true
}

// Profile is HVVP's final smoothed output (spec.md §4.5: "Return the
// smoothed profile and the layer-averaged av_VmSin with its variance").
type Profile struct {
	Layers   []LayerResult // Ue, Ve, VmS smoothed in place
	AvVmSin  float64
	AvVmSinVar float64
}

// MeanUV returns the mean earth-frame environmental wind (Ue, Ve) across
// valid layers, the single representative correction GBVTD's HVVP
// closure (spec.md §4.4) subtracts from Doppler velocities before
// re-fitting. ok is false if no layer survived Aggregate.
func (p Profile) MeanUV() (ue, ve float64, ok bool) {
	var sumUe, sumVe float64
	var n int
	for _, l := range p.Layers {
		if !l.Valid {
			continue
		}
		sumUe += l.Ue.Value()
		sumVe += l.Ve.Value()
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return sumUe / float64(n), sumVe / float64(n), true
}

// Aggregate rejects layers whose Xt is farther than one standard
// deviation from the mean Xt of the valid layers, computes the
// variance-weighted mean of VmS, smooths Ue/Ve/VmS with a 3-point
// moving median, and returns the result.
func Aggregate(results []LayerResult) Profile {
	var xts []float64
	for _, r := range results {
		if r.Valid {
			xts = append(xts, r.Xt)
		}
	}
	if len(xts) == 0 {
		return Profile{Layers: results}
	}
	meanXt, stdXt := stat.MeanStdDev(xts, nil)

	kept := make([]LayerResult, len(results))
	copy(kept, results)
	for i, r := range kept {
		if r.Valid && stdXt > 0 && math.Abs(r.Xt-meanXt) > stdXt {
			kept[i].Valid = false
		}
	}

	var vmsVals, vmsWeights []float64
	for _, r := range kept {
		if r.Valid && r.VmSVar > 0 {
			vmsVals = append(vmsVals, r.VmS.Value())
			vmsWeights = append(vmsWeights, 1/r.VmSVar)
		}
	}
	avVmSin, avVar := 0.0, 0.0
	if len(vmsVals) > 0 {
		avVmSin = stat.Mean(vmsVals, vmsWeights)
		sumW := 0.0
		for _, w := range vmsWeights {
			sumW += w
		}
		if sumW > 0 {
			avVar = 1 / sumW
		}
	}

	smoothUe := movingMedian(extractValid(kept, func(r LayerResult) float64 { return r.Ue.Value() }))
	smoothVe := movingMedian(extractValid(kept, func(r LayerResult) float64 { return r.Ve.Value() }))
	smoothVmS := movingMedian(extractValid(kept, func(r LayerResult) float64 { return r.VmS.Value() }))

	j := 0
	for i := range kept {
		if !kept[i].Valid {
			continue
		}
		kept[i].Ue = sentinel.Of(smoothUe[j])
		kept[i].Ve = sentinel.Of(smoothVe[j])
		kept[i].VmS = sentinel.Of(smoothVmS[j])
		j++
	}

	return Profile{Layers: kept, AvVmSin: avVmSin, AvVmSinVar: avVar}
}

func extractValid(results []LayerResult, f func(LayerResult) float64) []float64 {
	var out []float64
	for _, r := range results {
		if r.Valid {
			out = append(out, f(r))
		}
	}
	return out
}

// movingMedian applies a 3-point moving median, leaving the first and
// last elements unchanged (no full 3-point window available there).
func movingMedian(values []float64) []float64 {
	out := append([]float64(nil), values...)
	for i := 1; i < len(values)-1; i++ {
		window := []float64{values[i-1], values[i], values[i+1]}
		sort.Float64s(window)
		out[i] = window[1]
	}
	return out
}
