// Package vortexsynth implements spec.md §4.6: assemble per-level
// tangential-wind and asymmetry coefficients from GBVTD, correct with
// HVVP, locate the RMW, extend the profile with a modified Rankine
// decay, integrate the gradient-wind equation for central pressure, and
// propagate uncertainties.
package vortexsynth

import (
	"context"
	"math"
	"sort"

	"github.com/wujk1122/vortrac/internal/coeff"
	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/gbvtd"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/hvvp"
	"github.com/wujk1122/vortrac/internal/pressure"
	"github.com/wujk1122/vortrac/internal/sentinel"
	"github.com/wujk1122/vortrac/internal/vortex"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// RingProvider supplies the Doppler samples and ring geometry for a
// fixed center at one height and radius, the same shape as
// centerfinder.RingProvider so both packages can share a cappi.Grid
// adapter without this package depending on centerfinder.
type RingProvider interface {
	Samples(levelKm float64, centerX, centerY, radiusKm float64) ([]gbvtd.Sample, gbvtd.Geometry, error)
}

// LevelCenter is the chosen center (km from radar) for one analysis
// height, the CenterChooser output this package consumes.
type LevelCenter struct {
	LevelKm              float64
	X, Y                 float64
	ConvergenceStdDev    float64
	NumConvergingCenters int
}

// rankineExtensionPoints is how many synthetic radii beyond the
// outermost reliable ring the modified-Rankine decay contributes to the
// pressure integration profile.
const rankineExtensionPoints = 4

// rankineExtensionFactor is how far out (as a multiple of the outermost
// ring radius) the Rankine extension reaches before the integration is
// truncated, mirroring the source's practice of not integrating the
// gradient-wind balance to infinity.
const rankineExtensionFactor = 4.0

// applyClosure applies HVVP's closure correction to one ring's raw
// samples: subtract the along-beam projection of (ue, ve) from each
// Doppler velocity before the GBVTD fit (spec.md §4.4 "HVVP closure:
// subtract the HVVP-estimated environmental wind projection from the
// Doppler velocity before fitting; re-fit").
func applyClosure(samples []gbvtd.Sample, ue, ve float64) []gbvtd.Sample {
	out := make([]gbvtd.Sample, len(samples))
	for i, s := range samples {
		if !s.Velocity.Valid() {
			out[i] = s
			continue
		}
		az := s.AzimuthDeg * math.Pi / 180
		projection := ue*math.Sin(az) + ve*math.Cos(az)
		out[i] = gbvtd.Sample{AzimuthDeg: s.AzimuthDeg, Velocity: sentinel.Of(s.Velocity.Value() - projection)}
	}
	return out
}

// ringRadii returns the configured ring radii from InnerRadiusKm to
// OuterRadiusKm stepped by RingWidthKm.
func ringRadii(vtd config.VTDSection) []float64 {
	if vtd.RingWidthKm <= 0 {
		return []float64{vtd.InnerRadiusKm}
	}
	var out []float64
	for r := vtd.InnerRadiusKm; r <= vtd.OuterRadiusKm+1e-9; r += vtd.RingWidthKm {
		out = append(out, r)
	}
	return out
}

// ringFit is one ring's harmonic fit outcome plus its radius, used
// internally to locate the RMW and build the Rankine extension.
type ringFit struct {
	radiusKm float64
	result   *gbvtd.Result
	err      error
}

func vtc0(r *gbvtd.Result) sentinel.Float {
	for _, c := range r.Coefficients {
		if c.Param == coeff.VTC0 {
			return c.Value
		}
	}
	return sentinel.Missing
}

// fitRings runs GBVTDRing at every configured radius for one level,
// applying the HVVP closure correction first when closure is
// config.ClosureHVVP and profile is non-nil.
func fitRings(ring RingProvider, levelKm, x, y float64, vtd config.VTDSection, profile *hvvp.Profile) []ringFit {
	radii := ringRadii(vtd)
	fits := make([]ringFit, len(radii))
	var ue, ve float64
	useClosure := vtd.Closure == config.ClosureHVVP && profile != nil
	if useClosure {
		if u, v, ok := profile.MeanUV(); ok {
			ue, ve = u, v
		} else {
			useClosure = false
		}
	}

	gapTol := 360.0
	if len(vtd.GapToleranceDeg) > 0 {
		gapTol = vtd.GapToleranceDeg[len(vtd.GapToleranceDeg)-1]
	}

	for i, r := range radii {
		samples, geom, err := ring.Samples(levelKm, x, y, r)
		if err != nil {
			fits[i] = ringFit{radiusKm: r, err: err}
			continue
		}
		if useClosure {
			samples = applyClosure(samples, ue, ve)
		}
		result, err := gbvtd.Solve(samples, geom, vtd.MaxWavenumber, gapTol)
		fits[i] = ringFit{radiusKm: r, result: result, err: err}
	}
	return fits
}

// findRMW locates the ring whose VTC0 is maximum and refines it with
// parabolic interpolation across the three bracketing rings (spec.md
// §4.6 step 2). ok is false if fewer than one ring has a valid fit.
func findRMW(fits []ringFit) (rmwKm, maxVT float64, ok bool) {
	type point struct {
		r, vt float64
	}
	var pts []point
	for _, f := range fits {
		if f.err != nil || f.result == nil {
			continue
		}
		v := vtc0(f.result)
		if !v.Valid() {
			continue
		}
		pts = append(pts, point{f.radiusKm, v.Value()})
	}
	if len(pts) == 0 {
		return 0, 0, false
	}
	best := 0
	for i, p := range pts {
		if p.vt > pts[best].vt {
			best = i
		}
	}
	if best == 0 || best == len(pts)-1 {
		return pts[best].r, pts[best].vt, true
	}
	y0, y1, y2 := pts[best-1].vt, pts[best].vt, pts[best+1].vt
	h := pts[best].r - pts[best-1].r
	denom := y0 - 2*y1 + y2
	if denom == 0 {
		return pts[best].r, y1, true
	}
	offset := h / 2 * (y0 - y2) / denom
	return pts[best].r + offset, y1, true
}

// rankineAlpha fits the decay exponent VT(r) = VTmax*(RMW/r)^alpha from
// the outer three valid rings via a log-log linear fit (spec.md §4.6
// step 3: "alpha is fit from the outer three rings").
func rankineAlpha(fits []ringFit, rmwKm, maxVT float64) float64 {
	type point struct{ lr, lv float64 }
	var pts []point
	for i := len(fits) - 1; i >= 0 && len(pts) < 3; i-- {
		f := fits[i]
		if f.err != nil || f.result == nil {
			continue
		}
		v := vtc0(f.result)
		if !v.Valid() || v.Value() <= 0 || f.radiusKm <= rmwKm {
			continue
		}
		pts = append(pts, point{math.Log(f.radiusKm / rmwKm), math.Log(v.Value() / maxVT)})
	}
	if len(pts) < 2 {
		return 0.5 // default mild decay when too few outer rings to fit
	}
	var sumXY, sumXX float64
	for _, p := range pts {
		sumXY += p.lr * p.lv
		sumXX += p.lr * p.lr
	}
	if sumXX == 0 {
		return 0.5
	}
	slope := sumXY / sumXX
	return -slope
}

// buildProfile assembles the []pressure.RingWind the gradient-wind
// integrator consumes: one point per fitted ring (using VTC0), extended
// beyond the outermost ring by the modified Rankine decay out to
// rankineExtensionFactor*outermost radius.
func buildProfile(fits []ringFit, rmwKm, maxVT, alpha float64) []pressure.RingWind {
	var profile []pressure.RingWind
	var outermost float64
	for _, f := range fits {
		if f.err != nil || f.result == nil {
			continue
		}
		v := vtc0(f.result)
		if !v.Valid() {
			continue
		}
		profile = append(profile, pressure.RingWind{RadiusKm: f.radiusKm, VTMs: v.Value()})
		if f.radiusKm > outermost {
			outermost = f.radiusKm
		}
	}
	if outermost == 0 || maxVT == 0 {
		return profile
	}
	extentKm := outermost * rankineExtensionFactor
	for i := 1; i <= rankineExtensionPoints; i++ {
		r := outermost + (extentKm-outermost)*float64(i)/float64(rankineExtensionPoints)
		vt := maxVT * math.Pow(rmwKm/r, alpha)
		profile = append(profile, pressure.RingWind{RadiusKm: r, VTMs: vt})
	}
	sort.Slice(profile, func(i, j int) bool { return profile[i].RadiusKm < profile[j].RadiusKm })
	return profile
}

// propagateUncertainty estimates the central-pressure uncertainty by
// re-integrating the profile with every VT perturbed by its ring's
// GBVTD standard error (first-order finite-difference stand-in for a
// closed-form partial-derivative expansion, documented in DESIGN.md),
// then folds in the HVVP VmS variance in quadrature when the HVVP
// closure was used.
func propagateUncertainty(fits []ringFit, rmwKm, maxVT, alpha float64, boundaryMb, centerLat float64, hvvpVar float64, useHVVP bool) (centralUncertainty, deficitUncertainty float64) {
	perturbed := make([]ringFit, len(fits))
	copy(perturbed, fits)
	for i, f := range fits {
		if f.err != nil || f.result == nil {
			continue
		}
		var stdErr float64
		for _, c := range f.result.Coefficients {
			if c.Param == coeff.VTC0 {
				stdErr = c.StdErr.Value()
			}
		}
		adjusted := *f.result
		coeffs := append([]coeff.Coefficient(nil), f.result.Coefficients...)
		for j, c := range coeffs {
			if c.Param == coeff.VTC0 {
				coeffs[j].Value = sentinel.Of(c.Value.Value() + stdErr)
			}
		}
		adjusted.Coefficients = coeffs
		perturbed[i] = ringFit{radiusKm: f.radiusKm, result: &adjusted}
	}

	_, maxVTPerturbed, ok := findRMW(perturbed)
	if !ok {
		maxVTPerturbed = maxVT
	}
	perturbedProfile := buildProfile(perturbed, rmwKm, maxVTPerturbed, alpha)
	baseProfile := buildProfile(fits, rmwKm, maxVT, alpha)

	baseCentral, baseDeficit := pressure.Integrate(baseProfile, boundaryMb, centerLat, pressure.AirDensityKgM3)
	pertCentral, pertDeficit := pressure.Integrate(perturbedProfile, boundaryMb, centerLat, pressure.AirDensityKgM3)

	centralUncertainty = math.Abs(pertCentral - baseCentral)
	deficitUncertainty = math.Abs(pertDeficit - baseDeficit)
	if useHVVP && hvvpVar > 0 {
		centralUncertainty = math.Hypot(centralUncertainty, math.Sqrt(hvvpVar))
		deficitUncertainty = math.Hypot(deficitUncertainty, math.Sqrt(hvvpVar))
	}
	return centralUncertainty, deficitUncertainty
}

// LevelProfile bundles one level's published vortex.Level and wind
// profile with the internal ring fits ProcessLevel already computed, so
// SynthesizePressure can re-integrate the perturbed profile for
// propagateUncertainty without redoing the GBVTD fits.
type LevelProfile struct {
	Level vortex.Level
	Wind  []pressure.RingWind

	fits         []ringFit
	rmwKm, maxVT float64
	alpha        float64
}

// ProcessLevel runs GBVTDRing across every configured ring at lc's
// center and height, locates the RMW, and returns the populated
// vortex.Level plus the wind profile used for pressure integration.
// ctx cancellation is honored between ring fits, the suspension-point
// granularity spec.md §5 specifies for VortexSynth.
func ProcessLevel(ctx context.Context, ring RingProvider, lc LevelCenter, radarOrigin geodesy.Origin, vtd config.VTDSection, profile *hvvp.Profile) (LevelProfile, error) {
	if ctx.Err() != nil {
		return LevelProfile{}, vortracerr.Wrap(vortracerr.Aborted, ctx.Err(), "vortexsynth: level %.1fkm canceled", lc.LevelKm)
	}

	fits := fitRings(ring, lc.LevelKm, lc.X, lc.Y, vtd, profile)

	centerLat, centerLon := radarOrigin.FromXY(lc.X, lc.Y)
	rmwKm, maxVT, ok := findRMW(fits)
	level := vortex.Level{
		LevelKm:              lc.LevelKm,
		CenterLatDeg:         sentinel.Of(centerLat),
		CenterLonDeg:         sentinel.Of(centerLon),
		ConvergenceStdDev:    sentinel.Of(lc.ConvergenceStdDev),
		NumConvergingCenters: lc.NumConvergingCenters,
	}
	if !ok {
		level.RMWKm = sentinel.Missing
		level.MaxTangentialWindMS = sentinel.Missing
		return LevelProfile{Level: level}, nil
	}

	alpha := rankineAlpha(fits, rmwKm, maxVT)
	rmwProfile := buildProfile(fits, rmwKm, maxVT, alpha)

	level.RMWKm = sentinel.Of(rmwKm)
	level.MaxTangentialWindMS = sentinel.Of(maxVT)
	level.RMWUncertaintyKm = sentinel.Of(vtd.RingWidthKm / 2)

	for _, f := range fits {
		if f.err != nil || f.result == nil {
			continue
		}
		for _, c := range f.result.Coefficients {
			level.Rings = append(level.Rings, coeff.Coefficient{
				Level:  int(lc.LevelKm),
				Radius: f.radiusKm,
				Value:  c.Value,
				Param:  c.Param,
				StdErr: c.StdErr,
			})
		}
	}

	return LevelProfile{Level: level, Wind: rmwProfile, fits: fits, rmwKm: rmwKm, maxVT: maxVT, alpha: alpha}, nil
}

// SynthesizePressure implements spec.md §4.6 steps 4-5: integrate the
// gradient-wind balance from the outermost ring inward for every level
// that produced a profile, using the boundary pressure nearest that
// level's center (or the configured default), and return the
// volume-wide central pressure (the mean across levels) plus
// per-level uncertainties via propagateUncertainty, aggregated in
// quadrature into the volume-wide uncertainty fields.
func SynthesizePressure(levelProfiles []LevelProfile, obs *pressure.List, cfg config.PressureSection, hvvpVar float64, useHVVP bool) (vortex.Data, error) {
	var data vortex.Data
	levels := make([]vortex.Level, len(levelProfiles))
	var centralVals, deficitVals, rmwVals []float64
	var centralUncVals, deficitUncVals []float64

	for i, lp := range levelProfiles {
		levels[i] = lp.Level
		if len(lp.Wind) == 0 || !lp.Level.CenterLatDeg.Valid() {
			continue
		}
		centerLat, centerLon := lp.Level.CenterLatDeg.Value(), lp.Level.CenterLonDeg.Value()
		boundary := cfg.DefaultBoundaryMb
		if obs != nil {
			if o, ok := obs.Nearest(centerLat, centerLon); ok {
				boundary = o.PressureMb
			}
		}
		central, deficit := pressure.Integrate(lp.Wind, boundary, centerLat, pressure.AirDensityKgM3)
		centralVals = append(centralVals, central)
		deficitVals = append(deficitVals, deficit)
		if lp.Level.RMWKm.Valid() {
			rmwVals = append(rmwVals, lp.Level.RMWKm.Value())
		}

		if len(lp.fits) > 0 {
			centralUnc, deficitUnc := propagateUncertainty(lp.fits, lp.rmwKm, lp.maxVT, lp.alpha, boundary, centerLat, hvvpVar, useHVVP)
			centralUncVals = append(centralUncVals, centralUnc)
			deficitUncVals = append(deficitUncVals, deficitUnc)
		}
	}

	if len(centralVals) == 0 {
		return vortex.Data{
			Levels:                     levels,
			CentralPressureMb:          sentinel.Missing,
			PressureDeficitMb:          sentinel.Missing,
			CentralPressureUncertainty: sentinel.Missing,
			PressureDeficitUncertainty: sentinel.Missing,
			MeanRMWKm:                  sentinel.Missing,
		}, nil
	}

	data.Levels = levels
	data.CentralPressureMb = sentinel.Of(mean(centralVals))
	data.PressureDeficitMb = sentinel.Of(mean(deficitVals))
	if len(rmwVals) > 0 {
		data.MeanRMWKm = sentinel.Of(mean(rmwVals))
	} else {
		data.MeanRMWKm = sentinel.Missing
	}
	if len(centralUncVals) > 0 {
		data.CentralPressureUncertainty = sentinel.Of(rms(centralUncVals))
		data.PressureDeficitUncertainty = sentinel.Of(rms(deficitUncVals))
	} else {
		data.CentralPressureUncertainty = sentinel.Missing
		data.PressureDeficitUncertainty = sentinel.Missing
	}
	return data, nil
}

// rms returns the root-mean-square of vs, used to combine per-level
// uncertainty estimates into one volume-wide figure.
func rms(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(vs)))
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
