// Package pressure implements the observed surface-pressure fix data
// model (spec.md §3 "PressureData/PressureList") and the gradient-wind
// integrator VortexSynth uses to convert a tangential wind profile into
// a central pressure estimate (spec.md §4.6 step 4).
package pressure

import (
	"math"
	"sort"
	"time"

	"github.com/wujk1122/vortrac/internal/geodesy"
)

// MaxActiveObs is spec.md §3's "at most 101 active observations per
// volume" cap.
const MaxActiveObs = 101

// AirDensityKgM3 is the constant air density spec.md §4.6's
// cyclostrophic-plus-gradient balance uses; the original treats density
// as constant over the integration path rather than height-varying,
// which this package follows.
const AirDensityKgM3 = 1.15

// EarthAngularVelocity is Omega in the Coriolis term f = 2*Omega*sin(lat).
const EarthAngularVelocity = 7.2921e-5 // rad/s

// Obs is one observed surface-pressure fix (spec.md §3 "PressureData").
type Obs struct {
	LatDeg     float64
	LonDeg     float64
	PressureMb float64
	Time       time.Time
}

// List is the bounded collection of active Obs for one volume
// (spec.md §3 "PressureList").
type List struct {
	obs []Obs
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// Add appends an Obs, keeping only the MaxActiveObs most recent entries
// by Time (spec.md §3's cap on active observations).
func (l *List) Add(o Obs) {
	l.obs = append(l.obs, o)
	if len(l.obs) <= MaxActiveObs {
		return
	}
	sort.Slice(l.obs, func(i, j int) bool { return l.obs[i].Time.Before(l.obs[j].Time) })
	l.obs = l.obs[len(l.obs)-MaxActiveObs:]
}

// Len returns the number of active observations.
func (l *List) Len() int {
	return len(l.obs)
}

// Nearest returns the Obs geographically closest to (latDeg, lonDeg)
// under the flat-earth approximation, and ok=false if the list is
// empty. VortexSynth uses this to find the boundary-pressure
// observation nearest the outermost valid GBVTD ring (spec.md §4.6 step
// 4: "a reference boundary pressure P(R_out) from the nearest MADIS
// observation").
func (l *List) Nearest(latDeg, lonDeg float64) (Obs, bool) {
	if len(l.obs) == 0 {
		return Obs{}, false
	}
	origin := geodesy.Origin{LatDeg: latDeg, LonDeg: lonDeg}
	best := l.obs[0]
	bestDist := math.Inf(1)
	for _, o := range l.obs {
		x, y := origin.ToXY(o.LatDeg, o.LonDeg)
		if d := geodesy.Range(x, y); d < bestDist {
			bestDist = d
			best = o
		}
	}
	return best, true
}

// CoriolisParameter returns f = 2*Omega*sin(latDeg) for the gradient
// wind balance.
func CoriolisParameter(latDeg float64) float64 {
	return 2 * EarthAngularVelocity * math.Sin(latDeg*math.Pi/180)
}

// RingWind is one (radius, tangential wind) sample of the profile to
// integrate, ordered from the innermost ring outward including any
// Rankine-extended points beyond the outermost reliable GBVTD ring.
type RingWind struct {
	RadiusKm float64
	VTMs     float64
}

// Integrate implements spec.md §4.6 step 4/5: trapezoidal integration of
// dP/dr = rho*VT^2/r + rho*f*VT inward from the outermost ring (whose
// pressure is boundaryMb) to r=0, returning the central pressure and
// the deficit P(R_out) - P(0). profile must be sorted by increasing
// radius and have at least one point; its innermost point's radius need
// not be exactly zero, the integral is simply extended with the
// innermost sample's value down to r=0, mirroring the source's
// treatment of the eye as a single terminal trapezoid.
func Integrate(profile []RingWind, boundaryMb float64, latDeg float64, densityKgM3 float64) (centralMb, deficitMb float64) {
	if len(profile) == 0 {
		return boundaryMb, 0
	}
	sorted := append([]RingWind(nil), profile...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RadiusKm < sorted[j].RadiusKm })

	f := CoriolisParameter(latDeg)
	dpdr := func(r, vt float64) float64 {
		if r <= 0 {
			return 0
		}
		rM := r * 1000
		return densityKgM3*vt*vt/rM + densityKgM3*f*vt
	}

	p := boundaryMb
	// Walk inward from the outermost ring to the innermost.
	for i := len(sorted) - 1; i > 0; i-- {
		outer, inner := sorted[i], sorted[i-1]
		dr := (inner.RadiusKm - outer.RadiusKm) * 1000 // negative, walking inward
		gOuter := dpdr(outer.RadiusKm, outer.VTMs)
		gInner := dpdr(inner.RadiusKm, inner.VTMs)
		// dP (Pa) = average gradient * dr; divide by 100 for mb.
		p += (gOuter+gInner)/2*dr/100
	}
	// Close the innermost sample down to r=0 with a single trapezoid
	// against zero gradient at the center.
	innermost := sorted[0]
	if innermost.RadiusKm > 0 {
		gInner := dpdr(innermost.RadiusKm, innermost.VTMs)
		dr := -innermost.RadiusKm * 1000
		p += (gInner+0)/2*dr/100
	}

	return p, boundaryMb - p
}
