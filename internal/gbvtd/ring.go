// Package gbvtd implements the ground-based velocity track display ring
// solver (spec.md §4.4): given Doppler velocity samples around a ring at
// one (radius, height), it fits the harmonic wind model and returns the
// named VT/VR/VM Fourier coefficients.
//
// The regression is built directly on named-coefficient design-matrix
// columns (each column is sin(ψ-θT) or cos(ψ-θT) times a cos/sin(kψ)
// harmonic) rather than fitting the raw {1, cosψ, sinψ, ...} basis and
// converting afterward. This is the standard GBVTD closure (Lee, Marks &
// Carbone 1994; Lee & Marks 2000): VT is resolved to the full configured
// wavenumber K, VR one wavenumber lower, plus a single mean-wind (VM)
// term. See DESIGN.md for why this package's getNumCoefficients departs
// from spec.md's literal "2K+3" formula for K=2.
package gbvtd

import (
	"math"
	"sort"

	"github.com/wujk1122/vortrac/internal/coeff"
	"github.com/wujk1122/vortrac/internal/lls"
	"github.com/wujk1122/vortrac/internal/sentinel"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// Sample is one ray's Doppler velocity at its azimuth, already known to
// intersect the ring.
type Sample struct {
	AzimuthDeg float64
	Velocity   sentinel.Float
}

// Geometry carries the ring/radar geometry needed to map azimuth to the
// ring-local angle ψ: θT is the bearing from the radar to the ring center
// (degrees), D is the center-to-radar distance (km), R is the ring
// radius (km).
type Geometry struct {
	ThetaTDeg float64
	D         float64
	R         float64
}

// Result is one ring's fit: the named coefficients, the fit SSE, and how
// many samples contributed after invalid/out-of-domain points were
// dropped.
type Result struct {
	Coefficients []coeff.Coefficient
	SSE          float64
	NumData      int
	Order        int
}

// getNumCoefficients returns the design-matrix column count for a ring
// fit at max wavenumber k: VT full harmonics (1+2k), VR one wavenumber
// lower (1+2*max(k-1,0)), plus one VM column. It is reduced (by lowering
// k) until it no longer exceeds numData, with a floor of k=0 (3
// columns): VTC0, VRC0, VMC0.
func getNumCoefficients(k, numData int) int {
	for k > 0 && order(k) > numData {
		k--
	}
	return order(k)
}

func order(k int) int {
	vr := 0
	if k > 1 {
		vr = 2 * (k - 1)
	}
	return (1 + 2*k) + (1 + vr) + 1
}

// psi solves ψ from r·sin(ψ−θT) + D·sin(θT−θi) = 0, the GBVTD geometric
// closure mapping Doppler azimuth θi to ring-local angle. ok is false
// when the sample geometry puts no solution in range (the ray does not
// actually cross this ring given the center offset).
func psi(azimuthDeg float64, g Geometry) (psiDeg float64, ok bool) {
	thetaT := g.ThetaTDeg * math.Pi / 180
	thetaI := azimuthDeg * math.Pi / 180
	if g.R == 0 {
		return 0, false
	}
	s := g.D * math.Sin(thetaI-thetaT) / g.R
	if s < -1 || s > 1 {
		return 0, false
	}
	return (thetaT + math.Asin(s)) * 180 / math.Pi, true
}

// maxGapDeg returns the largest gap between consecutive azimuths (deg)
// in a wrapped sort of the given angles, used for the ring's coverage
// check against the configured gap tolerance.
func maxGapDeg(anglesDeg []float64) float64 {
	if len(anglesDeg) == 0 {
		return 360
	}
	sorted := append([]float64(nil), anglesDeg...)
	sort.Float64s(sorted)
	maxGap := 360 - (sorted[len(sorted)-1] - sorted[0])
	for i := 1; i < len(sorted); i++ {
		if g := sorted[i] - sorted[i-1]; g > maxGap {
			maxGap = g
		}
	}
	return maxGap
}

// Solve fits the ring's harmonic model at max wavenumber maxK, returning
// InsufficientData if fewer than 3 valid samples remain after geometric
// and gap-tolerance filtering, or whatever lls.Solve returns (typically
// IllConditioned) on a degenerate design matrix.
func Solve(samples []Sample, g Geometry, maxK int, gapToleranceDeg float64) (*Result, error) {
	var psis []float64
	var vels []float64
	for _, s := range samples {
		if !s.Velocity.Valid() {
			continue
		}
		p, ok := psi(s.AzimuthDeg, g)
		if !ok {
			continue
		}
		psis = append(psis, p)
		vels = append(vels, s.Velocity.Value())
	}
	if len(psis) < 3 {
		return nil, vortracerr.New(vortracerr.InsufficientData, "gbvtd: %d valid samples, need at least 3", len(psis))
	}
	if maxGapDeg(psis) > gapToleranceDeg {
		return nil, vortracerr.New(vortracerr.InsufficientData, "gbvtd: azimuthal gap exceeds tolerance %.1f deg", gapToleranceDeg)
	}

	k := maxK
	for k > 0 && order(k) > len(psis) {
		k--
	}
	n := order(k)

	thetaT := g.ThetaTDeg * math.Pi / 180
	a := make([][]float64, len(psis))
	params := columnParams(k)
	for i, pDeg := range psis {
		p := pDeg * math.Pi / 180
		row := make([]float64, n)
		sinPT := math.Sin(p - thetaT)
		cosPT := math.Cos(p - thetaT)
		col := 0
		row[col] = sinPT // VTC0
		col++
		for kk := 1; kk <= k; kk++ {
			row[col] = sinPT * math.Cos(float64(kk)*p) // VTCkk
			col++
			row[col] = sinPT * math.Sin(float64(kk)*p) // VTSkk
			col++
		}
		row[col] = cosPT // VRC0
		col++
		for kk := 1; kk <= k-1; kk++ {
			row[col] = cosPT * math.Cos(float64(kk)*p) // VRCkk
			col++
			row[col] = cosPT * math.Sin(float64(kk)*p) // VRSkk
			col++
		}
		row[col] = math.Cos(p) // VMC0
		a[i] = row
	}

	fit, err := lls.Solve(a, vels, nil)
	if err != nil {
		return nil, err
	}

	coeffs := make([]coeff.Coefficient, n)
	for i, pm := range params {
		coeffs[i] = coeff.Coefficient{
			Value:  sentinel.Of(fit.X[i]),
			Param:  pm,
			StdErr: sentinel.Of(fit.StdErr[i]),
		}
	}

	return &Result{Coefficients: coeffs, SSE: fit.SSE, NumData: len(psis), Order: n}, nil
}

// columnParams returns the coeff.Param tag for each design-matrix column
// Solve builds at max wavenumber k, in the same order.
func columnParams(k int) []coeff.Param {
	params := []coeff.Param{coeff.VTC0}
	for kk := 1; kk <= k; kk++ {
		params = append(params, coeff.VTCk(kk), coeff.VTSk(kk))
	}
	params = append(params, coeff.VRC0)
	for kk := 1; kk <= k-1; kk++ {
		params = append(params, coeff.VRCk(kk), coeff.VRSk(kk))
	}
	params = append(params, coeff.VMC0)
	return params
}
