// Package centerfinder implements the CenterFinder subsystem (spec.md
// §4.2): for each configured analysis height and radius, run a downhill
// simplex over (x, y) minimizing a GBVTD asymmetry-residual objective,
// producing per-level candidate centers and convergence statistics.
//
// Extracting Doppler samples around a candidate ring from the Cappi grid
// is delegated to a RingProvider so this package stays independent of
// the CappiBuilder collaborator's interpolation details; concurrency
// across the independent per-ring simplex searches uses an
// alitto/pond worker pool plus golang.org/x/sync/errgroup, the same
// bounded-fan-out pattern used for other independent per-item work
// across this codebase.
package centerfinder

import (
	"context"
	"math"
	"sort"

	"github.com/alitto/pond"
	"golang.org/x/sync/errgroup"

	"github.com/wujk1122/vortrac/internal/coeff"
	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/gbvtd"
	"github.com/wujk1122/vortrac/internal/sentinel"
	"github.com/wujk1122/vortrac/internal/simplex"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// RingProvider supplies the Doppler samples and ring geometry for a
// candidate center at (x, y) km from the radar, at the given height
// level and ring radius. Implementations read from a cappi.Grid; this
// package only depends on the interface.
type RingProvider interface {
	Samples(levelKm float64, centerX, centerY, radiusKm float64) ([]gbvtd.Sample, gbvtd.Geometry, error)
}

// Candidate is one (level, radius) simplex search's outcome.
type Candidate struct {
	LevelKm   float64
	RadiusKm  float64
	X, Y      float64
	J         float64
	Converged bool
	VTmax     sentinel.Float
}

// LevelResult collects every ring's Candidate at one height, plus the
// simplex convergence statistics spec.md §3 records per level.
type LevelResult struct {
	LevelKm              float64
	Candidates           []Candidate
	NumConvergingCenters int
	ConvergenceStdDev     float64
}

// objectiveWavenumber is the reduced GBVTD fit order spec.md §4.2 uses
// for the residual objective itself ("order min(3, wavenumber+1)"): the
// simplex inner loop fits only the axisymmetric (wavenumber-0) model,
// the cheapest column count getNumCoefficients can produce (3: VTC0,
// VRC0, VMC0), regardless of the configured max wavenumber. The full
// harmonic fit at the configured wavenumber only runs once, on the
// winning candidate, to extract VTmax.
const objectiveWavenumber = 0

// objective builds the simplex.Objective for one (level, radius): the
// standard deviation of GBVTD fit residuals, or +Inf if the ring's
// coverage is insufficient (spec.md §4.2: "rings with coverage below
// the configured gap tolerance return +∞").
func objective(ring RingProvider, levelKm, radiusKm float64, vtd config.VTDSection) simplex.Objective {
	gapTol := 360.0
	if len(vtd.GapToleranceDeg) > 0 {
		gapTol = vtd.GapToleranceDeg[0]
	}
	return func(x, y float64) float64 {
		samples, geom, err := ring.Samples(levelKm, x, y, radiusKm)
		if err != nil {
			return math.Inf(1)
		}
		result, err := gbvtd.Solve(samples, geom, objectiveWavenumber, gapTol)
		if err != nil {
			return math.Inf(1)
		}
		if result.NumData == 0 {
			return math.Inf(1)
		}
		return math.Sqrt(result.SSE / float64(result.NumData))
	}
}

// vtc0 extracts the VTC0 coefficient from a ring solve at the
// configured max wavenumber, used on the winning center as VTmax
// (spec.md §3: "maximum tangential wind VTmax at that ring (from GBVTD
// VTC0 coefficient)").
func vtc0(ring RingProvider, levelKm, x, y, radiusKm float64, vtd config.VTDSection) sentinel.Float {
	samples, geom, err := ring.Samples(levelKm, x, y, radiusKm)
	if err != nil {
		return sentinel.Missing
	}
	result, err := gbvtd.Solve(samples, geom, vtd.MaxWavenumber, 360)
	if err != nil {
		return sentinel.Missing
	}
	for _, c := range result.Coefficients {
		if c.Param == coeff.VTC0 {
			return c.Value
		}
	}
	return sentinel.Missing
}

// radii returns the RingCount radii evenly spaced between InnerRadiusKm
// and OuterRadiusKm.
func radii(cfg config.CenterSection) []float64 {
	if cfg.RingCount <= 1 {
		return []float64{cfg.InnerRadiusKm}
	}
	step := (cfg.OuterRadiusKm - cfg.InnerRadiusKm) / float64(cfg.RingCount-1)
	out := make([]float64, cfg.RingCount)
	for i := range out {
		out[i] = cfg.InnerRadiusKm + step*float64(i)
	}
	return out
}

// levels returns the analysis heights between BottomLevelKm and
// TopLevelKm, stepped by gridSpacingKm.
func levels(cfg config.CenterSection, gridSpacingKm float64) []float64 {
	if gridSpacingKm <= 0 {
		return []float64{cfg.BottomLevelKm}
	}
	var out []float64
	for h := cfg.BottomLevelKm; h <= cfg.TopLevelKm+1e-9; h += gridSpacingKm {
		out = append(out, h)
	}
	return out
}

// Run searches every configured (level, radius) pair concurrently
// (bounded by poolSize workers) and returns one LevelResult per height,
// in level order. Every simplex search is seeded at (guessX, guessY),
// the Preprocess-stage initial center guess converted to Cappi-relative
// km (spec.md §4.2: "Initial simplex: vertices (x0, y0), ..."). A ring
// whose simplex never converges still contributes a Candidate with
// Converged=false; Run itself only returns an error on context
// cancellation.
func Run(ctx context.Context, ring RingProvider, center config.CenterSection, vtd config.VTDSection, gridSpacingKm float64, poolSize int, guessX, guessY float64) ([]LevelResult, error) {
	hs := levels(center, gridSpacingKm)
	rs := radii(center)

	results := make([]LevelResult, len(hs))
	for i, h := range hs {
		results[i].LevelKm = h
	}

	pool := pond.New(poolSize, 0, pond.MinWorkers(poolSize), pond.Context(ctx))
	defer pool.StopAndWait()

	for li, h := range hs {
		li, h := li, h
		candidates := make([]Candidate, len(rs))
		group, gctx := errgroup.WithContext(ctx)
		for ri, r := range rs {
			ri, r := ri, r
			group.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				done := make(chan struct{})
				pool.Submit(func() {
					defer close(done)
					candidates[ri] = searchRing(ring, h, r, center, vtd, guessX, guessY)
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
			return nil, vortracerr.Wrap(vortracerr.Aborted, err, "centerfinder: level %.1fkm canceled", h)
		}
		results[li].Candidates = candidates
		results[li].NumConvergingCenters, results[li].ConvergenceStdDev = convergenceStats(candidates)
	}

	return results, nil
}

func searchRing(ring RingProvider, levelKm, radiusKm float64, center config.CenterSection, vtd config.VTDSection, guessX, guessY float64) Candidate {
	obj := objective(ring, levelKm, radiusKm, vtd)
	start := simplex.Minimize(obj, guessX, guessY, 1.0, simplex.Config{
		Tolerance:     center.Tolerance,
		MaxIterations: center.MaxIterations,
	})
	return Candidate{
		LevelKm:   levelKm,
		RadiusKm:  radiusKm,
		X:         start.Best.X,
		Y:         start.Best.Y,
		J:         start.Best.J,
		Converged: start.Converged,
		VTmax:     vtc0(ring, levelKm, start.Best.X, start.Best.Y, radiusKm, vtd),
	}
}

// convergenceStats returns the number of converging candidates and the
// standard deviation of their (x, y) positions, spec.md §3's per-level
// "simplex convergence standard deviation" and "number of converging
// centers" fields.
func convergenceStats(candidates []Candidate) (numConverging int, stdDev float64) {
	var xs, ys []float64
	for _, c := range candidates {
		if c.Converged {
			numConverging++
			xs = append(xs, c.X)
			ys = append(ys, c.Y)
		}
	}
	if len(xs) < 2 {
		return numConverging, 0
	}
	meanX, meanY := mean(xs), mean(ys)
	var sum float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		sum += dx*dx + dy*dy
	}
	return numConverging, math.Sqrt(sum / float64(len(xs)))
}

func mean(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// sortedRadii returns the configured search radii in ascending order,
// the same per-level radius ordering CenterFinder uses.
func sortedRadii(cfg config.CenterSection) []float64 {
	rs := radii(cfg)
	sort.Float64s(rs)
	return rs
}
