// Package centerchooser implements the CenterChooser subsystem (spec.md
// §4.3): cross-ring statistical selection of one center per height from
// CenterFinder's candidates, followed by cross-volume smoothing against
// recent accepted centers. Outlier exclusion uses gonum/stat, the same
// statistics package the GBVTD/HVVP fits and variance-weighted
// averaging already depend on.
package centerchooser

import (
	"math"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/wujk1122/vortrac/internal/centerfinder"
	"github.com/wujk1122/vortrac/internal/config"
)

// PerLevelCenter is the chosen center at one height, in (x, y) km
// relative to the radar.
type PerLevelCenter struct {
	LevelKm float64
	X, Y    float64
}

// VolumeCenters is one past volume's accepted per-level centers, kept
// so later volumes can cross-volume smooth against them.
type VolumeCenters struct {
	Time     time.Time
	PerLevel []PerLevelCenter
}

// Choose picks one center per level from CenterFinder's results. If
// forced is non-nil (config.CenterSection.ForceCenter), every level
// adopts it directly, bypassing statistical selection (spec.md §4.3
// step 5). Otherwise each level's candidates are mean/σ filtered, then
// smoothed against up to cfg.AveragingIntervalVolumes-1 prior volumes
// sharing the same level.
func Choose(levels []centerfinder.LevelResult, history []VolumeCenters, cfg config.ChooseCenterSection, forced *PerLevelCenter) []PerLevelCenter {
	out := make([]PerLevelCenter, len(levels))
	for i, lvl := range levels {
		if forced != nil {
			out[i] = PerLevelCenter{LevelKm: lvl.LevelKm, X: forced.X, Y: forced.Y}
			continue
		}
		x, y, ok := chooseLevel(lvl.Candidates, cfg.StdDevMultiplier)
		if !ok {
			out[i] = PerLevelCenter{LevelKm: lvl.LevelKm, X: math.NaN(), Y: math.NaN()}
			continue
		}
		out[i] = smooth(PerLevelCenter{LevelKm: lvl.LevelKm, X: x, Y: y}, history, cfg.AveragingIntervalVolumes)
	}
	return out
}

// chooseLevel computes the centroid of the converging candidates, drops
// those farther from it than cfg's standard-deviation multiplier times
// the distance distribution's standard deviation, and recomputes the
// centroid over the retained set.
func chooseLevel(candidates []centerfinder.Candidate, stdDevMultiplier float64) (x, y float64, ok bool) {
	converging := lo.Filter(candidates, func(c centerfinder.Candidate, _ int) bool { return c.Converged })
	if len(converging) == 0 {
		return 0, 0, false
	}
	if len(converging) == 1 {
		return converging[0].X, converging[0].Y, true
	}

	xs := lo.Map(converging, func(c centerfinder.Candidate, _ int) float64 { return c.X })
	ys := lo.Map(converging, func(c centerfinder.Candidate, _ int) float64 { return c.Y })
	meanX := stat.Mean(xs, nil)
	meanY := stat.Mean(ys, nil)

	dists := lo.Map(converging, func(c centerfinder.Candidate, _ int) float64 {
		return math.Hypot(c.X-meanX, c.Y-meanY)
	})
	meanDist, stdDist := stat.MeanStdDev(dists, nil)

	kept := lo.Filter(converging, func(c centerfinder.Candidate, i int) bool {
		return stdDist == 0 || dists[i] <= stdDevMultiplier*stdDist
	})
	if len(kept) == 0 {
		return meanX, meanY, true
	}
	kx := lo.Map(kept, func(c centerfinder.Candidate, _ int) float64 { return c.X })
	ky := lo.Map(kept, func(c centerfinder.Candidate, _ int) float64 { return c.Y })
	return stat.Mean(kx, nil), stat.Mean(ky, nil), true
}

// smooth averages center with the same-level center from up to
// intervalVolumes-1 of the most recent history entries, spec.md §4.3's
// cross-volume smoothing stage. intervalVolumes <= 1 disables smoothing.
func smooth(center PerLevelCenter, history []VolumeCenters, intervalVolumes int) PerLevelCenter {
	if intervalVolumes <= 1 || len(history) == 0 {
		return center
	}
	window := intervalVolumes - 1
	if window > len(history) {
		window = len(history)
	}

	sumX, sumY, n := center.X, center.Y, 1.0
	for i := len(history) - window; i < len(history); i++ {
		for _, pl := range history[i].PerLevel {
			if pl.LevelKm == center.LevelKm {
				sumX += pl.X
				sumY += pl.Y
				n++
				break
			}
		}
	}
	return PerLevelCenter{LevelKm: center.LevelKm, X: sumX / n, Y: sumY / n}
}
