// Package preprocess implements spec.md §4.1: position the initial
// center guess for a volume from configuration, motion extrapolation,
// or the previous result, and validate that the volume is worth
// analyzing at all (timing window, radar range).
package preprocess

import (
	"fmt"
	"time"

	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/radar"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// maxForwardExtrapolation and the zero backward bound implement spec.md
// §4.1 step 3's "extrapolation > 6h in the future or any time into the
// past" rejection.
const maxForwardExtrapolation = 6 * time.Hour

// directGuessWindow is spec.md §4.1 step 1's "< 15 min" threshold below
// which the configured position is used directly instead of
// extrapolated.
const directGuessWindow = 15 * time.Minute

// Distance thresholds from spec.md §4.1 step 3.
const (
	lostRadiusKm    = 150
	warnRadiusKm    = 75
	beyondRadarBufferKm = 5
	maxRadarRangeKm = 500
)

// PriorCenter is the most recent successful result's center and time,
// the "most recent successful VortexData" input to Preprocess.
type PriorCenter struct {
	Time   time.Time
	LatDeg float64
	LonDeg float64
}

// Guess is the initial (lat, lon) center guess for one volume, plus any
// non-fatal warning the caller (the controller) should log.
type Guess struct {
	LatDeg  float64
	LonDeg  float64
	Warning string
}

// InitialGuess implements spec.md §4.1 steps 1-3. radarOrigin is the
// radar's position (the reference point for the flat-earth
// approximation); volumeTime is the current volume's timestamp.
func InitialGuess(cfg config.VortexSection, radarOrigin geodesy.Origin, prior *PriorCenter, volumeTime time.Time) (Guess, error) {
	configuredX, configuredY := radarOrigin.ToXY(cfg.LatDeg, cfg.LonDeg)

	var baseX, baseY float64
	var baseTime time.Time
	if prior != nil {
		baseX, baseY = radarOrigin.ToXY(prior.LatDeg, prior.LonDeg)
		baseTime = prior.Time
	} else {
		if absDuration(volumeTime.Sub(cfg.ObsTime)) < directGuessWindow {
			return Guess{LatDeg: cfg.LatDeg, LonDeg: cfg.LonDeg}, nil
		}
		baseX, baseY = configuredX, configuredY
		baseTime = cfg.ObsTime
	}

	elapsed := volumeTime.Sub(baseTime)
	if elapsed < 0 {
		return Guess{}, vortracerr.New(vortracerr.TimeOutOfRange, "preprocess: volume time %s precedes extrapolation base %s", volumeTime, baseTime)
	}
	if elapsed > maxForwardExtrapolation {
		return Guess{}, vortracerr.New(vortracerr.TimeOutOfRange, "preprocess: volume time %s is %s past extrapolation base %s, exceeds 6h", volumeTime, elapsed, baseTime)
	}

	x, y := geodesy.Extrapolate(baseX, baseY, cfg.SpeedMS, cfg.DirectionDeg, elapsed.Seconds())

	if r := geodesy.Range(x, y); r > maxRadarRangeKm {
		return Guess{}, vortracerr.New(vortracerr.DistanceError, "preprocess: extrapolated center %.1fkm from radar exceeds %dkm", r, maxRadarRangeKm)
	}

	// Step 3's "redirects"/"lost" signal compares the extrapolation
	// against the configured-position extrapolation, not the radar
	// itself; when a prior result was used as the base, compute the
	// configured-position extrapolation separately for this check.
	refX, refY := x, y
	if prior != nil {
		cx, cy := geodesy.Extrapolate(configuredX, configuredY, cfg.SpeedMS, cfg.DirectionDeg, volumeTime.Sub(cfg.ObsTime).Seconds())
		refX, refY = cx, cy
	}
	driftKm := geodesy.Range(x-refX, y-refY)

	latDeg, lonDeg := radarOrigin.FromXY(x, y)
	guess := Guess{LatDeg: latDeg, LonDeg: lonDeg}

	switch {
	case driftKm > lostRadiusKm:
		return Guess{}, vortracerr.New(vortracerr.DistanceError, "preprocess: extrapolated center drifted %.1fkm from configured-position track, exceeds %dkm (lost)", driftKm, lostRadiusKm)
	case driftKm > warnRadiusKm:
		guess.Warning = fmt.Sprintf("preprocess: extrapolated center drifted %.1fkm from configured-position track", driftKm)
	}

	return guess, nil
}

// absDuration returns the absolute value of d.
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// RangeCheck implements spec.md §4.1 step 4: determine whether (latDeg,
// lonDeg) is inside any sweep's unambiguous range plus a 5km buffer. If
// not, and stormSpeedMS > 0, it returns a BeyondRadar error carrying an
// ETA-to-range estimate (dist_to_go / stormSpeed); if stormSpeedMS == 0
// (spec.md §8 boundary behavior 10), the error message says so instead
// of dividing by zero, and the volume is still skipped, not aborted.
func RangeCheck(latDeg, lonDeg float64, radarOrigin geodesy.Origin, vol radar.Volume, stormSpeedMS float64) error {
	x, y := radarOrigin.ToXY(latDeg, lonDeg)
	dist := geodesy.Range(x, y)
	limit := vol.MaxUnambiguousRangeKm() + beyondRadarBufferKm
	if dist <= limit {
		return nil
	}
	distToGo := dist - limit
	if stormSpeedMS <= 0 {
		return vortracerr.New(vortracerr.BeyondRadar, "preprocess: center %.1fkm beyond radar range %.1fkm, cannot estimate ETA (zero storm speed)", dist, limit)
	}
	etaSeconds := distToGo * 1000 / stormSpeedMS
	return vortracerr.New(vortracerr.BeyondRadar, "preprocess: center %.1fkm beyond radar range %.1fkm, ETA to range %.0fs", dist, limit, etaSeconds)
}
