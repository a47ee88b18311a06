// Package pipeline implements the controller-facing entry point
// spec.md §9 calls for: an explicit per-volume sequential function
// (Controller.RunVolume) replacing the source's AnalysisThread::run
// condition-variable state machine. The controller drives the pipeline
// deterministically, one volume at a time; RunVolume itself enforces
// the stage order from spec.md §2 and the suspension-point cancellation
// contract from spec.md §5.
package pipeline

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wujk1122/vortrac/internal/cappi"
	"github.com/wujk1122/vortrac/internal/centerchooser"
	"github.com/wujk1122/vortrac/internal/centerfinder"
	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/hvvp"
	"github.com/wujk1122/vortrac/internal/pressure"
	"github.com/wujk1122/vortrac/internal/preprocess"
	"github.com/wujk1122/vortrac/internal/radar"
	"github.com/wujk1122/vortrac/internal/sentinel"
	"github.com/wujk1122/vortrac/internal/simplex"
	"github.com/wujk1122/vortrac/internal/vortex"
	"github.com/wujk1122/vortrac/internal/vortexsynth"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// defaultRMWGuessKm seeds the HVVP acceptance window (spec.md §4.5's
// `rt - rmw` term) on the very first volume of a run, before any prior
// VortexData supplies a real estimate.
const defaultRMWGuessKm = 50.0

// Controller owns the persistent lists and external collaborators for
// one (vortex, radar) run and drives the per-volume pipeline.
type Controller struct {
	Config       config.Config
	CappiBuilder cappi.Builder
	RadarOrigin  geodesy.Origin

	VortexList   *vortex.List
	SimplexList  *simplex.List
	PressureList *pressure.List

	// VortexListPath/SimplexListPath, when non-empty, are the on-disk
	// paths RunVolume saves to after a successful append (spec.md §5:
	// "volume N+1 does not start until volume N's append+save
	// completes"). Leaving them empty is useful in tests that only
	// check in-memory state.
	VortexListPath  string
	SimplexListPath string

	// PoolSize bounds the per-ring/per-layer worker fan-out in
	// centerfinder and hvvp (spec.md §5's permitted intra-stage
	// parallelism).
	PoolSize int

	Log logrus.FieldLogger
}

// logger returns c.Log, defaulting to a standard logrus logger if unset.
func (c *Controller) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

// RunVolume executes the full analytical pipeline for one volume:
// Preprocess -> CappiBuilder -> CenterFinder -> CenterChooser ->
// (GBVTDRing+HVVP)/VortexSynth, appending the result to VortexList and
// SimplexList on success. It returns the produced vortex.Data (which
// may carry InsufficientConvergence set and not be appended) and an
// error classified per spec.md §7.
func (c *Controller) RunVolume(ctx context.Context, vol radar.Volume) (vortex.Data, error) {
	runID := uuid.NewString()
	log := c.logger().WithFields(logrus.Fields{"runId": runID, "volumeTime": vol.Time})

	guess, err := c.preprocessGuess(vol, log)
	if err != nil {
		return vortex.Data{}, err
	}

	if err := preprocess.RangeCheck(guess.LatDeg, guess.LonDeg, c.RadarOrigin, vol, c.Config.Vortex.SpeedMS); err != nil {
		log.WithError(err).Warn("volume skipped: beyond radar range")
		return vortex.Data{}, err
	}

	if err := checkAbort(ctx); err != nil {
		return vortex.Data{}, err
	}

	grid, err := c.CappiBuilder.Build(guess.LatDeg, guess.LonDeg)
	if err != nil {
		return vortex.Data{}, vortracerr.Wrap(vortracerr.ConfigError, err, "pipeline: cappi build failed")
	}
	ring := cappi.RingSampler{Grid: grid}

	if err := checkAbort(ctx); err != nil {
		return vortex.Data{}, err
	}

	guessX, guessY := c.RadarOrigin.ToXY(guess.LatDeg, guess.LonDeg)
	levelResults, err := centerfinder.Run(ctx, ring, c.Config.Center, c.Config.VTD, c.Config.Cappi.ZGridSpacingKm, c.poolSize(), guessX, guessY)
	if err != nil {
		return vortex.Data{}, err
	}

	if totalConverging(levelResults) == 0 {
		log.Warn("no rings converged at any level")
		return vortex.Data{RunID: runID, Time: vol.Time, InsufficientConvergence: true},
			vortracerr.New(vortracerr.NoConvergence, "pipeline: zero converging centers across all levels")
	}

	if err := checkAbort(ctx); err != nil {
		return vortex.Data{}, err
	}

	var forced *centerchooser.PerLevelCenter
	if c.Config.Center.ForceCenter {
		fx, fy := c.RadarOrigin.ToXY(c.Config.Vortex.LatDeg, c.Config.Vortex.LonDeg)
		forced = &centerchooser.PerLevelCenter{X: fx, Y: fy}
	}
	perLevel := centerchooser.Choose(levelResults, c.history(), c.Config.ChooseCenter, forced)

	profile := c.runHVVP(ctx, vol, guessX, guessY, log)

	if err := checkAbort(ctx); err != nil {
		return vortex.Data{}, err
	}

	levelProfiles, err := c.synthesizeLevels(ctx, ring, perLevel, levelResults, profile)
	if err != nil {
		return vortex.Data{}, err
	}

	hvvpVar := 0.0
	useHVVP := c.Config.VTD.Closure == config.ClosureHVVP
	if profile != nil {
		hvvpVar = profile.AvVmSinVar
	}

	data, err := vortexsynth.SynthesizePressure(levelProfiles, c.PressureList, c.Config.Pressure, hvvpVar, useHVVP)
	if err != nil {
		return vortex.Data{}, err
	}
	data.RunID = runID
	data.Time = vol.Time

	if err := data.Validate(); err != nil {
		log.WithError(err).Warn("produced result failed invariant validation")
	}

	if err := c.publish(data, levelResults, runID); err != nil {
		return data, err
	}

	log.WithField("centralPressureMb", data.CentralPressureMb).Info("volume analyzed")
	return data, nil
}

func (c *Controller) poolSize() int {
	if c.PoolSize > 0 {
		return c.PoolSize
	}
	return 4
}

// preprocessGuess implements the Preprocess stage: derive the prior
// center (if any) from the most recent VortexList entry and run
// preprocess.InitialGuess.
func (c *Controller) preprocessGuess(vol radar.Volume, log logrus.FieldLogger) (preprocess.Guess, error) {
	var prior *preprocess.PriorCenter
	if last, ok := c.VortexList.Last(); ok {
		for _, lvl := range last.Levels {
			if lvl.CenterLatDeg.Valid() {
				prior = &preprocess.PriorCenter{Time: last.Time, LatDeg: lvl.CenterLatDeg.Value(), LonDeg: lvl.CenterLonDeg.Value()}
				break
			}
		}
	}
	guess, err := preprocess.InitialGuess(c.Config.Vortex, c.RadarOrigin, prior, vol.Time)
	if err != nil {
		log.WithError(err).Warn("volume skipped: preprocess rejected")
		return preprocess.Guess{}, err
	}
	if guess.Warning != "" {
		log.Warn(guess.Warning)
	}
	return guess, nil
}

func totalConverging(levels []centerfinder.LevelResult) int {
	total := 0
	for _, lvl := range levels {
		total += lvl.NumConvergingCenters
	}
	return total
}

// history builds the cross-volume smoothing input CenterChooser needs
// from however much of VortexList's tail the configured averaging
// interval asks for.
func (c *Controller) history() []centerchooser.VolumeCenters {
	window := c.Config.ChooseCenter.AveragingIntervalVolumes
	if window <= 1 {
		return nil
	}
	entries := c.VortexList.Entries()
	if len(entries) > window-1 {
		entries = entries[len(entries)-(window-1):]
	}
	history := make([]centerchooser.VolumeCenters, len(entries))
	for i, e := range entries {
		vc := centerchooser.VolumeCenters{Time: e.Time}
		for _, lvl := range e.Levels {
			if !lvl.CenterLatDeg.Valid() {
				continue
			}
			x, y := c.RadarOrigin.ToXY(lvl.CenterLatDeg.Value(), lvl.CenterLonDeg.Value())
			vc.PerLevel = append(vc.PerLevel, centerchooser.PerLevelCenter{LevelKm: lvl.LevelKm, X: x, Y: y})
		}
		history[i] = vc
	}
	return history
}

// runHVVP runs the HVVP estimator when the VTD closure requires it,
// seeding its acceptance-window RMW guess from the most recent
// VortexData (or defaultRMWGuessKm on the first volume of a run), and
// passing the compass bearing (degrees clockwise from north) from the
// radar to this volume's analysis center, which hvvp.Solve needs to
// rotate gate azimuths into the radar-to-center baseline and to rotate
// the fitted along-/across-beam wind back to earth-relative (Ue, Ve)
// (spec.md §4.5's final "rotate to earth-frame" step). A failed HVVP
// solve is logged and treated as "no correction available" rather than
// failing the whole volume, since the GBVTD "original" closure remains
// a valid fallback.
func (c *Controller) runHVVP(ctx context.Context, vol radar.Volume, guessX, guessY float64, log logrus.FieldLogger) *hvvp.Profile {
	if c.Config.VTD.Closure != config.ClosureHVVP {
		return nil
	}
	rmw := defaultRMWGuessKm
	if last, ok := c.VortexList.Last(); ok && last.MeanRMWKm.Valid() {
		rmw = last.MeanRMWKm.Value()
	}
	ccaDeg := geodesy.Bearing(guessX, guessY)
	gates := hvvp.ExtractGates(vol, c.Config.Radar.AltM/1000)
	layers, err := hvvp.Solve(ctx, gates, c.Config.Center.OuterRadiusKm, rmw, ccaDeg, c.poolSize())
	if err != nil {
		log.WithError(err).Warn("hvvp solve failed; proceeding without environmental-wind correction")
		return nil
	}
	profile := hvvp.Aggregate(layers)
	return &profile
}

// synthesizeLevels runs VortexSynth.ProcessLevel for every chosen
// per-level center, skipping (not aborting) a level whose center was
// never resolved (NaN X/Y from CenterChooser).
func (c *Controller) synthesizeLevels(ctx context.Context, ring vortexsynth.RingProvider, perLevel []centerchooser.PerLevelCenter, levelResults []centerfinder.LevelResult, profile *hvvp.Profile) ([]vortexsynth.LevelProfile, error) {
	out := make([]vortexsynth.LevelProfile, 0, len(perLevel))

	stats := make(map[float64]centerfinder.LevelResult, len(levelResults))
	for _, lr := range levelResults {
		stats[lr.LevelKm] = lr
	}

	for _, pl := range perLevel {
		if math.IsNaN(pl.X) || math.IsNaN(pl.Y) {
			out = append(out, vortexsynth.LevelProfile{Level: vortex.Level{LevelKm: pl.LevelKm, RMWKm: sentinel.Missing, MaxTangentialWindMS: sentinel.Missing}})
			continue
		}
		lr := stats[pl.LevelKm]
		lc := vortexsynth.LevelCenter{
			LevelKm:              pl.LevelKm,
			X:                    pl.X,
			Y:                    pl.Y,
			ConvergenceStdDev:    lr.ConvergenceStdDev,
			NumConvergingCenters: lr.NumConvergingCenters,
		}
		lp, err := vortexsynth.ProcessLevel(ctx, ring, lc, c.RadarOrigin, c.Config.VTD, profile)
		if err != nil {
			if vortracerr.Is(err, vortracerr.Aborted) {
				return nil, err
			}
			out = append(out, vortexsynth.LevelProfile{Level: vortex.Level{LevelKm: pl.LevelKm, RMWKm: sentinel.Missing, MaxTangentialWindMS: sentinel.Missing}})
			continue
		}
		out = append(out, lp)
	}
	return out, nil
}

// publish appends data and its parallel simplex candidate table to the
// persistent lists and saves both, spec.md §5's "append+save completes"
// serialization unit.
func (c *Controller) publish(data vortex.Data, levelResults []centerfinder.LevelResult, runID string) error {
	sd := simplex.Data{RunID: runID, Time: data.Time}
	for _, lr := range levelResults {
		for _, cand := range lr.Candidates {
			sd.Candidates = append(sd.Candidates, simplex.RingCandidate{
				LevelKm:              cand.LevelKm,
				RadiusKm:             cand.RadiusKm,
				X:                    cand.X,
				Y:                    cand.Y,
				StdDev:               cand.J,
				MaxVT:                cand.VTmax,
				Converged:            cand.Converged,
				NumConvergingCenters: lr.NumConvergingCenters,
			})
		}
	}

	if err := c.SimplexList.Append(sd); err != nil {
		return vortracerr.Wrap(vortracerr.ConfigError, err, "pipeline: simplex list append failed")
	}
	if err := c.VortexList.Append(data); err != nil {
		return vortracerr.Wrap(vortracerr.ConfigError, err, "pipeline: vortex list append failed")
	}
	if c.SimplexListPath != "" {
		if err := c.SimplexList.Save(c.SimplexListPath); err != nil {
			return err
		}
	}
	if c.VortexListPath != "" {
		if err := c.VortexList.Save(c.VortexListPath); err != nil {
			return err
		}
	}
	return nil
}

// checkAbort is the cooperative-cancellation check at a stage-boundary
// suspension point (spec.md §5).
func checkAbort(ctx context.Context) error {
	if ctx.Err() != nil {
		return vortracerr.Wrap(vortracerr.Aborted, ctx.Err(), "pipeline: canceled at suspension point")
	}
	return nil
}
