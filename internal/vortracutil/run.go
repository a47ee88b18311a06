package vortracutil

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wujk1122/vortrac/internal/cappi"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/pipeline"
	"github.com/wujk1122/vortrac/internal/pressure"
	"github.com/wujk1122/vortrac/internal/radar"
	"github.com/wujk1122/vortrac/internal/simplex"
	"github.com/wujk1122/vortrac/internal/vortex"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// VolumeSource supplies successive radar volumes to the run loop. Its
// only implementation lives outside this module (spec.md §1's "radar
// file I/O and dealiasing" collaborator); a production main package
// registers one with SetVolumeSource before calling Execute.
type VolumeSource interface {
	Next(ctx context.Context) (radar.Volume, bool, error)
}

// DefaultCappiBuilder and DefaultVolumeSource are the two external
// collaborators spec.md §1 puts out of scope. Nil by default: a
// production entry point composed with real I/O wires them with
// SetCappiBuilder/SetVolumeSource before calling Execute.
var (
	DefaultCappiBuilder cappi.Builder
	DefaultVolumeSource VolumeSource
)

// SetCappiBuilder registers the CAPPI construction collaborator.
func SetCappiBuilder(b cappi.Builder) { DefaultCappiBuilder = b }

// SetVolumeSource registers the radar volume collaborator.
func SetVolumeSource(s VolumeSource) { DefaultVolumeSource = s }

func buildController(cfg *Cfg) (*pipeline.Controller, error) {
	c, err := loadConfig(cfg)
	if err != nil {
		return nil, err
	}
	if DefaultCappiBuilder == nil {
		return nil, vortracerr.New(vortracerr.ConfigError, "vortrac: no CappiBuilder registered (spec.md §1 external collaborator; call vortracutil.SetCappiBuilder)")
	}

	vortexPath := cfg.GetString("vortexlist")
	simplexPath := cfg.GetString("simplexlist")

	vl, err := vortex.Load(vortexPath)
	if err != nil {
		return nil, vortracerr.Wrap(vortracerr.ConfigError, err, "vortrac: loading vortex list %s", vortexPath)
	}
	sl, err := simplex.Load(simplexPath)
	if err != nil {
		return nil, vortracerr.Wrap(vortracerr.ConfigError, err, "vortrac: loading simplex list %s", simplexPath)
	}

	ctrl := &pipeline.Controller{
		Config:          c,
		CappiBuilder:    DefaultCappiBuilder,
		RadarOrigin:     geodesy.Origin{LatDeg: c.Radar.LatDeg, LonDeg: c.Radar.LonDeg},
		VortexList:      vl,
		SimplexList:     sl,
		PressureList:    pressure.NewList(),
		VortexListPath:  vortexPath,
		SimplexListPath: simplexPath,
		PoolSize:        cfg.GetInt("poolsize"),
		Log:             cfg.Log,
	}
	return ctrl, nil
}

// RunLoop drives ctrl.RunVolume over every volume src yields until
// exhausted or canceled. A ConfigError aborts the loop immediately
// (spec.md §7: only ConfigError is fatal); every other error kind is
// logged and the loop continues with the next volume.
func RunLoop(ctx context.Context, ctrl *pipeline.Controller, src VolumeSource, log logrus.FieldLogger) error {
	for {
		if ctx.Err() != nil {
			return vortracerr.Wrap(vortracerr.Aborted, ctx.Err(), "vortrac: run loop canceled")
		}
		vol, more, err := src.Next(ctx)
		if err != nil {
			return vortracerr.Wrap(vortracerr.ConfigError, err, "vortrac: volume source failed")
		}
		if !more {
			return nil
		}
		if _, err := ctrl.RunVolume(ctx, vol); err != nil {
			if vortracerr.Is(err, vortracerr.ConfigError) {
				return err
			}
			log.WithError(err).Warn("volume not analyzed")
		}
	}
}

func runRun(cfg *Cfg) error {
	ctrl, err := buildController(cfg)
	if err != nil {
		return err
	}
	if DefaultVolumeSource == nil {
		return vortracerr.New(vortracerr.ConfigError, "vortrac: no RadarVolume source registered (spec.md §1 external collaborator; call vortracutil.SetVolumeSource)")
	}
	return RunLoop(context.Background(), ctrl, DefaultVolumeSource, cfg.Log)
}

func runCenter(cfg *Cfg) error {
	ctrl, err := buildController(cfg)
	if err != nil {
		return err
	}
	if DefaultVolumeSource == nil {
		return vortracerr.New(vortracerr.ConfigError, "vortrac: no RadarVolume source registered (spec.md §1 external collaborator; call vortracutil.SetVolumeSource)")
	}
	vol, more, err := DefaultVolumeSource.Next(context.Background())
	if err != nil {
		return vortracerr.Wrap(vortracerr.ConfigError, err, "vortrac: volume source failed")
	}
	if !more {
		cfg.Log.Warn("vortrac: no volume available")
		return nil
	}
	data, err := ctrl.RunVolume(context.Background(), vol)
	if err != nil && !data.InsufficientConvergence {
		if vortracerr.Is(err, vortracerr.ConfigError) {
			return err
		}
		cfg.Log.WithError(err).Warn("volume not analyzed")
		return nil
	}
	for _, lvl := range data.Levels {
		cfg.Log.WithFields(logrus.Fields{
			"levelKm": lvl.LevelKm,
			"latDeg":  lvl.CenterLatDeg.Value(),
			"lonDeg":  lvl.CenterLonDeg.Value(),
			"rmwKm":   lvl.RMWKm.Value(),
		}).Info("center")
	}
	return nil
}

func runPressure(cfg *Cfg) error {
	vortexPath := cfg.GetString("vortexlist")
	vl, err := vortex.Load(vortexPath)
	if err != nil {
		return vortracerr.Wrap(vortracerr.ConfigError, err, "vortrac: loading vortex list %s", vortexPath)
	}
	last, ok := vl.Last()
	if !ok {
		cfg.Log.Warn("vortrac: vortex list is empty")
		return nil
	}
	cfg.Log.WithFields(logrus.Fields{
		"time":              last.Time,
		"centralPressureMb": last.CentralPressureMb.Value(),
		"deficitMb":         last.PressureDeficitMb.Value(),
	}).Info("pressure")
	return nil
}
