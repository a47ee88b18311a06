package preprocess

import (
	"math"
	"testing"
	"time"

	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/radar"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// TestS1PriorExtrapolation reproduces spec.md §8 scenario S1: a prior
// result at (25.0N, 75.0W) at 12:00 UTC, storm moving 10 m/s due west,
// volume at 13:00 UTC expects the guess to move ~36km west with latitude
// unchanged. The flat-earth projection scales longitude by the cosine of
// the radar's latitude (25.5N here), so 36km is ~0.359 deg of longitude.
func TestS1PriorExtrapolation(t *testing.T) {
	obsTime := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	volumeTime := obsTime.Add(time.Hour)
	cfg := config.VortexSection{LatDeg: 25.0, LonDeg: -75.0, SpeedMS: 10, DirectionDeg: 270, ObsTime: obsTime}
	radarOrigin := geodesy.Origin{LatDeg: 25.5, LonDeg: -75.5}
	prior := &PriorCenter{Time: obsTime, LatDeg: 25.0, LonDeg: -75.0}

	guess, err := InitialGuess(cfg, radarOrigin, prior, volumeTime)
	if err != nil {
		t.Fatalf("InitialGuess: %v", err)
	}
	if math.Abs(guess.LatDeg-25.0) > 1e-6 {
		t.Errorf("LatDeg = %v, want unchanged 25.0", guess.LatDeg)
	}
	wantLon := -75.0 - 36.0/(geodesy.KmPerDegLat*math.Cos(radarOrigin.LatDeg*math.Pi/180))
	if math.Abs(guess.LonDeg-wantLon) > 1e-3 {
		t.Errorf("LonDeg = %v, want %v", guess.LonDeg, wantLon)
	}
}

func TestDirectGuessWithinWindow(t *testing.T) {
	obsTime := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.VortexSection{LatDeg: 25.0, LonDeg: -75.0, SpeedMS: 10, DirectionDeg: 270, ObsTime: obsTime}
	radarOrigin := geodesy.Origin{LatDeg: 25.5, LonDeg: -75.5}

	guess, err := InitialGuess(cfg, radarOrigin, nil, obsTime.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("InitialGuess: %v", err)
	}
	if guess.LatDeg != cfg.LatDeg || guess.LonDeg != cfg.LonDeg {
		t.Errorf("within-window guess = %+v, want configured position directly", guess)
	}
}

func TestRejectsPastExtrapolation(t *testing.T) {
	obsTime := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.VortexSection{LatDeg: 25.0, LonDeg: -75.0, SpeedMS: 10, DirectionDeg: 270, ObsTime: obsTime}
	radarOrigin := geodesy.Origin{LatDeg: 25.5, LonDeg: -75.5}
	prior := &PriorCenter{Time: obsTime, LatDeg: 25.0, LonDeg: -75.0}

	_, err := InitialGuess(cfg, radarOrigin, prior, obsTime.Add(-time.Minute))
	if !vortracerr.Is(err, vortracerr.TimeOutOfRange) {
		t.Errorf("expected TimeOutOfRange, got %v", err)
	}
}

func TestBoundarySixHoursAcceptedSixHoursOneSecondRejected(t *testing.T) {
	obsTime := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.VortexSection{LatDeg: 25.0, LonDeg: -75.0, SpeedMS: 1, DirectionDeg: 0, ObsTime: obsTime}
	radarOrigin := geodesy.Origin{LatDeg: 25.5, LonDeg: -75.5}
	prior := &PriorCenter{Time: obsTime, LatDeg: 25.0, LonDeg: -75.0}

	if _, err := InitialGuess(cfg, radarOrigin, prior, obsTime.Add(6*time.Hour)); err != nil {
		t.Errorf("6h exactly should be accepted, got %v", err)
	}
	if _, err := InitialGuess(cfg, radarOrigin, prior, obsTime.Add(6*time.Hour+time.Second)); !vortracerr.Is(err, vortracerr.TimeOutOfRange) {
		t.Errorf("6h+1s should be rejected as TimeOutOfRange, got %v", err)
	}
}

func sweepVolume(unambiguousRangeKm float64) radar.Volume {
	return radar.Volume{Sweeps: []radar.Sweep{{UnambiguousRangeKm: unambiguousRangeKm}}}
}

func TestRangeCheckAtBufferBoundary(t *testing.T) {
	radarOrigin := geodesy.Origin{LatDeg: 0, LonDeg: 0}
	vol := sweepVolume(100)
	latAtLimit, lonAtLimit := radarOrigin.FromXY(0, 105) // exactly range+buffer

	if err := RangeCheck(latAtLimit, lonAtLimit, radarOrigin, vol, 10); err != nil {
		t.Errorf("expected range+buffer boundary to be accepted, got %v", err)
	}

	latBeyond, lonBeyond := radarOrigin.FromXY(0, 106)
	err := RangeCheck(latBeyond, lonBeyond, radarOrigin, vol, 10)
	if !vortracerr.Is(err, vortracerr.BeyondRadar) {
		t.Errorf("expected BeyondRadar just past the buffer, got %v", err)
	}
}

func TestRangeCheckZeroSpeedEmitsNoETAMessage(t *testing.T) {
	radarOrigin := geodesy.Origin{LatDeg: 0, LonDeg: 0}
	vol := sweepVolume(100)
	lat, lon := radarOrigin.FromXY(0, 500)

	err := RangeCheck(lat, lon, radarOrigin, vol, 0)
	if !vortracerr.Is(err, vortracerr.BeyondRadar) {
		t.Fatalf("expected BeyondRadar, got %v", err)
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty message")
	}
}
