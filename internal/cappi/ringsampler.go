package cappi

import (
	"math"

	"github.com/wujk1122/vortrac/internal/gbvtd"
	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

// defaultAzimuthStepDeg is RingSampler's default ring-angle discretization.
const defaultAzimuthStepDeg = 5.0

// RingSampler adapts a Grid into the RingProvider shape CenterFinder and
// VortexSynth both depend on. It is the synthetic/test implementation
// SPEC_FULL.md §3 calls for: since building a Cappi from a radar.Volume
// is the out-of-scope CappiBuilder collaborator, this sampler instead
// reads the (u, v) wind already on the grid and reconstructs the
// Doppler velocity a real radar beam would have measured at each
// ring-circumference point, by projecting the grid's wind vector onto
// the line of sight from the grid's origin (the radar).
type RingSampler struct {
	Grid           *Grid
	AzimuthStepDeg float64
}

// Samples returns one gbvtd.Sample per discretized point around the
// ring of radius radiusKm centered at (centerX, centerY) km from the
// radar, at height levelKm, plus the ring/radar Geometry GBVTDRing needs
// to map each sample's azimuth back to a ring-local angle.
func (s RingSampler) Samples(levelKm, centerX, centerY, radiusKm float64) ([]gbvtd.Sample, gbvtd.Geometry, error) {
	step := s.AzimuthStepDeg
	if step <= 0 {
		step = defaultAzimuthStepDeg
	}
	var samples []gbvtd.Sample
	for phiDeg := 0.0; phiDeg < 360; phiDeg += step {
		phi := phiDeg * math.Pi / 180
		px := centerX + radiusKm*math.Cos(phi)
		py := centerY + radiusKm*math.Sin(phi)

		i, j, kk, ok := s.Grid.IndexOf(px, py, levelKm)
		if !ok {
			continue
		}
		cell := s.Grid.At(i, j, kk)
		if !cell.U.Valid() || !cell.V.Valid() {
			continue
		}

		azDeg := geodesy.Bearing(px, py)
		azRad := azDeg * math.Pi / 180
		doppler := cell.U.Value()*math.Sin(azRad) + cell.V.Value()*math.Cos(azRad)
		samples = append(samples, gbvtd.Sample{AzimuthDeg: azDeg, Velocity: sentinel.Of(doppler)})
	}

	geom := gbvtd.Geometry{
		ThetaTDeg: geodesy.Bearing(centerX, centerY),
		D:         geodesy.Range(centerX, centerY),
		R:         radiusKm,
	}
	return samples, geom, nil
}
