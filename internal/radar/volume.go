// Package radar implements the read-only RadarVolume data model from
// spec.md §3. Nothing in this package mutates a Volume once it is built:
// per spec.md §9, pipeline stages receive Volumes by reference and never
// write to them. Actually reading level-II files off disk and dealiasing
// their velocities is the out-of-scope "radar file I/O and dealiasing"
// collaborator (spec.md §1); this package only models the data that
// collaborator produces.
package radar

import (
	"math"
	"time"

	"github.com/wujk1122/vortrac/internal/sentinel"
)

// MissingVelocity is the gate-level sentinel distinguishing "no return"
// from a real Doppler velocity of zero.
const MissingVelocity = sentinel.Missing

// Ray is a single radar ray: an azimuth/elevation pair and its ordered
// sequence of Doppler velocity gates.
type Ray struct {
	AzimuthDeg   float64 // degrees from north, clockwise
	ElevationDeg float64
	// Velocities holds one gate per range bin; MissingVelocity denotes
	// no valid return at that gate.
	Velocities []sentinel.Float
}

// VelocityAt returns the Doppler velocity of the gate at the given range
// in meters, given the sweep's gate spacing, or MissingVelocity if the
// range falls outside the ray.
func (r Ray) VelocityAt(rangeM, gateSpacingM float64) sentinel.Float {
	idx := int(math.Round(rangeM / gateSpacingM))
	if idx < 0 || idx >= len(r.Velocities) {
		return MissingVelocity
	}
	return r.Velocities[idx]
}

// Sweep is one elevation scan: a contiguous run of rays sharing nominal
// elevation, unambiguous range and gate geometry.
type Sweep struct {
	ElevationDeg       float64
	FirstRayIndex      int
	LastRayIndex       int
	UnambiguousRangeKm float64
	GateCount          int
	GateSpacingM       float64
	Rays               []Ray
}

// RayCount returns the number of rays in the sweep.
func (s Sweep) RayCount() int {
	return s.LastRayIndex - s.FirstRayIndex + 1
}

// Volume is one radar volume scan: a timestamp, radar position, and an
// ordered sequence of sweeps, consumed read-only by the pipeline.
type Volume struct {
	Time      time.Time
	RadarLatDeg float64
	RadarLonDeg float64
	RadarAltM   float64
	Sweeps    []Sweep
}

// LowElevationSweeps returns the sweeps with elevation at or below
// maxElevationDeg, in volume order, for use by HVVP (spec.md §4.5).
func (v Volume) LowElevationSweeps(maxElevationDeg float64) []Sweep {
	var out []Sweep
	for _, s := range v.Sweeps {
		if s.ElevationDeg <= maxElevationDeg {
			out = append(out, s)
		}
	}
	return out
}

// MaxUnambiguousRangeKm returns the largest unambiguous range across all
// sweeps, used by Preprocess's BeyondRadar check (spec.md §4.1).
func (v Volume) MaxUnambiguousRangeKm() float64 {
	max := 0.0
	for _, s := range v.Sweeps {
		if s.UnambiguousRangeKm > max {
			max = s.UnambiguousRangeKm
		}
	}
	return max
}
