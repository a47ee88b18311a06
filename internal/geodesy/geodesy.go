// Package geodesy implements the local flat-earth approximation used
// everywhere a lat/lon needs to become a radar-relative (x, y) in
// kilometers, or vice versa. Per spec.md §4.1 this approximation is only
// valid to roughly 500km from the reference point, which matches
// Preprocess's 500km maximum center-to-radar distance.
package geodesy

import "math"

// KmPerDegLat is the approximate number of kilometers per degree of
// latitude, used for the flat-earth projection.
const KmPerDegLat = 111.0

// Origin is a reference point (typically the radar) that Cartesian
// offsets are computed relative to.
type Origin struct {
	LatDeg float64
	LonDeg float64
}

// ToXY converts a (lat, lon) to (x, y) kilometers east/north of o, using
// the flat-earth approximation with longitude scaled by cos(latitude).
func (o Origin) ToXY(latDeg, lonDeg float64) (x, y float64) {
	y = (latDeg - o.LatDeg) * KmPerDegLat
	x = (lonDeg - o.LonDeg) * KmPerDegLat * math.Cos(o.LatDeg*math.Pi/180)
	return x, y
}

// FromXY converts an (x, y) offset in kilometers back to (lat, lon).
func (o Origin) FromXY(x, y float64) (latDeg, lonDeg float64) {
	latDeg = o.LatDeg + y/KmPerDegLat
	lonDeg = o.LonDeg + x/(KmPerDegLat*math.Cos(o.LatDeg*math.Pi/180))
	return latDeg, lonDeg
}

// Range returns the straight-line distance in kilometers of (x, y) from
// the origin.
func Range(x, y float64) float64 {
	return math.Hypot(x, y)
}

// Bearing returns the compass bearing in degrees clockwise from north
// from the origin to (x, y).
func Bearing(x, y float64) float64 {
	// atan2(x, y) because y is north and x is east, and bearing is
	// measured clockwise from north rather than counterclockwise from
	// east.
	b := math.Atan2(x, y) * 180 / math.Pi
	if b < 0 {
		b += 360
	}
	return b
}

// Extrapolate moves (x, y) by speedMS (m/s) toward directionDeg (degrees
// clockwise from north) for the given elapsed seconds, returning the new
// (x, y) offset in kilometers.
func Extrapolate(x, y, speedMS, directionDeg, elapsedSeconds float64) (nx, ny float64) {
	distKm := speedMS * elapsedSeconds / 1000
	rad := directionDeg * math.Pi / 180
	nx = x + distKm*math.Sin(rad)
	ny = y + distKm*math.Cos(rad)
	return nx, ny
}
