// Package cappi implements the Cartesian gridded wind field (Constant
// Altitude Plan Position Indicator) from spec.md §3. Actually
// interpolating a radar.Volume onto this grid is the out-of-scope
// "Cartesian interpolation (CAPPI) construction" collaborator (spec.md
// §1); Grid models only the data that collaborator produces, plus the
// coordinate conversions the center-finding and ring-solving math reads
// directly.
package cappi

import (
	"math"

	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

// Cell holds the wind components at one grid point; sentinel.Missing
// marks a cell with no valid interpolated wind.
type Cell struct {
	U, V, W sentinel.Float // m/s
}

// Grid is a regular Cartesian grid with origin at the radar, spacing
// (Dx, Dy, Dz) km, and dimensions (I, J, K).
type Grid struct {
	Origin     geodesy.Origin
	Dx, Dy, Dz float64 // km
	I, J, K    int
	// Data is stored k-major, then j, then i: Data[k][j][i].
	Data [][][]Cell
}

// NewGrid allocates an empty grid of the given dimensions, with every
// cell initialized to sentinel.Missing.
func NewGrid(origin geodesy.Origin, dx, dy, dz float64, i, j, k int) *Grid {
	data := make([][][]Cell, k)
	for kk := range data {
		data[kk] = make([][]Cell, j)
		for jj := range data[kk] {
			row := make([]Cell, i)
			for ii := range row {
				row[ii] = Cell{U: sentinel.Missing, V: sentinel.Missing, W: sentinel.Missing}
			}
			data[kk][jj] = row
		}
	}
	return &Grid{Origin: origin, Dx: dx, Dy: dy, Dz: dz, I: i, J: j, K: k, Data: data}
}

// IndexOf converts an (x, y, z) position in km relative to the origin
// into the nearest (i, j, k) grid index. ok is false if the position
// falls outside the grid.
func (g *Grid) IndexOf(x, y, z float64) (i, j, k int, ok bool) {
	i = int(math.Round(x/g.Dx)) + g.I/2
	j = int(math.Round(y/g.Dy)) + g.J/2
	k = int(math.Round(z / g.Dz))
	if i < 0 || i >= g.I || j < 0 || j >= g.J || k < 0 || k >= g.K {
		return 0, 0, 0, false
	}
	return i, j, k, true
}

// PositionOf returns the (x, y, z) position in km of grid index (i, j, k).
func (g *Grid) PositionOf(i, j, k int) (x, y, z float64) {
	x = float64(i-g.I/2) * g.Dx
	y = float64(j-g.J/2) * g.Dy
	z = float64(k) * g.Dz
	return x, y, z
}

// At returns the cell at (i, j, k), or a missing cell if out of bounds.
func (g *Grid) At(i, j, k int) Cell {
	if i < 0 || i >= g.I || j < 0 || j >= g.J || k < 0 || k >= g.K {
		return Cell{U: sentinel.Missing, V: sentinel.Missing, W: sentinel.Missing}
	}
	return g.Data[k][j][i]
}

// Set writes the cell at (i, j, k).
func (g *Grid) Set(i, j, k int, c Cell) {
	g.Data[k][j][i] = c
}

// LevelOf returns the nearest k index for a height in km above the
// radar, used by CenterFinder/VortexSynth to step from bottomlevel to
// toplevel by Dz.
func (g *Grid) LevelOf(heightKm float64) int {
	return int(heightKm/g.Dz + 0.5)
}

// Builder produces a Grid from a radar.Volume and an initial center
// guess. It is the out-of-scope CappiBuilder collaborator (spec.md §2,
// §4, §6): "buildCappi(RadarVolume, Config, centerLat, centerLon) →
// Cappi". Production implementations live outside this module; this
// package only depends on the interface.
type Builder interface {
	Build(centerLatDeg, centerLonDeg float64) (*Grid, error)
}
