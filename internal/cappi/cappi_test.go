package cappi

import (
	"testing"

	"github.com/wujk1122/vortrac/internal/geodesy"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

func TestIndexOfRoundTrip(t *testing.T) {
	g := NewGrid(geodesy.Origin{}, 1, 1, 1, 101, 101, 15)
	i, j, k, ok := g.IndexOf(10, -5, 3)
	if !ok {
		t.Fatal("IndexOf reported out of bounds")
	}
	x, y, z := g.PositionOf(i, j, k)
	if x != 10 || y != -5 || z != 3 {
		t.Errorf("PositionOf(%d,%d,%d) = (%v,%v,%v), want (10,-5,3)", i, j, k, x, y, z)
	}
}

func TestIndexOfOutOfBounds(t *testing.T) {
	g := NewGrid(geodesy.Origin{}, 1, 1, 1, 10, 10, 5)
	if _, _, _, ok := g.IndexOf(1000, 1000, 1000); ok {
		t.Error("expected out-of-bounds index to report ok=false")
	}
}

func TestNewGridMissingByDefault(t *testing.T) {
	g := NewGrid(geodesy.Origin{}, 1, 1, 1, 3, 3, 2)
	c := g.At(1, 1, 0)
	if c.U != sentinel.Missing || c.V != sentinel.Missing {
		t.Errorf("new grid cell = %+v, want all Missing", c)
	}
}

func TestSetAndAt(t *testing.T) {
	g := NewGrid(geodesy.Origin{}, 1, 1, 1, 5, 5, 3)
	g.Set(2, 2, 1, Cell{U: sentinel.Of(5), V: sentinel.Of(-3), W: sentinel.Of(0)})
	c := g.At(2, 2, 1)
	if c.U != sentinel.Of(5) || c.V != sentinel.Of(-3) {
		t.Errorf("At(2,2,1) = %+v, want U=5 V=-3", c)
	}
}
