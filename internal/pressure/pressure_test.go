package pressure

import (
	"math"
	"testing"
	"time"
)

func TestAddCapsActiveObservations(t *testing.T) {
	l := NewList()
	base := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxActiveObs+10; i++ {
		l.Add(Obs{LatDeg: 25, LonDeg: -75, PressureMb: 1000, Time: base.Add(time.Duration(i) * time.Minute)})
	}
	if l.Len() != MaxActiveObs {
		t.Errorf("Len() = %d, want %d", l.Len(), MaxActiveObs)
	}
}

func TestNearest(t *testing.T) {
	l := NewList()
	l.Add(Obs{LatDeg: 26, LonDeg: -76, PressureMb: 1005})
	l.Add(Obs{LatDeg: 25.01, LonDeg: -75.01, PressureMb: 1008})
	got, ok := l.Nearest(25, -75)
	if !ok {
		t.Fatal("Nearest reported no observations")
	}
	if got.PressureMb != 1008 {
		t.Errorf("Nearest = %+v, want the 25.01,-75.01 fix", got)
	}
}

func TestNearestEmpty(t *testing.T) {
	l := NewList()
	if _, ok := l.Nearest(0, 0); ok {
		t.Error("expected ok=false for empty list")
	}
}

func TestIntegrateZeroWindYieldsNoDeficit(t *testing.T) {
	profile := []RingWind{{RadiusKm: 10, VTMs: 0}, {RadiusKm: 50, VTMs: 0}}
	central, deficit := Integrate(profile, 1000, 25, AirDensityKgM3)
	if math.Abs(central-1000) > 1e-6 || math.Abs(deficit) > 1e-6 {
		t.Errorf("Integrate with zero wind = (%v, %v), want (1000, 0)", central, deficit)
	}
}

func TestIntegrateStrongerWindGivesLargerDeficit(t *testing.T) {
	weak := []RingWind{{RadiusKm: 10, VTMs: 10}, {RadiusKm: 50, VTMs: 10}}
	strong := []RingWind{{RadiusKm: 10, VTMs: 50}, {RadiusKm: 50, VTMs: 50}}
	_, weakDeficit := Integrate(weak, 1000, 25, AirDensityKgM3)
	_, strongDeficit := Integrate(strong, 1000, 25, AirDensityKgM3)
	if strongDeficit <= weakDeficit {
		t.Errorf("expected stronger tangential wind to integrate to a larger deficit: weak=%v strong=%v", weakDeficit, strongDeficit)
	}
}

func TestCoriolisParameterSignFollowsHemisphere(t *testing.T) {
	if CoriolisParameter(25) <= 0 {
		t.Error("expected positive Coriolis parameter in northern hemisphere")
	}
	if CoriolisParameter(-25) >= 0 {
		t.Error("expected negative Coriolis parameter in southern hemisphere")
	}
}
