package gbvtd

import (
	"math"
	"testing"

	"github.com/wujk1122/vortrac/internal/coeff"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// TestSolveAxisymmetric reproduces spec.md Property 7: for synthetic
// input Vd(ψ) = VT*sin(ψ-θT) + VR*cos(ψ-θT), the ring solver recovers
// VTC0 = VT, VRC0 = VR.
func TestSolveAxisymmetric(t *testing.T) {
	g := Geometry{ThetaTDeg: 30, D: 100, R: 10}
	const wantVT, wantVR = 15.0, -4.0

	var samples []Sample
	for az := 0.0; az < 360; az += 5 {
		p, ok := psi(az, g)
		if !ok {
			continue
		}
		pr := p * math.Pi / 180
		thetaT := g.ThetaTDeg * math.Pi / 180
		v := wantVT*math.Sin(pr-thetaT) + wantVR*math.Cos(pr-thetaT)
		samples = append(samples, Sample{AzimuthDeg: az, Velocity: sentinel.Of(v)})
	}

	result, err := Solve(samples, g, 1, 180)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if result.SSE > 1e-6 {
		t.Errorf("SSE = %v, want ~0", result.SSE)
	}

	got := map[coeff.Param]float64{}
	for _, c := range result.Coefficients {
		got[c.Param] = c.Value.Value()
	}
	if !approxEqual(got[coeff.VTC0], wantVT, 1e-4) {
		t.Errorf("VTC0 = %v, want %v", got[coeff.VTC0], wantVT)
	}
	if !approxEqual(got[coeff.VRC0], wantVR, 1e-4) {
		t.Errorf("VRC0 = %v, want %v", got[coeff.VRC0], wantVR)
	}
}

func TestGetNumCoefficients(t *testing.T) {
	if n := getNumCoefficients(1, 100); n != 5 {
		t.Errorf("getNumCoefficients(1,100) = %d, want 5", n)
	}
	if n := getNumCoefficients(2, 100); n != 9 {
		t.Errorf("getNumCoefficients(2,100) = %d, want 9", n)
	}
	if n := getNumCoefficients(2, 4); n >= 9 {
		t.Errorf("getNumCoefficients(2,4) = %d, want reduced below 9", n)
	}
}

func TestSolveInsufficientData(t *testing.T) {
	g := Geometry{ThetaTDeg: 0, D: 100, R: 10}
	_, err := Solve([]Sample{{AzimuthDeg: 0, Velocity: sentinel.Of(1)}}, g, 1, 180)
	if err == nil {
		t.Error("expected InsufficientData error for a single sample")
	}
}

func TestMaxGapDeg(t *testing.T) {
	if g := maxGapDeg([]float64{0, 90, 180, 270}); g != 90 {
		t.Errorf("maxGapDeg = %v, want 90", g)
	}
	if g := maxGapDeg([]float64{0, 10, 20}); g != 340 {
		t.Errorf("maxGapDeg wraparound = %v, want 340", g)
	}
}
