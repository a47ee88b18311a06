package simplex

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/wujk1122/vortrac/internal/sentinel"
)

func sampleData(t time.Time) Data {
	return Data{
		RunID: "run-1",
		Time:  t,
		Candidates: []RingCandidate{
			{LevelKm: 2, RadiusKm: 30, X: 1.2, Y: -0.5, StdDev: 2.1, MaxVT: sentinel.Of(40), Converged: true, NumConvergingCenters: 5},
			{LevelKm: 2, RadiusKm: 40, X: 1.1, Y: -0.4, StdDev: 3.4, MaxVT: sentinel.Missing, Converged: false, NumConvergingCenters: 5},
		},
	}
}

func TestListAppendAndOrder(t *testing.T) {
	l := NewList()
	base := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := l.Append(sampleData(base)); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(sampleData(base.Add(-time.Minute))); err == nil {
		t.Error("expected out-of-order append to be rejected")
	}
}

func TestListSaveLoadRoundTrip(t *testing.T) {
	l := NewList()
	base := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := l.Append(sampleData(base)); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "test_simplexList.xml")
	if err := l.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entries := reloaded.Entries()
	if len(entries) != 1 {
		t.Fatalf("loaded %d entries, want 1", len(entries))
	}
	if len(entries[0].Candidates) != 2 {
		t.Fatalf("loaded %d candidates, want 2", len(entries[0].Candidates))
	}
	if entries[0].Candidates[0].MaxVT != sentinel.Of(40) {
		t.Errorf("Candidates[0].MaxVT = %v, want 40", entries[0].Candidates[0].MaxVT)
	}
	if entries[0].Candidates[1].MaxVT.Valid() {
		t.Errorf("Candidates[1].MaxVT should be Missing")
	}
}

func TestReconcileTimesDropsOrphansAndTrimsLatest(t *testing.T) {
	base := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	t1, t2, t3, t4 := base, base.Add(time.Hour), base.Add(2*time.Hour), base.Add(3*time.Hour)

	vortexTimes := []time.Time{t1, t2, t3, t4}
	simplexTimes := []time.Time{t1, t2, t3} // t4 is a vortex-only orphan

	keptVortex, keptSimplex := ReconcileTimes(vortexTimes, simplexTimes)

	// t4 has no simplex match, so it never enters keptVortex at all;
	// the shared set {t1,t2,t3} then has its most recent entry (t3)
	// trimmed as a safety margin.
	if len(keptVortex) != 2 || keptVortex[len(keptVortex)-1] != t2 {
		t.Errorf("keptVortex = %v, want [t1 t2]", keptVortex)
	}
	if len(keptSimplex) != 2 || keptSimplex[len(keptSimplex)-1] != t2 {
		t.Errorf("keptSimplex = %v, want [t1 t2]", keptSimplex)
	}
}
