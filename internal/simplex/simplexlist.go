package simplex

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wujk1122/vortrac/internal/sentinel"
)

// RingCandidate is one (level, ring) simplex search's persisted outcome
// (spec.md §3 "SimplexData/SimplexList ... table of candidate centers
// with (x,y,std-dev,maxVT,convergingCount)"). It mirrors
// centerfinder.Candidate but lives in this package, independent of that
// package, so persistence has no dependency on the live search types.
type RingCandidate struct {
	LevelKm              float64
	RadiusKm             float64
	X, Y                 float64
	StdDev               float64
	MaxVT                sentinel.Float
	Converged            bool
	NumConvergingCenters int // this level's converging-center count, repeated per ring for denormalized reload
}

// Data is one volume's complete simplex candidate table, keyed by the
// same Time as the vortex.Data it is produced alongside (spec.md §3:
// "A VortexList and SimplexList share a one-to-one time key").
type Data struct {
	RunID      string
	Time       time.Time
	Candidates []RingCandidate
}

// List is the time-sorted persistent sequence of Data ("SimplexList"),
// parallel to vortex.List.
type List struct {
	mu      sync.Mutex
	entries []Data
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// Append inserts d in time order, enforcing the same strictly-increasing
// discipline as vortex.List.Append.
func (l *List) Append(d Data) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.entries); n > 0 && !d.Time.After(l.entries[n-1].Time) {
		return fmt.Errorf("simplex: append time %s not after last entry %s", d.Time, l.entries[n-1].Time)
	}
	l.entries = append(l.entries, d)
	return nil
}

// Entries returns a copy of the list's entries in time order.
func (l *List) Entries() []Data {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Data, len(l.entries))
	copy(out, l.entries)
	return out
}

// FileName builds the "<vortex>_<radar>_<year>_simplexList.xml" name
// from spec.md §6.
func FileName(dir, vortexName, radarName string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%d_simplexList.xml", vortexName, radarName, year))
}

type xmlDoc struct {
	XMLName xml.Name   `xml:"simplexList"`
	Entries []xmlEntry `xml:"entry"`
}

type xmlEntry struct {
	RunID      string          `xml:"runId,attr,omitempty"`
	Time       string          `xml:"time"`
	Candidates []xmlCandidate  `xml:"candidate"`
}

type xmlCandidate struct {
	LevelKm              float64 `xml:"levelKm,attr"`
	RadiusKm             float64 `xml:"radiusKm,attr"`
	X                    float64 `xml:"x"`
	Y                    float64 `xml:"y"`
	StdDev               float64 `xml:"stdDev"`
	MaxVT                float64 `xml:"maxVT"`
	Converged            bool    `xml:"converged"`
	NumConvergingCenters int     `xml:"numConvergingCenters"`
}

func toXML(d Data) xmlEntry {
	e := xmlEntry{RunID: d.RunID, Time: d.Time.UTC().Format(time.RFC3339)}
	for _, c := range d.Candidates {
		e.Candidates = append(e.Candidates, xmlCandidate{
			LevelKm:              c.LevelKm,
			RadiusKm:             c.RadiusKm,
			X:                    c.X,
			Y:                    c.Y,
			StdDev:               c.StdDev,
			MaxVT:                float64(c.MaxVT),
			Converged:            c.Converged,
			NumConvergingCenters: c.NumConvergingCenters,
		})
	}
	return e
}

func fromXML(e xmlEntry) (Data, error) {
	t, err := time.Parse(time.RFC3339, e.Time)
	if err != nil {
		return Data{}, fmt.Errorf("simplex: parsing entry time %q: %w", e.Time, err)
	}
	d := Data{RunID: e.RunID, Time: t}
	for _, xc := range e.Candidates {
		d.Candidates = append(d.Candidates, RingCandidate{
			LevelKm:              xc.LevelKm,
			RadiusKm:             xc.RadiusKm,
			X:                    xc.X,
			Y:                    xc.Y,
			StdDev:               xc.StdDev,
			MaxVT:                sentinel.Of(xc.MaxVT),
			Converged:            xc.Converged,
			NumConvergingCenters: xc.NumConvergingCenters,
		})
	}
	return d, nil
}

// Save atomically rewrites the list to path, matching vortex.List.Save's
// write-temp-rename discipline.
func (l *List) Save(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc := xmlDoc{}
	for _, d := range l.entries {
		doc.Entries = append(doc.Entries, toXML(d))
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("simplex: marshaling %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("simplex: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Load reads the list from path, discarding a corrupt last entry.
func Load(path string) (*List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewList(), nil
		}
		return nil, fmt.Errorf("simplex: reading %s: %w", path, err)
	}
	var doc xmlDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("simplex: parsing %s: %w", path, err)
	}
	l := NewList()
	for i, e := range doc.Entries {
		d, err := fromXML(e)
		if err != nil {
			if i == len(doc.Entries)-1 {
				break
			}
			return nil, fmt.Errorf("simplex: entry %d in %s: %w", i, path, err)
		}
		l.entries = append(l.entries, d)
	}
	sort.Slice(l.entries, func(i, j int) bool { return l.entries[i].Time.Before(l.entries[j].Time) })
	return l, nil
}

// ReconcileTimes implements spec.md §3/§6's consistency check: "a
// consistency check removes any VortexData without a matching
// SimplexList entry at the same timestamp and vice versa, and trims the
// most recent entry as a safety margin." vortexTimes and simplexTimes
// are the sorted timestamp sets of the two freshly-loaded lists; the
// return values are the timestamps that survive in each, with the
// final (most recent) shared timestamp always dropped.
func ReconcileTimes(vortexTimes, simplexTimes []time.Time) (keptVortex, keptSimplex []time.Time) {
	simplexSet := make(map[time.Time]bool, len(simplexTimes))
	for _, t := range simplexTimes {
		simplexSet[t] = true
	}
	vortexSet := make(map[time.Time]bool, len(vortexTimes))
	for _, t := range vortexTimes {
		vortexSet[t] = true
	}

	for _, t := range vortexTimes {
		if simplexSet[t] {
			keptVortex = append(keptVortex, t)
		}
	}
	for _, t := range simplexTimes {
		if vortexSet[t] {
			keptSimplex = append(keptSimplex, t)
		}
	}

	// Trim the most recent shared entry as a safety margin against a
	// torn final write that both lists otherwise parsed successfully.
	if len(keptVortex) > 0 {
		keptVortex = keptVortex[:len(keptVortex)-1]
	}
	if len(keptSimplex) > 0 {
		keptSimplex = keptSimplex[:len(keptSimplex)-1]
	}
	return keptVortex, keptSimplex
}
