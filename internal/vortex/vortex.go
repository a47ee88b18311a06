// Package vortex implements the per-volume analysis result (spec.md §3
// "VortexData") and its persistent time-ordered sequence ("VortexList"),
// including the atomic write-temp-rename save and orphan-trimming reload
// contract from spec.md §6.
package vortex

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wujk1122/vortrac/internal/coeff"
	"github.com/wujk1122/vortrac/internal/sentinel"
)

// Capacity limits mirror spec.md §3's fixed-capacity arrays.
const (
	MaxLevels   = 15
	MaxRadii    = 30
	MaxWavenum  = 5
)

// Level is one height level's per-level fields from spec.md §3.
type Level struct {
	LevelKm              float64
	CenterLatDeg         sentinel.Float
	CenterLonDeg         sentinel.Float
	CenterAltKm          sentinel.Float
	RMWKm                sentinel.Float
	RMWUncertaintyKm     sentinel.Float
	MaxTangentialWindMS  sentinel.Float
	ConvergenceStdDev    sentinel.Float
	NumConvergingCenters int
	// Rings holds every (ring, wavenumber) Coefficient computed for
	// this level, spec.md §3's (level, ring, wavenumber)-indexed table
	// flattened to a slice: one entry per coefficient of every fitted
	// ring, with no cap applied from MaxRadii or MaxWavenum.
	Rings []coeff.Coefficient
}

// Data is one volume's complete analysis result (spec.md §3
// "VortexData").
type Data struct {
	// RunID correlates this result with the controller invocation that
	// produced it (spec.md §9's replacement for signal/slot completion
	// notification): a pipeline.Controller tags every log line and
	// result with the same uuid.NewString() value.
	RunID string
	Time  time.Time

	Levels []Level

	CentralPressureMb          sentinel.Float
	PressureDeficitMb          sentinel.Float
	CentralPressureUncertainty sentinel.Float
	PressureDeficitUncertainty sentinel.Float
	MeanRMWKm                  sentinel.Float
	MaxValidRadiusKm           sentinel.Float

	// InsufficientConvergence marks the sentinel-only result recorded
	// by spec.md §4.2/§7 "NoConvergence": the volume is not appended to
	// a List, but a caller may still want to log this value.
	InsufficientConvergence bool
}

// Validate checks the within-Data invariants spec.md §3 lists: strictly
// increasing level heights, and within each level, non-decreasing ring
// radii (a ring contributes several coefficients at the same radius).
func (d Data) Validate() error {
	for i := 1; i < len(d.Levels); i++ {
		if d.Levels[i].LevelKm <= d.Levels[i-1].LevelKm {
			return fmt.Errorf("vortex: levels not strictly increasing at index %d", i)
		}
	}
	for _, lvl := range d.Levels {
		var lastRadius float64
		first := true
		for _, c := range lvl.Rings {
			if first {
				lastRadius = c.Radius
				first = false
				continue
			}
			if c.Radius < lastRadius {
				return fmt.Errorf("vortex: ring radii not increasing at level %.2f", lvl.LevelKm)
			}
			lastRadius = c.Radius
		}
	}
	return nil
}

// List is the time-sorted persistent sequence of Data (spec.md §3
// "VortexList"), guarded by a single mutex that each method (Append,
// Save, Entries, ...) holds for its own duration; an append and the
// following save are two separately locked calls.
type List struct {
	mu      sync.Mutex
	entries []Data
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// Append inserts d in time order. Per spec.md §8 invariant 1, entries
// must already appear in sorted position; Append enforces this by
// refusing an out-of-order insert with an error rather than silently
// reordering, since silent reordering would desynchronize the parallel
// SimplexList the caller is expected to append to atomically alongside
// it.
func (l *List) Append(d Data) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.entries); n > 0 && !d.Time.After(l.entries[n-1].Time) {
		return fmt.Errorf("vortex: append time %s not after last entry %s", d.Time, l.entries[n-1].Time)
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

// Last returns the most recent entry, or ok=false if the list is empty.
func (l *List) Last() (Data, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Data{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Between returns the entries with Time in [start, end], spec.md §3's
// "time-bounded extraction".
func (l *List) Between(start, end time.Time) []Data {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Data
	for _, d := range l.entries {
		if !d.Time.Before(start) && !d.Time.After(end) {
			out = append(out, d)
		}
	}
	return out
}

// FileName builds the "<vortex>_<radar>_<year>_vortexList.xml" name from
// spec.md §6.
func FileName(dir, vortexName, radarName string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%d_vortexList.xml", vortexName, radarName, year))
}

// xmlDoc, xmlEntry and friends are the on-disk XML shape for List.Save
// /Load, matching spec.md §6's field list per entry.
type xmlDoc struct {
	XMLName xml.Name   `xml:"vortexList"`
	Entries []xmlEntry `xml:"entry"`
}

type xmlEntry struct {
	RunID                      string      `xml:"runId,attr,omitempty"`
	Time                       string      `xml:"time"`
	Levels                     []xmlLevel  `xml:"level"`
	CentralPressureMb          float64     `xml:"centralPressureMb"`
	PressureDeficitMb          float64     `xml:"pressureDeficitMb"`
	CentralPressureUncertainty float64     `xml:"centralPressureUncertaintyMb"`
	PressureDeficitUncertainty float64     `xml:"pressureDeficitUncertaintyMb"`
	MeanRMWKm                  float64     `xml:"meanRMWKm"`
	MaxValidRadiusKm           float64     `xml:"maxValidRadiusKm"`
}

type xmlLevel struct {
	LevelKm              float64        `xml:"levelKm,attr"`
	CenterLatDeg         float64        `xml:"centerLatDeg"`
	CenterLonDeg         float64        `xml:"centerLonDeg"`
	CenterAltKm          float64        `xml:"centerAltKm"`
	RMWKm                float64        `xml:"rmwKm"`
	RMWUncertaintyKm     float64        `xml:"rmwUncertaintyKm"`
	MaxTangentialWindMS  float64        `xml:"maxTangentialWindMS"`
	ConvergenceStdDev    float64        `xml:"convergenceStdDev"`
	NumConvergingCenters int            `xml:"numConvergingCenters"`
	Coefficients         []xmlCoeff     `xml:"coefficient"`
}

type xmlCoeff struct {
	Radius float64 `xml:"radiusKm,attr"`
	Param  string  `xml:"param,attr"`
	Value  float64 `xml:"value"`
	StdErr float64 `xml:"stdErr"`
}

func toXML(d Data) xmlEntry {
	e := xmlEntry{
		RunID:                      d.RunID,
		Time:                       d.Time.UTC().Format(time.RFC3339),
		CentralPressureMb:          float64(d.CentralPressureMb),
		PressureDeficitMb:          float64(d.PressureDeficitMb),
		CentralPressureUncertainty: float64(d.CentralPressureUncertainty),
		PressureDeficitUncertainty: float64(d.PressureDeficitUncertainty),
		MeanRMWKm:                  float64(d.MeanRMWKm),
		MaxValidRadiusKm:           float64(d.MaxValidRadiusKm),
	}
	for _, lvl := range d.Levels {
		xl := xmlLevel{
			LevelKm:              lvl.LevelKm,
			CenterLatDeg:         float64(lvl.CenterLatDeg),
			CenterLonDeg:         float64(lvl.CenterLonDeg),
			CenterAltKm:          float64(lvl.CenterAltKm),
			RMWKm:                float64(lvl.RMWKm),
			RMWUncertaintyKm:     float64(lvl.RMWUncertaintyKm),
			MaxTangentialWindMS:  float64(lvl.MaxTangentialWindMS),
			ConvergenceStdDev:    float64(lvl.ConvergenceStdDev),
			NumConvergingCenters: lvl.NumConvergingCenters,
		}
		for _, c := range lvl.Rings {
			xl.Coefficients = append(xl.Coefficients, xmlCoeff{
				Radius: c.Radius,
				Param:  c.Param.String(),
				Value:  float64(c.Value),
				StdErr: float64(c.StdErr),
			})
		}
		e.Levels = append(e.Levels, xl)
	}
	return e
}

func fromXML(e xmlEntry) (Data, error) {
	t, err := time.Parse(time.RFC3339, e.Time)
	if err != nil {
		return Data{}, fmt.Errorf("vortex: parsing entry time %q: %w", e.Time, err)
	}
	d := Data{
		RunID:                      e.RunID,
		Time:                       t,
		CentralPressureMb:          sentinel.Of(e.CentralPressureMb),
		PressureDeficitMb:          sentinel.Of(e.PressureDeficitMb),
		CentralPressureUncertainty: sentinel.Of(e.CentralPressureUncertainty),
		PressureDeficitUncertainty: sentinel.Of(e.PressureDeficitUncertainty),
		MeanRMWKm:                  sentinel.Of(e.MeanRMWKm),
		MaxValidRadiusKm:           sentinel.Of(e.MaxValidRadiusKm),
	}
	for _, xl := range e.Levels {
		lvl := Level{
			LevelKm:              xl.LevelKm,
			CenterLatDeg:         sentinel.Of(xl.CenterLatDeg),
			CenterLonDeg:         sentinel.Of(xl.CenterLonDeg),
			CenterAltKm:          sentinel.Of(xl.CenterAltKm),
			RMWKm:                sentinel.Of(xl.RMWKm),
			RMWUncertaintyKm:     sentinel.Of(xl.RMWUncertaintyKm),
			MaxTangentialWindMS:  sentinel.Of(xl.MaxTangentialWindMS),
			ConvergenceStdDev:    sentinel.Of(xl.ConvergenceStdDev),
			NumConvergingCenters: xl.NumConvergingCenters,
		}
		for _, xc := range xl.Coefficients {
			var param coeff.Param
			for f := coeff.FamilyVT; f <= coeff.FamilyVM; f++ {
				for t := coeff.TermC0; t <= coeff.TermSin; t++ {
					for k := 0; k <= MaxWavenum; k++ {
						p := coeff.Param{Family: f, Term: t, Wavenumber: k}
						if (t == coeff.TermC0) == (k == 0) && p.String() == xc.Param {
							param = p
						}
					}
				}
			}
			lvl.Rings = append(lvl.Rings, coeff.Coefficient{
				Radius: xc.Radius,
				Param:  param,
				Value:  sentinel.Of(xc.Value),
				StdErr: sentinel.Of(xc.StdErr),
			})
		}
		d.Levels = append(d.Levels, lvl)
	}
	return d, nil
}

// Save atomically rewrites the list to path using write-temp-rename
// (spec.md §6 "Both are rewritten atomically").
func (l *List) Save(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc := xmlDoc{}
	for _, d := range l.entries {
		doc.Entries = append(doc.Entries, toXML(d))
	}
	return writeAtomic(path, doc)
}

func writeAtomic(path string, doc xmlDoc) error {
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("vortex: marshaling %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("vortex: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("vortex: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// Load reads the list from path. A corrupt last entry is discarded
// (spec.md §6); entries that fail to parse anywhere else are a fatal
// load error, since that indicates file-level corruption rather than
// an interrupted final write.
func Load(path string) (*List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewList(), nil
		}
		return nil, fmt.Errorf("vortex: reading %s: %w", path, err)
	}
	var doc xmlDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("vortex: parsing %s: %w", path, err)
	}

	l := NewList()
	for i, e := range doc.Entries {
		d, err := fromXML(e)
		if err != nil {
			if i == len(doc.Entries)-1 {
				break // corrupt last entry, discarded per spec.md §6
			}
			return nil, fmt.Errorf("vortex: entry %d in %s: %w", i, path, err)
		}
		l.entries = append(l.entries, d)
	}
	sort.Slice(l.entries, func(i, j int) bool { return l.entries[i].Time.Before(l.entries[j].Time) })
	return l, nil
}
