package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// xmlDoc mirrors the on-disk shape from spec.md §6: a root element with
// child sections named {vortex, radar, cappi, vtd, center, choosecenter,
// pressure, qc}, each holding string-valued parameter child elements.
// Every parameter element is unmarshalled; unknown ones are ignored
// because Read never looks them up.
type xmlDoc struct {
	XMLName xml.Name   `xml:"vortrac"`
	Sections []xmlSection `xml:",any"`
}

type xmlSection struct {
	XMLName xml.Name
	Params  []xmlParam `xml:",any"`
}

type xmlParam struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

func (s xmlSection) get(name string) (string, bool) {
	for _, p := range s.Params {
		if strings.EqualFold(p.XMLName.Local, name) {
			return strings.TrimSpace(p.Value), true
		}
	}
	return "", false
}

// XMLReader is the default, deliberately thin Reader implementation.
// Full validation of every required field, descriptive missing-field
// messages, and QC-section handling belong to the out-of-scope external
// collaborator (spec.md §1); this implementation only does enough to let
// the core pipeline run end to end against a well-formed document.
type XMLReader struct{}

func (XMLReader) Read(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	var doc xmlDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	sections := make(map[string]xmlSection, len(doc.Sections))
	for _, s := range doc.Sections {
		sections[strings.ToLower(s.XMLName.Local)] = s
	}

	var cfg Config
	var missing []string
	req := func(section, field string) string {
		s, ok := sections[section]
		if !ok {
			missing = append(missing, section+"."+field)
			return ""
		}
		v, ok := s.get(field)
		if !ok {
			missing = append(missing, section+"."+field)
		}
		return v
	}
	f64 := func(section, field string) float64 {
		v, err := strconv.ParseFloat(req(section, field), 64)
		if err != nil {
			missing = append(missing, section+"."+field)
		}
		return v
	}
	tparse := func(section, field string) time.Time {
		v := req(section, field)
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			missing = append(missing, section+"."+field)
		}
		return t
	}
	optf64 := func(section, field string, def float64) float64 {
		s, ok := sections[section]
		if !ok {
			return def
		}
		v, ok := s.get(field)
		if !ok {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return f
	}

	cfg.Vortex = VortexSection{
		LatDeg: f64("vortex", "lat"), LonDeg: f64("vortex", "lon"),
		SpeedMS: f64("vortex", "speed"), DirectionDeg: f64("vortex", "direction"),
		ObsTime: tparse("vortex", "obstime"),
	}
	cfg.Radar = RadarSection{
		LatDeg: f64("radar", "lat"), LonDeg: f64("radar", "lon"), AltM: f64("radar", "alt"),
		StartTime: tparse("radar", "starttime"), Format: req("radar", "format"),
	}
	cfg.Cappi = CappiSection{ZGridSpacingKm: f64("cappi", "zgridsp")}
	cfg.Center = CenterSection{
		InnerRadiusKm: f64("center", "innerradius"), OuterRadiusKm: f64("center", "outerradius"),
		BottomLevelKm: f64("center", "bottomlevel"), TopLevelKm: f64("center", "toplevel"),
		MaxIterations: int(f64("center", "maxiterations")), Tolerance: f64("center", "tolerance"),
		RingCount: int(f64("center", "ringcount")),
	}
	cfg.VTD = VTDSection{
		BottomLevelKm: f64("vtd", "bottomlevel"), TopLevelKm: f64("vtd", "toplevel"),
		InnerRadiusKm: f64("vtd", "innerradius"), OuterRadiusKm: f64("vtd", "outerradius"),
		RingWidthKm: f64("vtd", "ringwidth"), MaxWavenumber: int(f64("vtd", "maxwavenumber")),
	}
	cfg.ChooseCenter = ChooseCenterSection{
		AveragingIntervalVolumes: int(f64("choosecenter", "volumespan")),
		StdDevMultiplier:         f64("choosecenter", "stddevmult"),
	}
	cfg.Pressure = PressureSection{
		RapidChangeRateMbPerHr:   f64("pressure", "rapidchangerate"),
		AveragingIntervalVolumes: int(f64("pressure", "volumespan")),
		DefaultBoundaryMb:        optf64("pressure", "defaultboundarymb", 1013.0),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required field(s): %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}
