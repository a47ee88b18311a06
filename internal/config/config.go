// Package config implements the immutable Configuration snapshot from
// spec.md §3/§6. Parsing the on-disk XML document is explicitly out of
// scope (spec.md §1); Config is built once, in full, by whatever loader
// the controller chooses (the Reader interface below, or by hand in
// tests), and is never mutated afterward. Pipeline stages receive a
// small by-value "section view" rather than the whole Config, the
// explicit-return-value rendering of spec.md §9's design notes.
package config

import "time"

// Geometry is the ring-geometry family VTD uses.
type Geometry int

const (
	GBVTD Geometry = iota
	GVTD
)

// Closure is the GBVTD closure assumption.
type Closure int

const (
	ClosureOriginal Closure = iota
	ClosureHVVP
)

// VortexSection is the [vortex] configuration section.
type VortexSection struct {
	LatDeg      float64
	LonDeg      float64
	SpeedMS     float64 // storm speed, m/s
	DirectionDeg float64 // storm direction, degrees CW from north
	ObsTime     time.Time
}

// RadarSection is the [radar] configuration section.
type RadarSection struct {
	LatDeg   float64
	LonDeg   float64
	AltM     float64
	StartTime time.Time
	Format   string
}

// CappiSection is the [cappi] configuration section.
type CappiSection struct {
	ZGridSpacingKm float64
}

// VTDSection is the [vtd] configuration section.
type VTDSection struct {
	BottomLevelKm float64
	TopLevelKm    float64
	InnerRadiusKm float64
	OuterRadiusKm float64
	RingWidthKm   float64
	MaxWavenumber int // 1 or 2
	// GapToleranceDeg[k] is the azimuthal data-gap tolerance in degrees
	// for wavenumber k, starting at index 0 for wavenumber 0.
	GapToleranceDeg []float64
	Geometry        Geometry
	Closure         Closure
}

// CenterSection is the [center] configuration section.
type CenterSection struct {
	InnerRadiusKm float64
	OuterRadiusKm float64
	BottomLevelKm float64
	TopLevelKm    float64
	MaxIterations int
	Tolerance     float64
	RingCount     int
	// ForceCenter, if set, bypasses CenterChooser's statistical
	// selection and adopts VortexSection's configured center directly
	// (spec.md §4.3 step 5). Per spec.md §9 Open Questions, the source
	// of this flag in analytic mode is ambiguous; this implementation
	// treats it purely as a CenterSection field set by whatever loader
	// constructs the Config (see DESIGN.md).
	ForceCenter bool
}

// ChooseCenterSection is the [choosecenter] configuration section.
type ChooseCenterSection struct {
	AveragingIntervalVolumes int
	StdDevMultiplier         float64
	StartTime                time.Time
}

// PressureSection is the [pressure] configuration section.
type PressureSection struct {
	RapidChangeRateMbPerHr float64
	AveragingIntervalVolumes int
	// DefaultBoundaryMb is VortexSynth's fallback boundary pressure
	// (spec.md §4.6 step 4: "a reference boundary pressure ... or a
	// configured default when absent") used when no MADIS observation
	// is available near the outermost ring.
	DefaultBoundaryMb float64
}

// Config is the immutable snapshot of one run's recognized options.
type Config struct {
	Vortex       VortexSection
	Radar        RadarSection
	Cappi        CappiSection
	VTD          VTDSection
	Center       CenterSection
	ChooseCenter ChooseCenterSection
	Pressure     PressureSection
}

// Reader loads a Config from an external source. Parsing the XML
// document itself (element names, required-field validation) is the
// out-of-scope "XML configuration parsing" collaborator from spec.md
// §1/§6; Reader exists so the pipeline can be constructed and tested
// against any implementation without depending on that collaborator.
type Reader interface {
	Read(path string) (Config, error)
}
