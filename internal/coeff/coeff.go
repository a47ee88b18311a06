// Package coeff implements the closed parameter-tag enum for GBVTD/HVVP
// harmonic coefficients (spec.md §3, §9: "use a closed enum ... indexed
// by wavenumber, not strings").
package coeff

import "github.com/wujk1122/vortrac/internal/sentinel"

// Family distinguishes the three coefficient families the ring solver
// produces: tangential wind, radial wind, and mean (domain-averaged) wind.
type Family int

const (
	FamilyVT Family = iota
	FamilyVR
	FamilyVM
)

// Term distinguishes the cosine/sine/mean component of a coefficient
// within its family.
type Term int

const (
	TermC0 Term = iota // wavenumber-0 mean term
	TermCos            // cosine term at some wavenumber
	TermSin            // sine term at some wavenumber
)

// Param is a closed tag identifying one harmonic coefficient, e.g. VTC0,
// VRS2, VMC1.
type Param struct {
	Family     Family
	Term       Term
	Wavenumber int // 0 for TermC0, 1..MaxWavenumber otherwise
}

// VTC0, VRC0 and VMC0 are the wavenumber-0 mean terms of each family.
var (
	VTC0 = Param{FamilyVT, TermC0, 0}
	VRC0 = Param{FamilyVR, TermC0, 0}
	VMC0 = Param{FamilyVM, TermC0, 0}
)

// VTCk, VTSk, VRCk, VRSk, VMCk and VMSk build the cosine/sine term at
// wavenumber k for the named family.
func VTCk(k int) Param { return Param{FamilyVT, TermCos, k} }
func VTSk(k int) Param { return Param{FamilyVT, TermSin, k} }
func VRCk(k int) Param { return Param{FamilyVR, TermCos, k} }
func VRSk(k int) Param { return Param{FamilyVR, TermSin, k} }
func VMCk(k int) Param { return Param{FamilyVM, TermCos, k} }
func VMSk(k int) Param { return Param{FamilyVM, TermSin, k} }

func (f Family) String() string {
	switch f {
	case FamilyVT:
		return "VT"
	case FamilyVR:
		return "VR"
	case FamilyVM:
		return "VM"
	default:
		return "V?"
	}
}

// String renders a Param the way it appears in spec.md and in the
// persisted XML, e.g. "VTC0", "VRS1".
func (p Param) String() string {
	switch p.Term {
	case TermC0:
		return p.Family.String() + "C0"
	case TermCos:
		return p.Family.String() + "C" + itoa(p.Wavenumber)
	case TermSin:
		return p.Family.String() + "S" + itoa(p.Wavenumber)
	default:
		return p.Family.String() + "?"
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [...]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}
	if n < 10 {
		return string(digits[n])
	}
	// Wavenumbers are small (<= MaxWavenumber, default 5); a general
	// itoa is unnecessary.
	return string(digits[n/10]) + string(digits[n%10])
}

// Coefficient is the {level, radius, value} triple from spec.md §3,
// tagged with its Param.
type Coefficient struct {
	Level  int
	Radius float64 // km
	Value  sentinel.Float
	Param  Param
	// StdErr is the coefficient's standard error from the LLS solve that
	// produced it, sentinel.Missing if not computed.
	StdErr sentinel.Float
}
