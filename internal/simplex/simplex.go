// Package simplex implements the two-dimensional Nelder-Mead downhill
// simplex minimizer used by CenterFinder (spec.md §4.2) to minimize the
// GBVTD residual objective over (x, y).
package simplex

import "math"

// Coefficients are the fixed reflect/expand/contract/shrink factors
// spec.md §4.2 names explicitly.
const (
	Alpha = 1.0
	Gamma = 2.0
	Rho   = 0.5
	Sigma = 0.5
)

// epsilon guards the convergence ratio's denominator against a
// low-high pair that are both exactly zero.
const epsilon = 1e-10

// Config bounds a Minimize run.
type Config struct {
	Tolerance     float64
	MaxIterations int
}

// Point is one simplex vertex: a candidate (x, y) and its objective
// value J(x, y).
type Point struct {
	X, Y, J float64
}

// Result is the outcome of a Minimize run.
type Result struct {
	Best       Point
	Iterations int
	Converged  bool
}

// Objective evaluates J(x, y); callers (CenterFinder) close over the
// ring/level/Cappi context the GBVTD residual needs.
type Objective func(x, y float64) float64

// Minimize runs Nelder-Mead starting from an initial simplex built by
// perturbing (x0, y0) by step along each axis, until the simplex
// satisfies cfg.Tolerance or cfg.MaxIterations is reached.
func Minimize(f Objective, x0, y0, step float64, cfg Config) Result {
	pts := [3]Point{
		eval(f, x0, y0),
		eval(f, x0+step, y0),
		eval(f, x0, y0+step),
	}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		sortPoints(&pts)
		low, mid, high := pts[0], pts[1], pts[2]

		denom := math.Abs(high.J) + math.Abs(low.J) + epsilon
		if 2*math.Abs(high.J-low.J)/denom < cfg.Tolerance {
			return Result{Best: low, Iterations: iter, Converged: true}
		}

		centroidX := (low.X + mid.X) / 2
		centroidY := (low.Y + mid.Y) / 2

		reflected := eval(f, centroidX+Alpha*(centroidX-high.X), centroidY+Alpha*(centroidY-high.Y))

		switch {
		case reflected.J < low.J:
			expanded := eval(f, centroidX+Gamma*(reflected.X-centroidX), centroidY+Gamma*(reflected.Y-centroidY))
			if expanded.J < reflected.J {
				pts[2] = expanded
			} else {
				pts[2] = reflected
			}
		case reflected.J < mid.J:
			pts[2] = reflected
		default:
			contracted := eval(f, centroidX+Rho*(high.X-centroidX), centroidY+Rho*(high.Y-centroidY))
			if contracted.J < high.J {
				pts[2] = contracted
			} else {
				pts[1] = eval(f, low.X+Sigma*(mid.X-low.X), low.Y+Sigma*(mid.Y-low.Y))
				pts[2] = eval(f, low.X+Sigma*(high.X-low.X), low.Y+Sigma*(high.Y-low.Y))
			}
		}
	}

	sortPoints(&pts)
	return Result{Best: pts[0], Iterations: cfg.MaxIterations, Converged: false}
}

func eval(f Objective, x, y float64) Point {
	return Point{X: x, Y: y, J: f(x, y)}
}

// sortPoints orders the simplex ascending by J, breaking exact ties
// lexicographically by (X, Y) so Minimize's behavior is deterministic.
func sortPoints(pts *[3]Point) {
	less := func(a, b Point) bool {
		if a.J != b.J {
			return a.J < b.J
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	}
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && less(pts[j], pts[j-1]); j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}
}
