// Package lls implements the small dense weighted-least-squares solver
// described in spec.md §4.7, used by both the GBVTD ring solver and the
// HVVP environmental-wind fit. It forms the normal equations AᵀWA, AᵀWb
// and solves them with gonum/mat rather than hand-rolled Gauss-Jordan
// elimination, which is the idiomatic-Go rendering of the same contract:
// form the normal matrix, invert it, multiply through for both the
// coefficients and their standard errors.
package lls

import (
	"math"

	"github.com/wujk1122/vortrac/internal/vortracerr"
	"gonum.org/v1/gonum/mat"
)

// singularThreshold mirrors the |p| < 1e-12 pivot-magnitude contract from
// spec.md §4.7.
const singularThreshold = 1e-12

// Result is the solution to a weighted least-squares problem.
type Result struct {
	// X is the N-vector of fitted coefficients.
	X []float64
	// StdErr is the per-coefficient standard error, derived from the
	// diagonal of SSE/(M-N) * (AᵀWA)⁻¹.
	StdErr []float64
	// SSE is the weighted sum of squared residuals.
	SSE float64
	// Cov is (AᵀWA)⁻¹, scaled by SSE/(M-N); callers that need the full
	// covariance matrix (VortexSynth's error propagation) can use it
	// directly instead of re-deriving it from StdErr.
	Cov *mat.Dense
}

// Solve fits x minimizing ||W(Ax-b)||2 given an M×N design matrix a (as
// row-major data, M rows of N columns each), an M-vector b, and an
// optional M-vector of weights (nil means unit weights). Solve returns
// vortracerr.IllConditioned if the normal-equations matrix AᵀWA is
// singular.
func Solve(a [][]float64, b []float64, weights []float64) (*Result, error) {
	m := len(a)
	if m == 0 {
		return nil, vortracerr.New(vortracerr.InsufficientData, "lls: empty design matrix")
	}
	n := len(a[0])
	if m < n {
		return nil, vortracerr.New(vortracerr.InsufficientData, "lls: need at least %d rows, got %d", n, m)
	}

	flat := make([]float64, 0, m*n)
	for _, row := range a {
		flat = append(flat, row...)
	}
	A := mat.NewDense(m, n, flat)
	B := mat.NewVecDense(m, append([]float64(nil), b...))

	var W *mat.DiagDense
	if weights != nil {
		W = mat.NewDiagDense(m, append([]float64(nil), weights...))
	}

	// AtWA = Aᵀ W A, AtWb = Aᵀ W b
	var AtW mat.Dense
	if W != nil {
		AtW.Mul(A.T(), W)
	} else {
		AtW.CloneFrom(A.T())
	}
	var AtWA mat.Dense
	AtWA.Mul(&AtW, A)
	var AtWb mat.VecDense
	AtWb.MulVec(&AtW, B)

	var AtWAinv mat.Dense
	if err := AtWAinv.Inverse(&AtWA); err != nil {
		return nil, vortracerr.Wrap(vortracerr.IllConditioned, err, "lls: singular normal-equations matrix")
	}
	if !wellConditioned(&AtWAinv) {
		return nil, vortracerr.New(vortracerr.IllConditioned, "lls: normal-equations matrix ill-conditioned")
	}

	var X mat.VecDense
	X.MulVec(&AtWAinv, &AtWb)

	// Residuals and SSE.
	var fitted mat.VecDense
	fitted.MulVec(A, &X)
	sse := 0.0
	for i := 0; i < m; i++ {
		r := b[i] - fitted.AtVec(i)
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sse += w * r * r
	}

	dof := m - n
	sigma2 := 0.0
	if dof > 0 {
		sigma2 = sse / float64(dof)
	}

	var cov mat.Dense
	cov.Scale(sigma2, &AtWAinv)

	stdErr := make([]float64, n)
	for i := 0; i < n; i++ {
		v := cov.At(i, i)
		if v < 0 {
			v = 0
		}
		stdErr[i] = math.Sqrt(v)
	}

	return &Result{
		X:      append([]float64(nil), X.RawVector().Data...),
		StdErr: stdErr,
		SSE:    sse,
		Cov:    &cov,
	}, nil
}

// wellConditioned rejects an inverse whose entries blew up, which is the
// practical symptom of the |pivot| < 1e-12 contract once the elimination
// itself is delegated to gonum.
func wellConditioned(inv *mat.Dense) bool {
	r, c := inv.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := inv.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1/singularThreshold {
				return false
			}
		}
	}
	return true
}
