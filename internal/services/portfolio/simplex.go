package portfolio

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// objectiveFunc returns f(w) and ∇f(w). ok=false marks a point where f is not defined.
type objectiveFunc func(w []float64) (f float64, grad []float64, ok bool)

var (
	errMaxIterations = errors.New("iteration limit reached")
	errLineSearch    = errors.New("line search failed")
	errUndefined     = errors.New("objective undefined at starting point")
)

const (
	armijoC       = 1e-4
	maxBacktracks = 60
	minStep       = 1e-12
	maxStep       = 1e12
)

// projectSimplex returns the Euclidean projection of v onto {w : Σw = 1, w ≥ 0}.
func projectSimplex(v []float64) []float64 {
	n := len(v)
	u := make([]float64, n)
	copy(u, v)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	var cum, theta float64
	for j := 0; j < n; j++ {
		cum += u[j]
		t := (cum - 1) / float64(j+1)
		if u[j]-t > 0 {
			theta = t
		}
	}
	out := make([]float64, n)
	for i, x := range v {
		out[i] = math.Max(x-theta, 0)
	}
	return out
}

// stationarity is ‖P(w − ∇f) − w‖∞, zero exactly at a KKT point of the simplex problem.
func stationarity(w, grad []float64) float64 {
	trial := make([]float64, len(w))
	floats.SubTo(trial, w, grad)
	p := projectSimplex(trial)
	floats.Sub(p, w)
	return floats.Norm(p, math.Inf(1))
}

// minimizeOnSimplex runs projected gradient descent with Barzilai-Borwein steps and
// Armijo backtracking along the projection arc.
func minimizeOnSimplex(fn objectiveFunc, start []float64, maxIter int, tol float64) ([]float64, int, error) {
	w := projectSimplex(start)
	f, g, ok := fn(w)
	if !ok {
		return w, 0, errUndefined
	}
	step := 1.0
	n := len(w)
	s := make([]float64, n)
	y := make([]float64, n)

	for it := 0; it < maxIter; it++ {
		station := stationarity(w, g)
		if station <= tol {
			return w, it, nil
		}

		var (
			wn, gn []float64
			fNext  float64
			found  bool
		)
		trial := make([]float64, n)
		cur := step
		for b := 0; b < maxBacktracks; b++ {
			floats.AddScaledTo(trial, w, -cur, g)
			cand := projectSimplex(trial)
			floats.SubTo(s, cand, w)
			fc, gc, okc := fn(cand)
			if okc && fc <= f+armijoC*floats.Dot(g, s) {
				wn, fNext, gn, found = cand, fc, gc, true
				break
			}
			cur *= 0.5
			if cur < minStep {
				break
			}
		}
		if !found {
			// precision floor: accept a point that is stationary to sqrt(tol)
			if station <= math.Sqrt(tol) {
				return w, it, nil
			}
			return w, it, errLineSearch
		}

		floats.SubTo(s, wn, w)
		floats.SubTo(y, gn, g)
		if sy := floats.Dot(s, y); sy > 0 {
			step = math.Min(math.Max(floats.Dot(s, s)/sy, minStep), maxStep)
		} else {
			step = math.Min(cur*2, maxStep)
		}
		w, f, g = wn, fNext, gn
	}
	if stationarity(w, g) <= math.Sqrt(tol) {
		return w, maxIter, nil
	}
	return w, maxIter, errMaxIterations
}
