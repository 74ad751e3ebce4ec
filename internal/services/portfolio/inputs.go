// Package portfolio solves long-only, fully-invested mean-variance allocation problems.
package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"Ares/internal/domain/models"
)

// Inputs are the annualized moments shared by every objective.
type Inputs struct {
	Assets   []string
	Mean     []float64
	Cov      *mat.SymDense
	RiskFree float64
}

// NewInputs derives annualized mean returns and covariance from a return matrix
// with one row per observation and one column per asset.
func NewInputs(assets []string, returns [][]float64, annualization, riskFree float64) (Inputs, error) {
	k := len(assets)
	if k == 0 {
		return Inputs{}, fmt.Errorf("%w: no assets", models.ErrInsufficientData)
	}
	if len(returns) < 2 {
		return Inputs{}, fmt.Errorf("%w: need 2 return observations, got %d", models.ErrInsufficientData, len(returns))
	}
	m := mat.NewDense(len(returns), k, nil)
	for i, row := range returns {
		if len(row) != k {
			return Inputs{}, fmt.Errorf("%w: row %d has %d columns, want %d", models.ErrInvalidSeries, i, len(row), k)
		}
		m.SetRow(i, row)
	}

	mean := make([]float64, k)
	for j := 0; j < k; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, m), nil) * annualization
	}
	cov := mat.NewSymDense(k, nil)
	stat.CovarianceMatrix(cov, m, nil)
	cov.ScaleSym(annualization, cov)

	return NewInputsFromMoments(assets, mean, cov, riskFree)
}

// NewInputsFromMoments builds Inputs from already annualized moments.
func NewInputsFromMoments(assets []string, mean []float64, cov *mat.SymDense, riskFree float64) (Inputs, error) {
	k := len(assets)
	if k == 0 || len(mean) != k || cov == nil || cov.SymmetricDim() != k {
		return Inputs{}, fmt.Errorf("%w: dimension mismatch", models.ErrInvalidSeries)
	}
	if floats.HasNaN(mean) {
		return Inputs{}, fmt.Errorf("%w: mean return is NaN", models.ErrInvalidSeries)
	}
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			if v := cov.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return Inputs{}, fmt.Errorf("%w: covariance is not finite", models.ErrInvalidSeries)
			}
		}
	}
	return Inputs{Assets: assets, Mean: mean, Cov: cov, RiskFree: riskFree}, nil
}

// Len returns the number of assets.
func (in Inputs) Len() int { return len(in.Assets) }

// Return is w·μ.
func (in Inputs) Return(w []float64) float64 { return floats.Dot(w, in.Mean) }

// Variance is wᵀΣw.
func (in Inputs) Variance(w []float64) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, in.Cov, v)
}

// Volatility is sqrt(wᵀΣw).
func (in Inputs) Volatility(w []float64) float64 {
	return math.Sqrt(math.Max(in.Variance(w), 0))
}

// covTimes returns Σw.
func (in Inputs) covTimes(w []float64) []float64 {
	out := mat.NewVecDense(len(w), nil)
	out.MulVec(in.Cov, mat.NewVecDense(len(w), w))
	return out.RawVector().Data
}

// Correlation returns the Pearson correlation matrix of the return columns.
// Entries involving a zero-variance column are reported as 0.
func Correlation(returns [][]float64) [][]float64 {
	if len(returns) < 2 || len(returns[0]) == 0 {
		return nil
	}
	k := len(returns[0])
	m := mat.NewDense(len(returns), k, nil)
	for i, row := range returns {
		m.SetRow(i, row)
	}
	corr := mat.NewSymDense(k, nil)
	stat.CorrelationMatrix(corr, m, nil)

	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
		for j := range out[i] {
			v := corr.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out[i][j] = v
		}
	}
	return out
}
