package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"Ares/internal/domain/models"
)

// SolverConfig bounds the constrained solver.
type SolverConfig struct {
	MaxIterations        int     // per inner solve
	Tolerance            float64 // projected-gradient stationarity
	FeasibilityTolerance float64 // |vol - target| for TargetRisk
	MaxOuterIterations   int     // augmented Lagrangian updates
}

// DefaultSolverConfig returns the solver limits used by the service.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		MaxIterations:        10000,
		Tolerance:            1e-9,
		FeasibilityTolerance: 1e-6,
		MaxOuterIterations:   40,
	}
}

func (c SolverConfig) withDefaults() SolverConfig {
	d := DefaultSolverConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.FeasibilityTolerance <= 0 {
		c.FeasibilityTolerance = d.FeasibilityTolerance
	}
	if c.MaxOuterIterations <= 0 {
		c.MaxOuterIterations = d.MaxOuterIterations
	}
	return c
}

// Scenario names one allocation problem.
type Scenario struct {
	Name             string           `yaml:"name"`
	Objective        models.Objective `yaml:"objective"`
	TargetVolatility float64          `yaml:"target_volatility"`
}

// Label returns the scenario name, falling back to the objective.
func (s Scenario) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Objective)
}

const (
	minVolatility = 1e-12
	rhoStart      = 10.0
	rhoMax        = 1e6
)

// Optimize solves one scenario subject to Σw = 1 and 0 ≤ w_i ≤ 1, starting from equal weights.
// Non-convergence is reported as ErrOptimizationFailed; weights are never returned unconverged.
func Optimize(in Inputs, sc Scenario, cfg SolverConfig) (models.PortfolioSolution, error) {
	cfg = cfg.withDefaults()
	if in.Len() == 0 {
		return models.PortfolioSolution{}, fmt.Errorf("%w: no assets", models.ErrInsufficientData)
	}

	var (
		w     []float64
		iters int
		err   error
	)
	switch sc.Objective {
	case models.ObjectiveMinVolatility:
		w, iters, err = minimizeOnSimplex(in.varianceObjective, equalWeights(in.Len()), cfg.MaxIterations, cfg.Tolerance)
	case models.ObjectiveMaxSharpe:
		w, iters, err = minimizeOnSimplex(in.negSharpe, equalWeights(in.Len()), cfg.MaxIterations, cfg.Tolerance)
	case models.ObjectiveTargetRisk:
		w, iters, err = in.targetRisk(sc.TargetVolatility, cfg)
	default:
		return models.PortfolioSolution{}, fmt.Errorf("%w: unknown objective %q", models.ErrOptimizationFailed, sc.Objective)
	}
	if err != nil {
		return models.PortfolioSolution{}, fmt.Errorf("%w: %s: %v", models.ErrOptimizationFailed, sc.Label(), err)
	}
	return in.solution(sc, w, iters), nil
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// varianceObjective has the same minimizer as volatility and stays smooth at the optimum.
func (in Inputs) varianceObjective(w []float64) (float64, []float64, bool) {
	sw := in.covTimes(w)
	grad := make([]float64, len(w))
	for i := range grad {
		grad[i] = 2 * sw[i]
	}
	return in.Variance(w), grad, true
}

func (in Inputs) negSharpe(w []float64) (float64, []float64, bool) {
	vol := in.Volatility(w)
	if vol < minVolatility {
		return 0, nil, false
	}
	excess := in.Return(w) - in.RiskFree
	sw := in.covTimes(w)
	grad := make([]float64, len(w))
	for i := range grad {
		grad[i] = -(in.Mean[i]/vol - excess*sw[i]/(vol*vol*vol))
	}
	return -excess / vol, grad, true
}

// lagrangian is L = -w·μ + λc + (ρ/2)c² with c = vol(w) - target.
func (in Inputs) lagrangian(target, lambda, rho float64) objectiveFunc {
	return func(w []float64) (float64, []float64, bool) {
		vol := in.Volatility(w)
		if vol < minVolatility {
			return 0, nil, false
		}
		c := vol - target
		sw := in.covTimes(w)
		mult := (lambda + rho*c) / vol
		grad := make([]float64, len(w))
		for i := range grad {
			grad[i] = -in.Mean[i] + mult*sw[i]
		}
		return -in.Return(w) + lambda*c + 0.5*rho*c*c, grad, true
	}
}

// cappedLagrangian relaxes the constraint to vol(w) ≤ target:
// L = -w·μ + (h² - λ²)/(2ρ) with h = max(0, λ + ρc). The relaxed problem is convex.
func (in Inputs) cappedLagrangian(target, lambda, rho float64) objectiveFunc {
	return func(w []float64) (float64, []float64, bool) {
		vol := in.Volatility(w)
		if vol < minVolatility {
			return 0, nil, false
		}
		h := math.Max(0, lambda+rho*(vol-target))
		sw := in.covTimes(w)
		grad := make([]float64, len(w))
		for i := range grad {
			grad[i] = -in.Mean[i] + h/vol*sw[i]
		}
		return -in.Return(w) + (h*h-lambda*lambda)/(2*rho), grad, true
	}
}

// augmentedLagrangian runs multiplier updates from w until the constraint holds.
// With capped set the multiplier stays nonnegative and a slack constraint counts as met.
func (in Inputs) augmentedLagrangian(target float64, w []float64, lambda float64, capped bool, cfg SolverConfig) ([]float64, int, error) {
	rho := rhoStart
	prev := math.Inf(1)
	total := 0
	for outer := 0; outer < cfg.MaxOuterIterations; outer++ {
		fn := in.lagrangian(target, lambda, rho)
		if capped {
			fn = in.cappedLagrangian(target, lambda, rho)
		}
		var (
			it  int
			err error
		)
		w, it, err = minimizeOnSimplex(fn, w, cfg.MaxIterations, cfg.Tolerance)
		total += it
		if err != nil {
			return nil, total, err
		}
		c := in.Volatility(w) - target
		resid := math.Abs(c)
		if capped {
			lambda = math.Max(0, lambda+rho*c)
			if lambda == 0 {
				resid = math.Max(c, 0)
			}
		} else {
			lambda += rho * c
		}
		if resid <= cfg.FeasibilityTolerance {
			return w, total, nil
		}
		if resid > 0.25*prev {
			rho = math.Min(rho*10, rhoMax)
		}
		prev = resid
	}
	return nil, total, fmt.Errorf("volatility constraint not met after %d updates", cfg.MaxOuterIterations)
}

// crossing bisects the segment from a (below target) to b (at or above target) for vol = target.
func (in Inputs) crossing(a, b []float64, target float64) []float64 {
	dir := make([]float64, len(a))
	floats.SubTo(dir, b, a)
	at := func(t float64) []float64 {
		w := make([]float64, len(a))
		floats.AddScaledTo(w, a, t, dir)
		return w
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if in.Volatility(at(mid)) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return at(hi)
}

// multiplierEstimate is the least-squares λ for μ ≈ λ∇vol on the support of w, modulo the budget.
func (in Inputs) multiplierEstimate(w []float64) float64 {
	vol := in.Volatility(w)
	if vol < minVolatility {
		return 0
	}
	sw := in.covTimes(w)
	var mu, g []float64
	for i, x := range w {
		if x > 1e-12 {
			mu = append(mu, in.Mean[i])
			g = append(g, sw[i]/vol)
		}
	}
	if len(mu) == 0 {
		return 0
	}
	floats.AddConst(-floats.Sum(mu)/float64(len(mu)), mu)
	floats.AddConst(-floats.Sum(g)/float64(len(g)), g)
	d := floats.Dot(g, g)
	if d == 0 {
		return 0
	}
	return floats.Dot(mu, g) / d
}

func (in Inputs) targetRisk(target float64, cfg SolverConfig) ([]float64, int, error) {
	if math.IsNaN(target) || target <= 0 {
		return nil, 0, fmt.Errorf("target volatility %v is not positive", target)
	}
	// vol is convex on the simplex: the reachable range is [min-variance vol, max asset vol]
	wMin, total, err := minimizeOnSimplex(in.varianceObjective, equalWeights(in.Len()), cfg.MaxIterations, cfg.Tolerance)
	if err != nil {
		return nil, total, fmt.Errorf("feasibility check: %w", err)
	}
	lo := in.Volatility(wMin)
	if target < lo-cfg.FeasibilityTolerance {
		return nil, total, fmt.Errorf("target volatility %.4f below minimum achievable %.4f", target, lo)
	}
	hi := 0.0
	for i := 0; i < in.Len(); i++ {
		hi = math.Max(hi, in.assetVolatility(i))
	}
	if target > hi+cfg.FeasibilityTolerance {
		return nil, total, fmt.Errorf("target volatility %.4f above maximum achievable %.4f", target, hi)
	}
	if target <= lo+cfg.FeasibilityTolerance {
		return wMin, total, nil
	}
	if target >= hi-cfg.FeasibilityTolerance {
		// only the riskiest vertices reach the top of the range
		return in.bestVertexAt(target, cfg.FeasibilityTolerance), total, nil
	}

	// the best return under vol ≤ target usually sits on the constraint
	origin := wMin
	w, it, err := in.augmentedLagrangian(target, equalWeights(in.Len()), 0, true, cfg)
	total += it
	if err == nil {
		if math.Abs(in.Volatility(w)-target) <= cfg.FeasibilityTolerance {
			return w, total, nil
		}
		origin = w
	}

	// slack: the equality is non-convex, so solve it from every crossing toward a vertex
	var best []float64
	lastErr := err
	for i := 0; i < in.Len(); i++ {
		if in.assetVolatility(i) < target-cfg.FeasibilityTolerance {
			continue
		}
		vertex := make([]float64, in.Len())
		vertex[i] = 1
		start := in.crossing(origin, vertex, target)
		cand, it, err := in.augmentedLagrangian(target, start, in.multiplierEstimate(start), false, cfg)
		total += it
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || in.Return(cand) > in.Return(best) {
			best = cand
		}
	}
	if best == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("no crossing of target volatility %.4f", target)
		}
		return nil, total, lastErr
	}
	return best, total, nil
}

func (in Inputs) bestVertexAt(target, tol float64) []float64 {
	best := -1
	for i := 0; i < in.Len(); i++ {
		if math.Abs(in.assetVolatility(i)-target) > tol {
			continue
		}
		if best < 0 || in.Mean[i] > in.Mean[best] {
			best = i
		}
	}
	w := make([]float64, in.Len())
	w[best] = 1
	return w
}

func (in Inputs) assetVolatility(i int) float64 {
	return math.Sqrt(math.Max(in.Cov.At(i, i), 0))
}

func (in Inputs) solution(sc Scenario, w []float64, iters int) models.PortfolioSolution {
	ret := in.Return(w)
	vol := in.Volatility(w)
	sol := models.PortfolioSolution{
		Objective:  sc.Objective,
		Label:      sc.Label(),
		Weights:    make([]models.AssetWeight, len(w)),
		Return:     ret,
		Volatility: vol,
		Iterations: iters,
	}
	for i, a := range in.Assets {
		sol.Weights[i] = models.AssetWeight{Symbol: a, Weight: w[i]}
	}
	if vol >= minVolatility {
		sol.Sharpe = models.Some((ret - in.RiskFree) / vol)
	}
	return sol
}
