package portfolio

import (
	"context"
	"sync"

	"Ares/internal/domain/models"
)

// DefaultScenarios returns the conservative, balanced and aggressive presets.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "conservative", Objective: models.ObjectiveMinVolatility},
		{Name: "balanced", Objective: models.ObjectiveMaxSharpe},
		{Name: "aggressive", Objective: models.ObjectiveTargetRisk, TargetVolatility: 0.40},
	}
}

// RunScenarios solves every scenario concurrently over the shared read-only inputs.
// Results keep the order of scenarios; a failed scenario carries its own error.
func RunScenarios(ctx context.Context, in Inputs, scenarios []Scenario, cfg SolverConfig) []models.ScenarioResult {
	results := make([]models.ScenarioResult, len(scenarios))

	type item struct {
		idx int
		sol models.PortfolioSolution
		err error
	}
	ch := make(chan item, len(scenarios))
	var wg sync.WaitGroup

	for i, sc := range scenarios {
		results[i].Name = sc.Label()
		if err := ctx.Err(); err != nil {
			results[i].Error = err.Error()
			continue
		}
		wg.Add(1)
		go func(i int, sc Scenario) {
			defer wg.Done()
			sol, err := Optimize(in, sc, cfg)
			ch <- item{i, sol, err}
		}(i, sc)
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			results[it.idx].Error = it.err.Error()
			continue
		}
		sol := it.sol
		results[it.idx].Solution = &sol
	}
	return results
}
