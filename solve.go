package letsched

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"letsched/milp"
)

// Solve hands the model to solver with the given limits. The returned
// solution's values are in quantum units; use Extract to read a schedule.
func (m *Model) Solve(ctx context.Context, solver milp.Solver, opts milp.Options) (*milp.Solution, error) {
	sol, err := solver.Solve(ctx, m.problem, opts)
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", m.problem.Name, err)
	}
	m.log.Info("solve finished",
		zap.Stringer("status", sol.Status),
		zap.Float64("objective", sol.Objective),
		zap.Duration("wall", sol.WallTime),
		zap.Stringer("diagnostics", sol.Diagnostics),
	)
	if sol.Status == milp.StatusInfeasible {
		m.log.Warn("model is infeasible", zap.String("goal", string(m.goal)))
	}
	return sol, nil
}
