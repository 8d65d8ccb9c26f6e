package letsched

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"letsched/milp"
)

const (
	DEFAULT_TIME_LIMIT = 5 * time.Minute
)

// Options controls one Schedule call. The zero value schedules for minimum
// core usage with the default time limit and a silent logger.
type Options struct {
	Goal         Goal
	FixedTimings bool
	TimeLimit    time.Duration
	MaxNodes     int
	Protocol     string
	Solver       milp.Solver
	Logger       *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Goal:      DEFAULT_GOAL,
		TimeLimit: DEFAULT_TIME_LIMIT,
		Protocol:  DEFAULT_PROTOCOL,
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) protocol() string {
	if o.Protocol == "" {
		return DEFAULT_PROTOCOL
	}
	return o.Protocol
}

func (o Options) timeLimit() time.Duration {
	if o.TimeLimit <= 0 {
		return DEFAULT_TIME_LIMIT
	}
	return o.TimeLimit
}

func (o Options) solver() milp.Solver {
	if o.Solver == nil {
		return milp.NewBranchAndBound(o.logger())
	}
	return o.Solver
}

// Result is the outcome of one Schedule call. Schedule is nil unless Status
// carries a solution.
type Result struct {
	Goal                    Goal             `json:"goal"`
	Status                  milp.Status      `json:"-"`
	StatusName              string           `json:"status"`
	Objective               float64          `json:"objective"`
	WallTime                time.Duration    `json:"wallTime"`
	Horizon                 Horizon          `json:"horizon"`
	Quantum                 int64            `json:"quantum"`
	Schedule                []TaskInstances  `json:"schedule,omitempty"`
	CoresUsed               int              `json:"coresUsed"`
	Delays                  DelayStats       `json:"delays"`
	Diagnostics             milp.Diagnostics `json:"diagnostics"`
	NumInstances            int              `json:"numInstances"`
	NumInstanceDependencies int              `json:"numInstanceDependencies"`
}

func (r *Result) String() string {
	str := fmt.Sprintf("%s (%s): %v, objective %v in %v\n", r.Goal, r.Goal.Describe(), r.Status, r.Objective, r.WallTime)
	str += "    " + r.Horizon.String() + "\n"
	str += fmt.Sprintf("    cores used: %d, delays: %v\n", r.CoresUsed, r.Delays)
	str += "    " + r.Diagnostics.String() + "\n"
	return str
}

// HasSchedule reports whether the solver produced a schedule.
func (r *Result) HasSchedule() bool {
	return r.Status.HasSolution()
}

// Schedule runs the whole pipeline on sys: horizon, instance expansion,
// model construction, objective, solve and extraction. It does not modify
// sys and allocates everything per call, so concurrent calls are safe.
// Infeasibility and running out of time are reported through Result.Status;
// errors are reserved for invalid input and solver failures.
func Schedule(ctx context.Context, sys *System, opts Options) (*Result, error) {
	if opts.Goal == "" {
		opts.Goal = DEFAULT_GOAL
	}
	m, err := BuildModel(sys, opts)
	if err != nil {
		return nil, err
	}
	sol, err := m.Solve(ctx, opts.solver(), milp.Options{
		TimeLimit: opts.timeLimit(),
		MaxNodes:  opts.MaxNodes,
		Start:     m.startPoint(),
	})
	if err != nil {
		return nil, err
	}
	return m.result(sol)
}

func (m *Model) result(sol *milp.Solution) (*Result, error) {
	res := &Result{
		Goal:                    m.goal,
		Status:                  sol.Status,
		StatusName:              sol.Status.String(),
		WallTime:                sol.WallTime,
		Horizon:                 m.horizon,
		Quantum:                 m.quantum,
		Diagnostics:             sol.Diagnostics,
		NumInstances:            countInstances(m.instances),
		NumInstanceDependencies: m.instanceDependencies(),
	}
	if !sol.Status.HasSolution() {
		return res, nil
	}
	sched, err := m.Extract(sol)
	if err != nil {
		return nil, err
	}
	res.Schedule = sched
	res.CoresUsed = m.usedCores(sol)
	res.Delays = m.delayStats(sol)
	res.Objective = float64(res.CoresUsed)
	if m.goal == GoalEndToEnd {
		res.Objective = float64(res.Delays.Total)
	}
	return res, nil
}
