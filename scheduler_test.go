package letsched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"letsched/milp"
)

// stubSolver answers every problem with a fixed solution or error.
type stubSolver struct {
	sol   *milp.Solution
	err   error
	calls int
}

func (s *stubSolver) Solve(ctx context.Context, p *milp.Problem, opts milp.Options) (*milp.Solution, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.sol, nil
}

func chainSystem() *System {
	sys := newTestSystem([]string{"d1"}, 1, 0, 0,
		newTask("t1", 1*ms, 500_000, 100_000), newTask("t2", 2*ms, 1*ms, 200_000))
	sys.DependencyStore = []Dependency{dependsOn("t1", "t2")}
	return sys
}

func TestScheduleEndToEnd(t *testing.T) {
	sys := chainSystem()
	res, err := Schedule(context.Background(), sys, testOptions(GoalEndToEnd))
	require.NoError(t, err)
	require.Equal(t, milp.StatusOptimal, res.Status)
	assert.Equal(t, "Optimal", res.StatusName)
	assert.Equal(t, 1, res.CoresUsed)
	assertValidSchedule(t, sys.EntityStore, res.Schedule)

	// t2_0 can only read the sentinel; t2_1 and t2_2 read t1_1 and t1_3
	N := res.Horizon.LargeN
	sentinelDelay := N - 500_000
	assert.Equal(t, sentinelDelay+2*500_000, res.Delays.Total)
	assert.Equal(t, float64(res.Delays.Total), res.Objective)
	assert.Equal(t, 1, res.Delays.Bottom)
	assert.Equal(t, 2, res.Delays.Pairs)
	assert.InDelta(t, 500_000, res.Delays.Average, 1e-6)
	assert.InDelta(t, 0, res.Delays.StdDev, 1e-6)

	assert.Equal(t, 9, res.NumInstances)
	assert.Equal(t, 3, res.NumInstanceDependencies)
	assert.Equal(t, int64(100_000), res.Quantum)
	assert.NotEmpty(t, res.String())
}

func TestScheduleInfeasible(t *testing.T) {
	tasks := []Task{
		pinnedTo(newTask("t1", 1*ms, 1*ms, 1*ms), "d1c1"),
		pinnedTo(newTask("t2", 1*ms, 1*ms, 1*ms), "d1c1"),
	}
	sys := newTestSystem([]string{"d1"}, 2, 0, 0, tasks...)
	core, logs := observer.New(zap.WarnLevel)
	opts := testOptions(GoalCores)
	opts.Logger = zap.New(core)

	res, err := Schedule(context.Background(), sys, opts)
	require.NoError(t, err)
	assert.Equal(t, milp.StatusInfeasible, res.Status)
	assert.False(t, res.HasSchedule())
	assert.Nil(t, res.Schedule)
	assert.Equal(t, 1, logs.FilterMessage("model is infeasible").Len())
}

func TestScheduleWithoutIncumbent(t *testing.T) {
	stub := &stubSolver{sol: &milp.Solution{Status: milp.StatusTimeLimitNoSolution, WallTime: time.Second}}
	opts := testOptions(GoalCores)
	opts.Solver = stub
	res, err := Schedule(context.Background(), chainSystem(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, milp.StatusTimeLimitNoSolution, res.Status)
	assert.Nil(t, res.Schedule)
	assert.Zero(t, res.CoresUsed)
	assert.Equal(t, time.Second, res.WallTime)
	assert.Equal(t, 9, res.NumInstances)
}

func TestScheduleSolverError(t *testing.T) {
	boom := errors.New("boom")
	opts := testOptions(GoalCores)
	opts.Solver = &stubSolver{err: boom}
	_, err := Schedule(context.Background(), chainSystem(), opts)
	assert.ErrorIs(t, err, boom)
}

func TestScheduleRejectsInvalidInput(t *testing.T) {
	stub := &stubSolver{}
	opts := testOptions(GoalCores)
	opts.Solver = stub
	sys := chainSystem()
	sys.CoreStore = nil
	_, err := Schedule(context.Background(), sys, opts)
	assert.ErrorIs(t, err, ErrInvalidTopology)
	assert.Zero(t, stub.calls)
}

func TestExtractRejectsMissingCore(t *testing.T) {
	m, err := BuildModel(chainSystem(), testOptions(GoalCores))
	require.NoError(t, err)
	sol := &milp.Solution{Status: milp.StatusOptimal, Values: make([]float64, m.Problem().NumVars())}
	_, err = m.Extract(sol)
	assert.Error(t, err)

	sched, err := m.Extract(&milp.Solution{Status: milp.StatusInfeasible})
	assert.NoError(t, err)
	assert.Nil(t, sched)
}

func TestScheduleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Schedule(ctx, chainSystem(), testOptions(GoalEndToEnd))
	require.NoError(t, err)
	assert.Equal(t, milp.StatusTimeLimitNoSolution, res.Status)
	assert.Zero(t, res.Diagnostics.Nodes)
}

func TestScheduleIsReentrant(t *testing.T) {
	sys := chainSystem()
	var wg sync.WaitGroup
	results := make([]*Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Schedule(context.Background(), sys, testOptions(GoalCores))
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, milp.StatusOptimal, results[i].Status)
		assert.Equal(t, 1, results[i].CoresUsed)
	}
	assert.Nil(t, sys.EntityInstancesStore)
}
