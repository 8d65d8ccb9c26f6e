package letsched

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letsched/milp"
)

const testTimeLimit = time.Minute

func testOptions(goal Goal) Options {
	opts := DefaultOptions()
	opts.Goal = goal
	opts.TimeLimit = testTimeLimit
	return opts
}

func varNames(p *milp.Problem, prefix string) []string {
	var out []string
	for i := 0; i < p.NumVars(); i++ {
		if v := p.Var(milp.Var(i)); strings.HasPrefix(v.Name, prefix) {
			out = append(out, v.Name)
		}
	}
	return out
}

func constraintNames(p *milp.Problem, prefix string) []string {
	var out []string
	for i := 0; i < p.NumConstraints(); i++ {
		if c := p.Constraint(i); strings.HasPrefix(c.Name, prefix) {
			out = append(out, c.Name)
		}
	}
	return out
}

// assertValidSchedule checks the execution contract of every extracted
// instance and that no two intervals overlap on a core.
func assertValidSchedule(t *testing.T, tasks []Task, sched []TaskInstances) {
	t.Helper()
	require.Len(t, sched, len(tasks))
	type interval struct {
		owner      string
		start, end int64
	}
	byCore := map[string][]interval{}
	for i, ti := range sched {
		assert.Equal(t, tasks[i].Name, ti.Name)
		for _, inst := range ti.Value {
			require.False(t, inst.IsSentinel())
			require.NotNil(t, inst.CurrentCore)
			require.Len(t, inst.ExecutionIntervals, 1)
			iv := inst.ExecutionIntervals[0]
			assert.Equal(t, inst.CurrentCore.Name, iv.Core)
			assert.Equal(t, tasks[i].Wcet, inst.ExecutionTime)
			assert.Equal(t, tasks[i].Wcet, iv.EndTime-iv.StartTime, "%s %v", ti.Name, inst)
			assert.LessOrEqual(t, inst.LetStartTime, iv.StartTime, "%s %v", ti.Name, inst)
			assert.LessOrEqual(t, iv.EndTime, inst.LetEndTime, "%s %v", ti.Name, inst)
			byCore[iv.Core] = append(byCore[iv.Core], interval{owner: ti.Name + "_" + instLabel(inst.Index), start: iv.StartTime, end: iv.EndTime})
		}
	}
	for core, ivs := range byCore {
		for a := 0; a < len(ivs); a++ {
			for b := a + 1; b < len(ivs); b++ {
				x, y := ivs[a], ivs[b]
				overlap := x.start < y.end && y.start < x.end && x.end > x.start && y.end > y.start
				assert.False(t, overlap, "%s and %s overlap on %s", x.owner, y.owner, core)
			}
		}
	}
}

func TestBuildModelCoresGoal(t *testing.T) {
	sys := newTestSystem([]string{"d1"}, 2, 0, 0, newTask("t1", 1*ms, 500_000, 100_000))
	m, err := BuildModel(sys, testOptions(GoalCores))
	require.NoError(t, err)

	assert.Equal(t, int64(100_000), m.Quantum())
	assert.Equal(t, GoalCores, m.Goal())
	assert.Equal(t, 4*ms, m.Horizon().Makespan)

	p := m.Problem()
	assert.Len(t, varNames(p, "assigned_"), 2)
	assert.Len(t, varNames(p, "start_"), 4)
	assert.Len(t, varNames(p, "end_"), 4)
	assert.Len(t, varNames(p, "u_"), 2)
	assert.Empty(t, varNames(p, "lambda_"))
	assert.Empty(t, varNames(p, "bool_dep_"))
	assert.Empty(t, varNames(p, "psi_"))
	assert.Equal(t, 13, p.NumVars())

	// disjoint consecutive windows need no sequencing row
	assert.Empty(t, constraintNames(p, "seq_"))
	assert.Len(t, constraintNames(p, "exec_"), 4)
	assert.Equal(t, 18, p.NumConstraints())

	// horizon bounds are in quantum units
	assert.Equal(t, float64(80), p.Var(m.start[instanceRef{task: 0, inst: 0}]).Upper)
}

func TestBuildModelRejects(t *testing.T) {
	sys := newTestSystem([]string{"d1"}, 1, 0, 0, newTask("t1", 1*ms, 500_000, 100_000))

	_, err := BuildModel(sys, Options{Goal: "fastest"})
	assert.True(t, errors.Is(err, ErrUnknownGoal))

	sys.EntityStore[0].Wcet = 2 * ms
	_, err = BuildModel(sys, testOptions(GoalCores))
	assert.True(t, errors.Is(err, ErrInvalidTask))
}

func TestBuildModelSequencesOverlappingWindows(t *testing.T) {
	long := newTask("t1", 1*ms, 1*ms, 500_000)
	sys := newTestSystem([]string{"d1"}, 1, 0, 0, long)
	m, err := BuildModel(sys, testOptions(GoalCores))
	require.NoError(t, err)
	// windows [k, k+1]ms only touch, so nothing to sequence
	assert.Empty(t, constraintNames(m.Problem(), "seq_"))

	other := newTask("t2", 2*ms, 2*ms, 500_000)
	sys = newTestSystem([]string{"d1"}, 1, 0, 0, long, other)
	m, err = BuildModel(sys, testOptions(GoalCores))
	require.NoError(t, err)
	// every t2 window [2k, 2k+2] overlaps t1 windows 2k and 2k+1
	assert.Len(t, varNames(m.Problem(), "bool_task_"), 2*len(m.Instances()[1].real()))
	assert.Len(t, varNames(m.Problem(), "psi_tasks_"), 1)
}

func TestBuildModelEndToEndCandidates(t *testing.T) {
	sys := newTestSystem([]string{"d1"}, 1, 0, 0,
		newTask("t1", 1*ms, 500_000, 100_000), newTask("t2", 2*ms, 1*ms, 200_000))
	sys.DependencyStore = []Dependency{dependsOn("t1", "t2"), dependsOn(SYSTEM_TASK, "t1")}
	m, err := BuildModel(sys, testOptions(GoalEndToEnd))
	require.NoError(t, err)

	// t2 instance q starts at 2q ms; t1 instance p ends at p ms + 0.5ms
	assert.Len(t, m.depKeys, 1+3+5)
	sentinels := 0
	for _, k := range m.depKeys {
		if k.p == SENTINEL_INSTANCE {
			sentinels++
		}
	}
	assert.Equal(t, 3, sentinels)
	assert.Len(t, constraintNames(m.Problem(), "dep_select_"), 3)
	assert.Len(t, varNames(m.Problem(), "lambda_"), 1)
	assert.Equal(t, 3, m.instanceDependencies())
}

func TestSolvedModelSatisfiesConstraints(t *testing.T) {
	tasks := []Task{newTask("t1", 1*ms, 500_000, 100_000), newTask("t2", 1*ms, 500_000, 400_000)}
	sys := newTestSystem([]string{"d1"}, 2, 0, 0, tasks...)
	m, err := BuildModel(sys, testOptions(GoalCores))
	require.NoError(t, err)

	sol, err := m.Solve(context.Background(), milp.NewBranchAndBound(nil), milp.Options{TimeLimit: testTimeLimit})
	require.NoError(t, err)
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, 1, sol.Objective, 1e-6)
	assert.Empty(t, milp.Check(m.Problem(), sol.Values, 1e-6))

	sched, err := m.Extract(sol)
	require.NoError(t, err)
	assertValidSchedule(t, tasks, sched)
	assert.Equal(t, 1, m.usedCores(sol))

	broken := append([]float64(nil), sol.Values...)
	broken[m.end[instanceRef{task: 0, inst: 0}]] += 1
	names := map[string]bool{}
	for _, v := range milp.Check(m.Problem(), broken, 1e-6) {
		names[v.Name] = true
	}
	assert.True(t, names["exec_t1_0"], "violations: %v", names)
}

func TestSolvedModelNeedsSecondCore(t *testing.T) {
	tasks := []Task{newTask("t1", 1*ms, 500_000, 300_000), newTask("t2", 1*ms, 500_000, 400_000)}
	sys := newTestSystem([]string{"d1"}, 3, 0, 0, tasks...)
	res, err := Schedule(context.Background(), sys, testOptions(GoalCores))
	require.NoError(t, err)
	require.Equal(t, milp.StatusOptimal, res.Status)
	assert.Equal(t, 2, res.CoresUsed)
	assert.Equal(t, float64(2), res.Objective)
	assertValidSchedule(t, tasks, res.Schedule)

	core1 := res.Schedule[0].Value[0].CurrentCore.Name
	core2 := res.Schedule[1].Value[0].CurrentCore.Name
	assert.NotEqual(t, core1, core2)
	for _, ti := range res.Schedule {
		for _, inst := range ti.Value {
			assert.Equal(t, ti.Value[0].CurrentCore.Name, inst.CurrentCore.Name, "a task keeps its core")
		}
	}
}

func TestPinsAreHonoured(t *testing.T) {
	tasks := []Task{
		pinnedTo(newTask("t1", 1*ms, 500_000, 100_000), "d2c2"),
		onDevice(newTask("t2", 1*ms, 500_000, 100_000), "d1"),
	}
	sys := newTestSystem([]string{"d1", "d2"}, 2, 0, 0, tasks...)
	res, err := Schedule(context.Background(), sys, testOptions(GoalCores))
	require.NoError(t, err)
	require.True(t, res.HasSchedule())
	assertValidSchedule(t, tasks, res.Schedule)

	for _, inst := range res.Schedule[0].Value {
		assert.Equal(t, "d2c2", inst.CurrentCore.Name)
	}
	for _, inst := range res.Schedule[1].Value {
		assert.Equal(t, "d1", inst.CurrentCore.Device)
	}
	assert.Equal(t, 2, res.CoresUsed)
}

func TestFixedTimings(t *testing.T) {
	tasks := []Task{newTask("t1", 1*ms, 500_000, 100_000)}
	sys := newTestSystem([]string{"d1"}, 1, 0, 0, tasks...)
	sys.EntityInstancesStore = []TaskInstances{{
		Name: "t1",
		Value: []Instance{
			{Index: 0, ExecutionIntervals: []ExecutionInterval{{Core: "d1c1", StartTime: 300_000, EndTime: 400_000}}},
			{Index: 2, ExecutionIntervals: []ExecutionInterval{{Core: "d1c1", StartTime: 2*ms + 350_000, EndTime: 2*ms + 450_000}}},
		},
	}}

	opts := testOptions(GoalCores)
	opts.FixedTimings = true
	m, err := BuildModel(sys, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), m.Quantum())
	assert.Len(t, constraintNames(m.Problem(), "fixed_start_"), 2)

	res, err := Schedule(context.Background(), sys, opts)
	require.NoError(t, err)
	require.True(t, res.HasSchedule())
	insts := res.Schedule[0].Value
	assert.Equal(t, ExecutionInterval{Core: "d1c1", StartTime: 300_000, EndTime: 400_000}, insts[0].ExecutionIntervals[0])
	assert.Equal(t, 2*ms+350_000, insts[2].ExecutionIntervals[0].StartTime)
	assertValidSchedule(t, tasks, res.Schedule)

	// without the flag the prior table is ignored
	m, err = BuildModel(sys, testOptions(GoalCores))
	require.NoError(t, err)
	assert.Empty(t, constraintNames(m.Problem(), "fixed_"))
}
