package letsched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestExpandInstances(t *testing.T) {
	tasks := []Task{
		{Name: "t1", Period: 1 * ms, Duration: 500_000, Wcet: 100_000},
		{Name: "t2", Period: 2 * ms, Duration: 1 * ms, Wcet: 200_000, InitialOffset: 1 * ms, ActivationOffset: 250_000},
	}
	h, err := ComputeHorizon(tasks)
	require.NoError(t, err)
	require.Equal(t, 7*ms, h.Makespan)

	sets := ExpandInstances(tasks, h)
	require.Len(t, sets, 2)

	t1 := sets[0]
	assert.Equal(t, "t1", t1.Name)
	require.Len(t, t1.Value, 8)
	sentinel := t1.Value[0]
	assert.True(t, sentinel.IsSentinel())
	assert.Equal(t, -h.LargeN, sentinel.LetStartTime)
	assert.Equal(t, -h.LargeN+500_000, sentinel.LetEndTime)
	assert.Equal(t, -h.LargeN+1*ms, sentinel.PeriodEndTime)

	// ceil((7ms - 1ms) / 2ms) = 3 activations
	t2 := sets[1]
	require.Len(t, t2.real(), 3)
	second := t2.real()[1]
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, 3*ms, second.PeriodStartTime)
	assert.Equal(t, 5*ms, second.PeriodEndTime)
	assert.Equal(t, 3*ms+250_000, second.LetStartTime)
	assert.Equal(t, 4*ms+250_000, second.LetEndTime)
	assert.Equal(t, int64(200_000), second.ExecutionTime)

	assert.Equal(t, 10, countInstances(sets))
}

func TestInstanceWindows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		period := rapid.SampledFrom(generatedPeriods).Draw(t, "period")
		duration := rapid.Int64Range(1, period).Draw(t, "duration")
		task := Task{
			Name:             "t",
			Period:           period,
			Duration:         duration,
			Wcet:             rapid.Int64Range(0, duration).Draw(t, "wcet"),
			InitialOffset:    rapid.Int64Range(0, 2*ms).Draw(t, "initialOffset"),
			ActivationOffset: rapid.Int64Range(0, period-duration).Draw(t, "activationOffset"),
		}
		h, err := ComputeHorizon([]Task{task})
		if err != nil {
			t.Fatalf("horizon: %v", err)
		}
		insts := ExpandInstances([]Task{task}, h)[0].real()
		if len(insts) != instanceCount(task, h.Makespan) {
			t.Fatalf("got %d instances", len(insts))
		}
		for k, inst := range insts {
			if inst.Index != k {
				t.Fatalf("instance %d has index %d", k, inst.Index)
			}
			if inst.LetEndTime-inst.LetStartTime != task.Duration {
				t.Fatalf("window of %v is not %d long", inst, task.Duration)
			}
			if inst.LetStartTime < inst.PeriodStartTime || inst.LetEndTime > inst.PeriodEndTime {
				t.Fatalf("window of %v leaves its period", inst)
			}
			if inst.PeriodStartTime >= h.Makespan {
				t.Fatalf("instance %v starts after the makespan %d", inst, h.Makespan)
			}
			if k > 0 && inst.LetStartTime-insts[k-1].LetStartTime != task.Period {
				t.Fatalf("windows %v and %v are not one period apart", insts[k-1], inst)
			}
		}
	})
}
