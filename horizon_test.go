package letsched

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestComputeHorizon(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  Horizon
	}{
		{
			name:  "single task",
			tasks: []Task{newTask("t1", 1*ms, 1*ms, 0)},
			want:  Horizon{Hyperperiod: 1 * ms, Hyperoffset: 0, Makespan: 4 * ms, LargeN: 8 * ms},
		},
		{
			name:  "two periods",
			tasks: []Task{newTask("t1", 1*ms, 1*ms, 0), newTask("t2", 2*ms, 1*ms, 0)},
			want:  Horizon{Hyperperiod: 2 * ms, Hyperoffset: 0, Makespan: 6 * ms, LargeN: 12 * ms},
		},
		{
			name: "offset and coprime periods",
			tasks: []Task{
				{Name: "t1", Period: 2 * ms, Duration: 1 * ms, InitialOffset: 500_000},
				{Name: "t2", Period: 5 * ms, Duration: 1 * ms},
			},
			want: Horizon{Hyperperiod: 10 * ms, Hyperoffset: 500_000, Makespan: 30*ms + 500_000, LargeN: 61 * ms},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ComputeHorizon(tt.tasks)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
		})
	}
}

func TestComputeHorizonRejects(t *testing.T) {
	_, err := ComputeHorizon(nil)
	assert.True(t, errors.Is(err, ErrInvalidTask))

	_, err = ComputeHorizon([]Task{newTask("t1", 0, 0, 0)})
	assert.True(t, errors.Is(err, ErrInvalidTask))

	huge := []Task{newTask("t1", math.MaxInt64/2, 1, 0), newTask("t2", math.MaxInt64/2-1, 1, 0)}
	_, err = ComputeHorizon(huge)
	assert.True(t, errors.Is(err, ErrInvalidTask))
}

func TestHorizonProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "n")
		tasks := make([]Task, n)
		for i := range tasks {
			period := rapid.SampledFrom(generatedPeriods).Draw(t, "period")
			tasks[i] = Task{
				Name:          "t",
				Period:        period,
				Duration:      period,
				InitialOffset: rapid.Int64Range(0, 3*ms).Draw(t, "offset"),
			}
		}
		h, err := ComputeHorizon(tasks)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, task := range tasks {
			if h.Hyperperiod%task.Period != 0 {
				t.Fatalf("hyperperiod %d not a multiple of %d", h.Hyperperiod, task.Period)
			}
			if task.InitialOffset > h.Hyperoffset {
				t.Fatalf("hyperoffset %d below %d", h.Hyperoffset, task.InitialOffset)
			}
		}
		span := h.Makespan - h.Hyperoffset
		if span%h.Hyperperiod != 0 || span < 2*h.Hyperperiod+MAKESPAN_PADDING {
			t.Fatalf("bad makespan %v", h)
		}
		if h.LargeN != 2*h.Makespan {
			t.Fatalf("largeN %d != 2*makespan", h.LargeN)
		}
	})
}
