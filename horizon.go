package letsched

import (
	"fmt"
	"math"
)

// MAKESPAN_PADDING keeps the scheduled window at least this far (in ns)
// beyond two hyperperiods.
const MAKESPAN_PADDING = 2_000_000

// Horizon fixes the time span a task set is scheduled over. LargeN is the
// big-M constant of the model and the sentinel distance.
type Horizon struct {
	Hyperperiod int64 `json:"hyperperiod"`
	Hyperoffset int64 `json:"hyperoffset"`
	Makespan    int64 `json:"makespan"`
	LargeN      int64 `json:"largeN"`
}

func (h Horizon) String() string {
	return fmt.Sprintf("hyperperiod %d, hyperoffset %d, makespan %d, N %d", h.Hyperperiod, h.Hyperoffset, h.Makespan, h.LargeN)
}

// ComputeHorizon derives the horizon of a task set:
//
//	hyperperiod = lcm(periods)
//	hyperoffset = max(initialOffset)
//	makespan    = hyperperiod * ceil((2*hyperperiod + MAKESPAN_PADDING) / hyperperiod) + hyperoffset
//	largeN      = 2 * makespan
func ComputeHorizon(tasks []Task) (Horizon, error) {
	if len(tasks) == 0 {
		return Horizon{}, invalidf(ErrInvalidTask, "empty task set")
	}
	hp := int64(1)
	ho := int64(0)
	for _, t := range tasks {
		if t.Period <= 0 {
			return Horizon{}, invalidf(ErrInvalidTask, "task %s: period %d must be positive", t.Name, t.Period)
		}
		var ok bool
		if hp, ok = lcm(hp, t.Period); !ok {
			return Horizon{}, invalidf(ErrInvalidTask, "hyperperiod overflows at task %s", t.Name)
		}
		if t.InitialOffset > ho {
			ho = t.InitialOffset
		}
	}

	// every product below stays under 4*hp + padding + hyperoffset
	if hp > (math.MaxInt64-MAKESPAN_PADDING-ho)/8 {
		return Horizon{}, invalidf(ErrInvalidTask, "hyperperiod %d too large", hp)
	}
	makespan := hp*ceilDiv(2*hp+MAKESPAN_PADDING, hp) + ho
	return Horizon{
		Hyperperiod: hp,
		Hyperoffset: ho,
		Makespan:    makespan,
		LargeN:      2 * makespan,
	}, nil
}
