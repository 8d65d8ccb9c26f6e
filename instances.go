package letsched

// instanceCount is the number of activations of t that start before the
// makespan: ceil((makespan - initialOffset) / period).
func instanceCount(t Task, makespan int64) int {
	if makespan <= t.InitialOffset {
		return 0
	}
	return int(ceilDiv(makespan-t.InitialOffset, t.Period))
}

func newSentinelInstance(t Task, largeN int64) Instance {
	return Instance{
		Index:           SENTINEL_INSTANCE,
		PeriodStartTime: -largeN,
		PeriodEndTime:   -largeN + t.Period,
		LetStartTime:    -largeN,
		LetEndTime:      -largeN + t.Duration,
		ExecutionTime:   t.Wcet,
	}
}

func newTaskInstance(t Task, k int) Instance {
	periodStart := int64(k)*t.Period + t.InitialOffset
	letStart := periodStart + t.ActivationOffset
	return Instance{
		Index:           k,
		PeriodStartTime: periodStart,
		PeriodEndTime:   periodStart + t.Period,
		LetStartTime:    letStart,
		LetEndTime:      letStart + t.Duration,
		ExecutionTime:   t.Wcet,
	}
}

// ExpandInstances lists, per task in input order, the sentinel followed by
// every activation within the horizon.
func ExpandInstances(tasks []Task, h Horizon) []TaskInstances {
	out := make([]TaskInstances, len(tasks))
	for i, t := range tasks {
		n := instanceCount(t, h.Makespan)
		insts := make([]Instance, 0, n+1)
		insts = append(insts, newSentinelInstance(t, h.LargeN))
		for k := 0; k < n; k++ {
			insts = append(insts, newTaskInstance(t, k))
		}
		out[i] = TaskInstances{
			Name:          t.Name,
			Type:          t.Type,
			InitialOffset: t.InitialOffset,
			Value:         insts,
		}
	}
	return out
}

func countInstances(sets []TaskInstances) int {
	n := 0
	for _, ti := range sets {
		n += len(ti.real())
	}
	return n
}
