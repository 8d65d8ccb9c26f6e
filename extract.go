package letsched

import (
	"fmt"

	"letsched/milp"
)

// Extract reads the schedule out of a solution: per task in input order,
// its real instances with the chosen core and one execution interval each.
// It returns nil when the solution carries no values.
func (m *Model) Extract(sol *milp.Solution) ([]TaskInstances, error) {
	if sol == nil || !sol.Status.HasSolution() {
		return nil, nil
	}
	out := make([]TaskInstances, len(m.instances))
	for i, ti := range m.instances {
		c, err := m.chosenCore(sol, i)
		if err != nil {
			return nil, err
		}
		core := m.topo.core(c)
		scheduled := ti.real()
		insts := make([]Instance, len(scheduled))
		for k, inst := range scheduled {
			ref := instanceRef{task: i, inst: inst.Index}
			start, okS := sol.IntValue(m.start[ref])
			end, okE := sol.IntValue(m.end[ref])
			if !okS || !okE {
				return nil, fmt.Errorf("extract %s: missing start/end", m.instName(ref))
			}
			coreCopy := core
			inst.ExecutionTime = m.tasks[i].Wcet
			inst.CurrentCore = &coreCopy
			inst.ExecutionIntervals = []ExecutionInterval{{
				Core:      core.Name,
				StartTime: start * m.quantum,
				EndTime:   end * m.quantum,
			}}
			insts[k] = inst
		}
		out[i] = TaskInstances{
			Name:          ti.Name,
			Type:          ti.Type,
			InitialOffset: ti.InitialOffset,
			Value:         insts,
		}
	}
	return out, nil
}

// chosenCore is the core whose assignment indicator for task i is set.
func (m *Model) chosenCore(sol *milp.Solution, i int) (int, error) {
	for c := 0; c < m.topo.numCores(); c++ {
		if v, ok := sol.Value(m.assigned[taskCore{task: i, core: c}]); ok && v >= 0.5 {
			return c, nil
		}
	}
	return -1, fmt.Errorf("extract %s: no core selected", m.taskName(i))
}

// usedCores counts the cores whose usage indicator is set.
func (m *Model) usedCores(sol *milp.Solution) int {
	if sol == nil || !sol.Status.HasSolution() {
		return 0
	}
	n, _ := sol.IntValue(m.coresUsed)
	return int(n)
}
