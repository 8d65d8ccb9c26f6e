package letsched

import (
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// timeline is the busy [start, end) intervals of one core in quantum units.
type timeline [][2]int64

func (tl timeline) free(s, w int64) bool {
	for _, iv := range tl {
		if s+w > iv[0] && iv[1] > s {
			return false
		}
	}
	return true
}

// firstFit returns the earliest start >= lo at which w units fit between the
// busy intervals, and whether that execution ends by hi.
func (tl timeline) firstFit(lo, hi, w int64) (int64, bool) {
	s := lo
	for moved := true; moved; {
		moved = false
		for _, iv := range tl {
			if s+w > iv[0] && iv[1] > s {
				s, moved = iv[1], true
			}
		}
	}
	return s, s+w <= hi
}

// startPoint builds a schedule without the solver. Tasks, largest
// utilisation first, go to the least loaded allowed core on which every
// instance still fits its LET window at its earliest free start. Each
// consumer instance then reads the latest producer whose LET end plus the
// link delay reaches it in time. The result is a full variable vector, or
// nil when the greedy placement gets stuck.
func (m *Model) startPoint() []float64 {
	cores := m.topo.cores
	loads := make([]*coreLoad, len(cores))
	lines := make([]timeline, len(cores))
	for c := range cores {
		loads[c] = &coreLoad{idx: c}
	}
	coreOf := make([]int, len(m.tasks))
	times := map[instanceRef][2]int64{}

	for _, i := range utilisationOrder(m.tasks) {
		t := m.tasks[i]
		allowed := allowedCores(cores, t)
		cand := make(LoadHeap, 0, len(loads))
		for _, cl := range loads {
			if allowed == nil || allowed(cl.idx) {
				cand = append(cand, cl)
			}
		}
		slices.SortFunc(cand, func(a, b *coreLoad) bool {
			return LoadHeap{a, b}.Less(0, 1)
		})

		placed := false
		for _, cl := range cand {
			line, ok := m.fitTask(i, lines[cl.idx], times)
			if !ok {
				continue
			}
			lines[cl.idx] = line
			cl.place(t.Name, t.Utilisation())
			coreOf[i] = cl.idx
			placed = true
			break
		}
		if !placed {
			m.log.Debug("no start point", zap.String("task", t.Name))
			return nil
		}
	}

	x, ok := m.startValues(coreOf, times)
	if !ok {
		m.log.Debug("no start point", zap.String("reason", "dependency deadline"))
		return nil
	}
	return x
}

// fitTask places every real instance of task i on a copy of line and
// records the intervals in times. Nothing is recorded when one does not fit.
func (m *Model) fitTask(i int, line timeline, times map[instanceRef][2]int64) (timeline, bool) {
	line = append(timeline(nil), line...)
	w := int64(m.scale(m.tasks[i].Wcet))
	first := len(line)
	prevEnd := int64(0)
	for _, inst := range m.instances[i].real() {
		ref := instanceRef{task: i, inst: inst.Index}
		s, e := int64(0), int64(0)
		if se, ok := m.fixed[ref]; ok {
			s, e = int64(m.scale(se[0])), int64(m.scale(se[1]))
			if !line.free(s, e-s) {
				return nil, false
			}
		} else {
			lo := int64(m.scale(inst.LetStartTime))
			if prevEnd > lo {
				lo = prevEnd
			}
			var ok bool
			if s, ok = line.firstFit(lo, int64(m.scale(inst.LetEndTime)), w); !ok {
				return nil, false
			}
			e = s + w
		}
		line = append(line, [2]int64{s, e})
		prevEnd = e
	}
	for k, inst := range m.instances[i].real() {
		times[instanceRef{task: i, inst: inst.Index}] = line[first+k]
	}
	return line, true
}

func (m *Model) startValues(coreOf []int, times map[instanceRef][2]int64) ([]float64, bool) {
	x := make([]float64, m.problem.NumVars())
	for k, v := range m.assigned {
		if coreOf[k.task] == k.core {
			x[v] = 1
		}
	}
	for ref, se := range times {
		x[m.start[ref]] = float64(se[0])
		x[m.end[ref]] = float64(se[1])
	}
	for k, v := range m.psiCore {
		if coreOf[k.x] == k.a && coreOf[k.y] == k.b {
			x[v] = 1
		}
	}
	for k, v := range m.psiTask {
		if coreOf[k.x] == coreOf[k.y] {
			x[v] = 1
		}
	}
	for k, v := range m.order {
		rx, ry := instanceRef{task: k.x, inst: k.i}, instanceRef{task: k.y, inst: k.j}
		if coreOf[k.x] == coreOf[k.y] && times[rx][1] > times[ry][0] {
			x[v] = 1
		}
	}

	used := 0
	for c, u := range m.coreUsed {
		if slices.Contains(coreOf, c) {
			x[u] = 1
			used++
		}
	}
	x[m.coresUsed] = float64(used)

	for key, lambda := range m.lambda {
		d := m.scale(m.delays[coreOf[key.x]][coreOf[key.y]])
		x[lambda] = d
		for _, q := range m.instances[key.y].real() {
			var best depKey
			found, bestGap := false, 0.0
			for _, p := range m.instances[key.x].Value {
				k := depKey{src: key.x, p: p.Index, dst: key.y, q: q.Index}
				if _, ok := m.boolDep[k]; !ok {
					continue
				}
				gap := m.scale(q.LetStartTime) - m.scale(p.LetEndTime)
				if d <= gap && (!found || gap < bestGap) {
					best, bestGap, found = k, gap, true
				}
			}
			if !found {
				return nil, false
			}
			x[m.boolDep[best]] = 1
			x[m.delay[best]] = bestGap
		}
	}
	return x, true
}
