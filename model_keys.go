package letsched

import "strconv"

// Keys of the model's variable tables. Tasks and cores are input-order
// indices; instance indices follow Instance.Index, so the sentinel is -1.

type taskCore struct{ task, core int }

type instanceRef struct{ task, inst int }

// taskPair is unordered (x < y) for conflict variables and ordered
// (source, destination) for λ.
type taskPair struct{ x, y int }

// corePair is the co-placement of task x on core a and task y on core b,
// with x < y.
type corePair struct{ x, a, y, b int }

// orderKey is the ordering indicator between instance i of x and instance j
// of y, x < y.
type orderKey struct{ x, i, y, j int }

// depKey is the choice of instance p of src as the producer for instance q
// of dst.
type depKey struct{ src, p, dst, q int }

func instLabel(k int) string {
	if k == SENTINEL_INSTANCE {
		return "neg"
	}
	return strconv.Itoa(k)
}

func (m *Model) taskName(i int) string { return m.tasks[i].Name }

func (m *Model) coreName(c int) string { return m.topo.core(c).Name }

func (m *Model) instName(r instanceRef) string {
	return m.taskName(r.task) + "_" + instLabel(r.inst)
}

func (m *Model) depName(prefix string, k depKey) string {
	return prefix + "_" + m.taskName(k.src) + "_" + instLabel(k.p) + "_" + m.taskName(k.dst) + "_" + instLabel(k.q)
}
