package letsched

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/markphelps/optional"
	"golang.org/x/exp/slices"
)

type Heuristic string

const (
	LOWEST_UTILISATION Heuristic = "lu"
	LOWEST_CORE_INDEX  Heuristic = "lci"

	UTILISATION_EPS = 1e-9
)

func ParseHeuristic(s string) (Heuristic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lu", "lowest-utilisation", "lowest_utilisation":
		return LOWEST_UTILISATION, nil
	case "lci", "lc", "lowest-core-index", "lowest_core_index":
		return LOWEST_CORE_INDEX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHeuristic, s)
}

// Apply pre-assigns tasks to cores with the heuristic.
func (h Heuristic) Apply(cores []Core, tasks []Task, maxUtil float64) ([]Task, error) {
	switch h {
	case LOWEST_UTILISATION:
		return LowestUtilisation(cores, tasks, maxUtil)
	case LOWEST_CORE_INDEX:
		return LowestCoreIndex(cores, tasks, maxUtil)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownHeuristic, string(h))
}

// ------------------------------------------------------------------------------------------------
// CORE LOADS
// ------------------------------------------------------------------------------------------------

// coreLoad is the utilisation packed onto one core so far.
type coreLoad struct {
	idx   int
	util  float64
	tasks []string
}

func (cl *coreLoad) String() string {
	return fmt.Sprintf("{core %d, util %.3f, tasks %v}", cl.idx, cl.util, cl.tasks)
}

func (cl *coreLoad) fits(u, maxUtil float64) bool {
	return cl.util+u <= maxUtil+UTILISATION_EPS
}

func (cl *coreLoad) place(name string, u float64) {
	cl.util += u
	cl.tasks = append(cl.tasks, name)
}

// LoadHeap is a min-heap of core loads, ties broken by core index.
type LoadHeap []*coreLoad

func (h LoadHeap) Len() int { return len(h) }
func (h LoadHeap) Less(i, j int) bool {
	if h[i].util != h[j].util {
		return h[i].util < h[j].util
	}
	return h[i].idx < h[j].idx
}
func (h LoadHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *LoadHeap) Push(x any)   { *h = append(*h, x.(*coreLoad)) }

func (h *LoadHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// findLeastLoaded returns the heap position of the least loaded core among
// the allowed ones.
func findLeastLoaded(h *LoadHeap, allowed func(idx int) bool) (int, bool) {
	if allowed == nil {
		return 0, h.Len() > 0
	}
	indToUse := -1
	for ind := 0; ind < len(*h); ind++ {
		if !allowed((*h)[ind].idx) {
			continue
		}
		if indToUse < 0 || h.Less(ind, indToUse) {
			indToUse = ind
		}
	}
	return indToUse, indToUse >= 0
}

// ------------------------------------------------------------------------------------------------
// HEURISTICS
// ------------------------------------------------------------------------------------------------

// SortByUtilisation returns a copy of tasks ordered by decreasing
// utilisation; equal utilisations keep their input order.
func SortByUtilisation(tasks []Task) []Task {
	out := append([]Task(nil), tasks...)
	slices.SortStableFunc(out, func(a, b Task) bool {
		return a.Utilisation() > b.Utilisation()
	})
	return out
}

// utilisationOrder is SortByUtilisation expressed as input indices.
func utilisationOrder(tasks []Task) []int {
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) bool {
		return tasks[a].Utilisation() > tasks[b].Utilisation()
	})
	return order
}

// allowedCores restricts a task to its pinned core or device, nil when the
// task may go anywhere.
func allowedCores(cores []Core, t Task) func(idx int) bool {
	if core, ok := pinned(t.Core); ok {
		return func(idx int) bool { return cores[idx].Name == core }
	}
	if dev, ok := pinned(t.Device); ok {
		return func(idx int) bool { return cores[idx].Device == dev }
	}
	return nil
}

// LowestUtilisation places tasks, largest utilisation first, on the least
// loaded core. The returned tasks are in input order with their core set.
func LowestUtilisation(cores []Core, tasks []Task, maxUtil float64) ([]Task, error) {
	if len(cores) == 0 {
		return nil, fmt.Errorf("%w: no cores", ErrUnschedulable)
	}
	h := make(LoadHeap, 0, len(cores))
	for i := range cores {
		h = append(h, &coreLoad{idx: i})
	}
	heap.Init(&h)

	out := append([]Task(nil), tasks...)
	for _, i := range utilisationOrder(tasks) {
		t := tasks[i]
		u := t.Utilisation()
		pos, ok := findLeastLoaded(&h, allowedCores(cores, t))
		if !ok || !h[pos].fits(u, maxUtil) {
			return nil, fmt.Errorf("%w: task %s (utilisation %.3f) does not fit under %.3f", ErrUnschedulable, t.Name, u, maxUtil)
		}
		cl := h[pos]
		cl.place(t.Name, u)
		heap.Fix(&h, pos)
		out[i].Core = optional.NewString(cores[cl.idx].Name)
	}
	return out, nil
}

// LowestCoreIndex places tasks, largest utilisation first, on the first
// core in input order that still has room.
func LowestCoreIndex(cores []Core, tasks []Task, maxUtil float64) ([]Task, error) {
	if len(cores) == 0 {
		return nil, fmt.Errorf("%w: no cores", ErrUnschedulable)
	}
	loads := make([]*coreLoad, len(cores))
	for i := range cores {
		loads[i] = &coreLoad{idx: i}
	}

	out := append([]Task(nil), tasks...)
	for _, i := range utilisationOrder(tasks) {
		t := tasks[i]
		u := t.Utilisation()
		allowed := allowedCores(cores, t)
		placed := false
		for _, cl := range loads {
			if allowed != nil && !allowed(cl.idx) {
				continue
			}
			if cl.fits(u, maxUtil) {
				cl.place(t.Name, u)
				out[i].Core = optional.NewString(cores[cl.idx].Name)
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("%w: task %s (utilisation %.3f) does not fit under %.3f", ErrUnschedulable, t.Name, u, maxUtil)
		}
	}
	return out, nil
}

// CountUsedCores counts the distinct cores tasks are pinned to.
func CountUsedCores(tasks []Task) int {
	used := map[string]bool{}
	for _, t := range tasks {
		if core, ok := pinned(t.Core); ok {
			used[core] = true
		}
	}
	return len(used)
}
