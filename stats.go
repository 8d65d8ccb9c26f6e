package letsched

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"letsched/milp"
)

// Distribution accumulates samples of one quantity.
type Distribution struct {
	samples []float64
}

func (d *Distribution) update(newVal float64) {
	d.samples = append(d.samples, newVal)
}

func (d *Distribution) count() int { return len(d.samples) }

// meanStdDev returns the mean and population standard deviation, 0 for an
// empty distribution.
func (d *Distribution) meanStdDev() (float64, float64) {
	if len(d.samples) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(d.samples, nil)
}

func (d *Distribution) String() string {
	mean, std := d.meanStdDev()
	return fmt.Sprintf("n: %d, avg: %v, stdDev: %v", d.count(), mean, std)
}

// DelayStats summarises the producer choices of an end-to-end solution.
// Delays are in ns.
type DelayStats struct {
	Total   int64   `json:"totalDelay"`
	Pairs   int     `json:"pairs"`
	Average float64 `json:"averageDelay"`
	StdDev  float64 `json:"delayStdDev"`
	Bottom  int     `json:"bottomDependencies"`
}

func (ds DelayStats) String() string {
	return fmt.Sprintf("total %d, avg %.1f, stddev %.1f over %d pairs, %d bottom", ds.Total, ds.Average, ds.StdDev, ds.Pairs, ds.Bottom)
}

// delayStats reads the chosen producer of every consumer instance. Choices
// that fall back to the sentinel count as bottom dependencies and stay out
// of the average.
func (m *Model) delayStats(sol *milp.Solution) DelayStats {
	var ds DelayStats
	if sol == nil || !sol.Status.HasSolution() {
		return ds
	}
	var dist Distribution
	for _, k := range m.depKeys {
		d, _ := sol.IntValue(m.delay[k])
		ds.Total += d * m.quantum
		chosen, _ := sol.IntValue(m.boolDep[k])
		if chosen != 1 {
			continue
		}
		if k.p == SENTINEL_INSTANCE {
			ds.Bottom++
			continue
		}
		dist.update(float64(d * m.quantum))
	}
	ds.Pairs = dist.count()
	ds.Average, ds.StdDev = dist.meanStdDev()
	return ds
}

// instanceDependencies counts, over all dependency edges, the real instances
// of the destination task.
func (m *Model) instanceDependencies() int {
	n := 0
	for _, e := range m.edges {
		n += len(m.instances[e.dst].real())
	}
	return n
}
