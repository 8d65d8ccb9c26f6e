package letsched

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// constants characterizing generated systems, in ns
const (
	MS = int64(1_000_000)

	DEFAULT_MAX_INITIAL_OFFSET = 2 * MS
	DEFAULT_MAX_WCET           = 1 * MS
	DEFAULT_MAX_DURATION       = 8 * MS
	DEFAULT_NUM_CORES          = 3
	DEFAULT_NUM_DEVICES        = 2
	DEFAULT_MAX_PROTOCOL_DELAY = 600_000
	DEFAULT_MAX_NETWORK_DELAY  = 1 * MS

	MAX_GENERATED_TASKS = 1000

	GENERATED_DISTRIBUTION = "Normal"
)

var generatedPeriods = []int64{1 * MS, 2 * MS, 5 * MS, 10 * MS, 20 * MS}

// GeneratorConfig bounds a random system. NumDependencies < 0 asks for
// n(n-1)/2 dependencies.
type GeneratorConfig struct {
	NumTasks         int
	Utilisation      float64
	NumDependencies  int
	MaxInitialOffset int64
	MaxWcet          int64
	MaxDuration      int64
	NumCores         int
	NumDevices       int
	MaxProtocolDelay int64
	MaxNetworkDelay  int64
	Seed             uint64
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		NumTasks:         5,
		NumDependencies:  -1,
		MaxInitialOffset: DEFAULT_MAX_INITIAL_OFFSET,
		MaxWcet:          DEFAULT_MAX_WCET,
		MaxDuration:      DEFAULT_MAX_DURATION,
		NumCores:         DEFAULT_NUM_CORES,
		NumDevices:       DEFAULT_NUM_DEVICES,
		MaxProtocolDelay: DEFAULT_MAX_PROTOCOL_DELAY,
		MaxNetworkDelay:  DEFAULT_MAX_NETWORK_DELAY,
		Seed:             1,
	}
}

// Generator draws random task sets, dependencies and topologies from one
// seeded source, so equal seeds give equal systems.
type Generator struct {
	cfg     GeneratorConfig
	rand    *rand.Rand
	periods distuv.Categorical
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	src := rand.NewSource(cfg.Seed)
	weights := make([]float64, len(generatedPeriods))
	for i := range weights {
		weights[i] = 1
	}
	return &Generator{
		cfg:     cfg,
		rand:    rand.New(src),
		periods: distuv.NewCategorical(weights, src),
	}
}

// intIn samples uniformly from [lo, hi].
func (g *Generator) intIn(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + g.rand.Int63n(hi-lo+1)
}

func (g *Generator) samplePeriod() int64 {
	return generatedPeriods[int(g.periods.Rand())]
}

func (g *Generator) genTask(index int) Task {
	period := g.samplePeriod()
	duration := g.intIn(1, min(g.cfg.MaxDuration, period))
	initialOffset := g.intIn(0, g.cfg.MaxInitialOffset)
	wcet := g.intIn(0, min(g.cfg.MaxWcet, duration))
	return newGeneratedTask(index, period, duration, initialOffset, wcet)
}

func newGeneratedTask(index int, period, duration, initialOffset, wcet int64) Task {
	return Task{
		Name:          fmt.Sprintf("t%d", index+1),
		Type:          "task",
		Period:        period,
		Duration:      duration,
		Wcet:          wcet,
		Acet:          wcet,
		Bcet:          wcet,
		InitialOffset: initialOffset,
		Distribution:  GENERATED_DISTRIBUTION,
		Inputs:        []string{"in1"},
		Outputs:       []string{"out1"},
	}
}

// GenerateTaskSet draws cfg.NumTasks tasks.
func (g *Generator) GenerateTaskSet() []Task {
	tasks := make([]Task, g.cfg.NumTasks)
	for i := range tasks {
		tasks[i] = g.genTask(i)
	}
	return tasks
}

// GenerateTaskSetForUtilisation draws tasks until their utilisation reaches
// cfg.Utilisation. The last task's wcet is cut so the total never exceeds
// the target.
func (g *Generator) GenerateTaskSetForUtilisation() ([]Task, error) {
	if g.cfg.Utilisation <= 0 {
		return nil, fmt.Errorf("generate: utilisation %v must be positive", g.cfg.Utilisation)
	}
	var tasks []Task
	util := 0.0
	for len(tasks) < MAX_GENERATED_TASKS && util < g.cfg.Utilisation-UTILISATION_EPS {
		t := g.genTask(len(tasks))
		if util+t.Utilisation() > g.cfg.Utilisation {
			t.Wcet = int64((g.cfg.Utilisation - util) * float64(t.Period))
			t.Acet, t.Bcet = t.Wcet, t.Wcet
			if t.Wcet <= 0 {
				break
			}
		}
		util += t.Utilisation()
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("generate: no task fits utilisation %v", g.cfg.Utilisation)
	}
	return tasks, nil
}

// GenerateDependencies draws n distinct (source, destination) task pairs
// without self edges.
func (g *Generator) GenerateDependencies(n int, tasks []Task) ([]Dependency, error) {
	if n < 0 {
		n = len(tasks) * (len(tasks) - 1) / 2
	}
	if limit := len(tasks) * (len(tasks) - 1); n > limit {
		return nil, fmt.Errorf("generate: %d dependencies requested but %d tasks allow %d", n, len(tasks), limit)
	}
	seen := make(map[edge]bool, n)
	deps := make([]Dependency, 0, n)
	for len(deps) < n {
		src := g.rand.Intn(len(tasks))
		dst := src
		for dst == src {
			dst = g.rand.Intn(len(tasks))
		}
		e := edge{src: src, dst: dst}
		if seen[e] {
			continue
		}
		seen[e] = true
		deps = append(deps, Dependency{
			Name:        fmt.Sprintf("t%d-t%d", src+1, dst+1),
			Source:      Endpoint{Task: tasks[src].Name, Port: "out1"},
			Destination: Endpoint{Task: tasks[dst].Name, Port: "in1"},
		})
	}
	return deps, nil
}

// GenerateTopology draws devices d1.., cores c1.. on random devices and a
// link for every ordered device pair, self pairs included.
func (g *Generator) GenerateTopology() *System {
	sys := &System{}
	for i := 0; i < g.cfg.NumDevices; i++ {
		wcdt := g.intIn(0, g.cfg.MaxProtocolDelay)
		sys.DeviceStore = append(sys.DeviceStore, Device{
			Name:    fmt.Sprintf("d%d", i+1),
			Speedup: 1,
			Delays: []ProtocolDelay{{
				Protocol:     DEFAULT_PROTOCOL,
				Acdt:         wcdt,
				Bcdt:         wcdt,
				Wcdt:         wcdt,
				Distribution: GENERATED_DISTRIBUTION,
			}},
		})
	}
	for i := 0; i < g.cfg.NumCores && len(sys.DeviceStore) > 0; i++ {
		dev := sys.DeviceStore[g.rand.Intn(len(sys.DeviceStore))]
		sys.CoreStore = append(sys.CoreStore, Core{
			Name:    fmt.Sprintf("c%d", i+1),
			Device:  dev.Name,
			Speedup: 1,
		})
	}
	for _, src := range sys.DeviceStore {
		for _, dst := range sys.DeviceStore {
			wcdt := g.intIn(0, g.cfg.MaxNetworkDelay)
			sys.NetworkDelayStore = append(sys.NetworkDelayStore, NetworkDelay{
				Name:         src.Name + "-to-" + dst.Name,
				Source:       src.Name,
				Dest:         dst.Name,
				Acdt:         wcdt,
				Bcdt:         wcdt,
				Wcdt:         wcdt,
				Distribution: GENERATED_DISTRIBUTION,
			})
		}
	}
	return sys
}

// GenerateSystem draws a topology, a task set (by utilisation when
// cfg.Utilisation is set, by count otherwise) and its dependencies.
func (g *Generator) GenerateSystem() (*System, error) {
	sys := g.GenerateTopology()
	var tasks []Task
	if g.cfg.Utilisation > 0 {
		var err error
		if tasks, err = g.GenerateTaskSetForUtilisation(); err != nil {
			return nil, err
		}
	} else {
		tasks = g.GenerateTaskSet()
	}
	deps, err := g.GenerateDependencies(g.cfg.NumDependencies, tasks)
	if err != nil {
		return nil, err
	}
	sys.EntityStore = tasks
	sys.DependencyStore = deps
	return sys, nil
}
