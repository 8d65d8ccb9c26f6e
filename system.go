package letsched

import (
	"fmt"
)

const DEFAULT_PROTOCOL = "tcp"

type Endpoint struct {
	Task string `json:"task"`
	Port string `json:"port,omitempty"`
}

type Dependency struct {
	Name        string   `json:"name"`
	Source      Endpoint `json:"source"`
	Destination Endpoint `json:"destination"`
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s: %s.%s -> %s.%s", d.Name, d.Source.Task, d.Source.Port, d.Destination.Task, d.Destination.Port)
}

type Core struct {
	Name    string  `json:"name"`
	Device  string  `json:"device"`
	Speedup float64 `json:"speedup,omitempty"`
}

func (c Core) String() string {
	return c.Name + "@" + c.Device
}

// ProtocolDelay is the communication overhead a device adds when sending or
// receiving with a protocol.
type ProtocolDelay struct {
	Protocol     string `json:"protocol"`
	Acdt         int64  `json:"acdt"`
	Bcdt         int64  `json:"bcdt"`
	Wcdt         int64  `json:"wcdt"`
	Distribution string `json:"distribution,omitempty"`
}

type Device struct {
	Name    string          `json:"name"`
	Speedup float64         `json:"speedup,omitempty"`
	Delays  []ProtocolDelay `json:"delays"`
}

// NetworkDelay is the directed link delay between two devices.
type NetworkDelay struct {
	Name         string `json:"name"`
	Source       string `json:"source"`
	Dest         string `json:"dest"`
	Acdt         int64  `json:"acdt"`
	Bcdt         int64  `json:"bcdt"`
	Wcdt         int64  `json:"wcdt"`
	Distribution string `json:"distribution,omitempty"`
}

// System is the scheduling input document.
type System struct {
	CoreStore            []Core          `json:"CoreStore"`
	DeviceStore          []Device        `json:"DeviceStore"`
	NetworkDelayStore    []NetworkDelay  `json:"NetworkDelayStore"`
	EntityStore          []Task          `json:"EntityStore"`
	DependencyStore      []Dependency    `json:"DependencyStore"`
	EntityInstancesStore []TaskInstances `json:"EntityInstancesStore,omitempty"`
}

func (s *System) String() string {
	return fmt.Sprintf("system{%d cores, %d devices, %d links, %d tasks, %d dependencies, utilisation %.3f}",
		len(s.CoreStore), len(s.DeviceStore), len(s.NetworkDelayStore), len(s.EntityStore), len(s.DependencyStore), s.Utilisation())
}

func (s *System) Utilisation() float64 {
	utils := make([]float64, len(s.EntityStore))
	for i, t := range s.EntityStore {
		utils[i] = t.Utilisation()
	}
	return sum(utils)
}

// WithSchedule returns a shallow copy of s whose EntityInstancesStore is
// sched.
func (s *System) WithSchedule(sched []TaskInstances) *System {
	out := *s
	out.EntityInstancesStore = sched
	return &out
}

// WithTasks returns a shallow copy of s whose EntityStore is tasks.
func (s *System) WithTasks(tasks []Task) *System {
	out := *s
	out.EntityStore = tasks
	return &out
}

// Validate checks the document for the shape errors that would make a model
// meaningless: bad task timing, duplicate names, dangling references.
func (s *System) Validate() error {
	if len(s.EntityStore) == 0 {
		return invalidf(ErrInvalidTask, "empty task set")
	}
	if len(s.CoreStore) == 0 {
		return invalidf(ErrInvalidTopology, "no cores")
	}

	devices := make(map[string]int, len(s.DeviceStore))
	for _, d := range s.DeviceStore {
		if d.Name == "" {
			return invalidf(ErrInvalidTopology, "device without a name")
		}
		if _, dup := devices[d.Name]; dup {
			return invalidf(ErrInvalidTopology, "duplicate device %s", d.Name)
		}
		devices[d.Name] = 0
	}
	cores := make(map[string]bool, len(s.CoreStore))
	for _, c := range s.CoreStore {
		if c.Name == "" {
			return invalidf(ErrInvalidTopology, "core without a name")
		}
		if cores[c.Name] {
			return invalidf(ErrInvalidTopology, "duplicate core %s", c.Name)
		}
		if _, ok := devices[c.Device]; !ok {
			return invalidf(ErrInvalidTopology, "core %s on unknown device %q", c.Name, c.Device)
		}
		cores[c.Name] = true
		devices[c.Device]++
	}
	for _, l := range s.NetworkDelayStore {
		_, okSrc := devices[l.Source]
		_, okDst := devices[l.Dest]
		if !okSrc || !okDst {
			return invalidf(ErrInvalidTopology, "link %s between unknown devices %s -> %s", l.Name, l.Source, l.Dest)
		}
		if l.Wcdt < 0 {
			return invalidf(ErrInvalidTopology, "link %s: negative wcdt", l.Name)
		}
	}

	tasks := make(map[string]bool, len(s.EntityStore))
	for _, t := range s.EntityStore {
		if err := t.validate(); err != nil {
			return err
		}
		if tasks[t.Name] {
			return invalidf(ErrInvalidTask, "duplicate task %s", t.Name)
		}
		tasks[t.Name] = true
		if core, ok := pinned(t.Core); ok && !cores[core] {
			return invalidf(ErrInvalidTask, "task %s pinned to unknown core %q", t.Name, core)
		}
		if dev, ok := pinned(t.Device); ok {
			if n, known := devices[dev]; !known || n == 0 {
				return invalidf(ErrInvalidTask, "task %s pinned to device %q without cores", t.Name, dev)
			}
		}
	}

	for _, d := range s.DependencyStore {
		for _, end := range []string{d.Source.Task, d.Destination.Task} {
			if end != SYSTEM_TASK && !tasks[end] {
				return invalidf(ErrInvalidDependency, "dependency %s references unknown task %q", d.Name, end)
			}
		}
	}
	return nil
}

// edge is a scheduling-relevant dependency between two task indices.
type edge struct {
	src, dst int
}

// edges returns the dependency edges between real tasks in document order,
// skipping system endpoints, self loops and repeated pairs.
func (s *System) edges() []edge {
	idx := make(map[string]int, len(s.EntityStore))
	for i, t := range s.EntityStore {
		idx[t.Name] = i
	}
	seen := make(map[edge]bool)
	var out []edge
	for _, d := range s.DependencyStore {
		src, okSrc := idx[d.Source.Task]
		dst, okDst := idx[d.Destination.Task]
		if !okSrc || !okDst || src == dst {
			continue
		}
		e := edge{src: src, dst: dst}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
