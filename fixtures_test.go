package letsched

import (
	"github.com/markphelps/optional"
)

const ms = MS

func newTask(name string, period, duration, wcet int64) Task {
	return Task{Name: name, Period: period, Duration: duration, Wcet: wcet}
}

func pinnedTo(t Task, core string) Task {
	t.Core = optional.NewString(core)
	return t
}

func onDevice(t Task, dev string) Task {
	t.Device = optional.NewString(dev)
	return t
}

func dependsOn(src, dst string) Dependency {
	return Dependency{
		Name:        src + "-" + dst,
		Source:      Endpoint{Task: src, Port: "out1"},
		Destination: Endpoint{Task: dst, Port: "in1"},
	}
}

// newTestSystem puts nCores cores on each of the named devices and links
// every ordered device pair with wcdt linkDelay; each device adds
// protoDelay for tcp.
func newTestSystem(devices []string, nCores int, linkDelay, protoDelay int64, tasks ...Task) *System {
	sys := &System{EntityStore: tasks}
	for _, d := range devices {
		sys.DeviceStore = append(sys.DeviceStore, Device{
			Name:   d,
			Delays: []ProtocolDelay{{Protocol: DEFAULT_PROTOCOL, Wcdt: protoDelay}},
		})
		for c := 0; c < nCores; c++ {
			sys.CoreStore = append(sys.CoreStore, Core{Name: d + "c" + string(rune('1'+c)), Device: d})
		}
	}
	for _, src := range devices {
		for _, dst := range devices {
			if src == dst {
				continue
			}
			sys.NetworkDelayStore = append(sys.NetworkDelayStore, NetworkDelay{
				Name: src + "-to-" + dst, Source: src, Dest: dst, Wcdt: linkDelay,
			})
		}
	}
	return sys
}
