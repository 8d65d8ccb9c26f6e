package letsched

import (
	"fmt"

	"go.uber.org/zap"
)

type devicePair struct {
	src, dst string
}

// Topology indexes the cores, devices and links of a system for delay
// lookups between cores.
type Topology struct {
	cores    []Core
	coreIdx  map[string]int
	devices  map[string]*Device
	links    map[devicePair]NetworkDelay
	protocol string
	largeN   int64
	log      *zap.Logger
	warned   map[string]bool
}

func newTopology(sys *System, protocol string, largeN int64, log *zap.Logger) *Topology {
	tp := &Topology{
		cores:    sys.CoreStore,
		coreIdx:  make(map[string]int, len(sys.CoreStore)),
		devices:  make(map[string]*Device, len(sys.DeviceStore)),
		links:    make(map[devicePair]NetworkDelay, len(sys.NetworkDelayStore)),
		protocol: protocol,
		largeN:   largeN,
		log:      log,
		warned:   map[string]bool{},
	}
	for i, c := range sys.CoreStore {
		tp.coreIdx[c.Name] = i
	}
	for i := range sys.DeviceStore {
		tp.devices[sys.DeviceStore[i].Name] = &sys.DeviceStore[i]
	}
	for _, l := range sys.NetworkDelayStore {
		key := devicePair{src: l.Source, dst: l.Dest}
		if _, dup := tp.links[key]; !dup {
			tp.links[key] = l
		}
	}
	return tp
}

func (tp *Topology) String() string {
	str := "cores: \n"
	for _, c := range tp.cores {
		str += "    " + c.String() + "\n"
	}
	str += fmt.Sprintf("links: %d, protocol: %s", len(tp.links), tp.protocol)
	return str
}

func (tp *Topology) numCores() int { return len(tp.cores) }

func (tp *Topology) core(i int) Core { return tp.cores[i] }

// coresOnDevice returns the indices of the cores hosted by dev.
func (tp *Topology) coresOnDevice(dev string) []int {
	var out []int
	for i, c := range tp.cores {
		if c.Device == dev {
			out = append(out, i)
		}
	}
	return out
}

// delay is the worst-case communication delay from core a to core b: zero on
// the same device, otherwise the link wcdt plus the protocol overhead of both
// devices. A missing link costs largeN.
func (tp *Topology) delay(a, b int) int64 {
	src, dst := tp.cores[a].Device, tp.cores[b].Device
	if src == dst {
		return 0
	}
	link, ok := tp.links[devicePair{src: src, dst: dst}]
	if !ok {
		tp.warnOnce("link:"+src+"->"+dst, "no network link between devices, using largeN",
			zap.String("source", src), zap.String("dest", dst), zap.Int64("largeN", tp.largeN))
		return tp.largeN
	}
	return link.Wcdt + tp.protocolDelay(src) + tp.protocolDelay(dst)
}

func (tp *Topology) protocolDelay(dev string) int64 {
	if d, ok := tp.devices[dev]; ok {
		for _, pd := range d.Delays {
			if pd.Protocol == tp.protocol {
				return pd.Wcdt
			}
		}
	}
	tp.warnOnce("protocol:"+dev, "device has no delay record for protocol, using 0",
		zap.String("device", dev), zap.String("protocol", tp.protocol))
	return 0
}

func (tp *Topology) warnOnce(key, msg string, fields ...zap.Field) {
	if tp.warned[key] {
		return
	}
	tp.warned[key] = true
	tp.log.Warn(msg, fields...)
}
