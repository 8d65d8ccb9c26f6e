package letsched

import (
	"fmt"
	"strconv"

	"github.com/markphelps/optional"
)

// ------------------------------------------------------------------------------------------------
// TASKS
// ------------------------------------------------------------------------------------------------

// SYSTEM_TASK names the outside world in dependency documents; edges touching
// it carry no scheduling constraint.
const SYSTEM_TASK = "__system"

// Task is a periodic activity. All times are integer nanoseconds.
type Task struct {
	Name             string          `json:"name"`
	Type             string          `json:"type,omitempty"`
	Period           int64           `json:"period"`
	Duration         int64           `json:"duration"`
	Wcet             int64           `json:"wcet"`
	Acet             int64           `json:"acet,omitempty"`
	Bcet             int64           `json:"bcet,omitempty"`
	ActivationOffset int64           `json:"activationOffset"`
	InitialOffset    int64           `json:"initialOffset"`
	Core             optional.String `json:"core"`
	Device           optional.String `json:"device"`
	Distribution     string          `json:"distribution,omitempty"`
	Inputs           []string        `json:"inputs,omitempty"`
	Outputs          []string        `json:"outputs,omitempty"`
	Priority         *int            `json:"priority"`
}

func (t Task) String() string {
	str := t.Name + ": period " + strconv.FormatInt(t.Period, 10) +
		", duration " + strconv.FormatInt(t.Duration, 10) +
		", wcet " + strconv.FormatInt(t.Wcet, 10) +
		", offsets " + strconv.FormatInt(t.InitialOffset, 10) + "/" + strconv.FormatInt(t.ActivationOffset, 10)
	if core, ok := pinned(t.Core); ok {
		str += ", core " + core
	}
	if dev, ok := pinned(t.Device); ok {
		str += ", device " + dev
	}
	return str
}

func (t Task) Utilisation() float64 {
	return float64(t.Wcet) / float64(t.Period)
}

// validate checks a single task in isolation.
func (t Task) validate() error {
	switch {
	case t.Name == "":
		return invalidf(ErrInvalidTask, "task without a name")
	case t.Name == SYSTEM_TASK:
		return invalidf(ErrInvalidTask, "%s is reserved", SYSTEM_TASK)
	case t.Period <= 0:
		return invalidf(ErrInvalidTask, "task %s: period %d must be positive", t.Name, t.Period)
	case t.Wcet < 0:
		return invalidf(ErrInvalidTask, "task %s: negative wcet %d", t.Name, t.Wcet)
	case t.Duration < t.Wcet:
		return invalidf(ErrInvalidTask, "task %s: wcet %d exceeds duration %d", t.Name, t.Wcet, t.Duration)
	case t.Duration > t.Period:
		return invalidf(ErrInvalidTask, "task %s: duration %d exceeds period %d", t.Name, t.Duration, t.Period)
	case t.ActivationOffset < 0 || t.InitialOffset < 0:
		return invalidf(ErrInvalidTask, "task %s: negative offset", t.Name)
	}
	return nil
}

// ------------------------------------------------------------------------------------------------
// INSTANCES
// ------------------------------------------------------------------------------------------------

const SENTINEL_INSTANCE = -1

type ExecutionInterval struct {
	Core      string `json:"core"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// Instance is one activation of a task. The sentinel instance (-1) sits far
// before time zero and stands in for "no predecessor instance".
type Instance struct {
	Index              int                 `json:"instance"`
	PeriodStartTime    int64               `json:"periodStartTime"`
	PeriodEndTime      int64               `json:"periodEndTime"`
	LetStartTime       int64               `json:"letStartTime"`
	LetEndTime         int64               `json:"letEndTime"`
	ExecutionTime      int64               `json:"executionTime"`
	CurrentCore        *Core               `json:"currentCore,omitempty"`
	ExecutionIntervals []ExecutionInterval `json:"executionIntervals,omitempty"`
}

func (i Instance) String() string {
	str := fmt.Sprintf("#%d let [%d, %d]", i.Index, i.LetStartTime, i.LetEndTime)
	for _, iv := range i.ExecutionIntervals {
		str += fmt.Sprintf(" on %s [%d, %d]", iv.Core, iv.StartTime, iv.EndTime)
	}
	return str
}

func (i Instance) IsSentinel() bool {
	return i.Index == SENTINEL_INSTANCE
}

// overlaps reports whether the two LET windows share an open interval.
func (i Instance) overlaps(o Instance) bool {
	return i.LetStartTime < o.LetEndTime && o.LetStartTime < i.LetEndTime
}

// TaskInstances lists the instances of one task, in the shape of the
// EntityInstancesStore document section.
type TaskInstances struct {
	Name          string     `json:"name"`
	Type          string     `json:"type,omitempty"`
	InitialOffset int64      `json:"initialOffset"`
	Value         []Instance `json:"value"`
}

func (ti TaskInstances) String() string {
	str := ti.Name + ":\n"
	for _, inst := range ti.Value {
		str += "    " + inst.String() + "\n"
	}
	return str
}

// real returns the instances without the sentinel.
func (ti TaskInstances) real() []Instance {
	if len(ti.Value) > 0 && ti.Value[0].IsSentinel() {
		return ti.Value[1:]
	}
	return ti.Value
}

func (ti TaskInstances) find(index int) (Instance, bool) {
	for _, inst := range ti.Value {
		if inst.Index == index {
			return inst, true
		}
	}
	return Instance{}, false
}

// pinned unwraps an optional placement; an empty name counts as unset.
func pinned(o optional.String) (string, bool) {
	v, err := o.Get()
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}
