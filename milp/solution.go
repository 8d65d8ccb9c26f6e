package milp

import (
	"context"
	"fmt"
	"math"
	"time"
)

type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	StatusInfeasible
	StatusTimeLimitFeasible
	StatusTimeLimitNoSolution
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusNotSolved:
		return "NotSolved"
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusTimeLimitFeasible:
		return "TimeLimitFeasible"
	case StatusTimeLimitNoSolution:
		return "TimeLimitNoSolution"
	case StatusUnbounded:
		return "Unbounded"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// HasSolution reports whether a solution with this status carries variable
// values.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusTimeLimitFeasible
}

type Diagnostics struct {
	Variables     int
	Constraints   int
	Integers      int
	Nodes         int
	LPSolves      int
	LPFailures    int
	PeakHeapBytes uint64
}

func (d Diagnostics) String() string {
	return fmt.Sprintf("vars=%d cons=%d ints=%d nodes=%d lps=%d lpfail=%d heap=%dB",
		d.Variables, d.Constraints, d.Integers, d.Nodes, d.LPSolves, d.LPFailures, d.PeakHeapBytes)
}

type Solution struct {
	Status      Status
	Objective   float64
	WallTime    time.Duration
	Values      []float64 // nil unless Status.HasSolution()
	Diagnostics Diagnostics
}

func (s *Solution) String() string {
	return fmt.Sprintf("%v obj=%v in %v (%v)", s.Status, s.Objective, s.WallTime, s.Diagnostics)
}

func (s *Solution) Value(v Var) (float64, bool) {
	if s.Values == nil || int(v) >= len(s.Values) {
		return 0, false
	}
	return s.Values[v], true
}

func (s *Solution) IntValue(v Var) (int64, bool) {
	val, ok := s.Value(v)
	if !ok {
		return 0, false
	}
	return int64(math.Round(val)), true
}

type Options struct {
	TimeLimit time.Duration // 0 means no limit
	MaxNodes  int           // 0 means no limit

	// Start is a candidate point offered before the search, ignored when nil.
	Start []float64
}

type Solver interface {
	Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error)
}
