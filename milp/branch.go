package milp

import (
	"context"
	"math"
	"runtime"
	"time"

	"gonum.org/v1/gonum/optimize/convex/lp"

	"go.uber.org/zap"
)

const (
	CHECK_TOL         = 1e-6
	HEAP_SAMPLE_EVERY = 256
)

// BranchAndBound is a depth-first branch-and-bound solver. Every node
// propagates bounds, solves its LP relaxation with gonum's simplex and
// branches on the most fractional integral variable.
type BranchAndBound struct {
	log     *zap.Logger
	simplex simplexFunc
}

func NewBranchAndBound(log *zap.Logger) *BranchAndBound {
	if log == nil {
		log = zap.NewNop()
	}
	return &BranchAndBound{log: log, simplex: lp.Simplex}
}

type search struct {
	p           *Problem
	rows        []leRow
	kinds       []VarKind
	objCoef     []float64
	integralObj bool
	log         *zap.Logger
	ctx         context.Context
	lpSolve     simplexFunc

	diag         Diagnostics
	incumbent    []float64
	incumbentObj float64
	incomplete   bool
}

func newSearch(ctx context.Context, p *Problem, log *zap.Logger, lpSolve simplexFunc) *search {
	s := &search{
		ctx:         ctx,
		lpSolve:     lpSolve,
		p:           p,
		rows:        p.leRows(),
		kinds:       make([]VarKind, p.NumVars()),
		objCoef:     make([]float64, p.NumVars()),
		integralObj: p.integralObjective(),
		log:         log,
		diag: Diagnostics{
			Variables:   p.NumVars(),
			Constraints: p.NumConstraints(),
			Integers:    p.NumIntegers(),
		},
	}
	for i, v := range p.vars {
		s.kinds[i] = v.Kind
	}
	for _, t := range p.objective.Terms {
		s.objCoef[t.Var] += t.Coef
	}
	return s
}

func (bb *BranchAndBound) Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error) {
	start := time.Now()
	var cancel context.CancelFunc
	if opts.TimeLimit > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	s := newSearch(ctx, p, bb.log, bb.simplex)

	if opts.Start != nil && !expired(ctx) {
		s.offerStart(opts.Start)
	}

	root := &node{
		lower: make([]float64, p.NumVars()),
		upper: make([]float64, p.NumVars()),
		bound: math.Inf(-1),
	}
	for i, v := range p.vars {
		root.lower[i], root.upper[i] = v.Lower, v.Upper
	}

	queue := newNodeQueue()
	queue.enq(root)
	stopped, unbounded := false, false
search:
	for queue.qlen() > 0 {
		if expired(ctx) || (opts.MaxNodes > 0 && s.diag.Nodes >= opts.MaxNodes) {
			stopped = true
			break
		}
		n := queue.deq()
		if !s.promising(n.bound) {
			continue
		}
		s.diag.Nodes++
		if s.diag.Nodes%HEAP_SAMPLE_EVERY == 1 {
			s.sampleHeap()
		}
		if !propagate(s.rows, s.kinds, n.lower, n.upper) {
			continue
		}
		rel := s.relax(n.lower, n.upper)
		switch rel.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			unbounded = true
		case lpStopped:
			stopped = true
			break search
		case lpFailed:
			s.diag.LPFailures++
			s.log.Debug("lp relaxation failed", zap.Int("node", s.diag.Nodes), zap.Int("depth", n.depth), zap.Error(rel.err))
			s.splitDomain(queue, n, n.bound)
			continue
		}
		if unbounded {
			break
		}
		if !s.promising(rel.obj) {
			continue
		}
		j := s.branchVariable(rel.x)
		if j < 0 {
			if !s.offer(rel.x) {
				s.splitDomain(queue, n, rel.obj)
			}
			continue
		}
		v := rel.x[j]
		down := n.child(j, n.lower[j], math.Floor(v), rel.obj)
		up := n.child(j, math.Ceil(v), n.upper[j], rel.obj)
		if v-math.Floor(v) >= 0.5 {
			queue.enq(down)
			queue.enq(up)
		} else {
			queue.enq(up)
			queue.enq(down)
		}
	}
	s.sampleHeap()

	sol := &Solution{WallTime: time.Since(start), Diagnostics: s.diag}
	switch {
	case unbounded:
		sol.Status = StatusUnbounded
	case stopped || s.incomplete:
		sol.Status = StatusTimeLimitNoSolution
		if s.incumbent != nil {
			sol.Status = StatusTimeLimitFeasible
		}
	case s.incumbent != nil:
		sol.Status = StatusOptimal
	default:
		sol.Status = StatusInfeasible
	}
	if sol.Status.HasSolution() {
		sol.Values = s.incumbent
		sol.Objective = s.incumbentObj
	}
	bb.log.Info("branch and bound finished",
		zap.String("problem", p.Name),
		zap.Stringer("status", sol.Status),
		zap.Float64("objective", sol.Objective),
		zap.Duration("wall", sol.WallTime),
		zap.Int("nodes", s.diag.Nodes),
		zap.Int("lp_solves", s.diag.LPSolves),
		zap.Int("lp_failures", s.diag.LPFailures),
		zap.Bool("stopped", stopped),
	)
	return sol, nil
}

func expired(ctx context.Context) bool {
	return ctx.Err() != nil
}

// promising reports whether a node with the given relaxation bound can still
// beat the incumbent.
func (s *search) promising(bound float64) bool {
	if s.incumbent == nil || math.IsInf(bound, -1) {
		return true
	}
	if s.integralObj {
		return bound <= s.incumbentObj-1+INTEGRALITY_TOL
	}
	return bound < s.incumbentObj-1e-9*(1+math.Abs(s.incumbentObj))
}

// branchVariable picks the integral variable farthest from an integer, or
// -1 when x is integral.
func (s *search) branchVariable(x []float64) int {
	best, bestFrac := -1, INTEGRALITY_TOL
	for j, v := range x {
		if !s.kinds[j].integral() {
			continue
		}
		frac := math.Abs(v - math.Round(v))
		if frac > bestFrac {
			best, bestFrac = j, frac
		}
	}
	return best
}

// offer rounds the integral variables of x and keeps it as the incumbent if
// it is feasible for the original problem and improves the objective.
func (s *search) offer(x []float64) bool {
	cand := make([]float64, len(x))
	for j, v := range x {
		cand[j] = v
		if s.kinds[j].integral() {
			cand[j] = math.Round(v)
		}
	}
	if viol := Check(s.p, cand, CHECK_TOL); len(viol) > 0 {
		s.log.Debug("rounded relaxation rejected", zap.Int("violations", len(viol)), zap.Stringer("first", viol[0]))
		return false
	}
	obj := s.p.ObjectiveValue(cand)
	if s.incumbent == nil || obj < s.incumbentObj-1e-9*(1+math.Abs(s.incumbentObj)) {
		s.incumbent, s.incumbentObj = cand, obj
		s.log.Debug("new incumbent", zap.Float64("objective", obj), zap.Int("node", s.diag.Nodes))
	}
	return true
}

// offerStart seeds the incumbent with a caller supplied point.
func (s *search) offerStart(x []float64) {
	if len(x) != s.p.NumVars() {
		s.log.Warn("start point ignored", zap.Int("len", len(x)), zap.Int("variables", s.p.NumVars()))
		return
	}
	if !s.offer(x) {
		s.log.Info("start point rejected")
		return
	}
	s.log.Info("start point accepted", zap.Float64("objective", s.incumbentObj))
}

// splitDomain branches without relaxation guidance by halving the domain of
// the first unfixed integral variable. With none left the node is dropped
// and the search can no longer prove optimality.
func (s *search) splitDomain(queue *nodeQueue, n *node, bound float64) {
	for j, k := range s.kinds {
		if !k.integral() || n.upper[j]-n.lower[j] < 1 || math.IsInf(n.lower[j], 0) || math.IsInf(n.upper[j], 0) {
			continue
		}
		mid := math.Floor((n.lower[j] + n.upper[j]) / 2)
		queue.enq(n.child(j, mid+1, n.upper[j], bound))
		queue.enq(n.child(j, n.lower[j], mid, bound))
		return
	}
	s.incomplete = true
}

func (s *search) sampleHeap() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc > s.diag.PeakHeapBytes {
		s.diag.PeakHeapBytes = ms.HeapAlloc
	}
}
