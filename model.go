package letsched

import (
	"fmt"

	"go.uber.org/zap"

	"letsched/milp"
)

// Model is the mixed-integer program of one system together with the
// variable tables needed to read a schedule back out of a solution. All
// time coefficients are expressed in multiples of quantum.
type Model struct {
	problem   *milp.Problem
	goal      Goal
	horizon   Horizon
	quantum   int64
	tasks     []Task
	topo      *Topology
	instances []TaskInstances
	edges     []edge
	delays    [][]int64
	fixed     map[instanceRef][2]int64
	log       *zap.Logger

	assigned  map[taskCore]milp.Var
	start     map[instanceRef]milp.Var
	end       map[instanceRef]milp.Var
	psiCore   map[corePair]milp.Var
	psiTask   map[taskPair]milp.Var
	order     map[orderKey]milp.Var
	coreUsed  []milp.Var
	coresUsed milp.Var
	lambda    map[taskPair]milp.Var
	boolDep   map[depKey]milp.Var
	delay     map[depKey]milp.Var
	depKeys   []depKey
}

// BuildModel validates sys and turns it into a Model for opts.Goal.
func BuildModel(sys *System, opts Options) (*Model, error) {
	goal, err := ParseGoal(string(opts.Goal))
	if err != nil {
		return nil, err
	}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	h, err := ComputeHorizon(sys.EntityStore)
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	m := &Model{
		goal:      goal,
		horizon:   h,
		tasks:     sys.EntityStore,
		instances: ExpandInstances(sys.EntityStore, h),
		log:       log,
		assigned:  map[taskCore]milp.Var{},
		start:     map[instanceRef]milp.Var{},
		end:       map[instanceRef]milp.Var{},
		psiCore:   map[corePair]milp.Var{},
		psiTask:   map[taskPair]milp.Var{},
		order:     map[orderKey]milp.Var{},
		lambda:    map[taskPair]milp.Var{},
		boolDep:   map[depKey]milp.Var{},
		delay:     map[depKey]milp.Var{},
	}
	m.topo = newTopology(sys, opts.protocol(), h.LargeN, log)
	if goal == GoalEndToEnd {
		m.edges = sys.edges()
		m.delays = m.delayMatrix()
	}
	fixed := m.fixedTimings(sys, opts.FixedTimings)
	m.fixed = fixed
	m.quantum = m.timeQuantum(fixed)
	m.problem = milp.NewProblem(fmt.Sprintf("letsched_%s", goal))

	m.addAssignment()
	m.addTiming(fixed)
	m.addConflicts()
	m.addCoreUsage()
	if goal == GoalEndToEnd {
		m.addDependencies()
	}
	m.attachObjective()

	log.Info("model built",
		zap.String("goal", string(goal)),
		zap.Stringer("horizon", h),
		zap.Int64("quantum", m.quantum),
		zap.Int("tasks", len(m.tasks)),
		zap.Int("cores", m.topo.numCores()),
		zap.Int("instances", countInstances(m.instances)),
		zap.Int("variables", m.problem.NumVars()),
		zap.Int("constraints", m.problem.NumConstraints()),
	)
	return m, nil
}

func (m *Model) Problem() *milp.Problem { return m.problem }

func (m *Model) Horizon() Horizon { return m.horizon }

func (m *Model) Goal() Goal { return m.goal }

// Quantum is the time unit (ns) of every time coefficient in the problem.
func (m *Model) Quantum() int64 { return m.quantum }

// Instances returns the expanded instances, sentinels included.
func (m *Model) Instances() []TaskInstances { return m.instances }

func (m *Model) String() string {
	return fmt.Sprintf("model{%v, quantum %d, %v}", m.goal, m.quantum, m.problem)
}

// scale converts a time in ns into quantum units.
func (m *Model) scale(t int64) float64 {
	return float64(t / m.quantum)
}

func (m *Model) largeN() float64 { return m.scale(m.horizon.LargeN) }

// ------------------------------------------------------------------------------------------------
// PREPARATION
// ------------------------------------------------------------------------------------------------

func (m *Model) delayMatrix() [][]int64 {
	n := m.topo.numCores()
	out := make([][]int64, n)
	for a := 0; a < n; a++ {
		out[a] = make([]int64, n)
		for b := 0; b < n; b++ {
			out[a][b] = m.topo.delay(a, b)
		}
	}
	return out
}

// fixedTimings collects, per real instance, the start/end of the first
// execution interval recorded in the system's prior schedule.
func (m *Model) fixedTimings(sys *System, enabled bool) map[instanceRef][2]int64 {
	if !enabled || len(sys.EntityInstancesStore) == 0 {
		return nil
	}
	prior := make(map[string]TaskInstances, len(sys.EntityInstancesStore))
	for _, ti := range sys.EntityInstancesStore {
		prior[ti.Name] = ti
	}
	fixed := map[instanceRef][2]int64{}
	for i, ti := range m.instances {
		old, ok := prior[ti.Name]
		if !ok {
			continue
		}
		for _, inst := range ti.real() {
			was, ok := old.find(inst.Index)
			if !ok || len(was.ExecutionIntervals) == 0 {
				continue
			}
			iv := was.ExecutionIntervals[0]
			fixed[instanceRef{task: i, inst: inst.Index}] = [2]int64{iv.StartTime, iv.EndTime}
		}
	}
	m.log.Debug("fixed timings", zap.Int("instances", len(fixed)))
	return fixed
}

// timeQuantum is the gcd of every time constant that reaches the model.
// Window bounds, durations and delays are all multiples of it, so dividing
// by it keeps every integer schedule representable.
func (m *Model) timeQuantum(fixed map[instanceRef][2]int64) int64 {
	q := m.horizon.Makespan
	for _, t := range m.tasks {
		for _, v := range []int64{t.Period, t.Duration, t.Wcet, t.ActivationOffset, t.InitialOffset} {
			q = gcd(q, v)
		}
	}
	for _, se := range fixed {
		q = gcd(gcd(q, se[0]), se[1])
	}
	for _, row := range m.delays {
		for _, d := range row {
			q = gcd(q, d)
		}
	}
	if q <= 0 {
		q = 1
	}
	return q
}

// ------------------------------------------------------------------------------------------------
// VARIABLES AND CONSTRAINTS
// ------------------------------------------------------------------------------------------------

// addAssignment places every task on exactly one core, honouring pins.
func (m *Model) addAssignment() {
	for i, t := range m.tasks {
		row := milp.NewExpr()
		for c := 0; c < m.topo.numCores(); c++ {
			v := m.problem.AddVar("assigned_"+t.Name+"_"+m.coreName(c), milp.Binary, 0, 1)
			m.assigned[taskCore{task: i, core: c}] = v
			row = row.Plus(v, 1)
		}
		m.problem.AddConstraint("one_core_"+t.Name, row, milp.Equal, 1)

		if core, ok := pinned(t.Core); ok {
			c := m.topo.coreIdx[core]
			m.problem.AddConstraint("pin_core_"+t.Name, milp.Sum(m.assigned[taskCore{task: i, core: c}]), milp.Equal, 1)
		}
		if dev, ok := pinned(t.Device); ok {
			on := milp.NewExpr()
			for _, c := range m.topo.coresOnDevice(dev) {
				on = on.Plus(m.assigned[taskCore{task: i, core: c}], 1)
			}
			m.problem.AddConstraint("pin_device_"+t.Name, on, milp.Equal, 1)
		}
	}
}

// addTiming declares start/end per real instance: the execution lasts wcet
// inside the LET window, consecutive instances of a task do not overlap and
// fixed instances keep their recorded interval.
func (m *Model) addTiming(fixed map[instanceRef][2]int64) {
	horizon := m.largeN()
	for i, ti := range m.instances {
		t := m.tasks[i]
		var prev *Instance
		for k, inst := range ti.real() {
			ref := instanceRef{task: i, inst: inst.Index}
			name := m.instName(ref)
			s := m.problem.AddVar("start_"+name, milp.Integer, 0, horizon)
			e := m.problem.AddVar("end_"+name, milp.Integer, 0, horizon)
			m.start[ref], m.end[ref] = s, e

			m.problem.AddConstraint("exec_"+name, milp.NewExpr().Plus(e, 1).Plus(s, -1), milp.Equal, m.scale(t.Wcet))
			m.problem.AddConstraint("let_start_"+name, milp.Sum(s), milp.GreaterEq, m.scale(inst.LetStartTime))
			m.problem.AddConstraint("let_end_"+name, milp.Sum(e), milp.LessEq, m.scale(inst.LetEndTime))
			if se, ok := fixed[ref]; ok {
				m.problem.AddConstraint("fixed_start_"+name, milp.Sum(s), milp.Equal, m.scale(se[0]))
				m.problem.AddConstraint("fixed_end_"+name, milp.Sum(e), milp.Equal, m.scale(se[1]))
			}

			if prev != nil && prev.overlaps(inst) {
				before := instanceRef{task: i, inst: prev.Index}
				m.problem.AddConstraint("seq_"+m.instName(before),
					milp.NewExpr().Plus(m.end[before], 1).Plus(s, -1), milp.LessEq, 0)
			}
			prev = &ti.real()[k]
		}
	}
}

// psi returns the indicator that task x runs on core a and task y on core
// b, declaring it with its linearisation on first use.
func (m *Model) psi(x, a, y, b int) milp.Var {
	if x > y {
		x, a, y, b = y, b, x, a
	}
	key := corePair{x: x, a: a, y: y, b: b}
	if v, ok := m.psiCore[key]; ok {
		return v
	}
	name := m.taskName(x) + "_" + m.coreName(a) + "_" + m.taskName(y) + "_" + m.coreName(b)
	v := m.problem.AddVar("psi_task_core_"+name, milp.Binary, 0, 1)
	ax := m.assigned[taskCore{task: x, core: a}]
	by := m.assigned[taskCore{task: y, core: b}]
	m.problem.AddConstraint("psi_le_x_"+name, milp.NewExpr().Plus(v, 1).Plus(ax, -1), milp.LessEq, 0)
	m.problem.AddConstraint("psi_le_y_"+name, milp.NewExpr().Plus(v, 1).Plus(by, -1), milp.LessEq, 0)
	m.problem.AddConstraint("psi_ge_"+name, milp.NewExpr().Plus(v, 1).Plus(ax, -1).Plus(by, -1), milp.GreaterEq, -1)
	m.psiCore[key] = v
	return v
}

// sharesCore returns ψ_task(x, y), the indicator that x and y sit on the
// same core.
func (m *Model) sharesCore(x, y int) milp.Var {
	key := taskPair{x: x, y: y}
	if v, ok := m.psiTask[key]; ok {
		return v
	}
	name := m.taskName(x) + "_" + m.taskName(y)
	v := m.problem.AddVar("psi_tasks_"+name, milp.Binary, 0, 1)
	row := milp.NewExpr().Plus(v, 1)
	for c := 0; c < m.topo.numCores(); c++ {
		row = row.Plus(m.psi(x, c, y, c), -1)
	}
	m.problem.AddConstraint("psi_tasks_"+name, row, milp.Equal, 0)
	m.psiTask[key] = v
	return v
}

// addConflicts orders every pair of instances of different tasks whose LET
// windows overlap, whenever the two tasks share a core:
//
//	end_xi - start_yj <= N*b + N*(1 - ψ)
//	end_yj - start_xi <= N*(1 - b) + N*(1 - ψ)
func (m *Model) addConflicts() {
	N := m.largeN()
	for x := 0; x < len(m.tasks); x++ {
		for y := x + 1; y < len(m.tasks); y++ {
			for _, ix := range m.instances[x].real() {
				for _, jy := range m.instances[y].real() {
					if !ix.overlaps(jy) {
						continue
					}
					psi := m.sharesCore(x, y)
					rx := instanceRef{task: x, inst: ix.Index}
					ry := instanceRef{task: y, inst: jy.Index}
					name := m.instName(rx) + "_" + m.instName(ry)
					b := m.problem.AddVar("bool_task_"+name, milp.Binary, 0, 1)
					m.order[orderKey{x: x, i: ix.Index, y: y, j: jy.Index}] = b

					m.problem.AddConstraint("order_xy_"+name,
						milp.NewExpr().Plus(m.end[rx], 1).Plus(m.start[ry], -1).Plus(b, -N).Plus(psi, N),
						milp.LessEq, N)
					m.problem.AddConstraint("order_yx_"+name,
						milp.NewExpr().Plus(m.end[ry], 1).Plus(m.start[rx], -1).Plus(b, N).Plus(psi, N),
						milp.LessEq, 2*N)
				}
			}
		}
	}
	m.log.Debug("conflicts", zap.Int("pairs", len(m.psiTask)), zap.Int("orderings", len(m.order)))
}

// addCoreUsage ties u_c to whether any task is placed on core c and counts
// the used cores.
func (m *Model) addCoreUsage() {
	nCores := m.topo.numCores()
	total := milp.NewExpr()
	for c := 0; c < nCores; c++ {
		u := m.problem.AddVar("u_"+m.coreName(c), milp.Binary, 0, 1)
		m.coreUsed = append(m.coreUsed, u)
		used := milp.NewExpr().Plus(u, 1)
		for i := range m.tasks {
			a := m.assigned[taskCore{task: i, core: c}]
			used = used.Plus(a, -1)
			m.problem.AddConstraint("core_used_lb_"+m.coreName(c)+"_"+m.taskName(i),
				milp.NewExpr().Plus(u, 1).Plus(a, -1), milp.GreaterEq, 0)
		}
		m.problem.AddConstraint("core_used_ub_"+m.coreName(c), used, milp.LessEq, 0)
		total = total.Plus(u, 1)
	}
	m.coresUsed = m.problem.AddVar("cores_used", milp.Integer, 0, float64(nCores))
	m.problem.AddConstraint("cores_used", total.Plus(m.coresUsed, -1), milp.Equal, 0)
}

// addDependencies links every dependency edge to the instances that feed
// each consumer instance. For edge s -> d:
//
//	λ(s,d) = sum over core pairs of ψ(s,a,d,b) * delay(a,b)
//
// and for each real instance q of d exactly one candidate producer p is
// selected (the sentinel included) such that
//
//	letEnd_p + λ <= letStart_q + N*(1 - bool_dep)
//	delay_pq = letStart_q - letEnd_p when bool_dep = 1
func (m *Model) addDependencies() {
	N := m.largeN()
	for _, e := range m.edges {
		key := taskPair{x: e.src, y: e.dst}
		if _, dup := m.lambda[key]; dup {
			continue
		}
		name := m.taskName(e.src) + "_" + m.taskName(e.dst)
		maxDelay := 0.0
		row := milp.NewExpr()
		for a := 0; a < m.topo.numCores(); a++ {
			for b := 0; b < m.topo.numCores(); b++ {
				d := m.scale(m.delays[a][b])
				if d == 0 {
					continue
				}
				row = row.Plus(m.psi(e.src, a, e.dst, b), -d)
				if d > maxDelay {
					maxDelay = d
				}
			}
		}
		lambda := m.problem.AddVar("lambda_"+name, milp.Integer, 0, maxDelay)
		m.lambda[key] = lambda
		m.problem.AddConstraint("lambda_"+name, row.Plus(lambda, 1), milp.Equal, 0)

		for _, q := range m.instances[e.dst].real() {
			pick := milp.NewExpr()
			for _, p := range m.instances[e.src].Value {
				if p.LetEndTime > q.LetStartTime {
					continue
				}
				k := depKey{src: e.src, p: p.Index, dst: e.dst, q: q.Index}
				bd := m.problem.AddVar(m.depName("bool_dep", k), milp.Binary, 0, 1)
				dl := m.problem.AddVar(m.depName("delay", k), milp.Integer, 0, milp.Inf)
				m.boolDep[k], m.delay[k] = bd, dl
				m.depKeys = append(m.depKeys, k)
				pick = pick.Plus(bd, 1)

				gap := m.scale(q.LetStartTime) - m.scale(p.LetEndTime)
				m.problem.AddConstraint(m.depName("dep_timing", k),
					milp.NewExpr().Plus(lambda, 1).Plus(bd, N), milp.LessEq, N+gap)
				m.problem.AddConstraint(m.depName("delay_lb", k),
					milp.NewExpr().Plus(dl, 1).Plus(bd, -2*N), milp.GreaterEq, gap-2*N)
				m.problem.AddConstraint(m.depName("delay_ub", k),
					milp.NewExpr().Plus(dl, 1).Plus(bd, 2*N), milp.LessEq, gap+2*N)
			}
			m.problem.AddConstraint("dep_select_"+name+"_"+instLabel(q.Index), pick, milp.Equal, 1)
		}
	}
	m.log.Debug("dependencies", zap.Int("edges", len(m.lambda)), zap.Int("candidates", len(m.depKeys)))
}
