package milp

import "math"

const (
	INTEGRALITY_TOL    = 1e-6
	FEASIBILITY_TOL    = 1e-6
	PROPAGATION_ROUNDS = 25
)

// leRow is one side of a constraint written as sum(coef*x) <= rhs. Equalities
// contribute two rows, >= rows are negated.
type leRow struct {
	con   int
	terms []Term
	rhs   float64
}

func (p *Problem) leRows() []leRow {
	rows := make([]leRow, 0, len(p.cons))
	for i, c := range p.cons {
		if c.Sense == LessEq || c.Sense == Equal {
			rows = append(rows, leRow{con: i, terms: c.Terms, rhs: c.RHS})
		}
		if c.Sense == GreaterEq || c.Sense == Equal {
			neg := make([]Term, len(c.Terms))
			for k, t := range c.Terms {
				neg[k] = Term{Var: t.Var, Coef: -t.Coef}
			}
			rows = append(rows, leRow{con: i, terms: neg, rhs: -c.RHS})
		}
	}
	return rows
}

// termMin is the smallest value coef*x takes over [lower, upper]; inf is set
// when that value is -Inf.
func termMin(t Term, lower, upper []float64) (val float64, inf bool) {
	b := lower[t.Var]
	if t.Coef < 0 {
		b = upper[t.Var]
	}
	if math.IsInf(b, 0) {
		return 0, true
	}
	return t.Coef * b, false
}

func termMax(t Term, lower, upper []float64) (val float64, inf bool) {
	b := upper[t.Var]
	if t.Coef < 0 {
		b = lower[t.Var]
	}
	if math.IsInf(b, 0) {
		return 0, true
	}
	return t.Coef * b, false
}

// minActivity returns the finite part of the row minimum and how many terms
// are unbounded below.
func minActivity(terms []Term, lower, upper []float64) (float64, int) {
	sum, nInf := 0.0, 0
	for _, t := range terms {
		v, inf := termMin(t, lower, upper)
		if inf {
			nInf++
			continue
		}
		sum += v
	}
	return sum, nInf
}

func maxActivity(terms []Term, lower, upper []float64) (float64, int) {
	sum, nInf := 0.0, 0
	for _, t := range terms {
		v, inf := termMax(t, lower, upper)
		if inf {
			nInf++
			continue
		}
		sum += v
	}
	return sum, nInf
}

func tolerance(b float64) float64 {
	return FEASIBILITY_TOL * (1 + math.Abs(b))
}

func tightensUpper(old, new float64) bool {
	if math.IsInf(old, 1) {
		return !math.IsInf(new, 1)
	}
	return new < old-1e-7*(1+math.Abs(old))
}

func tightensLower(old, new float64) bool {
	if math.IsInf(old, -1) {
		return !math.IsInf(new, -1)
	}
	return new > old+1e-7*(1+math.Abs(old))
}

// propagate tightens lower/upper in place from the rows' activity bounds,
// rounding bounds of integral variables. It returns false when the box is
// proven empty.
func propagate(rows []leRow, kinds []VarKind, lower, upper []float64) bool {
	for j := range lower {
		if lower[j] > upper[j]+tolerance(upper[j]) {
			return false
		}
	}
	for round := 0; round < PROPAGATION_ROUNDS; round++ {
		changed := false
		for _, r := range rows {
			minAct, nInf := minActivity(r.terms, lower, upper)
			if nInf == 0 && minAct > r.rhs+tolerance(r.rhs) {
				return false
			}
			if nInf > 1 {
				continue
			}
			for _, t := range r.terms {
				contrib, inf := termMin(t, lower, upper)
				residual := minAct
				switch {
				case inf:
				case nInf == 1:
					continue
				default:
					residual -= contrib
				}
				j := t.Var
				bound := (r.rhs - residual) / t.Coef
				if t.Coef > 0 {
					if kinds[j].integral() {
						bound = math.Floor(bound + INTEGRALITY_TOL)
					}
					if tightensUpper(upper[j], bound) {
						upper[j] = bound
						changed = true
					}
				} else {
					if kinds[j].integral() {
						bound = math.Ceil(bound - INTEGRALITY_TOL)
					}
					if tightensLower(lower[j], bound) {
						lower[j] = bound
						changed = true
					}
				}
				if lower[j] > upper[j]+tolerance(upper[j]) {
					return false
				}
			}
		}
		if !changed {
			break
		}
	}
	for j := range lower {
		if lower[j] > upper[j] {
			upper[j] = lower[j]
		}
	}
	return true
}
