package milp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"go.uber.org/zap"
)

const (
	SIMPLEX_TOL     = 1e-9
	FIXED_TOL       = 1e-9
	ZERO_TOL        = 1e-9
	BIG_M           = 1e4
	BIG_M_GROWTH    = 1e3
	BIG_M_TRIES     = 3
	SCALE_PASSES    = 8
	PHASE1_MAX_ROWS = 400
)

var errLPStopped = errors.New("milp: lp abandoned at the deadline")

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpFailed
	lpStopped
)

func (s lpStatus) String() string {
	return [...]string{"optimal", "infeasible", "unbounded", "failed", "stopped"}[s]
}

type relaxation struct {
	status lpStatus
	x      []float64
	obj    float64
	err    error
}

// column of the standard form; the model variable is x[v] = offset[v] + sign*x'.
type column struct {
	v    int
	sign float64
	ub   float64
}

type stdRow struct {
	coef map[int]float64 // column -> coefficient
	rhs  float64
}

// relax solves the LP relaxation of the problem restricted to [lower, upper].
// Fixed variables are substituted, rows that cannot bind inside the box are
// dropped, the rest is shifted onto x' >= 0 and handed to lp.Simplex with
// one slack per row.
func (s *search) relax(lower, upper []float64) relaxation {
	n := len(lower)
	x := make([]float64, n)
	free := make([]bool, n)
	for j := 0; j < n; j++ {
		if upper[j]-lower[j] <= FIXED_TOL*(1+math.Abs(lower[j])) {
			x[j] = lower[j]
			if s.kinds[j].integral() {
				x[j] = math.Round(x[j])
			}
			continue
		}
		free[j] = true
	}

	// rows restricted to the free variables
	type keptRow struct {
		terms []Term
		rhs   float64
	}
	var kept []keptRow
	inRow := make([]bool, n)
	for _, r := range s.rows {
		rhs := r.rhs
		terms := make([]Term, 0, len(r.terms))
		for _, t := range r.terms {
			if free[t.Var] {
				terms = append(terms, t)
			} else {
				rhs -= t.Coef * x[t.Var]
			}
		}
		if len(terms) == 0 {
			if rhs < -tolerance(rhs) {
				return relaxation{status: lpInfeasible}
			}
			continue
		}
		if maxAct, nInf := maxActivity(terms, lower, upper); nInf == 0 && maxAct <= rhs+1e-9*(1+math.Abs(rhs)) {
			continue
		}
		for _, t := range terms {
			inRow[t.Var] = true
		}
		kept = append(kept, keptRow{terms: terms, rhs: rhs})
	}

	// free variables outside every row sit at their best bound
	offset := make([]float64, n)
	colsOf := make([][]int, n)
	var cols []column
	for j := 0; j < n; j++ {
		if !free[j] {
			continue
		}
		c := s.objCoef[j]
		if !inRow[j] {
			switch {
			case c > 0 && math.IsInf(lower[j], -1), c < 0 && math.IsInf(upper[j], 1):
				return relaxation{status: lpUnbounded}
			case c > 0:
				x[j] = lower[j]
			case c < 0:
				x[j] = upper[j]
			case !math.IsInf(lower[j], -1):
				x[j] = lower[j]
			case !math.IsInf(upper[j], 1):
				x[j] = upper[j]
			}
			continue
		}
		switch {
		case !math.IsInf(lower[j], -1):
			offset[j] = lower[j]
			colsOf[j] = []int{len(cols)}
			cols = append(cols, column{v: j, sign: 1, ub: upper[j] - lower[j]})
		case !math.IsInf(upper[j], 1):
			offset[j] = upper[j]
			colsOf[j] = []int{len(cols)}
			cols = append(cols, column{v: j, sign: -1, ub: math.Inf(1)})
		default:
			colsOf[j] = []int{len(cols), len(cols) + 1}
			cols = append(cols, column{v: j, sign: 1, ub: math.Inf(1)}, column{v: j, sign: -1, ub: math.Inf(1)})
		}
	}

	rows := make([]stdRow, 0, len(kept)+len(cols))
	implied := make([]bool, len(cols))
	for _, kr := range kept {
		row := stdRow{coef: make(map[int]float64, len(kr.terms)), rhs: kr.rhs}
		allShifted := true
		for _, t := range kr.terms {
			row.rhs -= t.Coef * offset[t.Var]
			for _, k := range colsOf[t.Var] {
				row.coef[k] += t.Coef * cols[k].sign
			}
			if t.Coef < 0 || len(colsOf[t.Var]) != 1 || cols[colsOf[t.Var][0]].sign < 0 {
				allShifted = false
			}
		}
		// with every coefficient positive on x' >= 0 columns, the row caps
		// each column at rhs/coef
		if allShifted {
			for _, t := range kr.terms {
				k := colsOf[t.Var][0]
				if row.rhs/t.Coef <= cols[k].ub+1e-9 {
					implied[k] = true
				}
			}
		}
		rows = append(rows, row)
	}
	for k, c := range cols {
		if math.IsInf(c.ub, 1) || implied[k] {
			continue
		}
		rows = append(rows, stdRow{coef: map[int]float64{k: 1}, rhs: c.ub})
	}

	if len(rows) == 0 {
		for j := 0; j < n; j++ {
			if free[j] && inRow[j] {
				x[j] = offset[j]
			}
		}
		return relaxation{status: lpOptimal, x: x, obj: s.p.ObjectiveValue(x)}
	}

	xs, st, err := s.simplex(cols, rows)
	if st != lpOptimal {
		return relaxation{status: st, err: err}
	}
	for j := 0; j < n; j++ {
		if free[j] && inRow[j] {
			x[j] = offset[j]
		}
	}
	for k, c := range cols {
		x[c.v] += c.sign * xs[k]
	}
	for j := 0; j < n; j++ {
		if free[j] {
			x[j] = math.Min(math.Max(x[j], lower[j]), upper[j])
		}
	}
	return relaxation{status: lpOptimal, x: x, obj: s.p.ObjectiveValue(x)}
}

// equilibrate rescales the standard form in place so the largest
// coefficient of every row and column is close to 1. Bounded columns are
// first measured as fractions of their range, which takes big-M rows and
// time variables to the same magnitude. It returns the column factors:
// x'[k] = scale[k] * y[k].
func equilibrate(cols []column, rows []stdRow) []float64 {
	scale := make([]float64, len(cols))
	for k, c := range cols {
		scale[k] = 1
		if !math.IsInf(c.ub, 1) && c.ub > 1 {
			scale[k] = c.ub
		}
	}
	for _, r := range rows {
		for k := range r.coef {
			r.coef[k] *= scale[k]
		}
	}

	colMax := make([]float64, len(cols))
	for pass := 0; pass <= SCALE_PASSES; pass++ {
		last := pass == SCALE_PASSES
		for i := range rows {
			rowMax := 0.0
			for _, a := range rows[i].coef {
				rowMax = math.Max(rowMax, math.Abs(a))
			}
			if rowMax == 0 {
				continue
			}
			f := 1 / math.Sqrt(rowMax)
			if last {
				f = 1 / rowMax
			}
			for k := range rows[i].coef {
				rows[i].coef[k] *= f
			}
			rows[i].rhs *= f
		}
		if last {
			break
		}
		for k := range colMax {
			colMax[k] = 0
		}
		for _, r := range rows {
			for k, a := range r.coef {
				colMax[k] = math.Max(colMax[k], math.Abs(a))
			}
		}
		for k, cm := range colMax {
			if cm > 0 {
				scale[k] /= math.Sqrt(cm)
			}
		}
		for _, r := range rows {
			for k := range r.coef {
				if colMax[k] > 0 {
					r.coef[k] /= math.Sqrt(colMax[k])
				}
			}
		}
	}
	return scale
}

// simplex assembles A y = b with one slack per row on the equilibrated
// form. When some right hand sides are negative a single artificial column
// joins the basis in place of the most violated row's slack; with it and
// the remaining slacks at 1 the start is feasible. A basis that turns
// singular on the way is retried from scratch with gonum's own phase 1.
func (s *search) simplex(cols []column, rows []stdRow) ([]float64, lpStatus, error) {
	ns, m := len(cols), len(rows)
	scale := equilibrate(cols, rows)

	r := -1
	for i := range rows {
		if math.Abs(rows[i].rhs) <= ZERO_TOL {
			rows[i].rhs = 0
		}
		if rows[i].rhs < 0 && (r < 0 || rows[i].rhs < rows[r].rhs) {
			r = i
		}
	}
	nCols := ns + m
	if r >= 0 {
		nCols++
	}
	A := mat.NewDense(m, nCols, nil)
	b := make([]float64, m)
	basis := make([]int, m)
	for i, row := range rows {
		for k, a := range row.coef {
			A.Set(i, k, a)
		}
		A.Set(i, ns+i, 1)
		b[i] = row.rhs
		basis[i] = ns + i
	}

	c := make([]float64, nCols)
	for k, col := range cols {
		c[k] = s.objCoef[col.v] * col.sign * scale[k]
	}
	if maxC := floats.Norm(c, math.Inf(1)); maxC > 0 {
		floats.Scale(1/maxC, c)
	}

	var (
		xs  []float64
		st  lpStatus
		err error
	)
	if r < 0 {
		xs, st, err = s.classify(s.runSimplex(c, A, b, basis))
	} else {
		art := ns + m
		for i := range rows {
			if i != r {
				A.Set(i, art, b[i]-1)
			}
		}
		A.Set(r, art, b[r])
		basis[r] = art
		xs, st, err = s.penalised(c, A, b, basis, art)
	}
	if st == lpFailed && m <= PHASE1_MAX_ROWS {
		s.log.Debug("retrying lp without a starting basis", zap.Int("rows", m), zap.Error(err))
		xs, st, err = s.classify(s.runSimplex(c[:ns+m], A.Slice(0, m, 0, ns+m), b, nil))
	}
	if st != lpOptimal {
		return nil, st, err
	}
	out := make([]float64, ns)
	for k := range out {
		out[k] = xs[k] * scale[k]
	}
	return out, lpOptimal, nil
}

// penalised prices the artificial column at a big-M cost. If it stays
// positive at the optimum, a pure feasibility solve decides between an
// empty box and a penalty that was too small.
func (s *search) penalised(c []float64, A *mat.Dense, b []float64, basis []int, art int) ([]float64, lpStatus, error) {
	bigM := BIG_M
	for try := 0; try < BIG_M_TRIES; try++ {
		c[art] = bigM
		xs, st, err := s.classify(s.runSimplex(c, A, b, basis))
		if st != lpOptimal {
			return nil, st, err
		}
		if xs[art] <= FEASIBILITY_TOL {
			return xs, lpOptimal, nil
		}
		phase1 := make([]float64, len(c))
		phase1[art] = 1
		ys, st, err := s.classify(s.runSimplex(phase1, A, b, basis))
		if st != lpOptimal {
			return nil, st, err
		}
		if ys[art] > FEASIBILITY_TOL {
			return nil, lpInfeasible, nil
		}
		bigM *= BIG_M_GROWTH
	}
	return nil, lpFailed, errors.New("milp: artificial column did not leave the basis")
}

// simplexFunc has the signature of lp.Simplex.
type simplexFunc func(c []float64, A mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error)

type simplexResult struct {
	x   []float64
	err error
}

// runSimplex runs lp.Simplex on its own goroutine so the search can walk
// away from it when the deadline passes. An abandoned run finishes in the
// background; A is never written after it is assembled.
func (s *search) runSimplex(c []float64, A mat.Matrix, b []float64, basis []int) ([]float64, error) {
	s.diag.LPSolves++
	c = append([]float64(nil), c...)
	b = append([]float64(nil), b...)
	if basis != nil {
		basis = append([]int(nil), basis...)
	}

	done := make(chan simplexResult, 1)
	go func() {
		var res simplexResult
		defer func() {
			if r := recover(); r != nil {
				res = simplexResult{err: fmt.Errorf("milp: simplex: %v", r)}
			}
			done <- res
		}()
		_, res.x, res.err = s.lpSolve(c, A, b, SIMPLEX_TOL, basis)
	}()

	select {
	case res := <-done:
		return res.x, res.err
	case <-s.ctx.Done():
		return nil, errLPStopped
	}
}

func (s *search) classify(x []float64, err error) ([]float64, lpStatus, error) {
	switch {
	case err == nil:
		return x, lpOptimal, nil
	case errors.Is(err, errLPStopped):
		return nil, lpStopped, err
	case errors.Is(err, lp.ErrInfeasible):
		return nil, lpInfeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return nil, lpUnbounded, nil
	}
	return nil, lpFailed, err
}
