// Package milp holds a small mixed-integer linear program model and a
// branch-and-bound solver that runs its LP relaxations through gonum.
package milp

import (
	"fmt"
	"math"
)

type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	}
	return fmt.Sprintf("VarKind(%d)", int(k))
}

func (k VarKind) integral() bool {
	return k == Integer || k == Binary
}

type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// Inf is the bound used for variables without an upper (or lower) limit.
var Inf = math.Inf(1)

// Var is a handle to a variable of the Problem that created it.
type Var int

type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

func (v Variable) String() string {
	return fmt.Sprintf("%s(%v) in [%v, %v]", v.Name, v.Kind, v.Lower, v.Upper)
}

type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

func (c Constraint) activity(values []float64) float64 {
	act := 0.0
	for _, t := range c.Terms {
		act += t.Coef * values[t.Var]
	}
	return act
}

type Problem struct {
	Name      string
	vars      []Variable
	cons      []Constraint
	objective Expr
}

func NewProblem(name string) *Problem {
	return &Problem{Name: name}
}

func (p *Problem) String() string {
	return fmt.Sprintf("%s: %d vars (%d integral), %d constraints", p.Name, p.NumVars(), p.NumIntegers(), p.NumConstraints())
}

// AddVar declares a variable. Binary variables always get the bounds [0, 1]
// and integer bounds are rounded inwards.
func (p *Problem) AddVar(name string, kind VarKind, lower, upper float64) Var {
	switch kind {
	case Binary:
		lower, upper = 0, 1
	case Integer:
		lower, upper = math.Ceil(lower), math.Floor(upper)
	}
	p.vars = append(p.vars, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	return Var(len(p.vars) - 1)
}

// AddConstraint adds lhs <sense> rhs. A constant in lhs moves to the right
// hand side and repeated variables are merged.
func (p *Problem) AddConstraint(name string, lhs Expr, sense Sense, rhs float64) {
	p.cons = append(p.cons, Constraint{
		Name:  name,
		Terms: normalize(lhs.Terms),
		Sense: sense,
		RHS:   rhs - lhs.Constant,
	})
}

// SetObjective sets the expression to minimise.
func (p *Problem) SetObjective(e Expr) {
	p.objective = Expr{Terms: normalize(e.Terms), Constant: e.Constant}
}

func (p *Problem) Objective() Expr { return p.objective }

func (p *Problem) NumVars() int { return len(p.vars) }

func (p *Problem) NumConstraints() int { return len(p.cons) }

func (p *Problem) NumIntegers() int {
	n := 0
	for _, v := range p.vars {
		if v.Kind.integral() {
			n++
		}
	}
	return n
}

func (p *Problem) Var(v Var) Variable { return p.vars[v] }

func (p *Problem) Constraint(i int) Constraint { return p.cons[i] }

// ObjectiveValue evaluates the objective at values.
func (p *Problem) ObjectiveValue(values []float64) float64 {
	obj := p.objective.Constant
	for _, t := range p.objective.Terms {
		obj += t.Coef * values[t.Var]
	}
	return obj
}

// integralObjective reports whether every feasible point has an integer
// objective, which lets the search prune nodes that cannot improve by 1.
func (p *Problem) integralObjective() bool {
	if p.objective.Constant != math.Trunc(p.objective.Constant) {
		return false
	}
	for _, t := range p.objective.Terms {
		if !p.vars[t.Var].Kind.integral() || t.Coef != math.Trunc(t.Coef) {
			return false
		}
	}
	return true
}
