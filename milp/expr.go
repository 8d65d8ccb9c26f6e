package milp

import (
	"fmt"
	"strings"
)

type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression. Its methods return new values, so partially
// built expressions can be shared.
type Expr struct {
	Terms    []Term
	Constant float64
}

func NewExpr() Expr {
	return Expr{}
}

// Sum returns the expression v1 + v2 + ... with unit coefficients.
func Sum(vars ...Var) Expr {
	e := Expr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Terms = append(e.Terms, Term{Var: v, Coef: 1})
	}
	return e
}

func (e Expr) Plus(v Var, coef float64) Expr {
	e.Terms = append(e.Terms[:len(e.Terms):len(e.Terms)], Term{Var: v, Coef: coef})
	return e
}

func (e Expr) PlusConst(c float64) Expr {
	e.Constant += c
	return e
}

// PlusExpr adds scale*o to e.
func (e Expr) PlusExpr(o Expr, scale float64) Expr {
	terms := make([]Term, 0, len(e.Terms)+len(o.Terms))
	terms = append(terms, e.Terms...)
	for _, t := range o.Terms {
		terms = append(terms, Term{Var: t.Var, Coef: scale * t.Coef})
	}
	return Expr{Terms: terms, Constant: e.Constant + scale*o.Constant}
}

func (e Expr) String() string {
	var sb strings.Builder
	for i, t := range e.Terms {
		if i > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%v*x%d", t.Coef, t.Var)
	}
	if e.Constant != 0 || len(e.Terms) == 0 {
		if len(e.Terms) > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%v", e.Constant)
	}
	return sb.String()
}

// normalize merges repeated variables, keeping first-appearance order, and
// drops zero coefficients.
func normalize(terms []Term) []Term {
	pos := make(map[Var]int, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}
