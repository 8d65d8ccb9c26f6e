package milp

import (
	"fmt"
	"math"
)

type Violation struct {
	Name     string
	Activity float64
	Sense    Sense
	RHS      float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %v %v %v", v.Name, v.Activity, v.Sense, v.RHS)
}

// Check evaluates every bound, integrality requirement and constraint of p at
// values and returns the ones violated by more than tol*(1+|rhs|). Bounds of
// integral variables and rows with only integral terms are held to tol
// itself, since their activity is exact at integral values.
func Check(p *Problem, values []float64, tol float64) []Violation {
	if len(values) != p.NumVars() {
		return []Violation{{Name: "values", Activity: float64(len(values)), Sense: Equal, RHS: float64(p.NumVars())}}
	}
	var out []Violation
	exceeds := func(diff, rhs float64, exact bool) bool {
		if exact {
			return diff > tol
		}
		return diff > tol*(1+math.Abs(rhs))
	}
	for i, v := range p.vars {
		x := values[i]
		exact := v.Kind.integral()
		if exceeds(v.Lower-x, v.Lower, exact) {
			out = append(out, Violation{Name: "lower:" + v.Name, Activity: x, Sense: GreaterEq, RHS: v.Lower})
		}
		if exceeds(x-v.Upper, v.Upper, exact) {
			out = append(out, Violation{Name: "upper:" + v.Name, Activity: x, Sense: LessEq, RHS: v.Upper})
		}
		if v.Kind.integral() && math.Abs(x-math.Round(x)) > tol {
			out = append(out, Violation{Name: "integral:" + v.Name, Activity: x, Sense: Equal, RHS: math.Round(x)})
		}
	}
	for _, c := range p.cons {
		act := c.activity(values)
		exact := p.integralRow(c)
		bad := false
		switch c.Sense {
		case LessEq:
			bad = exceeds(act-c.RHS, c.RHS, exact)
		case GreaterEq:
			bad = exceeds(c.RHS-act, c.RHS, exact)
		case Equal:
			bad = exceeds(math.Abs(act-c.RHS), c.RHS, exact)
		}
		if bad {
			out = append(out, Violation{Name: c.Name, Activity: act, Sense: c.Sense, RHS: c.RHS})
		}
	}
	return out
}

// integralRow reports whether every term of c is an integral variable with
// an integral coefficient.
func (p *Problem) integralRow(c Constraint) bool {
	for _, t := range c.Terms {
		if !p.vars[t.Var].Kind.integral() || t.Coef != math.Trunc(t.Coef) {
			return false
		}
	}
	return true
}
