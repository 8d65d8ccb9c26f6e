package milp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLP(t *testing.T) {
	p := NewProblem("tiny")
	a := p.AddVar("assigned_t1_c1", Binary, 0, 1)
	s := p.AddVar("start_t1_0", Integer, 2, 9)
	d := p.AddVar("delay t1->t2", Continuous, 0, Inf)
	f := p.AddVar("free", Continuous, -Inf, Inf)
	p.AddConstraint("one_core_t1", Sum(a), Equal, 1)
	p.AddConstraint("window", NewExpr().Plus(s, 1).Plus(d, -2.5).PlusConst(1), LessEq, 4)
	p.AddConstraint("", NewExpr().Plus(f, 1), GreaterEq, -3)
	p.SetObjective(NewExpr().Plus(d, 1).Plus(a, -1))

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, p))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "\\ Problem: tiny\nMinimize\n obj: 1 delay_t1__t2 - 1 assigned_t1_c1\n"), out)
	assert.Contains(t, out, " one_core_t1: 1 assigned_t1_c1 = 1\n")
	assert.Contains(t, out, " window: 1 start_t1_0 - 2.5 delay_t1__t2 <= 3\n")
	assert.Contains(t, out, " c2: 1 free >= -3\n")
	assert.Contains(t, out, " 2 <= start_t1_0 <= 9\n")
	assert.Contains(t, out, " delay_t1__t2 >= 0\n")
	assert.Contains(t, out, " free free\n")
	assert.Contains(t, out, "General\n start_t1_0\n")
	assert.Contains(t, out, "Binary\n assigned_t1_c1\n")
	assert.True(t, strings.HasSuffix(out, "End\n"))
	assert.NotContains(t, out, "obj_constant")
}

func TestWriteLPObjectiveConstant(t *testing.T) {
	p := NewProblem("const")
	x := p.AddVar("x", Integer, 0, 3)
	p.SetObjective(NewExpr().Plus(x, 2).PlusConst(7))

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, p))
	assert.Contains(t, buf.String(), " obj: 2 x + 7 obj_constant\n")
	assert.Contains(t, buf.String(), " obj_constant = 1\n")
}

func TestLPName(t *testing.T) {
	assert.Equal(t, "_1abc", lpName("1abc", "x", 0))
	assert.Equal(t, "_e12", lpName("e12", "x", 0))
	assert.Equal(t, "end_t1_0", lpName("end_t1_0", "x", 0))
	assert.Equal(t, "x4", lpName("", "x", 4))
	assert.Equal(t, "bool_dep_a_b", lpName("bool_dep a-b", "x", 0))
}

func TestCheck(t *testing.T) {
	p := NewProblem("check")
	x := p.AddVar("x", Integer, 0, 4)
	y := p.AddVar("y", Continuous, 0, Inf)
	p.AddConstraint("sum", Sum(x, y), LessEq, 5)
	p.AddConstraint("eq", NewExpr().Plus(x, 1).Plus(y, -1), Equal, 1)

	assert.Empty(t, Check(p, []float64{3, 2}, CHECK_TOL))

	viol := Check(p, []float64{4.5, 2}, CHECK_TOL)
	names := make([]string, 0, len(viol))
	for _, v := range viol {
		names = append(names, v.Name)
	}
	assert.ElementsMatch(t, []string{"upper:x", "integral:x", "sum", "eq"}, names)

	assert.Len(t, Check(p, []float64{1}, CHECK_TOL), 1)
}

func TestExprIsPersistent(t *testing.T) {
	p := NewProblem("expr")
	x := p.AddVar("x", Continuous, 0, 1)
	y := p.AddVar("y", Continuous, 0, 1)

	base := NewExpr().Plus(x, 1)
	left := base.Plus(y, 2)
	right := base.Plus(y, 3)
	assert.Equal(t, []Term{{x, 1}, {y, 2}}, left.Terms)
	assert.Equal(t, []Term{{x, 1}, {y, 3}}, right.Terms)

	p.AddConstraint("merged", left.Plus(x, -1).Plus(y, 1).PlusConst(2), LessEq, 5)
	c := p.Constraint(0)
	assert.Equal(t, []Term{{y, 3}}, c.Terms)
	assert.Equal(t, 3.0, c.RHS)
}
