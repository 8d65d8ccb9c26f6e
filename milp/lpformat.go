package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteLP writes p in CPLEX LP format.
func WriteLP(w io.Writer, p *Problem) error {
	bw := bufio.NewWriter(w)
	names := make([]string, len(p.vars))
	for i, v := range p.vars {
		names[i] = lpName(v.Name, "x", i)
	}

	fmt.Fprintf(bw, "\\ Problem: %s\n", p.Name)
	bw.WriteString("Minimize\n obj:")
	obj := p.objective.Terms
	if len(obj) == 0 && len(names) > 0 {
		obj = []Term{{Var: 0, Coef: 0}}
	}
	writeTerms(bw, obj, names)
	if p.objective.Constant != 0 {
		// LP files have no objective constant; a fixed dummy carries it
		fmt.Fprintf(bw, " %s obj_constant", signed(p.objective.Constant, true))
	}
	bw.WriteString("\nSubject To\n")
	for i, c := range p.cons {
		fmt.Fprintf(bw, " %s:", lpName(c.Name, "c", i))
		if len(c.Terms) == 0 {
			bw.WriteString(" 0 obj_constant")
		}
		writeTerms(bw, c.Terms, names)
		fmt.Fprintf(bw, " %s %s\n", c.Sense, formatCoef(c.RHS))
	}

	bw.WriteString("Bounds\n")
	for i, v := range p.vars {
		if v.Kind == Binary {
			continue
		}
		switch {
		case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s free\n", names[i])
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s >= %s\n", names[i], formatCoef(v.Lower))
		case math.IsInf(v.Lower, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", names[i], formatCoef(v.Upper))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatCoef(v.Lower), names[i], formatCoef(v.Upper))
		}
	}
	if p.objective.Constant != 0 || hasEmptyConstraint(p) {
		bw.WriteString(" obj_constant = 1\n")
	}

	writeSection(bw, "General", p, names, Integer)
	writeSection(bw, "Binary", p, names, Binary)
	bw.WriteString("End\n")
	return bw.Flush()
}

func writeTerms(bw *bufio.Writer, terms []Term, names []string) {
	for i, t := range terms {
		fmt.Fprintf(bw, " %s %s", signed(t.Coef, i > 0), names[t.Var])
	}
}

func writeSection(bw *bufio.Writer, title string, p *Problem, names []string, kind VarKind) {
	first := true
	for i, v := range p.vars {
		if v.Kind != kind {
			continue
		}
		if first {
			bw.WriteString(title + "\n")
			first = false
		}
		fmt.Fprintf(bw, " %s\n", names[i])
	}
}

func hasEmptyConstraint(p *Problem) bool {
	for _, c := range p.cons {
		if len(c.Terms) == 0 {
			return true
		}
	}
	return false
}

// signed renders a coefficient with an explicit sign separated by a space,
// e.g. "+ 3" or "- 2". The leading "+" is omitted for the first term.
func signed(c float64, withPlus bool) string {
	if c < 0 {
		return "- " + formatCoef(-c)
	}
	if withPlus {
		return "+ " + formatCoef(c)
	}
	return formatCoef(c)
}

func formatCoef(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

// lpName maps an arbitrary name onto the LP identifier alphabet. Names that
// come out empty fall back to prefix+index.
func lpName(name, prefix string, idx int) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case strings.ContainsRune("!\"#$%&()/,.;?@_`'{}|~", r):
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if out == "" {
		return prefix + strconv.Itoa(idx)
	}
	if c := out[0]; isDigit(c) || c == '.' || ((c == 'e' || c == 'E') && (len(out) == 1 || isDigit(out[1]))) {
		out = "_" + out
	}
	if len(out) > 255 {
		out = out[:255]
	}
	return out
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
