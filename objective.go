package letsched

import (
	"strings"

	"letsched/milp"
)

type Goal string

const (
	GoalCores     Goal = "c"
	GoalEndToEnd  Goal = "e2e"
	DEFAULT_GOAL       = GoalCores
)

// ParseGoal accepts the short goal codes and a couple of spelled-out aliases.
func ParseGoal(s string) (Goal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "cores", "core":
		return GoalCores, nil
	case "e2e", "delay", "end-to-end":
		return GoalEndToEnd, nil
	}
	return "", invalidf(ErrUnknownGoal, "%q", s)
}

func (g Goal) Describe() string {
	switch g {
	case GoalCores:
		return "minimise core usage"
	case GoalEndToEnd:
		return "minimise end-to-end delay"
	}
	return string(g)
}

// attachObjective minimises the number of used cores, or the sum of the
// delay variables for the end-to-end goal.
func (m *Model) attachObjective() {
	switch m.goal {
	case GoalCores:
		m.problem.SetObjective(milp.Sum(m.coresUsed))
	case GoalEndToEnd:
		obj := milp.NewExpr()
		for _, k := range m.depKeys {
			obj = obj.Plus(m.delay[k], 1)
		}
		m.problem.SetObjective(obj)
	}
}
