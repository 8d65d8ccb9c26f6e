package milp

import "fmt"

// node is one subproblem of the search: the variable bounds it imposes and
// the relaxation bound inherited from its parent.
type node struct {
	lower []float64
	upper []float64
	depth int
	bound float64
}

func (n *node) String() string {
	return fmt.Sprintf("node(depth=%d, bound=%v)", n.depth, n.bound)
}

func (n *node) child(j int, lower, upper float64, bound float64) *node {
	c := &node{
		lower: append([]float64(nil), n.lower...),
		upper: append([]float64(nil), n.upper...),
		depth: n.depth + 1,
		bound: bound,
	}
	c.lower[j], c.upper[j] = lower, upper
	return c
}

// nodeQueue hands out the most recently added node first, which makes the
// search depth-first.
type nodeQueue struct {
	q []*node
}

func newNodeQueue() *nodeQueue {
	q := &nodeQueue{q: make([]*node, 0)}
	return q
}

func (q *nodeQueue) String() string {
	str := ""
	for _, n := range q.q {
		str += n.String()
	}
	return str
}

func (q *nodeQueue) enq(n *node) {
	q.q = append(q.q, n)
}

func (q *nodeQueue) deq() *node {
	if len(q.q) == 0 {
		return nil
	}
	n := q.q[len(q.q)-1]
	q.q[len(q.q)-1] = nil
	q.q = q.q[:len(q.q)-1]
	return n
}

func (q *nodeQueue) qlen() int {
	return len(q.q)
}
