package cfg

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jbc/compiler/ir"
)

type (
	// Graph is the control flow graph of one method.
	// Nodes are instruction ids; id 0 stands for both sentinels:
	// as a successor it is the end node, as a predecessor the begin node.
	Graph struct {
		Method *ir.Method

		begin Node
		end   Node
		nodes []Node // by id, nodes[0] is unused
	}

	Node struct {
		ID    int
		Succs []int
		Preds []int
	}
)

const Sentinel = 0

func Build(ctx context.Context, m *ir.Method) (g *Graph, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "cfg: build", "method", m.Name, "instrs", len(m.Code))
	defer tr.Finish("err", &err)

	if len(m.Code) == 0 {
		return nil, errors.New("no instructions")
	}

	g = &Graph{
		Method: m,
		nodes:  make([]Node, len(m.Code)+1),
	}

	for id := range g.nodes {
		g.nodes[id].ID = id
	}

	target := func(l string) (int, error) {
		id, ok := m.Labels[l]
		if !ok {
			return 0, errors.New("undefined label %q", l)
		}

		if id < 1 || id > len(m.Code) {
			return 0, errors.New("label %q: bad instruction id %d", l, id)
		}

		return id, nil
	}

	next := func(id int) (int, error) {
		if id == len(m.Code) {
			return 0, errors.New("instr %d: falls through past the last instruction", id)
		}

		return id + 1, nil
	}

	g.begin.Succs = []int{1}
	g.nodes[1].Preds = append(g.nodes[1].Preds, Sentinel)

	for i, x := range m.Code {
		id := i + 1

		var succs []int

		switch x := x.(type) {
		case ir.Return:
			g.end.Preds = append(g.end.Preds, id)
			g.nodes[id].Succs = []int{Sentinel}

			continue
		case ir.Goto:
			t, err := target(x.Label)
			if err != nil {
				return nil, errors.Wrap(err, "instr %d", id)
			}

			succs = []int{t}
		case ir.Branch:
			t, err := target(x.Label)
			if err != nil {
				return nil, errors.Wrap(err, "instr %d", id)
			}

			n, err := next(id)
			if err != nil {
				return nil, err
			}

			succs = []int{t}

			if n != t {
				succs = append(succs, n)
			}
		case ir.Assign, ir.Call, ir.PutField, ir.GetField, ir.UnaryOp, ir.BinaryOp, ir.SingleOp, ir.Nop:
			n, err := next(id)
			if err != nil {
				return nil, err
			}

			succs = []int{n}
		default:
			return nil, errors.New("instr %d: unsupported instruction %T", id, x)
		}

		g.nodes[id].Succs = succs

		for _, s := range succs {
			g.nodes[s].Preds = append(g.nodes[s].Preds, id)
		}
	}

	err = g.checkReachable()
	if err != nil {
		return nil, err
	}

	if tr.If("dump_cfg") {
		tr.Printw("begin", "succs", g.begin.Succs)

		for _, n := range g.nodes[1:] {
			tr.Printw("node", "id", n.ID, "instr", ir.Format(m.Instr(n.ID)), "succs", n.Succs, "preds", n.Preds)
		}

		tr.Printw("end", "preds", g.end.Preds)
	}

	return g, nil
}

func (g *Graph) Begin() *Node { return &g.begin }
func (g *Graph) End() *Node   { return &g.end }

// Len is the number of instructions. Valid ids are 1..Len.
func (g *Graph) Len() int { return len(g.nodes) - 1 }

func (g *Graph) Node(id int) *Node {
	if id == Sentinel {
		panic("sentinel is not an instruction")
	}

	return &g.nodes[id]
}

func (g *Graph) Succs(id int) []int { return g.Node(id).Succs }
func (g *Graph) Preds(id int) []int { return g.Node(id).Preds }

// Reachable returns the set of instruction ids reachable from begin, indexed by id.
func (g *Graph) Reachable() []bool {
	seen := make([]bool, len(g.nodes))
	q := append([]int{}, g.begin.Succs...)

	for len(q) != 0 {
		id := q[len(q)-1]
		q = q[:len(q)-1]

		if id == Sentinel || seen[id] {
			continue
		}

		seen[id] = true

		q = append(q, g.nodes[id].Succs...)
	}

	return seen
}

func (g *Graph) checkReachable() error {
	seen := g.Reachable()

	for _, id := range g.end.Preds {
		if !seen[id] {
			return errors.New("instr %d: return unreachable from method entry", id)
		}
	}

	return nil
}
