package regalloc

import (
	"context"
	"fmt"
	"sort"

	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/liveness"
	"github.com/slowlang/jbc/compiler/set"
)

type (
	VarID = liveness.VarID

	// Graph is the interference graph of one method.
	// Nodes and adjacency rows are indexed by VarID.
	Graph struct {
		Live *liveness.Result

		node []bool
		adj  []liveness.Set
		pre  []int // fixed color or -1
	}

	// Allocation is a coloring of the interference graph.
	Allocation struct {
		Method string
		Static bool

		Vars   []string // by VarID
		Colors []int    // by VarID, -1 for vars not in the graph

		// K is the number of distinct colors.
		K int
	}

	BudgetError struct {
		Method   string
		Required int
		Limit    int
	}
)

// Build creates the interference graph.
// Nodes are variables from any IN, OUT or DEF set, and all parameters.
// Variables interfere if they are both in one IN or one OUT set,
// or one is defined by an instruction the other is live out of.
func Build(ctx context.Context, r *liveness.Result) (g *Graph, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "interference graph", "method", r.Graph.Method.Name)
	defer tr.Finish("err", &err)

	n := len(r.Vars)

	g = &Graph{
		Live: r,
		node: make([]bool, n),
		adj:  make([]liveness.Set, n),
		pre:  make([]int, n),
	}

	for v := range g.pre {
		g.pre[v] = -1
	}

	for i, p := range r.Graph.Method.Params {
		v, ok := r.ID(p.Name)
		if !ok {
			continue
		}

		g.node[v] = true
		g.pre[v] = i
	}

	for id := 1; id <= r.Graph.Len(); id++ {
		g.clique(r.In[id])
		g.clique(r.Out[id])

		r.Def[id].Range(func(d VarID) bool {
			g.node[d] = true

			r.Out[id].Range(func(o VarID) bool {
				g.AddEdge(d, o)
				return true
			})

			return true
		})
	}

	if tr.If("dump_graph") {
		for v, ok := range g.node {
			if !ok {
				continue
			}

			tr.Printw("node", "var", r.Vars[v], "degree", g.Degree(VarID(v)), "adj", r.Names(g.adj[v]), "precolor", g.pre[v])
		}
	}

	return g, nil
}

func (g *Graph) clique(s liveness.Set) {
	l := s.Slice()

	for i, u := range l {
		g.node[u] = true

		for _, v := range l[i+1:] {
			g.AddEdge(u, v)
		}
	}
}

// AddEdge connects u and v. Self edges are ignored.
func (g *Graph) AddEdge(u, v VarID) {
	if u == v {
		return
	}

	g.node[u] = true
	g.node[v] = true

	g.adj[u].Set(v)
	g.adj[v].Set(u)
}

func (g *Graph) HasEdge(u, v VarID) bool { return g.adj[u].IsSet(v) }
func (g *Graph) Degree(v VarID) int      { return g.adj[v].Size() }
func (g *Graph) IsNode(v VarID) bool     { return g.node[v] }

// Nodes returns graph nodes in coloring order:
// precolored first, then by descending degree, ties by name.
func (g *Graph) Nodes() []VarID {
	var l []VarID

	for v, ok := range g.node {
		if ok {
			l = append(l, VarID(v))
		}
	}

	vars := g.Live.Vars

	sort.Slice(l, func(i, j int) bool {
		a, b := l[i], l[j]

		if pa, pb := g.pre[a] >= 0, g.pre[b] >= 0; pa != pb {
			return pa
		}

		if da, db := g.Degree(a), g.Degree(b); da != db {
			return da > db
		}

		return vars[a] < vars[b]
	})

	return l
}

// Color assigns each node the smallest color not used by its neighbors.
func (g *Graph) Color(ctx context.Context) *Allocation {
	tr := tlog.SpanFromContext(ctx)

	m := g.Live.Graph.Method

	a := &Allocation{
		Method: m.Name,
		Static: m.Static,
		Vars:   g.Live.Vars,
		Colors: make([]int, len(g.node)),
	}

	for v := range a.Colors {
		a.Colors[v] = -1
	}

	var used, all set.Bitmap

	for _, v := range g.Nodes() {
		c := g.pre[v]

		if c < 0 {
			used.Reset()

			g.adj[v].Range(func(u VarID) bool {
				if uc := a.Colors[u]; uc >= 0 {
					used.Set(uc)
				}

				return true
			})

			c = used.FirstClear()
		}

		a.Colors[v] = c
		all.Set(c)

		tr.V("color_step").Printw("color", "var", a.Vars[v], "color", c, "degree", g.Degree(v))
	}

	a.K = all.Size()

	return a
}

// Allocate colors the method and checks the result against limit.
// Negative limit means no limit.
func Allocate(ctx context.Context, r *liveness.Result, limit int) (a *Allocation, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "regalloc", "method", r.Graph.Method.Name, "limit", limit)
	defer tr.Finish("err", &err)

	g, err := Build(ctx, r)
	if err != nil {
		return nil, err
	}

	a = g.Color(ctx)

	tr.Printw("colored", "registers", a.K)

	if tr.If("dump_regs") {
		tr.Printw("coloring", "colors", a)
	}

	if limit >= 0 && a.K > limit {
		return a, &BudgetError{Method: a.Method, Required: a.K, Limit: limit}
	}

	return a, nil
}

// Color returns the color of a variable.
func (a *Allocation) Color(name string) (int, bool) {
	for v, n := range a.Vars {
		if n == name {
			c := a.Colors[v]
			return c, c >= 0
		}
	}

	return -1, false
}

// Apply returns a copy of vt with registers taken from the coloring.
// Instance methods keep slot 0 for the receiver.
// Variables not in the graph are dropped.
func (a *Allocation) Apply(vt ir.VarTable) ir.VarTable {
	base := 1
	if a.Static {
		base = 0
	}

	r := make(ir.VarTable, len(vt))

	if d, ok := vt[ir.This]; ok {
		d.Reg = 0
		r[ir.This] = d
	}

	for v, name := range a.Vars {
		c := a.Colors[v]
		if c < 0 {
			continue
		}

		d, ok := vt[name]
		if !ok {
			continue
		}

		d.Reg = base + c
		r[name] = d
	}

	return r
}

func (a *Allocation) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	n := 0

	for _, c := range a.Colors {
		if c >= 0 {
			n++
		}
	}

	b = e.AppendMap(b, n)

	for v, c := range a.Colors {
		if c >= 0 {
			b = e.AppendKeyInt(b, a.Vars[v], c)
		}
	}

	return b
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("method %v: %d registers required, limit is %d", e.Method, e.Required, e.Limit)
}
