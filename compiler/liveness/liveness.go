package liveness

import (
	"context"
	"sort"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"

	"github.com/slowlang/jbc/compiler/cfg"
	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/set"
)

type (
	// VarID is a dense index of a method variable.
	VarID int

	Set = set.Bits[VarID]

	// Result holds the per instruction sets, indexed by instruction id.
	// Index 0 is the sentinel and is always empty.
	Result struct {
		Graph *cfg.Graph

		Vars []string // by VarID
		ids  map[string]VarID

		Use []Set
		Def []Set
		In  []Set
		Out []Set

		Steps int
	}

	worklist struct {
		heap.Heap[int]

		queued set.Bitmap
	}
)

// Analyze computes USE, DEF, IN and OUT for every instruction of g.
// Variables are the entries of vt except the receiver.
func Analyze(ctx context.Context, g *cfg.Graph, vt ir.VarTable) (r *Result, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "liveness", "method", g.Method.Name)
	defer tr.Finish("err", &err)

	r = newResult(g, vt)

	n := g.Len()

	for id := 1; id <= n; id++ {
		r.Use[id], r.Def[id] = r.useDef(g.Method.Instr(id))
	}

	visited := make([]bool, n+1)

	wl := worklist{
		Heap:   heap.Heap[int]{Less: worklistLess},
		queued: set.MakeBitmap(n + 1),
	}

	for _, p := range g.End().Preds {
		wl.push(p)
	}

	for {
		for wl.Len() != 0 {
			id := wl.pop()

			inChanged, _ := r.step(id)
			visited[id] = true
			r.Steps++

			tr.V("liveness_step").Printw("step", "id", id, "in", r.In[id], "out", r.Out[id], "in_changed", inChanged)

			for _, p := range g.Preds(id) {
				if p == cfg.Sentinel {
					continue
				}

				if inChanged || !visited[p] {
					wl.push(p)
				}
			}
		}

		// instructions that never reach a return
		next := 0

		for id := n; id > 0; id-- {
			if !visited[id] {
				next = id
				break
			}
		}

		if next == 0 {
			break
		}

		wl.push(next)
	}

	tr.Printw("liveness done", "vars", len(r.Vars), "instrs", n, "steps", r.Steps)

	if tr.If("dump_liveness") {
		for id := 1; id <= n; id++ {
			tr.Printw("live", "id", id, "instr", ir.Format(g.Method.Instr(id)),
				"use", r.Names(r.Use[id]), "def", r.Names(r.Def[id]),
				"in", r.Names(r.In[id]), "out", r.Names(r.Out[id]))
		}
	}

	return r, nil
}

func newResult(g *cfg.Graph, vt ir.VarTable) *Result {
	r := &Result{
		Graph: g,
		ids:   make(map[string]VarID, len(vt)),
	}

	for name := range vt {
		if name == ir.This {
			continue
		}

		r.Vars = append(r.Vars, name)
	}

	sort.Slice(r.Vars, func(i, j int) bool {
		a, b := vt[r.Vars[i]], vt[r.Vars[j]]
		if a.Reg != b.Reg {
			return a.Reg < b.Reg
		}

		return a.Name < b.Name
	})

	for i, name := range r.Vars {
		r.ids[name] = VarID(i)
	}

	n := g.Len() + 1

	r.Use = make([]Set, n)
	r.Def = make([]Set, n)
	r.In = make([]Set, n)
	r.Out = make([]Set, n)

	return r
}

// Pass recomputes every instruction once, last to first,
// and reports whether any IN or OUT set changed.
func (r *Result) Pass() (changed bool) {
	for id := r.Graph.Len(); id > 0; id-- {
		in, out := r.step(id)

		changed = changed || in || out
	}

	return changed
}

func (r *Result) step(id int) (inChanged, outChanged bool) {
	var out Set

	for _, s := range r.Graph.Succs(id) {
		if s == cfg.Sentinel {
			continue
		}

		out.Merge(r.In[s])
	}

	in := out.Copy()
	in.Substract(r.Def[id])
	in.Merge(r.Use[id])

	inChanged = !in.Equal(r.In[id])
	outChanged = !out.Equal(r.Out[id])

	r.In[id] = in
	r.Out[id] = out

	return inChanged, outChanged
}

func (r *Result) useDef(x ir.Instr) (use, def Set) {
	var elem func(e ir.Element)
	elem = func(e ir.Element) {
		switch e := e.(type) {
		case ir.Operand:
			if id, ok := r.ID(e.Name); ok && !e.IsThis() {
				use.Set(id)
			}
		case ir.ArrayElem:
			if id, ok := r.ID(e.Name); ok {
				use.Set(id)
			}

			elem(e.Index)
		case ir.Literal:
		default:
			panic(e)
		}
	}

	switch x := x.(type) {
	case ir.Assign:
		switch d := x.Dest.(type) {
		case ir.Operand:
			if id, ok := r.ID(d.Name); ok && !d.IsThis() {
				def.Set(id)
			}
		case ir.ArrayElem:
			elem(d)
		case ir.Literal:
			// no definition
		}

		ir.Elements(x.RHS, elem)
	default:
		ir.Elements(x, elem)
	}

	return use, def
}

// ID returns the id of a variable.
func (r *Result) ID(name string) (VarID, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// Names returns the variable names of s, sorted.
func (r *Result) Names(s Set) []string {
	l := make([]string, 0, s.Size())

	s.Range(func(id VarID) bool {
		l = append(l, r.Vars[id])
		return true
	})

	sort.Strings(l)

	return l
}

func (w *worklist) push(id int) {
	if w.queued.IsSet(id) {
		return
	}

	w.queued.Set(id)
	w.Push(id)
}

func (w *worklist) pop() int {
	id := w.Pop()
	w.queued.Clear(id)

	return id
}

func worklistLess(d []int, i, j int) bool {
	return d[i] > d[j]
}
