package ir

import (
	"sort"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/jbc/compiler/tp"
)

type (
	ClassUnit struct {
		Name    string
		Super   string // empty means the universal base class
		Imports []string

		Fields  []Field
		Methods []*Method
	}

	Field struct {
		Name   string
		Type   tp.Type
		Access Access
	}

	Method struct {
		Name        string
		Access      Access
		Static      bool
		Constructor bool

		Params []Operand
		Ret    tp.Type

		// Code[i] has instruction id i+1. Id 0 is the begin/end sentinel.
		Code []Instr

		// Labels maps a jump target name to an instruction id.
		Labels map[string]int
	}

	// Descriptor is the storage assigned to one variable.
	Descriptor struct {
		Name string
		Reg  int
		Type tp.Type
	}

	// VarTable is a per-method map from variable name to its Descriptor.
	VarTable map[string]Descriptor

	Access int
)

const (
	Default Access = iota
	Public
	Private
	Protected
)

const This = "this"

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Private:
		return "private"
	case Protected:
		return "protected"
	default:
		return ""
	}
}

// Instr returns the instruction with the given id.
func (m *Method) Instr(id int) Instr {
	return m.Code[id-1]
}

// LabelsAt returns the labels denoting instruction id, sorted by name.
func (m *Method) LabelsAt(id int) []string {
	var r []string

	for l, lid := range m.Labels {
		if lid == id {
			r = append(r, l)
		}
	}

	sort.Strings(r)

	return r
}

// BuildVarTable assigns one register per variable:
// the receiver first for instance methods, then parameters in order,
// then locals in order of first appearance.
func BuildVarTable(m *Method) VarTable {
	vt := VarTable{}
	next := 0

	add := func(name string, t tp.Type) {
		if _, ok := vt[name]; ok {
			return
		}

		vt[name] = Descriptor{Name: name, Reg: next, Type: t}
		next++
	}

	if !m.Static {
		add(This, tp.This{})
	}

	for _, p := range m.Params {
		add(p.Name, p.Type)
	}

	var visit func(e Element)
	visit = func(e Element) {
		switch e := e.(type) {
		case Operand:
			if e.IsThis() {
				return
			}

			add(e.Name, e.Type)
		case ArrayElem:
			add(e.Name, tp.Array{Elem: e.Type})
			visit(e.Index)
		case Literal:
		}
	}

	for _, x := range m.Code {
		Elements(x, visit)
	}

	return vt
}

// Copy returns an independent copy of vt.
func (vt VarTable) Copy() VarTable {
	r := make(VarTable, len(vt))

	for k, v := range vt {
		r[k] = v
	}

	return r
}

// Locals is the number of local slots the table needs:
// the distinct registers plus the always reserved slot 0.
func (vt VarTable) Locals() int {
	regs := map[int]struct{}{0: {}}

	for _, d := range vt {
		regs[d.Reg] = struct{}{}
	}

	return len(regs)
}

func (vt VarTable) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	names := make([]string, 0, len(vt))
	for n := range vt {
		names = append(names, n)
	}

	sort.Strings(names)

	b = e.AppendMap(b, len(names))

	for _, n := range names {
		b = e.AppendKeyInt(b, n, vt[n].Reg)
	}

	return b
}
