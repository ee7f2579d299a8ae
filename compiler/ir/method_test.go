package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/irfile"
	"github.com/slowlang/jbc/compiler/tp"
)

func TestBuildVarTable(t *testing.T) {
	c, labels, err := irfile.ParseCode(`
	x.i32 :=.i32 p.i32 +.i32 1.i32
	a[x.i32].bool :=.bool true.bool
	o.Foo :=.Foo new(Foo).Foo
	invokevirtual(o.Foo, "run", y.i32).V
	putfield(this, f.i32, x.i32).V
L:
	ret.V
`)
	require.NoError(t, err)

	m := &ir.Method{
		Name:   "f",
		Params: []ir.Operand{{Name: "p", Type: tp.Int{}}},
		Ret:    tp.Void{},
		Code:   c,
		Labels: labels,
	}

	vt := ir.BuildVarTable(m)

	regs := map[string]int{}
	for n, d := range vt {
		regs[n] = d.Reg
	}

	assert.Equal(t, map[string]int{
		"this": 0,
		"p":    1,
		"x":    2,
		"a":    3,
		"o":    4,
		"y":    5,
	}, regs)

	assert.Equal(t, tp.Array{Elem: tp.Bool{}}, vt["a"].Type)
	assert.Equal(t, 6, vt.Locals())

	assert.Equal(t, []string{"L"}, m.LabelsAt(6))
	assert.Empty(t, m.LabelsAt(1))

	m.Static = true
	vt = ir.BuildVarTable(m)

	_, ok := vt[ir.This]
	assert.False(t, ok)
	assert.Equal(t, 0, vt["p"].Reg)
}

func TestVarTableCopy(t *testing.T) {
	vt := ir.VarTable{
		"a": {Name: "a", Reg: 3, Type: tp.Int{}},
		"b": {Name: "b", Reg: 3, Type: tp.Int{}},
	}

	cp := vt.Copy()
	cp["a"] = ir.Descriptor{Name: "a", Reg: 1, Type: tp.Int{}}

	assert.Equal(t, 3, vt["a"].Reg)

	// slot 0 is always counted
	assert.Equal(t, 2, vt.Locals())
	assert.Equal(t, 3, cp.Locals())
	assert.Equal(t, 1, ir.VarTable{}.Locals())
}

func TestFormat(t *testing.T) {
	x := ir.Assign{
		Dest: ir.Operand{Name: "s", Type: tp.Int{}},
		Type: tp.Int{},
		RHS: ir.BinaryOp{
			Op:   ir.Add,
			L:    ir.Operand{Name: "s", Type: tp.Int{}},
			R:    ir.Literal{Value: "1", Type: tp.Int{}},
			Type: tp.Int{},
		},
	}

	assert.Equal(t, "s.i32 :=.i32 s.i32 +.i32 1.i32", ir.Format(x))
	assert.Equal(t, "goto L", ir.Format(ir.Goto{Label: "L"}))
	assert.Equal(t, "ret.V", ir.Format(ir.Return{Type: tp.Void{}}))
	assert.Equal(t, "a[i.i32].bool", ir.FormatElem(ir.ArrayElem{Name: "a", Index: ir.Operand{Name: "i", Type: tp.Int{}}, Type: tp.Bool{}}))
}
