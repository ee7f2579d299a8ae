package back

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/irfile"
	"github.com/slowlang/jbc/compiler/regalloc"
)

const twoLoops = `
class: Two
methods:
  - name: first
    access: public
    code: |
      a.i32 :=.i32 1.i32
      b.i32 :=.i32 2.i32
      s.i32 :=.i32 a.i32 +.i32 b.i32
      ret.i32 s.i32
    returns: i32
  - name: easy
    access: public
    static: true
    code: |
      ret.V
  - name: second
    access: public
    code: |
      x.i32 :=.i32 3.i32
      y.i32 :=.i32 x.i32 *.i32 x.i32
      invokestatic(io, "print", x.i32).V
      ret.i32 y.i32
    returns: i32
`

func decode(t *testing.T, text string) *ir.ClassUnit {
	t.Helper()

	c, err := irfile.Decode(strings.NewReader(text))
	require.NoError(t, err)

	return c
}

func TestSmoke(t *testing.T) {
	cls := decode(t, `
class: T
methods:
  - name: id
    access: public
    static: true
    params: [x.i32]
    returns: i32
    code: |
      ret.i32 x.i32
`)

	c := New(Config{Registers: Unlimited})

	obj, err := c.CompileClass(context.Background(), nil, cls)
	require.NoError(t, err)

	assert.Equal(t, `.class public T
.super java/lang/Object

.method public <init>()V
	aload_0
	invokespecial java/lang/Object/<init>()V
	return
.end method

.method public static id(I)I
	.limit stack 1
	.limit locals 1
	iload_0
	ireturn
.end method
`, string(obj))

	t.Logf("result:\n%s", obj)
}

func TestBudgetCollectAll(t *testing.T) {
	cls := decode(t, twoLoops)

	c := New(Config{Registers: 1})

	obj, err := c.CompileClass(context.Background(), nil, cls)
	assert.Nil(t, obj)

	var be BudgetErrors
	require.True(t, errors.As(err, &be), "%v", err)
	require.Len(t, be, 2)

	assert.Equal(t, "first", be[0].Method)
	assert.Equal(t, 2, be[0].Required)
	assert.Equal(t, 1, be[0].Limit)

	assert.Equal(t, "second", be[1].Method)

	var one *regalloc.BudgetError
	assert.True(t, errors.As(err, &one))
	assert.Equal(t, "first", one.Method)

	assert.Contains(t, err.Error(), "method first")
	assert.Contains(t, err.Error(), "method second")

	obj, err = New(Config{Registers: 2}).CompileClass(context.Background(), nil, cls)
	require.NoError(t, err)
	assert.Contains(t, string(obj), ".method public first()I")
	assert.Contains(t, string(obj), ".method public static easy()V")
	assert.Contains(t, string(obj), ".method public second()I")
}

func TestSkipAllocation(t *testing.T) {
	cls := decode(t, twoLoops)
	m := cls.Methods[2]

	am, err := New(Config{Registers: -1}).Analyze(context.Background(), m)
	require.NoError(t, err)

	assert.Nil(t, am.Live)
	assert.Nil(t, am.Alloc)
	assert.Equal(t, ir.BuildVarTable(m), am.Vars)
	assert.Equal(t, 3, am.Vars.Locals())

	am, err = New(Config{Registers: Unlimited}).Analyze(context.Background(), m)
	require.NoError(t, err)

	require.NotNil(t, am.Live)
	require.NotNil(t, am.Alloc)

	// x and y interfere, this keeps slot 0
	assert.Equal(t, 2, am.Alloc.K)
	assert.Equal(t, 3, am.Vars.Locals())

	m = cls.Methods[0]

	am, err = New(Config{Registers: Unlimited}).Analyze(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, 2, am.Alloc.K)
	assert.Equal(t, 0, am.Vars[ir.This].Reg)
}

func TestShareRegisters(t *testing.T) {
	cls := decode(t, `
class: S
methods:
  - name: f
    static: true
    code: |
      a.i32 :=.i32 1.i32
      invokestatic(io, "print", a.i32).V
      b.i32 :=.i32 2.i32
      invokestatic(io, "print", b.i32).V
      ret.V
`)

	naive, err := New(Config{Registers: -1}).CompileClass(context.Background(), nil, cls)
	require.NoError(t, err)
	assert.Contains(t, string(naive), ".limit locals 2\n")
	assert.Contains(t, string(naive), "istore_1\n")

	obj, err := New(Config{Registers: Unlimited}).CompileClass(context.Background(), nil, cls)
	require.NoError(t, err)
	assert.Contains(t, string(obj), ".limit locals 1\n")
	assert.NotContains(t, string(obj), "istore_1\n")
	assert.Equal(t, 2, strings.Count(string(obj), "istore_0\n"))
}
