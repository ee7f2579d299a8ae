package compiler

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/jbc/compiler/back"
	"github.com/slowlang/jbc/compiler/irfile"
)

func TestCompileFileGolden(t *testing.T) {
	exp, err := os.ReadFile("testdata/printer.j")
	require.NoError(t, err)

	obj, err := CompileFile(context.Background(), "testdata/printer.yml", back.Config{Registers: back.Unlimited})
	require.NoError(t, err)

	assert.Equal(t, string(exp), string(obj))
}

func TestCompileNaive(t *testing.T) {
	obj, err := CompileFile(context.Background(), "testdata/printer.yml", back.Config{Registers: -1})
	require.NoError(t, err)

	assert.Contains(t, string(obj), "\t.limit locals 3\n")
	assert.Contains(t, string(obj), "\tistore_2\n")
}

func TestCompileLoop(t *testing.T) {
	obj, err := CompileFile(context.Background(), "testdata/fib.yml", back.Config{Registers: back.Unlimited})
	require.NoError(t, err)

	s := string(obj)

	assert.Contains(t, s, ".method public static fib(I)I\n")
	assert.Contains(t, s, "\t.limit locals 5\n")
	assert.Contains(t, s, "Loop:\n")
	assert.Contains(t, s, "\tif_icmpge End\n")
	assert.Contains(t, s, "\tiinc 3 1\n")
	assert.Contains(t, s, "\tinvokestatic Fib/fib(I)I\n")
	assert.Contains(t, s, ".method public static main([Ljava/lang/String;)V\n")

	t.Logf("result:\n%s", obj)
}

func TestCompileBudget(t *testing.T) {
	_, err := CompileFile(context.Background(), "testdata/fib.yml", back.Config{Registers: 4})

	var be back.BudgetErrors
	require.True(t, errors.As(err, &be), "%v", err)
	require.Len(t, be, 1)

	assert.Equal(t, "fib", be[0].Method)
	assert.Equal(t, 5, be[0].Required)
	assert.Equal(t, 4, be[0].Limit)
}

func TestCompileErrors(t *testing.T) {
	_, err := CompileFile(context.Background(), "testdata/missing.yml", back.Config{})
	assert.Error(t, err)

	_, err = Compile(context.Background(), strings.NewReader(`
class: Bad
methods:
  - name: f
    static: true
    code: |
      goto Nowhere
`), back.Config{})
	assert.ErrorContains(t, err, "method f")

	_, err = Compile(context.Background(), strings.NewReader(`
class: Bad
methods:
  - name: f
    code: |
      x.i32 :=.i32 %%
`), back.Config{})

	var se *irfile.SyntaxError
	assert.True(t, errors.As(err, &se), "%v", err)
}

func TestLiveness(t *testing.T) {
	out, err := LivenessFile(context.Background(), "testdata/printer.yml", back.Config{Registers: -1})
	require.NoError(t, err)

	s := string(out)

	assert.True(t, strings.HasPrefix(s, "method show"), "%s", s)
	assert.Contains(t, s, "use [a]  def [b]  in [a]  out [b]\n")
	assert.Contains(t, s, "registers 1\n")
	assert.NotContains(t, s, "<init>")

	cls, err := irfile.ReadFile("testdata/fib.yml")
	require.NoError(t, err)

	out, err = Liveness(context.Background(), nil, cls, back.Config{Registers: 2})
	require.NoError(t, err)

	assert.Contains(t, string(out), "method fib")
	assert.Contains(t, string(out), "method main")
	assert.Contains(t, string(out), "5 registers required, limit is 2")

	t.Logf("report:\n%s", out)
}
