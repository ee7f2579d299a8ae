package cfg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/irfile"
)

func build(t *testing.T, code string) (*Graph, error) {
	t.Helper()

	c, labels, err := irfile.ParseCode(code)
	require.NoError(t, err)

	return Build(context.Background(), &ir.Method{Name: t.Name(), Static: true, Code: c, Labels: labels})
}

func TestBuildLoop(t *testing.T) {
	g, err := build(t, `
	i.i32 :=.i32 0.i32
Loop:
	if (i.i32 >=.bool 10.i32) goto End
	i.i32 :=.i32 i.i32 +.i32 1.i32
	goto Loop
End:
	ret.V
`)
	require.NoError(t, err)

	assert.Equal(t, 5, g.Len())
	assert.Equal(t, []int{1}, g.Begin().Succs)
	assert.Equal(t, []int{5}, g.End().Preds)

	assert.Equal(t, []int{2}, g.Succs(1))
	assert.Equal(t, []int{5, 3}, g.Succs(2))
	assert.Equal(t, []int{4}, g.Succs(3))
	assert.Equal(t, []int{2}, g.Succs(4))
	assert.Equal(t, []int{Sentinel}, g.Succs(5))

	assert.Equal(t, []int{Sentinel}, g.Preds(1))
	assert.ElementsMatch(t, []int{1, 4}, g.Preds(2))
	assert.Equal(t, []int{2}, g.Preds(5))
}

func TestBranchToNext(t *testing.T) {
	g, err := build(t, `
	if (b.bool) goto Next
Next:
	ret.V
`)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, g.Succs(1))
	assert.Equal(t, []int{1}, g.Preds(2))
}

func TestReachable(t *testing.T) {
	g, err := build(t, `
	goto End
	x.i32 :=.i32 1.i32
	goto End
End:
	ret.V
`)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, false, false, true}, g.Reachable())
	assert.Len(t, g.End().Preds, 1)

	assert.Panics(t, func() { g.Node(Sentinel) })
}

func TestBuildErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		code string
		err  string
	}{
		{"undefined_label", "goto Nowhere\nret.V\n", "undefined label"},
		{"fall_through", "x.i32 :=.i32 1.i32\n", "falls through"},
		{"branch_at_end", "L:\nif (b.bool) goto L\n", "falls through"},
		{"unreachable_return", "L:\ngoto L\nret.V\n", "unreachable"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := build(t, tc.code)
			assert.ErrorContains(t, err, tc.err)
		})
	}

	_, err := Build(context.Background(), &ir.Method{Name: "empty"})
	assert.ErrorContains(t, err, "no instructions")
}
