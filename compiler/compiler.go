package compiler

import (
	"context"
	"io"
	"os"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jbc/compiler/back"
	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/irfile"
	"github.com/slowlang/jbc/compiler/regalloc"
)

func CompileFile(ctx context.Context, name string, cfg back.Config) (obj []byte, err error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}

	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close file")
		}
	}()

	tlog.SpanFromContext(ctx).Printw("read file", "name", name)

	return Compile(ctx, f, cfg)
}

func Compile(ctx context.Context, r io.Reader, cfg back.Config) (obj []byte, err error) {
	cls, err := irfile.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode class")
	}

	obj, err = back.New(cfg).CompileClass(ctx, nil, cls)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return obj, nil
}

// LivenessFile reads a class file and reports its analysis with Liveness.
func LivenessFile(ctx context.Context, name string, cfg back.Config) ([]byte, error) {
	cls, err := irfile.ReadFile(name)
	if err != nil {
		return nil, err
	}

	return Liveness(ctx, nil, cls, cfg)
}

// Liveness appends per instruction USE, DEF, IN and OUT sets
// and the register assignment of every method of cls.
// Negative cfg.Registers is treated as no limit.
func Liveness(ctx context.Context, b []byte, cls *ir.ClassUnit, cfg back.Config) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "liveness report", "class", cls.Name)
	defer tr.Finish("err", &err)

	if cfg.Registers < 0 {
		cfg.Registers = back.Unlimited
	}

	c := back.New(cfg)
	first := true

	for _, m := range cls.Methods {
		if m.Constructor {
			continue
		}

		am, err := c.Analyze(ctx, m)

		var be *regalloc.BudgetError
		if err != nil && !errors.As(err, &be) {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}

		if !first {
			b = append(b, '\n')
		}

		first = false

		b = appendMethod(b, am)

		if be != nil {
			b = hfmt.Appendf(b, "  %v\n", be)
		}
	}

	return b, nil
}

func appendMethod(b []byte, am *back.Method) []byte {
	l := am.Live

	b = hfmt.Appendf(b, "method %s  steps %d\n", am.Name, l.Steps)

	for i, x := range am.Code {
		id := i + 1

		for _, lab := range am.LabelsAt(id) {
			b = hfmt.Appendf(b, "%s:\n", lab)
		}

		b = hfmt.Appendf(b, "%4d  %s\n", id, ir.Format(x))
		b = hfmt.Appendf(b, "      use %v  def %v  in %v  out %v\n",
			l.Names(l.Use[id]), l.Names(l.Def[id]), l.Names(l.In[id]), l.Names(l.Out[id]))
	}

	b = hfmt.Appendf(b, "  registers %d\n", am.Alloc.K)

	for _, v := range l.Vars {
		c, ok := am.Alloc.Color(v)
		if !ok {
			b = hfmt.Appendf(b, "    %-10s -\n", v)
			continue
		}

		b = hfmt.Appendf(b, "    %-10s color %d  reg %d\n", v, c, am.Vars[v].Reg)
	}

	return b
}
