package back

import (
	"context"
	"math"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jbc/compiler/cfg"
	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/jasmin"
	"github.com/slowlang/jbc/compiler/liveness"
	"github.com/slowlang/jbc/compiler/regalloc"
)

type (
	Config struct {
		// Registers is the register budget per method.
		// Negative value skips register allocation
		// and keeps one register per variable.
		Registers int
	}

	Compiler struct {
		Config
	}

	// Method holds the analysis results of one method.
	Method struct {
		*ir.Method

		CFG   *cfg.Graph
		Live  *liveness.Result
		Alloc *regalloc.Allocation

		// Vars is the register assignment used for emission.
		Vars ir.VarTable
	}

	// BudgetErrors lists every method of a class exceeding the register budget.
	BudgetErrors []*regalloc.BudgetError
)

// Unlimited is the budget which is never exceeded.
const Unlimited = math.MaxInt

func New(cfg Config) *Compiler {
	return &Compiler{Config: cfg}
}

// CompileClass appends the Jasmin text of cls to b.
// Methods are compiled in order. If any method exceeds the budget
// the rest are still checked and BudgetErrors is returned with no output.
func (c *Compiler) CompileClass(ctx context.Context, b []byte, cls *ir.ClassUnit) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile class", "class", cls.Name, "methods", len(cls.Methods), "registers", c.Registers)
	defer tr.Finish("err", &err)

	e := jasmin.New(cls)

	b, err = e.Header(b)
	if err != nil {
		return nil, errors.Wrap(err, "class header")
	}

	b = append(b, '\n')
	b = e.Constructor(b)

	var budget BudgetErrors

	for _, m := range cls.Methods {
		if m.Constructor {
			continue
		}

		am, err := c.Analyze(ctx, m)

		var be *regalloc.BudgetError
		if errors.As(err, &be) {
			tr.Printw("register budget exceeded", "method", m.Name, "required", be.Required, "limit", be.Limit)

			budget = append(budget, be)

			continue
		}

		if err != nil {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}

		if budget != nil {
			continue
		}

		b = append(b, '\n')

		b, err = e.Method(ctx, b, m, am.Vars)
		if err != nil {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}
	}

	if budget != nil {
		return nil, budget
	}

	return b, nil
}

// Analyze runs the method through the cfg, liveness and
// register allocation stages.
// On a budget violation it returns the analysis with the naive
// register assignment and a *regalloc.BudgetError.
func (c *Compiler) Analyze(ctx context.Context, m *ir.Method) (am *Method, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "analyze method", "method", m.Name)
	defer tr.Finish("err", &err)

	am = &Method{Method: m}

	am.CFG, err = cfg.Build(ctx, m)
	if err != nil {
		return nil, errors.Wrap(err, "cfg")
	}

	am.Vars = ir.BuildVarTable(m)

	if tr.If("dump_regs") {
		tr.Printw("naive registers", "vars", am.Vars, "locals", am.Vars.Locals())
	}

	if c.Registers < 0 {
		return am, nil
	}

	am.Live, err = liveness.Analyze(ctx, am.CFG, am.Vars)
	if err != nil {
		return nil, errors.Wrap(err, "liveness")
	}

	am.Alloc, err = regalloc.Allocate(ctx, am.Live, c.Registers)
	if err != nil {
		return am, err
	}

	am.Vars = am.Alloc.Apply(am.Vars)

	if tr.If("dump_regs") {
		tr.Printw("allocated registers", "vars", am.Vars, "locals", am.Vars.Locals(), "k", am.Alloc.K)
	}

	return am, nil
}

func (e BudgetErrors) Error() string {
	var b strings.Builder

	b.WriteString("register budget exceeded: ")

	for i, x := range e {
		if i != 0 {
			b.WriteString("; ")
		}

		b.WriteString(x.Error())
	}

	return b.String()
}

// Unwrap lets errors.As find the individual violations.
func (e BudgetErrors) Unwrap() []error {
	l := make([]error, len(e))

	for i, x := range e {
		l[i] = x
	}

	return l
}
