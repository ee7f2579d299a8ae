package jasmin

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/tp"
)

type (
	// Emitter writes one class as Jasmin assembler text.
	// It keeps the synthetic label counter across methods,
	// so one Emitter must be used per output class.
	Emitter struct {
		Class *ir.ClassUnit

		labels int

		// current method
		m     *ir.Method
		vt    ir.VarTable
		id    int
		depth int
		max   int
	}

	// InternalError is an emitter defect or an instruction it can't encode.
	InternalError struct {
		Method string
		Instr  int
		Msg    string

		At loc.PC
	}
)

const ObjectClass = "java/lang/Object"

func New(c *ir.ClassUnit) *Emitter {
	return &Emitter{Class: c}
}

// Header emits the class and super directives and the fields.
func (e *Emitter) Header(b []byte) (_ []byte, err error) {
	defer e.recover(&err)

	b = hfmt.Appendf(b, ".class public %s\n", e.Class.Name)
	b = hfmt.Appendf(b, ".super %s\n", e.Super())

	if len(e.Class.Fields) != 0 {
		b = append(b, '\n')
	}

	for _, f := range e.Class.Fields {
		b = append(b, ".field "...)
		b = appendAccess(b, f.Access)
		b = hfmt.Appendf(b, "%s %s\n", f.Name, e.desc(f.Type))
	}

	return b, nil
}

// Constructor emits the default constructor calling the superclass one.
func (e *Emitter) Constructor(b []byte) []byte {
	b = append(b, ".method public <init>()V\n"...)
	b = append(b, "\taload_0\n"...)
	b = hfmt.Appendf(b, "\tinvokespecial %s/<init>()V\n", e.Super())
	b = append(b, "\treturn\n"...)
	b = append(b, ".end method\n"...)

	return b
}

// Method emits one method using registers from vt.
// The stack limit is computed from the emitted body.
func (e *Emitter) Method(ctx context.Context, b []byte, m *ir.Method, vt ir.VarTable) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "jasmin: method", "method", m.Name, "labels", e.labels)
	defer tr.Finish("err", &err)

	defer e.recover(&err)

	e.m = m
	e.vt = vt
	e.depth = 0
	e.max = 0

	defer func() {
		e.m = nil
		e.vt = nil
		e.id = 0
	}()

	var body []byte

	for i, x := range m.Code {
		e.id = i + 1

		for _, l := range m.LabelsAt(e.id) {
			body = hfmt.Appendf(body, "%s:\n", l)
		}

		body = e.stmt(body, x)

		if e.depth != 0 {
			e.fail("stack depth %d at statement end", e.depth)
		}
	}

	e.id = 0

	b = append(b, ".method "...)
	b = appendAccess(b, m.Access)

	if m.Static {
		b = append(b, "static "...)
	}

	b = hfmt.Appendf(b, "%s(", m.Name)

	for _, p := range m.Params {
		b = append(b, e.desc(p.Type)...)
	}

	b = hfmt.Appendf(b, ")%s\n", e.desc(m.Ret))
	b = hfmt.Appendf(b, "\t.limit stack %d\n", e.max)
	b = hfmt.Appendf(b, "\t.limit locals %d\n", vt.Locals())
	b = append(b, body...)
	b = append(b, ".end method\n"...)

	tr.Printw("method emitted", "stack", e.max, "locals", vt.Locals(), "bytes", len(body))

	if tr.If("dump_code") {
		tr.Printw("code", "method", m.Name, "text", string(body))
	}

	return b, nil
}

// MaxStack is the high-water mark of the last emitted method.
func (e *Emitter) MaxStack() int { return e.max }

// Super is the resolved superclass name.
func (e *Emitter) Super() string {
	if e.Class.Super == "" {
		return ObjectClass
	}

	return e.Resolve(e.Class.Super)
}

// Resolve maps a class name to its qualified form.
// "this" is the current class, a name matching the last segment
// of an import is the import path.
func (e *Emitter) Resolve(name string) string {
	if name == ir.This {
		return e.Class.Name
	}

	for _, imp := range e.Class.Imports {
		last := imp
		if p := strings.LastIndexByte(imp, '.'); p >= 0 {
			last = imp[p+1:]
		}

		if last == name {
			return strings.ReplaceAll(imp, ".", "/")
		}
	}

	return name
}

func (e *Emitter) desc(t tp.Type) string {
	if t == nil {
		e.fail("missing type")
	}

	d, err := tp.Descriptor(t, e.resolveType)
	if err != nil {
		e.fail("%v", err)
	}

	return d
}

func (e *Emitter) resolveType(name string) string {
	if name == "" {
		return e.Class.Name
	}

	return e.Resolve(name)
}

func (e *Emitter) push(n int) {
	e.depth += n

	if e.depth > e.max {
		e.max = e.depth
	}
}

func (e *Emitter) pop(n int) {
	e.depth -= n

	if e.depth < 0 {
		e.fail("stack underflow: depth %d", e.depth)
	}
}

func (e *Emitter) label(kind string) string {
	return fmt.Sprintf("%s_%d", kind, e.labels)
}

func (e *Emitter) fail(format string, args ...any) {
	err := &InternalError{
		Msg: fmt.Sprintf(format, args...),
		At:  loc.Caller(1),
	}

	if e.m != nil {
		err.Method = e.m.Name
		err.Instr = e.id
	}

	panic(err)
}

func (e *Emitter) recover(errp *error) {
	p := recover()
	if p == nil {
		return
	}

	ie, ok := p.(*InternalError)
	if !ok {
		panic(p)
	}

	*errp = ie
}

func appendAccess(b []byte, a ir.Access) []byte {
	if s := a.String(); s != "" {
		b = append(b, s...)
		b = append(b, ' ')
	}

	return b
}

func (e *InternalError) Error() string {
	var b []byte

	if e.Method != "" {
		b = hfmt.Appendf(b, "method %s: ", e.Method)
	}

	if e.Instr != 0 {
		b = hfmt.Appendf(b, "instr %d: ", e.Instr)
	}

	b = hfmt.Appendf(b, "%s (at %v)", e.Msg, e.At)

	return string(b)
}
