package jasmin

import (
	"strconv"

	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/tp"
)

// stmt emits x as a statement leaving the stack as it was.
func (e *Emitter) stmt(b []byte, x ir.Instr) []byte {
	switch x := x.(type) {
	case ir.Assign:
		return e.assign(b, x)
	case ir.Call:
		b = e.call(b, x)

		if pushes(x) {
			b = e.op(b, "pop")
			e.pop(1)
		}

		return b
	case ir.PutField:
		b = e.load(b, x.Object)
		b = e.load(b, x.Value)
		b = hfmt.Appendf(b, "\tputfield %s/%s %s\n", e.owner(x.Object), x.Field.Name, e.desc(x.Field.Type))
		e.pop(2)

		return b
	case ir.Return:
		if x.X == nil {
			return e.op(b, "return")
		}

		t := x.Type
		if t == nil {
			t = e.typeOf(x.X)
		}

		b = e.load(b, x.X)

		switch {
		case tp.IsInt(t):
			b = e.op(b, "ireturn")
		case tp.IsRef(t):
			b = e.op(b, "areturn")
		default:
			e.fail("return of %v", t)
		}

		e.pop(1)

		return b
	case ir.Goto:
		return hfmt.Appendf(b, "\tgoto %s\n", x.Label)
	case ir.Branch:
		return e.jump(b, x.Cond, x.Label)
	case ir.Nop:
		return e.op(b, "nop")
	case ir.UnaryOp, ir.BinaryOp, ir.SingleOp, ir.GetField:
		b = e.value(b, x)
		b = e.op(b, "pop")
		e.pop(1)

		return b
	default:
		e.fail("unsupported instruction %T", x)
		return nil
	}
}

func (e *Emitter) assign(b []byte, x ir.Assign) []byte {
	switch d := x.Dest.(type) {
	case ir.Operand:
		if b, ok := e.iinc(b, d, x.RHS); ok {
			return b
		}

		t := d.Type
		if t == nil {
			t = x.Type
		}

		b = e.value(b, x.RHS)

		switch {
		case tp.IsInt(t):
			b = e.regOp(b, "istore", e.reg(d.Name))
		case tp.IsRef(t):
			b = e.regOp(b, "astore", e.reg(d.Name))
		default:
			e.fail("store of %v", t)
		}

		e.pop(1)

		return b
	case ir.ArrayElem:
		b = e.regOp(b, "aload", e.reg(d.Name))
		e.push(1)
		b = e.load(b, d.Index)
		b = e.value(b, x.RHS)
		b = e.op(b, arrayOp(d.Type, "store"))
		e.pop(3)

		return b
	default:
		e.fail("assignment to %T", x.Dest)
		return nil
	}
}

// iinc replaces dest := dest + lit, dest := lit + dest and dest := dest - lit.
func (e *Emitter) iinc(b []byte, d ir.Operand, rhs ir.Instr) ([]byte, bool) {
	op, ok := rhs.(ir.BinaryOp)
	if !ok || op.Op != ir.Add && op.Op != ir.Sub {
		return b, false
	}

	if _, ok := e.typeOf(d).(tp.Int); !ok {
		return b, false
	}

	same := func(x ir.Element) bool {
		o, ok := x.(ir.Operand)
		return ok && o.Name == d.Name
	}

	var lit ir.Element

	switch {
	case same(op.L):
		lit = op.R
	case op.Op == ir.Add && same(op.R):
		lit = op.L
	default:
		return b, false
	}

	l, ok := lit.(ir.Literal)
	if !ok {
		return b, false
	}

	v, err := strconv.Atoi(l.Value)
	if err != nil {
		return b, false
	}

	if v < -128 || v > 127 {
		return b, false
	}

	if op.Op == ir.Sub {
		v = -v
	}

	r := e.reg(d.Name)

	if v > 127 || r > 255 {
		return b, false
	}

	return hfmt.Appendf(b, "\tiinc %d %d\n", r, v), true
}

// value emits x leaving exactly one value on the stack.
func (e *Emitter) value(b []byte, x ir.Instr) []byte {
	switch x := x.(type) {
	case ir.SingleOp:
		return e.load(b, x.X)
	case ir.BinaryOp:
		if x.Op.Relational() {
			return e.materialize(b, x)
		}

		b = e.load(b, x.L)
		b = e.load(b, x.R)

		switch x.Op {
		case ir.Add:
			b = e.op(b, "iadd")
		case ir.Sub:
			b = e.op(b, "isub")
		case ir.Mul:
			b = e.op(b, "imul")
		case ir.Div:
			b = e.op(b, "idiv")
		case ir.And:
			b = e.op(b, "iand")
		case ir.Or:
			b = e.op(b, "ior")
		default:
			e.fail("unsupported operator %v", x.Op)
		}

		e.pop(1)

		return b
	case ir.UnaryOp:
		if x.Op != ir.Not {
			e.fail("unsupported operator %v", x.Op)
		}

		return e.materialize(b, x)
	case ir.Call:
		if !pushes(x) {
			e.fail("void call used as value")
		}

		return e.call(b, x)
	case ir.GetField:
		b = e.load(b, x.Object)
		b = hfmt.Appendf(b, "\tgetfield %s/%s %s\n", e.owner(x.Object), x.Field.Name, e.desc(x.Field.Type))

		return b
	default:
		e.fail("unsupported value %T", x)
		return nil
	}
}

// materialize pushes 1 if cond holds and 0 otherwise.
func (e *Emitter) materialize(b []byte, cond ir.Instr) []byte {
	t := e.label("cmp_true")
	f := e.label("cmp_end")
	e.labels++

	base := e.depth

	b = e.jump(b, cond, t)

	b = e.op(b, "iconst_0")
	e.push(1)
	b = hfmt.Appendf(b, "\tgoto %s\n", f)

	e.depth = base

	b = hfmt.Appendf(b, "%s:\n", t)
	b = e.op(b, "iconst_1")
	e.push(1)

	b = hfmt.Appendf(b, "%s:\n", f)

	return b
}

// jump emits a conditional jump to label taken if cond holds.
func (e *Emitter) jump(b []byte, cond ir.Instr, label string) []byte {
	switch c := cond.(type) {
	case ir.BinaryOp:
		if !c.Op.Relational() {
			break
		}

		switch {
		case isZero(c.R):
			b = e.load(b, c.L)
			b = hfmt.Appendf(b, "\tif%s %s\n", cmpSuffix(c.Op), label)
			e.pop(1)
		case isZero(c.L):
			b = e.load(b, c.R)
			b = hfmt.Appendf(b, "\tif%s %s\n", cmpSuffix(mirror(c.Op)), label)
			e.pop(1)
		default:
			b = e.load(b, c.L)
			b = e.load(b, c.R)
			b = hfmt.Appendf(b, "\tif_icmp%s %s\n", cmpSuffix(c.Op), label)
			e.pop(2)
		}

		return b
	case ir.UnaryOp:
		if c.Op != ir.Not {
			e.fail("unsupported operator %v", c.Op)
		}

		b = e.load(b, c.X)
		b = hfmt.Appendf(b, "\tifeq %s\n", label)
		e.pop(1)

		return b
	}

	b = e.value(b, cond)
	b = hfmt.Appendf(b, "\tifne %s\n", label)
	e.pop(1)

	return b
}

func (e *Emitter) call(b []byte, x ir.Call) []byte {
	switch x.Invoke {
	case ir.InvokeStatic:
		b = e.loadArgs(b, x.Args)
		b = hfmt.Appendf(b, "\tinvokestatic %s/%s%s\n", e.Resolve(x.Class), x.Method, e.signature(x))
	case ir.InvokeVirtual, ir.InvokeSpecial:
		if x.Receiver == nil {
			e.fail("%v without receiver", x.Invoke)
		}

		b = e.load(b, x.Receiver)
		b = e.loadArgs(b, x.Args)
		b = hfmt.Appendf(b, "\t%s %s/%s%s\n", x.Invoke.String(), e.classOf(x.Receiver), x.Method, e.signature(x))
		e.pop(1)
	case ir.New:
		if at, ok := x.Ret.(tp.Array); ok {
			if len(x.Args) != 1 {
				e.fail("new array wants one length argument, got %d", len(x.Args))
			}

			b = e.load(b, x.Args[0])
			e.pop(1)

			switch et := at.Elem.(type) {
			case tp.Int:
				b = e.op(b, "newarray int")
			case tp.Bool:
				b = e.op(b, "newarray boolean")
			case tp.String, tp.Class, tp.This, tp.Array:
				b = hfmt.Appendf(b, "\tanewarray %s\n", e.refName(et))
			default:
				e.fail("array of %v", et)
			}

			e.push(1)

			return b
		}

		if len(x.Args) != 0 {
			e.fail("new %v takes no arguments, got %d", x.Class, len(x.Args))
		}

		b = hfmt.Appendf(b, "\tnew %s\n", e.Resolve(x.Class))
		e.push(1)

		return b
	case ir.ArrayLength:
		b = e.load(b, x.Receiver)
		b = e.op(b, "arraylength")

		return b
	default:
		e.fail("unsupported invocation %v", x.Invoke)
	}

	e.pop(len(x.Args))

	if !isVoid(x.Ret) {
		e.push(1)
	}

	return b
}

func (e *Emitter) signature(x ir.Call) string {
	var b []byte

	b = append(b, '(')

	for _, a := range x.Args {
		b = append(b, e.desc(e.typeOf(a))...)
	}

	b = append(b, ')')
	b = append(b, e.desc(x.Ret)...)

	return string(b)
}

func (e *Emitter) loadArgs(b []byte, args []ir.Element) []byte {
	for _, a := range args {
		b = e.load(b, a)
	}

	return b
}

// load pushes one element.
func (e *Emitter) load(b []byte, x ir.Element) []byte {
	switch x := x.(type) {
	case ir.Literal:
		return e.literal(b, x)
	case ir.Operand:
		if x.IsThis() {
			b = e.op(b, "aload_0")
			e.push(1)

			return b
		}

		t := e.typeOf(x)

		switch {
		case tp.IsInt(t):
			b = e.regOp(b, "iload", e.reg(x.Name))
		case tp.IsRef(t):
			b = e.regOp(b, "aload", e.reg(x.Name))
		default:
			e.fail("load of %v %v", x.Name, t)
		}

		e.push(1)

		return b
	case ir.ArrayElem:
		b = e.regOp(b, "aload", e.reg(x.Name))
		e.push(1)
		b = e.load(b, x.Index)
		b = e.op(b, arrayOp(x.Type, "load"))
		e.pop(1)

		return b
	default:
		e.fail("unsupported element %T", x)
		return nil
	}
}

func (e *Emitter) literal(b []byte, x ir.Literal) []byte {
	e.push(1)

	switch x.Type.(type) {
	case tp.Int, tp.Bool:
	default:
		return hfmt.Appendf(b, "\tldc %s\n", x.Value)
	}

	var v int

	switch x.Value {
	case "true":
		v = 1
	case "false":
		v = 0
	default:
		var err error

		v, err = strconv.Atoi(x.Value)
		if err != nil {
			e.fail("bad literal %q: %v", x.Value, err)
		}
	}

	return hfmt.Appendf(b, "\t%s\n", IntConst(v))
}

// IntConst is the shortest instruction pushing v.
func IntConst(v int) string {
	switch {
	case v == -1:
		return "iconst_m1"
	case v >= 0 && v <= 5:
		return "iconst_" + strconv.Itoa(v)
	case v >= -128 && v <= 127:
		return "bipush " + strconv.Itoa(v)
	case v >= -32768 && v <= 32767:
		return "sipush " + strconv.Itoa(v)
	default:
		return "ldc " + strconv.Itoa(v)
	}
}

func (e *Emitter) reg(name string) int {
	d, ok := e.vt[name]
	if !ok {
		e.fail("no register for %v", name)
	}

	return d.Reg
}

func (e *Emitter) typeOf(x ir.Element) tp.Type {
	if t := x.ElemType(); t != nil {
		return t
	}

	if o, ok := x.(ir.Operand); ok {
		if d, ok := e.vt[o.Name]; ok {
			return d.Type
		}
	}

	e.fail("no type for %v", ir.FormatElem(x))

	return nil
}

// owner is the class declaring a field accessed through obj.
func (e *Emitter) owner(obj ir.Operand) string {
	if obj.IsThis() {
		return e.Class.Name
	}

	return e.classOf(obj)
}

func (e *Emitter) classOf(x ir.Element) string {
	if o, ok := x.(ir.Operand); ok && o.IsThis() {
		return e.Class.Name
	}

	return e.refName(e.typeOf(x))
}

// refName is the internal name of a reference type as used by
// new, anewarray, invoke and field instructions.
func (e *Emitter) refName(t tp.Type) string {
	switch t := t.(type) {
	case tp.String:
		return "java/lang/String"
	case tp.Class:
		return e.Resolve(t.Name)
	case tp.This:
		return e.Class.Name
	case tp.Array:
		return e.desc(t)
	default:
		e.fail("not a reference type: %v", t)
		return ""
	}
}

func (e *Emitter) op(b []byte, op string) []byte {
	return hfmt.Appendf(b, "\t%s\n", op)
}

func (e *Emitter) regOp(b []byte, op string, r int) []byte {
	if r <= 3 {
		return hfmt.Appendf(b, "\t%s_%d\n", op, r)
	}

	return hfmt.Appendf(b, "\t%s %d\n", op, r)
}

func arrayOp(elem tp.Type, kind string) string {
	switch elem.(type) {
	case tp.Int:
		return "ia" + kind
	case tp.Bool:
		return "ba" + kind
	default:
		return "aa" + kind
	}
}

func pushes(x ir.Call) bool {
	return !isVoid(x.Ret)
}

func isVoid(t tp.Type) bool {
	_, ok := t.(tp.Void)
	return ok || t == nil
}

func isZero(x ir.Element) bool {
	l, ok := x.(ir.Literal)
	if !ok {
		return false
	}

	v, err := strconv.Atoi(l.Value)

	return err == nil && v == 0
}

func cmpSuffix(op ir.Op) string {
	switch op {
	case ir.Lt:
		return "lt"
	case ir.Le:
		return "le"
	case ir.Gt:
		return "gt"
	case ir.Ge:
		return "ge"
	case ir.Eq:
		return "eq"
	case ir.Ne:
		return "ne"
	default:
		panic(op)
	}
}

// mirror swaps the operands of a comparison: 0 < x is x > 0.
func mirror(op ir.Op) ir.Op {
	switch op {
	case ir.Lt:
		return ir.Gt
	case ir.Le:
		return ir.Ge
	case ir.Gt:
		return ir.Lt
	case ir.Ge:
		return ir.Le
	default:
		return op
	}
}
