package ir

import (
	"fmt"
	"strconv"

	"github.com/slowlang/jbc/compiler/tp"
)

// Format prints x in the class file instruction syntax.
func Format(x Instr) string {
	return string(AppendInstr(nil, x))
}

// FormatElem prints e in the class file operand syntax.
func FormatElem(e Element) string {
	return string(AppendElem(nil, e))
}

func AppendInstr(b []byte, x Instr) []byte {
	switch x := x.(type) {
	case Assign:
		b = AppendElem(b, x.Dest)
		b = fmt.Appendf(b, " :=.%v ", x.Type)
		b = AppendInstr(b, x.RHS)
	case Call:
		b = append(b, x.Invoke.String()...)
		b = append(b, '(')

		switch x.Invoke {
		case InvokeStatic:
			b = append(b, x.Class...)
			b = fmt.Appendf(b, ", %s", strconv.Quote(x.Method))
		case InvokeVirtual, InvokeSpecial:
			b = AppendElem(b, x.Receiver)
			b = fmt.Appendf(b, ", %s", strconv.Quote(x.Method))
		case New:
			if _, ok := x.Ret.(tp.Array); ok {
				b = append(b, "array"...)
			} else {
				b = append(b, x.Class...)
			}
		case ArrayLength:
			b = AppendElem(b, x.Receiver)
		}

		for _, a := range x.Args {
			b = append(b, ", "...)
			b = AppendElem(b, a)
		}

		b = fmt.Appendf(b, ").%v", x.Ret)
	case UnaryOp:
		b = fmt.Appendf(b, "%v.%v ", x.Op, x.Type)
		b = AppendElem(b, x.X)
	case BinaryOp:
		b = AppendElem(b, x.L)
		b = fmt.Appendf(b, " %v.%v ", x.Op, x.Type)
		b = AppendElem(b, x.R)
	case SingleOp:
		b = AppendElem(b, x.X)
	case GetField:
		b = append(b, "getfield("...)
		b = AppendElem(b, x.Object)
		b = append(b, ", "...)
		b = AppendElem(b, x.Field)
		b = fmt.Appendf(b, ").%v", x.Field.Type)
	case PutField:
		b = append(b, "putfield("...)
		b = AppendElem(b, x.Object)
		b = append(b, ", "...)
		b = AppendElem(b, x.Field)
		b = append(b, ", "...)
		b = AppendElem(b, x.Value)
		b = append(b, ").V"...)
	case Return:
		b = fmt.Appendf(b, "ret.%v", x.Type)

		if x.X != nil {
			b = append(b, ' ')
			b = AppendElem(b, x.X)
		}
	case Goto:
		b = append(b, "goto "...)
		b = append(b, x.Label...)
	case Branch:
		b = append(b, "if ("...)
		b = AppendInstr(b, x.Cond)
		b = append(b, ") goto "...)
		b = append(b, x.Label...)
	case Nop:
		b = append(b, "nop"...)
	default:
		b = fmt.Appendf(b, "<%T>", x)
	}

	return b
}

func AppendElem(b []byte, e Element) []byte {
	switch e := e.(type) {
	case Operand:
		b = append(b, e.Name...)
	case Literal:
		b = append(b, e.Value...)
	case ArrayElem:
		b = append(b, e.Name...)
		b = append(b, '[')
		b = AppendElem(b, e.Index)
		b = append(b, ']')
	default:
		return fmt.Appendf(b, "<%T>", e)
	}

	if t := e.ElemType(); t != nil && t.String() != "" {
		b = fmt.Appendf(b, ".%v", t)
	}

	return b
}
