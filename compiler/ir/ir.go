package ir

import (
	"github.com/slowlang/jbc/compiler/tp"
)

type (
	// Element is an instruction operand: Operand, Literal or ArrayElem.
	Element interface {
		ElemType() tp.Type

		elem()
	}

	// Operand names a variable, the receiver (this) or a field.
	Operand struct {
		Name string
		Type tp.Type
	}

	// Literal is a constant embedded in the code.
	// Value is the decimal number, true/false, or a quoted string.
	Literal struct {
		Value string
		Type  tp.Type
	}

	// ArrayElem is Name[Index]. Type is the element type.
	ArrayElem struct {
		Name  string
		Index Element
		Type  tp.Type
	}

	// Instr is one of the instruction kinds below. The set is closed.
	Instr interface {
		instr()
	}

	Assign struct {
		Dest Element // Operand or ArrayElem
		Type tp.Type
		RHS  Instr
	}

	Call struct {
		Invoke Invoke

		Receiver Element // virtual, special, arraylength
		Class    string  // static, new

		Method string
		Args   []Element
		Ret    tp.Type
	}

	UnaryOp struct {
		Op   Op
		X    Element
		Type tp.Type
	}

	BinaryOp struct {
		Op   Op
		L, R Element
		Type tp.Type
	}

	// SingleOp yields its only operand.
	SingleOp struct {
		X Element
	}

	GetField struct {
		Object Operand
		Field  Operand
	}

	PutField struct {
		Object Operand
		Field  Operand
		Value  Element
	}

	Return struct {
		X    Element // nil for void
		Type tp.Type
	}

	Goto struct {
		Label string
	}

	// Branch jumps to Label if Cond holds.
	// Cond is a BinaryOp, UnaryOp or SingleOp.
	Branch struct {
		Cond  Instr
		Label string
	}

	Nop struct{}

	Op     int
	Invoke int
)

const (
	_ Op = iota
	Add
	Sub
	Mul
	Div
	And
	Or
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
	Not
)

const (
	_ Invoke = iota
	InvokeStatic
	InvokeSpecial
	InvokeVirtual
	New
	ArrayLength
)

func (Operand) elem()   {}
func (Literal) elem()   {}
func (ArrayElem) elem() {}

func (x Operand) ElemType() tp.Type   { return x.Type }
func (x Literal) ElemType() tp.Type   { return x.Type }
func (x ArrayElem) ElemType() tp.Type { return x.Type }

func (Assign) instr()   {}
func (Call) instr()     {}
func (UnaryOp) instr()  {}
func (BinaryOp) instr() {}
func (SingleOp) instr() {}
func (GetField) instr() {}
func (PutField) instr() {}
func (Return) instr()   {}
func (Goto) instr()     {}
func (Branch) instr()   {}
func (Nop) instr()      {}

// IsThis reports whether x is the implicit receiver.
func (x Operand) IsThis() bool {
	_, ok := x.Type.(tp.This)
	return ok || x.Name == This
}

// Relational reports whether op compares two ints and yields a boolean.
func (op Op) Relational() bool {
	switch op {
	case Lt, Le, Gt, Ge, Eq, Ne:
		return true
	}

	return false
}

func (op Op) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case And:
		return "&&"
	case Or:
		return "||"
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Not:
		return "!"
	default:
		return "op?"
	}
}

func (k Invoke) String() string {
	switch k {
	case InvokeStatic:
		return "invokestatic"
	case InvokeSpecial:
		return "invokespecial"
	case InvokeVirtual:
		return "invokevirtual"
	case New:
		return "new"
	case ArrayLength:
		return "arraylength"
	default:
		return "invoke?"
	}
}

// Elements calls f for every element x reads or writes, in evaluation order.
// Field names of GetField and PutField are not elements.
func Elements(x Instr, f func(Element)) {
	switch x := x.(type) {
	case Assign:
		if a, ok := x.Dest.(ArrayElem); ok {
			f(a)
		}

		Elements(x.RHS, f)

		if o, ok := x.Dest.(Operand); ok {
			f(o)
		}
	case Call:
		if x.Receiver != nil {
			f(x.Receiver)
		}

		for _, a := range x.Args {
			f(a)
		}
	case UnaryOp:
		f(x.X)
	case BinaryOp:
		f(x.L)
		f(x.R)
	case SingleOp:
		f(x.X)
	case GetField:
		f(x.Object)
	case PutField:
		f(x.Object)
		f(x.Value)
	case Return:
		if x.X != nil {
			f(x.X)
		}
	case Branch:
		Elements(x.Cond, f)
	case Goto, Nop, nil:
	default:
		panic(x)
	}
}
