package irfile

import (
	"bytes"
	"strconv"
	"strings"

	"tlog.app/go/errors"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/tp"
)

type (
	// SyntaxError points at the offending column of a code line.
	SyntaxError struct {
		Line int
		Col  int
		Text string
		Msg  string
	}
)

var ops = map[string]ir.Op{
	"+":  ir.Add,
	"-":  ir.Sub,
	"*":  ir.Mul,
	"/":  ir.Div,
	"&&": ir.And,
	"||": ir.Or,
	"<":  ir.Lt,
	"<=": ir.Le,
	">":  ir.Gt,
	">=": ir.Ge,
	"==": ir.Eq,
	"!=": ir.Ne,
}

var calls = map[string]ir.Invoke{
	"invokestatic":  ir.InvokeStatic,
	"invokespecial": ir.InvokeSpecial,
	"invokevirtual": ir.InvokeVirtual,
	"new":           ir.New,
	"arraylength":   ir.ArrayLength,
}

// ParseCode parses a method body: one instruction per line,
// "Name:" lines label the next instruction, "//" starts a comment line.
func ParseCode(src string) (code []ir.Instr, labels map[string]int, err error) {
	labels = map[string]int{}

	var pending []string

	for n, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if l, ok := strings.CutSuffix(line, ":"); ok && isIdent(l) {
			if _, dup := labels[l]; dup {
				return nil, nil, &SyntaxError{Line: n + 1, Text: line, Msg: "duplicate label"}
			}

			labels[l] = -1
			pending = append(pending, l)

			continue
		}

		x, err := ParseInstr(line)
		if err != nil {
			var se *SyntaxError
			if errors.As(err, &se) {
				se.Line = n + 1
			}

			return nil, nil, err
		}

		code = append(code, x)

		for _, l := range pending {
			labels[l] = len(code)
		}

		pending = pending[:0]
	}

	if len(pending) != 0 {
		return nil, nil, errors.New("label %v does not precede an instruction", pending[0])
	}

	return code, labels, nil
}

// ParseInstr parses a single instruction line.
func ParseInstr(line string) (x ir.Instr, err error) {
	b := []byte(line)

	x, i, err := parseInstr(b, 0)
	if err != nil {
		return nil, err
	}

	i = skipSpaces(b, i)
	if i != len(b) {
		return nil, newSyntaxError(b, i, "unexpected trailing text")
	}

	return x, nil
}

func parseInstr(b []byte, st int) (x ir.Instr, i int, err error) {
	i = skipSpaces(b, st)

	switch {
	case bytes.HasPrefix(b[i:], []byte("ret.")):
		t, i, err := parseType(b, i+len("ret."))
		if err != nil {
			return nil, i, err
		}

		r := ir.Return{Type: t}

		i = skipSpaces(b, i)
		if i == len(b) {
			if _, ok := t.(tp.Void); !ok {
				return nil, i, newSyntaxError(b, i, "missing return value")
			}

			return r, i, nil
		}

		if _, ok := t.(tp.Void); ok {
			return nil, i, newSyntaxError(b, i, "void return with a value")
		}

		r.X, i, err = parseElem(b, i)
		if err != nil {
			return nil, i, err
		}

		return r, i, nil
	case bytes.HasPrefix(b[i:], []byte("goto ")):
		l, i, err := parseIdent(b, skipSpaces(b, i+len("goto ")))
		if err != nil {
			return nil, i, err
		}

		return ir.Goto{Label: l}, i, nil
	case bytes.HasPrefix(b[i:], []byte("if (")):
		end := bytes.LastIndex(b, []byte(") goto "))
		if end < 0 {
			return nil, i, newSyntaxError(b, i, "expected ') goto LABEL'")
		}

		cond, j, err := parseExpr(b[:end], i+len("if ("))
		if err != nil {
			return nil, j, err
		}

		if j = skipSpaces(b, j); j != end {
			return nil, j, newSyntaxError(b, j, "unexpected text in condition")
		}

		switch cond.(type) {
		case ir.BinaryOp, ir.UnaryOp, ir.SingleOp:
		default:
			return nil, i, newSyntaxError(b, i, "bad branch condition")
		}

		l, i, err := parseIdent(b, skipSpaces(b, end+len(") goto ")))
		if err != nil {
			return nil, i, err
		}

		return ir.Branch{Cond: cond, Label: l}, i, nil
	case bytes.Equal(bytes.TrimSpace(b[i:]), []byte("nop")):
		return ir.Nop{}, len(b), nil
	case bytes.HasPrefix(b[i:], []byte("putfield(")):
		args, i, err := parseArgs(b, i+len("putfield"))
		if err != nil {
			return nil, i, err
		}

		if len(args) != 3 {
			return nil, i, newSyntaxError(b, i, "putfield wants 3 arguments")
		}

		obj, ok1 := args[0].(ir.Operand)
		fld, ok2 := args[1].(ir.Operand)
		if !ok1 || !ok2 {
			return nil, i, newSyntaxError(b, i, "putfield object and field must be names")
		}

		if !bytes.HasPrefix(b[i:], []byte(".V")) {
			return nil, i, newSyntaxError(b, i, "expected .V")
		}

		return ir.PutField{Object: obj, Field: fld, Value: args[2]}, i + 2, nil
	}

	if j := bytes.Index(b[i:], []byte(" :=.")); j >= 0 {
		dst, k, err := parseElem(b, i)
		if err != nil {
			return nil, k, err
		}

		if k = skipSpaces(b, k); k != i+j+1 {
			return nil, k, newSyntaxError(b, k, "expected :=")
		}

		t, k, err := parseType(b, k+len(":=."))
		if err != nil {
			return nil, k, err
		}

		if _, ok := dst.(ir.Literal); ok {
			return nil, i, newSyntaxError(b, i, "assignment to a literal")
		}

		rhs, k, err := parseExpr(b, k)
		if err != nil {
			return nil, k, err
		}

		return ir.Assign{Dest: dst, Type: t, RHS: rhs}, k, nil
	}

	x, i, err = parseExpr(b, i)
	if err != nil {
		return nil, i, err
	}

	if _, ok := x.(ir.Call); !ok {
		return nil, st, newSyntaxError(b, st, "only calls can be statements")
	}

	return x, i, nil
}

func parseExpr(b []byte, st int) (x ir.Instr, i int, err error) {
	i = skipSpaces(b, st)

	if bytes.HasPrefix(b[i:], []byte("!.")) {
		t, i, err := parseType(b, i+2)
		if err != nil {
			return nil, i, err
		}

		e, i, err := parseElem(b, skipSpaces(b, i))
		if err != nil {
			return nil, i, err
		}

		return ir.UnaryOp{Op: ir.Not, X: e, Type: t}, i, nil
	}

	if id, j, err := parseIdent(b, i); err == nil && j < len(b) && b[j] == '(' {
		if id == "getfield" {
			return parseGetField(b, j)
		}

		if inv, ok := calls[id]; ok {
			return parseCall(b, j, inv)
		}

		return nil, i, newSyntaxError(b, i, "unknown call "+id)
	}

	l, i, err := parseElem(b, i)
	if err != nil {
		return nil, i, err
	}

	j := skipSpaces(b, i)

	k := j
	for k < len(b) && strings.IndexByte("+-*/&|<>=!", b[k]) >= 0 {
		k++
	}

	if k == j {
		return ir.SingleOp{X: l}, i, nil
	}

	op, ok := ops[string(b[j:k])]
	if !ok || k == len(b) || b[k] != '.' {
		return nil, j, newSyntaxError(b, j, "bad operator")
	}

	t, i, err := parseType(b, k+1)
	if err != nil {
		return nil, i, err
	}

	r, i, err := parseElem(b, skipSpaces(b, i))
	if err != nil {
		return nil, i, err
	}

	return ir.BinaryOp{Op: op, L: l, R: r, Type: t}, i, nil
}

func parseGetField(b []byte, st int) (x ir.Instr, i int, err error) {
	args, i, err := parseArgs(b, st)
	if err != nil {
		return nil, i, err
	}

	if len(args) != 2 {
		return nil, st, newSyntaxError(b, st, "getfield wants 2 arguments")
	}

	obj, ok1 := args[0].(ir.Operand)
	fld, ok2 := args[1].(ir.Operand)
	if !ok1 || !ok2 {
		return nil, st, newSyntaxError(b, st, "getfield object and field must be names")
	}

	if i >= len(b) || b[i] != '.' {
		return nil, i, newSyntaxError(b, i, "expected result type")
	}

	_, i, err = parseType(b, i+1)
	if err != nil {
		return nil, i, err
	}

	return ir.GetField{Object: obj, Field: fld}, i, nil
}

func parseCall(b []byte, st int, inv ir.Invoke) (x ir.Instr, i int, err error) {
	c := ir.Call{Invoke: inv}

	i = st + 1

	switch inv {
	case ir.InvokeStatic, ir.New:
		var cls string

		cls, i, err = parseIdent(b, skipSpaces(b, i))
		if err != nil {
			return nil, i, err
		}

		if !(inv == ir.New && cls == "array") {
			c.Class = cls
		}

		i = skipSpaces(b, i)
		if i < len(b) && b[i] == ',' {
			i++
		}
	case ir.InvokeVirtual, ir.InvokeSpecial, ir.ArrayLength:
		c.Receiver, i, err = parseElem(b, skipSpaces(b, i))
		if err != nil {
			return nil, i, err
		}

		i = skipSpaces(b, i)
		if i < len(b) && b[i] == ',' {
			i++
		}
	}

	if inv != ir.New && inv != ir.ArrayLength {
		i = skipSpaces(b, i)

		c.Method, i, err = parseQuoted(b, i)
		if err != nil {
			return nil, i, err
		}
	}

	args, i, err := parseArgs(b, i-1)
	if err != nil {
		return nil, i, err
	}

	c.Args = args

	if i >= len(b) || b[i] != '.' {
		return nil, i, newSyntaxError(b, i, "expected return type")
	}

	c.Ret, i, err = parseType(b, i+1)
	if err != nil {
		return nil, i, err
	}

	return c, i, nil
}

// parseArgs parses "(a, b, ...)" or ", a, b)" continuing an argument list.
// b[st] must be '(' or the separator before the rest of the list.
func parseArgs(b []byte, st int) (args []ir.Element, i int, err error) {
	i = st + 1

	for {
		i = skipSpaces(b, i)

		if i >= len(b) {
			return nil, i, newSyntaxError(b, i, "unterminated argument list")
		}

		switch b[i] {
		case ')':
			return args, i + 1, nil
		case ',':
			i++
			continue
		}

		e, j, err := parseElem(b, i)
		if err != nil {
			return nil, j, err
		}

		args = append(args, e)
		i = j
	}
}

func parseElem(b []byte, st int) (e ir.Element, i int, err error) {
	i = st

	if i >= len(b) {
		return nil, i, newSyntaxError(b, i, "expected operand")
	}

	if b[i] == '"' {
		s, i, err := parseQuoted(b, i)
		if err != nil {
			return nil, i, err
		}

		t, i, err := parseElemType(b, i)
		if err != nil {
			return nil, i, err
		}

		return ir.Literal{Value: strconv.Quote(s), Type: t}, i, nil
	}

	if c := b[i]; c == '-' || c >= '0' && c <= '9' {
		j := i + 1
		for j < len(b) && b[j] >= '0' && b[j] <= '9' {
			j++
		}

		v := string(b[i:j])
		if v == "-" {
			return nil, i, newSyntaxError(b, i, "expected number")
		}

		t, j, err := parseElemType(b, j)
		if err != nil {
			return nil, j, err
		}

		return ir.Literal{Value: v, Type: t}, j, nil
	}

	name, i, err := parseIdent(b, i)
	if err != nil {
		return nil, i, err
	}

	if name == "true" || name == "false" {
		t, i, err := parseElemType(b, i)
		if err != nil {
			return nil, i, err
		}

		return ir.Literal{Value: name, Type: t}, i, nil
	}

	if name == ir.This {
		if i < len(b) && b[i] == '.' {
			cls, j, err := parseIdent(b, i+1)
			if err != nil {
				return nil, j, err
			}

			return ir.Operand{Name: name, Type: tp.This{Name: cls}}, j, nil
		}

		return ir.Operand{Name: name, Type: tp.This{}}, i, nil
	}

	var idx ir.Element

	if i < len(b) && b[i] == '[' {
		idx, i, err = parseElem(b, i+1)
		if err != nil {
			return nil, i, err
		}

		if i >= len(b) || b[i] != ']' {
			return nil, i, newSyntaxError(b, i, "expected ]")
		}

		i++
	}

	t, i, err := parseElemType(b, i)
	if err != nil {
		return nil, i, err
	}

	if idx != nil {
		return ir.ArrayElem{Name: name, Index: idx, Type: t}, i, nil
	}

	return ir.Operand{Name: name, Type: t}, i, nil
}

func parseElemType(b []byte, st int) (t tp.Type, i int, err error) {
	if st >= len(b) || b[st] != '.' {
		return nil, st, newSyntaxError(b, st, "expected .type")
	}

	return parseType(b, st+1)
}

func parseType(b []byte, st int) (t tp.Type, i int, err error) {
	i = st

	for i < len(b) && (isIdentByte(b[i]) || b[i] == '.') {
		i++
	}

	t, err = tp.Parse(string(b[st:i]))
	if err != nil {
		return nil, st, newSyntaxError(b, st, err.Error())
	}

	return t, i, nil
}

func parseIdent(b []byte, st int) (s string, i int, err error) {
	i = st

	for i < len(b) && isIdentByte(b[i]) {
		i++
	}

	if i == st || b[st] >= '0' && b[st] <= '9' {
		return "", st, newSyntaxError(b, st, "expected name")
	}

	return string(b[st:i]), i, nil
}

func parseQuoted(b []byte, st int) (s string, i int, err error) {
	if st >= len(b) || b[st] != '"' {
		return "", st, newSyntaxError(b, st, "expected quoted string")
	}

	i = st + 1

	for i < len(b) && b[i] != '"' {
		if b[i] == '\\' {
			i++
		}

		i++
	}

	if i >= len(b) {
		return "", st, newSyntaxError(b, st, "unterminated string")
	}

	s, err = strconv.Unquote(string(b[st : i+1]))
	if err != nil {
		return "", st, newSyntaxError(b, st, "bad string")
	}

	return s, i + 1, nil
}

func skipSpaces(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}

	return i
}

func isIdent(s string) bool {
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		return false
	}

	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}

	return true
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '$'
}

func newSyntaxError(b []byte, i int, msg string) *SyntaxError {
	return &SyntaxError{Col: i + 1, Text: string(b), Msg: msg}
}

func (e *SyntaxError) Error() string {
	if e.Line != 0 {
		return strconv.Itoa(e.Line) + ":" + strconv.Itoa(e.Col) + ": " + e.Msg + ": " + e.Text
	}

	return strconv.Itoa(e.Col) + ": " + e.Msg + ": " + e.Text
}
