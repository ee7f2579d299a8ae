package irfile

import (
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/slowlang/jbc/compiler/ir"
	"github.com/slowlang/jbc/compiler/tp"
)

type (
	fileClass struct {
		Class   string       `yaml:"class"`
		Extends string       `yaml:"extends,omitempty"`
		Imports []string     `yaml:"imports,omitempty"`
		Fields  []fileField  `yaml:"fields,omitempty"`
		Methods []fileMethod `yaml:"methods"`
	}

	fileField struct {
		Name   string `yaml:"name"`
		Type   string `yaml:"type"`
		Access string `yaml:"access,omitempty"`
	}

	fileMethod struct {
		Name        string   `yaml:"name"`
		Access      string   `yaml:"access,omitempty"`
		Static      bool     `yaml:"static,omitempty"`
		Constructor bool     `yaml:"constructor,omitempty"`
		Params      []string `yaml:"params,omitempty"`
		Returns     string   `yaml:"returns,omitempty"`
		Code        string   `yaml:"code"`
	}
)

func ReadFile(name string) (*ir.ClassUnit, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "%v", name)
	}

	return c, nil
}

func Decode(r io.Reader) (*ir.ClassUnit, error) {
	var fc fileClass

	d := yaml.NewDecoder(r)
	d.KnownFields(true)

	err := d.Decode(&fc)
	if err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	return fc.unit()
}

// Encode writes c back in the class file format.
func Encode(w io.Writer, c *ir.ClassUnit) error {
	fc := fileClass{
		Class:   c.Name,
		Extends: c.Super,
		Imports: c.Imports,
	}

	for _, f := range c.Fields {
		fc.Fields = append(fc.Fields, fileField{Name: f.Name, Type: f.Type.String(), Access: f.Access.String()})
	}

	for _, m := range c.Methods {
		fm := fileMethod{
			Name:        m.Name,
			Access:      m.Access.String(),
			Static:      m.Static,
			Constructor: m.Constructor,
			Code:        FormatCode(m),
		}

		if m.Ret != nil {
			fm.Returns = m.Ret.String()
		}

		for _, p := range m.Params {
			fm.Params = append(fm.Params, ir.FormatElem(p))
		}

		fc.Methods = append(fc.Methods, fm)
	}

	e := yaml.NewEncoder(w)
	e.SetIndent(2)

	err := e.Encode(&fc)
	if err != nil {
		return errors.Wrap(err, "encode yaml")
	}

	return e.Close()
}

// FormatCode prints m.Code with its labels, one instruction per line.
func FormatCode(m *ir.Method) string {
	var b []byte

	for i, x := range m.Code {
		for _, l := range m.LabelsAt(i + 1) {
			b = append(b, l...)
			b = append(b, ":\n"...)
		}

		b = ir.AppendInstr(b, x)
		b = append(b, '\n')
	}

	return string(b)
}

func (fc *fileClass) unit() (*ir.ClassUnit, error) {
	if fc.Class == "" {
		return nil, errors.New("class name expected")
	}

	c := &ir.ClassUnit{
		Name:    fc.Class,
		Super:   fc.Extends,
		Imports: fc.Imports,
	}

	for _, f := range fc.Fields {
		t, err := tp.Parse(f.Type)
		if err != nil {
			return nil, errors.Wrap(err, "field %v", f.Name)
		}

		a, err := parseAccess(f.Access)
		if err != nil {
			return nil, errors.Wrap(err, "field %v", f.Name)
		}

		c.Fields = append(c.Fields, ir.Field{Name: f.Name, Type: t, Access: a})
	}

	for _, fm := range fc.Methods {
		m, err := fm.method(c.Name)
		if err != nil {
			return nil, errors.Wrap(err, "method %v", fm.Name)
		}

		c.Methods = append(c.Methods, m)
	}

	return c, nil
}

func (fm *fileMethod) method(class string) (m *ir.Method, err error) {
	m = &ir.Method{
		Name:        fm.Name,
		Static:      fm.Static,
		Constructor: fm.Constructor,
		Ret:         tp.Void{},
	}

	if m.Name == "" {
		return nil, errors.New("method name expected")
	}

	m.Access, err = parseAccess(fm.Access)
	if err != nil {
		return nil, err
	}

	if fm.Returns != "" {
		m.Ret, err = tp.Parse(fm.Returns)
		if err != nil {
			return nil, errors.Wrap(err, "return type")
		}
	}

	for _, p := range fm.Params {
		e, err := ParseElem(p)
		if err != nil {
			return nil, errors.Wrap(err, "param %q", p)
		}

		op, ok := e.(ir.Operand)
		if !ok || op.IsThis() {
			return nil, errors.New("param %q: expected name.type", p)
		}

		m.Params = append(m.Params, op)
	}

	m.Code, m.Labels, err = ParseCode(fm.Code)
	if err != nil {
		return nil, errors.Wrap(err, "code")
	}

	if m.Constructor {
		return m, nil
	}

	if len(m.Code) == 0 {
		return nil, errors.New("empty code")
	}

	bindThis(m, class)

	return m, nil
}

// ParseElem parses a standalone operand such as "a.i32" or "3.i32".
func ParseElem(s string) (ir.Element, error) {
	b := []byte(strings.TrimSpace(s))

	e, i, err := parseElem(b, 0)
	if err != nil {
		return nil, err
	}

	if i != len(b) {
		return nil, newSyntaxError(b, i, "unexpected trailing text")
	}

	return e, nil
}

// bindThis fills in the class name of receiver operands written as bare "this".
func bindThis(m *ir.Method, class string) {
	fix := func(o ir.Operand) ir.Operand {
		if t, ok := o.Type.(tp.This); ok && t.Name == "" {
			o.Type = tp.This{Name: class}
		}

		return o
	}

	fixElem := func(e ir.Element) ir.Element {
		if o, ok := e.(ir.Operand); ok {
			return fix(o)
		}

		return e
	}

	var fixInstr func(x ir.Instr) ir.Instr
	fixInstr = func(x ir.Instr) ir.Instr {
		switch x := x.(type) {
		case ir.Assign:
			x.RHS = fixInstr(x.RHS)
			return x
		case ir.Call:
			if x.Receiver != nil {
				x.Receiver = fixElem(x.Receiver)
			}

			if len(x.Args) != 0 {
				args := make([]ir.Element, len(x.Args))
				for i, a := range x.Args {
					args[i] = fixElem(a)
				}

				x.Args = args
			}

			return x
		case ir.GetField:
			x.Object = fix(x.Object)
			return x
		case ir.PutField:
			x.Object = fix(x.Object)
			x.Value = fixElem(x.Value)
			return x
		case ir.SingleOp:
			x.X = fixElem(x.X)
			return x
		case ir.Return:
			if x.X != nil {
				x.X = fixElem(x.X)
			}

			return x
		default:
			return x
		}
	}

	for i, x := range m.Code {
		m.Code[i] = fixInstr(x)
	}
}

func parseAccess(s string) (ir.Access, error) {
	switch s {
	case "", "default":
		return ir.Default, nil
	case "public":
		return ir.Public, nil
	case "private":
		return ir.Private, nil
	case "protected":
		return ir.Protected, nil
	default:
		return 0, errors.New("unknown access modifier %q", s)
	}
}
