package tp

import (
	"strings"

	"tlog.app/go/errors"
)

type (
	// Type is one of the value types below. The set is closed.
	Type interface {
		String() string

		isType()
	}

	Int    struct{}
	Bool   struct{}
	Void   struct{}
	String struct{}

	// Class is a reference to an instance of the named class.
	Class struct {
		Name string
	}

	// This is the type of the implicit receiver.
	This struct {
		Name string
	}

	Array struct {
		Elem Type
	}

	// Resolver maps a bare class name to its fully qualified internal name.
	Resolver func(name string) string
)

func (Int) isType()    {}
func (Bool) isType()   {}
func (Void) isType()   {}
func (String) isType() {}
func (Class) isType()  {}
func (This) isType()   {}
func (Array) isType()  {}

func (Int) String() string     { return "i32" }
func (Bool) String() string    { return "bool" }
func (Void) String() string    { return "V" }
func (String) String() string  { return "String" }
func (x Class) String() string { return x.Name }
func (x This) String() string  { return x.Name }
func (x Array) String() string { return "array." + x.Elem.String() }

// IsInt reports whether values of x are kept in int slots (ints and booleans).
func IsInt(x Type) bool {
	switch x.(type) {
	case Int, Bool:
		return true
	}

	return false
}

// IsRef reports whether values of x are object references.
func IsRef(x Type) bool {
	switch x.(type) {
	case String, Class, This, Array:
		return true
	}

	return false
}

// Descriptor encodes x as a field or method descriptor component.
func Descriptor(x Type, r Resolver) (string, error) {
	switch x := x.(type) {
	case Int:
		return "I", nil
	case Bool:
		return "Z", nil
	case Void:
		return "V", nil
	case String:
		return "Ljava/lang/String;", nil
	case Class:
		return "L" + r.resolve(x.Name) + ";", nil
	case This:
		return "L" + r.resolve(x.Name) + ";", nil
	case Array:
		if _, ok := x.Elem.(Void); ok {
			return "", errors.New("array of void")
		}

		e, err := Descriptor(x.Elem, r)
		if err != nil {
			return "", err
		}

		return "[" + e, nil
	default:
		return "", errors.New("unsupported type: %T", x)
	}
}

// Parse decodes the short type names used in class files:
// i32, bool, V, String, array.<elem>, or a class name.
func Parse(s string) (Type, error) {
	switch s {
	case "":
		return nil, errors.New("empty type")
	case "i32", "int":
		return Int{}, nil
	case "bool", "boolean":
		return Bool{}, nil
	case "V", "void":
		return Void{}, nil
	case "String":
		return String{}, nil
	}

	if e, ok := strings.CutPrefix(s, "array."); ok {
		et, err := Parse(e)
		if err != nil {
			return nil, err
		}

		return Array{Elem: et}, nil
	}

	return Class{Name: s}, nil
}

func (r Resolver) resolve(name string) string {
	if r == nil {
		return name
	}

	return r(name)
}
