package tp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor(t *testing.T) {
	res := func(name string) string {
		if name == "" {
			return "Self"
		}

		return "pkg/" + name
	}

	for _, tc := range []struct {
		t   Type
		exp string
	}{
		{Int{}, "I"},
		{Bool{}, "Z"},
		{Void{}, "V"},
		{String{}, "Ljava/lang/String;"},
		{Class{Name: "Foo"}, "Lpkg/Foo;"},
		{This{}, "LSelf;"},
		{Array{Elem: Int{}}, "[I"},
		{Array{Elem: Array{Elem: String{}}}, "[[Ljava/lang/String;"},
		{Array{Elem: Class{Name: "Foo"}}, "[Lpkg/Foo;"},
	} {
		d, err := Descriptor(tc.t, res)
		if assert.NoError(t, err, "%v", tc.t) {
			assert.Equal(t, tc.exp, d, "%v", tc.t)
		}
	}

	d, err := Descriptor(Class{Name: "a/B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "La/B;", d)

	_, err = Descriptor(Array{Elem: Void{}}, nil)
	assert.Error(t, err)

	_, err = Descriptor(nil, nil)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	for s, exp := range map[string]Type{
		"i32":              Int{},
		"int":              Int{},
		"bool":             Bool{},
		"V":                Void{},
		"String":           String{},
		"Foo":              Class{Name: "Foo"},
		"array.i32":        Array{Elem: Int{}},
		"array.array.bool": Array{Elem: Array{Elem: Bool{}}},
	} {
		x, err := Parse(s)
		if assert.NoError(t, err, s) {
			assert.Equal(t, exp, x, s)
		}
	}

	_, err := Parse("")
	assert.Error(t, err)

	_, err = Parse("array.")
	assert.Error(t, err)

	x, err := Parse("array.String")
	require.NoError(t, err)
	assert.Equal(t, "array.String", x.String())
}

func TestKinds(t *testing.T) {
	assert.True(t, IsInt(Int{}))
	assert.True(t, IsInt(Bool{}))
	assert.False(t, IsInt(String{}))
	assert.False(t, IsInt(nil))

	assert.True(t, IsRef(Array{Elem: Int{}}))
	assert.True(t, IsRef(This{}))
	assert.True(t, IsRef(Class{Name: "X"}))
	assert.False(t, IsRef(Void{}))
}
