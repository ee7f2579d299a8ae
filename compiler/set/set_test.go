package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitsOps(t *testing.T) {
	var s Bits[int]

	s.SetAll(1, 5, 70, 130)

	assert.Equal(t, 4, s.Size())
	assert.True(t, s.IsSet(70))
	assert.False(t, s.IsSet(71))
	assert.Equal(t, []int{1, 5, 70, 130}, s.Slice())

	c := s.Copy()
	c.Clear(5)

	assert.True(t, s.IsSet(5), "copy must not share storage")
	assert.False(t, c.IsSet(5))

	x := MakeBits(0)
	x.SetAll(1, 130)

	c.Substract(x)
	assert.Equal(t, []int{70}, c.Slice())

	m := MakeBits(0)
	m.Merge(c)
	m.Set(2)
	assert.Equal(t, []int{2, 70}, m.Slice())

	m.Intersect(s)
	assert.Equal(t, []int{70}, m.Slice())
}

func TestBitsEqual(t *testing.T) {
	a := MakeBits(0)
	b := MakeBits(0)

	assert.True(t, a.Equal(b))

	a.Set(200)
	assert.False(t, a.Equal(b))

	b.Set(200)
	assert.True(t, a.Equal(b))

	a.Clear(200)
	b.Clear(200)
	b.Strip()
	assert.True(t, a.Equal(b), "trailing zero words are ignored")
}

func TestBitsReset(t *testing.T) {
	s := MakeBits(0)
	s.SetAll(3, 64, 129)

	s.Reset()

	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Slice())
}

func TestBitmapFirstClear(t *testing.T) {
	var used Bitmap

	assert.Equal(t, 0, used.FirstClear())

	used.Set(0)
	used.Set(1)
	used.Set(3)

	assert.Equal(t, 2, used.FirstClear())

	for i := 0; i < 64; i++ {
		used.Set(i)
	}

	assert.Equal(t, 64, used.FirstClear())
	assert.Equal(t, 64, used.Size())
	assert.Equal(t, 64, used.Len())

	used.Reset()
	assert.Equal(t, 0, used.FirstClear())
}
