package cc1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget_Sizeof(t *testing.T) {
	tests := []struct {
		name string
		arch Arch
		ty   *CType
		want int
	}{
		{"char", ArchI386, CharType(), 1},
		{"short", ArchI386, ShortType(), 2},
		{"int", ArchI386, IntType(), 4},
		{"long i386", ArchI386, LongType(), 4},
		{"long x86_64", ArchX86_64, LongType(), 8},
		{"float", ArchI386, FloatType(), 4},
		{"double", ArchI386, DoubleType(), 8},
		{"long double i386", ArchI386, LongDoubleType(), 12},
		{"long double x86_64", ArchX86_64, LongDoubleType(), 16},
		{"pointer i386", ArchI386, PointerTo(IntType()), 4},
		{"pointer x86_64", ArchX86_64, PointerTo(IntType()), 8},
		{"enum", ArchI386, &CType{Kind: TyEnum}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := NewTarget(tt.arch)
			got, err := target.Sizeof(tt.ty)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTarget_Sizeof_Errors(t *testing.T) {
	target := NewTarget(ArchI386)

	_, err := target.Sizeof(VoidType())
	assert.Error(t, err)

	_, err = target.Sizeof(FunctionType(IntType(), nil, false))
	assert.Error(t, err)

	_, err = target.Sizeof(ArrayOf(IntType(), nil))
	assert.Error(t, err)

	_, err = target.Sizeof(&CType{Kind: TyInt, Short: true, Long: true})
	assert.Error(t, err)
}

func TestTarget_ArraySizeof(t *testing.T) {
	target := NewTarget(ArchI386)
	n := 10
	got, err := target.Sizeof(ArrayOf(IntType(), &n))
	require.NoError(t, err)
	assert.Equal(t, 40, got)
}

func TestTarget_StructLayout_NaturalAlignment(t *testing.T) {
	// struct { char a; int b; char c; } on i386: a@0, pad, b@4, c@8, size rounds to 12.
	st := &CType{
		Kind: TyStruct,
		Fields: []*Field{
			{Name: "a", Type: CharType()},
			{Name: "b", Type: IntType()},
			{Name: "c", Type: CharType()},
		},
	}
	target := NewTarget(ArchI386)
	size, err := target.Sizeof(st)
	require.NoError(t, err)
	assert.Equal(t, 12, size)

	align, err := target.Alignof(st)
	require.NoError(t, err)
	assert.Equal(t, 4, align)

	offsets, err := target.FieldOffsets(st)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 8}, offsets)
}

func TestTarget_UnionLayout(t *testing.T) {
	un := &CType{
		Kind: TyUnion,
		Fields: []*Field{
			{Name: "a", Type: CharType()},
			{Name: "b", Type: IntType()},
		},
	}
	target := NewTarget(ArchI386)
	size, err := target.Sizeof(un)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	offsets, err := target.FieldOffsets(un)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, offsets)
}

func TestTarget_IncompleteAggregate(t *testing.T) {
	target := NewTarget(ArchI386)
	_, err := target.Sizeof(&CType{Kind: TyStruct, Tag: "foo"})
	assert.Error(t, err)
}

func TestTarget_DataLayoutAndTriple(t *testing.T) {
	i386 := NewTarget(ArchI386)
	assert.Equal(t, "e-m:e-p:32:32-f64:32:64-f80:32-n8:16:32-S128", i386.DataLayout())
	assert.Equal(t, "i386-pc-linux-gnu", i386.Triple())

	x64 := NewTarget(ArchX86_64)
	assert.Equal(t, "e-m:e-i64:64-f80:128-n8:16:32:64-S128", x64.DataLayout())
	assert.Equal(t, "x86_64-pc-linux-gnu", x64.Triple())
}

func TestTarget_PointerSize(t *testing.T) {
	assert.Equal(t, 4, NewTarget(ArchI386).PointerSize())
	assert.Equal(t, 8, NewTarget(ArchX86_64).PointerSize())
}
