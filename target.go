package cc1

import "fmt"

// Arch identifies the target architecture a translation unit is being
// compiled for. Only the two ABIs named in the specification are
// supported; there is no generic "host" arch.
type Arch int

const (
	ArchI386 Arch = iota
	ArchX86_64
)

func (a Arch) String() string {
	switch a {
	case ArchI386:
		return "i386"
	case ArchX86_64:
		return "x86_64"
	default:
		return "unknown"
	}
}

// Target is the immutable per-invocation description of the ABI:
// sizes, alignments, integer bit widths, and pointer width for the
// selected architecture. It is consumed by semantic analysis, layout,
// and IR lowering, and never mutated once constructed.
type Target struct {
	Arch Arch
}

// NewTarget returns the Target for the given architecture.
func NewTarget(arch Arch) *Target { return &Target{Arch: arch} }

// PointerSize returns the size in bytes of a pointer on this target.
func (t *Target) PointerSize() int {
	if t.Arch == ArchX86_64 {
		return 8
	}
	return 4
}

// DataLayout returns the LLVM `target datalayout` string for this
// architecture, as required by spec §6.
func (t *Target) DataLayout() string {
	if t.Arch == ArchX86_64 {
		return "e-m:e-i64:64-f80:128-n8:16:32:64-S128"
	}
	return "e-m:e-p:32:32-f64:32:64-f80:32-n8:16:32-S128"
}

// Triple returns the LLVM target triple for this architecture.
func (t *Target) Triple() string {
	if t.Arch == ArchX86_64 {
		return "x86_64-pc-linux-gnu"
	}
	return "i386-pc-linux-gnu"
}

// LongDoubleSize and LongDoubleAlign report the size/align of `long
// double`, which is an 80-bit x87 extended value padded out to an
// architecture-specific storage size (spec §4.1; confirmed against
// original_source/src/front/semantics/target.rs).
func (t *Target) LongDoubleSize() int {
	if t.Arch == ArchX86_64 {
		return 16
	}
	return 12
}

func (t *Target) LongDoubleAlign() int {
	if t.Arch == ArchX86_64 {
		return 16
	}
	return 4
}

// IntBitWidth returns the bit width of an integer type T, derived from
// its sizeof on this target (size in bytes times 8).
func (t *Target) IntBitWidth(ty *CType) (int, error) {
	size, err := t.Sizeof(ty)
	if err != nil {
		return 0, err
	}
	return size * 8, nil
}

// Sizeof computes sizeof(ty) on this target, per spec §4.1.
func (t *Target) Sizeof(ty *CType) (int, error) {
	switch ty.Kind {
	case TyVoid:
		return 0, fmt.Errorf("invalid application of 'sizeof' to an incomplete type 'void'")
	case TyChar:
		return 1, nil
	case TyInt:
		switch {
		case ty.Short && ty.Long:
			return 0, fmt.Errorf("'short long' is not a valid type")
		case ty.Short:
			return 2, nil
		case ty.Long:
			if t.Arch == ArchX86_64 {
				return 8, nil
			}
			return 4, nil
		default:
			return 4, nil
		}
	case TyFloat:
		return 4, nil
	case TyDouble:
		if ty.Long {
			return t.LongDoubleSize(), nil
		}
		return 8, nil
	case TyPointer:
		return t.PointerSize(), nil
	case TyArray:
		if ty.ArraySize == nil {
			return 0, fmt.Errorf("invalid application of 'sizeof' to an incomplete array type")
		}
		elemSize, err := t.Sizeof(ty.Elem)
		if err != nil {
			return 0, err
		}
		return elemSize * *ty.ArraySize, nil
	case TyFunction:
		return 0, fmt.Errorf("invalid application of 'sizeof' to a function type")
	case TyStruct, TyUnion:
		size, _, err := t.layoutAggregate(ty)
		return size, err
	case TyEnum:
		return 4, nil
	case TyNamed:
		if ty.Resolved == nil {
			return 0, fmt.Errorf("use of undefined typedef name %q", ty.Name)
		}
		return t.Sizeof(ty.Resolved)
	}
	return 0, fmt.Errorf("internal: unhandled type kind %v in sizeof", ty.Kind)
}

// Alignof computes alignof(ty) on this target.
func (t *Target) Alignof(ty *CType) (int, error) {
	switch ty.Kind {
	case TyVoid:
		return 0, fmt.Errorf("invalid application of 'alignof' to an incomplete type 'void'")
	case TyArray:
		if ty.ArraySize == nil {
			return 0, fmt.Errorf("invalid application of 'alignof' to an incomplete array type")
		}
		return t.Alignof(ty.Elem)
	case TyStruct, TyUnion:
		_, align, err := t.layoutAggregate(ty)
		return align, err
	case TyNamed:
		if ty.Resolved == nil {
			return 0, fmt.Errorf("use of undefined typedef name %q", ty.Name)
		}
		return t.Alignof(ty.Resolved)
	case TyDouble:
		if ty.Long {
			return t.LongDoubleAlign(), nil
		}
		return 8, nil
	default:
		// Scalars other than long double are self-aligned.
		return t.Sizeof(ty)
	}
}

func alignTo(offset, align int) int {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}

// layoutAggregate computes the total size and alignment of a struct
// or union: sequential natural-alignment placement for structs,
// size = max(member size) for unions, both rounded up to the maximum
// member alignment (spec §4.1).
func (t *Target) layoutAggregate(ty *CType) (size, align int, err error) {
	if ty.Fields == nil {
		kind := "struct"
		if ty.Kind == TyUnion {
			kind = "union"
		}
		return 0, 0, fmt.Errorf("invalid application of 'sizeof' to incomplete %s type", kind)
	}
	align = 1
	size = 0
	for _, f := range ty.Fields {
		a, err := t.Alignof(f.Type)
		if err != nil {
			return 0, 0, err
		}
		s, err := t.Sizeof(f.Type)
		if err != nil {
			return 0, 0, err
		}
		if a > align {
			align = a
		}
		if ty.Kind == TyUnion {
			if s > size {
				size = s
			}
		} else {
			size = alignTo(size, a) + s
		}
	}
	size = alignTo(size, align)
	return size, align, nil
}

// FieldOffsets returns the byte offset of each field of a struct,
// computed with the same sequential-natural-alignment rule as
// layoutAggregate. Unions report all offsets as zero. Used by the IR
// lowerer to build typed GEP indices and by bit-field packing.
func (t *Target) FieldOffsets(ty *CType) ([]int, error) {
	offsets := make([]int, len(ty.Fields))
	if ty.Kind == TyUnion {
		return offsets, nil
	}
	offset := 0
	for i, f := range ty.Fields {
		a, err := t.Alignof(f.Type)
		if err != nil {
			return nil, err
		}
		s, err := t.Sizeof(f.Type)
		if err != nil {
			return nil, err
		}
		offset = alignTo(offset, a)
		offsets[i] = offset
		offset += s
	}
	return offsets, nil
}
