package cc1

// BitUnit describes one allocation unit of packed bit-fields: the
// underlying integer type they share, and the list of fields packed
// into it in declaration order. Anonymous fields (Name == "") still
// occupy bits but are never addressable.
type BitUnit struct {
	Underlying *CType
	Fields     []*BitFieldSlot
}

// BitFieldSlot is one bit-field's position within its allocation
// unit.
type BitFieldSlot struct {
	Field    *Field
	BitLo    int
	Width    int
	UnitIdx  int // index of the owning BitUnit within the struct's unit list
}

// PackBitFields groups a struct/union's fields into allocation units
// per spec §4.1: bit-fields pack into a unit of the field's declared
// integer type; a zero-width field forces a unit boundary; a field
// wider than the remaining bits of the current unit starts a new
// unit; a non-bit-field flushes the current unit.
//
// Returns, parallel to ty.Fields, the BitFieldSlot for each bit-field
// (nil for ordinary fields), and the list of units themselves (for
// storage-size computation by the lowerer).
func PackBitFields(t *Target, fields []*Field) ([]*BitFieldSlot, []*BitUnit, error) {
	slots := make([]*BitFieldSlot, len(fields))
	var units []*BitUnit
	var cur *BitUnit
	bitsUsed := 0
	unitBits := 0

	flush := func() {
		cur = nil
		bitsUsed = 0
		unitBits = 0
	}

	for i, f := range fields {
		if f.BitWidth == nil {
			flush()
			continue
		}
		width := *f.BitWidth
		bits, err := t.IntBitWidth(f.Type)
		if err != nil {
			return nil, nil, err
		}
		if width == 0 {
			flush()
			continue
		}
		if cur == nil || !sameIntegerType(cur.Underlying, f.Type) || bitsUsed+width > unitBits {
			cur = &BitUnit{Underlying: f.Type}
			units = append(units, cur)
			bitsUsed = 0
			unitBits = bits
		}
		slots[i] = &BitFieldSlot{Field: f, BitLo: bitsUsed, Width: width, UnitIdx: len(units) - 1}
		cur.Fields = append(cur.Fields, slots[i])
		bitsUsed += width
	}
	return slots, units, nil
}

func sameIntegerType(a, b *CType) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Kind == b.Kind && a.Long == b.Long && a.Short == b.Short
}

// ValidateBitWidth checks a bit-field's width against spec §4.5's
// rule: must be non-negative, must not exceed the declared integer
// type's bit width, and zero width is only legal on an anonymous
// field.
func ValidateBitWidth(t *Target, name string, ty *CType, width int) error {
	if width < 0 {
		return newSemaError("bit-field %q has negative width", name)
	}
	bits, err := t.IntBitWidth(ty)
	if err != nil {
		return err
	}
	if width > bits {
		return newSemaError("bit-field %q width %d exceeds its type's width %d", name, width, bits)
	}
	if width == 0 && name != "" {
		return newSemaError("named bit-field %q cannot have zero width", name)
	}
	return nil
}
