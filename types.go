package cc1

import "fmt"

// TypeKind tags the variant held by a CType (spec §3: the C89 type
// grammar as a closed set of kinds rather than an open node
// hierarchy, since every consumer — sizeof, conversions, the
// lowerer — switches on kind rather than dispatching virtually).
type TypeKind int

const (
	TyVoid TypeKind = iota
	TyChar
	TyInt
	TyFloat
	TyDouble
	TyPointer
	TyArray
	TyFunction
	TyStruct
	TyUnion
	TyEnum
	TyNamed
)

func (k TypeKind) String() string {
	switch k {
	case TyVoid:
		return "void"
	case TyChar:
		return "char"
	case TyInt:
		return "int"
	case TyFloat:
		return "float"
	case TyDouble:
		return "double"
	case TyPointer:
		return "pointer"
	case TyArray:
		return "array"
	case TyFunction:
		return "function"
	case TyStruct:
		return "struct"
	case TyUnion:
		return "union"
	case TyEnum:
		return "enum"
	case TyNamed:
		return "typedef"
	}
	return "unknown"
}

// CType is the single representation for every C89 type. Rather than
// one struct per kind with an interface to unify them (the shape
// grammar_ast.go uses for syntax nodes, where every node really is a
// distinct shape), a type is a small closed lattice of orthogonal
// qualifiers layered onto a handful of scalar/aggregate kinds, so one
// struct with kind-specific fields left zero for the kinds that don't
// use them reads clearer here than a dozen single-field wrapper
// structs behind an interface.
type CType struct {
	Kind TypeKind

	// Qualifiers, meaningful on any kind.
	Const    bool
	Volatile bool

	// Integer/float specifiers (TyInt, TyDouble).
	Signed   bool
	Unsigned bool
	Short    bool
	Long     bool

	// TyPointer, TyArray.
	Elem      *CType
	ArraySize *int // nil means incomplete ("T[]")

	// TyFunction.
	Params   []*Param
	Variadic bool
	Return   *CType

	// TyStruct, TyUnion.
	Tag    string // "" for an anonymous struct/union
	Fields []*Field

	// TyEnum.
	EnumTag       string
	Enumerators   []*Enumerator

	// TyNamed: a typedef name standing for another type.
	Name     string
	Resolved *CType
}

// Param is one parameter of a function type.
type Param struct {
	Name string // may be "" in a prototype with unnamed parameters
	Type *CType
}

// Field is one member of a struct or union, optionally a bit-field.
type Field struct {
	Name     string // "" for an anonymous bit-field used only as padding
	Type     *CType
	BitWidth *int // nil for an ordinary (non-bit-field) member
}

// Enumerator is one named constant of an enum type, with its already
// resolved integer value (spec §3: enumerators must be ICEs).
type Enumerator struct {
	Name  string
	Value int64
}

func VoidType() *CType  { return &CType{Kind: TyVoid} }
func CharType() *CType  { return &CType{Kind: TyChar} }
func IntType() *CType   { return &CType{Kind: TyInt} }
func FloatType() *CType { return &CType{Kind: TyFloat} }
func DoubleType() *CType { return &CType{Kind: TyDouble} }

// UnsignedCharType, LongType, UnsignedIntType, etc. are convenience
// constructors for the promoted/converted types the analyzer
// constructs repeatedly (usual arithmetic conversions, default
// argument promotions).
func UnsignedCharType() *CType  { return &CType{Kind: TyChar, Unsigned: true} }
func ShortType() *CType         { return &CType{Kind: TyInt, Short: true} }
func UnsignedShortType() *CType { return &CType{Kind: TyInt, Short: true, Unsigned: true} }
func UnsignedIntType() *CType   { return &CType{Kind: TyInt, Unsigned: true} }
func LongType() *CType          { return &CType{Kind: TyInt, Long: true} }
func UnsignedLongType() *CType  { return &CType{Kind: TyInt, Long: true, Unsigned: true} }
func LongDoubleType() *CType    { return &CType{Kind: TyDouble, Long: true} }

func PointerTo(elem *CType) *CType { return &CType{Kind: TyPointer, Elem: elem} }

// ArrayOf builds `elem[n]`. A nil size denotes an incomplete array
// type, legal only as the outermost type of an `extern` declaration
// or a parameter (where it decays to a pointer).
func ArrayOf(elem *CType, size *int) *CType {
	return &CType{Kind: TyArray, Elem: elem, ArraySize: size}
}

func FunctionType(ret *CType, params []*Param, variadic bool) *CType {
	return &CType{Kind: TyFunction, Return: ret, Params: params, Variadic: variadic}
}

// IsInteger reports whether ty is one of the integer arithmetic
// types: char, the int family, or an enum (spec §4.1 treats an enum's
// underlying representation as `int` for conversion purposes).
func (ty *CType) IsInteger() bool {
	switch ty.Kind {
	case TyChar, TyInt, TyEnum:
		return true
	}
	return false
}

func (ty *CType) IsFloating() bool {
	return ty.Kind == TyFloat || ty.Kind == TyDouble
}

func (ty *CType) IsArithmetic() bool {
	return ty.IsInteger() || ty.IsFloating()
}

func (ty *CType) IsScalar() bool {
	return ty.IsArithmetic() || ty.Kind == TyPointer
}

func (ty *CType) IsAggregate() bool {
	return ty.Kind == TyStruct || ty.Kind == TyUnion || ty.Kind == TyArray
}

// Underlying follows TyNamed typedef chains to the type they stand
// for; any other kind is its own underlying type.
func (ty *CType) Underlying() *CType {
	for ty.Kind == TyNamed && ty.Resolved != nil {
		ty = ty.Resolved
	}
	return ty
}

// IsUnsignedInteger reports the signedness semantic conversions need:
// plain `char` (no `unsigned` specifier) is treated as signed on both
// architectures, consistent with the reference front end
// (original_source/src/front/semantics/types.rs: CharSign::Signed).
func (ty *CType) IsUnsignedInteger() bool {
	u := ty.Underlying()
	return u.Unsigned
}

func (ty *CType) String() string {
	switch ty.Kind {
	case TyPointer:
		return ty.Elem.String() + " *"
	case TyArray:
		if ty.ArraySize == nil {
			return ty.Elem.String() + " []"
		}
		return fmt.Sprintf("%s [%d]", ty.Elem.String(), *ty.ArraySize)
	case TyFunction:
		return ty.Return.String() + " (...)"
	case TyStruct:
		return "struct " + ty.Tag
	case TyUnion:
		return "union " + ty.Tag
	case TyEnum:
		return "enum " + ty.EnumTag
	case TyNamed:
		return ty.Name
	case TyInt:
		return intSpelling(ty)
	case TyDouble:
		if ty.Long {
			return "long double"
		}
		return "double"
	}
	return ty.Kind.String()
}

func intSpelling(ty *CType) string {
	sign := ""
	if ty.Unsigned {
		sign = "unsigned "
	}
	switch {
	case ty.Short:
		return sign + "short"
	case ty.Long:
		return sign + "long"
	default:
		return sign + "int"
	}
}

// TypeEqual reports structural equality of two types for diagnostics
// and for detecting a conflicting redeclaration, ignoring top-level
// qualifiers (spec §4.6's extern-redeclaration rule compares only the
// unqualified type).
func TypeEqual(a, b *CType) bool {
	a, b = a.Underlying(), b.Underlying()
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TyInt:
		return a.Short == b.Short && a.Long == b.Long && a.Unsigned == b.Unsigned
	case TyDouble:
		return a.Long == b.Long
	case TyPointer:
		return TypeEqual(a.Elem, b.Elem)
	case TyArray:
		if (a.ArraySize == nil) != (b.ArraySize == nil) {
			return false
		}
		if a.ArraySize != nil && *a.ArraySize != *b.ArraySize {
			return false
		}
		return TypeEqual(a.Elem, b.Elem)
	case TyFunction:
		if a.Variadic != b.Variadic || len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !TypeEqual(a.Params[i].Type, b.Params[i].Type) {
				return false
			}
		}
		return TypeEqual(a.Return, b.Return)
	case TyStruct, TyUnion:
		return a.Tag == b.Tag
	case TyEnum:
		return a.EnumTag == b.EnumTag
	default:
		return true
	}
}
