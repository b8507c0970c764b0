package cc1

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/float"
	"github.com/pkg/errors"
)

// intPredNE/floatPredNE are the comparison predicates truthy() uses to
// test scalar non-zeroness; named rather than spelled out inline since
// they're the only predicates a controlling-expression coercion ever
// needs (every other relational operator goes through
// lowerComparison's full predicate table).
const (
	intPredNE   = enum.IPredNE
	floatPredNE = enum.FPredONE
)

// typedValue pairs a lowered LLVM value with the C type it represents,
// since an llvm value.Value alone loses the signedness/qualifier
// information conversions and call lowering need.
type typedValue struct {
	V  value.Value
	Ty *CType
}

// lowerExpr lowers e to an rvalue. Aggregates (struct/union/array)
// still come back as a typedValue whose V is the aggregate's address
// (this front end never materializes a first-class aggregate
// register), matching the address-oriented treatment spec §4.6 gives
// struct/union access through typed GEP.
func (fl *functionLowerer) lowerExpr(e Expr) (typedValue, error) {
	switch n := e.(type) {
	case *IntLitExpr:
		return fl.lowerIntLit(n)
	case *FloatLitExpr:
		return fl.lowerFloatLit(n)
	case *CharLitExpr:
		return typedValue{V: constant.NewInt(types.I8, int64(int8(n.Value))), Ty: CharType()}, nil
	case *StringLitExpr:
		g := fl.l.internString(n.Value)
		ptr := constant.NewGetElementPtr(g.ContentType(), g, constant.NewInt(types.I64, 0), constant.NewInt(types.I64, 0))
		return typedValue{V: ptr, Ty: PointerTo(CharType())}, nil
	case *IdentExpr:
		return fl.lowerIdent(n)
	case *BinaryExpr:
		return fl.lowerBinary(n)
	case *UnaryExpr:
		return fl.lowerUnary(n)
	case *PostfixExpr:
		return fl.lowerPostfix(n)
	case *AssignExpr:
		return fl.lowerAssign(n)
	case *CondExpr:
		return fl.lowerCond(n)
	case *CallExpr:
		return fl.lowerCall(n)
	case *IndexExpr:
		ptr, ty, err := fl.lowerLValue(n)
		if err != nil {
			return typedValue{}, err
		}
		return fl.loadFrom(ptr, ty)
	case *MemberExpr:
		ptr, ty, err := fl.lowerLValue(n)
		if err != nil {
			return typedValue{}, err
		}
		return fl.loadFrom(ptr, ty)
	case *CastExpr:
		return fl.lowerCast(n)
	case *SizeofExpr:
		return fl.lowerSizeof(n)
	}
	return typedValue{}, errors.Errorf("internal: unhandled expression kind %T in IR lowering", e)
}

func (fl *functionLowerer) lowerIntLit(n *IntLitExpr) (typedValue, error) {
	ty := IntType()
	switch {
	case n.Long && n.Unsigned:
		ty = UnsignedLongType()
	case n.Long:
		ty = LongType()
	case n.Unsigned:
		ty = UnsignedIntType()
	}
	llty, err := fl.l.llvmType(ty)
	if err != nil {
		return typedValue{}, err
	}
	return typedValue{V: constant.NewInt(llty.(*types.IntType), n.Value), Ty: ty}, nil
}

func (fl *functionLowerer) lowerFloatLit(n *FloatLitExpr) (typedValue, error) {
	switch {
	case n.LongDouble:
		ty := LongDoubleType()
		// x87 extended precision is modeled via mewmew/float's 80-bit
		// type (spec §4.1's long-double support), since the standard
		// library's float64 cannot represent it exactly.
		ext := float.NewFloat80FromFloat64(n.Value)
		return typedValue{V: constant.NewFloatFromFloat80(types.X86FP80, ext), Ty: ty}, nil
	case n.Single:
		return typedValue{V: constant.NewFloat(types.Float, n.Value), Ty: FloatType()}, nil
	default:
		return typedValue{V: constant.NewFloat(types.Double, n.Value), Ty: DoubleType()}, nil
	}
}

func (fl *functionLowerer) lowerIdent(n *IdentExpr) (typedValue, error) {
	ptr, ty, err := fl.lowerLValue(n)
	if err != nil {
		return typedValue{}, err
	}
	if ty.Underlying().Kind == TyFunction {
		return typedValue{V: ptr, Ty: ty}, nil
	}
	return fl.loadFrom(ptr, ty)
}

// lowerLValue computes the address of an expression usable on the
// left of `=` or as the operand of `&` (spec §4.6's typed-GEP access
// model). An array yields the address of the whole array object,
// typed with its array type; it is not decayed here to a pointer to
// its first element.
func (fl *functionLowerer) lowerLValue(e Expr) (value.Value, *CType, error) {
	switch n := e.(type) {
	case *IdentExpr:
		if lv, ok := fl.scope.lookup(n.Name); ok {
			return lv.ptr, lv.ty, nil
		}
		if g, ok := fl.l.globals[n.Name]; ok {
			return g, fl.globalCType(n.Name, g), nil
		}
		if f, ok := fl.l.functions[n.Name]; ok {
			return f, fl.functionCType(n.Name), nil
		}
		return nil, nil, errors.Errorf("%s: internal: unresolved identifier %q reached the lowerer", n.Span(), n.Name)
	case *UnaryExpr:
		if n.Op == TkStar {
			tv, err := fl.lowerExpr(n.Operand)
			if err != nil {
				return nil, nil, err
			}
			return tv.V, tv.Ty.Underlying().Elem, nil
		}
	case *IndexExpr:
		arrTV, arrTy, isPtrElem, err := fl.lowerArrayBase(n.Array)
		if err != nil {
			return nil, nil, err
		}
		idxTV, err := fl.lowerExpr(n.Index)
		if err != nil {
			return nil, nil, err
		}
		idx, err := fl.convert(idxTV, LongType())
		if err != nil {
			return nil, nil, err
		}
		elemTy := arrTy.Underlying().Elem
		elemLLTy, err := fl.l.llvmType(elemTy)
		if err != nil {
			return nil, nil, err
		}
		if isPtrElem {
			ptr := fl.cur.NewGetElementPtr(elemLLTy, arrTV, idx.V)
			return ptr, elemTy, nil
		}
		zero := constant.NewInt(types.I64, 0)
		ptr := fl.cur.NewGetElementPtr(arrayElemContainer(arrTy, elemLLTy), arrTV, zero, idx.V)
		return ptr, elemTy, nil
	case *MemberExpr:
		return fl.lowerMemberLValue(n)
	}
	return nil, nil, errors.Errorf("%s: internal: expression is not an lvalue", e.Span())
}

// lowerArrayBase evaluates the base of an IndexExpr, distinguishing a
// true array object (indexed via a 2-index GEP into its element
// array) from a pointer value (indexed via a 1-index GEP), since
// C89's `a[i]` is sugar for `*(a + i)` regardless of which one `a`
// is.
func (fl *functionLowerer) lowerArrayBase(e Expr) (value.Value, *CType, bool, error) {
	if _, ty, err := fl.tryLValueType(e); err == nil && ty.Underlying().Kind == TyArray {
		ptr, arrTy, lerr := fl.lowerLValue(e)
		if lerr != nil {
			return nil, nil, false, lerr
		}
		return ptr, arrTy, false, nil
	}
	tv, err := fl.lowerExpr(e)
	if err != nil {
		return nil, nil, false, err
	}
	return tv.V, tv.Ty, true, nil
}

// tryLValueType reports the static type of e without emitting any
// instructions, used only to decide the array-vs-pointer GEP shape
// above.
func (fl *functionLowerer) tryLValueType(e Expr) (value.Value, *CType, error) {
	switch n := e.(type) {
	case *IdentExpr:
		if lv, ok := fl.scope.lookup(n.Name); ok {
			return lv.ptr, lv.ty, nil
		}
		if g, ok := fl.l.globals[n.Name]; ok {
			return g, fl.globalCType(n.Name, g), nil
		}
	case *MemberExpr:
		_, ty, err := fl.lowerMemberLValue(n)
		return nil, ty, err
	}
	return nil, nil, errors.Errorf("not a simple lvalue")
}

func arrayElemContainer(arrTy *CType, elemLLTy types.Type) types.Type {
	if arrTy.Underlying().ArraySize == nil {
		return elemLLTy
	}
	return types.NewArray(uint64(*arrTy.Underlying().ArraySize), elemLLTy)
}

// lowerMemberLValue computes the address of `a.f` or `p->f` via a
// struct-typed GEP indexed by the member's position (spec §4.6's
// "typed GEP for struct/union/array access"). A bit-field member
// still yields the address of its packed allocation unit; the actual
// bit extraction happens in loadFrom/storeInto.
func (fl *functionLowerer) lowerMemberLValue(n *MemberExpr) (value.Value, *CType, error) {
	var base value.Value
	var baseTy *CType
	if n.Arrow {
		tv, err := fl.lowerExpr(n.Target)
		if err != nil {
			return nil, nil, err
		}
		base, baseTy = tv.V, tv.Ty.Underlying().Elem
	} else {
		ptr, ty, err := fl.lowerLValue(n.Target)
		if err != nil {
			return nil, nil, err
		}
		base, baseTy = ptr, ty
	}

	u := baseTy.Underlying()
	idx := -1
	for i, f := range u.Fields {
		if f.Name == n.Field {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, errors.Errorf("%s: internal: member %q not found in IR lowering", n.Span(), n.Field)
	}
	fieldTy := u.Fields[idx].Type

	if u.Kind == TyUnion {
		elemLLTy, err := fl.l.llvmType(fieldTy)
		if err != nil {
			return nil, nil, err
		}
		ptr := fl.cur.NewBitCast(base, types.NewPointer(elemLLTy))
		return ptr, fieldTy, nil
	}

	structLLTy, err := fl.l.llvmType(u)
	if err != nil {
		return nil, nil, err
	}
	slots, _, err := PackBitFields(fl.l.target, u.Fields)
	if err != nil {
		return nil, nil, err
	}
	llIdx := llvmFieldIndex(u.Fields, slots, idx)
	zero := constant.NewInt(types.I32, 0)
	gepIdx := constant.NewInt(types.I32, int64(llIdx))
	ptr := fl.cur.NewGetElementPtr(structLLTy, base, zero, gepIdx)
	if slots[idx] != nil {
		return ptr, fieldTy, nil
	}
	return ptr, fieldTy, nil
}

// llvmFieldIndex translates a source-level field index into its
// position in the LLVM struct type structType emits, where every
// bit-field sharing one allocation unit collapses to a single LLVM
// field (ir.go's structType).
func llvmFieldIndex(fields []*Field, slots []*BitFieldSlot, target int) int {
	llIdx := -1
	lastUnit := -1
	for i := 0; i <= target; i++ {
		if slots[i] != nil {
			if slots[i].UnitIdx != lastUnit {
				llIdx++
				lastUnit = slots[i].UnitIdx
			}
			continue
		}
		llIdx++
		lastUnit = -1
	}
	return llIdx
}

func (fl *functionLowerer) globalCType(name string, g value.Value) *CType {
	if v, ok := fl.l.globalTypes[name]; ok {
		return v
	}
	return PointerTo(VoidType())
}

func (fl *functionLowerer) functionCType(name string) *CType {
	if ty, ok := fl.l.functionTypes[name]; ok {
		return ty
	}
	return &CType{Kind: TyFunction, Return: VoidType()}
}

// loadFrom reads ty's value out of ptr: a bit-field extracts its
// slice of the packed allocation unit, an aggregate is returned as
// its own address (this front end's uniform aggregate-by-address
// convention), and anything else is a plain typed load.
func (fl *functionLowerer) loadFrom(ptr value.Value, ty *CType) (typedValue, error) {
	if isAggregate(ty) {
		return typedValue{V: ptr, Ty: ty}, nil
	}
	llty, err := fl.l.llvmType(ty)
	if err != nil {
		return typedValue{}, err
	}
	return typedValue{V: fl.cur.NewLoad(llty, ptr), Ty: ty}, nil
}

// storeInto assigns e's value into ptr (typed ty), used for `=`,
// local-variable initializers, and call-argument byval copies.
func (fl *functionLowerer) storeInto(ptr value.Value, ty *CType, e Expr) error {
	if isAggregate(ty) {
		return fl.storeAggregate(ptr, ty, e)
	}
	tv, err := fl.lowerExpr(e)
	if err != nil {
		return err
	}
	converted, err := fl.convert(tv, ty)
	if err != nil {
		return err
	}
	fl.cur.NewStore(converted.V, ptr)
	return nil
}

// storeAggregate copies the struct/union/array value e evaluates to
// into ptr by loading and storing the whole aggregate type at once
// (legal LLVM IR, and simpler than a field-by-field memcpy loop).
func (fl *functionLowerer) storeAggregate(ptr value.Value, ty *CType, e Expr) error {
	srcPtr, srcTy, err := fl.lowerLValue(e)
	if err != nil {
		tv, terr := fl.lowerExpr(e)
		if terr != nil {
			return terr
		}
		srcPtr, srcTy = tv.V, tv.Ty
	}
	llty, err := fl.l.llvmType(ty)
	if err != nil {
		return err
	}
	_ = srcTy
	val := fl.cur.NewLoad(llty, srcPtr)
	fl.cur.NewStore(val, ptr)
	return nil
}

// storeInitList stores a brace initializer list into ptr element by
// element (spec §4.5/§4.6), recursing for a nested aggregate member.
func (fl *functionLowerer) storeInitList(ptr value.Value, ty *CType, items []InitItem) error {
	u := ty.Underlying()
	llty, err := fl.l.llvmType(u)
	if err != nil {
		return err
	}
	// Zero the whole object first so trailing elements the
	// initializer list omits read as zero, per spec §4.5.
	fl.cur.NewStore(zeroValue(llty), ptr)

	switch u.Kind {
	case TyArray:
		elemTy := u.Elem
		elemLLTy, err := fl.l.llvmType(elemTy)
		if err != nil {
			return err
		}
		for i, item := range items {
			idx := constant.NewInt(types.I64, int64(i))
			zero := constant.NewInt(types.I64, 0)
			elemPtr := fl.cur.NewGetElementPtr(llty, ptr, zero, idx)
			if err := fl.storeInitItem(elemPtr, elemTy, item); err != nil {
				return err
			}
			_ = elemLLTy
		}
	case TyStruct:
		slots, _, err := PackBitFields(fl.l.target, u.Fields)
		if err != nil {
			return err
		}
		for i, item := range items {
			if i >= len(u.Fields) {
				break
			}
			llIdx := llvmFieldIndex(u.Fields, slots, i)
			zero := constant.NewInt(types.I32, 0)
			gepIdx := constant.NewInt(types.I32, int64(llIdx))
			fieldPtr := fl.cur.NewGetElementPtr(llty, ptr, zero, gepIdx)
			if err := fl.storeInitItem(fieldPtr, u.Fields[i].Type, item); err != nil {
				return err
			}
		}
	case TyUnion:
		if len(items) > 0 && len(u.Fields) > 0 {
			fieldLLTy, err := fl.l.llvmType(u.Fields[0].Type)
			if err != nil {
				return err
			}
			fieldPtr := fl.cur.NewBitCast(ptr, types.NewPointer(fieldLLTy))
			if err := fl.storeInitItem(fieldPtr, u.Fields[0].Type, items[0]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fl *functionLowerer) storeInitItem(ptr value.Value, ty *CType, item InitItem) error {
	if item.Nested != nil {
		return fl.storeInitList(ptr, ty, item.Nested)
	}
	if item.Value != nil {
		return fl.storeInto(ptr, ty, item.Value)
	}
	return nil
}

// truthy coerces tv to an `i1`, per the scalar-truthiness rule every
// C89 controlling expression uses.
func (fl *functionLowerer) truthy(tv typedValue) (value.Value, error) {
	if tv.Ty.IsFloating() {
		zero := zeroValue(tv.V.Type())
		return fl.cur.NewFCmp(floatPredNE, tv.V, zero), nil
	}
	if pt, ok := tv.V.Type().(*types.PointerType); ok {
		return fl.cur.NewICmp(intPredNE, tv.V, constant.NewNull(pt)), nil
	}
	zero := zeroValue(tv.V.Type())
	return fl.cur.NewICmp(intPredNE, tv.V, zero), nil
}

// intWidth reports an integer type's bit width and signedness, the two
// facts convert needs to pick between sext/zext/trunc.
func (fl *functionLowerer) intWidth(ty *CType) (int, bool, error) {
	u := ty.Underlying()
	switch u.Kind {
	case TyChar:
		return 8, u.Unsigned, nil
	case TyEnum:
		return 32, false, nil
	case TyInt:
		bits, err := fl.l.target.IntBitWidth(u)
		if err != nil {
			return 0, false, err
		}
		return bits, u.Unsigned, nil
	}
	return 0, false, errors.Errorf("internal: %s is not an integer type", ty.String())
}

func floatRank(ty *CType) int {
	switch {
	case ty.Kind == TyFloat:
		return 0
	case ty.Long:
		return 2
	default:
		return 1
	}
}

// convert lowers tv to target's representation (spec §4.5's implicit
// conversions plus explicit casts), picking the LLVM conversion
// instruction from the source/destination kind pair: widening
// sext/zext by source signedness, narrowing trunc, float<->int via
// si/ui-to-fp and fp-to-si/ui by destination signedness, float<->float
// via fpext/fptrunc by rank, and pointer<->pointer/integer via
// bitcast/inttoptr/ptrtoint.
func (fl *functionLowerer) convert(tv typedValue, target *CType) (typedValue, error) {
	dst := target.Underlying()
	src := tv.Ty.Underlying()

	if TypeEqual(dst, src) || isAggregate(dst) || isAggregate(src) {
		return typedValue{V: tv.V, Ty: target}, nil
	}

	dstllty, err := fl.l.llvmType(target)
	if err != nil {
		return typedValue{}, err
	}

	switch {
	case dst.IsInteger() && src.IsInteger():
		dstBits, _, err := fl.intWidth(dst)
		if err != nil {
			return typedValue{}, err
		}
		srcBits, srcUnsigned, err := fl.intWidth(src)
		if err != nil {
			return typedValue{}, err
		}
		switch {
		case dstBits > srcBits:
			if srcUnsigned {
				return typedValue{V: fl.cur.NewZExt(tv.V, dstllty), Ty: target}, nil
			}
			return typedValue{V: fl.cur.NewSExt(tv.V, dstllty), Ty: target}, nil
		case dstBits < srcBits:
			return typedValue{V: fl.cur.NewTrunc(tv.V, dstllty), Ty: target}, nil
		default:
			return typedValue{V: tv.V, Ty: target}, nil
		}

	case dst.IsInteger() && src.IsFloating():
		if dst.Unsigned {
			return typedValue{V: fl.cur.NewFPToUI(tv.V, dstllty), Ty: target}, nil
		}
		return typedValue{V: fl.cur.NewFPToSI(tv.V, dstllty), Ty: target}, nil

	case dst.IsFloating() && src.IsInteger():
		if src.Unsigned {
			return typedValue{V: fl.cur.NewUIToFP(tv.V, dstllty), Ty: target}, nil
		}
		return typedValue{V: fl.cur.NewSIToFP(tv.V, dstllty), Ty: target}, nil

	case dst.IsFloating() && src.IsFloating():
		dstRank, srcRank := floatRank(dst), floatRank(src)
		switch {
		case dstRank > srcRank:
			return typedValue{V: fl.cur.NewFPExt(tv.V, dstllty), Ty: target}, nil
		case dstRank < srcRank:
			return typedValue{V: fl.cur.NewFPTrunc(tv.V, dstllty), Ty: target}, nil
		default:
			return typedValue{V: tv.V, Ty: target}, nil
		}

	case dst.Kind == TyPointer && src.Kind == TyPointer:
		return typedValue{V: fl.cur.NewBitCast(tv.V, dstllty), Ty: target}, nil

	case dst.Kind == TyPointer && src.IsInteger():
		return typedValue{V: fl.cur.NewIntToPtr(tv.V, dstllty), Ty: target}, nil

	case dst.IsInteger() && src.Kind == TyPointer:
		return typedValue{V: fl.cur.NewPtrToInt(tv.V, dstllty), Ty: target}, nil
	}

	return typedValue{V: tv.V, Ty: target}, nil
}

func intCmpPred(op TokenKind, unsigned bool) enum.IPred {
	switch op {
	case TkLt:
		if unsigned {
			return enum.IPredULT
		}
		return enum.IPredSLT
	case TkGt:
		if unsigned {
			return enum.IPredUGT
		}
		return enum.IPredSGT
	case TkLe:
		if unsigned {
			return enum.IPredULE
		}
		return enum.IPredSLE
	case TkGe:
		if unsigned {
			return enum.IPredUGE
		}
		return enum.IPredSGE
	case TkNe:
		return enum.IPredNE
	default:
		return enum.IPredEQ
	}
}

func floatCmpPred(op TokenKind) enum.FPred {
	switch op {
	case TkLt:
		return enum.FPredOLT
	case TkGt:
		return enum.FPredOGT
	case TkLe:
		return enum.FPredOLE
	case TkGe:
		return enum.FPredOGE
	case TkNe:
		return enum.FPredONE
	default:
		return enum.FPredOEQ
	}
}

// lowerComparison lowers a relational/equality operator to an `icmp`/
// `fcmp`, zero-extending the resulting `i1` to `int` per spec §4.5
// (every C89 relational expression has type int). Pointer operands are
// normalized to `i8*` first since LLVM's icmp requires its two
// operands share exactly one type.
func (fl *functionLowerer) lowerComparison(op TokenKind, lhs, rhs typedValue) (typedValue, error) {
	lu, ru := lhs.Ty.Underlying(), rhs.Ty.Underlying()
	var cmp value.Value
	if lu.Kind == TyPointer || ru.Kind == TyPointer {
		voidPtr := PointerTo(VoidType())
		l, err := fl.convert(lhs, voidPtr)
		if err != nil {
			return typedValue{}, err
		}
		r, err := fl.convert(rhs, voidPtr)
		if err != nil {
			return typedValue{}, err
		}
		cmp = fl.cur.NewICmp(intCmpPred(op, true), l.V, r.V)
	} else {
		cmpTy := UsualArithmeticConversions(lhs.Ty, rhs.Ty)
		l, err := fl.convert(lhs, cmpTy)
		if err != nil {
			return typedValue{}, err
		}
		r, err := fl.convert(rhs, cmpTy)
		if err != nil {
			return typedValue{}, err
		}
		if cmpTy.Underlying().IsFloating() {
			cmp = fl.cur.NewFCmp(floatCmpPred(op), l.V, r.V)
		} else {
			cmp = fl.cur.NewICmp(intCmpPred(op, cmpTy.Underlying().Unsigned), l.V, r.V)
		}
	}
	extTy, err := fl.l.llvmType(IntType())
	if err != nil {
		return typedValue{}, err
	}
	return typedValue{V: fl.cur.NewZExt(cmp, extTy), Ty: IntType()}, nil
}

// lowerPointerArith implements pointer + integer, integer + pointer,
// pointer - integer (all a single-index GEP) and pointer - pointer
// (the byte difference divided by the pointee's size), per spec
// §4.5's pointer-arithmetic typing rules.
func (fl *functionLowerer) lowerPointerArith(op TokenKind, lhs, rhs typedValue) (typedValue, error) {
	lu, ru := lhs.Ty.Underlying(), rhs.Ty.Underlying()

	if lu.Kind == TyPointer && ru.Kind == TyPointer {
		i64, err := fl.l.llvmType(LongType())
		if err != nil {
			return typedValue{}, err
		}
		lv := fl.cur.NewPtrToInt(lhs.V, i64)
		rv := fl.cur.NewPtrToInt(rhs.V, i64)
		diff := fl.cur.NewSub(lv, rv)
		size, err := fl.l.target.Sizeof(lu.Elem)
		if err != nil {
			return typedValue{}, err
		}
		if size <= 0 {
			size = 1
		}
		q := fl.cur.NewSDiv(diff, constant.NewInt(i64.(*types.IntType), int64(size)))
		return typedValue{V: q, Ty: LongType()}, nil
	}

	ptrTV, intTV := lhs, rhs
	if lu.Kind != TyPointer {
		ptrTV, intTV = rhs, lhs
	}
	elemTy := ptrTV.Ty.Underlying().Elem
	elemLLTy, err := fl.l.llvmType(elemTy)
	if err != nil {
		return typedValue{}, err
	}
	idx, err := fl.convert(intTV, LongType())
	if err != nil {
		return typedValue{}, err
	}
	idxV := idx.V
	if op == TkMinus {
		idxV = fl.cur.NewSub(constant.NewInt(types.I64, 0), idxV)
	}
	ptr := fl.cur.NewGetElementPtr(elemLLTy, ptrTV.V, idxV)
	return typedValue{V: ptr, Ty: ptrTV.Ty}, nil
}

// applyBinaryOp emits the LLVM instruction for one arithmetic/bitwise
// operator over two operands already converted to resultTy, choosing
// the integer or floating-point form and, for division/modulo/shift,
// the signed or unsigned form by resultTy's signedness.
func (fl *functionLowerer) applyBinaryOp(op TokenKind, lhs, rhs typedValue, resultTy *CType) (typedValue, error) {
	l, err := fl.convert(lhs, resultTy)
	if err != nil {
		return typedValue{}, err
	}
	r, err := fl.convert(rhs, resultTy)
	if err != nil {
		return typedValue{}, err
	}

	isFloat := resultTy.Underlying().IsFloating()
	unsigned := resultTy.Underlying().Unsigned

	var v value.Value
	switch op {
	case TkPlus:
		if isFloat {
			v = fl.cur.NewFAdd(l.V, r.V)
		} else {
			v = fl.cur.NewAdd(l.V, r.V)
		}
	case TkMinus:
		if isFloat {
			v = fl.cur.NewFSub(l.V, r.V)
		} else {
			v = fl.cur.NewSub(l.V, r.V)
		}
	case TkStar:
		if isFloat {
			v = fl.cur.NewFMul(l.V, r.V)
		} else {
			v = fl.cur.NewMul(l.V, r.V)
		}
	case TkSlash:
		switch {
		case isFloat:
			v = fl.cur.NewFDiv(l.V, r.V)
		case unsigned:
			v = fl.cur.NewUDiv(l.V, r.V)
		default:
			v = fl.cur.NewSDiv(l.V, r.V)
		}
	case TkPercent:
		if unsigned {
			v = fl.cur.NewURem(l.V, r.V)
		} else {
			v = fl.cur.NewSRem(l.V, r.V)
		}
	case TkAmp:
		v = fl.cur.NewAnd(l.V, r.V)
	case TkPipe:
		v = fl.cur.NewOr(l.V, r.V)
	case TkCaret:
		v = fl.cur.NewXor(l.V, r.V)
	case TkShl:
		v = fl.cur.NewShl(l.V, r.V)
	case TkShr:
		if unsigned {
			v = fl.cur.NewLShr(l.V, r.V)
		} else {
			v = fl.cur.NewAShr(l.V, r.V)
		}
	default:
		return typedValue{}, errors.Errorf("internal: unhandled binary operator %v in IR lowering", op)
	}
	return typedValue{V: v, Ty: resultTy}, nil
}

// lowerLogical lowers `&&`/`||` via explicit branches and a final phi
// rather than bitwise and/or, so the right operand is genuinely
// unevaluated when the left one already decides the result (spec §9's
// "advanced" control-flow variant, recorded in DESIGN.md).
func (fl *functionLowerer) lowerLogical(n *BinaryExpr) (typedValue, error) {
	lhs, err := fl.lowerExpr(n.Left)
	if err != nil {
		return typedValue{}, err
	}
	lhsBool, err := fl.truthy(lhs)
	if err != nil {
		return typedValue{}, err
	}

	rhsBlock := fl.newBlock("logic.rhs")
	endBlock := fl.newBlock("logic.end")
	startBlock := fl.cur

	if n.Op == TkAndAnd {
		fl.cur.NewCondBr(lhsBool, rhsBlock, endBlock)
	} else {
		fl.cur.NewCondBr(lhsBool, endBlock, rhsBlock)
	}

	fl.cur = rhsBlock
	rhs, err := fl.lowerExpr(n.Right)
	if err != nil {
		return typedValue{}, err
	}
	rhsBool, err := fl.truthy(rhs)
	if err != nil {
		return typedValue{}, err
	}
	rhsEndBlock := fl.cur
	fl.cur.NewBr(endBlock)

	fl.cur = endBlock
	shortVal := constant.NewBool(n.Op == TkOrOr)
	phi := fl.cur.NewPhi(
		ir.NewIncoming(shortVal, startBlock),
		ir.NewIncoming(rhsBool, rhsEndBlock),
	)
	extTy, err := fl.l.llvmType(IntType())
	if err != nil {
		return typedValue{}, err
	}
	return typedValue{V: fl.cur.NewZExt(phi, extTy), Ty: IntType()}, nil
}

// lowerBinary dispatches a BinaryExpr to the comparison, pointer-
// arithmetic, short-circuit, or ordinary-arithmetic lowering it needs
// (spec §4.6).
func (fl *functionLowerer) lowerBinary(n *BinaryExpr) (typedValue, error) {
	switch n.Op {
	case TkAndAnd, TkOrOr:
		return fl.lowerLogical(n)
	case TkComma:
		if _, err := fl.lowerExpr(n.Left); err != nil {
			return typedValue{}, err
		}
		return fl.lowerExpr(n.Right)
	}

	lhs, err := fl.lowerExpr(n.Left)
	if err != nil {
		return typedValue{}, err
	}
	rhs, err := fl.lowerExpr(n.Right)
	if err != nil {
		return typedValue{}, err
	}

	switch n.Op {
	case TkLt, TkGt, TkLe, TkGe, TkEq, TkNe:
		return fl.lowerComparison(n.Op, lhs, rhs)
	}

	lu, ru := lhs.Ty.Underlying(), rhs.Ty.Underlying()
	if lu.Kind == TyPointer || ru.Kind == TyPointer {
		return fl.lowerPointerArith(n.Op, lhs, rhs)
	}

	resultTy := n.ResultType
	if resultTy == nil {
		resultTy = UsualArithmeticConversions(lhs.Ty, rhs.Ty)
	}
	return fl.applyBinaryOp(n.Op, lhs, rhs, resultTy)
}

// lowerPrePostCrement implements both prefix and postfix `++`/`--`: a
// pointer steps by one element via GEP, a float by 1.0, anything else
// by the integer 1. pre reports whether the expression's value is the
// updated (prefix) or original (postfix) value.
func (fl *functionLowerer) lowerPrePostCrement(operand Expr, op TokenKind, pre bool) (typedValue, error) {
	ptr, ty, err := fl.lowerLValue(operand)
	if err != nil {
		return typedValue{}, err
	}
	old, err := fl.loadFrom(ptr, ty)
	if err != nil {
		return typedValue{}, err
	}

	u := ty.Underlying()
	var updated value.Value
	switch {
	case u.Kind == TyPointer:
		elemLLTy, err := fl.l.llvmType(u.Elem)
		if err != nil {
			return typedValue{}, err
		}
		delta := int64(1)
		if op == TkDecr {
			delta = -1
		}
		updated = fl.cur.NewGetElementPtr(elemLLTy, old.V, constant.NewInt(types.I64, delta))
	case u.IsFloating():
		one := constant.NewFloat(old.V.Type().(*types.FloatType), 1)
		if op == TkIncr {
			updated = fl.cur.NewFAdd(old.V, one)
		} else {
			updated = fl.cur.NewFSub(old.V, one)
		}
	default:
		one := constant.NewInt(old.V.Type().(*types.IntType), 1)
		if op == TkIncr {
			updated = fl.cur.NewAdd(old.V, one)
		} else {
			updated = fl.cur.NewSub(old.V, one)
		}
	}
	fl.cur.NewStore(updated, ptr)
	if pre {
		return typedValue{V: updated, Ty: ty}, nil
	}
	return old, nil
}

func (fl *functionLowerer) lowerPostfix(n *PostfixExpr) (typedValue, error) {
	return fl.lowerPrePostCrement(n.Operand, n.Op, false)
}

// lowerUnary lowers every unary operator (spec §4.6): `&`/`*` compute
// or dereference an address, `+`/`-`/`~` arithmetic-negate after
// integer promotion, `!` produces the logical complement as an int,
// and `++`/`--` share lowerPrePostCrement with the postfix forms.
func (fl *functionLowerer) lowerUnary(n *UnaryExpr) (typedValue, error) {
	switch n.Op {
	case TkAmp:
		ptr, ty, err := fl.lowerLValue(n.Operand)
		if err != nil {
			return typedValue{}, err
		}
		return typedValue{V: ptr, Ty: PointerTo(ty)}, nil
	case TkStar:
		tv, err := fl.lowerExpr(n.Operand)
		if err != nil {
			return typedValue{}, err
		}
		return fl.loadFrom(tv.V, tv.Ty.Underlying().Elem)
	case TkPlus:
		tv, err := fl.lowerExpr(n.Operand)
		if err != nil {
			return typedValue{}, err
		}
		return fl.convert(tv, n.ResultType)
	case TkMinus:
		tv, err := fl.lowerExpr(n.Operand)
		if err != nil {
			return typedValue{}, err
		}
		pv, err := fl.convert(tv, n.ResultType)
		if err != nil {
			return typedValue{}, err
		}
		if pv.Ty.Underlying().IsFloating() {
			return typedValue{V: fl.cur.NewFNeg(pv.V), Ty: pv.Ty}, nil
		}
		zero := constant.NewInt(pv.V.Type().(*types.IntType), 0)
		return typedValue{V: fl.cur.NewSub(zero, pv.V), Ty: pv.Ty}, nil
	case TkTilde:
		tv, err := fl.lowerExpr(n.Operand)
		if err != nil {
			return typedValue{}, err
		}
		pv, err := fl.convert(tv, n.ResultType)
		if err != nil {
			return typedValue{}, err
		}
		allOnes := constant.NewInt(pv.V.Type().(*types.IntType), -1)
		return typedValue{V: fl.cur.NewXor(pv.V, allOnes), Ty: pv.Ty}, nil
	case TkBang:
		tv, err := fl.lowerExpr(n.Operand)
		if err != nil {
			return typedValue{}, err
		}
		b, err := fl.truthy(tv)
		if err != nil {
			return typedValue{}, err
		}
		notB := fl.cur.NewXor(b, constant.NewBool(true))
		extTy, err := fl.l.llvmType(IntType())
		if err != nil {
			return typedValue{}, err
		}
		return typedValue{V: fl.cur.NewZExt(notB, extTy), Ty: IntType()}, nil
	case TkIncr, TkDecr:
		return fl.lowerPrePostCrement(n.Operand, n.Op, true)
	}
	return typedValue{}, errors.Errorf("internal: unhandled unary operator %v in IR lowering", n.Op)
}

// lowerAssign lowers `=` and every compound assignment operator (spec
// §4.6): a plain `=` into an aggregate lvalue copies the whole object,
// a plain `=` into a scalar converts and stores, and a compound
// assignment reads the current value, applies the underlying binary
// operator, and stores the (converted back) result.
func (fl *functionLowerer) lowerAssign(n *AssignExpr) (typedValue, error) {
	ptr, ty, err := fl.lowerLValue(n.Left)
	if err != nil {
		return typedValue{}, err
	}

	if n.Op == TkAssign {
		if isAggregate(ty) {
			if err := fl.storeAggregate(ptr, ty, n.Right); err != nil {
				return typedValue{}, err
			}
			return fl.loadFrom(ptr, ty)
		}
		rhs, err := fl.lowerExpr(n.Right)
		if err != nil {
			return typedValue{}, err
		}
		converted, err := fl.convert(rhs, ty)
		if err != nil {
			return typedValue{}, err
		}
		fl.cur.NewStore(converted.V, ptr)
		return converted, nil
	}

	binOp := compoundToBinaryOp(n.Op)
	current, err := fl.loadFrom(ptr, ty)
	if err != nil {
		return typedValue{}, err
	}
	rhsTV, err := fl.lowerExpr(n.Right)
	if err != nil {
		return typedValue{}, err
	}

	if ty.Underlying().Kind == TyPointer {
		result, err := fl.lowerPointerArith(binOp, current, rhsTV)
		if err != nil {
			return typedValue{}, err
		}
		fl.cur.NewStore(result.V, ptr)
		return result, nil
	}

	resultTy := UsualArithmeticConversions(ty, rhsTV.Ty)
	result, err := fl.applyBinaryOp(binOp, current, rhsTV, resultTy)
	if err != nil {
		return typedValue{}, err
	}
	back, err := fl.convert(result, ty)
	if err != nil {
		return typedValue{}, err
	}
	fl.cur.NewStore(back.V, ptr)
	return back, nil
}

// lowerCond lowers the `?:` ternary via a diamond of blocks and a
// final phi joining the two branch values, converted to their common
// result type first so the phi's two incoming values share one LLVM
// type (spec §4.6).
func (fl *functionLowerer) lowerCond(n *CondExpr) (typedValue, error) {
	cond, err := fl.lowerCondition(n.Cond)
	if err != nil {
		return typedValue{}, err
	}

	thenBlock := fl.newBlock("cond.then")
	elseBlock := fl.newBlock("cond.else")
	endBlock := fl.newBlock("cond.end")
	fl.cur.NewCondBr(cond, thenBlock, elseBlock)

	fl.cur = thenBlock
	thenTV, err := fl.lowerExpr(n.Then)
	if err != nil {
		return typedValue{}, err
	}
	resultTy := n.ResultType
	if resultTy == nil {
		resultTy = thenTV.Ty
	}
	thenConv, err := fl.convert(thenTV, resultTy)
	if err != nil {
		return typedValue{}, err
	}
	thenEndBlock := fl.cur
	fl.cur.NewBr(endBlock)

	fl.cur = elseBlock
	elseTV, err := fl.lowerExpr(n.Else)
	if err != nil {
		return typedValue{}, err
	}
	elseConv, err := fl.convert(elseTV, resultTy)
	if err != nil {
		return typedValue{}, err
	}
	elseEndBlock := fl.cur
	fl.cur.NewBr(endBlock)

	fl.cur = endBlock
	phi := fl.cur.NewPhi(
		ir.NewIncoming(thenConv.V, thenEndBlock),
		ir.NewIncoming(elseConv.V, elseEndBlock),
	)
	return typedValue{V: phi, Ty: resultTy}, nil
}

// defaultArgumentPromotion applies the promotions spec §4.5 requires
// for an argument passed where no prototype fixes its type (a
// variadic call's trailing arguments, or any call through an
// unprototyped function pointer): float widens to double, and any
// integer narrower than int (char, short, enum) widens to int.
func (fl *functionLowerer) defaultArgumentPromotion(tv typedValue) (typedValue, error) {
	u := tv.Ty.Underlying()
	switch {
	case u.Kind == TyFloat:
		return fl.convert(tv, DoubleType())
	case u.Kind == TyChar || u.Short || u.Kind == TyEnum:
		return fl.convert(tv, IntType())
	}
	return tv, nil
}

// lowerVaBuiltin lowers one of the four `__builtin_va_*` forms
// sema_expr.go's typeOfVaBuiltin already approved: `va_start`/`va_end`/
// `va_copy` forward to the matching LLVM intrinsic over the `char *`
// va_list pointer, and `va_arg_i32` lowers straight to the `va_arg`
// instruction (spec §4.6: "Variadic support").
func (fl *functionLowerer) lowerVaBuiltin(name string, n *CallExpr) (typedValue, error) {
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		tv, err := fl.lowerExpr(a)
		if err != nil {
			return typedValue{}, err
		}
		args[i] = tv.V
	}
	i8ptr := types.NewPointer(types.I8)
	switch name {
	case "__builtin_va_start":
		fn := fl.l.declareExternFunc("llvm.va_start", types.Void, false, i8ptr)
		fl.cur.NewCall(fn, args[0])
		return typedValue{Ty: VoidType()}, nil
	case "__builtin_va_end":
		fn := fl.l.declareExternFunc("llvm.va_end", types.Void, false, i8ptr)
		fl.cur.NewCall(fn, args[0])
		return typedValue{Ty: VoidType()}, nil
	case "__builtin_va_copy":
		fn := fl.l.declareExternFunc("llvm.va_copy", types.Void, false, i8ptr, i8ptr)
		fl.cur.NewCall(fn, args[0], args[1])
		return typedValue{Ty: VoidType()}, nil
	default: // __builtin_va_arg_i32
		v := fl.cur.NewVAArg(args[0], types.I32)
		return typedValue{V: v, Ty: IntType()}, nil
	}
}

// lowerCall lowers a function call (spec §4.6): an aggregate return
// is collected through a hidden `sret` alloca, an aggregate argument
// is copied into a fresh alloca passed `byval`, a prototyped argument
// converts to its parameter's type, and an argument past the last
// fixed parameter of a variadic call gets the default argument
// promotions instead.
func (fl *functionLowerer) lowerCall(n *CallExpr) (typedValue, error) {
	if id, ok := n.Callee.(*IdentExpr); ok && vaBuiltins[id.Name] {
		return fl.lowerVaBuiltin(id.Name, n)
	}
	calleeTV, err := fl.lowerExpr(n.Callee)
	if err != nil {
		return typedValue{}, err
	}
	fnTy := calleeTV.Ty.Underlying()
	if fnTy.Kind == TyPointer {
		fnTy = fnTy.Elem.Underlying()
	}
	if fnTy.Kind != TyFunction {
		return typedValue{}, errors.Errorf("%s: internal: call target is not a function in IR lowering", n.Span())
	}

	aggregateReturn := returnsAggregate(fnTy.Return)
	var sretSlot value.Value
	var args []value.Value

	if aggregateReturn {
		retLLTy, err := fl.l.llvmType(fnTy.Return)
		if err != nil {
			return typedValue{}, err
		}
		sretSlot = fl.cur.NewAlloca(retLLTy)
		args = append(args, sretSlot)
	}

	for i, argExpr := range n.Args {
		if i < len(fnTy.Params) {
			paramTy := fnTy.Params[i].Type
			if isAggregate(paramTy) {
				copyLLTy, err := fl.l.llvmType(paramTy)
				if err != nil {
					return typedValue{}, err
				}
				copyPtr := fl.cur.NewAlloca(copyLLTy)
				if err := fl.storeAggregate(copyPtr, paramTy, argExpr); err != nil {
					return typedValue{}, err
				}
				args = append(args, copyPtr)
				continue
			}
			argTV, err := fl.lowerExpr(argExpr)
			if err != nil {
				return typedValue{}, err
			}
			converted, err := fl.convert(argTV, paramTy)
			if err != nil {
				return typedValue{}, err
			}
			args = append(args, converted.V)
			continue
		}

		argTV, err := fl.lowerExpr(argExpr)
		if err != nil {
			return typedValue{}, err
		}
		promoted, err := fl.defaultArgumentPromotion(argTV)
		if err != nil {
			return typedValue{}, err
		}
		args = append(args, promoted.V)
	}

	call := fl.cur.NewCall(calleeTV.V, args...)

	if aggregateReturn {
		return fl.loadFrom(sretSlot, fnTy.Return)
	}
	return typedValue{V: call, Ty: fnTy.Return}, nil
}

// lowerCast lowers an explicit `(T)e` cast. A cast to `void` (the
// classic "discard this value" idiom) evaluates e for its side
// effects only; any other target type goes through the same convert
// logic an implicit conversion uses.
func (fl *functionLowerer) lowerCast(n *CastExpr) (typedValue, error) {
	tv, err := fl.lowerExpr(n.Operand)
	if err != nil {
		return typedValue{}, err
	}
	if n.Type.Underlying().Kind == TyVoid {
		return typedValue{V: nil, Ty: n.Type}, nil
	}
	return fl.convert(tv, n.Type)
}

// staticTypeOf recovers an expression's type for `sizeof e` without
// needing a second semantic pass: lowerLValue already computes an
// lvalue's type for free, and falls back to lowering e as an rvalue
// (still valid, if wasteful, for a non-lvalue sizeof operand like
// `sizeof(a+b)`) when it isn't one.
func (fl *functionLowerer) staticTypeOf(e Expr) *CType {
	if _, ty, err := fl.lowerLValue(e); err == nil {
		return ty
	}
	if tv, err := fl.lowerExpr(e); err == nil {
		return tv.Ty
	}
	return IntType()
}

// lowerSizeof folds `sizeof` to the compile-time constant target.go's
// layout computes, typed `unsigned long` per spec §4.1.
func (fl *functionLowerer) lowerSizeof(n *SizeofExpr) (typedValue, error) {
	ty := n.OperandType
	if ty == nil {
		ty = fl.staticTypeOf(n.Operand)
	}
	size, err := fl.l.target.Sizeof(ty)
	if err != nil {
		return typedValue{}, err
	}
	ulongLLTy, err := fl.l.llvmType(UnsignedLongType())
	if err != nil {
		return typedValue{}, err
	}
	return typedValue{V: constant.NewInt(ulongLLTy.(*types.IntType), int64(size)), Ty: UnsignedLongType()}, nil
}
