package cc1

// typeOf computes (and caches onto the node's ResultType field where
// one exists) the type of an expression, recording any diagnostic
// along the way. It never fails outright — on error it records a
// diagnostic and returns a best-effort type (usually int) so that
// enclosing expressions can keep being checked, per spec §4.5's
// "collect everything" failure semantics.
func (a *Analyzer) typeOf(e Expr) *CType {
	switch n := e.(type) {
	case *IdentExpr:
		sym, ok := a.syms.Lookup(n.Name)
		if !ok {
			a.diags.Add(newSemaErrorAt(n.Span(), "use of undeclared identifier %q", n.Name))
			return IntType()
		}
		return sym.Type
	case *IntLitExpr:
		if n.Long && n.Unsigned {
			return UnsignedLongType()
		}
		if n.Long {
			return LongType()
		}
		if n.Unsigned {
			return UnsignedIntType()
		}
		return IntType()
	case *FloatLitExpr:
		if n.LongDouble {
			return LongDoubleType()
		}
		if n.Single {
			return FloatType()
		}
		return DoubleType()
	case *CharLitExpr:
		return CharType()
	case *StringLitExpr:
		return PointerTo(CharType())
	case *BinaryExpr:
		n.ResultType = a.typeOfBinary(n)
		return n.ResultType
	case *UnaryExpr:
		n.ResultType = a.typeOfUnary(n)
		return n.ResultType
	case *PostfixExpr:
		ty := a.typeOf(n.Operand)
		n.ResultType = ty
		return ty
	case *AssignExpr:
		n.ResultType = a.typeOfAssign(n)
		return n.ResultType
	case *CondExpr:
		n.ResultType = a.typeOfCond(n)
		return n.ResultType
	case *CallExpr:
		n.ResultType = a.typeOfCall(n)
		return n.ResultType
	case *IndexExpr:
		n.ResultType = a.typeOfIndex(n)
		return n.ResultType
	case *MemberExpr:
		n.ResultType = a.typeOfMember(n)
		return n.ResultType
	case *CastExpr:
		a.typeOf(n.Operand)
		return n.Type
	case *SizeofExpr:
		if n.OperandType != nil {
			if n.OperandType.Underlying().Kind == TyVoid {
				a.diags.Add(newSemaErrorAt(n.Span(), "invalid application of 'sizeof' to an incomplete type 'void'"))
			}
		} else {
			a.typeOf(n.Operand)
		}
		return UnsignedLongType()
	}
	return IntType()
}

// decay applies array-to-pointer and function-to-pointer decay in an
// rvalue context (spec §4.5's lvalue-conversion rule).
func decay(ty *CType) *CType {
	u := ty.Underlying()
	switch u.Kind {
	case TyArray:
		return PointerTo(u.Elem)
	case TyFunction:
		return PointerTo(u)
	default:
		return ty
	}
}

// PromoteInteger applies integer promotion: any integer type narrower
// than `int` becomes `int` (spec §4.5).
func PromoteInteger(ty *CType) *CType {
	u := ty.Underlying()
	if u.Kind == TyEnum {
		return IntType()
	}
	if u.Kind == TyChar || u.Short {
		return IntType()
	}
	return ty
}

// rank orders integer types for the usual arithmetic conversions:
// char < short < int < long.
func rank(ty *CType) int {
	u := ty.Underlying()
	switch {
	case u.Kind == TyChar:
		return 0
	case u.Short:
		return 1
	case u.Long:
		return 3
	default:
		return 2
	}
}

// UsualArithmeticConversions computes the common type of two
// arithmetic operands per spec §4.5: floating absorbs integer at the
// widest floating rank present; otherwise integer promotion followed
// by the signed/unsigned rank rule.
func UsualArithmeticConversions(a, b *CType) *CType {
	au, bu := a.Underlying(), b.Underlying()
	if au.IsFloating() || bu.IsFloating() {
		if (au.Kind == TyDouble && au.Long) || (bu.Kind == TyDouble && bu.Long) {
			return LongDoubleType()
		}
		if au.Kind == TyDouble || bu.Kind == TyDouble {
			return DoubleType()
		}
		return FloatType()
	}
	pa, pb := PromoteInteger(a), PromoteInteger(b)
	ra, rb := rank(pa), rank(pb)
	ua, ub := pa.Underlying().Unsigned, pb.Underlying().Unsigned

	if ua == ub {
		if ra >= rb {
			return pa
		}
		return pb
	}
	// Mixed signedness: the higher-ranked operand wins unless the
	// lower rank is the unsigned one and its rank is >= the signed
	// one's, in which case the result is unsigned at that rank.
	var signed, unsigned *CType
	var rs, ru int
	if ua {
		unsigned, signed = pa, pb
		ru, rs = ra, rb
	} else {
		unsigned, signed = pb, pa
		ru, rs = rb, ra
	}
	if ru >= rs {
		return unsigned
	}
	if signedCanRepresentAllOf(rs, ru) {
		return signed
	}
	return unsignedOfRank(rs)
}

// signedCanRepresentAllOf reports whether a signed type of rank rs
// can represent every value of an unsigned type of rank ru < rs —
// true whenever the signed type is strictly wider.
func signedCanRepresentAllOf(rs, ru int) bool {
	return rs > ru
}

func unsignedOfRank(r int) *CType {
	switch r {
	case 0:
		return UnsignedCharType()
	case 1:
		return UnsignedShortType()
	case 3:
		return UnsignedLongType()
	default:
		return UnsignedIntType()
	}
}

// assignable reports whether rhs (typed rhsTy, syntactically rhsExpr
// when available for the null-pointer-constant check) can be assigned
// to lhsTy, per spec §4.5.
func (a *Analyzer) assignable(lhsTy, rhsTy *CType, rhsExpr Expr) bool {
	lhs, rhs := lhsTy.Underlying(), decay(rhsTy).Underlying()
	if TypeEqual(lhs, rhs) {
		return true
	}
	if lhs.IsArithmetic() && rhs.IsArithmetic() {
		return true
	}
	if lhs.Kind == TyPointer && isNullPointerConstant(rhsExpr) {
		return true
	}
	if lhs.Kind == TyPointer && rhs.Kind == TyPointer {
		if lhs.Elem.Underlying().Kind == TyVoid || rhs.Elem.Underlying().Kind == TyVoid {
			return true
		}
		return TypeEqual(lhs.Elem, rhs.Elem)
	}
	return false
}

func isNullPointerConstant(e Expr) bool {
	lit, ok := e.(*IntLitExpr)
	return ok && lit.Value == 0
}

func (a *Analyzer) typeOfBinary(n *BinaryExpr) *CType {
	lt := decay(a.typeOf(n.Left))
	rt := decay(a.typeOf(n.Right))

	switch n.Op {
	case TkPlus:
		if lt.IsArithmetic() && rt.IsArithmetic() {
			return UsualArithmeticConversions(lt, rt)
		}
		if lt.Underlying().Kind == TyPointer && rt.IsInteger() {
			return lt
		}
		if rt.Underlying().Kind == TyPointer && lt.IsInteger() {
			return rt
		}
		a.diags.Add(newSemaErrorAt(n.Span(), "invalid operands to binary '+'"))
		return IntType()
	case TkMinus:
		if lt.IsArithmetic() && rt.IsArithmetic() {
			return UsualArithmeticConversions(lt, rt)
		}
		if lt.Underlying().Kind == TyPointer && rt.IsInteger() {
			return lt
		}
		if lt.Underlying().Kind == TyPointer && rt.Underlying().Kind == TyPointer {
			return LongType()
		}
		a.diags.Add(newSemaErrorAt(n.Span(), "invalid operands to binary '-'"))
		return IntType()
	case TkStar, TkSlash:
		if !lt.IsArithmetic() || !rt.IsArithmetic() {
			a.diags.Add(newSemaErrorAt(n.Span(), "invalid operands, arithmetic type required"))
			return IntType()
		}
		return UsualArithmeticConversions(lt, rt)
	case TkPercent, TkAmp, TkPipe, TkCaret:
		if !lt.IsInteger() || !rt.IsInteger() {
			a.diags.Add(newSemaErrorAt(n.Span(), "invalid operands, integer type required"))
			return IntType()
		}
		return UsualArithmeticConversions(lt, rt)
	case TkShl, TkShr:
		if !lt.IsInteger() || !rt.IsInteger() {
			a.diags.Add(newSemaErrorAt(n.Span(), "invalid operands, integer type required"))
			return IntType()
		}
		return PromoteInteger(lt)
	case TkLt, TkGt, TkLe, TkGe, TkEq, TkNe:
		return IntType()
	case TkAndAnd, TkOrOr:
		if !lt.IsScalar() || !rt.IsScalar() {
			a.diags.Add(newSemaErrorAt(n.Span(), "invalid operands, scalar type required"))
		}
		return IntType()
	case TkComma:
		return rt
	}
	return IntType()
}

func (a *Analyzer) typeOfUnary(n *UnaryExpr) *CType {
	switch n.Op {
	case TkAmp:
		a.typeOf(n.Operand)
		return PointerTo(a.exprStaticType(n.Operand))
	case TkStar:
		opTy := decay(a.typeOf(n.Operand)).Underlying()
		if opTy.Kind != TyPointer {
			a.diags.Add(newSemaErrorAt(n.Span(), "indirection requires pointer operand"))
			return IntType()
		}
		return opTy.Elem
	case TkPlus, TkMinus, TkTilde:
		ty := decay(a.typeOf(n.Operand))
		if !ty.IsArithmetic() {
			a.diags.Add(newSemaErrorAt(n.Span(), "invalid operand, arithmetic type required"))
			return IntType()
		}
		return PromoteInteger(ty)
	case TkBang:
		a.typeOf(n.Operand)
		return IntType()
	case TkIncr, TkDecr:
		ty := a.typeOf(n.Operand)
		return ty
	}
	return IntType()
}

// exprStaticType re-derives an expression's non-decayed type for `&`,
// since `&arr` must yield a pointer to the array type, not to its
// decayed element pointer.
func (a *Analyzer) exprStaticType(e Expr) *CType {
	switch n := e.(type) {
	case *IdentExpr:
		if sym, ok := a.syms.Lookup(n.Name); ok {
			return sym.Type
		}
	}
	return a.typeOf(e)
}

func (a *Analyzer) typeOfAssign(n *AssignExpr) *CType {
	lt := a.typeOf(n.Left)
	rt := a.typeOf(n.Right)
	if n.Op == TkAssign {
		if !a.assignable(lt, rt, n.Right) {
			a.diags.Add(newSemaErrorAt(n.Span(), "assigning to %q from incompatible type %q", lt.String(), rt.String()))
		}
		return lt
	}
	// Compound assignment: validate as if the underlying binary
	// operator had been used, then assign back.
	underlying := compoundToBinaryOp(n.Op)
	bogus := &BinaryExpr{n.base, underlying, n.Left, n.Right, nil}
	a.typeOfBinary(bogus)
	return lt
}

func compoundToBinaryOp(op TokenKind) TokenKind {
	switch op {
	case TkMulAssign:
		return TkStar
	case TkDivAssign:
		return TkSlash
	case TkModAssign:
		return TkPercent
	case TkAddAssign:
		return TkPlus
	case TkSubAssign:
		return TkMinus
	case TkShlAssign:
		return TkShl
	case TkShrAssign:
		return TkShr
	case TkAndAssign:
		return TkAmp
	case TkXorAssign:
		return TkCaret
	case TkOrAssign:
		return TkPipe
	}
	return TkPlus
}

func (a *Analyzer) typeOfCond(n *CondExpr) *CType {
	a.typeOf(n.Cond)
	tt := decay(a.typeOf(n.Then))
	et := decay(a.typeOf(n.Else))
	if tt.IsArithmetic() && et.IsArithmetic() {
		return UsualArithmeticConversions(tt, et)
	}
	if tt.Underlying().Kind == TyPointer && isNullPointerConstant(n.Else) {
		return tt
	}
	if et.Underlying().Kind == TyPointer && isNullPointerConstant(n.Then) {
		return et
	}
	if tt.Underlying().Kind == TyPointer && et.Underlying().Kind == TyPointer {
		if tt.Elem.Underlying().Kind == TyVoid {
			return et
		}
		return tt
	}
	return tt
}

// vaBuiltins names the four `__builtin_va_*` forms spec §4.6 requires
// (see SPEC_FULL.md's variadic-support module): none of them is a
// declared function, so typeOfCall recognizes them by name before
// falling through to ordinary call-expression checking, which would
// otherwise report them as calls to an undeclared identifier.
var vaBuiltins = map[string]bool{
	"__builtin_va_start":   true,
	"__builtin_va_end":     true,
	"__builtin_va_copy":    true,
	"__builtin_va_arg_i32": true,
}

// typeOfVaBuiltin type-checks one `__builtin_va_*` call: every operand
// is still walked for its own diagnostics (an undeclared `ap` is still
// an error), but the callee itself is exempt from symbol lookup and
// the result type is fixed by which builtin it is, not by a prototype.
func (a *Analyzer) typeOfVaBuiltin(name string, n *CallExpr) *CType {
	for _, arg := range n.Args {
		a.typeOf(arg)
	}
	if name == "__builtin_va_arg_i32" {
		return IntType()
	}
	return VoidType()
}

func (a *Analyzer) typeOfCall(n *CallExpr) *CType {
	if id, ok := n.Callee.(*IdentExpr); ok && vaBuiltins[id.Name] {
		return a.typeOfVaBuiltin(id.Name, n)
	}
	calleeTy := decay(a.typeOf(n.Callee)).Underlying()
	var fnTy *CType
	if calleeTy.Kind == TyPointer && calleeTy.Elem.Underlying().Kind == TyFunction {
		fnTy = calleeTy.Elem.Underlying()
	} else if calleeTy.Kind == TyFunction {
		fnTy = calleeTy
	}
	if fnTy == nil {
		a.diags.Add(newSemaErrorAt(n.Span(), "called object is not a function"))
		for _, arg := range n.Args {
			a.typeOf(arg)
		}
		return IntType()
	}
	hasPrototype := len(fnTy.Params) > 0 || !fnTy.Variadic
	if hasPrototype && len(n.Args) < len(fnTy.Params) {
		a.diags.Add(newSemaErrorAt(n.Span(), "too few arguments to function call"))
	}
	if hasPrototype && !fnTy.Variadic && len(n.Args) > len(fnTy.Params) {
		a.diags.Add(newSemaErrorAt(n.Span(), "too many arguments to function call"))
	}
	for i, arg := range n.Args {
		argTy := a.typeOf(arg)
		if i < len(fnTy.Params) {
			if !a.assignable(fnTy.Params[i].Type, argTy, arg) {
				a.diags.Add(newSemaErrorAt(arg.Span(), "incompatible argument type for parameter %d", i+1))
			}
		}
	}
	return fnTy.Return
}

func (a *Analyzer) typeOfIndex(n *IndexExpr) *CType {
	arrTy := decay(a.typeOf(n.Array)).Underlying()
	a.typeOf(n.Index)
	if arrTy.Kind != TyPointer {
		a.diags.Add(newSemaErrorAt(n.Span(), "subscripted value is not an array or pointer"))
		return IntType()
	}
	return arrTy.Elem
}

func (a *Analyzer) typeOfMember(n *MemberExpr) *CType {
	targetTy := a.typeOf(n.Target).Underlying()
	if n.Arrow {
		if targetTy.Kind != TyPointer {
			a.diags.Add(newSemaErrorAt(n.Span(), "member reference type is not a pointer"))
			return IntType()
		}
		targetTy = targetTy.Elem.Underlying()
	}
	if targetTy.Kind != TyStruct && targetTy.Kind != TyUnion {
		a.diags.Add(newSemaErrorAt(n.Span(), "member access into non-aggregate type"))
		return IntType()
	}
	if targetTy.Fields == nil {
		a.diags.Add(newSemaErrorAt(n.Span(), "member access into incomplete type"))
		return IntType()
	}
	for _, f := range targetTy.Fields {
		if f.Name == n.Field {
			return f.Type
		}
	}
	a.diags.Add(newSemaErrorAt(n.Span(), "no member named %q", n.Field))
	return IntType()
}
