package cc1

import "fmt"

// iceEnv maps previously-declared enum constant names to their
// already-evaluated integer values, the environment spec §4.5's ICE
// evaluator accepts.
type iceEnv map[string]int64

// EvalICE evaluates an integer constant expression (spec §4.5,
// GLOSSARY "ICE"): integer and character literals, identifiers bound
// in env, unary +/-/~/!, binary arithmetic/bitwise/shift/relational/
// equality/logical operators, the conditional operator, `sizeof` of a
// type or of an expression whose type can be determined without
// evaluating it, and casts to integer types (truncated/sign-extended
// to the target width). Comma is rejected, as is any non-constant
// construct (an identifier not in env, a function call, ...).
//
// Grounded on original_source/src/front/semantics/const_eval.rs: a
// signed 64-bit accumulator, with truncation applied only at an
// explicit cast to the target width — not on every intermediate
// operation — matching C's "as if computed at infinite precision,
// truncated where the standard requires" ICE semantics closely enough
// for this front end's purposes.
func EvalICE(e Expr, env iceEnv, target *Target) (int64, error) {
	switch n := e.(type) {
	case *IntLitExpr:
		return n.Value, nil
	case *CharLitExpr:
		return int64(n.Value), nil
	case *IdentExpr:
		if v, ok := env[n.Name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("%s: %q is not usable in a constant expression", n.Span(), n.Name)
	case *UnaryExpr:
		return evalUnaryICE(n, env, target)
	case *BinaryExpr:
		return evalBinaryICE(n, env, target)
	case *CondExpr:
		c, err := EvalICE(n.Cond, env, target)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return EvalICE(n.Then, env, target)
		}
		return EvalICE(n.Else, env, target)
	case *SizeofExpr:
		return evalSizeofICE(n, env, target)
	case *CastExpr:
		v, err := EvalICE(n.Operand, env, target)
		if err != nil {
			return 0, err
		}
		return truncateToType(v, n.Type, target)
	}
	return 0, fmt.Errorf("%s: expression is not an integer constant expression", e.Span())
}

func evalUnaryICE(n *UnaryExpr, env iceEnv, target *Target) (int64, error) {
	v, err := EvalICE(n.Operand, env, target)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case TkPlus:
		return v, nil
	case TkMinus:
		return -v, nil
	case TkTilde:
		return ^v, nil
	case TkBang:
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%s: operator is not valid in a constant expression", n.Span())
}

func evalBinaryICE(n *BinaryExpr, env iceEnv, target *Target) (int64, error) {
	if n.Op == TkComma {
		return 0, fmt.Errorf("%s: comma operator is not allowed in a constant expression", n.Span())
	}
	// Short-circuit &&/|| must not evaluate the right operand when the
	// left side already decides the result, matching C's sequencing
	// guarantee even at constant-evaluation time.
	if n.Op == TkAndAnd || n.Op == TkOrOr {
		l, err := EvalICE(n.Left, env, target)
		if err != nil {
			return 0, err
		}
		if n.Op == TkAndAnd && l == 0 {
			return 0, nil
		}
		if n.Op == TkOrOr && l != 0 {
			return 1, nil
		}
		r, err := EvalICE(n.Right, env, target)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return 1, nil
		}
		return 0, nil
	}

	l, err := EvalICE(n.Left, env, target)
	if err != nil {
		return 0, err
	}
	r, err := EvalICE(n.Right, env, target)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case TkPlus:
		return l + r, nil
	case TkMinus:
		return l - r, nil
	case TkStar:
		return l * r, nil
	case TkSlash:
		if r == 0 {
			return 0, fmt.Errorf("%s: division by zero in a constant expression", n.Span())
		}
		return l / r, nil
	case TkPercent:
		if r == 0 {
			return 0, fmt.Errorf("%s: modulo by zero in a constant expression", n.Span())
		}
		return l % r, nil
	case TkAmp:
		return l & r, nil
	case TkPipe:
		return l | r, nil
	case TkCaret:
		return l ^ r, nil
	case TkShl:
		return l << uint(r), nil
	case TkShr:
		return l >> uint(r), nil
	case TkLt:
		return boolToInt(l < r), nil
	case TkGt:
		return boolToInt(l > r), nil
	case TkLe:
		return boolToInt(l <= r), nil
	case TkGe:
		return boolToInt(l >= r), nil
	case TkEq:
		return boolToInt(l == r), nil
	case TkNe:
		return boolToInt(l != r), nil
	}
	return 0, fmt.Errorf("%s: operator is not valid in a constant expression", n.Span())
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// evalSizeofICE evaluates `sizeof(type-name)` and `sizeof expr` where
// expr's type can be inferred structurally without evaluating it
// (spec §4.5: "the expression's type can be inferred without
// evaluation").
func evalSizeofICE(n *SizeofExpr, env iceEnv, target *Target) (int64, error) {
	ty := n.OperandType
	if ty == nil {
		var err error
		ty, err = inferStaticType(n.Operand, env)
		if err != nil {
			return 0, err
		}
	}
	size, err := target.Sizeof(ty)
	return int64(size), err
}

// inferStaticType derives the type of an expression appearing inside
// `sizeof` purely structurally, without evaluating it: literal kinds
// map directly to their type, and an identifier bound to an enum
// constant in env is typed `int`.
func inferStaticType(e Expr, env iceEnv) (*CType, error) {
	switch n := e.(type) {
	case *IntLitExpr:
		if n.Long && n.Unsigned {
			return UnsignedLongType(), nil
		}
		if n.Long {
			return LongType(), nil
		}
		if n.Unsigned {
			return UnsignedIntType(), nil
		}
		return IntType(), nil
	case *FloatLitExpr:
		if n.LongDouble {
			return LongDoubleType(), nil
		}
		if n.Single {
			return FloatType(), nil
		}
		return DoubleType(), nil
	case *CharLitExpr:
		return CharType(), nil
	case *StringLitExpr:
		n2 := len(n.Value) + 1
		return ArrayOf(CharType(), &n2), nil
	case *IdentExpr:
		if _, ok := env[n.Name]; ok {
			return IntType(), nil
		}
	case *CastExpr:
		return n.Type, nil
	case *SizeofExpr:
		return UnsignedLongType(), nil
	}
	return nil, fmt.Errorf("%s: sizeof operand's type cannot be determined without evaluating it", e.Span())
}

// truncateToType implements the truncation/sign-extension an explicit
// cast applies within a constant expression (spec §4.5): the value is
// reduced to the target integer type's bit width, respecting
// signedness, using the target's own size table rather than a fixed
// word size.
func truncateToType(v int64, ty *CType, target *Target) (int64, error) {
	u := ty.Underlying()
	if !u.IsInteger() {
		return v, nil
	}
	bits, err := target.IntBitWidth(u)
	if err != nil {
		return 0, err
	}
	if bits >= 64 {
		return v, nil
	}
	mask := int64(1)<<uint(bits) - 1
	trunc := v & mask
	if !u.Unsigned && trunc&(int64(1)<<uint(bits-1)) != 0 {
		trunc -= int64(1) << uint(bits)
	}
	return trunc, nil
}
