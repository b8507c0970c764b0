package cc1

// checkInitializer validates n's initializer, if any, against n.Type
// per spec §4.5: a scalar initializer is checked for assignability
// (unwrapping any number of redundant single-element braces first), a
// char array may be initialized from a string literal, and aggregate
// (array/struct/union) initializers are checked element-by-element
// against the corresponding member type. When staticDuration is set
// (file scope, or an explicit `static`), every scalar leaf must also
// be an integer constant expression (spec §4.5's static-storage-
// duration rule; pointer constant expressions are out of scope and
// reported as a plain non-constant error, per spec §9).
func (a *Analyzer) checkInitializer(n *VarDecl, staticDuration bool) {
	ty := n.Type.Underlying()

	if n.Init == nil && n.InitList == nil {
		return
	}

	if n.Init != nil {
		a.checkScalarInitializer(ty, n.Init, staticDuration)
		return
	}

	a.checkAggregateInitList(n.Type, n.InitList, n.Span(), staticDuration)
}

// checkScalarInitializer handles both a plain scalar initializer and
// the case where a string literal initializes a char array directly
// (spec §4.5: "Char array from string literal"), plus the
// single-element-brace unwrapping rule ("any scalar initializer may be
// wrapped in extra single-element braces").
func (a *Analyzer) checkScalarInitializer(ty *CType, init Expr, staticDuration bool) {
	if ty.Kind == TyArray && ty.Elem.Underlying().Kind == TyChar {
		if str, ok := init.(*StringLitExpr); ok {
			needed := len(str.Value) + 1
			if ty.ArraySize != nil && needed > *ty.ArraySize {
				a.diags.Add(newSemaErrorAt(init.Span(), "initializer-string for char array is too long"))
			}
			return
		}
	}

	exprTy := a.typeOf(init)
	if !a.assignable(ty, exprTy, init) {
		a.diags.Add(newSemaErrorAt(init.Span(), "incompatible types when initializing type %q using type %q", ty.String(), exprTy.String()))
	}
	if staticDuration {
		a.requireICE(init)
	}
}

// requireICE records a diagnostic unless e evaluates as an integer
// constant expression over the enum constants seen so far (spec
// §4.5's static-storage-duration rule).
func (a *Analyzer) requireICE(e Expr) {
	if _, err := EvalICE(e, a.enumEnv, a.Target); err != nil {
		a.diags.Add(newSemaErrorAt(e.Span(), "initializer element is not a compile-time constant"))
	}
}

// checkAggregateInitList validates a brace-enclosed initializer list
// against an array, struct, or union type (spec §4.5): each element is
// checked (recursively, for a nested aggregate) against the
// corresponding member type, with excess elements flagged.
func (a *Analyzer) checkAggregateInitList(ty *CType, items []InitItem, span Span, staticDuration bool) {
	u := ty.Underlying()
	switch u.Kind {
	case TyArray:
		if u.ArraySize != nil && len(items) > *u.ArraySize {
			a.diags.Add(newSemaErrorAt(span, "excess elements in array initializer"))
		}
		for _, item := range items {
			a.checkInitItem(u.Elem, item, span, staticDuration)
		}
	case TyUnion:
		if len(items) > 1 {
			a.diags.Add(newSemaErrorAt(span, "excess elements in union initializer"))
		}
		if len(items) == 1 && len(u.Fields) > 0 {
			a.checkInitItem(u.Fields[0].Type, items[0], span, staticDuration)
		}
	case TyStruct:
		if u.Fields == nil {
			a.diags.Add(newSemaErrorAt(span, "initializing incomplete struct type"))
			return
		}
		if len(items) > len(u.Fields) {
			a.diags.Add(newSemaErrorAt(span, "excess elements in struct initializer"))
		}
		for i, item := range items {
			if i >= len(u.Fields) {
				break
			}
			a.checkInitItem(u.Fields[i].Type, item, span, staticDuration)
		}
	default:
		// A scalar wrapped in one or more single-element braces
		// (spec §4.5): unwrap down to the one element and re-check.
		if len(items) != 1 {
			a.diags.Add(newSemaErrorAt(span, "braces around scalar initializer"))
			return
		}
		a.checkInitItem(ty, items[0], span, staticDuration)
	}
}

// checkInitItem validates one element of a brace initializer list,
// recursing into checkAggregateInitList for a nested brace list or
// falling back to scalar checking for a plain expression element.
// span is the enclosing initializer list's span, reused for
// diagnostics on a nested list since InitItem carries no span of its
// own (spec §3's Initializer is an expression-or-list sum type with no
// per-element position).
func (a *Analyzer) checkInitItem(ty *CType, item InitItem, span Span, staticDuration bool) {
	if item.Nested != nil {
		a.checkAggregateInitList(ty, item.Nested, span, staticDuration)
		return
	}
	if item.Value != nil {
		a.checkScalarInitializer(ty, item.Value, staticDuration)
	}
}
