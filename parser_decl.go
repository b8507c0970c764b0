package cc1

import "strings"

// declSpec is the accumulated state of a declaration-specifier list:
// storage class, type qualifiers, and the base type before any
// declarator is applied (spec §4.4).
type declSpec struct {
	storage   TokenKind // TkEOF if none given
	isTypedef bool
	base      *CType
}

// parseExternalDecl parses one top-level construct: a function
// definition or one or more declarators sharing a declaration-
// specifier list, terminated by `;` (spec §3, §4.4).
func (p *Parser) parseExternalDecl() ([]Decl, error) {
	start, err := p.peek()
	if err != nil {
		return nil, err
	}
	spec, err := p.parseDeclSpec()
	if err != nil {
		return nil, err
	}
	if ok, _ := p.match(TkSemi); ok {
		// A bare `struct Tag;` or `enum Tag;` tag declaration.
		return nil, nil
	}

	name, ty, isFunc, params, err := p.parseDeclarator(spec.base)
	if err != nil {
		return nil, err
	}

	if spec.isTypedef {
		p.addTypedef(name)
		var decls []Decl
		decls = append(decls, &VarDecl{base{start.Span}, name, ty, spec.storage, true, nil, nil})
		for {
			if ok, _ := p.match(TkComma); !ok {
				break
			}
			n2, t2, _, _, err := p.parseDeclarator(spec.base)
			if err != nil {
				return nil, err
			}
			p.addTypedef(n2)
			decls = append(decls, &VarDecl{base{start.Span}, n2, t2, spec.storage, true, nil, nil})
		}
		if _, err := p.expect(TkSemi, "';'"); err != nil {
			return nil, err
		}
		return decls, nil
	}

	if isFunc {
		// Old-style (K&R) parameter declarations between `)` and `{`
		// give the identifier-list parameters their types.
		for tok, _ := p.peek(); p.startsDeclaration(tok); tok, _ = p.peek() {
			krDecls, err := p.parseBlockDecl()
			if err != nil {
				return nil, err
			}
			for _, d := range krDecls {
				for _, param := range params {
					if vd, ok := d.(*VarDecl); ok && param.Name == vd.Name {
						param.Type = vd.Type
					}
				}
			}
		}
		if p.check(TkLBrace) {
			p.pushScope()
			for _, param := range params {
				if param.Name != "" {
					// Parameter names become visible inside the body but
					// are never typedef names, so nothing to register here
					// beyond scope bookkeeping the analyzer repeats.
					_ = param
				}
			}
			body, err := p.parseCompoundStmt()
			p.popScope()
			if err != nil {
				return nil, err
			}
			fn := &FunctionDecl{base{start.Span}, name, ty, spec.storage, params, body}
			return []Decl{fn}, nil
		}
		// A prototype-only declaration with no body (e.g.
		// `int printf(const char*, ...);`): still a FunctionDecl, so
		// the lowerer emits a `declare` rather than a bogus global
		// variable initialized to a null function pointer.
		fn := &FunctionDecl{base{start.Span}, name, ty, spec.storage, params, nil}
		if _, err := p.expect(TkSemi, "';'"); err != nil {
			return nil, err
		}
		return []Decl{fn}, nil
	}

	var decls []Decl
	var initExpr Expr
	var initList []InitItem
	if ok, _ := p.match(TkAssign); ok {
		initExpr, initList, err = p.parseInitializer()
		if err != nil {
			return nil, err
		}
	}
	decls = append(decls, &VarDecl{base{start.Span}, name, ty, spec.storage, false, initExpr, initList})

	for {
		if ok, _ := p.match(TkComma); !ok {
			break
		}
		n2, t2, _, _, err := p.parseDeclarator(spec.base)
		if err != nil {
			return nil, err
		}
		var e2 Expr
		var l2 []InitItem
		if ok, _ := p.match(TkAssign); ok {
			e2, l2, err = p.parseInitializer()
			if err != nil {
				return nil, err
			}
		}
		decls = append(decls, &VarDecl{base{start.Span}, n2, t2, spec.storage, false, e2, l2})
	}
	if _, err := p.expect(TkSemi, "';'"); err != nil {
		return nil, err
	}
	return decls, nil
}

// parseDeclSpec parses the storage-class specifiers, type qualifiers,
// and type specifiers that precede a declarator, validating the
// combinations spec §9 explicitly rejects (`short long`, `long long`,
// `void` with any modifier).
func (p *Parser) parseDeclSpec() (*declSpec, error) {
	spec := &declSpec{storage: TkEOF}
	ty := &CType{Kind: TyInt}
	sawExplicitType := false
	var longCount int

	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TkTypedef, TkExtern, TkStatic, TkAuto, TkRegister:
			p.bump()
			spec.storage = tok.Kind
			spec.isTypedef = tok.Kind == TkTypedef
		case TkConst:
			p.bump()
			ty.Const = true
		case TkVolatile:
			p.bump()
			ty.Volatile = true
		case TkVoid:
			p.bump()
			ty.Kind = TyVoid
			sawExplicitType = true
		case TkChar:
			p.bump()
			ty.Kind = TyChar
			sawExplicitType = true
		case TkInt:
			p.bump()
			ty.Kind = TyInt
			sawExplicitType = true
		case TkFloat:
			p.bump()
			ty.Kind = TyFloat
			sawExplicitType = true
		case TkDouble:
			p.bump()
			ty.Kind = TyDouble
			sawExplicitType = true
		case TkShort:
			p.bump()
			ty.Kind = TyInt
			ty.Short = true
			sawExplicitType = true
		case TkLong:
			p.bump()
			longCount++
			ty.Long = true
			sawExplicitType = true
		case TkSigned:
			p.bump()
			ty.Signed = true
			sawExplicitType = true
		case TkUnsigned:
			p.bump()
			ty.Unsigned = true
			sawExplicitType = true
		case TkStruct, TkUnion:
			p.bump()
			st, err := p.parseStructOrUnion(tok.Kind)
			if err != nil {
				return nil, err
			}
			preserveQual(ty, st)
			ty = st
			sawExplicitType = true
		case TkEnum:
			p.bump()
			en, err := p.parseEnum()
			if err != nil {
				return nil, err
			}
			preserveQual(ty, en)
			ty = en
			sawExplicitType = true
		case TkIdent:
			if !sawExplicitType && tok.Lexeme == builtinVaList {
				p.bump()
				vaList := PointerTo(CharType())
				preserveQual(ty, vaList)
				ty = vaList
				sawExplicitType = true
			} else if !sawExplicitType && p.isTypedefName(tok.Lexeme) {
				p.bump()
				named := &CType{Kind: TyNamed, Name: tok.Lexeme}
				preserveQual(ty, named)
				ty = named
				sawExplicitType = true
			} else {
				goto done
			}
		default:
			goto done
		}
	}
done:
	if ty.Short && longCount > 0 {
		return nil, p.failNow(0, "'short long' is not a valid type combination")
	}
	if longCount > 1 {
		return nil, p.failNow(0, "'long long' is not a valid type combination in C89")
	}
	if ty.Kind == TyVoid && (ty.Short || ty.Long || ty.Signed || ty.Unsigned) {
		return nil, p.failNow(0, "'void' cannot be combined with other type specifiers")
	}
	if ty.Kind == TyFloat && ty.Long {
		return nil, p.failNow(0, "'long float' is not a valid type combination")
	}
	spec.base = ty
	return spec, nil
}

// preserveQual carries const/volatile collected so far on the
// partially-built base type onto a freshly constructed aggregate or
// named type, since struct/union/enum/typedef parsing builds its own
// CType value.
func preserveQual(from, to *CType) {
	to.Const = to.Const || from.Const
	to.Volatile = to.Volatile || from.Volatile
}

// failNow builds a ParseError without synchronizing recovery, used
// for declaration-specifier combination errors where there is no
// single offending token span readily at hand; span 0 is filled from
// the current lookahead position.
func (p *Parser) failNow(_ int, format string, args ...any) error {
	tok, _ := p.peek()
	return newParseError(tok.Span, format, args...)
}

// parseStructOrUnion parses `struct|union [Tag] [{ fields }]`.
func (p *Parser) parseStructOrUnion(kind TokenKind) (*CType, error) {
	tag := ""
	if p.check(TkIdent) {
		t, _ := p.bump()
		tag = t.Lexeme
	}
	tyKind := TyStruct
	if kind == TkUnion {
		tyKind = TyUnion
	}
	ty := &CType{Kind: tyKind, Tag: tag}
	if ok, _ := p.match(TkLBrace); ok {
		var fields []*Field
		for !p.check(TkRBrace) {
			fs, err := p.parseFieldDecl()
			if err != nil {
				return nil, err
			}
			fields = append(fields, fs...)
		}
		if _, err := p.expect(TkRBrace, "'}'"); err != nil {
			return nil, err
		}
		ty.Fields = fields
	}
	return ty, nil
}

// parseFieldDecl parses one member-declaration of a struct/union
// body, possibly declaring several fields sharing a base type and
// possibly bit-fields (`type [name] : width`).
func (p *Parser) parseFieldDecl() ([]*Field, error) {
	spec, err := p.parseDeclSpec()
	if err != nil {
		return nil, err
	}
	var fields []*Field
	for {
		var name string
		ty := spec.base
		if !p.check(TkColon) {
			n, t, _, _, err := p.parseDeclarator(spec.base)
			if err != nil {
				return nil, err
			}
			name, ty = n, t
		}
		var bitWidth *int
		if ok, _ := p.match(TkColon); ok {
			w, err := p.parseConstIntExprLiteral()
			if err != nil {
				return nil, err
			}
			iw := int(w)
			bitWidth = &iw
		}
		fields = append(fields, &Field{Name: name, Type: ty, BitWidth: bitWidth})
		if ok, _ := p.match(TkComma); !ok {
			break
		}
	}
	if _, err := p.expect(TkSemi, "';'"); err != nil {
		return nil, err
	}
	return fields, nil
}

// parseConstIntExprLiteral parses the bit-field width's constant
// expression and evaluates it at once with EvalICE over the enum
// constants seen so far, since the width is needed immediately to
// size the Field. An expression EvalICE cannot evaluate yields a
// width of 0; the expression itself is not kept.
func (p *Parser) parseConstIntExprLiteral() (int64, error) {
	expr, err := p.parseConditional()
	if err != nil {
		return 0, err
	}
	v, iceErr := EvalICE(expr, p.enumEnv, p.target)
	if iceErr != nil {
		return 0, nil
	}
	return v, nil
}

// parseEnum parses `enum [Tag] [{ A[=expr], B, ... }]`, resolving
// each enumerator's value immediately (default: previous + 1, first
// defaults to 0) since enum values must be known to type subsequent
// enumerators' `= expr` initializers.
func (p *Parser) parseEnum() (*CType, error) {
	tag := ""
	if p.check(TkIdent) {
		t, _ := p.bump()
		tag = t.Lexeme
	}
	ty := &CType{Kind: TyEnum, EnumTag: tag}
	if ok, _ := p.match(TkLBrace); ok {
		next := int64(0)
		for {
			if p.check(TkRBrace) {
				break
			}
			nameTok, err := p.expect(TkIdent, "an enumerator name")
			if err != nil {
				return nil, err
			}
			val := next
			if ok, _ := p.match(TkAssign); ok {
				expr, err := p.parseConditional()
				if err != nil {
					return nil, err
				}
				if v, iceErr := EvalICE(expr, p.enumEnv, p.target); iceErr == nil {
					val = v
				}
			}
			ty.Enumerators = append(ty.Enumerators, &Enumerator{Name: nameTok.Lexeme, Value: val})
			p.enumEnv[nameTok.Lexeme] = val
			next = val + 1
			if ok, _ := p.match(TkComma); !ok {
				break
			}
		}
		if _, err := p.expect(TkRBrace, "'}'"); err != nil {
			return nil, err
		}
	}
	return ty, nil
}

// parseTypeName parses an abstract type name (`int`, `struct P *`,
// `char[]`) as used by casts, `sizeof`, and parameter lists.
func (p *Parser) parseTypeName() (*CType, error) {
	spec, err := p.parseDeclSpec()
	if err != nil {
		return nil, err
	}
	_, ty, _, _, err := p.parseDeclarator(spec.base)
	return ty, err
}

// parseDeclarator parses pointers, a direct-declarator core (a name,
// a parenthesized sub-declarator, or nothing for an abstract
// declarator), and a sequence of `[size]`/`(params)` suffixes applied
// outermost-first per spec §4.4.
func (p *Parser) parseDeclarator(base *CType) (name string, ty *CType, isFunc bool, params []*Param, err error) {
	built := base
	for {
		if ok, _ := p.match(TkStar); !ok {
			break
		}
		ptr := &CType{Kind: TyPointer, Elem: built}
		for p.check(TkConst) || p.check(TkVolatile) {
			tok, _ := p.bump()
			if tok.Kind == TkConst {
				ptr.Const = true
			} else {
				ptr.Volatile = true
			}
		}
		built = ptr
	}

	// hole is the placeholder threaded into a parenthesized
	// sub-declarator (e.g. the `*fp` of `int (*fp)(int)`); outer is
	// that sub-declarator's resulting type, which embeds hole by
	// pointer somewhere inside it. Suffixes parsed after the closing
	// paren (array/function suffixes) bind to what's inside the
	// parens, not to outer, so they keep building on `built` and get
	// spliced into `*hole` at the end; `outer` is what's returned.
	var hole, outer *CType
	if p.check(TkIdent) {
		tok, _ := p.bump()
		name = tok.Lexeme
	} else if ok, _ := p.match(TkLParen); ok {
		hole = &CType{}
		n2, t2, _, _, e2 := p.parseDeclarator(hole)
		if e2 != nil {
			return "", nil, false, nil, e2
		}
		if _, e2 := p.expect(TkRParen, "')'"); e2 != nil {
			return "", nil, false, nil, e2
		}
		name = n2
		outer = t2
	}

	for {
		tok, perr := p.peek()
		if perr != nil {
			return "", nil, false, nil, perr
		}
		switch tok.Kind {
		case TkLBracket:
			p.bump()
			var size *int
			if !p.check(TkRBracket) {
				e, err := p.parseConditional()
				if err != nil {
					return "", nil, false, nil, err
				}
				if lit, ok := e.(*IntLitExpr); ok {
					n := int(lit.Value)
					size = &n
				}
			}
			if _, err := p.expect(TkRBracket, "']'"); err != nil {
				return "", nil, false, nil, err
			}
			built = &CType{Kind: TyArray, Elem: built, ArraySize: size}
		case TkLParen:
			p.bump()
			isFunc = true
			var ps []*Param
			variadic := false
			if p.check(TkVoid) {
				if next, _ := p.peekAt(1); next.Kind == TkRParen {
					p.bump()
				} else {
					goto paramList
				}
			} else if !p.check(TkRParen) {
				goto paramList
			}
			goto closeParams
		paramList:
			for {
				if ok, _ := p.match(TkEllipsis); ok {
					variadic = true
					break
				}
				pspec, err := p.parseDeclSpec()
				if err != nil {
					return "", nil, false, nil, err
				}
				pname, pty, _, _, err := p.parseDeclarator(pspec.base)
				if err != nil {
					return "", nil, false, nil, err
				}
				ps = append(ps, &Param{Name: pname, Type: pty})
				if ok, _ := p.match(TkComma); !ok {
					break
				}
			}
		closeParams:
			if _, err := p.expect(TkRParen, "')'"); err != nil {
				return "", nil, false, nil, err
			}
			built = &CType{Kind: TyFunction, Return: built, Params: ps, Variadic: variadic}
			params = ps
		default:
			if hole != nil {
				*hole = *built
				return name, outer, isFunc, params, nil
			}
			return name, built, isFunc, params, nil
		}
	}
}

var _ = strings.TrimSpace
