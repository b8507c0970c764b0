package cc1

// parseCompoundStmt parses a `{ ... }` block. C89 requires every
// declaration in a block to precede the first statement (spec §7:
// "declarations after statements in a block" is a rejected
// construct); this parser reports a declaration that shows up after a
// statement of the same block as a parse error. Declarations and
// statements share one Items slice, in source order.
func (p *Parser) parseCompoundStmt() (*CompoundStmt, error) {
	lb, err := p.expect(TkLBrace, "'{'")
	if err != nil {
		return nil, err
	}
	p.pushScope()
	defer p.popScope()

	var items []Node
	sawStmt := false
	for !p.check(TkRBrace) {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkEOF {
			return nil, p.fail(tok.Span, "unterminated compound statement")
		}
		if p.startsDeclaration(tok) {
			if sawStmt {
				if err := p.fail(tok.Span, "declaration after a statement is not allowed in C89"); err != nil {
					return nil, err
				}
				continue
			}
			decls, err := p.parseBlockDecl()
			if err != nil {
				return nil, err
			}
			for _, d := range decls {
				items = append(items, d)
			}
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			items = append(items, stmt)
		}
		sawStmt = true
	}
	rb, err := p.expect(TkRBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &CompoundStmt{base{lb.Span.Merge(rb.Span)}, items}, nil
}

// startsDeclaration reports whether tok can begin a declaration:
// a storage-class keyword, a type keyword, or a typedef-name.
func (p *Parser) startsDeclaration(tok Token) bool {
	if tok.Kind.IsStorageClass() || tok.Kind.IsTypeKeyword() {
		return true
	}
	if tok.Kind == TkIdent {
		return p.isTypedefName(tok.Lexeme)
	}
	return false
}

// parseBlockDecl parses one block-scope declaration statement,
// reusing the external-declaration machinery for declarators and
// initializers (a block-scope declaration never has a function body).
func (p *Parser) parseBlockDecl() ([]Decl, error) {
	start, err := p.peek()
	if err != nil {
		return nil, err
	}
	spec, err := p.parseDeclSpec()
	if err != nil {
		return nil, err
	}
	if ok, _ := p.match(TkSemi); ok {
		return nil, nil
	}
	var decls []Decl
	for {
		name, ty, _, _, err := p.parseDeclarator(spec.base)
		if err != nil {
			return nil, err
		}
		if spec.isTypedef {
			p.addTypedef(name)
			decls = append(decls, &VarDecl{base{start.Span}, name, ty, spec.storage, true, nil, nil})
		} else {
			var initExpr Expr
			var initList []InitItem
			if ok, _ := p.match(TkAssign); ok {
				initExpr, initList, err = p.parseInitializer()
				if err != nil {
					return nil, err
				}
			}
			decls = append(decls, &VarDecl{base{start.Span}, name, ty, spec.storage, false, initExpr, initList})
		}
		if ok, _ := p.match(TkComma); !ok {
			break
		}
	}
	if _, err := p.expect(TkSemi, "';'"); err != nil {
		return nil, err
	}
	return decls, nil
}

// parseInitializer parses the right-hand side of `=` in a
// declaration: either a brace initializer list or a plain assignment
// expression (spec §4.4, §4.5).
func (p *Parser) parseInitializer() (Expr, []InitItem, error) {
	if p.check(TkLBrace) {
		items, err := p.parseInitList()
		return nil, items, err
	}
	e, err := p.parseAssignment()
	return e, nil, err
}

func (p *Parser) parseInitList() ([]InitItem, error) {
	if _, err := p.expect(TkLBrace, "'{'"); err != nil {
		return nil, err
	}
	var items []InitItem
	for !p.check(TkRBrace) {
		if p.check(TkLBrace) {
			nested, err := p.parseInitList()
			if err != nil {
				return nil, err
			}
			items = append(items, InitItem{Nested: nested})
		} else {
			e, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			items = append(items, InitItem{Value: e})
		}
		if ok, _ := p.match(TkComma); !ok {
			break
		}
	}
	if _, err := p.expect(TkRBrace, "'}'"); err != nil {
		return nil, err
	}
	return items, nil
}

// parseStatement parses one statement (spec §3, §4.4).
func (p *Parser) parseStatement() (Stmt, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TkLBrace:
		return p.parseCompoundStmt()
	case TkIf:
		return p.parseIfStmt()
	case TkWhile:
		return p.parseWhileStmt()
	case TkDo:
		return p.parseDoWhileStmt()
	case TkFor:
		return p.parseForStmt()
	case TkReturn:
		return p.parseReturnStmt()
	case TkBreak:
		p.bump()
		if _, err := p.expect(TkSemi, "';'"); err != nil {
			return nil, err
		}
		return &BreakStmt{base{tok.Span}}, nil
	case TkContinue:
		p.bump()
		if _, err := p.expect(TkSemi, "';'"); err != nil {
			return nil, err
		}
		return &ContinueStmt{base{tok.Span}}, nil
	case TkGoto:
		p.bump()
		label, err := p.expect(TkIdent, "a label name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TkSemi, "';'"); err != nil {
			return nil, err
		}
		return &GotoStmt{base{tok.Span.Merge(label.Span)}, label.Lexeme}, nil
	case TkCase:
		p.bump()
		val, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TkColon, "':'"); err != nil {
			return nil, err
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &CaseStmt{base{tok.Span}, val, stmt}, nil
	case TkDefault:
		p.bump()
		if _, err := p.expect(TkColon, "':'"); err != nil {
			return nil, err
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &CaseStmt{base{tok.Span}, nil, stmt}, nil
	case TkSwitch:
		return p.parseSwitchStmt()
	case TkSemi:
		p.bump()
		return &ExprStmt{base{tok.Span}, nil}, nil
	case TkIdent:
		// A labeled statement is `ident ':' stmt`; anything else
		// falls through to an expression statement.
		next, err := p.peekAt(1)
		if err != nil {
			return nil, err
		}
		if next.Kind == TkColon && !p.isTypedefName(tok.Lexeme) {
			p.bump()
			p.bump()
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			return &LabeledStmt{base{tok.Span}, tok.Lexeme, stmt}, nil
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseExprStmt() (Stmt, error) {
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	semi, err := p.expect(TkSemi, "';'")
	if err != nil {
		return nil, err
	}
	return &ExprStmt{base{e.Span().Merge(semi.Span)}, e}, nil
}

func (p *Parser) parseIfStmt() (Stmt, error) {
	kw, _ := p.bump()
	if _, err := p.expect(TkLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TkRParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	var els Stmt
	if ok, _ := p.match(TkElse); ok {
		els, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{base{kw.Span}, cond, then, els}, nil
}

func (p *Parser) parseWhileStmt() (Stmt, error) {
	kw, _ := p.bump()
	if _, err := p.expect(TkLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TkRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{base{kw.Span}, cond, body}, nil
}

func (p *Parser) parseDoWhileStmt() (Stmt, error) {
	kw, _ := p.bump()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TkWhile, "'while'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TkLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TkRParen, "')'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TkSemi, "';'"); err != nil {
		return nil, err
	}
	return &DoWhileStmt{base{kw.Span}, body, cond}, nil
}

// parseForStmt parses `for ( init ; cond ; post ) body`. C89 forbids
// a declaration in the init clause (spec §7's "declarations inside
// for" rejected construct); this parser accepts only an expression
// statement or an empty clause there, never a declaration.
func (p *Parser) parseForStmt() (Stmt, error) {
	kw, _ := p.bump()
	if _, err := p.expect(TkLParen, "'('"); err != nil {
		return nil, err
	}
	p.pushScope()
	defer p.popScope()

	var init Node
	if !p.check(TkSemi) {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		init = &ExprStmt{base{e.Span()}, e}
	}
	if _, err := p.expect(TkSemi, "';'"); err != nil {
		return nil, err
	}

	var cond Expr
	if !p.check(TkSemi) {
		c, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		cond = c
	}
	if _, err := p.expect(TkSemi, "';'"); err != nil {
		return nil, err
	}

	var post Expr
	if !p.check(TkRParen) {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		post = e
	}
	if _, err := p.expect(TkRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ForStmt{base{kw.Span}, init, cond, post, body}, nil
}

func (p *Parser) parseReturnStmt() (Stmt, error) {
	kw, _ := p.bump()
	var val Expr
	if !p.check(TkSemi) {
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		val = v
	}
	if _, err := p.expect(TkSemi, "';'"); err != nil {
		return nil, err
	}
	return &ReturnStmt{base{kw.Span}, val}, nil
}

func (p *Parser) parseSwitchStmt() (Stmt, error) {
	kw, _ := p.bump()
	if _, err := p.expect(TkLParen, "'('"); err != nil {
		return nil, err
	}
	tag, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TkRParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &SwitchStmt{base{kw.Span}, tag, body}, nil
}
