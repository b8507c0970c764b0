package cc1

// Expression parsing is a Pratt parser over thirteen precedence
// levels, comma down to postfix (spec §4.4): each level is one
// recursive-descent function that parses its right-hand side by
// calling the next-tighter level, left-associating by looping.

// parseExpression is the comma-expression entry point: `a, b, c`.
func (p *Parser) parseExpression() (Expr, error) {
	lhs, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	for p.check(TkComma) {
		op, _ := p.bump()
		rhs, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpr{base{lhs.Span().Merge(rhs.Span())}, op.Kind, lhs, rhs, nil}
	}
	return lhs, nil
}

var assignOps = map[TokenKind]bool{
	TkAssign: true, TkMulAssign: true, TkDivAssign: true, TkModAssign: true,
	TkAddAssign: true, TkSubAssign: true, TkShlAssign: true, TkShrAssign: true,
	TkAndAssign: true, TkXorAssign: true, TkOrAssign: true,
}

// parseAssignment parses `a = b`, `a += b`, etc. The C89 grammar
// requires the LHS to be an unparenthesized assignment target; this
// parser accepts any conditional-expression as LHS and leaves
// lvalue-ness to the analyzer (spec §4.5).
func (p *Parser) parseAssignment() (Expr, error) {
	lhs, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if assignOps[tok.Kind] {
		p.bump()
		rhs, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{base{lhs.Span().Merge(rhs.Span())}, tok.Kind, lhs, rhs, nil}, nil
	}
	return lhs, nil
}

// parseConditional parses `a ? b : c`.
func (p *Parser) parseConditional() (Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if ok, _ := p.match(TkQuestion); ok {
		then, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TkColon, "':'"); err != nil {
			return nil, err
		}
		els, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		return &CondExpr{base{cond.Span().Merge(els.Span())}, cond, then, els, nil}, nil
	}
	return cond, nil
}

func (p *Parser) binaryLevel(next func() (Expr, error), ops ...TokenKind) (Expr, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		matched := false
		for _, op := range ops {
			if tok.Kind == op {
				matched = true
				break
			}
		}
		if !matched {
			return lhs, nil
		}
		p.bump()
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpr{base{lhs.Span().Merge(rhs.Span())}, tok.Kind, lhs, rhs, nil}
	}
}

func (p *Parser) parseLogicalOr() (Expr, error) {
	return p.binaryLevel(p.parseLogicalAnd, TkOrOr)
}

func (p *Parser) parseLogicalAnd() (Expr, error) {
	return p.binaryLevel(p.parseBitOr, TkAndAnd)
}

func (p *Parser) parseBitOr() (Expr, error) {
	return p.binaryLevel(p.parseBitXor, TkPipe)
}

func (p *Parser) parseBitXor() (Expr, error) {
	return p.binaryLevel(p.parseBitAnd, TkCaret)
}

func (p *Parser) parseBitAnd() (Expr, error) {
	return p.binaryLevel(p.parseEquality, TkAmp)
}

func (p *Parser) parseEquality() (Expr, error) {
	return p.binaryLevel(p.parseRelational, TkEq, TkNe)
}

func (p *Parser) parseRelational() (Expr, error) {
	return p.binaryLevel(p.parseShift, TkLt, TkGt, TkLe, TkGe)
}

func (p *Parser) parseShift() (Expr, error) {
	return p.binaryLevel(p.parseAdditive, TkShl, TkShr)
}

func (p *Parser) parseAdditive() (Expr, error) {
	return p.binaryLevel(p.parseMultiplicative, TkPlus, TkMinus)
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.binaryLevel(p.parseCastExpr, TkStar, TkSlash, TkPercent)
}

// parseCastExpr parses `( type-name ) cast-expr` or falls through to
// unary. After `(`, the parser decides between a cast and a grouped
// expression by checking whether the next tokens start a type
// (spec §4.4: keyword, or a typedef-name currently in scope).
func (p *Parser) parseCastExpr() (Expr, error) {
	if p.check(TkLParen) {
		next, err := p.peekAt(1)
		if err != nil {
			return nil, err
		}
		if p.startsTypeName(next) {
			lparen, _ := p.bump()
			ty, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TkRParen, "')'"); err != nil {
				return nil, err
			}
			operand, err := p.parseCastExpr()
			if err != nil {
				return nil, err
			}
			return &CastExpr{base{lparen.Span.Merge(operand.Span())}, ty, operand}, nil
		}
	}
	return p.parseUnary()
}

// startsTypeName reports whether tok can begin a type-name: a type
// keyword, `const`/`volatile`, or an identifier currently bound as a
// typedef name.
func (p *Parser) startsTypeName(tok Token) bool {
	if tok.Kind.IsTypeKeyword() {
		return true
	}
	if tok.Kind == TkIdent {
		return tok.Lexeme == builtinVaList || p.isTypedefName(tok.Lexeme)
	}
	return false
}

var unaryOps = map[TokenKind]bool{
	TkAmp: true, TkStar: true, TkPlus: true, TkMinus: true, TkTilde: true, TkBang: true,
}

func (p *Parser) parseUnary() (Expr, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == TkIncr || tok.Kind == TkDecr:
		p.bump()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{base{tok.Span.Merge(operand.Span())}, tok.Kind, operand, nil}, nil
	case unaryOps[tok.Kind]:
		p.bump()
		operand, err := p.parseCastExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{base{tok.Span.Merge(operand.Span())}, tok.Kind, operand, nil}, nil
	case tok.Kind == TkSizeof:
		return p.parseSizeof()
	default:
		return p.parsePostfix()
	}
}

// parseSizeof parses `sizeof expr` and `sizeof(type-name)`. The
// latter requires disambiguation identical to parseCastExpr's:
// `sizeof(x)` where `x` is a typedef name is a type, not a variable.
func (p *Parser) parseSizeof() (Expr, error) {
	kw, _ := p.bump()
	if p.check(TkLParen) {
		next, err := p.peekAt(1)
		if err != nil {
			return nil, err
		}
		if p.startsTypeName(next) {
			p.bump()
			ty, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			rparen, err := p.expect(TkRParen, "')'")
			if err != nil {
				return nil, err
			}
			return &SizeofExpr{base{kw.Span.Merge(rparen.Span)}, nil, ty}, nil
		}
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &SizeofExpr{base{kw.Span.Merge(operand.Span())}, operand, nil}, nil
}

func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TkLBracket:
			p.bump()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			rb, err := p.expect(TkRBracket, "']'")
			if err != nil {
				return nil, err
			}
			expr = &IndexExpr{base{expr.Span().Merge(rb.Span)}, expr, idx, nil}
		case TkLParen:
			p.bump()
			var args []Expr
			if !p.check(TkRParen) {
				for {
					arg, err := p.parseAssignment()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if ok, _ := p.match(TkComma); !ok {
						break
					}
				}
			}
			rp, err := p.expect(TkRParen, "')'")
			if err != nil {
				return nil, err
			}
			expr = &CallExpr{base{expr.Span().Merge(rp.Span)}, expr, args, nil}
		case TkDot, TkArrow:
			p.bump()
			name, err := p.expect(TkIdent, "a member name")
			if err != nil {
				return nil, err
			}
			expr = &MemberExpr{base{expr.Span().Merge(name.Span)}, expr, name.Lexeme, tok.Kind == TkArrow, nil}
		case TkIncr, TkDecr:
			p.bump()
			expr = &PostfixExpr{base{expr.Span().Merge(tok.Span)}, tok.Kind, expr, nil}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TkIdent:
		p.bump()
		// An enumeration constant declared so far is folded to its value.
		if v, ok := p.enumEnv[tok.Lexeme]; ok {
			return &IntLitExpr{base{tok.Span}, v, false, false}, nil
		}
		return &IdentExpr{base{tok.Span}, tok.Lexeme}, nil
	case TkIntLit:
		p.bump()
		return &IntLitExpr{base{tok.Span}, parsedIntValue(tok), tok.IntUnsigned, tok.IntLong}, nil
	case TkFloatLit:
		p.bump()
		return &FloatLitExpr{base{tok.Span}, parsedFloatValue(tok), tok.FloatSingle, tok.FloatLongDbl}, nil
	case TkCharLit:
		p.bump()
		return &CharLitExpr{base{tok.Span}, tok.CharValue}, nil
	case TkStringLit:
		p.bump()
		return &StringLitExpr{base{tok.Span}, tok.DecodedString}, nil
	case TkLParen:
		p.bump()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TkRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, p.fail(tok.Span, "expected an expression, found %q", tok.Lexeme)
	}
}
