package cc1

// ParserOptions tunes the optional error-recovery mode (spec §4.4):
// when ContinueOnError is set, a non-fatal parse error is recorded
// and the parser synchronizes to the next `;` or `}` rather than
// aborting; MaxErrors caps how many recovered errors accumulate
// before the parser gives up and treats the rest as fatal.
type ParserOptions struct {
	ContinueOnError bool
	MaxErrors       int
}

// Parser is the recursive-descent/Pratt parser for one translation
// unit. It owns a TokenStream for lookahead and a scope stack tracking
// which identifiers are currently typedef names, the one piece of
// semantic state the grammar itself needs (spec §4.4, §9).
type Parser struct {
	ts     *TokenStream
	opts   ParserOptions
	scope  *parserScope
	errors []*ParseError
	file   string
	target *Target

	// enumEnv mirrors every enumerator value seen so far into a flat
	// name->value map, so a later enumerator's initializer (`C=B+2`)
	// and a bit-field width expression can reference previously
	// declared constants without re-walking the AST (spec §4.4: enum
	// values must be known immediately to type subsequent
	// enumerators). The analyzer keeps its own copy (sema.go's
	// enumEnv) for use after parsing.
	enumEnv map[string]int64
}

// parserScope is the parser's own lightweight scope stack: just the
// set of typedef names visible in each nested block, independent of
// (and earlier than) the analyzer's full SymbolTable.
type parserScope struct {
	parent   *parserScope
	typedefs map[string]bool
}

func newParserScope(parent *parserScope) *parserScope {
	return &parserScope{parent: parent, typedefs: map[string]bool{}}
}

func NewParser(lex *Lexer, file string, opts ParserOptions) *Parser {
	return &Parser{
		ts:      NewTokenStream(lex),
		opts:    opts,
		scope:   newParserScope(nil),
		file:    file,
		target:  NewTarget(ArchI386),
		enumEnv: map[string]int64{},
	}
}

// SetTarget overrides the target used to evaluate `sizeof` within
// integer-constant-expressions the parser folds eagerly (enumerator
// values, bit-field widths). Compile calls this with the selected
// architecture before parsing.
func (p *Parser) SetTarget(t *Target) { p.target = t }

func (p *Parser) pushScope() { p.scope = newParserScope(p.scope) }
func (p *Parser) popScope()  { p.scope = p.scope.parent }

func (p *Parser) addTypedef(name string) {
	p.scope.typedefs[name] = true
}

func (p *Parser) isTypedefName(name string) bool {
	for s := p.scope; s != nil; s = s.parent {
		if s.typedefs[name] {
			return true
		}
	}
	return false
}

// builtinVaList is the one builtin type name this front end recognizes
// outside the ordinary typedef table, so a translation unit can declare
// `va_list ap;` without a `<stdarg.h>` to define it (spec §4.6's
// variadic support). Modeled as `char *`, the i386 ABI's simplified
// variadic argument pointer.
const builtinVaList = "va_list"

func (p *Parser) peek() (Token, error)      { return p.ts.Peek(0) }
func (p *Parser) peekAt(n int) (Token, error) { return p.ts.Peek(n) }
func (p *Parser) bump() (Token, error)      { return p.ts.Bump() }

func (p *Parser) check(k TokenKind) bool {
	ok, err := p.ts.Check(k)
	return err == nil && ok
}

func (p *Parser) match(k TokenKind) (bool, error) {
	return p.ts.Match(k)
}

func (p *Parser) expect(k TokenKind, what string) (Token, error) {
	return p.ts.Expect(k, what)
}

// fail records a parse error. In recovery mode it returns nil (the
// caller should synchronize and continue); otherwise it returns the
// error so the caller aborts.
func (p *Parser) fail(span Span, format string, args ...any) error {
	perr := newParseError(span, format, args...)
	if !p.opts.ContinueOnError {
		return perr
	}
	p.errors = append(p.errors, perr)
	if p.opts.MaxErrors > 0 && len(p.errors) >= p.opts.MaxErrors {
		return perr
	}
	p.synchronize()
	return nil
}

// synchronize discards tokens up to and including the next `;` or
// `}`, the two recovery points named in spec §4.4.
func (p *Parser) synchronize() {
	for {
		tok, err := p.peek()
		if err != nil || tok.Kind == TkEOF {
			return
		}
		if tok.Kind == TkSemi {
			p.bump()
			return
		}
		if tok.Kind == TkRBrace {
			return
		}
		p.bump()
	}
}

// ParseTranslationUnit parses a full file: a sequence of top-level
// declarations and function definitions (spec §4.4, §3).
func (p *Parser) ParseTranslationUnit() (*TranslationUnit, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	start := tok.Span
	var decls []Decl
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkEOF {
			break
		}
		d, err := p.parseExternalDecl()
		if err != nil {
			return nil, err
		}
		if d != nil {
			decls = append(decls, d...)
		}
	}
	if p.opts.ContinueOnError && len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return &TranslationUnit{base: base{start}, Decls: decls}, nil
}

// ParseExpr parses a single expression, used by the `--parse-expr`
// CLI mode and by expression-level tests.
func (p *Parser) ParseExpr() (Expr, error) {
	return p.parseExpression()
}
