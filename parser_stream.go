package cc1

// TokenStream wraps a Lexer with arbitrary lookahead, so the parser
// can peek ahead (for typedef-name disambiguation, K&R vs prototyped
// declarators, cast-vs-parenthesized-expression) without re-lexing.
// Grounded on original_source/src/front/parser/stream.rs: a small
// pending-token buffer filled lazily by peek, drained by bump.
type TokenStream struct {
	lex  *Lexer
	buf  []Token
	done bool
}

func NewTokenStream(lex *Lexer) *TokenStream {
	return &TokenStream{lex: lex}
}

// Peek returns the n-th not-yet-consumed token (0 is the next token
// to be bumped) without consuming it, lexing further input as needed.
func (ts *TokenStream) Peek(n int) (Token, error) {
	for len(ts.buf) <= n && !ts.done {
		tok, err := ts.lex.Next()
		if err != nil {
			return Token{}, err
		}
		ts.buf = append(ts.buf, tok)
		if tok.Kind == TkEOF {
			ts.done = true
		}
	}
	if n < len(ts.buf) {
		return ts.buf[n], nil
	}
	return ts.buf[len(ts.buf)-1], nil // synthetic EOF already buffered
}

// Bump consumes and returns the next token.
func (ts *TokenStream) Bump() (Token, error) {
	if _, err := ts.Peek(0); err != nil {
		return Token{}, err
	}
	tok := ts.buf[0]
	ts.buf = ts.buf[1:]
	return tok, nil
}

// Check reports whether the next token has kind k, without consuming.
func (ts *TokenStream) Check(k TokenKind) (bool, error) {
	tok, err := ts.Peek(0)
	if err != nil {
		return false, err
	}
	return tok.Kind == k, nil
}

// Match consumes and returns true if the next token has kind k;
// otherwise leaves the stream untouched and returns false.
func (ts *TokenStream) Match(k TokenKind) (bool, error) {
	ok, err := ts.Check(k)
	if err != nil || !ok {
		return false, err
	}
	_, err = ts.Bump()
	return true, err
}

// Expect consumes the next token, requiring it to have kind k.
func (ts *TokenStream) Expect(k TokenKind, what string) (Token, error) {
	tok, err := ts.Peek(0)
	if err != nil {
		return Token{}, err
	}
	if tok.Kind != k {
		return Token{}, newParseError(tok.Span, "expected %s, found %q", what, tok.Lexeme)
	}
	return ts.Bump()
}
