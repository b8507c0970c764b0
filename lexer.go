package cc1

import (
	"fmt"
	"strings"
)

// LexError is the error kind taxonomy from spec §4.3/§7: unterminated
// string/char, invalid escape, malformed numeric literal, invalid
// digit in an octal constant, unknown character, and a defensive
// re-check for `//` (already rejected by the preprocessor, but the
// lexer is specified to reject it again if it ever sees one).
type LexError struct {
	Kind    string
	Message string
	Span    Span
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%d:%d: error: %s", e.Span.Line, e.Span.Column, e.Message)
}

func newLexError(kind string, span Span, format string, args ...any) *LexError {
	return &LexError{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

// Lexer converts preprocessed text into tokens lazily, buffered by the
// parser's lookahead stream (spec §4.3). It holds a read-only borrow
// of the input buffer, generalizing the teacher's cursor/rune-advance
// scanning style (base_parser.go) from a PEG-input scanner to a
// fixed C89 token grammar.
type Lexer struct {
	input []byte
	li    *LineIndex
	pos   int // byte offset
}

// NewLexer creates a Lexer over already-preprocessed source text.
func NewLexer(input []byte) *Lexer {
	return &Lexer{input: input, li: NewLineIndex(input)}
}

func (l *Lexer) span(lo int) Span {
	return l.li.Span(lo, l.pos)
}

func (l *Lexer) eof() bool { return l.pos >= len(l.input) }

func (l *Lexer) peekByte() byte {
	if l.eof() {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.input[l.pos]
	l.pos++
	return b
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentCont(b byte) bool { return isIdentStart(b) || isDigit(b) }
func isDigit(b byte) bool     { return b >= '0' && b <= '9' }
func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }
func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// skipSpace consumes whitespace and, defensively, any remaining
// comments (the preprocessor should have already stripped them).
func (l *Lexer) skipSpace() *LexError {
	for !l.eof() {
		b := l.peekByte()
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f':
			l.pos++
		case b == '/' && l.peekByteAt(1) == '/':
			lo := l.pos
			return newLexError("LineCommentInC89", l.span(lo), "'//' comments are not allowed in C89")
		case b == '/' && l.peekByteAt(1) == '*':
			lo := l.pos
			l.pos += 2
			closed := false
			for !l.eof() {
				if l.peekByte() == '*' && l.peekByteAt(1) == '/' {
					l.pos += 2
					closed = true
					break
				}
				l.pos++
			}
			if !closed {
				return newLexError("UnterminatedComment", l.span(lo), "unterminated comment")
			}
		default:
			return nil
		}
	}
	return nil
}

// Next scans and returns the next token, or a *LexError.
func (l *Lexer) Next() (Token, *LexError) {
	if err := l.skipSpace(); err != nil {
		return Token{}, err
	}
	lo := l.pos
	if l.eof() {
		return Token{Kind: TkEOF, Span: l.span(lo)}, nil
	}

	b := l.peekByte()
	switch {
	case isIdentStart(b):
		return l.lexIdent(lo), nil
	case isDigit(b):
		return l.lexNumber(lo)
	case b == '.' && isDigit(l.peekByteAt(1)):
		return l.lexNumber(lo)
	case b == '\'':
		return l.lexChar(lo)
	case b == '"':
		return l.lexString(lo)
	default:
		return l.lexPunct(lo)
	}
}

func (l *Lexer) lexIdent(lo int) Token {
	for !l.eof() && isIdentCont(l.peekByte()) {
		l.pos++
	}
	lexeme := string(l.input[lo:l.pos])
	kind := TkIdent
	if kw, ok := keywords[lexeme]; ok {
		kind = kw
	}
	return Token{Kind: kind, Lexeme: lexeme, Span: l.span(lo)}
}

// lexNumber implements §4.3's hex/octal/decimal-integer/float
// grammar, including integer and float suffix validation.
func (l *Lexer) lexNumber(lo int) (Token, *LexError) {
	isFloat := false

	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		l.pos += 2
		start := l.pos
		for !l.eof() && isHexDigit(l.peekByte()) {
			l.pos++
		}
		if l.pos == start {
			return Token{}, newLexError("MalformedNumber", l.span(lo), "hexadecimal constant requires at least one digit")
		}
		return l.finishIntSuffix(lo)
	}

	if l.peekByte() == '0' {
		// Octal or a float starting with 0., 0e, or just "0".
		start := l.pos
		for !l.eof() && isDigit(l.peekByte()) {
			l.pos++
		}
		if l.peekByte() == '.' || l.peekByte() == 'e' || l.peekByte() == 'E' {
			isFloat = true
		} else {
			for _, c := range l.input[start:l.pos] {
				if c == '8' || c == '9' {
					return Token{}, newLexError("InvalidDigitInOctal", l.span(lo), "invalid digit %q in octal constant", c)
				}
			}
			return l.finishIntSuffix(lo)
		}
	} else {
		for !l.eof() && isDigit(l.peekByte()) {
			l.pos++
		}
		if l.peekByte() == '.' || l.peekByte() == 'e' || l.peekByte() == 'E' {
			isFloat = true
		} else {
			return l.finishIntSuffix(lo)
		}
	}

	// Float: optional fractional part, optional exponent.
	if l.peekByte() == '.' {
		l.pos++
		for !l.eof() && isDigit(l.peekByte()) {
			l.pos++
		}
	}
	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		save := l.pos
		l.pos++
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.pos++
		}
		start := l.pos
		for !l.eof() && isDigit(l.peekByte()) {
			l.pos++
		}
		if l.pos == start {
			l.pos = save
			return Token{}, newLexError("MalformedNumber", l.span(lo), "exponent has no digits")
		}
	}
	_ = isFloat
	return l.finishFloatSuffix(lo)
}

func (l *Lexer) finishIntSuffix(lo int) (Token, *LexError) {
	var seenU, seenL int
	for !l.eof() {
		b := l.peekByte()
		if b == 'u' || b == 'U' {
			seenU++
			l.pos++
		} else if b == 'l' || b == 'L' {
			seenL++
			l.pos++
		} else {
			break
		}
	}
	if seenU > 1 || seenL > 1 {
		return Token{}, newLexError("MalformedNumber", l.span(lo), "'ll' integer suffix is not valid in C89")
	}
	lexeme := string(l.input[lo:l.pos])
	return Token{Kind: TkIntLit, Lexeme: lexeme, Span: l.span(lo), IntUnsigned: seenU == 1, IntLong: seenL == 1}, nil
}

func (l *Lexer) finishFloatSuffix(lo int) (Token, *LexError) {
	single, longDbl := false, false
	if b := l.peekByte(); b == 'f' || b == 'F' {
		single = true
		l.pos++
	} else if b == 'l' || b == 'L' {
		longDbl = true
		l.pos++
	}
	lexeme := string(l.input[lo:l.pos])
	return Token{Kind: TkFloatLit, Lexeme: lexeme, Span: l.span(lo), FloatSingle: single, FloatLongDbl: longDbl}, nil
}

// decodeEscape decodes one backslash escape starting at the current
// cursor (which must be positioned on the backslash). Returns the
// decoded byte value. Octal escapes beyond 0xFF truncate to the low
// 8 bits, per DESIGN.md's Open Question decision following
// original_source's chlit.rs.
func (l *Lexer) decodeEscape(lo int) (byte, *LexError) {
	l.pos++ // consume backslash
	if l.eof() {
		return 0, newLexError("InvalidEscape", l.span(lo), "unterminated escape sequence")
	}
	c := l.advance()
	switch c {
	case '\\':
		return '\\', nil
	case '\'':
		return '\'', nil
	case '"':
		return '"', nil
	case '?':
		return '?', nil
	case 'a':
		return '\a', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'v':
		return '\v', nil
	case 'x':
		start := l.pos
		var v int
		for !l.eof() && isHexDigit(l.peekByte()) {
			v = v*16 + hexVal(l.advance())
		}
		if l.pos == start {
			return 0, newLexError("InvalidEscape", l.span(lo), "\\x used with no following hex digits")
		}
		return byte(v & 0xFF), nil
	default:
		if isOctalDigit(c) {
			v := int(c - '0')
			for i := 0; i < 2 && !l.eof() && isOctalDigit(l.peekByte()); i++ {
				v = v*8 + int(l.advance()-'0')
			}
			return byte(v & 0xFF), nil
		}
		return 0, newLexError("InvalidEscape", l.span(lo), "unknown escape sequence '\\%c'", c)
	}
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	default:
		return int(b-'A') + 10
	}
}

func (l *Lexer) lexChar(lo int) (Token, *LexError) {
	l.pos++ // opening quote
	if l.peekByte() == '\'' {
		return Token{}, newLexError("UnterminatedChar", l.span(lo), "empty character constant")
	}
	var v byte
	if l.peekByte() == '\\' {
		var lerr *LexError
		v, lerr = l.decodeEscape(lo)
		if lerr != nil {
			return Token{}, lerr
		}
	} else {
		if l.eof() || l.peekByte() == '\n' {
			return Token{}, newLexError("UnterminatedChar", l.span(lo), "missing terminating ' character")
		}
		v = l.advance()
	}
	if l.eof() || l.peekByte() != '\'' {
		return Token{}, newLexError("UnterminatedChar", l.span(lo), "multi-character constants are not supported")
	}
	l.pos++
	lexeme := string(l.input[lo:l.pos])
	return Token{Kind: TkCharLit, Lexeme: lexeme, Span: l.span(lo), CharValue: rune(v)}, nil
}

func (l *Lexer) lexString(lo int) (Token, *LexError) {
	var decoded strings.Builder
	if err := l.lexOneStringPiece(lo, &decoded); err != nil {
		return Token{}, err
	}
	for {
		save := l.pos
		if err := l.skipSpace(); err != nil {
			return Token{}, err
		}
		if l.eof() || l.peekByte() != '"' {
			l.pos = save
			break
		}
		if err := l.lexOneStringPiece(l.pos, &decoded); err != nil {
			return Token{}, err
		}
	}
	lexeme := string(l.input[lo:l.pos])
	return Token{Kind: TkStringLit, Lexeme: lexeme, Span: l.span(lo), DecodedString: decoded.String()}, nil
}

func (l *Lexer) lexOneStringPiece(pieceLo int, out *strings.Builder) *LexError {
	l.pos++ // opening quote
	for {
		if l.eof() || l.peekByte() == '\n' {
			return newLexError("UnterminatedString", l.span(pieceLo), "missing terminating \" character")
		}
		if l.peekByte() == '"' {
			l.pos++
			return nil
		}
		if l.peekByte() == '\\' {
			v, err := l.decodeEscape(pieceLo)
			if err != nil {
				return err
			}
			out.WriteByte(v)
			continue
		}
		out.WriteByte(l.advance())
	}
}

// punctuators, longest match first within each starting byte.
func (l *Lexer) lexPunct(lo int) (Token, *LexError) {
	three := l.peek3()
	if three == "..." {
		l.pos += 3
		return Token{Kind: TkEllipsis, Lexeme: three, Span: l.span(lo)}, nil
	}
	if kind, ok := threeCharAssignPuncts[three]; ok {
		l.pos += 3
		return Token{Kind: kind, Lexeme: three, Span: l.span(lo)}, nil
	}
	two := l.peek2()
	if kind, ok := twoCharPuncts[two]; ok {
		l.pos += 2
		return Token{Kind: kind, Lexeme: two, Span: l.span(lo)}, nil
	}
	b := l.advance()
	if kind, ok := oneCharPuncts[b]; ok {
		return Token{Kind: kind, Lexeme: string(b), Span: l.span(lo)}, nil
	}
	return Token{}, newLexError("UnknownCharacter", l.span(lo), "unknown character %q", b)
}

func (l *Lexer) peek2() string {
	if l.pos+2 > len(l.input) {
		return ""
	}
	return string(l.input[l.pos : l.pos+2])
}

func (l *Lexer) peek3() string {
	if l.pos+3 > len(l.input) {
		return ""
	}
	return string(l.input[l.pos : l.pos+3])
}

var twoCharPuncts = map[string]TokenKind{
	"->": TkArrow, "++": TkIncr, "--": TkDecr,
	"<<": TkShl, ">>": TkShr, "<=": TkLe, ">=": TkGe,
	"==": TkEq, "!=": TkNe, "&&": TkAndAnd, "||": TkOrOr,
	"*=": TkMulAssign, "/=": TkDivAssign, "%=": TkModAssign,
	"+=": TkAddAssign, "-=": TkSubAssign,
	"&=": TkAndAssign, "^=": TkXorAssign, "|=": TkOrAssign,
}

var oneCharPuncts = map[byte]TokenKind{
	'[': TkLBracket, ']': TkRBracket, '(': TkLParen, ')': TkRParen,
	'{': TkLBrace, '}': TkRBrace, '.': TkDot, '&': TkAmp, '*': TkStar,
	'+': TkPlus, '-': TkMinus, '~': TkTilde, '!': TkBang, '/': TkSlash,
	'%': TkPercent, '<': TkLt, '>': TkGt, '^': TkCaret, '|': TkPipe,
	'?': TkQuestion, ':': TkColon, ';': TkSemi, '=': TkAssign, ',': TkComma,
}

var threeCharAssignPuncts = map[string]TokenKind{
	"<<=": TkShlAssign,
	">>=": TkShrAssign,
}
