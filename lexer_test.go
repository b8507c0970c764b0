package cc1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAllTokens(t *testing.T, src string) []Token {
	t.Helper()
	lex := NewLexer([]byte(src))
	var toks []Token
	for {
		tok, err := lex.Next()
		require.Nil(t, err, "unexpected lex error: %v", err)
		toks = append(toks, tok)
		if tok.Kind == TkEOF {
			return toks
		}
	}
}

func TestLexer_Keywords(t *testing.T) {
	toks := lexAllTokens(t, "int return struct while")
	kinds := []TokenKind{TkInt, TkReturn, TkStruct, TkWhile, TkEOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind)
	}
}

func TestLexer_IdentifierVsKeyword(t *testing.T) {
	toks := lexAllTokens(t, "intX _foo foo123")
	require.Len(t, toks, 4)
	assert.Equal(t, TkIdent, toks[0].Kind)
	assert.Equal(t, "intX", toks[0].Lexeme)
	assert.Equal(t, TkIdent, toks[1].Kind)
	assert.Equal(t, TkIdent, toks[2].Kind)
}

func TestLexer_IntegerLiterals(t *testing.T) {
	tests := []struct {
		src      string
		unsigned bool
		long     bool
	}{
		{"0", false, false},
		{"42", false, false},
		{"0x1F", false, false},
		{"010", false, false},
		{"42u", true, false},
		{"42L", false, true},
		{"42UL", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks := lexAllTokens(t, tt.src)
			require.Len(t, toks, 2)
			assert.Equal(t, TkIntLit, toks[0].Kind)
			assert.Equal(t, tt.unsigned, toks[0].IntUnsigned)
			assert.Equal(t, tt.long, toks[0].IntLong)
		})
	}
}

func TestLexer_OctalRejectsBadDigits(t *testing.T) {
	lex := NewLexer([]byte("089"))
	_, err := lex.Next()
	require.NotNil(t, err)
	assert.Equal(t, "InvalidDigitInOctal", err.Kind)
}

func TestLexer_LLSuffixRejected(t *testing.T) {
	lex := NewLexer([]byte("42ll"))
	_, err := lex.Next()
	require.NotNil(t, err)
	assert.Equal(t, "MalformedNumber", err.Kind)
}

func TestLexer_FloatLiterals(t *testing.T) {
	tests := []string{"1.5", "1.", ".5", "1e10", "1.5e-10", "1e+5f", "2.0L"}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			toks := lexAllTokens(t, src)
			require.Len(t, toks, 2)
			assert.Equal(t, TkFloatLit, toks[0].Kind)
		})
	}
}

func TestLexer_FloatMissingExponentDigits(t *testing.T) {
	lex := NewLexer([]byte("1e"))
	_, err := lex.Next()
	require.NotNil(t, err)
	assert.Equal(t, "MalformedNumber", err.Kind)
}

func TestLexer_CharLiteral(t *testing.T) {
	tests := []struct {
		src  string
		want rune
	}{
		{`'a'`, 'a'},
		{`'\n'`, '\n'},
		{`'\t'`, '\t'},
		{`'\0'`, 0},
		{`'\\'`, '\\'},
		{`'\x41'`, 'A'},
		{`'\101'`, 'A'},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks := lexAllTokens(t, tt.src)
			require.Len(t, toks, 2)
			assert.Equal(t, TkCharLit, toks[0].Kind)
			assert.Equal(t, tt.want, toks[0].CharValue)
		})
	}
}

func TestLexer_CharLiteralErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
	}{
		{"empty", "''", "UnterminatedChar"},
		{"unterminated", "'a", "UnterminatedChar"},
		{"multi-char", "'ab'", "UnterminatedChar"},
		{"embedded newline", "'a\n'", "UnterminatedChar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex := NewLexer([]byte(tt.src))
			_, err := lex.Next()
			require.NotNil(t, err)
			assert.Equal(t, tt.kind, err.Kind)
		})
	}
}

func TestLexer_StringLiteral(t *testing.T) {
	lex := NewLexer([]byte(`"hello\nworld"`))
	tok, err := lex.Next()
	require.Nil(t, err)
	assert.Equal(t, TkStringLit, tok.Kind)
	assert.Equal(t, "hello\nworld", tok.DecodedString)
}

func TestLexer_AdjacentStringConcatenation(t *testing.T) {
	lex := NewLexer([]byte(`"abc" "def"`))
	tok, err := lex.Next()
	require.Nil(t, err)
	assert.Equal(t, TkStringLit, tok.Kind)
	assert.Equal(t, "abcdef", tok.DecodedString)
}

func TestLexer_UnterminatedString(t *testing.T) {
	lex := NewLexer([]byte(`"abc`))
	_, err := lex.Next()
	require.NotNil(t, err)
	assert.Equal(t, "UnterminatedString", err.Kind)
}

func TestLexer_Punctuators(t *testing.T) {
	src := "-> ++ -- << >> <= >= == != && || ... <<= >>= += -="
	toks := lexAllTokens(t, src)
	kinds := []TokenKind{
		TkArrow, TkIncr, TkDecr, TkShl, TkShr, TkLe, TkGe, TkEq, TkNe,
		TkAndAnd, TkOrOr, TkEllipsis, TkShlAssign, TkShrAssign,
		TkAddAssign, TkSubAssign, TkEOF,
	}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind, "token %d (%q)", i, toks[i].Lexeme)
	}
}

func TestLexer_LongestMatchDisambiguatesDotFromEllipsis(t *testing.T) {
	toks := lexAllTokens(t, ". ..")
	require.Len(t, toks, 4)
	assert.Equal(t, TkDot, toks[0].Kind)
	assert.Equal(t, TkDot, toks[1].Kind)
	assert.Equal(t, TkDot, toks[2].Kind)
}

func TestLexer_LineCommentRejected(t *testing.T) {
	lex := NewLexer([]byte("int x; // comment\n"))
	_, _ = lex.Next() // int
	_, _ = lex.Next() // x
	_, _ = lex.Next() // ;
	_, err := lex.Next()
	require.NotNil(t, err)
	assert.Equal(t, "LineCommentInC89", err.Kind)
}

func TestLexer_UnknownCharacter(t *testing.T) {
	lex := NewLexer([]byte("@"))
	_, err := lex.Next()
	require.NotNil(t, err)
	assert.Equal(t, "UnknownCharacter", err.Kind)
}
