package cc1

import (
	"strconv"
	"strings"
)

// parsedIntValue re-parses an integer literal token's raw lexeme into
// its numeric value. The lexer already validated the lexeme's shape
// (lexNumber in lexer.go); this just strips the suffix letters
// strconv doesn't accept and lets ParseInt/ParseUint pick the base up
// from a 0x/0 prefix.
func parsedIntValue(tok Token) int64 {
	text := strings.TrimRight(tok.Lexeme, "uUlL")
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseUint(text, 0, 64); err == nil {
		return int64(v)
	}
	return 0
}

// parsedFloatValue re-parses a floating literal token's raw lexeme,
// stripping the f/F/l/L suffix the lexer recorded separately as
// FloatSingle/FloatLongDbl.
func parsedFloatValue(tok Token) float64 {
	text := strings.TrimRight(tok.Lexeme, "fFlL")
	v, _ := strconv.ParseFloat(text, 64)
	return v
}
