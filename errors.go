package cc1

import "fmt"

// ParseError is the syntax-error taxonomy (spec §5, §7): an unexpected
// token where the grammar required something else. Mirrors
// PreprocessError/LexError's shape, following the teacher's one
// struct-per-stage error style rather than a single generic error
// carrying a stage enum.
type ParseError struct {
	Message string
	Span    Span
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: error: %s", e.Span.Line, e.Span.Column, e.Message)
}

func newParseError(span Span, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Span: span}
}

// SemaError is the semantic-analysis error taxonomy (spec §6, §7):
// type mismatches, undeclared identifiers, non-constant expressions
// where an ICE is required, invalid bit-field widths, and the rest of
// §6's diagnostics. Unlike ParseError/LexError, a SemaError is not
// always anchored to a token span at construction time — some of its
// callers (bitfield.go, symbol.go) have no position information where
// the error is raised — so Span is optional and Error() falls back to
// a position-free message.
type SemaError struct {
	Message string
	Span    Span
	HasSpan bool
}

func (e *SemaError) Error() string {
	if e.HasSpan {
		return fmt.Sprintf("%d:%d: error: %s", e.Span.Line, e.Span.Column, e.Message)
	}
	return fmt.Sprintf("error: %s", e.Message)
}

func newSemaError(format string, args ...any) *SemaError {
	return &SemaError{Message: fmt.Sprintf(format, args...)}
}

func newSemaErrorAt(span Span, format string, args ...any) *SemaError {
	return &SemaError{Message: fmt.Sprintf(format, args...), Span: span, HasSpan: true}
}

// Diagnostics accumulates every error produced during semantic
// analysis of one translation unit. Unlike the earlier pipeline
// stages (preprocessor, lexer, parser), which stop at the first
// error, the analyzer is specified to keep checking after a type
// error so that a single `cc1` invocation reports as many mistakes
// as it can in one pass (spec §6's error-recovery mode). The analyzer
// always collects this way; it does not consult the parser's recovery
// flag.
type Diagnostics struct {
	Errors []*SemaError
}

func (d *Diagnostics) Add(err *SemaError) {
	d.Errors = append(d.Errors, err)
}

func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

func (d *Diagnostics) Error() string {
	if len(d.Errors) == 0 {
		return ""
	}
	msg := d.Errors[0].Error()
	if len(d.Errors) > 1 {
		msg = fmt.Sprintf("%s (and %d more error(s))", msg, len(d.Errors)-1)
	}
	return msg
}
