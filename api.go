package cc1

import "github.com/pkg/errors"

// Result is everything a full compilation run produces that a caller
// might want, beyond the emitted IR itself: the parsed translation
// unit (useful to `--parse-tu`/`--sem` callers that stop before
// lowering) and any diagnostics the semantic analyzer collected.
type Result struct {
	PreprocessedSource string
	Tokens             []Token
	TranslationUnit    *TranslationUnit
	Diagnostics        *Diagnostics
	IR                 string
}

// Compile runs the full pipeline of spec §2 over one source file:
// preprocess, lex, parse, analyze, and (unless Options.Mode stops it
// early) lower to LLVM IR text. Mirrors the teacher's single
// `Compile`-style entrypoint (grammar_compiler.go's `Compile`
// function) orchestrating every pipeline stage from one call.
func Compile(source []byte, file string, opts Options, reader FileReader) (*Result, error) {
	res := &Result{}

	defines := opts.BuildDefines()
	preprocessed, err := Preprocess(source, file, defines, opts.IncludeDirs, reader)
	if err != nil {
		return res, err
	}
	res.PreprocessedSource = preprocessed
	if opts.Mode == ModePreprocessOnly {
		return res, nil
	}

	target := NewTarget(opts.Arch)

	if opts.Mode == ModeLexOnly {
		toks, err := lexAll(preprocessed)
		res.Tokens = toks
		return res, err
	}

	lex := NewLexer([]byte(preprocessed))
	parser := NewParser(lex, file, opts.parserOptions())
	parser.SetTarget(target)

	if opts.Mode == ModeParseExpr {
		if _, err := parser.ParseExpr(); err != nil {
			return res, err
		}
		return res, nil
	}

	tu, err := parser.ParseTranslationUnit()
	if err != nil {
		return res, err
	}
	res.TranslationUnit = tu
	if opts.Mode == ModeParseTU {
		return res, nil
	}

	analyzer := NewAnalyzer(target)
	diags := analyzer.Analyze(tu)
	res.Diagnostics = diags
	if diags.HasErrors() {
		return res, diags
	}
	if opts.Mode == ModeSema {
		return res, nil
	}

	lowerer := NewLowerer(target, opts, file)
	module, err := lowerer.Lower(tu)
	if err != nil {
		return res, errors.Wrap(err, "lowering to LLVM IR")
	}
	res.IR = module.String()
	return res, nil
}

// lexAll drains a Lexer into a token slice for `--lex-only`, stopping
// at the first lexical error or at end-of-input.
func lexAll(source string) ([]Token, error) {
	lex := NewLexer([]byte(source))
	var toks []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Kind == TkEOF {
			return toks, nil
		}
	}
}
