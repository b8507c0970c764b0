package cc1

// Define is one `-D` predefinition: NAME optionally paired with a
// replacement VALUE (defaults to "1" when omitted, spec §6).
type Define struct {
	Name  string
	Value string
}

// Mode is one of the CLI's mutually exclusive pipeline-depth
// selectors (spec §6): ModeCompile runs the full pipeline to IR, the
// rest stop early for the `--preprocess-only`/`--lex-only`/
// `--parse-expr`/`--parse-tu`/`--sem` flags.
type Mode int

const (
	ModeCompile Mode = iota
	ModePreprocessOnly
	ModeLexOnly
	ModeParseExpr
	ModeParseTU
	ModeSema
)

// Options is the full set of compiler-invocation parameters consumed
// from the CLI shell collaborator (spec §6). It is a flat struct
// passed by value into Compile, mirroring the shape of the teacher's
// CompilerConfig (grammar_compiler.go: a small options struct threaded
// through the pipeline) rather than the teacher's separate
// string-keyed Config map (config.go's cfgVal machinery) — that
// object modeled grammar feature toggles (add_builtins, add_charsets,
// handle_spaces, ...) with no analogue in a compiler invocation, so
// reusing it here would be a hollow transplant.
type Options struct {
	Arch Arch

	// Debug enables DWARF-style debug metadata emission (`-g`).
	Debug bool

	// DebugSourceFile overrides the filename recorded in debug
	// metadata (`--debug-source-file`); defaults to the input path.
	DebugSourceFile string

	Defines     []Define
	Undefines   []string
	IncludeDirs []string

	ContinueOnError bool
	MaxErrors       int

	Mode Mode
}

// DefaultOptions returns an Options value for a plain 32-bit
// compilation with no defines, no include directories, and recovery
// mode off, matching spec §6's `-m32` default.
func DefaultOptions() Options {
	return Options{Arch: ArchI386, Mode: ModeCompile}
}

// BuildDefines assembles the macro environment Preprocess starts
// from: the architecture's predefined macros (NewDefines), then every
// `-D` in order, then every `-U` deletion, matching the CLI's
// left-to-right flag processing (spec §6).
func (o Options) BuildDefines() Defines {
	defines := NewDefines(o.Arch)
	for _, d := range o.Defines {
		value := d.Value
		if value == "" {
			value = "1"
		}
		defines[d.Name] = &macroDef{replacement: value}
	}
	for _, u := range o.Undefines {
		delete(defines, u)
	}
	return defines
}

func (o Options) parserOptions() ParserOptions {
	return ParserOptions{ContinueOnError: o.ContinueOnError, MaxErrors: o.MaxErrors}
}
