// Command cc1 is the thin CLI wiring layer over the core compiler
// packages (spec §1, §6): argument parsing, file I/O, and exit-code
// selection live here so the core packages stay free of process
// concerns, matching the split the teacher's cmd/langlang/main.go
// draws between its flags struct and the langlang API it calls.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	cc1 "github.com/Skyness60/cc1"
)

type args struct {
	output            *string
	arch32            *bool
	arch64            *bool
	debug             *bool
	debugSourceFile   *string
	defines           *[]string
	undefines         *[]string
	includeDirs       *[]string
	continueOnError   *bool
	maxErrors         *int
	preprocessOnly    *bool
	lexOnly           *bool
	parseExprOnly     *bool
	parseTUOnly       *bool
	semOnly           *bool
}

func readArgs() *args {
	a := &args{
		output:          flag.StringP("output", "o", "", "output destination (default stdout)"),
		arch32:          flag.Bool("m32", false, "target 32-bit i386 (default)"),
		arch64:          flag.Bool("m64", false, "target 64-bit x86_64"),
		debug:           flag.BoolP("debug", "g", false, "enable debug metadata emission"),
		debugSourceFile: flag.String("debug-source-file", "", "override the filename used in debug metadata"),
		defines:         flag.StringArrayP("define", "D", nil, "predefine a macro NAME[=VALUE]"),
		undefines:       flag.StringArrayP("undefine", "U", nil, "predelete a macro NAME"),
		includeDirs:     flag.StringArrayP("include-dir", "I", nil, "append an include search path"),
		continueOnError: flag.Bool("continue-on-error", false, "keep parsing past a recoverable error"),
		maxErrors:       flag.Int("max-errors", 0, "maximum number of recovered parse errors (0 = unlimited)"),
		preprocessOnly:  flag.Bool("preprocess-only", false, "stop after preprocessing"),
		lexOnly:         flag.Bool("lex-only", false, "stop after lexing"),
		parseExprOnly:   flag.Bool("parse-expr", false, "parse a single expression and stop"),
		parseTUOnly:     flag.Bool("parse-tu", false, "stop after parsing the translation unit"),
		semOnly:         flag.Bool("sem", false, "stop after semantic analysis"),
	}
	flag.Parse()
	return a
}

// osFileReader implements cc1.FileReader over the real filesystem;
// the core packages never import "os" directly, per spec §1.
type osFileReader struct{}

func (osFileReader) ReadFile(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func main() {
	a := readArgs()

	if flag.NArg() != 1 {
		log.Fatal("usage: cc1 [flags] <input-file|->")
	}
	inputPath := flag.Arg(0)

	var source []byte
	var err error
	if inputPath == "-" {
		source, err = io.ReadAll(os.Stdin)
	} else {
		source, err = os.ReadFile(inputPath)
	}
	if err != nil {
		log.Fatalf("cc1: %s", err)
	}

	opts := cc1.DefaultOptions()
	if *a.arch64 {
		opts.Arch = cc1.ArchX86_64
	}
	if *a.arch32 {
		opts.Arch = cc1.ArchI386
	}
	opts.Debug = *a.debug
	opts.DebugSourceFile = *a.debugSourceFile
	if opts.DebugSourceFile == "" {
		opts.DebugSourceFile = inputPath
	}
	opts.IncludeDirs = *a.includeDirs
	opts.ContinueOnError = *a.continueOnError
	opts.MaxErrors = *a.maxErrors
	for _, d := range *a.defines {
		name, value, _ := strings.Cut(d, "=")
		opts.Defines = append(opts.Defines, cc1.Define{Name: name, Value: value})
	}
	opts.Undefines = *a.undefines

	switch {
	case *a.preprocessOnly:
		opts.Mode = cc1.ModePreprocessOnly
	case *a.lexOnly:
		opts.Mode = cc1.ModeLexOnly
	case *a.parseExprOnly:
		opts.Mode = cc1.ModeParseExpr
	case *a.parseTUOnly:
		opts.Mode = cc1.ModeParseTU
	case *a.semOnly:
		opts.Mode = cc1.ModeSema
	default:
		opts.Mode = cc1.ModeCompile
	}

	displayName := inputPath
	if inputPath == "-" {
		displayName = "<stdin>"
	}

	result, err := cc1.Compile(source, displayName, opts, osFileReader{})
	if err != nil {
		reportError(displayName, err)
		os.Exit(1)
	}

	switch opts.Mode {
	case cc1.ModeSema:
		fmt.Println("OK")
		return
	case cc1.ModePreprocessOnly:
		writeOutput(*a.output, result.PreprocessedSource)
		return
	case cc1.ModeLexOnly, cc1.ModeParseExpr, cc1.ModeParseTU:
		return
	}

	writeOutput(*a.output, result.IR)
}

// reportError prints every collected diagnostic (spec §7's batched
// semantic errors) or the single fatal error from an earlier stage,
// each in the `<file>:<line>:<column>: error: <message>` format.
func reportError(file string, err error) {
	if diags, ok := err.(*cc1.Diagnostics); ok {
		for _, d := range diags.Errors {
			fmt.Fprintf(os.Stderr, "%s\n", prefixFile(file, d.Error()))
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n", prefixFile(file, err.Error()))
}

// prefixFile prepends the source file name to an error message that
// already carries "<line>:<col>: error: ..." from its own Error()
// method, unless the message has no position (file-level failures
// like #error or include-not-found already carry their own file).
func prefixFile(file, msg string) string {
	if strings.Contains(msg, ":") && !strings.HasPrefix(msg, file+":") {
		if looksLikePosition(msg) {
			return file + ":" + msg
		}
	}
	return msg
}

func looksLikePosition(msg string) bool {
	colon := strings.IndexByte(msg, ':')
	if colon <= 0 {
		return false
	}
	for _, c := range msg[:colon] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeOutput(path, content string) {
	if path == "" || path == "-" {
		fmt.Print(content)
		return
	}
	dir := filepath.Dir(path)
	if dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		log.Fatalf("cc1: %s", err)
	}
}
