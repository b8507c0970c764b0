package cc1

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// PreprocessError is the error taxonomy for phases 1-4 (spec §4.2,
// §7): unterminated comment, disallowed `//` line comment,
// include-file-not-found, and `#error`.
type PreprocessError struct {
	Kind    string
	Message string
	File    string
	Line    int
}

func (e *PreprocessError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: error: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%d: error: %s", e.Line, e.Message)
}

func newPPError(kind, file string, line int, format string, args ...any) *PreprocessError {
	return &PreprocessError{Kind: kind, Message: fmt.Sprintf(format, args...), File: file, Line: line}
}

var trigraphs = map[byte]byte{
	'=': '#', '/': '\\', '\'': '^', '(': '[', ')': ']', '!': '|', '<': '{', '>': '}', '-': '~',
}

// replaceTrigraphs implements phase 1 (spec §4.2): any `??X` for
// X in the trigraph table is replaced by its mapped character.
func replaceTrigraphs(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if i+2 < len(s) && s[i] == '?' && s[i+1] == '?' {
			if repl, ok := trigraphs[s[i+2]]; ok {
				b.WriteByte(repl)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// spliceLines implements phase 2: a backslash immediately followed by
// a newline is removed, joining the two physical lines. Iterated
// until no splice remains (a trailing \\\n\\\n pair collapses fully
// in one left-to-right pass since the scan position does not retreat).
func spliceLines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		if s[i] == '\\' && i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// stripComments implements phase 3: `/* ... */` becomes empty (a
// space, functionally), an unterminated block comment is fatal, and a
// `//` outside a string/char literal is fatal (strict C89). String
// and character literals are scanned over (but not interpreted) so
// that `//` or `/*` inside them is left untouched.
func stripComments(s, file string) (string, *PreprocessError) {
	var b strings.Builder
	b.Grow(len(s))
	line := 1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\n':
			line++
			b.WriteByte(c)
		case c == '"' || c == '\'':
			quote := c
			b.WriteByte(c)
			i++
			for i < len(s) && s[i] != quote {
				if s[i] == '\n' {
					break
				}
				if s[i] == '\\' && i+1 < len(s) {
					b.WriteByte(s[i])
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				b.WriteByte(s[i])
				i++
			}
			if i < len(s) {
				b.WriteByte(s[i])
			} else {
				i--
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			return "", newPPError("DisallowedLineComment", file, line, "'//' comments are not allowed in C89")
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			startLine := line
			i += 2
			closed := false
			for i < len(s) {
				if s[i] == '\n' {
					line++
				}
				if s[i] == '*' && i+1 < len(s) && s[i+1] == '/' {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return "", newPPError("UnterminatedComment", file, startLine, "unterminated comment")
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Defines is the macro environment threaded through preprocessing: a
// name to macro-definition table, mutated by #define/#undef and
// consulted by #ifdef/#ifndef/#if/defined().
type Defines map[string]*macroDef

type macroDef struct {
	params     []string
	variadic   bool
	funcLike   bool
	replacement string
}

// NewDefines builds the predefined macro table from spec §4.2:
// __STDC__, __STDC_VERSION__, one architecture macro, and one OS
// macro matching the build host.
func NewDefines(arch Arch) Defines {
	d := Defines{
		"__STDC__":         {replacement: "1"},
		"__STDC_VERSION__": {replacement: "199409L"},
		"linux":            {replacement: "1"},
		"__linux__":        {replacement: "1"},
	}
	if arch == ArchX86_64 {
		d["__x86_64__"] = &macroDef{replacement: "1"}
	} else {
		d["__i386__"] = &macroDef{replacement: "1"}
	}
	return d
}

// Preprocess runs the full string-to-string transformation of spec
// §4.2 phases 1-4: trigraphs, line splicing, comment stripping,
// directive processing (#include, #define/#undef, conditional
// groups, #error) with macro expansion. `defines` is mutated in place
// as #define/#undef directives are processed; `includeDirs` are
// searched, in order, for `#include "..."` after the current
// directory.
func Preprocess(source []byte, file string, defines Defines, includeDirs []string, reader FileReader) (string, error) {
	pp := &preprocessor{defines: defines, includeDirs: includeDirs, includeStack: map[string]bool{}, reader: reader}
	out, err := pp.run(string(source), file)
	if err != nil {
		return "", err
	}
	return out, nil
}

type preprocessor struct {
	defines      Defines
	includeDirs  []string
	includeStack map[string]bool
	reader       FileReader
}

// condState tracks one level of #if/#ifdef/#ifndef nesting: whether
// this branch is currently active, whether any branch in this group
// has been taken yet (for #elif/#else), and whether the *parent*
// context was active (inactive lines still get directive-structure
// parsing, but never expansion or emission).
type condState struct {
	parentActive bool
	taken        bool
	active       bool
}

func (pp *preprocessor) run(source, file string) (string, error) {
	source = replaceTrigraphs(source)
	source = spliceLines(source)
	stripped, perr := stripComments(source, file)
	if perr != nil {
		return "", perr
	}

	pp.includeStack[canonicalPath(file)] = true
	defer delete(pp.includeStack, canonicalPath(file))

	var out strings.Builder
	var stack []condState
	lines := strings.Split(stripped, "\n")

	isActive := func() bool {
		for _, c := range stack {
			if !c.active {
				return false
			}
		}
		return true
	}

	for lineNo, rawLine := range lines {
		line := rawLine
		trimmed := strings.TrimLeft(line, " \t\v\f")
		if strings.HasPrefix(trimmed, "#") {
			directive := strings.TrimLeft(trimmed[1:], " \t")
			emitted, err := pp.handleDirective(directive, file, lineNo+1, &stack, isActive())
			if err != nil {
				return "", err
			}
			out.WriteString(emitted)
			out.WriteByte('\n')
			continue
		}
		if isActive() {
			expanded, err := pp.expandLine(line, file, lineNo+1)
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
		}
		out.WriteByte('\n')
	}
	if len(stack) != 0 {
		return "", newPPError("UnterminatedConditional", file, len(lines), "unterminated #if/#ifdef block")
	}
	return out.String(), nil
}

func canonicalPath(p string) string {
	return p
}

func (pp *preprocessor) handleDirective(directive, file string, line int, stack *[]condState, parentActive bool) (string, error) {
	name, rest := splitDirectiveWord(directive)
	switch name {
	case "ifdef", "ifndef", "if":
		cond := pp.evalCondition(name, rest)
		*stack = append(*stack, condState{parentActive: parentActive, taken: cond && parentActive, active: cond && parentActive})
	case "elif":
		if len(*stack) == 0 {
			return "", newPPError("StrayDirective", file, line, "#elif without #if")
		}
		top := &(*stack)[len(*stack)-1]
		if top.taken || !top.parentActive {
			top.active = false
		} else {
			cond := pp.evalCondition("if", rest)
			top.active = cond
			top.taken = top.taken || cond
		}
	case "else":
		if len(*stack) == 0 {
			return "", newPPError("StrayDirective", file, line, "#else without #if")
		}
		top := &(*stack)[len(*stack)-1]
		if top.taken || !top.parentActive {
			top.active = false
		} else {
			top.active = true
			top.taken = true
		}
	case "endif":
		if len(*stack) == 0 {
			return "", newPPError("StrayDirective", file, line, "#endif without #if")
		}
		*stack = (*stack)[:len(*stack)-1]
	default:
		if !parentActive || (len(*stack) > 0 && !(*stack)[len(*stack)-1].active) {
			return "", nil
		}
		return pp.handleActiveDirective(name, rest, file, line)
	}
	return "", nil
}

func (pp *preprocessor) handleActiveDirective(name, rest, file string, line int) (string, error) {
	switch name {
	case "define":
		return "", pp.handleDefine(rest)
	case "undef":
		delete(pp.defines, strings.TrimSpace(rest))
		return "", nil
	case "include":
		return pp.handleInclude(rest, file, line)
	case "error":
		return "", newPPError("UserError", file, line, "%s", strings.TrimSpace(rest))
	case "pragma", "line", "ident":
		return "", nil
	default:
		return "", newPPError("UnknownDirective", file, line, "unknown preprocessor directive #%s", name)
	}
}

func splitDirectiveWord(s string) (word, rest string) {
	i := 0
	for i < len(s) && (isIdentCont(s[i])) {
		i++
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// FileReader abstracts the filesystem access #include needs, so
// callers (and tests) can supply an in-memory set of headers instead
// of touching disk. The default, os.ReadFile-backed implementation
// lives in cmd/cc1; the core package never imports "os" directly,
// keeping actual process I/O in the CLI collaborator per spec §1.
type FileReader interface {
	ReadFile(path string) ([]byte, bool)
}

func (pp *preprocessor) handleInclude(rest, file string, line int) (string, error) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "<") {
		// Free-standing subset: system includes are a recognized no-op.
		return "", nil
	}
	if !strings.HasPrefix(rest, "\"") {
		return "", newPPError("MalformedInclude", file, line, "expected \"FILENAME\" or <FILENAME> after #include")
	}
	end := strings.IndexByte(rest[1:], '"')
	if end < 0 {
		return "", newPPError("MalformedInclude", file, line, "missing terminating \" in #include")
	}
	name := rest[1 : 1+end]

	if pp.reader == nil {
		return "", newPPError("IncludeNotFound", file, line, "'%s' file not found (no file reader configured)", name)
	}

	path, content, ok := resolveInclude(pp.reader, name, file, pp.includeDirs)
	if !ok {
		return "", newPPError("IncludeNotFound", file, line, "'%s' file not found", name)
	}
	if pp.includeStack[canonicalPath(path)] {
		// Cycle: silently skip, preventing non-termination (spec §4.2).
		return "", nil
	}
	nested, err := pp.run(content, path)
	if err != nil {
		return "", errors.Wrapf(err, "in file included from %s:%d", file, line)
	}
	return nested, nil
}

// resolveInclude searches the current directory (the including
// file's directory), then each include directory in order, for a
// `"name"` include, per spec §4.2.
func resolveInclude(r FileReader, name, fromFile string, includeDirs []string) (path string, content string, ok bool) {
	dir := dirOf(fromFile)
	candidates := []string{joinPath(dir, name)}
	for _, d := range includeDirs {
		candidates = append(candidates, joinPath(d, name))
	}
	for _, c := range candidates {
		if data, found := r.ReadFile(c); found {
			return c, string(data), true
		}
	}
	return "", "", false
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
