package cc1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preprocessString(t *testing.T, src string) string {
	t.Helper()
	out, err := Preprocess([]byte(src), "test.c", NewDefines(ArchI386), nil, nil)
	require.NoError(t, err)
	return out
}

func TestPreprocess_Trigraphs(t *testing.T) {
	out := preprocessString(t, "int x??(10??);")
	assert.Contains(t, out, "int x[10];")
}

func TestPreprocess_LineSplicing(t *testing.T) {
	out := preprocessString(t, "int x = 1 + \\\n2;")
	assert.Contains(t, out, "int x = 1 + 2;")
}

func TestPreprocess_BlockComment(t *testing.T) {
	out := preprocessString(t, "int x /* comment */ = 1;")
	assert.NotContains(t, out, "comment")
	assert.Contains(t, out, "int x")
	assert.Contains(t, out, "= 1;")
}

func TestPreprocess_UnterminatedComment(t *testing.T) {
	_, err := Preprocess([]byte("int x = 1; /* oops"), "t.c", NewDefines(ArchI386), nil, nil)
	require.Error(t, err)
	ppErr, ok := err.(*PreprocessError)
	require.True(t, ok)
	assert.Equal(t, "UnterminatedComment", ppErr.Kind)
}

func TestPreprocess_LineCommentIsFatal(t *testing.T) {
	_, err := Preprocess([]byte("int x; // not allowed\n"), "t.c", NewDefines(ArchI386), nil, nil)
	require.Error(t, err)
	ppErr, ok := err.(*PreprocessError)
	require.True(t, ok)
	assert.Equal(t, "DisallowedLineComment", ppErr.Kind)
}

func TestPreprocess_ObjectMacro(t *testing.T) {
	out := preprocessString(t, "#define N 10\nint a[N];")
	assert.Contains(t, out, "int a[10];")
}

func TestPreprocess_FunctionMacro(t *testing.T) {
	out := preprocessString(t, "#define ADD(a,b) ((a)+(b))\nint x = ADD(1,2);")
	assert.Contains(t, out, "int x = ((1)+(2));")
}

func TestPreprocess_Undef(t *testing.T) {
	out := preprocessString(t, "#define N 10\n#undef N\nint a[N];")
	assert.Contains(t, out, "int a[N];")
}

func TestPreprocess_Redefinition(t *testing.T) {
	out := preprocessString(t, "#define N 1\n#define N 2\nint x = N;")
	assert.Contains(t, out, "int x = 2;")
}

func TestPreprocess_IfDefined(t *testing.T) {
	out := preprocessString(t, "#define A 1\n#if defined(A)\nint x=1;\n#else\nint x=2;\n#endif\n")
	assert.Contains(t, out, "int x=1;")
	assert.NotContains(t, out, "int x=2;")
}

func TestPreprocess_IfdefIfndef(t *testing.T) {
	out := preprocessString(t, "#ifdef MISSING\nint a;\n#endif\n#ifndef MISSING\nint b;\n#endif\n")
	assert.NotContains(t, out, "int a;")
	assert.Contains(t, out, "int b;")
}

func TestPreprocess_Elif(t *testing.T) {
	out := preprocessString(t, "#if 0\nint a;\n#elif 1\nint b;\n#else\nint c;\n#endif\n")
	assert.NotContains(t, out, "int a;")
	assert.Contains(t, out, "int b;")
	assert.NotContains(t, out, "int c;")
}

func TestPreprocess_ArchitectureMacro(t *testing.T) {
	out := preprocessString(t, "#if defined(__i386__)\nint x=1;\n#endif\n")
	assert.Contains(t, out, "int x=1;")
}

func TestPreprocess_Error(t *testing.T) {
	_, err := Preprocess([]byte("#error custom message\n"), "t.c", NewDefines(ArchI386), nil, nil)
	require.Error(t, err)
}

type mapFileReader map[string]string

func (m mapFileReader) ReadFile(path string) ([]byte, bool) {
	s, ok := m[path]
	return []byte(s), ok
}

func TestPreprocess_Include(t *testing.T) {
	reader := mapFileReader{"foo.h": "int included_var;\n"}
	out, err := Preprocess([]byte(`#include "foo.h"`+"\n"), "main.c", NewDefines(ArchI386), nil, reader)
	require.NoError(t, err)
	assert.Contains(t, out, "int included_var;")
}

func TestPreprocess_IncludeNotFound(t *testing.T) {
	reader := mapFileReader{}
	_, err := Preprocess([]byte(`#include "missing.h"`+"\n"), "main.c", NewDefines(ArchI386), nil, reader)
	require.Error(t, err)
	ppErr, ok := err.(*PreprocessError)
	require.True(t, ok)
	assert.Equal(t, "IncludeNotFound", ppErr.Kind)
}

func TestPreprocess_SystemIncludeIsNoOp(t *testing.T) {
	out, err := Preprocess([]byte("#include <stdio.h>\nint x;\n"), "main.c", NewDefines(ArchI386), nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "int x;")
}
