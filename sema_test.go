package cc1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, src string, arch Arch) (*TranslationUnit, *Diagnostics) {
	t.Helper()
	lex := NewLexer([]byte(src))
	p := NewParser(lex, "test.c", ParserOptions{})
	target := NewTarget(arch)
	p.SetTarget(target)
	tu, err := p.ParseTranslationUnit()
	require.NoError(t, err)
	an := NewAnalyzer(target)
	diags := an.Analyze(tu)
	return tu, diags
}

func TestSema_AcceptsWellTypedProgram(t *testing.T) {
	_, diags := analyze(t, "int add(int a, int b){ return a+b; }", ArchI386)
	assert.False(t, diags.HasErrors(), "%v", diags.Errors)
}

func TestSema_RedeclarationInSameScope(t *testing.T) {
	_, diags := analyze(t, "int x; int x;", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_VoidVariableIsError(t *testing.T) {
	_, diags := analyze(t, "void x;", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_UndeclaredIdentifier(t *testing.T) {
	_, diags := analyze(t, "int f(void){ return y; }", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_IncompatibleAssignment(t *testing.T) {
	_, diags := analyze(t, "struct A { int x; }; struct B { int x; }; int f(void){ struct A a; struct B b; a = b; return 0; }", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_DuplicateCaseValueIsError(t *testing.T) {
	_, diags := analyze(t, "int f(int x){ switch(x){ case 1: break; case 1: break; } return 0; }", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_MultipleDefaultLabelsIsError(t *testing.T) {
	_, diags := analyze(t, "int f(int x){ switch(x){ default: break; default: break; } return 0; }", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_DistinctCaseValuesAreAccepted(t *testing.T) {
	_, diags := analyze(t, "int f(int x){ switch(x){ case 1: break; case 2: break; default: break; } return 0; }", ArchI386)
	assert.False(t, diags.HasErrors(), "%v", diags.Errors)
}

func TestSema_VaBuiltinsAreAccepted(t *testing.T) {
	src := `int sum(int n, ...) {
	va_list ap;
	int total;
	__builtin_va_start(ap, n);
	total = __builtin_va_arg_i32(ap);
	__builtin_va_end(ap);
	return total;
}`
	_, diags := analyze(t, src, ArchI386)
	assert.False(t, diags.HasErrors(), "%v", diags.Errors)
}

func TestSema_BreakOutsideLoopOrSwitch(t *testing.T) {
	_, diags := analyze(t, "int f(void){ break; return 0; }", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_EnumConstantsAsICE(t *testing.T) {
	// spec §8 scenario 2: enum { A=1, B, C=B+2 }; int x = C; -> x initialized to 4.
	tu, diags := analyze(t, "enum { A=1, B, C=B+2 }; int x = C;", ArchI386)
	require.False(t, diags.HasErrors(), "%v", diags.Errors)
	var found bool
	for _, d := range tu.Decls {
		if vd, ok := d.(*VarDecl); ok && vd.Name == "x" {
			found = true
			lit, ok := vd.Init.(*IntLitExpr)
			require.True(t, ok)
			assert.Equal(t, int64(4), lit.Value)
		}
	}
	assert.True(t, found)
}

func TestSema_UndeclaredLabel(t *testing.T) {
	_, diags := analyze(t, "int f(void){ goto nowhere; return 0; }", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_ValidGotoLabel(t *testing.T) {
	_, diags := analyze(t, "int f(void){ goto done; done: return 0; }", ArchI386)
	assert.False(t, diags.HasErrors(), "%v", diags.Errors)
}

func TestSema_ArityMismatchInPrototypedCall(t *testing.T) {
	_, diags := analyze(t, "int add(int a, int b); int f(void){ return add(1); }", ArchI386)
	assert.True(t, diags.HasErrors())
}

func TestSema_FunctionPrototypeDeclaresSymbol(t *testing.T) {
	tu, diags := analyze(t, "int printf(const char *, ...); int main(void){ printf(\"hi\"); return 0; }", ArchI386)
	require.False(t, diags.HasErrors(), "%v", diags.Errors)
	fd, ok := tu.Decls[0].(*FunctionDecl)
	require.True(t, ok, "expected a no-body prototype to parse as a FunctionDecl")
	assert.Nil(t, fd.Body)
}

func TestSema_ZeroSizedArrayRejected(t *testing.T) {
	_, diags := analyze(t, "int a[0];", ArchI386)
	assert.True(t, diags.HasErrors())
}
