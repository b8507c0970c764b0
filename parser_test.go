package cc1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTU(t *testing.T, src string) *TranslationUnit {
	t.Helper()
	lex := NewLexer([]byte(src))
	p := NewParser(lex, "test.c", ParserOptions{})
	tu, err := p.ParseTranslationUnit()
	require.NoError(t, err)
	return tu
}

func TestParser_SimpleVarDecl(t *testing.T) {
	tu := parseTU(t, "int x;")
	require.Len(t, tu.Decls, 1)
	vd, ok := tu.Decls[0].(*VarDecl)
	require.True(t, ok)
	assert.Equal(t, "x", vd.Name)
	assert.Equal(t, TyInt, vd.Type.Kind)
}

func TestParser_PointerDeclarator(t *testing.T) {
	tu := parseTU(t, "int *p;")
	vd := tu.Decls[0].(*VarDecl)
	assert.Equal(t, TyPointer, vd.Type.Kind)
	assert.Equal(t, TyInt, vd.Type.Elem.Kind)
}

func TestParser_ArrayDeclarator(t *testing.T) {
	tu := parseTU(t, "int a[10];")
	vd := tu.Decls[0].(*VarDecl)
	require.Equal(t, TyArray, vd.Type.Kind)
	require.NotNil(t, vd.Type.ArraySize)
	assert.Equal(t, 10, *vd.Type.ArraySize)
}

func TestParser_FunctionPrototype(t *testing.T) {
	tu := parseTU(t, "int add(int a, int b);")
	fd, ok := tu.Decls[0].(*FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fd.Name)
	assert.Nil(t, fd.Body)
	assert.True(t, fd.Type.Kind == TyFunction)
	assert.Len(t, fd.Type.Params, 2)
}

func TestParser_FunctionDefinition(t *testing.T) {
	tu := parseTU(t, "int main(void) { return 0; }")
	fd := tu.Decls[0].(*FunctionDecl)
	require.NotNil(t, fd.Body)
	require.Len(t, fd.Body.Items, 1)
	_, ok := fd.Body.Items[0].(*ReturnStmt)
	assert.True(t, ok)
}

func TestParser_TypedefDisambiguation(t *testing.T) {
	// `T * p;` must parse as a pointer declaration, not multiplication,
	// once T is a known typedef name (spec §4.4, scenario 6).
	tu := parseTU(t, "typedef int T; int f(void){ T * p; return 0; }")
	require.Len(t, tu.Decls, 2)
	fd := tu.Decls[1].(*FunctionDecl)
	require.NotNil(t, fd.Body)
	vd, ok := fd.Body.Items[0].(*VarDecl)
	require.True(t, ok, "expected T * p to parse as a pointer declaration")
	assert.Equal(t, "p", vd.Name)
	assert.Equal(t, TyPointer, vd.Type.Kind)
}

func TestParser_CastVsParenExpr(t *testing.T) {
	tu := parseTU(t, "typedef int T; int f(void){ T x; x = (T)1; return (x); }")
	fd := tu.Decls[1].(*FunctionDecl)
	assignStmt := fd.Body.Items[1].(*ExprStmt)
	assign, ok := assignStmt.X.(*AssignExpr)
	require.True(t, ok)
	_, isCast := assign.Right.(*CastExpr)
	assert.True(t, isCast, "(T)1 should parse as a cast")
}

func TestParser_StructDeclaration(t *testing.T) {
	tu := parseTU(t, "struct P { int x; int y; };")
	require.Len(t, tu.Decls, 0) // a lone tag declaration produces no ordinary Decl entry
}

func TestParser_OldStyleKAndRFunction(t *testing.T) {
	tu := parseTU(t, "int add(a, b) int a; int b; { return a + b; }")
	fd, ok := tu.Decls[0].(*FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fd.Name)
	require.NotNil(t, fd.Body)
}

func TestParser_EnumWithICE(t *testing.T) {
	tu := parseTU(t, "enum { A=1, B, C=B+2 }; int x;")
	require.NotEmpty(t, tu.Decls)
}

func TestParser_ExpressionPrecedence(t *testing.T) {
	p := NewParser(NewLexer([]byte("1 + 2 * 3")), "t.c", ParserOptions{})
	expr, err := p.ParseExpr()
	require.NoError(t, err)
	bin, ok := expr.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TkPlus, bin.Op)
	rhs, ok := bin.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TkStar, rhs.Op)
}

func TestParser_CommaIsLowestPrecedence(t *testing.T) {
	p := NewParser(NewLexer([]byte("a = 1, b = 2")), "t.c", ParserOptions{})
	_, err := p.ParseExpr()
	require.NoError(t, err)
}
