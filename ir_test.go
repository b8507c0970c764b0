package cc1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileToIR(t *testing.T, src string, arch Arch) string {
	t.Helper()
	opts := DefaultOptions()
	opts.Arch = arch
	res, err := Compile([]byte(src), "test.c", opts, nil)
	require.NoError(t, err)
	return res.IR
}

func TestIR_DebugInfoEmitsCompileUnit(t *testing.T) {
	// spec §4.6's optional DWARF-style debug metadata, consumed via -g.
	src := `int add(int a, int b) {
	int c = a + b;
	return c;
}`
	opts := DefaultOptions()
	opts.Arch = ArchI386
	opts.Debug = true
	res, err := Compile([]byte(src), "test.c", opts, nil)
	require.NoError(t, err)
	out := res.IR
	assert.Contains(t, out, "!llvm.dbg.cu")
	assert.Contains(t, out, "!llvm.module.flags")
	assert.Contains(t, out, "DICompileUnit")
	assert.Contains(t, out, "DIFile")
	assert.Contains(t, out, "DISubprogram")
	assert.Contains(t, out, "llvm.dbg.declare")
}

func TestIR_VaBuiltinsLowerToIntrinsics(t *testing.T) {
	// spec §4.6's variadic support: __builtin_va_start/_end/_copy lower
	// to the matching LLVM intrinsic, __builtin_va_arg_i32 to `va_arg`.
	src := `int sum(int n, ...) {
	va_list ap, ap2;
	int total;
	__builtin_va_start(ap, n);
	__builtin_va_copy(ap2, ap);
	total = __builtin_va_arg_i32(ap);
	__builtin_va_end(ap);
	__builtin_va_end(ap2);
	return total;
}`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "@llvm.va_start")
	assert.Contains(t, out, "@llvm.va_end")
	assert.Contains(t, out, "@llvm.va_copy")
	assert.Contains(t, out, "va_arg")
}

func TestIR_HelloWorld(t *testing.T) {
	// spec §8 scenario 1: printf prototype + a string literal, main
	// returning 0. The IR must declare printf rather than emit a
	// bogus global function pointer.
	src := `int printf(const char *, ...);
int main(void) {
	printf("hello, world\n");
	return 0;
}`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "declare")
	assert.Contains(t, out, "@printf")
	assert.Contains(t, out, "define")
	assert.Contains(t, out, "@main")
	assert.Contains(t, out, "ret i32 0")
}

func TestIR_StringLiteralDeduplication(t *testing.T) {
	src := `int printf(const char *, ...);
int main(void) {
	printf("dup");
	printf("dup");
	return 0;
}`
	out := compileToIR(t, src, ArchI386)
	assert.Equal(t, 1, countOccurrences(out, `c"dup\00"`))
}

func TestIR_EnumConstantGlobalInit(t *testing.T) {
	// spec §8 scenario 2: enum { A=1, B, C=B+2 }; int x = C; -> global
	// x initialized to the folded constant 4.
	src := "enum { A=1, B, C=B+2 }; int x = C;"
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "@x")
	assert.Contains(t, out, "global i32 4")
}

func TestIR_AggregateReturnUsesSRet(t *testing.T) {
	src := `struct P { int x; int y; };
struct P make(void) {
	struct P p;
	p.x = 1;
	p.y = 2;
	return p;
}`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "sret")
}

func TestIR_AggregateParameterUsesByVal(t *testing.T) {
	src := `struct P { int x; int y; };
int sum(struct P p) {
	return p.x + p.y;
}`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "byval")
}

func TestIR_VariadicCallPromotesArguments(t *testing.T) {
	// default argument promotions: float -> double, char -> int, on
	// every argument past the last named (fixed) parameter.
	src := `int printf(const char *, ...);
int f(void) {
	char c = 'a';
	float x = 1.5f;
	printf("%d %f", c, x);
	return 0;
}`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "@printf")
	assert.Contains(t, out, "fpext float")
	assert.Contains(t, out, "sext i8")
}

func TestIR_GlobalArrayInitializer(t *testing.T) {
	src := "int a[3] = {1, 2, 3};"
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "@a")
	assert.Contains(t, out, "[3 x i32]")
}

func TestIR_SwitchLowersToTable(t *testing.T) {
	src := `int f(int x) {
	switch (x) {
	case 1:
		return 10;
	case 2:
		return 20;
	default:
		return 0;
	}
}`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "switch")
}

func TestIR_ShortCircuitAndOr(t *testing.T) {
	src := `int f(int a, int b) {
	return a && b || a;
}`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "br i1")
}

func TestIR_StaticFunctionHasInternalLinkage(t *testing.T) {
	src := `static int helper(int x) { return x; }
int f(void) { return helper(1); }`
	out := compileToIR(t, src, ArchI386)
	assert.Contains(t, out, "internal")
}

func TestIR_ArchitectureAffectsPointerWidth(t *testing.T) {
	src := "int *p;"
	out32 := compileToIR(t, src, ArchI386)
	out64 := compileToIR(t, src, ArchX86_64)
	assert.NotEqual(t, out32, out64)
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
			i += len(needle) - 1
		}
	}
	return count
}
