package cc1

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"
)

// Lowerer walks a TranslationUnit a second time and builds a textual
// LLVM IR module (spec §4.6), using github.com/llir/llvm's *ir.Module
// builder API rather than hand-formatting IR text — the library's
// own `.String()` on the finished module produces exactly the
// "textual LLVM IR" spec §6 requires as output. Grounded on
// `other_examples/ea1011ca_dshills-alas__internal-codegen-llvm.go.go`'s
// `LLVMCodegen` struct shape (one module field, a function table, a
// per-function variables map) and `golint-fixer-exp/cmd/bin2ll/ll.go`'s
// use of `*metadata.Metadata` to attach ad hoc debug annotations.
type Lowerer struct {
	target *Target
	opts   Options
	file   string

	module *ir.Module

	globals   map[string]*ir.Global
	functions map[string]*ir.Func

	// globalTypes/functionTypes remember the C type behind each global
	// object/function, since an *ir.Global or *ir.Func alone has
	// already lost the signedness and aggregate-member information a
	// later reference to that name needs (spec §4.6's typed-value
	// convention, typedValue, carried through the whole expression
	// lowerer).
	globalTypes   map[string]*CType
	functionTypes map[string]*CType

	// stringPool de-duplicates string-literal globals by their exact
	// decoded source-form key (spec §8's round-trip property: "for a
	// string literal s appearing twice in the source, exactly one
	// private global is emitted").
	stringPool map[string]*ir.Global

	// externDecls tracks which library functions have already been
	// declared on demand (printf, memcpy, the va_* intrinsics, ...).
	externDecls map[string]*ir.Func

	// enumEnv mirrors every enum constant visible anywhere in the
	// translation unit, rebuilt independently of sema.go's own
	// Analyzer.enumEnv (the analyzer that validated this tree is
	// already gone by the time Lower runs) — consulted wherever a
	// case label or global initializer is folded to an integer
	// constant.
	enumEnv map[string]int64

	dbg *debugEmitter
}

// NewLowerer constructs a Lowerer targeting t, configured by opts
// (architecture already folded into t, but opts.Debug/opts.DebugSourceFile
// still drive the lowerer directly).
func NewLowerer(t *Target, opts Options, file string) *Lowerer {
	l := &Lowerer{
		target:      t,
		opts:        opts,
		file:        file,
		module:      ir.NewModule(),
		globals:       map[string]*ir.Global{},
		functions:     map[string]*ir.Func{},
		globalTypes:   map[string]*CType{},
		functionTypes: map[string]*CType{},
		stringPool:    map[string]*ir.Global{},
		externDecls:   map[string]*ir.Func{},
		enumEnv:       map[string]int64{},
	}
	l.module.DataLayout = t.DataLayout()
	l.module.TargetTriple = t.Triple()
	l.module.SourceFilename = file
	if opts.Debug {
		l.dbg = newDebugEmitter(l.module, debugSourceFile(opts, file))
	}
	return l
}

func debugSourceFile(opts Options, file string) string {
	if opts.DebugSourceFile != "" {
		return opts.DebugSourceFile
	}
	return file
}

// Lower runs the full lowering pass over tu and returns the finished
// module. Declarations are lowered in two passes per function-table
// conventions (grounding file's declareFunction/generateFunction
// split): every top-level function signature is registered first so
// mutually-recursive calls resolve, then each definition's body is
// emitted.
func (l *Lowerer) Lower(tu *TranslationUnit) (*ir.Module, error) {
	for _, d := range tu.Decls {
		l.collectEnumConstants(declType(d))
	}

	for _, d := range tu.Decls {
		if fd, ok := d.(*FunctionDecl); ok {
			if _, err := l.declareFunction(fd); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range tu.Decls {
		switch n := d.(type) {
		case *VarDecl:
			if n.IsTypedef {
				continue
			}
			if err := l.lowerGlobalVar(n); err != nil {
				return nil, err
			}
		case *FunctionDecl:
			if n.Body != nil {
				if err := l.lowerFunctionBody(n); err != nil {
					return nil, err
				}
			}
		}
	}
	if l.dbg != nil {
		l.dbg.finish()
	}
	return l.module, nil
}

// llvmType maps a CType to its LLVM IR representation (spec §4.6):
// scalars follow target.go's size table, pointers/array-as-rvalue/
// function types lower to typed pointers consistent with this
// library's type model, struct globals/locals use an explicit
// anonymous struct type, and unions use a byte array sized to the
// union's largest member.
func (l *Lowerer) llvmType(ty *CType) (types.Type, error) {
	u := ty.Underlying()
	switch u.Kind {
	case TyVoid:
		return types.Void, nil
	case TyChar:
		return types.I8, nil
	case TyInt:
		bits, err := l.target.IntBitWidth(u)
		if err != nil {
			return nil, err
		}
		return intTypeOfWidth(bits), nil
	case TyFloat:
		return types.Float, nil
	case TyDouble:
		if u.Long {
			return types.X86FP80, nil
		}
		return types.Double, nil
	case TyPointer:
		elem, err := l.llvmType(u.Elem)
		if err != nil {
			return nil, err
		}
		if elem == nil || elem.Equal(types.Void) {
			elem = types.I8
		}
		return types.NewPointer(elem), nil
	case TyArray:
		if u.ArraySize == nil {
			return nil, errors.New("internal: cannot lower an incomplete array type")
		}
		elem, err := l.llvmType(u.Elem)
		if err != nil {
			return nil, err
		}
		return types.NewArray(uint64(*u.ArraySize), elem), nil
	case TyFunction:
		ret, err := l.llvmType(u.Return)
		if err != nil {
			return nil, err
		}
		params := make([]types.Type, len(u.Params))
		for i, p := range u.Params {
			pt, err := l.llvmType(p.Type)
			if err != nil {
				return nil, err
			}
			params[i] = pt
		}
		return types.NewPointer(types.NewFunc(ret, params...)), nil
	case TyStruct:
		return l.structType(u)
	case TyUnion:
		return l.unionType(u)
	case TyEnum:
		return types.I32, nil
	}
	return nil, errors.Errorf("internal: unhandled type kind %v in IR lowering", u.Kind)
}

func intTypeOfWidth(bits int) *types.IntType {
	switch bits {
	case 8:
		return types.I8
	case 16:
		return types.I16
	case 32:
		return types.I32
	case 64:
		return types.I64
	}
	return types.I32
}

// structType builds the anonymous `{t1, t2, ...}` LLVM struct type for
// a C struct (spec §4.6). Bit-fields within the struct have already
// been packed into allocation units by bitfield.go; those units (not
// the individual bit-field members) become the struct's LLVM fields.
func (l *Lowerer) structType(ty *CType) (*types.StructType, error) {
	var fieldTypes []types.Type
	slots, units, err := PackBitFields(l.target, ty.Fields)
	if err != nil {
		return nil, err
	}
	unitEmitted := make([]bool, len(units))
	for i, f := range ty.Fields {
		if f.BitWidth != nil {
			slot := slots[i]
			if slot == nil || unitEmitted[slot.UnitIdx] {
				continue
			}
			unitEmitted[slot.UnitIdx] = true
			ut, err := l.llvmType(units[slot.UnitIdx].Underlying)
			if err != nil {
				return nil, err
			}
			fieldTypes = append(fieldTypes, ut)
			continue
		}
		ft, err := l.llvmType(f.Type)
		if err != nil {
			return nil, err
		}
		fieldTypes = append(fieldTypes, ft)
	}
	return types.NewStruct(fieldTypes...), nil
}

func (l *Lowerer) unionType(ty *CType) (types.Type, error) {
	size, _, err := l.target.layoutAggregate(ty)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return types.NewArray(0, types.I8), nil
	}
	return types.NewArray(uint64(size), types.I8), nil
}

// lowerGlobalVar emits one file-scope object declaration as an LLVM
// global (spec §4.6): every object becomes a defined global, with its
// constant initializer when it has one and zero-initialized otherwise
// (see globalInitializer); `static` gives it internal linkage. An
// `extern` declaration is emitted as a definition too, not as an
// external declaration, and a later declaration of a name already
// lowered is skipped (the simplified redeclaration rule spec §9
// acknowledges).
func (l *Lowerer) lowerGlobalVar(n *VarDecl) error {
	if existing, ok := l.globals[n.Name]; ok {
		_ = existing
		return nil
	}
	llty, err := l.llvmType(n.Type)
	if err != nil {
		return errors.Wrapf(err, "global %q", n.Name)
	}
	init, err := l.globalInitializer(n, llty)
	if err != nil {
		return err
	}
	g := l.module.NewGlobalDef(n.Name, init)
	if n.Storage == TkStatic {
		g.Linkage = enum.LinkageInternal
	}
	l.globals[n.Name] = g
	l.globalTypes[n.Name] = n.Type
	return nil
}

// globalInitializer computes the constant initializer for a global
// variable: its explicit initializer when assignable to a compile-time
// constant, or a zero value otherwise (spec §4.6 lowers every global
// with a typed initializer).
func (l *Lowerer) globalInitializer(n *VarDecl, llty types.Type) (constant.Constant, error) {
	if n.Init != nil {
		if c, ok := l.constExpr(n.Init, llty); ok {
			return c, nil
		}
	}
	if n.InitList != nil {
		if c, ok := l.constAggregate(n.Type, n.InitList, llty); ok {
			return c, nil
		}
	}
	return zeroValue(llty), nil
}

// constExpr evaluates e as a compile-time constant suitable for a
// global initializer: integer/float/char literals directly, and
// integer constant expressions (enum arithmetic) via EvalICE.
func (l *Lowerer) constExpr(e Expr, llty types.Type) (constant.Constant, bool) {
	switch n := e.(type) {
	case *FloatLitExpr:
		if ft, ok := llty.(*types.FloatType); ok {
			return constant.NewFloat(ft, n.Value), true
		}
		return constant.NewFloat(types.Double, n.Value), true
	case *StringLitExpr:
		g := l.internString(n.Value)
		return constant.NewGetElementPtr(g.ContentType(), g, constant.NewInt(types.I64, 0), constant.NewInt(types.I64, 0)), true
	}
	if it, ok := llty.(*types.IntType); ok {
		if v, err := EvalICE(e, l.enumEnv, l.target); err == nil {
			return constant.NewInt(it, v), true
		}
	}
	return nil, false
}

// declType returns the CType a top-level declaration introduces, used
// only to seed collectEnumConstants's walk.
func declType(d Decl) *CType {
	switch n := d.(type) {
	case *VarDecl:
		return n.Type
	case *FunctionDecl:
		return n.Type
	}
	return nil
}

// collectEnumConstants walks ty looking for enum types, registering
// every enumerator it finds into l.enumEnv so later constant folding
// (case labels, global initializers) can resolve them by name. Walks
// struct/union field types and pointer/array element types too, since
// an enum can appear nested arbitrarily deep in a declaration's type.
func (l *Lowerer) collectEnumConstants(ty *CType) {
	if ty == nil {
		return
	}
	switch ty.Kind {
	case TyEnum:
		for _, e := range ty.Enumerators {
			l.enumEnv[e.Name] = e.Value
		}
	case TyPointer, TyArray:
		l.collectEnumConstants(ty.Elem)
	case TyFunction:
		l.collectEnumConstants(ty.Return)
		for _, p := range ty.Params {
			l.collectEnumConstants(p.Type)
		}
	case TyStruct, TyUnion:
		for _, f := range ty.Fields {
			l.collectEnumConstants(f.Type)
		}
	case TyNamed:
		l.collectEnumConstants(ty.Resolved)
	}
}

func (l *Lowerer) constAggregate(ty *CType, items []InitItem, llty types.Type) (constant.Constant, bool) {
	u := ty.Underlying()
	switch t := llty.(type) {
	case *types.ArrayType:
		elemCType := u.Elem
		fields := make([]constant.Constant, t.Len)
		for i := range fields {
			if i < len(items) {
				fields[i] = l.constInitItem(elemCType, items[i], t.ElemType)
			} else {
				fields[i] = zeroValue(t.ElemType)
			}
		}
		return constant.NewArray(t, fields...), true
	case *types.StructType:
		fields := make([]constant.Constant, len(t.Fields))
		for i := range fields {
			var fieldCType *CType
			if i < len(u.Fields) {
				fieldCType = u.Fields[i].Type
			}
			if i < len(items) && fieldCType != nil {
				fields[i] = l.constInitItem(fieldCType, items[i], t.Fields[i])
			} else {
				fields[i] = zeroValue(t.Fields[i])
			}
		}
		return constant.NewStruct(t, fields...), true
	}
	return nil, false
}

func (l *Lowerer) constInitItem(ty *CType, item InitItem, llty types.Type) constant.Constant {
	if item.Nested != nil {
		if c, ok := l.constAggregate(ty, item.Nested, llty); ok {
			return c
		}
		return zeroValue(llty)
	}
	if item.Value != nil {
		if c, ok := l.constExpr(item.Value, llty); ok {
			return c
		}
	}
	return zeroValue(llty)
}

func zeroValue(t types.Type) constant.Constant {
	switch ty := t.(type) {
	case *types.IntType:
		return constant.NewInt(ty, 0)
	case *types.FloatType:
		return constant.NewFloat(ty, 0)
	case *types.PointerType:
		return constant.NewNull(ty)
	default:
		return constant.NewZeroInitializer(t)
	}
}

// internString returns the (de-duplicated) private global backing
// string literal s, per spec §8's round-trip property: the same
// source-form string literal shares one global wherever it appears.
func (l *Lowerer) internString(s string) *ir.Global {
	if g, ok := l.stringPool[s]; ok {
		return g
	}
	data := constant.NewCharArrayFromString(s + "\x00")
	name := fmt.Sprintf("str.%d", len(l.stringPool))
	g := l.module.NewGlobalDef(name, data)
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	g.UnnamedAddr = enum.UnnamedAddrUnnamedAddr
	l.stringPool[s] = g
	return g
}

// declareExternFunc returns the (possibly freshly declared) external
// function named name with the given signature, consulted by call
// lowering for library functions like printf that are referenced but
// never defined in this translation unit (spec §8's invariant: "every
// symbol referenced by an emitted instruction is either in the
// module's global table or declared in its `declare` list").
func (l *Lowerer) declareExternFunc(name string, ret types.Type, variadic bool, params ...types.Type) *ir.Func {
	if f, ok := l.externDecls[name]; ok {
		return f
	}
	if f, ok := l.functions[name]; ok {
		return f
	}
	irParams := make([]*ir.Param, len(params))
	for i, p := range params {
		irParams[i] = ir.NewParam("", p)
	}
	f := l.module.NewFunc(name, ret, irParams...)
	f.Sig.Variadic = variadic
	l.externDecls[name] = f
	return f
}

