package cc1

import (
	"path/filepath"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// debugEmitter builds the DWARF-style debug metadata spec §4.6
// requires when `-g` is set: one compile-unit/file pair for the whole
// module, a small pool of basic types keyed by their C spelling (built
// lazily, one `DIBasicType` per distinct scalar type actually
// referenced), and one subprogram per lowered function, with every
// parameter and local variable's `alloca` carrying an
// `llvm.dbg.declare` reference. The node shapes below follow the
// `!DICompileUnit(...)`/`!DIFile(...)`/`!DISubprogram(...)` grammar
// LLVM IR itself defines, which llir/llvm's metadata package mirrors
// field-for-field the same way its `ir`/`ir/types` packages already
// mirror the instruction grammar the rest of ir*.go relies on.
type debugEmitter struct {
	module *ir.Module

	file *metadata.DIFile
	cu   *metadata.DICompileUnit

	basicTypes map[string]*metadata.DIBasicType
	declareFn  *ir.Func
}

// newDebugEmitter registers the module-flags block and the single
// compile-unit/file pair every debug-info-bearing module needs, named
// onto the module as `!llvm.dbg.cu`/`!llvm.module.flags` so a consumer
// can find the debug-info root without walking every function.
func newDebugEmitter(module *ir.Module, sourceFile string) *debugEmitter {
	dir, base := filepath.Split(sourceFile)
	if dir == "" {
		dir = "."
	}
	file := &metadata.DIFile{
		Filename:  base,
		Directory: dir,
	}
	cu := &metadata.DICompileUnit{
		Distinct:     true,
		Language:     enum.DwarfLangC89,
		File:         file,
		Producer:     "cc1",
		EmissionKind: enum.EmissionKindFullDebug,
	}
	module.NamedMetadataDefs = append(module.NamedMetadataDefs, &metadata.NamedDef{
		Name:  "llvm.dbg.cu",
		Nodes: []metadata.MDNode{cu},
	})
	module.NamedMetadataDefs = append(module.NamedMetadataDefs, &metadata.NamedDef{
		Name: "llvm.module.flags",
		Nodes: []metadata.MDNode{
			&metadata.Tuple{Fields: []metadata.Field{
				metadata.Int64(enum.ModuleFlagBehaviorWarning),
				metadata.String{Value: "Debug Info Version"},
				metadata.Int64(3),
			}},
			&metadata.Tuple{Fields: []metadata.Field{
				metadata.Int64(enum.ModuleFlagBehaviorWarning),
				metadata.String{Value: "Dwarf Version"},
				metadata.Int64(4),
			}},
		},
	})
	return &debugEmitter{
		module:     module,
		file:       file,
		cu:         cu,
		basicTypes: map[string]*metadata.DIBasicType{},
	}
}

// basicType returns (creating and caching on first use) the
// `DIBasicType` describing ty, keyed by ty's C spelling so e.g. `int`
// and `unsigned int` get distinct nodes. `void` has no type node of
// its own; callers represent it with a bare `nil` tuple entry instead,
// per DWARF convention for a void return/parameter.
func (d *debugEmitter) basicType(ty *CType, target *Target) *metadata.DIBasicType {
	u := ty.Underlying()
	if u.Kind == TyVoid {
		return nil
	}
	key := ty.String()
	if bt, ok := d.basicTypes[key]; ok {
		return bt
	}
	size, err := target.Sizeof(ty)
	if err != nil {
		size = 0
	}
	var encoding enum.DwarfAttEncoding
	switch {
	case u.IsFloating():
		encoding = enum.DwarfAttEncodingFloat
	case u.Kind == TyChar && u.Unsigned:
		encoding = enum.DwarfAttEncodingUnsignedChar
	case u.Kind == TyChar:
		encoding = enum.DwarfAttEncodingSignedChar
	case u.Unsigned:
		encoding = enum.DwarfAttEncodingUnsigned
	default:
		encoding = enum.DwarfAttEncodingSigned
	}
	bt := &metadata.DIBasicType{
		Name:     key,
		Size:     uint64(size) * 8,
		Encoding: encoding,
	}
	d.basicTypes[key] = bt
	return bt
}

// subroutineType builds the `DISubroutineType` describing fnTy's
// return and parameter types for its owning subprogram's `Type`
// field, consulting the same basic-type pool every variable's
// `DILocalVariable` draws from.
func (d *debugEmitter) subroutineType(fnTy *CType, target *Target) *metadata.DISubroutineType {
	fields := make([]metadata.Field, 0, len(fnTy.Params)+1)
	if ret := d.basicType(fnTy.Return, target); ret != nil {
		fields = append(fields, ret)
	} else {
		fields = append(fields, nil)
	}
	for _, p := range fnTy.Params {
		if bt := d.basicType(p.Type, target); bt != nil {
			fields = append(fields, bt)
		}
	}
	return &metadata.DISubroutineType{
		Types: &metadata.Tuple{Fields: fields},
	}
}

// declareFunction registers fd's `DISubprogram` (spec §4.6's
// per-function subprogram node) and attaches it to f via the `!dbg`
// metadata attachment every debug-info-bearing function definition
// needs, returning the subprogram so the caller can use it as the
// enclosing scope for the function's parameters and locals.
func (d *debugEmitter) declareFunction(f *ir.Func, fd *FunctionDecl, target *Target) *metadata.DISubprogram {
	line := int64(fd.Span().Line)
	sp := &metadata.DISubprogram{
		Distinct:     true,
		Name:         fd.Name,
		Scope:        d.file,
		File:         d.file,
		Line:         line,
		ScopeLine:    line,
		Type:         d.subroutineType(fd.Type.Underlying(), target),
		Unit:         d.cu,
		IsDefinition: fd.Body != nil,
	}
	f.Metadata = append(f.Metadata, &metadata.Attachment{Name: "dbg", Node: sp})
	return sp
}

// declareLocal emits the `llvm.dbg.declare` call binding name's
// `DILocalVariable` to its storage at ptr (spec §4.6's `#dbg_declare`
// requirement, expressed as the classic intrinsic-call form every
// LLVM version accepts rather than the newer non-instruction debug
// record syntax — see DESIGN.md). argIdx is the 1-based parameter
// index for a parameter, or 0 for an ordinary local.
func (d *debugEmitter) declareLocal(fl *functionLowerer, name string, ty *CType, ptr value.Value, sp *metadata.DISubprogram, line int, argIdx int) {
	lv := &metadata.DILocalVariable{
		Name:  name,
		Arg:   int64(argIdx),
		Scope: sp,
		File:  d.file,
		Line:  int64(line),
		Type:  d.basicType(ty, fl.l.target),
	}
	if d.declareFn == nil {
		d.declareFn = fl.l.declareExternFunc("llvm.dbg.declare", types.Void, false,
			types.Metadata, types.Metadata, types.Metadata)
	}
	fl.cur.NewCall(d.declareFn,
		&metadata.Value{Value: ptr},
		lv,
		&metadata.DIExpression{},
	)
}

// finish is the lowering pass's hook for any module-wide debug-info
// bookkeeping that can only happen once every function has been
// lowered; every node this emitter builds is already attached to the
// module or a function the moment it's created, so there is nothing
// left to do here.
func (d *debugEmitter) finish() {}
