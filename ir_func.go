package cc1

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// localVar is one block-scope or parameter binding: the alloca (or, for
// a byval aggregate parameter, the incoming pointer itself) backing
// it, and its C type.
type localVar struct {
	ptr value.Value
	ty  *CType
}

// localScope mirrors symbol.go's Scope chain, but for the addresses
// the lowerer has allocated rather than for semantic bindings — the
// analyzer's own scope stack is gone by the time lowering runs, so the
// lowerer keeps its own in the same nested shape.
type localScope struct {
	parent *localScope
	vars   map[string]*localVar
}

func newLocalScope(parent *localScope) *localScope {
	return &localScope{parent: parent, vars: map[string]*localVar{}}
}

func (s *localScope) declare(name string, v *localVar) {
	s.vars[name] = v
}

func (s *localScope) lookup(name string) (*localVar, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// functionLowerer holds the per-function state while lowering one
// FunctionDecl's body: the current insertion block, the local
// variable scope stack, and the break/continue/goto targets in scope
// (spec §4.6's control-flow lowering).
type functionLowerer struct {
	l      *Lowerer
	fn     *ir.Func
	name   string
	cur    *ir.Block
	scope  *localScope

	retType *CType
	sret    value.Value // non-nil: pointer the caller supplied for an aggregate return

	// subprogram is this function's DISubprogram (nil unless -g is
	// set), the enclosing scope every parameter/local's
	// DILocalVariable is declared against.
	subprogram *metadata.DISubprogram

	labelBlocks map[string]*ir.Block

	breakTargets    []*ir.Block
	continueTargets []*ir.Block

	blockSeq int
}

// returnsAggregate reports whether fn's C return type must be lowered
// via the hidden `sret` pointer parameter (spec §4.6: "aggregate
// returns via sret").
func returnsAggregate(ty *CType) bool {
	u := ty.Underlying()
	return u.Kind == TyStruct || u.Kind == TyUnion
}

func isAggregate(ty *CType) bool {
	u := ty.Underlying()
	return u.Kind == TyStruct || u.Kind == TyUnion || u.Kind == TyArray
}

// declareFunction registers fn's LLVM signature (spec §4.6's two-pass
// declare-then-define structure, grounded on the teacher-adjacent
// `declareFunction`/`generateFunction` split in
// other_examples/ea1011ca_dshills-alas__internal-codegen-llvm.go.go).
// Aggregate-by-value parameters are rewritten to a pointer carrying
// the `byval` attribute, and an aggregate return is rewritten to a
// `void` function taking a hidden leading `sret` pointer parameter.
func (l *Lowerer) declareFunction(fd *FunctionDecl) (*ir.Func, error) {
	if f, ok := l.functions[fd.Name]; ok {
		return f, nil
	}
	l.functionTypes[fd.Name] = fd.Type

	cfnType := fd.Type.Underlying()
	aggregateReturn := returnsAggregate(cfnType.Return)

	retType, err := l.llvmType(cfnType.Return)
	if err != nil {
		return nil, errors.Wrapf(err, "function %q return type", fd.Name)
	}

	var irParams []*ir.Param
	if aggregateReturn {
		sretType, err := l.llvmType(cfnType.Return)
		if err != nil {
			return nil, err
		}
		p := ir.NewParam("__sret", types.NewPointer(sretType))
		p.Attrs = append(p.Attrs, enum.ParamAttrSRet)
		irParams = append(irParams, p)
		retType = types.Void
	}

	for _, param := range cfnType.Params {
		pt, err := l.llvmType(param.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "function %q parameter %q", fd.Name, param.Name)
		}
		if isAggregate(param.Type) {
			p := ir.NewParam(param.Name, types.NewPointer(pt))
			p.Attrs = append(p.Attrs, enum.ParamAttrByVal)
			irParams = append(irParams, p)
			continue
		}
		irParams = append(irParams, ir.NewParam(param.Name, pt))
	}

	f := l.module.NewFunc(fd.Name, retType, irParams...)
	f.Sig.Variadic = cfnType.Variadic
	if fd.Storage == TkStatic {
		f.Linkage = enum.LinkageInternal
	}
	l.functions[fd.Name] = f
	return f, nil
}

// lowerFunctionBody emits fn's body (spec §4.6): an "entry" block
// (the Open Question decision recorded in DESIGN.md: a plain name, not
// the numeric "0:" some disassemblers print) that allocas and stores
// every parameter, followed by the lowered statement tree. A missing
// final `return` falls through to an implicit `ret void`/zero return,
// matching how the underlying AST already guarantees a `return` is
// the last reachable statement of `main` et al. only when spec'd — for
// anything else, this function makes the fallthrough explicit so the
// module always terminates every block.
func (l *Lowerer) lowerFunctionBody(fd *FunctionDecl) error {
	f, err := l.declareFunction(fd)
	if err != nil {
		return err
	}
	cfnType := fd.Type.Underlying()

	fl := &functionLowerer{
		l:           l,
		fn:          f,
		name:        fd.Name,
		scope:       newLocalScope(nil),
		retType:     cfnType.Return,
		labelBlocks: map[string]*ir.Block{},
	}

	if l.dbg != nil {
		fl.subprogram = l.dbg.declareFunction(f, fd, l.target)
	}

	entry := f.NewBlock("entry")
	fl.cur = entry

	argParams := f.Params
	if returnsAggregate(cfnType.Return) {
		fl.sret = f.Params[0]
		argParams = f.Params[1:]
	}

	for i, param := range cfnType.Params {
		if param.Name == "" {
			continue
		}
		irParam := argParams[i]
		if isAggregate(param.Type) {
			// byval: the incoming pointer already names a private copy
			// the callee owns, so it doubles as the local's address.
			fl.scope.declare(param.Name, &localVar{ptr: irParam, ty: param.Type})
			if fl.subprogram != nil {
				l.dbg.declareLocal(fl, param.Name, param.Type, irParam, fl.subprogram, fd.Span().Line, i+1)
			}
			continue
		}
		pt, err := l.llvmType(param.Type)
		if err != nil {
			return err
		}
		alloca := fl.cur.NewAlloca(pt)
		alloca.SetName(param.Name)
		fl.cur.NewStore(irParam, alloca)
		fl.scope.declare(param.Name, &localVar{ptr: alloca, ty: param.Type})
		if fl.subprogram != nil {
			l.dbg.declareLocal(fl, param.Name, param.Type, alloca, fl.subprogram, fd.Span().Line, i+1)
		}
	}

	fl.predeclareLabels(fd.Body)

	if err := fl.lowerStmt(fd.Body); err != nil {
		return errors.Wrapf(err, "function %q", fd.Name)
	}

	if fl.cur.Term == nil {
		fl.emitFallthroughReturn()
	}
	return nil
}

// emitFallthroughReturn terminates the current (still-open) block when
// control can fall off the end of a function body without an explicit
// `return` (legal in C89 only for a void-returning function, but
// emitted unconditionally here so every block is left terminated).
func (fl *functionLowerer) emitFallthroughReturn() {
	if fl.retType.Underlying().Kind == TyVoid {
		fl.cur.NewRet(nil)
		return
	}
	if fl.sret != nil {
		fl.cur.NewRet(nil)
		return
	}
	llty, err := fl.l.llvmType(fl.retType)
	if err != nil {
		fl.cur.NewUnreachable()
		return
	}
	fl.cur.NewRet(zeroValue(llty))
}

// predeclareLabels walks body looking for every LabeledStmt and
// creates its target block up front, so a `goto` appearing lexically
// before its label can still branch to an already-known *ir.Block
// (spec §4.6's goto/labeled-statement lowering).
func (fl *functionLowerer) predeclareLabels(s Stmt) {
	switch n := s.(type) {
	case *LabeledStmt:
		fl.labelBlocks[n.Label] = fl.fn.NewBlock(fl.blockName("label." + n.Label))
		fl.predeclareLabels(n.Stmt)
	case *CompoundStmt:
		for _, item := range n.Items {
			if st, ok := item.(Stmt); ok {
				fl.predeclareLabels(st)
			}
		}
	case *IfStmt:
		fl.predeclareLabels(n.Then)
		if n.Else != nil {
			fl.predeclareLabels(n.Else)
		}
	case *WhileStmt:
		fl.predeclareLabels(n.Body)
	case *DoWhileStmt:
		fl.predeclareLabels(n.Body)
	case *ForStmt:
		fl.predeclareLabels(n.Body)
	case *CaseStmt:
		fl.predeclareLabels(n.Stmt)
	case *SwitchStmt:
		fl.predeclareLabels(n.Body)
	}
}

func (fl *functionLowerer) blockName(prefix string) string {
	fl.blockSeq++
	return fmt.Sprintf("%s.%d", prefix, fl.blockSeq)
}

func (fl *functionLowerer) newBlock(prefix string) *ir.Block {
	return fl.fn.NewBlock(fl.blockName(prefix))
}
