package cc1

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// lowerStmt lowers one statement into the current block, advancing
// fl.cur as new blocks are opened by control flow (spec §4.6).
func (fl *functionLowerer) lowerStmt(s Stmt) error {
	switch n := s.(type) {
	case *CompoundStmt:
		return fl.lowerCompound(n)
	case *ExprStmt:
		if n.X == nil {
			return nil
		}
		_, err := fl.lowerExpr(n.X)
		return err
	case *IfStmt:
		return fl.lowerIf(n)
	case *WhileStmt:
		return fl.lowerWhile(n)
	case *DoWhileStmt:
		return fl.lowerDoWhile(n)
	case *ForStmt:
		return fl.lowerFor(n)
	case *ReturnStmt:
		return fl.lowerReturn(n)
	case *BreakStmt:
		if len(fl.breakTargets) == 0 {
			return errors.Errorf("%s: internal: 'break' outside loop/switch reached the lowerer", n.Span())
		}
		fl.cur.NewBr(fl.breakTargets[len(fl.breakTargets)-1])
		fl.cur = fl.newUnreachableContinuation()
		return nil
	case *ContinueStmt:
		if len(fl.continueTargets) == 0 {
			return errors.Errorf("%s: internal: 'continue' outside loop reached the lowerer", n.Span())
		}
		fl.cur.NewBr(fl.continueTargets[len(fl.continueTargets)-1])
		fl.cur = fl.newUnreachableContinuation()
		return nil
	case *GotoStmt:
		target, ok := fl.labelBlocks[n.Label]
		if !ok {
			return errors.Errorf("%s: internal: undeclared label %q reached the lowerer", n.Span(), n.Label)
		}
		fl.cur.NewBr(target)
		fl.cur = fl.newUnreachableContinuation()
		return nil
	case *LabeledStmt:
		target := fl.labelBlocks[n.Label]
		if fl.cur.Term == nil {
			fl.cur.NewBr(target)
		}
		fl.cur = target
		return fl.lowerStmt(n.Stmt)
	case *CaseStmt:
		// Reached only when a switch statement is not the immediate
		// parent (e.g. a case fallen into from an enclosing switch's
		// dispatch already lowered it); lowerSwitch handles its own
		// CaseStmt nodes directly, so by the time lowerStmt would see
		// one here the switch's block has already been entered.
		return fl.lowerStmt(n.Stmt)
	case *SwitchStmt:
		return fl.lowerSwitch(n)
	}
	return errors.Errorf("internal: unhandled statement kind %T in IR lowering", s)
}

// newUnreachableContinuation opens a fresh block after an
// unconditional branch (break/continue/goto) so any statement
// lexically following it — dead code the analyzer doesn't reject,
// since C89 permits it — still has somewhere to land.
func (fl *functionLowerer) newUnreachableContinuation() *ir.Block {
	return fl.newBlock("unreachable")
}

func (fl *functionLowerer) lowerCompound(n *CompoundStmt) error {
	fl.scope = newLocalScope(fl.scope)
	defer func() { fl.scope = fl.scope.parent }()

	for _, item := range n.Items {
		switch it := item.(type) {
		case *VarDecl:
			if err := fl.lowerLocalVarDecl(it); err != nil {
				return err
			}
		case Stmt:
			if err := fl.lowerStmt(it); err != nil {
				return err
			}
		}
	}
	return nil
}

// lowerLocalVarDecl allocas a block-scope object and stores its
// initializer, if any (spec §4.6's parameter/local-alloca convention
// extended to ordinary locals). `static` locals are promoted to
// function-qualified internal globals instead of a stack slot, since
// their lifetime spans the whole program.
func (fl *functionLowerer) lowerLocalVarDecl(n *VarDecl) error {
	if n.IsTypedef {
		return nil
	}
	if n.Storage == TkStatic {
		return fl.lowerStaticLocal(n)
	}

	llty, err := fl.l.llvmType(n.Type)
	if err != nil {
		return err
	}
	alloca := fl.cur.NewAlloca(llty)
	alloca.SetName(n.Name)
	fl.scope.declare(n.Name, &localVar{ptr: alloca, ty: n.Type})
	if fl.subprogram != nil {
		fl.l.dbg.declareLocal(fl, n.Name, n.Type, alloca, fl.subprogram, n.Span().Line, 0)
	}

	if n.Init != nil {
		return fl.storeInto(alloca, n.Type, n.Init)
	}
	if n.InitList != nil {
		return fl.storeInitList(alloca, n.Type, n.InitList)
	}
	return nil
}

// lowerStaticLocal gives a block-scope `static` object an
// internal-linkage global with a mangled name, since its storage
// duration outlives the enclosing function's activation record.
func (fl *functionLowerer) lowerStaticLocal(n *VarDecl) error {
	name := fl.name + "." + n.Name + ".static"
	llty, err := fl.l.llvmType(n.Type)
	if err != nil {
		return err
	}
	init, err := fl.l.globalInitializer(n, llty)
	if err != nil {
		return err
	}
	g := fl.l.module.NewGlobalDef(name, init)
	g.Linkage = enum.LinkageInternal
	fl.scope.declare(n.Name, &localVar{ptr: g, ty: n.Type})
	return nil
}

// lowerIf lowers `if`/`if`-`else` via explicit branch blocks (spec
// §4.6), folding away the else block entirely when absent.
func (fl *functionLowerer) lowerIf(n *IfStmt) error {
	cond, err := fl.lowerCondition(n.Cond)
	if err != nil {
		return err
	}

	thenBlock := fl.newBlock("if.then")
	endBlock := fl.newBlock("if.end")
	elseBlock := endBlock
	if n.Else != nil {
		elseBlock = fl.newBlock("if.else")
	}
	fl.cur.NewCondBr(cond, thenBlock, elseBlock)

	fl.cur = thenBlock
	if err := fl.lowerStmt(n.Then); err != nil {
		return err
	}
	if fl.cur.Term == nil {
		fl.cur.NewBr(endBlock)
	}

	if n.Else != nil {
		fl.cur = elseBlock
		if err := fl.lowerStmt(n.Else); err != nil {
			return err
		}
		if fl.cur.Term == nil {
			fl.cur.NewBr(endBlock)
		}
	}

	fl.cur = endBlock
	return nil
}

func (fl *functionLowerer) lowerWhile(n *WhileStmt) error {
	condBlock := fl.newBlock("while.cond")
	bodyBlock := fl.newBlock("while.body")
	endBlock := fl.newBlock("while.end")

	fl.cur.NewBr(condBlock)
	fl.cur = condBlock
	cond, err := fl.lowerCondition(n.Cond)
	if err != nil {
		return err
	}
	fl.cur.NewCondBr(cond, bodyBlock, endBlock)

	fl.cur = bodyBlock
	fl.pushLoop(endBlock, condBlock)
	err = fl.lowerStmt(n.Body)
	fl.popLoop()
	if err != nil {
		return err
	}
	if fl.cur.Term == nil {
		fl.cur.NewBr(condBlock)
	}

	fl.cur = endBlock
	return nil
}

func (fl *functionLowerer) lowerDoWhile(n *DoWhileStmt) error {
	bodyBlock := fl.newBlock("do.body")
	condBlock := fl.newBlock("do.cond")
	endBlock := fl.newBlock("do.end")

	fl.cur.NewBr(bodyBlock)
	fl.cur = bodyBlock
	fl.pushLoop(endBlock, condBlock)
	err := fl.lowerStmt(n.Body)
	fl.popLoop()
	if err != nil {
		return err
	}
	if fl.cur.Term == nil {
		fl.cur.NewBr(condBlock)
	}

	fl.cur = condBlock
	cond, err := fl.lowerCondition(n.Cond)
	if err != nil {
		return err
	}
	fl.cur.NewCondBr(cond, bodyBlock, endBlock)

	fl.cur = endBlock
	return nil
}

func (fl *functionLowerer) lowerFor(n *ForStmt) error {
	fl.scope = newLocalScope(fl.scope)
	defer func() { fl.scope = fl.scope.parent }()

	if n.Init != nil {
		switch init := n.Init.(type) {
		case *VarDecl:
			if err := fl.lowerLocalVarDecl(init); err != nil {
				return err
			}
		case *ExprStmt:
			if init.X != nil {
				if _, err := fl.lowerExpr(init.X); err != nil {
					return err
				}
			}
		}
	}

	condBlock := fl.newBlock("for.cond")
	bodyBlock := fl.newBlock("for.body")
	postBlock := fl.newBlock("for.post")
	endBlock := fl.newBlock("for.end")

	fl.cur.NewBr(condBlock)
	fl.cur = condBlock
	if n.Cond != nil {
		cond, err := fl.lowerCondition(n.Cond)
		if err != nil {
			return err
		}
		fl.cur.NewCondBr(cond, bodyBlock, endBlock)
	} else {
		fl.cur.NewBr(bodyBlock)
	}

	fl.cur = bodyBlock
	fl.pushLoop(endBlock, postBlock)
	err := fl.lowerStmt(n.Body)
	fl.popLoop()
	if err != nil {
		return err
	}
	if fl.cur.Term == nil {
		fl.cur.NewBr(postBlock)
	}

	fl.cur = postBlock
	if n.Post != nil {
		if _, err := fl.lowerExpr(n.Post); err != nil {
			return err
		}
	}
	if fl.cur.Term == nil {
		fl.cur.NewBr(condBlock)
	}

	fl.cur = endBlock
	return nil
}

func (fl *functionLowerer) pushLoop(breakTo, continueTo *ir.Block) {
	fl.breakTargets = append(fl.breakTargets, breakTo)
	fl.continueTargets = append(fl.continueTargets, continueTo)
}

func (fl *functionLowerer) popLoop() {
	fl.breakTargets = fl.breakTargets[:len(fl.breakTargets)-1]
	fl.continueTargets = fl.continueTargets[:len(fl.continueTargets)-1]
}

func (fl *functionLowerer) lowerReturn(n *ReturnStmt) error {
	if n.Value == nil {
		fl.cur.NewRet(nil)
		fl.cur = fl.newUnreachableContinuation()
		return nil
	}

	if fl.sret != nil {
		if err := fl.storeAggregate(fl.sret, fl.retType, n.Value); err != nil {
			return err
		}
		fl.cur.NewRet(nil)
		fl.cur = fl.newUnreachableContinuation()
		return nil
	}

	tv, err := fl.lowerExpr(n.Value)
	if err != nil {
		return err
	}
	ret, err := fl.convert(tv, fl.retType)
	if err != nil {
		return err
	}
	fl.cur.NewRet(ret)
	fl.cur = fl.newUnreachableContinuation()
	return nil
}

// lowerCondition lowers a controlling expression and coerces it to
// `i1`, the boolean form every C89 condition (truthiness of a scalar)
// needs for a conditional branch.
func (fl *functionLowerer) lowerCondition(e Expr) (value.Value, error) {
	tv, err := fl.lowerExpr(e)
	if err != nil {
		return nil, err
	}
	return fl.truthy(tv)
}

// lowerSwitch implements `switch`/`case`/`default` by pre-scanning the
// body for every reachable case label (spec §4.6: "pre-scanned
// case-constant dispatch"). A duplicate case value is already a
// semantic error by the time lowering runs (sema_decl.go's
// checkDuplicateCases rejects it, and api.go's Compile never lowers a
// translation unit that failed analysis); this pass still folds a
// repeated constant into its first occurrence rather than panicking,
// so a caller that drives the Lowerer directly over an unanalyzed
// tree degrades gracefully instead of emitting an invalid `switch`
// with two cases branching on the same value.
func (fl *functionLowerer) lowerSwitch(n *SwitchStmt) error {
	tagTV, err := fl.lowerExpr(n.Tag)
	if err != nil {
		return err
	}

	endBlock := fl.newBlock("switch.end")
	defaultBlock := endBlock

	type caseEntry struct {
		value int64
		block *ir.Block
	}
	var entries []caseEntry
	seen := map[int64]bool{}
	caseBlocks := map[*CaseStmt]*ir.Block{}
	var defaultStmt *CaseStmt

	var collect func(s Stmt)
	collect = func(s Stmt) {
		switch st := s.(type) {
		case *CompoundStmt:
			for _, item := range st.Items {
				if stmt, ok := item.(Stmt); ok {
					collect(stmt)
				}
			}
		case *CaseStmt:
			block := fl.newBlock("switch.case")
			caseBlocks[st] = block
			if st.Value == nil {
				if defaultStmt == nil {
					defaultStmt = st
					defaultBlock = block
				}
			} else if v, err := EvalICE(st.Value, fl.l.enumEnv, fl.l.target); err == nil {
				if !seen[v] {
					seen[v] = true
					entries = append(entries, caseEntry{value: v, block: block})
				}
			}
			collect(st.Stmt)
		case *LabeledStmt:
			collect(st.Stmt)
		case *IfStmt:
			collect(st.Then)
			if st.Else != nil {
				collect(st.Else)
			}
		}
	}
	collect(n.Body)

	target, err := fl.convert(tagTV, IntType())
	if err != nil {
		return err
	}
	targetIntType, ok := target.V.Type().(*types.IntType)
	if !ok {
		return errors.Errorf("%s: switch condition did not lower to an integer value", n.Span())
	}
	cases := make([]*ir.Case, len(entries))
	for i, e := range entries {
		cases[i] = ir.NewCase(constant.NewInt(targetIntType, e.value), e.block)
	}
	fl.cur.NewSwitch(target.V, defaultBlock, cases...)

	fl.pushLoop(endBlock, endBlock)
	fl.cur = fl.newBlock("switch.body")
	if err := fl.lowerSwitchBody(n.Body, caseBlocks); err != nil {
		fl.popLoop()
		return err
	}
	fl.popLoop()
	if fl.cur.Term == nil {
		fl.cur.NewBr(endBlock)
	}
	fl.cur = endBlock
	return nil
}

// lowerSwitchBody walks the switch body in source order, falling
// through from whichever block is current into each case's
// pre-created block, exactly as lowerStmt does for goto labels.
func (fl *functionLowerer) lowerSwitchBody(s Stmt, caseBlocks map[*CaseStmt]*ir.Block) error {
	switch n := s.(type) {
	case *CompoundStmt:
		fl.scope = newLocalScope(fl.scope)
		defer func() { fl.scope = fl.scope.parent }()
		for _, item := range n.Items {
			switch it := item.(type) {
			case *VarDecl:
				if err := fl.lowerLocalVarDecl(it); err != nil {
					return err
				}
			case Stmt:
				if err := fl.lowerSwitchBody(it, caseBlocks); err != nil {
					return err
				}
			}
		}
		return nil
	case *CaseStmt:
		block := caseBlocks[n]
		if fl.cur.Term == nil {
			fl.cur.NewBr(block)
		}
		fl.cur = block
		return fl.lowerSwitchBody(n.Stmt, caseBlocks)
	default:
		return fl.lowerStmt(s)
	}
}
