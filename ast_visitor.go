package cc1

import "fmt"

// Visitor is the interface a full AST consumer implements; every
// node's Accept dispatches into it. No pass in this package
// implements it: the analyzer and the IR lowerer both walk the tree
// directly with type switches.
// Adapted from the teacher's AstNodeVisitor (grammar_ast_visitor.go).
type Visitor interface {
	VisitIdentExpr(*IdentExpr) error
	VisitIntLitExpr(*IntLitExpr) error
	VisitFloatLitExpr(*FloatLitExpr) error
	VisitCharLitExpr(*CharLitExpr) error
	VisitStringLitExpr(*StringLitExpr) error
	VisitBinaryExpr(*BinaryExpr) error
	VisitUnaryExpr(*UnaryExpr) error
	VisitPostfixExpr(*PostfixExpr) error
	VisitAssignExpr(*AssignExpr) error
	VisitCondExpr(*CondExpr) error
	VisitCallExpr(*CallExpr) error
	VisitIndexExpr(*IndexExpr) error
	VisitMemberExpr(*MemberExpr) error
	VisitCastExpr(*CastExpr) error
	VisitSizeofExpr(*SizeofExpr) error

	VisitExprStmt(*ExprStmt) error
	VisitCompoundStmt(*CompoundStmt) error
	VisitIfStmt(*IfStmt) error
	VisitWhileStmt(*WhileStmt) error
	VisitDoWhileStmt(*DoWhileStmt) error
	VisitForStmt(*ForStmt) error
	VisitReturnStmt(*ReturnStmt) error
	VisitBreakStmt(*BreakStmt) error
	VisitContinueStmt(*ContinueStmt) error
	VisitGotoStmt(*GotoStmt) error
	VisitLabeledStmt(*LabeledStmt) error
	VisitCaseStmt(*CaseStmt) error
	VisitSwitchStmt(*SwitchStmt) error

	VisitVarDecl(*VarDecl) error
	VisitFunctionDecl(*FunctionDecl) error
	VisitTranslationUnit(*TranslationUnit) error
}

// Inspect traverses node in depth-first order, calling f for each
// node visited; if f returns false, Inspect skips that node's
// children. Mirrors the teacher's single-switch Inspect
// (grammar_ast_visitor.go) rather than requiring a full Visitor
// implementation for simple read-only walks. Nothing in this package
// calls it; the analyzer and the lowerer use their own type switches.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	switch n := node.(type) {
	case *IdentExpr, *IntLitExpr, *FloatLitExpr, *CharLitExpr, *StringLitExpr:
		// leaves

	case *BinaryExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *UnaryExpr:
		Inspect(n.Operand, f)
	case *PostfixExpr:
		Inspect(n.Operand, f)
	case *AssignExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *CondExpr:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		Inspect(n.Else, f)
	case *CallExpr:
		Inspect(n.Callee, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *IndexExpr:
		Inspect(n.Array, f)
		Inspect(n.Index, f)
	case *MemberExpr:
		Inspect(n.Target, f)
	case *CastExpr:
		Inspect(n.Operand, f)
	case *SizeofExpr:
		if n.Operand != nil {
			Inspect(n.Operand, f)
		}

	case *ExprStmt:
		if n.X != nil {
			Inspect(n.X, f)
		}
	case *CompoundStmt:
		for _, item := range n.Items {
			Inspect(item, f)
		}
	case *IfStmt:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		if n.Else != nil {
			Inspect(n.Else, f)
		}
	case *WhileStmt:
		Inspect(n.Cond, f)
		Inspect(n.Body, f)
	case *DoWhileStmt:
		Inspect(n.Body, f)
		Inspect(n.Cond, f)
	case *ForStmt:
		if n.Init != nil {
			Inspect(n.Init, f)
		}
		if n.Cond != nil {
			Inspect(n.Cond, f)
		}
		if n.Post != nil {
			Inspect(n.Post, f)
		}
		Inspect(n.Body, f)
	case *ReturnStmt:
		if n.Value != nil {
			Inspect(n.Value, f)
		}
	case *BreakStmt, *ContinueStmt, *GotoStmt:
		// leaves
	case *LabeledStmt:
		Inspect(n.Stmt, f)
	case *CaseStmt:
		if n.Value != nil {
			Inspect(n.Value, f)
		}
		Inspect(n.Stmt, f)
	case *SwitchStmt:
		Inspect(n.Tag, f)
		Inspect(n.Body, f)

	case *VarDecl:
		if n.Init != nil {
			Inspect(n.Init, f)
		}
		for _, item := range n.InitList {
			inspectInitItem(item, f)
		}
	case *FunctionDecl:
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *TranslationUnit:
		for _, d := range n.Decls {
			Inspect(d, f)
		}

	default:
		panic(fmt.Sprintf("Inspect is outdated, missing node %T", n))
	}
}

func inspectInitItem(item InitItem, f func(Node) bool) {
	if item.Value != nil {
		Inspect(item.Value, f)
	}
	for _, n := range item.Nested {
		inspectInitItem(n, f)
	}
}
