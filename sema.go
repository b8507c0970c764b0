package cc1

// Analyzer walks a TranslationUnit and produces a Diagnostics list
// (spec §4.5). It never mutates the AST; type annotations on
// expression nodes (the ResultType fields in ast.go) are filled in as
// a side effect of computing them, the "annotates types on demand via
// a side computation" the spec calls for, not a separate mutation
// pass.
type Analyzer struct {
	Target *Target
	syms   *SymbolTable
	diags  *Diagnostics

	// enumEnv mirrors every enum constant declared so far into a flat
	// name->value map, consulted by the ICE evaluator (sema_const.go)
	// without re-walking the tag scope stack.
	enumEnv map[string]int64

	// loopDepth/switchDepth track whether break/continue/case are
	// currently legal, and funcReturn holds the enclosing function's
	// return type for `return` checking.
	loopDepth   int
	switchDepth int
	funcReturn  *CType

	labels     map[string]bool
	gotoTargets []*GotoStmt
}

func NewAnalyzer(target *Target) *Analyzer {
	return &Analyzer{
		Target:  target,
		syms:    NewSymbolTable(),
		diags:   &Diagnostics{},
		enumEnv: map[string]int64{},
	}
}

// Analyze runs semantic analysis over the whole translation unit and
// returns the diagnostics collected, which may be empty.
func (a *Analyzer) Analyze(tu *TranslationUnit) *Diagnostics {
	for _, d := range tu.Decls {
		a.checkTopDecl(d)
	}
	for _, g := range a.gotoTargets {
		if !a.labels[g.Label] {
			a.diags.Add(newSemaErrorAt(g.Span(), "use of undeclared label %q", g.Label))
		}
	}
	return a.diags
}

func (a *Analyzer) checkTopDecl(d Decl) {
	switch n := d.(type) {
	case *VarDecl:
		a.checkVarDecl(n, true)
	case *FunctionDecl:
		a.checkFunctionDecl(n)
	}
}

// registerEnumConstants walks a freshly-seen CType looking for enum
// constants to add to both the ordinary symbol table and enumEnv;
// called by checkVarDecl for each declared object's or typedef's type.
// Enum types that appear only in a parameter list or a cast are not
// registered here.
func (a *Analyzer) registerEnumConstants(ty *CType) {
	if ty == nil || ty.Kind != TyEnum {
		return
	}
	for _, e := range ty.Enumerators {
		a.enumEnv[e.Name] = e.Value
		a.syms.Declare(&Symbol{Name: e.Name, Kind: SymEnumConst, Type: IntType(), EnumValue: e.Value})
	}
}
