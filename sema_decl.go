package cc1

// checkVarDecl validates one object/typedef declaration: registers
// its symbol, rejects `void` objects, and (for file-scope or any
// explicitly `static` declaration) requires the initializer to be an
// integer constant expression (spec §4.5's static-storage-duration
// rule).
func (a *Analyzer) checkVarDecl(n *VarDecl, fileScope bool) {
	a.registerEnumConstants(n.Type.Underlying())

	if !n.IsTypedef && n.Type.Underlying().Kind == TyVoid {
		a.diags.Add(newSemaErrorAt(n.Span(), "variable %q declared void", n.Name))
	}

	if ty := n.Type; ty.Kind == TyArray && ty.ArraySize != nil && *ty.ArraySize == 0 {
		a.diags.Add(newSemaErrorAt(n.Span(), "array %q declared with zero size", n.Name))
	}

	kind := SymVar
	if n.IsTypedef {
		kind = SymTypedef
	}
	if err := a.syms.Declare(&Symbol{Name: n.Name, Kind: kind, Type: n.Type, Storage: n.Storage, DefinedAt: n.Span()}); err != nil {
		a.diags.Add(err.(*SemaError))
	}

	if n.IsTypedef {
		return
	}

	staticDuration := fileScope || n.Storage == TkStatic
	a.checkInitializer(n, staticDuration)
}

// checkFunctionDecl validates a function prototype or definition: it
// declares the function's own symbol, then (for a definition) opens a
// new scope binding each parameter before walking the body.
func (a *Analyzer) checkFunctionDecl(n *FunctionDecl) {
	if err := a.syms.Declare(&Symbol{Name: n.Name, Kind: SymFunc, Type: n.Type, Storage: n.Storage, DefinedAt: n.Span()}); err != nil {
		a.diags.Add(err.(*SemaError))
	}
	if n.Body == nil {
		return
	}

	prevReturn := a.funcReturn
	prevLabels := a.labels
	prevGotos := a.gotoTargets
	a.funcReturn = n.Type.Return
	a.labels = map[string]bool{}
	a.gotoTargets = nil

	a.syms.Push()
	for _, param := range n.Params {
		if param.Name == "" {
			continue
		}
		a.syms.Declare(&Symbol{Name: param.Name, Kind: SymVar, Type: param.Type})
	}
	a.checkStmt(n.Body)
	a.syms.Pop()

	for _, g := range a.gotoTargets {
		if !a.labels[g.Label] {
			a.diags.Add(newSemaErrorAt(g.Span(), "use of undeclared label %q", g.Label))
		}
	}

	a.funcReturn = prevReturn
	a.labels = prevLabels
	a.gotoTargets = prevGotos
}

func (a *Analyzer) checkStmt(s Stmt) {
	switch n := s.(type) {
	case *ExprStmt:
		if n.X != nil {
			a.typeOf(n.X)
		}
	case *CompoundStmt:
		a.syms.Push()
		for _, item := range n.Items {
			switch it := item.(type) {
			case Decl:
				if vd, ok := it.(*VarDecl); ok {
					a.checkVarDecl(vd, false)
				} else if fd, ok := it.(*FunctionDecl); ok {
					a.checkFunctionDecl(fd)
				}
			case Stmt:
				a.checkStmt(it)
			}
		}
		a.syms.Pop()
	case *IfStmt:
		a.typeOf(n.Cond)
		a.checkStmt(n.Then)
		if n.Else != nil {
			a.checkStmt(n.Else)
		}
	case *WhileStmt:
		a.typeOf(n.Cond)
		a.loopDepth++
		a.checkStmt(n.Body)
		a.loopDepth--
	case *DoWhileStmt:
		a.loopDepth++
		a.checkStmt(n.Body)
		a.loopDepth--
		a.typeOf(n.Cond)
	case *ForStmt:
		a.syms.Push()
		if es, ok := n.Init.(*ExprStmt); ok && es.X != nil {
			a.typeOf(es.X)
		}
		if n.Cond != nil {
			a.typeOf(n.Cond)
		}
		if n.Post != nil {
			a.typeOf(n.Post)
		}
		a.loopDepth++
		a.checkStmt(n.Body)
		a.loopDepth--
		a.syms.Pop()
	case *ReturnStmt:
		if n.Value != nil {
			ty := a.typeOf(n.Value)
			if a.funcReturn != nil && !a.assignable(a.funcReturn, ty, n.Value) {
				a.diags.Add(newSemaErrorAt(n.Span(), "incompatible return type"))
			}
		}
	case *BreakStmt:
		if a.loopDepth == 0 && a.switchDepth == 0 {
			a.diags.Add(newSemaErrorAt(n.Span(), "'break' statement not in loop or switch"))
		}
	case *ContinueStmt:
		if a.loopDepth == 0 {
			a.diags.Add(newSemaErrorAt(n.Span(), "'continue' statement not in loop"))
		}
	case *GotoStmt:
		a.gotoTargets = append(a.gotoTargets, n)
	case *LabeledStmt:
		a.labels[n.Label] = true
		a.checkStmt(n.Stmt)
	case *CaseStmt:
		if a.switchDepth == 0 {
			kind := "case"
			if n.Value == nil {
				kind = "default"
			}
			a.diags.Add(newSemaErrorAt(n.Span(), "'%s' statement not in switch", kind))
		}
		if n.Value != nil {
			a.typeOf(n.Value)
		}
		a.checkStmt(n.Stmt)
	case *SwitchStmt:
		tagTy := a.typeOf(n.Tag)
		if tagTy != nil && !tagTy.IsInteger() {
			a.diags.Add(newSemaErrorAt(n.Span(), "switch condition must have integer type"))
		}
		a.checkDuplicateCases(n.Body)
		a.switchDepth++
		a.checkStmt(n.Body)
		a.switchDepth--
	}
}

// checkDuplicateCases pre-scans a switch's body for every *CaseStmt
// belonging directly to it (the same pre-scan shape lowerSwitch's own
// `collect` walk uses in ir_stmt.go, stopping at a nested switch's
// boundary rather than folding its case labels into this one) and
// reports a repeated case constant, or a second `default`, as a
// semantic error — spec §8's "case 1: case 1: ... the specification
// treats the duplicate as a semantic error to surface" requirement.
// lowerSwitch's own dedup only decides which block a repeated
// constant branches to once codegen is already committed to
// continuing past this error.
func (a *Analyzer) checkDuplicateCases(body Stmt) {
	seen := map[int64]bool{}
	sawDefault := false

	var walk func(Stmt)
	walk = func(s Stmt) {
		switch st := s.(type) {
		case *CompoundStmt:
			for _, item := range st.Items {
				if stmt, ok := item.(Stmt); ok {
					walk(stmt)
				}
			}
		case *CaseStmt:
			if st.Value == nil {
				if sawDefault {
					a.diags.Add(newSemaErrorAt(st.Span(), "multiple default labels in one switch"))
				}
				sawDefault = true
			} else if v, err := EvalICE(st.Value, a.enumEnv, a.Target); err == nil {
				if seen[v] {
					a.diags.Add(newSemaErrorAt(st.Span(), "duplicate case value '%d'", v))
				}
				seen[v] = true
			}
			walk(st.Stmt)
		case *LabeledStmt:
			walk(st.Stmt)
		case *IfStmt:
			walk(st.Then)
			if st.Else != nil {
				walk(st.Else)
			}
		}
	}
	walk(body)
}
