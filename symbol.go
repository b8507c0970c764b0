package cc1

// SymbolKind distinguishes what an ordinary-namespace binding names:
// a C89 translation unit keeps one namespace for tags (struct/union/
// enum) and a separate "ordinary" namespace shared by objects,
// functions, typedef names, and enumeration constants (spec §3.2).
type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymFunc
	SymTypedef
	SymEnumConst
)

// Symbol is one ordinary-namespace binding.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Type       *CType
	Storage    TokenKind
	EnumValue  int64 // valid when Kind == SymEnumConst
	DefinedAt  Span
}

// TagKind distinguishes the three tag namespaces (struct/union/enum
// all share spelling rules but are looked up together as "the tag
// namespace" in spec §3.2).
type TagKind int

const (
	TagStruct TagKind = iota
	TagUnion
	TagEnum
)

// Tag is one struct/union/enum tag binding.
type Tag struct {
	Name string
	Kind TagKind
	Type *CType
}

// Scope is one block's two namespaces: ordinary identifiers and tags.
// File scope is just the outermost Scope in the stack.
type Scope struct {
	parent   *Scope
	ordinary map[string]*Symbol
	tags     map[string]*Tag
	labels   map[string]bool // never set; the analyzer keeps labels in Analyzer.labels
}

// SymbolTable is the scope stack the analyzer pushes and pops as it
// walks into and out of compound statements, function bodies, and
// `for` statements.
type SymbolTable struct {
	top *Scope
}

func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{}
	t.Push()
	return t
}

// Push opens a new nested scope.
func (t *SymbolTable) Push() {
	t.top = &Scope{parent: t.top, ordinary: map[string]*Symbol{}, tags: map[string]*Tag{}}
}

// Pop closes the innermost scope.
func (t *SymbolTable) Pop() {
	if t.top != nil {
		t.top = t.top.parent
	}
}

// AtFileScope reports whether no block scope has been pushed.
func (t *SymbolTable) AtFileScope() bool {
	return t.top != nil && t.top.parent == nil
}

// Declare binds sym in the innermost scope's ordinary namespace,
// reporting a redeclaration conflict if one exists in that same
// scope (shadowing an outer scope's binding is legal, spec §3.2).
func (t *SymbolTable) Declare(sym *Symbol) error {
	if existing, ok := t.top.ordinary[sym.Name]; ok {
		if !t.AtFileScope() || existing.Kind != SymVar || sym.Kind != SymVar ||
			existing.Storage != TkExtern || sym.Storage != TkExtern {
			return newSemaError("redeclaration of %q", sym.Name)
		}
		if !TypeEqual(existing.Type, sym.Type) {
			return newSemaError("conflicting types for %q", sym.Name)
		}
	}
	t.top.ordinary[sym.Name] = sym
	return nil
}

// Lookup searches the ordinary namespace from innermost to outermost
// scope.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for s := t.top; s != nil; s = s.parent {
		if sym, ok := s.ordinary[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupLocal searches only the innermost scope. Declare makes its
// own same-scope check, and nothing in this package calls LookupLocal.
func (t *SymbolTable) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := t.top.ordinary[name]
	return sym, ok
}

// IsTypedefName reports whether name is bound to a typedef in any
// enclosing scope. The parser does not call it: it resolves the
// `T * x;` typedef-name ambiguity (spec §5) with its own typedef-name
// scopes (parser.go's parserScope).
func (t *SymbolTable) IsTypedefName(name string) bool {
	sym, ok := t.Lookup(name)
	return ok && sym.Kind == SymTypedef
}

// DeclareTag binds a struct/union/enum tag in the innermost scope.
func (t *SymbolTable) DeclareTag(tag *Tag) {
	t.top.tags[tag.Name] = tag
}

// LookupTag searches the tag namespace from innermost to outermost
// scope.
func (t *SymbolTable) LookupTag(name string) (*Tag, bool) {
	for s := t.top; s != nil; s = s.parent {
		if tag, ok := s.tags[name]; ok {
			return tag, true
		}
	}
	return nil, false
}
