// Package syntax defines the rewritable tree built from a strategy script.
//
// The tree is a closed set of node kinds. Consumers dispatch on Kind (or on the
// concrete type) instead of extending the set; every stage of the converter
// relies on knowing all kinds up front.
package syntax

// Kind enumerates every node kind of the tree.
type Kind int

const (
	KindInvalid Kind = iota

	// Statements.
	KindExprStmt
	KindAssign
	KindAugAssign
	KindAnnAssign
	KindFuncDef
	KindClassDef
	KindIf
	KindFor
	KindWhile
	KindTry
	KindWith
	KindReturn
	KindPass
	KindBreak
	KindContinue
	KindGlobal
	KindNonlocal
	KindImport
	KindFromImport
	KindRaise
	KindAssert
	KindDel
	KindComment
	KindTombstone

	// Expressions.
	KindName
	KindAttribute
	KindCall
	KindKeyword
	KindStarred
	KindSubscript
	KindSlice
	KindLiteral
	KindList
	KindTuple
	KindDict
	KindSet
	KindBinOp
	KindUnaryOp
	KindCompare
	KindIfExp
	KindLambda
	KindComprehension
	KindParen
	KindAwait
	KindYield
)

var kindNames = map[Kind]string{
	KindExprStmt: "ExprStmt", KindAssign: "Assign", KindAugAssign: "AugAssign",
	KindAnnAssign: "AnnAssign", KindFuncDef: "FuncDef", KindClassDef: "ClassDef",
	KindIf: "If", KindFor: "For", KindWhile: "While", KindTry: "Try", KindWith: "With",
	KindReturn: "Return", KindPass: "Pass", KindBreak: "Break", KindContinue: "Continue",
	KindGlobal: "Global", KindNonlocal: "Nonlocal", KindImport: "Import",
	KindFromImport: "FromImport", KindRaise: "Raise", KindAssert: "Assert", KindDel: "Del",
	KindComment: "Comment", KindTombstone: "Tombstone",
	KindName: "Name", KindAttribute: "Attribute", KindCall: "Call", KindKeyword: "Keyword",
	KindStarred: "Starred", KindSubscript: "Subscript", KindSlice: "Slice",
	KindLiteral: "Literal", KindList: "List", KindTuple: "Tuple", KindDict: "Dict",
	KindSet: "Set", KindBinOp: "BinOp", KindUnaryOp: "UnaryOp", KindCompare: "Compare",
	KindIfExp: "IfExp", KindLambda: "Lambda", KindComprehension: "Comprehension",
	KindParen: "Paren", KindAwait: "Await", KindYield: "Yield",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Invalid"
}

// Node is implemented by every tree node.
type Node interface {
	Kind() Kind
	// Line is the 1-based source line the node started on, or 0 for synthesized nodes.
	Line() int
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	Meta() *StmtMeta
	stmtNode()
}

// StmtMeta carries the layout information shared by all statements.
type StmtMeta struct {
	Pos int
	// Trailing is a comment found on the statement's own line, including the '#'.
	Trailing string
	// Marks are review notes attached by the converter; rendered as marker comments.
	Marks []string
}

func (m *StmtMeta) Line() int       { return m.Pos }
func (m *StmtMeta) Meta() *StmtMeta { return m }
func (m *StmtMeta) stmtNode()       {}

// Mark attaches a review note unless the same note is already present.
func (m *StmtMeta) Mark(note string) {
	for _, existing := range m.Marks {
		if existing == note {
			return
		}
	}
	m.Marks = append(m.Marks, note)
}

// Module is the root of a parsed script.
type Module struct {
	Body []Stmt
}

// ---- statements ----

type ExprStmt struct {
	StmtMeta
	X Expr
}

// Assign is `t1 = t2 = value`.
type Assign struct {
	StmtMeta
	Targets []Expr
	Value   Expr
}

type AugAssign struct {
	StmtMeta
	Target Expr
	Op     string // "+=", "-=", ...
	Value  Expr
}

type AnnAssign struct {
	StmtMeta
	Target     Expr
	Annotation Expr
	Value      Expr // may be nil
}

// Param is one entry of a parameter list. Star is "", "*", "**" or "/";
// a bare "*" or "/" separator has an empty Name.
type Param struct {
	Name       string
	Star       string
	Annotation Expr
	Default    Expr
}

type FuncDef struct {
	StmtMeta
	Decorators []Expr
	Async      bool
	Name       string
	Params     []*Param
	Returns    Expr
	Body       []Stmt
}

type ClassDef struct {
	StmtMeta
	Decorators []Expr
	Name       string
	Bases      []Expr // may contain *Keyword and *Starred
	Body       []Stmt
}

// If holds an `elif` chain as a single nested If in Else with IsElif set.
type If struct {
	StmtMeta
	IsElif       bool
	Test         Expr
	Body         []Stmt
	Else         []Stmt
	ElseTrailing string
}

type For struct {
	StmtMeta
	Async        bool
	Target       Expr
	Iter         Expr
	Body         []Stmt
	Else         []Stmt
	ElseTrailing string
}

type While struct {
	StmtMeta
	Test         Expr
	Body         []Stmt
	Else         []Stmt
	ElseTrailing string
}

type ExceptHandler struct {
	Pos      int
	Type     Expr // nil for a bare except
	Name     string
	Body     []Stmt
	Trailing string
}

type Try struct {
	StmtMeta
	Body            []Stmt
	Handlers        []*ExceptHandler
	Else            []Stmt
	ElseTrailing    string
	Finally         []Stmt
	FinallyTrailing string
}

type WithItem struct {
	Context Expr
	As      Expr // may be nil
}

type With struct {
	StmtMeta
	Async bool
	Items []*WithItem
	Body  []Stmt
}

type Return struct {
	StmtMeta
	Value Expr // may be nil
}

type Pass struct{ StmtMeta }

type Break struct{ StmtMeta }

type Continue struct{ StmtMeta }

type Global struct {
	StmtMeta
	Names []string
}

type Nonlocal struct {
	StmtMeta
	Names []string
}

// Alias is `name as asname` in an import.
type Alias struct {
	Name   string
	AsName string
}

type Import struct {
	StmtMeta
	Names []*Alias
}

// FromImport is `from module import names`; a star import has a single "*" name.
type FromImport struct {
	StmtMeta
	Module string
	Names  []*Alias
}

type Raise struct {
	StmtMeta
	Exc   Expr
	Cause Expr
}

type Assert struct {
	StmtMeta
	Test Expr
	Msg  Expr
}

type Del struct {
	StmtMeta
	Targets []Expr
}

// Comment is a comment-only source line. Text includes the leading '#'.
type Comment struct {
	StmtMeta
	Text string
}

// Tombstone stands in for a statement deleted by the converter.
type Tombstone struct {
	StmtMeta
	Original string
	Reason   string
}

func (*ExprStmt) Kind() Kind   { return KindExprStmt }
func (*Assign) Kind() Kind     { return KindAssign }
func (*AugAssign) Kind() Kind  { return KindAugAssign }
func (*AnnAssign) Kind() Kind  { return KindAnnAssign }
func (*FuncDef) Kind() Kind    { return KindFuncDef }
func (*ClassDef) Kind() Kind   { return KindClassDef }
func (*If) Kind() Kind         { return KindIf }
func (*For) Kind() Kind        { return KindFor }
func (*While) Kind() Kind      { return KindWhile }
func (*Try) Kind() Kind        { return KindTry }
func (*With) Kind() Kind       { return KindWith }
func (*Return) Kind() Kind     { return KindReturn }
func (*Pass) Kind() Kind       { return KindPass }
func (*Break) Kind() Kind      { return KindBreak }
func (*Continue) Kind() Kind   { return KindContinue }
func (*Global) Kind() Kind     { return KindGlobal }
func (*Nonlocal) Kind() Kind   { return KindNonlocal }
func (*Import) Kind() Kind     { return KindImport }
func (*FromImport) Kind() Kind { return KindFromImport }
func (*Raise) Kind() Kind      { return KindRaise }
func (*Assert) Kind() Kind     { return KindAssert }
func (*Del) Kind() Kind        { return KindDel }
func (*Comment) Kind() Kind    { return KindComment }
func (*Tombstone) Kind() Kind  { return KindTombstone }

// ---- expressions ----

// ExprPos is embedded by every expression.
type ExprPos struct {
	Pos int
}

func (p *ExprPos) Line() int { return p.Pos }
func (p *ExprPos) exprNode() {}

type Name struct {
	ExprPos
	Id string
}

type Attribute struct {
	ExprPos
	X    Expr
	Attr string
}

// Call arguments are positional expressions, *Starred (for *a and **kw) and *Keyword.
type Call struct {
	ExprPos
	Func Expr
	Args []Expr
}

type Keyword struct {
	ExprPos
	Name  string
	Value Expr
}

type Starred struct {
	ExprPos
	Double bool
	X      Expr
}

type Subscript struct {
	ExprPos
	X     Expr
	Index Expr
}

type Slice struct {
	ExprPos
	Lo, Hi, Step Expr // each may be nil
	HasStep      bool
}

// LitKind classifies literal tokens.
type LitKind int

const (
	LitNumber LitKind = iota
	LitString
	LitTrue
	LitFalse
	LitNone
	LitEllipsis
)

// Literal keeps the raw source text so printing reproduces it exactly.
// Implicitly concatenated strings keep every piece in Raw, space separated.
type Literal struct {
	ExprPos
	Lit LitKind
	Raw string
}

type List struct {
	ExprPos
	Elts []Expr
}

// Tuple is an unparenthesized tuple; `(a, b)` parses as Paren{Tuple}.
type Tuple struct {
	ExprPos
	Elts []Expr
}

// Dict entries with a nil key are `**value` unpackings.
type Dict struct {
	ExprPos
	Keys   []Expr
	Values []Expr
}

type Set struct {
	ExprPos
	Elts []Expr
}

// BinOp covers arithmetic, bitwise and boolean (`and`, `or`) operators.
type BinOp struct {
	ExprPos
	X  Expr
	Op string
	Y  Expr
}

type UnaryOp struct {
	ExprPos
	Op string // "-", "+", "~", "not"
	X  Expr
}

// Compare is a comparison chain: X Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	ExprPos
	X           Expr
	Ops         []string
	Comparators []Expr
}

type IfExp struct {
	ExprPos
	Body Expr
	Test Expr
	Else Expr
}

type Lambda struct {
	ExprPos
	Params []*Param
	Body   Expr
}

// CompKind selects the bracket form of a comprehension.
type CompKind int

const (
	CompList CompKind = iota
	CompSet
	CompDict
	CompGen
)

type CompClause struct {
	Async  bool
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// Comprehension covers list/set/dict comprehensions and generator expressions.
// Bare marks a generator passed as the sole call argument without its own parentheses.
type Comprehension struct {
	ExprPos
	Comp    CompKind
	Key     Expr // dict comprehensions only
	Elt     Expr
	Clauses []*CompClause
	Bare    bool
}

type Paren struct {
	ExprPos
	X Expr
}

type Await struct {
	ExprPos
	X Expr
}

type Yield struct {
	ExprPos
	From bool
	X    Expr // may be nil
}

func (*Name) Kind() Kind          { return KindName }
func (*Attribute) Kind() Kind     { return KindAttribute }
func (*Call) Kind() Kind          { return KindCall }
func (*Keyword) Kind() Kind       { return KindKeyword }
func (*Starred) Kind() Kind       { return KindStarred }
func (*Subscript) Kind() Kind     { return KindSubscript }
func (*Slice) Kind() Kind         { return KindSlice }
func (*Literal) Kind() Kind       { return KindLiteral }
func (*List) Kind() Kind          { return KindList }
func (*Tuple) Kind() Kind         { return KindTuple }
func (*Dict) Kind() Kind          { return KindDict }
func (*Set) Kind() Kind           { return KindSet }
func (*BinOp) Kind() Kind         { return KindBinOp }
func (*UnaryOp) Kind() Kind       { return KindUnaryOp }
func (*Compare) Kind() Kind       { return KindCompare }
func (*IfExp) Kind() Kind         { return KindIfExp }
func (*Lambda) Kind() Kind        { return KindLambda }
func (*Comprehension) Kind() Kind { return KindComprehension }
func (*Paren) Kind() Kind         { return KindParen }
func (*Await) Kind() Kind         { return KindAwait }
func (*Yield) Kind() Kind         { return KindYield }

// NewName builds a synthesized name reference.
func NewName(id string) *Name { return &Name{Id: id} }

// DottedName returns "a.b.c" for a Name/Attribute chain, or "" for anything else.
func DottedName(e Expr) string {
	switch x := e.(type) {
	case *Name:
		return x.Id
	case *Attribute:
		base := DottedName(x.X)
		if base == "" {
			return ""
		}
		return base + "." + x.Attr
	}
	return ""
}

// DottedExpr builds a Name/Attribute chain from "a.b.c".
func DottedExpr(path string, line int) Expr {
	start := 0
	var e Expr
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		part := path[start:i]
		start = i + 1
		if e == nil {
			e = &Name{ExprPos: ExprPos{Pos: line}, Id: part}
			continue
		}
		e = &Attribute{ExprPos: ExprPos{Pos: line}, X: e, Attr: part}
	}
	return e
}
