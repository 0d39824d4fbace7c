package compiler

import "github.com/qbvm/qbvm/bytecode"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for the dialect
// ---------------------------------------------------------------------------

// node carries the source locus every AST node has.
type node struct {
	Locus bytecode.Locus
}

func (n node) Loc() bytecode.Locus { return n.Locus }

// Node is implemented by all AST nodes.
type Node interface {
	Loc() bytecode.Locus
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// NumberLit is an integer or floating literal.
type NumberLit struct {
	node
	Value float64
}

// StringLit is a double-quoted string literal (no escapes).
type StringLit struct {
	node
	Value string
}

// Ident is a bare identifier reference: a scalar variable, a zero-argument
// function, or a zero-argument syscall; the code generator decides which.
type Ident struct {
	node
	Name string
}

// CallOrIndex is the syntactically ambiguous form NAME(args): an array
// access, a function call, or a syscall. Resolution happens at code-gen
// time from the declaration tables.
type CallOrIndex struct {
	node
	Name string
	Args []Expr
}

// Member is a record field access target.field.
type Member struct {
	node
	Target Expr
	Field  string
}

// Unary is a prefix operator application ("-" or "NOT").
type Unary struct {
	node
	Op      string
	Operand Expr
}

// Binary is an infix operator application.
type Binary struct {
	node
	Op    string
	Left  Expr
	Right Expr
}

func (*NumberLit) exprNode()   {}
func (*StringLit) exprNode()   {}
func (*Ident) exprNode()       {}
func (*CallOrIndex) exprNode() {}
func (*Member) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Program is the top-level statement list.
type Program struct {
	node
	Statements []Stmt
}

// LabelStmt binds a jump target: NAME: or a leading line number.
type LabelStmt struct {
	node
	Name string
}

// AssignStmt is target = value (LET optional).
type AssignStmt struct {
	node
	Target Expr
	Value  Expr
}

// CallStmt invokes a SUB or system subroutine as a statement, with or
// without the CALL keyword.
type CallStmt struct {
	node
	Name string
	Args []Expr
}

// ElseIf is one ELSEIF arm of a block IF.
type ElseIf struct {
	Locus bytecode.Locus
	Cond  Expr
	Body  []Stmt
}

// IfStmt covers both the single-line and block forms.
type IfStmt struct {
	node
	Cond    Expr
	Then    []Stmt
	ElseIfs []ElseIf
	Else    []Stmt
}

// ForStmt is FOR counter = From TO To [STEP Step] ... NEXT.
type ForStmt struct {
	node
	Counter string
	From    Expr
	To      Expr
	Step    Expr   // nil means 1
	NextVar string // counter named on NEXT, "" for a bare NEXT
	Body    []Stmt
}

// WhileStmt is WHILE cond ... WEND.
type WhileStmt struct {
	node
	Cond Expr
	Body []Stmt
}

// DoStmt is DO [WHILE|UNTIL cond] ... LOOP [WHILE|UNTIL cond].
// Cond is nil for an unconditional loop.
type DoStmt struct {
	node
	Cond     Expr
	Until    bool
	PostTest bool
	Body     []Stmt
}

// GotoStmt jumps to a label or line number.
type GotoStmt struct {
	node
	Target string
}

// GosubStmt calls a label sharing the caller's variables.
type GosubStmt struct {
	node
	Target string
}

// ReturnStmt returns from a GOSUB.
type ReturnStmt struct {
	node
}

// EndStmt halts the program.
type EndStmt struct {
	node
}

// ExitStmt leaves the innermost FOR/DO loop or the enclosing routine.
type ExitStmt struct {
	node
	What string // "FOR", "DO", "SUB", "FUNCTION"
}

// PrintItem is one PRINT list entry: an expression (nil for a bare
// separator) followed by ';', ',' or nothing.
type PrintItem struct {
	Expr Expr
	Sep  byte // ';', ',' or 0
}

// PrintStmt is PRINT [USING fmt;] items.
type PrintStmt struct {
	node
	Using Expr // format expression, nil without USING
	Items []PrintItem
}

// InputStmt reads one line into one variable, with an optional prompt.
type InputStmt struct {
	node
	Prompt string
	Var    Expr
}

// ReadStmt pulls pooled DATA values into variables.
type ReadStmt struct {
	node
	Vars []Expr
}

// DataItem is one pooled literal; a missing entry (DATA ,,) is null.
type DataItem struct {
	Null  bool
	IsStr bool
	Num   float64
	Str   string
}

// DataStmt contributes literals to the program's DATA pool.
type DataStmt struct {
	node
	Items []DataItem
}

// RestoreStmt repositions the DATA pointer; empty label means the start.
type RestoreStmt struct {
	node
	Label string
}

// DimBound is one array dimension; Lower is nil for the implicit base.
type DimBound struct {
	Lower Expr
	Upper Expr
}

// DimItem is one DIM entry.
type DimItem struct {
	Locus    bytecode.Locus
	Name     string
	Bounds   []DimBound // nil for scalars
	TypeName string     // "" derives from sigil/default
}

// DimStmt declares scalars and arrays, optionally SHARED.
type DimStmt struct {
	node
	Shared bool
	Items  []DimItem
}

// SharedStmt names caller-shared variables inside a SUB/FUNCTION.
type SharedStmt struct {
	node
	Names []string
}

// OptionStmt is OPTION BASE 0|1.
type OptionStmt struct {
	node
	Base int
}

// Param is a declared SUB/FUNCTION parameter.
type Param struct {
	Name     string
	TypeName string // "" derives from sigil/default
}

// DeclareStmt is DECLARE SUB/FUNCTION name(params).
type DeclareStmt struct {
	node
	IsFunction bool
	Name       string
	Params     []Param
}

// SubDecl is SUB name(params) ... END SUB.
type SubDecl struct {
	node
	Name   string
	Params []Param
	Body   []Stmt
}

// FuncDecl is FUNCTION name(params) ... END FUNCTION. The function name
// doubles as its result variable.
type FuncDecl struct {
	node
	Name   string
	Params []Param
	Body   []Stmt
}

// FieldDecl is one field of a TYPE block.
type FieldDecl struct {
	Locus    bytecode.Locus
	Name     string
	TypeName string
}

// TypeDecl is TYPE name ... END TYPE.
type TypeDecl struct {
	node
	Name   string
	Fields []FieldDecl
}

// OpenStmt is OPEN file$ FOR mode AS #n.
type OpenStmt struct {
	node
	File    Expr
	Mode    string // "INPUT", "OUTPUT", "APPEND"
	FileNum Expr
}

// CloseStmt closes listed channels, or all when empty.
type CloseStmt struct {
	node
	FileNums []Expr
}

// WriteStmt is WRITE #n, exprs.
type WriteStmt struct {
	node
	FileNum Expr
	Args    []Expr
}

// InputFileStmt is INPUT #n, vars.
type InputFileStmt struct {
	node
	FileNum Expr
	Vars    []Expr
}

func (*Program) stmtNode()       {}
func (*LabelStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()    {}
func (*CallStmt) stmtNode()      {}
func (*IfStmt) stmtNode()        {}
func (*ForStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()     {}
func (*DoStmt) stmtNode()        {}
func (*GotoStmt) stmtNode()      {}
func (*GosubStmt) stmtNode()     {}
func (*ReturnStmt) stmtNode()    {}
func (*EndStmt) stmtNode()       {}
func (*ExitStmt) stmtNode()      {}
func (*PrintStmt) stmtNode()     {}
func (*InputStmt) stmtNode()     {}
func (*ReadStmt) stmtNode()      {}
func (*DataStmt) stmtNode()      {}
func (*RestoreStmt) stmtNode()   {}
func (*DimStmt) stmtNode()       {}
func (*SharedStmt) stmtNode()    {}
func (*OptionStmt) stmtNode()    {}
func (*DeclareStmt) stmtNode()   {}
func (*SubDecl) stmtNode()       {}
func (*FuncDecl) stmtNode()      {}
func (*TypeDecl) stmtNode()      {}
func (*OpenStmt) stmtNode()      {}
func (*CloseStmt) stmtNode()     {}
func (*WriteStmt) stmtNode()     {}
func (*InputFileStmt) stmtNode() {}
