package compiler

import (
	"strconv"
	"strings"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// The dialect grammar
// ---------------------------------------------------------------------------
//
// Terminals are quoted ('PRINT'); bare lower-case names are non-terminals
// except the declared token classes (identifier, integer, float, string,
// newline). Rule declaration order matters: when the forest is ambiguous
// the evaluator picks the earliest-declared derivation.

// identName canonicalizes an identifier token (the dialect is
// case-insensitive; the sigil is preserved).
func identName(v interface{}) string {
	return strings.ToUpper(v.(*Token).Text)
}

func asStmts(v interface{}) []Stmt {
	if v == nil {
		return nil
	}
	return v.([]Stmt)
}

func asExpr(v interface{}) Expr {
	return v.(Expr)
}

func asExprs(v interface{}) []Expr {
	if v == nil {
		return nil
	}
	return v.([]Expr)
}

// elseChain carries the tail of a block IF during parsing.
type elseChain struct {
	elseIfs []ElseIf
	els     []Stmt
}

// NewGrammar builds the dialect's rule set.
func NewGrammar() *RuleSet {
	rs := NewRuleSet()
	for _, class := range []string{TokIdentifier, TokInteger, TokFloat, TokString, TokNewline} {
		rs.DeclareToken(class)
	}

	add := func(name, rhs string, action Action) {
		rs.Add(name, strings.Fields(rhs), action)
	}

	// ----- program structure ------------------------------------------------

	add("_start", "program", nil)

	add("program", "statements", func(c []interface{}, l bytecode.Locus) interface{} {
		return &Program{node: node{l}, Statements: asStmts(c[0])}
	})

	add("statements", "", func(c []interface{}, l bytecode.Locus) interface{} {
		return []Stmt{}
	})
	add("statements", "statements statement", func(c []interface{}, l bytecode.Locus) interface{} {
		list := asStmts(c[0])
		if c[1] != nil {
			list = append(list, c[1].(Stmt))
		}
		return list
	})

	// A label binds at the start of a line; a leading integer is a classic
	// line number. Declared before the statement wrappers so the label
	// reading of "NAME:" wins the forest.
	add("statement", "labeldef", nil)
	add("statement", "stmt separator", nil)
	add("statement", "separator", func(c []interface{}, l bytecode.Locus) interface{} {
		return nil
	})

	add("labeldef", "identifier ':'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &LabelStmt{node: node{l}, Name: identName(c[0])}
	})
	add("labeldef", "integer", func(c []interface{}, l bytecode.Locus) interface{} {
		return &LabelStmt{node: node{l}, Name: c[0].(*Token).Text}
	})

	add("separator", "':'", nil)
	add("separator", "newline", nil)

	// ----- declarations -----------------------------------------------------

	add("stmt", "dimstmt", nil)
	add("stmt", "sharedstmt", nil)
	add("stmt", "optionstmt", nil)
	add("stmt", "declarestmt", nil)
	add("stmt", "subdecl", nil)
	add("stmt", "funcdecl", nil)
	add("stmt", "typedecl", nil)
	add("stmt", "ifline", nil)
	add("stmt", "ifblock", nil)
	add("stmt", "forstmt", nil)
	add("stmt", "whilestmt", nil)
	add("stmt", "dostmt", nil)
	add("stmt", "gotostmt", nil)
	add("stmt", "gosubstmt", nil)
	add("stmt", "returnstmt", nil)
	add("stmt", "endstmt", nil)
	add("stmt", "exitstmt", nil)
	add("stmt", "printstmt", nil)
	add("stmt", "inputstmt", nil)
	add("stmt", "readstmt", nil)
	add("stmt", "datastmt", nil)
	add("stmt", "restorestmt", nil)
	add("stmt", "openstmt", nil)
	add("stmt", "closestmt", nil)
	add("stmt", "writestmt", nil)
	add("stmt", "inputfilestmt", nil)
	add("stmt", "assign", nil)
	add("stmt", "callstmt", nil)

	add("dimstmt", "'DIM' dimlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DimStmt{node: node{l}, Items: c[1].([]DimItem)}
	})
	add("dimstmt", "'DIM' 'SHARED' dimlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DimStmt{node: node{l}, Shared: true, Items: c[2].([]DimItem)}
	})

	add("dimlist", "dimitem", func(c []interface{}, l bytecode.Locus) interface{} {
		return []DimItem{c[0].(DimItem)}
	})
	add("dimlist", "dimlist ',' dimitem", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]DimItem), c[2].(DimItem))
	})

	add("dimitem", "identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return DimItem{Locus: l, Name: identName(c[0])}
	})
	add("dimitem", "identifier 'AS' typename", func(c []interface{}, l bytecode.Locus) interface{} {
		return DimItem{Locus: l, Name: identName(c[0]), TypeName: c[2].(string)}
	})
	add("dimitem", "identifier '(' boundslist ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return DimItem{Locus: l, Name: identName(c[0]), Bounds: c[2].([]DimBound)}
	})
	add("dimitem", "identifier '(' boundslist ')' 'AS' typename", func(c []interface{}, l bytecode.Locus) interface{} {
		return DimItem{Locus: l, Name: identName(c[0]), Bounds: c[2].([]DimBound), TypeName: c[5].(string)}
	})

	add("boundslist", "bounds", func(c []interface{}, l bytecode.Locus) interface{} {
		return []DimBound{c[0].(DimBound)}
	})
	add("boundslist", "boundslist ',' bounds", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]DimBound), c[2].(DimBound))
	})

	add("bounds", "expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return DimBound{Upper: asExpr(c[0])}
	})
	add("bounds", "expr 'TO' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return DimBound{Lower: asExpr(c[0]), Upper: asExpr(c[2])}
	})

	add("typename", "'INTEGER'", func(c []interface{}, l bytecode.Locus) interface{} { return "INTEGER" })
	add("typename", "'LONG'", func(c []interface{}, l bytecode.Locus) interface{} { return "LONG" })
	add("typename", "'SINGLE'", func(c []interface{}, l bytecode.Locus) interface{} { return "SINGLE" })
	add("typename", "'DOUBLE'", func(c []interface{}, l bytecode.Locus) interface{} { return "DOUBLE" })
	add("typename", "'STRING'", func(c []interface{}, l bytecode.Locus) interface{} { return "STRING" })
	add("typename", "identifier", func(c []interface{}, l bytecode.Locus) interface{} { return identName(c[0]) })

	add("sharedstmt", "'SHARED' identlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &SharedStmt{node: node{l}, Names: c[1].([]string)}
	})

	add("identlist", "identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return []string{identName(c[0])}
	})
	add("identlist", "identlist ',' identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]string), identName(c[2]))
	})

	add("optionstmt", "'OPTION' 'BASE' integer", func(c []interface{}, l bytecode.Locus) interface{} {
		base, _ := strconv.Atoi(c[2].(*Token).Text)
		return &OptionStmt{node: node{l}, Base: base}
	})

	add("declarestmt", "'DECLARE' 'SUB' identifier paramdecl", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DeclareStmt{node: node{l}, Name: identName(c[2]), Params: c[3].([]Param)}
	})
	add("declarestmt", "'DECLARE' 'FUNCTION' identifier paramdecl", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DeclareStmt{node: node{l}, IsFunction: true, Name: identName(c[2]), Params: c[3].([]Param)}
	})

	add("paramdecl", "", func(c []interface{}, l bytecode.Locus) interface{} {
		return []Param{}
	})
	add("paramdecl", "'(' ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return []Param{}
	})
	add("paramdecl", "'(' paramlist ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return c[1]
	})

	add("paramlist", "param", func(c []interface{}, l bytecode.Locus) interface{} {
		return []Param{c[0].(Param)}
	})
	add("paramlist", "paramlist ',' param", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]Param), c[2].(Param))
	})

	add("param", "identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return Param{Name: identName(c[0])}
	})
	add("param", "identifier 'AS' typename", func(c []interface{}, l bytecode.Locus) interface{} {
		return Param{Name: identName(c[0]), TypeName: c[2].(string)}
	})

	add("subdecl", "'SUB' identifier paramdecl separator statements 'END' 'SUB'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &SubDecl{node: node{l}, Name: identName(c[1]), Params: c[2].([]Param), Body: asStmts(c[4])}
	})
	add("funcdecl", "'FUNCTION' identifier paramdecl separator statements 'END' 'FUNCTION'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &FuncDecl{node: node{l}, Name: identName(c[1]), Params: c[2].([]Param), Body: asStmts(c[4])}
	})

	add("typedecl", "'TYPE' identifier newline typefields 'END' 'TYPE'", func(c []interface{}, l bytecode.Locus) interface{} {
		var fields []FieldDecl
		if c[3] != nil {
			fields = c[3].([]FieldDecl)
		}
		return &TypeDecl{node: node{l}, Name: identName(c[1]), Fields: fields}
	})

	add("typefields", "", func(c []interface{}, l bytecode.Locus) interface{} {
		return []FieldDecl{}
	})
	add("typefields", "typefields identifier 'AS' typename newline", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]FieldDecl), FieldDecl{Locus: l, Name: identName(c[1]), TypeName: c[3].(string)})
	})
	add("typefields", "typefields newline", nil)

	// ----- control flow -----------------------------------------------------

	// Single-line IF: one statement per arm.
	add("ifline", "'IF' expr 'THEN' stmt", func(c []interface{}, l bytecode.Locus) interface{} {
		return &IfStmt{node: node{l}, Cond: asExpr(c[1]), Then: []Stmt{c[3].(Stmt)}}
	})
	add("ifline", "'IF' expr 'THEN' stmt 'ELSE' stmt", func(c []interface{}, l bytecode.Locus) interface{} {
		return &IfStmt{node: node{l}, Cond: asExpr(c[1]), Then: []Stmt{c[3].(Stmt)}, Else: []Stmt{c[5].(Stmt)}}
	})

	add("ifblock", "'IF' expr 'THEN' newline statements elsechain 'END' 'IF'", func(c []interface{}, l bytecode.Locus) interface{} {
		chain := c[5].(elseChain)
		return &IfStmt{
			node:    node{l},
			Cond:    asExpr(c[1]),
			Then:    asStmts(c[4]),
			ElseIfs: chain.elseIfs,
			Else:    chain.els,
		}
	})

	add("elsechain", "", func(c []interface{}, l bytecode.Locus) interface{} {
		return elseChain{}
	})
	add("elsechain", "'ELSE' separator statements", func(c []interface{}, l bytecode.Locus) interface{} {
		return elseChain{els: asStmts(c[2])}
	})
	add("elsechain", "'ELSEIF' expr 'THEN' separator statements elsechain", func(c []interface{}, l bytecode.Locus) interface{} {
		chain := c[5].(elseChain)
		arm := ElseIf{Locus: l, Cond: asExpr(c[1]), Body: asStmts(c[4])}
		return elseChain{elseIfs: append([]ElseIf{arm}, chain.elseIfs...), els: chain.els}
	})

	add("forstmt", "forheader separator statements nexttail", func(c []interface{}, l bytecode.Locus) interface{} {
		f := c[0].(*ForStmt)
		f.Body = asStmts(c[2])
		f.NextVar = c[3].(string)
		return f
	})
	add("forheader", "'FOR' identifier '=' expr 'TO' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ForStmt{node: node{l}, Counter: identName(c[1]), From: asExpr(c[3]), To: asExpr(c[5])}
	})
	add("forheader", "'FOR' identifier '=' expr 'TO' expr 'STEP' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ForStmt{node: node{l}, Counter: identName(c[1]), From: asExpr(c[3]), To: asExpr(c[5]), Step: asExpr(c[7])}
	})
	add("nexttail", "'NEXT'", func(c []interface{}, l bytecode.Locus) interface{} {
		return ""
	})
	add("nexttail", "'NEXT' identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return identName(c[1])
	})

	add("whilestmt", "'WHILE' expr separator statements 'WEND'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &WhileStmt{node: node{l}, Cond: asExpr(c[1]), Body: asStmts(c[3])}
	})

	add("dostmt", "'DO' separator statements 'LOOP'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DoStmt{node: node{l}, Body: asStmts(c[2])}
	})
	add("dostmt", "'DO' 'WHILE' expr separator statements 'LOOP'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DoStmt{node: node{l}, Cond: asExpr(c[2]), Body: asStmts(c[4])}
	})
	add("dostmt", "'DO' 'UNTIL' expr separator statements 'LOOP'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DoStmt{node: node{l}, Cond: asExpr(c[2]), Until: true, Body: asStmts(c[4])}
	})
	add("dostmt", "'DO' separator statements 'LOOP' 'WHILE' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DoStmt{node: node{l}, Cond: asExpr(c[5]), PostTest: true, Body: asStmts(c[2])}
	})
	add("dostmt", "'DO' separator statements 'LOOP' 'UNTIL' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DoStmt{node: node{l}, Cond: asExpr(c[5]), Until: true, PostTest: true, Body: asStmts(c[2])}
	})

	add("gotostmt", "'GOTO' target", func(c []interface{}, l bytecode.Locus) interface{} {
		return &GotoStmt{node: node{l}, Target: c[1].(string)}
	})
	add("gosubstmt", "'GOSUB' target", func(c []interface{}, l bytecode.Locus) interface{} {
		return &GosubStmt{node: node{l}, Target: c[1].(string)}
	})
	add("target", "identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return identName(c[0])
	})
	add("target", "integer", func(c []interface{}, l bytecode.Locus) interface{} {
		return c[0].(*Token).Text
	})

	add("returnstmt", "'RETURN'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ReturnStmt{node: node{l}}
	})
	add("endstmt", "'END'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &EndStmt{node: node{l}}
	})

	add("exitstmt", "'EXIT' 'FOR'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ExitStmt{node: node{l}, What: "FOR"}
	})
	add("exitstmt", "'EXIT' 'DO'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ExitStmt{node: node{l}, What: "DO"}
	})
	add("exitstmt", "'EXIT' 'SUB'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ExitStmt{node: node{l}, What: "SUB"}
	})
	add("exitstmt", "'EXIT' 'FUNCTION'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ExitStmt{node: node{l}, What: "FUNCTION"}
	})

	// ----- I/O and data -----------------------------------------------------

	add("printstmt", "'PRINT'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &PrintStmt{node: node{l}}
	})
	add("printstmt", "'PRINT' printlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &PrintStmt{node: node{l}, Items: c[1].([]PrintItem)}
	})
	add("printstmt", "'PRINT' 'USING' expr ';' printlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &PrintStmt{node: node{l}, Using: asExpr(c[2]), Items: c[4].([]PrintItem)}
	})

	add("printlist", "expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return []PrintItem{{Expr: asExpr(c[0])}}
	})
	add("printlist", "expr ';'", func(c []interface{}, l bytecode.Locus) interface{} {
		return []PrintItem{{Expr: asExpr(c[0]), Sep: ';'}}
	})
	add("printlist", "expr ','", func(c []interface{}, l bytecode.Locus) interface{} {
		return []PrintItem{{Expr: asExpr(c[0]), Sep: ','}}
	})
	add("printlist", "expr ';' printlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return append([]PrintItem{{Expr: asExpr(c[0]), Sep: ';'}}, c[2].([]PrintItem)...)
	})
	add("printlist", "expr ',' printlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return append([]PrintItem{{Expr: asExpr(c[0]), Sep: ','}}, c[2].([]PrintItem)...)
	})

	add("inputstmt", "'INPUT' lvalue", func(c []interface{}, l bytecode.Locus) interface{} {
		return &InputStmt{node: node{l}, Prompt: "? ", Var: asExpr(c[1])}
	})
	add("inputstmt", "'INPUT' string ';' lvalue", func(c []interface{}, l bytecode.Locus) interface{} {
		return &InputStmt{node: node{l}, Prompt: unquote(c[1]) + "? ", Var: asExpr(c[3])}
	})
	add("inputstmt", "'INPUT' string ',' lvalue", func(c []interface{}, l bytecode.Locus) interface{} {
		return &InputStmt{node: node{l}, Prompt: unquote(c[1]), Var: asExpr(c[3])}
	})

	add("readstmt", "'READ' lvaluelist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &ReadStmt{node: node{l}, Vars: asExprs(c[1])}
	})

	add("lvaluelist", "lvalue", func(c []interface{}, l bytecode.Locus) interface{} {
		return []Expr{asExpr(c[0])}
	})
	add("lvaluelist", "lvaluelist ',' lvalue", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]Expr), asExpr(c[2]))
	})

	add("datastmt", "'DATA' datalist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &DataStmt{node: node{l}, Items: c[1].([]DataItem)}
	})
	add("datalist", "dataitem", func(c []interface{}, l bytecode.Locus) interface{} {
		return []DataItem{c[0].(DataItem)}
	})
	add("datalist", "datalist ',' dataitem", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]DataItem), c[2].(DataItem))
	})
	add("dataitem", "", func(c []interface{}, l bytecode.Locus) interface{} {
		return DataItem{Null: true}
	})
	add("dataitem", "datanumber", nil)
	add("dataitem", "'-' datanumber", func(c []interface{}, l bytecode.Locus) interface{} {
		d := c[1].(DataItem)
		d.Num = -d.Num
		return d
	})
	add("dataitem", "string", func(c []interface{}, l bytecode.Locus) interface{} {
		return DataItem{IsStr: true, Str: unquote(c[0])}
	})
	add("datanumber", "integer", func(c []interface{}, l bytecode.Locus) interface{} {
		n, _ := strconv.ParseFloat(c[0].(*Token).Text, 64)
		return DataItem{Num: n}
	})
	add("datanumber", "float", func(c []interface{}, l bytecode.Locus) interface{} {
		n, _ := strconv.ParseFloat(c[0].(*Token).Text, 64)
		return DataItem{Num: n}
	})

	add("restorestmt", "'RESTORE'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &RestoreStmt{node: node{l}}
	})
	add("restorestmt", "'RESTORE' target", func(c []interface{}, l bytecode.Locus) interface{} {
		return &RestoreStmt{node: node{l}, Label: c[1].(string)}
	})

	add("openstmt", "'OPEN' expr 'FOR' filemode 'AS' filenum", func(c []interface{}, l bytecode.Locus) interface{} {
		return &OpenStmt{node: node{l}, File: asExpr(c[1]), Mode: c[3].(string), FileNum: asExpr(c[5])}
	})
	add("filemode", "'INPUT'", func(c []interface{}, l bytecode.Locus) interface{} { return "INPUT" })
	add("filemode", "'OUTPUT'", func(c []interface{}, l bytecode.Locus) interface{} { return "OUTPUT" })
	add("filemode", "'APPEND'", func(c []interface{}, l bytecode.Locus) interface{} { return "APPEND" })

	add("filenum", "'#' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return c[1]
	})
	add("filenum", "expr", nil)

	add("closestmt", "'CLOSE'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CloseStmt{node: node{l}}
	})
	add("closestmt", "'CLOSE' filenumlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CloseStmt{node: node{l}, FileNums: asExprs(c[1])}
	})
	add("filenumlist", "filenum", func(c []interface{}, l bytecode.Locus) interface{} {
		return []Expr{asExpr(c[0])}
	})
	add("filenumlist", "filenumlist ',' filenum", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]Expr), asExpr(c[2]))
	})

	add("writestmt", "'WRITE' filenum ',' exprlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &WriteStmt{node: node{l}, FileNum: asExpr(c[1]), Args: asExprs(c[3])}
	})
	add("inputfilestmt", "'INPUT' '#' expr ',' lvaluelist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &InputFileStmt{node: node{l}, FileNum: asExpr(c[2]), Vars: asExprs(c[4])}
	})

	// ----- assignment and calls ---------------------------------------------

	add("assign", "lvalue '=' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return &AssignStmt{node: node{l}, Target: asExpr(c[0]), Value: asExpr(c[2])}
	})
	add("assign", "'LET' lvalue '=' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return &AssignStmt{node: node{l}, Target: asExpr(c[1]), Value: asExpr(c[3])}
	})

	add("callstmt", "identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallStmt{node: node{l}, Name: identName(c[0])}
	})
	add("callstmt", "identifier exprlist", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallStmt{node: node{l}, Name: identName(c[0]), Args: asExprs(c[1])}
	})
	add("callstmt", "identifier '(' exprlist ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallStmt{node: node{l}, Name: identName(c[0]), Args: asExprs(c[2])}
	})
	add("callstmt", "'CALL' identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallStmt{node: node{l}, Name: identName(c[1])}
	})
	add("callstmt", "'CALL' identifier '(' ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallStmt{node: node{l}, Name: identName(c[1])}
	})
	add("callstmt", "'CALL' identifier '(' exprlist ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallStmt{node: node{l}, Name: identName(c[1]), Args: asExprs(c[3])}
	})

	// ----- expressions ------------------------------------------------------

	add("exprlist", "expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return []Expr{asExpr(c[0])}
	})
	add("exprlist", "exprlist ',' expr", func(c []interface{}, l bytecode.Locus) interface{} {
		return append(c[0].([]Expr), asExpr(c[2]))
	})

	binary := func(c []interface{}, l bytecode.Locus) interface{} {
		op := strings.ToUpper(c[1].(*Token).Text)
		return &Binary{node: node{l}, Op: op, Left: asExpr(c[0]), Right: asExpr(c[2])}
	}

	add("expr", "orexpr", nil)
	add("orexpr", "orexpr 'OR' andexpr", binary)
	add("orexpr", "andexpr", nil)
	add("andexpr", "andexpr 'AND' notexpr", binary)
	add("andexpr", "notexpr", nil)
	add("notexpr", "'NOT' notexpr", func(c []interface{}, l bytecode.Locus) interface{} {
		return &Unary{node: node{l}, Op: "NOT", Operand: asExpr(c[1])}
	})
	add("notexpr", "relexpr", nil)

	for _, op := range []string{"'='", "'<>'", "'<'", "'<='", "'>'", "'>='"} {
		add("relexpr", "relexpr "+op+" addexpr", binary)
	}
	add("relexpr", "addexpr", nil)

	add("addexpr", "addexpr '+' mulexpr", binary)
	add("addexpr", "addexpr '-' mulexpr", binary)
	add("addexpr", "mulexpr", nil)

	add("mulexpr", "mulexpr '*' powexpr", binary)
	add("mulexpr", "mulexpr '/' powexpr", binary)
	add("mulexpr", "mulexpr 'MOD' powexpr", binary)
	add("mulexpr", "powexpr", nil)

	add("powexpr", "unary '^' powexpr", binary)
	add("powexpr", "unary", nil)

	add("unary", "'-' unary", func(c []interface{}, l bytecode.Locus) interface{} {
		return &Unary{node: node{l}, Op: "-", Operand: asExpr(c[1])}
	})
	add("unary", "primary", nil)

	add("primary", "integer", func(c []interface{}, l bytecode.Locus) interface{} {
		n, _ := strconv.ParseFloat(c[0].(*Token).Text, 64)
		return &NumberLit{node: node{l}, Value: n}
	})
	add("primary", "float", func(c []interface{}, l bytecode.Locus) interface{} {
		n, _ := strconv.ParseFloat(c[0].(*Token).Text, 64)
		return &NumberLit{node: node{l}, Value: n}
	})
	add("primary", "string", func(c []interface{}, l bytecode.Locus) interface{} {
		return &StringLit{node: node{l}, Value: unquote(c[0])}
	})
	add("primary", "lvalue", nil)
	add("primary", "'(' expr ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return c[1]
	})

	add("lvalue", "identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return &Ident{node: node{l}, Name: identName(c[0])}
	})
	add("lvalue", "identifier '(' exprlist ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallOrIndex{node: node{l}, Name: identName(c[0]), Args: asExprs(c[2])}
	})
	add("lvalue", "identifier '(' ')'", func(c []interface{}, l bytecode.Locus) interface{} {
		return &CallOrIndex{node: node{l}, Name: identName(c[0])}
	})
	add("lvalue", "lvalue '.' identifier", func(c []interface{}, l bytecode.Locus) interface{} {
		return &Member{node: node{l}, Target: asExpr(c[0]), Field: identName(c[2])}
	})

	return rs
}

// unquote strips the surrounding double quotes of a string literal token.
// The dialect has no escapes; a literal quote is produced with CHR$(34).
func unquote(v interface{}) string {
	text := v.(*Token).Text
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}

// NewTokenizerFor builds the tokenizer for a grammar: quoted terminals
// first (registration order breaks length ties), then the token classes.
func NewTokenizerFor(rs *RuleSet) *Tokenizer {
	t := NewTokenizer()
	for _, lit := range rs.Literals() {
		t.AddLiteral(lit)
	}
	t.AddToken(TokFloat, `\d+\.\d*(?:[eE][-+]?\d+)?|\.\d+(?:[eE][-+]?\d+)?|\d+[eE][-+]?\d+`)
	t.AddToken(TokInteger, `\d+`)
	t.AddToken(TokString, `"[^"]*"`)
	t.AddToken(TokIdentifier, `[A-Za-z][A-Za-z0-9]*[%&!#\$]?`)
	return t
}
