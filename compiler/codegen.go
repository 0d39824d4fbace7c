package compiler

import (
	"github.com/qbvm/qbvm/bytecode"
	"github.com/qbvm/qbvm/vm"
)

// ---------------------------------------------------------------------------
// Code generator: AST -> bytecode
// ---------------------------------------------------------------------------
//
// Layout: the main statements come first, terminated by an explicit end;
// SUB and FUNCTION bodies follow in declaration order. Forward branches
// are emitted with placeholder addresses and patched once the target is
// known; user labels and routine entry points resolve in a final pass.

// routineInfo tracks a declared or defined SUB/FUNCTION.
type routineInfo struct {
	name       string
	isFunction bool
	params     []Param
	body       []Stmt
	addr       int
	defined    bool
	locus      bytecode.Locus
}

// scope tracks what the generator knows about names while lowering one
// routine (or the main program): declared arrays and explicitly typed
// scalars, for call-site type checks.
type scope struct {
	arrays  map[string]string // name -> element type name
	scalars map[string]string // name -> declared type name
}

func newScope() *scope {
	return &scope{arrays: make(map[string]string), scalars: make(map[string]string)}
}

// loopFrame is one entry of the active-loop stack; EXIT FOR/DO patch
// through it.
type loopFrame struct {
	kind        string // "FOR" or "DO"
	pops        int    // operand stack values resident while the body runs
	exitPatches []int
}

type generator struct {
	prog   *bytecode.Program
	errors []*Error

	routines     map[string]*routineInfo
	routineOrder []string

	labels      map[string]int
	labelFixups []fixup
	callFixups  []fixup

	dataLabels map[string]int
	optionBase int

	global  *scope
	local   *scope // nil while lowering the main program
	current *routineInfo

	loops       []loopFrame
	exitPatches []int // EXIT SUB/FUNCTION jumps in the current routine
}

type fixup struct {
	index int
	name  string
	locus bytecode.Locus
}

// Options tune code generation.
type Options struct {
	// TestMode compiles a program whose blocking syscalls complete
	// immediately, for deterministic tests.
	TestMode bool
}

// Generate lowers a parsed program to bytecode. On semantic errors the
// program is nil and the error list is non-empty.
func Generate(ast *Program, opts Options) (*bytecode.Program, []*Error) {
	g := &generator{
		prog:       bytecode.NewProgram(),
		routines:   make(map[string]*routineInfo),
		labels:     make(map[string]int),
		dataLabels: make(map[string]int),
		global:     newScope(),
	}
	g.prog.TestMode = opts.TestMode

	g.declarePass(ast.Statements)
	g.poolData(ast.Statements)

	for _, stmt := range ast.Statements {
		g.stmt(stmt)
	}
	g.emit(bytecode.OpEnd, bytecode.NoOperand(), ast.Locus)

	for _, name := range g.routineOrder {
		g.routine(g.routines[name])
	}

	g.resolveFixups()

	if len(g.errors) > 0 {
		return nil, g.errors
	}
	return g.prog, nil
}

func (g *generator) errorf(locus bytecode.Locus, format string, args ...interface{}) {
	g.errors = append(g.errors, errorf(locus, format, args...))
}

// ----- pre-passes -----------------------------------------------------------

// declarePass collects TYPE blocks, DECLARE statements, routine
// definitions and OPTION BASE before any code is lowered, so uses may
// precede declarations textually.
func (g *generator) declarePass(stmts []Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *TypeDecl:
			g.declareType(s)
		case *DeclareStmt:
			g.declareRoutine(s.Name, s.IsFunction, s.Params, false, s.Locus)
		case *SubDecl:
			r := g.declareRoutine(s.Name, false, s.Params, true, s.Locus)
			if r != nil {
				g.routineOrder = append(g.routineOrder, r.name)
			}
		case *FuncDecl:
			r := g.declareRoutine(s.Name, true, s.Params, true, s.Locus)
			if r != nil {
				g.routineOrder = append(g.routineOrder, r.name)
			}
		case *OptionStmt:
			if s.Base != 0 && s.Base != 1 {
				g.errorf(s.Locus, "OPTION BASE must be 0 or 1")
				continue
			}
			g.optionBase = s.Base
		}
	}
}

func (g *generator) declareType(s *TypeDecl) {
	if _, dup := g.prog.Types[s.Name]; dup {
		g.errorf(s.Locus, "duplicate TYPE %s", s.Name)
		return
	}
	rec := &bytecode.RecordType{Name: s.Name}
	for _, f := range s.Fields {
		kind, ok := bytecode.ScalarKindNamed(f.TypeName)
		if !ok {
			g.errorf(f.Locus, "unknown type %s in TYPE %s", f.TypeName, s.Name)
			continue
		}
		if _, dup := rec.FieldNamed(f.Name); dup {
			g.errorf(f.Locus, "duplicate member %s in TYPE %s", f.Name, s.Name)
			continue
		}
		rec.Fields = append(rec.Fields, bytecode.Field{Name: f.Name, Kind: kind})
	}
	g.prog.Types[s.Name] = rec
}

func (g *generator) declareRoutine(name string, isFunction bool, params []Param, defined bool, locus bytecode.Locus) *routineInfo {
	if r, ok := g.routines[name]; ok {
		if defined && r.defined {
			g.errorf(locus, "duplicate definition of %s", name)
			return nil
		}
		if r.isFunction != isFunction {
			g.errorf(locus, "%s declared as both SUB and FUNCTION", name)
			return nil
		}
		if defined {
			r.params = params
			r.defined = true
			r.locus = locus
		}
		return r
	}
	r := &routineInfo{name: name, isFunction: isFunction, params: params, defined: defined, locus: locus}
	g.routines[name] = r
	return r
}

// poolData walks the statement tree in textual order, appending DATA
// literals to the program pool and snapshotting the pool offset at every
// label so RESTORE can address it.
func (g *generator) poolData(stmts []Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *LabelStmt:
			g.dataLabels[s.Name] = len(g.prog.Data)
		case *DataStmt:
			for _, item := range s.Items {
				switch {
				case item.Null:
					g.prog.Data = append(g.prog.Data, bytecode.NoOperand())
				case item.IsStr:
					g.prog.Data = append(g.prog.Data, bytecode.StringOperand(item.Str))
				default:
					g.prog.Data = append(g.prog.Data, bytecode.NumberOperand(item.Num))
				}
			}
		case *IfStmt:
			g.poolData(s.Then)
			for _, arm := range s.ElseIfs {
				g.poolData(arm.Body)
			}
			g.poolData(s.Else)
		case *ForStmt:
			g.poolData(s.Body)
		case *WhileStmt:
			g.poolData(s.Body)
		case *DoStmt:
			g.poolData(s.Body)
		case *SubDecl:
			g.poolData(s.Body)
		case *FuncDecl:
			g.poolData(s.Body)
		}
	}
}

// ----- emission helpers ------------------------------------------------------

func (g *generator) emit(op bytecode.Opcode, arg bytecode.Operand, locus bytecode.Locus) int {
	g.prog.Instructions = append(g.prog.Instructions, bytecode.Instruction{Op: op, Arg: arg, Locus: locus})
	return len(g.prog.Instructions) - 1
}

func (g *generator) here() int { return len(g.prog.Instructions) }

// emitBranch emits a branch with a placeholder target; patch fills it.
func (g *generator) emitBranch(op bytecode.Opcode, locus bytecode.Locus) int {
	return g.emit(op, bytecode.NumberOperand(0), locus)
}

func (g *generator) patch(index int) {
	g.prog.Instructions[index].Arg = bytecode.NumberOperand(float64(g.here()))
}

func (g *generator) branchTo(name string, op bytecode.Opcode, locus bytecode.Locus) {
	index := g.emitBranch(op, locus)
	g.labelFixups = append(g.labelFixups, fixup{index: index, name: name, locus: locus})
}

func (g *generator) callRoutine(name string, locus bytecode.Locus) {
	index := g.emitBranch(bytecode.OpCall, locus)
	g.callFixups = append(g.callFixups, fixup{index: index, name: name, locus: locus})
}

func (g *generator) resolveFixups() {
	for _, f := range g.labelFixups {
		addr, ok := g.labels[f.name]
		if !ok {
			g.errorf(f.locus, "undefined label %s", f.name)
			continue
		}
		g.prog.Instructions[f.index].Arg = bytecode.NumberOperand(float64(addr))
	}
	for _, f := range g.callFixups {
		r := g.routines[f.name]
		if r == nil || !r.defined {
			g.errorf(f.locus, "%s is declared but never defined", f.name)
			continue
		}
		g.prog.Instructions[f.index].Arg = bytecode.NumberOperand(float64(r.addr))
	}
}

func (g *generator) scopeOf(name string) *scope {
	if g.local != nil {
		if _, ok := g.local.arrays[name]; ok {
			return g.local
		}
		if _, ok := g.local.scalars[name]; ok {
			return g.local
		}
	}
	if _, ok := g.global.arrays[name]; ok {
		return g.global
	}
	if _, ok := g.global.scalars[name]; ok {
		return g.global
	}
	return nil
}

func (g *generator) arrayElemType(name string) (string, bool) {
	if sc := g.scopeOf(name); sc != nil {
		elem, ok := sc.arrays[name]
		return elem, ok
	}
	return "", false
}

func (g *generator) declScope() *scope {
	if g.local != nil {
		return g.local
	}
	return g.global
}

// ----- routines ---------------------------------------------------------------

func (g *generator) routine(r *routineInfo) {
	r.addr = g.here()
	g.local = newScope()
	g.current = r
	g.exitPatches = nil

	// Parameters were pushed left to right; bind them in reverse.
	// popvar aliases references and boxes plain values.
	for i := len(r.params) - 1; i >= 0; i-- {
		p := r.params[i]
		if p.TypeName != "" {
			g.local.scalars[p.Name] = p.TypeName
		}
		g.emit(bytecode.OpPopVar, bytecode.StringOperand(p.Name), r.locus)
	}

	for _, stmt := range r.body {
		g.stmt(stmt)
	}

	for _, index := range g.exitPatches {
		g.patch(index)
	}
	if r.isFunction {
		// The function's name doubles as its result variable.
		g.emit(bytecode.OpPushValue, bytecode.StringOperand(r.name), r.locus)
	}
	g.emit(bytecode.OpRet, bytecode.NoOperand(), r.locus)

	g.local = nil
	g.current = nil
}

// ----- statements -------------------------------------------------------------

func (g *generator) stmts(list []Stmt) {
	for _, s := range list {
		g.stmt(s)
	}
}

func (g *generator) stmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *LabelStmt:
		// "NAME:" where NAME is a defined SUB is a call followed by a
		// statement separator, not a label.
		if r, ok := g.routines[s.Name]; ok && !r.isFunction {
			g.userCall(r, nil, s.Locus)
			return
		}
		if _, dup := g.labels[s.Name]; dup {
			g.errorf(s.Locus, "duplicate label %s", s.Name)
			return
		}
		g.labels[s.Name] = g.here()

	case *AssignStmt:
		g.assign(s)

	case *CallStmt:
		g.call(s)

	case *IfStmt:
		g.ifStmt(s)

	case *ForStmt:
		g.forStmt(s)

	case *WhileStmt:
		g.whileStmt(s)

	case *DoStmt:
		g.doStmt(s)

	case *GotoStmt:
		g.branchTo(s.Target, bytecode.OpJmp, s.Locus)

	case *GosubStmt:
		g.branchTo(s.Target, bytecode.OpGosub, s.Locus)

	case *ReturnStmt:
		g.emit(bytecode.OpRet, bytecode.NoOperand(), s.Locus)

	case *EndStmt:
		g.emit(bytecode.OpEnd, bytecode.NoOperand(), s.Locus)

	case *ExitStmt:
		g.exitStmt(s)

	case *PrintStmt:
		g.printStmt(s)

	case *InputStmt:
		g.emit(bytecode.OpPushConst, bytecode.StringOperand(s.Prompt), s.Locus)
		g.ref(s.Var)
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("input"), s.Locus)

	case *ReadStmt:
		for _, v := range s.Vars {
			g.ref(v)
			g.emit(bytecode.OpSyscall, bytecode.StringOperand("read"), s.Locus)
		}

	case *DataStmt:
		// Pooled by the pre-pass; nothing executes.

	case *RestoreStmt:
		offset := 0
		if s.Label != "" {
			var ok bool
			if offset, ok = g.dataLabels[s.Label]; !ok {
				g.errorf(s.Locus, "undefined label %s", s.Label)
				return
			}
		}
		g.emit(bytecode.OpRestore, bytecode.NumberOperand(float64(offset)), s.Locus)

	case *DimStmt:
		g.dimStmt(s)

	case *SharedStmt:
		for _, name := range s.Names {
			g.prog.Shared[name] = true
		}

	case *OptionStmt:
		// Consumed by the declare pass.

	case *DeclareStmt:
		// Consumed by the declare pass.

	case *TypeDecl:
		if g.local != nil {
			g.errorf(s.Locus, "TYPE must appear at the top level")
		}

	case *SubDecl:
		if g.local != nil {
			g.errorf(s.Locus, "SUB must appear at the top level")
			return
		}
		g.routines[s.Name].body = s.Body

	case *FuncDecl:
		if g.local != nil {
			g.errorf(s.Locus, "FUNCTION must appear at the top level")
			return
		}
		g.routines[s.Name].body = s.Body

	case *OpenStmt:
		g.value(s.File)
		g.checkType(s.File, vm.ArgString)
		g.emit(bytecode.OpPushConst, bytecode.StringOperand(s.Mode), s.Locus)
		g.value(s.FileNum)
		g.checkType(s.FileNum, vm.ArgNumber)
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("open"), s.Locus)

	case *CloseStmt:
		for _, n := range s.FileNums {
			g.value(n)
			g.checkType(n, vm.ArgNumber)
		}
		g.emit(bytecode.OpPushConst, bytecode.NumberOperand(float64(len(s.FileNums))), s.Locus)
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("close"), s.Locus)

	case *WriteStmt:
		g.value(s.FileNum)
		g.checkType(s.FileNum, vm.ArgNumber)
		for _, a := range s.Args {
			g.value(a)
		}
		g.emit(bytecode.OpPushConst, bytecode.NumberOperand(float64(len(s.Args))), s.Locus)
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("write"), s.Locus)

	case *InputFileStmt:
		for _, v := range s.Vars {
			g.value(s.FileNum)
			g.ref(v)
			g.emit(bytecode.OpSyscall, bytecode.StringOperand("input_file"), s.Locus)
		}

	default:
		g.errorf(stmt.Loc(), "cannot compile this statement")
	}
}

func (g *generator) assign(s *AssignStmt) {
	g.value(s.Value)
	g.ref(s.Target)
	g.emit(bytecode.OpAssign, bytecode.NoOperand(), s.Locus)
}

func (g *generator) call(s *CallStmt) {
	if r, ok := g.routines[s.Name]; ok {
		if r.isFunction {
			g.errorf(s.Locus, "%s is a FUNCTION, not a SUB", s.Name)
			return
		}
		g.userCall(r, s.Args, s.Locus)
		return
	}
	if r, ok := vm.LookupSubroutine(s.Name); ok {
		g.sysCall(r, s.Args, s.Locus)
		return
	}
	g.errorf(s.Locus, "unknown subroutine %s", s.Name)
}

// userCall lowers a SUB/FUNCTION invocation: variable arguments pass by
// reference, everything else by value.
func (g *generator) userCall(r *routineInfo, args []Expr, locus bytecode.Locus) {
	if len(args) != len(r.params) {
		g.errorf(locus, "%s expects %d arguments, got %d", r.name, len(r.params), len(args))
		return
	}
	for _, a := range args {
		if isLvalue(a) {
			g.ref(a)
		} else {
			g.value(a)
		}
	}
	g.callRoutine(r.name, locus)
}

// sysCall lowers a system routine invocation, checking argument types
// against the registry signature.
func (g *generator) sysCall(r *vm.Routine, args []Expr, locus bytecode.Locus) {
	if len(args) < len(r.Args) || !r.Variadic && len(args) > len(r.Args) {
		g.errorf(locus, "%s expects %d arguments, got %d", r.Name, len(r.Args), len(args))
		return
	}
	for i, a := range args {
		byRef := false
		for _, idx := range r.Refs {
			if idx == i {
				byRef = true
			}
		}
		if byRef {
			if !isLvalue(a) {
				g.errorf(a.Loc(), "%s argument %d must be a variable", r.Name, i+1)
				return
			}
			g.ref(a)
			continue
		}
		g.value(a)
		if i < len(r.Args) && r.Args[i] != vm.ArgAny {
			g.checkType(a, r.Args[i])
		}
	}
	if r.Variadic {
		extra := len(args) - len(r.Args)
		g.emit(bytecode.OpPushConst, bytecode.NumberOperand(float64(extra)), locus)
	}
	g.emit(bytecode.OpSyscall, bytecode.StringOperand(r.Name), locus)
}

func (g *generator) ifStmt(s *IfStmt) {
	g.value(s.Cond)
	g.checkType(s.Cond, vm.ArgNumber)
	skip := g.emitBranch(bytecode.OpBZ, s.Locus)
	g.stmts(s.Then)

	arms := make([]ElseIf, 0, len(s.ElseIfs))
	arms = append(arms, s.ElseIfs...)

	if len(arms) == 0 && len(s.Else) == 0 {
		g.patch(skip)
		return
	}

	var ends []int
	ends = append(ends, g.emitBranch(bytecode.OpJmp, s.Locus))
	g.patch(skip)

	for _, arm := range arms {
		g.value(arm.Cond)
		g.checkType(arm.Cond, vm.ArgNumber)
		next := g.emitBranch(bytecode.OpBZ, arm.Locus)
		g.stmts(arm.Body)
		ends = append(ends, g.emitBranch(bytecode.OpJmp, arm.Locus))
		g.patch(next)
	}

	g.stmts(s.Else)
	for _, index := range ends {
		g.patch(index)
	}
}

// forStmt lowers FOR/NEXT. The loop's end and step values stay resident
// on the operand stack while the body runs:
//
//	init:  counter = from; push end; push step
//	head:  push counter; forloop exit
//	body
//	next:  copytop; push counter; +; popval counter; jmp head
func (g *generator) forStmt(s *ForStmt) {
	if s.NextVar != "" && s.NextVar != s.Counter {
		g.errorf(s.Locus, "NEXT %s does not match FOR %s", s.NextVar, s.Counter)
		return
	}

	g.value(s.From)
	g.emit(bytecode.OpPopVal, bytecode.StringOperand(s.Counter), s.Locus)
	g.value(s.To)
	if s.Step != nil {
		g.value(s.Step)
	} else {
		g.emit(bytecode.OpPushConst, bytecode.NumberOperand(1), s.Locus)
	}

	head := g.here()
	g.emit(bytecode.OpPushValue, bytecode.StringOperand(s.Counter), s.Locus)
	exit := g.emitBranch(bytecode.OpForLoop, s.Locus)

	g.loops = append(g.loops, loopFrame{kind: "FOR", pops: 2})
	g.stmts(s.Body)
	frame := g.loops[len(g.loops)-1]
	g.loops = g.loops[:len(g.loops)-1]

	g.emit(bytecode.OpCopyTop, bytecode.NoOperand(), s.Locus)
	g.emit(bytecode.OpPushValue, bytecode.StringOperand(s.Counter), s.Locus)
	g.emit(bytecode.OpAdd, bytecode.NoOperand(), s.Locus)
	g.emit(bytecode.OpPopVal, bytecode.StringOperand(s.Counter), s.Locus)
	jump := g.emitBranch(bytecode.OpJmp, s.Locus)
	g.prog.Instructions[jump].Arg = bytecode.NumberOperand(float64(head))

	g.patch(exit)
	for _, index := range frame.exitPatches {
		g.patch(index)
	}
}

func (g *generator) whileStmt(s *WhileStmt) {
	head := g.here()
	g.value(s.Cond)
	g.checkType(s.Cond, vm.ArgNumber)
	exit := g.emitBranch(bytecode.OpBZ, s.Locus)
	g.stmts(s.Body)
	jump := g.emitBranch(bytecode.OpJmp, s.Locus)
	g.prog.Instructions[jump].Arg = bytecode.NumberOperand(float64(head))
	g.patch(exit)
}

func (g *generator) doStmt(s *DoStmt) {
	head := g.here()
	var exit int
	hasPre := s.Cond != nil && !s.PostTest
	if hasPre {
		g.value(s.Cond)
		g.checkType(s.Cond, vm.ArgNumber)
		if s.Until {
			exit = g.emitBranch(bytecode.OpBNZ, s.Locus)
		} else {
			exit = g.emitBranch(bytecode.OpBZ, s.Locus)
		}
	}

	g.loops = append(g.loops, loopFrame{kind: "DO"})
	g.stmts(s.Body)
	frame := g.loops[len(g.loops)-1]
	g.loops = g.loops[:len(g.loops)-1]

	if s.Cond != nil && s.PostTest {
		g.value(s.Cond)
		g.checkType(s.Cond, vm.ArgNumber)
		var back int
		if s.Until {
			back = g.emitBranch(bytecode.OpBZ, s.Locus)
		} else {
			back = g.emitBranch(bytecode.OpBNZ, s.Locus)
		}
		g.prog.Instructions[back].Arg = bytecode.NumberOperand(float64(head))
	} else {
		jump := g.emitBranch(bytecode.OpJmp, s.Locus)
		g.prog.Instructions[jump].Arg = bytecode.NumberOperand(float64(head))
	}

	if hasPre {
		g.patch(exit)
	}
	for _, index := range frame.exitPatches {
		g.patch(index)
	}
}

func (g *generator) exitStmt(s *ExitStmt) {
	switch s.What {
	case "FOR", "DO":
		for i := len(g.loops) - 1; i >= 0; i-- {
			if g.loops[i].kind != s.What {
				continue
			}
			// Discard loop values resident below the body, then leave.
			for j := i; j < len(g.loops); j++ {
				for k := 0; k < g.loops[j].pops; k++ {
					g.emit(bytecode.OpPop, bytecode.NoOperand(), s.Locus)
				}
			}
			index := g.emitBranch(bytecode.OpJmp, s.Locus)
			g.loops[i].exitPatches = append(g.loops[i].exitPatches, index)
			return
		}
		g.errorf(s.Locus, "EXIT %s outside a %s loop", s.What, s.What)

	case "SUB", "FUNCTION":
		if g.current == nil || g.current.isFunction != (s.What == "FUNCTION") {
			g.errorf(s.Locus, "EXIT %s outside a %s", s.What, s.What)
			return
		}
		// Unwind any FOR loop values before leaving the routine.
		for i := range g.loops {
			for k := 0; k < g.loops[i].pops; k++ {
				g.emit(bytecode.OpPop, bytecode.NoOperand(), s.Locus)
			}
		}
		index := g.emitBranch(bytecode.OpJmp, s.Locus)
		g.exitPatches = append(g.exitPatches, index)
	}
}

// printStmt lowers PRINT. Each item prints through the print syscall; a
// comma advances to the next print zone, and a statement without a
// trailing separator ends the line.
func (g *generator) printStmt(s *PrintStmt) {
	if s.Using != nil {
		g.value(s.Using)
		g.checkType(s.Using, vm.ArgString)
		terminator := ""
		if len(s.Items) > 0 && s.Items[len(s.Items)-1].Sep != 0 {
			terminator = string(s.Items[len(s.Items)-1].Sep)
		}
		g.emit(bytecode.OpPushConst, bytecode.StringOperand(terminator), s.Locus)
		for _, item := range s.Items {
			g.value(item.Expr)
		}
		g.emit(bytecode.OpPushConst, bytecode.NumberOperand(float64(len(s.Items))), s.Locus)
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("print_using"), s.Locus)
		return
	}

	for _, item := range s.Items {
		if tab, ok := item.Expr.(*CallOrIndex); ok && tab.Name == "TAB" && len(tab.Args) == 1 {
			if _, isArray := g.arrayElemType("TAB"); !isArray {
				g.value(tab.Args[0])
				g.checkType(tab.Args[0], vm.ArgNumber)
				g.emit(bytecode.OpSyscall, bytecode.StringOperand("print_tab"), item.Expr.Loc())
				continue
			}
		}
		g.value(item.Expr)
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("print"), item.Expr.Loc())
		if item.Sep == ',' {
			g.emit(bytecode.OpSyscall, bytecode.StringOperand("print_comma"), item.Expr.Loc())
		}
	}
	if terminated := len(s.Items) > 0 && s.Items[len(s.Items)-1].Sep != 0; !terminated {
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("print_nl"), s.Locus)
	}
}

func (g *generator) dimStmt(s *DimStmt) {
	for _, item := range s.Items {
		if s.Shared {
			g.prog.Shared[item.Name] = true
		}

		typeName := item.TypeName
		if typeName == "" {
			if kind, ok := bytecode.KindForSigil(item.Name); ok {
				typeName = kind.String()
			} else {
				typeName = g.prog.DefaultType.String()
			}
		}
		if _, scalarOK := bytecode.ScalarKindNamed(typeName); !scalarOK {
			if _, recordOK := g.prog.Types[typeName]; !recordOK {
				g.errorf(item.Locus, "unknown type %s", typeName)
				continue
			}
		}

		sc := g.declScope()
		if s.Shared {
			sc = g.global
		}
		if _, dup := sc.arrays[item.Name]; dup {
			g.errorf(item.Locus, "duplicate definition of %s", item.Name)
			continue
		}
		if _, dup := sc.scalars[item.Name]; dup {
			g.errorf(item.Locus, "duplicate definition of %s", item.Name)
			continue
		}

		if item.Bounds == nil {
			sc.scalars[item.Name] = typeName
			g.emit(bytecode.OpPushConst, bytecode.StringOperand(item.Name), item.Locus)
			g.emit(bytecode.OpPushConst, bytecode.StringOperand(typeName), item.Locus)
			g.emit(bytecode.OpSyscall, bytecode.StringOperand("alloc_scalar"), item.Locus)
			continue
		}

		sc.arrays[item.Name] = typeName
		g.emit(bytecode.OpPushConst, bytecode.StringOperand(item.Name), item.Locus)
		g.emit(bytecode.OpPushConst, bytecode.StringOperand(typeName), item.Locus)
		for _, b := range item.Bounds {
			if b.Lower != nil {
				g.value(b.Lower)
				g.checkType(b.Lower, vm.ArgNumber)
			} else {
				g.emit(bytecode.OpPushConst, bytecode.NumberOperand(float64(g.optionBase)), item.Locus)
			}
			g.value(b.Upper)
			g.checkType(b.Upper, vm.ArgNumber)
		}
		g.emit(bytecode.OpPushConst, bytecode.NumberOperand(float64(2*len(item.Bounds))), item.Locus)
		g.emit(bytecode.OpSyscall, bytecode.StringOperand("alloc_array"), item.Locus)
	}
}

// ----- expressions ------------------------------------------------------------

var binaryOps = map[string]bytecode.Opcode{
	"+":   bytecode.OpAdd,
	"-":   bytecode.OpSub,
	"*":   bytecode.OpMul,
	"/":   bytecode.OpDiv,
	"MOD": bytecode.OpMod,
	"^":   bytecode.OpPow,
	"=":   bytecode.OpEq,
	"<>":  bytecode.OpNe,
	"<":   bytecode.OpLt,
	"<=":  bytecode.OpLe,
	">":   bytecode.OpGt,
	">=":  bytecode.OpGe,
	"AND": bytecode.OpAnd,
	"OR":  bytecode.OpOr,
}

// value emits code leaving the expression's value on the stack.
func (g *generator) value(e Expr) {
	switch x := e.(type) {
	case *NumberLit:
		g.emit(bytecode.OpPushConst, bytecode.NumberOperand(x.Value), x.Locus)

	case *StringLit:
		g.emit(bytecode.OpPushConst, bytecode.StringOperand(x.Value), x.Locus)

	case *Ident:
		if r, ok := g.routines[x.Name]; ok && r.isFunction {
			g.userCall(r, nil, x.Locus)
			return
		}
		if r, ok := vm.LookupFunction(x.Name); ok {
			g.sysCall(r, nil, x.Locus)
			return
		}
		g.emit(bytecode.OpPushValue, bytecode.StringOperand(x.Name), x.Locus)

	case *CallOrIndex:
		if r, ok := g.routines[x.Name]; ok {
			if !r.isFunction {
				g.errorf(x.Locus, "%s is a SUB, not a FUNCTION", x.Name)
				return
			}
			g.userCall(r, x.Args, x.Locus)
			return
		}
		if _, ok := g.arrayElemType(x.Name); ok {
			g.index(x, false)
			return
		}
		if r, ok := vm.LookupFunction(x.Name); ok {
			g.sysCall(r, x.Args, x.Locus)
			return
		}
		g.errorf(x.Locus, "unknown function or array %s", x.Name)

	case *Member:
		g.ref(x.Target)
		g.emit(bytecode.OpMemberValue, bytecode.StringOperand(x.Field), x.Locus)

	case *Unary:
		g.value(x.Operand)
		g.checkType(x.Operand, vm.ArgNumber)
		if x.Op == "NOT" {
			g.emit(bytecode.OpNot, bytecode.NoOperand(), x.Locus)
		} else {
			g.emit(bytecode.OpNeg, bytecode.NoOperand(), x.Locus)
		}

	case *Binary:
		g.value(x.Left)
		g.value(x.Right)
		op, ok := binaryOps[x.Op]
		if !ok {
			g.errorf(x.Locus, "unknown operator %s", x.Op)
			return
		}
		g.emit(op, bytecode.NoOperand(), x.Locus)

	default:
		g.errorf(e.Loc(), "cannot compile this expression")
	}
}

// ref emits code leaving a reference to the expression's storage on the
// stack. Only lvalues have references.
func (g *generator) ref(e Expr) {
	switch x := e.(type) {
	case *Ident:
		g.emit(bytecode.OpPushRef, bytecode.StringOperand(x.Name), x.Locus)

	case *CallOrIndex:
		if _, ok := g.arrayElemType(x.Name); !ok {
			g.errorf(x.Locus, "%s is not an array", x.Name)
			return
		}
		g.index(x, true)

	case *Member:
		g.ref(x.Target)
		g.emit(bytecode.OpMemberDeref, bytecode.StringOperand(x.Field), x.Locus)

	default:
		g.errorf(e.Loc(), "expected a variable")
	}
}

// index lowers an array access: indices, then the array reference, then
// array_deref with a flag selecting cell reference (1) or value (0).
func (g *generator) index(x *CallOrIndex, wantRef bool) {
	for _, a := range x.Args {
		g.value(a)
		g.checkType(a, vm.ArgNumber)
	}
	g.emit(bytecode.OpPushRef, bytecode.StringOperand(x.Name), x.Locus)
	flag := 0.0
	if wantRef {
		flag = 1.0
	}
	g.emit(bytecode.OpArrayDeref, bytecode.NumberOperand(flag), x.Locus)
}

// isLvalue reports whether an expression denotes storage.
func isLvalue(e Expr) bool {
	switch e.(type) {
	case *Ident, *CallOrIndex, *Member:
		return true
	}
	return false
}

// ----- static typing ------------------------------------------------------------

// exprType infers the coarse type of an expression for call-site checks;
// ArgAny means unknown.
func (g *generator) exprType(e Expr) vm.ArgType {
	switch x := e.(type) {
	case *NumberLit:
		return vm.ArgNumber
	case *StringLit:
		return vm.ArgString
	case *Ident:
		if r, ok := g.routines[x.Name]; ok && r.isFunction {
			return g.nameType(r.name, "")
		}
		if r, ok := vm.LookupFunction(x.Name); ok {
			return r.Result
		}
		return g.varType(x.Name)
	case *CallOrIndex:
		if r, ok := g.routines[x.Name]; ok && r.isFunction {
			return g.nameType(r.name, "")
		}
		if elem, ok := g.arrayElemType(x.Name); ok {
			return g.nameType(x.Name, elem)
		}
		if r, ok := vm.LookupFunction(x.Name); ok {
			return r.Result
		}
		return vm.ArgAny
	case *Member:
		return g.memberType(x)
	case *Unary:
		return vm.ArgNumber
	case *Binary:
		if x.Op == "+" {
			if g.exprType(x.Left) == vm.ArgString {
				return vm.ArgString
			}
			return g.exprType(x.Left)
		}
		return vm.ArgNumber
	}
	return vm.ArgAny
}

// nameType derives a type from a declared type name, falling back to the
// identifier's sigil.
func (g *generator) nameType(name, typeName string) vm.ArgType {
	if typeName != "" {
		if kind, ok := bytecode.ScalarKindNamed(typeName); ok {
			return scalarArgType(kind)
		}
		return vm.ArgAny // record
	}
	if kind, ok := bytecode.KindForSigil(name); ok {
		return scalarArgType(kind)
	}
	return scalarArgType(g.prog.DefaultType)
}

func (g *generator) varType(name string) vm.ArgType {
	if sc := g.scopeOf(name); sc != nil {
		if typeName, ok := sc.scalars[name]; ok {
			return g.nameType(name, typeName)
		}
	}
	return g.nameType(name, "")
}

func (g *generator) memberType(x *Member) vm.ArgType {
	typeName := ""
	switch t := x.Target.(type) {
	case *Ident:
		if sc := g.scopeOf(t.Name); sc != nil {
			typeName = sc.scalars[t.Name]
		}
	case *CallOrIndex:
		typeName, _ = g.arrayElemType(t.Name)
	}
	rec, ok := g.prog.Types[typeName]
	if !ok {
		return vm.ArgAny
	}
	field, ok := rec.FieldNamed(x.Field)
	if !ok {
		return vm.ArgAny
	}
	return scalarArgType(field.Kind)
}

func scalarArgType(kind bytecode.ScalarKind) vm.ArgType {
	if kind == bytecode.KindString {
		return vm.ArgString
	}
	return vm.ArgNumber
}

// checkType flags a call-site or operator type mismatch when the
// expression's type is statically known.
func (g *generator) checkType(e Expr, want vm.ArgType) {
	got := g.exprType(e)
	if got == vm.ArgAny || want == vm.ArgAny || got == want {
		return
	}
	g.errorf(e.Loc(), "type mismatch: expected a %s, got a %s", want, got)
}
