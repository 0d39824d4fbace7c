package vm_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/qbvm/qbvm/bytecode"
	"github.com/qbvm/qbvm/compiler"
	"github.com/qbvm/qbvm/vm"
)

// ---------------------------------------------------------------------------
// Fake devices
// ---------------------------------------------------------------------------

// fakeConsole records everything printed and answers INPUT from a queue.
// All completions are synchronous, so programs run under Machine.Run.
type fakeConsole struct {
	out     strings.Builder
	col     int
	lines   []string // queued INPUT answers
	prompts []string
	keys    []int // queued key codes for GetKey
	cleared bool
	sprites []string
}

func (c *fakeConsole) Print(text string) {
	c.out.WriteString(text)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		c.col = len(text) - i - 1
	} else {
		c.col += len(text)
	}
}

func (c *fakeConsole) CursorX() int { return c.col }

func (c *fakeConsole) Cls() {
	c.cleared = true
	c.col = 0
}

func (c *fakeConsole) Locate(row, col int)      {}
func (c *fakeConsole) Color(fg, bg, border int) {}
func (c *fakeConsole) Screen(mode int)          {}
func (c *fakeConsole) Width(cols, rows int)     {}

func (c *fakeConsole) Input(prompt string, done func(line string, err error)) {
	c.prompts = append(c.prompts, prompt)
	line := ""
	if len(c.lines) > 0 {
		line = c.lines[0]
		c.lines = c.lines[1:]
	}
	done(line, nil)
}

func (c *fakeConsole) GetKey() int {
	if len(c.keys) == 0 {
		return -1
	}
	k := c.keys[0]
	c.keys = c.keys[1:]
	return k
}

func (c *fakeConsole) OnKey(cb func(code int)) {
	if cb != nil {
		cb(13)
	}
}

func (c *fakeConsole) CreateSprite(n int, image string, frames int, done func(err error)) {
	c.sprites = append(c.sprites, fmt.Sprintf("create %d %s", n, image))
	done(nil)
}

func (c *fakeConsole) OffsetSprite(n, x, y int) {
	c.sprites = append(c.sprites, fmt.Sprintf("offset %d %d,%d", n, x, y))
}

func (c *fakeConsole) ScaleSprite(n int, sx, sy float64)     {}
func (c *fakeConsole) RotateSprite(n int, angle float64)     {}
func (c *fakeConsole) HomeSprite(n, hx, hy int)              {}
func (c *fakeConsole) DisplaySprite(n int, show bool)        {}
func (c *fakeConsole) AnimateSprite(n, from, to int, l bool) {}
func (c *fakeConsole) ClearSprite(n int)                     {}

// fakeAudio completes playback immediately and records what it was asked
// to perform.
type fakeAudio struct {
	played []string
	beeps  int
}

func (a *fakeAudio) Play(music string, repeat bool, done func(err error)) {
	a.played = append(a.played, music)
	if !repeat {
		done(nil)
	}
}

func (a *fakeAudio) Background(music string, repeat bool) {
	a.played = append(a.played, music)
}

func (a *fakeAudio) Stop() {}
func (a *fakeAudio) Beep() { a.beeps++ }

// fakeFS keeps files as line slices in memory.
type fakeFS struct {
	files map[string][]string
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string][]string)}
}

func (f *fakeFS) Open(name, mode string) (vm.File, error) {
	switch mode {
	case "INPUT":
		lines, ok := f.files[name]
		if !ok {
			return nil, fmt.Errorf("no such file %s", name)
		}
		return &memFile{fs: f, name: name, read: lines}, nil
	case "OUTPUT":
		f.files[name] = nil
		return &memFile{fs: f, name: name, write: true}, nil
	case "APPEND":
		return &memFile{fs: f, name: name, write: true}, nil
	}
	return nil, fmt.Errorf("unknown file mode %s", mode)
}

type memFile struct {
	fs    *fakeFS
	name  string
	read  []string
	pos   int
	write bool
}

func (m *memFile) ReadLine() (string, error) {
	if m.write || m.pos >= len(m.read) {
		return "", fmt.Errorf("read past end of file")
	}
	line := m.read[m.pos]
	m.pos++
	return line, nil
}

func (m *memFile) WriteLine(text string) error {
	if !m.write {
		return fmt.Errorf("file is not open for OUTPUT")
	}
	m.fs.files[m.name] = append(m.fs.files[m.name], text)
	return nil
}

func (m *memFile) AtEOF() bool  { return !m.write && m.pos >= len(m.read) }
func (m *memFile) Close() error { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func compileSource(t *testing.T, source string) *bytecode.Program {
	t.Helper()
	prog, errs := compiler.Compile(source, compiler.Options{TestMode: true})
	if len(errs) > 0 {
		for _, e := range errs {
			t.Errorf("compile: %s", e)
		}
		t.FailNow()
	}
	return prog
}

func newMachine(t *testing.T, source string) (*vm.Machine, *fakeConsole) {
	t.Helper()
	con := &fakeConsole{}
	m := vm.New(compileSource(t, source), vm.Config{}, con, &fakeAudio{}, newFakeFS())
	return m, con
}

func runSource(t *testing.T, source string) (*vm.Machine, *fakeConsole) {
	t.Helper()
	m, con := newMachine(t, source)
	if err := m.Run(); err != nil {
		t.Fatalf("run: %s\noutput so far: %q", err, con.out.String())
	}
	return m, con
}

func runForError(t *testing.T, source string) *vm.RuntimeError {
	t.Helper()
	m, _ := newMachine(t, source)
	var event *vm.RuntimeError
	m.OnError(func(re *vm.RuntimeError) { event = re })
	err := m.Run()
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if event == nil {
		t.Fatal("error event did not fire")
	}
	if event.Error() != err.Error() {
		t.Fatalf("event %q does not match returned error %q", event, err)
	}
	return event
}

// ---------------------------------------------------------------------------
// Program output
// ---------------------------------------------------------------------------

func TestProgramOutput(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"print expression", `PRINT 1 + 2`, " 3\n"},
		{"print string", `PRINT "HI"`, "HI\n"},
		{"precedence", `PRINT 2 + 3 * 4`, " 14\n"},
		{"power", `PRINT 2 ^ 10`, " 1024\n"},
		{"modulo", `PRINT 7 MOD 3`, " 1\n"},
		{"negation", `PRINT -3 + 5`, " 2\n"},
		{"concatenation", `PRINT "AB" + "CD"`, "ABCD\n"},
		{"not false", `PRINT NOT 0`, "-1\n"},
		{"not true", `PRINT NOT -1`, " 0\n"},
		{"comparison true", `PRINT (2 = 2)`, "-1\n"},
		{"comparison false", `PRINT (1 = 2)`, " 0\n"},
		{"string comparison", `IF "A" < "B" THEN PRINT "Y"`, "Y\n"},
		{"bitwise and", `PRINT 6 AND 3`, " 2\n"},
		{"bitwise or", `PRINT 6 OR 3`, " 7\n"},
		{"semicolon items", `PRINT 1; 2; 3`, " 1 2 3\n"},
		{"trailing semicolon", "PRINT 1;\nPRINT 2", " 1 2\n"},
		{"comma zones", `PRINT 1, 2`, " 1" + strings.Repeat(" ", 12) + " 2\n"},
		{"tab positioning", `PRINT TAB(5); "X"`, "    X\n"},
		{
			"for loop",
			`FOR I = 1 TO 3: PRINT I: NEXT I`,
			" 1\n 2\n 3\n",
		},
		{
			"for step down",
			`FOR I = 3 TO 1 STEP -1: PRINT I: NEXT`,
			" 3\n 2\n 1\n",
		},
		{
			"for skipped entirely",
			"FOR I = 5 TO 1\nPRINT I\nNEXT\nPRINT \"DONE\"",
			"DONE\n",
		},
		{
			"exit for",
			"FOR I = 1 TO 10\nIF I = 4 THEN EXIT FOR\nNEXT I\nPRINT I",
			" 4\n",
		},
		{
			"while loop",
			"I = 0\nWHILE I < 3\nI = I + 1\nWEND\nPRINT I",
			" 3\n",
		},
		{
			"do loop until",
			"I = 0\nDO\nI = I + 1\nLOOP UNTIL I >= 3\nPRINT I",
			" 3\n",
		},
		{
			"do while pretest",
			"I = 9\nDO WHILE I < 3\nI = I + 1\nLOOP\nPRINT I",
			" 9\n",
		},
		{
			"block if else",
			"X = 7\nIF X > 5 THEN\nPRINT \"BIG\"\nELSE\nPRINT \"SMALL\"\nEND IF",
			"BIG\n",
		},
		{
			"elseif chain",
			"X = 2\nIF X = 1 THEN\nPRINT \"ONE\"\nELSEIF X = 2 THEN\nPRINT \"TWO\"\nELSE\nPRINT \"MANY\"\nEND IF",
			"TWO\n",
		},
		{
			"single line if else",
			"A = 0\nIF A THEN B = 1 ELSE B = 2\nPRINT B",
			" 2\n",
		},
		{
			"goto",
			"GOTO SKIP\nPRINT \"NO\"\nSKIP: PRINT \"YES\"",
			"YES\n",
		},
		{
			"gosub once",
			`GOSUB L: END: L: PRINT "HI": RETURN`,
			"HI\n",
		},
		{
			"gosub shares variables",
			"X = 1\nGOSUB BUMP\nPRINT X\nEND\nBUMP: X = X + 1\nRETURN",
			" 2\n",
		},
		{
			"sub fresh frame",
			`SUB S(): X = 5: END SUB: S: PRINT X`,
			" 0\n",
		},
		{
			"sub by reference",
			"SUB BUMP(N)\nN = N + 1\nEND SUB\nX = 5\nBUMP X\nPRINT X",
			" 6\n",
		},
		{
			"function result",
			"FUNCTION ADDONE(N)\nADDONE = N + 1\nEND FUNCTION\nPRINT ADDONE(41)",
			" 42\n",
		},
		{
			"shared variable",
			"DIM SHARED T\nSUB SETIT()\nT = 9\nEND SUB\nSETIT\nPRINT T",
			" 9\n",
		},
		{
			"array element",
			"DIM A(3)\nA(2) = 42\nPRINT A(2)",
			" 42\n",
		},
		{
			"option base one",
			"OPTION BASE 1\nDIM A(3)\nA(1) = 1\nA(3) = 3\nPRINT A(1) + A(3)",
			" 4\n",
		},
		{
			"explicit bounds",
			"DIM A(2 TO 4)\nA(4) = 7\nPRINT A(4)",
			" 7\n",
		},
		{
			"two dimensions",
			"DIM G(2, 2)\nG(1, 2) = 5\nPRINT G(1, 2)",
			" 5\n",
		},
		{
			"integer rounding",
			"DIM N AS INTEGER\nN = 2.5\nPRINT N",
			" 3\n",
		},
		{
			"integer rounding negative",
			"DIM N AS INTEGER\nN = -2.5\nPRINT N",
			"-3\n",
		},
		{
			"record fields",
			"TYPE PT\nX AS INTEGER\nY AS INTEGER\nEND TYPE\nDIM P AS PT\nP.X = 3\nP.Y = 4\nPRINT P.X + P.Y",
			" 7\n",
		},
		{
			"record assignment copies",
			"TYPE PT\nX AS INTEGER\nEND TYPE\nDIM A AS PT\nDIM B AS PT\nA.X = 1\nB = A\nA.X = 2\nPRINT B.X",
			" 1\n",
		},
		{
			"array of records",
			"TYPE PT\nX AS INTEGER\nEND TYPE\nDIM P(2) AS PT\nP(1).X = 5\nPRINT P(1).X",
			" 5\n",
		},
		{
			"swap",
			"A = 1\nB = 2\nSWAP A, B\nPRINT A; B",
			" 2 1\n",
		},
		{
			"restore",
			"DATA 7, 8\nREAD A\nRESTORE\nREAD B\nPRINT A; B",
			" 7 7\n",
		},
		{
			"restore to label",
			"DATA 1\nMORE: DATA 2\nREAD A\nRESTORE MORE\nREAD B\nPRINT A; B",
			" 1 2\n",
		},
		{
			"print using numeric field",
			`PRINT USING "###"; 42`,
			" 42\n",
		},
		{
			"print using overflow truncates",
			`PRINT USING "##"; 12345`,
			"45\n",
		},
		{
			"print using format reuse",
			`PRINT USING "#!"; 1; 2`,
			"1!2!\n",
		},
		{"left", `PRINT LEFT$("HELLO", 2)`, "HE\n"},
		{"right", `PRINT RIGHT$("HELLO", 3)`, "LLO\n"},
		{"mid", `PRINT MID$("ABCDE", 2, 3)`, "BCD\n"},
		{"len", `PRINT LEN("ABC")`, " 3\n"},
		{"instr", `PRINT INSTR("HELLO", "LL")`, " 3\n"},
		{"ucase", `PRINT UCASE$("hi")`, "HI\n"},
		{"chr", `PRINT CHR$(65)`, "A\n"},
		{"asc", `PRINT ASC("A")`, " 65\n"},
		{"str", `PRINT STR$(5)`, " 5\n"},
		{"val prefix", `PRINT VAL("12AB")`, " 12\n"},
		{"string repeat", `PRINT STRING$(3, "X")`, "XXX\n"},
		{"space", `PRINT SPACE$(2) + "X"`, "  X\n"},
		{"hex", `PRINT HEX$(255)`, "FF\n"},
		{"int floor", `PRINT INT(-2.1)`, "-3\n"},
		{"fix truncates", `PRINT FIX(-2.9)`, "-2\n"},
		{"abs", `PRINT ABS(-4)`, " 4\n"},
		{"sgn", `PRINT SGN(-9)`, "-1\n"},
		{"sqr", `PRINT SQR(16)`, " 4\n"},
		{"peek is zero", `PRINT PEEK(1234)`, " 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, con := runSource(t, tt.source)
			if got := con.out.String(); got != tt.want {
				t.Errorf("output %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Machine state invariants
// ---------------------------------------------------------------------------

func TestLoopLeavesStackEmpty(t *testing.T) {
	m, con := runSource(t, `FOR I = 1 TO 3: PRINT I: NEXT I`)
	if got := con.out.String(); got != " 1\n 2\n 3\n" {
		t.Errorf("output %q", got)
	}
	if d := m.StackDepth(); d != 0 {
		t.Errorf("operand stack depth %d after halt, want 0", d)
	}
	if !m.Halted() {
		t.Error("machine did not halt")
	}
}

func TestExitForUnwindsLoopState(t *testing.T) {
	m, _ := runSource(t, "FOR I = 1 TO 10\nFOR J = 1 TO 10\nIF J = 2 THEN EXIT FOR\nNEXT J\nNEXT I")
	if d := m.StackDepth(); d != 0 {
		t.Errorf("operand stack depth %d after halt, want 0", d)
	}
}

func TestGosubRestoresFrameDepth(t *testing.T) {
	m, _ := runSource(t, "GOSUB L\nEND\nL: RETURN")
	if d := m.FrameDepth(); d != 1 {
		t.Errorf("frame depth %d after halt, want 1", d)
	}
}

func TestReadAdvancesDataPointer(t *testing.T) {
	m, con := runSource(t, "DATA 1, 2, 3\nREAD X\nREAD Y\nREAD Z\nPRINT X; Y; Z")
	if got := con.out.String(); !strings.Contains(got, "1 2 3") {
		t.Errorf("output %q, want it to contain %q", got, "1 2 3")
	}
	if p := m.DataPtr(); p != 3 {
		t.Errorf("data pointer %d, want 3", p)
	}
}

func TestNullDataEntryResetsTheVariable(t *testing.T) {
	_, con := runSource(t, "X = 9\nDATA ,5\nREAD X\nPRINT X\nREAD X\nPRINT X")
	if got := con.out.String(); got != " 0\n 5\n" {
		t.Errorf("output %q, want %q", got, " 0\n 5\n")
	}
}

func TestNullDataEntryResetsAStringVariable(t *testing.T) {
	_, con := runSource(t, "S$ = \"OLD\"\nDATA ,\nREAD S$\nPRINT S$; \"|\"")
	if got := con.out.String(); got != "|\n" {
		t.Errorf("output %q, want %q", got, "|\n")
	}
}

func TestRandomSequenceIsDeterministic(t *testing.T) {
	source := "X = RND(-1)\nY = RND\nPRINT Y"
	_, first := runSource(t, source)
	_, second := runSource(t, source)
	if first.out.String() != second.out.String() {
		t.Errorf("reseeded sequences differ: %q vs %q", first.out.String(), second.out.String())
	}
}

func TestRndStaysInUnitInterval(t *testing.T) {
	_, con := runSource(t, "X = RND\nIF X >= 0 AND X < 1 THEN PRINT \"OK\"")
	if got := con.out.String(); got != "OK\n" {
		t.Errorf("output %q, want %q", got, "OK\n")
	}
}

// ---------------------------------------------------------------------------
// Error events
// ---------------------------------------------------------------------------

func TestDivisionByZeroEvent(t *testing.T) {
	re := runForError(t, `X = 10 / 0`)
	if re.Code != vm.ErrDivisionByZero {
		t.Errorf("code %d, want %d", re.Code, vm.ErrDivisionByZero)
	}
	if re.Name() != "DIVISION_BY_ZERO" {
		t.Errorf("name %q", re.Name())
	}
	if re.Locus == "" {
		t.Error("error carries no locus")
	}
}

func TestErrorEventCarriesMachineID(t *testing.T) {
	m, _ := newMachine(t, "X = 1 / 0")
	var event *vm.RuntimeError
	m.OnError(func(re *vm.RuntimeError) { event = re })
	if err := m.Run(); err == nil {
		t.Fatal("expected a runtime error")
	}
	if event == nil {
		t.Fatal("error event did not fire")
	}
	if event.Machine != m.ID {
		t.Errorf("event machine %s, want %s", event.Machine, m.ID)
	}
}

func TestModuloByZeroEvent(t *testing.T) {
	re := runForError(t, `X = 10 MOD 0`)
	if re.Code != vm.ErrDivisionByZero {
		t.Errorf("code %d, want %d", re.Code, vm.ErrDivisionByZero)
	}
}

func TestSubscriptOutOfRange(t *testing.T) {
	re := runForError(t, "OPTION BASE 1\nDIM A(3)\nA(0) = 1")
	if re.Code != vm.ErrIO {
		t.Errorf("code %d, want %d", re.Code, vm.ErrIO)
	}
}

func TestOutOfDataFaults(t *testing.T) {
	re := runForError(t, "DATA 1\nREAD X\nREAD Y")
	if re.Code != vm.ErrIO {
		t.Errorf("code %d, want %d", re.Code, vm.ErrIO)
	}
}

func TestRunawayRecursionOverflowsFrames(t *testing.T) {
	source := "FUNCTION F(N)\nF = F(N + 1)\nEND FUNCTION\nX = F(0)"
	con := &fakeConsole{}
	m := vm.New(compileSource(t, source), vm.Config{FrameLimit: 16}, con, &fakeAudio{}, newFakeFS())
	err := m.Run()
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	re, ok := err.(*vm.RuntimeError)
	if !ok {
		t.Fatalf("error %T, want *vm.RuntimeError", err)
	}
	if re.Code != vm.ErrStackOverflow {
		t.Errorf("code %d, want %d", re.Code, vm.ErrStackOverflow)
	}
}

func TestUnknownSyscallCode(t *testing.T) {
	prog := bytecode.NewProgram()
	prog.Instructions = []bytecode.Instruction{
		{Op: bytecode.OpSyscall, Arg: bytecode.StringOperand("nope")},
	}
	m := vm.New(prog, vm.Config{}, &fakeConsole{}, &fakeAudio{}, newFakeFS())
	err := m.Run()
	re, ok := err.(*vm.RuntimeError)
	if !ok {
		t.Fatalf("error %T, want *vm.RuntimeError", err)
	}
	if re.Code != vm.ErrUnknownSyscall {
		t.Errorf("code %d, want %d", re.Code, vm.ErrUnknownSyscall)
	}
	if re.Name() != "UKNOWN_SYSCALL" {
		t.Errorf("name %q, want the historical spelling", re.Name())
	}
}

func TestStackUnderflowCode(t *testing.T) {
	prog := bytecode.NewProgram()
	prog.Instructions = []bytecode.Instruction{{Op: bytecode.OpPop}}
	m := vm.New(prog, vm.Config{}, &fakeConsole{}, &fakeAudio{}, newFakeFS())
	err := m.Run()
	re, ok := err.(*vm.RuntimeError)
	if !ok {
		t.Fatalf("error %T, want *vm.RuntimeError", err)
	}
	if re.Code != vm.ErrStackUnderflow {
		t.Errorf("code %d, want %d", re.Code, vm.ErrStackUnderflow)
	}
}

func TestOperandStackLimit(t *testing.T) {
	prog := bytecode.NewProgram()
	prog.Instructions = []bytecode.Instruction{
		{Op: bytecode.OpPushConst, Arg: bytecode.NumberOperand(1)},
		{Op: bytecode.OpJmp, Arg: bytecode.NumberOperand(0)},
	}
	m := vm.New(prog, vm.Config{StackLimit: 8}, &fakeConsole{}, &fakeAudio{}, newFakeFS())
	err := m.Run()
	re, ok := err.(*vm.RuntimeError)
	if !ok {
		t.Fatalf("error %T, want *vm.RuntimeError", err)
	}
	if re.Code != vm.ErrStackOverflow {
		t.Errorf("code %d, want %d", re.Code, vm.ErrStackOverflow)
	}
}

// ---------------------------------------------------------------------------
// Devices
// ---------------------------------------------------------------------------

func TestInputStoresLine(t *testing.T) {
	m, con := newMachine(t, "INPUT \"NAME\"; N$\nPRINT N$")
	con.lines = []string{"BOB"}
	if err := m.Run(); err != nil {
		t.Fatalf("run: %s", err)
	}
	if len(con.prompts) != 1 || con.prompts[0] != "NAME? " {
		t.Errorf("prompts %q, want [%q]", con.prompts, "NAME? ")
	}
	if got := con.out.String(); got != "BOB\n" {
		t.Errorf("output %q, want %q", got, "BOB\n")
	}
}

func TestInputConvertsNumbers(t *testing.T) {
	m, con := newMachine(t, "INPUT N\nPRINT N * 2")
	con.lines = []string{" 21 "}
	if err := m.Run(); err != nil {
		t.Fatalf("run: %s", err)
	}
	if len(con.prompts) != 1 || con.prompts[0] != "? " {
		t.Errorf("prompts %q, want [%q]", con.prompts, "? ")
	}
	if got := con.out.String(); got != " 42\n" {
		t.Errorf("output %q, want %q", got, " 42\n")
	}
}

func TestInkeyDrainsKeyBuffer(t *testing.T) {
	m, con := newMachine(t, "PRINT INKEY$\nPRINT INKEY$")
	con.keys = []int{65}
	if err := m.Run(); err != nil {
		t.Fatalf("run: %s", err)
	}
	if got := con.out.String(); got != "A\n\n" {
		t.Errorf("output %q, want %q", got, "A\n\n")
	}
}

func TestFileRoundTrip(t *testing.T) {
	source := strings.Join([]string{
		`OPEN "T" FOR OUTPUT AS #1`,
		`WRITE #1, 42`,
		`WRITE #1, "HI"`,
		`CLOSE #1`,
		`OPEN "T" FOR INPUT AS #1`,
		`INPUT #1, N`,
		`INPUT #1, S$`,
		`PRINT N`,
		`PRINT S$`,
		`PRINT EOF(1)`,
		`CLOSE`,
	}, "\n")
	_, con := runSource(t, source)
	want := " 42\nHI\n-1\n"
	if got := con.out.String(); got != want {
		t.Errorf("output %q, want %q", got, want)
	}
}

func TestDoubleOpenFaults(t *testing.T) {
	re := runForError(t, "OPEN \"T\" FOR OUTPUT AS #1\nOPEN \"T\" FOR OUTPUT AS #1")
	if re.Code != vm.ErrIO {
		t.Errorf("code %d, want %d", re.Code, vm.ErrIO)
	}
}

func TestClsClearsConsole(t *testing.T) {
	_, con := runSource(t, "PRINT \"X\"\nCLS")
	if !con.cleared {
		t.Error("CLS did not reach the console")
	}
	if con.CursorX() != 0 {
		t.Errorf("cursor column %d after CLS, want 0", con.CursorX())
	}
}

func TestPlayCompletesInTestMode(t *testing.T) {
	prog := compileSource(t, "PLAY \"T120CDE\"\nPRINT \"DONE\"")
	audio := &fakeAudio{}
	con := &fakeConsole{}
	m := vm.New(prog, vm.Config{}, con, audio, newFakeFS())
	if err := m.Run(); err != nil {
		t.Fatalf("run: %s", err)
	}
	if len(audio.played) != 1 || audio.played[0] != "T120CDE" {
		t.Errorf("played %q", audio.played)
	}
	if got := con.out.String(); got != "DONE\n" {
		t.Errorf("output %q, want %q", got, "DONE\n")
	}
}

func TestBeepReachesAudio(t *testing.T) {
	prog := compileSource(t, "BEEP")
	audio := &fakeAudio{}
	m := vm.New(prog, vm.Config{}, &fakeConsole{}, audio, newFakeFS())
	if err := m.Run(); err != nil {
		t.Fatalf("run: %s", err)
	}
	if audio.beeps != 1 {
		t.Errorf("beeps %d, want 1", audio.beeps)
	}
}

func TestSpriteSetupCompletesInTestMode(t *testing.T) {
	_, con := runSource(t, "SPSET 1, \"BALL\"\nSPOFS 1, 10, 20\nPRINT \"OK\"")
	want := []string{"create 1 BALL", "offset 1 10,20"}
	if len(con.sprites) != len(want) || con.sprites[0] != want[0] || con.sprites[1] != want[1] {
		t.Errorf("sprite calls %q, want %q", con.sprites, want)
	}
}

func TestSleepIsImmediateInTestMode(t *testing.T) {
	_, con := runSource(t, "SLEEP 60\nPRINT \"AWAKE\"")
	if got := con.out.String(); got != "AWAKE\n" {
		t.Errorf("output %q, want %q", got, "AWAKE\n")
	}
}

// ---------------------------------------------------------------------------
// Reset
// ---------------------------------------------------------------------------

func TestResetClearsStateAndReruns(t *testing.T) {
	m, con := runSource(t, "DATA 1\nREAD X\nPRINT X")
	if p := m.DataPtr(); p != 1 {
		t.Fatalf("data pointer %d, want 1", p)
	}
	m.Reset(nil)
	if p := m.DataPtr(); p != 0 {
		t.Errorf("data pointer %d after reset, want 0", p)
	}
	if m.Halted() {
		t.Error("machine still halted after reset")
	}
	if err := m.Run(); err != nil {
		t.Fatalf("rerun: %s", err)
	}
	if got := con.out.String(); got != " 1\n 1\n" {
		t.Errorf("output %q, want %q", got, " 1\n 1\n")
	}
}
