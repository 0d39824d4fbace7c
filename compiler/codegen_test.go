package compiler

import (
	"strings"
	"testing"

	"github.com/qbvm/qbvm/bytecode"
)

func generate(t *testing.T, source string) *bytecode.Program {
	t.Helper()
	prog, errs := Compile(source, Options{})
	if len(errs) > 0 {
		for _, e := range errs {
			t.Errorf("compile: %s", e)
		}
		t.FailNow()
	}
	return prog
}

func generateErrors(t *testing.T, source string) []*Error {
	t.Helper()
	prog, errs := Compile(source, Options{})
	if len(errs) == 0 {
		t.Fatalf("compiled without errors:\n%s", bytecode.Disassemble(prog))
	}
	return errs
}

func hasErrorContaining(errs []*Error, want string) bool {
	for _, e := range errs {
		if strings.Contains(e.Message, want) {
			return true
		}
	}
	return false
}

func TestGeneratedProgramsValidate(t *testing.T) {
	sources := []string{
		`PRINT 1 + 2`,
		"FOR I = 1 TO 3: PRINT I: NEXT I",
		"GOSUB L: END: L: PRINT \"HI\": RETURN",
		"SUB S(N)\nPRINT N\nEND SUB\nS 1",
		"FUNCTION F(N)\nF = N\nEND FUNCTION\nPRINT F(1)",
		"TYPE PT\nX AS INTEGER\nEND TYPE\nDIM P AS PT\nP.X = 1",
		"DATA 1, 2\nREAD X\nRESTORE\nREAD X",
		"DO\nEXIT DO\nLOOP",
	}
	for _, source := range sources {
		prog := generate(t, source)
		if err := prog.Validate(); err != nil {
			t.Errorf("%q: %s", source, err)
		}
		last := prog.Instructions[len(prog.Instructions)-1].Op
		if last != bytecode.OpEnd && last != bytecode.OpRet {
			t.Errorf("%q: last instruction is %s", source, last)
		}
	}
}

func TestForLowering(t *testing.T) {
	prog := generate(t, "FOR I = 1 TO 3\nNEXT")
	want := []bytecode.Opcode{
		bytecode.OpPushConst, // from
		bytecode.OpPopVal,    // counter = from
		bytecode.OpPushConst, // end stays on the stack
		bytecode.OpPushConst, // implicit step 1
		bytecode.OpPushValue, // head: counter
		bytecode.OpForLoop,
		bytecode.OpCopyTop, // next: counter += step
		bytecode.OpPushValue,
		bytecode.OpAdd,
		bytecode.OpPopVal,
		bytecode.OpJmp,
		bytecode.OpEnd,
	}
	if len(prog.Instructions) != len(want) {
		t.Fatalf("%d instructions, want %d:\n%s", len(prog.Instructions), len(want), bytecode.Disassemble(prog))
	}
	for i, op := range want {
		if prog.Instructions[i].Op != op {
			t.Fatalf("instruction %d is %s, want %s:\n%s", i, prog.Instructions[i].Op, op, bytecode.Disassemble(prog))
		}
	}
	if target := int(prog.Instructions[5].Arg.Num); target != 11 {
		t.Errorf("forloop exits to %d, want 11", target)
	}
	if target := int(prog.Instructions[10].Arg.Num); target != 4 {
		t.Errorf("back edge jumps to %d, want 4", target)
	}
}

func TestDataPooledInTextualOrder(t *testing.T) {
	prog := generate(t, "DATA 1, \"A\"\nREAD X\nL: DATA ,2")
	want := []bytecode.Operand{
		bytecode.NumberOperand(1),
		bytecode.StringOperand("A"),
		bytecode.NoOperand(),
		bytecode.NumberOperand(2),
	}
	if len(prog.Data) != len(want) {
		t.Fatalf("data pool %+v, want %d entries", prog.Data, len(want))
	}
	for i := range want {
		if prog.Data[i] != want[i] {
			t.Errorf("data %d = %+v, want %+v", i, prog.Data[i], want[i])
		}
	}
}

func TestRestoreTargetsPooledOffset(t *testing.T) {
	prog := generate(t, "DATA 1\nHERE: DATA 2\nREAD X\nRESTORE HERE")
	var restore *bytecode.Instruction
	for i := range prog.Instructions {
		if prog.Instructions[i].Op == bytecode.OpRestore {
			restore = &prog.Instructions[i]
		}
	}
	if restore == nil {
		t.Fatal("no restore instruction emitted")
	}
	if int(restore.Arg.Num) != 1 {
		t.Errorf("restore offset %v, want 1", restore.Arg.Num)
	}
}

func TestSubNameFollowedByColonIsACall(t *testing.T) {
	prog := generate(t, "SUB S(): PRINT 1: END SUB: S: PRINT 2")
	calls := 0
	for _, in := range prog.Instructions {
		if in.Op == bytecode.OpCall {
			calls++
		}
	}
	if calls != 1 {
		t.Errorf("%d call instructions, want 1:\n%s", calls, bytecode.Disassemble(prog))
	}
}

func TestRoutinesLiveAfterMainHalt(t *testing.T) {
	prog := generate(t, "SUB S()\nPRINT 1\nEND SUB\nS")
	endAt := -1
	for i, in := range prog.Instructions {
		if in.Op == bytecode.OpEnd {
			endAt = i
			break
		}
	}
	if endAt < 0 {
		t.Fatal("main flow never halts")
	}
	var call *bytecode.Instruction
	for i := range prog.Instructions {
		if prog.Instructions[i].Op == bytecode.OpCall {
			call = &prog.Instructions[i]
		}
	}
	if call == nil {
		t.Fatal("no call instruction emitted")
	}
	if target := int(call.Arg.Num); target <= endAt {
		t.Errorf("routine entry %d is inside the main flow (halt at %d)", target, endAt)
	}
}

func TestTestModeFlagCarriesThrough(t *testing.T) {
	prog, errs := Compile("PRINT 1", Options{TestMode: true})
	if len(errs) > 0 {
		t.Fatal(errs[0])
	}
	if !prog.TestMode {
		t.Error("test mode flag not set on the program")
	}
}

func TestSharedNamesRecorded(t *testing.T) {
	prog := generate(t, "DIM SHARED T, N%")
	if !prog.Shared["T"] || !prog.Shared["N%"] {
		t.Errorf("shared set %+v", prog.Shared)
	}
}

func TestRecordTypesRecorded(t *testing.T) {
	prog := generate(t, "TYPE PT\nX AS INTEGER\nY AS DOUBLE\nEND TYPE")
	pt, ok := prog.Types["PT"]
	if !ok || len(pt.Fields) != 2 {
		t.Fatalf("types %+v", prog.Types)
	}
	if pt.Fields[1].Name != "Y" || pt.Fields[1].Kind != bytecode.KindDouble {
		t.Errorf("field 1 %+v", pt.Fields[1])
	}
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"undefined goto", "GOTO NOWHERE", "NOWHERE"},
		{"duplicate label", "L: PRINT 1\nL: PRINT 2", "duplicate label"},
		{"next mismatch", "FOR I = 1 TO 2\nNEXT J", "does not match"},
		{"exit for outside loop", "EXIT FOR", "outside"},
		{"exit sub outside sub", "EXIT SUB", "outside"},
		{"unknown subroutine", "FOO 1", "FOO"},
		{"syscall arity", `PRINT LEFT$("A")`, "arguments"},
		{"syscall argument type", "PRINT LEN(1)", "LEN"},
		{"user arity", "SUB S(A)\nEND SUB\nS 1, 2", "arguments"},
		{"unknown type", "DIM P AS THING", "unknown type"},
		{"restore unknown label", "DATA 1\nRESTORE NOWHERE", "NOWHERE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := generateErrors(t, tt.source)
			if !hasErrorContaining(errs, tt.want) {
				t.Errorf("diagnostics %v do not mention %q", errs, tt.want)
			}
		})
	}
}
