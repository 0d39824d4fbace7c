package vm

import "testing"

func TestRegistryCoversCoreRoutines(t *testing.T) {
	funcs := []string{
		"LEN", "LEFT$", "RIGHT$", "MID$", "INSTR", "CHR$", "ASC", "STR$",
		"VAL", "UCASE$", "LCASE$", "SPACE$", "STRING$", "HEX$", "OCT$",
		"INT", "FIX", "ABS", "SGN", "SQR", "SIN", "COS", "TAN", "ATN",
		"LOG", "EXP", "RND", "TIMER", "INKEY$", "EOF", "PEEK",
	}
	for _, name := range funcs {
		if _, ok := LookupFunction(name); !ok {
			t.Errorf("system function %s is not registered", name)
		}
	}

	subs := []string{
		"print", "print_comma", "print_tab", "print_nl", "print_using",
		"input", "read", "alloc_scalar", "alloc_array",
		"open", "close", "write", "input_file",
		"CLS", "LOCATE", "COLOR", "SCREEN", "WIDTH", "SWAP",
		"SLEEP", "YIELD", "SYSTEM", "BEEP", "RANDOMIZE",
		"PLAY", "BGMPLAY", "BGMSTOP",
		"SPSET", "SPOFS", "SPSCALE", "SPROT", "SPHOME",
		"SPHIDE", "SPSHOW", "SPANIM", "SPCLR",
	}
	for _, name := range subs {
		if _, ok := LookupSubroutine(name); !ok {
			t.Errorf("system subroutine %s is not registered", name)
		}
	}
}

func TestFunctionsAndSubroutinesAreDisjointNamespaces(t *testing.T) {
	if _, ok := LookupSubroutine("LEN"); ok {
		t.Error("LEN leaked into the subroutine registry")
	}
	if _, ok := LookupFunction("print"); ok {
		t.Error("print leaked into the function registry")
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	r := &Routine{Name: "test_dup_routine"}
	RegisterSubroutine(r)
	RegisterSubroutine(r)
}

func TestByRefIndices(t *testing.T) {
	r := &Routine{Name: "x", Args: []ArgType{ArgAny, ArgAny, ArgAny}, Refs: []int{0, 2}}
	for i, want := range []bool{true, false, true} {
		if got := r.byRef(i); got != want {
			t.Errorf("byRef(%d) = %v, want %v", i, got, want)
		}
	}
}
