package bytecode

import "testing"

func TestOpcodeMetadata(t *testing.T) {
	seen := map[string]Opcode{}
	for _, op := range AllOpcodes() {
		info := op.Info()
		if info.Name == "" {
			t.Errorf("opcode 0x%02X has no mnemonic", byte(op))
		}
		if prev, dup := seen[info.Name]; dup {
			t.Errorf("mnemonic %q is shared by 0x%02X and 0x%02X", info.Name, byte(prev), byte(op))
		}
		seen[info.Name] = op
		if info.AddrLabel && info.Arg != ArgNumber {
			t.Errorf("%s: address operand is not numeric", info.Name)
		}
		if info.DataLabel && info.Arg != ArgNumber {
			t.Errorf("%s: data operand is not numeric", info.Name)
		}
	}
}

func TestUnknownOpcodeHasPlaceholderName(t *testing.T) {
	if got := Opcode(0xFF).String(); got != "unknown(0xFF)" {
		t.Errorf("String() = %q", got)
	}
}

func TestBranchOpcodes(t *testing.T) {
	for _, op := range []Opcode{OpJmp, OpBZ, OpBNZ, OpCall, OpGosub, OpForLoop} {
		if !op.IsBranch() {
			t.Errorf("%s should report as a branch", op)
		}
	}
	for _, op := range []Opcode{OpRestore, OpSyscall, OpAdd, OpRet} {
		if op.IsBranch() {
			t.Errorf("%s should not report as a branch", op)
		}
	}
}

func TestKindForSigil(t *testing.T) {
	tests := []struct {
		name string
		kind ScalarKind
		ok   bool
	}{
		{"N%", KindInteger, true},
		{"N&", KindLong, true},
		{"N!", KindSingle, true},
		{"N#", KindDouble, true},
		{"N$", KindString, true},
		{"N", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		kind, ok := KindForSigil(tt.name)
		if ok != tt.ok || ok && kind != tt.kind {
			t.Errorf("KindForSigil(%q) = %v, %v", tt.name, kind, ok)
		}
	}
}

func TestValidateCatchesBadAddresses(t *testing.T) {
	p := NewProgram()
	p.Instructions = []Instruction{
		{Op: OpJmp, Arg: NumberOperand(5)},
	}
	if err := p.Validate(); err == nil {
		t.Error("out-of-range jump target passed validation")
	}

	p.Instructions = []Instruction{
		{Op: OpJmp, Arg: NumberOperand(1)},
		{Op: OpEnd},
	}
	if err := p.Validate(); err != nil {
		t.Errorf("valid program failed validation: %s", err)
	}

	p.Instructions = []Instruction{
		{Op: OpRestore, Arg: NumberOperand(3)},
	}
	if err := p.Validate(); err == nil {
		t.Error("out-of-range data offset passed validation")
	}
}

func TestWireRoundTrip(t *testing.T) {
	p := NewProgram()
	p.Instructions = []Instruction{
		{Op: OpPushConst, Arg: NumberOperand(1), Locus: Locus{Line: 1, Col: 7}},
		{Op: OpPushConst, Arg: StringOperand("HI"), Locus: Locus{Line: 1, Col: 10}},
		{Op: OpSyscall, Arg: StringOperand("print")},
		{Op: OpEnd},
	}
	p.Data = []Operand{NumberOperand(7), StringOperand("A"), NoOperand()}
	p.Types["PT"] = &RecordType{Name: "PT", Fields: []Field{{Name: "X", Kind: KindInteger}}}
	p.Shared["T"] = true
	p.TestMode = true

	data, err := MarshalProgram(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "QBVM" {
		t.Errorf("image magic %q", data[:4])
	}

	got, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Instructions) != len(p.Instructions) {
		t.Fatalf("instruction count %d, want %d", len(got.Instructions), len(p.Instructions))
	}
	for i := range p.Instructions {
		if got.Instructions[i] != p.Instructions[i] {
			t.Errorf("instruction %d: %+v, want %+v", i, got.Instructions[i], p.Instructions[i])
		}
	}
	if len(got.Data) != 3 || got.Data[0].Num != 7 || got.Data[1].Str != "A" || got.Data[2].Kind != OperandNone {
		t.Errorf("data pool %+v", got.Data)
	}
	pt, ok := got.Types["PT"]
	if !ok || len(pt.Fields) != 1 || pt.Fields[0].Kind != KindInteger {
		t.Errorf("types %+v", got.Types)
	}
	if !got.Shared["T"] {
		t.Error("shared set lost")
	}
	if !got.TestMode {
		t.Error("test mode flag lost")
	}
}

func TestUnmarshalRejectsBadImages(t *testing.T) {
	if _, err := UnmarshalProgram([]byte("QB")); err == nil {
		t.Error("short image accepted")
	}
	if _, err := UnmarshalProgram([]byte("NOPE\x00\x01\xa0")); err == nil {
		t.Error("bad magic accepted")
	}
	if _, err := UnmarshalProgram([]byte("QBVM\x00\x02\xa0")); err == nil {
		t.Error("future version accepted")
	}
}
