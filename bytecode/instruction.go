// Package bytecode defines the instruction set and compiled program form
// exchanged between the compiler and the virtual machine.
package bytecode

import "fmt"

// Locus is a (line, column) source position. It is attached to tokens,
// AST nodes and instructions and is carried into error messages.
type Locus struct {
	Line int `cbor:"1,keyasint"`
	Col  int `cbor:"2,keyasint"`
}

func (l Locus) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

// Opcode identifies a VM instruction.
// Opcodes are organized into ranges by category. The numeric values are
// part of the wire format; do not renumber.
type Opcode uint8

const (
	// ========================================================================
	// Stack and constants (0x00-0x0F)
	// ========================================================================

	OpNop       Opcode = 0x00 // No operation
	OpPushConst Opcode = 0x01 // Push literal operand (number or string)
	OpCopyTop   Opcode = 0x02 // Duplicate top of stack
	OpPop       Opcode = 0x03 // Discard top of stack

	// ========================================================================
	// Variables (0x10-0x1F)
	// ========================================================================

	OpPushValue   Opcode = 0x10 // Push value of named variable
	OpPushRef     Opcode = 0x11 // Push reference to named variable
	OpPopVal      Opcode = 0x12 // Pop value, assign into named variable
	OpPopVar      Opcode = 0x13 // Pop reference (or value), rebind name to it
	OpAssign      Opcode = 0x14 // Pop reference, pop value, copy value into it
	OpArrayDeref  Opcode = 0x15 // Pop array ref + indices; arg 1 pushes cell ref, 0 its value
	OpMemberDeref Opcode = 0x16 // Pop record ref, push named field reference
	OpMemberValue Opcode = 0x17 // Pop record ref, push named field value

	// ========================================================================
	// Control flow (0x20-0x2F)
	// ========================================================================

	OpJmp     Opcode = 0x20 // Jump to address
	OpBZ      Opcode = 0x21 // Pop; jump if zero/false
	OpBNZ     Opcode = 0x22 // Pop; jump if non-zero
	OpCall    Opcode = 0x23 // Push fresh frame, jump
	OpGosub   Opcode = 0x24 // Push frame sharing caller's variables, jump
	OpRet     Opcode = 0x25 // Pop frame, restore pc
	OpEnd     Opcode = 0x26 // Halt (pc moves past the last instruction)
	OpForLoop Opcode = 0x27 // Loop check against (end, step, counter) on stack
	OpRestore Opcode = 0x28 // Set the DATA pointer to a pooled offset
	OpSyscall Opcode = 0x29 // Dispatch named system routine

	// ========================================================================
	// Arithmetic (0x30-0x3F)
	// ========================================================================

	OpAdd Opcode = 0x30 // Pop two (RHS first), push sum / concatenation
	OpSub Opcode = 0x31 // Pop two, push difference
	OpMul Opcode = 0x32 // Pop two, push product
	OpDiv Opcode = 0x33 // Pop two, push quotient; traps on zero divisor
	OpMod Opcode = 0x34 // Pop two, push remainder; traps on zero divisor
	OpPow Opcode = 0x35 // Pop two, push power
	OpNeg Opcode = 0x36 // Negate top of stack

	// ========================================================================
	// Comparison and logic (0x40-0x4F); results follow the -1/0 convention
	// ========================================================================

	OpEq  Opcode = 0x40
	OpNe  Opcode = 0x41
	OpLt  Opcode = 0x42
	OpLe  Opcode = 0x43
	OpGt  Opcode = 0x44
	OpGe  Opcode = 0x45
	OpAnd Opcode = 0x46 // Bitwise AND on integer-coerced operands
	OpOr  Opcode = 0x47 // Bitwise OR on integer-coerced operands
	OpNot Opcode = 0x48 // Unary bitwise complement
)

// ArgKind describes the operand an opcode carries.
type ArgKind uint8

const (
	ArgNone   ArgKind = iota // no operand
	ArgNumber                // numeric operand (address, data index, count, flag)
	ArgString                // string operand (variable name, field, syscall name)
	ArgConst                 // literal operand: number or string
)

// OpcodeInfo provides metadata about each opcode.
type OpcodeInfo struct {
	Name      string  // canonical lower-case mnemonic
	Arg       ArgKind // operand form
	AddrLabel bool    // numeric operand is an instruction address
	DataLabel bool    // numeric operand is a DATA pool index
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:       {Name: "nop"},
	OpPushConst: {Name: "pushconst", Arg: ArgConst},
	OpCopyTop:   {Name: "copytop"},
	OpPop:       {Name: "pop"},

	OpPushValue:   {Name: "pushvalue", Arg: ArgString},
	OpPushRef:     {Name: "pushref", Arg: ArgString},
	OpPopVal:      {Name: "popval", Arg: ArgString},
	OpPopVar:      {Name: "popvar", Arg: ArgString},
	OpAssign:      {Name: "assign"},
	OpArrayDeref:  {Name: "array_deref", Arg: ArgNumber},
	OpMemberDeref: {Name: "member_deref", Arg: ArgString},
	OpMemberValue: {Name: "member_value", Arg: ArgString},

	OpJmp:     {Name: "jmp", Arg: ArgNumber, AddrLabel: true},
	OpBZ:      {Name: "bz", Arg: ArgNumber, AddrLabel: true},
	OpBNZ:     {Name: "bnz", Arg: ArgNumber, AddrLabel: true},
	OpCall:    {Name: "call", Arg: ArgNumber, AddrLabel: true},
	OpGosub:   {Name: "gosub", Arg: ArgNumber, AddrLabel: true},
	OpRet:     {Name: "ret"},
	OpEnd:     {Name: "end"},
	OpForLoop: {Name: "forloop", Arg: ArgNumber, AddrLabel: true},
	OpRestore: {Name: "restore", Arg: ArgNumber, DataLabel: true},
	OpSyscall: {Name: "syscall", Arg: ArgString},

	OpAdd: {Name: "+"},
	OpSub: {Name: "-"},
	OpMul: {Name: "*"},
	OpDiv: {Name: "/"},
	OpMod: {Name: "mod"},
	OpPow: {Name: "^"},
	OpNeg: {Name: "neg"},

	OpEq:  {Name: "="},
	OpNe:  {Name: "<>"},
	OpLt:  {Name: "<"},
	OpLe:  {Name: "<="},
	OpGt:  {Name: ">"},
	OpGe:  {Name: ">="},
	OpAnd: {Name: "and"},
	OpOr:  {Name: "or"},
	OpNot: {Name: "not"},
}

// Info returns metadata for an opcode. Unknown opcodes report a
// placeholder name so the disassembler never panics.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("unknown(0x%02X)", byte(op))}
}

// String returns the canonical mnemonic of the opcode.
func (op Opcode) String() string {
	return op.Info().Name
}

// IsBranch returns true if the opcode's operand is an instruction address.
func (op Opcode) IsBranch() bool {
	return op.Info().AddrLabel
}

// AllOpcodes returns every defined opcode. Useful for metadata tests.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		ops = append(ops, op)
	}
	return ops
}

// OperandKind tags the payload carried by an Operand.
type OperandKind uint8

const (
	OperandNone   OperandKind = iota // absent (also: a null DATA entry)
	OperandNumber                    // numeric payload
	OperandString                    // string payload
)

// Operand is an instruction argument or a pooled DATA literal.
type Operand struct {
	Kind OperandKind `cbor:"1,keyasint"`
	Num  float64     `cbor:"2,keyasint,omitempty"`
	Str  string      `cbor:"3,keyasint,omitempty"`
}

// NumberOperand wraps a numeric payload.
func NumberOperand(n float64) Operand { return Operand{Kind: OperandNumber, Num: n} }

// StringOperand wraps a string payload.
func StringOperand(s string) Operand { return Operand{Kind: OperandString, Str: s} }

// NoOperand is the absent operand.
func NoOperand() Operand { return Operand{Kind: OperandNone} }

func (o Operand) String() string {
	switch o.Kind {
	case OperandNumber:
		return fmt.Sprintf("%g", o.Num)
	case OperandString:
		return fmt.Sprintf("%q", o.Str)
	default:
		return ""
	}
}

// Instruction is one executable record: opcode, optional operand, and the
// source locus it was lowered from.
type Instruction struct {
	Op    Opcode  `cbor:"1,keyasint"`
	Arg   Operand `cbor:"2,keyasint,omitempty"`
	Locus Locus   `cbor:"3,keyasint,omitempty"`
}

func (in Instruction) String() string {
	if arg := in.Arg.String(); arg != "" {
		return fmt.Sprintf("%s %s", in.Op, arg)
	}
	return in.Op.String()
}
