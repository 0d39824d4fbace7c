package vm

import (
	"math"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// Instruction dispatch
// ---------------------------------------------------------------------------

type opHandler func(m *Machine, arg bytecode.Operand) error

var dispatch map[bytecode.Opcode]opHandler

func init() {
	dispatch = map[bytecode.Opcode]opHandler{
		bytecode.OpNop:       opNop,
		bytecode.OpPushConst: opPushConst,
		bytecode.OpCopyTop:   opCopyTop,
		bytecode.OpPop:       opPop,

		bytecode.OpPushValue:   opPushValue,
		bytecode.OpPushRef:     opPushRef,
		bytecode.OpPopVal:      opPopVal,
		bytecode.OpPopVar:      opPopVar,
		bytecode.OpAssign:      opAssign,
		bytecode.OpArrayDeref:  opArrayDeref,
		bytecode.OpMemberDeref: opMemberDeref,
		bytecode.OpMemberValue: opMemberValue,

		bytecode.OpJmp:     opJmp,
		bytecode.OpBZ:      opBZ,
		bytecode.OpBNZ:     opBNZ,
		bytecode.OpCall:    opCall,
		bytecode.OpGosub:   opGosub,
		bytecode.OpRet:     opRet,
		bytecode.OpEnd:     opEnd,
		bytecode.OpForLoop: opForLoop,
		bytecode.OpRestore: opRestore,
		bytecode.OpSyscall: opSyscall,

		bytecode.OpAdd: opAdd,
		bytecode.OpSub: arith(func(a, b float64) (float64, error) { return a - b, nil }),
		bytecode.OpMul: arith(func(a, b float64) (float64, error) { return a * b, nil }),
		bytecode.OpDiv: arith(divide),
		bytecode.OpMod: arith(modulo),
		bytecode.OpPow: arith(func(a, b float64) (float64, error) { return math.Pow(a, b), nil }),
		bytecode.OpNeg: opNeg,

		bytecode.OpEq:  compare(func(c int) bool { return c == 0 }),
		bytecode.OpNe:  compare(func(c int) bool { return c != 0 }),
		bytecode.OpLt:  compare(func(c int) bool { return c < 0 }),
		bytecode.OpLe:  compare(func(c int) bool { return c <= 0 }),
		bytecode.OpGt:  compare(func(c int) bool { return c > 0 }),
		bytecode.OpGe:  compare(func(c int) bool { return c >= 0 }),
		bytecode.OpAnd: bitwise(func(a, b int64) int64 { return a & b }),
		bytecode.OpOr:  bitwise(func(a, b int64) int64 { return a | b }),
		bytecode.OpNot: opNot,
	}
}

func (m *Machine) execute(in bytecode.Instruction) error {
	h, ok := dispatch[in.Op]
	if !ok {
		return fault("unknown opcode 0x%02X", byte(in.Op))
	}
	return h(m, in.Arg)
}

// ----- stack and constants ------------------------------------------------------

func opNop(m *Machine, arg bytecode.Operand) error { return nil }

func opPushConst(m *Machine, arg bytecode.Operand) error {
	switch arg.Kind {
	case bytecode.OperandNumber:
		return m.push(Number(arg.Num))
	case bytecode.OperandString:
		return m.push(Str(arg.Str))
	}
	return fault("pushconst without a constant")
}

func opCopyTop(m *Machine, arg bytecode.Operand) error {
	v, err := m.peekTop()
	if err != nil {
		return err
	}
	return m.push(v)
}

func opPop(m *Machine, arg bytecode.Operand) error {
	_, err := m.pop()
	return err
}

// ----- variables ------------------------------------------------------------------

func opPushValue(m *Machine, arg bytecode.Operand) error {
	b := m.bindScalar(arg.Str)
	if b.Array != nil {
		return fault("%s is an array", arg.Str)
	}
	return m.push(b.Cell.Val)
}

func opPushRef(m *Machine, arg bytecode.Operand) error {
	b := m.bindScalar(arg.Str)
	if b.Array != nil {
		return m.push(ArrayRef(b.Array))
	}
	return m.push(RefTo(b.Cell))
}

func opPopVal(m *Machine, arg bytecode.Operand) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	b := m.bindScalar(arg.Str)
	if b.Array != nil {
		return fault("%s is an array", arg.Str)
	}
	return b.Cell.Store(v)
}

// opPopVar binds a name: a reference on the stack aliases its cell (the
// by-reference parameter contract), an array reference aliases the array,
// and a plain value is boxed into a fresh cell.
func opPopVar(m *Machine, arg bytecode.Operand) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	name := arg.Str
	switch v.Kind {
	case ValRef:
		m.declare(name, &Binding{Cell: v.Ref})
	case ValArray:
		m.declare(name, &Binding{Array: v.Arr})
	default:
		t := scalarTypeForName(name, m.prog.DefaultType)
		cell := NewCell(t)
		if err := cell.Store(v); err != nil {
			return err
		}
		m.declare(name, &Binding{Cell: cell})
	}
	return nil
}

func opAssign(m *Machine, arg bytecode.Operand) error {
	ref, err := m.pop()
	if err != nil {
		return err
	}
	if ref.Kind != ValRef {
		return fault("assignment target is not a variable")
	}
	v, err := m.pop()
	if err != nil {
		return err
	}
	return ref.Ref.Store(v)
}

// opArrayDeref pops the array reference, then one index per dimension
// (rightmost index on top), and pushes the addressed cell's reference
// when the flag is truthy, its value otherwise.
func opArrayDeref(m *Machine, arg bytecode.Operand) error {
	ref, err := m.pop()
	if err != nil {
		return err
	}
	if ref.Kind != ValArray {
		return fault("not an array")
	}
	a := ref.Arr

	indices := make([]int, a.Dims())
	for i := a.Dims() - 1; i >= 0; i-- {
		v, err := m.pop()
		if err != nil {
			return err
		}
		if indices[i], err = v.AsInt(); err != nil {
			return fault("array index: %s", err)
		}
	}
	cell, err := a.Cell(indices)
	if err != nil {
		return fault("%s", err)
	}
	if arg.Num != 0 {
		return m.push(RefTo(cell))
	}
	return m.push(cell.Val)
}

func memberCell(m *Machine, field string) (*Cell, error) {
	v, err := m.pop()
	if err != nil {
		return nil, err
	}
	if v.Kind == ValRef {
		v = v.Ref.Val
	}
	if v.Kind != ValRecord {
		return nil, fault("not a record")
	}
	cell, err := v.Rec.Field(field)
	if err != nil {
		return nil, fault("%s", err)
	}
	return cell, nil
}

func opMemberDeref(m *Machine, arg bytecode.Operand) error {
	cell, err := memberCell(m, arg.Str)
	if err != nil {
		return err
	}
	return m.push(RefTo(cell))
}

func opMemberValue(m *Machine, arg bytecode.Operand) error {
	cell, err := memberCell(m, arg.Str)
	if err != nil {
		return err
	}
	return m.push(cell.Val)
}

// ----- control flow -----------------------------------------------------------------

func opJmp(m *Machine, arg bytecode.Operand) error {
	m.pc = int(arg.Num)
	return nil
}

func opBZ(m *Machine, arg bytecode.Operand) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	if !v.Deref().IsTrue() {
		m.pc = int(arg.Num)
	}
	return nil
}

func opBNZ(m *Machine, arg bytecode.Operand) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	if v.Deref().IsTrue() {
		m.pc = int(arg.Num)
	}
	return nil
}

func opCall(m *Machine, arg bytecode.Operand) error {
	if len(m.frames) >= m.cfg.FrameLimit {
		return faultCode(ErrStackOverflow, "call stack exceeds %d frames", m.cfg.FrameLimit)
	}
	m.frames = append(m.frames, newCallFrame(m.pc))
	m.pc = int(arg.Num)
	return nil
}

func opGosub(m *Machine, arg bytecode.Operand) error {
	if len(m.frames) >= m.cfg.FrameLimit {
		return faultCode(ErrStackOverflow, "call stack exceeds %d frames", m.cfg.FrameLimit)
	}
	m.frames = append(m.frames, newGosubFrame(m.top(), m.pc))
	m.pc = int(arg.Num)
	return nil
}

func opRet(m *Machine, arg bytecode.Operand) error {
	if len(m.frames) <= 1 {
		return faultCode(ErrStackUnderflow, "RETURN without GOSUB or CALL")
	}
	frame := m.top()
	m.frames = m.frames[:len(m.frames)-1]
	m.pc = frame.ReturnPC
	return nil
}

func opEnd(m *Machine, arg bytecode.Operand) error {
	m.halted = true
	return nil
}

// opForLoop pops the counter and checks it against the step and end
// values beneath it, which stay resident while the loop continues. On
// termination it pops step and end too and jumps past the loop.
func opForLoop(m *Machine, arg bytecode.Operand) error {
	counter, err := m.pop()
	if err != nil {
		return err
	}
	c, err := counter.AsNumber()
	if err != nil {
		return fault("FOR counter: %s", err)
	}
	step, err := m.peekTop()
	if err != nil {
		return err
	}
	s, err := step.AsNumber()
	if err != nil {
		return fault("STEP value: %s", err)
	}
	if len(m.stack) < 2 {
		return faultCode(ErrStackUnderflow, "FOR loop state missing")
	}
	e, err := m.stack[len(m.stack)-2].AsNumber()
	if err != nil {
		return fault("TO value: %s", err)
	}

	if s > 0 && c > e || s < 0 && c < e {
		m.stack = m.stack[:len(m.stack)-2]
		m.pc = int(arg.Num)
	}
	return nil
}

func opRestore(m *Machine, arg bytecode.Operand) error {
	m.dataPtr = int(arg.Num)
	return nil
}

func opSyscall(m *Machine, arg bytecode.Operand) error {
	return m.syscall(arg.Str)
}

// ----- arithmetic ---------------------------------------------------------------------

// opAdd adds numbers and concatenates strings.
func opAdd(m *Machine, arg bytecode.Operand) error {
	rhs, err := m.pop()
	if err != nil {
		return err
	}
	lhs, err := m.pop()
	if err != nil {
		return err
	}
	lhs, rhs = lhs.Deref(), rhs.Deref()
	if lhs.Kind == ValString && rhs.Kind == ValString {
		return m.push(Str(lhs.Str + rhs.Str))
	}
	if lhs.Kind == ValNumber && rhs.Kind == ValNumber {
		return m.push(Number(lhs.Num + rhs.Num))
	}
	return fault("cannot add %s and %s", lhs.Kind, rhs.Kind)
}

func arith(f func(a, b float64) (float64, error)) opHandler {
	return func(m *Machine, arg bytecode.Operand) error {
		rhs, err := m.pop()
		if err != nil {
			return err
		}
		lhs, err := m.pop()
		if err != nil {
			return err
		}
		b, err := rhs.AsNumber()
		if err != nil {
			return fault("%s", err)
		}
		a, err := lhs.AsNumber()
		if err != nil {
			return fault("%s", err)
		}
		result, err := f(a, b)
		if err != nil {
			return err
		}
		return m.push(Number(result))
	}
}

func divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, faultCode(ErrDivisionByZero, "division by zero")
	}
	return a / b, nil
}

// modulo follows the dialect: operands round to integers first.
func modulo(a, b float64) (float64, error) {
	bi := roundHalf(b)
	if bi == 0 {
		return 0, faultCode(ErrDivisionByZero, "division by zero")
	}
	return float64(roundHalf(a) % bi), nil
}

func opNeg(m *Machine, arg bytecode.Operand) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	n, err := v.AsNumber()
	if err != nil {
		return fault("%s", err)
	}
	return m.push(Number(-n))
}

// ----- comparison and logic --------------------------------------------------------------

// compare pops two operands (RHS first) and applies the dialect's value
// comparison: numbers by magnitude, strings lexicographically.
func compare(accept func(c int) bool) opHandler {
	return func(m *Machine, arg bytecode.Operand) error {
		rhs, err := m.pop()
		if err != nil {
			return err
		}
		lhs, err := m.pop()
		if err != nil {
			return err
		}
		lhs, rhs = lhs.Deref(), rhs.Deref()

		var c int
		switch {
		case lhs.Kind == ValNumber && rhs.Kind == ValNumber:
			switch {
			case lhs.Num < rhs.Num:
				c = -1
			case lhs.Num > rhs.Num:
				c = 1
			}
		case lhs.Kind == ValString && rhs.Kind == ValString:
			switch {
			case lhs.Str < rhs.Str:
				c = -1
			case lhs.Str > rhs.Str:
				c = 1
			}
		default:
			return fault("cannot compare %s and %s", lhs.Kind, rhs.Kind)
		}
		return m.push(Bool(accept(c)))
	}
}

func bitwise(f func(a, b int64) int64) opHandler {
	return func(m *Machine, arg bytecode.Operand) error {
		rhs, err := m.pop()
		if err != nil {
			return err
		}
		lhs, err := m.pop()
		if err != nil {
			return err
		}
		b, err := rhs.AsInt()
		if err != nil {
			return fault("%s", err)
		}
		a, err := lhs.AsInt()
		if err != nil {
			return fault("%s", err)
		}
		return m.push(Number(float64(f(int64(a), int64(b)))))
	}
}

func opNot(m *Machine, arg bytecode.Operand) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	n, err := v.AsInt()
	if err != nil {
		return fault("%s", err)
	}
	return m.push(Number(float64(^int64(n))))
}
