package vm

import "github.com/qbvm/qbvm/bytecode"

// ---------------------------------------------------------------------------
// Call frames
// ---------------------------------------------------------------------------

// Frame is one entry of the call stack. A CALL frame owns a fresh variable
// table; a GOSUB frame shares the caller's table by reference, so the
// subroutine body reads and writes the caller's variables directly.
type Frame struct {
	Vars     Vars
	ReturnPC int
	IsGosub  bool
}

// newRootFrame builds the program's base frame; its table doubles as the
// global scope that SHARED names resolve into.
func newRootFrame() *Frame {
	return &Frame{Vars: make(Vars), ReturnPC: -1}
}

// newCallFrame builds a frame for a SUB/FUNCTION call.
func newCallFrame(returnPC int) *Frame {
	return &Frame{Vars: make(Vars), ReturnPC: returnPC}
}

// newGosubFrame builds a frame that aliases the caller's variables.
func newGosubFrame(caller *Frame, returnPC int) *Frame {
	return &Frame{Vars: caller.Vars, ReturnPC: returnPC, IsGosub: true}
}

// lookup resolves a name in the frame, falling back to the global frame
// for names the program marks SHARED.
func (m *Machine) lookup(name string) *Binding {
	frame := m.top()
	if b, ok := frame.Vars[name]; ok {
		return b
	}
	if m.prog.Shared[name] {
		if b, ok := m.frames[0].Vars[name]; ok {
			return b
		}
	}
	return nil
}

// bindScalar returns the binding for a name, creating a zeroed scalar cell
// on first use. Bare names take the program's default type; SHARED names
// land in the global frame.
func (m *Machine) bindScalar(name string) *Binding {
	if b := m.lookup(name); b != nil {
		return b
	}
	t := scalarTypeForName(name, m.prog.DefaultType)
	b := &Binding{Cell: NewCell(t)}
	m.declare(name, b)
	return b
}

// declare installs a binding in the frame the name belongs to.
func (m *Machine) declare(name string, b *Binding) {
	if m.prog.Shared[name] {
		m.frames[0].Vars[name] = b
		return
	}
	m.top().Vars[name] = b
}

// cellType resolves a declared type name to a runtime type: one of the
// scalar names or a user record type.
func (m *Machine) cellType(typeName string) (Type, error) {
	if kind, ok := bytecode.ScalarKindNamed(typeName); ok {
		return ScalarTypeFor(kind), nil
	}
	if t, ok := m.types[typeName]; ok {
		return t, nil
	}
	return nil, fault("unknown type %s", typeName)
}
