package vm

import "fmt"

// ---------------------------------------------------------------------------
// System routine registry
// ---------------------------------------------------------------------------
//
// Syscalls come in two flavors: functions (return a value, used inside
// expressions) and subroutines (statements). The code generator consults
// the same registry to resolve names and check argument types; the VM
// dispatches through it at run time.

// ArgType constrains one system routine argument.
type ArgType uint8

const (
	ArgAny ArgType = iota
	ArgNumber
	ArgString
)

func (t ArgType) String() string {
	switch t {
	case ArgNumber:
		return "number"
	case ArgString:
		return "string"
	}
	return "any"
}

// Handler executes a system routine. args holds one value per declared
// argument (references for by-ref positions, pre-dereferenced otherwise),
// plus the extra values of a variadic call. Functions return the result;
// subroutines return the zero Value.
type Handler func(m *Machine, args []Value) (Value, error)

// Routine describes one system routine.
type Routine struct {
	Name     string
	Args     []ArgType
	Refs     []int // indices of by-ref arguments (receive a reference value)
	Variadic bool  // extra args allowed; the caller pushes their count last
	Result   ArgType
	Fn       Handler
}

// byRef reports whether argument i is passed by reference.
func (r *Routine) byRef(i int) bool {
	for _, idx := range r.Refs {
		if idx == i {
			return true
		}
	}
	return false
}

var (
	functions   = map[string]*Routine{}
	subroutines = map[string]*Routine{}
)

// RegisterFunction installs a system function. Called from init; a
// duplicate name is a programming error.
func RegisterFunction(r *Routine) {
	if _, dup := functions[r.Name]; dup {
		panic(fmt.Sprintf("duplicate system function %s", r.Name))
	}
	functions[r.Name] = r
}

// RegisterSubroutine installs a system subroutine.
func RegisterSubroutine(r *Routine) {
	if _, dup := subroutines[r.Name]; dup {
		panic(fmt.Sprintf("duplicate system subroutine %s", r.Name))
	}
	subroutines[r.Name] = r
}

// LookupFunction resolves a system function by name.
func LookupFunction(name string) (*Routine, bool) {
	r, ok := functions[name]
	return r, ok
}

// LookupSubroutine resolves a system subroutine by name.
func LookupSubroutine(name string) (*Routine, bool) {
	r, ok := subroutines[name]
	return r, ok
}

// syscall dispatches one syscall instruction: pops arguments per the
// routine's signature, invokes the handler, and pushes the result for
// functions.
func (m *Machine) syscall(name string) error {
	r, isFn := functions[name]
	if !isFn {
		var ok bool
		if r, ok = subroutines[name]; !ok {
			return faultCode(ErrUnknownSyscall, "unknown system routine %s", name)
		}
	}

	argc := len(r.Args)
	if r.Variadic {
		count, err := m.pop()
		if err != nil {
			return err
		}
		extra, err := count.AsInt()
		if err != nil || extra < 0 {
			return fault("bad variadic count for %s", name)
		}
		argc += extra
	}

	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := m.pop()
		if err != nil {
			return err
		}
		if i < len(r.Args) && r.byRef(i) {
			if v.Kind != ValRef && v.Kind != ValArray {
				return fault("%s argument %d must be a variable", name, i+1)
			}
		} else {
			v = v.Deref()
		}
		args[i] = v
	}

	for i, want := range r.Args {
		if r.byRef(i) || want == ArgAny {
			continue
		}
		got := args[i]
		if want == ArgNumber && got.Kind != ValNumber || want == ArgString && got.Kind != ValString {
			return fault("%s argument %d: expected a %s, got %s", name, i+1, want, got.Kind)
		}
	}

	result, err := r.Fn(m, args)
	if err != nil {
		return err
	}
	if isFn {
		return m.push(result)
	}
	return nil
}
