package vm

import (
	"strconv"
	"strings"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// Console syscalls: the print family, INPUT, READ, storage allocation
// ---------------------------------------------------------------------------

// printZone is the width of one PRINT comma zone.
const printZone = 14

func (m *Machine) requireConsole() (Console, error) {
	if m.console == nil {
		return nil, fault("no console attached")
	}
	return m.console, nil
}

func init() {
	RegisterSubroutine(&Routine{
		Name: "print",
		Args: []ArgType{ArgAny},
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			con.Print(args[0].String())
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "print_comma",
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			pad := printZone - con.CursorX()%printZone
			con.Print(strings.Repeat(" ", pad))
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "print_tab",
		Args: []ArgType{ArgNumber},
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			target, _ := args[0].AsInt()
			if col := con.CursorX(); target-1 > col {
				con.Print(strings.Repeat(" ", target-1-col))
			}
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "print_nl",
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			con.Print("\n")
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name:     "print_using",
		Args:     []ArgType{ArgString, ArgString},
		Variadic: true,
		Fn:       sysPrintUsing,
	})

	RegisterSubroutine(&Routine{
		Name: "input",
		Args: []ArgType{ArgString, ArgAny},
		Refs: []int{1},
		Fn:   sysInput,
	})

	RegisterSubroutine(&Routine{
		Name: "read",
		Args: []ArgType{ArgAny},
		Refs: []int{0},
		Fn:   sysRead,
	})

	RegisterSubroutine(&Routine{
		Name: "alloc_scalar",
		Args: []ArgType{ArgString, ArgString},
		Fn:   sysAllocScalar,
	})

	RegisterSubroutine(&Routine{
		Name:     "alloc_array",
		Args:     []ArgType{ArgString, ArgString},
		Variadic: true,
		Fn:       sysAllocArray,
	})

	RegisterSubroutine(&Routine{
		Name: "SWAP",
		Args: []ArgType{ArgAny, ArgAny},
		Refs: []int{0, 1},
		Fn: func(m *Machine, args []Value) (Value, error) {
			a, b := args[0], args[1]
			if a.Kind != ValRef || b.Kind != ValRef {
				return Value{}, fault("SWAP needs two variables")
			}
			va, vb := a.Ref.Val, b.Ref.Val
			if err := a.Ref.Store(vb); err != nil {
				return Value{}, fault("SWAP: %s", err)
			}
			if err := b.Ref.Store(va); err != nil {
				return Value{}, fault("SWAP: %s", err)
			}
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "CLS",
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			con.Cls()
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "LOCATE",
		Args: []ArgType{ArgNumber, ArgNumber},
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			row, _ := args[0].AsInt()
			col, _ := args[1].AsInt()
			con.Locate(row, col)
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name:     "COLOR",
		Args:     []ArgType{ArgNumber},
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			fg, _ := args[0].AsInt()
			bg, border := -1, -1
			if len(args) > 1 {
				bg, _ = args[1].AsInt()
			}
			if len(args) > 2 {
				border, _ = args[2].AsInt()
			}
			con.Color(fg, bg, border)
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "SCREEN",
		Args: []ArgType{ArgNumber},
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			mode, _ := args[0].AsInt()
			con.Screen(mode)
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "WIDTH",
		Args: []ArgType{ArgNumber, ArgNumber},
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			cols, _ := args[0].AsInt()
			rows, _ := args[1].AsInt()
			con.Width(cols, rows)
			return Value{}, nil
		},
	})
}

// sysInput suspends, prompts, and stores the entered line into the target
// variable, converting to the cell's type the way VAL does.
func sysInput(m *Machine, args []Value) (Value, error) {
	con, err := m.requireConsole()
	if err != nil {
		return Value{}, err
	}
	prompt, _ := args[0].AsString()
	target := args[1]
	if target.Kind != ValRef {
		return Value{}, fault("INPUT target must be a variable")
	}

	m.suspend()
	con.Input(prompt, func(line string, err error) {
		if err == nil {
			storeLine(target.Ref, line)
		}
		m.Resume()
	})
	return Value{}, nil
}

// storeLine converts console input to the cell's declared type.
func storeLine(cell *Cell, line string) {
	if t, ok := cell.Type.(*ScalarType); ok && t.Kind == bytecode.KindString {
		_ = cell.Store(Str(line))
		return
	}
	n, _ := strconv.ParseFloat(strings.TrimSpace(line), 64)
	_ = cell.Store(Number(n))
}

// sysRead pulls the next pooled DATA entry into the target variable. A
// null entry (DATA ,,) resets the variable to its type's default.
func sysRead(m *Machine, args []Value) (Value, error) {
	target := args[0]
	if target.Kind != ValRef {
		return Value{}, fault("READ target must be a variable")
	}
	if m.dataPtr >= len(m.prog.Data) {
		return Value{}, fault("out of DATA")
	}
	entry := m.prog.Data[m.dataPtr]
	m.dataPtr++

	switch entry.Kind {
	case bytecode.OperandNumber:
		if err := target.Ref.Store(Number(entry.Num)); err != nil {
			return Value{}, fault("READ: %s", err)
		}
	case bytecode.OperandString:
		if err := target.Ref.Store(Str(entry.Str)); err != nil {
			return Value{}, fault("READ: %s", err)
		}
	case bytecode.OperandNone:
		target.Ref.Val = target.Ref.Type.Zero()
	}
	return Value{}, nil
}

func sysAllocScalar(m *Machine, args []Value) (Value, error) {
	name, _ := args[0].AsString()
	typeName, _ := args[1].AsString()
	t, err := m.cellType(typeName)
	if err != nil {
		return Value{}, err
	}
	if m.lookup(name) != nil {
		return Value{}, fault("duplicate definition of %s", name)
	}
	m.declare(name, &Binding{Cell: NewCell(t)})
	return Value{}, nil
}

func sysAllocArray(m *Machine, args []Value) (Value, error) {
	name, _ := args[0].AsString()
	typeName, _ := args[1].AsString()
	t, err := m.cellType(typeName)
	if err != nil {
		return Value{}, err
	}
	if m.lookup(name) != nil {
		return Value{}, fault("duplicate definition of %s", name)
	}

	bounds := args[2:]
	if len(bounds) == 0 || len(bounds)%2 != 0 {
		return Value{}, fault("malformed bounds for %s", name)
	}
	var lower, upper []int
	for i := 0; i < len(bounds); i += 2 {
		lo, err := bounds[i].AsInt()
		if err != nil {
			return Value{}, fault("array bound: %s", err)
		}
		hi, err := bounds[i+1].AsInt()
		if err != nil {
			return Value{}, fault("array bound: %s", err)
		}
		lower = append(lower, lo)
		upper = append(upper, hi)
	}

	arr, err := NewArray(t, lower, upper)
	if err != nil {
		return Value{}, fault("%s: %s", name, err)
	}
	m.declare(name, &Binding{Array: arr})
	return Value{}, nil
}
