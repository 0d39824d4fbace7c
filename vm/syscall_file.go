package vm

import (
	"fmt"
	"strings"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// File syscalls: OPEN / CLOSE / WRITE # / INPUT # / EOF
// ---------------------------------------------------------------------------

func (m *Machine) file(num int) (File, error) {
	if f, ok := m.files[num]; ok {
		return f, nil
	}
	return nil, fault("file #%d is not open", num)
}

func init() {
	RegisterSubroutine(&Routine{
		Name: "open",
		Args: []ArgType{ArgString, ArgString, ArgNumber},
		Fn: func(m *Machine, args []Value) (Value, error) {
			if m.fs == nil {
				return Value{}, fault("no file system attached")
			}
			num, _ := args[2].AsInt()
			if _, open := m.files[num]; open {
				return Value{}, fault("file #%d is already open", num)
			}
			f, err := m.fs.Open(args[0].Str, args[1].Str)
			if err != nil {
				return Value{}, fault("OPEN %s: %s", args[0].Str, err)
			}
			m.files[num] = f
			return Value{}, nil
		},
	})

	// close with no arguments closes every open channel.
	RegisterSubroutine(&Routine{
		Name:     "close",
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			if len(args) == 0 {
				for num, f := range m.files {
					_ = f.Close()
					delete(m.files, num)
				}
				return Value{}, nil
			}
			for _, a := range args {
				num, err := a.AsInt()
				if err != nil {
					return Value{}, fault("CLOSE: %s", err)
				}
				f, err := m.file(num)
				if err != nil {
					return Value{}, err
				}
				_ = f.Close()
				delete(m.files, num)
			}
			return Value{}, nil
		},
	})

	// write emits one comma-separated record with quoted strings.
	RegisterSubroutine(&Routine{
		Name:     "write",
		Args:     []ArgType{ArgNumber},
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			num, _ := args[0].AsInt()
			f, err := m.file(num)
			if err != nil {
				return Value{}, err
			}
			fields := make([]string, 0, len(args)-1)
			for _, v := range args[1:] {
				if v.Kind == ValString {
					fields = append(fields, fmt.Sprintf("%q", v.Str))
				} else {
					fields = append(fields, formatBare(v.Num))
				}
			}
			if err := f.WriteLine(strings.Join(fields, ",")); err != nil {
				return Value{}, fault("WRITE: %s", err)
			}
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "input_file",
		Args: []ArgType{ArgNumber, ArgAny},
		Refs: []int{1},
		Fn: func(m *Machine, args []Value) (Value, error) {
			num, _ := args[0].AsInt()
			f, err := m.file(num)
			if err != nil {
				return Value{}, err
			}
			target := args[1]
			if target.Kind != ValRef {
				return Value{}, fault("INPUT # target must be a variable")
			}
			line, err := f.ReadLine()
			if err != nil {
				return Value{}, fault("INPUT #%d: %s", num, err)
			}
			storeField(target.Ref, line)
			return Value{}, nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "EOF",
		Args:   []ArgType{ArgNumber},
		Result: ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			num, _ := args[0].AsInt()
			f, err := m.file(num)
			if err != nil {
				return Value{}, err
			}
			return Bool(f.AtEOF()), nil
		},
	})
}

// storeField converts one file field to the cell's type, stripping the
// quotes WRITE puts around strings.
func storeField(cell *Cell, field string) {
	if t, ok := cell.Type.(*ScalarType); ok && t.Kind == bytecode.KindString {
		field = strings.TrimSpace(field)
		if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
			field = field[1 : len(field)-1]
		}
		_ = cell.Store(Str(field))
		return
	}
	storeLine(cell, field)
}
