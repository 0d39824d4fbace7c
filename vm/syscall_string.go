package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// String syscalls
// ---------------------------------------------------------------------------

// stringFn registers a one-argument string-to-string function.
func stringFn(name string, f func(string) string) {
	RegisterFunction(&Routine{
		Name:   name,
		Args:   []ArgType{ArgString},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			return Str(f(args[0].Str)), nil
		},
	})
}

func init() {
	stringFn("UCASE$", strings.ToUpper)
	stringFn("LCASE$", strings.ToLower)
	stringFn("LTRIM$", func(s string) string { return strings.TrimLeft(s, " ") })
	stringFn("RTRIM$", func(s string) string { return strings.TrimRight(s, " ") })

	RegisterFunction(&Routine{
		Name:   "LEN",
		Args:   []ArgType{ArgString},
		Result: ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			return Number(float64(len(args[0].Str))), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "CHR$",
		Args:   []ArgType{ArgNumber},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			code, _ := args[0].AsInt()
			return Str(string(rune(code & 0xFF))), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "ASC",
		Args:   []ArgType{ArgString},
		Result: ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			s := args[0].Str
			if s == "" {
				return Value{}, fault("ASC of an empty string")
			}
			return Number(float64(s[0])), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "STR$",
		Args:   []ArgType{ArgNumber},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			return Str(FormatNumber(args[0].Num)), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "SPACE$",
		Args:   []ArgType{ArgNumber},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			n, _ := args[0].AsInt()
			if n < 0 {
				n = 0
			}
			return Str(strings.Repeat(" ", n)), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "STRING$",
		Args:   []ArgType{ArgNumber, ArgAny},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			n, _ := args[0].AsInt()
			if n < 0 {
				n = 0
			}
			switch args[1].Kind {
			case ValString:
				if args[1].Str == "" {
					return Value{}, fault("STRING$ of an empty string")
				}
				return Str(strings.Repeat(args[1].Str[:1], n)), nil
			case ValNumber:
				code, _ := args[1].AsInt()
				return Str(strings.Repeat(string(rune(code&0xFF)), n)), nil
			}
			return Value{}, fault("STRING$: bad second argument")
		},
	})

	RegisterFunction(&Routine{
		Name:   "LEFT$",
		Args:   []ArgType{ArgString, ArgNumber},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			s := args[0].Str
			n, _ := args[1].AsInt()
			if n < 0 {
				n = 0
			}
			if n > len(s) {
				n = len(s)
			}
			return Str(s[:n]), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "RIGHT$",
		Args:   []ArgType{ArgString, ArgNumber},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			s := args[0].Str
			n, _ := args[1].AsInt()
			if n < 0 {
				n = 0
			}
			if n > len(s) {
				n = len(s)
			}
			return Str(s[len(s)-n:]), nil
		},
	})

	// MID$(s, start[, length]); start is 1-based.
	RegisterFunction(&Routine{
		Name:     "MID$",
		Args:     []ArgType{ArgString, ArgNumber},
		Variadic: true,
		Result:   ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			s := args[0].Str
			start, _ := args[1].AsInt()
			if start < 1 {
				start = 1
			}
			if start > len(s) {
				return Str(""), nil
			}
			rest := s[start-1:]
			if len(args) > 2 {
				n, err := args[2].AsInt()
				if err != nil {
					return Value{}, fault("MID$: %s", err)
				}
				if n < 0 {
					n = 0
				}
				if n < len(rest) {
					rest = rest[:n]
				}
			}
			return Str(rest), nil
		},
	})

	// INSTR([start,] haystack, needle); returns the 1-based position or 0.
	RegisterFunction(&Routine{
		Name:     "INSTR",
		Variadic: true,
		Result:   ArgNumber,
		Fn:       sysInstr,
	})

	RegisterFunction(&Routine{
		Name:   "HEX$",
		Args:   []ArgType{ArgNumber},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			n, _ := args[0].AsInt()
			return Str(strings.ToUpper(fmt.Sprintf("%x", n))), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "OCT$",
		Args:   []ArgType{ArgNumber},
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			n, _ := args[0].AsInt()
			return Str(fmt.Sprintf("%o", n)), nil
		},
	})

	// INKEY$ is non-blocking: empty when the key buffer is empty. A zero
	// key announces an escape sequence; the scan code follows.
	RegisterFunction(&Routine{
		Name:   "INKEY$",
		Result: ArgString,
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			code := con.GetKey()
			if code < 0 {
				return Str(""), nil
			}
			if code == 0 {
				scan := con.GetKey()
				if scan < 0 {
					scan = 0
				}
				return Str(string(rune(0)) + string(rune(scan&0xFF))), nil
			}
			return Str(string(rune(code & 0xFF))), nil
		},
	})
}

func sysInstr(m *Machine, args []Value) (Value, error) {
	start := 1
	idx := 0
	if len(args) == 3 {
		var err error
		if start, err = args[0].AsInt(); err != nil {
			return Value{}, fault("INSTR: %s", err)
		}
		idx = 1
	} else if len(args) != 2 {
		return Value{}, fault("INSTR expects 2 or 3 arguments, got %d", len(args))
	}
	haystack, err := args[idx].AsString()
	if err != nil {
		return Value{}, fault("INSTR: %s", err)
	}
	needle, err := args[idx+1].AsString()
	if err != nil {
		return Value{}, fault("INSTR: %s", err)
	}
	if start < 1 {
		start = 1
	}
	if start > len(haystack) {
		return Number(0), nil
	}
	if pos := strings.Index(haystack[start-1:], needle); pos >= 0 {
		return Number(float64(start + pos)), nil
	}
	return Number(0), nil
}
