package vm

import "strings"

// ---------------------------------------------------------------------------
// PRINT USING
// ---------------------------------------------------------------------------
//
// The format string is scanned left to right. A run of '#' (with embedded
// ',') is a numeric field: the next argument is stringified and
// right-aligned within the digit count, truncating leading characters on
// overflow. Everything else is emitted verbatim. The terminator selects
// the end behaviour: ',' pads to the next print zone, ';' suppresses the
// newline, anything else ends the line. The format is reused from the
// start while arguments remain.

func sysPrintUsing(m *Machine, args []Value) (Value, error) {
	con, err := m.requireConsole()
	if err != nil {
		return Value{}, err
	}
	format, _ := args[0].AsString()
	terminator, _ := args[1].AsString()
	items := args[2:]

	var out strings.Builder
	next := 0
	for next < len(items) {
		used, err := formatPass(&out, format, items, &next)
		if err != nil {
			con.Print(out.String())
			return Value{}, err
		}
		if !used {
			break
		}
	}
	if len(items) == 0 {
		out.WriteString(format)
	}

	con.Print(out.String())
	switch terminator {
	case ",":
		pad := printZone - con.CursorX()%printZone
		con.Print(strings.Repeat(" ", pad))
	case ";":
	default:
		con.Print("\n")
	}
	return Value{}, nil
}

// formatPass emits one scan of the format, consuming arguments at each
// numeric field. Reports whether any argument was consumed.
func formatPass(out *strings.Builder, format string, items []Value, next *int) (bool, error) {
	used := false
	i := 0
	for i < len(format) {
		ch := format[i]
		if ch != '#' {
			out.WriteByte(ch)
			i++
			continue
		}

		width := 0
		for i < len(format) && (format[i] == '#' || format[i] == ',') {
			if format[i] == '#' {
				width++
			}
			i++
		}

		if *next >= len(items) {
			out.WriteString(strings.Repeat(" ", width))
			continue
		}
		v := items[*next]
		*next++
		used = true
		if v.Kind != ValNumber {
			return used, fault("PRINT USING: expected a number, got %s", v.Kind)
		}

		s := formatBare(v.Num)
		if len(s) > width {
			s = s[len(s)-width:]
		}
		out.WriteString(strings.Repeat(" ", width-len(s)) + s)
	}
	return used, nil
}
