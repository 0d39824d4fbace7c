package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble renders a compiled program as a human-readable listing:
// one instruction per line with its index and source locus, followed by
// the DATA pool, the shared-name set, and the user type table.
func Disassemble(p *Program) string {
	var b strings.Builder

	fmt.Fprintf(&b, "; %d instructions, %d data, default type %s\n",
		len(p.Instructions), len(p.Data), p.DefaultType)

	for i, in := range p.Instructions {
		fmt.Fprintf(&b, "%04d  %-24s ; %s\n", i, in.String(), in.Locus)
	}

	if len(p.Data) > 0 {
		b.WriteString("\n.data\n")
		for i, d := range p.Data {
			if d.Kind == OperandNone {
				fmt.Fprintf(&b, "%04d  <null>\n", i)
				continue
			}
			fmt.Fprintf(&b, "%04d  %s\n", i, d)
		}
	}

	if len(p.Shared) > 0 {
		names := make([]string, 0, len(p.Shared))
		for name := range p.Shared {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "\n.shared %s\n", strings.Join(names, " "))
	}

	if len(p.Types) > 0 {
		names := make([]string, 0, len(p.Types))
		for name := range p.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "\n.type %s\n", name)
			for _, f := range p.Types[name].Fields {
				fmt.Fprintf(&b, "      %s AS %s\n", f.Name, f.Kind)
			}
		}
	}

	return b.String()
}
