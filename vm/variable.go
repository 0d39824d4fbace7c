package vm

import (
	"fmt"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// Storage: cells, arrays, bindings
// ---------------------------------------------------------------------------

// Cell is one assignable storage slot with a declared type. References on
// the operand stack point at cells, which is what makes by-reference
// parameters and array element assignment work.
type Cell struct {
	Type Type
	Val  Value
}

// NewCell allocates a cell initialized to its type's zero value.
func NewCell(t Type) *Cell {
	return &Cell{Type: t, Val: t.Zero()}
}

// Store coerces a value to the cell's declared type and stores it.
// Numbers round when the cell is INTEGER or LONG; records copy.
func (c *Cell) Store(v Value) error {
	v = v.Deref()
	switch t := c.Type.(type) {
	case *ScalarType:
		if t.Kind == bytecode.KindString {
			if v.Kind != ValString {
				return fmt.Errorf("cannot assign %s to a STRING variable", v.Kind)
			}
			c.Val = v
			return nil
		}
		if v.Kind != ValNumber {
			return fmt.Errorf("cannot assign %s to a %s variable", v.Kind, t.Kind)
		}
		if t.Kind == bytecode.KindInteger || t.Kind == bytecode.KindLong {
			v.Num = float64(roundHalf(v.Num))
		}
		c.Val = v
		return nil
	case *RecordType:
		if v.Kind != ValRecord || v.Rec.Type != t {
			return fmt.Errorf("cannot assign %s to a %s variable", v.Kind, t.Name)
		}
		c.Val = Value{Kind: ValRecord, Rec: v.Rec.Copy()}
		return nil
	}
	return fmt.Errorf("unsupported cell type %s", c.Type.TypeName())
}

// Array is a multi-dimensional array object: declared bounds per dimension
// and a flat, row-major cell slice.
type Array struct {
	Elem  Type
	Lower []int
	Upper []int
	cells []*Cell
}

// NewArray allocates an array with zeroed cells. Every dimension must have
// Upper >= Lower.
func NewArray(elem Type, lower, upper []int) (*Array, error) {
	if len(lower) != len(upper) || len(lower) == 0 {
		return nil, fmt.Errorf("mismatched array bounds")
	}
	size := 1
	for i := range lower {
		if upper[i] < lower[i] {
			return nil, fmt.Errorf("array dimension %d is empty (%d TO %d)", i+1, lower[i], upper[i])
		}
		size *= upper[i] - lower[i] + 1
	}
	a := &Array{Elem: elem, Lower: lower, Upper: upper, cells: make([]*Cell, size)}
	for i := range a.cells {
		a.cells[i] = NewCell(elem)
	}
	return a, nil
}

// Dims returns the number of dimensions.
func (a *Array) Dims() int { return len(a.Lower) }

// Cell resolves an index vector to the addressed cell, checking each
// dimension's bounds.
func (a *Array) Cell(indices []int) (*Cell, error) {
	if len(indices) != len(a.Lower) {
		return nil, fmt.Errorf("array expects %d indices, got %d", len(a.Lower), len(indices))
	}
	offset := 0
	for i, idx := range indices {
		if idx < a.Lower[i] || idx > a.Upper[i] {
			return nil, fmt.Errorf("subscript out of range: %d not in [%d, %d]", idx, a.Lower[i], a.Upper[i])
		}
		offset = offset*(a.Upper[i]-a.Lower[i]+1) + (idx - a.Lower[i])
	}
	return a.cells[offset], nil
}

// Binding attaches a name to storage: a cell for scalars and records, an
// array object for arrays.
type Binding struct {
	Cell  *Cell
	Array *Array
}

// Vars is a frame's variable table.
type Vars map[string]*Binding

// scalarTypeForName derives a cell type from an identifier's sigil,
// falling back to the program default.
func scalarTypeForName(name string, dflt bytecode.ScalarKind) *ScalarType {
	if kind, ok := bytecode.KindForSigil(name); ok {
		return ScalarTypeFor(kind)
	}
	return ScalarTypeFor(dflt)
}
