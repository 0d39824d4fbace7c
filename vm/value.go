// Package vm implements the stack-based virtual machine that executes
// compiled programs, together with the system routine registry the code
// generator checks calls against.
package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// ValueKind tags the payload of a runtime value.
type ValueKind uint8

const (
	ValNumber ValueKind = iota
	ValString
	ValRecord
	ValRef   // reference to a storage cell
	ValArray // reference to an array object
)

func (k ValueKind) String() string {
	switch k {
	case ValNumber:
		return "number"
	case ValString:
		return "string"
	case ValRecord:
		return "record"
	case ValRef:
		return "reference"
	case ValArray:
		return "array"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Value is the tagged datum moved through the operand stack.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Rec  *Record
	Ref  *Cell
	Arr  *Array
}

// Number wraps a numeric value.
func Number(n float64) Value { return Value{Kind: ValNumber, Num: n} }

// Str wraps a string value.
func Str(s string) Value { return Value{Kind: ValString, Str: s} }

// Bool converts a condition to the dialect's truth values: -1 and 0.
func Bool(b bool) Value {
	if b {
		return Number(-1)
	}
	return Number(0)
}

// RefTo wraps a reference to a cell.
func RefTo(c *Cell) Value { return Value{Kind: ValRef, Ref: c} }

// ArrayRef wraps a reference to an array object.
func ArrayRef(a *Array) Value { return Value{Kind: ValArray, Arr: a} }

// Deref resolves a reference value to the referenced cell's content.
// Non-references pass through.
func (v Value) Deref() Value {
	if v.Kind == ValRef {
		return v.Ref.Val
	}
	return v
}

// IsTrue applies the dialect's truth convention: any non-zero number.
func (v Value) IsTrue() bool {
	return v.Kind == ValNumber && v.Num != 0
}

// AsNumber coerces the value to a number, or fails with a type mismatch.
func (v Value) AsNumber() (float64, error) {
	v = v.Deref()
	if v.Kind != ValNumber {
		return 0, fmt.Errorf("expected a number, got %s", v.Kind)
	}
	return v.Num, nil
}

// AsString coerces the value to a string, or fails with a type mismatch.
func (v Value) AsString() (string, error) {
	v = v.Deref()
	if v.Kind != ValString {
		return "", fmt.Errorf("expected a string, got %s", v.Kind)
	}
	return v.Str, nil
}

// AsInt coerces to a number and rounds half away from zero, the dialect's
// numeric-to-integer conversion.
func (v Value) AsInt() (int, error) {
	n, err := v.AsNumber()
	if err != nil {
		return 0, err
	}
	return roundHalf(n), nil
}

func roundHalf(n float64) int {
	if n < 0 {
		return int(math.Ceil(n - 0.5))
	}
	return int(math.Floor(n + 0.5))
}

// String formats a value the way PRINT renders a single item: numbers get
// a leading space when non-negative, strings render verbatim.
func (v Value) String() string {
	switch v.Kind {
	case ValNumber:
		return FormatNumber(v.Num)
	case ValString:
		return v.Str
	case ValRecord:
		if v.Rec != nil {
			return "[" + v.Rec.Type.Name + "]"
		}
		return "[record]"
	case ValRef:
		return v.Ref.Val.String()
	case ValArray:
		return "[array]"
	}
	return ""
}

// FormatNumber renders a number in the dialect's PRINT form: minimal
// digits, a leading space standing in for the sign of non-negatives.
func FormatNumber(n float64) string {
	s := formatBare(n)
	if n >= 0 || math.IsNaN(n) {
		return " " + s
	}
	return s
}

func formatBare(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
