package vm

import (
	"fmt"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// Runtime types
// ---------------------------------------------------------------------------

// Type describes the declared type of a storage cell.
type Type interface {
	TypeName() string
	// Zero returns the initial value of a cell of this type.
	Zero() Value
}

// ScalarType is one of the five built-in scalar types.
type ScalarType struct {
	Kind bytecode.ScalarKind
}

func (t *ScalarType) TypeName() string { return t.Kind.String() }

func (t *ScalarType) Zero() Value {
	if t.Kind == bytecode.KindString {
		return Str("")
	}
	return Number(0)
}

// Shared scalar type singletons; cells point at these rather than
// allocating per cell.
var (
	IntegerType = &ScalarType{Kind: bytecode.KindInteger}
	LongType    = &ScalarType{Kind: bytecode.KindLong}
	SingleType  = &ScalarType{Kind: bytecode.KindSingle}
	DoubleType  = &ScalarType{Kind: bytecode.KindDouble}
	StringType  = &ScalarType{Kind: bytecode.KindString}
)

// ScalarTypeFor returns the singleton for a scalar kind.
func ScalarTypeFor(kind bytecode.ScalarKind) *ScalarType {
	switch kind {
	case bytecode.KindInteger:
		return IntegerType
	case bytecode.KindLong:
		return LongType
	case bytecode.KindDouble:
		return DoubleType
	case bytecode.KindString:
		return StringType
	default:
		return SingleType
	}
}

// RecordType is a user-defined TYPE materialized for execution.
type RecordType struct {
	Name   string
	Fields []RecordField
}

// RecordField is one (name, type) pair of a record.
type RecordField struct {
	Name string
	Type *ScalarType
}

func (t *RecordType) TypeName() string { return t.Name }

func (t *RecordType) Zero() Value {
	return Value{Kind: ValRecord, Rec: NewRecord(t)}
}

// FieldNamed returns the field with the given name, if any.
func (t *RecordType) FieldNamed(name string) (RecordField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return RecordField{}, false
}

// Record is an instance of a record type: one cell per field.
type Record struct {
	Type   *RecordType
	Fields map[string]*Cell
}

// NewRecord allocates a record with zeroed fields.
func NewRecord(t *RecordType) *Record {
	r := &Record{Type: t, Fields: make(map[string]*Cell, len(t.Fields))}
	for _, f := range t.Fields {
		r.Fields[f.Name] = NewCell(f.Type)
	}
	return r
}

// Field returns the cell of a named field.
func (r *Record) Field(name string) (*Cell, error) {
	if c, ok := r.Fields[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("type %s has no member %s", r.Type.Name, name)
}

// Copy returns a deep copy of the record. Assigning a record copies its
// fields; records never alias through plain assignment.
func (r *Record) Copy() *Record {
	out := &Record{Type: r.Type, Fields: make(map[string]*Cell, len(r.Fields))}
	for name, c := range r.Fields {
		nc := NewCell(c.Type)
		nc.Val = c.Val
		out.Fields[name] = nc
	}
	return out
}

// MaterializeTypes converts the compiled record descriptors to runtime
// types.
func MaterializeTypes(descs map[string]*bytecode.RecordType) map[string]*RecordType {
	out := make(map[string]*RecordType, len(descs))
	for name, d := range descs {
		t := &RecordType{Name: d.Name}
		for _, f := range d.Fields {
			t.Fields = append(t.Fields, RecordField{Name: f.Name, Type: ScalarTypeFor(f.Kind)})
		}
		out[name] = t
	}
	return out
}
