package bytecode

import "fmt"

// ScalarKind enumerates the scalar types of the dialect.
type ScalarKind uint8

const (
	KindSingle  ScalarKind = iota // default type for bare identifiers
	KindInteger                   // % sigil
	KindLong                      // & sigil
	KindDouble                    // # sigil
	KindString                    // $ sigil
)

var scalarNames = map[ScalarKind]string{
	KindInteger: "INTEGER",
	KindLong:    "LONG",
	KindSingle:  "SINGLE",
	KindDouble:  "DOUBLE",
	KindString:  "STRING",
}

func (k ScalarKind) String() string {
	if name, ok := scalarNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ScalarKind(%d)", uint8(k))
}

// IsNumeric returns true for the four numeric scalar kinds.
func (k ScalarKind) IsNumeric() bool { return k != KindString }

// ScalarKindNamed resolves a type name like "INTEGER" to its kind.
func ScalarKindNamed(name string) (ScalarKind, bool) {
	for k, n := range scalarNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// KindForSigil derives the scalar kind from an identifier's trailing sigil.
// Returns ok=false for bare identifiers, which take the program default.
func KindForSigil(name string) (ScalarKind, bool) {
	if name == "" {
		return 0, false
	}
	switch name[len(name)-1] {
	case '%':
		return KindInteger, true
	case '&':
		return KindLong, true
	case '!':
		return KindSingle, true
	case '#':
		return KindDouble, true
	case '$':
		return KindString, true
	}
	return 0, false
}

// Field is one (name, scalar type) pair of a user-defined record type.
type Field struct {
	Name string     `cbor:"1,keyasint"`
	Kind ScalarKind `cbor:"2,keyasint"`
}

// RecordType describes a user-defined TYPE as an ordered field list.
// Field names are unique within a record.
type RecordType struct {
	Name   string  `cbor:"1,keyasint"`
	Fields []Field `cbor:"2,keyasint"`
}

// FieldNamed returns the field with the given name, if any.
func (t *RecordType) FieldNamed(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Program is the compiled form of a source unit. It is immutable after
// compilation and stable across VM resets.
type Program struct {
	Instructions []Instruction          `cbor:"1,keyasint"`
	Types        map[string]*RecordType `cbor:"2,keyasint,omitempty"`
	Shared       map[string]bool        `cbor:"3,keyasint,omitempty"`
	Data         []Operand              `cbor:"4,keyasint,omitempty"`
	DefaultType  ScalarKind             `cbor:"5,keyasint"`
	TestMode     bool                   `cbor:"6,keyasint,omitempty"`
}

// NewProgram returns an empty program with the dialect defaults.
func NewProgram() *Program {
	return &Program{
		Types:       make(map[string]*RecordType),
		Shared:      make(map[string]bool),
		DefaultType: KindSingle,
	}
}

// Validate checks the structural invariants the code generator promises:
// every address label resolves into [0, len(Instructions)] and every data
// label indexes the DATA pool.
func (p *Program) Validate() error {
	for i, in := range p.Instructions {
		info := in.Op.Info()
		switch {
		case info.AddrLabel:
			target := int(in.Arg.Num)
			if in.Arg.Kind != OperandNumber || target < 0 || target > len(p.Instructions) {
				return fmt.Errorf("instruction %d (%s): address %v out of range", i, in.Op, in.Arg)
			}
		case info.DataLabel:
			offset := int(in.Arg.Num)
			if in.Arg.Kind != OperandNumber || offset < 0 || offset > len(p.Data) {
				return fmt.Errorf("instruction %d (%s): data offset %v out of range", i, in.Op, in.Arg)
			}
		}
	}
	return nil
}
