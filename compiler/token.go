// Package compiler translates QBasic-dialect source into bytecode: a
// restartable tokenizer, a declarative rule set, a generalized LR parser,
// and a code generator that lowers the resulting AST.
package compiler

import (
	"fmt"

	"github.com/qbvm/qbvm/bytecode"
)

// Symbol ids for the token classes the tokenizer produces. Reserved words
// and punctuation use their quoted form (e.g. "'PRINT'", "':'") so the
// grammar can name them directly.
const (
	TokIdentifier = "identifier"
	TokInteger    = "integer"
	TokFloat      = "float"
	TokString     = "string"
	TokNewline    = "newline"
	TokEOF        = "$end"
)

// Token is one lexeme: the symbol id it matched, the matched text, and
// its source position. EOF is a distinguished token with empty text.
type Token struct {
	ID    string
	Text  string
	Locus bytecode.Locus
}

func (t *Token) String() string {
	if t.ID == TokEOF {
		return "end of input"
	}
	if t.ID == TokNewline {
		return "end of line"
	}
	return fmt.Sprintf("%q", t.Text)
}

// Error is a compile-time diagnostic with its source position.
type Error struct {
	Message string
	Locus   bytecode.Locus
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Locus)
}

func errorf(locus bytecode.Locus, format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Locus: locus}
}
