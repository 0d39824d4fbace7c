// Package compiler turns source text into executable bytecode: a
// restartable tokenizer, a GLR parser over the declarative grammar, and a
// code generator that lowers the AST.
package compiler

import "github.com/qbvm/qbvm/bytecode"

// Compiler bundles the grammar, tokenizer and parser for repeated
// compilations. It is not safe for concurrent use.
type Compiler struct {
	rules     *RuleSet
	tokenizer *Tokenizer
	parser    *Parser
	opts      Options
}

// New builds a compiler. The grammar and parser tables are constructed
// once and reused across Compile calls.
func New(opts Options) *Compiler {
	rules := NewGrammar()
	return &Compiler{
		rules:     rules,
		tokenizer: NewTokenizerFor(rules),
		parser:    NewParser(rules),
		opts:      opts,
	}
}

// Compile translates one source unit. On any lexical, syntactic or
// semantic error the program is nil and the error list is non-empty.
func (c *Compiler) Compile(source string) (*bytecode.Program, []*Error) {
	ast, errs := c.Parse(source)
	if len(errs) > 0 {
		return nil, errs
	}
	return Generate(ast, c.opts)
}

// Parse runs the front end only, returning the AST. Useful for tooling
// that inspects programs without lowering them.
func (c *Compiler) Parse(source string) (*Program, []*Error) {
	c.tokenizer.SetText(source)
	result := c.parser.Parse(c.tokenizer)
	if errs := c.parser.Errors(); len(errs) > 0 {
		return nil, errs
	}
	ast, ok := result.(*Program)
	if !ok {
		return nil, []*Error{errorf(bytecode.Locus{Line: 1, Col: 1}, "empty parse")}
	}
	return ast, nil
}

// Compile is the one-shot convenience form.
func Compile(source string, opts Options) (*bytecode.Program, []*Error) {
	return New(opts).Compile(source)
}
