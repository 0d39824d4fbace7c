package compiler

import (
	"regexp"
	"strings"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// Tokenizer: table-driven, restartable lexer
// ---------------------------------------------------------------------------

// tokenPattern is one recognizer: the symbol id it produces and an
// anchored regular expression.
type tokenPattern struct {
	id string
	re *regexp.Regexp
}

// Tokenizer produces the token stream for a source text. Patterns are
// registered up front (the rule set registers its quoted terminals, then
// the token classes); the longest match wins, with registration order
// breaking ties so reserved words beat identifiers.
//
// The stream is restartable: Seek repositions it at any (line, pos)
// offset, which supports the parser's re-entrant token pull.
type Tokenizer struct {
	patterns []tokenPattern
	ignore   []*regexp.Regexp

	lines []string
	line  int // 0-based line index
	pos   int // byte offset within the line
	done  bool
	diag  string // why the last Next returned nil
}

// NewTokenizer returns a tokenizer with the dialect's ignore patterns
// (whitespace and comments) but no token patterns.
func NewTokenizer() *Tokenizer {
	t := &Tokenizer{}
	t.Ignore(`[ \t\r]+`)
	t.Ignore(`(?i)REM\b[^\n]*`)
	t.Ignore(`'[^\n]*`)
	return t
}

// AddToken registers a token class. The pattern is matched
// case-insensitively and anchored at the current position.
func (t *Tokenizer) AddToken(id, pattern string) {
	t.patterns = append(t.patterns, tokenPattern{
		id: id,
		re: regexp.MustCompile(`(?i)\A(?:` + pattern + `)`),
	})
}

// AddLiteral registers a reserved word or punctuation terminal. The symbol
// id is the quoted form used by the grammar. Literals ending in a letter
// or digit only match on a word boundary, so PRINTER never lexes as PRINT.
func (t *Tokenizer) AddLiteral(text string) {
	pattern := regexp.QuoteMeta(text)
	last := text[len(text)-1]
	if last >= 'A' && last <= 'Z' || last >= 'a' && last <= 'z' || last >= '0' && last <= '9' {
		pattern += `\b`
	}
	t.patterns = append(t.patterns, tokenPattern{
		id: "'" + text + "'",
		re: regexp.MustCompile(`(?i)\A(?:` + pattern + `)`),
	})
}

// Ignore registers a pattern that is skipped between tokens.
func (t *Tokenizer) Ignore(pattern string) {
	t.ignore = append(t.ignore, regexp.MustCompile(`\A(?:`+pattern+`)`))
}

// SetText loads a source text and restarts the stream at its beginning.
// Every line, including the last, is terminated by a newline token.
func (t *Tokenizer) SetText(source string) {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	t.lines = strings.Split(source, "\n")
	t.line = 0
	t.pos = 0
	t.done = false
	t.diag = ""
}

// Seek restarts the stream at a 0-based (line, pos) offset.
func (t *Tokenizer) Seek(line, pos int) {
	t.line = line
	t.pos = pos
	t.done = false
	t.diag = ""
}

// Line returns the current 0-based line index.
func (t *Tokenizer) Line() int { return t.line }

// Pos returns the current byte offset within the line.
func (t *Tokenizer) Pos() int { return t.pos }

// locus converts the current offset to a 1-based source position.
func (t *Tokenizer) locus() bytecode.Locus {
	return bytecode.Locus{Line: t.line + 1, Col: t.pos + 1}
}

// Next returns the next token, a newline token at each end of line, and
// finally the EOF token. It returns nil on an unrecognized byte; the
// caller reports the bad character at Locus().
func (t *Tokenizer) Next() *Token {
	for {
		if t.line >= len(t.lines) {
			t.done = true
			return &Token{ID: TokEOF, Locus: t.locus()}
		}
		text := t.lines[t.line]

		if t.pos >= len(text) {
			tok := &Token{ID: TokNewline, Text: "\n", Locus: t.locus()}
			t.line++
			t.pos = 0
			return tok
		}

		rest := text[t.pos:]

		skipped := false
		for _, re := range t.ignore {
			if loc := re.FindStringIndex(rest); loc != nil && loc[1] > 0 {
				t.pos += loc[1]
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}

		best := -1
		bestLen := 0
		for i, p := range t.patterns {
			if loc := p.re.FindStringIndex(rest); loc != nil && loc[1] > bestLen {
				best = i
				bestLen = loc[1]
			}
		}
		if best < 0 {
			// A lone opening quote means the string literal pattern
			// found no closer on this line.
			if rest[0] == '"' {
				t.diag = "unterminated string"
			} else {
				t.diag = "Bad character"
			}
			return nil
		}

		tok := &Token{
			ID:    t.patterns[best].id,
			Text:  rest[:bestLen],
			Locus: t.locus(),
		}
		t.pos += bestLen
		return tok
	}
}

// Locus reports the position of the next unread byte, used for the
// bad-character diagnostic.
func (t *Tokenizer) Locus() bytecode.Locus { return t.locus() }

// Diagnostic describes why the stream stopped: "unterminated string" for
// an opening quote with no closer, "Bad character" otherwise.
func (t *Tokenizer) Diagnostic() string {
	if t.diag == "" {
		return "Bad character"
	}
	return t.diag
}
