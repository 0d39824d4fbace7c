package compiler

import "testing"

func lexAll(t *testing.T, source string) []*Token {
	t.Helper()
	tz := NewTokenizerFor(NewGrammar())
	tz.SetText(source)
	var tokens []*Token
	for {
		tok := tz.Next()
		if tok == nil {
			t.Fatalf("unrecognized character at %s", tz.Locus())
		}
		tokens = append(tokens, tok)
		if tok.ID == TokEOF {
			return tokens
		}
	}
}

func ids(tokens []*Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.ID
	}
	return out
}

func sameIDs(got []*Token, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].ID != want[i] {
			return false
		}
	}
	return true
}

func TestReservedWordsBeatIdentifiers(t *testing.T) {
	tokens := lexAll(t, "PRINT PRINTER")
	want := []string{"'PRINT'", TokIdentifier, TokNewline, TokEOF}
	if !sameIDs(tokens, want) {
		t.Fatalf("ids %v, want %v", ids(tokens), want)
	}
	if tokens[1].Text != "PRINTER" {
		t.Errorf("identifier text %q, want PRINTER", tokens[1].Text)
	}
}

func TestReservedWordsAreCaseInsensitive(t *testing.T) {
	tokens := lexAll(t, "print x")
	want := []string{"'PRINT'", TokIdentifier, TokNewline, TokEOF}
	if !sameIDs(tokens, want) {
		t.Fatalf("ids %v, want %v", ids(tokens), want)
	}
	if tokens[0].Text != "print" {
		t.Errorf("matched text %q, want the source spelling", tokens[0].Text)
	}
}

func TestSigilsBelongToIdentifiers(t *testing.T) {
	tokens := lexAll(t, "X$ N% V# L& S!")
	texts := []string{"X$", "N%", "V#", "L&", "S!"}
	for i, want := range texts {
		if tokens[i].ID != TokIdentifier || tokens[i].Text != want {
			t.Errorf("token %d = %s %q, want identifier %q", i, tokens[i].ID, tokens[i].Text, want)
		}
	}
}

func TestNumberClasses(t *testing.T) {
	tests := []struct {
		source string
		id     string
	}{
		{"42", TokInteger},
		{"3.14", TokFloat},
		{".5", TokFloat},
		{"10.", TokFloat},
		{"1E3", TokFloat},
		{"2.5E-2", TokFloat},
	}
	for _, tt := range tests {
		tokens := lexAll(t, tt.source)
		if tokens[0].ID != tt.id || tokens[0].Text != tt.source {
			t.Errorf("%q lexed as %s %q, want %s", tt.source, tokens[0].ID, tokens[0].Text, tt.id)
		}
	}
}

func TestCommentsAreIgnored(t *testing.T) {
	tokens := lexAll(t, "PRINT 1 ' trailing remark\nREM whole line\nPRINT 2")
	want := []string{
		"'PRINT'", TokInteger, TokNewline,
		TokNewline,
		"'PRINT'", TokInteger, TokNewline,
		TokEOF,
	}
	if !sameIDs(tokens, want) {
		t.Fatalf("ids %v, want %v", ids(tokens), want)
	}
}

func TestEveryLineEndsWithNewlineToken(t *testing.T) {
	tokens := lexAll(t, "A")
	want := []string{TokIdentifier, TokNewline, TokEOF}
	if !sameIDs(tokens, want) {
		t.Fatalf("ids %v, want %v", ids(tokens), want)
	}
}

func TestStringLiteralsKeepTheirCase(t *testing.T) {
	tokens := lexAll(t, `PRINT "Mixed Case"`)
	if tokens[1].ID != TokString || tokens[1].Text != `"Mixed Case"` {
		t.Fatalf("string token %s %q", tokens[1].ID, tokens[1].Text)
	}
}

func TestSeekRestartsTheStream(t *testing.T) {
	tz := NewTokenizerFor(NewGrammar())
	tz.SetText("A = 1\nB = 2")

	first := tz.Next()
	line, pos := tz.Line(), tz.Pos()
	second := tz.Next()

	// Drain a few more, then rewind to just after the first token.
	tz.Next()
	tz.Next()
	tz.Seek(line, pos)

	again := tz.Next()
	if again.ID != second.ID || again.Text != second.Text || again.Locus != second.Locus {
		t.Errorf("after Seek got %s %q at %s, want %s %q at %s",
			again.ID, again.Text, again.Locus, second.ID, second.Text, second.Locus)
	}
	_ = first
}

func TestTokenLociAreOneBased(t *testing.T) {
	tokens := lexAll(t, "A = 1\n  B = 2")
	if tokens[0].Locus.Line != 1 || tokens[0].Locus.Col != 1 {
		t.Errorf("first token at %s, want 1:1", tokens[0].Locus)
	}
	var b *Token
	for _, tok := range tokens {
		if tok.Text == "B" {
			b = tok
		}
	}
	if b == nil || b.Locus.Line != 2 || b.Locus.Col != 3 {
		t.Errorf("B at %v, want 2:3", b)
	}
}

func TestUnterminatedStringIsReportedByName(t *testing.T) {
	tz := NewTokenizerFor(NewGrammar())
	tz.SetText(`PRINT "abc`)
	tz.Next() // PRINT
	if tok := tz.Next(); tok != nil {
		t.Fatalf("lexed %s %q, want nil for an open quote", tok.ID, tok.Text)
	}
	if d := tz.Diagnostic(); d != "unterminated string" {
		t.Errorf("diagnostic %q, want %q", d, "unterminated string")
	}
	if loc := tz.Locus(); loc.Line != 1 || loc.Col != 7 {
		t.Errorf("reported at %s, want 1:7", loc)
	}
}

func TestUnrecognizedByteStopsTheStream(t *testing.T) {
	tz := NewTokenizerFor(NewGrammar())
	tz.SetText("A = @")
	tz.Next() // A
	tz.Next() // =
	if tok := tz.Next(); tok != nil {
		t.Fatalf("lexed %s %q, want nil for a bad character", tok.ID, tok.Text)
	}
	if loc := tz.Locus(); loc.Line != 1 || loc.Col != 5 {
		t.Errorf("bad character reported at %s, want 1:5", loc)
	}
}
