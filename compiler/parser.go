package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qbvm/qbvm/bytecode"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// GLR parser: generalized LR(0) over a graph-structured stack
// ---------------------------------------------------------------------------
//
// The dialect's grammar is ambiguous where classic LR conflicts arise
// (function call vs array access, single-line vs block IF). The parser
// carries every viable stack concurrently, merging equal states into a
// graph, and defers disambiguation to FOLLOW filtering and the bottom-up
// evaluation of the resulting parse forest.

var parserLog = commonlog.GetLogger("qbvm.parser")

// item is an LR(0) item: a rule with a dot position.
type item struct {
	rule *Rule
	pos  int
}

func (i item) key() string {
	return fmt.Sprintf("r%d_%d", i.rule.ID, i.pos)
}

// next returns the symbol after the dot, or "" when the item is complete.
func (i item) next() string {
	if i.pos >= len(i.rule.Symbols) {
		return ""
	}
	return i.rule.Symbols[i.pos]
}

// state is a closure of items, interned by the sorted set of item keys.
type state struct {
	id         string
	items      []item
	gotos      map[string]*state // lazily computed and memoized
	reductions []item            // items whose dot is at the end
	accepting  bool
}

// nodeKind distinguishes the two stack node flavors.
type nodeKind uint8

const (
	shiftKind nodeKind = iota
	reduceKind
)

// gssNode is a node of the graph-structured stack: a shifted terminal or
// a reduced non-terminal. A reduce node aggregates alternative derivations
// via its inodes.
type gssNode struct {
	kind    nodeKind
	st      *state
	tok     *Token // shift nodes
	sym     string // reduce nodes: the non-terminal
	locus   bytecode.Locus
	parents []*gssNode
	inodes  []*interiorNode

	evaluated bool
	value     interface{}
}

// addParent links a parent, deduplicating by identity. Reports whether
// the link was new.
func (n *gssNode) addParent(p *gssNode) bool {
	for _, q := range n.parents {
		if q == p {
			return false
		}
	}
	n.parents = append(n.parents, p)
	return true
}

// interiorNode is one specific derivation of a reduce node: the rule and
// its child nodes in left-to-right order.
type interiorNode struct {
	rule     *Rule
	children []*gssNode
	locus    bytecode.Locus
}

// sameAs reports whether another derivation is structurally identical.
func (in *interiorNode) sameAs(other *interiorNode) bool {
	if in.rule != other.rule || len(in.children) != len(other.children) {
		return false
	}
	for i := range in.children {
		if in.children[i] != other.children[i] {
			return false
		}
	}
	return true
}

// Parser is a GLR parser for one rule set. States are interned in a cache
// shared across Parse calls.
type Parser struct {
	rules  *RuleSet
	states map[string]*state
	start  *state
	errors []*Error
}

// NewParser builds the parser for a grammar, computing FOLLOW sets and
// the initial state.
func NewParser(rs *RuleSet) *Parser {
	rs.ComputeFollowSets()
	p := &Parser{rules: rs, states: make(map[string]*state)}

	var kernel []item
	for _, r := range rs.RulesFor(StartSymbol) {
		kernel = append(kernel, item{rule: r, pos: 0})
	}
	p.start = p.intern(p.closure(kernel))
	return p
}

// Errors returns the diagnostics accumulated by the last Parse.
func (p *Parser) Errors() []*Error { return p.errors }

// closure expands a kernel item set: whenever the dot precedes a
// non-terminal, all of its productions join at position 0.
func (p *Parser) closure(kernel []item) []item {
	seen := make(map[string]bool)
	var out []item
	work := append([]item(nil), kernel...)
	for len(work) > 0 {
		it := work[0]
		work = work[1:]
		k := it.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)

		sym := it.next()
		if sym == "" || p.rules.IsTerminal(sym) {
			continue
		}
		for _, r := range p.rules.RulesFor(sym) {
			work = append(work, item{rule: r, pos: 0})
		}
	}
	return out
}

// intern caches states by their canonical id so identical closures
// deduplicate.
func (p *Parser) intern(items []item) *state {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.key()
	}
	sort.Strings(keys)
	id := strings.Join(keys, ",")

	if st, ok := p.states[id]; ok {
		return st
	}
	st := &state{id: id, items: items, gotos: make(map[string]*state)}
	for _, it := range items {
		if it.next() == "" {
			if it.rule.Name == StartSymbol {
				st.accepting = true
			} else {
				st.reductions = append(st.reductions, it)
			}
		}
	}
	p.states[id] = st
	return st
}

// gotoState advances a state over a symbol, memoizing the result.
// Returns nil when the symbol is not viable.
func (p *Parser) gotoState(st *state, sym string) *state {
	if g, ok := st.gotos[sym]; ok {
		return g
	}
	var kernel []item
	for _, it := range st.items {
		if it.next() == sym {
			kernel = append(kernel, item{rule: it.rule, pos: it.pos + 1})
		}
	}
	var g *state
	if len(kernel) > 0 {
		g = p.intern(p.closure(kernel))
	}
	st.gotos[sym] = g
	return g
}

// path is one enumeration of a rule's right-hand side on the stack:
// the child nodes left-to-right and the node beneath them.
type path struct {
	nodes []*gssNode
	base  *gssNode
}

// enumeratePaths collects every path of the given length ending at n.
func enumeratePaths(n *gssNode, length int) []path {
	if length == 0 {
		return []path{{base: n}}
	}
	var out []path
	for _, parent := range n.parents {
		for _, sub := range enumeratePaths(parent, length-1) {
			nodes := make([]*gssNode, 0, length)
			nodes = append(nodes, sub.nodes...)
			nodes = append(nodes, n)
			out = append(out, path{nodes: nodes, base: sub.base})
		}
	}
	return out
}

// Parse consumes the token stream and returns the evaluated AST value of
// the accepted parse, or nil with accumulated errors.
func (p *Parser) Parse(tz *Tokenizer) interface{} {
	p.errors = nil

	root := &gssNode{kind: shiftKind, st: p.start}
	tops := []*gssNode{root}

	for {
		tok := tz.Next()
		if tok == nil {
			p.errors = append(p.errors, errorf(tz.Locus(), "%s", tz.Diagnostic()))
			return nil
		}

		// Reduce phase: perform all applicable reductions, re-examining
		// nodes that gain parents or derivations. The processed set is
		// the cycle check that refuses to re-process a settled node.
		processed := make(map[*gssNode]bool)
		for {
			progressed := false
			snapshot := append([]*gssNode(nil), tops...)
			for _, n := range snapshot {
				if !processed[n] {
					p.reduceAll(n, tok, &tops, processed)
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}

		if tok.ID == TokEOF {
			for _, n := range tops {
				if n.st.accepting {
					return p.evaluate(n)
				}
			}
			p.syntaxError(tok, tops)
			return nil
		}

		// Shift phase with graph merging: one node per target state.
		var next []*gssNode
		for _, n := range tops {
			g := p.gotoState(n.st, tok.ID)
			if g == nil {
				continue
			}
			merged := false
			for _, m := range next {
				if m.st == g {
					m.addParent(n)
					merged = true
					break
				}
			}
			if !merged {
				next = append(next, &gssNode{
					kind:    shiftKind,
					st:      g,
					tok:     tok,
					locus:   tok.Locus,
					parents: []*gssNode{n},
				})
			}
		}
		if len(next) == 0 {
			p.syntaxError(tok, tops)
			return nil
		}
		tops = next
	}
}

// reduceAll applies every reduction of n's state whose left-hand side may
// be followed by the lookahead token.
func (p *Parser) reduceAll(n *gssNode, lookahead *Token, tops *[]*gssNode, processed map[*gssNode]bool) {
	processed[n] = true

	for _, it := range n.st.reductions {
		r := it.rule
		if follow := p.rules.Follow(r.Name); follow == nil || !follow[lookahead.ID] {
			continue
		}
		for _, pa := range enumeratePaths(n, len(r.Symbols)) {
			g := p.gotoState(pa.base.st, r.Name)
			if g == nil {
				continue
			}
			locus := lookahead.Locus
			if len(pa.nodes) > 0 {
				locus = pa.nodes[0].locus
			}
			inode := &interiorNode{rule: r, children: pa.nodes, locus: locus}

			var target *gssNode
			for _, m := range *tops {
				if m.kind == reduceKind && m.st == g && m.sym == r.Name {
					target = m
					break
				}
			}
			if target == nil {
				target = &gssNode{
					kind:    reduceKind,
					st:      g,
					sym:     r.Name,
					locus:   locus,
					parents: []*gssNode{pa.base},
					inodes:  []*interiorNode{inode},
				}
				*tops = append(*tops, target)
				continue
			}

			changed := target.addParent(pa.base)
			duplicate := false
			for _, existing := range target.inodes {
				if existing.sameAs(inode) {
					duplicate = true
					break
				}
			}
			if !duplicate {
				target.inodes = append(target.inodes, inode)
				changed = true
			}
			if changed {
				delete(processed, target)
			}
		}
	}
}

// syntaxError records an unexpected-token diagnostic listing the terminal
// symbols the current states could shift.
func (p *Parser) syntaxError(tok *Token, tops []*gssNode) {
	expected := make(map[string]bool)
	for _, n := range tops {
		for _, it := range n.st.items {
			if sym := it.next(); sym != "" && p.rules.IsTerminal(sym) {
				expected[sym] = true
			}
		}
	}
	names := make([]string, 0, len(expected))
	for sym := range expected {
		names = append(names, sym)
	}
	sort.Strings(names)

	msg := fmt.Sprintf("Syntax error (unexpected %s", tok)
	if len(names) > 0 {
		msg += ", expecting " + strings.Join(names, ", ")
	}
	msg += ")"
	p.errors = append(p.errors, errorf(tok.Locus, "%s", msg))
}

// evaluate computes a node's semantic value bottom-up, memoized across
// the shared forest. Shift nodes yield their token; reduce nodes choose a
// derivation (lowest rule id wins, with a diagnostic when alternatives
// exist) and run its semantic action.
func (p *Parser) evaluate(n *gssNode) interface{} {
	if n.evaluated {
		return n.value
	}
	n.evaluated = true

	if n.kind == shiftKind {
		n.value = n.tok
		return n.value
	}

	chosen := n.inodes[0]
	if len(n.inodes) > 1 {
		parserLog.Warningf("ambiguous parse of %s at %s: %d derivations", n.sym, n.locus, len(n.inodes))
		for _, in := range n.inodes[1:] {
			if in.rule.ID < chosen.rule.ID {
				chosen = in
			}
		}
	}

	children := make([]interface{}, len(chosen.children))
	for i, c := range chosen.children {
		children[i] = p.evaluate(c)
	}

	if chosen.rule.Action != nil {
		n.value = chosen.rule.Action(children, chosen.locus)
	} else if len(children) > 0 {
		n.value = children[0]
	}
	return n.value
}
