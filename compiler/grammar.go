package compiler

import (
	"strings"

	"github.com/qbvm/qbvm/bytecode"
)

// ---------------------------------------------------------------------------
// RuleSet: declarative grammar with semantic actions and FOLLOW sets
// ---------------------------------------------------------------------------

// Action is a semantic action invoked when a completed rule is evaluated.
// children holds the value of each right-hand-side symbol in order:
// a *Token for terminals, the action result for non-terminals.
type Action func(children []interface{}, locus bytecode.Locus) interface{}

// Rule is one production: name -> symbols. Terminals are quoted
// (e.g. "'PRINT'") or declared token classes; non-terminals are bare names.
type Rule struct {
	ID      int
	Name    string
	Symbols []string
	Action  Action
}

func (r *Rule) String() string {
	return r.Name + " -> " + strings.Join(r.Symbols, " ")
}

// StartSymbol is the distinguished start non-terminal. When the parser
// completes it, the input is accepted.
const StartSymbol = "_start"

// RuleSet holds the grammar: productions, declared token classes, and the
// computed FOLLOW set per non-terminal.
type RuleSet struct {
	rules  []*Rule
	byName map[string][]*Rule
	tokens map[string]bool // declared terminal classes

	nullable map[string]bool
	first    map[string]map[string]bool
	follow   map[string]map[string]bool
}

// NewRuleSet returns an empty grammar.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		byName: make(map[string][]*Rule),
		tokens: make(map[string]bool),
	}
}

// DeclareToken marks a bare symbol name as a terminal token class
// (identifier, integer, float, string, newline).
func (rs *RuleSet) DeclareToken(name string) {
	rs.tokens[name] = true
}

// Add appends a production with an optional semantic action.
func (rs *RuleSet) Add(name string, symbols []string, action Action) *Rule {
	r := &Rule{ID: len(rs.rules), Name: name, Symbols: symbols, Action: action}
	rs.rules = append(rs.rules, r)
	rs.byName[name] = append(rs.byName[name], r)
	return r
}

// IsTerminal reports whether a grammar symbol is a terminal.
func (rs *RuleSet) IsTerminal(sym string) bool {
	return strings.HasPrefix(sym, "'") || rs.tokens[sym]
}

// RulesFor returns the productions of a non-terminal.
func (rs *RuleSet) RulesFor(name string) []*Rule {
	return rs.byName[name]
}

// Literals returns every quoted terminal in registration order, for
// wiring into the tokenizer.
func (rs *RuleSet) Literals() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rs.rules {
		for _, sym := range r.Symbols {
			if strings.HasPrefix(sym, "'") && !seen[sym] {
				seen[sym] = true
				out = append(out, strings.TrimSuffix(strings.TrimPrefix(sym, "'"), "'"))
			}
		}
	}
	return out
}

// Follow returns the FOLLOW set of a non-terminal. ComputeFollowSets must
// have run first.
func (rs *RuleSet) Follow(name string) map[string]bool {
	return rs.follow[name]
}

// ComputeFollowSets derives nullable, FIRST and FOLLOW for every
// non-terminal with the standard fixpoint construction. The start symbol
// is followed by EOF.
func (rs *RuleSet) ComputeFollowSets() {
	rs.nullable = make(map[string]bool)
	rs.first = make(map[string]map[string]bool)
	rs.follow = make(map[string]map[string]bool)

	for name := range rs.byName {
		rs.first[name] = make(map[string]bool)
		rs.follow[name] = make(map[string]bool)
	}
	if rs.follow[StartSymbol] == nil {
		rs.follow[StartSymbol] = make(map[string]bool)
	}
	rs.follow[StartSymbol][TokEOF] = true

	// Nullable
	for changed := true; changed; {
		changed = false
		for _, r := range rs.rules {
			if rs.nullable[r.Name] {
				continue
			}
			allNullable := true
			for _, sym := range r.Symbols {
				if rs.IsTerminal(sym) || !rs.nullable[sym] {
					allNullable = false
					break
				}
			}
			if allNullable {
				rs.nullable[r.Name] = true
				changed = true
			}
		}
	}

	// FIRST
	for changed := true; changed; {
		changed = false
		for _, r := range rs.rules {
			set := rs.first[r.Name]
			for _, sym := range r.Symbols {
				if rs.IsTerminal(sym) {
					if !set[sym] {
						set[sym] = true
						changed = true
					}
					break
				}
				for t := range rs.first[sym] {
					if !set[t] {
						set[t] = true
						changed = true
					}
				}
				if !rs.nullable[sym] {
					break
				}
			}
		}
	}

	// FOLLOW
	for changed := true; changed; {
		changed = false
		for _, r := range rs.rules {
			for i, sym := range r.Symbols {
				if rs.IsTerminal(sym) {
					continue
				}
				set := rs.follow[sym]

				// FIRST of the remainder
				tailNullable := true
				for _, rest := range r.Symbols[i+1:] {
					if rs.IsTerminal(rest) {
						if !set[rest] {
							set[rest] = true
							changed = true
						}
						tailNullable = false
						break
					}
					for t := range rs.first[rest] {
						if !set[t] {
							set[t] = true
							changed = true
						}
					}
					if !rs.nullable[rest] {
						tailNullable = false
						break
					}
				}

				// Nullable tail: inherit FOLLOW of the left-hand side
				if tailNullable {
					for t := range rs.follow[r.Name] {
						if !set[t] {
							set[t] = true
							changed = true
						}
					}
				}
			}
		}
	}
}
