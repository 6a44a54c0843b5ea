package lrx

import "fmt"

// Language holds the pre-compiled parse tables for one grammar, plus the
// tokenizers and optional hooks that drive them. All accessors are
// read-only; a Language can be shared between parses.
type Language struct {
	// states holds stateSize uint32 words per parse state.
	states []uint32
	// data is the shared uint16 pool containing action sequences and the
	// token precedence table.
	data []uint16
	// gotoTable encodes the goto function, indexed by nonterminal id.
	gotoTable []uint16

	tokenizers []Tokenizer

	// names maps term ids to display names, for tree printing.
	names []string

	topState    int
	topTerm     int
	eofTerm     int
	minRepeat   int
	maxNode     int
	maxTerm     int
	placeholder int

	// tokenPrec points at the token precedence list inside data.
	tokenPrec int

	dynamicPrec map[int]int

	// bufferLength bounds how long a stack's local buffer may grow before
	// the driver materializes the top node.
	bufferLength int

	dialect Dialect
	context *ContextTracker

	// nested maps term ids to factories that may supply an inner grammar
	// for the region covered by that term.
	nested map[int]NestedFactory
}

// NestedFactory decides whether the region [from, to) that is about to be
// reduced to its key term should be parsed with another grammar. Returning
// nil declines.
type NestedFactory func(input Input, stack *Stack, from, to int) *NestedGrammar

// NestedGrammar describes one nested-parse request.
type NestedGrammar struct {
	Language *Language
	From, To int
}

// Dialect enables or disables grammar terms. A nil disabled slice allows
// every term.
type Dialect struct {
	Flags    []bool
	disabled []bool
}

func (d Dialect) Allows(term int) bool {
	return d.disabled == nil || term >= len(d.disabled) || !d.disabled[term]
}

// StateSlot reads one of the per-state table slots.
func (l *Language) StateSlot(state, slot int) uint32 {
	return l.states[state*stateSize+slot]
}

// StateFlag queries a bit in the state's flags slot.
func (l *Language) StateFlag(state int, flag uint32) bool {
	return l.StateSlot(state, stateFlagsSlot)&flag > 0
}

func pair(data []uint16, off int) uint32 {
	return uint32(data[off]) | uint32(data[off+1])<<16
}

// HasAction returns the action associated with the terminal in the given
// state, or 0 when none applies. Both the main action list and the skip
// list are consulted.
func (l *Language) HasAction(state, terminal int) uint32 {
	for set := 0; set < 2; set++ {
		slot := stateActions
		if set == 1 {
			slot = stateSkip
		}
		for i := int(l.StateSlot(state, slot)); ; i += 3 {
			next := int(l.data[i])
			if next == seqEnd {
				if l.data[i+1] == seqNext {
					i = int(pair(l.data, i+2)) - 3
					continue
				} else if l.data[i+1] == seqOther {
					return pair(l.data, i+2)
				}
				break
			}
			if next == terminal || next == TermErr {
				return pair(l.data, i+1)
			}
		}
	}
	return 0
}

// allActions walks the default reduce plus every listed action for state,
// stopping when the callback returns a non-zero value.
func (l *Language) allActions(state int, f func(action uint32) uint32) uint32 {
	if deflt := l.StateSlot(state, stateDefaultReduce); deflt != 0 {
		if r := f(deflt); r != 0 {
			return r
		}
	}
	for i := int(l.StateSlot(state, stateActions)); ; i += 3 {
		if l.data[i] == seqEnd {
			if l.data[i+1] == seqNext {
				i = int(pair(l.data, i+2)) - 3
				continue
			}
			break
		}
		if r := f(pair(l.data, i+1)); r != 0 {
			return r
		}
	}
	return 0
}

// ValidAction reports whether action is present in the state's action
// table (including the default reduction).
func (l *Language) ValidAction(state int, action uint32) bool {
	return l.allActions(state, func(a uint32) uint32 {
		if a == action {
			return 1
		}
		return 0
	}) != 0
}

// GetGoto resolves the goto table entry for (state, term). When loose is
// set, the fallback target stored with each term is acceptable; otherwise
// the state must be listed explicitly. Returns -1 when there is no entry.
func (l *Language) GetGoto(state, term int, loose bool) int {
	table := l.gotoTable
	// Terms without entries point at the shared empty group that
	// packGotos stores right after the term index.
	if term >= int(table[0]) || int(table[term+1]) == int(table[0])+1 {
		return -1
	}
	for pos := int(table[term+1]); ; {
		groupTag := int(table[pos])
		last := groupTag&1 > 0
		target := int(table[pos+1])
		pos += 2
		if last && loose {
			return target
		}
		for end := pos + groupTag>>1; pos < end; pos++ {
			if int(table[pos]) == state {
				return target
			}
		}
		if last {
			return -1
		}
	}
}

// NextStates lists the (term, state) pairs reachable from state through
// shift actions, flattened into a single slice.
func (l *Language) NextStates(state int) []int {
	var result []int
	for i := int(l.StateSlot(state, stateActions)); ; i += 3 {
		if l.data[i] == seqEnd {
			if l.data[i+1] == seqNext {
				i = int(pair(l.data, i+2)) - 3
				continue
			}
			break
		}
		if l.data[i+2]&(ActionReduceFlag>>16) == 0 {
			value := int(l.data[i+1])
			dup := false
			for j := 1; j < len(result); j += 2 {
				if result[j] == value {
					dup = true
					break
				}
			}
			if !dup {
				result = append(result, int(l.data[i]), value)
			}
		}
	}
	return result
}

// DynamicPrecedence returns the dynamic precedence registered for term,
// or 0.
func (l *Language) DynamicPrecedence(term int) int {
	if l.dynamicPrec == nil {
		return 0
	}
	return l.dynamicPrec[term]
}

// Overrides reports whether a newly matched token term takes precedence
// over a previously matched one at the same position.
func (l *Language) Overrides(token, prev int) bool {
	iPrev := findOffset(l.data, l.tokenPrec, prev)
	return iPrev < 0 || findOffset(l.data, l.tokenPrec, token) < iPrev
}

func findOffset(data []uint16, start, term int) int {
	for i := start; int(data[i]) != seqEnd; i++ {
		if int(data[i]) == term {
			return i - start
		}
	}
	return -1
}

// EofTerm returns the term id produced at end of input.
func (l *Language) EofTerm() int { return l.eofTerm }

// MaxNode returns the highest term id that appears in tree buffers.
// Terminals above it are transient and never stored.
func (l *Language) MaxNode() int { return l.maxNode }

// MinRepeatTerm returns the lowest repeat term id.
func (l *Language) MinRepeatTerm() int { return l.minRepeat }

// SetNested registers a nested-grammar factory for a term. Factories are
// code, not table data, so they attach after deserialization.
func (l *Language) SetNested(term int, factory NestedFactory) {
	if l.nested == nil {
		l.nested = map[int]NestedFactory{}
	}
	l.nested[term] = factory
}

// Nested returns the nesting table.
func (l *Language) Nested() map[int]NestedFactory { return l.nested }

// Describe summarizes the table sizes, for diagnostics.
func (l *Language) Describe() string {
	return fmt.Sprintf("%d states, %d terms (%d node terms), %d data words, %d goto words, %d tokenizers",
		len(l.states)/stateSize, l.maxTerm+1, l.maxNode+1, len(l.data), len(l.gotoTable), len(l.tokenizers))
}

// TermName returns the display name of a term.
func (l *Language) TermName(term int) string {
	if term >= 0 && term < len(l.names) && l.names[term] != "" {
		return l.names[term]
	}
	switch term {
	case TermErr:
		return "⚠"
	}
	return "?"
}
