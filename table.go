package lrx

import "sort"

// TableSpec is the unpacked form of a grammar's parse tables, the shape
// table generators emit and the YAML fixture loader reads. NewLanguage
// packs it into the dense runtime representation.
type TableSpec struct {
	Name string

	// Terms: id 0 is reserved for the error term. Terms up to MaxNode
	// appear in trees; MinRepeatTerm and above are repeat helpers.
	TermNames     []string
	EofTerm       int
	TopTerm       int
	MinRepeatTerm int
	MaxNode       int
	Placeholder   int

	TopState int
	States   []StateSpec
	Gotos    []GotoSpec

	// TokenPrec lists token terms from highest to lowest precedence;
	// earlier tokens override later ones at the same input position.
	TokenPrec []int

	DynamicPrec map[int]int

	// BufferLength bounds a stack's local buffer before the driver
	// materializes the top node. Zero disables materialization.
	BufferLength int

	DialectFlags    []bool
	DisabledTerms   []bool
}

type StateSpec struct {
	Skipped   bool
	Accepting bool

	Actions []ActionSpec
	Skip    []ActionSpec

	// TokenizerMask selects which tokenizers run in this state. Zero
	// means the first tokenizer only.
	TokenizerMask uint32

	DefaultReduce uint32
	ForcedReduce  uint32
}

type ActionSpec struct {
	Term   int
	Action uint32
}

type GotoSpec struct {
	Term    int
	Entries []GotoEntry
}

// GotoEntry maps a set of source states to a target. The last entry for
// a term doubles as the loose fallback.
type GotoEntry struct {
	Target int
	States []int
}

// NewLanguage packs a table spec and its tokenizers into a Language.
func NewLanguage(spec *TableSpec, tokenizers []Tokenizer, context *ContextTracker) (*Language, error) {
	if len(spec.States) == 0 {
		return nil, tableErrorf("no states")
	}
	if spec.TopState < 0 || spec.TopState >= len(spec.States) {
		return nil, tableErrorf("top state %d out of range", spec.TopState)
	}
	if len(tokenizers) == 0 {
		return nil, tableErrorf("no tokenizers")
	}

	l := &Language{
		tokenizers:   tokenizers,
		names:        spec.TermNames,
		topState:     spec.TopState,
		topTerm:      spec.TopTerm,
		eofTerm:      spec.EofTerm,
		minRepeat:    spec.MinRepeatTerm,
		maxNode:      spec.MaxNode,
		placeholder:  spec.Placeholder,
		bufferLength: spec.BufferLength,
		dynamicPrec:  spec.DynamicPrec,
		dialect:      Dialect{Flags: spec.DialectFlags, disabled: spec.DisabledTerms},
		context:      context,
	}
	if l.minRepeat == 0 {
		l.minRepeat = len(spec.TermNames)
	}
	l.maxTerm = len(spec.TermNames) - 1

	// Offset 0 holds the shared empty action list, which also serves as
	// the empty token precedence list.
	data := []uint16{seqEnd, seqDone, 0}

	packActions := func(actions []ActionSpec) (int, error) {
		if len(actions) == 0 {
			return 0, nil
		}
		off := len(data)
		for _, a := range actions {
			if a.Term < 0 || a.Term >= seqEnd {
				return 0, tableErrorf("action term %d out of range", a.Term)
			}
			data = append(data, uint16(a.Term), uint16(a.Action&0xFFFF), uint16(a.Action>>16))
		}
		data = append(data, seqEnd, seqDone, 0)
		return off, nil
	}

	states := make([]uint32, 0, len(spec.States)*stateSize)
	for _, st := range spec.States {
		actions, err := packActions(st.Actions)
		if err != nil {
			return nil, err
		}
		skip, err := packActions(st.Skip)
		if err != nil {
			return nil, err
		}
		var flags uint32
		if st.Skipped {
			flags |= StateSkipped
		}
		if st.Accepting {
			flags |= StateAccepting
		}
		mask := st.TokenizerMask
		if mask == 0 {
			mask = 1
		}
		states = append(states, flags, uint32(actions), uint32(skip),
			mask, st.DefaultReduce, st.ForcedReduce)
	}

	if len(spec.TokenPrec) > 0 {
		l.tokenPrec = len(data)
		for _, term := range spec.TokenPrec {
			data = append(data, uint16(term))
		}
		data = append(data, seqEnd)
	}

	gotoTable, err := packGotos(spec)
	if err != nil {
		return nil, err
	}

	l.states = states
	l.data = data
	l.gotoTable = gotoTable
	return l, nil
}

func packGotos(spec *TableSpec) ([]uint16, error) {
	bound := 0
	for _, g := range spec.Gotos {
		if g.Term >= bound {
			bound = g.Term + 1
		}
	}
	table := make([]uint16, bound+1)
	table[0] = uint16(bound)

	// Terms inside the bound without entries point at a shared empty
	// group so lookups terminate.
	empty := len(table)
	table = append(table, 1, 0)
	for term := 0; term < bound; term++ {
		table[term+1] = uint16(empty)
	}

	sorted := append([]GotoSpec(nil), spec.Gotos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Term < sorted[j].Term })

	for _, g := range sorted {
		if len(g.Entries) == 0 {
			continue
		}
		if int(table[g.Term+1]) != empty {
			return nil, tableErrorf("duplicate goto entries for term %d", g.Term)
		}
		table[g.Term+1] = uint16(len(table))
		for i, e := range g.Entries {
			tag := len(e.States) << 1
			if i == len(g.Entries)-1 {
				tag |= 1
			}
			table = append(table, uint16(tag), uint16(e.Target))
			for _, s := range e.States {
				table = append(table, uint16(s))
			}
		}
	}
	return table, nil
}

// TokenSpec describes one token for BuildTokenGroup: either an exact
// literal or a character class, optionally repeating.
type TokenSpec struct {
	Term    int
	Literal string
	Chars   string
	Repeat  bool
}

// BuildTokenGroup compiles literal and character-class token specs into
// the packed DFA a TokenGroup interprets. All tokens land in the given
// group id.
func BuildTokenGroup(tokens []TokenSpec, id int) (*TokenGroup, error) {
	b := &dfaBuilder{states: []dfaState{{}}}
	for _, tok := range tokens {
		switch {
		case tok.Literal != "":
			if err := b.addLiteral(tok.Term, tok.Literal); err != nil {
				return nil, err
			}
		case tok.Chars != "":
			b.addClass(tok.Term, tok.Chars, tok.Repeat)
		default:
			return nil, tableErrorf("token %d has neither literal nor chars", tok.Term)
		}
	}
	return NewTokenGroup(b.pack(uint16(1)<<id), id), nil
}

type dfaState struct {
	accepts []int
	edges   []dfaEdge
}

type dfaEdge struct {
	lo, hi int // [lo, hi)
	target int
}

type dfaBuilder struct {
	states []dfaState
}

func (b *dfaBuilder) addLiteral(term int, lit string) error {
	state := 0
	for i := 0; i < len(lit); i++ {
		c := int(lit[i])
		state = b.edgeTo(state, c, c+1)
	}
	b.states[state].accepts = append(b.states[state].accepts, term)
	return nil
}

func (b *dfaBuilder) addClass(term int, chars string, repeat bool) {
	target := len(b.states)
	b.states = append(b.states, dfaState{accepts: []int{term}})
	for _, r := range rangesOf(chars) {
		b.states[0].edges = append(b.states[0].edges, dfaEdge{lo: r.Start, hi: r.End, target: target})
		if repeat {
			b.states[target].edges = append(b.states[target].edges, dfaEdge{lo: r.Start, hi: r.End, target: target})
		}
	}
}

// edgeTo finds or creates the single-character edge from state.
func (b *dfaBuilder) edgeTo(state, lo, hi int) int {
	for _, e := range b.states[state].edges {
		if e.lo == lo && e.hi == hi {
			return e.target
		}
	}
	target := len(b.states)
	b.states = append(b.states, dfaState{})
	b.states[state].edges = append(b.states[state].edges, dfaEdge{lo: lo, hi: hi, target: target})
	return target
}

func rangesOf(chars string) []Range {
	codes := make([]int, 0, len(chars))
	for i := 0; i < len(chars); i++ {
		codes = append(codes, int(chars[i]))
	}
	sort.Ints(codes)
	var out []Range
	for _, c := range codes {
		if n := len(out); n > 0 && out[n-1].End == c {
			out[n-1].End = c + 1
		} else {
			out = append(out, NewRange(c, c+1))
		}
	}
	return out
}

// pack lays the DFA out in the per-state format readToken interprets.
func (b *dfaBuilder) pack(mask uint16) []uint16 {
	offsets := make([]int, len(b.states))
	size := 0
	for i, st := range b.states {
		offsets[i] = size
		size += 3 + len(st.accepts)*2 + len(st.edges)*3
	}
	data := make([]uint16, 0, size)
	for _, st := range b.states {
		accEnd := len(data) + 3 + len(st.accepts)*2
		data = append(data, mask, uint16(accEnd), uint16(len(st.edges)))
		for _, term := range st.accepts {
			data = append(data, uint16(term), mask)
		}
		edges := append([]dfaEdge(nil), st.edges...)
		sort.Slice(edges, func(i, j int) bool { return edges[i].lo < edges[j].lo })
		for _, e := range edges {
			data = append(data, uint16(e.lo), uint16(e.hi), uint16(offsets[e.target]))
		}
	}
	return data
}
