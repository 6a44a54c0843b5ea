package lrx

import (
	"os"

	"gopkg.in/yaml.v3"
)

// The YAML table format mirrors TableSpec, with actions written in a
// readable form:
//
//	states:
//	  - actions:
//	      - {term: 3, shift: 1}
//	      - {term: 4, reduce: {term: 2, depth: 1}}
//	    skip:
//	      - {term: 6, shift: 0, stay: true}
//
// Tokens compile through BuildTokenGroup into tokenizer group 0.
type yamlGrammar struct {
	Name          string      `yaml:"name"`
	Terms         []string    `yaml:"terms"`
	Eof           int         `yaml:"eof"`
	TopTerm       int         `yaml:"top_term"`
	MinRepeat     int         `yaml:"min_repeat"`
	MaxNode       int         `yaml:"max_node"`
	Placeholder   int         `yaml:"placeholder"`
	TopState      int         `yaml:"top_state"`
	BufferLength  int         `yaml:"buffer_length"`
	TokenPrec     []int       `yaml:"token_prec"`
	DynamicPrec   map[int]int `yaml:"dynamic_prec"`
	DialectFlags  []bool      `yaml:"dialect_flags"`
	DisabledTerms []bool      `yaml:"disabled_terms"`

	Tokens []yamlToken `yaml:"tokens"`
	States []yamlState `yaml:"states"`
	Gotos  []yamlGoto  `yaml:"gotos"`
}

type yamlToken struct {
	Term    int    `yaml:"term"`
	Literal string `yaml:"literal"`
	Chars   string `yaml:"chars"`
	Repeat  bool   `yaml:"repeat"`
}

type yamlState struct {
	Skipped       bool         `yaml:"skipped"`
	Accepting     bool         `yaml:"accepting"`
	Actions       []yamlAction `yaml:"actions"`
	Skip          []yamlAction `yaml:"skip"`
	TokenizerMask uint32       `yaml:"tokenizer_mask"`
	DefaultReduce *yamlReduce  `yaml:"default_reduce"`
	ForcedReduce  *yamlReduce  `yaml:"forced_reduce"`
}

type yamlAction struct {
	Term   int         `yaml:"term"`
	Shift  *int        `yaml:"shift"`
	Goto   *int        `yaml:"goto"`
	Stay   bool        `yaml:"stay"`
	Reduce *yamlReduce `yaml:"reduce"`
}

type yamlReduce struct {
	Term   int  `yaml:"term"`
	Depth  int  `yaml:"depth"`
	Repeat bool `yaml:"repeat"`
	Stay   bool `yaml:"stay"`
}

type yamlGoto struct {
	Term    int             `yaml:"term"`
	Entries []yamlGotoEntry `yaml:"entries"`
}

type yamlGotoEntry struct {
	Target int   `yaml:"target"`
	States []int `yaml:"states"`
}

// LoadLanguage deserializes a YAML grammar table into a Language.
func LoadLanguage(data []byte) (*Language, error) {
	var g yamlGrammar
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	spec, tokens, err := g.toSpec()
	if err != nil {
		return nil, err
	}
	return NewLanguage(spec, tokens, nil)
}

// LoadLanguageFile deserializes a YAML grammar table file.
func LoadLanguageFile(path string) (*Language, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadLanguage(data)
}

func (g *yamlGrammar) toSpec() (*TableSpec, []Tokenizer, error) {
	spec := &TableSpec{
		Name:          g.Name,
		TermNames:     g.Terms,
		EofTerm:       g.Eof,
		TopTerm:       g.TopTerm,
		MinRepeatTerm: g.MinRepeat,
		MaxNode:       g.MaxNode,
		Placeholder:   g.Placeholder,
		TopState:      g.TopState,
		BufferLength:  g.BufferLength,
		TokenPrec:     g.TokenPrec,
		DynamicPrec:   g.DynamicPrec,
		DialectFlags:  g.DialectFlags,
		DisabledTerms: g.DisabledTerms,
	}

	for _, st := range g.States {
		actions, err := convertActions(st.Actions)
		if err != nil {
			return nil, nil, err
		}
		skip, err := convertActions(st.Skip)
		if err != nil {
			return nil, nil, err
		}
		s := StateSpec{
			Skipped:       st.Skipped,
			Accepting:     st.Accepting,
			Actions:       actions,
			Skip:          skip,
			TokenizerMask: st.TokenizerMask,
		}
		if st.DefaultReduce != nil {
			s.DefaultReduce = st.DefaultReduce.encode()
		}
		if st.ForcedReduce != nil {
			s.ForcedReduce = st.ForcedReduce.encode()
		}
		spec.States = append(spec.States, s)
	}

	for _, yg := range g.Gotos {
		gs := GotoSpec{Term: yg.Term}
		for _, e := range yg.Entries {
			gs.Entries = append(gs.Entries, GotoEntry{Target: e.Target, States: e.States})
		}
		spec.Gotos = append(spec.Gotos, gs)
	}

	var tokens []TokenSpec
	for _, t := range g.Tokens {
		tokens = append(tokens, TokenSpec{Term: t.Term, Literal: t.Literal, Chars: t.Chars, Repeat: t.Repeat})
	}
	group, err := BuildTokenGroup(tokens, 0)
	if err != nil {
		return nil, nil, err
	}
	return spec, []Tokenizer{group}, nil
}

func convertActions(in []yamlAction) ([]ActionSpec, error) {
	var out []ActionSpec
	for _, a := range in {
		action, err := a.encode()
		if err != nil {
			return nil, err
		}
		out = append(out, ActionSpec{Term: a.Term, Action: action})
	}
	return out, nil
}

func (a *yamlAction) encode() (uint32, error) {
	switch {
	case a.Shift != nil:
		var flags uint32
		if a.Stay {
			flags |= ActionStayFlag
		}
		return Shift(*a.Shift, flags), nil
	case a.Goto != nil:
		return Shift(*a.Goto, ActionGotoFlag), nil
	case a.Reduce != nil:
		return a.Reduce.encode(), nil
	}
	return 0, tableErrorf("action for term %d selects neither shift, goto nor reduce", a.Term)
}

func (r *yamlReduce) encode() uint32 {
	var flags uint32
	if r.Repeat {
		flags |= ActionRepeatFlag
	}
	if r.Stay {
		flags |= ActionStayFlag
	}
	return Reduce(r.Term, r.Depth, flags)
}
