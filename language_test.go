package lrx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Term ids of the expression test grammar:
//
//	0 ⚠  1 Top  2 Expr  3 Number  4 Plus  5 space  6 Gap  7 eof
//
// Productions: Top → Expr; Expr → Number | Expr Plus Number. Spaces are
// skipped tokens.
const (
	tTop    = 1
	tExpr   = 2
	tNumber = 3
	tPlus   = 4
	tSpace  = 5
	tGap    = 6
	tEof    = 7
)

func exprTokens(t *testing.T) []Tokenizer {
	t.Helper()
	group, err := BuildTokenGroup([]TokenSpec{
		{Term: tNumber, Chars: "0123456789", Repeat: true},
		{Term: tPlus, Literal: "+"},
		{Term: tSpace, Chars: " \t\n", Repeat: true},
	}, 0)
	require.NoError(t, err)
	return []Tokenizer{group}
}

func exprSpec() *TableSpec {
	stay := []ActionSpec{{Term: tSpace, Action: Shift(0, ActionStayFlag)}}
	return &TableSpec{
		Name:        "expr",
		TermNames:   []string{"⚠", "Top", "Expr", "Number", "Plus", "space", "Gap", "eof"},
		EofTerm:     tEof,
		TopTerm:     tTop,
		MaxNode:     tGap,
		Placeholder: tGap,
		TopState:    0,
		States: []StateSpec{
			{Actions: []ActionSpec{{Term: tNumber, Action: Shift(1, 0)}}, Skip: stay},
			{DefaultReduce: Reduce(tExpr, 1, 0), ForcedReduce: Reduce(tExpr, 1, 0)},
			{
				Actions: []ActionSpec{
					{Term: tPlus, Action: Shift(3, 0)},
					{Term: tEof, Action: Reduce(tTop, 1, 0)},
				},
				Skip:         stay,
				ForcedReduce: Reduce(tTop, 1, 0),
			},
			{
				Actions:      []ActionSpec{{Term: tNumber, Action: Shift(5, 0)}},
				Skip:         stay,
				ForcedReduce: Reduce(tExpr, 2, 0),
			},
			{Accepting: true},
			{DefaultReduce: Reduce(tExpr, 3, 0), ForcedReduce: Reduce(tExpr, 3, 0)},
		},
		Gotos: []GotoSpec{
			{Term: tTop, Entries: []GotoEntry{{Target: 4, States: []int{0}}}},
			{Term: tExpr, Entries: []GotoEntry{{Target: 2, States: []int{0}}}},
		},
	}
}

func exprLanguage(t *testing.T) *Language {
	t.Helper()
	lang, err := NewLanguage(exprSpec(), exprTokens(t), nil)
	require.NoError(t, err)
	return lang
}

func exprLanguageWith(t *testing.T, context *ContextTracker, mutate func(*TableSpec)) *Language {
	t.Helper()
	spec := exprSpec()
	if mutate != nil {
		mutate(spec)
	}
	lang, err := NewLanguage(spec, exprTokens(t), context)
	require.NoError(t, err)
	return lang
}

// trivialLanguage accepts the empty input in its start state.
func trivialLanguage(t *testing.T) *Language {
	t.Helper()
	group, err := BuildTokenGroup(nil, 0)
	require.NoError(t, err)
	lang, err := NewLanguage(&TableSpec{
		TermNames: []string{"⚠", "Top", "eof"},
		EofTerm:   2,
		TopTerm:   1,
		MaxNode:   1,
		States:    []StateSpec{{Accepting: true}},
	}, []Tokenizer{group}, nil)
	require.NoError(t, err)
	return lang
}

// ambiguousLanguage parses "x" as either A or B; dynamic precedence
// makes B win.
func ambiguousLanguage(t *testing.T) *Language {
	t.Helper()
	group, err := BuildTokenGroup([]TokenSpec{{Term: 4, Literal: "x"}}, 0)
	require.NoError(t, err)
	lang, err := NewLanguage(&TableSpec{
		TermNames: []string{"⚠", "Top", "A", "B", "x", "eof"},
		EofTerm:   5,
		TopTerm:   1,
		MaxNode:   4,
		States: []StateSpec{
			{Actions: []ActionSpec{
				{Term: 4, Action: Shift(1, 0)},
				{Term: 4, Action: Shift(2, 0)},
			}},
			{DefaultReduce: Reduce(2, 1, 0), ForcedReduce: Reduce(2, 1, 0)},
			{DefaultReduce: Reduce(3, 1, 0), ForcedReduce: Reduce(3, 1, 0)},
			{Actions: []ActionSpec{{Term: 5, Action: Reduce(1, 1, 0)}}, ForcedReduce: Reduce(1, 1, 0)},
			{Actions: []ActionSpec{{Term: 5, Action: Reduce(1, 1, 0)}}, ForcedReduce: Reduce(1, 1, 0)},
			{Accepting: true},
		},
		Gotos: []GotoSpec{
			{Term: 1, Entries: []GotoEntry{{Target: 5, States: []int{0}}}},
			{Term: 2, Entries: []GotoEntry{{Target: 3, States: []int{0}}}},
			{Term: 3, Entries: []GotoEntry{{Target: 4, States: []int{0}}}},
		},
		DynamicPrec: map[int]int{3: 1},
	}, []Tokenizer{group}, nil)
	require.NoError(t, err)
	return lang
}

func TestLanguage_HasAction(t *testing.T) {
	lang := exprLanguage(t)

	tests := []struct {
		name     string
		state    int
		terminal int
		expected uint32
	}{
		{name: "shift number from start", state: 0, terminal: tNumber, expected: Shift(1, 0)},
		{name: "no plus from start", state: 0, terminal: tPlus, expected: 0},
		{name: "shift plus after expr", state: 2, terminal: tPlus, expected: Shift(3, 0)},
		{name: "reduce top at eof", state: 2, terminal: tEof, expected: Reduce(tTop, 1, 0)},
		{name: "skipped space", state: 0, terminal: tSpace, expected: Shift(0, ActionStayFlag)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, lang.HasAction(tt.state, tt.terminal))
		})
	}
}

func TestLanguage_GetGoto(t *testing.T) {
	lang := exprLanguage(t)

	assert.Equal(t, 2, lang.GetGoto(0, tExpr, false))
	assert.Equal(t, 4, lang.GetGoto(0, tTop, false))
	assert.Equal(t, -1, lang.GetGoto(3, tExpr, false))
	// Loose lookups fall back to the last target.
	assert.Equal(t, 2, lang.GetGoto(3, tExpr, true))
	// Terms without entries have no goto at all.
	assert.Equal(t, -1, lang.GetGoto(0, tNumber, false))
	assert.Equal(t, -1, lang.GetGoto(0, 100, true))
}

func TestLanguage_ValidAction(t *testing.T) {
	lang := exprLanguage(t)

	assert.True(t, lang.ValidAction(2, Reduce(tTop, 1, 0)))
	assert.True(t, lang.ValidAction(2, Shift(3, 0)))
	assert.False(t, lang.ValidAction(2, Shift(1, 0)))
	// Default reductions count as valid.
	assert.True(t, lang.ValidAction(1, Reduce(tExpr, 1, 0)))
}

func TestLanguage_NextStates(t *testing.T) {
	lang := exprLanguage(t)

	assert.Equal(t, []int{tNumber, 1}, lang.NextStates(0))
	assert.Equal(t, []int{tPlus, 3}, lang.NextStates(2))
	assert.Empty(t, lang.NextStates(4))
}

func TestLanguage_Overrides(t *testing.T) {
	lang := exprLanguageWith(t, nil, func(spec *TableSpec) {
		spec.TokenPrec = []int{tNumber, tPlus}
	})

	// Earlier in the precedence list wins.
	assert.True(t, lang.Overrides(tNumber, tPlus))
	assert.False(t, lang.Overrides(tPlus, tNumber))
	// Terms missing from the list are always overridable.
	assert.True(t, lang.Overrides(tPlus, tSpace))
}

func TestLanguage_DynamicPrecedence(t *testing.T) {
	lang := ambiguousLanguage(t)

	assert.Equal(t, 1, lang.DynamicPrecedence(3))
	assert.Equal(t, 0, lang.DynamicPrecedence(2))
}

func TestDialect_Allows(t *testing.T) {
	d := Dialect{}
	assert.True(t, d.Allows(3))

	d = Dialect{disabled: []bool{false, false, false, true}}
	assert.False(t, d.Allows(3))
	assert.True(t, d.Allows(2))
	assert.True(t, d.Allows(10))
}

func TestNewLanguage_Validation(t *testing.T) {
	group, err := BuildTokenGroup(nil, 0)
	require.NoError(t, err)

	_, err = NewLanguage(&TableSpec{}, []Tokenizer{group}, nil)
	assert.Error(t, err)

	_, err = NewLanguage(&TableSpec{States: []StateSpec{{}}}, nil, nil)
	assert.Error(t, err)

	_, err = NewLanguage(&TableSpec{States: []StateSpec{{}}, TopState: 3}, []Tokenizer{group}, nil)
	assert.Error(t, err)
}
