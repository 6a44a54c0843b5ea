package lrx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleNumber(t *testing.T) {
	lang := exprLanguage(t)
	tree, err := lang.Parse("7")
	require.NoError(t, err)

	assert.Equal(t, "Top(Expr(Number))", tree.Sexpr(lang))
	assert.False(t, tree.HasError())
	assert.Equal(t, 0, tree.From)
	assert.Equal(t, 1, tree.To)
}

func TestParse_Expression(t *testing.T) {
	lang := exprLanguage(t)

	tests := []struct {
		name  string
		input string
		sexpr string
	}{
		{name: "binary", input: "1+2", sexpr: "Top(Expr(Expr(Number),Plus,Number))"},
		{name: "left associative", input: "1+2+3", sexpr: "Top(Expr(Expr(Expr(Number),Plus,Number),Plus,Number))"},
		{name: "multi digit", input: "10+234", sexpr: "Top(Expr(Expr(Number),Plus,Number))"},
		{name: "spaces", input: "1 + 2", sexpr: "Top(Expr(Expr(Number),space,Plus,space,Number))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := lang.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.sexpr, tree.Sexpr(lang))
			assert.False(t, tree.HasError())
		})
	}
}

func TestParse_TrailingSkipped(t *testing.T) {
	lang := exprLanguage(t)
	tree, err := lang.Parse("1 ")
	require.NoError(t, err)

	assert.False(t, tree.HasError())
	// The skipped token stays outside the completed Top node.
	assert.Equal(t, "Top(Top(Expr(Number)),space)", tree.Sexpr(lang))
}

func TestParse_Recovery(t *testing.T) {
	lang := exprLanguage(t)

	tests := []struct {
		name  string
		input string
	}{
		{name: "trailing operator", input: "1+"},
		{name: "double operator", input: "1++2"},
		{name: "leading operator", input: "+1"},
		{name: "garbage", input: "1+?2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := lang.Parse(tt.input)
			require.NoError(t, err)
			require.NotNil(t, tree)
			assert.True(t, tree.HasError())
		})
	}
}

func TestParse_RecoveryKeepsGoodPrefix(t *testing.T) {
	lang := exprLanguage(t)
	tree, err := lang.Parse("1+")
	require.NoError(t, err)

	assert.Equal(t, "Top(Expr(Expr(Number),Plus,⚠))", tree.Sexpr(lang))
}

func TestParse_Strict(t *testing.T) {
	lang := exprLanguage(t)

	_, err := lang.ParseStrict("1+2")
	assert.NoError(t, err)

	_, err = lang.ParseStrict("?")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParse_RecoverDisabled(t *testing.T) {
	lang := exprLanguage(t)
	cfg := NewConfig()
	cfg.Recover = false

	tree, err := lang.ParseWithConfig(NewStringInput("1+"), nil, cfg)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.True(t, tree.HasError())
}

func TestParse_EmptyInputTrivialGrammar(t *testing.T) {
	lang := trivialLanguage(t)
	tree, err := lang.Parse("")
	require.NoError(t, err)

	assert.Equal(t, 1, tree.Type)
	assert.Empty(t, tree.Children)
}

func TestParse_AmbiguityDynamicPrecedence(t *testing.T) {
	lang := ambiguousLanguage(t)
	tree, err := lang.Parse("x")
	require.NoError(t, err)

	// Both readings parse; the B production carries dynamic precedence.
	assert.Equal(t, "Top(B(x))", tree.Sexpr(lang))
}

func TestParse_GapBetweenTokens(t *testing.T) {
	lang := exprLanguage(t)
	tree, err := lang.ParseWithConfig(NewStringInput("1+##2"), []Range{NewRange(2, 4)}, nil)
	require.NoError(t, err)

	// Scanning "+" advances the stream over the gap, so the Plus token
	// ends at 4 and the placeholder is stored inside it.
	assert.Equal(t, "Top(Expr(Expr(Number),Plus(Gap),Number))", tree.Sexpr(lang))
	assert.False(t, tree.HasError())
}

func TestParse_GapInsideToken(t *testing.T) {
	lang := exprLanguage(t)
	tree, err := lang.ParseWithConfig(NewStringInput("1#2"), []Range{NewRange(1, 2)}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Top(Expr(Number(Gap)))", tree.Sexpr(lang))
}

func TestParse_ChunkedInput(t *testing.T) {
	lang := exprLanguage(t)
	input := chunkedInput{inner: NewStringInput("10+20+30"), size: 3}
	tree, err := lang.ParseWithConfig(input, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Top(Expr(Expr(Expr(Number),Plus,Number),Plus,Number))", tree.Sexpr(lang))
}

func TestParse_ContextTracker(t *testing.T) {
	shifts := 0
	tracker := &ContextTracker{
		Start: func() any { return 0 },
		Shift: func(ctx any, term int, stack *Stack, input *InputStream) any {
			shifts++
			return shifts
		},
		Hash:   func(ctx any) uint32 { return uint32(ctx.(int)) },
		Strict: true,
	}
	lang := exprLanguageWith(t, tracker, nil)

	tree, err := lang.Parse("1+2")
	require.NoError(t, err)

	assert.Equal(t, 3, shifts)
	assert.Equal(t, uint32(3), tree.ContextHash)
}

func TestParse_MaterializeKeepsTree(t *testing.T) {
	lang := exprLanguageWith(t, nil, func(spec *TableSpec) {
		spec.BufferLength = 1
	})

	p := NewParse(lang, NewStringInput("1+2+3"), nil, nil)
	tree, err := p.Run()
	require.NoError(t, err)

	assert.Equal(t, "Top(Expr(Expr(Expr(Number),Plus,Number),Plus,Number))", tree.Sexpr(lang))
	assert.NotEmpty(t, p.reused)
}

func TestParse_NestedGrammar(t *testing.T) {
	inner := exprLanguage(t)
	outer := exprLanguage(t)
	var sawStack *Stack
	outer.SetNested(tExpr, func(input Input, stack *Stack, from, to int) *NestedGrammar {
		if to-from < 3 {
			return nil
		}
		sawStack = stack
		return &NestedGrammar{Language: inner, From: from, To: to}
	})

	tree, err := outer.Parse("1+2")
	require.NoError(t, err)
	require.NotNil(t, sawStack)

	node := tree.Children[0]
	require.Equal(t, tExpr, node.Type)
	require.NotNil(t, node.Mounted)
	assert.Equal(t, "Top(Expr(Expr(Number),Plus,Number))", node.Mounted.Sexpr(inner))
}

func TestStack_MayNestFrom(t *testing.T) {
	lang := exprLanguage(t)
	keys := map[int]NestedFactory{tExpr: func(Input, *Stack, int, int) *NestedGrammar { return nil }}

	p := newTestParse(t, lang, "1+2")
	stack := p.stacks[0]
	stack.Apply(Shift(1, 0), tNumber, 0, 1)
	stack.Apply(Reduce(tExpr, 1, 0), tPlus, 1, 2)
	stack.Apply(Shift(3, 0), tPlus, 1, 2)
	stack.Apply(Shift(5, 0), tNumber, 2, 3)

	assert.Equal(t, 0, stack.MayNestFrom(keys))
	assert.Equal(t, -1, stack.MayNestFrom(map[int]NestedFactory{tTop: nil}))
}

func TestParse_ReducePosNeverPassesPos(t *testing.T) {
	lang := exprLanguage(t)
	p := NewParse(lang, NewStringInput("1 + 2 "), nil, nil)
	for {
		tree, err := p.Advance()
		require.NoError(t, err)
		for _, s := range p.stacks {
			assert.LessOrEqual(t, s.reducePos, s.pos)
			assert.LessOrEqual(t, s.pos, p.stream.end)
		}
		if tree != nil {
			break
		}
	}
}
