package lrx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLanguageFile(t *testing.T) {
	lang, err := LoadLanguageFile("testdata/expr.yaml")
	require.NoError(t, err)

	// The YAML tables behave exactly like the programmatically built
	// ones.
	built := exprLanguage(t)
	assert.Equal(t, built.Describe(), lang.Describe())

	tree, err := lang.Parse("1+2")
	require.NoError(t, err)
	assert.Equal(t, "Top(Expr(Expr(Number),Plus,Number))", tree.Sexpr(lang))

	tree, err = lang.Parse("1+")
	require.NoError(t, err)
	assert.True(t, tree.HasError())
}

func TestLoadLanguage_BadInput(t *testing.T) {
	_, err := LoadLanguage([]byte("{"))
	assert.Error(t, err)

	// Structurally valid YAML with no states fails validation.
	_, err = LoadLanguage([]byte("name: empty\ntokens:\n  - {term: 3, literal: x}\n"))
	assert.Error(t, err)

	// Actions have to pick a kind.
	_, err = LoadLanguage([]byte(`
name: broken
terms: ["⚠", "Top", "eof"]
tokens:
  - {term: 1, literal: x}
states:
  - actions:
      - {term: 1}
`))
	assert.Error(t, err)
}

func TestLoadLanguage_ActionEncoding(t *testing.T) {
	a := yamlAction{Term: 3, Shift: intp(7)}
	action, err := a.encode()
	require.NoError(t, err)
	assert.Equal(t, Shift(7, 0), action)

	a = yamlAction{Term: 5, Shift: intp(0), Stay: true}
	action, err = a.encode()
	require.NoError(t, err)
	assert.Equal(t, Shift(0, ActionStayFlag), action)

	a = yamlAction{Term: 2, Goto: intp(4)}
	action, err = a.encode()
	require.NoError(t, err)
	assert.Equal(t, Shift(4, ActionGotoFlag), action)

	r := yamlReduce{Term: 2, Depth: 3, Repeat: true}
	assert.Equal(t, Reduce(2, 3, ActionRepeatFlag), r.encode())
}

func intp(v int) *int { return &v }
