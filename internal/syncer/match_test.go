package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherWildcard(t *testing.T) {
	m, err := NewMatcher([]string{"U%"}, nil)
	require.NoError(t, err)

	assert.True(t, m.Match("User"))
	assert.True(t, m.Match("Utility"))
	assert.True(t, m.Match("U"))
	assert.False(t, m.Match("Service"))
	assert.False(t, m.Match("AUser"), "patterns are anchored")
}

func TestMatcherExactName(t *testing.T) {
	m, err := NewMatcher([]string{"User"}, nil)
	require.NoError(t, err)

	assert.True(t, m.Match("User"))
	assert.False(t, m.Match("UserArchive"))
}

func TestMatcherExclude(t *testing.T) {
	m, err := NewMatcher(nil, []string{"tmp_%"})
	require.NoError(t, err)

	assert.True(t, m.Match("User"))
	assert.False(t, m.Match("tmp_load"))
}

func TestMatcherExcludeWinsOverInclude(t *testing.T) {
	m, err := NewMatcher([]string{"U%"}, []string{"UserArchive"})
	require.NoError(t, err)

	assert.True(t, m.Match("User"))
	assert.False(t, m.Match("UserArchive"))
}

func TestMatcherNilAdmitsEverything(t *testing.T) {
	var m *Matcher
	assert.True(t, m.Match("anything"))
}

func TestMatcherRejectsDoubleWildcard(t *testing.T) {
	_, err := NewMatcher([]string{"a%b%"}, nil)
	require.Error(t, err)
}

func TestMatcherLiteralRegexpChars(t *testing.T) {
	m, err := NewMatcher([]string{"a.b"}, nil)
	require.NoError(t, err)

	assert.True(t, m.Match("a.b"))
	assert.False(t, m.Match("axb"), "dots are literal, not regexp metacharacters")
}
