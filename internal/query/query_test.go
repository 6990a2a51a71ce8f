package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	testCases := []struct {
		expr     string
		opts     Options
		text     string
		expected bool
	}{
		{expr: "foo|bar", text: "a foo b", expected: true},
		{expr: "foo|bar", text: "a baz b", expected: false},
		{expr: "foo&bar", text: "foo", expected: false},
		{expr: "foo&bar", text: "bar foo", expected: true},
		{expr: "-foo", text: "a foo b", expected: false},
		{expr: "-foo", text: "a baz b", expected: true},
		{expr: `"exact phrase"`, opts: Options{WholeWord: true}, text: "an exact phrase here", expected: true},
		{expr: `"exact phrase"`, opts: Options{WholeWord: true}, text: "anexact phrasehere", expected: false},
		{expr: `"exact phrase"`, text: "anexact phrasehere", expected: true},
		{expr: `"exact phrase"`, text: "exact and phrase", expected: false},

		// empty and no-op expressions
		{expr: "", text: "anything", expected: true},
		{expr: "   ", text: "", expected: true},
		{expr: "-", text: "anything", expected: true},
		{expr: "foo -", text: "foo", expected: true},

		// implicit and across terms, negation as a post filter
		{expr: "foo bar", text: "bar then foo", expected: true},
		{expr: "foo bar", text: "foo only", expected: false},
		{expr: "foo -bar", text: "foo", expected: true},
		{expr: "foo -bar", text: "foo bar", expected: false},
		{expr: "foo -bar|baz", text: "foo baz", expected: false},

		// case handling
		{expr: "FOO", text: "a foo", expected: true},
		{expr: "FOO", opts: Options{CaseSensitive: true}, text: "a foo", expected: false},
		{expr: "FOO", opts: Options{CaseSensitive: true}, text: "a FOO", expected: true},

		// whole word terms
		{expr: "cat", opts: Options{WholeWord: true}, text: "concatenate", expected: false},
		{expr: "cat", opts: Options{WholeWord: true}, text: "the cat, sat", expected: true},
		{expr: "cat", opts: Options{WholeWord: true}, text: "concat cat", expected: true},
		{expr: "cat", text: "concatenate", expected: true},

		// wildcards
		{expr: "c?t", text: "the cut", expected: true},
		{expr: "c?t", text: "the ct", expected: false},
		{expr: "gr*y", text: "a grey sky", expected: true},
		{expr: "gr*y", opts: Options{WholeWord: true}, text: "agreyish", expected: false},
		{expr: "gr*y", opts: Options{WholeWord: true}, text: "so grey.", expected: true},
		{expr: "*", text: "", expected: true},

		// unbalanced quotes are literal
		{expr: `"foo`, text: `say "foo`, expected: true},
		{expr: `"foo`, text: `say foo`, expected: false},

		// quoted operators are literal
		{expr: `"a|b"`, text: "x a|b y", expected: true},
		{expr: `"a|b"`, text: "x a y", expected: false},

		// nested groups
		{expr: "foo&bar|baz", text: "foo baz", expected: true},
		{expr: "foo&-bar", text: "foo bar", expected: false},
		{expr: "foo&-bar", text: "foo", expected: true},
	}

	for _, tc := range testCases {
		m := Compile(tc.expr, tc.opts)
		require.Equal(t, tc.expected, m.Test(tc.text), "%q on %q (%s)", tc.expr, tc.text, m)
	}
}

func TestMatcherIsPure(t *testing.T) {
	m := Compile(`foo|bar "x y" -baz c*t`, Options{WholeWord: true, Stemmer: PorterStemmer{}})
	texts := []string{"foo x y cat", "bar x y cut baz", "", "x y"}
	for _, text := range texts {
		first := m.Test(text)
		require.Equal(t, first, m.Test(text), text)
	}
}

func TestStemming(t *testing.T) {
	plain := Compile("running", Options{})
	stemmed := Compile("running", Options{Stemmer: PorterStemmer{}})

	require.False(t, plain.Test("he runs daily"))
	require.True(t, stemmed.Test("he runs daily"))
	require.True(t, stemmed.Test("Running late"))
	require.False(t, stemmed.Test("ruins"))

	exact := Compile("Runs", Options{Stemmer: PorterStemmer{}, CaseSensitive: true})
	require.True(t, exact.Test("Runs daily"))
	require.False(t, exact.Test("runs daily"))
	require.False(t, exact.Test("Running late"))
}

func TestParseTree(t *testing.T) {
	nodes := Parse(`-a&b "c d" e|f*`)
	require.Len(t, nodes, 3)
	require.Equal(t, KindNot, nodes[0].Kind)
	require.Equal(t, KindAnd, nodes[0].Children[0].Kind)
	require.Equal(t, KindPhrase, nodes[1].Kind)
	require.Equal(t, "c d", nodes[1].Text)
	require.Equal(t, KindOr, nodes[2].Kind)
	require.Equal(t, KindWildcard, nodes[2].Children[1].Kind)

	m := Compile(`-a&b "c d" e|f*`, Options{})
	require.Equal(t, `"c d" (e|wildcard(f*)) -(a&b)`, m.String())
}

func TestFilter(t *testing.T) {
	m := Compile("foo", Options{})
	require.Equal(t, []string{"foo", "a foo"}, m.Filter([]string{"foo", "bar", "a foo"}))
}

func TestCache(t *testing.T) {
	cache, err := NewCache(2)
	require.NoError(t, err)

	a := cache.Compile("foo", Options{})
	b := cache.Compile("foo", Options{})
	require.Equal(t, a.String(), b.String())
	require.Equal(t, 1, cache.Len())

	cache.Compile("foo", Options{WholeWord: true})
	cache.Compile("foo", Options{Stemmer: PorterStemmer{}})
	require.Equal(t, 2, cache.Len())
}
