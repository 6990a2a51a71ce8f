package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Options struct {
	CaseSensitive bool
	// WholeWord requires every term, phrase and wildcard to be bounded by
	// word edges.
	WholeWord bool
	// Stemmer reduces plain terms and the words of the text to a common
	// stem before comparing them. nil disables stemming. Stems are case
	// folded so stemming is ignored when CaseSensitive is set.
	Stemmer Stemmer
}

// Matcher is a compiled expression. It holds no mutable state and is safe
// for concurrent use.
type Matcher struct {
	source   string
	opts     Options
	positive []Node
	negative []Node
}

// Compile never fails, malformed input degrades to literal matching.
func Compile(expr string, opts Options) Matcher {
	m := Matcher{source: expr, opts: opts}
	for _, node := range Parse(expr) {
		if !opts.CaseSensitive {
			node = lowerNode(node)
		}
		if node.Kind == KindNot {
			m.negative = append(m.negative, node.Children[0])
			continue
		}
		m.positive = append(m.positive, node)
	}
	return m
}

func lowerNode(n Node) Node {
	out := Node{Kind: n.Kind, Text: strings.ToLower(n.Text)}
	for _, c := range n.Children {
		out.Children = append(out.Children, lowerNode(c))
	}
	return out
}

func (m Matcher) Source() string {
	return m.source
}

// String renders the compiled tree.
func (m Matcher) String() string {
	parts := make([]string, 0, len(m.positive)+len(m.negative))
	for _, n := range m.positive {
		parts = append(parts, n.String())
	}
	for _, n := range m.negative {
		parts = append(parts, "-"+n.String())
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the matcher accepts every text.
func (m Matcher) Empty() bool {
	return len(m.positive) == 0 && len(m.negative) == 0
}

// Test reports whether text satisfies every positive term and none of the
// negated ones.
func (m Matcher) Test(text string) bool {
	if m.Empty() {
		return true
	}
	if !m.opts.CaseSensitive {
		text = strings.ToLower(text)
	}
	e := evaluation{text: text, opts: m.opts}
	for _, n := range m.positive {
		if !e.eval(n) {
			return false
		}
	}
	for _, n := range m.negative {
		if e.eval(n) {
			return false
		}
	}
	return true
}

// Filter returns the texts accepted by the matcher, in order.
func (m Matcher) Filter(texts []string) []string {
	var out []string
	for _, t := range texts {
		if m.Test(t) {
			out = append(out, t)
		}
	}
	return out
}

type evaluation struct {
	text  string
	opts  Options
	stems map[string]struct{}
}

func (e *evaluation) eval(n Node) bool {
	switch n.Kind {
	case KindAnd:
		for _, c := range n.Children {
			if !e.eval(c) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range n.Children {
			if e.eval(c) {
				return true
			}
		}
		return false
	case KindNot:
		return !e.eval(n.Children[0])
	case KindPhrase:
		return contains(e.text, n.Text, e.opts.WholeWord)
	case KindWildcard:
		return matchWildcard(e.text, n.Text, e.opts.WholeWord)
	}
	if e.opts.Stemmer != nil && !e.opts.CaseSensitive && isWord(n.Text) {
		return e.containsStem(n.Text)
	}
	return contains(e.text, n.Text, e.opts.WholeWord)
}

func (e *evaluation) containsStem(term string) bool {
	if e.stems == nil {
		e.stems = make(map[string]struct{})
		for _, w := range strings.FieldsFunc(e.text, func(r rune) bool { return !isWordRune(r) }) {
			e.stems[e.opts.Stemmer.Stem(w)] = struct{}{}
		}
	}
	_, ok := e.stems[e.opts.Stemmer.Stem(term)]
	return ok
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isWordRune(r) {
			return false
		}
	}
	return true
}

// atWordEdge reports whether a match spanning text[start:end] is not
// adjacent to a word rune on either side.
func atWordEdge(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func contains(text, needle string, wholeWord bool) bool {
	if needle == "" {
		return true
	}
	if !wholeWord {
		return strings.Contains(text, needle)
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], needle)
		if i < 0 {
			return false
		}
		start := offset + i
		if atWordEdge(text, start, start+len(needle)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

// matchWildcard reports whether pattern, where * is any run of runes and ?
// is exactly one rune, matches somewhere in text.
func matchWildcard(text, pattern string, wholeWord bool) bool {
	runes := []rune(text)
	n := len(runes)
	wordAt := func(i int) bool { return i >= 0 && i < n && isWordRune(runes[i]) }

	// reachable[i] means the pattern prefix consumed so far can end right
	// before runes[i].
	reachable := make([]bool, n+1)
	for i := 0; i <= n; i++ {
		reachable[i] = !wholeWord || !wordAt(i-1)
	}

	for _, p := range pattern {
		next := make([]bool, n+1)
		alive := false
		switch p {
		case '*':
			seen := false
			for i := 0; i <= n; i++ {
				seen = seen || reachable[i]
				next[i] = seen
				alive = alive || seen
			}
		case '?':
			for i := 0; i < n; i++ {
				if reachable[i] {
					next[i+1] = true
					alive = true
				}
			}
		default:
			for i := 0; i < n; i++ {
				if reachable[i] && runes[i] == p {
					next[i+1] = true
					alive = true
				}
			}
		}
		if !alive {
			return false
		}
		reachable = next
	}

	for i := 0; i <= n; i++ {
		if reachable[i] && (!wholeWord || !wordAt(i)) {
			return true
		}
	}
	return false
}
