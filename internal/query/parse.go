package query

import (
	"strings"
	"unicode"
)

type Kind int

const (
	KindTerm Kind = iota
	KindPhrase
	KindWildcard
	KindAnd
	KindOr
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "term"
	case KindPhrase:
		return "phrase"
	case KindWildcard:
		return "wildcard"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	}
	return "unknown"
}

// Node is one node of a compiled expression. Leaves (term, phrase, wildcard)
// carry Text, the rest carry Children.
type Node struct {
	Kind     Kind
	Text     string
	Children []Node
}

func (n Node) String() string {
	switch n.Kind {
	case KindTerm:
		return n.Text
	case KindPhrase:
		return `"` + n.Text + `"`
	case KindWildcard:
		return "wildcard(" + n.Text + ")"
	case KindNot:
		return "-" + n.Children[0].String()
	}
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = c.String()
	}
	sep := "&"
	if n.Kind == KindOr {
		sep = "|"
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// closingQuote returns the index of the quote closing the one at i, or -1
// when it is unbalanced.
func closingQuote(s []rune, i int) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] == '"' {
			return j
		}
	}
	return -1
}

// splitOutsideQuotes splits s on any rune for which isSep is true, ignoring
// separators inside a balanced pair of quotes. Quotes are kept in the output.
func splitOutsideQuotes(s string, isSep func(rune) bool) []string {
	runes := []rune(s)
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '"' {
			if end := closingQuote(runes, i); end >= 0 {
				current.WriteString(string(runes[i : end+1]))
				i = end
				continue
			}
		}
		if isSep(r) {
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return out
}

// unquote removes every balanced pair of quotes, an unmatched quote is kept
// as a literal character. ok reports whether a balanced pair was found.
func unquote(s string) (string, bool) {
	runes := []rune(s)
	var out strings.Builder
	found := false
	for i := 0; i < len(runes); i++ {
		if runes[i] == '"' {
			if end := closingQuote(runes, i); end >= 0 {
				out.WriteString(string(runes[i+1 : end]))
				i = end
				found = true
				continue
			}
		}
		out.WriteRune(runes[i])
	}
	return out.String(), found
}

func splitOn(sep rune) func(rune) bool {
	return func(r rune) bool { return r == sep }
}

// Parse turns an expression into its top level terms. The returned slice is
// an implicit conjunction. Terms that reduce to nothing are dropped.
func Parse(expr string) []Node {
	var nodes []Node
	for _, token := range splitOutsideQuotes(expr, unicode.IsSpace) {
		if node, ok := parseTerm(token); ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func parseTerm(token string) (Node, bool) {
	if token == "" {
		return Node{}, false
	}

	if strings.HasPrefix(token, "-") {
		inner, ok := parseTerm(token[1:])
		if !ok {
			return Node{}, false
		}
		return Node{Kind: KindNot, Children: []Node{inner}}, true
	}

	if parts := splitOutsideQuotes(token, splitOn('&')); len(parts) > 1 {
		return parseGroup(KindAnd, parts)
	}
	if parts := splitOutsideQuotes(token, splitOn('|')); len(parts) > 1 {
		return parseGroup(KindOr, parts)
	}

	if text, quoted := unquote(token); quoted {
		return Node{Kind: KindPhrase, Text: text}, true
	}
	if strings.ContainsAny(token, "*?") {
		return Node{Kind: KindWildcard, Text: token}, true
	}
	return Node{Kind: KindTerm, Text: token}, true
}

func parseGroup(kind Kind, parts []string) (Node, bool) {
	group := Node{Kind: kind}
	for _, p := range parts {
		if child, ok := parseTerm(p); ok {
			group.Children = append(group.Children, child)
		}
	}
	switch len(group.Children) {
	case 0:
		return Node{}, false
	case 1:
		return group.Children[0], true
	}
	return group, true
}
