package htmlutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetText returns the concatenated text of a node, turning <br> and the end
// of block elements into newlines.
func GetText(node *html.Node) string {
	var buffer strings.Builder
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *strings.Builder) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		switch node.DataAtom {
		case atom.Br:
			buffer.WriteByte('\n')
			return
		case atom.Script, atom.Style:
			return
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
	if node.Type == html.ElementNode {
		switch node.DataAtom {
		case atom.P, atom.Div, atom.Li:
			buffer.WriteByte('\n')
		}
	}
}

// SelectionText is GetText over every node of a selection.
func SelectionText(sel *goquery.Selection) string {
	var buffer strings.Builder
	for _, n := range sel.Nodes {
		buffer.WriteString(GetText(n))
	}
	return buffer.String()
}

var innerWhitespace = regexp.MustCompile(`[ \t]{2,}`)

func removeNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if c == '\n' || unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// CleanText strips non printable runes, collapses runs of inline whitespace
// and trims the result. Newlines are kept.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var (
	strictPolicy = bluemonday.StrictPolicy()
	brTag        = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// Plaintext turns an html fragment into its text content, line breaks are
// preserved and entities are unescaped.
func Plaintext(fragment string) string {
	if fragment == "" {
		return ""
	}
	withBreaks := brTag.ReplaceAllString(fragment, "\n")
	return html.UnescapeString(strictPolicy.Sanitize(withBreaks))
}
