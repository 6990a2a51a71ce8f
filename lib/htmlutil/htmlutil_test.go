package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestSelectionText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<blockquote>first line<br>second <a href="#">link</a><br/>third<script>x()</script></blockquote>`,
	))
	require.NoError(t, err)

	text := SelectionText(doc.Find("blockquote"))
	require.Equal(t, "first line\nsecond link\nthird", text)
}

func TestCleanText(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "  hello   world  ", expected: "hello world"},
		{in: "a\r\n  b\t\t c ", expected: "a\nb c"},
		{in: "\n\nx\n\n", expected: "x"},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, CleanText(tc.in), tc.in)
	}
}

func TestPlaintext(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "", expected: ""},
		{in: `<span class="greentext">&gt;implying</span><br />ok`, expected: ">implying\nok"},
		{in: `a &amp; b`, expected: "a & b"},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, Plaintext(tc.in), tc.in)
	}
}
