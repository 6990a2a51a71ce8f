package query

import (
	"strings"

	"github.com/blevesearch/go-porterstemmer"
)

// Stemmer reduces a word to its stem.
type Stemmer interface {
	Stem(word string) string
}

// PorterStemmer stems english words with the porter algorithm.
type PorterStemmer struct{}

func (PorterStemmer) Stem(word string) string {
	return porterstemmer.StemString(strings.ToLower(word))
}

// StemmerByName returns the stemmer registered under name, "" and "none"
// disable stemming.
func StemmerByName(name string) (Stemmer, bool) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, true
	case "porter", "english", "en":
		return PorterStemmer{}, true
	}
	return nil, false
}
