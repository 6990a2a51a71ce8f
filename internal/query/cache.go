package query

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	expr          string
	caseSensitive bool
	wholeWord     bool
	stemmer       string
}

// Cache memoizes compiled matchers.
type Cache struct {
	lru *lru.Cache[cacheKey, Matcher]
}

func NewCache(size int) (*Cache, error) {
	inner, err := lru.New[cacheKey, Matcher](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: inner}, nil
}

func (c *Cache) Compile(expr string, opts Options) Matcher {
	key := cacheKey{
		expr:          expr,
		caseSensitive: opts.CaseSensitive,
		wholeWord:     opts.WholeWord,
	}
	if opts.Stemmer != nil {
		key.stemmer = fmt.Sprintf("%T", opts.Stemmer)
	}
	if m, ok := c.lru.Get(key); ok {
		return m
	}
	m := Compile(expr, opts)
	c.lru.Add(key, m)
	return m
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
