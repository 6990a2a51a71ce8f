package archive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

type Family string

const (
	FamilyJSON      Family = "json-api"
	FamilyHTML      Family = "html-scrape"
	FamilyProtected Family = "protected-json-api"
)

// Descriptor describes one backend archive.
type Descriptor struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Family  Family `json:"family"`
	// PageSize is the number of posts per result page, only meaningful for
	// backends that paginate by offset.
	PageSize int `json:"page_size,omitempty"`
}

var (
	ErrUnknownArchive   = errors.New("unknown archive")
	ErrDuplicateArchive = errors.New("duplicate archive name")
)

// UnknownArchiveError is returned when a selector matches no archive.
type UnknownArchiveError struct {
	Selector   string
	Suggestion string
}

func (e UnknownArchiveError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown archive %q, did you mean %q?", e.Selector, e.Suggestion)
	}
	return fmt.Sprintf("unknown archive %q", e.Selector)
}

func (e UnknownArchiveError) Unwrap() error {
	return ErrUnknownArchive
}

// Registry is the immutable list of known archives. Archives are addressed by
// name or by their index in the list.
type Registry struct {
	archives []Descriptor
	byName   map[string]int
}

func NewRegistry(archives []Descriptor) (Registry, error) {
	r := Registry{
		archives: make([]Descriptor, len(archives)),
		byName:   make(map[string]int, len(archives)),
	}
	copy(r.archives, archives)
	for i, a := range r.archives {
		key := strings.ToLower(a.Name)
		if _, exists := r.byName[key]; exists {
			return Registry{}, fmt.Errorf("%w: %s", ErrDuplicateArchive, a.Name)
		}
		r.byName[key] = i
	}
	return r, nil
}

func (r Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.archives))
	copy(out, r.archives)
	return out
}

func (r Registry) Len() int {
	return len(r.archives)
}

// Resolve finds an archive by case-insensitive name or decimal index.
func (r Registry) Resolve(selector string) (Descriptor, error) {
	selector = strings.TrimSpace(selector)
	if i, ok := r.byName[strings.ToLower(selector)]; ok {
		return r.archives[i], nil
	}
	if i, err := strconv.Atoi(selector); err == nil && i >= 0 && i < len(r.archives) {
		return r.archives[i], nil
	}
	return Descriptor{}, UnknownArchiveError{
		Selector:   selector,
		Suggestion: r.suggest(selector),
	}
}

// ResolveAll resolves every selector, an empty list selects every archive.
func (r Registry) ResolveAll(selectors []string) ([]Descriptor, error) {
	if len(selectors) == 0 {
		return r.List(), nil
	}
	out := make([]Descriptor, 0, len(selectors))
	for _, s := range selectors {
		d, err := r.Resolve(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

const suggestionThreshold = 0.7

func (r Registry) suggest(selector string) string {
	best := ""
	bestScore := suggestionThreshold
	needle := strings.ToLower(selector)
	for _, a := range r.archives {
		score := matchr.JaroWinkler(needle, strings.ToLower(a.Name), false)
		if score > bestScore {
			best = a.Name
			bestScore = score
		}
	}
	return best
}
