package tagfile

import (
	"strconv"
	"strings"
)

// Kind identifies how an entry is retrieved
type Kind int

const (
	KindTag Kind = iota
	KindPool
	KindSet
	KindSinglePost
)

func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindPool:
		return "pool"
	case KindSet:
		return "set"
	case KindSinglePost:
		return "single-post"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// QueryEntry is one parsed line of the tag file.
type QueryEntry struct {
	// Name is the entry as written, normalized: lower-cased tokens joined by a
	// single space, or the numeric id for pools, sets and posts.
	Name string
	Kind Kind
	// Tags are the included tags in input order, deduplicated. Empty for id entries.
	Tags []string
	// Exclusions are the "-" prefixed tags without the prefix, deduplicated.
	Exclusions []string
	// ID is the pool, set or post id. Zero for tag entries.
	ID   int
	Line int
}

// Query renders the entry as a catalog tag search
func (e QueryEntry) Query() string {
	parts := make([]string, 0, len(e.Tags)+len(e.Exclusions))
	parts = append(parts, e.Tags...)
	for _, ex := range e.Exclusions {
		parts = append(parts, "-"+ex)
	}
	return strings.Join(parts, " ")
}

// HasExclusion reports whether tag is excluded by this entry
func (e QueryEntry) HasExclusion(tag string) bool {
	for _, ex := range e.Exclusions {
		if ex == tag {
			return true
		}
	}
	return false
}

// WithTags returns a copy of the entry with its included tags replaced.
// Used when aliases resolve to canonical names.
func (e QueryEntry) WithTags(tags []string) QueryEntry {
	cp := e
	cp.Tags = append([]string(nil), tags...)
	cp.Exclusions = append([]string(nil), e.Exclusions...)
	return cp
}

func (e QueryEntry) String() string {
	return e.Kind.String() + ":" + e.Name
}
