// Package blacklist parses blacklist rules and filters posts with them.
//
// Rules are groups separated by newlines or commas. Tokens within a group are
// separated by whitespace and must all hold for the group to match. A post is
// removed when any group matches it.
package blacklist

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	kindTag tokenKind = iota
	kindRating
	kindID
	kindUser
	kindScore
)

type scoreOp int

const (
	opLess scoreOp = iota
	opLessEqual
	opGreater
	opGreaterEqual
	opEqual
)

// Token is a single condition of a group
type Token struct {
	Negated bool
	kind    tokenKind
	// text is the tag name, rating letter, or user name depending on kind
	text   string
	number int
	op     scoreOp
	// userID is filled by ResolveUsers; zero means unresolved
	userID int
}

// Group is a conjunction of tokens
type Group struct {
	Tokens []Token
	Source string
}

// Rules is a disjunction of groups. The zero value matches nothing.
type Rules struct {
	Groups []Group
}

// Empty reports whether the rules can never remove a post
func (r Rules) Empty() bool { return len(r.Groups) == 0 }

// Parse reads blacklist text. Unrecognised token forms are treated as plain tags.
func Parse(text string) Rules {
	var rules Rules
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ',' }) {
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) == 0 {
			continue
		}
		group := Group{Source: strings.Join(fields, " ")}
		for _, f := range fields {
			if tok, ok := parseToken(f); ok {
				group.Tokens = append(group.Tokens, tok)
			}
		}
		if len(group.Tokens) > 0 {
			rules.Groups = append(rules.Groups, group)
		}
	}
	return rules
}

// Merge combines several rule sets into one
func Merge(sets ...Rules) Rules {
	var out Rules
	for _, s := range sets {
		out.Groups = append(out.Groups, s.Groups...)
	}
	return out
}

func parseToken(s string) (Token, bool) {
	var tok Token
	if strings.HasPrefix(s, "-") {
		tok.Negated = true
		s = s[1:]
	}
	if s == "" {
		return tok, false
	}

	tok.kind = kindTag
	tok.text = s

	name, value, found := strings.Cut(s, ":")
	if !found || value == "" {
		return tok, true
	}

	switch name {
	case "rating":
		tok.kind = kindRating
		tok.text = normalizeRating(value)
	case "id":
		if n, err := strconv.Atoi(value); err == nil {
			tok.kind = kindID
			tok.number = n
		}
	case "user":
		tok.kind = kindUser
		tok.text = value
	case "score":
		if op, n, ok := parseScore(value); ok {
			tok.kind = kindScore
			tok.op = op
			tok.number = n
		}
	}
	return tok, true
}

func normalizeRating(v string) string {
	switch v {
	case "s", "safe":
		return "s"
	case "q", "questionable":
		return "q"
	case "e", "explicit":
		return "e"
	default:
		return ""
	}
}

func parseScore(v string) (scoreOp, int, bool) {
	op := opEqual
	for _, p := range []struct {
		prefix string
		op     scoreOp
	}{{"<=", opLessEqual}, {">=", opGreaterEqual}, {"<", opLess}, {">", opGreater}} {
		if strings.HasPrefix(v, p.prefix) {
			op = p.op
			v = v[len(p.prefix):]
			break
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, 0, false
	}
	return op, n, true
}

// Users returns the user names referenced by user: tokens
func (r Rules) Users() []string {
	seen := map[string]bool{}
	var names []string
	for _, g := range r.Groups {
		for _, t := range g.Tokens {
			if t.kind == kindUser && !seen[t.text] {
				seen[t.text] = true
				names = append(names, t.text)
			}
		}
	}
	return names
}

// WithUserIDs returns a copy of the rules with user: tokens bound to uploader ids.
// Names missing from ids stay unresolved and never match.
func (r Rules) WithUserIDs(ids map[string]int) Rules {
	out := Rules{Groups: make([]Group, len(r.Groups))}
	for i, g := range r.Groups {
		tokens := make([]Token, len(g.Tokens))
		copy(tokens, g.Tokens)
		for j := range tokens {
			if tokens[j].kind == kindUser {
				tokens[j].userID = ids[tokens[j].text]
			}
		}
		out.Groups[i] = Group{Tokens: tokens, Source: g.Source}
	}
	return out
}
