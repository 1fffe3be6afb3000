package tagfile

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	errs "e621dl/pkg/errors"
)

var sections = map[string]Kind{
	"general":     KindTag,
	"artists":     KindTag,
	"pools":       KindPool,
	"sets":        KindSet,
	"single-post": KindSinglePost,
}

// Parse reads a tag file and returns its entries in file order.
func Parse(r io.Reader) ([]QueryEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag file: %w", err)
	}
	return ParseString(string(data))
}

// ParseString parses tag file text. Lines before the first directive are
// treated as tag entries.
//
//	file      = { line } ;
//	line      = [ directive | entry ] [ comment ] NEWLINE ;
//	directive = "[" keyword "]" ;
//	entry     = word { word } ;
func ParseString(src string) ([]QueryEntry, error) {
	p := &parser{lex: newLexer(src), kind: KindTag, seen: map[string]int{}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.parseFile(); err != nil {
		return nil, err
	}
	return p.entries, nil
}

type parser struct {
	lex     *lexer
	tok     token
	kind    Kind
	entries []QueryEntry
	seen    map[string]int
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(tok token, format string, args ...interface{}) error {
	return &errs.ParseError{Line: tok.line, Column: tok.col, Token: tok.text, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseFile() error {
	for p.tok.kind != tokEOF {
		if err := p.parseLine(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseLine() error {
	switch p.tok.kind {
	case tokNewline:
		return p.advance()
	case tokDirective:
		if err := p.parseDirective(); err != nil {
			return err
		}
	case tokWord:
		if err := p.parseEntry(); err != nil {
			return err
		}
	}
	return p.endOfLine()
}

func (p *parser) endOfLine() error {
	switch p.tok.kind {
	case tokNewline:
		return p.advance()
	case tokEOF:
		return nil
	default:
		return p.errorf(p.tok, "unexpected token after directive")
	}
}

func (p *parser) parseDirective() error {
	tok := p.tok
	keyword := strings.ToLower(strings.TrimSpace(tok.text))
	if keyword == "" {
		return p.errorf(tok, "empty directive")
	}
	kind, ok := sections[keyword]
	if !ok {
		return p.errorf(tok, "unknown directive keyword %q", keyword)
	}
	p.kind = kind
	return p.advance()
}

func (p *parser) parseEntry() error {
	first := p.tok
	var words []token
	for p.tok.kind == tokWord {
		words = append(words, p.tok)
		if err := p.advance(); err != nil {
			return err
		}
	}

	var entry QueryEntry
	var err error
	if p.kind == KindTag {
		entry, err = p.tagEntry(words)
	} else {
		entry, err = p.idEntry(words)
	}
	if err != nil {
		return err
	}
	entry.Kind = p.kind
	entry.Line = first.line

	key := entryKey(entry)
	if prev, dup := p.seen[key]; dup {
		return p.errorf(first, "duplicate entry %q (first defined on line %d)", entry.Name, prev)
	}
	p.seen[key] = first.line
	p.entries = append(p.entries, entry)
	return nil
}

func (p *parser) tagEntry(words []token) (QueryEntry, error) {
	var entry QueryEntry
	names := make([]string, 0, len(words))
	included := map[string]bool{}
	excluded := map[string]bool{}

	for _, w := range words {
		text := strings.ToLower(w.text)
		if strings.HasPrefix(text, "-") {
			tag := strings.TrimLeft(text, "-")
			if tag == "" {
				return entry, p.errorf(w, "exclusion is missing a tag name")
			}
			if !excluded[tag] {
				excluded[tag] = true
				entry.Exclusions = append(entry.Exclusions, tag)
				names = append(names, "-"+tag)
			}
			continue
		}
		if !included[text] {
			included[text] = true
			entry.Tags = append(entry.Tags, text)
			names = append(names, text)
		}
	}

	if len(entry.Tags) == 0 {
		return entry, p.errorf(words[0], "entry has only exclusions")
	}
	for _, tag := range entry.Tags {
		if excluded[tag] {
			return entry, p.errorf(words[0], "tag %q is both included and excluded", tag)
		}
	}
	entry.Name = strings.Join(names, " ")
	return entry, nil
}

// entryKey identifies the search an entry runs. Tags and exclusions are
// unordered, so "wolf -comic" and "-comic wolf" share a key.
func entryKey(e QueryEntry) string {
	if e.Kind != KindTag {
		return e.String()
	}
	tags := append([]string(nil), e.Tags...)
	sort.Strings(tags)
	exclusions := append([]string(nil), e.Exclusions...)
	sort.Strings(exclusions)
	return e.Kind.String() + ":" + strings.Join(tags, " ") + " -" + strings.Join(exclusions, " -")
}

func (p *parser) idEntry(words []token) (QueryEntry, error) {
	var entry QueryEntry
	if len(words) > 1 {
		return entry, p.errorf(words[1], "expected a single %s id per line", p.kind)
	}
	w := words[0]
	if strings.HasPrefix(w.text, "-") {
		return entry, p.errorf(w, "exclusions are not supported for %s entries", p.kind)
	}
	for _, r := range w.text {
		if r < '0' || r > '9' {
			return entry, p.errorf(w, "%s id must be numeric", p.kind)
		}
	}
	id, err := strconv.Atoi(w.text)
	if err != nil || id <= 0 {
		return entry, p.errorf(w, "%s id is out of range", p.kind)
	}
	entry.ID = id
	entry.Name = strconv.Itoa(id)
	return entry, nil
}
