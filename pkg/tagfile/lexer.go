package tagfile

import (
	"unicode"

	errs "e621dl/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokWord
	tokDirective
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

// lexer splits tag file text into words, directives and line breaks.
// Comments run from '#' to the end of the line and produce no tokens.
type lexer struct {
	src       []rune
	pos       int
	line      int
	col       int
	lineStart bool
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1, lineStart: true}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func isInlineSpace(r rune) bool {
	return r != '\n' && unicode.IsSpace(r)
}

func (l *lexer) next() (token, error) {
	for {
		r, ok := l.peekRune()
		if !ok {
			return token{kind: tokEOF, line: l.line, col: l.col}, nil
		}

		switch {
		case r == '\n':
			tok := token{kind: tokNewline, line: l.line, col: l.col}
			l.advance()
			l.lineStart = true
			return tok, nil
		case isInlineSpace(r):
			l.advance()
		case r == '#':
			for {
				r, ok := l.peekRune()
				if !ok || r == '\n' {
					break
				}
				l.advance()
			}
		case r == '[' && l.lineStart:
			return l.directive()
		default:
			return l.word(), nil
		}
	}
}

func (l *lexer) directive() (token, error) {
	line, col := l.line, l.col
	l.advance() // '['
	start := l.pos
	for {
		r, ok := l.peekRune()
		if !ok || r == '\n' {
			return token{}, &errs.ParseError{
				Line:   line,
				Column: col,
				Token:  string(l.src[start-1 : l.pos]),
				Msg:    "unterminated directive",
			}
		}
		if r == ']' {
			text := string(l.src[start:l.pos])
			l.advance()
			l.lineStart = false
			return token{kind: tokDirective, text: text, line: line, col: col}, nil
		}
		l.advance()
	}
}

func (l *lexer) word() token {
	line, col := l.line, l.col
	start := l.pos
	for {
		r, ok := l.peekRune()
		if !ok || unicode.IsSpace(r) || r == '#' {
			break
		}
		l.advance()
	}
	l.lineStart = false
	return token{kind: tokWord, text: string(l.src[start:l.pos]), line: line, col: col}
}
