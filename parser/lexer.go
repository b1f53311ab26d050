// Package parser is a minimal recursive-descent parser for the grammar
// in spec.md §6, turning source text into the infer.Syntax tree that
// package infer's engine consumes. The engine's core deliberately
// excludes parsing; this package exists because a complete, runnable
// repository built around that engine still needs a way to get source
// text in. It is grounded on grailbio/gql's lex.go insofar as both
// tokenize by hand-walking a rune stream rather than reaching for a
// generated scanner -- but this grammar's number-vs-field-access
// ambiguity ("a `.` followed by a letter is a field access, not a
// decimal point") needs one rune of lookahead past what text/scanner's
// built-in float scanning exposes, so the tokenizer here is hand-rolled
// rather than built on text/scanner directly (see DESIGN.md).
package parser

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tNumber
	tString
	tIdent
	tLParen
	tRParen
	tLBrace
	tRBrace
	tAtLBrace
	tArrow
	tAssign
	tSemi
	tComma
	tDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer { return &lexer{src: []rune(src)} }

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekRuneAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '/' && l.peekRuneAt(1) == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		if unicode.IsSpace(c) {
			l.pos++
			continue
		}
		break
	}
}

func isIdentStart(c rune) bool { return unicode.IsLetter(c) || c == '_' }
func isIdentCont(c rune) bool  { return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' }

// next returns the next token, not consuming past it.
func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tEOF, pos: start}, nil
	}
	c := l.src[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tRParen, pos: start}, nil
	case c == '{':
		l.pos++
		return token{kind: tLBrace, pos: start}, nil
	case c == '}':
		l.pos++
		return token{kind: tRBrace, pos: start}, nil
	case c == ';':
		l.pos++
		return token{kind: tSemi, pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tComma, pos: start}, nil
	case c == '=':
		l.pos++
		return token{kind: tAssign, pos: start}, nil
	case c == '@' && l.peekRuneAt(1) == '{':
		l.pos += 2
		return token{kind: tAtLBrace, pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tDot, pos: start}, nil
	case c == '-' && l.peekRuneAt(1) == '>':
		l.pos += 2
		return token{kind: tArrow, pos: start}, nil
	case c == '"':
		return l.scanString(start)
	case unicode.IsDigit(c) || (c == '-' && unicode.IsDigit(l.peekRuneAt(1))):
		return l.scanNumber(start)
	case isIdentStart(c):
		return l.scanIdent(start)
	default:
		return token{}, errors.Errorf("parser: unexpected character %q at offset %d", c, start)
	}
}

func (l *lexer) scanString(start int) (token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, errors.Errorf("parser: unterminated string starting at offset %d", start)
		}
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			return token{kind: tString, text: sb.String(), pos: start}, nil
		}
		sb.WriteRune(c)
		l.pos++
	}
}

func (l *lexer) scanNumber(start int) (token, error) {
	p := l.pos
	if l.src[p] == '-' {
		p++
	}
	for p < len(l.src) && unicode.IsDigit(l.src[p]) {
		p++
	}
	// A '.' only continues the number when followed by a digit; a '.'
	// followed by a letter is field access, per spec.md §6.
	if p < len(l.src) && l.src[p] == '.' && p+1 < len(l.src) && unicode.IsDigit(l.src[p+1]) {
		p++
		for p < len(l.src) && unicode.IsDigit(l.src[p]) {
			p++
		}
	}
	text := string(l.src[l.pos:p])
	l.pos = p
	return token{kind: tNumber, text: text, pos: start}, nil
}

func (l *lexer) scanIdent(start int) (token, error) {
	p := l.pos
	for p < len(l.src) && isIdentCont(l.src[p]) {
		p++
	}
	text := string(l.src[l.pos:p])
	l.pos = p
	return token{kind: tIdent, text: text, pos: start}, nil
}
