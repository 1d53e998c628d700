// Package lexer tokenizes scene definition text.
//
// The token set is tiny: braces, identifiers, numerics and free text. Identifier
// and Numeric fall back to Text when the Text pattern matches a strictly longer
// run, so "1e5" or "mesh-01" are single Text tokens instead of truncated
// numbers/identifiers. Whitespace is skipped but still advances positions.
package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/sambeau/scenery/pkg/scene/errors"
)

// Lexer tokenizes scene input
type Lexer struct {
	input  string
	pos    int // byte offset of the next unread character
	line   int // line of pos (1-indexed)
	column int // UTF-16 column of pos (1-indexed)
	errors []*errors.SceneError
}

// NewLexer creates a new scene lexer
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, column: 1}
}

// Tokenize runs a lexer over input and returns every token (without the
// trailing EOF) together with any lexical errors.
func Tokenize(input string) ([]Token, []*errors.SceneError) {
	tokens, _, errs := Scan(input)
	return tokens, errs
}

// Scan is Tokenize that also returns the EOF token, whose position marks the
// end of the input.
func Scan(input string) ([]Token, Token, []*errors.SceneError) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == EOF {
			return tokens, tok, l.Errors()
		}
		tokens = append(tokens, tok)
	}
}

// Errors returns the lexical errors recorded so far
func (l *Lexer) Errors() []*errors.SceneError {
	return l.errors
}

// NextToken returns the next token from the input. Unrecognized characters are
// recorded as errors and skipped; an EOF token is returned at the end.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespace()

		if l.pos >= len(l.input) {
			return Token{
				Type: EOF, Line: l.line, Column: l.column,
				EndLine: l.line, EndColumn: l.column,
				Offset: l.pos, EndOffset: l.pos,
			}
		}

		switch l.input[l.pos] {
		case '{':
			return l.emit(LCURLY, 1)
		case '}':
			return l.emit(RCURLY, 1)
		}

		textLen := l.matchText()
		if identLen := l.matchIdentifier(); identLen > 0 {
			if textLen > identLen {
				return l.emit(TEXT, textLen)
			}
			return l.emit(IDENT, identLen)
		}
		if numLen := l.matchNumeric(); numLen > 0 {
			if textLen > numLen {
				return l.emit(TEXT, textLen)
			}
			return l.emit(NUMERIC, numLen)
		}
		if textLen > 0 {
			return l.emit(TEXT, textLen)
		}

		l.illegal()
	}
}

// emit produces a token of n bytes at the current position and advances past it.
// Tokens never contain line terminators, so only the column moves.
func (l *Lexer) emit(tt TokenType, n int) Token {
	start, startCol := l.pos, l.column
	literal := l.input[start : start+n]
	for _, r := range literal {
		l.column += runeWidth(r)
	}
	l.pos += n
	return Token{
		Type:      tt,
		Literal:   literal,
		Line:      l.line,
		Column:    startCol,
		EndLine:   l.line,
		EndColumn: l.column,
		Offset:    start,
		EndOffset: l.pos,
	}
}

// illegal records an error for the byte at the current position and skips it.
func (l *Lexer) illegal() {
	r := errors.Range{StartLine: l.line, StartColumn: l.column, EndLine: l.line, EndColumn: l.column + 1}
	l.errors = append(l.errors, errors.NewAt("LEX-0001", r, map[string]any{
		"Char": fmt.Sprintf("%q", l.input[l.pos:l.pos+1]),
	}))
	l.pos++
	l.column++
}

// skipWhitespace skips whitespace, tracking \n, \r\n and \r line terminators
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if r == utf8.RuneError && size == 1 {
			return
		}
		if !isSpace(r) {
			return
		}
		l.pos += size
		switch r {
		case '\r':
			if l.pos < len(l.input) && l.input[l.pos] == '\n' {
				l.pos++
			}
			l.line++
			l.column = 1
		case '\n':
			l.line++
			l.column = 1
		default:
			l.column += runeWidth(r)
		}
	}
}

// matchIdentifier returns the byte length of [A-Za-z_$][A-Za-z_$0-9]* at pos.
func (l *Lexer) matchIdentifier() int {
	if !isIdentStart(l.input[l.pos]) {
		return 0
	}
	i := l.pos + 1
	for i < len(l.input) && (isIdentStart(l.input[i]) || isDigit(l.input[i])) {
		i++
	}
	return i - l.pos
}

// matchNumeric returns the byte length of [+-]?(\d*\.)?\d+ at pos.
func (l *Lexer) matchNumeric() int {
	i := l.pos
	if i < len(l.input) && (l.input[i] == '+' || l.input[i] == '-') {
		i++
	}
	digitsStart := i
	for i < len(l.input) && isDigit(l.input[i]) {
		i++
	}
	intEnd := i

	// Fractional form: digits '.' digits
	if i < len(l.input) && l.input[i] == '.' && i+1 < len(l.input) && isDigit(l.input[i+1]) {
		i++
		for i < len(l.input) && isDigit(l.input[i]) {
			i++
		}
		return i - l.pos
	}

	// Integer form needs at least one digit; "1." backtracks to "1"
	if intEnd > digitsStart {
		return intEnd - l.pos
	}
	return 0
}

// matchText returns the byte length of [^{}\s]+ at pos. Invalid UTF-8 ends the run.
func (l *Lexer) matchText() int {
	i := l.pos
	for i < len(l.input) {
		c := l.input[i]
		if c == '{' || c == '}' {
			break
		}
		r, size := utf8.DecodeRuneInString(l.input[i:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		if isSpace(r) {
			break
		}
		i += size
	}
	return i - l.pos
}

// isSpace matches the ECMAScript whitespace and line terminator set: Unicode
// spaces plus the byte order mark, but not NEL (U+0085).
func isSpace(r rune) bool {
	switch r {
	case '\uFEFF':
		return true
	case '\u0085':
		return false
	}
	return unicode.IsSpace(r)
}

// isIdentStart returns true for [A-Za-z_$]
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '$'
}

// isDigit returns true if the character is a digit
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// runeWidth is the number of UTF-16 code units needed for r
func runeWidth(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
