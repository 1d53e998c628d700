package lexer

import "fmt"

// TokenType represents the category of a scene token
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	IDENT   // center, PerspectiveCamera, obj_file
	NUMERIC // 1, -0.5, .25, +3
	TEXT    // mesh/bunny.obj, 1e5, textures/wood.bmp

	LCURLY // {
	RCURLY // }
)

// String returns the grammar name of the token type
func (t TokenType) String() string {
	switch t {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case IDENT:
		return "Identifier"
	case NUMERIC:
		return "Numeric"
	case TEXT:
		return "Text"
	case LCURLY:
		return "LCurly"
	case RCURLY:
		return "RCurly"
	default:
		return fmt.Sprintf("TokenType(%d)", t)
	}
}

// Token is a single lexeme with its source position.
// Lines and columns are 1-based. Columns count UTF-16 code units so they can be
// handed to editors unchanged; EndColumn is exclusive. Offset and EndOffset are
// byte offsets into the source, so source[Offset:EndOffset] == Literal.
type Token struct {
	Type      TokenType
	Literal   string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	Offset    int
	EndOffset int
}

// Len returns the token width in UTF-16 code units.
func (t Token) Len() int {
	return t.EndColumn - t.Column
}

// Describe returns a short human readable form used in diagnostics.
func (t Token) Describe() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case LCURLY:
		return "'{'"
	case RCURLY:
		return "'}'"
	default:
		return fmt.Sprintf("%s %q", t.Type, t.Literal)
	}
}
