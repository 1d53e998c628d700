// Package tokens projects a built scene onto semantic highlighting tokens.
//
// The projection walks the bound CST rather than the AST, so tokens come out
// tied to source positions. The result uses the editor wire format: five
// integers per token (deltaLine, deltaStartChar, length, tokenType,
// modifiers), lines and characters zero-based, each position relative to the
// previous token.
package tokens

import (
	"sort"

	"github.com/sambeau/scenery/pkg/scene/ast"
	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/lexer"
)

// Legend names the token types and modifiers referenced by index in the
// encoded stream.
type Legend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

// NewLegend returns the fixed legend: one token type per AST kind, in kind order.
func NewLegend() Legend {
	kinds := ast.Kinds()
	types := make([]string, len(kinds))
	for i, k := range kinds {
		types[i] = k.String()
	}
	return Legend{TokenTypes: types, TokenModifiers: []string{"normal"}}
}

// SemanticToken is a source token tagged with the kind of the node it belongs to.
type SemanticToken struct {
	Token     lexer.Token
	Kind      ast.Kind
	Modifiers uint32
}

// Collect gathers the semantic tokens of a built tree sorted by position.
// A source token tagged twice keeps its first tag, which is the outer node's.
func Collect(tree *ast.Tree) []SemanticToken {
	c := tree.CST
	var out []SemanticToken

	stack := []cst.NodeID{c.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n, ok := tree.Bound(id); ok {
			for _, tok := range tagged(c, id, n) {
				out = append(out, SemanticToken{Token: tok, Kind: n.Kind()})
			}
		}

		// Push children last-first so they pop in source order
		children := c.ChildNodes(id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Token, out[j].Token
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	// Drop repeated positions
	uniq := out[:0]
	for _, st := range out {
		if len(uniq) > 0 && st.Token.Offset == uniq[len(uniq)-1].Token.Offset {
			continue
		}
		uniq = append(uniq, st)
	}
	return uniq
}

// tagged returns the tokens a bound CST node contributes: its leading
// identifier plus whatever its AST variant adds.
func tagged(c *cst.Tree, id cst.NodeID, n ast.Node) []lexer.Token {
	var toks []lexer.Token
	if tok, ok := c.Identifier(id); ok {
		toks = append(toks, tok)
	}

	switch n := n.(type) {
	case *ast.Material:
		toks = append(toks, n.DiffuseColor.Name)
	case *ast.MaterialIndex:
		toks = append(toks, n.Numeric)
	case *ast.NumberEntry:
		toks = append(toks, n.Numeric)
	case *ast.Vector3Entry:
		toks = append(toks, n.Numerics[:]...)
	case *ast.TextEntry:
		toks = append(toks, n.Text)
	case *ast.Scene, *ast.PerspectiveCamera, *ast.Lights, *ast.DirectionalLight,
		*ast.PointLight, *ast.Materials, *ast.Noise, *ast.Background, *ast.Group,
		*ast.Sphere, *ast.Plane, *ast.Triangle, *ast.TriangleMesh, *ast.Transform:
		// identifier only
	}
	return toks
}

// Encode delta-encodes sorted semantic tokens.
func Encode(toks []SemanticToken) []uint32 {
	data := make([]uint32, 0, len(toks)*5)
	prevLine, prevChar := 0, 0
	for _, st := range toks {
		line, char := st.Token.Line-1, st.Token.Column-1
		deltaChar := char
		if line == prevLine {
			deltaChar = char - prevChar
		}
		data = append(data,
			uint32(line-prevLine),
			uint32(deltaChar),
			uint32(st.Token.Len()),
			uint32(st.Kind),
			st.Modifiers,
		)
		prevLine, prevChar = line, char
	}
	return data
}

// Project is Collect followed by Encode.
func Project(tree *ast.Tree) []uint32 {
	return Encode(Collect(tree))
}

// Entry is a decoded token with absolute, 1-based positions.
type Entry struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Length int    `json:"length"`
	Type   string `json:"type"`
}

// Decode turns an encoded stream back into absolute entries, naming types
// through legend.
func Decode(data []uint32, legend Legend) []Entry {
	var entries []Entry
	line, char := 0, 0
	for i := 0; i+4 < len(data); i += 5 {
		if data[i] > 0 {
			line += int(data[i])
			char = int(data[i+1])
		} else {
			char += int(data[i+1])
		}
		typ := ""
		if t := int(data[i+3]); t < len(legend.TokenTypes) {
			typ = legend.TokenTypes[t]
		}
		entries = append(entries, Entry{Line: line + 1, Column: char + 1, Length: int(data[i+2]), Type: typ})
	}
	return entries
}

// ErrorRange returns the source range of an error: the range of the CST node a
// semantic error references, or the error's own range.
func ErrorRange(c *cst.Tree, err *errors.SceneError) errors.Range {
	if c != nil && err.Node != errors.NoNode {
		if n := c.Node(cst.NodeID(err.Node)); n != nil {
			return n.Range
		}
	}
	return err.Range
}
