package cst

import (
	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/lexer"
)

// MaxNestingDepth is the maximum allowed nesting of entry lists
const MaxNestingDepth = 100

// Parser builds a Tree from a token slice. It never stops at the first
// problem: unexpected tokens are reported and skipped, a missing '}' is
// reported at the end of input, and the tree is always returned.
type Parser struct {
	tokens []lexer.Token
	eof    lexer.Token
	pos    int
	prev   lexer.Token // last consumed token
	tree   *Tree
	errors []*errors.SceneError
	depth  int  // current entry list nesting
	atEOF  bool // an end-of-input error has been reported
}

// NewParser creates a parser over tokens. eof is the lexer's EOF token and
// positions end-of-input errors.
func NewParser(tokens []lexer.Token, eof lexer.Token) *Parser {
	return &Parser{tokens: tokens, eof: eof, tree: &Tree{Root: NoNode}}
}

// Parse runs a parser over tokens and returns the tree with any syntax errors.
func Parse(tokens []lexer.Token, eof lexer.Token) (*Tree, []*errors.SceneError) {
	p := NewParser(tokens, eof)
	tree := p.Parse()
	return tree, p.Errors()
}

// ParseString lexes and parses input. When the input has lexical errors they
// are returned and no tree is built.
func ParseString(input string) (*Tree, []*errors.SceneError) {
	tokens, eof, lexErrs := lexer.Scan(input)
	if len(lexErrs) > 0 {
		return nil, lexErrs
	}
	return Parse(tokens, eof)
}

// Errors returns the syntax errors recorded so far
func (p *Parser) Errors() []*errors.SceneError {
	return p.errors
}

// Parse parses the whole token stream into a Root node.
func (p *Parser) Parse() *Tree {
	root := p.newNode(Root, NoNode)
	p.tree.Root = root.ID

	for p.cur().Type != lexer.EOF {
		if p.cur().Type == lexer.IDENT {
			p.attach(root, SlotEntry, p.parseEntry(root.ID))
			continue
		}
		p.skipUnexpected(false)
	}

	p.finish(root)
	return p.tree
}

// cur returns the current token, or EOF past the end
func (p *Parser) cur() lexer.Token {
	return p.peek(0)
}

func (p *Parser) peek(k int) lexer.Token {
	if p.pos+k < len(p.tokens) {
		return p.tokens[p.pos+k]
	}
	return p.eof
}

func (p *Parser) next() {
	if p.pos < len(p.tokens) {
		p.prev = p.tokens[p.pos]
		p.pos++
	}
}

// parseEntry picks MultiLineEntry when the name is followed by '{'
func (p *Parser) parseEntry(parent NodeID) *Node {
	entry := p.newNode(Entry, parent)
	if p.peek(1).Type == lexer.LCURLY {
		p.attach(entry, SlotMultiLineEntry, p.parseMultiLineEntry(entry.ID))
	} else {
		p.attach(entry, SlotInlineEntry, p.parseInlineEntry(entry.ID))
	}
	p.finish(entry)
	return entry
}

func (p *Parser) parseMultiLineEntry(parent NodeID) *Node {
	n := p.newNode(MultiLineEntry, parent)
	p.consume(n, lexer.IDENT, SlotIdentifier)

	if p.depth >= MaxNestingDepth {
		tok := p.cur()
		p.addError("PARSE-0005", TokenRange(tok), map[string]any{"Max": MaxNestingDepth})
		p.skipBlock()
		p.finish(n)
		return n
	}

	p.attach(n, SlotEntryList, p.parseEntryList(n.ID))
	p.finish(n)
	return n
}

func (p *Parser) parseEntryList(parent NodeID) *Node {
	p.depth++
	defer func() { p.depth-- }()

	n := p.newNode(EntryList, parent)
	p.consume(n, lexer.LCURLY, SlotLCurly)

loop:
	for {
		switch p.cur().Type {
		case lexer.RCURLY, lexer.EOF:
			break loop
		case lexer.IDENT:
			p.attach(n, SlotEntry, p.parseEntry(n.ID))
		default:
			p.skipUnexpected(true)
		}
	}

	p.consume(n, lexer.RCURLY, SlotRCurly)
	p.finish(n)
	return n
}

func (p *Parser) parseInlineEntry(parent NodeID) *Node {
	n := p.newNode(InlineEntry, parent)
	p.consume(n, lexer.IDENT, SlotIdentifier)
	for p.argumentFollows() {
		p.attach(n, SlotArgument, p.parseArgument(n.ID))
	}
	p.finish(n)
	return n
}

func (p *Parser) parseArgument(parent NodeID) *Node {
	n := p.newNode(Argument, parent)
	tok := p.cur()
	switch tok.Type {
	case lexer.NUMERIC:
		n.add(SlotNumeric, Element{Node: NoNode, Token: tok})
	case lexer.IDENT:
		n.add(SlotIdentifier, Element{Node: NoNode, Token: tok})
	default:
		n.add(SlotText, Element{Node: NoNode, Token: tok})
	}
	p.next()
	p.finish(n)
	return n
}

// argumentFollows reports whether the current token continues the inline
// entry: it must be an argument token that starts on the line where the
// previous token ends, with at least one character between them.
func (p *Parser) argumentFollows() bool {
	tok := p.cur()
	switch tok.Type {
	case lexer.NUMERIC, lexer.IDENT, lexer.TEXT:
	default:
		return false
	}
	return tok.Line == p.prev.EndLine && tok.Column > p.prev.EndColumn
}

// consume expects a token of type tt and stores it in slot. On a mismatch it
// first tries single-token deletion (the next token is the expected one),
// then falls back to insertion: the error is recorded and parsing continues
// as if the token had been there. At the end of input the error is reported
// once.
func (p *Parser) consume(n *Node, tt lexer.TokenType, slot string) bool {
	tok := p.cur()
	if tok.Type == tt {
		n.add(slot, Element{Node: NoNode, Token: tok})
		p.next()
		return true
	}

	expected := describeType(tt)
	if tok.Type == lexer.EOF {
		// Enclosing lists unwind to the same position; only the innermost reports.
		if !p.atEOF {
			p.atEOF = true
			p.addError("PARSE-0003", TokenRange(tok), map[string]any{"Expected": expected})
		}
		return false
	}

	if p.peek(1).Type == tt {
		p.addError("PARSE-0004", TokenRange(tok), map[string]any{"Got": tok.Describe(), "Expected": expected})
		p.next()
		n.add(slot, Element{Node: NoNode, Token: p.cur()})
		p.next()
		return true
	}

	p.addError("PARSE-0001", TokenRange(tok), map[string]any{"Expected": expected, "Got": tok.Describe()})
	return false
}

// skipUnexpected skips a run of tokens that cannot start an entry and reports
// it as one error. A '{' in the run skips its whole block. Inside a list the
// run stops before '}'.
func (p *Parser) skipUnexpected(inList bool) {
	first := p.cur()
	last := first
	for {
		tok := p.cur()
		if tok.Type == lexer.EOF || tok.Type == lexer.IDENT {
			break
		}
		if tok.Type == lexer.RCURLY && inList {
			break
		}
		if tok.Type == lexer.LCURLY {
			p.skipBlock()
		} else {
			p.next()
		}
		last = p.prev
	}

	r := TokenRange(first)
	r.EndLine, r.EndColumn = last.EndLine, last.EndColumn
	p.addError("PARSE-0002", r, map[string]any{"Got": first.Describe()})
}

// skipBlock skips a '{' and everything up to its matching '}' (or the end).
func (p *Parser) skipBlock() {
	depth := 0
	for p.cur().Type != lexer.EOF {
		switch p.cur().Type {
		case lexer.LCURLY:
			depth++
		case lexer.RCURLY:
			depth--
		}
		p.next()
		if depth <= 0 {
			return
		}
	}
}

func (p *Parser) newNode(kind Kind, parent NodeID) *Node {
	n := &Node{ID: NodeID(len(p.tree.Nodes)), Kind: kind, Parent: parent}
	p.tree.Nodes = append(p.tree.Nodes, n)
	return n
}

func (p *Parser) attach(parent *Node, slot string, child *Node) {
	parent.add(slot, Element{Node: child.ID})
}

// finish computes the node's range from its children. A node with no
// children gets an empty range at the current token.
func (p *Parser) finish(n *Node) {
	first := true
	for _, s := range n.Slots {
		for _, e := range s.Elements {
			var r errors.Range
			var start, end int
			if e.IsToken() {
				r, start, end = TokenRange(e.Token), e.Token.Offset, e.Token.EndOffset
			} else {
				c := p.tree.Nodes[e.Node]
				r, start, end = c.Range, c.Offset, c.EndOffset
			}
			if first || start < n.Offset {
				n.Offset = start
				n.Range.StartLine, n.Range.StartColumn = r.StartLine, r.StartColumn
			}
			if first || end > n.EndOffset {
				n.EndOffset = end
				n.Range.EndLine, n.Range.EndColumn = r.EndLine, r.EndColumn
			}
			first = false
		}
	}
	if first {
		tok := p.cur()
		n.Offset, n.EndOffset = tok.Offset, tok.Offset
		n.Range = errors.Range{StartLine: tok.Line, StartColumn: tok.Column, EndLine: tok.Line, EndColumn: tok.Column}
	}
}

func (p *Parser) addError(code string, r errors.Range, data map[string]any) {
	p.errors = append(p.errors, errors.NewAt(code, r, data))
}

// TokenRange returns the source range of a token.
func TokenRange(tok lexer.Token) errors.Range {
	return errors.Range{
		StartLine:   tok.Line,
		StartColumn: tok.Column,
		EndLine:     tok.EndLine,
		EndColumn:   tok.EndColumn,
	}
}

func describeType(tt lexer.TokenType) string {
	switch tt {
	case lexer.LCURLY:
		return "'{'"
	case lexer.RCURLY:
		return "'}'"
	default:
		return tt.String()
	}
}
