// Package cst builds the concrete syntax tree of a scene definition.
//
// The grammar is deliberately loose: every construct is either an inline entry
// (a name followed by arguments on the same line) or a multi-line entry (a name
// followed by a braced list of entries). Giving those entries meaning is the job
// of the ast package.
//
//	Root           := Entry*
//	Entry          := MultiLineEntry | InlineEntry
//	MultiLineEntry := Identifier EntryList
//	EntryList      := '{' Entry* '}'
//	InlineEntry    := Identifier Argument*
//	Argument       := Numeric | Identifier | Text
package cst

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/lexer"
)

// Kind identifies the grammar rule that produced a node.
type Kind int

const (
	Root Kind = iota
	Entry
	MultiLineEntry
	InlineEntry
	EntryList
	Argument
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "Root"
	case Entry:
		return "Entry"
	case MultiLineEntry:
		return "MultiLineEntry"
	case InlineEntry:
		return "InlineEntry"
	case EntryList:
		return "EntryList"
	case Argument:
		return "Argument"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Slot names. A slot holds either tokens or nodes, never both.
const (
	SlotIdentifier     = "Identifier"
	SlotNumeric        = "Numeric"
	SlotText           = "Text"
	SlotLCurly         = "LCurly"
	SlotRCurly         = "RCurly"
	SlotEntry          = "Entry"
	SlotEntryList      = "EntryList"
	SlotMultiLineEntry = "MultiLineEntry"
	SlotInlineEntry    = "InlineEntry"
	SlotArgument       = "Argument"
)

// NodeID indexes a node in its Tree.
type NodeID int

// NoNode is the zero reference.
const NoNode NodeID = -1

// Element is one child of a node: a token, or a reference to a child node.
type Element struct {
	Node  NodeID // NoNode for token elements
	Token lexer.Token
}

// IsToken reports whether the element is a token.
func (e Element) IsToken() bool {
	return e.Node == NoNode
}

// Slot is a named, ordered group of children.
type Slot struct {
	Name     string
	Elements []Element
}

// Node is a CST node. Nodes are immutable once the parser returns.
type Node struct {
	ID        NodeID
	Kind      Kind
	Parent    NodeID
	Slots     []Slot // in order of first appearance
	Range     errors.Range
	Offset    int // byte offset of the first covered character
	EndOffset int
}

// Slot returns the elements stored under name, or nil.
func (n *Node) Slot(name string) []Element {
	for i := range n.Slots {
		if n.Slots[i].Name == name {
			return n.Slots[i].Elements
		}
	}
	return nil
}

// Tokens returns the tokens stored under name.
func (n *Node) Tokens(name string) []lexer.Token {
	var toks []lexer.Token
	for _, e := range n.Slot(name) {
		if e.IsToken() {
			toks = append(toks, e.Token)
		}
	}
	return toks
}

// Token returns the first token stored under name.
func (n *Node) Token(name string) (lexer.Token, bool) {
	for _, e := range n.Slot(name) {
		if e.IsToken() {
			return e.Token, true
		}
	}
	return lexer.Token{}, false
}

// Children returns the child node ids stored under name.
func (n *Node) Children(name string) []NodeID {
	var ids []NodeID
	for _, e := range n.Slot(name) {
		if !e.IsToken() {
			ids = append(ids, e.Node)
		}
	}
	return ids
}

// Child returns the first child node stored under name.
func (n *Node) Child(name string) (NodeID, bool) {
	for _, e := range n.Slot(name) {
		if !e.IsToken() {
			return e.Node, true
		}
	}
	return NoNode, false
}

func (n *Node) add(name string, e Element) {
	for i := range n.Slots {
		if n.Slots[i].Name == name {
			n.Slots[i].Elements = append(n.Slots[i].Elements, e)
			return
		}
	}
	n.Slots = append(n.Slots, Slot{Name: name, Elements: []Element{e}})
}

// Tree is an arena of CST nodes.
type Tree struct {
	Nodes []*Node
	Root  NodeID
}

// Node returns the node with the given id, or nil when id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.Nodes) {
		return nil
	}
	return t.Nodes[id]
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// ChildNodes returns every child node of id, across all slots, in source order.
func (t *Tree) ChildNodes(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var ids []NodeID
	for _, s := range n.Slots {
		for _, e := range s.Elements {
			if !e.IsToken() {
				ids = append(ids, e.Node)
			}
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return t.Nodes[ids[i]].Offset < t.Nodes[ids[j]].Offset
	})
	return ids
}

// Walk visits id and its descendants depth-first in source order. Returning
// false from fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(*Node) bool) {
	n := t.Node(id)
	if n == nil || !fn(n) {
		return
	}
	for _, c := range t.ChildNodes(id) {
		t.Walk(c, fn)
	}
}

// Identifier returns the leading identifier of an entry node.
func (t *Tree) Identifier(id NodeID) (lexer.Token, bool) {
	n := t.Node(id)
	if n == nil {
		return lexer.Token{}, false
	}
	return n.Token(SlotIdentifier)
}

// Entries returns the Entry children of a Root or EntryList node.
func (t *Tree) Entries(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	return n.Children(SlotEntry)
}

// Dump renders the subtree at id as an s-expression, for tests and debugging.
func (t *Tree) Dump(id NodeID) string {
	var sb strings.Builder
	t.dump(&sb, id)
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, id NodeID) {
	n := t.Node(id)
	if n == nil {
		sb.WriteString("<nil>")
		return
	}
	sb.WriteString("(")
	sb.WriteString(n.Kind.String())

	// Interleave slots back into source order
	var elems []Element
	for _, s := range n.Slots {
		elems = append(elems, s.Elements...)
	}
	sort.SliceStable(elems, func(i, j int) bool {
		return t.elemOffset(elems[i]) < t.elemOffset(elems[j])
	})
	for _, e := range elems {
		sb.WriteString(" ")
		if e.IsToken() {
			sb.WriteString(e.Token.Literal)
		} else {
			t.dump(sb, e.Node)
		}
	}
	sb.WriteString(")")
}

func (t *Tree) elemOffset(e Element) int {
	if e.IsToken() {
		return e.Token.Offset
	}
	return t.Nodes[e.Node].Offset
}
