// Package format pretty-prints scene definitions.
//
// Formatting works on the CST, so it only needs the text to be syntactically
// valid; a scene that fails to build can still be formatted. Entries keep
// their arguments on one line since the parser ties arguments to the line of
// their entry.
package format

import (
	"fmt"
	"strings"

	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
)

// Indentation: four spaces per entry list level
const (
	IndentWidth  = 4
	IndentString = "    "
)

// BlankLinesBetweenBlocks separates top-level multi-line entries
const BlankLinesBetweenBlocks = 1

// Error reports why text could not be formatted.
type Error struct {
	Errors []*errors.SceneError
}

func (e *Error) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].String()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].String(), len(e.Errors)-1)
}

// Source formats scene text. Text with lex or syntax errors is returned
// unchanged together with an *Error.
func Source(src string) (string, error) {
	tree, errs := cst.ParseString(src)
	if len(errs) > 0 {
		return src, &Error{Errors: errs}
	}
	return Tree(tree), nil
}

// Tree formats a parsed CST.
func Tree(tree *cst.Tree) string {
	p := NewPrinter()
	entries := tree.Entries(tree.Root)
	for i, id := range entries {
		if i > 0 && (isBlock(tree, id) || isBlock(tree, entries[i-1])) {
			for j := 0; j < BlankLinesBetweenBlocks; j++ {
				p.blank()
			}
		}
		p.entry(tree, id)
	}
	return p.String()
}

// Changed reports whether formatting would modify src.
func Changed(src string) (bool, string, error) {
	out, err := Source(src)
	if err != nil {
		return false, src, err
	}
	return out != src, out, nil
}

func isBlock(tree *cst.Tree, entry cst.NodeID) bool {
	n := tree.Node(entry)
	_, ok := n.Child(cst.SlotMultiLineEntry)
	return ok
}

// entry prints an Entry node and its subtree
func (p *Printer) entry(tree *cst.Tree, id cst.NodeID) {
	n := tree.Node(id)
	if inline, ok := n.Child(cst.SlotInlineEntry); ok {
		p.inline(tree, inline)
		return
	}
	if block, ok := n.Child(cst.SlotMultiLineEntry); ok {
		p.block(tree, block)
	}
}

func (p *Printer) inline(tree *cst.Tree, id cst.NodeID) {
	n := tree.Node(id)
	parts := make([]string, 0, 4)
	if name, ok := n.Token(cst.SlotIdentifier); ok {
		parts = append(parts, name.Literal)
	}
	for _, arg := range n.Children(cst.SlotArgument) {
		for _, slot := range tree.Node(arg).Slots {
			for _, e := range slot.Elements {
				if e.IsToken() {
					parts = append(parts, e.Token.Literal)
				}
			}
		}
	}
	p.line(strings.Join(parts, " "))
}

func (p *Printer) block(tree *cst.Tree, id cst.NodeID) {
	n := tree.Node(id)
	name, _ := n.Token(cst.SlotIdentifier)
	list, _ := n.Child(cst.SlotEntryList)
	entries := tree.Entries(list)

	if len(entries) == 0 {
		p.line(name.Literal + " {}")
		return
	}
	p.line(name.Literal + " {")
	p.depth++
	for _, e := range entries {
		p.entry(tree, e)
	}
	p.depth--
	p.line("}")
}
