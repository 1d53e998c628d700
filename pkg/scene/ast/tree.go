package ast

import (
	"fmt"

	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
)

// Tree is a built scene together with its binding to the CST it came from.
// Binding is a bijection between AST nodes and the CST nodes they were built
// from; no CST node is bound twice.
type Tree struct {
	CST   *cst.Tree
	Root  *Scene
	nodes []Node
	byCST map[cst.NodeID]NodeID
}

func newTree(c *cst.Tree) *Tree {
	return &Tree{CST: c, byCST: make(map[cst.NodeID]NodeID)}
}

// Len returns the number of AST nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the AST node with the given id.
func (t *Tree) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Bound returns the AST node bound to a CST node.
func (t *Tree) Bound(c cst.NodeID) (Node, bool) {
	id, ok := t.byCST[c]
	if !ok {
		return nil, false
	}
	return t.nodes[id], true
}

// Walk visits every node from the root down.
func (t *Tree) Walk(fn func(Node) bool) {
	if t.Root != nil {
		Walk(t.Root, fn)
	}
}

// bind reserves an id for a node about to be created from c.
func (t *Tree) bind(c cst.NodeID) (base, *errors.SceneError) {
	if prev, ok := t.byCST[c]; ok {
		what := "another node"
		if n := t.nodes[prev]; n != nil {
			what = n.Kind().String()
		}
		var r errors.Range
		if cn := t.CST.Node(c); cn != nil {
			r = cn.Range
		}
		return base{}, errors.NewAtNode("SEM-0013", int(c), r, map[string]any{
			"Detail": fmt.Sprintf("CST node %d is already bound to %s", c, what),
		})
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, nil)
	t.byCST[c] = id
	return base{id: id, cst: c}, nil
}

// set stores a node created with an id from bind.
func (t *Tree) set(n Node) {
	t.nodes[n.ID()] = n
}
