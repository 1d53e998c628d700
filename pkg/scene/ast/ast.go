// Package ast defines the typed scene model and builds it from a CST.
//
// The node set is closed: Node has an unexported marker method, so only the
// variants in this file implement it, and consumers switch over them with
// exhaustive type switches. Every node is bound to exactly one CST node when
// it is created; the binding lives in Tree as plain ids.
package ast

import (
	"fmt"

	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/lexer"
)

// Kind enumerates the node variants. The order is the semantic token legend
// order and must not change.
type Kind int

const (
	KindScene Kind = iota
	KindPerspectiveCamera
	KindLights
	KindDirectionalLight
	KindPointLight
	KindMaterials
	KindMaterial
	KindNoise
	KindBackground
	KindGroup
	KindMaterialIndex
	KindTriangleMesh
	KindPlane
	KindSphere
	KindTransform
	KindTriangle
	KindNumberEntry
	KindVector3Entry
	KindTextEntry

	kindCount
)

var kindNames = [...]string{
	KindScene:             "Scene",
	KindPerspectiveCamera: "PerspectiveCamera",
	KindLights:            "Lights",
	KindDirectionalLight:  "DirectionalLight",
	KindPointLight:        "PointLight",
	KindMaterials:         "Materials",
	KindMaterial:          "Material",
	KindNoise:             "Noise",
	KindBackground:        "Background",
	KindGroup:             "Group",
	KindMaterialIndex:     "MaterialIndex",
	KindTriangleMesh:      "TriangleMesh",
	KindPlane:             "Plane",
	KindSphere:            "Sphere",
	KindTransform:         "Transform",
	KindTriangle:          "Triangle",
	KindNumberEntry:       "NumberEntry",
	KindVector3Entry:      "Vector3Entry",
	KindTextEntry:         "TextEntry",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Kinds returns every kind in legend order.
func Kinds() []Kind {
	kinds := make([]Kind, kindCount)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// NodeID indexes a node in its Tree.
type NodeID int

// Node is implemented by every AST variant and nothing else.
type Node interface {
	Kind() Kind
	ID() NodeID
	CST() cst.NodeID // the CST node this node is bound to
	node()
}

// Light is a member of Lights.
type Light interface {
	Node
	light()
}

// GroupMember is a member of Group: an object, or a material switch.
type GroupMember interface {
	Node
	groupMember()
}

// Object3D is a renderable object. Every object may sit in a Group.
type Object3D interface {
	GroupMember
	object3D()
}

type base struct {
	id  NodeID
	cst cst.NodeID
}

func (b base) ID() NodeID { return b.id }
func (b base) CST() cst.NodeID { return b.cst }
func (base) node() {}

// Scene is the document root. It binds the CST Root.
type Scene struct {
	base
	Camera     *PerspectiveCamera
	Lights     *Lights
	Materials  *Materials
	Background *Background
	Group      *Group
}

// PerspectiveCamera places the viewer.
type PerspectiveCamera struct {
	base
	Center    *Vector3Entry
	Direction *Vector3Entry
	Up        *Vector3Entry
	Angle     *NumberEntry
}

// Lights holds the declared light count and the lights.
type Lights struct {
	base
	NumLights *NumberEntry
	Lights    []Light
}

// DirectionalLight shines from a direction with no falloff.
type DirectionalLight struct {
	base
	Direction *Vector3Entry
	Color     *Vector3Entry
}

// PointLight shines from a position.
type PointLight struct {
	base
	Position *Vector3Entry
	Color    *Vector3Entry
	Falloff  *NumberEntry // optional
}

// Materials holds the declared material count and the materials.
type Materials struct {
	base
	NumMaterials *NumberEntry
	Materials    []*Material
}

// Material is declared as either Material or PhongMaterial; Name keeps the
// spelling used.
type Material struct {
	base
	Name            string
	DiffuseColor    *Vector3Entry
	SpecularColor   *Vector3Entry
	Shininess       *NumberEntry
	RefractionIndex *NumberEntry
	Texture         *TextEntry
	Normal          *TextEntry
	Noise           *Noise
}

// Noise blends two colours. Only Octaves is required.
type Noise struct {
	base
	Color0    *Vector3Entry
	Color1    *Vector3Entry
	Amplitude *NumberEntry
	Frequency *NumberEntry
	Octaves   *NumberEntry
}

// Background may be empty.
type Background struct {
	base
	Color        *Vector3Entry
	AmbientLight *Vector3Entry
	CubeMap      *TextEntry
}

// Group holds the declared object count and its members in source order.
type Group struct {
	base
	NumObjects *NumberEntry
	Members    []GroupMember
}

// Objects returns the members that are objects, skipping material switches.
func (g *Group) Objects() []Object3D {
	var objs []Object3D
	for _, m := range g.Members {
		if o, ok := m.(Object3D); ok {
			objs = append(objs, o)
		}
	}
	return objs
}

// MaterialIndex switches the material used by the following group members.
// It binds its InlineEntry and holds the numeric argument directly.
type MaterialIndex struct {
	base
	Name    lexer.Token
	Numeric lexer.Token
	Value   float64
}

// Index returns the material index as an int.
func (m *MaterialIndex) Index() int {
	return int(m.Value)
}

// Sphere is a sphere at Center.
type Sphere struct {
	base
	Center *Vector3Entry
	Radius *NumberEntry
}

// Plane is the infinite plane with Normal at Offset from the origin.
type Plane struct {
	base
	Normal *Vector3Entry
	Offset *NumberEntry
}

// Triangle is a single triangle.
type Triangle struct {
	base
	Vertex0 *Vector3Entry
	Vertex1 *Vector3Entry
	Vertex2 *Vector3Entry
}

// TriangleMesh loads its triangles from an OBJ file.
type TriangleMesh struct {
	base
	ObjFile *TextEntry
}

// Transform applies its optional transforms to exactly one object.
type Transform struct {
	base
	Translate    *Vector3Entry
	Scale        *Vector3Entry
	UniformScale *NumberEntry
	XRotate      *NumberEntry
	YRotate      *NumberEntry
	ZRotate      *NumberEntry
	Object       Object3D
}

// NumberEntry is `name <number>`.
type NumberEntry struct {
	base
	Name    lexer.Token
	Numeric lexer.Token
	Value   float64
}

// Vector3Entry is `name <x> <y> <z>`.
type Vector3Entry struct {
	base
	Name     lexer.Token
	Numerics [3]lexer.Token
	Value    [3]float64
}

// TextEntry is `name <text>`. An identifier argument counts as text.
type TextEntry struct {
	base
	Name  lexer.Token
	Text  lexer.Token
	Value string
}

func (*Scene) Kind() Kind { return KindScene }
func (*PerspectiveCamera) Kind() Kind { return KindPerspectiveCamera }
func (*Lights) Kind() Kind { return KindLights }
func (*DirectionalLight) Kind() Kind { return KindDirectionalLight }
func (*PointLight) Kind() Kind { return KindPointLight }
func (*Materials) Kind() Kind { return KindMaterials }
func (*Material) Kind() Kind { return KindMaterial }
func (*Noise) Kind() Kind { return KindNoise }
func (*Background) Kind() Kind { return KindBackground }
func (*Group) Kind() Kind { return KindGroup }
func (*MaterialIndex) Kind() Kind { return KindMaterialIndex }
func (*TriangleMesh) Kind() Kind { return KindTriangleMesh }
func (*Plane) Kind() Kind { return KindPlane }
func (*Sphere) Kind() Kind { return KindSphere }
func (*Transform) Kind() Kind { return KindTransform }
func (*Triangle) Kind() Kind { return KindTriangle }
func (*NumberEntry) Kind() Kind { return KindNumberEntry }
func (*Vector3Entry) Kind() Kind { return KindVector3Entry }
func (*TextEntry) Kind() Kind { return KindTextEntry }

func (*DirectionalLight) light() {}
func (*PointLight) light() {}

func (*Group) object3D() {}
func (*Sphere) object3D() {}
func (*Plane) object3D() {}
func (*Triangle) object3D() {}
func (*TriangleMesh) object3D() {}
func (*Transform) object3D() {}

func (*Group) groupMember() {}
func (*Sphere) groupMember() {}
func (*Plane) groupMember() {}
func (*Triangle) groupMember() {}
func (*TriangleMesh) groupMember() {}
func (*Transform) groupMember() {}
func (*MaterialIndex) groupMember() {}

// Children returns the direct children of n in field order. Optional fields
// that are unset are skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(children ...Node) {
		for _, c := range children {
			if !isNil(c) {
				out = append(out, c)
			}
		}
	}

	switch n := n.(type) {
	case *Scene:
		add(n.Camera, n.Lights, n.Materials, n.Background, n.Group)
	case *PerspectiveCamera:
		add(n.Center, n.Direction, n.Up, n.Angle)
	case *Lights:
		add(n.NumLights)
		for _, l := range n.Lights {
			add(l)
		}
	case *DirectionalLight:
		add(n.Direction, n.Color)
	case *PointLight:
		add(n.Position, n.Color, n.Falloff)
	case *Materials:
		add(n.NumMaterials)
		for _, m := range n.Materials {
			add(m)
		}
	case *Material:
		add(n.DiffuseColor, n.SpecularColor, n.Shininess, n.RefractionIndex, n.Texture, n.Normal, n.Noise)
	case *Noise:
		add(n.Color0, n.Color1, n.Amplitude, n.Frequency, n.Octaves)
	case *Background:
		add(n.Color, n.AmbientLight, n.CubeMap)
	case *Group:
		add(n.NumObjects)
		for _, m := range n.Members {
			add(m)
		}
	case *Sphere:
		add(n.Center, n.Radius)
	case *Plane:
		add(n.Normal, n.Offset)
	case *Triangle:
		add(n.Vertex0, n.Vertex1, n.Vertex2)
	case *TriangleMesh:
		add(n.ObjFile)
	case *Transform:
		add(n.Translate, n.Scale, n.UniformScale, n.XRotate, n.YRotate, n.ZRotate, n.Object)
	case *MaterialIndex, *NumberEntry, *Vector3Entry, *TextEntry:
		// leaves
	default:
		panic(fmt.Sprintf("ast: unhandled node %T", n))
	}
	return out
}

// isNil catches typed nil pointers stored in the Node interface.
func isNil(n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *PerspectiveCamera:
		return n == nil
	case *Lights:
		return n == nil
	case *Materials:
		return n == nil
	case *Material:
		return n == nil
	case *Noise:
		return n == nil
	case *Background:
		return n == nil
	case *Group:
		return n == nil
	case *NumberEntry:
		return n == nil
	case *Vector3Entry:
		return n == nil
	case *TextEntry:
		return n == nil
	}
	return false
}

// Walk visits n and its descendants depth-first in field order. Returning
// false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if isNil(n) || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}
