package ast

import "strings"

// ValueKind is the shape of an inline field's arguments.
type ValueKind int

const (
	NumberValue  ValueKind = iota // one Numeric
	Vector3Value                  // three Numerics
	TextValue                     // one Identifier or Text
)

func (v ValueKind) String() string {
	switch v {
	case NumberValue:
		return "number"
	case Vector3Value:
		return "vector3"
	case TextValue:
		return "text"
	}
	return "unknown"
}

// Field describes an inline entry accepted inside a construct.
type Field struct {
	Name     string
	Value    ValueKind
	Required bool
	Max      int // occurrences allowed; 0 means 1
	Doc      string
}

// MaxCount returns how many times the field may appear.
func (f Field) MaxCount() int {
	if f.Max == 0 {
		return 1
	}
	return f.Max
}

// Construct describes a named block of the scene format.
type Construct struct {
	Kind    Kind
	Name    string
	Aliases []string
	Doc     string
	Inline  bool // written as an inline entry rather than a block

	Fields []Field

	// Counted lists start with a number field named Counter followed by
	// Members. Other constructs may accept a limited number of nested
	// Members alongside their fields.
	Counter    string
	Members    []string
	MaxMembers int    // 0 means unbounded
	MemberName string // what a nested member is called in messages

	MinEntries int  // minimum number of entries in the block
	Exact      bool // MinEntries is also the maximum
}

// Field returns the field definition for name.
func (c *Construct) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// AcceptsMember reports whether name may appear as a nested block or list member.
func (c *Construct) AcceptsMember(name string) bool {
	for _, m := range c.Members {
		if m == name {
			return true
		}
	}
	return false
}

// Names returns every name the construct accepts inside its block: fields,
// the counter and members. Used for "did you mean" hints.
func (c *Construct) Names() []string {
	var names []string
	if c.Counter != "" {
		names = append(names, c.Counter)
	}
	for _, f := range c.Fields {
		names = append(names, f.Name)
	}
	names = append(names, c.Members...)
	return names
}

// Signature lists the block's entries for arity messages, e.g.
// "position, color, falloff?".
func (c *Construct) Signature() string {
	if c.Counter != "" {
		return c.Counter
	}
	var parts []string
	for _, f := range c.Fields {
		name := f.Name
		if !f.Required {
			name += "?"
		}
		for i := 0; i < f.MaxCount(); i++ {
			parts = append(parts, name)
		}
	}
	if c.MemberName != "" {
		parts = append(parts, c.MemberName)
	}
	return strings.Join(parts, ", ")
}

var object3DNames = []string{"Group", "Sphere", "Plane", "Triangle", "TriangleMesh", "Transform"}

// Schema lists every construct of the scene format in document order.
var Schema = []*Construct{
	{
		Kind:       KindScene,
		Name:       "Scene",
		Doc:        "The document: exactly one of each top-level segment, in any order.",
		Members:    []string{"PerspectiveCamera", "Lights", "Materials", "Background", "Group"},
		MinEntries: 5,
		Exact:      true,
	},
	{
		Kind: KindPerspectiveCamera,
		Name: "PerspectiveCamera",
		Doc:  "The camera the scene is rendered from.",
		Fields: []Field{
			{Name: "center", Value: Vector3Value, Required: true, Doc: "eye position"},
			{Name: "direction", Value: Vector3Value, Required: true, Doc: "viewing direction"},
			{Name: "up", Value: Vector3Value, Required: true, Doc: "up vector"},
			{Name: "angle", Value: NumberValue, Required: true, Doc: "field of view in degrees"},
		},
		MinEntries: 4,
		Exact:      true,
	},
	{
		Kind:       KindLights,
		Name:       "Lights",
		Doc:        "The light sources, preceded by their count.",
		Counter:    "numLights",
		Members:    []string{"DirectionalLight", "PointLight"},
		MinEntries: 1,
	},
	{
		Kind: KindDirectionalLight,
		Name: "DirectionalLight",
		Doc:  "A light infinitely far away.",
		Fields: []Field{
			{Name: "direction", Value: Vector3Value, Required: true, Doc: "direction the light travels"},
			{Name: "color", Value: Vector3Value, Required: true, Doc: "RGB intensity"},
		},
		MinEntries: 2,
		Exact:      true,
	},
	{
		Kind: KindPointLight,
		Name: "PointLight",
		Doc:  "A light at a position, optionally attenuated.",
		Fields: []Field{
			{Name: "position", Value: Vector3Value, Required: true, Doc: "light position"},
			{Name: "color", Value: Vector3Value, Required: true, Doc: "RGB intensity"},
			{Name: "falloff", Value: NumberValue, Doc: "attenuation factor"},
		},
		MinEntries: 2,
	},
	{
		Kind:       KindMaterials,
		Name:       "Materials",
		Doc:        "The materials, preceded by their count. Group members select them by index.",
		Counter:    "numMaterials",
		Members:    []string{"Material", "PhongMaterial"},
		MinEntries: 1,
	},
	{
		Kind:    KindMaterial,
		Name:    "Material",
		Aliases: []string{"PhongMaterial"},
		Doc:     "A Phong material, optionally textured or procedurally coloured.",
		Fields: []Field{
			{Name: "diffuseColor", Value: Vector3Value, Required: true, Doc: "diffuse RGB"},
			{Name: "specularColor", Value: Vector3Value, Doc: "specular RGB"},
			{Name: "shininess", Value: NumberValue, Doc: "Phong exponent"},
			{Name: "refractionIndex", Value: NumberValue, Doc: "index of refraction"},
			{Name: "texture", Value: TextValue, Doc: "texture image path"},
			{Name: "normal", Value: TextValue, Doc: "normal map path"},
		},
		Members:    []string{"Noise"},
		MaxMembers: 1,
		MinEntries: 1,
	},
	{
		Kind: KindNoise,
		Name: "Noise",
		Doc:  "Perlin noise blending two colours.",
		Fields: []Field{
			{Name: "color", Value: Vector3Value, Max: 2, Doc: "first, then second colour"},
			{Name: "octaves", Value: NumberValue, Required: true, Doc: "number of octaves"},
			{Name: "frequency", Value: NumberValue, Doc: "base frequency"},
			{Name: "amplitude", Value: NumberValue, Doc: "base amplitude"},
		},
		MinEntries: 1,
	},
	{
		Kind: KindBackground,
		Name: "Background",
		Doc:  "Background colour, ambient light and environment map. May be empty.",
		Fields: []Field{
			{Name: "color", Value: Vector3Value, Doc: "background RGB"},
			{Name: "ambientLight", Value: Vector3Value, Doc: "ambient RGB"},
			{Name: "cubeMap", Value: TextValue, Doc: "environment map directory"},
		},
	},
	{
		Kind:       KindGroup,
		Name:       "Group",
		Doc:        "Objects, preceded by their count. MaterialIndex entries switch the material of the objects after them.",
		Counter:    "numObjects",
		Members:    append([]string{"MaterialIndex"}, object3DNames...),
		MinEntries: 1,
	},
	{
		Kind:   KindMaterialIndex,
		Name:   "MaterialIndex",
		Doc:    "`MaterialIndex <n>` selects material n for the following objects.",
		Inline: true,
	},
	{
		Kind: KindSphere,
		Name: "Sphere",
		Fields: []Field{
			{Name: "center", Value: Vector3Value, Required: true},
			{Name: "radius", Value: NumberValue, Required: true},
		},
		MinEntries: 2,
		Exact:      true,
	},
	{
		Kind: KindPlane,
		Name: "Plane",
		Fields: []Field{
			{Name: "normal", Value: Vector3Value, Required: true},
			{Name: "offset", Value: NumberValue, Required: true, Doc: "distance from the origin along the normal"},
		},
		MinEntries: 2,
		Exact:      true,
	},
	{
		Kind: KindTriangle,
		Name: "Triangle",
		Fields: []Field{
			{Name: "vertex0", Value: Vector3Value, Required: true},
			{Name: "vertex1", Value: Vector3Value, Required: true},
			{Name: "vertex2", Value: Vector3Value, Required: true},
		},
		MinEntries: 3,
		Exact:      true,
	},
	{
		Kind: KindTriangleMesh,
		Name: "TriangleMesh",
		Fields: []Field{
			{Name: "obj_file", Value: TextValue, Required: true, Doc: "Wavefront .obj path"},
		},
		MinEntries: 1,
		Exact:      true,
	},
	{
		Kind: KindTransform,
		Name: "Transform",
		Doc:  "Transforms applied to exactly one nested object.",
		Fields: []Field{
			{Name: "Translate", Value: Vector3Value},
			{Name: "Scale", Value: Vector3Value},
			{Name: "UniformScale", Value: NumberValue},
			{Name: "XRotate", Value: NumberValue, Doc: "degrees"},
			{Name: "YRotate", Value: NumberValue, Doc: "degrees"},
			{Name: "ZRotate", Value: NumberValue, Doc: "degrees"},
		},
		Members:    object3DNames,
		MaxMembers: 1,
		MemberName: "object",
		MinEntries: 1,
	},
}

var schemaByName = func() map[string]*Construct {
	m := make(map[string]*Construct)
	for _, c := range Schema {
		m[c.Name] = c
		for _, a := range c.Aliases {
			m[a] = c
		}
	}
	return m
}()

// Lookup returns the construct for a discriminant, aliases included.
func Lookup(name string) (*Construct, bool) {
	c, ok := schemaByName[name]
	return c, ok
}

// ConstructFor returns the construct describing kind.
func ConstructFor(kind Kind) (*Construct, bool) {
	for _, c := range Schema {
		if c.Kind == kind {
			return c, true
		}
	}
	return nil, false
}

// ConstructNames returns every construct name, aliases included.
func ConstructNames() []string {
	var names []string
	for _, c := range Schema {
		names = append(names, c.Name)
		names = append(names, c.Aliases...)
	}
	return names
}
