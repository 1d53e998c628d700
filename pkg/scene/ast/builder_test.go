package ast

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
)

const validScene = `PerspectiveCamera {
    center 0 0 10
    direction 0 0 -1
    up 0 1 0
    angle 30
}

Lights {
    numLights 2
    DirectionalLight {
        direction -0.5 -0.5 -1
        color 0.8 0.8 0.8
    }
    PointLight {
        position 0 5 5
        color 1 1 1
        falloff 0.1
    }
}

Background {
    color 0.2 0 0.6
    ambientLight 0.1 0.1 0.1
}

Materials {
    numMaterials 2
    PhongMaterial {
        diffuseColor 1 0 0
        specularColor 1 1 1
        shininess 20
    }
    Material {
        diffuseColor 0 1 0
        texture tex/wood.bmp
        Noise {
            color 0 0 0
            color 1 1 1
            octaves 4
            frequency 2
            amplitude 1
        }
    }
}

Group {
    numObjects 3
    MaterialIndex 0
    Sphere {
        center 0 0 0
        radius 1
    }
    MaterialIndex 1
    Transform {
        Translate 0 -1 0
        YRotate 45
        Plane {
            normal 0 1 0
            offset -1
        }
    }
    TriangleMesh {
        obj_file mesh/bunny.obj
    }
}
`

func parseCST(t *testing.T, src string) *cst.Tree {
	t.Helper()
	tree, errs := cst.ParseString(src)
	if len(errs) > 0 {
		t.Fatalf("unexpected syntax errors: %v", errs)
	}
	return tree
}

func build(t *testing.T, src string, opts BuildOptions) (*Tree, *errors.SceneError) {
	t.Helper()
	return Build(parseCST(t, src), opts)
}

// buildConstruct builds the first top-level block of src on its own, so
// single constructs can be tested without a whole scene around them.
func buildConstruct(t *testing.T, src string, opts BuildOptions) (Node, *errors.SceneError) {
	t.Helper()
	tree := parseCST(t, src)
	_, n, err := BuildBlock(tree, tree.Entries(tree.Root)[0], opts)
	return n, err
}

func vec(x, y, z float64) [3]float64 { return [3]float64{x, y, z} }

func TestBuildValidScene(t *testing.T) {
	tree, err := build(t, validScene, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := tree.Root

	if s.Camera.Center.Value != vec(0, 0, 10) || s.Camera.Angle.Value != 30 {
		t.Errorf("camera = %+v / %v", s.Camera.Center.Value, s.Camera.Angle.Value)
	}

	if len(s.Lights.Lights) != 2 {
		t.Fatalf("lights = %d", len(s.Lights.Lights))
	}
	if _, ok := s.Lights.Lights[0].(*DirectionalLight); !ok {
		t.Errorf("light 0 is %T", s.Lights.Lights[0])
	}
	pl, ok := s.Lights.Lights[1].(*PointLight)
	if !ok || pl.Falloff == nil || pl.Falloff.Value != 0.1 {
		t.Errorf("point light = %+v", s.Lights.Lights[1])
	}

	if s.Background.CubeMap != nil || s.Background.Color.Value != vec(0.2, 0, 0.6) {
		t.Errorf("background = %+v", s.Background)
	}

	mats := s.Materials.Materials
	if len(mats) != 2 || mats[0].Name != "PhongMaterial" || mats[1].Name != "Material" {
		t.Fatalf("materials = %+v", mats)
	}
	if mats[0].Shininess.Value != 20 || mats[0].Noise != nil {
		t.Errorf("material 0 = %+v", mats[0])
	}
	noise := mats[1].Noise
	if noise == nil || noise.Octaves.Value != 4 || noise.Color1.Value != vec(1, 1, 1) {
		t.Errorf("noise = %+v", noise)
	}
	if mats[1].Texture.Value != "tex/wood.bmp" {
		t.Errorf("texture = %q", mats[1].Texture.Value)
	}

	g := s.Group
	if len(g.Members) != 5 || len(g.Objects()) != 3 {
		t.Fatalf("group members = %d, objects = %d", len(g.Members), len(g.Objects()))
	}
	if mi, ok := g.Members[2].(*MaterialIndex); !ok || mi.Index() != 1 {
		t.Errorf("member 2 = %+v", g.Members[2])
	}
	tr, ok := g.Members[3].(*Transform)
	if !ok {
		t.Fatalf("member 3 is %T", g.Members[3])
	}
	if plane, ok := tr.Object.(*Plane); !ok || plane.Offset.Value != -1 {
		t.Errorf("transform object = %+v", tr.Object)
	}
	if tr.YRotate.Value != 45 || tr.Scale != nil {
		t.Errorf("transform = %+v", tr)
	}
	if mesh := g.Members[4].(*TriangleMesh); mesh.ObjFile.Value != "mesh/bunny.obj" {
		t.Errorf("obj_file = %q", mesh.ObjFile.Value)
	}
}

func TestBindingIsBijective(t *testing.T) {
	tree, err := build(t, validScene, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := make(map[cst.NodeID]bool)
	walked := 0
	tree.Walk(func(n Node) bool {
		walked++
		if seen[n.CST()] {
			t.Errorf("CST node %d bound twice", n.CST())
		}
		seen[n.CST()] = true

		back, ok := tree.Bound(n.CST())
		if !ok || back != n {
			t.Errorf("%s: Bound(%d) does not lead back", n.Kind(), n.CST())
		}
		if tree.Node(n.ID()) != n {
			t.Errorf("%s: Node(%d) does not lead back", n.Kind(), n.ID())
		}

		want := cst.MultiLineEntry
		switch n.(type) {
		case *Scene:
			want = cst.Root
		case *NumberEntry, *Vector3Entry, *TextEntry, *MaterialIndex:
			want = cst.InlineEntry
		}
		if got := tree.CST.Node(n.CST()).Kind; got != want {
			t.Errorf("%s bound to %s, want %s", n.Kind(), got, want)
		}
		return true
	})

	if walked != tree.Len() {
		t.Errorf("walked %d nodes, tree has %d", walked, tree.Len())
	}
}

func TestBuildDeterministic(t *testing.T) {
	summary := func() string {
		tree, err := build(t, validScene, BuildOptions{})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		var sb strings.Builder
		tree.Walk(func(n Node) bool {
			fmt.Fprintf(&sb, "%s@%d/%d ", n.Kind(), n.ID(), n.CST())
			return true
		})
		return sb.String()
	}
	if a, b := summary(), summary(); a != b {
		t.Errorf("builds differ:\n%s\n%s", a, b)
	}
}

func TestPerspectiveCamera(t *testing.T) {
	src := "PerspectiveCamera {\n center 0 0 0\n direction 0 0 -1\n up 0 1 0\n angle 60\n}"
	n, err := buildConstruct(t, src, BuildOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cam, ok := n.(*PerspectiveCamera)
	if !ok {
		t.Fatalf("got %T", n)
	}
	if cam.Center == nil || cam.Direction == nil || cam.Up == nil || cam.Angle == nil {
		t.Fatalf("unpopulated fields: %+v", cam)
	}
	if cam.Direction.Value != vec(0, 0, -1) || cam.Up.Value != vec(0, 1, 0) || cam.Angle.Value != 60 {
		t.Errorf("camera = %+v", cam)
	}
}

// On a single line every token after the first field name is an argument of
// that field, so one-line blocks with several fields do not validate.
func TestOneLineBlockFoldsArguments(t *testing.T) {
	src := "PerspectiveCamera { center 0 0 0 direction 0 0 -1 up 0 1 0 angle 60 }"
	_, err := buildConstruct(t, src, BuildOptions{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Message != "Expects 4 arguments for PerspectiveCamera (center, direction, up, angle)" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		code    string
		message string
		line    int // start line of the referenced node
	}{
		{
			name:    "duplicate field",
			input:   "DirectionalLight {\n    color 1 1 1\n    color 0 0 0\n}",
			code:    "SEM-0002",
			message: "Expects distinct arguments",
			line:    3,
		},
		{
			name:    "duplicate diffuseColor",
			input:   "Material {\n    diffuseColor 1 0 0\n    diffuseColor 0 1 0\n}",
			code:    "SEM-0002",
			message: "Expects distinct arguments",
			line:    3,
		},
		{
			name:    "wrong arity",
			input:   "Sphere {\n    center 0 0 0\n}",
			code:    "SEM-0004",
			message: "Expects 2 arguments for Sphere (center, radius)",
			line:    1,
		},
		{
			name:    "arity of one",
			input:   "TriangleMesh {\n}",
			code:    "SEM-0004",
			message: "Expects 1 argument for TriangleMesh (obj_file)",
			line:    1,
		},
		{
			name:    "unknown field",
			input:   "Sphere {\n    center 0 0 0\n    radus 1\n}",
			code:    "SEM-0001",
			message: `Unexpected argument "radus"`,
			line:    3,
		},
		{
			name:    "short vector",
			input:   "Sphere {\n    center 0 0\n    radius 1\n}",
			code:    "SEM-0006",
			message: "Expects a 3D vector",
			line:    2,
		},
		{
			name:    "number expected",
			input:   "Sphere {\n    center 0 0 0\n    radius 1 2\n}",
			code:    "SEM-0006",
			message: "Expects a number",
			line:    3,
		},
		{
			name:    "numeric expected",
			input:   "Sphere {\n    center 0 0 0\n    radius big\n}",
			code:    "SEM-0006",
			message: "Expects a Numeric",
			line:    3,
		},
		{
			name:    "text expected",
			input:   "TriangleMesh {\n    obj_file 5\n}",
			code:    "SEM-0006",
			message: "Expects a Text",
			line:    2,
		},
		{
			name:    "field written as block",
			input:   "Sphere {\n    center {\n    }\n    radius 1\n}",
			code:    "SEM-0006",
			message: "Expects an inline entry",
			line:    2,
		},
		{
			name:    "missing required field",
			input:   "PointLight {\n    position 0 0 0\n    falloff 1\n}",
			code:    "SEM-0003",
			message: `Missing argument "color" for PointLight`,
			line:    1,
		},
		{
			name:    "missing diffuseColor",
			input:   "PhongMaterial {\n    shininess 3\n}",
			code:    "SEM-0003",
			message: `Missing argument "diffuseColor" for PhongMaterial`,
			line:    1,
		},
		{
			name:    "empty material",
			input:   "Material {\n}",
			code:    "SEM-0012",
			message: "Expects non-empty arguments for Material",
			line:    1,
		},
		{
			name:    "third noise color",
			input:   "Noise {\n    color 0 0 0\n    color 1 1 1\n    color 2 2 2\n    octaves 1\n}",
			code:    "SEM-0001",
			message: `Unexpected argument "color"`,
			line:    4,
		},
		{
			name:    "two noise blocks",
			input:   "Material {\n    diffuseColor 1 1 1\n    Noise {\n        octaves 1\n    }\n    Noise {\n        octaves 2\n    }\n}",
			code:    "SEM-0002",
			message: "Expects distinct arguments",
			line:    6,
		},
		{
			name:    "transform with two objects",
			input:   "Transform {\n    Scale 2 2 2\n    Sphere {\n        center 0 0 0\n        radius 1\n    }\n    Sphere {\n        center 1 1 1\n        radius 1\n    }\n}",
			code:    "SEM-0009",
			message: "Transform expects exactly one object",
			line:    7,
		},
		{
			name:    "transform without object",
			input:   "Transform {\n    Scale 2 2 2\n}",
			code:    "SEM-0003",
			message: `Missing argument "object" for Transform`,
			line:    1,
		},
		{
			name:    "empty transform",
			input:   "Transform {\n}",
			code:    "SEM-0005",
			message: "Expects at least 1 argument for Transform (Translate?, Scale?, UniformScale?, XRotate?, YRotate?, ZRotate?, object)",
			line:    1,
		},
		{
			name:    "wrong counter",
			input:   "Lights {\n    numLight 0\n}",
			code:    "SEM-0007",
			message: "Expects length of the list (numLights)",
			line:    2,
		},
		{
			name:    "empty counted list",
			input:   "Lights {\n}",
			code:    "SEM-0005",
			message: "Expects at least 1 argument for Lights (numLights)",
			line:    1,
		},
		{
			name:    "counter is a block",
			input:   "Lights {\n    DirectionalLight {\n    }\n}",
			code:    "SEM-0006",
			message: "Expects an inline entry",
			line:    2,
		},
		{
			name:    "inline light",
			input:   "Lights {\n    numLights 1\n    color 1 1 1\n}",
			code:    "SEM-0006",
			message: "Expects a multi-line entry",
			line:    3,
		},
		{
			name:    "unknown light",
			input:   "Lights {\n    numLights 1\n    SpotLight {\n    }\n}",
			code:    "SEM-0001",
			message: `Unexpected argument "SpotLight"`,
			line:    3,
		},
		{
			name:    "unknown group entry",
			input:   "Group {\n    numObjects 0\n    Material 1\n}",
			code:    "SEM-0001",
			message: `Unexpected argument "Material"`,
			line:    3,
		},
		{
			name:    "unknown object",
			input:   "Group {\n    numObjects 1\n    Cube {\n    }\n}",
			code:    "SEM-0001",
			message: `Unexpected argument "Cube"`,
			line:    3,
		},
		{
			name:    "non-numeric material index",
			input:   "Group {\n    numObjects 0\n    MaterialIndex first\n}",
			code:    "SEM-0006",
			message: "Expects a Numeric",
			line:    3,
		},
		{
			name:    "unknown material kind",
			input:   "Materials {\n    numMaterials 1\n    Lambert {\n    }\n}",
			code:    "SEM-0001",
			message: `Unexpected argument "Lambert"`,
			line:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildConstruct(t, tt.input, BuildOptions{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q (%s)", err.Code, tt.code, err.Message)
			}
			if err.Message != tt.message {
				t.Errorf("Message = %q, want %q", err.Message, tt.message)
			}
			if err.Range.StartLine != tt.line {
				t.Errorf("error at line %d, want %d", err.Range.StartLine, tt.line)
			}
			if err.Class != errors.ClassSemantic {
				t.Errorf("Class = %q", err.Class)
			}
		})
	}
}

func TestErrorReferencesCSTNode(t *testing.T) {
	src := "Material {\n    diffuseColor 1 0 0\n    diffuseColor 0 1 0\n}"
	tree := parseCST(t, src)
	b := &builder{cst: tree, tree: newTree(tree)}
	me, _ := b.multiLine(tree.Entries(tree.Root)[0])
	_, err := b.material(me)
	if err == nil {
		t.Fatal("expected an error")
	}

	n := tree.Node(cst.NodeID(err.Node))
	if n == nil {
		t.Fatalf("error references node %d", err.Node)
	}
	if n.Kind != cst.InlineEntry || n.Range != err.Range {
		t.Errorf("node %s %+v, error range %+v", n.Kind, n.Range, err.Range)
	}
	if err.Range.StartColumn != 5 || err.Range.EndColumn != 23 {
		t.Errorf("range = %+v, want the second diffuseColor entry", err.Range)
	}
}

func TestUnknownFieldHint(t *testing.T) {
	_, err := buildConstruct(t, "Sphere {\n    center 0 0 0\n    radus 1\n}", BuildOptions{})
	if err == nil || len(err.Hints) != 1 || err.Hints[0] != "Did you mean `radius`?" {
		t.Errorf("err = %v", err)
	}
}

func TestBackgroundMayBeEmpty(t *testing.T) {
	n, err := buildConstruct(t, "Background {\n}", BuildOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bg := n.(*Background)
	if bg.Color != nil || bg.AmbientLight != nil || bg.CubeMap != nil {
		t.Errorf("background = %+v", bg)
	}
}

func TestTextAcceptsIdentifier(t *testing.T) {
	n, err := buildConstruct(t, "Background {\n    cubeMap skybox\n}", BuildOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := n.(*Background).CubeMap.Value; got != "skybox" {
		t.Errorf("cubeMap = %q", got)
	}
}

func TestHugeNumberSaturates(t *testing.T) {
	tests := []struct {
		literal string
		want    float64
	}{
		{"1" + strings.Repeat("0", 400), math.Inf(1)},
		{"-1" + strings.Repeat("0", 400), math.Inf(-1)},
		{"0." + strings.Repeat("0", 400) + "1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.literal[:4], func(t *testing.T) {
			n, err := buildConstruct(t, "Sphere {\n    center 0 0 0\n    radius "+tt.literal+"\n}", BuildOptions{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := n.(*Sphere).Radius.Value; got != tt.want {
				t.Errorf("radius = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupMembers(t *testing.T) {
	src := "Group {\n    numObjects 2\n    MaterialIndex 1\n    Sphere {\n        center 0 0 0\n        radius 1\n    }\n    Transform {\n        Translate 0 1 0\n        Plane {\n            normal 0 1 0\n            offset -1\n        }\n    }\n}"
	n, err := buildConstruct(t, src, BuildOptions{StrictCounts: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := n.(*Group)
	if len(g.Members) != 3 {
		t.Fatalf("got %d members, want 3", len(g.Members))
	}
	if mi, ok := g.Members[0].(*MaterialIndex); !ok || mi.Index() != 1 {
		t.Errorf("Members[0] = %#v, want MaterialIndex 1", g.Members[0])
	}
	if sp, ok := g.Members[1].(*Sphere); !ok || sp.Radius.Value != 1 {
		t.Errorf("Members[1] = %#v, want Sphere", g.Members[1])
	}
	tr, ok := g.Members[2].(*Transform)
	if !ok {
		t.Fatalf("Members[2] = %T, want *Transform", g.Members[2])
	}
	if _, ok := tr.Object.(*Plane); !ok {
		t.Errorf("Transform.Object = %T, want *Plane", tr.Object)
	}
	if objs := g.Objects(); len(objs) != 2 {
		t.Errorf("Objects() = %d, want 2", len(objs))
	}
}

func TestCountedLists(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		strict  bool
		wantErr string
	}{
		{"permissive mismatch", "Group {\n    numObjects 1\n    MaterialIndex 0\n}", false, ""},
		{"strict mismatch", "Group {\n    numObjects 1\n    MaterialIndex 0\n}", true, "Group declares 1 objects but contains 0"},
		{"strict skips material index", "Group {\n    numObjects 1\n    MaterialIndex 0\n    Sphere {\n        center 0 0 0\n        radius 1\n    }\n}", true, ""},
		{"strict lights", "Lights {\n    numLights 2\n    PointLight {\n        position 0 0 0\n        color 1 1 1\n    }\n}", true, "Lights declares 2 lights but contains 1"},
		{"strict materials", "Materials {\n    numMaterials 0\n}", true, ""},
		{"permissive lights", "Lights {\n    numLights 5\n}", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildConstruct(t, tt.input, BuildOptions{StrictCounts: tt.strict})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %q", tt.wantErr)
			}
			if err.Code != "SEM-0008" || err.Message != tt.wantErr {
				t.Errorf("err = %s %q", err.Code, err.Message)
			}
			if err.Range.StartLine != 2 {
				t.Errorf("error should point at the count entry, got line %d", err.Range.StartLine)
			}
		})
	}
}

func TestSceneSegments(t *testing.T) {
	dupBackground := strings.Replace(validScene, "PerspectiveCamera {", "Background {\n}\nCamera {", 1)
	dupBackground = strings.Replace(dupBackground, "Camera {\n    center 0 0 10\n    direction 0 0 -1\n    up 0 1 0\n    angle 30\n}\n", "", 1)

	tests := []struct {
		name    string
		input   string
		code    string
		message string
	}{
		{
			name:    "missing segment",
			input:   validScene[strings.Index(validScene, "Lights {"):],
			code:    "SEM-0011",
			message: "Expects 5 segments for Scene (PerspectiveCamera, Lights, Materials, Background, Group)",
		},
		{
			name:    "duplicate segment",
			input:   dupBackground,
			code:    "SEM-0002",
			message: "Expects distinct arguments",
		},
		{
			name:    "unknown segment",
			input:   strings.Replace(validScene, "Lights {\n    numLights", "Light {\n    numLights", 1),
			code:    "SEM-0001",
			message: `Unexpected argument "Light"`,
		},
		{
			name:    "segment written inline",
			input:   strings.Replace(validScene, "Background {\n    color 0.2 0 0.6\n    ambientLight 0.1 0.1 0.1\n}", "Background none", 1),
			code:    "SEM-0006",
			message: "Expects a multi-line entry",
		},
		{
			name:    "error inside a segment",
			input:   strings.Replace(validScene, "radius 1", "radius 1 1", 1),
			code:    "SEM-0006",
			message: "Expects a number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := build(t, tt.input, BuildOptions{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if tree != nil {
				t.Error("a failed build must not return a tree")
			}
			if err.Code != tt.code || err.Message != tt.message {
				t.Errorf("err = %s %q, want %s %q", err.Code, err.Message, tt.code, tt.message)
			}
		})
	}
}

func TestUnknownSegmentHint(t *testing.T) {
	_, err := build(t, strings.Replace(validScene, "Lights {\n    numLights", "Light {\n    numLights", 1), BuildOptions{})
	if err == nil || len(err.Hints) == 0 || err.Hints[0] != "Did you mean `Lights`?" {
		t.Errorf("err = %v", err)
	}
}

func TestDoubleBindingIsInternalError(t *testing.T) {
	tree := newTree(parseCST(t, "a 1"))
	if _, err := tree.bind(0); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	_, err := tree.bind(0)
	if err == nil || err.Code != "SEM-0013" {
		t.Errorf("second bind: %v", err)
	}
}

func TestBuildBlock(t *testing.T) {
	tree := parseCST(t, "Sphere {\n    center 0 0 0\n    radius 2\n}")
	bt, n, err := BuildBlock(tree, tree.Entries(tree.Root)[0], BuildOptions{})
	if err != nil {
		t.Fatalf("BuildBlock: %v", err)
	}
	if s, ok := n.(*Sphere); !ok || s.Radius.Value != 2 {
		t.Errorf("built %#v", n)
	}
	if bt.Root != nil || bt.Len() == 0 {
		t.Errorf("tree root %v, %d nodes", bt.Root, bt.Len())
	}

	tests := []struct {
		input string
		code  string
		hint  string
	}{
		{"Sphree {\n}", "SEM-0001", "Did you mean `Sphere`?"},
		{"angle 30", "SEM-0006", ""},
	}
	for _, tt := range tests {
		tree := parseCST(t, tt.input)
		_, n, err := BuildBlock(tree, tree.Entries(tree.Root)[0], BuildOptions{})
		if err == nil || n != nil {
			t.Fatalf("BuildBlock(%q) = %v, %v", tt.input, n, err)
		}
		if err.Code != tt.code {
			t.Errorf("%q: Code = %s, want %s", tt.input, err.Code, tt.code)
		}
		if tt.hint != "" && (len(err.Hints) == 0 || err.Hints[0] != tt.hint) {
			t.Errorf("%q: Hints = %v", tt.input, err.Hints)
		}
	}
}
