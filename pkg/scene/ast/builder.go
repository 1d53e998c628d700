package ast

import (
	"strconv"

	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/lexer"
)

// BuildOptions controls validation.
type BuildOptions struct {
	// StrictCounts checks numLights, numMaterials and numObjects against the
	// number of members actually listed. MaterialIndex entries are not objects.
	StrictCounts bool
}

// Build validates a syntactically valid CST and builds the scene from it. It
// stops at the first violation and returns it; the error references the CST
// node at fault.
func Build(c *cst.Tree, opts BuildOptions) (*Tree, *errors.SceneError) {
	b := &builder{cst: c, tree: newTree(c), opts: opts}
	scene, err := b.scene(c.Root)
	if err != nil {
		return nil, err
	}
	b.tree.Root = scene
	return b.tree, nil
}

// BuildBlock validates and builds the block at entry on its own, outside a
// scene. Tools use it to check fragments; the returned tree has no Root.
func BuildBlock(c *cst.Tree, entry cst.NodeID, opts BuildOptions) (*Tree, Node, *errors.SceneError) {
	b := &builder{cst: c, tree: newTree(c), opts: opts}
	me, err := b.expectMultiLine(entry)
	if err != nil {
		return nil, nil, err
	}
	n, err := b.block(me)
	if err != nil {
		return nil, nil, err
	}
	return b.tree, n, nil
}

type builder struct {
	cst  *cst.Tree
	tree *Tree
	opts BuildOptions
}

// ============================================================================
// Errors
// ============================================================================

func (b *builder) fail(code string, node cst.NodeID, data map[string]any) *errors.SceneError {
	var r errors.Range
	if n := b.cst.Node(node); n != nil {
		r = n.Range
	}
	return errors.NewAtNode(code, int(node), r, data)
}

func (b *builder) unexpected(name string, node cst.NodeID, candidates []string) *errors.SceneError {
	var r errors.Range
	if n := b.cst.Node(node); n != nil {
		r = n.Range
	}
	return errors.NewUnexpectedArgument(name, int(node), r, candidates)
}

func (b *builder) expects(what string, node cst.NodeID) *errors.SceneError {
	return b.fail("SEM-0006", node, map[string]any{"What": what})
}

// ============================================================================
// CST access
// ============================================================================

func (b *builder) name(n cst.NodeID) string {
	tok, _ := b.cst.Identifier(n)
	return tok.Literal
}

func (b *builder) inline(entry cst.NodeID) (cst.NodeID, bool) {
	return b.cst.Node(entry).Child(cst.SlotInlineEntry)
}

func (b *builder) multiLine(entry cst.NodeID) (cst.NodeID, bool) {
	return b.cst.Node(entry).Child(cst.SlotMultiLineEntry)
}

func (b *builder) expectInline(entry cst.NodeID) (cst.NodeID, *errors.SceneError) {
	if ie, ok := b.inline(entry); ok {
		return ie, nil
	}
	return cst.NoNode, b.expects("an inline entry", entry)
}

func (b *builder) expectMultiLine(entry cst.NodeID) (cst.NodeID, *errors.SceneError) {
	if me, ok := b.multiLine(entry); ok {
		return me, nil
	}
	return cst.NoNode, b.expects("a multi-line entry", entry)
}

// entries returns a multi-line entry's list node and its entries.
func (b *builder) entries(me cst.NodeID) (cst.NodeID, []cst.NodeID, *errors.SceneError) {
	list, ok := b.cst.Node(me).Child(cst.SlotEntryList)
	if !ok {
		return cst.NoNode, nil, b.expects("an entry list", me)
	}
	return list, b.cst.Entries(list), nil
}

func (b *builder) checkArity(c *Construct, name string, list cst.NodeID, n int) *errors.SceneError {
	data := map[string]any{"Count": c.MinEntries, "Construct": name, "Fields": c.Signature()}
	switch {
	case c.Exact && n != c.MinEntries:
		return b.fail("SEM-0004", list, data)
	case n >= c.MinEntries:
		return nil
	case c.Counter == "" && c.MemberName == "":
		return b.fail("SEM-0012", list, data)
	default:
		return b.fail("SEM-0005", list, data)
	}
}

// ============================================================================
// Leaf entries
// ============================================================================

func (b *builder) numeric(arg cst.NodeID) (lexer.Token, float64, *errors.SceneError) {
	tok, ok := b.cst.Node(arg).Token(cst.SlotNumeric)
	if !ok {
		return lexer.Token{}, 0, b.expects("a Numeric", arg)
	}
	// Literals too large for a float64 saturate to ±Inf.
	v, err := strconv.ParseFloat(tok.Literal, 64)
	if ne, ok := err.(*strconv.NumError); err != nil && !(ok && ne.Err == strconv.ErrRange) {
		return lexer.Token{}, 0, b.fail("SEM-0010", arg, map[string]any{"Literal": tok.Literal})
	}
	return tok, v, nil
}

func (b *builder) arguments(ie cst.NodeID) []cst.NodeID {
	return b.cst.Node(ie).Children(cst.SlotArgument)
}

func (b *builder) numberEntry(ie cst.NodeID) (*NumberEntry, *errors.SceneError) {
	args := b.arguments(ie)
	if len(args) != 1 {
		return nil, b.expects("a number", ie)
	}
	tok, v, err := b.numeric(args[0])
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(ie)
	if err != nil {
		return nil, err
	}
	name, _ := b.cst.Identifier(ie)
	n := &NumberEntry{base: bs, Name: name, Numeric: tok, Value: v}
	b.tree.set(n)
	return n, nil
}

func (b *builder) vector3Entry(ie cst.NodeID) (*Vector3Entry, *errors.SceneError) {
	args := b.arguments(ie)
	if len(args) != 3 {
		return nil, b.expects("a 3D vector", ie)
	}
	var toks [3]lexer.Token
	var vals [3]float64
	for i, arg := range args {
		tok, v, err := b.numeric(arg)
		if err != nil {
			return nil, err
		}
		toks[i], vals[i] = tok, v
	}
	bs, err := b.tree.bind(ie)
	if err != nil {
		return nil, err
	}
	name, _ := b.cst.Identifier(ie)
	n := &Vector3Entry{base: bs, Name: name, Numerics: toks, Value: vals}
	b.tree.set(n)
	return n, nil
}

func (b *builder) textEntry(ie cst.NodeID) (*TextEntry, *errors.SceneError) {
	args := b.arguments(ie)
	if len(args) != 1 {
		return nil, b.expects("a string", ie)
	}
	arg := b.cst.Node(args[0])
	tok, ok := arg.Token(cst.SlotIdentifier)
	if !ok {
		if tok, ok = arg.Token(cst.SlotText); !ok {
			return nil, b.expects("a Text", args[0])
		}
	}
	bs, err := b.tree.bind(ie)
	if err != nil {
		return nil, err
	}
	name, _ := b.cst.Identifier(ie)
	n := &TextEntry{base: bs, Name: name, Text: tok, Value: tok.Literal}
	b.tree.set(n)
	return n, nil
}

func (b *builder) leaf(kind ValueKind, ie cst.NodeID) (Node, *errors.SceneError) {
	switch kind {
	case NumberValue:
		return b.numberEntry(ie)
	case Vector3Value:
		return b.vector3Entry(ie)
	default:
		return b.textEntry(ie)
	}
}

// ============================================================================
// Field blocks
// ============================================================================

// pending holds what a block declared before its node is built.
type pending struct {
	construct *Construct
	name      string // discriminant as written
	me        cst.NodeID
	values    map[string][]Node
	members   []Node
}

// collect validates a block of fields (and nested members) against its
// construct and gathers the parsed entries.
func (b *builder) collect(c *Construct, me cst.NodeID) (*pending, *errors.SceneError) {
	name := b.name(me)
	list, entries, err := b.entries(me)
	if err != nil {
		return nil, err
	}
	if err := b.checkArity(c, name, list, len(entries)); err != nil {
		return nil, err
	}

	p := &pending{construct: c, name: name, me: me, values: make(map[string][]Node)}
	for _, e := range entries {
		if ie, ok := b.inline(e); ok {
			if err := b.collectField(p, ie); err != nil {
				return nil, err
			}
			continue
		}
		nested, err := b.expectMultiLine(e)
		if err != nil {
			return nil, err
		}
		if err := b.collectMember(p, e, nested); err != nil {
			return nil, err
		}
	}

	if err := b.require(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *builder) collectField(p *pending, ie cst.NodeID) *errors.SceneError {
	c := p.construct
	fname := b.name(ie)
	f, ok := c.Field(fname)
	if !ok {
		return b.unexpected(fname, ie, c.Names())
	}
	if len(p.values[fname]) >= f.MaxCount() {
		if f.MaxCount() > 1 {
			return b.unexpected(fname, ie, nil)
		}
		return b.fail("SEM-0002", ie, map[string]any{"Name": fname, "Construct": p.name})
	}
	n, err := b.leaf(f.Value, ie)
	if err != nil {
		return err
	}
	p.values[fname] = append(p.values[fname], n)
	return nil
}

func (b *builder) collectMember(p *pending, entry, me cst.NodeID) *errors.SceneError {
	c := p.construct
	mname := b.name(me)
	if !c.AcceptsMember(mname) {
		if _, isField := c.Field(mname); isField {
			return b.expects("an inline entry", entry)
		}
		return b.unexpected(mname, me, c.Names())
	}
	if c.MaxMembers > 0 && len(p.members) >= c.MaxMembers {
		if c.Kind == KindTransform {
			return b.fail("SEM-0009", me, nil)
		}
		return b.fail("SEM-0002", me, map[string]any{"Name": mname, "Construct": p.name})
	}

	var n Node
	var err *errors.SceneError
	if mname == "Noise" {
		n, err = b.noise(me)
	} else {
		n, err = b.object(me)
	}
	if err != nil {
		return err
	}
	p.members = append(p.members, n)
	return nil
}

// require fails on the first required field, or required member, that the
// block left out.
func (b *builder) require(p *pending) *errors.SceneError {
	for _, f := range p.construct.Fields {
		if f.Required && len(p.values[f.Name]) == 0 {
			return b.fail("SEM-0003", p.me, map[string]any{"Name": f.Name, "Construct": p.name})
		}
	}
	if p.construct.MemberName != "" && len(p.members) == 0 {
		return b.fail("SEM-0003", p.me, map[string]any{"Name": p.construct.MemberName, "Construct": p.name})
	}
	return nil
}

func (p *pending) number(name string) *NumberEntry {
	if v := p.values[name]; len(v) > 0 {
		return v[0].(*NumberEntry)
	}
	return nil
}

func (p *pending) vector(name string, i int) *Vector3Entry {
	if v := p.values[name]; len(v) > i {
		return v[i].(*Vector3Entry)
	}
	return nil
}

func (p *pending) text(name string) *TextEntry {
	if v := p.values[name]; len(v) > 0 {
		return v[0].(*TextEntry)
	}
	return nil
}

func (b *builder) construct(kind Kind) *Construct {
	c, ok := ConstructFor(kind)
	if !ok {
		panic("ast: no schema for " + kind.String())
	}
	return c
}

func (b *builder) camera(me cst.NodeID) (*PerspectiveCamera, *errors.SceneError) {
	p, err := b.collect(b.construct(KindPerspectiveCamera), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &PerspectiveCamera{
		base:      bs,
		Center:    p.vector("center", 0),
		Direction: p.vector("direction", 0),
		Up:        p.vector("up", 0),
		Angle:     p.number("angle"),
	}
	b.tree.set(n)
	return n, nil
}

func (b *builder) directionalLight(me cst.NodeID) (*DirectionalLight, *errors.SceneError) {
	p, err := b.collect(b.construct(KindDirectionalLight), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &DirectionalLight{base: bs, Direction: p.vector("direction", 0), Color: p.vector("color", 0)}
	b.tree.set(n)
	return n, nil
}

func (b *builder) pointLight(me cst.NodeID) (*PointLight, *errors.SceneError) {
	p, err := b.collect(b.construct(KindPointLight), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &PointLight{
		base:     bs,
		Position: p.vector("position", 0),
		Color:    p.vector("color", 0),
		Falloff:  p.number("falloff"),
	}
	b.tree.set(n)
	return n, nil
}

func (b *builder) material(me cst.NodeID) (*Material, *errors.SceneError) {
	p, err := b.collect(b.construct(KindMaterial), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Material{
		base:            bs,
		Name:            p.name,
		DiffuseColor:    p.vector("diffuseColor", 0),
		SpecularColor:   p.vector("specularColor", 0),
		Shininess:       p.number("shininess"),
		RefractionIndex: p.number("refractionIndex"),
		Texture:         p.text("texture"),
		Normal:          p.text("normal"),
	}
	if len(p.members) > 0 {
		n.Noise = p.members[0].(*Noise)
	}
	b.tree.set(n)
	return n, nil
}

func (b *builder) noise(me cst.NodeID) (*Noise, *errors.SceneError) {
	p, err := b.collect(b.construct(KindNoise), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Noise{
		base:      bs,
		Color0:    p.vector("color", 0),
		Color1:    p.vector("color", 1),
		Amplitude: p.number("amplitude"),
		Frequency: p.number("frequency"),
		Octaves:   p.number("octaves"),
	}
	b.tree.set(n)
	return n, nil
}

func (b *builder) background(me cst.NodeID) (*Background, *errors.SceneError) {
	p, err := b.collect(b.construct(KindBackground), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Background{
		base:         bs,
		Color:        p.vector("color", 0),
		AmbientLight: p.vector("ambientLight", 0),
		CubeMap:      p.text("cubeMap"),
	}
	b.tree.set(n)
	return n, nil
}

// ============================================================================
// Objects
// ============================================================================

func (b *builder) object(me cst.NodeID) (Object3D, *errors.SceneError) {
	switch name := b.name(me); name {
	case "Group":
		return b.group(me)
	case "Sphere":
		return b.sphere(me)
	case "Plane":
		return b.plane(me)
	case "Triangle":
		return b.triangle(me)
	case "TriangleMesh":
		return b.triangleMesh(me)
	case "Transform":
		return b.transform(me)
	default:
		return nil, b.unexpected(name, me, object3DNames)
	}
}

func (b *builder) sphere(me cst.NodeID) (*Sphere, *errors.SceneError) {
	p, err := b.collect(b.construct(KindSphere), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Sphere{base: bs, Center: p.vector("center", 0), Radius: p.number("radius")}
	b.tree.set(n)
	return n, nil
}

func (b *builder) plane(me cst.NodeID) (*Plane, *errors.SceneError) {
	p, err := b.collect(b.construct(KindPlane), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Plane{base: bs, Normal: p.vector("normal", 0), Offset: p.number("offset")}
	b.tree.set(n)
	return n, nil
}

func (b *builder) triangle(me cst.NodeID) (*Triangle, *errors.SceneError) {
	p, err := b.collect(b.construct(KindTriangle), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Triangle{
		base:    bs,
		Vertex0: p.vector("vertex0", 0),
		Vertex1: p.vector("vertex1", 0),
		Vertex2: p.vector("vertex2", 0),
	}
	b.tree.set(n)
	return n, nil
}

func (b *builder) triangleMesh(me cst.NodeID) (*TriangleMesh, *errors.SceneError) {
	p, err := b.collect(b.construct(KindTriangleMesh), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &TriangleMesh{base: bs, ObjFile: p.text("obj_file")}
	b.tree.set(n)
	return n, nil
}

func (b *builder) transform(me cst.NodeID) (*Transform, *errors.SceneError) {
	p, err := b.collect(b.construct(KindTransform), me)
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Transform{
		base:         bs,
		Translate:    p.vector("Translate", 0),
		Scale:        p.vector("Scale", 0),
		UniformScale: p.number("UniformScale"),
		XRotate:      p.number("XRotate"),
		YRotate:      p.number("YRotate"),
		ZRotate:      p.number("ZRotate"),
		Object:       p.members[0].(Object3D),
	}
	b.tree.set(n)
	return n, nil
}

// ============================================================================
// Counted lists
// ============================================================================

// counted validates the leading count entry of Lights, Materials or Group and
// returns it with the remaining member entries.
func (b *builder) counted(c *Construct, me cst.NodeID) (*NumberEntry, []cst.NodeID, *errors.SceneError) {
	list, entries, err := b.entries(me)
	if err != nil {
		return nil, nil, err
	}
	if err := b.checkArity(c, b.name(me), list, len(entries)); err != nil {
		return nil, nil, err
	}
	ie, err := b.expectInline(entries[0])
	if err != nil {
		return nil, nil, err
	}
	counter, err := b.numberEntry(ie)
	if err != nil {
		return nil, nil, err
	}
	if counter.Name.Literal != c.Counter {
		return nil, nil, b.fail("SEM-0007", ie, map[string]any{"Name": c.Counter})
	}
	return counter, entries[1:], nil
}

func (b *builder) checkCount(c *Construct, counter *NumberEntry, actual int, noun string) *errors.SceneError {
	if !b.opts.StrictCounts || counter.Value == float64(actual) {
		return nil
	}
	return b.fail("SEM-0008", counter.CST(), map[string]any{
		"Construct": c.Name,
		"Declared":  counter.Numeric.Literal,
		"Noun":      noun,
		"Actual":    actual,
		"Name":      c.Counter,
	})
}

func (b *builder) lights(me cst.NodeID) (*Lights, *errors.SceneError) {
	c := b.construct(KindLights)
	counter, rest, err := b.counted(c, me)
	if err != nil {
		return nil, err
	}

	var lights []Light
	for _, e := range rest {
		lme, err := b.expectMultiLine(e)
		if err != nil {
			return nil, err
		}
		var l Light
		switch name := b.name(lme); name {
		case "DirectionalLight":
			l, err = b.directionalLight(lme)
		case "PointLight":
			l, err = b.pointLight(lme)
		default:
			return nil, b.unexpected(name, lme, c.Members)
		}
		if err != nil {
			return nil, err
		}
		lights = append(lights, l)
	}
	if err := b.checkCount(c, counter, len(lights), "lights"); err != nil {
		return nil, err
	}

	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Lights{base: bs, NumLights: counter, Lights: lights}
	b.tree.set(n)
	return n, nil
}

func (b *builder) materials(me cst.NodeID) (*Materials, *errors.SceneError) {
	c := b.construct(KindMaterials)
	counter, rest, err := b.counted(c, me)
	if err != nil {
		return nil, err
	}

	var mats []*Material
	for _, e := range rest {
		mme, err := b.expectMultiLine(e)
		if err != nil {
			return nil, err
		}
		if name := b.name(mme); !c.AcceptsMember(name) {
			return nil, b.unexpected(name, mme, c.Members)
		}
		m, err := b.material(mme)
		if err != nil {
			return nil, err
		}
		mats = append(mats, m)
	}
	if err := b.checkCount(c, counter, len(mats), "materials"); err != nil {
		return nil, err
	}

	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Materials{base: bs, NumMaterials: counter, Materials: mats}
	b.tree.set(n)
	return n, nil
}

func (b *builder) group(me cst.NodeID) (*Group, *errors.SceneError) {
	c := b.construct(KindGroup)
	counter, rest, err := b.counted(c, me)
	if err != nil {
		return nil, err
	}

	var members []GroupMember
	objects := 0
	for _, e := range rest {
		if ome, ok := b.multiLine(e); ok {
			obj, err := b.object(ome)
			if err != nil {
				return nil, err
			}
			members = append(members, obj)
			objects++
			continue
		}
		ie, _ := b.inline(e)
		if name := b.name(ie); name != "MaterialIndex" {
			return nil, b.unexpected(name, ie, c.Members)
		}
		mi, err := b.materialIndex(ie)
		if err != nil {
			return nil, err
		}
		members = append(members, mi)
	}
	if err := b.checkCount(c, counter, objects, "objects"); err != nil {
		return nil, err
	}

	bs, err := b.tree.bind(me)
	if err != nil {
		return nil, err
	}
	n := &Group{base: bs, NumObjects: counter, Members: members}
	b.tree.set(n)
	return n, nil
}

func (b *builder) materialIndex(ie cst.NodeID) (*MaterialIndex, *errors.SceneError) {
	args := b.arguments(ie)
	if len(args) != 1 {
		return nil, b.expects("a number", ie)
	}
	tok, v, err := b.numeric(args[0])
	if err != nil {
		return nil, err
	}
	bs, err := b.tree.bind(ie)
	if err != nil {
		return nil, err
	}
	name, _ := b.cst.Identifier(ie)
	n := &MaterialIndex{base: bs, Name: name, Numeric: tok, Value: v}
	b.tree.set(n)
	return n, nil
}

// block builds any construct written as a multi-line entry
func (b *builder) block(me cst.NodeID) (Node, *errors.SceneError) {
	var (
		n   Node
		err *errors.SceneError
	)
	switch name := b.name(me); name {
	case "PerspectiveCamera":
		n, err = b.camera(me)
	case "Lights":
		n, err = b.lights(me)
	case "DirectionalLight":
		n, err = b.directionalLight(me)
	case "PointLight":
		n, err = b.pointLight(me)
	case "Materials":
		n, err = b.materials(me)
	case "Material", "PhongMaterial":
		n, err = b.material(me)
	case "Noise":
		n, err = b.noise(me)
	case "Background":
		n, err = b.background(me)
	case "Group", "Sphere", "Plane", "Triangle", "TriangleMesh", "Transform":
		n, err = b.object(me)
	default:
		return nil, b.unexpected(name, me, blockNames())
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func blockNames() []string {
	var names []string
	for _, c := range Schema {
		if c.Inline || c.Kind == KindScene {
			continue
		}
		names = append(names, c.Name)
		names = append(names, c.Aliases...)
	}
	return names
}

// ============================================================================
// Scene
// ============================================================================

func (b *builder) scene(root cst.NodeID) (*Scene, *errors.SceneError) {
	c := b.construct(KindScene)
	entries := b.cst.Entries(root)
	if len(entries) != c.MinEntries {
		return nil, b.fail("SEM-0011", root, nil)
	}

	var (
		camera     *PerspectiveCamera
		lights     *Lights
		materials  *Materials
		background *Background
		group      *Group
	)
	seen := make(map[string]bool)
	for _, e := range entries {
		me, err := b.expectMultiLine(e)
		if err != nil {
			return nil, err
		}
		name := b.name(me)
		if seen[name] {
			return nil, b.fail("SEM-0002", me, map[string]any{"Name": name, "Construct": c.Name})
		}
		seen[name] = true

		switch name {
		case "PerspectiveCamera":
			camera, err = b.camera(me)
		case "Lights":
			lights, err = b.lights(me)
		case "Materials":
			materials, err = b.materials(me)
		case "Background":
			background, err = b.background(me)
		case "Group":
			group, err = b.group(me)
		default:
			return nil, b.unexpected(name, me, c.Members)
		}
		if err != nil {
			return nil, err
		}
	}

	bs, err := b.tree.bind(root)
	if err != nil {
		return nil, err
	}
	n := &Scene{
		base:       bs,
		Camera:     camera,
		Lights:     lights,
		Materials:  materials,
		Background: background,
		Group:      group,
	}
	b.tree.set(n)
	return n, nil
}
