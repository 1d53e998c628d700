package ast

import "testing"

func TestSignature(t *testing.T) {
	tests := []struct {
		construct string
		want      string
	}{
		{"PerspectiveCamera", "center, direction, up, angle"},
		{"PointLight", "position, color, falloff?"},
		{"Lights", "numLights"},
		{"Noise", "color?, color?, octaves, frequency?, amplitude?"},
		{"Triangle", "vertex0, vertex1, vertex2"},
	}
	for _, tt := range tests {
		c, ok := Lookup(tt.construct)
		if !ok {
			t.Fatalf("Lookup(%q) failed", tt.construct)
		}
		if got := c.Signature(); got != tt.want {
			t.Errorf("%s.Signature() = %q, want %q", tt.construct, got, tt.want)
		}
	}
}

func TestLookupAlias(t *testing.T) {
	c, ok := Lookup("PhongMaterial")
	if !ok || c.Kind != KindMaterial {
		t.Errorf("Lookup(PhongMaterial) = %+v, %v", c, ok)
	}
	if _, ok := Lookup("NumberEntry"); ok {
		t.Error("leaf entries are not constructs")
	}
}

func TestEveryBlockKindHasSchema(t *testing.T) {
	for _, k := range Kinds() {
		_, ok := ConstructFor(k)
		leaf := k == KindNumberEntry || k == KindVector3Entry || k == KindTextEntry
		if ok == leaf {
			t.Errorf("%s: schema present = %v", k, ok)
		}
	}
}

func TestKindsInLegendOrder(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 19 {
		t.Fatalf("got %d kinds", len(kinds))
	}
	if kinds[0].String() != "Scene" || kinds[17].String() != "Vector3Entry" || kinds[18].String() != "TextEntry" {
		t.Errorf("unexpected order: %v", kinds)
	}
	if Kind(42).String() != "Kind(42)" {
		t.Errorf("got %q", Kind(42).String())
	}
}

func TestNamesIncludeCounterAndMembers(t *testing.T) {
	c, _ := Lookup("Group")
	names := c.Names()
	if names[0] != "numObjects" || names[1] != "MaterialIndex" {
		t.Errorf("Names() = %v", names)
	}
	if !c.AcceptsMember("Transform") || c.AcceptsMember("Noise") {
		t.Error("AcceptsMember mismatch")
	}
}
