package scene

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

const validScene = `PerspectiveCamera {
    center 0 0 10
    direction 0 0 -1
    up 0 1 0
    angle 30
}
Lights {
    numLights 1
    PointLight {
        position 0 5 5
        color 1 1 1
    }
}
Background {
    color 0 0 0
}
Materials {
    numMaterials 1
    Material {
        diffuseColor 1 0 0
    }
}
Group {
    numObjects 1
    MaterialIndex 0
    Sphere {
        center 0 0 0
        radius 1
    }
}
`

func TestParseStages(t *testing.T) {
	tests := []struct {
		name  string
		input string
		stage Stage
		code  string
	}{
		{"valid", validScene, StageDone, ""},
		{"illegal byte", "Sphere \xff", StageLex, "LEX-0001"},
		{"unterminated list", "Group {\n    numObjects 1\n", StageParse, "PARSE-0003"},
		{"one-line sphere", "Sphere { center 0 0 0 radius 1 }", StageSemantic, "SEM-0011"},
		{"missing camera field", strings.Replace(validScene, "    angle 30\n", "", 1), StageSemantic, "SEM-0003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.input)
			if res.Stage != tt.stage {
				t.Fatalf("Stage = %q, want %q (errors %v)", res.Stage, tt.stage, res.Errors())
			}
			if res.OK() != (tt.stage == StageDone) {
				t.Errorf("OK() = %v", res.OK())
			}
			errs := res.Errors()
			if tt.code == "" {
				if len(errs) != 0 {
					t.Errorf("unexpected errors: %v", errs)
				}
				if res.AST == nil || res.AST.Root == nil {
					t.Error("no scene built")
				}
				return
			}
			if len(errs) == 0 || errs[0].Code != tt.code {
				t.Errorf("errors = %v, want first %s", errs, tt.code)
			}
			if res.AST != nil {
				t.Error("AST set on failure")
			}
		})
	}
}

func TestParseShortCircuits(t *testing.T) {
	res := Parse("Sphere \xff {")
	if res.CST != nil {
		t.Error("CST built after lex errors")
	}

	res = Parse("Group {\n    numObjects 1\n")
	if res.CST == nil {
		t.Fatal("CST missing after syntax errors")
	}
	if res.SemanticError != nil {
		t.Error("semantic stage ran after syntax errors")
	}
}

func TestSemanticErrorTakesNodeRange(t *testing.T) {
	res := Parse("Sphere { center 0 0 0 radius 1 }")
	errs := res.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors", len(errs))
	}
	want := res.CST.Node(res.CST.Root).Range
	if errs[0].Range != want {
		t.Errorf("Range = %+v, want %+v", errs[0].Range, want)
	}
	if errs[0] == res.SemanticError {
		t.Error("Errors() returned the stored semantic error instead of a copy")
	}
}

func TestStrictCounts(t *testing.T) {
	src := strings.Replace(validScene, "numLights 1", "numLights 3", 1)
	if res := Parse(src); !res.OK() {
		t.Fatalf("permissive parse failed: %v", res.Errors())
	}
	res := Parse(src, WithStrictCounts(true))
	if res.OK() || res.SemanticError.Code != "SEM-0008" {
		t.Errorf("strict parse: %v", res.Errors())
	}
}

func TestParseLogs(t *testing.T) {
	log := NewBufferedLogger()
	Parse(validScene, WithLogger(log))
	Parse("Sphere \xff", WithLogger(log))

	lines := log.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "parse done ") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "parse lex ") || !strings.Contains(lines[1], " 1 errors ") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestAnalyzeUpdatesRegistry(t *testing.T) {
	reg := NewRegistry()
	const uri = "file:///scenes/a.scene"

	a := Analyze(reg, uri, validScene)
	if len(a.Diagnostics) != 0 || a.Tokens == nil {
		t.Fatalf("valid analysis: %d diagnostics, tokens %v", len(a.Diagnostics), a.Tokens != nil)
	}
	doc, ok := reg.Get(uri)
	if !ok || doc.AST == nil || doc.CST == nil {
		t.Fatal("document not registered")
	}
	data, ok := reg.SemanticTokens(uri)
	if !ok || len(data) != len(a.Tokens) {
		t.Errorf("SemanticTokens = %d values, want %d", len(data), len(a.Tokens))
	}

	a = Analyze(reg, uri, "Sphere { center 0 0 0 radius 1 }")
	if a.Tokens != nil {
		t.Error("tokens produced for a failed parse")
	}
	if len(a.Diagnostics) != 1 || a.Diagnostics[0].File != uri {
		t.Errorf("diagnostics = %v", a.Diagnostics)
	}
	if _, ok := reg.Get(uri); ok {
		t.Error("stale document kept after failed parse")
	}
	if _, ok := reg.SemanticTokens(uri); ok {
		t.Error("SemanticTokens served a stale document")
	}
}

func TestRegistryBookkeeping(t *testing.T) {
	reg := NewRegistry()
	for _, uri := range []string{"c", "a", "b"} {
		Analyze(reg, uri, validScene)
	}
	if got := strings.Join(reg.URIs(), ","); got != "a,b,c" {
		t.Errorf("URIs() = %s", got)
	}
	reg.Delete("b")
	reg.Delete("missing")
	if reg.Len() != 2 {
		t.Errorf("Len() = %d", reg.Len())
	}
}

func TestRegistryConcurrentAnalyze(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri := fmt.Sprintf("doc-%d", i%4)
			src := validScene
			if i%2 == 1 {
				src = "Sphere {"
			}
			Analyze(reg, uri, src)
			reg.SemanticTokens(uri)
		}(i)
	}
	wg.Wait()
	if reg.Len() > 4 {
		t.Errorf("Len() = %d", reg.Len())
	}
}

func TestLoggers(t *testing.T) {
	var sb strings.Builder
	l := WriterLogger(&sb, "[SCENE] ")
	l.Log("a", 1)
	l.LogLine("b")
	if got := sb.String(); got != "[SCENE] a 1[SCENE] b\n" {
		t.Errorf("WriterLogger wrote %q", got)
	}

	buf := NewBufferedLogger()
	buf.Log("x")
	buf.LogLine("y", 2)
	buf.Log("tail")
	if got := buf.String(); got != "xy 2\ntail" {
		t.Errorf("BufferedLogger.String() = %q", got)
	}

	NullLogger().LogLine("ignored")
}
