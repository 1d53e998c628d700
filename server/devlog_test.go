package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sambeau/scenery/pkg/scene/scene"
)

const okScene = `PerspectiveCamera {
    center 0 0 10
    direction 0 0 -1
    up 0 1 0
    angle 30
}
Lights {
    numLights 0
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

func newTestDevLog(t *testing.T) *DevLog {
	t.Helper()
	dl, err := NewDevLog(filepath.Join(t.TempDir(), "logs", "devlog.db"), 0, 0)
	if err != nil {
		t.Fatalf("NewDevLog: %v", err)
	}
	t.Cleanup(func() { dl.Close() })
	return dl
}

func TestDevLogCreate(t *testing.T) {
	dl := newTestDevLog(t)
	if _, err := os.Stat(dl.Path()); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
	if dl.maxSize != 10*1024*1024 || dl.truncatePct != 25 {
		t.Errorf("defaults = %d, %d", dl.maxSize, dl.truncatePct)
	}
}

func TestDevLogRecord(t *testing.T) {
	dl := newTestDevLog(t)
	reg := scene.NewRegistry()

	if err := dl.Record(scene.Analyze(reg, "file:///a.txt", okScene)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := dl.Record(scene.Analyze(reg, "file:///b.txt", "Group {\n")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if dl.Seq() != 2 {
		t.Errorf("Seq() = %d", dl.Seq())
	}

	all, err := dl.Entries("", time.Time{}, 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d records", len(all))
	}
	// newest first
	b := all[0]
	if b.URI != "file:///b.txt" || b.Stage != "parse" || b.Errors == 0 || b.FirstError == "" {
		t.Errorf("failed record = %+v", b)
	}
	a := all[1]
	if a.Stage != "done" || a.Errors != 0 || a.FirstError != "" {
		t.Errorf("ok record = %+v", a)
	}

	only, err := dl.Entries("file:///a.txt", time.Time{}, 10)
	if err != nil || len(only) != 1 {
		t.Errorf("Entries(a) = %v, %v", only, err)
	}
}

func TestDevLogEntriesSince(t *testing.T) {
	dl := newTestDevLog(t)
	reg := scene.NewRegistry()
	if err := dl.Record(scene.Analyze(reg, "a", okScene)); err != nil {
		t.Fatal(err)
	}

	recent, err := dl.Entries("", time.Now().Add(-time.Hour), 0)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Entries(since an hour ago) = %v, %v", recent, err)
	}
	if ts := recent[0].Timestamp; ts.IsZero() || time.Since(ts) > time.Hour {
		t.Errorf("timestamp = %v", ts)
	}
	future, err := dl.Entries("", time.Now().Add(time.Hour), 0)
	if err != nil || len(future) != 0 {
		t.Errorf("Entries(since an hour ahead) = %v, %v", future, err)
	}
}

func TestDevLogCountAndClear(t *testing.T) {
	dl := newTestDevLog(t)
	reg := scene.NewRegistry()
	for _, uri := range []string{"a", "a", "b"} {
		if err := dl.Record(scene.Analyze(reg, uri, okScene)); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := dl.Count(""); n != 3 {
		t.Errorf("Count() = %d", n)
	}
	if err := dl.Clear("a"); err != nil {
		t.Fatal(err)
	}
	if n, _ := dl.Count("a"); n != 0 {
		t.Errorf("Count(a) after clear = %d", n)
	}
	if n, _ := dl.Count("b"); n != 1 {
		t.Errorf("Count(b) = %d", n)
	}
	if err := dl.Clear(""); err != nil {
		t.Fatal(err)
	}
	if n, _ := dl.Count(""); n != 0 {
		t.Errorf("Count() after clear all = %d", n)
	}
}

func TestDevLogTruncates(t *testing.T) {
	dl, err := NewDevLog(filepath.Join(t.TempDir(), "devlog.db"), 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	defer dl.Close()

	reg := scene.NewRegistry()
	for i := 0; i < 4; i++ {
		if err := dl.Record(scene.Analyze(reg, "a", okScene)); err != nil {
			t.Fatal(err)
		}
	}
	// Every write past the size limit first drops half of the rows.
	n, err := dl.Count("")
	if err != nil {
		t.Fatal(err)
	}
	if n >= 4 {
		t.Errorf("Count() = %d, expected truncation", n)
	}
}

func TestOpenDevLogUnknownDriver(t *testing.T) {
	if _, err := OpenDevLog("oracle", "x", 0, 0); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestDevLogRebind(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"sqlite", "SELECT id FROM analyses WHERE uri = ? LIMIT ?"},
		{"mysql", "SELECT id FROM analyses WHERE uri = ? LIMIT ?"},
		{"postgres", "SELECT id FROM analyses WHERE uri = $1 LIMIT $2"},
	}
	for _, tt := range tests {
		dl := &DevLog{driver: tt.driver}
		if got := dl.rebind("SELECT id FROM analyses WHERE uri = ? LIMIT ?"); got != tt.want {
			t.Errorf("%s: rebind = %q", tt.driver, got)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"time", want, want},
		{"sqlite text", "2026-03-14 15:09:26", want},
		{"mysql bytes", []byte("2026-03-14 15:09:26"), want},
		{"rfc3339", "2026-03-14T15:09:26Z", want},
		{"garbage", "yesterday", time.Time{}},
		{"nil", nil, time.Time{}},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.in); !got.Equal(tt.want) {
			t.Errorf("%s: parseTimestamp = %v", tt.name, got)
		}
	}
}
