package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) string { return "" }

func TestRunVersion(t *testing.T) {
	stdout := &bytes.Buffer{}
	err := run(context.Background(), []string{"--version"}, nil, stdout, &bytes.Buffer{}, noEnv)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "scenery version") {
		t.Errorf("expected version output, got %q", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	stdout := &bytes.Buffer{}
	err := run(context.Background(), []string{"--help"}, nil, stdout, &bytes.Buffer{}, noEnv)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, want := range []string{"scenery - A language server", "--config", "--transport", "SCENERY_CONFIG"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"invalid flag", []string{"--invalid-flag"}, "flag provided but not defined"},
		{"missing config", []string{"--config", "/nonexistent/config.yaml"}, "config file not found"},
		{"bad transport", []string{"--config", writeConfig(t, "logging:\n  level: error\n"), "--transport", "carrier-pigeon"}, "config validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, nil, &bytes.Buffer{}, &bytes.Buffer{}, noEnv)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenery.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func frame(msgs ...string) *bytes.Buffer {
	var buf bytes.Buffer
	for _, m := range msgs {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n%s", len(m), m)
	}
	return &buf
}

func TestRunStdioSession(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "scenery.log")
	cfg := writeConfig(t, fmt.Sprintf("logging:\n  level: info\n  output: %s\n", logPath))

	stdin := frame(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"capabilities":{}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	if err := run(context.Background(), []string{"--config", cfg}, stdin, stdout, stderr, noEnv); err != nil {
		t.Fatalf("run() error: %v (stderr %q)", err, stderr.String())
	}

	r := bufio.NewReader(stdout)
	header, _ := r.ReadString('\n')
	if !strings.HasPrefix(header, "Content-Length: ") {
		t.Errorf("stdout does not start with a framed message: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), `"semanticTokensProvider"`) {
		t.Errorf("initialize result missing capabilities: %q", stdout.String())
	}

	log, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(log), "serving LSP on stdio") {
		t.Errorf("log file = %q", log)
	}
}

func TestRunExitWithoutShutdown(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: error\n")
	stdin := frame(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"capabilities":{}}}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	err := run(context.Background(), []string{"--config", cfg}, stdin, &bytes.Buffer{}, &bytes.Buffer{}, noEnv)
	if err == nil {
		t.Error("expected an error when exit arrives before shutdown")
	}
}
