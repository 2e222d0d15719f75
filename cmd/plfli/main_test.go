package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI runs the CLI in dir with the given stdin and returns its exit code
// and output streams.
func runCLI(t *testing.T, dir, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-C", dir, "-v", "0"}, args...)
	code := run(full, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsage(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := runCLI(t, dir, "")
	if code != 2 || !strings.Contains(stderr, "Usage: plfli") {
		t.Errorf("no command: code %d, stderr %q", code, stderr)
	}
	code, _, stderr = runCLI(t, dir, "", "frobnicate")
	if code != 2 || !strings.Contains(stderr, `Unknown command "frobnicate"`) {
		t.Errorf("unknown command: code %d, stderr %q", code, stderr)
	}
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plfli.toml"), []byte("[engine]\nbounded-integers = true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI(t, dir, "", "info")
	if code != 0 {
		t.Fatalf("info failed (%d): %s", code, stderr)
	}
	for _, want := range []string{"bounded:   true", "engine:    eng_", "global", "local", "trail"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("info output lacks %q:\n%s", want, stdout)
		}
	}
}

func TestJSONCommand(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, dir, `{"b":[1,2.5],"a":"x"}`, "json", "-tag", "doc")
	if code != 0 {
		t.Fatalf("json failed (%d): %s", code, stderr)
	}
	if got := strings.TrimSpace(stdout); got != `doc{a:"x",b:[1,2.5]}` {
		t.Errorf("json printed %s", got)
	}

	code, _, stderr = runCLI(t, dir, `{"broken"`, "json")
	if code != 1 || !strings.Contains(stderr, "parsing JSON") {
		t.Errorf("bad JSON: code %d, stderr %q", code, stderr)
	}
}

func TestRecordCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "store", "r.db")
	doc := filepath.Join(dir, "doc.json")
	if err := os.WriteFile(doc, []byte(`{"name":"plfli","tags":["a","b"]}`), 0644); err != nil {
		t.Fatal(err)
	}

	if code, _, stderr := runCLI(t, dir, "", "-db", db, "record", "put", "cfg", doc); code != 0 {
		t.Fatalf("record put failed (%d): %s", code, stderr)
	}
	if code, _, stderr := runCLI(t, dir, `[1,2,3]`, "-db", db, "record", "put", "nums"); code != 0 {
		t.Fatalf("record put from stdin failed (%d): %s", code, stderr)
	}

	code, stdout, stderr := runCLI(t, dir, "", "-db", db, "record", "list")
	if code != 0 {
		t.Fatalf("record list failed (%d): %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "cfg") || !strings.HasPrefix(lines[1], "nums") {
		t.Errorf("record list printed:\n%s", stdout)
	}

	code, stdout, stderr = runCLI(t, dir, "", "-db", db, "record", "get", "-json", "cfg")
	if code != 0 {
		t.Fatalf("record get failed (%d): %s", code, stderr)
	}
	if got := strings.TrimSpace(stdout); got != `{"name":"plfli","tags":["a","b"]}` {
		t.Errorf("record get -json printed %s", got)
	}

	code, stdout, _ = runCLI(t, dir, "", "-db", db, "record", "get", "nums")
	if code != 0 || strings.TrimSpace(stdout) != "[1,2,3]" {
		t.Errorf("record get nums: code %d, output %q", code, stdout)
	}

	if code, _, stderr := runCLI(t, dir, "", "-db", db, "record", "delete", "nums"); code != 0 {
		t.Fatalf("record delete failed (%d): %s", code, stderr)
	}
	code, _, stderr = runCLI(t, dir, "", "-db", db, "record", "get", "nums")
	if code != 1 || !strings.Contains(stderr, "record not found") {
		t.Errorf("get after delete: code %d, stderr %q", code, stderr)
	}
}

func TestRecordErrors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "r.db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no subcommand", []string{"record"}, "requires a subcommand"},
		{"unknown subcommand", []string{"record", "zap"}, "unknown record subcommand"},
		{"put without key", []string{"record", "put"}, "requires a key"},
		{"get without key", []string{"record", "get"}, "requires a key"},
		{"delete without key", []string{"record", "delete"}, "requires a key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"-db", db}, tc.args...)
			code, _, stderr := runCLI(t, dir, "", args...)
			if code != 1 || !strings.Contains(stderr, tc.want) {
				t.Errorf("code %d, stderr %q, want it to mention %q", code, stderr, tc.want)
			}
		})
	}
}
