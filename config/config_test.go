package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[stacks]
global-size = 2048
global-limit = 65536
spare = 128

[engine]
validate-api = false
bounded-integers = true

[log]
verbosity = 2
path = "logs/plfli.log"

[store]
path = "/var/lib/plfli/records.db"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Stacks.GlobalSize != 2048 {
		t.Errorf("global-size = %d, want 2048", c.Stacks.GlobalSize)
	}
	if c.Stacks.GlobalLimit != 65536 {
		t.Errorf("global-limit = %d, want 65536", c.Stacks.GlobalLimit)
	}
	if c.Stacks.Spare != 128 {
		t.Errorf("spare = %d, want 128", c.Stacks.Spare)
	}
	if c.Engine.ValidateAPI {
		t.Error("validate-api = true, want false")
	}
	if !c.Engine.BoundedIntegers {
		t.Error("bounded-integers = false, want true")
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}
	if got := c.LogPath(); got != filepath.Join(c.Dir, "logs", "plfli.log") {
		t.Errorf("LogPath = %q", got)
	}
	if got := c.StorePath(); got != "/var/lib/plfli/records.db" {
		t.Errorf("StorePath = %q", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[engine]
bounded-integers = true
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	d := Default()
	if c.Stacks != d.Stacks {
		t.Errorf("stacks = %+v, want defaults %+v", c.Stacks, d.Stacks)
	}
	if !c.Engine.ValidateAPI {
		t.Error("validate-api should default to true")
	}
	if got := c.StorePath(); got != filepath.Join(c.Dir, ".plfli", "records.db") {
		t.Errorf("StorePath = %q", got)
	}
	if c.LogPath() != "" {
		t.Errorf("LogPath = %q, want stderr", c.LogPath())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[stacks\n", "parse error"},
		{"unknown key", "[stacks]\nheap = 3\n", "unknown key stacks.heap"},
		{"negative", "[stacks]\nspare = -1\n", "stacks.spare must not be negative"},
		{"size over limit", "[stacks]\nglobal-size = 10\nglobal-limit = 5\n", "exceeds global-limit"},
		{"wrong type", "[log]\nverbosity = \"loud\"\n", "parse error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without plfli.toml should fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[log]\nverbosity = 4\n")
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Log.Verbosity != 4 {
		t.Errorf("verbosity = %d, want 4", c.Log.Verbosity)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	// A plfli.toml somewhere above the temp dir would be picked up; only
	// check that something sane came back.
	if c.Stacks.GlobalLimit <= 0 {
		t.Errorf("global-limit = %d", c.Stacks.GlobalLimit)
	}
}

func TestEngineOptions(t *testing.T) {
	c := Default()
	c.Stacks.Spare = 7
	c.Engine.BoundedIntegers = true

	o := c.EngineOptions()
	if o.Spare != 7 || !o.BoundedIntegers || !o.ValidateAPI {
		t.Errorf("EngineOptions = %+v", o)
	}
	if o.GlobalLimit != c.Stacks.GlobalLimit {
		t.Errorf("global limit = %d, want %d", o.GlobalLimit, c.Stacks.GlobalLimit)
	}
}
