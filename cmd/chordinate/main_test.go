package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/mattn/go-runewidth"
)

// setup writes a config file pointing at a temporary bindings file.
func setup(t *testing.T) (cfgPath, bindingsPath string) {
	t.Helper()
	dir := t.TempDir()
	bindingsPath = filepath.Join(dir, "bindings.json")
	cfgPath = filepath.Join(dir, "config.toml")
	content := "[storage]\n" +
		"bindings_path = " + quote(bindingsPath) + "\n" +
		"history_path = " + quote(filepath.Join(dir, "history.db")) + "\n" +
		"watch = false\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, bindingsPath
}

func quote(s string) string {
	return "'" + s + "'"
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBindingsAddListRemove(t *testing.T) {
	cfg, path := setup(t)

	out, err := execute(t, "--config", cfg, "bindings", "add", "terminal", "--keys", "Cmd+K Cmd+T", "--shell", "open -a Terminal")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "added terminal (⌘K  ›  ⌘T)") {
		t.Errorf("add output = %q", out)
	}

	saved, err := keymap.NewFileStore(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 || !saved[0].Steps.Equal(key.MustParseSequence("Cmd+K Cmd+T")) {
		t.Fatalf("saved = %+v", saved)
	}

	out, err = execute(t, "--config", cfg, "bindings", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "NAME") || !strings.HasPrefix(lines[1], "terminal") {
		t.Errorf("list output = %q", out)
	}

	if _, err := execute(t, "--config", cfg, "bindings", "remove", "Terminal"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	out, _ = execute(t, "--config", cfg, "bindings", "list")
	if strings.TrimSpace(out) != "no bindings" {
		t.Errorf("list after remove = %q", out)
	}
}

func TestBindingsAddRequiresAction(t *testing.T) {
	cfg, _ := setup(t)
	if _, err := execute(t, "--config", cfg, "bindings", "add", "x", "--keys", "Cmd+X"); err == nil {
		t.Error("add without --shell or --url succeeded")
	}
	if _, err := execute(t, "--config", cfg, "bindings", "add", "x", "--keys", "Cmd+X", "--shell", "true", "--url", "https://x"); err == nil {
		t.Error("add with both --shell and --url succeeded")
	}
	if _, err := execute(t, "--config", cfg, "bindings", "remove", "missing"); err == nil {
		t.Error("remove of unknown binding succeeded")
	}
}

func TestBindingsImportExport(t *testing.T) {
	cfg, _ := setup(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "import.yaml")
	doc := `- name: docs
  keys: Ctrl+D Ctrl+D
  action:
    type: openURL
    payload: https://pkg.go.dev
`
	if err := os.WriteFile(yamlPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--config", cfg, "bindings", "import", yamlPath)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "imported 1 bindings (1 total)") {
		t.Errorf("import output = %q", out)
	}

	jsonPath := filepath.Join(dir, "export.json")
	if _, err := execute(t, "--config", cfg, "bindings", "export", jsonPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := keymap.LoadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "docs" || got[0].Action != keymap.OpenURL("https://pkg.go.dev") {
		t.Errorf("exported = %+v", got)
	}
}

func TestHistoryEmpty(t *testing.T) {
	cfg, _ := setup(t)
	out, err := execute(t, "--config", cfg, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.TrimSpace(out) != "no history" {
		t.Errorf("history output = %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "chordinate dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestTableAlignsGlyphs(t *testing.T) {
	tbl := newTable("NAME", "SEQUENCE", "ID")
	tbl.add("a", "⌘K  ›  ⌘C", "1")
	tbl.add("longer", "⌃⌥⇧⌘X", "2")

	var buf bytes.Buffer
	if err := tbl.write(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	want := runewidth.StringWidth(lines[0][:strings.Index(lines[0], "ID")])
	for _, line := range lines[1:] {
		last := strings.LastIndex(line, " ")
		if got := runewidth.StringWidth(line[:last+1]); got != want {
			t.Errorf("ID column at %d in %q, want %d", got, line, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate(strings.Repeat("x", 20), 10); runewidth.StringWidth(got) > 10 {
		t.Errorf("truncate width = %d", runewidth.StringWidth(got))
	}
}
