package keymap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreLoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope", "bindings.json"))
	bs, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(bs) != 0 {
		t.Errorf("Load() = %d bindings, want 0", len(bs))
	}
}

func TestFileStoreLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindings.json")
	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	bs, err := NewFileStore(path).Load()
	if err != nil || len(bs) != 0 {
		t.Errorf("Load() = %v, %v; want empty", bs, err)
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "bindings.json")
	s := NewFileStore(path)

	in := []Binding{newTestBinding("a", "Cmd+K Cmd+C"), newTestBinding("b", "F5")}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !Equal(in, out) {
		t.Errorf("Load() = %+v, want %+v", out, in)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, temp file left behind?", len(entries))
	}

	data, _ := os.ReadFile(path)
	if !s.IsOwnWrite(data) {
		t.Error("IsOwnWrite should recognise the last save")
	}
	if s.IsOwnWrite([]byte("[]")) {
		t.Error("IsOwnWrite matched foreign content")
	}
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindings.json")
	os.WriteFile(path, []byte("{broken"), 0o644)
	if _, err := NewFileStore(path).Load(); err == nil {
		t.Error("Load() should fail on corrupt file")
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.yaml")
	doc := `
- name: Open docs
  keys: Cmd+K Cmd+D
  action:
    type: openURL
    payload: https://example.com
- name: Build
  keys: ⌃⇧B
  action:
    type: shell
    payload: make build
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	bs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(bs) != 2 {
		t.Fatalf("len = %d, want 2", len(bs))
	}
	if bs[0].DisplaySequence() != "⌘K  ›  ⌘D" {
		t.Errorf("steps = %q", bs[0].DisplaySequence())
	}
	if bs[1].Action != ShellCommand("make build") {
		t.Errorf("action = %+v", bs[1].Action)
	}
	if bs[1].Steps.String() != "Ctrl+Shift+B" {
		t.Errorf("steps = %q", bs[1].Steps.String())
	}
}

func TestLoadFileYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"badkeys.yml":   "- name: x\n  keys: Hyper+K\n  action: {type: shell, payload: ls}\n",
		"badaction.yml": "- name: x\n  keys: A\n  action: {type: fax, payload: ls}\n",
		"badid.yml":     "- id: nope\n  name: x\n  keys: A\n  action: {type: url, payload: x}\n",
	}
	for name, body := range tests {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte(body), 0o644)
		if _, err := LoadFile(path); err == nil {
			t.Errorf("LoadFile(%s) should fail", name)
		}
	}
}

func TestExportFileRoundTrip(t *testing.T) {
	in := []Binding{newTestBinding("a", "Cmd+K Cmd+C"), newTestBinding("b", "Opt+F4")}
	for _, name := range []string{"out.json", "out.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := ExportFile(path, in); err != nil {
			t.Fatalf("ExportFile(%s) error = %v", name, err)
		}
		out, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s) error = %v", name, err)
		}
		if len(out) != len(in) {
			t.Fatalf("%s: len = %d, want %d", name, len(out), len(in))
		}
		for i := range in {
			if out[i].ID != in[i].ID || !out[i].Steps.Equal(in[i].Steps) || out[i].Action != in[i].Action {
				t.Errorf("%s: binding %d = %+v, want %+v", name, i, out[i], in[i])
			}
		}
	}
}
