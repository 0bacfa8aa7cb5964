package keymap

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileStore reads and writes the bindings file.
type FileStore struct {
	path string

	mu   sync.Mutex
	last []byte // content of the most recent write
}

// NewFileStore creates a store for the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the bindings file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the bindings file. A missing or empty file yields no bindings.
func (s *FileStore) Load() ([]Binding, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading bindings file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return Decode(data)
}

// Save writes bindings atomically using a temporary file and rename.
func (s *FileStore) Save(bindings []Binding) error {
	data, err := Encode(bindings)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.last = data
	return nil
}

// IsOwnWrite reports whether data is what this store last wrote.
func (s *FileStore) IsOwnWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last != nil && bytes.Equal(s.last, data)
}

// writeAtomic writes data to path through a temporary file in the same
// directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		// Clean up temp file on failure
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// yamlBinding is the hand-written import format:
//
//	- name: Open docs
//	  keys: Cmd+K Cmd+D
//	  action:
//	    type: openURL
//	    payload: https://example.com
type yamlBinding struct {
	ID     string     `yaml:"id,omitempty"`
	Name   string     `yaml:"name"`
	Keys   string     `yaml:"keys"`
	Action yamlAction `yaml:"action"`
}

type yamlAction struct {
	Type    string `yaml:"type"`
	Payload string `yaml:"payload"`
}

// LoadFile reads bindings from an arbitrary file. Files ending in .yaml or
// .yml use the YAML import format; anything else is read as JSON.
func LoadFile(path string) ([]Binding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if isYAML(path) {
		return DecodeYAML(data)
	}
	return Decode(data)
}

// ExportFile writes bindings to path, as YAML or JSON by extension.
func ExportFile(path string, bindings []Binding) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = EncodeYAML(bindings)
	} else {
		data, err = Encode(bindings)
	}
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// DecodeYAML parses the YAML import format.
func DecodeYAML(data []byte) ([]Binding, error) {
	var docs []yamlBinding
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decoding yaml bindings: %w", err)
	}

	out := make([]Binding, 0, len(docs))
	var err error
	for i, d := range docs {
		var steps key.Sequence
		if strings.TrimSpace(d.Keys) != "" {
			if steps, err = key.ParseSequence(d.Keys); err != nil {
				return nil, fmt.Errorf("binding %d (%s): %w", i, d.Name, err)
			}
		}
		typ, err := ParseActionType(d.Action.Type)
		if err != nil {
			return nil, fmt.Errorf("binding %d (%s): %w", i, d.Name, err)
		}
		b := NewBinding(d.Name, steps, Action{Type: typ, Payload: d.Action.Payload})
		if d.ID != "" {
			id, err := uuid.Parse(d.ID)
			if err != nil {
				return nil, fmt.Errorf("binding %d (%s): parsing id: %w", i, d.Name, err)
			}
			b.ID = id
		}
		out = append(out, b)
	}
	return out, nil
}

// EncodeYAML writes bindings in the YAML import format.
func EncodeYAML(bindings []Binding) ([]byte, error) {
	docs := make([]yamlBinding, 0, len(bindings))
	for _, b := range bindings {
		docs = append(docs, yamlBinding{
			ID:     b.ID.String(),
			Name:   b.Name,
			Keys:   b.Steps.String(),
			Action: yamlAction{Type: string(b.Action.Type), Payload: b.Action.Payload},
		})
	}
	data, err := yaml.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encoding yaml bindings: %w", err)
	}
	return data, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// DefaultPath returns the default bindings file location.
// On Unix-like systems: ~/.config/chordinate/bindings.json
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "chordinate", "bindings.json"), nil
}
