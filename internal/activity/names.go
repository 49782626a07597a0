package activity

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names maps a lower-cased agent id to its display name.
type Names map[string]string

// DefaultNames is the built-in display-name table.
func DefaultNames() Names {
	return Names{
		"cipher": "Cipher (You)",
		"main":   "Main Session",
	}
}

// Lookup returns the display name registered for id.
func (n Names) Lookup(id string) (string, bool) {
	name, ok := n[id]
	return name, ok && name != ""
}

// namesFile is the on-disk layout:
//
//	names:
//	  cipher: Cipher (You)
//	  main: Main Session
type namesFile struct {
	Names map[string]string `yaml:"names"`
}

// LoadNames reads a YAML display-name table. Keys are lower-cased so
// they match ids derived from session labels.
func LoadNames(path string) (Names, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read names file: %w", err)
	}

	var f namesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse names file %s: %w", path, err)
	}

	names := make(Names, len(f.Names))
	for id, name := range f.Names {
		names[strings.ToLower(strings.TrimSpace(id))] = name
	}
	return names, nil
}
