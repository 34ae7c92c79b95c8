package textutil

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// denylistFile is the on-disk shape of a denylist pattern file:
//
//	patterns:
//	  - more_vert
//	  - "jump to (bottom|latest)"
type denylistFile struct {
	Patterns []string `yaml:"patterns"`
}

// LoadDenylistFile reads denylist patterns from a YAML file. Blank entries are
// dropped; compilation happens in NewNormalizer.
func LoadDenylistFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read denylist file: %w", err)
	}
	var file denylistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse denylist file %s: %w", path, err)
	}
	patterns := make([]string, 0, len(file.Patterns))
	for _, p := range file.Patterns {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns, nil
}
