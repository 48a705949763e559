package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"gopkg.in/yaml.v3"
)

// LoadInitialState reads a seed file (YAML or JSON) into a state tree.
func LoadInitialState(path string) (domain.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse state json: %w", err)
		}
		return normalizeTree(raw), nil
	}
	// Default to YAML
	return ParseInitialState(data)
}

// ParseInitialState decodes a YAML document into a state tree. Mapping keys
// become strings, nested mappings become branches.
func ParseInitialState(data []byte) (domain.Tree, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse state yaml: %w", err)
	}
	return normalizeTree(raw), nil
}

func normalizeTree(raw map[string]any) domain.Tree {
	tree := make(domain.Tree, len(raw))
	for k, v := range raw {
		tree[k] = normalizeValue(v)
	}
	return tree
}

// normalizeValue rewrites decoded YAML values into the tree's canonical
// shapes. yaml.v3 keys mappings by string where possible; any-keyed maps
// still appear under merged or non-scalar keys.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = normalizeValue(nested)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[fmt.Sprint(k)] = normalizeValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
