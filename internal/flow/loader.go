package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only graph file version this engine reads.
const SupportedVersion = 1

// LoadGraph loads a flow graph from a JSON or YAML file, picking the decoder
// from the file extension.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow graph file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes a flow graph from JSON bytes.
func ParseJSON(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse flow graph JSON: %w", err)
	}
	return checkVersion(&g)
}

// ParseYAML decodes a flow graph from YAML bytes.
func ParseYAML(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse flow graph YAML: %w", err)
	}
	return checkVersion(&g)
}

func checkVersion(g *Graph) (*Graph, error) {
	if g.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported flow graph version: %d", g.Version)
	}
	return g, nil
}
