// Package config loads the agent-library document.
//
// The document has two top-level sections: an agent list (name, system
// message, description, model identifier) and a model-configuration table
// keyed by provider family. YAML, TOML, and JSON encodings are supported,
// selected by file extension. The core treats the loaded library as
// immutable; Watch exists for collaborators that want to be told when the
// file changes on disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/studykit/agent"
	"github.com/randalmurphal/studykit/provider"
)

// Library is the parsed agent-library document.
type Library struct {
	// Agents lists every agent profile, coordinator included.
	Agents []agent.Profile `json:"agents" yaml:"agents" toml:"agents"`

	// Models maps provider family → model identifier → sampling params.
	Models map[string]map[string]provider.ModelParams `json:"model_configs" yaml:"model_configs" toml:"model_configs"`
}

// Load reads and decodes the library document at path.
// The extension selects the decoder: .yaml/.yml, .toml, or .json.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent library: %w", err)
	}

	var lib Library
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &lib); err != nil {
			return nil, fmt.Errorf("parse agent library %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &lib); err != nil {
			return nil, fmt.Errorf("parse agent library %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &lib); err != nil {
			return nil, fmt.Errorf("parse agent library %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported agent library format %q", ext)
	}

	if err := lib.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent library %s: %w", path, err)
	}
	return &lib, nil
}

// Validate checks structural requirements: at least one agent, every agent
// carrying a name and a model, and no model identifier claimed by more
// than one provider family.
func (l *Library) Validate() error {
	if len(l.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}
	for _, a := range l.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent with empty name")
		}
		if a.Model == "" {
			return fmt.Errorf("agent %q has no model", a.Name)
		}
	}

	owner := make(map[string]string)
	for family, table := range l.Models {
		for model := range table {
			if prev, dup := owner[model]; dup {
				return fmt.Errorf("model %q configured for both %q and %q", model, prev, family)
			}
			owner[model] = family
		}
	}
	return nil
}
