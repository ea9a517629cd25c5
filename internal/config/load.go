package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a preset from path, merged over the defaults.
func Load(path string) (*Preset, error) {
	preset := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading preset from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, preset); err != nil {
		return nil, fmt.Errorf("parsing preset %s: %w", path, err)
	}
	return preset, nil
}

// Save writes the preset to path as YAML.
func (p *Preset) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
