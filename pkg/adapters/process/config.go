package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes how to start the external ray-tracing program.
type Config struct {
	Command     string            `yaml:"command" json:"command" mapstructure:"command"`
	Args        []string          `yaml:"args" json:"args" mapstructure:"args"`
	Environment map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	// Dir is the working directory of the child process; empty inherits ours.
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`
}

// LoadConfig reads a standalone application config file (YAML or JSON).
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read application config: %w", err)
	}

	var cfg Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if cfg.Command == "" {
		return Config{}, fmt.Errorf("application config %s: command is required", filepath.Base(path))
	}
	return cfg, nil
}
