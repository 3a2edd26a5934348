// Package deploy models the service's container deployment descriptor and
// validates it before anything is handed to an orchestrator.
package deploy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor is a compose-style deployment document.
type Descriptor struct {
	Version  string             `yaml:"version,omitempty"`
	Services map[string]Service `yaml:"services"`
}

// Service describes a single container.
type Service struct {
	Build         string   `yaml:"build,omitempty"`
	Image         string   `yaml:"image,omitempty"`
	ContainerName string   `yaml:"container_name,omitempty"`
	Restart       string   `yaml:"restart,omitempty"`
	Command       string   `yaml:"command,omitempty"`
	Ports         []string `yaml:"ports,omitempty"`
	Environment   []string `yaml:"environment,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
}

// Parse decodes a descriptor from YAML.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if len(d.Services) == 0 {
		return nil, fmt.Errorf("parse descriptor: no services declared")
	}
	return &d, nil
}

// Load reads and parses a descriptor file.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(data)
}

// Marshal renders the descriptor back to YAML.
func (d *Descriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Env returns the value of an environment entry ("KEY=VALUE") on a service.
func (s Service) Env(key string) (string, bool) {
	prefix := key + "="
	for _, entry := range s.Environment {
		if len(entry) >= len(prefix) && entry[:len(prefix)] == prefix {
			return entry[len(prefix):], true
		}
	}
	return "", false
}
