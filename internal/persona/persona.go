package persona

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/satriahrh/henrietta/domain/entities"
)

//go:embed henrietta.yaml
var henriettaYAML []byte

// Default returns the built-in Henrietta Lacks persona.
func Default() (entities.Persona, error) {
	return Parse(henriettaYAML)
}

// Load reads a persona from disk. An empty path yields the built-in persona.
func Load(path string) (entities.Persona, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entities.Persona{}, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a persona document.
func Parse(data []byte) (entities.Persona, error) {
	var p entities.Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return entities.Persona{}, fmt.Errorf("decode persona: %w", err)
	}
	if err := p.Validate(); err != nil {
		return entities.Persona{}, err
	}
	return p, nil
}
