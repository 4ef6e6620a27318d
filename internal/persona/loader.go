package persona

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const maxDocumentSize = 1 << 20 // 1MB

// LoadPersona reads and validates a persona document from a YAML file.
func LoadPersona(path string) (*Persona, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona: %w", err)
	}

	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse persona %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persona %s: %w", path, err)
	}
	return &p, nil
}

// LoadScenario reads and validates a scenario document from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func readDocument(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > maxDocumentSize {
		return nil, fmt.Errorf("document %s exceeds %d bytes", path, maxDocumentSize)
	}

	return io.ReadAll(f)
}
