package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML implements yaml.Unmarshaler so directions can be written as
// "client" or "server".
func (d *Direction) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: direction must be a string", ErrInvalidScenario, value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (d Direction) MarshalYAML() (interface{}, error) {
	text, err := d.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

type document struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Parse decodes a YAML scenario document:
//
//	scenarios:
//	  - name: split_vfo
//	    description: VFO B tuning
//	    steps:
//	      - {dir: client, cmd: "FT1;", delay: 0.01}
//	      - {dir: server, cmd: "FT1;"}
//
// A step without dir is sent by the client. Unknown fields are rejected and
// every scenario is validated.
func Parse(data []byte) ([]Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("%w: document has no scenarios", ErrInvalidScenario)
	}
	seen := make(map[string]bool, len(doc.Scenarios))
	for _, sc := range doc.Scenarios {
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, sc.Name)
		}
		seen[sc.Name] = true
	}
	return doc.Scenarios, nil
}

// LoadFile reads and parses a YAML scenario file.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	scs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scs, nil
}

// Marshal encodes scenarios in the format Parse reads.
func Marshal(scs []Scenario) ([]byte, error) {
	return yaml.Marshal(document{Scenarios: scs})
}
