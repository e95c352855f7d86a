package ontology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ontologyFile is the on-disk YAML shape of a domain ontology.
type ontologyFile struct {
	DomainName         string             `yaml:"domain_name"`
	DomainDescription  string             `yaml:"domain_description"`
	EntityTypes        []EntityType       `yaml:"entity_types"`
	RelationshipTypes  []RelationshipType `yaml:"relationship_types"`
	ExtractionPatterns []string           `yaml:"extraction_patterns"`
}

// LoadOntologyFromFile reads a domain ontology from a YAML file and
// constructs it with the usual normalization and uniqueness checks.
func LoadOntologyFromFile(path string) (*DomainOntology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology file %s: %w", path, err)
	}
	return ParseOntologyYAML(data)
}

// ParseOntologyYAML constructs a domain ontology from YAML bytes.
func ParseOntologyYAML(data []byte) (*DomainOntology, error) {
	var file ontologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse ontology YAML: %w", err)
	}
	if file.DomainName == "" {
		return nil, fmt.Errorf("ontology is missing domain_name")
	}
	return NewDomainOntology(file.DomainName, file.DomainDescription, file.EntityTypes, file.RelationshipTypes, file.ExtractionPatterns)
}
