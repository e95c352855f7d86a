package ontology

import (
	"fmt"
	"strings"
)

// EntityType describes one kind of entity a domain ontology permits.
type EntityType struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	Attributes  []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// RelationshipType describes one kind of relationship, constrained to
// declared source and target entity types. The constraint is soft:
// violations are reported during consistency scoring, not rejected.
type RelationshipType struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	SourceTypes []string `json:"source_types" yaml:"source_types"`
	TargetTypes []string `json:"target_types" yaml:"target_types"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// DomainOntology is an immutable description of a domain: its entity types,
// relationship types, and free-text extraction guidance. Construct with
// NewDomainOntology; type names are case-normalized to UPPER_SNAKE and must
// be unique within the ontology.
type DomainOntology struct {
	DomainName         string
	DomainDescription  string
	EntityTypes        []EntityType
	RelationshipTypes  []RelationshipType
	ExtractionPatterns []string

	entityIndex       map[string]int
	relationshipIndex map[string]int
}

// NormalizeTypeName converts a type name to the canonical UPPER_SNAKE form
// used for all ontology lookups.
func NormalizeTypeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return strings.ToUpper(name)
}

// NewDomainOntology constructs an ontology, normalizing type names and
// rejecting duplicates.
func NewDomainOntology(name, description string, entityTypes []EntityType, relationshipTypes []RelationshipType, patterns []string) (*DomainOntology, error) {
	o := &DomainOntology{
		DomainName:         name,
		DomainDescription:  description,
		EntityTypes:        make([]EntityType, 0, len(entityTypes)),
		RelationshipTypes:  make([]RelationshipType, 0, len(relationshipTypes)),
		ExtractionPatterns: append([]string(nil), patterns...),
		entityIndex:        make(map[string]int),
		relationshipIndex:  make(map[string]int),
	}

	for _, et := range entityTypes {
		et.Name = NormalizeTypeName(et.Name)
		if et.Name == "" {
			return nil, fmt.Errorf("entity type with empty name in ontology %q", name)
		}
		if _, exists := o.entityIndex[et.Name]; exists {
			return nil, fmt.Errorf("duplicate entity type %q in ontology %q", et.Name, name)
		}
		o.entityIndex[et.Name] = len(o.EntityTypes)
		o.EntityTypes = append(o.EntityTypes, et)
	}

	for _, rt := range relationshipTypes {
		rt.Name = NormalizeTypeName(rt.Name)
		if rt.Name == "" {
			return nil, fmt.Errorf("relationship type with empty name in ontology %q", name)
		}
		if _, exists := o.relationshipIndex[rt.Name]; exists {
			return nil, fmt.Errorf("duplicate relationship type %q in ontology %q", rt.Name, name)
		}
		for i, st := range rt.SourceTypes {
			rt.SourceTypes[i] = NormalizeTypeName(st)
		}
		for i, tt := range rt.TargetTypes {
			rt.TargetTypes[i] = NormalizeTypeName(tt)
		}
		o.relationshipIndex[rt.Name] = len(o.RelationshipTypes)
		o.RelationshipTypes = append(o.RelationshipTypes, rt)
	}

	return o, nil
}

// ValidatedType is a type name proven to belong to an ontology. It is only
// constructible through the ontology's lookup methods, so downstream code
// cannot accidentally substitute an unchecked string.
type ValidatedType struct {
	name   string
	domain string
	kind   string // "entity" or "relationship"
}

// Name returns the normalized type name.
func (v ValidatedType) Name() string { return v.name }

// Domain returns the name of the ontology the type was validated against.
func (v ValidatedType) Domain() string { return v.domain }

// IsZero reports whether the value was never produced by a lookup.
func (v ValidatedType) IsZero() bool { return v.name == "" }

// LookupEntityType resolves a raw type name against the ontology.
func (o *DomainOntology) LookupEntityType(name string) (ValidatedType, *EntityType, bool) {
	idx, ok := o.entityIndex[NormalizeTypeName(name)]
	if !ok {
		return ValidatedType{}, nil, false
	}
	et := &o.EntityTypes[idx]
	return ValidatedType{name: et.Name, domain: o.DomainName, kind: "entity"}, et, true
}

// LookupRelationshipType resolves a raw relationship type name.
func (o *DomainOntology) LookupRelationshipType(name string) (ValidatedType, *RelationshipType, bool) {
	idx, ok := o.relationshipIndex[NormalizeTypeName(name)]
	if !ok {
		return ValidatedType{}, nil, false
	}
	rt := &o.RelationshipTypes[idx]
	return ValidatedType{name: rt.Name, domain: o.DomainName, kind: "relationship"}, rt, true
}

// HasEntityTypes reports whether the ontology declares any entity types.
// An ontology without entity types yields empty extractions.
func (o *DomainOntology) HasEntityTypes() bool {
	return len(o.EntityTypes) > 0
}

// CheckEndpointTypes reports whether a relationship instance's endpoint
// types satisfy the declared source/target constraints. Unknown
// relationship types fail the check.
func (o *DomainOntology) CheckEndpointTypes(relationshipType, sourceEntityType, targetEntityType string) bool {
	_, rt, ok := o.LookupRelationshipType(relationshipType)
	if !ok {
		return false
	}
	return containsType(rt.SourceTypes, sourceEntityType) && containsType(rt.TargetTypes, targetEntityType)
}

func containsType(types []string, name string) bool {
	if len(types) == 0 {
		return true // unconstrained endpoint
	}
	normalized := NormalizeTypeName(name)
	for _, t := range types {
		if t == normalized {
			return true
		}
	}
	return false
}
