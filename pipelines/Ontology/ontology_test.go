package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOntology(t *testing.T) *DomainOntology {
	t.Helper()
	ont, err := NewDomainOntology(
		"business",
		"Companies and the people behind them",
		[]EntityType{
			{Name: "person", Description: "A natural person", Examples: []string{"Steve Jobs"}},
			{Name: "organization", Description: "A company or institution", Examples: []string{"Apple Inc"}},
		},
		[]RelationshipType{
			{Name: "founded by", Description: "Organization founded by person", SourceTypes: []string{"PERSON"}, TargetTypes: []string{"ORGANIZATION"}},
			{Name: "works_at", Description: "Employment", SourceTypes: []string{"PERSON"}, TargetTypes: []string{"ORGANIZATION"}},
		},
		[]string{"Prefer full legal names"},
	)
	require.NoError(t, err)
	return ont
}

func TestNormalizeTypeName(t *testing.T) {
	assert.Equal(t, "PERSON", NormalizeTypeName("person"))
	assert.Equal(t, "FOUNDED_BY", NormalizeTypeName("founded by"))
	assert.Equal(t, "CLIMATE_POLICY", NormalizeTypeName("climate-policy"))
	assert.Equal(t, "PERSON", NormalizeTypeName("  Person  "))
}

func TestNewDomainOntology(t *testing.T) {
	t.Run("normalizes type names", func(t *testing.T) {
		ont := testOntology(t)
		assert.Equal(t, "PERSON", ont.EntityTypes[0].Name)
		assert.Equal(t, "FOUNDED_BY", ont.RelationshipTypes[0].Name)
	})

	t.Run("rejects duplicate entity types", func(t *testing.T) {
		_, err := NewDomainOntology("d", "", []EntityType{
			{Name: "person"},
			{Name: "PERSON"},
		}, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate entity type")
	})

	t.Run("rejects empty type names", func(t *testing.T) {
		_, err := NewDomainOntology("d", "", []EntityType{{Name: "  "}}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("normalizes endpoint constraints", func(t *testing.T) {
		ont, err := NewDomainOntology("d", "",
			[]EntityType{{Name: "person"}, {Name: "org"}},
			[]RelationshipType{{Name: "rel", SourceTypes: []string{"person"}, TargetTypes: []string{"org"}}},
			nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"PERSON"}, ont.RelationshipTypes[0].SourceTypes)
	})
}

func TestLookupEntityType(t *testing.T) {
	ont := testOntology(t)

	t.Run("known type in any case", func(t *testing.T) {
		validated, et, ok := ont.LookupEntityType("Person")
		require.True(t, ok)
		assert.Equal(t, "PERSON", validated.Name())
		assert.Equal(t, "business", validated.Domain())
		assert.False(t, validated.IsZero())
		assert.Equal(t, "A natural person", et.Description)
	})

	t.Run("unknown type", func(t *testing.T) {
		validated, et, ok := ont.LookupEntityType("LOCATION")
		assert.False(t, ok)
		assert.True(t, validated.IsZero())
		assert.Nil(t, et)
	})
}

func TestLookupRelationshipType(t *testing.T) {
	ont := testOntology(t)

	validated, rt, ok := ont.LookupRelationshipType("founded by")
	require.True(t, ok)
	assert.Equal(t, "FOUNDED_BY", validated.Name())
	assert.Equal(t, []string{"PERSON"}, rt.SourceTypes)

	_, _, ok = ont.LookupRelationshipType("ACQUIRED")
	assert.False(t, ok)
}

func TestCheckEndpointTypes(t *testing.T) {
	ont := testOntology(t)

	t.Run("satisfied constraints", func(t *testing.T) {
		assert.True(t, ont.CheckEndpointTypes("FOUNDED_BY", "PERSON", "ORGANIZATION"))
	})

	t.Run("violated constraints", func(t *testing.T) {
		assert.False(t, ont.CheckEndpointTypes("FOUNDED_BY", "ORGANIZATION", "PERSON"))
	})

	t.Run("unknown relationship type fails", func(t *testing.T) {
		assert.False(t, ont.CheckEndpointTypes("NOPE", "PERSON", "ORGANIZATION"))
	})

	t.Run("empty constraint list is unconstrained", func(t *testing.T) {
		unconstrained, err := NewDomainOntology("d", "",
			[]EntityType{{Name: "thing"}},
			[]RelationshipType{{Name: "related_to"}},
			nil)
		require.NoError(t, err)
		assert.True(t, unconstrained.CheckEndpointTypes("RELATED_TO", "THING", "THING"))
	})
}

func TestHasEntityTypes(t *testing.T) {
	ont := testOntology(t)
	assert.True(t, ont.HasEntityTypes())

	empty, err := NewDomainOntology("empty", "", nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, empty.HasEntityTypes())
}

func TestParseOntologyYAML(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		data := []byte(`
domain_name: climate
domain_description: Climate policy domain
entity_types:
  - name: climate_policy
    description: An international climate agreement
    examples: ["Paris Agreement"]
relationship_types:
  - name: ratified_by
    description: Policy ratified by a country
    source_types: [country]
    target_types: [climate_policy]
extraction_patterns:
  - "Treaty names are usually capitalized"
`)
		ont, err := ParseOntologyYAML(data)
		require.NoError(t, err)
		assert.Equal(t, "climate", ont.DomainName)
		assert.Equal(t, "CLIMATE_POLICY", ont.EntityTypes[0].Name)
		assert.Equal(t, "RATIFIED_BY", ont.RelationshipTypes[0].Name)
		assert.Equal(t, []string{"COUNTRY"}, ont.RelationshipTypes[0].SourceTypes)
	})

	t.Run("missing domain name", func(t *testing.T) {
		_, err := ParseOntologyYAML([]byte(`entity_types: []`))
		assert.Error(t, err)
	})

	t.Run("invalid YAML", func(t *testing.T) {
		_, err := ParseOntologyYAML([]byte(`{not yaml: [`))
		assert.Error(t, err)
	})
}
