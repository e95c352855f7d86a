package AI

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"
)

// Prompt section headings shared between the extraction prompt builder and
// the mock client. The mock locates the ontology and source text by these
// markers, so both sides must agree on them.
const (
	PromptSectionEntityTypes       = "## Entity Types"
	PromptSectionRelationshipTypes = "## Relationship Types"
	PromptSectionInputText         = "# Input Text"
	PromptSectionOutputFormat      = "# Output Format"
)

// MockClient is a fully deterministic LLM stand-in for testing. It parses
// the extraction prompt, finds runs of capitalized tokens in the input text,
// and maps them positionally onto the ontology's declared entity types. A
// small verb-pattern table produces relationships between detected entities.
type MockClient struct {
	model string
}

// NewMockClient creates a new mock client
func NewMockClient(config LLMClientConfig) *MockClient {
	model := config.Model
	if model == "" {
		model = "mock-extractor-v1"
	}
	return &MockClient{model: model}
}

type mockEntity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

type mockRelationship struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Relation   string  `json:"relation"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

// Complete produces a deterministic extraction response from the prompt
func (c *MockClient) Complete(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	var prompt string
	for _, msg := range request.Messages {
		if msg.Role == "user" {
			prompt = msg.Content
		}
	}

	text := extractSection(prompt, PromptSectionInputText, PromptSectionOutputFormat)
	entityTypes := extractListedNames(prompt, PromptSectionEntityTypes)

	entities := mockEntitiesFromText(text, entityTypes)
	relationships := mockRelationshipsFromText(text, entities)

	payload := map[string]any{
		"entities":      entities,
		"relationships": relationships,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &LLMResponse{
		Content:      string(content),
		FinishReason: "stop",
		Model:        c.model,
		Usage: &LLMUsage{
			PromptTokens:     len(strings.Fields(prompt)),
			CompletionTokens: len(strings.Fields(string(content))),
			TotalTokens:      len(strings.Fields(prompt)) + len(strings.Fields(string(content))),
		},
	}, nil
}

// CompleteSimple produces a deterministic extraction response from the prompt
func (c *MockClient) CompleteSimple(ctx context.Context, prompt string) (string, error) {
	response, err := c.Complete(ctx, LLMRequest{
		Messages: []LLMMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// GetProvider returns the provider type
func (c *MockClient) GetProvider() LLMProvider {
	return ProviderMock
}

// GetDefaultModel returns the default model
func (c *MockClient) GetDefaultModel() string {
	return c.model
}

// ValidateConfig validates the client configuration
func (c *MockClient) ValidateConfig() error {
	return nil
}

// extractSection returns the prompt text between a heading and the next
// heading (or end of prompt if the end marker is absent).
func extractSection(prompt, start, end string) string {
	idx := strings.Index(prompt, start)
	if idx < 0 {
		return prompt
	}
	section := prompt[idx+len(start):]
	if endIdx := strings.Index(section, end); endIdx >= 0 {
		section = section[:endIdx]
	}
	return strings.TrimSpace(section)
}

// extractListedNames pulls "- NAME" bullet names from a prompt section.
func extractListedNames(prompt, heading string) []string {
	idx := strings.Index(prompt, heading)
	if idx < 0 {
		return nil
	}
	var names []string
	for _, line := range strings.Split(prompt[idx+len(heading):], "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			break
		}
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		name := strings.TrimPrefix(line, "- ")
		if colon := strings.Index(name, ":"); colon >= 0 {
			name = name[:colon]
		}
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// mockEntitiesFromText finds runs of capitalized tokens and assigns declared
// types round-robin in order of first appearance.
func mockEntitiesFromText(text string, entityTypes []string) []mockEntity {
	entities := []mockEntity{}
	if len(entityTypes) == 0 {
		return entities
	}

	tokens := strings.Fields(text)
	seen := make(map[string]bool)
	var run []string

	flush := func() {
		if len(run) == 0 {
			return
		}
		surface := strings.Join(run, " ")
		run = nil
		if seen[surface] {
			return
		}
		seen[surface] = true
		confidence := 0.7
		if strings.Contains(surface, " ") {
			confidence = 0.8
		}
		entities = append(entities, mockEntity{
			Text:       surface,
			Type:       entityTypes[len(entities)%len(entityTypes)],
			Confidence: confidence,
			Context:    text,
		})
	}

	for _, token := range tokens {
		cleaned := strings.TrimFunc(token, func(r rune) bool {
			return unicode.IsPunct(r) && r != '\''
		})
		if cleaned != "" && unicode.IsUpper([]rune(cleaned)[0]) {
			run = append(run, cleaned)
			continue
		}
		flush()
	}
	flush()

	return entities
}

// mockVerbPatterns maps connective phrases to relationship labels. The
// "reversed" flag means the entity after the phrase is the relationship
// source (as with passive constructions).
var mockVerbPatterns = []struct {
	phrase   string
	relation string
	reversed bool
}{
	{"founded by", "FOUNDED_BY", true},
	{"acquired", "ACQUIRED", false},
	{"works at", "WORKS_AT", false},
	{"works for", "WORKS_AT", false},
	{"located in", "LOCATED_IN", false},
	{"part of", "PART_OF", false},
}

// mockRelationshipsFromText emits a relationship for every entity pair that
// straddles a known connective phrase.
func mockRelationshipsFromText(text string, entities []mockEntity) []mockRelationship {
	relationships := []mockRelationship{}
	lower := strings.ToLower(text)

	for _, pattern := range mockVerbPatterns {
		phraseIdx := strings.Index(lower, pattern.phrase)
		if phraseIdx < 0 {
			continue
		}

		var left, right string
		for _, e := range entities {
			entIdx := strings.Index(text, e.Text)
			if entIdx < 0 {
				continue
			}
			if entIdx < phraseIdx {
				left = e.Text // last entity before the phrase wins
			} else if right == "" {
				right = e.Text
			}
		}
		if left == "" || right == "" {
			continue
		}

		source, target := left, right
		if pattern.reversed {
			source, target = right, left
		}
		relationships = append(relationships, mockRelationship{
			Source:     source,
			Target:     target,
			Relation:   pattern.relation,
			Confidence: 0.8,
			Context:    text,
		})
	}

	return relationships
}
