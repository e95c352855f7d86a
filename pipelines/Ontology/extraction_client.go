package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	AI "github.com/Mimir-AIP/OntoGraph-Go/pipelines/AI"
	"github.com/Mimir-AIP/OntoGraph-Go/utils"
)

// ExtractionClient invokes language-model backends to produce raw entity
// and relationship candidates. Backends are tried in order; any failure
// (unreachable, timeout, unparseable response) moves on to the next, and
// the deterministic pattern extractor always closes the chain, so candidate
// production never fails.
type ExtractionClient struct {
	backends []AI.LLMClient
	fallback *PatternExtractor
	timeout  time.Duration
	logger   *utils.Logger
}

// NewExtractionClient creates a client over an ordered backend chain. A nil
// or empty chain is valid: extraction then runs purely on the pattern
// fallback.
func NewExtractionClient(backends []AI.LLMClient, timeout time.Duration) *ExtractionClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &ExtractionClient{
		backends: backends,
		fallback: NewPatternExtractor(),
		timeout:  timeout,
		logger:   utils.GetLogger(),
	}
}

// ExtractCandidates produces raw candidates for the given text and
// ontology. The returned backend label names the strategy that produced
// the result ("pattern_fallback" when every LLM backend failed).
func (c *ExtractionClient) ExtractCandidates(ctx context.Context, text string, ont *DomainOntology) (*RawCandidates, string) {
	prompt := BuildExtractionPrompt(text, ont)

	for _, backend := range c.backends {
		backendCtx, cancel := context.WithTimeout(ctx, c.timeout)
		response, err := backend.CompleteSimple(backendCtx, prompt)
		cancel()
		if err != nil {
			c.logger.Warn("extraction backend failed, trying next",
				utils.Component("extraction"),
				utils.String("provider", string(backend.GetProvider())),
				utils.Error(err))
			continue
		}

		candidates, err := ParseCandidateResponse(response)
		if err != nil {
			c.logger.Warn("extraction backend returned unparseable response",
				utils.Component("extraction"),
				utils.String("provider", string(backend.GetProvider())),
				utils.Error(err))
			continue
		}
		return candidates, string(backend.GetProvider())
	}

	return c.fallback.Extract(text, ont), "pattern_fallback"
}

// BuildExtractionPrompt encodes the ontology and source text into one
// prompt. Section headings are shared with the mock backend.
func BuildExtractionPrompt(text string, ont *DomainOntology) string {
	var sb strings.Builder

	sb.WriteString("You are an expert in entity extraction and knowledge graph construction.\n\n")
	sb.WriteString("# Task\n")
	sb.WriteString(fmt.Sprintf("Extract entities and relationships from the text below for the %q domain.\n", ont.DomainName))
	if ont.DomainDescription != "" {
		sb.WriteString(ont.DomainDescription)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(AI.PromptSectionEntityTypes)
	sb.WriteString("\n")
	for _, et := range ont.EntityTypes {
		sb.WriteString(fmt.Sprintf("- %s: %s", et.Name, et.Description))
		if len(et.Examples) > 0 {
			sb.WriteString(fmt.Sprintf(" (examples: %s)", strings.Join(et.Examples, ", ")))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(AI.PromptSectionRelationshipTypes)
	sb.WriteString("\n")
	for _, rt := range ont.RelationshipTypes {
		sb.WriteString(fmt.Sprintf("- %s: %s [source: %s, target: %s]\n",
			rt.Name, rt.Description,
			strings.Join(rt.SourceTypes, "|"), strings.Join(rt.TargetTypes, "|")))
	}
	sb.WriteString("\n")

	if len(ont.ExtractionPatterns) > 0 {
		sb.WriteString("## Extraction Guidance\n")
		for _, p := range ont.ExtractionPatterns {
			sb.WriteString(fmt.Sprintf("- %s\n", p))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(AI.PromptSectionInputText)
	sb.WriteString("\n")
	sb.WriteString(text)
	sb.WriteString("\n\n")

	sb.WriteString(AI.PromptSectionOutputFormat)
	sb.WriteString("\n")
	sb.WriteString("Return a JSON object with the following structure:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"entities\": [\n")
	sb.WriteString("    {\"text\": \"<surface form>\", \"type\": \"<entity type name>\", \"confidence\": 0.0-1.0, \"context\": \"<surrounding text>\"}\n")
	sb.WriteString("  ],\n")
	sb.WriteString("  \"relationships\": [\n")
	sb.WriteString("    {\"source\": \"<entity text>\", \"target\": \"<entity text>\", \"relation\": \"<relationship type name>\", \"confidence\": 0.0-1.0, \"context\": \"<supporting text>\"}\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n\n")

	sb.WriteString("# Important Instructions\n")
	sb.WriteString("- Only use entity and relationship types declared above\n")
	sb.WriteString("- Use the exact surface form from the text for entity text, source and target\n")
	sb.WriteString("- Include a confidence score (0.0-1.0) for every candidate\n")
	sb.WriteString("- Return ONLY valid JSON, no additional text\n")

	return sb.String()
}

// ParseCandidateResponse parses a backend response into candidates. It
// tolerates markdown code fences and leading prose around the JSON object.
func ParseCandidateResponse(response string) (*RawCandidates, error) {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	}

	// Tolerate prose before/after the JSON object.
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	response = response[start : end+1]

	var candidates RawCandidates
	if err := json.Unmarshal([]byte(response), &candidates); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if candidates.Entities == nil {
		candidates.Entities = []EntityCandidate{}
	}
	if candidates.Relationships == nil {
		candidates.Relationships = []RelationshipCandidate{}
	}
	return &candidates, nil
}
