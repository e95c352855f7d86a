package ontology

import (
	"strings"
	"unicode"
)

// Pattern extractor confidence levels. Example matches are strong signals;
// capitalized-run guesses are weak.
const (
	patternExampleConfidence = 0.9
	patternGuessConfidence   = 0.6
	patternPhraseConfidence  = 0.6
)

// PatternExtractor is the deterministic local fallback used when no LLM
// backend is available or all of them fail. It matches the ontology's
// declared examples verbatim, tags remaining capitalized token runs with
// types assigned round-robin, and derives relationship candidates from the
// connective phrases implied by relationship type names.
type PatternExtractor struct{}

// NewPatternExtractor creates a new pattern extractor
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract produces raw candidates from text without any external
// capability. Never fails; an ontology without entity types yields an
// empty candidate set.
func (p *PatternExtractor) Extract(text string, ont *DomainOntology) *RawCandidates {
	candidates := &RawCandidates{
		Entities:      []EntityCandidate{},
		Relationships: []RelationshipCandidate{},
	}
	if !ont.HasEntityTypes() || strings.TrimSpace(text) == "" {
		return candidates
	}

	seen := make(map[string]bool)

	// Declared examples are the strongest pattern signal.
	for _, et := range ont.EntityTypes {
		for _, example := range et.Examples {
			if example == "" || !strings.Contains(text, example) {
				continue
			}
			if seen[example] {
				continue
			}
			seen[example] = true
			candidates.Entities = append(candidates.Entities, EntityCandidate{
				Text:       example,
				Type:       et.Name,
				Confidence: patternExampleConfidence,
				Context:    contextWindow(text, example),
			})
		}
	}

	// Capitalized token runs cover everything the examples missed.
	typeIdx := 0
	for _, run := range capitalizedRuns(text) {
		if seen[run] {
			continue
		}
		seen[run] = true
		candidates.Entities = append(candidates.Entities, EntityCandidate{
			Text:       run,
			Type:       ont.EntityTypes[typeIdx%len(ont.EntityTypes)].Name,
			Confidence: patternGuessConfidence,
			Context:    contextWindow(text, run),
		})
		typeIdx++
	}

	candidates.Relationships = p.relationshipsFromPhrases(text, ont, candidates.Entities)
	return candidates
}

// relationshipsFromPhrases turns each relationship type name into its
// natural-language phrase (FOUNDED_BY -> "founded by") and emits a
// candidate whenever entities straddle an occurrence of that phrase.
func (p *PatternExtractor) relationshipsFromPhrases(text string, ont *DomainOntology, entities []EntityCandidate) []RelationshipCandidate {
	relationships := []RelationshipCandidate{}
	lower := strings.ToLower(text)

	for _, rt := range ont.RelationshipTypes {
		phrase := strings.ToLower(strings.ReplaceAll(rt.Name, "_", " "))
		phraseIdx := strings.Index(lower, phrase)
		if phraseIdx < 0 {
			continue
		}

		var before, after string
		for _, e := range entities {
			entIdx := strings.Index(text, e.Text)
			if entIdx < 0 {
				continue
			}
			if entIdx < phraseIdx {
				before = e.Text
			} else if after == "" {
				after = e.Text
			}
		}
		if before == "" || after == "" {
			continue
		}

		source, target := before, after
		// Passive phrasing ("X founded by Y") points the edge backwards.
		if strings.HasSuffix(phrase, " by") {
			source, target = after, before
		}
		relationships = append(relationships, RelationshipCandidate{
			Source:     source,
			Target:     target,
			Relation:   rt.Name,
			Confidence: patternPhraseConfidence,
			Context:    contextWindow(text, phrase),
		})
	}

	return relationships
}

// capitalizedRuns returns maximal runs of consecutive capitalized tokens in
// order of first appearance, punctuation trimmed.
func capitalizedRuns(text string) []string {
	var runs []string
	var run []string

	flush := func() {
		if len(run) > 0 {
			runs = append(runs, strings.Join(run, " "))
			run = nil
		}
	}

	for _, token := range strings.Fields(text) {
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

	return runs
}

// contextWindow returns a text window around the first occurrence of a
// substring, for mention context. Offsets are byte-based and best-effort.
func contextWindow(text, substr string) string {
	idx := strings.Index(text, substr)
	if idx < 0 {
		idx = strings.Index(strings.ToLower(text), strings.ToLower(substr))
	}
	if idx < 0 {
		return ""
	}
	start := idx - 60
	if start < 0 {
		start = 0
	}
	end := idx + len(substr) + 60
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
