package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/models"
	fusion "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Fusion"
	ontology "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Ontology"
)

// ExtractionRequest is the body of POST /api/v1/extract.
type ExtractionRequest struct {
	Text                string  `json:"text"`
	SourceRef           string  `json:"source_ref,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	TheoryValidation    bool    `json:"theory_validation,omitempty"`
}

// FusionRequest is the body of POST /api/v1/fuse. When Entities is empty
// the current registry snapshot is fused instead.
type FusionRequest struct {
	Entities      []models.Entity       `json:"entities,omitempty"`
	Relationships []models.Relationship `json:"relationships,omitempty"`
	Strategy      string                `json:"strategy,omitempty"`
	Persist       bool                  `json:"persist,omitempty"`
}

// OntologyRequest is the body of POST /api/v1/ontology.
type OntologyRequest struct {
	DomainName         string                      `json:"domain_name"`
	DomainDescription  string                      `json:"domain_description,omitempty"`
	EntityTypes        []ontology.EntityType       `json:"entity_types"`
	RelationshipTypes  []ontology.RelationshipType `json:"relationship_types,omitempty"`
	ExtractionPatterns []string                    `json:"extraction_patterns,omitempty"`
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"entities":        s.registry.EntityCount(),
		"ontology_loaded": s.currentOntology() != nil,
	})
}

// handleGetOntology returns the active domain ontology.
func (s *Server) handleGetOntology(w http.ResponseWriter, r *http.Request) {
	ont := s.currentOntology()
	if ont == nil {
		writeErrorResponse(w, http.StatusNotFound, "no ontology configured")
		return
	}
	writeSuccessResponse(w, map[string]any{
		"domain_name":         ont.DomainName,
		"domain_description":  ont.DomainDescription,
		"entity_types":        ont.EntityTypes,
		"relationship_types":  ont.RelationshipTypes,
		"extraction_patterns": ont.ExtractionPatterns,
	})
}

// handleSetOntology replaces the active domain ontology.
func (s *Server) handleSetOntology(w http.ResponseWriter, r *http.Request) {
	var req OntologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid JSON body: "+err.Error())
		return
	}

	ont, err := ontology.NewDomainOntology(req.DomainName, req.DomainDescription, req.EntityTypes, req.RelationshipTypes, req.ExtractionPatterns)
	if err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	s.setOntology(ont)
	writeSuccessResponse(w, map[string]any{
		"domain_name":        ont.DomainName,
		"entity_types":       len(ont.EntityTypes),
		"relationship_types": len(ont.RelationshipTypes),
	})
}

// handleExtract runs the extraction pipeline over one text unit.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid JSON body: "+err.Error())
		return
	}

	ont := s.currentOntology()
	if ont == nil {
		writeBadRequestResponse(w, "no ontology configured; POST /api/v1/ontology first")
		return
	}

	threshold := req.ConfidenceThreshold
	if threshold == 0 {
		threshold = s.config.ConfidenceThreshold
	}

	result, err := s.extractor.Extract(r.Context(), req.Text, ont, req.SourceRef, ontology.ExtractOptions{
		ConfidenceThreshold: threshold,
		TheoryValidation:    req.TheoryValidation,
	})
	if err != nil {
		if errors.Is(err, ontology.ErrInvalidThreshold) || errors.Is(err, ontology.ErrNilOntology) {
			writeBadRequestResponse(w, err.Error())
			return
		}
		writeInternalServerErrorResponse(w, err.Error())
		return
	}

	writeSuccessResponse(w, result)
}

// handleListEntities returns the registry's current entity snapshot.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	entities := s.registry.Entities()
	if len(entities) > limit {
		entities = entities[:limit]
	}
	writeSuccessResponse(w, map[string]any{
		"entities": entities,
		"total":    s.registry.EntityCount(),
	})
}

// handleListMentions returns recorded mentions.
func (s *Server) handleListMentions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	mentions := s.registry.Mentions()
	total := len(mentions)
	if total > limit {
		mentions = mentions[:limit]
	}
	writeSuccessResponse(w, map[string]any{
		"mentions": mentions,
		"total":    total,
	})
}

// handleFuse runs one fusion pass over the supplied set, or over the
// registry snapshot when the request carries no entities.
func (s *Server) handleFuse(w http.ResponseWriter, r *http.Request) {
	var req FusionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid JSON body: "+err.Error())
		return
	}

	entities := req.Entities
	if len(entities) == 0 {
		entities = s.registry.Entities()
	}

	result, err := s.currentEngine().Fuse(entities, req.Relationships, fusion.ConflictStrategy(req.Strategy))
	if err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	if req.Persist {
		if err := s.store.SaveEntities(r.Context(), result.Entities); err != nil {
			writeInternalServerErrorResponse(w, "failed to persist entities: "+err.Error())
			return
		}
		if err := s.store.SaveRelationships(r.Context(), result.Relationships); err != nil {
			writeInternalServerErrorResponse(w, "failed to persist relationships: "+err.Error())
			return
		}
	}

	writeSuccessResponse(w, result)
}

// handleFusionStatus reports the scheduled fusion state.
func (s *Server) handleFusionStatus(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, map[string]any{
		"schedule": s.config.FusionSchedule,
		"strategy": s.config.FusionStrategy,
		"last_run": s.scheduler.LastRun(),
	})
}

// handleFusionTrigger runs one scheduled-style fusion pass immediately.
func (s *Server) handleFusionTrigger(w http.ResponseWriter, r *http.Request) {
	run := s.scheduler.TriggerNow()
	writeSuccessResponse(w, run)
}

// handleGraphEntities returns persisted entities from the graph store.
func (s *Server) handleGraphEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.store.ListEntities(r.Context(), r.URL.Query().Get("type"), parseLimit(r, 100))
	if err != nil {
		writeInternalServerErrorResponse(w, err.Error())
		return
	}
	writeSuccessResponse(w, map[string]any{"entities": entities})
}

// handleGraphRelationships returns persisted relationships.
func (s *Server) handleGraphRelationships(w http.ResponseWriter, r *http.Request) {
	relationships, err := s.store.ListRelationships(r.Context(), parseLimit(r, 100))
	if err != nil {
		writeInternalServerErrorResponse(w, err.Error())
		return
	}
	writeSuccessResponse(w, map[string]any{"relationships": relationships})
}
