package main

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.errorRecoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.versionMiddleware("v1"))

	// Ontology management
	api.HandleFunc("/ontology", s.handleGetOntology).Methods("GET")
	api.HandleFunc("/ontology", s.handleSetOntology).Methods("POST")

	// Extraction
	api.HandleFunc("/extract", s.handleExtract).Methods("POST")

	// Registry views
	api.HandleFunc("/entities", s.handleListEntities).Methods("GET")
	api.HandleFunc("/mentions", s.handleListMentions).Methods("GET")

	// Fusion
	api.HandleFunc("/fuse", s.handleFuse).Methods("POST")
	api.HandleFunc("/fusion/status", s.handleFusionStatus).Methods("GET")
	api.HandleFunc("/fusion/trigger", s.handleFusionTrigger).Methods("POST")

	// Persisted graph
	api.HandleFunc("/graph/entities", s.handleGraphEntities).Methods("GET")
	api.HandleFunc("/graph/relationships", s.handleGraphRelationships).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "endpoint not found")
	})
}
