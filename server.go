package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/Mimir-AIP/OntoGraph-Go/pkg/config"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/embedding"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/graphstore"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/registry"
	"github.com/Mimir-AIP/OntoGraph-Go/pkg/scheduler"
	AI "github.com/Mimir-AIP/OntoGraph-Go/pipelines/AI"
	fusion "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Fusion"
	ontology "github.com/Mimir-AIP/OntoGraph-Go/pipelines/Ontology"
	"github.com/Mimir-AIP/OntoGraph-Go/utils"
)

// Server wires the extraction pipeline, identity registry, fusion engine,
// and persistence behind the HTTP API.
type Server struct {
	router    *mux.Router
	config    *config.Config
	registry  *registry.IdentityRegistry
	extractor *ontology.OntologyExtractor
	scheduler *scheduler.FusionScheduler
	store     graphstore.GraphStore

	ontologyMu sync.RWMutex
	ontology   *ontology.DomainOntology
	engine     *fusion.FusionEngine
}

// NewServer creates a server from configuration. The domain ontology is
// loaded from ONTOLOGY_PATH when set; otherwise one must be uploaded via
// the API before extraction requests succeed.
func NewServer(cfg *config.Config) (*Server, error) {
	logger := utils.GetLogger()

	backends, err := buildExtractionBackends(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	var validator *ontology.TheoryValidator
	if embedder != nil {
		validator = ontology.NewTheoryValidator(embedder)
	}

	reg := registry.NewIdentityRegistry()
	client := ontology.NewExtractionClient(backends, cfg.ExtractionTimeout)
	extractor := ontology.NewOntologyExtractor(client, reg, embedder, validator)

	s := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		registry:  reg,
		extractor: extractor,
	}

	if cfg.OntologyPath != "" {
		ont, err := ontology.LoadOntologyFromFile(cfg.OntologyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load ontology: %w", err)
		}
		s.ontology = ont
		logger.Info("loaded domain ontology",
			utils.Component("server"),
			utils.String("domain", ont.DomainName),
			utils.Int("entity_types", len(ont.EntityTypes)))
	}

	s.engine = fusion.NewFusionEngine(cfg.SimilarityThreshold, s.ontology)

	if cfg.DatabasePath != "" {
		store, err := graphstore.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open graph store: %w", err)
		}
		s.store = store
		logger.Info("graph persistence enabled",
			utils.Component("server"),
			utils.String("path", cfg.DatabasePath))
	} else {
		s.store = graphstore.NewMemoryStore()
	}

	s.scheduler = scheduler.NewFusionScheduler(s.currentEngine, reg, s.store, fusion.ConflictStrategy(cfg.FusionStrategy))
	if cfg.FusionSchedule != "" {
		if err := s.scheduler.Start(cfg.FusionSchedule); err != nil {
			return nil, err
		}
	}

	s.setupRoutes()
	return s, nil
}

// buildExtractionBackends assembles the ordered LLM backend chain from
// configuration. An empty chain is valid; extraction then runs on the
// pattern fallback.
func buildExtractionBackends(cfg *config.Config) ([]AI.LLMClient, error) {
	if cfg.ExtractionBackends == "" {
		return nil, nil
	}

	var backends []AI.LLMClient
	for _, name := range strings.Split(cfg.ExtractionBackends, ",") {
		provider := AI.LLMProvider(strings.TrimSpace(name))
		clientCfg := AI.LLMClientConfig{Provider: provider}
		switch provider {
		case AI.ProviderOpenAI:
			clientCfg.APIKey = cfg.OpenAIAPIKey
		case AI.ProviderAnthropic:
			clientCfg.APIKey = cfg.AnthropicAPIKey
		}
		client, err := AI.NewLLMClient(clientCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure extraction backend %q: %w", name, err)
		}
		backends = append(backends, client)
	}
	return backends, nil
}

// buildEmbedder selects the embedding service, or nil when disabled.
func buildEmbedder(cfg *config.Config) (embedding.EmbeddingService, error) {
	switch cfg.EmbeddingProvider {
	case "":
		return nil, nil
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
	case "mock":
		return embedding.NewMockEmbedder(384), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// currentOntology returns the active domain ontology, or nil.
func (s *Server) currentOntology() *ontology.DomainOntology {
	s.ontologyMu.RLock()
	defer s.ontologyMu.RUnlock()
	return s.ontology
}

// currentEngine returns the fusion engine bound to the active ontology.
func (s *Server) currentEngine() *fusion.FusionEngine {
	s.ontologyMu.RLock()
	defer s.ontologyMu.RUnlock()
	return s.engine
}

// setOntology swaps the active ontology and rebuilds the fusion engine so
// consistency scoring follows the new domain.
func (s *Server) setOntology(ont *ontology.DomainOntology) {
	s.ontologyMu.Lock()
	defer s.ontologyMu.Unlock()
	s.ontology = ont
	s.engine = fusion.NewFusionEngine(s.config.SimilarityThreshold, ont)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownComplete := make(chan struct{})

	go func() {
		defer close(shutdownComplete)

		if s.scheduler != nil && s.config.FusionSchedule != "" {
			if err := s.scheduler.Stop(); err != nil {
				utils.GetLogger().Warn("error stopping fusion scheduler",
					utils.Component("server"), utils.Error(err))
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				utils.GetLogger().Warn("error closing graph store",
					utils.Component("server"), utils.Error(err))
			}
		}
	}()

	select {
	case <-shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
