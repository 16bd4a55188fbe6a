package archaeologist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archaeology-ai/archaeologist/pkg/config"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/ingest"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/rag"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
	"github.com/archaeology-ai/archaeologist/services/llm"
)

// Option configures a Service during construction.
type Option func(*Service)

// WithStore overrides the configured graph store. The name appears in
// readiness responses and logs.
func WithStore(st store.GraphStore, name string) Option {
	return func(s *Service) {
		s.store = st
		s.storeName = name
	}
}

// WithLLMClient overrides the configured inference backend. A nil
// client selects the deterministic translation path.
func WithLLMClient(client llm.LLMClient) Option {
	return func(s *Service) {
		s.client = client
		s.clientSet = true
	}
}

// Service assembles the full pipeline: graph store, inference backend,
// ingestion, and question answering.
//
// Thread Safety:
//
//	Service is safe for concurrent use after construction.
type Service struct {
	store     store.GraphStore
	storeName string

	client      llm.LLMClient
	clientSet   bool
	llmProvider string

	ingest *ingest.Service
	rag    *rag.Service
}

// NewService builds a Service from configuration.
//
// Description:
//
//	Connects the graph store (Neo4j by default, or whatever WithStore
//	supplies), selects the inference backend per cfg.LLM.Provider, and
//	wires the ingestion and query services on top. The mock provider
//	uses a nil backend, which runs the deterministic translation path.
//
// Outputs:
//   - *Service: Ready-to-serve service.
//   - error: Non-nil when the store cannot be reached or the backend
//     cannot be constructed.
func NewService(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		llmProvider: cfg.LLM.Provider,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		st, err := store.NewNeo4jStore(ctx, store.Neo4jConfig{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("connect graph store: %w", err)
		}
		s.store = st
		s.storeName = "neo4j"
	}

	if !s.clientSet {
		client, err := newLLMClient(cfg.LLM)
		if err != nil {
			return nil, err
		}
		s.client = client
	}

	var ingestOpts []ingest.ServiceOption
	if cfg.Ingest.Workers > 0 {
		ingestOpts = append(ingestOpts, ingest.WithWorkers(cfg.Ingest.Workers))
	}
	if cfg.Ingest.WorkDir != "" {
		ingestOpts = append(ingestOpts, ingest.WithWorkDir(cfg.Ingest.WorkDir))
	}

	s.ingest = ingest.NewService(s.store, ingestOpts...)
	s.rag = rag.NewService(s.store, s.client)

	slog.Info("archaeologist service ready",
		slog.String("store", s.storeName),
		slog.String("llm_provider", s.llmProvider))

	return s, nil
}

// newLLMClient builds the backend named by the configuration. The mock
// provider returns nil, which the query service treats as
// deterministic-only mode.
func newLLMClient(cfg config.LLMConfig) (llm.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		client, err := llm.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel)
		if err != nil {
			return nil, fmt.Errorf("configure ollama backend: %w", err)
		}
		return client, nil
	case config.ProviderOpenAI:
		client, err := llm.NewOpenAIClient(cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("configure openai backend: %w", err)
		}
		return client, nil
	case config.ProviderMock:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// StartIngestion launches a background ingestion of the repository.
func (s *Service) StartIngestion(repoURL string) (string, error) {
	return s.ingest.StartIngestion(repoURL)
}

// Job returns a snapshot of the ingestion job with the given ID.
func (s *Service) Job(id string) (ingest.Job, bool) {
	return s.ingest.Job(id)
}

// IngestDirectory ingests a local checkout synchronously.
func (s *Service) IngestDirectory(ctx context.Context, root string) (ingest.Job, error) {
	return s.ingest.IngestDirectory(ctx, root)
}

// IngestRepository clones and ingests a repository synchronously.
func (s *Service) IngestRepository(ctx context.Context, repoURL string) (ingest.Job, error) {
	return s.ingest.IngestRepository(ctx, repoURL)
}

// Query answers a natural-language question from the graph.
func (s *Service) Query(ctx context.Context, question string) (*rag.QueryResponse, error) {
	return s.rag.ProcessQuery(ctx, question)
}

// StoreName names the graph store backend in use.
func (s *Service) StoreName() string {
	return s.storeName
}

// LLMProvider names the configured inference backend.
func (s *Service) LLMProvider() string {
	return s.llmProvider
}

// Close releases the store connection.
func (s *Service) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}
