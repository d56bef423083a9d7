// Package app wires configuration to concrete backends. It is the single
// place that knows which engine names map to which implementations, shared
// by the setup and chat commands.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loomctx/loom/internal/config"
	"github.com/loomctx/loom/internal/embedding"
	"github.com/loomctx/loom/internal/llm"
	"github.com/loomctx/loom/internal/orchestrator"
	"github.com/loomctx/loom/internal/storage"
	chromemstore "github.com/loomctx/loom/internal/storage/chromem"
	memorystore "github.com/loomctx/loom/internal/storage/memory"
	"github.com/loomctx/loom/internal/storage/postgres"
	sqlitestore "github.com/loomctx/loom/internal/storage/sqlite"
)

// Stores bundles the three provider backends built from one configuration.
type Stores struct {
	Personas storage.PersonaStore
	Memories storage.MemoryStore
	Sessions storage.SessionStore
}

// Close closes all stores, returning the first error encountered.
func (s *Stores) Close() error {
	var first error
	for _, c := range []interface{ Close() error }{s.Personas, s.Memories, s.Sessions} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildStores constructs the persona, memory, and session backends selected
// by the configuration.
func BuildStores(cfg *config.Config) (*Stores, error) {
	stores := &Stores{}

	switch cfg.Storage.Engine {
	case "postgres":
		store, err := postgres.NewStore(cfg.Storage.PostgresDSN, cfg.Storage.Dimension)
		if err != nil {
			return nil, fmt.Errorf("app: postgres store: %w", err)
		}
		stores.Personas = store
		stores.Memories = store
	case "chromem":
		store, err := chromemstore.NewStore(cfg.Storage.Dimension)
		if err != nil {
			return nil, fmt.Errorf("app: chromem store: %w", err)
		}
		stores.Personas = store
		stores.Memories = store
	default:
		return nil, fmt.Errorf("app: unknown storage engine %q", cfg.Storage.Engine)
	}

	switch cfg.Session.Engine {
	case "sqlite":
		if dir := filepath.Dir(cfg.Session.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				stores.Close()
				return nil, fmt.Errorf("app: create session directory: %w", err)
			}
		}
		sessions, err := sqlitestore.NewSessionStore(cfg.Session.SQLitePath)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("app: sqlite session store: %w", err)
		}
		stores.Sessions = sessions
	case "memory":
		stores.Sessions = memorystore.NewSessionStore()
	default:
		stores.Close()
		return nil, fmt.Errorf("app: unknown session engine %q", cfg.Session.Engine)
	}

	return stores, nil
}

// BuildEmbedder constructs the configured embedding provider, wrapped with
// dimension checking and, when enabled, an in-process cache.
func BuildEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var base embedding.Embedder

	switch cfg.Embedding.Provider {
	case "ollama":
		client := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.Embedding.OllamaURL,
			Model:   cfg.Embedding.OllamaModel,
			Timeout: 30 * time.Second,
		})
		embedder, err := embedding.NewGeneratorEmbedder(client, cfg.Storage.Dimension)
		if err != nil {
			return nil, fmt.Errorf("app: ollama embedder: %w", err)
		}
		base = embedder
	case "openai":
		client := llm.NewOpenAIEmbeddingClient(llm.OpenAIEmbeddingConfig{
			APIKey:     cfg.LLM.OpenAIAPIKey,
			Dimensions: cfg.Storage.Dimension,
		})
		embedder, err := embedding.NewGeneratorEmbedder(client, cfg.Storage.Dimension)
		if err != nil {
			return nil, fmt.Errorf("app: openai embedder: %w", err)
		}
		base = embedder
	case "hash":
		base = embedding.NewHashEmbedder(cfg.Storage.Dimension)
	default:
		return nil, fmt.Errorf("app: unknown embedding provider %q", cfg.Embedding.Provider)
	}

	checked, err := embedding.NewChecked(base, cfg.Storage.Dimension)
	if err != nil {
		return nil, err
	}

	if cfg.Embedding.CacheSize <= 0 {
		return checked, nil
	}
	cached, err := embedding.NewCached(checked, int64(cfg.Embedding.CacheSize))
	if err != nil {
		return nil, fmt.Errorf("app: embedding cache: %w", err)
	}
	return cached, nil
}

// BuildOrchestrator assembles the turn engine from config-built parts.
// onActivity may be nil.
func BuildOrchestrator(cfg *config.Config, stores *Stores, embedder embedding.Embedder, onActivity func(orchestrator.Event)) (*orchestrator.Orchestrator, error) {
	var template *orchestrator.PromptTemplate
	if cfg.Routing.TemplatePath != "" {
		data, err := os.ReadFile(cfg.Routing.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("app: read prompt template: %w", err)
		}
		template, err = orchestrator.NewPromptTemplate(string(data))
		if err != nil {
			return nil, err
		}
	}

	return orchestrator.New(orchestrator.Config{
		Personas:         stores.Personas,
		Memories:         stores.Memories,
		Sessions:         stores.Sessions,
		Embedder:         embedder,
		SimilarityMargin: cfg.Routing.SimilarityMargin,
		TopKSemantic:     cfg.Routing.TopKSemantic,
		TopKEpisodic:     cfg.Routing.TopKEpisodic,
		Template:         template,
		OnActivity:       onActivity,
	})
}
