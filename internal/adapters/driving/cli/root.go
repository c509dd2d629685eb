// Package cli implements the command-line driving adapter using cobra.
// Commands talk to the core services through the driving ports; all
// wiring of adapters to services happens here.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra/internal/adapters/driven/config/file"
	"github.com/custodia-labs/vectra/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/vectra/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/vectra/internal/adapters/driven/index/flat"
	"github.com/custodia-labs/vectra/internal/adapters/driven/rerank/noop"
	"github.com/custodia-labs/vectra/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/vectra/internal/core/domain"
	"github.com/custodia-labs/vectra/internal/core/ports/driven"
	"github.com/custodia-labs/vectra/internal/core/ports/driving"
	"github.com/custodia-labs/vectra/internal/core/services"
	"github.com/custodia-labs/vectra/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services used by the commands. Populated by initServices before any
// command runs; commands must nil-check before use.
var (
	storeService    driving.Store
	retriever       driving.Retriever
	documentService driving.DocumentService
	auditLog        driven.AuditLog
	configStore     driven.ConfigStore
	metadataStore   *sqlite.Store
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vectra",
	Short: "Local document vector store",
	Long: `Vectra stores documents alongside their embeddings and retrieves
them by semantic similarity, filtered by ordered tag lists.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Name() == "version" {
			return nil
		}
		return initServices()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// initServices wires the driven adapters into the core services based
// on the TOML configuration.
func initServices() error {
	if storeService != nil {
		return nil
	}

	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	configStore = cfg

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	dataDir := cfg.GetString("storage.data_dir")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".vectra", "data")
	}

	store, err := services.NewStoreService(services.StoreConfig{
		Dir:            filepath.Join(dataDir, "index"),
		Embedder:       embedder,
		Index:          flat.New(embedder.Dimensions()),
		DedupThreshold: float32(cfg.GetFloat("store.dedup_threshold")),
		RebuildWorkers: cfg.GetInt("store.rebuild_workers"),
	})
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	storeService = store

	meta, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	metadataStore = meta
	auditLog = meta.AuditLog()

	documentService = services.NewDocumentService(storeService, auditLog)

	defaultTags := domain.Tags(cfg.GetStringSlice("retrieval.default_tags"))
	retriever = services.NewRetrievalService(storeService, noop.NewReranker(), defaultTags)

	return nil
}

// buildEmbedder constructs the embedding service selected by the
// embedding.provider config key. Defaults to Ollama.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString("embedding.provider")
	switch provider {
	case "", "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		}), nil
	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     cfg.GetString("embedding.api_key"),
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
		if err != nil {
			return nil, fmt.Errorf("configuring openai embedder: %w", err)
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, provider)
	}
}

// closeServices flushes queued saves and closes open handles.
func closeServices() {
	if storeService != nil {
		if err := storeService.Close(); err != nil {
			logger.Warn("Closing vector store: %v", err)
		}
	}
	if metadataStore != nil {
		if err := metadataStore.Close(); err != nil {
			logger.Warn("Closing metadata store: %v", err)
		}
	}
}
