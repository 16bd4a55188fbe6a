package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archaeology-ai/archaeologist/pkg/config"
	"github.com/archaeology-ai/archaeologist/pkg/logging"
	"github.com/archaeology-ai/archaeologist/services/archaeologist"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
)

// --- Global Command Variables ---
var (
	configPath string
	mockMode   bool
	jsonOutput bool
	servePort  int

	cfg    config.Config
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "archaeologist",
		Short: "A cli to excavate the structure of a codebase and question it",
		Long: `Archaeologist parses a repository into a knowledge graph of files,
classes, and functions, then answers natural-language questions about
it by translating them into graph queries.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if mockMode {
				cfg.LLM.Provider = config.ProviderMock
			}

			logger = logging.New(logging.Config{
				Level:   logging.ParseLevel(cfg.Logging.Level),
				LogDir:  cfg.Logging.Dir,
				Service: "cli",
				JSON:    cfg.Logging.JSON,
			})
			slog.SetDefault(logger.Slog())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Close()
			}
		},
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [path or git URL]",
		Short: "Parse a repository into the knowledge graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest, // Defined in cmd_ingest.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a natural-language question about the ingested codebase",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk, // Defined in cmd_ask.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the archaeologist HTTP API server",
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().BoolVar(&mockMode, "mock", false,
		"Use the deterministic translation path instead of an LLM backend")

	ingestCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job result as JSON")
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full response as JSON")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
}

// newService builds the service from the loaded configuration.
//
// The CLI falls back to the in-memory store when Neo4j is unreachable
// in mock mode, so `ingest --mock` and `ask --mock` work offline. The
// in-memory graph does not outlive the process, which is fine for the
// deterministic demo path but useless across invocations; anything
// real needs the database.
func newService(ctx context.Context) (*archaeologist.Service, error) {
	svc, err := archaeologist.NewService(ctx, cfg)
	if err == nil {
		return svc, nil
	}

	if cfg.LLM.Provider == config.ProviderMock {
		slog.Warn("graph store unreachable, using in-memory store", "error", err)
		return archaeologist.NewService(ctx, cfg,
			archaeologist.WithStore(store.NewMemoryStore(), "memory"))
	}
	return nil, err
}

// isGitURL reports whether the ingest argument names a remote
// repository rather than a local path.
func isGitURL(arg string) bool {
	for _, prefix := range []string{"https://", "http://", "git@", "ssh://"} {
		if strings.HasPrefix(arg, prefix) {
			return true
		}
	}
	return false
}
