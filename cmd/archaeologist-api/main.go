// Command archaeologist-api starts a standalone archaeologist API server.
//
// Usage:
//
//	go run ./cmd/archaeologist-api
//	go run ./cmd/archaeologist-api -port 9090
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/archaeologist/health
//
//	# Start ingesting a repository
//	curl -X POST http://localhost:8080/v1/archaeologist/ingest \
//	  -H "Content-Type: application/json" \
//	  -d '{"repo_url": "https://github.com/org/repo"}'
//
//	# Poll the ingestion job
//	curl http://localhost:8080/v1/archaeologist/ingest/YOUR_JOB_ID
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/archaeologist/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "What classes are in the codebase?"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/archaeology-ai/archaeologist/pkg/config"
	"github.com/archaeology-ai/archaeologist/pkg/logging"
	"github.com/archaeology-ai/archaeologist/services/archaeologist"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *debug {
		cfg.Server.Debug = true
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "api",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	svc, err := archaeologist.NewService(ctx, cfg)
	if err != nil {
		slog.Error("failed to start service", "error", err)
		os.Exit(1)
	}
	defer svc.Close(context.Background())

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Debug {
		router.Use(gin.Logger())
	}

	handlers := archaeologist.NewHandlers(svc)
	v1 := router.Group("/v1")
	archaeologist.RegisterRoutes(v1, handlers)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("archaeologist API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
