package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/archaeology-ai/archaeologist/services/archaeologist"
)

// runServe starts the HTTP API and blocks until interrupted.
func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close(context.Background())

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

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

	errCh := make(chan error, 1)
	go func() {
		slog.Info("archaeologist API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
