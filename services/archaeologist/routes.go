package archaeologist

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all archaeologist routes with the router.
//
// Description:
//
//	Registers all /v1/archaeologist/* endpoints with the given Gin
//	router group. The router group should already have any required
//	middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/archaeologist/ingest - Start ingesting a repository
//	GET  /v1/archaeologist/ingest/:id - Poll an ingestion job
//	POST /v1/archaeologist/query - Ask a question about the codebase
//	GET  /v1/archaeologist/health - Health check
//	GET  /v1/archaeologist/ready - Readiness check
//
// Example:
//
//	svc, err := archaeologist.NewService(ctx, cfg)
//	handlers := archaeologist.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	archaeologist.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	arch := rg.Group("/archaeologist")
	{
		// Ingestion
		arch.POST("/ingest", handlers.HandleIngest)
		arch.GET("/ingest/:id", handlers.HandleJob)

		// Question answering
		arch.POST("/query", handlers.HandleQuery)

		// Health checks
		arch.GET("/health", handlers.HandleHealth)
		arch.GET("/ready", handlers.HandleReady)
	}
}
