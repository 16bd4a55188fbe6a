package archaeologist

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ingest"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/rag"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
)

// Handlers contains the HTTP handlers for the archaeologist service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleIngest handles POST /v1/archaeologist/ingest.
//
// Description:
//
//	Validates the repository URL and starts a background ingestion
//	job. The job clones the repository, parses its source files,
//	builds the knowledge graph, and persists it to the store.
//
// Request Body:
//
//	IngestRequest
//
// Response:
//
//	202 Accepted: IngestResponse with the job ID for status polling
//	400 Bad Request: Missing or unsupported repository URL
func (h *Handlers) HandleIngest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleIngest")

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	jobID, err := h.svc.StartIngestion(req.RepoURL)
	if err != nil {
		logger.Warn("Rejected repository URL", "repo_url", req.RepoURL, "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REPO_URL",
		})
		return
	}

	logger.Info("Ingestion started", "job_id", jobID, "repo_url", req.RepoURL)

	c.JSON(http.StatusAccepted, IngestResponse{
		JobID: jobID,
		State: ingest.JobStatePending,
	})
}

// HandleJob handles GET /v1/archaeologist/ingest/:id.
//
// Description:
//
//	Returns the current state of an ingestion job, including parse
//	counts and graph statistics once available.
//
// Path Parameters:
//
//	id: Job ID returned by HandleIngest (required)
//
// Response:
//
//	200 OK: ingest.Job snapshot
//	404 Not Found: Unknown job ID
func (h *Handlers) HandleJob(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleJob")

	jobID := c.Param("id")
	job, ok := h.svc.Job(jobID)
	if !ok {
		logger.Warn("Unknown job", "job_id", jobID)
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("no ingestion job with id %q", jobID),
			Code:  "JOB_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// HandleQuery handles POST /v1/archaeologist/query.
//
// Description:
//
//	Answers a natural-language question about the ingested codebase.
//	The question is translated to a graph query, executed with a
//	bounded retry loop, and the rows are composed into an answer
//	grounded by entity IDs.
//
// Request Body:
//
//	QueryRequest
//
// Response:
//
//	200 OK: rag.QueryResponse
//	400 Bad Request: Missing or empty question
//	422 Unprocessable Entity: No attempt produced an executable query
//	500 Internal Server Error: Translation or store failure
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Processing query", "question_len", len(req.Question))

	resp, err := h.svc.Query(c.Request.Context(), req.Question)
	if err != nil {
		var exhausted *rag.TranslationExhaustedError
		var queryErr *store.QueryError

		switch {
		case errors.As(err, &exhausted):
			logger.Warn("Translation exhausted",
				"attempts", exhausted.Attempts,
				"last_query", exhausted.LastQuery)
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   err.Error(),
				Code:    "TRANSLATION_EXHAUSTED",
				Details: exhausted.LastQuery,
			})
		case errors.As(err, &queryErr):
			logger.Error("Query execution failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "QUERY_FAILED",
			})
		default:
			logger.Error("Query processing failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "QUERY_FAILED",
			})
		}
		return
	}

	logger.Info("Query answered",
		"attempts", resp.Attempts,
		"grounded_nodes", len(resp.NodeIDs))

	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/archaeologist/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/archaeologist/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:       true,
		Store:       h.svc.StoreName(),
		LLMProvider: h.svc.LLMProvider(),
	})
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
