// Package archaeologist exposes the code-archaeology service over HTTP:
// repository ingestion into the knowledge graph and natural-language
// questions answered from it.
package archaeologist

import (
	"github.com/archaeology-ai/archaeologist/services/archaeologist/ingest"
)

// ServiceVersion is the archaeologist service version.
const ServiceVersion = "0.1.0"

// IngestRequest is the request body for POST /v1/archaeologist/ingest.
type IngestRequest struct {
	// RepoURL is the git URL of the repository to ingest.
	RepoURL string `json:"repo_url" binding:"required"`
}

// IngestResponse is the response for POST /v1/archaeologist/ingest.
//
// Ingestion runs in the background; poll GET /ingest/:id with the
// returned job ID for progress.
type IngestResponse struct {
	// JobID identifies the background ingestion job.
	JobID string `json:"job_id"`

	// State is the job state at submission time.
	State ingest.JobState `json:"state"`
}

// QueryRequest is the request body for POST /v1/archaeologist/query.
type QueryRequest struct {
	// Question is the natural-language question about the codebase.
	Question string `json:"question" binding:"required"`
}

// HealthResponse is the response for GET /v1/archaeologist/health.
type HealthResponse struct {
	// Status is "healthy" when the service is up.
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/archaeologist/ready.
type ReadyResponse struct {
	// Ready is true if the service can accept requests.
	Ready bool `json:"ready"`

	// Store names the configured graph store backend.
	Store string `json:"store"`

	// LLMProvider names the configured inference backend.
	LLMProvider string `json:"llm_provider"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
