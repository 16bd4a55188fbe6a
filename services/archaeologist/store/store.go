// Package store persists the knowledge graph and executes read queries
// against it.
//
// The package defines the GraphStore contract plus two implementations:
// Neo4jStore for production use against a Cypher-speaking database, and
// MemoryStore for tests and offline development. Both implementations
// are idempotent on writes: upserting the same entities twice leaves the
// graph unchanged, which the ingestion pipeline relies on for re-runs.
package store

import (
	"context"
	"fmt"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/graph"
)

// Row is one result row of a graph query.
//
// Columns preserves the order the query requested; Values maps each
// column name to its value. Values may contain nil for properties the
// matched node does not carry.
type Row struct {
	// Columns lists the column names in query order.
	Columns []string `json:"columns"`

	// Values maps column name to value.
	Values map[string]any `json:"values"`
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// QueryError reports a query the store rejected or failed to execute.
//
// The query engine's retry loop keys off this type: a QueryError is
// recoverable (the translator gets another attempt with the diagnostic
// in hand), while any other error aborts the request.
type QueryError struct {
	// Query is the query text that failed.
	Query string

	// Message is the store's diagnostic, suitable for feeding back to
	// the translator.
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s", e.Message)
}

// GraphStore is the persistence contract for the knowledge graph.
//
// Description:
//
//	GraphStore hides the database behind the four operations the rest of
//	the system needs: schema setup, idempotent entity and relationship
//	upserts, and read-only query execution. Implementations must be safe
//	for concurrent use.
//
// Invariants upheld by all implementations:
//   - UpsertEntities is idempotent on entity ID: re-upserting refreshes
//     properties, never duplicates nodes
//   - UpsertRelationships silently skips edges whose endpoints are not
//     present (referential integrity)
//   - Query returns rows with deterministic column order
type GraphStore interface {
	// EnsureSchema creates uniqueness constraints and indexes.
	// Idempotent; safe to call on every startup.
	EnsureSchema(ctx context.Context) error

	// UpsertEntities writes entities as graph nodes, merging on ID.
	UpsertEntities(ctx context.Context, entities []ast.Entity) error

	// UpsertRelationships writes edges between existing nodes, merging
	// on (source, type, target). Edges referencing missing nodes are
	// skipped.
	UpsertRelationships(ctx context.Context, rels []graph.Relationship) error

	// Query executes a read-only Cypher query and returns all rows.
	// Execution failures are reported as *QueryError.
	Query(ctx context.Context, query string) ([]Row, error)

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}
