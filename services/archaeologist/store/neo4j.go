package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/graph"
)

// Default connection settings, overridable via environment.
const (
	defaultNeo4jURI      = "bolt://localhost:7687"
	defaultNeo4jUsername = "neo4j"

	// upsertBatchSize bounds the number of rows sent per UNWIND statement.
	upsertBatchSize = 500
)

// Neo4jConfig holds connection settings for a Neo4j database.
type Neo4jConfig struct {
	// URI is the bolt URI, e.g. "bolt://localhost:7687".
	URI string

	// Username for basic auth.
	Username string

	// Password for basic auth.
	Password string

	// Database is the target database name. Empty selects the server default.
	Database string
}

// Neo4jConfigFromEnv builds a Neo4jConfig from environment variables.
//
// Reads NEO4J_URI, NEO4J_USERNAME, NEO4J_PASSWORD, and NEO4J_DATABASE,
// falling back to localhost defaults where unset.
func Neo4jConfigFromEnv() Neo4jConfig {
	cfg := Neo4jConfig{
		URI:      os.Getenv("NEO4J_URI"),
		Username: os.Getenv("NEO4J_USERNAME"),
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: os.Getenv("NEO4J_DATABASE"),
	}
	if cfg.URI == "" {
		cfg.URI = defaultNeo4jURI
	}
	if cfg.Username == "" {
		cfg.Username = defaultNeo4jUsername
	}
	return cfg
}

// Neo4jStore implements GraphStore against a Neo4j database.
//
// Description:
//
//	Neo4jStore wraps the official Go driver. Writes go through managed
//	write transactions using batched UNWIND + MERGE statements keyed on
//	entity ID, so ingestion re-runs are idempotent. Reads go through
//	managed read transactions and flatten nodes and relationships into
//	plain property maps.
//
// Thread Safety:
//
//	Neo4jStore is safe for concurrent use; the underlying driver pools
//	connections internally.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
//
// Inputs:
//   - ctx: Context bounding the connectivity check.
//   - cfg: Connection settings. See Neo4jConfigFromEnv.
//
// Outputs:
//   - *Neo4jStore: Connected store, never nil on success.
//   - error: Non-nil when the driver cannot be created or the server is
//     unreachable.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	slog.Info("connected to neo4j",
		slog.String("uri", cfg.URI),
		slog.String("database", cfg.Database))

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
	}, nil
}

// schemaStatements are the uniqueness constraints for graph nodes.
// Each implicitly creates a backing index on id.
var schemaStatements = []string{
	"CREATE CONSTRAINT file_id IF NOT EXISTS FOR (f:File) REQUIRE f.id IS UNIQUE",
	"CREATE CONSTRAINT class_id IF NOT EXISTS FOR (c:Class) REQUIRE c.id IS UNIQUE",
	"CREATE CONSTRAINT function_id IF NOT EXISTS FOR (fn:Function) REQUIRE fn.id IS UNIQUE",
}

// EnsureSchema creates uniqueness constraints. Idempotent.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

// upsertStatements maps each entity kind to its MERGE statement.
var upsertStatements = map[ast.EntityKind]string{
	ast.EntityKindFile: `UNWIND $rows AS row
MERGE (f:File {id: row.id})
SET f.path = row.path, f.language = row.language`,
	ast.EntityKindClass: `UNWIND $rows AS row
MERGE (c:Class {id: row.id})
SET c.name = row.name, c.file_path = row.file_path,
    c.start_line = row.start_line, c.end_line = row.end_line`,
	ast.EntityKindFunction: `UNWIND $rows AS row
MERGE (fn:Function {id: row.id})
SET fn.name = row.name, fn.args = row.args, fn.docstring = row.docstring,
    fn.file_path = row.file_path, fn.start_line = row.start_line, fn.end_line = row.end_line`,
}

// UpsertEntities writes entities as nodes, merging on ID.
//
// Entities are grouped by kind and written in batches of upsertBatchSize
// within a single managed write transaction per kind.
func (s *Neo4jStore) UpsertEntities(ctx context.Context, entities []ast.Entity) error {
	ctx, span := tracer.Start(ctx, "store.UpsertEntities",
		trace.WithAttributes(attribute.Int("entities", len(entities))))
	defer span.End()

	start := time.Now()

	byKind := make(map[ast.EntityKind][]map[string]any)
	for i := range entities {
		e := &entities[i]
		byKind[e.Kind] = append(byKind[e.Kind], entityRow(e))
	}

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for kind, rows := range byKind {
		stmt, ok := upsertStatements[kind]
		if !ok {
			return fmt.Errorf("upsert entities: no statement for kind %s", kind)
		}

		for len(rows) > 0 {
			batch := rows
			if len(batch) > upsertBatchSize {
				batch = rows[:upsertBatchSize]
			}
			rows = rows[len(batch):]

			_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
				return tx.Run(ctx, stmt, map[string]any{"rows": batch})
			})
			if err != nil {
				return fmt.Errorf("upsert %s entities: %w", kind, err)
			}
		}
	}

	recordWriteMetrics(ctx, "entities", len(entities), time.Since(start))
	return nil
}

// entityRow flattens an entity into the property map its MERGE statement expects.
func entityRow(e *ast.Entity) map[string]any {
	switch e.Kind {
	case ast.EntityKindFile:
		return map[string]any{
			"id":       e.ID,
			"path":     e.Path,
			"language": e.Language,
		}
	case ast.EntityKindClass:
		return map[string]any{
			"id":         e.ID,
			"name":       e.Name,
			"file_path":  e.Path,
			"start_line": e.StartLine,
			"end_line":   e.EndLine,
		}
	default:
		return map[string]any{
			"id":         e.ID,
			"name":       e.Name,
			"args":       e.Signature,
			"docstring":  e.Docstring,
			"file_path":  e.Path,
			"start_line": e.StartLine,
			"end_line":   e.EndLine,
		}
	}
}

// relationshipStatements maps each edge type to its MATCH-then-MERGE
// statement. Matching both endpoints first means edges whose nodes are
// missing simply produce no rows, preserving referential integrity.
var relationshipStatements = map[graph.RelationshipType]string{
	graph.RelationshipContains: `UNWIND $rows AS row
MATCH (a {id: row.source_id})
MATCH (b {id: row.target_id})
MERGE (a)-[:CONTAINS]->(b)`,
	graph.RelationshipDefines: `UNWIND $rows AS row
MATCH (a:Class {id: row.source_id})
MATCH (b:Function {id: row.target_id})
MERGE (a)-[:DEFINES]->(b)`,
	graph.RelationshipCalls: `UNWIND $rows AS row
MATCH (a:Function {id: row.source_id})
MATCH (b:Function {id: row.target_id})
MERGE (a)-[:CALLS]->(b)`,
}

// UpsertRelationships writes edges, merging on (source, type, target).
func (s *Neo4jStore) UpsertRelationships(ctx context.Context, rels []graph.Relationship) error {
	ctx, span := tracer.Start(ctx, "store.UpsertRelationships",
		trace.WithAttributes(attribute.Int("relationships", len(rels))))
	defer span.End()

	start := time.Now()

	byType := make(map[graph.RelationshipType][]map[string]any)
	for _, rel := range rels {
		if err := rel.Validate(); err != nil {
			return fmt.Errorf("upsert relationships: %w", err)
		}
		byType[rel.Type] = append(byType[rel.Type], map[string]any{
			"source_id": rel.SourceID,
			"target_id": rel.TargetID,
		})
	}

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for typ, rows := range byType {
		stmt := relationshipStatements[typ]

		for len(rows) > 0 {
			batch := rows
			if len(batch) > upsertBatchSize {
				batch = rows[:upsertBatchSize]
			}
			rows = rows[len(batch):]

			_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
				return tx.Run(ctx, stmt, map[string]any{"rows": batch})
			})
			if err != nil {
				return fmt.Errorf("upsert %s relationships: %w", typ, err)
			}
		}
	}

	recordWriteMetrics(ctx, "relationships", len(rels), time.Since(start))
	return nil
}

// Query executes a read-only Cypher query and returns all rows.
//
// Node and relationship values are flattened to their property maps so
// callers never see driver types. Execution failures come back as
// *QueryError carrying the server diagnostic, which the query engine
// feeds to the translator on retry.
func (s *Neo4jStore) Query(ctx context.Context, query string) ([]Row, error) {
	ctx, span := tracer.Start(ctx, "store.Query")
	defer span.End()

	start := time.Now()

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		var rows []Row
		for result.Next(ctx) {
			record := result.Record()
			row := Row{
				Columns: record.Keys,
				Values:  make(map[string]any, len(record.Keys)),
			}
			for i, key := range record.Keys {
				row.Values[key] = flattenValue(record.Values[i])
			}
			rows = append(rows, row)
		}
		return rows, result.Err()
	})
	if err != nil {
		recordQueryMetrics(ctx, false, time.Since(start))
		return nil, classifyQueryFailure(query, err)
	}

	recordQueryMetrics(ctx, true, time.Since(start))
	return rows.([]Row), nil
}

// classifyQueryFailure separates the caller's own cancellation from a
// genuine query rejection. Only the latter becomes a *QueryError; the
// retry loop treats QueryError as correctable, and re-translating a
// canceled question would burn its retry budget on a dead request.
func classifyQueryFailure(query string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &QueryError{Query: query, Message: err.Error()}
}

// flattenValue converts driver-specific values to plain Go values.
func flattenValue(v any) any {
	switch val := v.(type) {
	case dbtype.Node:
		return val.Props
	case dbtype.Relationship:
		return val.Props
	case []any:
		flattened := make([]any, len(val))
		for i, item := range val {
			flattened[i] = flattenValue(item)
		}
		return flattened
	default:
		return v
	}
}

// Close releases the driver's connection pool.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// Compile-time interface compliance check.
var _ GraphStore = (*Neo4jStore)(nil)
