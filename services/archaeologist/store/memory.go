package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/graph"
)

// MemoryStore implements GraphStore entirely in memory.
//
// Description:
//
//	MemoryStore backs tests, the CLI, and development setups where no
//	Neo4j instance is available. Writes honor the same contract as
//	Neo4jStore: upserts merge on entity ID and edges referencing missing
//	nodes are skipped. Reads support the single-node query shape the
//	deterministic translator emits:
//
//	    MATCH (v:Label) RETURN v.prop, v.prop2 [LIMIT n]
//	    MATCH (v) RETURN v.prop [LIMIT n]
//
//	Anything else - multi-node patterns, WHERE clauses, aggregations -
//	comes back as *QueryError, which exercises the same retry path a
//	real store failure would.
//
// Thread Safety:
//
//	MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	// entities maps entity ID to entity.
	entities map[string]ast.Entity

	// order preserves first-insertion order of entity IDs so query
	// results are deterministic across runs.
	order []string

	// rels de-duplicates edges on (source, type, target).
	rels map[relKey]graph.Relationship
}

type relKey struct {
	sourceID string
	targetID string
	typ      graph.RelationshipType
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]ast.Entity),
		rels:     make(map[relKey]graph.Relationship),
	}
}

// EnsureSchema is a no-op for the in-memory store.
func (s *MemoryStore) EnsureSchema(ctx context.Context) error {
	return nil
}

// UpsertEntities merges entities on ID.
func (s *MemoryStore) UpsertEntities(ctx context.Context, entities []ast.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("upsert entities: %w", err)
		}
		if _, exists := s.entities[e.ID]; !exists {
			s.order = append(s.order, e.ID)
		}
		s.entities[e.ID] = e
	}

	return nil
}

// UpsertRelationships merges edges on (source, type, target). Edges
// whose endpoints are not present are skipped.
func (s *MemoryStore) UpsertRelationships(ctx context.Context, rels []graph.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rel := range rels {
		if err := rel.Validate(); err != nil {
			return fmt.Errorf("upsert relationships: %w", err)
		}

		if _, ok := s.entities[rel.SourceID]; !ok {
			continue
		}
		if _, ok := s.entities[rel.TargetID]; !ok {
			continue
		}

		s.rels[relKey{rel.SourceID, rel.TargetID, rel.Type}] = rel
	}

	return nil
}

// EntityCount returns the number of stored entities.
func (s *MemoryStore) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// RelationshipCount returns the number of stored edges.
func (s *MemoryStore) RelationshipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rels)
}

// HasRelationship reports whether the given edge exists.
func (s *MemoryStore) HasRelationship(sourceID, targetID string, typ graph.RelationshipType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rels[relKey{sourceID, targetID, typ}]
	return ok
}

// singleNodeQueryRe matches the query shape the deterministic translator
// emits: a single node pattern with optional label, a RETURN list of
// variable.property items, and an optional LIMIT.
var singleNodeQueryRe = regexp.MustCompile(
	`(?is)^\s*MATCH\s*\(\s*(\w+)\s*(?::\s*(\w+)\s*)?\)\s*RETURN\s+(.+?)(?:\s+LIMIT\s+(\d+))?\s*;?\s*$`)

// Query executes a supported query shape against the stored entities.
func (s *MemoryStore) Query(ctx context.Context, query string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := singleNodeQueryRe.FindStringSubmatch(query)
	if m == nil {
		return nil, &QueryError{
			Query:   query,
			Message: "unsupported query shape: expected MATCH (v[:Label]) RETURN v.prop[, ...] [LIMIT n]",
		}
	}

	variable, label, returnList, limitStr := m[1], m[2], m[3], m[4]

	columns, err := parseReturnList(query, variable, returnList)
	if err != nil {
		return nil, err
	}

	var kindFilter ast.EntityKind
	if label != "" {
		kindFilter = kindForLabel(label)
		if kindFilter == ast.EntityKindUnknown {
			return nil, &QueryError{
				Query:   query,
				Message: fmt.Sprintf("unknown label %q: expected File, Class, or Function", label),
			}
		}
	}

	limit := -1
	if limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Row, 0)
	for _, id := range s.order {
		if limit >= 0 && len(rows) >= limit {
			break
		}

		e := s.entities[id]
		if label != "" && e.Kind != kindFilter {
			continue
		}

		row := Row{
			Columns: columns,
			Values:  make(map[string]any, len(columns)),
		}
		for _, col := range columns {
			prop := strings.TrimPrefix(col, variable+".")
			row.Values[col] = entityProp(&e, prop)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// parseReturnList validates and splits the RETURN clause into column names.
func parseReturnList(query, variable, returnList string) ([]string, error) {
	items := strings.Split(returnList, ",")
	columns := make([]string, 0, len(items))

	for _, item := range items {
		col := strings.TrimSpace(item)
		if !strings.HasPrefix(col, variable+".") {
			return nil, &QueryError{
				Query:   query,
				Message: fmt.Sprintf("unsupported return item %q: expected %s.property", col, variable),
			}
		}
		columns = append(columns, col)
	}

	if len(columns) == 0 {
		return nil, &QueryError{Query: query, Message: "empty RETURN clause"}
	}

	return columns, nil
}

// kindForLabel maps a node label to its entity kind.
func kindForLabel(label string) ast.EntityKind {
	switch label {
	case "File":
		return ast.EntityKindFile
	case "Class":
		return ast.EntityKindClass
	case "Function":
		return ast.EntityKindFunction
	default:
		return ast.EntityKindUnknown
	}
}

// entityProp resolves a graph property name against an entity, mirroring
// the property schema Neo4jStore writes. Unknown properties resolve to
// nil, matching Cypher's null semantics for absent properties.
func entityProp(e *ast.Entity, prop string) any {
	switch prop {
	case "id":
		return e.ID
	case "path":
		if e.Kind == ast.EntityKindFile {
			return e.Path
		}
		return nil
	case "file_path":
		if e.Kind != ast.EntityKindFile {
			return e.Path
		}
		return nil
	case "language":
		if e.Kind == ast.EntityKindFile {
			return e.Language
		}
		return nil
	case "name":
		if e.Kind != ast.EntityKindFile {
			return e.Name
		}
		return nil
	case "args":
		if e.Kind == ast.EntityKindFunction {
			return e.Signature
		}
		return nil
	case "docstring":
		if e.Kind == ast.EntityKindFunction {
			return e.Docstring
		}
		return nil
	case "start_line":
		if e.Kind != ast.EntityKindFile {
			return e.StartLine
		}
		return nil
	case "end_line":
		if e.Kind != ast.EntityKindFile {
			return e.EndLine
		}
		return nil
	default:
		return nil
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Compile-time interface compliance check.
var _ GraphStore = (*MemoryStore)(nil)
