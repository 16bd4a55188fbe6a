// Package graph derives knowledge-graph relationships from parsed
// source entities.
//
// The graph package is the second stage of the ingestion pipeline: it
// consumes the per-file FileResult values produced by the ast package
// and derives CONTAINS, DEFINES, and CALLS relationships with
// repository-wide visibility. It never talks to a database; persisting
// the result is the store package's job.
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
)

// RelationshipType identifies the semantic of a graph edge.
type RelationshipType int

const (
	// RelationshipUnknown indicates an unrecognized relationship.
	RelationshipUnknown RelationshipType = iota

	// RelationshipContains links a File to a top-level Class or Function
	// defined directly in it.
	RelationshipContains

	// RelationshipDefines links a Class to a Function defined in its body.
	RelationshipDefines

	// RelationshipCalls links a caller Function to a callee Function.
	// Self-loops are permitted: a recursive function calls itself.
	RelationshipCalls
)

// relationshipTypeNames maps RelationshipType values to their edge labels.
var relationshipTypeNames = map[RelationshipType]string{
	RelationshipUnknown:  "UNKNOWN",
	RelationshipContains: "CONTAINS",
	RelationshipDefines:  "DEFINES",
	RelationshipCalls:    "CALLS",
}

// String returns the edge label for the RelationshipType.
func (t RelationshipType) String() string {
	if name, ok := relationshipTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON implements json.Marshaler for RelationshipType.
func (t RelationshipType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler for RelationshipType.
func (t *RelationshipType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("RelationshipType must be string: %w", err)
	}
	*t = ParseRelationshipType(s)
	return nil
}

// ParseRelationshipType converts an edge label to a RelationshipType.
//
// Returns RelationshipUnknown if the label is not recognized.
func ParseRelationshipType(s string) RelationshipType {
	for typ, name := range relationshipTypeNames {
		if name == s {
			return typ
		}
	}
	return RelationshipUnknown
}

// Relationship represents a directed edge between two entities.
//
// Both endpoints are referenced by entity ID. The builder guarantees
// referential integrity: every Relationship it emits points at entities
// present in the same BuildResult.
type Relationship struct {
	// SourceID is the entity ID of the edge source.
	SourceID string `json:"source_id"`

	// TargetID is the entity ID of the edge target.
	TargetID string `json:"target_id"`

	// Type is the edge semantic.
	Type RelationshipType `json:"type"`
}

// Validate checks if the Relationship has valid field values.
func (r Relationship) Validate() error {
	if r.SourceID == "" {
		return ast.ValidationError{Field: "SourceID", Message: "must not be empty"}
	}
	if r.TargetID == "" {
		return ast.ValidationError{Field: "TargetID", Message: "must not be empty"}
	}
	if r.Type != RelationshipContains && r.Type != RelationshipDefines && r.Type != RelationshipCalls {
		return ast.ValidationError{Field: "Type", Message: "must be CONTAINS, DEFINES, or CALLS"}
	}
	return nil
}

// BuildStats summarizes what a build produced, for logging and the
// ingestion job status.
type BuildStats struct {
	// Files is the number of File entities.
	Files int `json:"files"`

	// Classes is the number of Class entities.
	Classes int `json:"classes"`

	// Functions is the number of Function entities.
	Functions int `json:"functions"`

	// Contains is the number of CONTAINS relationships.
	Contains int `json:"contains"`

	// Defines is the number of DEFINES relationships.
	Defines int `json:"defines"`

	// Calls is the number of CALLS relationships after de-duplication.
	Calls int `json:"calls"`

	// DroppedCalls is the number of call sites that could not be
	// attributed to a caller or resolved to a callee.
	DroppedCalls int `json:"dropped_calls"`
}

// BuildResult is the complete output of a graph build: every entity and
// every derived relationship, ready for the store to upsert.
type BuildResult struct {
	// Entities contains all entities in deterministic order: per file
	// in input order, the file entity first, then classes and functions
	// in source order.
	Entities []ast.Entity `json:"entities"`

	// Relationships contains all derived edges in deterministic order.
	Relationships []Relationship `json:"relationships"`

	// Stats summarizes the build.
	Stats BuildStats `json:"stats"`
}
