// Package ast provides types and interfaces for language-agnostic source parsing.
//
// This package defines the core data structures used throughout the
// archaeologist service for representing extracted code entities: files,
// classes, and functions. All parser implementations (Python, JavaScript)
// produce output conforming to these types.
//
// Design principles:
//   - Language-agnostic: Types work for any supported language
//   - Deterministic IDs: Entity identity derives from content, not insertion order
//   - No map[string]interface{} - concrete types only
package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityKind represents the type of code entity extracted from source code.
//
// The graph schema recognizes exactly three kinds. Language-specific
// constructs are mapped to the closest kind (e.g., a Python method and a
// JavaScript arrow-named function are both EntityKindFunction).
type EntityKind int

const (
	// EntityKindUnknown indicates an unrecognized or unparseable entity.
	EntityKindUnknown EntityKind = iota

	// EntityKindFile represents a source file node.
	EntityKindFile

	// EntityKindClass represents a class definition.
	// Examples: Python class, JavaScript class declaration.
	EntityKindClass

	// EntityKindFunction represents a function or method definition.
	// Examples: Python def (top-level, method, or nested), JavaScript
	// function declaration or method definition.
	EntityKindFunction
)

// entityKindNames maps EntityKind values to their string representations.
var entityKindNames = map[EntityKind]string{
	EntityKindUnknown:  "unknown",
	EntityKindFile:     "file",
	EntityKindClass:    "class",
	EntityKindFunction: "function",
}

// entityKindLabels maps EntityKind values to their graph node labels.
var entityKindLabels = map[EntityKind]string{
	EntityKindFile:     "File",
	EntityKindClass:    "Class",
	EntityKindFunction: "Function",
}

// entityKindIDPrefixes maps EntityKind values to the prefix used in
// generated entity IDs.
var entityKindIDPrefixes = map[EntityKind]string{
	EntityKindFile:     "file",
	EntityKindClass:    "class",
	EntityKindFunction: "func",
}

// String returns the string representation of the EntityKind.
//
// Returns "unknown" for unrecognized values.
func (k EntityKind) String() string {
	if name, ok := entityKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Label returns the graph node label for the EntityKind.
//
// Returns the empty string for kinds that have no graph representation.
func (k EntityKind) Label() string {
	return entityKindLabels[k]
}

// MarshalJSON implements json.Marshaler for EntityKind.
//
// Serializes the kind as a JSON string (e.g., "function") rather than
// a number for better readability and forward compatibility.
func (k EntityKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for EntityKind.
//
// Accepts both string values (e.g., "function") and numeric values
// for backward compatibility.
func (k *EntityKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = ParseEntityKind(s)
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("EntityKind must be string or int: %w", err)
	}
	*k = EntityKind(i)
	return nil
}

// ParseEntityKind converts a string to an EntityKind.
//
// Returns EntityKindUnknown if the string is not recognized.
func ParseEntityKind(s string) EntityKind {
	for kind, name := range entityKindNames {
		if name == s {
			return kind
		}
	}
	return EntityKindUnknown
}

// Entity represents a code entity extracted from source parsing.
//
// Entities form the nodes of the knowledge graph. An entity is one of a
// source file, a class definition, or a function definition. Only the
// fields relevant to a given kind are populated; see the field comments.
type Entity struct {
	// ID is the deterministic identifier for this entity.
	// See GenerateID for the derivation. Two parses of identical source
	// always produce identical IDs, which makes graph writes idempotent.
	ID string `json:"id"`

	// Kind indicates what type of entity this is.
	Kind EntityKind `json:"kind"`

	// Name is the entity's identifier as it appears in source code.
	// For files, Name equals Path.
	Name string `json:"name"`

	// Path is the file path, relative to the repository root, using
	// forward slashes. For File entities this is the subject path; for
	// Class and Function entities it is the containing file.
	Path string `json:"path"`

	// Language is the source language of the containing file.
	// Example: "python", "javascript"
	Language string `json:"language,omitempty"`

	// Signature is the verbatim parameter list text for functions.
	// Example: "(self, x, y)". Empty for files and classes.
	Signature string `json:"signature,omitempty"`

	// Docstring is the documentation string attached to a function,
	// with surrounding quotes stripped. Empty when the language has no
	// docstring convention or none was present.
	Docstring string `json:"docstring,omitempty"`

	// StartLine is the 1-indexed line where the definition starts.
	// Zero for File entities.
	StartLine int `json:"start_line,omitempty"`

	// EndLine is the 1-indexed line where the definition ends.
	// Zero for File entities.
	EndLine int `json:"end_line,omitempty"`
}

// GenerateID creates a deterministic identifier for an entity.
//
// The ID is a kind prefix joined to the hex SHA-256 of the normalized
// tuple (path, kind, name, start line):
//
//	"func:" + sha256("app/utils.py|function|helper|10")
//
// Hashing the tuple rather than concatenating it keeps IDs fixed-width
// and safe to embed in query text regardless of what characters appear
// in paths or names. Re-parsing unchanged source yields the same IDs,
// so a second ingestion run upserts rather than duplicates.
//
// Parameters:
//   - kind: The entity kind. Must be a graph-representable kind.
//   - path: Path relative to repository root, forward slashes.
//   - name: The entity's name. For files, pass the path again.
//   - startLine: 1-indexed start line. Pass 0 for files.
func GenerateID(kind EntityKind, path, name string, startLine int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", path, kind, name, startLine)))
	return entityKindIDPrefixes[kind] + ":" + hex.EncodeToString(sum[:])
}

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks if the Entity has valid field values.
//
// Returns nil if valid, or a ValidationError describing the first invalid field.
//
// Validates:
//   - ID is non-empty
//   - Kind is a graph-representable kind
//   - Name is non-empty
//   - Path is non-empty and doesn't contain path traversal
//   - StartLine is positive for classes and functions (1-indexed)
//   - EndLine >= StartLine for classes and functions
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ValidationError{Field: "ID", Message: "must not be empty"}
	}

	if e.Kind.Label() == "" {
		return ValidationError{Field: "Kind", Message: "must be file, class, or function"}
	}

	if e.Name == "" {
		return ValidationError{Field: "Name", Message: "must not be empty"}
	}

	if e.Path == "" {
		return ValidationError{Field: "Path", Message: "must not be empty"}
	}

	// Check for path traversal attempts
	if strings.Contains(e.Path, "..") {
		return ValidationError{Field: "Path", Message: "must not contain path traversal (..)"}
	}

	if e.Kind == EntityKindFile {
		return nil
	}

	if e.StartLine < 1 {
		return ValidationError{Field: "StartLine", Message: "must be >= 1 (1-indexed)"}
	}

	if e.EndLine < e.StartLine {
		return ValidationError{Field: "EndLine", Message: "must be >= StartLine"}
	}

	return nil
}

// Contains reports whether line falls within the entity's line range.
//
// Always false for File entities, whose range is the whole file and is
// not meaningful for nesting decisions.
func (e *Entity) Contains(line int) bool {
	if e.Kind == EntityKindFile {
		return false
	}
	return line >= e.StartLine && line <= e.EndLine
}

// CallSite records an unresolved call observed during parsing.
//
// Only direct calls to a bare identifier are recorded; attribute and
// member calls (obj.method(), pkg.fn()) are skipped because resolving
// them requires type information a single-file parse does not have.
// The caller is not recorded here: it is recovered later by line
// containment against the file's function entities.
type CallSite struct {
	// CalleeName is the identifier being called.
	CalleeName string `json:"callee_name"`

	// Line is the 1-indexed line on which the call expression starts.
	Line int `json:"line"`
}

// FileResult contains the output of parsing a single source file.
//
// This struct is returned by Parser.Parse() and carries the file entity,
// every class and function found at any nesting depth (flattened, in
// source order), and the raw call sites observed in function bodies.
// Relationship derivation happens later in the graph builder, which has
// repository-wide visibility.
type FileResult struct {
	// File is the entity representing the parsed file itself.
	File Entity `json:"file"`

	// Classes contains all class entities in source order, including
	// nested classes.
	Classes []*Entity `json:"classes"`

	// Functions contains all function entities in source order,
	// including methods and nested functions.
	Functions []*Entity `json:"functions"`

	// Calls contains every direct identifier call observed in the file,
	// in source order. Callers are resolved by line containment during
	// graph construction.
	Calls []CallSite `json:"calls"`

	// Errors contains non-fatal parse errors encountered.
	// The parse may still produce partial results despite errors.
	Errors []string `json:"errors,omitempty"`

	// Hash is the SHA256 hash of the file content at parse time.
	// Used for staleness detection.
	Hash string `json:"hash"`

	// ParsedAtMilli is the Unix timestamp in milliseconds when parsing completed.
	ParsedAtMilli int64 `json:"parsed_at_milli"`
}

// HasErrors returns true if the parse result contains any errors.
func (r *FileResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// SetParsedAt sets the ParsedAtMilli field to the current time.
func (r *FileResult) SetParsedAt() {
	r.ParsedAtMilli = time.Now().UnixMilli()
}

// EntityCount returns the total number of entities in the result,
// counting the file itself plus all classes and functions.
func (r *FileResult) EntityCount() int {
	return 1 + len(r.Classes) + len(r.Functions)
}

// Validate checks if the FileResult has valid field values.
//
// Returns nil if valid, or a ValidationError describing the first invalid field.
func (r *FileResult) Validate() error {
	if err := r.File.Validate(); err != nil {
		return ValidationError{Field: "File", Message: err.Error()}
	}

	if r.File.Kind != EntityKindFile {
		return ValidationError{Field: "File.Kind", Message: "must be file"}
	}

	for i, cls := range r.Classes {
		if err := cls.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("Classes[%d]", i),
				Message: err.Error(),
			}
		}
		if cls.Kind != EntityKindClass {
			return ValidationError{
				Field:   fmt.Sprintf("Classes[%d].Kind", i),
				Message: "must be class",
			}
		}
	}

	for i, fn := range r.Functions {
		if err := fn.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("Functions[%d]", i),
				Message: err.Error(),
			}
		}
		if fn.Kind != EntityKindFunction {
			return ValidationError{
				Field:   fmt.Sprintf("Functions[%d].Kind", i),
				Message: "must be function",
			}
		}
	}

	for i, call := range r.Calls {
		if call.CalleeName == "" {
			return ValidationError{
				Field:   fmt.Sprintf("Calls[%d].CalleeName", i),
				Message: "must not be empty",
			}
		}
		if call.Line < 1 {
			return ValidationError{
				Field:   fmt.Sprintf("Calls[%d].Line", i),
				Message: "must be >= 1",
			}
		}
	}

	return nil
}

// NewFileEntity constructs the File entity for a source file.
func NewFileEntity(path, language string) Entity {
	return Entity{
		ID:       GenerateID(EntityKindFile, path, path, 0),
		Kind:     EntityKindFile,
		Name:     path,
		Path:     path,
		Language: language,
	}
}
