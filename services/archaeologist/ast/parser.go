package ast

import (
	"context"
	"errors"
	"sync"
)

// File size constants for input validation.
const (
	// DefaultMaxFileSize is the maximum file size the parser will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// ErrFileTooLarge is returned when input content exceeds the maximum file size.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// ErrInvalidContent is returned when input content is not valid UTF-8.
var ErrInvalidContent = errors.New("content is not valid UTF-8")

// Parser defines the contract for language-specific entity extraction.
//
// Description:
//
//	Parser implementations extract file, class, and function entities plus
//	raw call sites from source code. Each implementation handles a specific
//	language but produces output in the common FileResult format defined in
//	types.go.
//
//	The Parser interface is designed to be:
//	- Context-aware: Supports cancellation and timeouts via context.Context
//	- Language-agnostic: Common output format regardless of source language
//	- Error-tolerant: Partial results returned even when parse errors occur
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. Multiple goroutines
//	may call Parse simultaneously with different content.
type Parser interface {
	// Parse extracts entities and call sites from source code.
	//
	// Parameters:
	//   - ctx: Context for cancellation. Long-running parses should check ctx.Done().
	//   - content: Raw source code bytes (must be valid UTF-8).
	//   - filePath: Path to the file (relative to repository root, for ID generation).
	//
	// Returns:
	//   - *FileResult: Extracted entities and metadata. Never nil on success.
	//   - error: Non-nil only for complete parse failures (e.g., invalid UTF-8).
	//     Syntax errors are reported in FileResult.Errors with partial results.
	Parse(ctx context.Context, content []byte, filePath string) (*FileResult, error)

	// Language returns the canonical name of the language this parser handles.
	// Example: "python", "javascript"
	Language() string

	// Extensions returns the file extensions this parser can handle,
	// including the leading dot. Extensions are lowercase.
	Extensions() []string
}

// Registry manages parser instances by language and file extension.
//
// Description:
//
//	Registry provides a central lookup mechanism for finding the appropriate
//	parser for a given file or language. It supports registration of multiple
//	parsers and lookup by language name or file extension.
//
// Thread Safety:
//
//	Registry is fully thread-safe. All methods can be called concurrently
//	from multiple goroutines. Registration uses write locks, lookups use
//	read locks.
type Registry struct {
	mu sync.RWMutex

	// byLanguage maps language names to parser instances.
	byLanguage map[string]Parser

	// byExtension maps file extensions to parser instances.
	byExtension map[string]Parser
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// DefaultRegistry creates a Registry with all built-in parsers registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPythonParser())
	r.Register(NewJavaScriptParser())
	return r
}

// Register adds a parser to the registry.
//
// The parser is registered under its Language() name and all its
// Extensions(). If a language or extension is already registered, it
// will be overwritten.
func (r *Registry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser

	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// GetByLanguage returns the parser for the given language name.
//
// Parameters:
//   - language: The language name (e.g., "python"). Case-sensitive.
//
// Returns:
//   - Parser: The registered parser, or nil if not found.
//   - bool: True if a parser was found.
func (r *Registry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byLanguage[language]
	return parser, ok
}

// GetByExtension returns the parser for the given file extension.
//
// Parameters:
//   - ext: The file extension including the dot (e.g., ".py"). Case-sensitive.
//
// Returns:
//   - Parser: The registered parser, or nil if not found.
//   - bool: True if a parser was found.
func (r *Registry) GetByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byExtension[ext]
	return parser, ok
}

// Languages returns a list of all registered language names.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		languages = append(languages, lang)
	}
	return languages
}

// Extensions returns a list of all registered file extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		extensions = append(extensions, ext)
	}
	return extensions
}
