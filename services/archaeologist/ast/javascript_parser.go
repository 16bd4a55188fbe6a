package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptParserOption configures a JavaScriptParser instance.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJavaScriptMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Must be positive.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// JavaScriptParser implements the Parser interface for JavaScript source code.
//
// Description:
//
//	JavaScriptParser uses tree-sitter to parse JavaScript source files and
//	extract class and function entities plus call sites. It supports
//	concurrent use from multiple goroutines - each Parse call creates its
//	own tree-sitter parser instance internally.
//
// Thread Safety:
//
//	JavaScriptParser instances are safe for concurrent use.
type JavaScriptParser struct {
	maxFileSize int64
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse extracts entities and call sites from JavaScript source code.
//
// Description:
//
//	Parse extracts class declarations, function declarations, and class
//	method definitions into a FileResult. Anonymous functions and arrow
//	functions bound via destructuring are skipped: an entity requires a
//	name. JavaScript has no docstring convention, so Docstring is always
//	empty for JavaScript entities.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw JavaScript source code bytes. Must be valid UTF-8.
//   - filePath: Path relative to repository root using forward slashes.
//
// Outputs:
//   - *FileResult: Extracted entities and metadata. Never nil on success.
//   - error: Non-nil for complete failures (ErrFileTooLarge,
//     ErrInvalidContent, context errors).
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*FileResult, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &FileResult{
		File:      NewFileEntity(filePath, "javascript"),
		Classes:   make([]*Entity, 0),
		Functions: make([]*Entity, 0),
		Calls:     make([]CallSite, 0),
		Errors:    make([]string, 0),
		Hash:      hex.EncodeToString(hash[:]),
	}
	result.SetParsedAt()

	rootNode := tree.RootNode()
	if rootNode == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}

	if rootNode.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.walk(rootNode, content, filePath, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	recordParseMetrics(ctx, "javascript", time.Since(start), result.EntityCount(), true)
	return result, nil
}

// Language returns the canonical language name for this parser.
func (p *JavaScriptParser) Language() string {
	return "javascript"
}

// Extensions returns the file extensions this parser handles.
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// walk traverses the syntax tree depth-first, collecting classes,
// functions, and call sites in source order.
func (p *JavaScriptParser) walk(node *sitter.Node, content []byte, filePath string, result *FileResult) {
	switch node.Type() {
	case "class_declaration":
		if cls := p.processNamed(node, content, filePath, EntityKindClass); cls != nil {
			result.Classes = append(result.Classes, cls)
		}
	case "function_declaration", "generator_function_declaration", "method_definition":
		if fn := p.processNamed(node, content, filePath, EntityKindFunction); fn != nil {
			result.Functions = append(result.Functions, fn)
		}
	case "call_expression":
		if site, ok := p.processCall(node, content); ok {
			result.Calls = append(result.Calls, site)
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.walk(node.NamedChild(i), content, filePath, result)
	}
}

// processNamed extracts a named declaration into an entity of the given
// kind. Returns nil when the declaration is anonymous (e.g., a class
// expression or default-exported anonymous function).
func (p *JavaScriptParser) processNamed(node *sitter.Node, content []byte, filePath string, kind EntityKind) *Entity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if name == "" {
		return nil
	}

	var signature string
	if kind == EntityKindFunction {
		if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
			signature = string(content[paramsNode.StartByte():paramsNode.EndByte()])
		}
	}

	startLine := int(node.StartPoint().Row + 1)

	return &Entity{
		ID:        GenerateID(kind, filePath, name, startLine),
		Kind:      kind,
		Name:      name,
		Path:      filePath,
		Language:  "javascript",
		Signature: signature,
		StartLine: startLine,
		EndLine:   int(node.EndPoint().Row + 1),
	}
}

// processCall extracts a call site if the callee is a bare identifier.
func (p *JavaScriptParser) processCall(node *sitter.Node, content []byte) (CallSite, bool) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil || fnNode.Type() != "identifier" {
		return CallSite{}, false
	}

	name := string(content[fnNode.StartByte():fnNode.EndByte()])
	if name == "" {
		return CallSite{}, false
	}

	return CallSite{
		CalleeName: name,
		Line:       int(node.StartPoint().Row + 1),
	}, true
}

// Compile-time interface compliance check.
var _ Parser = (*JavaScriptParser)(nil)
