package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Must be positive.
//
// Example:
//
//	parser := NewPythonParser(WithPythonMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser implements the Parser interface for Python source code.
//
// Description:
//
//	PythonParser uses tree-sitter to parse Python source files and extract
//	class and function entities plus call sites. It supports concurrent use
//	from multiple goroutines - each Parse call creates its own tree-sitter
//	parser instance internally.
//
// Thread Safety:
//
//	PythonParser instances are safe for concurrent use. Multiple goroutines
//	may call Parse simultaneously on the same PythonParser instance.
//
// Example:
//
//	parser := NewPythonParser()
//	result, err := parser.Parse(ctx, []byte("def hello(): pass"), "main.py")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, fn := range result.Functions {
//	    fmt.Printf("%s at line %d\n", fn.Name, fn.StartLine)
//	}
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a new PythonParser with the given options.
//
// Description:
//
//	Creates a PythonParser configured with sensible defaults. Options can be
//	provided to customize behavior such as maximum file size.
//
// Inputs:
//   - opts: Optional configuration functions (WithPythonMaxFileSize)
//
// Outputs:
//   - *PythonParser: Configured parser instance, never nil
//
// Thread Safety:
//
//	The returned PythonParser is safe for concurrent use.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse extracts entities and call sites from Python source code.
//
// Description:
//
//	Parse uses tree-sitter to parse the provided Python source code and
//	extract every class definition, function definition (top-level, method,
//	or nested), and direct identifier call into a FileResult. The parser is
//	error-tolerant and will return partial results for syntactically invalid
//	code.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//     Note: Tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw Python source code bytes. Must be valid UTF-8.
//   - filePath: Path to the file (for ID generation and error reporting).
//     Should be relative to repository root using forward slashes.
//
// Outputs:
//   - *FileResult: Extracted entities and metadata. Never nil on success.
//     May contain partial results with errors for syntactically invalid code.
//   - error: Non-nil for complete failures:
//   - ErrFileTooLarge: Content exceeds maxFileSize
//   - ErrInvalidContent: Content is not valid UTF-8
//   - Context errors: Context was canceled or timed out
//
// Limitations:
//   - Only direct identifier calls are recorded; attribute calls
//     (obj.method()) are skipped
//   - Lambdas are not extracted (they have no name)
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*FileResult, error) {
	start := time.Now()

	// Check context before starting
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	// Validate file size
	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	// Log warning for large files
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	// Validate UTF-8
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	// Compute hash before parsing (captures input)
	hash := sha256.Sum256(content)

	// Create tree-sitter parser (new instance per call for thread safety)
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	// Check context after parsing
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &FileResult{
		File:      NewFileEntity(filePath, "python"),
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

	// Tree-sitter is error-tolerant: record the condition and keep the
	// entities it managed to recover.
	if rootNode.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.walk(rootNode, content, filePath, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	// Check context one final time
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	recordParseMetrics(ctx, "python", time.Since(start), result.EntityCount(), true)
	return result, nil
}

// Language returns the canonical language name for this parser.
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// walk traverses the syntax tree depth-first, collecting classes,
// functions, and call sites in source order. Nesting is deliberately
// flattened here: containment is recovered from line ranges during
// graph construction, which has repository-wide visibility.
func (p *PythonParser) walk(node *sitter.Node, content []byte, filePath string, result *FileResult) {
	switch node.Type() {
	case "class_definition":
		if cls := p.processClass(node, content, filePath); cls != nil {
			result.Classes = append(result.Classes, cls)
		}
	case "function_definition":
		if fn := p.processFunction(node, content, filePath); fn != nil {
			result.Functions = append(result.Functions, fn)
		}
	case "call":
		if site, ok := p.processCall(node, content); ok {
			result.Calls = append(result.Calls, site)
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.walk(node.NamedChild(i), content, filePath, result)
	}
}

// processClass extracts a class definition.
func (p *PythonParser) processClass(node *sitter.Node, content []byte, filePath string) *Entity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if name == "" {
		return nil
	}

	startLine := int(node.StartPoint().Row + 1)

	return &Entity{
		ID:        GenerateID(EntityKindClass, filePath, name, startLine),
		Kind:      EntityKindClass,
		Name:      name,
		Path:      filePath,
		Language:  "python",
		StartLine: startLine,
		EndLine:   int(node.EndPoint().Row + 1),
	}
}

// processFunction extracts a function definition at any nesting depth.
func (p *PythonParser) processFunction(node *sitter.Node, content []byte, filePath string) *Entity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if name == "" {
		return nil
	}

	var signature string
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		signature = string(content[paramsNode.StartByte():paramsNode.EndByte()])
	}

	var docstring string
	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		docstring = p.extractDocstring(bodyNode, content)
	}

	startLine := int(node.StartPoint().Row + 1)

	return &Entity{
		ID:        GenerateID(EntityKindFunction, filePath, name, startLine),
		Kind:      EntityKindFunction,
		Name:      name,
		Path:      filePath,
		Language:  "python",
		Signature: signature,
		Docstring: docstring,
		StartLine: startLine,
		EndLine:   int(node.EndPoint().Row + 1),
	}
}

// processCall extracts a call site if the callee is a bare identifier.
func (p *PythonParser) processCall(node *sitter.Node, content []byte) (CallSite, bool) {
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

// extractDocstring extracts the docstring from a block node.
func (p *PythonParser) extractDocstring(block *sitter.Node, content []byte) string {
	// First statement in block might be docstring
	if block.ChildCount() > 0 {
		first := block.Child(0)
		if first.Type() == "expression_statement" && first.ChildCount() > 0 {
			strNode := first.Child(0)
			if strNode.Type() == "string" {
				return extractStringContent(strNode, content)
			}
		}
	}
	return ""
}

// extractStringContent extracts the content from a string node, removing
// any string prefix (r, b, f, u and their combinations) and the quotes.
func extractStringContent(node *sitter.Node, content []byte) string {
	raw := string(content[node.StartByte():node.EndByte()])
	raw = strings.TrimLeft(raw, "rRbBfFuU")

	switch {
	case strings.HasPrefix(raw, `"""`) || strings.HasPrefix(raw, `'''`):
		if len(raw) >= 6 {
			return raw[3 : len(raw)-3]
		}
	case strings.HasPrefix(raw, `"`) || strings.HasPrefix(raw, `'`):
		if len(raw) >= 2 {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

// Compile-time interface compliance check.
var _ Parser = (*PythonParser)(nil)
