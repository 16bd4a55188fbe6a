package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
)

// ResolutionPolicy controls how an ambiguous callee name is resolved
// when more than one function in the repository carries it.
type ResolutionPolicy int

const (
	// ResolveLexical resolves ambiguity by preferring a candidate in the
	// caller's file, then a unique repository-wide match, and otherwise
	// the lexically first candidate by (path, start line). Every call to
	// a known name produces an edge.
	ResolveLexical ResolutionPolicy = iota

	// ResolveStrict resolves only same-file and unique repository-wide
	// matches. Calls that remain ambiguous are dropped rather than
	// guessed at.
	ResolveStrict
)

// String returns the string representation of the ResolutionPolicy.
func (p ResolutionPolicy) String() string {
	switch p {
	case ResolveLexical:
		return "lexical"
	case ResolveStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// BuilderOption configures a Builder instance.
type BuilderOption func(*Builder)

// WithResolutionPolicy sets the callee resolution policy.
//
// Example:
//
//	builder := NewBuilder(WithResolutionPolicy(ResolveStrict))
func WithResolutionPolicy(policy ResolutionPolicy) BuilderOption {
	return func(b *Builder) {
		b.policy = policy
	}
}

// Builder derives relationships from parsed file results.
//
// Description:
//
//	Builder runs in two phases. The collect phase gathers every entity
//	from every file and indexes all functions by name; only then does the
//	resolve phase derive edges, so a call site in the first file can
//	resolve to a function defined in the last. The output is fully
//	deterministic for a given input set: same entities, same edges, same
//	order.
//
// Invariants upheld:
//   - Every emitted relationship references entities present in the result
//     (no dangling edges; unresolved calls are dropped)
//   - CALLS edges are de-duplicated per (caller, callee) pair
//   - Self-loop CALLS edges are emitted for recursive functions
//
// Thread Safety:
//
//	Builder carries no per-build state and is safe for concurrent use.
type Builder struct {
	policy ResolutionPolicy
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		policy: ResolveLexical,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// buildState carries the intermediate state of a single build.
type buildState struct {
	result *BuildResult
	index  *FunctionIndex

	// seenCalls de-duplicates CALLS edges per (caller, callee) pair.
	seenCalls map[[2]string]bool
}

// Build derives all entities and relationships from the given parse results.
//
// Description:
//
//	Build is the whole pipeline stage: collect entities, index functions
//	repository-wide, then derive CONTAINS, DEFINES, and CALLS edges per
//	file. Input order determines output order, so callers that want
//	reproducible output should pass results in a stable order (the
//	ingestion service sorts by path).
//
// Inputs:
//   - ctx: Context for cancellation. Checked between files.
//   - results: Parse results, one per file. Each must pass Validate().
//
// Outputs:
//   - *BuildResult: Entities, relationships, and stats. Never nil on success.
//   - error: Non-nil when a result fails validation or ctx is canceled.
func (b *Builder) Build(ctx context.Context, results []*ast.FileResult) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "graph.Build",
		trace.WithAttributes(
			attribute.Int("files", len(results)),
			attribute.String("policy", b.policy.String()),
		))
	defer span.End()

	start := time.Now()

	state := &buildState{
		result: &BuildResult{
			Entities:      make([]ast.Entity, 0),
			Relationships: make([]Relationship, 0),
		},
		index:     NewFunctionIndex(),
		seenCalls: make(map[[2]string]bool),
	}

	if err := b.collectPhase(ctx, state, results); err != nil {
		return nil, err
	}

	if err := b.resolvePhase(ctx, state, results); err != nil {
		return nil, err
	}

	slog.Info("graph build complete",
		slog.Int("files", state.result.Stats.Files),
		slog.Int("classes", state.result.Stats.Classes),
		slog.Int("functions", state.result.Stats.Functions),
		slog.Int("contains", state.result.Stats.Contains),
		slog.Int("defines", state.result.Stats.Defines),
		slog.Int("calls", state.result.Stats.Calls),
		slog.Int("dropped_calls", state.result.Stats.DroppedCalls),
		slog.Duration("elapsed", time.Since(start)))

	recordBuildMetrics(ctx, time.Since(start), state.result.Stats)

	return state.result, nil
}

// collectPhase validates parse results and gathers entities. All
// functions are indexed by name before any edge is resolved.
func (b *Builder) collectPhase(ctx context.Context, state *buildState, results []*ast.FileResult) error {
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("build canceled during collect: %w", err)
		}

		if err := r.Validate(); err != nil {
			return fmt.Errorf("invalid parse result for %s: %w", r.File.Path, err)
		}

		state.result.Entities = append(state.result.Entities, r.File)
		state.result.Stats.Files++

		for _, cls := range r.Classes {
			state.result.Entities = append(state.result.Entities, *cls)
			state.result.Stats.Classes++
		}

		for _, fn := range r.Functions {
			state.result.Entities = append(state.result.Entities, *fn)
			state.result.Stats.Functions++
		}

		state.index.Add(r)
	}

	return nil
}

// resolvePhase derives CONTAINS, DEFINES, and CALLS edges per file.
func (b *Builder) resolvePhase(ctx context.Context, state *buildState, results []*ast.FileResult) error {
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("build canceled during resolve: %w", err)
		}

		b.extractContainsEdges(state, r)
		b.extractDefinesEdges(state, r)
		b.extractCallEdges(state, r)
	}

	return nil
}

// extractContainsEdges links the file to its top-level classes and
// functions. An entity is top-level when no other class or function in
// the same file encloses its line range.
func (b *Builder) extractContainsEdges(state *buildState, r *ast.FileResult) {
	for _, cls := range r.Classes {
		if enclosingClass(r, cls) == nil && enclosingFunction(r, cls) == nil {
			state.addRelationship(Relationship{
				SourceID: r.File.ID,
				TargetID: cls.ID,
				Type:     RelationshipContains,
			})
			state.result.Stats.Contains++
		}
	}

	for _, fn := range r.Functions {
		if enclosingClass(r, fn) == nil && enclosingFunction(r, fn) == nil {
			state.addRelationship(Relationship{
				SourceID: r.File.ID,
				TargetID: fn.ID,
				Type:     RelationshipContains,
			})
			state.result.Stats.Contains++
		}
	}
}

// extractDefinesEdges links each class to the functions defined in its
// body. When classes nest, the innermost enclosing class wins.
func (b *Builder) extractDefinesEdges(state *buildState, r *ast.FileResult) {
	for _, fn := range r.Functions {
		cls := enclosingClass(r, fn)
		if cls == nil {
			continue
		}

		state.addRelationship(Relationship{
			SourceID: cls.ID,
			TargetID: fn.ID,
			Type:     RelationshipDefines,
		})
		state.result.Stats.Defines++
	}
}

// extractCallEdges attributes each call site to its innermost enclosing
// function and resolves the callee repository-wide. Unattributable or
// unresolvable calls are dropped so the graph never carries dangling
// edges; duplicates collapse to a single edge per (caller, callee).
func (b *Builder) extractCallEdges(state *buildState, r *ast.FileResult) {
	for _, call := range r.Calls {
		caller := functionAtLine(r, call.Line)
		if caller == nil {
			// Module-level call; there is no caller node to hang it on.
			state.result.Stats.DroppedCalls++
			continue
		}

		callee := b.resolveCallee(state.index, call.CalleeName, r.File.Path)
		if callee == nil {
			state.result.Stats.DroppedCalls++
			continue
		}

		key := [2]string{caller.ID, callee.ID}
		if state.seenCalls[key] {
			continue
		}
		state.seenCalls[key] = true

		state.addRelationship(Relationship{
			SourceID: caller.ID,
			TargetID: callee.ID,
			Type:     RelationshipCalls,
		})
		state.result.Stats.Calls++
	}
}

// resolveCallee picks the function entity a callee name refers to.
//
// Resolution order:
//  1. A candidate in the caller's file (lexically first when several).
//  2. The unique repository-wide candidate.
//  3. Policy-dependent: ResolveLexical takes the lexically first
//     candidate by (path, start line); ResolveStrict gives up.
//
// Returns nil when the name is unknown or the policy drops it.
func (b *Builder) resolveCallee(index *FunctionIndex, name, currentFile string) *ast.Entity {
	candidates := index.Lookup(name)
	if len(candidates) == 0 {
		return nil
	}

	for _, fn := range candidates {
		if fn.Path == currentFile {
			return fn
		}
	}

	if len(candidates) == 1 {
		return candidates[0]
	}

	if b.policy == ResolveLexical {
		return candidates[0]
	}

	return nil
}

// addRelationship appends an edge to the result.
func (s *buildState) addRelationship(rel Relationship) {
	s.result.Relationships = append(s.result.Relationships, rel)
}

// enclosingClass returns the innermost class in the same file whose line
// range strictly encloses the entity, or nil if the entity is not inside
// any class.
func enclosingClass(r *ast.FileResult, entity *ast.Entity) *ast.Entity {
	var innermost *ast.Entity
	for _, cls := range r.Classes {
		if cls.ID == entity.ID {
			continue
		}
		if !encloses(cls, entity) {
			continue
		}
		if innermost == nil || cls.StartLine > innermost.StartLine {
			innermost = cls
		}
	}
	return innermost
}

// enclosingFunction returns the innermost function in the same file
// whose line range strictly encloses the entity, or nil if the entity
// is not nested inside any function.
func enclosingFunction(r *ast.FileResult, entity *ast.Entity) *ast.Entity {
	var innermost *ast.Entity
	for _, fn := range r.Functions {
		if fn.ID == entity.ID {
			continue
		}
		if !encloses(fn, entity) {
			continue
		}
		if innermost == nil || fn.StartLine > innermost.StartLine {
			innermost = fn
		}
	}
	return innermost
}

// functionAtLine returns the innermost function whose range contains the
// given line, or nil when the line is at module level.
func functionAtLine(r *ast.FileResult, line int) *ast.Entity {
	var innermost *ast.Entity
	for _, fn := range r.Functions {
		if !fn.Contains(line) {
			continue
		}
		if innermost == nil || fn.StartLine > innermost.StartLine {
			innermost = fn
		}
	}
	return innermost
}

// encloses reports whether outer's line range contains inner's entirely.
// Identical ranges do not count as enclosure.
func encloses(outer, inner *ast.Entity) bool {
	if outer.StartLine == inner.StartLine && outer.EndLine == inner.EndLine {
		return false
	}
	return outer.StartLine <= inner.StartLine && inner.EndLine <= outer.EndLine
}

// SortResults orders parse results by file path. The ingestion service
// parses files concurrently, so completion order is nondeterministic;
// sorting before Build keeps graph output reproducible.
func SortResults(results []*ast.FileResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].File.Path < results[j].File.Path
	})
}
