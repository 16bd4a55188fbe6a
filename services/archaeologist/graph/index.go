package graph

import (
	"sort"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
)

// FunctionIndex is a repository-wide lookup of function entities by name.
//
// The index is built during the collect phase, before any CALLS edge is
// resolved, so that a call in the first file parsed can resolve to a
// function defined in the last. Candidate lists are kept in lexical
// (path, start line) order, which makes resolution deterministic
// regardless of the order files were parsed in.
//
// Thread Safety:
//
//	FunctionIndex is not safe for concurrent mutation. Build it fully,
//	then share it read-only.
type FunctionIndex struct {
	byName map[string][]*ast.Entity
	total  int
	sorted bool
}

// NewFunctionIndex creates an empty FunctionIndex.
func NewFunctionIndex() *FunctionIndex {
	return &FunctionIndex{
		byName: make(map[string][]*ast.Entity),
	}
}

// Add indexes every function in the given parse result.
func (idx *FunctionIndex) Add(result *ast.FileResult) {
	for _, fn := range result.Functions {
		idx.byName[fn.Name] = append(idx.byName[fn.Name], fn)
		idx.total++
	}
	idx.sorted = false
}

// Len returns the total number of indexed functions.
func (idx *FunctionIndex) Len() int {
	return idx.total
}

// Lookup returns all functions with the given name, in lexical
// (path, start line) order. The returned slice is owned by the index
// and must not be mutated.
func (idx *FunctionIndex) Lookup(name string) []*ast.Entity {
	idx.ensureSorted()
	return idx.byName[name]
}

// ensureSorted orders every candidate list lexically. Called lazily on
// first lookup after a mutation.
func (idx *FunctionIndex) ensureSorted() {
	if idx.sorted {
		return
	}
	for _, candidates := range idx.byName {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Path != candidates[j].Path {
				return candidates[i].Path < candidates[j].Path
			}
			return candidates[i].StartLine < candidates[j].StartLine
		})
	}
	idx.sorted = true
}
