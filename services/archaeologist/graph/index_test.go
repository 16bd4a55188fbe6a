package graph

import (
	"testing"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
)

func TestFunctionIndex_Lookup(t *testing.T) {
	idx := NewFunctionIndex()

	a := mkFunc("a.py", "helper", 1, 3)
	b := mkFunc("b.py", "helper", 5, 7)
	other := mkFunc("b.py", "main", 1, 3)

	idx.Add(mkFileResult("a.py", nil, []*ast.Entity{a}, nil))
	idx.Add(mkFileResult("b.py", nil, []*ast.Entity{other, b}, nil))

	if idx.Len() != 3 {
		t.Errorf("expected 3 indexed functions, got %d", idx.Len())
	}

	candidates := idx.Lookup("helper")
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	// Candidates come back ordered by (path, start line)
	if candidates[0].Path != "a.py" || candidates[1].Path != "b.py" {
		t.Errorf("candidates not in lexical order: %s, %s",
			candidates[0].Path, candidates[1].Path)
	}

	if got := idx.Lookup("unknown"); len(got) != 0 {
		t.Errorf("expected no candidates for unknown name, got %d", len(got))
	}
}

func TestFunctionIndex_SameNameSameFile(t *testing.T) {
	idx := NewFunctionIndex()

	// Redefinition in one file: both occurrences are indexed, ordered
	// by start line.
	first := mkFunc("a.py", "f", 1, 2)
	second := mkFunc("a.py", "f", 4, 5)
	idx.Add(mkFileResult("a.py", nil, []*ast.Entity{second, first}, nil))

	candidates := idx.Lookup("f")
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].StartLine != 1 {
		t.Errorf("expected line-1 definition first, got line %d", candidates[0].StartLine)
	}
}
