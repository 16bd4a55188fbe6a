package ast

import (
	"context"
	"testing"
)

const (
	testJSClass = `class Stack {
  push(item) {
    this.items.push(item);
  }

  pop() {
    return this.items.pop();
  }
}
`

	testJSFunctions = `function greet(name) {
  return "hello " + name;
}

function main() {
  greet("world");
  console.log("done");
}
`

	testJSAnonymous = `const square = (x) => x * x;

export default function () {
  return 42;
}
`
)

func TestJavaScriptParser_Parse_Class(t *testing.T) {
	parser := NewJavaScriptParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testJSClass), "stack.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(result.Classes))
	}
	if result.Classes[0].Name != "Stack" {
		t.Errorf("expected class 'Stack', got %q", result.Classes[0].Name)
	}

	// Methods are extracted as functions
	if len(result.Functions) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(result.Functions))
	}
	push := findByName(result.Functions, "push")
	if push == nil {
		t.Fatal("method 'push' not extracted")
	}
	if push.Signature != "(item)" {
		t.Errorf("expected signature '(item)', got %q", push.Signature)
	}
	if push.Docstring != "" {
		t.Errorf("JavaScript entities have no docstrings, got %q", push.Docstring)
	}
}

func TestJavaScriptParser_Parse_FunctionsAndCalls(t *testing.T) {
	parser := NewJavaScriptParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testJSFunctions), "app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(result.Functions))
	}
	if !hasCall(result.Calls, "greet") {
		t.Error("expected a call site for 'greet'")
	}
	// console.log is a member call and must be skipped
	if hasCall(result.Calls, "log") {
		t.Error("member call 'console.log' should not be recorded")
	}
}

func TestJavaScriptParser_Parse_SkipsAnonymous(t *testing.T) {
	parser := NewJavaScriptParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testJSAnonymous), "anon.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Arrow functions and anonymous default exports have no name
	if len(result.Functions) != 0 {
		t.Errorf("expected no named functions, got %d", len(result.Functions))
	}
}

func TestJavaScriptParser_Language(t *testing.T) {
	parser := NewJavaScriptParser()
	if parser.Language() != "javascript" {
		t.Errorf("expected 'javascript', got %q", parser.Language())
	}
}
