// Package rag answers natural-language questions about an ingested
// codebase by translating them to graph queries, executing them against
// the store, and composing grounded answers from the rows that come back.
//
// The pipeline has three components, each swappable:
//
//	Translator: question -> Cypher
//	Executor:   generate-execute-retry loop
//	Composer:   rows -> natural-language answer + grounding IDs
//
// Every answer is grounded: the entity IDs backing it travel with the
// response so a frontend can highlight exactly the nodes the answer
// talks about.
package rag

// graphSchema describes the node and relationship tables available for
// query generation. It is embedded verbatim in the translation prompt;
// keep it in sync with the property maps in the store package.
const graphSchema = `Node Types:
- File: {id, path, language}
- Class: {id, name, start_line, end_line, file_path}
- Function: {id, name, args, docstring, start_line, end_line, file_path}

Relationship Types:
- CONTAINS: File -> Class, File -> Function (top-level definitions)
- DEFINES: Class -> Function
- CALLS: Function -> Function`

// cypherExamples are the few-shot exemplars for query generation. Each
// pairs a question with the query that answers it, covering the main
// traversal shapes the schema supports.
const cypherExamples = `# Example 1: Find all functions in a file
Question: What functions are in the calculator.py file?
Cypher: MATCH (f:File {path: 'calculator.py'})-[:CONTAINS]->(fn:Function) RETURN fn.id, fn.name, fn.args

# Example 2: Find all classes
Question: What classes are in the codebase?
Cypher: MATCH (c:Class) RETURN c.id, c.name, c.file_path

# Example 3: Find functions that call a specific function
Question: What functions call the add function?
Cypher: MATCH (caller:Function)-[:CALLS]->(callee:Function {name: 'add'}) RETURN caller.id, caller.name, caller.file_path

# Example 4: Find methods in a class
Question: What methods does the Calculator class have?
Cypher: MATCH (c:Class {name: 'Calculator'})-[:DEFINES]->(fn:Function) RETURN fn.id, fn.name, fn.args, fn.docstring

# Example 5: Find all files
Question: What files are in the repository?
Cypher: MATCH (f:File) RETURN f.id, f.path, f.language`

// cypherPromptTemplate is the translation prompt. Placeholders are
// filled via fmt.Sprintf in order: schema, examples, question.
const cypherPromptTemplate = `You are a Cypher query expert for a code knowledge graph.

Database Schema:
%s

Few-shot Examples:
%s

Important Rules:
1. Use MATCH patterns to find nodes and relationships
2. Node types: File, Class, Function
3. Relationship types: CONTAINS (File->Class, File->Function), DEFINES (Class->Function), CALLS (Function->Function)
4. Always use RETURN to specify what to return, and include the node id (e.g., fn.id)
5. Use WHERE clauses for filtering
6. Property access: node.property (e.g., f.path, fn.name)
7. Generate read-only queries: never CREATE, MERGE, DELETE, or SET
8. Keep queries simple and focused

Question: %s

Generate ONLY the Cypher query, nothing else:
Cypher:`

// responsePromptTemplate is the answer composition prompt. Placeholders
// are filled via fmt.Sprintf in order: question, context.
const responsePromptTemplate = `You are a helpful assistant analyzing a codebase.

Question: %s

Query Results:
%s

Based on the query results above, provide a clear and concise answer to the question.
If the results are empty, say that no matching entities were found.
Only state facts supported by the query results. Keep your answer focused
and relevant to the question.

Answer:`

// retryFeedbackTemplate enriches the question after a failed execution.
// Placeholders are filled via fmt.Sprintf in order: question, failing
// query, store diagnostic.
const retryFeedbackTemplate = `%s

Previous query failed.
Query: %s
Error: %s
Please generate a corrected query.`
