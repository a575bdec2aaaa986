package indexer

import "strings"

// LanguagePlugin describes one language's chunking strategy: its file
// extensions, a factory for a stateless AstChunker, and the node-type →
// category table that chunker's extraction logic consults.
type LanguagePlugin struct {
	Name       string
	Extensions []string
	NewChunker func() *AstChunker
	NodeTypes  NodeTypeTable
}

// LanguageRegistry maps a file extension to the plugin that chunks it.
type LanguageRegistry struct {
	byExtension map[string]*LanguagePlugin
}

// NewLanguageRegistry builds the registry with the built-in language set:
// python, java, javascript, typescript, c, cpp, csharp, go, rust, php.
// Extensions not claimed by a plugin fall through to the LineChunker.
// linesPerChunk/maxChunkBytes come from the frozen Config and are
// threaded into each plugin's LineChunker-backed fallback and
// size-enforcement split.
func NewLanguageRegistry(linesPerChunk, maxChunkBytes int) *LanguageRegistry {
	r := &LanguageRegistry{byExtension: make(map[string]*LanguagePlugin)}
	for _, p := range builtinPlugins(linesPerChunk, maxChunkBytes) {
		plugin := p
		for _, ext := range plugin.Extensions {
			r.byExtension[strings.ToLower(ext)] = &plugin
		}
	}
	return r
}

// Lookup returns the plugin registered for ext (case-insensitive), or nil
// if none; callers should route to the LineChunker in that case.
func (r *LanguageRegistry) Lookup(ext string) *LanguagePlugin {
	return r.byExtension[strings.ToLower(ext)]
}

// Language returns the language tag for ext, or "unknown".
func (r *LanguageRegistry) Language(ext string) string {
	if p := r.Lookup(ext); p != nil {
		return p.Name
	}
	return "unknown"
}

func builtinPlugins(linesPerChunk, maxChunkBytes int) []LanguagePlugin {
	mk := func(name string, nodeTypes NodeTypeTable) func() *AstChunker {
		return func() *AstChunker { return newAstChunker(name, nodeTypes, linesPerChunk, maxChunkBytes) }
	}
	return []LanguagePlugin{
		{Name: "python", Extensions: []string{".py"}, NodeTypes: pythonNodeTypes, NewChunker: mk("python", pythonNodeTypes)},
		{Name: "java", Extensions: []string{".java"}, NodeTypes: javaNodeTypes, NewChunker: mk("java", javaNodeTypes)},
		{Name: "javascript", Extensions: []string{".js", ".jsx"}, NodeTypes: javascriptNodeTypes, NewChunker: mk("javascript", javascriptNodeTypes)},
		{Name: "typescript", Extensions: []string{".ts", ".tsx"}, NodeTypes: typescriptNodeTypes, NewChunker: mk("typescript", typescriptNodeTypes)},
		{Name: "c", Extensions: []string{".c", ".h"}, NodeTypes: cNodeTypes, NewChunker: mk("c", cNodeTypes)},
		{Name: "cpp", Extensions: []string{".cpp", ".cc", ".cxx", ".hpp"}, NodeTypes: cppNodeTypes, NewChunker: mk("cpp", cppNodeTypes)},
		{Name: "csharp", Extensions: []string{".cs"}, NodeTypes: csharpNodeTypes, NewChunker: mk("csharp", csharpNodeTypes)},
		{Name: "go", Extensions: []string{".go"}, NodeTypes: goNodeTypes, NewChunker: mk("go", goNodeTypes)},
		{Name: "rust", Extensions: []string{".rs"}, NodeTypes: rustNodeTypes, NewChunker: mk("rust", rustNodeTypes)},
		{Name: "php", Extensions: []string{".php"}, NodeTypes: phpNodeTypes, NewChunker: mk("php", phpNodeTypes)},
	}
}
