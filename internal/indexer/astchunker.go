package indexer

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// NodeTypeTable maps a grammar's concrete node-type names to the abstract
// chunk category they represent.
type NodeTypeTable map[string]ChunkType

const maxParseFileSize = 1 << 20 // parse only the first 1 MiB of an oversized file

var (
	pythonNodeTypes = NodeTypeTable{
		"function_definition":   ChunkTypeFunction,
		"class_definition":      ChunkTypeClass,
		"import_statement":      ChunkTypeImport,
		"import_from_statement": ChunkTypeImport,
		"comment":               ChunkTypeComment,
	}
	javaNodeTypes = NodeTypeTable{
		"method_declaration":      ChunkTypeMethod,
		"constructor_declaration": ChunkTypeMethod,
		"class_declaration":       ChunkTypeClass,
		"interface_declaration":   ChunkTypeInterface,
		"enum_declaration":        ChunkTypeType,
		"field_declaration":       ChunkTypeField,
		"import_declaration":      ChunkTypeImport,
		"line_comment":            ChunkTypeComment,
		"block_comment":           ChunkTypeComment,
	}
	javascriptNodeTypes = NodeTypeTable{
		"function_declaration": ChunkTypeFunction,
		"method_definition":    ChunkTypeMethod,
		"class_declaration":    ChunkTypeClass,
		"lexical_declaration":  ChunkTypeVariable,
		"variable_declaration": ChunkTypeVariable,
		"import_statement":     ChunkTypeImport,
		"export_statement":     ChunkTypeExport,
		"comment":              ChunkTypeComment,
	}
	typescriptNodeTypes = NodeTypeTable{
		"function_declaration":   ChunkTypeFunction,
		"method_definition":      ChunkTypeMethod,
		"class_declaration":      ChunkTypeClass,
		"interface_declaration":  ChunkTypeInterface,
		"type_alias_declaration": ChunkTypeType,
		"enum_declaration":       ChunkTypeType,
		"lexical_declaration":    ChunkTypeVariable,
		"import_statement":       ChunkTypeImport,
		"export_statement":       ChunkTypeExport,
		"comment":                ChunkTypeComment,
	}
	cNodeTypes = NodeTypeTable{
		"function_definition":  ChunkTypeFunction,
		"struct_specifier":     ChunkTypeType,
		"enum_specifier":       ChunkTypeType,
		"preproc_include":      ChunkTypeInclude,
		"preproc_def":          ChunkTypePreprocessor,
		"preproc_function_def": ChunkTypePreprocessor,
		"comment":              ChunkTypeComment,
	}
	cppNodeTypes = NodeTypeTable{
		"function_definition":  ChunkTypeFunction,
		"struct_specifier":     ChunkTypeType,
		"class_specifier":      ChunkTypeClass,
		"enum_specifier":       ChunkTypeType,
		"namespace_definition": ChunkTypeNamespace,
		"preproc_include":      ChunkTypeInclude,
		"preproc_def":          ChunkTypePreprocessor,
		"comment":              ChunkTypeComment,
	}
	csharpNodeTypes = NodeTypeTable{
		"method_declaration":      ChunkTypeMethod,
		"constructor_declaration": ChunkTypeMethod,
		"class_declaration":       ChunkTypeClass,
		"interface_declaration":   ChunkTypeInterface,
		"struct_declaration":      ChunkTypeType,
		"enum_declaration":        ChunkTypeType,
		"property_declaration":    ChunkTypeField,
		"using_directive":         ChunkTypeUsing,
		"namespace_declaration":   ChunkTypeNamespace,
		"comment":                 ChunkTypeComment,
	}
	goNodeTypes = NodeTypeTable{
		"function_declaration": ChunkTypeFunction,
		"method_declaration":   ChunkTypeMethod,
		"type_declaration":     ChunkTypeType,
		"const_declaration":    ChunkTypeConstant,
		"var_declaration":      ChunkTypeVariable,
		"import_declaration":   ChunkTypeImport,
		"comment":              ChunkTypeComment,
	}
	rustNodeTypes = NodeTypeTable{
		"function_item":    ChunkTypeFunction,
		"impl_item":        ChunkTypeClass,
		"struct_item":      ChunkTypeType,
		"enum_item":        ChunkTypeType,
		"trait_item":       ChunkTypeInterface,
		"mod_item":         ChunkTypeModule,
		"const_item":       ChunkTypeConstant,
		"static_item":      ChunkTypeVariable,
		"type_item":        ChunkTypeType,
		"macro_definition": ChunkTypeMacro,
		"use_declaration":  ChunkTypeUsing,
		"line_comment":     ChunkTypeComment,
		"block_comment":    ChunkTypeComment,
	}
	phpNodeTypes = NodeTypeTable{
		"function_definition":       ChunkTypeFunction,
		"method_declaration":        ChunkTypeMethod,
		"class_declaration":         ChunkTypeClass,
		"interface_declaration":     ChunkTypeInterface,
		"namespace_definition":      ChunkTypeNamespace,
		"namespace_use_declaration": ChunkTypeUsing,
		"property_declaration":      ChunkTypeField,
		"const_declaration":         ChunkTypeConstant,
		"comment":                   ChunkTypeComment,
	}
)

func sitterLanguage(name string) *sitter.Language {
	switch name {
	case "python":
		return python.GetLanguage()
	case "java":
		return java.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "c":
		return c.GetLanguage()
	case "cpp":
		return cpp.GetLanguage()
	case "csharp":
		return csharp.GetLanguage()
	case "go":
		return golang.GetLanguage()
	case "rust":
		return rust.GetLanguage()
	case "php":
		return php.GetLanguage()
	default:
		return nil
	}
}

// AstChunker parses a single language's source with its tree-sitter
// grammar and extracts typed, size-bounded chunks.
type AstChunker struct {
	language      string
	nodeTypes     NodeTypeTable
	fallback      *LineChunker
	maxChunkBytes int
}

// newAstChunker builds a stateless chunker for language. maxChunkBytes is
// the configured byte cap, clamped to the hard 9 KiB
// wire-format limit: a configured value can only tighten it, never loosen
// it past the wire-format limit every downstream Chunk must satisfy.
func newAstChunker(language string, nodeTypes NodeTypeTable, linesPerChunk, maxChunkBytes int) *AstChunker {
	if maxChunkBytes <= 0 || maxChunkBytes > MaxChunkBytes {
		maxChunkBytes = MaxChunkBytes
	}
	return &AstChunker{
		language:      language,
		nodeTypes:     nodeTypes,
		fallback:      NewLineChunker(linesPerChunk, maxChunkBytes),
		maxChunkBytes: maxChunkBytes,
	}
}

// Chunk parses content and returns the extracted, merged, size-enforced
// chunks, falling through the staged recovery ladder on
// grammar failure.
func (a *AstChunker) Chunk(ctx context.Context, content []byte, path string) []Chunk {
	original := content

	// Stage (a): pre-clean NUL bytes.
	cleaned := bytes.ReplaceAll(content, []byte{0}, nil)

	// Stage (b): truncate files over 1 MiB to parse only the head.
	truncated := cleaned
	if len(truncated) > maxParseFileSize {
		truncated = truncated[:maxParseFileSize]
	}

	if chunks, ok := a.tryParse(ctx, truncated, path, "initial"); ok {
		return chunks
	}

	// Stage (c): strip control chars, normalize CRLF -> LF, retry.
	normalized := normalizeSource(truncated)
	if chunks, ok := a.tryParse(ctx, normalized, path, "normalized"); ok {
		return chunks
	}

	// Stage (d): retry with only the first 100 lines.
	firstLines := firstNLines(normalized, 100)
	if chunks, ok := a.tryParse(ctx, firstLines, path, "first_100_lines"); ok {
		return chunks
	}

	// Stage (e): fall through to the LineChunker over the ORIGINAL,
	// untruncated content.
	return a.fallback.Chunk(original, path, a.language, ChunkTypeFallback)
}

func (a *AstChunker) tryParse(ctx context.Context, content []byte, path, stage string) ([]Chunk, bool) {
	lang := sitterLanguage(a.language)
	if lang == nil {
		return nil, false
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		_ = newParseError(path, stage, err)
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, false
	}

	offsets := lineStartOffsets(content)
	var candidates []Chunk
	a.walk(root, content, offsets, path, &candidates)
	if len(candidates) == 0 {
		return nil, false
	}

	merged := mergeAdjacent(candidates)
	final := a.enforceSize(merged, path)
	return final, true
}

func (a *AstChunker) walk(node *sitter.Node, content []byte, offsets []int, path string, out *[]Chunk) {
	nodeType := node.Type()

	if category, ok := a.nodeTypes[nodeType]; ok {
		startLine := int(node.StartPoint().Row) + 1
		endLine := int(node.EndPoint().Row) + 1
		// Content spans whole lines, not the node's own byte range: a
		// nested declaration starting mid-line must still round-trip
		// against join("\n", lines[startLine..endLine]).
		text := lineSpan(content, offsets, startLine, endLine)
		name := firstIdentifier(node, content)

		*out = append(*out, Chunk{
			FilePath:  path,
			Language:  a.language,
			StartLine: startLine,
			EndLine:   endLine,
			Content:   text,
			Type:      category,
			Parser:    a.language + "_parser",
			Name:      name,
			ChunkID:   chunkID(path, startLine, endLine),
		})
		return // don't recurse into a matched node's children
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		a.walk(node.Child(i), content, offsets, path, out)
	}
}

// lineStartOffsets returns the byte offset of the start of every line in
// content. All grammar offsets are byte offsets into the UTF-8 buffer, so
// the table is byte-addressed too.
func lineStartOffsets(content []byte) []int {
	offsets := []int{0}
	for i, b := range content {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineSpan extracts the exact bytes of lines [startLine..endLine]
// (1-based, inclusive), without the trailing newline.
func lineSpan(content []byte, offsets []int, startLine, endLine int) string {
	if startLine < 1 || startLine > len(offsets) {
		return ""
	}
	start := offsets[startLine-1]
	end := len(content)
	if endLine < len(offsets) {
		end = offsets[endLine] - 1 // drop the joining newline
	}
	if end < start {
		end = start
	}
	return string(content[start:end])
}

// firstIdentifier performs a left-most DFS for the first
// identifier/type_identifier/name descendant of node.
func firstIdentifier(node *sitter.Node, content []byte) string {
	var find func(n *sitter.Node) string
	find = func(n *sitter.Node) string {
		switch n.Type() {
		case "identifier", "type_identifier", "name", "field_identifier", "property_identifier":
			return string(content[n.StartByte():n.EndByte()])
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if name := find(n.Child(i)); name != "" {
				return name
			}
		}
		return ""
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if name := find(node.Child(i)); name != "" {
			return name
		}
	}
	return ""
}

// mergeAdjacent coalesces same-type regions within two lines of each
// other: a single forward
// pass over candidates sorted by startLine; no re-sort after merging.
func mergeAdjacent(candidates []Chunk) []Chunk {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].StartLine < candidates[j].StartLine })

	merged := make([]Chunk, 0, len(candidates))
	current := candidates[0]

	for _, next := range candidates[1:] {
		if next.Type == current.Type && next.StartLine <= current.EndLine+2 {
			gap := next.StartLine - current.EndLine
			if gap > 0 {
				current.Content += strings.Repeat("\n", gap)
			}
			current.Content += next.Content
			if next.EndLine > current.EndLine {
				current.EndLine = next.EndLine
			}
			if current.Name == "" {
				current.Name = next.Name
			}
			current.ChunkID = chunkID(current.FilePath, current.StartLine, current.EndLine)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	return merged
}

// enforceSize splits any over-cap chunk via the LineChunker; split parts
// re-inherit type/path/language and get a fresh chunkId, with a link back
// to the parent for progress accounting.
func (a *AstChunker) enforceSize(chunks []Chunk, path string) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if len(c.Content) <= a.maxChunkBytes {
			out = append(out, c)
			continue
		}

		parts := a.fallback.Chunk([]byte(c.Content), path, a.language, c.Type)
		parentID := c.ChunkID
		for i := range parts {
			// Re-base line numbers onto the parent chunk's source range.
			parts[i].StartLine += c.StartLine - 1
			parts[i].EndLine += c.StartLine - 1
			parts[i].Name = c.Name
			parts[i].Parser = c.Parser
			parts[i].ChunkID = parentID + "_part_" + strconv.Itoa(i+1)
			parts[i].parentID = parentID
		}
		out = append(out, parts...)
	}
	return out
}

func normalizeSource(content []byte) []byte {
	s := strings.ReplaceAll(string(content), "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return []byte(b.String())
}

func firstNLines(content []byte, n int) []byte {
	lines := strings.SplitN(string(content), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return []byte(strings.Join(lines, "\n"))
}
