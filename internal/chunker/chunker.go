package chunker

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// maxParseBytes caps how much of a file is handed to the grammar. Larger
// files are parsed on their first MiB only; the tail still reaches the line
// chunker if every parse stage fails.
const maxParseBytes = 1 << 20

// maxRecoveryLines is the line count for the last parse attempt before the
// line-chunker escape hatch.
const maxRecoveryLines = 100

// parseStage names a rung of the failure-tolerant parse ladder. Each stage's
// precondition is the previous stage's failure.
type parseStage int

const (
	stageInitial parseStage = iota
	stageCtrlStripped
	stageFirstLines
	stageFallback
)

func (s parseStage) String() string {
	switch s {
	case stageInitial:
		return "initial"
	case stageCtrlStripped:
		return "ctrl_stripped"
	case stageFirstLines:
		return "first_lines"
	default:
		return "fallback"
	}
}

// AstChunker parses source files with their language grammar and extracts
// typed regions as chunks. It is stateless; a fresh parser is built per call
// so concurrent workers never share grammar state.
type AstChunker struct {
	registry      *Registry
	line          *LineChunker
	maxChunkBytes int
}

// NewAstChunker creates a chunker over the given registry, with the line
// chunker as its escape hatch.
func NewAstChunker(registry *Registry, line *LineChunker, maxChunkBytes int) *AstChunker {
	if maxChunkBytes <= 0 {
		maxChunkBytes = types.MaxChunkBytes
	}
	return &AstChunker{registry: registry, line: line, maxChunkBytes: maxChunkBytes}
}

// Chunk extracts chunks from src. Files without a registered grammar — and
// files every parse stage rejects — go through the line chunker instead; no
// input fails the pipeline.
func (c *AstChunker) Chunk(ctx context.Context, src []byte, path string) ([]types.Chunk, error) {
	plugin := c.registry.Lookup(path)
	if plugin == nil {
		lang := c.registry.LanguageFor(path)
		return c.line.Chunk(src, path, lang, types.ChunkLineBased), nil
	}

	// Stage inputs. NUL bytes are always stripped before the first attempt;
	// oversized files are parsed on their first MiB only.
	cleaned := bytes.ReplaceAll(src, []byte{0}, nil)
	if len(cleaned) > maxParseBytes {
		log.Warn().Str("path", path).Int("size", len(src)).Msg("chunker: truncating parse input to 1 MiB")
		cleaned = cleaned[:maxParseBytes]
	}

	for _, stage := range []parseStage{stageInitial, stageCtrlStripped, stageFirstLines} {
		variant := cleaned
		switch stage {
		case stageCtrlStripped:
			variant = stripControl(normalizeNewlines(cleaned))
		case stageFirstLines:
			variant = firstLines(stripControl(normalizeNewlines(cleaned)), maxRecoveryLines)
		}

		root, closeTree, err := parse(ctx, plugin, variant)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", types.ErrCancelled, path, ctx.Err())
			}
			log.Warn().Err(err).Str("path", path).Str("stage", stage.String()).Msg("chunker: parse attempt failed")
			continue
		}
		if parseRejected(root, variant) {
			closeTree()
			log.Warn().Str("path", path).Str("stage", stage.String()).Msg("chunker: grammar rejected input")
			continue
		}

		chunks := c.extract(plugin, root, variant, path)
		closeTree()
		return chunks, nil
	}

	// Final rung: line-chunk the ORIGINAL, untruncated content.
	log.Warn().Str("path", path).Str("stage", stageFallback.String()).Msg("chunker: falling back to line chunker")
	return c.line.Chunk(src, path, plugin.Name, types.ChunkFallback), nil
}

// parse runs the grammar over variant and returns the root node plus a
// closer for the tree.
func parse(ctx context.Context, plugin *Plugin, variant []byte) (*sitter.Node, func(), error) {
	parser := sitter.NewParser()
	parser.SetLanguage(plugin.Language())
	tree, err := parser.ParseCtx(ctx, nil, variant)
	if err != nil {
		return nil, nil, err
	}
	if tree == nil {
		return nil, nil, fmt.Errorf("grammar produced no tree")
	}
	return tree.RootNode(), func() { tree.Close() }, nil
}

// parseRejected decides whether a parse result counts as a grammar failure.
// Tree-sitter recovers from localized syntax errors, so scattered ERROR
// nodes are tolerated; a root-level ERROR, an empty tree over non-blank
// input, or a majority of ERROR children reject the attempt.
func parseRejected(root *sitter.Node, src []byte) bool {
	if root == nil {
		return true
	}
	if root.Type() == "ERROR" {
		return true
	}
	named := int(root.NamedChildCount())
	if named == 0 {
		return len(bytes.TrimSpace(src)) > 0
	}
	errCount := 0
	for i := 0; i < named; i++ {
		if root.NamedChild(i).Type() == "ERROR" {
			errCount++
		}
	}
	return errCount*2 > named
}

// extract walks the tree, collects typed candidates, merges adjacent
// same-type regions, and materializes chunks. All grammar offsets are byte
// offsets into the UTF-8 input; content is assembled from whole lines so it
// round-trips against the parsed bytes.
func (c *AstChunker) extract(plugin *Plugin, root *sitter.Node, variant []byte, path string) []types.Chunk {
	lines := SplitLines(variant)
	if len(lines) == 0 {
		return nil
	}

	cands := c.collect(plugin, root, variant, len(lines))
	cands = mergeCandidates(cands)

	chunks := make([]types.Chunk, 0, len(cands))
	seen := make(map[string]bool, len(cands))
	for _, cand := range cands {
		content := strings.Join(lines[cand.startLine-1:cand.endLine], "\n")
		id := types.ComputeChunkID(path, cand.startLine, cand.endLine)
		if seen[id] {
			continue
		}

		if len(content) > c.maxChunkBytes {
			parts := c.line.chunkLineRange(
				lines[cand.startLine-1:cand.endLine], cand.startLine,
				path, plugin.Name, cand.ctype, plugin.ParserName)
			for i := range parts {
				parts[i].ID = types.SplitPartID(id, i+1)
				parts[i].Name = cand.name
			}
			chunks = append(chunks, parts...)
			seen[id] = true
			continue
		}

		chunks = append(chunks, types.Chunk{
			ID:        id,
			FilePath:  path,
			Language:  plugin.Name,
			StartLine: cand.startLine,
			EndLine:   cand.endLine,
			Content:   content,
			Type:      cand.ctype,
			Parser:    plugin.ParserName,
			Name:      cand.name,
		})
		seen[id] = true
	}
	return chunks
}

// collect gathers typed candidates. A node matching a category bucket is
// emitted whole and its subtree skipped, so no line lands in two chunks; an
// unmatched top-level node becomes an "other" candidate. Transparent
// wrappers are descended through at the same level.
func (c *AstChunker) collect(plugin *Plugin, root *sitter.Node, variant []byte, lineCount int) []candidate {
	var cands []candidate

	var visit func(n *sitter.Node, topLevel bool)
	visit = func(n *sitter.Node, topLevel bool) {
		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			child := n.NamedChild(i)
			nodeType := child.Type()

			if plugin.IsTransparent(nodeType) {
				visit(child, topLevel)
				continue
			}
			if ct, ok := plugin.Category(nodeType); ok {
				cands = append(cands, newCandidate(child, ct, variant, lineCount))
				continue
			}
			if nodeType == "ERROR" {
				continue
			}
			if topLevel {
				cands = append(cands, newCandidate(child, types.ChunkOther, variant, lineCount))
			}
		}
	}
	visit(root, true)
	return cands
}

func newCandidate(n *sitter.Node, ctype types.ChunkType, variant []byte, lineCount int) candidate {
	start := int(n.StartPoint().Row) + 1
	end := int(n.EndPoint().Row) + 1
	// EndPoint is exclusive: a node ending exactly at a line break reports
	// the next row at column zero.
	if n.EndPoint().Column == 0 && end > start {
		end--
	}
	if end > lineCount {
		end = lineCount
	}
	if start > end {
		start = end
	}
	return candidate{
		ctype:     ctype,
		startLine: start,
		endLine:   end,
		name:      firstIdentifier(n, variant),
	}
}

// nameNodeTypes are the node types accepted as a region's name.
var nameNodeTypes = map[string]bool{
	"identifier":           true,
	"type_identifier":      true,
	"field_identifier":     true,
	"property_identifier":  true,
	"name":                 true,
	"namespace_identifier": true,
	"package_identifier":   true,
}

// firstIdentifier returns the first identifier-like descendant via left-most
// depth-first search, or "".
func firstIdentifier(n *sitter.Node, src []byte) string {
	if nameNodeTypes[n.Type()] {
		return n.Content(src)
	}
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		if name := firstIdentifier(n.NamedChild(i), src); name != "" {
			return name
		}
	}
	return ""
}

// normalizeNewlines converts CRLF and lone CR line endings to LF.
func normalizeNewlines(src []byte) []byte {
	src = bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(src, []byte("\r"), []byte("\n"))
}

// stripControl removes C0 control bytes (below 0x20) other than newline and
// tab. DEL (0x7f) and all other bytes are kept.
func stripControl(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for _, b := range src {
		if b < 0x20 && b != '\n' && b != '\t' {
			continue
		}
		out = append(out, b)
	}
	return out
}

// firstLines returns the first n lines of src.
func firstLines(src []byte, n int) []byte {
	idx := 0
	for count := 0; idx < len(src); idx++ {
		if src[idx] == '\n' {
			count++
			if count == n {
				return src[:idx+1]
			}
		}
	}
	return src
}
