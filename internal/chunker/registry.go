package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// Plugin describes one language: its grammar, the file extensions it claims,
// and the node-type buckets that map concrete grammar node names to chunk
// categories. Plugins are values; they hold no parser state.
type Plugin struct {
	// Name is the lowercase language tag ("python", "cpp", ...).
	Name string
	// ParserName labels chunks produced through this plugin, e.g. "python_parser".
	ParserName string
	// Language returns the tree-sitter grammar. Grammars are not thread-safe
	// to parse with concurrently, so each worker builds its own parser; the
	// grammar value itself is shared and immutable.
	Language func() *sitter.Language
	// Extensions are claimed file extensions, without the dot.
	Extensions []string
	// NodeTypes maps a chunk category to the concrete grammar node-type
	// names that belong to it.
	NodeTypes map[types.ChunkType][]string
	// Transparent lists wrapper node types the walker descends through
	// instead of classifying (decorator wrappers, template declarations).
	Transparent []string

	// categories is the inverted NodeTypes index, built on registration.
	categories map[string]types.ChunkType
	// transparent is the Transparent set, built on registration.
	transparent map[string]bool
}

// Category resolves a grammar node-type name to its chunk category.
func (p *Plugin) Category(nodeType string) (types.ChunkType, bool) {
	ct, ok := p.categories[nodeType]
	return ct, ok
}

// IsTransparent reports whether the walker should descend through nodeType.
func (p *Plugin) IsTransparent(nodeType string) bool {
	return p.transparent[nodeType]
}

// Registry maps file extensions to language plugins. Extensions outside the
// table — or explicitly routed to line mode — select the line chunker.
type Registry struct {
	mu         sync.RWMutex
	byExt      map[string]*Plugin
	lineRouted map[string]bool
}

// lineRoutedExtensions are known non-code formats that always take the line
// chunker, even though they sit on the scanner's allowlist.
var lineRoutedExtensions = []string{
	"json", "yaml", "yml", "xml", "html", "css", "md", "txt", "sh", "sql",
	"toml", "ini", "csv", "log",
}

// NewRegistry creates an empty registry; the built-in language set is
// registered by the languages package.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:      make(map[string]*Plugin),
		lineRouted: make(map[string]bool),
	}
	for _, ext := range lineRoutedExtensions {
		r.lineRouted[ext] = true
	}
	return r
}

// Register adds a plugin and indexes its extensions and node buckets.
func (r *Registry) Register(p *Plugin) {
	p.categories = make(map[string]types.ChunkType)
	for ct, nodeTypes := range p.NodeTypes {
		for _, nt := range nodeTypes {
			p.categories[nt] = ct
		}
	}
	p.transparent = make(map[string]bool, len(p.Transparent))
	for _, nt := range p.Transparent {
		p.transparent[nt] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.Extensions {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// Lookup returns the plugin claiming the path's extension, or nil when the
// file should take the line chunker. The extension match is case-insensitive.
func (r *Registry) Lookup(path string) *Plugin {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lineRouted[ext] {
		return nil
	}
	return r.byExt[ext]
}

// LanguageFor returns the lowercase language tag for a path: the plugin's
// name, the extension for line-routed formats, or "unknown".
func (r *Registry) LanguageFor(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byExt[ext]; ok {
		return p.Name
	}
	if r.lineRouted[ext] {
		return ext
	}
	return "unknown"
}

// Extensions returns the set of all extensions with a registered grammar.
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		exts[ext] = true
	}
	return exts
}
