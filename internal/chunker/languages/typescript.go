package languages

import (
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// tsNodeTypes are shared between the typescript and tsx grammars.
func tsNodeTypes() map[types.ChunkType][]string {
	return map[types.ChunkType][]string{
		types.ChunkFunction:  {"function_declaration", "generator_function_declaration"},
		types.ChunkClass:     {"class_declaration", "abstract_class_declaration"},
		types.ChunkInterface: {"interface_declaration"},
		types.ChunkTypeDecl:  {"type_alias_declaration", "enum_declaration"},
		types.ChunkNamespace: {"internal_module", "module"},
		types.ChunkVariable:  {"lexical_declaration", "variable_declaration"},
		types.ChunkImport:    {"import_statement"},
		types.ChunkExport:    {"export_statement"},
		types.ChunkComment:   {"comment"},
	}
}

// RegisterTypeScript registers TypeScript as its own plugin. The grammar is
// available, so .ts/.tsx never downgrade to the JavaScript plugin.
func RegisterTypeScript(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "typescript",
		ParserName: "typescript_parser",
		Language:   typescript.GetLanguage,
		Extensions: []string{"ts", "mts", "cts"},
		NodeTypes:  tsNodeTypes(),
	})
	r.Register(&chunker.Plugin{
		Name:       "typescript",
		ParserName: "typescript_parser",
		Language:   tsx.GetLanguage,
		Extensions: []string{"tsx"},
		NodeTypes:  tsNodeTypes(),
	})
}
