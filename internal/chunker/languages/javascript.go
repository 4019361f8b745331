package languages

import (
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterJavaScript(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "javascript",
		ParserName: "javascript_parser",
		Language:   javascript.GetLanguage,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkFunction: {"function_declaration", "generator_function_declaration"},
			types.ChunkClass:    {"class_declaration"},
			types.ChunkVariable: {"lexical_declaration", "variable_declaration"},
			types.ChunkImport:   {"import_statement"},
			types.ChunkExport:   {"export_statement"},
			types.ChunkComment:  {"comment"},
		},
	})
}
