package languages

import (
	"github.com/smacker/go-tree-sitter/php"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterPHP(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "php",
		ParserName: "php_parser",
		Language:   php.GetLanguage,
		Extensions: []string{"php"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkFunction:  {"function_definition"},
			types.ChunkClass:     {"class_declaration"},
			types.ChunkInterface: {"interface_declaration", "trait_declaration"},
			types.ChunkTypeDecl:  {"enum_declaration"},
			types.ChunkNamespace: {"namespace_definition"},
			types.ChunkUsing:     {"namespace_use_declaration"},
			types.ChunkConstant:  {"const_declaration"},
			types.ChunkComment:   {"comment"},
		},
	})
}
