package languages

import (
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterCSharp(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "csharp",
		ParserName: "csharp_parser",
		Language:   csharp.GetLanguage,
		Extensions: []string{"cs"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkClass:     {"class_declaration", "record_declaration"},
			types.ChunkInterface: {"interface_declaration"},
			types.ChunkTypeDecl:  {"struct_declaration", "enum_declaration", "delegate_declaration"},
			types.ChunkNamespace: {"namespace_declaration", "file_scoped_namespace_declaration"},
			types.ChunkUsing:     {"using_directive"},
			types.ChunkComment:   {"comment"},
		},
	})
}
