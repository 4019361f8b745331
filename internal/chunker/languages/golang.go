package languages

import (
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterGo(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "go",
		ParserName: "go_parser",
		Language:   golang.GetLanguage,
		Extensions: []string{"go"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkFunction: {"function_declaration"},
			types.ChunkMethod:   {"method_declaration"},
			types.ChunkTypeDecl: {"type_declaration"},
			types.ChunkConstant: {"const_declaration"},
			types.ChunkVariable: {"var_declaration"},
			types.ChunkModule:   {"package_clause"},
			types.ChunkImport:   {"import_declaration"},
			types.ChunkComment:  {"comment"},
		},
	})
}
